package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSmokeTestsPass(t *testing.T) {
	for _, st := range smokeTests(newAnalysis()) {
		t.Run(st.name, func(t *testing.T) {
			assert.NoError(t, st.fn(context.Background()))
		})
	}
}

func TestDeterminism(t *testing.T) {
	require.NoError(t, testDeterminism(context.Background(), newAnalysis(), 7))
}
