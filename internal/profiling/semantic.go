package profiling

import (
	"strings"
	"unicode/utf8"

	"kpiscout/domain/insight"
	"kpiscout/domain/table"
)

// Semantic classifies every column of a profiled table. Numeric and datetime
// come from the profile; everything else is split into identifier, free text
// and categorical by name and content shape.
func (p *Profiler) Semantic(t *table.Table, profile *insight.Profile) *insight.SemanticProfile {
	sem := &insight.SemanticProfile{
		Types:       make(map[string]insight.SemanticType, len(t.Columns)),
		Numeric:     []string{},
		Datetime:    []string{},
		Categorical: []string{},
		Identifier:  []string{},
		Text:        []string{},
	}

	for _, c := range t.Columns {
		st := p.classify(c, profile)
		sem.Types[c.Name] = st
		switch st {
		case insight.SemanticNumeric:
			sem.Numeric = append(sem.Numeric, c.Name)
		case insight.SemanticDatetime:
			sem.Datetime = append(sem.Datetime, c.Name)
		case insight.SemanticIdentifier:
			sem.Identifier = append(sem.Identifier, c.Name)
		case insight.SemanticText:
			sem.Text = append(sem.Text, c.Name)
		default:
			sem.Categorical = append(sem.Categorical, c.Name)
		}
	}
	return sem
}

func (p *Profiler) classify(c *table.Column, profile *insight.Profile) insight.SemanticType {
	unique := c.UniqueRatio()
	idName := IsIdentifierName(c.Name)

	if profile.IsDatetime(c.Name) {
		return insight.SemanticDatetime
	}
	if profile.IsNumeric(c.Name) {
		if idName && unique > p.config.IdentifierNameUniqueRatio {
			return insight.SemanticIdentifier
		}
		return insight.SemanticNumeric
	}

	meanLen, meanWords := textShape(c)
	if idName && unique > p.config.IdentifierNameUniqueRatio {
		return insight.SemanticIdentifier
	}
	nonMissing := len(c.Values) - c.MissingCount()
	if unique > p.config.IdentifierUniqueRatio && nonMissing >= p.config.IdentifierMinValues && meanLen <= p.config.IdentifierMaxLength && meanWords <= 1 {
		return insight.SemanticIdentifier
	}
	if meanLen > p.config.TextMeanLength || meanWords > p.config.TextMeanWords {
		return insight.SemanticText
	}
	return insight.SemanticCategorical
}

// textShape returns mean character length and mean word count of non-missing cells
func textShape(c *table.Column) (float64, float64) {
	var chars, words, n int
	for _, v := range c.Values {
		if v.IsMissing() {
			continue
		}
		s := v.Text()
		chars += utf8.RuneCountInString(s)
		words += len(strings.Fields(s))
		n++
	}
	if n == 0 {
		return 0, 0
	}
	return float64(chars) / float64(n), float64(words) / float64(n)
}
