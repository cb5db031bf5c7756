package roles

import (
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"

	"kpiscout/domain/insight"
	"kpiscout/domain/table"
	"kpiscout/internal/profiling"
)

// Config holds the role scoring constants
type Config struct {
	KeywordWeight        float64 `yaml:"keyword_weight"`
	IdentifierUniqueness float64 `yaml:"identifier_uniqueness"`
	MagnitudeThreshold   float64 `yaml:"magnitude_threshold"`
	MagnitudeBonus       float64 `yaml:"magnitude_bonus"`
	RevenueNameBonus     float64 `yaml:"revenue_name_bonus"`
	TransactionIDBonus   float64 `yaml:"transaction_id_bonus"`
	DatetimeScore        float64 `yaml:"datetime_score"`
	MinNonNull           int     `yaml:"min_non_null"`
	MinNonNullFraction   float64 `yaml:"min_non_null_fraction"`
}

// DefaultConfig returns the stock scoring constants
func DefaultConfig() Config {
	return Config{
		KeywordWeight:        2.0,
		IdentifierUniqueness: 0.98,
		MagnitudeThreshold:   50,
		MagnitudeBonus:       0.5,
		RevenueNameBonus:     5.0,
		TransactionIDBonus:   0.5,
		DatetimeScore:        5.0,
		MinNonNull:           5,
		MinNonNullFraction:   0.2,
	}
}

// Mapper binds business roles to columns by name and data shape
type Mapper struct {
	config Config
	logger *zap.Logger
}

// NewMapper creates a role mapper
func NewMapper(config Config, logger *zap.Logger) *Mapper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Mapper{config: config, logger: logger}
}

// Map returns exactly one pick per catalog role. It never fails; a role with
// no usable column gets an empty pick.
func (m *Mapper) Map(t *table.Table, profile *insight.Profile, sem *insight.SemanticProfile) insight.RoleMap {
	out := make(insight.RoleMap, len(insight.CatalogRoles))

	out[insight.RoleDate] = m.pickDate(t, profile)
	for _, role := range insight.NumericRoles {
		out[role] = m.pickNumeric(t, profile, role)
	}
	for _, role := range insight.CategoricalRoles {
		out[role] = m.pickCategorical(t, sem, role)
	}

	for _, role := range insight.CatalogRoles {
		p := out[role]
		m.logger.Debug("role mapped",
			zap.String("role", string(role)),
			zap.String("column", p.Column),
			zap.Float64("score", p.Score))
	}
	return out
}

// PickAuxiliary scores an auxiliary dimension role such as CHANNEL or
// LOCATION the same way categorical catalog roles are scored
func (m *Mapper) PickAuxiliary(t *table.Table, sem *insight.SemanticProfile, role insight.RoleKey) insight.RolePick {
	return m.pickCategorical(t, sem, role)
}

func (m *Mapper) pickDate(t *table.Table, profile *insight.Profile) insight.RolePick {
	if profile != nil && len(profile.DatetimeCols) > 0 {
		return insight.RolePick{
			Role:   insight.RoleDate,
			Column: profile.DatetimeCols[0],
			Score:  m.config.DatetimeScore,
			Reason: "first column parsed as datetime",
		}
	}

	best := insight.EmptyPick(insight.RoleDate, "no datetime column and no date-like name")
	for _, c := range t.Columns {
		hits := keywordHits(insight.RoleDate, profiling.NormalizeName(c.Name))
		if hits == 0 {
			continue
		}
		score := m.config.KeywordWeight * float64(hits)
		if score > best.Score {
			best = insight.RolePick{
				Role:   insight.RoleDate,
				Column: c.Name,
				Score:  score,
				Reason: fmt.Sprintf("date keyword hits=%d", hits),
			}
		}
	}
	return best
}

func (m *Mapper) pickNumeric(t *table.Table, profile *insight.Profile, role insight.RoleKey) insight.RolePick {
	best := insight.EmptyPick(role, "no numeric column matched")
	if profile == nil {
		return best
	}

	rows := t.RowCount()
	minNonNull := m.config.MinNonNull
	if frac := int(math.Ceil(m.config.MinNonNullFraction*float64(rows) - 1e-9)); frac > minNonNull {
		minNonNull = frac
	}
	rejectIdentifiers := role == insight.RoleRevenue || role == insight.RoleCostAmount

	for _, name := range profile.NumericCols {
		c, ok := t.Column(name)
		if !ok {
			continue
		}
		if len(c.NonMissingFloats()) < minNonNull {
			continue
		}
		normalized := profiling.NormalizeName(name)
		if rejectIdentifiers && c.UniqueRatio() > m.config.IdentifierUniqueness {
			continue
		}

		hits := keywordHits(role, normalized)
		nameBonus := role == insight.RoleRevenue && isRevenueName(normalized)
		if hits == 0 && !nameBonus {
			continue
		}

		score := m.config.KeywordWeight * float64(hits)
		reasons := []string{fmt.Sprintf("keyword hits=%d", hits)}
		if top := c.MaxFloat(); !math.IsNaN(top) && top > m.config.MagnitudeThreshold {
			score += m.config.MagnitudeBonus
			reasons = append(reasons, fmt.Sprintf("max>%g", m.config.MagnitudeThreshold))
		}
		if nameBonus {
			score += m.config.RevenueNameBonus
			reasons = append(reasons, "revenue name bonus")
		}

		if score > best.Score {
			best = insight.RolePick{
				Role:   role,
				Column: name,
				Score:  score,
				Reason: strings.Join(reasons, ", "),
			}
		}
	}
	return best
}

// isRevenueName is true for "sales", or names mentioning revenue or sales amount
func isRevenueName(normalized string) bool {
	return normalized == "sales" ||
		strings.Contains(normalized, "revenue") ||
		strings.Contains(normalized, "sales amount")
}

func (m *Mapper) pickCategorical(t *table.Table, sem *insight.SemanticProfile, role insight.RoleKey) insight.RolePick {
	best := insight.EmptyPick(role, "no column name matched")

	for _, name := range categoricalCandidates(t, sem) {
		c, ok := t.Column(name)
		if !ok {
			continue
		}
		hits := keywordHits(role, profiling.NormalizeName(name))
		if hits == 0 {
			continue
		}

		score := m.config.KeywordWeight * float64(hits)
		reason := fmt.Sprintf("keyword hits=%d", hits)
		if role == insight.RoleTransactionID && c.UniqueRatio() > m.config.IdentifierUniqueness {
			score += m.config.TransactionIDBonus
			reason += ", near-unique values"
		}

		if score > best.Score {
			best = insight.RolePick{Role: role, Column: name, Score: score, Reason: reason}
		}
	}
	return best
}

// categoricalCandidates lists semantic categorical columns first, then every
// other column in table order, without duplicates
func categoricalCandidates(t *table.Table, sem *insight.SemanticProfile) []string {
	seen := make(map[string]bool, len(t.Columns))
	out := make([]string, 0, len(t.Columns))
	if sem != nil {
		for _, name := range sem.Categorical {
			if !seen[name] {
				seen[name] = true
				out = append(out, name)
			}
		}
	}
	for _, name := range t.ColumnNames() {
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	return out
}
