package analysis

import (
	"strings"

	"kpiscout/domain/insight"
	"kpiscout/domain/table"
	"kpiscout/internal/profiling"
)

// businessTerm maps technical name fragments to one readable label
type businessTerm struct {
	label string
	terms []string
}

// BusinessNameMapper provides business-friendly column labels
type BusinessNameMapper struct {
	roleLabels map[insight.RoleKey]string
	terms      []businessTerm
}

// NewBusinessNameMapper creates a mapper with the retail vocabulary. Terms are
// checked in order, so more specific fragments come first.
func NewBusinessNameMapper() *BusinessNameMapper {
	return &BusinessNameMapper{
		roleLabels: map[insight.RoleKey]string{
			insight.RoleRevenue:        "Revenue",
			insight.RoleQuantity:       "Units sold",
			insight.RoleCostAmount:     "Cost of goods",
			insight.RoleDiscountAmount: "Discounts given",
			insight.RoleDate:           "Transaction date",
			insight.RoleProduct:        "Product",
			insight.RoleCategory:       "Product category",
			insight.RolePaymentMethod:  "Payment method",
			insight.RoleCustomer:       "Customer",
			insight.RoleTransactionID:  "Order identifier",
		},
		terms: []businessTerm{
			{"Unit price", []string{"unit price", "unitprice"}},
			{"Shipping cost", []string{"shipping"}},
			{"Tax", []string{"tax", "vat"}},
			{"Revenue", []string{"revenue", "income", "sales", "gmv", "turnover"}},
			{"Profit", []string{"profit", "margin", "earnings"}},
			{"Pricing", []string{"price", "fee", "rate"}},
			{"Quantity", []string{"quantity", "qty", "units", "volume"}},
			{"Customer segment", []string{"segment", "tier", "cohort"}},
			{"Location", []string{"location", "city", "state", "country", "region", "branch"}},
			{"Sales channel", []string{"channel", "source", "medium", "platform"}},
			{"Promotion", []string{"campaign", "promotion", "promo", "offer", "coupon"}},
			{"Customer rating", []string{"rating", "satisfaction", "nps", "csat", "score"}},
			{"Status", []string{"status"}},
			{"Time period", []string{"date", "time", "timestamp", "period", "month", "year"}},
		},
	}
}

// Labels returns a readable label for every column. Columns bound to a role
// take the role label; the rest are matched against the vocabulary and fall
// back to a title-cased form of the name.
func (m *BusinessNameMapper) Labels(t *table.Table, roles insight.RoleMap) map[string]string {
	labels := make(map[string]string, len(t.Columns))
	for _, role := range insight.CatalogRoles {
		if col, ok := roles.Column(role); ok && t.Has(col) {
			if _, taken := labels[col]; !taken {
				labels[col] = m.roleLabels[role]
			}
		}
	}
	for _, name := range t.ColumnNames() {
		if _, ok := labels[name]; !ok {
			labels[name] = m.MapColumnToBusinessName(name)
		}
	}
	return labels
}

// MapColumnToBusinessName converts a technical column name to a business-friendly name
func (m *BusinessNameMapper) MapColumnToBusinessName(columnName string) string {
	normalized := profiling.NormalizeName(columnName)
	if profiling.IsIdentifierName(columnName) {
		return m.toReadableName(normalized)
	}
	for _, bt := range m.terms {
		for _, term := range bt.terms {
			if containsWord(normalized, term) {
				return bt.label
			}
		}
	}
	return m.toReadableName(normalized)
}

// containsWord matches whole words or phrases within a normalized name
func containsWord(normalized, term string) bool {
	return strings.Contains(" "+normalized+" ", " "+term+" ")
}

// toReadableName capitalizes the first word of a normalized name
func (m *BusinessNameMapper) toReadableName(normalized string) string {
	if normalized == "" {
		return normalized
	}
	return strings.ToUpper(normalized[:1]) + normalized[1:]
}
