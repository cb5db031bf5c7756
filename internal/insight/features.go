package insight

import (
	"strings"

	domainInsight "kpiscout/domain/insight"
	"kpiscout/domain/table"
	"kpiscout/internal/profiling"
)

// featureVocabulary is the fixed keyword set counted over column name tokens
var featureVocabulary = map[string][]string{
	"money":     {"revenue", "sales", "sale", "amount", "price", "total", "income", "turnover"},
	"cost":      {"cost", "costs", "expense", "expenses", "cogs", "spend"},
	"qty":       {"qty", "quantity", "units", "unit", "count", "items", "volume"},
	"time":      {"date", "time", "day", "month", "year", "week", "timestamp", "datetime"},
	"product":   {"product", "item", "sku", "menu", "category", "brand"},
	"payment":   {"payment", "pay", "cash", "card", "method", "tender"},
	"channel":   {"channel", "source", "platform", "online", "store", "outlet"},
	"finance":   {"profit", "margin", "tax", "discount", "balance", "invoice"},
	"inventory": {"stock", "inventory", "warehouse", "reorder", "supply", "supplier"},
}

// Features builds the card recommender input record for a profiled table
func Features(t *table.Table, profile *domainInsight.Profile, sem *domainInsight.SemanticProfile) domainInsight.FeatureRecord {
	names := t.ColumnNames()
	normalized := make([]string, len(names))
	hits := map[string]int{}
	for i, name := range names {
		normalized[i] = profiling.NormalizeName(name)
		for _, tok := range strings.Fields(normalized[i]) {
			for group, words := range featureVocabulary {
				for _, w := range words {
					if tok == w {
						hits[group]++
					}
				}
			}
		}
	}

	rec := domainInsight.FeatureRecord{
		ColumnsText: strings.Join(normalized, " "),
		Rows:        t.RowCount(),
		Cols:        len(names),
		KwMoney:     hits["money"],
		KwCost:      hits["cost"],
		KwQty:       hits["qty"],
		KwTime:      hits["time"],
		KwProduct:   hits["product"],
		KwPayment:   hits["payment"],
		KwChannel:   hits["channel"],
		KwFinance:   hits["finance"],
		KwInventory: hits["inventory"],
	}
	if sem != nil {
		rec.NumericCols = sem.Count(domainInsight.SemanticNumeric)
		rec.DatetimeCols = sem.Count(domainInsight.SemanticDatetime)
		rec.CategoricalCols = sem.Count(domainInsight.SemanticCategorical)
		rec.IdentifierCols = sem.Count(domainInsight.SemanticIdentifier)
		rec.TextCols = sem.Count(domainInsight.SemanticText)
	}
	if profile != nil && len(names) > 0 {
		total := 0.0
		for _, name := range names {
			total += profile.MissingFraction(name)
		}
		rec.AvgMissingRate = total / float64(len(names))
	}
	return rec
}
