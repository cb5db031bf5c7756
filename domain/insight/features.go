package insight

// FeatureRecord is the fixed input contract of the card recommender. Field
// names are part of the model artifact format.
type FeatureRecord struct {
	ColumnsText     string  `json:"columns_text"`
	Rows            int     `json:"n_rows"`
	Cols            int     `json:"n_cols"`
	NumericCols     int     `json:"n_numeric"`
	DatetimeCols    int     `json:"n_datetime"`
	CategoricalCols int     `json:"n_categorical"`
	IdentifierCols  int     `json:"n_identifier"`
	TextCols        int     `json:"n_text"`
	AvgMissingRate  float64 `json:"avg_missing_rate"`
	KwMoney         int     `json:"kw_money"`
	KwCost          int     `json:"kw_cost"`
	KwQty           int     `json:"kw_qty"`
	KwTime          int     `json:"kw_time"`
	KwProduct       int     `json:"kw_product"`
	KwPayment       int     `json:"kw_payment"`
	KwChannel       int     `json:"kw_channel"`
	KwFinance       int     `json:"kw_finance"`
	KwInventory     int     `json:"kw_inventory"`
}

// Numeric returns the numeric features keyed by their JSON names
func (f FeatureRecord) Numeric() map[string]float64 {
	return map[string]float64{
		"n_rows":           float64(f.Rows),
		"n_cols":           float64(f.Cols),
		"n_numeric":        float64(f.NumericCols),
		"n_datetime":       float64(f.DatetimeCols),
		"n_categorical":    float64(f.CategoricalCols),
		"n_identifier":     float64(f.IdentifierCols),
		"n_text":           float64(f.TextCols),
		"avg_missing_rate": f.AvgMissingRate,
		"kw_money":         float64(f.KwMoney),
		"kw_cost":          float64(f.KwCost),
		"kw_qty":           float64(f.KwQty),
		"kw_time":          float64(f.KwTime),
		"kw_product":       float64(f.KwProduct),
		"kw_payment":       float64(f.KwPayment),
		"kw_channel":       float64(f.KwChannel),
		"kw_finance":       float64(f.KwFinance),
		"kw_inventory":     float64(f.KwInventory),
	}
}
