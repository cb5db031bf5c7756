package testkit

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"math/rand"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"kpiscout/domain/table"
)

// SalesGeneratorConfig configures the retail sales data generator
type SalesGeneratorConfig struct {
	Orders        int       `json:"orders"`
	CustomerCount int       `json:"customer_count"`
	ProductCount  int       `json:"product_count"`
	StartDate     time.Time `json:"start_date"`
	EndDate       time.Time `json:"end_date"`
	MissingRate   float64   `json:"missing_rate"`
	Seed          int64     `json:"seed"`
}

// DefaultSalesConfig returns sensible defaults for sales data generation
func DefaultSalesConfig() SalesGeneratorConfig {
	return SalesGeneratorConfig{
		Orders:        400,
		CustomerCount: 120,
		ProductCount:  24,
		StartDate:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:       time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
		MissingRate:   0.03,
		Seed:          42,
	}
}

// SalesHeaders is the column order of generated datasets
var SalesHeaders = []string{
	"order_id",
	"order_date",
	"customer_id",
	"product_name",
	"category",
	"payment_method",
	"sales_channel",
	"store_city",
	"quantity",
	"list_price",
	"discount_amount",
	"sales_amount",
	"cost_amount",
	"shipping_fee",
	"pages_viewed",
	"session_minutes",
	"customer_rating",
}

type product struct {
	name     string
	category string
	price    float64
	unitCost float64
}

var discountSteps = []float64{0.05, 0.1, 0.15, 0.2, 0.25}

var productStems = []struct {
	category string
	names    []string
	base     float64
}{
	{"Beverages", []string{"Espresso", "Latte", "Green Tea", "Cold Brew", "Smoothie", "Lemonade"}, 4.5},
	{"Bakery", []string{"Croissant", "Bagel", "Muffin", "Scone", "Brownie", "Cinnamon Roll"}, 3.2},
	{"Grocery", []string{"Olive Oil", "Coffee Beans", "Honey", "Granola", "Pasta", "Rice"}, 11.0},
	{"Homeware", []string{"Mug", "Tumbler", "French Press", "Grinder", "Kettle", "Tea Set"}, 24.0},
}

// SalesGenerator produces order-level retail data with two latent drivers:
// basket size (quantity, sales, cost, shipping) and engagement (pages, minutes)
type SalesGenerator struct {
	config   SalesGeneratorConfig
	rng      *rand.Rand
	products []product
}

// NewSalesGenerator creates a new sales data generator
func NewSalesGenerator(config SalesGeneratorConfig) *SalesGenerator {
	g := &SalesGenerator{
		config: config,
		rng:    rand.New(rand.NewSource(config.Seed)),
	}
	g.products = g.buildCatalog()
	return g
}

func (g *SalesGenerator) buildCatalog() []product {
	count := g.config.ProductCount
	if count <= 0 {
		count = 1
	}
	out := make([]product, 0, count)
	for i := 0; i < count; i++ {
		stem := productStems[i%len(productStems)]
		name := stem.names[(i/len(productStems))%len(stem.names)]
		if i >= len(productStems)*len(stem.names) {
			name = fmt.Sprintf("%s %d", name, i)
		}
		price := stem.base * (0.8 + 0.6*g.rng.Float64())
		unitCost := price * (0.55 + 0.1*g.rng.Float64())
		out = append(out, product{name: name, category: stem.category, price: round(price, 2), unitCost: round(unitCost, 2)})
	}
	return out
}

// Rows generates the row-major cells in SalesHeaders order
func (g *SalesGenerator) Rows() [][]interface{} {
	rows := make([][]interface{}, 0, g.config.Orders)
	days := int(g.config.EndDate.Sub(g.config.StartDate).Hours()/24) + 1
	if days < 1 {
		days = 1
	}

	for i := 0; i < g.config.Orders; i++ {
		basket := g.rng.NormFloat64()
		engagement := g.rng.NormFloat64()

		p := g.products[g.rng.Intn(len(g.products))]
		orderDate := g.config.StartDate.AddDate(0, 0, g.rng.Intn(days))

		quantity := math.Round(3 + 1.5*basket + 0.4*g.rng.NormFloat64())
		quantity = math.Max(1, math.Min(12, quantity))

		gross := quantity * p.price
		discountPct := 0.0
		if g.rng.Float64() < 0.35 {
			discountPct = discountSteps[g.rng.Intn(len(discountSteps))]
		}
		discount := round(gross*discountPct, 2)
		sales := round(gross-discount, 2)
		cost := round(quantity*p.unitCost, 2)
		shipping := round(math.Max(0, 3.99+0.75*quantity+0.3*g.rng.NormFloat64()), 2)

		pages := math.Max(1, math.Round(6+2.5*engagement+0.8*g.rng.NormFloat64()))
		minutes := round(math.Max(0.5, 12+4*engagement+1.2*g.rng.NormFloat64()), 1)
		rating := round(1+4*g.rng.Float64(), 1)

		row := []interface{}{
			fmt.Sprintf("ORD-%05d", i+1),
			orderDate.Format("2006-01-02"),
			fmt.Sprintf("CUST-%04d", g.rng.Intn(maxInt(g.config.CustomerCount, 1))+1),
			p.name,
			p.category,
			g.randomPaymentMethod(),
			g.randomSalesChannel(),
			g.randomCity(),
			quantity,
			p.price,
			g.maybeMissing(discount),
			sales,
			cost,
			shipping,
			pages,
			minutes,
			g.maybeMissing(rating),
		}
		rows = append(rows, row)
	}
	return rows
}

// Table generates a dataset as a table
func (g *SalesGenerator) Table(name string) (*table.Table, error) {
	return table.New(name, SalesHeaders, g.Rows())
}

// WriteCSV generates a dataset and writes it as CSV with a header row
func (g *SalesGenerator) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(SalesHeaders); err != nil {
		return err
	}
	for _, row := range g.Rows() {
		record := make([]string, len(row))
		for i, cell := range row {
			switch v := cell.(type) {
			case nil:
				record[i] = ""
			case float64:
				record[i] = strconv.FormatFloat(v, 'f', -1, 64)
			default:
				record[i] = fmt.Sprint(v)
			}
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteXLSX generates a dataset and writes it as a workbook with one sheet
// named "Sales". Numbers stay numeric cells; missing values stay empty.
func (g *SalesGenerator) WriteXLSX(w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := "Sales"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return err
	}
	for i, h := range SalesHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
	}
	for r, row := range g.Rows() {
		for c, v := range row {
			if v == nil {
				continue
			}
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return err
			}
		}
	}
	return f.Write(w)
}

func (g *SalesGenerator) maybeMissing(v float64) interface{} {
	if g.rng.Float64() < g.config.MissingRate {
		return nil
	}
	return v
}

func (g *SalesGenerator) weighted(options []string, weights []float64) string {
	r := g.rng.Float64()
	cumulative := 0.0
	for i, weight := range weights {
		cumulative += weight
		if r <= cumulative {
			return options[i]
		}
	}
	return options[0]
}

func (g *SalesGenerator) randomPaymentMethod() string {
	return g.weighted(
		[]string{"credit_card", "debit_card", "cash", "mobile_wallet", "bank_transfer"},
		[]float64{0.4, 0.2, 0.2, 0.15, 0.05},
	)
}

func (g *SalesGenerator) randomSalesChannel() string {
	return g.weighted(
		[]string{"in_store", "web", "app", "delivery_partner"},
		[]float64{0.45, 0.25, 0.2, 0.1},
	)
}

func (g *SalesGenerator) randomCity() string {
	return g.weighted(
		[]string{"Colombo", "Kandy", "Galle", "Jaffna", "Negombo"},
		[]float64{0.4, 0.2, 0.2, 0.1, 0.1},
	)
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
