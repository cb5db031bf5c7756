package insight

import (
	"fmt"

	"github.com/dustin/go-humanize"

	domainInsight "kpiscout/domain/insight"
	"kpiscout/domain/table"
)

// Tiles computes the headline KPI strip. A tile whose inputs are unavailable
// is omitted rather than shown as zero.
func (s *Selector) Tiles(t *table.Table, roles domainInsight.RoleMap, sel domainInsight.Selection) []domainInsight.KPITile {
	tiles := []domainInsight.KPITile{}

	column := func(role domainInsight.RoleKey) (*table.Column, bool) {
		name, ok := roles.Column(role)
		if !ok {
			return nil, false
		}
		c, ok := t.Column(name)
		if !ok || c.Type() != table.ValueTypeNumeric {
			return nil, false
		}
		return c, true
	}

	revenue, hasRevenue := column(domainInsight.RoleRevenue)
	if !hasRevenue {
		if c, ok := t.Column(sel.Measure); ok && sel.Measure != "" && c.Type() == table.ValueTypeNumeric {
			revenue, hasRevenue = c, true
		}
	}

	var revenueTotal float64
	if hasRevenue {
		revenueTotal = sumOf(revenue)
		tiles = append(tiles, valueTile("total_revenue", "Total revenue", revenueTotal, domainInsight.FormatCurrency, revenue.Name))
	}

	orders := t.RowCount()
	orderSource := "row count"
	if name, ok := roles.Column(domainInsight.RoleTransactionID); ok {
		if c, ok := t.Column(name); ok {
			orders = c.DistinctCount()
			orderSource = name
		}
	}
	tiles = append(tiles, valueTile("order_count", "Orders", float64(orders), domainInsight.FormatCount, orderSource))

	if hasRevenue && orders > 0 {
		tiles = append(tiles, valueTile("avg_order_value", "Average order value", revenueTotal/float64(orders), domainInsight.FormatCurrency, revenue.Name))
	}

	if qty, ok := column(domainInsight.RoleQuantity); ok {
		tiles = append(tiles, valueTile("items_sold", "Items sold", sumOf(qty), domainInsight.FormatCount, qty.Name))
	}

	if cost, ok := column(domainInsight.RoleCostAmount); ok && hasRevenue && revenueTotal != 0 {
		margin := 1 - sumOf(cost)/revenueTotal
		tiles = append(tiles, valueTile("gross_margin", "Gross margin", margin, domainInsight.FormatPercent, cost.Name))
	}

	if discount, ok := column(domainInsight.RoleDiscountAmount); ok && hasRevenue && revenueTotal != 0 {
		rate := sumOf(discount) / revenueTotal
		tiles = append(tiles, valueTile("discount_rate", "Discount rate", rate, domainInsight.FormatPercent, discount.Name))
	}

	if c, ok := t.Column(sel.Time); ok && sel.Time != "" {
		if lo, hi, found := timeBounds(c); found {
			tiles = append(tiles, domainInsight.KPITile{
				ID:      "date_range",
				Label:   "Date range",
				Display: fmt.Sprintf("%s to %s", lo.Format("2006-01-02"), hi.Format("2006-01-02")),
				Format:  domainInsight.FormatDateRange,
				Source:  c.Name,
			})
		}
	}
	return tiles
}

func sumOf(c *table.Column) float64 {
	total := 0.0
	for _, v := range c.NonMissingFloats() {
		total += v
	}
	return total
}

func valueTile(id, label string, v float64, format, source string) domainInsight.KPITile {
	value := v
	return domainInsight.KPITile{
		ID:      id,
		Label:   label,
		Value:   &value,
		Display: display(v, format),
		Format:  format,
		Source:  source,
	}
}

func display(v float64, format string) string {
	switch format {
	case domainInsight.FormatCurrency:
		return humanize.FormatFloat("#,###.##", v)
	case domainInsight.FormatCount:
		return humanize.Comma(int64(v))
	case domainInsight.FormatPercent:
		return fmt.Sprintf("%.1f%%", v*100)
	}
	return humanize.Commaf(v)
}
