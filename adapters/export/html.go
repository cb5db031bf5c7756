package export

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"

	domainInsight "kpiscout/domain/insight"
)

// RenderHTML renders the markdown report as a complete HTML page
func RenderHTML(results *domainInsight.Results) []byte {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.Tables)
	renderer := html.NewRenderer(html.RendererOptions{
		Title: "kpiscout: " + results.DatasetName,
		Flags: html.CommonFlags | html.CompletePage | html.HrefTargetBlank,
	})
	return markdown.ToHTML([]byte(Markdown(results)), p, renderer)
}

// Markdown builds the human-readable run report
func Markdown(results *domainInsight.Results) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", escape(results.DatasetName))
	fmt.Fprintf(&b, "Run `%s`, %s. %d rows, %d columns, analyzed in %d ms.\n\n",
		results.RunID, results.CreatedAt, results.Profile.Rows, results.Profile.Cols, results.RuntimeMs)

	if len(results.Insights.Tiles) > 0 {
		b.WriteString("## Headline KPIs\n\n| KPI | Value |\n|---|---|\n")
		for _, tile := range results.Insights.Tiles {
			fmt.Fprintf(&b, "| %s | %s |\n", escape(tile.Label), escape(tile.Display))
		}
		b.WriteString("\n")
	}

	b.WriteString("## Insights\n\n")
	if len(results.Insights.Cards) == 0 {
		reason := results.Insights.Reason
		if reason == "" {
			reason = "no cards were produced"
		}
		fmt.Fprintf(&b, "_%s_\n\n", escape(reason))
	}
	for _, card := range results.Insights.Cards {
		writeCardMarkdown(&b, card)
	}

	writeFactorsMarkdown(&b, results)

	if len(results.Warnings) > 0 {
		b.WriteString("## Warnings\n\n")
		for _, w := range results.Warnings {
			fmt.Fprintf(&b, "- %s\n", escape(w))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func writeCardMarkdown(b *strings.Builder, card domainInsight.Card) {
	fmt.Fprintf(b, "### %s\n\n%s\n\n", escape(card.Title), escape(card.Why))
	if len(card.Columns) == 0 || len(card.Rows) == 0 {
		return
	}
	header := make([]string, len(card.Columns))
	rule := make([]string, len(card.Columns))
	for i, c := range card.Columns {
		header[i] = escape(c)
		rule[i] = "---"
	}
	fmt.Fprintf(b, "| %s |\n|%s|\n", strings.Join(header, " | "), strings.Join(rule, "|"))
	for _, row := range card.Rows {
		cells := make([]string, len(card.Columns))
		for i, c := range card.Columns {
			cells[i] = escape(cellText(row[c]))
		}
		fmt.Fprintf(b, "| %s |\n", strings.Join(cells, " | "))
	}
	b.WriteString("\n")
}

func writeFactorsMarkdown(b *strings.Builder, results *domainInsight.Results) {
	b.WriteString("## Latent drivers\n\n")
	if !results.Factors.OK {
		fmt.Fprintf(b, "_Factor analysis skipped: %s_\n\n", escape(results.Factors.Reason))
		return
	}
	keys := make([]string, 0, len(results.SmartKPIs))
	for k := range results.SmartKPIs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	b.WriteString("| Smart KPI | Value | Spread | Columns |\n|---|---|---|---|\n")
	for _, k := range keys {
		kpi := results.SmartKPIs[k]
		fmt.Fprintf(b, "| %s | %s | %s | %s |\n", k, cellText(kpi.Value), cellText(kpi.Spread),
			escape(strings.Join(kpi.Formula.Columns, ", ")))
	}
	b.WriteString("\n")
}

func cellText(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return ""
		}
		return humanize.Commaf(math.Round(x*100) / 100)
	case int:
		return humanize.Comma(int64(x))
	case int64:
		return humanize.Comma(x)
	}
	return fmt.Sprint(v)
}

var escaper = strings.NewReplacer("|", `\|`, "\n", " ", "<", "&lt;", ">", "&gt;")

func escape(s string) string {
	return escaper.Replace(s)
}
