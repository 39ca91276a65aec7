package tools

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/gharkhoji/gharkhoji/internal/listings"
	"github.com/gharkhoji/gharkhoji/internal/search"
)

// Render formats a tool result as observation text for the reasoning
// trace. Result data stays schema-less on the wire and in storage; this
// is the single boundary where payloads are decoded into their per-tool
// shapes, keyed by tool name. Unknown or undecodable payloads render as
// raw JSON.
func Render(name string, res Result) string {
	if !res.Success {
		return fmt.Sprintf("%s failed: %s", name, res.Error)
	}

	var out string
	switch name {
	case NameSearch:
		out = renderSearch(res.Data)
	case NameMaps:
		out = renderMaps(res.Data)
	case NameCalculator:
		out = renderCalculator(res.Data)
	case NameMarketAnalysis:
		out = renderMarket(res.Data)
	case NamePropertyDatabase:
		out = renderProperties(res.Data)
	case NameClarify:
		out = renderClarify(res.Data)
	}
	if out == "" {
		return string(res.Data)
	}
	return out
}

func renderSearch(data json.RawMessage) string {
	var p searchPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return ""
	}
	return search.FormatResponse(&search.Response{
		Query:     p.Query,
		Organic:   p.Organic,
		News:      p.News,
		Related:   p.Related,
		AnswerBox: p.AnswerBox,
	})
}

func renderMaps(data json.RawMessage) string {
	var p mapsPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Area lookup for %q", p.Query)
	if p.Source == "fallback" {
		b.WriteString(" (approximate data)")
	}
	b.WriteString(":\n")
	if p.AreaInfo != "" {
		b.WriteString(p.AreaInfo + "\n")
	}
	for i, pl := range p.Places {
		fmt.Fprintf(&b, "%d. %s", i+1, pl.Name)
		if pl.Address != "" {
			fmt.Fprintf(&b, " - %s", pl.Address)
		}
		if pl.Rating > 0 {
			fmt.Fprintf(&b, " (rating %.1f)", pl.Rating)
		}
		b.WriteByte('\n')
	}
	if p.Commute != "" {
		b.WriteString(p.Commute)
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderCalculator(data json.RawMessage) string {
	// One decode shape covers all three calculator payloads; pointers
	// tell the modes apart.
	var p struct {
		Expression     string   `json:"expression"`
		Result         *float64 `json:"result"`
		ROIPercent     *float64 `json:"roi_percent"`
		YieldPercent   *float64 `json:"yield_percent"`
		Interpretation string   `json:"interpretation"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return ""
	}

	switch {
	case p.ROIPercent != nil:
		return fmt.Sprintf("ROI: %.2f%%. %s", *p.ROIPercent, p.Interpretation)
	case p.YieldPercent != nil:
		return fmt.Sprintf("Rental yield: %.2f%%. %s", *p.YieldPercent, p.Interpretation)
	case p.Result != nil:
		return fmt.Sprintf("%s = %s", p.Expression, trimFloat(*p.Result))
	}
	return ""
}

func renderMarket(data json.RawMessage) string {
	var p marketPayload
	if err := json.Unmarshal(data, &p); err != nil || p.Report == nil {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Market analysis: %s\n", p.Topic)
	if p.Report.Overview != "" {
		b.WriteString(p.Report.Overview + "\n")
	}
	writeList(&b, "Trends", p.Report.Trends)
	writeList(&b, "Investment insights", p.Report.InvestmentInsights)
	writeList(&b, "Risks", p.Report.Risks)
	writeList(&b, "Opportunities", p.Report.Opportunities)
	if p.Report.PriceProjections != "" {
		fmt.Fprintf(&b, "Price projections: %s\n", p.Report.PriceProjections)
	}
	writeList(&b, "Recommendations", p.Report.Recommendations)
	return strings.TrimRight(b.String(), "\n")
}

func renderProperties(data json.RawMessage) string {
	var p propertiesPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return ""
	}

	var b strings.Builder
	if len(p.Matches) == 0 {
		b.WriteString("No listings matched.")
	} else {
		fmt.Fprintf(&b, "Found %d listings:\n", len(p.Matches))
		for i, l := range p.Matches {
			fmt.Fprintf(&b, "%d. %s - %s - NPR %s", i+1, l.Title, l.Location, formatPrice(l.Price))
			if l.ListingType == listings.ForRent {
				b.WriteString("/month")
			}
			if l.Bedrooms > 0 {
				fmt.Fprintf(&b, " - %d bed", l.Bedrooms)
			}
			b.WriteByte('\n')
		}
	}
	if p.Stats != nil {
		fmt.Fprintf(&b, "\nCorpus: %d listings (%d for rent, %d for sale).",
			p.Stats.Total, p.Stats.ForRent, p.Stats.ForSale)
	}
	return b.String()
}

func renderClarify(data json.RawMessage) string {
	var p clarifyPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return ""
	}
	if len(p.Categories) == 0 {
		return p.Question
	}
	return fmt.Sprintf("%s\nHelpful details: %s.", p.Question, strings.Join(p.Categories, "; "))
}

func writeList(b *strings.Builder, header string, items []string) {
	if len(items) == 0 {
		return
	}
	b.WriteString(header + ":\n")
	for _, it := range items {
		b.WriteString("- " + it + "\n")
	}
}

// formatPrice renders an NPR amount with comma grouping.
func formatPrice(n int64) string {
	s := strconv.FormatInt(n, 10)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

func trimFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
