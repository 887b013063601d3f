package renderer

import (
	"embed"
	"fmt"
	"strings"
	"text/template"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"

	"github.com/YounesEssl/zlegacy-sub000/internal/usecase/review"
)

//go:embed templates/*.md
var templates embed.FS

var funcs = template.FuncMap{
	"usd":    USD,
	"pct":    Percent,
	"amount": Amount,
	"cell":   cell,
}

var reviewTemplate = template.Must(
	template.New("review.md").Funcs(funcs).ParseFS(templates, "templates/review.md"),
)

// RenderReview renders the review summary to a markdown string.
func RenderReview(s review.Summary) string {
	var b strings.Builder
	if err := reviewTemplate.Execute(&b, s); err != nil {
		return fmt.Sprintf("error executing template %q: %v", "review.md", err)
	}
	return b.String()
}

// USD formats a dollar value rounded to the cent, e.g. $1,234.50
func USD(d decimal.Decimal) string {
	cents := d.Shift(2).Round(0).IntPart()
	return money.New(cents, money.USD).Display()
}

// Percent formats a percentage with one decimal place
func Percent(d decimal.Decimal) string {
	return d.StringFixed(1) + "%"
}

// Amount formats a native asset quantity without trailing zeros
func Amount(d decimal.Decimal) string {
	return d.Round(8).String()
}

// cell keeps user text from breaking a markdown table row
func cell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}
