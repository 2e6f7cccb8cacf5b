package render

import (
	_ "embed"
	"html/template"
	"io"
)

//go:embed page.html.tmpl
var pageSource string

var pageTemplate = template.Must(template.New("page").Parse(pageSource))

// PageData is everything the HTML page shows.
type PageData struct {
	Query      string
	Title      string
	PriceLabel string
	MinPrice   int
	MaxPrice   int
	PriceFloor int
	PriceCeil  int
	Cards      []Card
	Loading    bool
	Empty      bool
	Banner     string
}

// WritePage renders the catalog page. Values are HTML-escaped.
func WritePage(w io.Writer, d PageData) error {
	return pageTemplate.Execute(w, d)
}
