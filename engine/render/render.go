// Package render projects listings into display cards and builds the labels
// the presenters show around them.
package render

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/WessleyAI/findyourcar/engine/domain"
	"github.com/WessleyAI/findyourcar/pkg/fn"
)

// Card is the display record for one listing.
type Card struct {
	Title         string `json:"title"`
	Alt           string `json:"alt"`
	BodyType      string `json:"body_type"`
	Transmission  string `json:"transmission"`
	Mileage       string `json:"mileage"`
	Price         string `json:"price"`
	Image         string `json:"image"`
	FallbackImage string `json:"fallback_image"`
}

var printer = message.NewPrinter(language.BritishEnglish)

// Pounds formats n as "£12,345".
func Pounds(n int) string {
	return printer.Sprintf("£%d", n)
}

// Kilometres formats n as "12,345 km".
func Kilometres(n int) string {
	return printer.Sprintf("%d km", n)
}

// NewCard builds the card for l.
func NewCard(l domain.Listing) Card {
	return Card{
		Title:         l.Title(),
		Alt:           l.Title(),
		BodyType:      l.BodyType,
		Transmission:  domain.Transmission,
		Mileage:       Kilometres(l.Mileage),
		Price:         Pounds(l.Price),
		Image:         l.ImagePath,
		FallbackImage: domain.FallbackImage,
	}
}

// Cards builds one card per listing, in order.
func Cards(ls []domain.Listing) []Card {
	return fn.Map(ls, NewCard)
}

// PriceLabel renders the slider caption, e.g. "£0 to £100,000".
func PriceLabel(pr domain.PriceRange) string {
	return Pounds(pr.Min) + " to " + Pounds(pr.Max)
}

// DefaultSearchTitle is shown when there is no query.
const DefaultSearchTitle = "Search results:"

// SearchTitle echoes the query as typed, or DefaultSearchTitle when it is blank.
func SearchTitle(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return DefaultSearchTitle
	}
	return `Search results for "` + raw + `"`
}
