// Package domain defines the listing model, the allowed makes, price bounds and
// validation shared by the catalog loader, the query engine and the presenters.
package domain

import (
	"fmt"
	"regexp"
)

// Transmission is shown on every card. The provider does not report it.
const Transmission = "Automatic"

// FallbackImage replaces a card image that fails to load.
const FallbackImage = "./assets/car-sample.jpg"

// Listing is one synthetic car-for-sale record: a real make/model from the
// provider combined with fabricated price, mileage and body type.
type Listing struct {
	Make      string `json:"make"`
	Model     string `json:"model"`
	Price     int    `json:"price"`
	Mileage   int    `json:"mileage"`
	BodyType  string `json:"body_type"`
	ImagePath string `json:"image_path"`
}

// Title returns "Make Model" as shown on a card.
func (l Listing) Title() string {
	return l.Make + " " + l.Model
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// ImagePath derives the asset path for a make/model pair. Every whitespace run
// in the model name becomes a single hyphen.
func ImagePath(makeName, model string) string {
	return fmt.Sprintf("./assets/cars/%s/%s.jpg", makeName, whitespaceRun.ReplaceAllString(model, "-"))
}
