package domain

// AllowedMakes is the ordered set of manufacturer identifiers the catalog is
// built from. Listings are concatenated in this order.
var AllowedMakes = []string{
	"toyota",
	"audi",
	"bmw",
	"mercedes",
	"ford",
	"tesla",
	"volkswagen",
	"honda",
	"hyundai",
}

// MaxModelsPerMake caps how many provider models each make contributes.
const MaxModelsPerMake = 9

// BodyTypes are the body-style labels a listing can be given.
var BodyTypes = []string{"Sedan", "SUV", "Coupe", "Hybrid", "Wagon", "Convertible"}

// IsAllowedMake reports whether word is exactly one of AllowedMakes.
func IsAllowedMake(word string) bool {
	for _, m := range AllowedMakes {
		if m == word {
			return true
		}
	}
	return false
}

// Synthetic attribute bounds, inclusive.
const (
	MinListingPrice = 10000
	MaxListingPrice = 100000
	MinMileage      = 0
	MaxMileage      = 12000
)
