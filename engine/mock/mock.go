// Package mock synthesizes the listing attributes the provider does not
// supply: price, mileage and body type.
package mock

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/WessleyAI/findyourcar/engine/domain"
)

// Attributes is one set of synthesized listing values.
type Attributes struct {
	Price    int
	Mileage  int
	BodyType string
}

// Generator draws uniformly distributed attributes from a private random
// source. It is safe for concurrent use.
type Generator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// New creates a Generator. A zero seed seeds from the clock.
func New(seed uint64) *Generator {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &Generator{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Price returns an integer in [MinListingPrice, MaxListingPrice].
func (g *Generator) Price() int {
	return g.between(domain.MinListingPrice, domain.MaxListingPrice)
}

// Mileage returns an integer in [MinMileage, MaxMileage].
func (g *Generator) Mileage() int {
	return g.between(domain.MinMileage, domain.MaxMileage)
}

// BodyType returns one of domain.BodyTypes.
func (g *Generator) BodyType() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return domain.BodyTypes[g.rng.IntN(len(domain.BodyTypes))]
}

// Attributes draws price, mileage and body type together.
func (g *Generator) Attributes() Attributes {
	return Attributes{
		Price:    g.Price(),
		Mileage:  g.Mileage(),
		BodyType: g.BodyType(),
	}
}

// between returns an integer in [lo, hi] inclusive.
func (g *Generator) between(lo, hi int) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return lo + g.rng.IntN(hi-lo+1)
}
