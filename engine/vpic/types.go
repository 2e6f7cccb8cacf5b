// Package vpic is a client for the NHTSA vPIC vehicle API, used to look up
// the model names a manufacturer sells.
package vpic

import (
	"time"

	"github.com/WessleyAI/findyourcar/engine/domain"
)

// Model is one entry of a GetModelsForMake response.
type Model struct {
	MakeID    int    `json:"Make_ID"`
	MakeName  string `json:"Make_Name"`
	ModelID   int    `json:"Model_ID"`
	ModelName string `json:"Model_Name"`
}

// modelsResponse is the vPIC JSON envelope.
type modelsResponse struct {
	Count          int     `json:"Count"`
	Message        string  `json:"Message"`
	SearchCriteria string  `json:"SearchCriteria"`
	Results        []Model `json:"Results"`
}

// Config controls client behavior.
type Config struct {
	BaseURL string
	// Timeout bounds each HTTP request.
	Timeout time.Duration
	// RatePerSecond and Burst feed the request rate limiter.
	RatePerSecond float64
	Burst         int
	// RetryAttempts is the total number of tries per make; 1 disables retry.
	RetryAttempts int
	UserAgent     string
	// BreakerThreshold consecutive failures open the circuit for
	// BreakerCooldown. Once it has elapsed, up to HalfOpenMax calls may probe
	// the provider; it should cover every make of one load.
	BreakerThreshold int
	BreakerCooldown  time.Duration
	HalfOpenMax      int
}

// DefaultBaseURL is the public vPIC vehicles endpoint.
const DefaultBaseURL = "https://vpic.nhtsa.dot.gov/api/vehicles"

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		BaseURL:       DefaultBaseURL,
		Timeout:       15 * time.Second,
		RatePerSecond: 5,
		Burst:         3,
		RetryAttempts: 1,
		UserAgent:     "findyourcar/1.0 (catalog browser)",

		BreakerThreshold: 3,
		BreakerCooldown:  30 * time.Second,
		HalfOpenMax:      len(domain.AllowedMakes),
	}
}
