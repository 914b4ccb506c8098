package llm

import "context"

// Generator is a text-in/text-out model. The output is expected, but not
// guaranteed, to carry a JSON object, possibly wrapped in markdown fences.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Name() string
}

// DimensionFields is the normalized shape we want from the model.
type DimensionFields struct {
	Height float64 `json:"height"` // cm
	Width  float64 `json:"width"`  // cm
	Length float64 `json:"length"` // cm
	Weight float64 `json:"weight"` // kg
	Source string  `json:"source,omitempty"`
}
