package entity

// DimensionEstimate is what the resolver could learn about a product.
// Centimetres and kilograms; zero means "not determined".
type DimensionEstimate struct {
	Height    float64 `json:"height"`
	Width     float64 `json:"width"`
	Length    float64 `json:"length"`
	Weight    float64 `json:"weight"`
	Source    string  `json:"source"`
	Reference string  `json:"reference,omitempty"`
}
