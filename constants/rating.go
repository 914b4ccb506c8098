package constants

const (
	// TotalMarker is the case-sensitive token that identifies the invoice total line.
	TotalMarker = "TOTAL"

	// DefaultVolumetricDivisor converts cm3 to volumetric kg.
	DefaultVolumetricDivisor = 4000

	// DefaultSearchDepth is the Tavily depth used for dimension lookups.
	DefaultSearchDepth = "advanced"

	// UnknownReference is reported when the model cannot cite a page.
	UnknownReference = "desconocida"
)
