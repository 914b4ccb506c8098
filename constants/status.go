package constants

// RatingStatus is the outcome of rating a single line item.
type RatingStatus string

// Stable values (exported in API responses and logs).
const (
	RatingOvercharged          RatingStatus = "OVERCHARGED"           // paid tariff above the rate card
	RatingWithinTariff         RatingStatus = "WITHIN_TARIFF"         // paid tariff at or below the rate card
	RatingTariffMissing        RatingStatus = "TARIFF_MISSING"        // no rule covers scope/service/weight
	RatingDimensionsUnresolved RatingStatus = "DIMENSIONS_UNRESOLVED" // search or model failed
)

// ReconcileOutcome is the verdict of comparing the PDF and CSV totals.
type ReconcileOutcome string

const (
	ReconcileMatch         ReconcileOutcome = "MATCH"
	ReconcileMismatch      ReconcileOutcome = "MISMATCH"
	ReconcileIndeterminate ReconcileOutcome = "INDETERMINATE" // one or both totals absent
)
