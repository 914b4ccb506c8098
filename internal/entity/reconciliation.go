package entity

import (
	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/freight-audit/constants"
)

// ReconciliationResult is computed per request and never persisted.
type ReconciliationResult struct {
	PDFTotal *decimal.Decimal          `json:"pdf_total"`
	CSVTotal *decimal.Decimal          `json:"csv_total"`
	Outcome  constants.ReconcileOutcome `json:"outcome"`
}

// Equal is true only for a performed comparison with equal totals.
func (r ReconciliationResult) Equal() bool {
	return r.Outcome == constants.ReconcileMatch
}
