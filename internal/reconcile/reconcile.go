// Package reconcile compares an invoice total against its cost report.
package reconcile

import (
	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/freight-audit/constants"
	"github.com/joseph-ayodele/freight-audit/internal/entity"
)

// Reconcile compares two independently extracted totals with exact decimal
// equality. An absent side yields INDETERMINATE, never MISMATCH.
func Reconcile(pdfTotal, csvTotal *decimal.Decimal) entity.ReconciliationResult {
	res := entity.ReconciliationResult{PDFTotal: pdfTotal, CSVTotal: csvTotal}
	switch {
	case pdfTotal == nil || csvTotal == nil:
		res.Outcome = constants.ReconcileIndeterminate
	case pdfTotal.Equal(*csvTotal):
		res.Outcome = constants.ReconcileMatch
	default:
		res.Outcome = constants.ReconcileMismatch
	}
	return res
}
