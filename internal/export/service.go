package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/freight-audit/constants"
	"github.com/joseph-ayodele/freight-audit/internal/common"
	"github.com/joseph-ayodele/freight-audit/internal/entity"
	"github.com/joseph-ayodele/freight-audit/internal/repository"
)

// Columns of every scales export, in order.
var Columns = []string{
	"invoice_id", "nombre_producto", "track_code",
	"alto", "ancho", "largo",
	"peso_aforado", "peso_fisico", "peso_facturable",
	"tarifa_proveedor", "tarifa_real", "diferencia",
}

const sheet = "Scales"

// Service renders the persisted scales of a period as CSV or XLSX.
type Service struct {
	scales repository.ScaleStore
	logger *slog.Logger
}

func NewService(scales repository.ScaleStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{scales: scales, logger: logger}
}

// Export dispatches on format ("csv" or "xlsx") and returns the file bytes and name.
func (s *Service) Export(ctx context.Context, period int, format string) ([]byte, string, error) {
	switch constants.NormalizeExt(format) {
	case "", "csv":
		return s.ExportCSV(ctx, period)
	case "xlsx":
		return s.ExportXLSX(ctx, period)
	default:
		return nil, "", common.NewAppError("INVALID_FORMAT", "format must be csv or xlsx", common.ErrInvalidInput)
	}
}

func (s *Service) ExportCSV(ctx context.Context, period int) ([]byte, string, error) {
	start := time.Now()
	rows, err := s.scales.ListScaleReport(ctx, period)
	if err != nil {
		return nil, "", fmt.Errorf("query scales: %w", err)
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(Columns); err != nil {
		return nil, "", err
	}
	for _, r := range rows {
		if err := w.Write(reportRecord(r)); err != nil {
			return nil, "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, "", fmt.Errorf("csv write: %w", err)
	}

	s.logger.Info("export.csv.ok", "period", period, "rows", len(rows), "elapsed_ms", time.Since(start).Milliseconds())
	return buf.Bytes(), constants.ExportFileName(period, "csv"), nil
}

// ExportXLSX returns an XLSX workbook (as bytes) for the given period.
func (s *Service) ExportXLSX(ctx context.Context, period int) ([]byte, string, error) {
	start := time.Now()
	rows, err := s.scales.ListScaleReport(ctx, period)
	if err != nil {
		return nil, "", fmt.Errorf("query scales: %w", err)
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, "", err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)
	_ = f.DeleteSheet("Sheet1")

	for i, h := range Columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	for n, r := range rows {
		row := n + 2
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheet, cell, v)
		}
		write(1, r.InvoiceID)
		write(2, r.ProductName)
		write(3, r.TrackCode)
		for i, d := range []decimal.Decimal{
			r.Height, r.Width, r.Length,
			r.VolumetricWeight, r.PhysicalWeight, r.BillableWeight,
			r.PaidTariff, r.RealTariff, r.Variance(),
		} {
			write(4+i, d.Round(2).InexactFloat64())
		}
	}

	_ = f.SetColWidth(sheet, "A", "A", 12) // id
	_ = f.SetColWidth(sheet, "B", "B", 40) // product
	_ = f.SetColWidth(sheet, "C", "C", 18) // track code
	_ = f.SetColWidth(sheet, "D", "L", 14) // measures and amounts

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, "", fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok", "period", period, "rows", len(rows), "elapsed_ms", time.Since(start).Milliseconds())
	return buf.Bytes(), constants.ExportFileName(period, "xlsx"), nil
}

func reportRecord(r entity.ScaleReportRow) []string {
	return []string{
		strconv.FormatInt(r.InvoiceID, 10),
		r.ProductName,
		r.TrackCode,
		r.Height.StringFixed(2),
		r.Width.StringFixed(2),
		r.Length.StringFixed(2),
		r.VolumetricWeight.StringFixed(2),
		r.PhysicalWeight.StringFixed(2),
		r.BillableWeight.StringFixed(2),
		r.PaidTariff.StringFixed(2),
		r.RealTariff.StringFixed(2),
		r.Variance().StringFixed(2),
	}
}

// WriteRatedCSV writes a result set that has not been persisted, with a
// trailing status column. Values a rating could not determine are left empty.
func WriteRatedCSV(w io.Writer, rated []entity.RatedItem) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(append(append([]string(nil), Columns...), "status")); err != nil {
		return err
	}
	for _, r := range rated {
		rec := []string{
			strconv.FormatInt(r.Item.ID, 10),
			r.Item.Name,
			r.Item.TrackCode,
			"", "", "", "", "", "",
			r.Item.Tariff.StringFixed(2),
			optional(r.RealTariff),
			optional(r.Variance),
			string(r.Status),
		}
		if d := r.Dimensions; d != nil {
			rec[3] = decimal.NewFromFloat(d.Height).StringFixed(2)
			rec[4] = decimal.NewFromFloat(d.Width).StringFixed(2)
			rec[5] = decimal.NewFromFloat(d.Length).StringFixed(2)
			rec[6] = r.VolumetricWeight.StringFixed(2)
			rec[7] = decimal.NewFromFloat(d.Weight).StringFixed(2)
			rec[8] = r.BillableWeight.StringFixed(2)
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func optional(d *decimal.Decimal) string {
	if d == nil {
		return ""
	}
	return d.StringFixed(2)
}

// ContentType maps an export file name to its MIME type.
func ContentType(name string) string {
	if strings.HasSuffix(name, ".xlsx") {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}
