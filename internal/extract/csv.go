package extract

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/freight-audit/internal/common"
	"github.com/joseph-ayodele/freight-audit/internal/utils"
)

const (
	TariffColumn = "tarifa"
	PeriodColumn = "periodo"
)

// Report is a parsed cost report: lower-cased rows with the derived total and
// reporting period.
type Report struct {
	Header []string
	Rows   []map[string]string
	Total  decimal.Decimal
	Period int
}

// ReadReport opens path and parses it with ParseReport.
func ReadReport(path string, logger *slog.Logger) (*Report, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", common.ErrNotFound, path)
		}
		return nil, common.ParseFailuref("open report: %v", err)
	}
	defer f.Close()
	return ParseReport(f, logger)
}

// ParseReport reads a header-first delimited report. Unnamed columns and
// values beyond the header are dropped with a warning. The report must carry
// exactly one distinct period.
func ParseReport(r io.Reader, logger *slog.Logger) (*Report, error) {
	if logger == nil {
		logger = slog.Default()
	}

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, common.ParseFailuref("report is empty")
		}
		return nil, common.ParseFailuref("read header: %v", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	keys := make([]string, len(header))
	for i, h := range header {
		keys[i] = strings.ToLower(strings.TrimSpace(h))
	}
	if !slices.Contains(keys, TariffColumn) || !slices.Contains(keys, PeriodColumn) {
		return nil, common.ParseFailuref("report must have %q and %q columns, got %v", TariffColumn, PeriodColumn, keys)
	}

	rep := &Report{Header: keys}
	periods := map[string]struct{}{}
	for rowNum := 1; ; rowNum++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, common.ParseFailuref("row %d: %v", rowNum, err)
		}

		row := make(map[string]string, len(keys))
		for i, v := range rec {
			if i >= len(keys) || keys[i] == "" {
				logger.Warn("extract.csv.unnamed_column_dropped", "row", rowNum, "index", i)
				continue
			}
			row[keys[i]] = v
		}

		amount, err := utils.ParseMoney(row[TariffColumn])
		if err != nil {
			return nil, common.ParseFailuref("row %d: %s %q: %v", rowNum, TariffColumn, row[TariffColumn], err)
		}
		rep.Total = rep.Total.Add(amount)

		if p := strings.TrimSpace(row[PeriodColumn]); p != "" {
			periods[p] = struct{}{}
		}
		rep.Rows = append(rep.Rows, row)
	}

	if len(rep.Rows) == 0 {
		return nil, common.ParseFailuref("report has no rows")
	}
	switch len(periods) {
	case 0:
		return nil, common.ParseFailuref("report has no %s value", PeriodColumn)
	case 1:
	default:
		found := make([]string, 0, len(periods))
		for p := range periods {
			found = append(found, p)
		}
		sort.Strings(found)
		return nil, common.ParseFailuref("report mixes %d periods %v", len(found), found)
	}
	for p := range periods {
		if rep.Period, err = strconv.Atoi(p); err != nil {
			return nil, common.ParseFailuref("%s %q is not an integer", PeriodColumn, p)
		}
	}

	logger.Info("extract.csv.ok", "rows", len(rep.Rows), "period", rep.Period, "total", rep.Total.StringFixed(2))
	return rep, nil
}
