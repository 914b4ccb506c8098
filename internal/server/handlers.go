package server

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/joseph-ayodele/freight-audit/constants"
	"github.com/joseph-ayodele/freight-audit/internal/common"
	"github.com/joseph-ayodele/freight-audit/internal/entity"
	"github.com/joseph-ayodele/freight-audit/internal/export"
	"github.com/joseph-ayodele/freight-audit/internal/pipeline"
	"github.com/joseph-ayodele/freight-audit/internal/rating"
	"github.com/joseph-ayodele/freight-audit/internal/tariff"
)

type intakeResponse struct {
	*pipeline.IntakeResult
	Error string `json:"error,omitempty"`
}

func (a *API) handleIntake(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, a.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(a.cfg.MaxUploadBytes); err != nil {
		a.writeError(w, r, common.NewAppError("INVALID_UPLOAD", err.Error(), common.ErrInvalidInput))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	pdfName, pdfData, err := readPart(r, "pdf", constants.DocumentInvoicePDF)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	csvName, csvData, err := readPart(r, "csv", constants.DocumentReportCSV)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	res, err := a.proc.Intake(r.Context(), pipeline.Upload{PDFName: pdfName, PDF: pdfData, CSVName: csvName, CSV: csvData})
	if err != nil {
		if res == nil {
			a.writeError(w, r, err)
			return
		}
		// reconciliation ran; return its figures with the failure
		writeJSON(w, common.HTTPStatus(err), intakeResponse{IntakeResult: res, Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusCreated, intakeResponse{IntakeResult: res})
}

func readPart(r *http.Request, field string, kind constants.DocumentKind) (string, []byte, error) {
	f, hdr, err := r.FormFile(field)
	if err != nil {
		return "", nil, common.NewAppError("INVALID_UPLOAD", fmt.Sprintf("missing %q file", field), common.ErrInvalidInput)
	}
	defer func(f multipart.File) { _ = f.Close() }(f)

	if ext := constants.NormalizeExt(filepath.Ext(hdr.Filename)); ext != constants.AllowedExtensions[kind] {
		return "", nil, common.NewAppError("INVALID_UPLOAD",
			fmt.Sprintf("%q must be a .%s file", field, constants.AllowedExtensions[kind]), common.ErrInvalidInput)
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return "", nil, common.NewAppError("INVALID_UPLOAD", err.Error(), common.ErrInvalidInput)
	}
	return filepath.Base(hdr.Filename), data, nil
}

type ratingResponse struct {
	Period  int                `json:"period"`
	Summary rating.Summary     `json:"summary"`
	Items   []entity.RatedItem `json:"items"`
	Saved   *bool              `json:"saved,omitempty"`
}

func (a *API) handleRate(w http.ResponseWriter, r *http.Request) {
	period, err := periodParam(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	rated, err := a.proc.RatePeriod(r.Context(), period)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	resp := ratingResponse{Period: period, Summary: rating.Summarize(rated), Items: rated}
	if persist, _ := strconv.ParseBool(r.URL.Query().Get("persist")); persist {
		saved := a.proc.SaveResults(r.Context(), rated)
		resp.Saved = &saved
		if !saved {
			writeJSON(w, http.StatusBadGateway, resp)
			return
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleExport(w http.ResponseWriter, r *http.Request) {
	period, err := periodParam(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	data, name, err := a.exporter.Export(r.Context(), period, r.URL.Query().Get("format"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", export.ContentType(name))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (a *API) handleReplaceTariffs(w http.ResponseWriter, r *http.Request) {
	provider := strings.TrimSpace(chi.URLParam(r, "provider"))
	r.Body = http.MaxBytesReader(w, r.Body, a.cfg.MaxUploadBytes)

	rules, err := tariff.ParseRulesCSV(r.Body, provider)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if err := a.tariffs.ReplaceTariffs(r.Context(), provider, rules); err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"provider": provider, "rules": len(rules)})
}

func periodParam(r *http.Request) (int, error) {
	raw := chi.URLParam(r, "period")
	p, err := strconv.Atoi(raw)
	if err != nil || p <= 0 {
		return 0, common.NewAppError("INVALID_PERIOD", fmt.Sprintf("period %q must be a positive integer", raw), common.ErrInvalidInput)
	}
	return p, nil
}
