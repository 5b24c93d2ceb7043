package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"txsummary/internal/core"
)

type uploadResponse struct {
	Status       string `json:"status"`
	RowsInserted int64  `json:"rows_inserted"`
}

type summaryResponse struct {
	UserID    int64    `json:"user_id"`
	StartDate *string  `json:"start_date,omitempty"`
	EndDate   *string  `json:"end_date,omitempty"`
	Count     int64    `json:"count"`
	Min       *float64 `json:"min,omitempty"`
	Max       *float64 `json:"max,omitempty"`
	Mean      *float64 `json:"mean,omitempty"`
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if s.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		slog.WarnContext(r.Context(), "Upload missing file field", "error", err)
		writeError(w, http.StatusUnprocessableEntity, "multipart field 'file' is required")
		return
	}
	defer file.Close()

	inserted, err := s.ingester.IngestCSV(r.Context(), header.Filename, file)
	if err != nil {
		status := uploadErrorStatus(err)
		if status >= http.StatusInternalServerError {
			slog.ErrorContext(r.Context(), "Upload failed", "filename", header.Filename, "error", err)
		} else {
			slog.WarnContext(r.Context(), "Upload rejected", "filename", header.Filename, "error", err)
		}
		writeError(w, status, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, uploadResponse{Status: "ok", RowsInserted: inserted})
}

// uploadErrorStatus maps the ingest error taxonomy onto HTTP statuses:
// caller input problems are 400, internal staging/engine failures 500.
func uploadErrorStatus(err error) int {
	var (
		missingErr *core.MissingColumnsError
		convErr    *core.ConversionError
	)
	switch {
	case errors.Is(err, core.ErrInvalidFormat),
		errors.As(err, &missingErr),
		errors.As(err, &convErr):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(r.PathValue("user_id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "user_id must be an integer")
		return
	}

	start, err := parseDateParam(r.URL.Query().Get("start"))
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "start must be a YYYY-MM-DD date")
		return
	}
	end, err := parseDateParam(r.URL.Query().Get("end"))
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "end must be a YYYY-MM-DD date")
		return
	}

	summary, err := s.summarizer.Summarize(r.Context(), userID, start, end)
	if err != nil {
		switch {
		case errors.Is(err, core.ErrInvalidRange):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, core.ErrNoTransactions):
			writeError(w, http.StatusNotFound, err.Error())
		default:
			slog.ErrorContext(r.Context(), "Summary query failed", "user_id", userID, "error", err)
			writeError(w, http.StatusInternalServerError, "internal error computing summary")
		}
		return
	}

	writeJSON(w, http.StatusOK, toSummaryResponse(summary))
}

// parseDateParam parses an optional YYYY-MM-DD query parameter; an empty
// value means the bound is absent.
func parseDateParam(raw string) (*core.Date, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	d, err := core.ParseDate(raw)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func toSummaryResponse(s core.Summary) summaryResponse {
	resp := summaryResponse{
		UserID: s.UserID,
		Count:  s.Count,
		Min:    s.Min,
		Max:    s.Max,
		Mean:   s.Mean,
	}
	if s.Start != nil {
		v := s.Start.String()
		resp.StartDate = &v
	}
	if s.End != nil {
		v := s.End.String()
		resp.EndDate = &v
	}
	return resp
}
