package rest

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/quillstack-labs/pagelift/internal/core/domain"
	"github.com/quillstack-labs/pagelift/internal/core/ports/driven"
	"github.com/quillstack-labs/pagelift/internal/core/ports/driving"
)

type handler struct {
	runner  driving.PipelineRunner
	health  driving.HealthChecker
	journal driven.RunJournal
	engines EngineLister
	maxBody int64
	logger  *zap.Logger
}

// ocrResponse is the submission response body.
type ocrResponse struct {
	RunID     string         `json:"run_id"`
	Filename  string         `json:"filename"`
	Engine    string         `json:"engine"`
	Status    string         `json:"status"`
	ElapsedMS int64          `json:"elapsed_ms"`
	PageCount int            `json:"page_count"`
	Pages     []pageResponse `json:"pages"`
	Output    string         `json:"output"`
	StoredAt  string         `json:"stored_at"`
}

type pageResponse struct {
	Page  int      `json:"page"`
	Skew  *float64 `json:"skew_degrees,omitempty"`
	Error string   `json:"error,omitempty"`
}

// runResponse is one journal entry.
type runResponse struct {
	RunID       string    `json:"run_id"`
	Filename    string    `json:"filename"`
	Engine      string    `json:"engine"`
	Status      string    `json:"status"`
	PagesTotal  int       `json:"pages_total"`
	PagesFailed int       `json:"pages_failed"`
	ElapsedMS   int64     `json:"elapsed_ms"`
	SHA256      string    `json:"sha256"`
	CreatedAt   time.Time `json:"created_at"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *handler) handleOCR(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeError(w, r, domain.ErrPayloadTooLarge)
			return
		}
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeError(w, r, domain.ErrPayloadTooLarge)
			return
		}
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "reading upload failed"})
		return
	}

	result, err := h.runner.Run(r.Context(), driving.PipelineRequest{
		Data:     data,
		Filename: header.Filename,
		EngineID: r.FormValue("engine"),
		MIMEHint: header.Header.Get("Content-Type"),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := ocrResponse{
		RunID:     result.RunID,
		Filename:  result.Filename,
		Engine:    result.EngineID,
		Status:    string(result.Status),
		ElapsedMS: result.Elapsed.Milliseconds(),
		PageCount: result.PageCount,
		Output:    result.Output,
		StoredAt:  result.OutputPath,
		Pages:     make([]pageResponse, 0, len(result.Pages)),
	}
	for _, p := range result.Pages {
		pr := pageResponse{Page: p.Index, Skew: p.Skew}
		if p.Err != nil {
			pr.Error = p.Err.Error()
		}
		resp.Pages = append(resp.Pages, pr)
	}

	h.writeJSON(w, http.StatusOK, resp)
}

func (h *handler) handleEngines(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string][]string{"engines": h.engines.IDs()})
}

func (h *handler) handleRuns(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "limit must be a positive integer"})
			return
		}
		limit = n
	}

	records, err := h.journal.Recent(r.Context(), limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	out := make([]runResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, toRunResponse(rec))
	}
	h.writeJSON(w, http.StatusOK, map[string][]runResponse{"runs": out})
}

func (h *handler) handleRun(w http.ResponseWriter, r *http.Request) {
	rec, err := h.journal.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toRunResponse(*rec))
}

func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := h.health.Live(r.Context()); err != nil {
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "down"})
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := h.health.Ready(r.Context()); err != nil {
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"reason": err.Error(),
		})
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func toRunResponse(rec domain.RunRecord) runResponse {
	return runResponse{
		RunID:       rec.ID,
		Filename:    rec.Filename,
		Engine:      rec.EngineID,
		Status:      string(rec.Status),
		PagesTotal:  rec.PagesTotal,
		PagesFailed: rec.PagesFailed,
		ElapsedMS:   rec.Duration.Milliseconds(),
		SHA256:      rec.SHA256,
		CreatedAt:   rec.CreatedAt,
	}
}

// writeError maps domain errors onto HTTP status codes.
func (h *handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrPayloadTooLarge):
		status = http.StatusRequestEntityTooLarge
	case errors.Is(err, domain.ErrUnsupportedFormat):
		status = http.StatusUnsupportedMediaType
	case domain.IsInputError(err), errors.Is(err, domain.ErrUnknownEngine):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	}

	if status == http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.Error(err))
	}
	h.writeJSON(w, status, errorResponse{Error: err.Error()})
}

func (h *handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Warn("writing response failed", zap.Error(err))
	}
}
