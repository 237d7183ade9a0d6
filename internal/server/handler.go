package server

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/bc-legal-assistant/server/internal/agent/graph"
	"github.com/bc-legal-assistant/server/internal/agent/model"
	errx "github.com/bc-legal-assistant/server/internal/core/error"
	"github.com/bc-legal-assistant/server/internal/documents"
	logx "github.com/bc-legal-assistant/server/pkg/logger"
)

// DefaultDocumentQuestion replaces an empty question when a document is attached.
const DefaultDocumentQuestion = "Summarize this document."

const multipartMemory = 8 << 20

type QueryRequest struct {
	Query *string `json:"query"`
}

type QueryResponse struct {
	Success  bool           `json:"success"`
	Response string         `json:"response"`
	Category model.Category `json:"category"`
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// Handler implements /api/query and /api/health.
type Handler struct {
	runner         graph.Runner
	extractor      documents.Extractor
	maxUploadBytes int64
}

func NewHandler(runner graph.Runner, extractor documents.Extractor, cfg Config) *Handler {
	max := cfg.MaxUploadBytes
	if max <= 0 {
		max = documents.DefaultMaxBytes
	}
	return &Handler{runner: runner, extractor: extractor, maxUploadBytes: max}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) Query(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := RequestIDFrom(ctx)
	start := time.Now()

	q, err := h.parseQuery(w, r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	resp, err := h.runner.Answer(ctx, q)
	if err != nil {
		respondError(w, r, err)
		return
	}

	logx.Info().
		Str("request_id", reqID).
		Str("category", resp.Category.String()).
		Bool("has_document", q.HasDocument()).
		Int64("total_ms", time.Since(start).Milliseconds()).
		Msg("query answered")

	writeJSON(w, http.StatusOK, QueryResponse{
		Success:  true,
		Response: resp.Text,
		Category: resp.Category,
	})
}

// parseQuery accepts either a JSON body or a multipart form with an optional file.
func (h *Handler) parseQuery(w http.ResponseWriter, r *http.Request) (model.Query, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		return h.parseMultipart(w, r)
	}

	var req QueryRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, h.maxUploadBytes))
	if err := dec.Decode(&req); err != nil {
		return model.Query{}, errx.Validation("invalid JSON body")
	}
	if req.Query == nil {
		return model.Query{}, errx.Validation("missing query field")
	}
	return normalize(*req.Query, "")
}

func (h *Handler) parseMultipart(w http.ResponseWriter, r *http.Request) (model.Query, error) {
	// room for the non-file form fields on top of the file itself
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+multipartMemory)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return model.Query{}, errx.Validation("uploaded file is too large")
		}
		return model.Query{}, errx.Validation("invalid multipart body")
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	text := r.FormValue("query")
	document := h.extractDocument(r)
	return normalize(text, document)
}

// extractDocument returns the uploaded file's text. Missing files and
// extraction failures both mean no document.
func (h *Handler) extractDocument(r *http.Request) string {
	file, header, err := r.FormFile("file")
	if err != nil {
		if !errors.Is(err, http.ErrMissingFile) {
			logx.Warn().Err(err).Str("request_id", RequestIDFrom(r.Context())).Msg("failed to read uploaded file")
		}
		return ""
	}
	defer file.Close()

	text, err := h.extractor.Extract(r.Context(), documents.Upload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Body:        file,
	})
	if err != nil {
		logx.Warn().
			Err(err).
			Str("request_id", RequestIDFrom(r.Context())).
			Str("filename", header.Filename).
			Msg("document extraction failed, continuing without document")
		return ""
	}
	return text
}

func normalize(text, document string) (model.Query, error) {
	text = strings.TrimSpace(text)
	document = strings.TrimSpace(document)
	if text == "" {
		if document == "" {
			return model.Query{}, errx.Validation("query cannot be empty")
		}
		text = DefaultDocumentQuestion
	}
	return model.Query{Text: text, DocumentText: document}, nil
}

func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := errx.StatusOf(err)
	ev := logx.Warn()
	if status >= http.StatusInternalServerError {
		ev = logx.Error()
	}
	ev.Err(err).
		Str("request_id", RequestIDFrom(r.Context())).
		Int("status", status).
		Msg("request failed")

	writeJSON(w, status, ErrorResponse{Success: false, Error: errx.PublicMessage(err)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logx.Error().Err(err).Msg("failed to encode response")
	}
}
