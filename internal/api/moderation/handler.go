// Package moderation serves the moderation HTTP API: single text analysis,
// post imports, verdict history and service status.
package moderation

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tjfontaine/harassment-moderator/internal/core/domain"
	"github.com/tjfontaine/harassment-moderator/internal/core/ports"
	"github.com/tjfontaine/harassment-moderator/internal/importer"
	"github.com/tjfontaine/harassment-moderator/internal/server"
)

// ServiceName is reported by the status endpoint.
const ServiceName = "Harassment Detection API"

const (
	DefaultHistoryLimit = 20
	MaxHistoryLimit     = 100

	maxBodyBytes = 1 << 20
)

// PostImporter classifies the comments of a social media post.
type PostImporter interface {
	Import(ctx context.Context, postURL string) (*importer.Result, error)
}

// Handler owns the API routes.
type Handler struct {
	classifier importer.Classifier
	importer   PostImporter
	store      ports.VerdictStore
	logger     *slog.Logger
	startTime  time.Time

	muxOnce sync.Once
	mux     *chi.Mux
}

// Option configures a Handler.
type Option func(*Handler)

// WithImporter enables POST /api/import-instagram.
func WithImporter(im PostImporter) Option {
	return func(h *Handler) { h.importer = im }
}

// WithStore enables the history endpoints.
func WithStore(store ports.VerdictStore) Option {
	return func(h *Handler) { h.store = store }
}

// WithLogger sets the handler's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) { h.logger = logger }
}

// NewHandler returns a Handler running analyses through classifier.
func NewHandler(classifier importer.Classifier, opts ...Option) *Handler {
	h := &Handler{
		classifier: classifier,
		logger:     slog.Default(),
		startTime:  time.Now(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts every route on r.
func (h *Handler) Register(r chi.Router) {
	r.Get("/", h.handleStatus)
	r.Get("/healthz", h.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/analyze", h.handleAnalyze)
		r.Post("/import-instagram", h.handleImport)
		r.Get("/history", h.handleHistory)
		r.Get("/history/{id}", h.handleRecord)
		r.Get("/stats", h.handleStats)
	})
}

// ServeHTTP serves the routes on a private router. Used when the handler is
// embedded without internal/server.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.muxOnce.Do(func() {
		h.mux = chi.NewRouter()
		h.Register(h.mux)
	})
	h.mux.ServeHTTP(w, r)
}

type StatusResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	server.WriteJSON(w, http.StatusOK, StatusResponse{Status: "active", Service: ServiceName})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	server.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// AnalyzeRequest is the body of POST /api/analyze.
type AnalyzeRequest struct {
	Text   string `json:"text"`
	Source string `json:"source,omitempty"`
}

func (h *Handler) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	if err := decodeJSON(r, &req); err != nil {
		server.WriteError(w, r, err)
		return
	}
	if req.Source == "" {
		req.Source = domain.SourceManual
	}

	res, err := h.classifier.Run(r.Context(), domain.Input{Text: req.Text, Source: req.Source})
	if err != nil {
		server.WriteError(w, r, err)
		return
	}

	verdict := res.Verdict()
	server.AddLogField(r.Context(), "verdict", verdict.Status)
	server.AddLogField(r.Context(), "category", verdict.Category)
	server.WriteJSON(w, http.StatusOK, verdict)
}

// ImportRequest is the body of POST /api/import-instagram.
type ImportRequest struct {
	URL string `json:"url"`
}

// ImportResponse reports an import. Failures keep status 200 with
// Status "error" so clients handle one shape.
type ImportResponse struct {
	Status        string               `json:"status"`
	Message       string               `json:"message,omitempty"`
	ImportedCount int                  `json:"imported_count"`
	Results       []domain.ItemSummary `json:"results,omitempty"`
}

func (h *Handler) handleImport(w http.ResponseWriter, r *http.Request) {
	if h.importer == nil {
		server.WriteError(w, r, errNoImporter)
		return
	}
	var req ImportRequest
	if err := decodeJSON(r, &req); err != nil {
		server.WriteError(w, r, err)
		return
	}

	res, err := h.importer.Import(r.Context(), req.URL)
	if err != nil {
		server.AddError(r.Context(), err)
		h.logger.Warn("import failed", slog.String("url", req.URL), slog.String("error", err.Error()))
		server.WriteJSON(w, http.StatusOK, ImportResponse{Status: "error", Message: importMessage(err)})
		return
	}
	server.AddLogField(r.Context(), "imported_count", strconv.Itoa(res.ImportedCount))
	server.WriteJSON(w, http.StatusOK, ImportResponse{
		Status:        "success",
		ImportedCount: res.ImportedCount,
		Results:       res.Results,
	})
}

func importMessage(err error) string {
	var apiErr *domain.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return err.Error()
}

// handleHistory writes the matching records as a bare JSON array, newest
// first. Paging and filters come from the query string.
func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		server.WriteError(w, r, errNoStore)
		return
	}
	q := r.URL.Query()
	limit, err := intParam(q.Get("limit"), DefaultHistoryLimit)
	if err != nil {
		server.WriteError(w, r, err)
		return
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	limit = min(limit, MaxHistoryLimit)
	offset, err := intParam(q.Get("offset"), 0)
	if err != nil {
		server.WriteError(w, r, err)
		return
	}

	records, err := h.store.ListRecords(r.Context(), ports.ListOptions{
		Limit:    limit,
		Offset:   max(offset, 0),
		Source:   q.Get("source"),
		Category: q.Get("category"),
	})
	if err != nil {
		server.WriteError(w, r, err)
		return
	}
	if records == nil {
		records = []*domain.Record{}
	}
	server.WriteJSON(w, http.StatusOK, records)
}

func (h *Handler) handleRecord(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		server.WriteError(w, r, errNoStore)
		return
	}
	rec, err := h.store.GetRecord(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		server.WriteError(w, r, err)
		return
	}
	server.WriteJSON(w, http.StatusOK, rec)
}

type StatsResponse struct {
	Uptime       string `json:"uptime"`
	GoVersion    string `json:"go_version"`
	NumGoroutine int    `json:"num_goroutine"`
	Storage      bool   `json:"storage"`
	Importer     bool   `json:"importer"`
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	server.WriteJSON(w, http.StatusOK, StatsResponse{
		Uptime:       time.Since(h.startTime).Round(time.Second).String(),
		GoVersion:    runtime.Version(),
		NumGoroutine: runtime.NumGoroutine(),
		Storage:      h.store != nil,
		Importer:     h.importer != nil,
	})
}

func unavailable(message string) *domain.APIError {
	return domain.ErrServer(message).WithStatusCode(http.StatusServiceUnavailable)
}

var (
	errNoStore    = unavailable("history is not available without storage")
	errNoImporter = unavailable(importer.ErrNotConfigured.Error())
)

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return domain.ErrInvalidRequest("request body is required")
		}
		return domain.ErrInvalidRequest("invalid JSON body: " + err.Error())
	}
	return nil
}

func intParam(raw string, def int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, domain.ErrInvalidRequest("invalid integer parameter: " + raw)
	}
	return n, nil
}
