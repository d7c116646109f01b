package httpadapter

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/kirillkom/lot-photo-reconciler/internal/config"
	"github.com/kirillkom/lot-photo-reconciler/internal/core/domain"
	"github.com/kirillkom/lot-photo-reconciler/internal/core/ports"
	"github.com/kirillkom/lot-photo-reconciler/internal/core/usecase"
	"github.com/kirillkom/lot-photo-reconciler/internal/observability/metrics"
)

const serviceName = "reconciler-api"

type Router struct {
	cfg        config.Config
	submitter  ports.ScanSubmitter
	reconciler ports.Reconciler
	scans      ports.ScanReader
	metrics    *metrics.HTTPServerMetrics
	logger     *slog.Logger
}

func NewRouter(
	cfg config.Config,
	submitter ports.ScanSubmitter,
	reconciler ports.Reconciler,
	scans ports.ScanReader,
	httpMetrics *metrics.HTTPServerMetrics,
	logger *slog.Logger,
) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		cfg:        cfg,
		submitter:  submitter,
		reconciler: reconciler,
		scans:      scans,
		metrics:    httpMetrics,
		logger:     logger,
	}
}

func (rt *Router) Handler() http.Handler {
	limit := chain(
		rateLimitMiddleware(rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst),
		backpressureMiddleware(rt.cfg.APIMaxInFlight, rt.cfg.APIBackpressureWait),
	)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	mux.Handle("POST /v1/scans", limit(http.HandlerFunc(rt.submitScan)))
	mux.Handle("GET /v1/scans/{id}", limit(http.HandlerFunc(rt.getScanByID)))
	mux.Handle("POST /v1/reconcile", limit(http.HandlerFunc(rt.reconcile)))

	var handler http.Handler = mux
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	return requestIDMiddleware(accessLogMiddleware(rt.logger, handler))
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) submitScan(w http.ResponseWriter, r *http.Request) {
	scan, err := rt.submitter.Submit(r.Context(), r.Body)
	if err != nil {
		outcome := "failed"
		if domain.IsKind(err, domain.ErrInvalidInput) {
			outcome = "rejected"
		}
		rt.recordSubmission(outcome)
		rt.writeError(w, r, err)
		return
	}
	rt.recordSubmission("accepted")
	writeJSON(w, http.StatusAccepted, scan)
}

func (rt *Router) getScanByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "scan id is required"})
		return
	}

	scan, err := rt.scans.GetByID(r.Context(), id)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, scan)
}

func (rt *Router) reconcile(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, usecase.MaxScanPayloadBytes+1))
	if err != nil {
		rt.writeError(w, r, domain.WrapError(domain.ErrInvalidInput, "read request body", err))
		return
	}
	if len(raw) > usecase.MaxScanPayloadBytes {
		rt.writeError(w, r, domain.WrapError(domain.ErrInvalidInput, "read request body", errors.New("payload too large")))
		return
	}

	req, err := usecase.DecodeScanRequest(raw)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}

	result, err := rt.reconciler.Reconcile(r.Context(), req)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) recordSubmission(outcome string) {
	if rt.metrics != nil {
		rt.metrics.RecordScanSubmitted(serviceName, outcome)
	}
}

func (rt *Router) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		rt.logger.Error("request_failed",
			"request_id", requestIDFromContext(r.Context()),
			"path", r.URL.Path,
			"error", err,
		)
	}
	writeJSON(w, status, map[string]string{
		"error":      err.Error(),
		"request_id": requestIDFromContext(r.Context()),
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
