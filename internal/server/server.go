package server

import (
	"context"
	"crypto/subtle"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/iwvelando/pdn-calculator/internal/assumptions"
	"github.com/iwvelando/pdn-calculator/internal/audit"
	"github.com/iwvelando/pdn-calculator/internal/config"
	"github.com/iwvelando/pdn-calculator/internal/metrics"
	"github.com/iwvelando/pdn-calculator/internal/pdn"
	"github.com/iwvelando/pdn-calculator/pkg/constants"
	"github.com/iwvelando/pdn-calculator/pkg/output"
	"github.com/iwvelando/pdn-calculator/pkg/validation"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/time/rate"
)

//go:embed static/*
var staticFiles embed.FS

const auditTimeout = 2 * time.Second

// Options wires the handler to its collaborators. Zero values fall back to
// defaults: a no-op logger and audit store, a fresh metrics registry, the
// built-in assumptions and validation rules.
type Options struct {
	Logger         *zap.Logger
	Assumptions    *assumptions.Store
	Audit          audit.Store
	Metrics        *metrics.Registry
	Rules          validation.Rules
	Admin          config.AdminConfig
	MaxBodySize    int64
	RateLimit      config.RateLimitConfig
	AllowedOrigins []string
	Version        string
	Now            func() time.Time
}

type handler struct {
	logger      *zap.Logger
	assumptions *assumptions.Store
	audit       audit.Store
	metrics     *metrics.Registry
	rules       validation.Rules
	admin       config.AdminConfig
	maxBodySize int64
	limiter     *rate.Limiter
	origins     map[string]struct{}
	anyOrigin   bool
	version     string
	now         func() time.Time
}

// NewHandler constructs the HTTP handler that serves the PDN API, the admin
// endpoints, Prometheus metrics and the static index page.
func NewHandler(opts Options) (http.Handler, error) {
	h := &handler{
		logger:      opts.Logger,
		assumptions: opts.Assumptions,
		audit:       opts.Audit,
		metrics:     opts.Metrics,
		rules:       opts.Rules,
		admin:       opts.Admin,
		maxBodySize: opts.MaxBodySize,
		version:     strings.TrimSpace(opts.Version),
		now:         opts.Now,
		origins:     make(map[string]struct{}),
	}

	if h.logger == nil {
		h.logger = zap.NewNop()
	}
	if h.assumptions == nil {
		store, err := assumptions.NewStore(assumptions.Default())
		if err != nil {
			return nil, err
		}
		h.assumptions = store
	}
	if h.audit == nil {
		h.audit = audit.NopStore{}
	}
	if h.metrics == nil {
		h.metrics = metrics.NewRegistry()
	}
	if len(h.rules.AllowedCurrencies) == 0 {
		h.rules = validation.DefaultRules()
	}
	if h.maxBodySize <= 0 {
		h.maxBodySize = constants.DefaultMaxBodySizeBytes
	}
	if opts.RateLimit.RPS > 0 {
		burst := opts.RateLimit.Burst
		if burst < 1 {
			burst = 1
		}
		h.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit.RPS), burst)
	}
	for _, origin := range opts.AllowedOrigins {
		if origin == "*" {
			h.anyOrigin = true
		}
		h.origins[origin] = struct{}{}
	}
	if h.version == "" {
		h.version = "dev"
	}
	if h.now == nil {
		h.now = time.Now
	}

	router := mux.NewRouter()

	// PDN API
	router.Handle("/pdn/calc", h.api("/pdn/calc", h.handleCalc)).Methods(http.MethodPost)
	router.Handle("/pdn/calc/business", h.api("/pdn/calc/business", h.handleBusiness)).Methods(http.MethodPost)
	router.Handle("/pdn/config", h.api("/pdn/config", h.handleGetConfig)).Methods(http.MethodGet)

	// Admin API
	router.Handle("/admin/pdn/config", h.api("/admin/pdn/config", h.handleUpdateConfig)).Methods(http.MethodPost)
	router.Handle("/admin/pdn/audit", h.api("/admin/pdn/audit", h.handleAudit)).Methods(http.MethodGet)

	// Version endpoint for UI metadata
	router.HandleFunc("/api/version", h.handleVersion).Methods(http.MethodGet)

	router.Handle("/metrics", h.metrics.Handler()).Methods(http.MethodGet)

	// Static assets (web UI)
	sub, err := fs.Sub(staticFiles, "static")
	if err != nil {
		return nil, fmt.Errorf("failed to prepare embedded static files: %w", err)
	}
	router.Handle("/", http.FileServer(http.FS(sub))).Methods(http.MethodGet)

	return h.corsMiddleware(h.versionMiddleware(router)), nil
}

// Serve runs handler on addr until ctx is cancelled, then shuts down
// gracefully.
func Serve(ctx context.Context, addr string, handler http.Handler, logger *zap.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting HTTP server",
			zap.String("op", "server.Serve"),
			zap.String("address", addr),
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		logger.Info("shutting down HTTP server", zap.String("op", "server.Serve"))
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (h *handler) handleCalc(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleCalc"

	var req validation.Request
	if !h.decodeBody(w, r, &req, op) {
		h.metrics.RecordError(validation.SubjectIndividual, "decode")
		return
	}
	if err := validation.Normalize(&req, h.rules); err != nil {
		h.metrics.RecordError(validation.SubjectIndividual, "validation")
		h.respondValidationError(w, err, op)
		return
	}

	snap := h.assumptions.Current()
	if len(req.Assumptions) > 0 {
		merged, err := snap.MergeRequest(req.Assumptions)
		if err != nil {
			h.metrics.RecordError(validation.SubjectIndividual, "validation")
			h.respondErrorWithOp(w, http.StatusBadRequest, err.Error(), op)
			return
		}
		snap = merged
	}

	res, err := pdn.Calculate(req.Input(), snap, h.now())
	if err != nil {
		h.respondCalculationError(w, validation.SubjectIndividual, err, op)
		return
	}

	resp := output.NewIndividualResponse(res, &req)
	h.recordAudit(r.Context(), req.Meta.RequestID, "/pdn/calc", req, resp, op)
	h.metrics.RecordCalculation(validation.SubjectIndividual, string(res.RiskBand))

	h.logger.Info("pdn computed",
		zap.String("op", op),
		zap.String("request_id", req.Meta.RequestID),
		zap.String("scenario", string(res.ScenarioApplied)),
		zap.Float64("pdn_percent", res.PDNPercent),
		zap.String("risk_band", string(res.RiskBand)),
	)

	h.writeJSON(w, http.StatusOK, resp)
}

func (h *handler) handleBusiness(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleBusiness"

	var req validation.BusinessRequest
	if !h.decodeBody(w, r, &req, op) {
		h.metrics.RecordError(validation.SubjectBusiness, "decode")
		return
	}
	if err := validation.NormalizeBusiness(&req); err != nil {
		h.metrics.RecordError(validation.SubjectBusiness, "validation")
		h.respondValidationError(w, err, op)
		return
	}

	res, err := pdn.CalculateBusiness(req.BusinessInput, h.assumptions.Current(), h.now())
	if err != nil {
		h.respondCalculationError(w, validation.SubjectBusiness, err, op)
		return
	}

	resp := output.NewBusinessResponse(res, &req)
	h.recordAudit(r.Context(), req.Meta.RequestID, "/pdn/calc/business", req, resp, op)
	h.metrics.RecordCalculation(validation.SubjectBusiness, string(res.RiskBand))

	h.logger.Info("business pdn computed",
		zap.String("op", op),
		zap.String("request_id", req.Meta.RequestID),
		zap.Float64("pdn_business_percent", res.PDNBusinessPercent),
		zap.String("risk_band", string(res.RiskBand)),
	)

	h.writeJSON(w, http.StatusOK, resp)
}

func (h *handler) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.assumptions.Current())
}

func (h *handler) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleUpdateConfig"
	if !h.requireAdmin(w, r, op) {
		return
	}

	var patch map[string]interface{}
	if !h.decodeBody(w, r, &patch, op) {
		return
	}
	if len(patch) == 0 {
		h.respondErrorWithOp(w, http.StatusBadRequest, "empty config update", op)
		return
	}

	snap, err := h.assumptions.Update(patch)
	if err != nil {
		h.metrics.RecordConfigUpdate(false)
		h.respondErrorWithOp(w, http.StatusBadRequest, err.Error(), op)
		return
	}
	h.metrics.RecordConfigUpdate(true)

	h.logger.Info("assumptions updated",
		zap.String("op", op),
		zap.Any("assumptions", snap),
	)

	h.writeJSON(w, http.StatusOK, snap)
}

type auditResponse struct {
	RequestID string        `json:"request_id"`
	Entries   []audit.Entry `json:"entries"`
	Message   string        `json:"message,omitempty"`
}

func (h *handler) handleAudit(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleAudit"
	if !h.requireAdmin(w, r, op) {
		return
	}

	requestID := strings.TrimSpace(r.URL.Query().Get("request_id"))
	if requestID == "" {
		h.respondErrorWithOp(w, http.StatusBadRequest, "request_id query parameter is required", op)
		return
	}

	entries, err := h.audit.ByRequestID(r.Context(), requestID)
	if err != nil {
		h.respondErrorWithOp(w, http.StatusInternalServerError, fmt.Sprintf("failed to read audit log: %v", err), op)
		return
	}

	resp := auditResponse{RequestID: requestID, Entries: entries}
	if len(entries) == 0 {
		resp.Entries = []audit.Entry{}
		resp.Message = "no audit entries found for request"
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *handler) handleVersion(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{
		"version":      h.version,
		"calc_version": constants.CalcVersion,
	})
}

// decodeBody reads a size-limited JSON body into dst and reports whether the
// handler should continue.
func (h *handler) decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}, op string) bool {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			h.respondErrorWithOp(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("request body exceeds limit of %d bytes", h.maxBodySize), op)
			return false
		}
		h.respondErrorWithOp(w, http.StatusBadRequest, fmt.Sprintf("failed to decode request: %v", err), op)
		return false
	}
	return true
}

func (h *handler) requireAdmin(w http.ResponseWriter, r *http.Request, op string) bool {
	if !h.admin.AdminEnabled() {
		h.respondErrorWithOp(w, http.StatusForbidden, "admin endpoints are disabled", op)
		return false
	}

	key := r.Header.Get(constants.AdminKeyHeader)
	if key == "" {
		h.respondErrorWithOp(w, http.StatusUnauthorized, "missing "+constants.AdminKeyHeader+" header", op)
		return false
	}

	var ok bool
	if h.admin.APIKeyHash != "" {
		ok = bcrypt.CompareHashAndPassword([]byte(h.admin.APIKeyHash), []byte(key)) == nil
	} else {
		ok = subtle.ConstantTimeCompare([]byte(h.admin.APIKey), []byte(key)) == 1
	}
	if !ok {
		h.respondErrorWithOp(w, http.StatusUnauthorized, "invalid admin key", op)
		return false
	}
	return true
}

func (h *handler) recordAudit(ctx context.Context, requestID, endpoint string, payload, result interface{}, op string) {
	entry, err := audit.NewEntry(h.now(), requestID, endpoint, payload, result)
	if err == nil {
		// The entry outlives the client connection.
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditTimeout)
		defer cancel()
		err = h.audit.Append(ctx, entry)
	}
	if err != nil {
		h.metrics.AuditFailures.Inc()
		h.logger.Warn("failed to record audit entry",
			zap.String("op", op),
			zap.String("request_id", requestID),
			zap.Error(err),
		)
	}
}

func (h *handler) respondValidationError(w http.ResponseWriter, err error, op string) {
	var verr *validation.Error
	if !errors.As(err, &verr) {
		h.respondErrorWithOp(w, http.StatusBadRequest, err.Error(), op)
		return
	}

	h.logger.Warn("pdn request rejected",
		zap.String("op", op),
		zap.Int("status", http.StatusBadRequest),
		zap.String("error", err.Error()),
	)
	h.writeJSON(w, http.StatusBadRequest, map[string]interface{}{
		"error":   validation.ErrValidation.Error(),
		"details": verr.Problems,
	})
}

func (h *handler) respondCalculationError(w http.ResponseWriter, subject string, err error, op string) {
	h.metrics.RecordError(subject, pdn.ErrorKind(err))
	status := calculationStatus(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("unexpected calculation failure", zap.String("op", op), zap.Error(err))
		h.respondErrorWithOp(w, status, "internal error", op)
		return
	}
	h.respondErrorWithOp(w, status, err.Error(), op)
}

// calculationStatus is 422 for errors caused by the request data and 500 for
// anything else.
func calculationStatus(err error) int {
	if pdn.IsCalculationError(err) {
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func (h *handler) respondErrorWithOp(w http.ResponseWriter, status int, msg string, op string) {
	h.logger.Error("pdn request failed",
		zap.String("op", op),
		zap.Int("status", status),
		zap.String("error", msg),
	)

	h.writeJSON(w, status, map[string]string{"error": msg})
}

func (h *handler) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to write JSON response", zap.Error(err))
	}
}

// api wraps an API handler with rate limiting and request instrumentation.
func (h *handler) api(route string, next http.HandlerFunc) http.Handler {
	return h.instrument(route, h.rateLimitMiddleware(next))
}

func (h *handler) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.limiter != nil && !h.limiter.Allow() {
			h.metrics.RateLimited.Inc()
			h.respondErrorWithOp(w, http.StatusTooManyRequests, "rate limit exceeded", "server.rateLimit")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *handler) instrument(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		timer := h.metrics.StartRequestTimer(route)
		wrapper := &responseWrapper{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapper, r)
		timer.Stop(strconv.Itoa(wrapper.statusCode))

		h.logger.Debug("request handled",
			zap.String("op", "server.instrument"),
			zap.String("method", r.Method),
			zap.String("route", route),
			zap.Int("status", wrapper.statusCode),
		)
	})
}

func (h *handler) versionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(constants.CalcVersionHeader, constants.CalcVersion)
		next.ServeHTTP(w, r)
	})
}

// corsMiddleware answers preflight requests and reflects allowed origins.
func (h *handler) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" {
			if _, ok := h.origins[origin]; ok || h.anyOrigin {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+constants.AdminKeyHeader)
				w.Header().Set("Access-Control-Expose-Headers", constants.CalcVersionHeader)
				w.Header().Add("Vary", "Origin")
			}
		}

		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			w.Header().Set(constants.CalcVersionHeader, constants.CalcVersion)
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// responseWrapper captures HTTP status codes for instrumentation
type responseWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWrapper) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
