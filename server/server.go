// Package server exposes the explorer service over HTTP.
package server

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"time"

	"github.com/allfeat/explorer/errors"
	"github.com/allfeat/explorer/identicon"
	"github.com/allfeat/explorer/service"
	"github.com/cespare/xxhash/v2"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const keepAliveInterval = 30 * time.Second
const shutdownTimeout = 10 * time.Second

type Options struct {
	RatePerSecond float64
	Burst         int
	// Peers allowed to set X-Forwarded-For.
	TrustedProxies []netip.Prefix
}

type Server struct {
	svc      *service.Service
	router   *mux.Router
	limiter  *IPLimiter
	upgrader websocket.Upgrader
}

func New(svc *service.Service, opts Options) *Server {
	s := &Server{
		svc:     svc,
		router:  mux.NewRouter(),
		limiter: NewIPLimiter(opts.RatePerSecond, opts.Burst, opts.TrustedProxies),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	s.router.Use(logRequests)
	s.router.HandleFunc("/healthz", s.healthz).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api").Subrouter()
	api.Use(s.rateLimit)
	api.HandleFunc("/total-issuance", s.handleTotalIssuance).Methods(http.MethodGet)
	api.HandleFunc("/circulating-supply", s.handleCirculatingSupply).Methods(http.MethodGet)
	api.HandleFunc("/supply", s.handleSupply).Methods(http.MethodGet)
	api.HandleFunc("/treasury", s.handleTreasury).Methods(http.MethodGet)
	api.HandleFunc("/epoch-duration", s.handleEpochDuration).Methods(http.MethodGet)
	api.HandleFunc("/allocations", s.handleAllocations).Methods(http.MethodGet)
	api.HandleFunc("/envelopes/{id}", s.handleEnvelope).Methods(http.MethodGet)
	api.HandleFunc("/accounts/{address}/balance", s.handleBalance).Methods(http.MethodGet)
	api.HandleFunc("/accounts/{address}/allocations", s.handleAccountAllocations).Methods(http.MethodGet)
	api.HandleFunc("/identicon/{address}.svg", s.handleIdenticon).Methods(http.MethodGet)
	api.HandleFunc("/sse/blocks", s.handleBlocksSSE).Methods(http.MethodGet)
	api.HandleFunc("/ws/blocks", s.handleBlocksWS).Methods(http.MethodGet)
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves until ctx ends, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	errCh := make(chan error, 1)
	go func() {
		logrus.WithField("addr", addr).Info("explorer api listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}

type errorBody struct {
	Status  errors.Status `json:"status"`
	Message string        `json:"message"`
}

func httpStatus(status errors.Status) int {
	switch status {
	case errors.InvalidAddressFormat:
		return http.StatusBadRequest
	case errors.EnvelopeNotFound, errors.MetricNotFound:
		return http.StatusNotFound
	case errors.ChainUnavailable:
		return http.StatusBadGateway
	case errors.RateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func errorPayload(err error) map[string]errorBody {
	status := errors.StatusOf(err)
	message := err.Error()
	var tagged *errors.Error
	if errors.As(err, &tagged) {
		message = tagged.Message
	}
	return map[string]errorBody{"error": {Status: status, Message: message}}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := errors.StatusOf(err)
	code := httpStatus(status)
	logrus.WithError(err).WithFields(logrus.Fields{
		"path":   r.URL.Path,
		"status": status,
	}).Warn("request failed")

	bz, _ := json.Marshal(errorPayload(err))
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_, _ = w.Write(bz)
}

func etagOf(body []byte) string {
	return fmt.Sprintf("\"%016x\"", xxhash.Sum64(body))
}

// writeJSON answers 304 when the client already holds the same body.
func writeJSON(w http.ResponseWriter, r *http.Request, payload any) {
	bz, err := json.Marshal(payload)
	if err != nil {
		writeError(w, r, err)
		return
	}
	etag := etagOf(bz)
	w.Header().Set("ETag", etag)
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_, _ = w.Write(bz)
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow(r) {
			w.Header().Set("Retry-After", "1")
			writeError(w, r, errors.Errorf(errors.RateLimited, "rate limit exceeded"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, map[string]string{"status": "ok"})
}

func (s *Server) handleTotalIssuance(w http.ResponseWriter, r *http.Request) {
	issuance, err := s.svc.GetTotalIssuance(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, map[string]any{"total_issuance": issuance})
}

func (s *Server) handleCirculatingSupply(w http.ResponseWriter, r *http.Request) {
	circulating, err := s.svc.GetCirculatingSupply(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, map[string]any{"circulating_supply": circulating})
}

func (s *Server) handleSupply(w http.ResponseWriter, r *http.Request) {
	supply, err := s.svc.GetSupply(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("X-Block-Number", strconv.FormatUint(supply.Block.Number, 10))
	writeJSON(w, r, supply)
}

func (s *Server) handleTreasury(w http.ResponseWriter, r *http.Request) {
	treasury, err := s.svc.GetTreasuryBalance(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, treasury)
}

func (s *Server) handleEpochDuration(w http.ResponseWriter, r *http.Request) {
	epoch, err := s.svc.GetEpochDuration(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, map[string]any{"epoch_duration": epoch})
}

func (s *Server) handleAllocations(w http.ResponseWriter, r *http.Request) {
	envelopes, err := s.svc.GetAllocations(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if envelopes.Cached {
		w.Header().Set("X-Cache", "hit")
	} else {
		w.Header().Set("X-Cache", "miss")
	}
	w.Header().Set("X-Computed-At", envelopes.ComputedAt.UTC().Format(time.RFC3339))
	writeJSON(w, r, envelopes)
}

func (s *Server) handleEnvelope(w http.ResponseWriter, r *http.Request) {
	envelope, err := s.svc.GetEnvelope(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, envelope)
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	balance, err := s.svc.GetBalanceOf(r.Context(), mux.Vars(r)["address"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, balance)
}

func (s *Server) handleAccountAllocations(w http.ResponseWriter, r *http.Request) {
	allocations, err := s.svc.GetAllocationsOf(r.Context(), mux.Vars(r)["address"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("X-Block-Number", strconv.FormatUint(allocations.Block.Number, 10))
	writeJSON(w, r, allocations)
}

func (s *Server) handleIdenticon(w http.ResponseWriter, r *http.Request) {
	size := identicon.DefaultSize
	if raw := r.URL.Query().Get("size"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			http.Error(w, "invalid size", http.StatusBadRequest)
			return
		}
		size = parsed
	}
	svg, err := s.svc.Identicon(mux.Vars(r)["address"], size)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("Cache-Control", "public, max-age=86400, immutable")
	_, _ = w.Write(svg)
}

// statusWriter records the response code for logging.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	return h.Hijack()
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		logrus.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   sw.status,
			"duration": time.Since(start),
		}).Debug("http request")
	})
}
