// Package server exposes one dataset's cache over HTTP.
//
//	POST /refresh                       run a sync pass          -> {"refreshed": n}
//	POST /clear       {"keys": [...]?}  drop cached entries      -> {"cleared": n}
//	GET  /getRaw?key=k                  read one cached value    -> {"value": v}
//	POST /getRaw      {"key": k}
//	POST /getManyRaw  {"keys": [...]}   read cached values       -> {"values": [...]}
//	GET  /healthz                       503 until the first pass has finished
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/unkn0wn-root/ledgercache"
)

const maxBodyBytes = 4 << 20

type Server struct {
	cache   ledgercache.Cache
	dataset string
	log     ledgercache.Logger

	ready atomic.Bool
	group singleflight.Group
}

func New(cache ledgercache.Cache, datasetID string, log ledgercache.Logger) *Server {
	if log == nil {
		log = ledgercache.NopLogger{}
	}
	return &Server{cache: cache, dataset: datasetID, log: log}
}

func (s *Server) Ready() bool      { return s.ready.Load() }
func (s *Server) SetReady(ok bool) { s.ready.Store(ok) }

// Refresh runs a sync pass. Callers arriving while a pass is running share
// its result instead of starting another one.
func (s *Server) Refresh(ctx context.Context) (int, error) {
	v, err, _ := s.group.Do(s.dataset, func() (any, error) {
		// a caller disconnecting must not cut the shared pass short
		return s.cache.Sync(context.WithoutCancel(ctx), s.dataset)
	})
	n, _ := v.(int)
	return n, err
}

// InitialSync runs one pass and marks the server ready when it succeeds.
func (s *Server) InitialSync(ctx context.Context) error {
	n, err := s.Refresh(ctx)
	if err != nil {
		return err
	}
	s.log.Info("initial sync done", ledgercache.Fields{"dataset": s.dataset, "refreshed": n})
	s.SetReady(true)
	return nil
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("POST /refresh", s.handleRefresh)
	mux.HandleFunc("POST /clear", s.handleClear)
	mux.HandleFunc("GET /getRaw", s.handleGetRaw)
	mux.HandleFunc("POST /getRaw", s.handleGetRaw)
	mux.HandleFunc("POST /getManyRaw", s.handleGetManyRaw)
	return s.logging(mux)
}

type keyRequest struct {
	Key string `json:"key"`
}

type keysRequest struct {
	Keys []string `json:"keys"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	if !s.Ready() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"ready": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ready": true})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	n, err := s.Refresh(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"refreshed": n})
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	var req keysRequest
	if err := decode(r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	for _, k := range req.Keys {
		if k == "" {
			writeError(w, http.StatusBadRequest, errors.New("keys must be non-empty strings"))
			return
		}
	}
	// a missing keys field clears everything the ledger knows
	n, err := s.cache.Clear(r.Context(), s.dataset, req.Keys)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cleared": n})
}

func (s *Server) handleGetRaw(w http.ResponseWriter, r *http.Request) {
	var req keyRequest
	if r.Method == http.MethodGet {
		req.Key = r.URL.Query().Get("key")
	} else if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Key == "" {
		writeError(w, http.StatusBadRequest, errors.New("key is required"))
		return
	}
	v, err := s.cache.GetRaw(r.Context(), s.dataset, req.Key)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"value": v})
}

func (s *Server) handleGetManyRaw(w http.ResponseWriter, r *http.Request) {
	var req keysRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Keys == nil {
		writeError(w, http.StatusBadRequest, errors.New("keys is required"))
		return
	}
	for _, k := range req.Keys {
		if k == "" {
			writeError(w, http.StatusBadRequest, errors.New("keys must be non-empty strings"))
			return
		}
	}
	vals, err := s.cache.GetRawMany(r.Context(), s.dataset, req.Keys)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"values": vals})
}

// fail maps engine errors to a status: collaborators that are down are 503,
// a failed download batch is 502.
func (s *Server) fail(w http.ResponseWriter, err error) {
	var (
		le *ledgercache.LedgerError
		se *ledgercache.StoreError
		be *ledgercache.BatchError
	)
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ledgercache.ErrInvalidDataset):
		status = http.StatusBadRequest
	case errors.As(err, &be):
		status = http.StatusBadGateway
	case errors.As(err, &le), errors.As(err, &se):
		status = http.StatusServiceUnavailable
	}
	s.log.Error("request failed", ledgercache.Fields{"dataset": s.dataset, "status": status, "err": err})
	writeError(w, status, err)
}

func decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return err
		}
		return fmt.Errorf("invalid json body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{"error": err.Error()})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.Debug("http "+r.Method+" "+r.URL.Path, ledgercache.Fields{
			"status": strconv.Itoa(rec.status),
			"took":   time.Since(start).String(),
		})
	})
}
