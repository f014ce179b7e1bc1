package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"bms/internal/log"
	"bms/internal/storage"
)

const maxRunsLimit = 100

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Failed to write response", log.FieldError, err.Error())
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, r, status, errorResponse{Error: msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady checks that the journal answers.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if _, err := s.store.ListRuns(r.Context(), 1); err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Readiness check failed", log.FieldError, err.Error())
		writeError(w, r, http.StatusServiceUnavailable, "journal unavailable")
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ready"})
}

// handleSnapshot serves the stored payload of kind as is.
func (s *Server) handleSnapshot(kind string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		snap, err := s.snapshots.GetOrLoad(kind, func() (storage.Snapshot, error) {
			return s.store.LatestSnapshot(ctx, kind)
		})
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "no "+kind+" has been published yet")
			return
		}
		if err != nil {
			log.FromContext(ctx).ErrorContext(ctx, "Failed to load snapshot",
				log.NewFields().WithOperation(log.OpRead).WithError(err).ToSlice()...)
			writeError(w, r, http.StatusInternalServerError, "failed to load "+kind)
			return
		}

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		if !snap.CreatedAt.IsZero() {
			w.Header().Set("Last-Modified", snap.CreatedAt.UTC().Format(http.TimeFormat))
		}
		if snap.RunID != "" {
			w.Header().Set("X-Run-ID", snap.RunID)
		}
		w.WriteHeader(http.StatusOK)
		if r.Method != http.MethodHead {
			_, _ = w.Write(snap.Payload)
		}
	}
}

type runsResponse struct {
	Runs        []storage.Run `json:"runs"`
	GeneratedAt time.Time     `json:"generated_at"`
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := strings.TrimSpace(r.URL.Query().Get("limit")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, r, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxRunsLimit)
	}

	runs, err := s.store.ListRuns(r.Context(), limit)
	if err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Failed to list runs",
			log.NewFields().WithOperation(log.OpList).WithError(err).ToSlice()...)
		writeError(w, r, http.StatusInternalServerError, "failed to list runs")
		return
	}
	if runs == nil {
		runs = []storage.Run{}
	}
	writeJSON(w, r, http.StatusOK, runsResponse{Runs: runs, GeneratedAt: time.Now().UTC()})
}
