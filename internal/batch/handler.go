// HTTP surface for the external CLI and monitoring tooling.
//
// Routes:
//
//	POST /runs        → trigger a run (date, force, concurrency, userIds)
//	GET  /runs?date=  → run status/progress for a batch date
package batch

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"jobmate/digest-service/internal/store"
)

// Handler exposes the orchestrator and run store over HTTP.
type Handler struct {
	orch *Orchestrator
	runs RunStore
}

// NewHandler returns a configured Handler.
func NewHandler(orch *Orchestrator, runs RunStore) *Handler {
	return &Handler{orch: orch, runs: runs}
}

// RegisterRoutes mounts all digest-service routes on mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/runs", h.handleRuns)
}

func (h *Handler) handleRuns(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.getRun(w, r)
	case http.MethodPost:
		h.triggerRun(w, r)
	default:
		jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) getRun(w http.ResponseWriter, r *http.Request) {
	date, err := parseDate(r.URL.Query().Get("date"))
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	run, err := h.runs.GetByDate(r.Context(), date)
	if errors.Is(err, store.ErrRunNotFound) {
		jsonError(w, "no run for date", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Printf("[digest] getRun query error: %v", err)
		jsonError(w, "database error", http.StatusInternalServerError)
		return
	}

	jsonOK(w, run)
}

func (h *Handler) triggerRun(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Date        string   `json:"date"`
		Force       bool     `json:"force"`
		Concurrency int      `json:"concurrency"`
		UserIDs     []string `json:"userIds"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	date, err := parseDate(body.Date)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	opts := Options{
		Date:        date,
		Force:       body.Force,
		Concurrency: body.Concurrency,
		UserIDs:     body.UserIDs,
	}

	// Runs take minutes at full scale — detach from the request context
	// (which dies with the response) and let the caller poll GET /runs?date=.
	runCtx := context.WithoutCancel(r.Context())
	go func() {
		if _, err := h.orch.Run(runCtx, opts); err != nil {
			log.Printf("[digest] Triggered run for %s failed: %v", body.Date, err)
		}
	}()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{
		"status":    "accepted",
		"batchDate": date.Format("2006-01-02"),
	})
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, errors.New("date is required (YYYY-MM-DD)")
	}
	date, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, errors.New("date must be YYYY-MM-DD")
	}
	return date.UTC(), nil
}

func jsonOK(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
