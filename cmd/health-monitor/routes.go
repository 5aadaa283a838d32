package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/NordCoder/Healthwatch/internal/domain/health"
	"github.com/NordCoder/Healthwatch/internal/domain/incident"
	"github.com/NordCoder/Healthwatch/internal/obs"
	"github.com/NordCoder/Healthwatch/internal/repository"
	monitor "github.com/NordCoder/Healthwatch/internal/services/health-monitor"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// readRoutes exposes the cached snapshot plus history and incidents from storage.
func readRoutes(loop *monitor.Loop, history health.HistoryRepo, incidents incident.Repo, l *zap.Logger) []obs.Route {
	return []obs.Route{
		{Pattern: "/status", Handler: func(w http.ResponseWriter, r *http.Request) {
			snap, ok := loop.Snapshot()
			if !ok {
				http.Error(w, "no fresh snapshot", http.StatusServiceUnavailable)
				return
			}
			writeJSON(w, snap)
		}},
		{Pattern: "/services/{name}/history", Handler: func(w http.ResponseWriter, r *http.Request) {
			rows, err := history.ListByService(r.Context(), chi.URLParam(r, "name"), listLimit(r))
			if err != nil {
				l.Warn("list history", zap.Error(err))
				http.Error(w, "history unavailable", http.StatusInternalServerError)
				return
			}
			writeJSON(w, rows)
		}},
		{Pattern: "/services/{name}/incidents", Handler: func(w http.ResponseWriter, r *http.Request) {
			list, err := incidents.ListByService(r.Context(), chi.URLParam(r, "name"), listLimit(r))
			if err != nil {
				l.Warn("list incidents", zap.Error(err))
				http.Error(w, "incidents unavailable", http.StatusInternalServerError)
				return
			}
			writeJSON(w, list)
		}},
		{Pattern: "/incidents/{id}", Handler: func(w http.ResponseWriter, r *http.Request) {
			id, err := uuid.Parse(chi.URLParam(r, "id"))
			if err != nil {
				http.Error(w, "bad incident id", http.StatusBadRequest)
				return
			}
			in, err := incidents.GetByID(r.Context(), id)
			switch {
			case errors.Is(err, repository.ErrNotFound):
				http.Error(w, "incident not found", http.StatusNotFound)
			case err != nil:
				l.Warn("get incident", zap.Error(err))
				http.Error(w, "incident unavailable", http.StatusInternalServerError)
			default:
				writeJSON(w, in)
			}
		}},
	}
}

func listLimit(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n <= 0 {
		return defaultListLimit
	}
	return min(n, maxListLimit)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
