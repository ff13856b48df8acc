package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"
	"github.com/xelth-com/ordsyncgo/internal/middleware"
	"github.com/xelth-com/ordsyncgo/internal/sync"
)

// syncOrder triggers a single-order sync
func (r *Router) syncOrder(w http.ResponseWriter, req *http.Request) {
	id, err := strconv.ParseUint(mux.Vars(req)["id"], 10, 32)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid order id")
		return
	}

	synced, err := r.orchestrator.SyncOrder(uint(id))
	if err != nil {
		switch {
		case errors.Is(err, sync.ErrNotFound):
			respondError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, sync.ErrInvalidInput):
			respondError(w, http.StatusBadRequest, err.Error())
		default:
			respondError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"order_id": id,
		"synced":   synced,
	})
}

// BulkSyncRequest represents a bulk sync request
type BulkSyncRequest struct {
	StartDate      string `json:"start_date"`
	EndDate        string `json:"end_date"`
	BatchSize      int    `json:"batch_size"`
	IncludePending bool   `json:"include_pending"`
}

// startBulkSync starts a date-bounded bulk sync job
func (r *Router) startBulkSync(w http.ResponseWriter, req *http.Request) {
	var body BulkSyncRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	startDate, err := parseDate(body.StartDate)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid start_date")
		return
	}
	endDate, err := parseDate(body.EndDate)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid end_date")
		return
	}

	job, err := r.runner.Start(startDate, endDate, body.BatchSize, body.IncludePending)
	if err != nil {
		switch {
		case errors.Is(err, sync.ErrInvalidDateRange):
			respondError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, sync.ErrNoOrdersFound):
			respondError(w, http.StatusNotFound, err.Error())
		default:
			respondError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]interface{}{
		"job_id":       job.ID,
		"total_orders": job.TotalOrders,
		"batch_size":   job.BatchSize,
	})
}

// getJobStatus returns the projection of a bulk job
func (r *Router) getJobStatus(w http.ResponseWriter, req *http.Request) {
	status, err := r.runner.GetStatus(mux.Vars(req)["id"])
	if err != nil {
		if errors.Is(err, sync.ErrJobNotFound) {
			respondError(w, http.StatusNotFound, err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, status)
}

// cancelJob cancels a running bulk job
func (r *Router) cancelJob(w http.ResponseWriter, req *http.Request) {
	jobID := mux.Vars(req)["id"]
	if err := r.runner.Cancel(jobID); err != nil {
		switch {
		case errors.Is(err, sync.ErrJobNotFound):
			respondError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, sync.ErrJobNotProcessing):
			respondError(w, http.StatusConflict, err.Error())
		default:
			respondError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"job_id":    jobID,
		"cancelled": true,
	})
}

// getSyncStats returns the aggregate engine view
func (r *Router) getSyncStats(w http.ResponseWriter, req *http.Request) {
	stats, err := r.states.GetSyncStats()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

// getOrderState returns the current state and history for one order key
func (r *Router) getOrderState(w http.ResponseWriter, req *http.Request) {
	localID, err := strconv.ParseUint(mux.Vars(req)["id"], 10, 32)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid order id")
		return
	}
	remoteID, err := strconv.ParseInt(req.URL.Query().Get("remote_id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "remote_id query parameter required")
		return
	}

	key := sync.OrderKey{LocalOrderID: uint(localID), RemoteOrderID: remoteID}
	cur, err := r.states.GetState(key)
	if err != nil {
		if errors.Is(err, sync.ErrNotFound) {
			respondError(w, http.StatusNotFound, "No sync state for order")
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	history, err := r.states.GetHistory(key)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"current": cur,
		"history": history,
	})
}

// listConflicts returns every order with pending manual resolutions
func (r *Router) listConflicts(w http.ResponseWriter, req *http.Request) {
	pending, err := r.manual.ListPending()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	type conflictGroup struct {
		LocalOrderID  uint        `json:"local_order_id"`
		RemoteOrderID int64       `json:"remote_order_id"`
		Entries       interface{} `json:"entries"`
	}
	groups := make([]conflictGroup, 0, len(pending))
	for key, entries := range pending {
		groups = append(groups, conflictGroup{
			LocalOrderID:  key.LocalOrderID,
			RemoteOrderID: key.RemoteOrderID,
			Entries:       entries,
		})
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"conflicts": groups,
		"orders":    len(groups),
	})
}

// ResolveConflictRequest represents a manual resolution submission
type ResolveConflictRequest struct {
	LocalOrderID  uint        `json:"local_order_id"`
	RemoteOrderID int64       `json:"remote_order_id"`
	Field         string      `json:"field"`
	ChosenValue   interface{} `json:"chosen_value"`
	Notes         string      `json:"notes"`
}

// resolveConflict applies a reviewer's decision to one queued field
func (r *Router) resolveConflict(w http.ResponseWriter, req *http.Request) {
	var body ResolveConflictRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if body.Field == "" {
		respondError(w, http.StatusBadRequest, "field is required")
		return
	}

	key := sync.OrderKey{LocalOrderID: body.LocalOrderID, RemoteOrderID: body.RemoteOrderID}
	if err := r.manual.Apply(key, body.Field, body.ChosenValue, requestUser(req), body.Notes); err != nil {
		if errors.Is(err, sync.ErrNotFound) {
			respondError(w, http.StatusNotFound, err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"resolved": true,
		"field":    body.Field,
	})
}

// listErrors browses the persistent error log
func (r *Router) listErrors(w http.ResponseWriter, req *http.Request) {
	q := req.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))

	rows, err := r.errors.Recent(q.Get("category"), q.Get("severity"), limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"errors": rows,
		"count":  len(rows),
	})
}

// RecoveryRequest bounds a recovery sweep
type RecoveryRequest struct {
	Limit int `json:"limit"`
}

// runRecovery sweeps FAILED orders whose retry budget allows another attempt
// and re-runs the sync for each recovered one
func (r *Router) runRecovery(w http.ResponseWriter, req *http.Request) {
	var body RecoveryRequest
	if req.Body != nil {
		_ = json.NewDecoder(req.Body).Decode(&body)
	}

	keys, err := r.states.GetRecoverableOrders(body.Limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	recovered := 0
	synced := 0
	for _, key := range keys {
		ok, err := r.states.AttemptRecovery(key, "recovery sweep")
		if err != nil || !ok {
			continue
		}
		recovered++
		if done, _ := r.orchestrator.SyncOrder(key.LocalOrderID); done {
			synced++
		}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"eligible":  len(keys),
		"recovered": recovered,
		"synced":    synced,
	})
}

// requestUser pulls the authenticated user's email out of the JWT claims
func requestUser(req *http.Request) string {
	claims, ok := req.Context().Value(middleware.UserContextKey).(jwt.MapClaims)
	if !ok {
		return ""
	}
	email, _ := claims["email"].(string)
	return email
}

// parseDate accepts both date-only and RFC3339 timestamps
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}
