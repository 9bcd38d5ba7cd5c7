// Blogrec - Blog Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/blogrec

package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/blogrec/internal/recommend"
)

// RecommendService is the part of *recommend.Engine the handlers use.
type RecommendService interface {
	Apply(ctx context.Context, ev recommend.ActionEvent) (recommend.Outcome, error)
	Recommend(ctx context.Context, userID int) ([]recommend.ScoredItem, string, error)
	SimilarForUser(ctx context.Context, userID int) ([]int, error)
	Popular(ctx context.Context, userID int) ([]recommend.ScoredItem, error)
	LikeCount(ctx context.Context, itemID int) (int, error)
	RefreshIfNeeded(ctx context.Context, now time.Time) (bool, error)
	ImportItems(ctx context.Context, items []recommend.Item) (int, error)
	Status() recommend.RefreshStatus
}

// ActionPublisher queues actions for asynchronous application.
type ActionPublisher interface {
	PublishAction(ctx context.Context, ev recommend.ActionEvent) error
}

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// requestTimeout bounds the read endpoints.
const requestTimeout = 10 * time.Second

// Handler serves the HTTP endpoints.
type Handler struct {
	service   RecommendService
	publisher ActionPublisher
	db        Pinger
	now       func() time.Time
	startedAt time.Time
}

// NewHandler creates the handler. publisher may be nil, in which case
// actions are applied synchronously.
func NewHandler(service RecommendService, publisher ActionPublisher, db Pinger) *Handler {
	return &Handler{
		service:   service,
		publisher: publisher,
		db:        db,
		now:       time.Now,
		startedAt: time.Now(),
	}
}

// pathID parses a positive integer path parameter.
func pathID(r *http.Request, name string) (int, error) {
	id, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil || id <= 0 {
		return 0, &recommend.ValidationError{Field: name, Reason: "must be a positive integer"}
	}
	return id, nil
}

// ActionResult is the body of a recorded or queued action.
type ActionResult struct {
	Action  string `json:"action"`
	UserID  int    `json:"user_id"`
	ItemID  int    `json:"item_id"`
	Outcome string `json:"outcome"`
}

// RecordAction handles POST /api/v1/actions/{action}/users/{userID}/items/{itemID}.
// With an event pipeline the action is queued and 202 returned; otherwise
// it is applied inline and the outcome reported.
func (h *Handler) RecordAction(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	userID, err := pathID(r, "userID")
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	itemID, err := pathID(r, "itemID")
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	ev := recommend.ActionEvent{
		Action:     recommend.Action(chi.URLParam(r, "action")),
		UserID:     userID,
		ItemID:     itemID,
		OccurredAt: h.now(),
	}
	result := ActionResult{Action: string(ev.Action), UserID: userID, ItemID: itemID}

	if h.publisher != nil {
		if err := h.publisher.PublishAction(r.Context(), ev); err != nil {
			if recommend.IsRetryable(err) {
				respondError(w, r, http.StatusServiceUnavailable, "PUBLISH_FAILED", "Action could not be queued", err)
				return
			}
			respondDomainError(w, r, err)
			return
		}
		result.Outcome = "queued"
		respondOK(w, r, http.StatusAccepted, result, started)
		return
	}

	outcome, err := h.service.Apply(r.Context(), ev)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	result.Outcome = outcome.String()
	status := http.StatusOK
	if outcome == recommend.OutcomeCreated {
		status = http.StatusCreated
	}
	respondOK(w, r, status, result, started)
}

// RecommendationsResult is the body of the recommendations endpoint.
type RecommendationsResult struct {
	UserID int                    `json:"user_id"`
	Source string                 `json:"source"`
	Items  []recommend.ScoredItem `json:"items"`
}

// GetRecommendations handles GET /api/v1/recommendations/{userID}.
func (h *Handler) GetRecommendations(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	userID, err := pathID(r, "userID")
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	items, source, err := h.service.Recommend(ctx, userID)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondOK(w, r, http.StatusOK, RecommendationsResult{UserID: userID, Source: source, Items: items}, started)
}

// SimilarResult is the body of the content similarity endpoint.
type SimilarResult struct {
	UserID  int   `json:"user_id"`
	ItemIDs []int `json:"item_ids"`
}

// GetSimilar handles GET /api/v1/recommendations/{userID}/similar.
func (h *Handler) GetSimilar(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	userID, err := pathID(r, "userID")
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	ids, err := h.service.SimilarForUser(ctx, userID)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondOK(w, r, http.StatusOK, SimilarResult{UserID: userID, ItemIDs: ids}, started)
}

// GetPopular handles GET /api/v1/items/popular. The optional user_id query
// parameter removes that user's liked and favourited posts; limit trims the
// list.
func (h *Handler) GetPopular(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	q := PopularQuery{}
	if err := q.parse(r); err != nil {
		respondDomainError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	items, err := h.service.Popular(ctx, q.UserID)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	if q.Limit > 0 && len(items) > q.Limit {
		items = items[:q.Limit]
	}
	respondOK(w, r, http.StatusOK, items, started)
}

// LikesResult is the body of the like count endpoint.
type LikesResult struct {
	ItemID int `json:"item_id"`
	Likes  int `json:"likes"`
}

// GetLikes handles GET /api/v1/items/{itemID}/likes.
func (h *Handler) GetLikes(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	itemID, err := pathID(r, "itemID")
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	n, err := h.service.LikeCount(ctx, itemID)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondOK(w, r, http.StatusOK, LikesResult{ItemID: itemID, Likes: n}, started)
}

// RefreshResult is the body of the admin refresh endpoint.
type RefreshResult struct {
	Refreshed bool                    `json:"refreshed"`
	Status    recommend.RefreshStatus `json:"status"`
}

// TriggerRefresh handles POST /api/v1/admin/refresh. It runs the refresh
// check synchronously, bounded by the engine's own refresh timeout.
func (h *Handler) TriggerRefresh(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	refreshed, err := h.service.RefreshIfNeeded(r.Context(), h.now())
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondOK(w, r, http.StatusOK, RefreshResult{Refreshed: refreshed, Status: h.service.Status()}, started)
}

// ImportResult is the body of the item import endpoint.
type ImportResult struct {
	Received   int `json:"received"`
	Normalized int `json:"normalized"`
}

// ImportItems handles POST /api/v1/admin/items. The body is a JSON array of
// posts; existing posts are replaced.
func (h *Handler) ImportItems(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	var req []ItemRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		respondDomainError(w, r, err)
		return
	}
	items := make([]recommend.Item, len(req))
	for i := range req {
		if err := req[i].validate(); err != nil {
			respondDomainError(w, r, err)
			return
		}
		items[i] = req[i].toItem()
	}

	n, err := h.service.ImportItems(r.Context(), items)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondOK(w, r, http.StatusOK, ImportResult{Received: len(items), Normalized: n}, started)
}

// GetStatus handles GET /api/v1/status.
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	respondOK(w, r, http.StatusOK, h.service.Status(), time.Now())
}

// HealthStatus is the body of /health.
type HealthStatus struct {
	Status        string `json:"status"`
	Database      bool   `json:"database_connected"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	LastRefresh   string `json:"last_refresh,omitempty"`
	LastError     string `json:"last_error,omitempty"`
}

// Health handles GET /health. It answers 503 when the database is down.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	dbOK := h.db != nil && h.db.Ping(ctx) == nil
	st := HealthStatus{
		Status:        "healthy",
		Database:      dbOK,
		UptimeSeconds: int64(time.Since(h.startedAt).Seconds()),
	}
	refresh := h.service.Status()
	if !refresh.LastRefresh.IsZero() {
		st.LastRefresh = refresh.LastRefresh.Format(time.RFC3339)
	}
	st.LastError = refresh.LastError

	status := http.StatusOK
	if !dbOK {
		st.Status = "degraded"
		status = http.StatusServiceUnavailable
	}
	respondOK(w, r, status, st, started)
}
