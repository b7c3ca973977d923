// Package api exposes game sessions over HTTP: one route per player intent,
// snapshot reads, and a websocket stream of snapshots.
//
// Rejected intents answer 409 Conflict with the unchanged snapshot so the
// client can re-render without a second request.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/moneyclicker/idle-engine/internal/catalog"
	"github.com/moneyclicker/idle-engine/internal/engine"
	"github.com/moneyclicker/idle-engine/internal/gamble"
	"github.com/moneyclicker/idle-engine/internal/model"
	"github.com/moneyclicker/idle-engine/internal/news"
)

// Service handles session and intent requests.
type Service struct {
	sessions *Registry
	catalog  catalog.Catalog
	hub      *WSHub // optional WebSocket hub for snapshot streaming
}

// NewService creates the HTTP service.
// Pass nil for hub if WebSocket streaming is not needed.
func NewService(sessions *Registry, cat catalog.Catalog, hub *WSHub) *Service {
	return &Service{sessions: sessions, catalog: cat, hub: hub}
}

// Routes mounts every endpoint under the current router.
func (s *Service) Routes(r chi.Router) {
	r.Get("/catalog", s.GetCatalog)
	r.Post("/sessions", s.CreateSession)
	r.Route("/sessions/{sessionID}", func(r chi.Router) {
		r.Get("/", s.GetSession)
		r.Delete("/", s.DeleteSession)
		r.Put("/region", s.SetRegion)
		r.Post("/click", s.Click)
		r.Post("/buy", s.Buy)
		r.Post("/autobuy", s.ToggleAutoBuy)
		r.Post("/tokens/{tokenID}/collect", s.CollectToken)
		r.Post("/skills/{skillID}/unlock", s.UnlockSkill)
		r.Post("/gamble/spin", s.Spin)
		r.Post("/news", s.RequestNews)
	})
	if s.hub != nil {
		r.Get("/ws", s.hub.HandleWS)
	}
}

// --- Request/Response types ---

// BoosterRequest is the JSON body for POST /buy and /autobuy.
type BoosterRequest struct {
	BoosterID string `json:"booster_id"`
}

// ClickRequest is the optional JSON body for POST /click.
type ClickRequest struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// SessionResponse wraps a snapshot with its session id.
type SessionResponse struct {
	SessionID string         `json:"session_id"`
	Snapshot  model.Snapshot `json:"snapshot"`
}

// ClickResponse is returned from POST /click.
type ClickResponse struct {
	engine.ClickResult
	Snapshot model.Snapshot `json:"snapshot"`
}

// CollectResponse is returned from POST /tokens/{tokenID}/collect.
type CollectResponse struct {
	Collection engine.Collection `json:"collection"`
	Snapshot   model.Snapshot    `json:"snapshot"`
}

// SpinResponse is returned from POST /gamble/spin.
type SpinResponse struct {
	Multiplier int            `json:"multiplier"`
	Cost       int64          `json:"cost"`
	Gain       string         `json:"gain"`
	Snapshot   model.Snapshot `json:"snapshot"`
}

// NewsResponse is returned from POST /news.
type NewsResponse struct {
	Error      string         `json:"error,omitempty"`
	RetryAfter int64          `json:"retry_after_seconds,omitempty"`
	Snapshot   model.Snapshot `json:"snapshot"`
}

// rejection is the 409 body for a rejected intent.
type rejection struct {
	Error    string         `json:"error"`
	Snapshot model.Snapshot `json:"snapshot"`
}

// --- HTTP Handlers ---

// GetCatalog handles GET /api/v1/catalog
func (s *Service) GetCatalog(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.catalog)
}

// CreateSession handles POST /api/v1/sessions
func (s *Service) CreateSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.Create()
	if err != nil {
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	slog.Info("session created", "session", sess.ID())
	writeJSON(w, http.StatusCreated, SessionResponse{SessionID: sess.ID(), Snapshot: sess.Engine().Snapshot()})
}

// GetSession handles GET /api/v1/sessions/{sessionID}
func (s *Service) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, SessionResponse{SessionID: sess.ID(), Snapshot: sess.Engine().Snapshot()})
}

// DeleteSession handles DELETE /api/v1/sessions/{sessionID}
// The save is kept and a later GET resumes it, unless ?purge=true, which
// also deletes the save.
func (s *Service) DeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	if purge, _ := strconv.ParseBool(r.URL.Query().Get("purge")); purge {
		if err := s.sessions.Purge(r.Context(), id); err != nil {
			if errors.Is(err, ErrSessionNotFound) {
				writeError(w, "session not found", http.StatusNotFound)
				return
			}
			slog.Error("purge failed", "session", id, "err", err)
			writeError(w, "failed to delete save", http.StatusInternalServerError)
			return
		}
		slog.Info("session purged", "session", id)
		w.WriteHeader(http.StatusNoContent)
		return
	}
	err := s.sessions.Remove(r.Context(), id)
	if errors.Is(err, ErrSessionNotFound) {
		writeError(w, "session not found", http.StatusNotFound)
		return
	}
	if err != nil {
		writeError(w, "final save failed", http.StatusInternalServerError)
		return
	}
	slog.Info("session stopped", "session", id)
	w.WriteHeader(http.StatusNoContent)
}

// SetRegion handles PUT /api/v1/sessions/{sessionID}/region
func (s *Service) SetRegion(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req model.Region
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	snap, err := sess.Engine().SetRegion(req)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// Click handles POST /api/v1/sessions/{sessionID}/click
func (s *Service) Click(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req ClickRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, "invalid request body", http.StatusBadRequest)
			return
		}
	}
	res, snap := sess.Engine().Click(model.Point{X: req.X, Y: req.Y})
	writeJSON(w, http.StatusOK, ClickResponse{ClickResult: res, Snapshot: snap})
}

// Buy handles POST /api/v1/sessions/{sessionID}/buy
func (s *Service) Buy(w http.ResponseWriter, r *http.Request) {
	sess, req, ok := s.boosterRequest(w, r)
	if !ok {
		return
	}
	snap, err := sess.Engine().Buy(req.BoosterID)
	if err != nil {
		writeRejection(w, err, snap)
		return
	}
	slog.Info("booster bought", "session", sess.ID(), "booster", req.BoosterID,
		"owned", snap.State.Ledger.Owned[req.BoosterID])
	writeJSON(w, http.StatusOK, snap)
}

// ToggleAutoBuy handles POST /api/v1/sessions/{sessionID}/autobuy
func (s *Service) ToggleAutoBuy(w http.ResponseWriter, r *http.Request) {
	sess, req, ok := s.boosterRequest(w, r)
	if !ok {
		return
	}
	snap, err := sess.Engine().ToggleAutoBuy(req.BoosterID)
	if err != nil {
		writeRejection(w, err, snap)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// CollectToken handles POST /api/v1/sessions/{sessionID}/tokens/{tokenID}/collect
func (s *Service) CollectToken(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	tokenID, err := strconv.ParseUint(chi.URLParam(r, "tokenID"), 10, 64)
	if err != nil {
		writeError(w, "invalid token id", http.StatusBadRequest)
		return
	}
	c, snap, err := sess.Engine().CollectToken(tokenID)
	if err != nil {
		writeRejection(w, err, snap)
		return
	}
	writeJSON(w, http.StatusOK, CollectResponse{Collection: c, Snapshot: snap})
}

// UnlockSkill handles POST /api/v1/sessions/{sessionID}/skills/{skillID}/unlock
func (s *Service) UnlockSkill(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	skillID := chi.URLParam(r, "skillID")
	snap, err := sess.Engine().UnlockSkill(skillID)
	if err != nil {
		writeRejection(w, err, snap)
		return
	}
	slog.Info("skill unlocked", "session", sess.ID(), "skill", skillID)
	writeJSON(w, http.StatusOK, snap)
}

// Spin handles POST /api/v1/sessions/{sessionID}/gamble/spin
func (s *Service) Spin(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	out, snap, err := sess.Engine().SpinGamble()
	if err != nil {
		writeRejection(w, err, snap)
		return
	}
	slog.Info("gamble spun", "session", sess.ID(), "multiplier", out.Multiplier, "cost", out.Cost)
	writeJSON(w, http.StatusOK, spinResponse(out, snap))
}

func spinResponse(out gamble.Outcome, snap model.Snapshot) SpinResponse {
	return SpinResponse{
		Multiplier: out.Multiplier,
		Cost:       out.Cost,
		Gain:       out.Gain.String(),
		Snapshot:   snap,
	}
}

// RequestNews handles POST /api/v1/sessions/{sessionID}/news
// The headline (or the failure message) is applied to the session either
// way; the status tells the client whether a new headline arrived.
func (s *Service) RequestNews(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	// The fetch completes even if the client goes away.
	ctx := context.WithoutCancel(r.Context())
	err := sess.RequestNews(ctx)
	resp := NewsResponse{Snapshot: sess.Engine().Snapshot()}

	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, resp)
	case errors.Is(err, engine.ErrNewsDisabled):
		resp.Error = err.Error()
		writeJSON(w, http.StatusNotImplemented, resp)
	case errors.Is(err, news.ErrCoolingDown):
		resp.Error = err.Error()
		resp.RetryAfter = int64(math.Ceil(sess.NewsRemaining().Seconds()))
		w.Header().Set("Retry-After", strconv.FormatInt(resp.RetryAfter, 10))
		writeJSON(w, http.StatusTooManyRequests, resp)
	case errors.Is(err, news.ErrInFlight):
		resp.Error = err.Error()
		writeJSON(w, http.StatusConflict, resp)
	default:
		resp.Error = err.Error()
		if errors.Is(err, news.ErrRateLimited) {
			resp.RetryAfter = int64(sess.NewsRemaining() / time.Second)
		}
		writeJSON(w, http.StatusBadGateway, resp)
	}
}

// --- helpers ---

func (s *Service) session(w http.ResponseWriter, r *http.Request) (*engine.Session, bool) {
	sess, err := s.sessions.Get(r.Context(), chi.URLParam(r, "sessionID"))
	if errors.Is(err, ErrSessionNotFound) {
		writeError(w, "session not found", http.StatusNotFound)
		return nil, false
	}
	if err != nil {
		slog.Error("session lookup failed", "err", err)
		writeError(w, "failed to load session", http.StatusInternalServerError)
		return nil, false
	}
	return sess, true
}

func (s *Service) boosterRequest(w http.ResponseWriter, r *http.Request) (*engine.Session, BoosterRequest, bool) {
	var req BoosterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.BoosterID == "" {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return nil, req, false
	}
	sess, ok := s.session(w, r)
	return sess, req, ok
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeRejection writes a 409 with the unchanged snapshot.
func writeRejection(w http.ResponseWriter, err error, snap model.Snapshot) {
	writeJSON(w, http.StatusConflict, rejection{Error: err.Error(), Snapshot: snap})
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}
