// Package adminapi exposes owner commands over a loopback HTTP listener.
// It maps commands onto core calls; the redemption flow lives in httpapi.
package adminapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/careline/chatvault/internal/errs"
	"github.com/careline/chatvault/internal/model"
	"github.com/careline/chatvault/internal/server/httpapi"
	"github.com/careline/chatvault/internal/service"
)

// MessageVault is the conversation-log surface used by owner commands.
type MessageVault interface {
	Append(userID int64, role model.Role, plaintext, timestamp string) error
	History(userID int64, n int) ([]model.Message, error)
	VerifyChain(userID int64) (bool, error)
}

// Exporter mints and revokes secure download links.
type Exporter interface {
	CreateLink(ctx context.Context, userID int64, artifactPath, note string) (*service.Receipt, error)
	Export(ctx context.Context, userID int64, from, to time.Time) (*service.Receipt, error)
	RevokeByRevokeID(ctx context.Context, userID int64, revokeID string) (string, error)
}

// Profiles manages per-user delivery settings.
type Profiles interface {
	SetRecipient(userID int64, email string) error
	Recipient(userID int64) (string, error)
}

// Handler wires owner commands into HTTP handlers.
type Handler struct {
	vault    MessageVault
	exports  Exporter
	profiles Profiles
	log      *zap.Logger
}

// NewHandler constructs the admin handler set.
func NewHandler(vault MessageVault, exports Exporter, profiles Profiles, log *zap.Logger) *Handler {
	return &Handler{vault: vault, exports: exports, profiles: profiles, log: log}
}

// Router builds the admin router.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(httpapi.RequestLogger(h.log))
	r.Use(httpapi.Recover(h.log))

	r.Route("/users/{userID}", func(r chi.Router) {
		r.Post("/messages", h.appendMessage)
		r.Get("/history", h.history)
		r.Get("/chain", h.verifyChain)
		r.Put("/recipient", h.setRecipient)
		r.Post("/exports", h.export)
		r.Post("/links", h.createLink)
		r.Delete("/links/{revokeID}", h.revoke)
	})
	return r
}

type appendRequest struct {
	Role      model.Role `json:"role"`
	Content   string     `json:"content"`
	Timestamp string     `json:"timestamp"`
}

func (h *Handler) appendMessage(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	var req appendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request body", http.StatusBadRequest)
		return
	}
	if req.Content == "" {
		http.Error(w, "empty content", http.StatusBadRequest)
		return
	}
	if req.Timestamp == "" {
		req.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}
	if err := h.vault.Append(userID, req.Role, req.Content, req.Timestamp); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	n, _ := strconv.Atoi(r.URL.Query().Get("n"))
	if n <= 0 || n > 100 {
		n = 20
	}
	msgs, err := h.vault.History(userID, n)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, msgs)
}

func (h *Handler) verifyChain(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	valid, err := h.vault.VerifyChain(userID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, map[string]bool{"valid": valid})
}

type recipientRequest struct {
	Email string `json:"email"`
}

func (h *Handler) setRecipient(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	var req recipientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" {
		http.Error(w, "email is required", http.StatusBadRequest)
		return
	}
	if err := h.profiles.SetRecipient(userID, req.Email); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type exportRequest struct {
	From string `json:"from"` // inclusive day, 2006-01-02
	To   string `json:"to"`   // inclusive day
}

func (h *Handler) export(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	var req exportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request body", http.StatusBadRequest)
		return
	}
	from, err1 := time.Parse("2006-01-02", req.From)
	to, err2 := time.Parse("2006-01-02", req.To)
	if err1 != nil || err2 != nil || to.Before(from) {
		http.Error(w, "from/to must be YYYY-MM-DD with from <= to", http.StatusBadRequest)
		return
	}
	// Whole inclusive days.
	receipt, err := h.exports.Export(r.Context(), userID, from, to.Add(24*time.Hour-time.Nanosecond))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, receipt)
}

type createLinkRequest struct {
	ArtifactPath string `json:"artifact_path"`
	Note         string `json:"note"`
}

func (h *Handler) createLink(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	var req createLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ArtifactPath == "" {
		http.Error(w, "artifact_path is required", http.StatusBadRequest)
		return
	}
	receipt, err := h.exports.CreateLink(r.Context(), userID, req.ArtifactPath, req.Note)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, receipt)
}

func (h *Handler) revoke(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	revokeID := chi.URLParam(r, "revokeID")
	note, err := h.exports.RevokeByRevokeID(r.Context(), userID, revokeID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, map[string]string{"revoked": revokeID, "note": note})
}

func (h *Handler) userID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		http.Error(w, "bad user id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func (h *Handler) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error("encode response", zap.Error(err))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errs.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case strings.HasPrefix(err.Error(), "validation:"):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		h.log.Error("admin command failed", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
