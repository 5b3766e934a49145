// Package httpapi exposes the public redemption endpoint over HTTP.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/careline/chatvault/internal/errs"
	"github.com/careline/chatvault/internal/model"
	"github.com/careline/chatvault/internal/service"
)

// Gateway is the redemption service consumed by the HTTP handlers.
type Gateway interface {
	CheckLink(ctx context.Context, signed string) error
	Redeem(ctx context.Context, signed, otp, ip string) (*model.ReleaseGrant, error)
	AttemptLimit() int
}

// Handler wires the download gateway into HTTP handlers.
type Handler struct {
	gw  Gateway
	log *zap.Logger
}

// NewHandler constructs the HTTP handler set.
func NewHandler(gw Gateway, log *zap.Logger) *Handler {
	return &Handler{gw: gw, log: log}
}

// Router builds the chi router with logging and recovery middleware.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(h.log))
	r.Use(Recover(h.log))

	r.Get("/ping", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("pong\n"))
	})
	r.Get("/secure-download", h.showForm)
	r.Post("/secure-download", h.redeem)
	return r
}

// showForm pre-checks the link and renders the passcode form.
func (h *Handler) showForm(w http.ResponseWriter, r *http.Request) {
	signed := r.URL.Query().Get("token")
	if signed == "" {
		http.Error(w, "Token is required.", http.StatusBadRequest)
		return
	}
	if err := h.gw.CheckLink(r.Context(), signed); err != nil {
		h.writeRejection(w, err)
		return
	}
	h.renderForm(w, signed, "")
}

// redeem runs one redemption attempt and streams the artifact on success.
func (h *Handler) redeem(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad form data.", http.StatusBadRequest)
		return
	}
	signed := r.PostFormValue("token")
	if signed == "" {
		http.Error(w, "Token is required.", http.StatusBadRequest)
		return
	}
	pass := r.PostFormValue("otp")
	if pass == "" {
		h.renderForm(w, signed, "Passcode is required.")
		return
	}

	grant, err := h.gw.Redeem(r.Context(), signed, pass, clientIP(r))
	if err != nil {
		var attempts *service.OTPAttemptsError
		if errors.As(err, &attempts) {
			h.renderForm(w, signed, fmt.Sprintf("Invalid passcode. Attempts left: %d", attempts.AttemptsLeft))
			return
		}
		h.writeRejection(w, err)
		return
	}
	defer func() { _ = grant.File.Close() }()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", `attachment; filename="`+grant.Name+`"`)
	w.Header().Set("Content-Length", strconv.FormatInt(grant.Size, 10))
	if _, err := io.Copy(w, grant.File); err != nil {
		h.log.Error("stream artifact", zap.Error(err))
	}
}

// writeRejection maps the redemption error taxonomy onto status codes.
// Every failure degrades to a user-visible reason, never an unhandled fault.
func (h *Handler) writeRejection(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errs.ErrTokenInvalid):
		http.Error(w, "Invalid or tampered token.", http.StatusForbidden)
	case errors.Is(err, errs.ErrIPMismatch):
		http.Error(w, "This address is not allowed for this link.", http.StatusForbidden)
	case errors.Is(err, errs.ErrNotFound):
		http.Error(w, "Invalid or revoked link.", http.StatusGone)
	case errors.Is(err, errs.ErrQuotaExhausted):
		http.Error(w, "Download limit reached.", http.StatusGone)
	case errors.Is(err, errs.ErrArtifactMissing):
		http.Error(w, "File not found (possibly removed).", http.StatusGone)
	case errors.Is(err, errs.ErrLocked):
		http.Error(w, "This link is locked due to too many invalid attempts.", http.StatusLocked)
	default:
		h.log.Error("redemption failed", zap.Error(err))
		http.Error(w, "Internal error.", http.StatusInternalServerError)
	}
}

// clientIP returns the observed peer address without the port. RealIP
// middleware has already substituted forwarded headers where present.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
