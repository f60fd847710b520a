package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-token-nosql/internal/application/dispatch"
	"github.com/go-token-nosql/internal/application/verification"
	"github.com/go-token-nosql/internal/domain"
	"github.com/go-token-nosql/internal/transport/http/middleware"
)

type issueFunc func(ctx context.Context, u *domain.User, ch domain.Channel) (dispatch.Expiry, error)

// VerificationHandler serves the email and phone ownership flows.
// Each method is bound to one channel at route registration.
type VerificationHandler struct {
	svc verification.Service
}

func NewVerificationHandler(svc verification.Service) *VerificationHandler {
	return &VerificationHandler{svc: svc}
}

func (h *VerificationHandler) Send(ch domain.Channel) http.HandlerFunc {
	return h.issue(ch, h.svc.RequestVerification)
}

func (h *VerificationHandler) Resend(ch domain.Channel) http.HandlerFunc {
	return h.issue(ch, h.svc.ResendVerification)
}

func (h *VerificationHandler) issue(ch domain.Channel, op issueFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, ok := middleware.UserFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		exp, err := op(r.Context(), u, ch)
		if err != nil {
			httpError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, MessageEnvelope{
			Success:  true,
			Message:  fmt.Sprintf("verification %s sent", noun(ch)),
			ExpireAt: &exp,
		})
	}
}

func (h *VerificationHandler) Confirm(ch domain.Channel) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h.svc.ConfirmVerification(r.Context(), ch, chi.URLParam(r, "token")); err != nil {
			httpError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, MessageEnvelope{
			Success: true,
			Message: fmt.Sprintf("%s verified", contact(ch)),
		})
	}
}

func noun(ch domain.Channel) string {
	if ch == domain.ChannelSMS {
		return "sms"
	}
	return "email"
}

func contact(ch domain.Channel) string {
	if ch == domain.ChannelSMS {
		return "phone number"
	}
	return "email"
}
