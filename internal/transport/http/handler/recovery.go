package handler

import (
	"context"
	"net/http"

	"github.com/go-token-nosql/internal/application/dispatch"
	"github.com/go-token-nosql/internal/application/recovery"
	"github.com/go-token-nosql/internal/domain"
	"github.com/go-token-nosql/internal/transport/http/middleware"
)

// RecoveryHandler serves the password reset flows.
type RecoveryHandler struct {
	svc recovery.Service
}

func NewRecoveryHandler(svc recovery.Service) *RecoveryHandler {
	return &RecoveryHandler{svc: svc}
}

// Send issues a reset code over ch for the account named in the body.
func (h *RecoveryHandler) Send(ch domain.Channel) http.HandlerFunc {
	return h.issue(ch, h.svc.RequestOTP)
}

// Resend reuses a live reset code or issues a new one.
func (h *RecoveryHandler) Resend(ch domain.Channel) http.HandlerFunc {
	return h.issue(ch, h.svc.ResendOTP)
}

func (h *RecoveryHandler) issue(ch domain.Channel, op func(context.Context, recovery.Identifier) (dispatch.Expiry, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req domain.OTPRequest
		if !decode(w, r, &req) {
			return
		}
		id := recovery.Identifier{Email: req.Email}
		if ch == domain.ChannelSMS {
			id = recovery.Identifier{PhoneNumber: req.PhoneNumber}
		}
		exp, err := op(r.Context(), id)
		if err != nil {
			httpError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, MessageEnvelope{Success: true, Message: "otp sent", ExpireAt: &exp})
	}
}

// BeforeLogin redeems a reset code and sets a new password.
func (h *RecoveryHandler) BeforeLogin(w http.ResponseWriter, r *http.Request) {
	var req domain.ResetPasswordRequest
	if !decode(w, r, &req) {
		return
	}
	id := recovery.Identifier{Email: req.Email, PhoneNumber: req.PhoneNumber}
	if err := h.svc.RedeemOTPAndSetPassword(r.Context(), id, req.OTP, req.NewPassword); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Success: true, Message: "password updated"})
}

// AfterLogin changes the password of the authenticated user, using the OTP
// path when a code is supplied and the current password otherwise.
func (h *RecoveryHandler) AfterLogin(w http.ResponseWriter, r *http.Request) {
	u, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req domain.ChangePasswordRequest
	if !decode(w, r, &req) {
		return
	}
	var err error
	if req.OTP != "" {
		err = h.svc.ChangePasswordViaOTP(r.Context(), u, req.OTP, req.NewPassword)
	} else {
		err = h.svc.ChangePassword(r.Context(), u, req.CurrentPassword, req.NewPassword)
	}
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Success: true, Message: "password updated"})
}
