package handler

import (
	"net/http"

	"github.com/go-token-nosql/internal/application/user"
	"github.com/go-token-nosql/internal/domain"
	"github.com/go-token-nosql/internal/transport/http/middleware"
)

// UserHandler handles account and profile endpoints.
type UserHandler struct {
	svc user.Service
}

func NewUserHandler(svc user.Service) *UserHandler { return &UserHandler{svc: svc} }

func (h *UserHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req domain.SignupRequest
	if !decode(w, r, &req) {
		return
	}
	u, bearer, err := h.svc.Signup(r.Context(), req)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, AuthEnvelope{Success: true, Bearer: bearer, User: u})
}

func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if !decode(w, r, &req) {
		return
	}
	u, bearer, err := h.svc.Login(r.Context(), req)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, AuthEnvelope{Success: true, Bearer: bearer, User: u})
}

func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	u, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	writeJSON(w, http.StatusOK, UserEnvelope{Success: true, User: u})
}

// Search lists other users, filtered by the optional search query parameter.
func (h *UserHandler) Search(w http.ResponseWriter, r *http.Request) {
	u, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	users, err := h.svc.Search(r.Context(), u, r.URL.Query().Get("search"))
	if err != nil {
		httpError(w, err)
		return
	}
	if users == nil {
		users = []domain.User{}
	}
	writeJSON(w, http.StatusOK, UserListEnvelope{Success: true, TotalUsers: len(users), Users: users})
}

func (h *UserHandler) UpdateName(w http.ResponseWriter, r *http.Request) {
	var req domain.UpdateNameRequest
	h.update(w, r, &req, func(u *domain.User) (*domain.User, error) {
		return h.svc.UpdateName(r.Context(), u, req.Name)
	})
}

func (h *UserHandler) UpdateEmail(w http.ResponseWriter, r *http.Request) {
	var req domain.UpdateEmailRequest
	h.update(w, r, &req, func(u *domain.User) (*domain.User, error) {
		return h.svc.UpdateEmail(r.Context(), u, req.Email)
	})
}

func (h *UserHandler) UpdatePhoneNumber(w http.ResponseWriter, r *http.Request) {
	var req domain.UpdatePhoneNumberRequest
	h.update(w, r, &req, func(u *domain.User) (*domain.User, error) {
		return h.svc.UpdatePhoneNumber(r.Context(), u, req.PhoneNumber)
	})
}

func (h *UserHandler) UpdateAvatar(w http.ResponseWriter, r *http.Request) {
	var req domain.UpdateAvatarRequest
	h.update(w, r, &req, func(u *domain.User) (*domain.User, error) {
		return h.svc.UpdateAvatar(r.Context(), u, req.Avatar)
	})
}

// update decodes req, then runs op against the authenticated user.
func (h *UserHandler) update(w http.ResponseWriter, r *http.Request, req interface{}, op func(*domain.User) (*domain.User, error)) {
	u, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if !decode(w, r, req) {
		return
	}
	updated, err := op(u)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, UserEnvelope{Success: true, User: updated, Message: "user updated"})
}
