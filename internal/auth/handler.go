package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	sharedauth "jobboard-backend/internal/shared/auth"
	"jobboard-backend/internal/shared/server/middleware"
	"jobboard-backend/internal/shared/server/respond"
	"jobboard-backend/internal/users"
)

// ProfileLookup supplies the person names shown by /auth/user/my/.
type ProfileLookup interface {
	ProfileNames(ctx context.Context, userID string) (first, last, patronymic string, err error)
}

type Handler struct {
	Svc      *Service
	Profiles ProfileLookup
}

func NewHandler(svc *Service, profiles ProfileLookup) *Handler {
	return &Handler{Svc: svc, Profiles: profiles}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/auth")
	g.POST("/login/", h.login)
	g.POST("/token/refresh/", h.refresh)
	g.GET("/user/my/", middleware.RequireUser(), h.current)
	g.POST("/password-reset/", h.passwordReset)
	g.POST("/password-recovery/", h.passwordRecovery)
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type refreshRequest struct {
	Token string `json:"token" binding:"required"`
}

type resetRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type recoveryRequest struct {
	Token    string `json:"token" binding:"required"`
	Password string `json:"password" binding:"required,max=64"`
}

type currentUser struct {
	ID         string `json:"id"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Patronymic string `json:"patronymic"`
	Email      string `json:"email"`
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if !respond.Bind(c, &req) {
		return
	}
	pair, err := h.Svc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, pair)
}

func (h *Handler) refresh(c *gin.Context) {
	var req refreshRequest
	if !respond.Bind(c, &req) {
		return
	}
	pair, err := h.Svc.Refresh(c.Request.Context(), req.Token)
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, pair)
}

func (h *Handler) current(c *gin.Context) {
	p, _ := middleware.PrincipalFromContext(c)
	out := currentUser{ID: p.ID, Email: p.Email}
	if h.Profiles != nil {
		first, last, patronymic, err := h.Profiles.ProfileNames(c.Request.Context(), p.ID)
		if err != nil {
			respond.Internal(c, err)
			return
		}
		out.FirstName, out.LastName, out.Patronymic = first, last, patronymic
	}
	respond.OK(c, out)
}

func (h *Handler) passwordReset(c *gin.Context) {
	var req resetRequest
	if !respond.Bind(c, &req) {
		return
	}
	status, err := h.Svc.RequestPasswordReset(c.Request.Context(), req.Email)
	if err != nil {
		respond.Internal(c, err)
		return
	}
	respond.OK(c, gin.H{"status": status})
}

func (h *Handler) passwordRecovery(c *gin.Context) {
	var req recoveryRequest
	if !respond.Bind(c, &req) {
		return
	}
	if err := h.Svc.RecoverPassword(c.Request.Context(), req.Token, req.Password); err != nil {
		users.WriteError(c, err)
		return
	}
	respond.OK(c, gin.H{"status": true})
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, sharedauth.ErrBadCredentials):
		respond.Error(c, http.StatusBadRequest, "bad_credentials", msgBadCredentials, gin.H{"title": respond.MsgUnauthorized})
	case errors.Is(err, ErrUnknownUser):
		respond.Error(c, http.StatusUnauthorized, "bad_credentials", msgBadCredentials, nil)
	case errors.Is(err, ErrInvalidToken):
		respond.Error(c, http.StatusUnauthorized, "invalid_token", msgInvalidToken, nil)
	default:
		respond.Internal(c, err)
	}
}
