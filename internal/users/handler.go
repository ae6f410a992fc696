package users

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"jobboard-backend/internal/shared/server/middleware"
	"jobboard-backend/internal/shared/server/respond"
)

type Handler struct {
	Svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/user")
	g.POST("/", h.create)
	g.POST("/verify-email/", h.verifyEmail)
	g.PUT("/", middleware.RequireUser(), h.update)
	g.GET("/me/", middleware.RequireUser(), h.me)
}

type verifyEmailRequest struct {
	Token string `json:"token" binding:"required"`
}

func (h *Handler) create(c *gin.Context) {
	var req CreateInput
	if !respond.Bind(c, &req) {
		return
	}
	user, err := h.Svc.Create(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	respond.Created(c, user.Output())
}

func (h *Handler) verifyEmail(c *gin.Context) {
	var req verifyEmailRequest
	if !respond.Bind(c, &req) {
		return
	}
	if _, err := h.Svc.VerifyEmail(c.Request.Context(), req.Token); err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, gin.H{"status": true})
}

func (h *Handler) update(c *gin.Context) {
	var req UpdateInput
	if !respond.Bind(c, &req) {
		return
	}
	user, err := h.Svc.Update(c.Request.Context(), middleware.UserIDFromContext(c), req)
	if err != nil {
		writeError(c, err)
		return
	}
	respond.Created(c, user.Output())
}

func (h *Handler) me(c *gin.Context) {
	user, err := h.Svc.GetByID(c.Request.Context(), middleware.UserIDFromContext(c))
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, user.Output())
}

// WriteError maps users errors onto the HTTP envelope. Other packages reuse it
// for token flows.
func WriteError(c *gin.Context, err error) {
	writeError(c, err)
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		respond.NotFound(c)
	case errors.Is(err, ErrCreate):
		respond.Error(c, http.StatusBadRequest, "create_failed", MsgCreateFailed, nil)
	case errors.Is(err, ErrInvalidInput):
		respond.Error(c, http.StatusUnprocessableEntity, "validation_error", respond.MsgValidation, gin.H{"detail": err.Error()})
	case errors.Is(err, ErrTokenNotFound):
		respond.Error(c, http.StatusBadRequest, "token_not_found", MsgTokenNotFound, nil)
	case errors.Is(err, ErrTokenExhausted):
		respond.Error(c, http.StatusBadRequest, "token_expired", MsgTokenExhausted, nil)
	default:
		respond.Internal(c, err)
	}
}
