package vacancies

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"jobboard-backend/internal/shared/server/middleware"
	"jobboard-backend/internal/shared/server/respond"
	"jobboard-backend/internal/shared/storage/repo"
)

var queryConverters = map[string]repo.Converter{
	"salary_from": repo.Int,
	"salary_to":   repo.Int,
	"is_publish":  repo.Bool,
}

type Handler struct {
	Svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/job/vacancy")
	g.GET("/", h.list)
	g.GET("/selectors/", h.selectors)
	g.GET("/:id/", h.get)
	g.POST("/", middleware.RequireUser(), h.create)
	g.PUT("/:id/", middleware.RequireUser(), h.update)
	g.DELETE("/:id/", middleware.RequireUser(), h.delete)
}

func (h *Handler) list(c *gin.Context) {
	page, ok := PageParam(c)
	if !ok {
		return
	}
	filters, err := repo.FiltersFromQuery(c.Request.URL.Query(), queryConverters, "page")
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "bad_filter", respond.MsgBadRequest, gin.H{"detail": err.Error()})
		return
	}
	items, pag, err := h.Svc.List(c.Request.Context(), filters, page)
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, gin.H{"vacancies": items, "pagination": pag})
}

func (h *Handler) selectors(c *gin.Context) {
	respond.OK(c, h.Svc.Selectors())
}

func (h *Handler) get(c *gin.Context) {
	out, err := h.Svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, out)
}

func (h *Handler) create(c *gin.Context) {
	var req CreateInput
	if !respond.Bind(c, &req) {
		return
	}
	out, err := h.Svc.Create(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	respond.Created(c, out)
}

func (h *Handler) update(c *gin.Context) {
	var req CreateInput
	if !respond.Bind(c, &req) {
		return
	}
	out, err := h.Svc.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		writeError(c, err)
		return
	}
	respond.Created(c, out)
}

func (h *Handler) delete(c *gin.Context) {
	if err := h.Svc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	respond.NoContent(c)
}

// PageParam reads ?page=N (default 1); a non-numeric page is a 400.
func PageParam(c *gin.Context) (int, bool) {
	raw := c.Query("page")
	if raw == "" {
		return 1, true
	}
	page, err := strconv.Atoi(raw)
	if err != nil || page < 1 {
		respond.Error(c, http.StatusUnprocessableEntity, "validation_error", respond.MsgValidation, gin.H{"page": "must be a positive integer"})
		return 0, false
	}
	return page, true
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		respond.NotFound(c)
	case errors.Is(err, ErrConflict), errors.Is(err, repo.ErrIntegrity):
		respond.Error(c, http.StatusBadRequest, "create_failed", msgCreateFailed, nil)
	case errors.Is(err, repo.ErrUnknownColumn):
		respond.Error(c, http.StatusBadRequest, "bad_filter", respond.MsgBadRequest, gin.H{"detail": err.Error()})
	default:
		respond.Internal(c, err)
	}
}
