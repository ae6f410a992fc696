package interview

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"jobboard-backend/internal/shared/server/middleware"
	"jobboard-backend/internal/shared/server/respond"
	"jobboard-backend/internal/shared/storage/repo"
	"jobboard-backend/internal/vacancies"
)

const maxImportSize = 5 << 20

type Handler struct {
	Svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/interview")

	user := g.Group("", middleware.RequireUser(), middleware.RequireVerified())
	user.POST("/chat/", h.createChat)
	user.GET("/chat/", h.listChats)
	user.GET("/chat/:id/", h.getChat)
	user.PUT("/chat/:id/", h.updateChat)
	user.DELETE("/chat/:id/", h.deleteChat)
	user.GET("/q/:chat_id/", h.nextQuestion)
	user.POST("/a/:chat_id/", h.answer)

	admin := g.Group("/questions", middleware.RequireUser(), middleware.RequireAdmin())
	admin.GET("/", h.listQuestions)
	admin.POST("/", h.createQuestion)
	admin.POST("/import/", h.importQuestions)
}

func (h *Handler) createChat(c *gin.Context) {
	var req ChatInput
	if !respond.Bind(c, &req) {
		return
	}
	out, err := h.Svc.CreateChat(c.Request.Context(), middleware.UserIDFromContext(c), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.Set(middleware.ChatIDKey, out.ID)
	respond.Created(c, out)
}

func (h *Handler) listChats(c *gin.Context) {
	items, err := h.Svc.ListChats(c.Request.Context(), middleware.UserIDFromContext(c))
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, gin.H{"items": items})
}

func (h *Handler) getChat(c *gin.Context) {
	c.Set(middleware.ChatIDKey, c.Param("id"))
	out, err := h.Svc.Chat(c.Request.Context(), middleware.UserIDFromContext(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, out)
}

func (h *Handler) updateChat(c *gin.Context) {
	c.Set(middleware.ChatIDKey, c.Param("id"))
	var req UpdateChatInput
	if !respond.Bind(c, &req) {
		return
	}
	out, err := h.Svc.UpdateChat(c.Request.Context(), middleware.UserIDFromContext(c), c.Param("id"), req)
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, out)
}

func (h *Handler) deleteChat(c *gin.Context) {
	c.Set(middleware.ChatIDKey, c.Param("id"))
	if err := h.Svc.DeleteChat(c.Request.Context(), middleware.UserIDFromContext(c), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	respond.NoContent(c)
}

func (h *Handler) nextQuestion(c *gin.Context) {
	c.Set(middleware.ChatIDKey, c.Param("chat_id"))
	out, err := h.Svc.NextQuestion(c.Request.Context(), middleware.UserIDFromContext(c), c.Param("chat_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, out)
}

func (h *Handler) answer(c *gin.Context) {
	c.Set(middleware.ChatIDKey, c.Param("chat_id"))
	var req AnswerInput
	if !respond.Bind(c, &req) {
		return
	}
	out, err := h.Svc.Answer(c.Request.Context(), middleware.UserIDFromContext(c), c.Param("chat_id"), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.Set(middleware.AnswerIDKey, out.ID)
	respond.Created(c, out)
}

var questionConverters = map[string]repo.Converter{}

func (h *Handler) listQuestions(c *gin.Context) {
	page, ok := vacancies.PageParam(c)
	if !ok {
		return
	}
	filters, err := repo.FiltersFromQuery(c.Request.URL.Query(), questionConverters, "page")
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "bad_filter", respond.MsgBadRequest, gin.H{"detail": err.Error()})
		return
	}
	items, pag, err := h.Svc.ListQuestions(c.Request.Context(), filters, page)
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, gin.H{"questions": items, "pagination": pag})
}

func (h *Handler) createQuestion(c *gin.Context) {
	var req QuestionInput
	if !respond.Bind(c, &req) {
		return
	}
	out, err := h.Svc.CreateQuestion(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	respond.Created(c, out)
}

func (h *Handler) importQuestions(c *gin.Context) {
	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxImportSize))
	if err != nil {
		respond.BadRequest(c, respond.MsgBadRequest)
		return
	}
	res, err := h.Svc.ImportQuestions(c.Request.Context(), raw)
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, res)
}

func writeError(c *gin.Context, err error) {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		respond.Error(c, http.StatusUnprocessableEntity, "validation_error", respond.MsgValidation, verr.Details)
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrInvalidConfig):
		respond.Error(c, http.StatusUnprocessableEntity, "validation_error", respond.MsgValidation, gin.H{"detail": err.Error()})
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrQuestionNotFound), errors.Is(err, ErrAnswerNotFound):
		respond.NotFound(c)
	case errors.Is(err, ErrNoQuestions):
		respond.Error(c, http.StatusNotFound, "no_questions", msgNoQuestions, nil)
	case errors.Is(err, ErrForbidden):
		respond.Error(c, http.StatusForbidden, "forbidden", msgForbidden, nil)
	case errors.Is(err, repo.ErrConflict), errors.Is(err, repo.ErrIntegrity):
		respond.Error(c, http.StatusBadRequest, "create_failed", "Ошибка создания объекта", nil)
	case errors.Is(err, repo.ErrUnknownColumn):
		respond.Error(c, http.StatusBadRequest, "bad_filter", respond.MsgBadRequest, gin.H{"detail": err.Error()})
	default:
		respond.Internal(c, err)
	}
}
