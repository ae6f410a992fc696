package resumes

import (
	"errors"
	"io"
	"mime"
	"net/http"

	"github.com/gin-gonic/gin"

	"jobboard-backend/internal/shared/server/middleware"
	"jobboard-backend/internal/shared/server/respond"
	"jobboard-backend/internal/shared/storage/repo"
	"jobboard-backend/internal/shared/telemetry"
	"jobboard-backend/internal/vacancies"
)

var queryConverters = map[string]repo.Converter{
	"is_publish": repo.Bool,
}

type Handler struct {
	Svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/job")
	g.GET("/resume/", h.list)
	g.POST("/resume/", middleware.RequireUser(), h.create)
	g.GET("/resume/:id/", h.get)
	g.POST("/resume/:id/file/", middleware.RequireUser(), h.upload)
	g.GET("/resume/:id/file/", h.download)

	g.POST("/employee/", middleware.RequireUser(), h.saveEmployee)
	g.GET("/employee/me/", middleware.RequireUser(), h.me)
	g.POST("/employer/", middleware.RequireUser(), h.linkEmployer)
}

func (h *Handler) list(c *gin.Context) {
	page, ok := vacancies.PageParam(c)
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
	respond.OK(c, gin.H{"resumes": items, "pagination": pag})
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
	out, err := h.Svc.Create(c.Request.Context(), middleware.UserIDFromContext(c), req)
	if err != nil {
		writeError(c, err)
		return
	}
	respond.Created(c, out)
}

func (h *Handler) upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxFileSize+1<<20)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		respond.Error(c, http.StatusUnprocessableEntity, "validation_error", respond.MsgValidation, gin.H{"file": "required"})
		return
	}
	if fileHeader.Size > MaxFileSize {
		respond.Error(c, http.StatusRequestEntityTooLarge, "file_too_large", "Файл слишком большой", nil)
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		respond.BadRequest(c, "unable to read file")
		return
	}
	defer file.Close()

	out, err := h.Svc.AttachFile(c.Request.Context(), middleware.UserIDFromContext(c), c.Param("id"), fileHeader.Filename, file)
	if err != nil {
		writeError(c, err)
		return
	}
	respond.Created(c, out)
}

func (h *Handler) download(c *gin.Context) {
	rc, meta, err := h.Svc.File(c.Request.Context(), middleware.UserIDFromContext(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	defer rc.Close()

	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": meta.Name}))
	c.Header("Content-Type", meta.MIME)
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, rc); err != nil {
		telemetry.Warn("resume.file_stream_failed", map[string]any{"resume_id": c.Param("id"), "error": err})
	}
}

func (h *Handler) saveEmployee(c *gin.Context) {
	var req EmployeeInput
	if !respond.Bind(c, &req) {
		return
	}
	out, err := h.Svc.SaveEmployee(c.Request.Context(), middleware.UserIDFromContext(c), req)
	if err != nil {
		writeError(c, err)
		return
	}
	respond.Created(c, out)
}

func (h *Handler) me(c *gin.Context) {
	e, err := h.Svc.Employee(c.Request.Context(), middleware.UserIDFromContext(c))
	if err != nil {
		if errors.Is(err, ErrNoEmployee) {
			respond.NotFound(c)
			return
		}
		writeError(c, err)
		return
	}
	respond.OK(c, e.Output())
}

func (h *Handler) linkEmployer(c *gin.Context) {
	var req EmployerInput
	if !respond.Bind(c, &req) {
		return
	}
	out, err := h.Svc.LinkEmployer(c.Request.Context(), middleware.UserIDFromContext(c), req)
	if err != nil {
		writeError(c, err)
		return
	}
	respond.Created(c, out)
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrCompanyNotFound), errors.Is(err, ErrNoFile):
		respond.NotFound(c)
	case errors.Is(err, ErrNoEmployee):
		respond.Error(c, http.StatusBadRequest, "profile_required", msgNoEmployee, nil)
	case errors.Is(err, ErrForbidden):
		respond.Error(c, http.StatusForbidden, "forbidden", msgForbidden, nil)
	case errors.Is(err, ErrUnsupportedFile):
		respond.Error(c, http.StatusUnsupportedMediaType, "unsupported_file", msgUnsupported, nil)
	case errors.Is(err, ErrInvalidInput):
		respond.Error(c, http.StatusUnprocessableEntity, "validation_error", respond.MsgValidation, gin.H{"detail": err.Error()})
	case errors.Is(err, repo.ErrConflict), errors.Is(err, repo.ErrIntegrity):
		respond.Error(c, http.StatusBadRequest, "create_failed", "Ошибка создания объекта", nil)
	case errors.Is(err, repo.ErrUnknownColumn):
		respond.Error(c, http.StatusBadRequest, "bad_filter", respond.MsgBadRequest, gin.H{"detail": err.Error()})
	default:
		respond.Internal(c, err)
	}
}
