package cases

import (
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"assessment-backend/internal/report"
	"assessment-backend/internal/shared/server/middleware"
	"assessment-backend/internal/shared/server/respond"
)

const maxUploadSize = 20 << 20 // 20MB per request

// Handler wires HTTP handlers to the case service.
type Handler struct {
	Svc     *Service
	Watcher *Watcher
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service, watcher *Watcher) *Handler {
	return &Handler{Svc: svc, Watcher: watcher}
}

// RegisterRoutes attaches case routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/cases", h.create)
	rg.GET("/cases", h.list)
	rg.GET("/cases/watch", h.watch)
	rg.GET("/cases/:id", h.get)
	rg.DELETE("/cases/:id", h.delete)
	rg.POST("/cases/:id/documents", h.upload)
	rg.POST("/cases/:id/process", h.process)
	rg.GET("/cases/:id/report", h.report)
	rg.GET("/cases/:id/report/:section", h.reportSection)
}

func (h *Handler) create(c *gin.Context) {
	var in CreateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respond.Error(c, http.StatusBadRequest, ErrorCodeValidation, "invalid request body", nil)
		return
	}
	created, err := h.Svc.Create(requestContext(c), in)
	if err != nil {
		writeError(c, err, "failed to create case")
		return
	}
	respond.JSON(c, http.StatusCreated, created)
}

func (h *Handler) list(c *gin.Context) {
	list, err := h.Svc.List(requestContext(c), c.Query("moduleType"))
	if err != nil {
		writeError(c, err, "failed to list cases")
		return
	}
	respond.OK(c, list)
}

func (h *Handler) get(c *gin.Context) {
	found, err := h.Svc.Resolve(requestContext(c), c.Param("id"))
	if err != nil {
		writeError(c, err, "failed to fetch case")
		return
	}
	respond.OK(c, found)
}

func (h *Handler) delete(c *gin.Context) {
	if err := h.Svc.Delete(requestContext(c), c.Param("id")); err != nil {
		writeError(c, err, "failed to delete case")
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadSize)
	form, err := c.MultipartForm()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, ErrorCodeValidation, "multipart form is required", nil)
		return
	}
	headers := append(form.File["file"], form.File["files"]...)
	if len(headers) == 0 {
		respond.Error(c, http.StatusBadRequest, ErrorCodeValidation, "file is required", []map[string]string{
			{"field": "file", "issue": "missing"},
		})
		return
	}

	uploaded := make([]Document, 0, len(headers))
	for _, fh := range headers {
		doc, err := h.uploadOne(c, fh)
		if err != nil {
			writeError(c, err, "failed to upload document")
			return
		}
		uploaded = append(uploaded, doc)
	}
	respond.JSON(c, http.StatusCreated, gin.H{"documents": uploaded})
}

func (h *Handler) uploadOne(c *gin.Context, fh *multipart.FileHeader) (Document, error) {
	file, err := fh.Open()
	if err != nil {
		return Document{}, ErrInvalidInput
	}
	defer file.Close()
	return h.Svc.Upload(requestContext(c), c.Param("id"), fh.Filename, file)
}

func (h *Handler) process(c *gin.Context) {
	wait, _ := strconv.ParseBool(c.Query("wait"))
	result, err := h.Svc.Start(requestContext(c), c.Param("id"), wait)
	if err != nil {
		var trunc *StorageTruncationError
		if errors.As(err, &trunc) {
			respond.Error(c, http.StatusInternalServerError, ErrorCodeIntegrity,
				"The analysis completed but the stored report could not be verified. Please contact support.",
				gin.H{"caseId": trunc.CaseID, "status": result.Status})
			return
		}
		writeError(c, err, "failed to process case")
		return
	}
	if wait {
		respond.OK(c, result)
		return
	}
	respond.JSON(c, http.StatusAccepted, gin.H{
		"caseId": result.ID,
		"status": StatusProcessing,
	})
}

type reportResponse struct {
	CaseID       string          `json:"caseId"`
	Status       Status          `json:"status"`
	ErrorMessage string          `json:"errorMessage,omitempty"`
	Sections     report.Sections `json:"sections"`
}

func (h *Handler) report(c *gin.Context) {
	found, err := h.Svc.Resolve(requestContext(c), c.Param("id"))
	if err != nil {
		writeError(c, err, "failed to fetch report")
		return
	}
	respond.OK(c, reportResponse{
		CaseID:       found.ID,
		Status:       found.Status,
		ErrorMessage: failureMessage(found),
		Sections:     report.Parse(markdownOf(found)),
	})
}

func (h *Handler) reportSection(c *gin.Context) {
	found, err := h.Svc.Resolve(requestContext(c), c.Param("id"))
	if err != nil {
		writeError(c, err, "failed to fetch report")
		return
	}
	name := c.Param("section")
	sections := report.Parse(markdownOf(found))
	md, err := report.SectionMarkdown(sections, name)
	if err != nil {
		respond.Error(c, http.StatusNotFound, ErrorCodeNotFound, "unknown report section", gin.H{"allowed": report.SectionNames})
		return
	}
	html, err := report.RenderSection(sections, name)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, ErrorCodeInternal, "failed to render report section", nil)
		return
	}
	respond.OK(c, gin.H{
		"caseId":   found.ID,
		"section":  name,
		"markdown": md,
		"html":     html,
	})
}

func (h *Handler) watch(c *gin.Context) {
	if h.Watcher == nil {
		respond.Error(c, http.StatusNotImplemented, ErrorCodeInternal, "case watching is not enabled", nil)
		return
	}
	moduleType := c.Query("moduleType")
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	h.Watcher.Subscribe(c.Request.Context(), moduleType, func(list []AssessmentCase) {
		c.SSEvent("cases", list)
		c.Writer.Flush()
	})
}

func markdownOf(c AssessmentCase) string {
	if c.AnalysisResult == nil {
		return ""
	}
	return c.AnalysisResult.MarkdownReport
}

// failureMessage picks the human-readable explanation for a failed case.
func failureMessage(c AssessmentCase) string {
	if c.ProcessingError != "" {
		return c.ProcessingError
	}
	if c.AnalysisResult != nil && !c.AnalysisResult.Succeeded() {
		return c.AnalysisResult.ErrorMessage
	}
	return ""
}

func requestContext(c *gin.Context) context.Context {
	return WithRequestID(c.Request.Context(), middleware.RequestIDFromContext(c))
}

func writeError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, ErrorCodeNotFound, "case not found", nil)
	case errors.Is(err, ErrInvalidInput):
		respond.Error(c, http.StatusBadRequest, ErrorCodeValidation, err.Error(), nil)
	case errors.Is(err, ErrNoFiles):
		respond.Error(c, http.StatusBadRequest, ErrorCodeValidation, "upload at least one document before processing", nil)
	case errors.Is(err, ErrCaseBusy):
		respond.Error(c, http.StatusConflict, ErrorCodeConflict, "case is being processed", nil)
	case errors.Is(err, ErrInvalidTransition):
		respond.Error(c, http.StatusConflict, ErrorCodeConflict, "case cannot be processed in its current state", nil)
	default:
		respond.Error(c, http.StatusInternalServerError, ErrorCodeInternal, fallback, nil)
	}
}
