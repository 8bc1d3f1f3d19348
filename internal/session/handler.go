package session

import (
	"bytes"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"cv-parser/internal/batch"
	"cv-parser/internal/extraction"
	"cv-parser/internal/results"
	"cv-parser/internal/resume"
	"cv-parser/internal/shared/server/middleware"
	"cv-parser/internal/shared/server/respond"
)

// HandlerConfig carries request limits and defaults.
type HandlerConfig struct {
	TopSkills      int
	CSVRowLimit    int
	MaxUploadBytes int64
}

// Handler exposes sessions over HTTP.
type Handler struct {
	registry  *Registry
	processor *batch.Processor
	documents batch.DocumentExtractor
	cfg       HandlerConfig
}

// NewHandler wires the HTTP surface.
func NewHandler(registry *Registry, processor *batch.Processor, documents batch.DocumentExtractor, cfg HandlerConfig) *Handler {
	if cfg.TopSkills <= 0 {
		cfg.TopSkills = results.DefaultTopK
	}
	if cfg.CSVRowLimit <= 0 {
		cfg.CSVRowLimit = 5
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 10 << 20
	}
	return &Handler{registry: registry, processor: processor, documents: documents, cfg: cfg}
}

// RegisterRoutes mounts session routes under the given group.
func (h *Handler) RegisterRoutes(api *gin.RouterGroup) {
	api.POST("/sessions", h.create)
	s := api.Group("/sessions/:id")
	s.PUT("/credential", h.setCredential)
	s.POST("/text", h.extractText)
	s.POST("/pdf", h.extractPDF)
	s.POST("/files", h.extractFiles)
	s.POST("/csv", h.extractCSV)
	s.GET("/records", h.records)
	s.GET("/stats", h.stats)
	s.GET("/progress", h.progress)
	s.GET("/export", h.export)
	s.DELETE("", h.reset)
}

// IsExtractRoute reports whether a request triggers completion calls, for rate limiting.
func IsExtractRoute(c *gin.Context) bool {
	if c.Request.Method != http.MethodPost {
		return false
	}
	switch c.FullPath() {
	case "/api/v1/sessions/:id/text", "/api/v1/sessions/:id/pdf", "/api/v1/sessions/:id/files", "/api/v1/sessions/:id/csv":
		return true
	}
	return false
}

type credentialRequest struct {
	APIKey string `json:"api_key"`
}

type textRequest struct {
	Text string `json:"text"`
}

type batchResponse struct {
	Records  []resume.Record `json:"records"`
	Progress Progress        `json:"progress"`
}

func (h *Handler) create(c *gin.Context) {
	s := h.registry.Create()
	middleware.SetSessionID(c, s.ID)
	respond.JSON(c, http.StatusCreated, gin.H{
		"id":                 s.ID,
		"idle_ttl_seconds":   int(h.registry.TTL().Seconds()),
		"has_credential":     false,
		"default_top_skills": h.cfg.TopSkills,
	})
}

func (h *Handler) setCredential(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	var req credentialRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.APIKey) == "" {
		respond.Error(c, http.StatusBadRequest, "credential_required", "api_key is required", nil)
		return
	}
	s.SetCredential(req.APIKey)
	c.Status(http.StatusNoContent)
}

func (h *Handler) extractText(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	var req textRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "invalid_request", "body must be JSON with a text field", nil)
		return
	}
	h.run(c, s, []batch.Item{{Text: req.Text}})
}

func (h *Handler) extractPDF(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	files, ok := h.uploadedFiles(c, "file", 1)
	if !ok {
		return
	}
	h.run(c, s, batch.FromDocuments(c.Request.Context(), h.documents, files))
}

func (h *Handler) extractFiles(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	files, ok := h.uploadedFiles(c, "files", 0)
	if !ok {
		return
	}
	h.run(c, s, batch.FromDocuments(c.Request.Context(), h.documents, files))
}

func (h *Handler) extractCSV(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	limit := h.cfg.CSVRowLimit
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			respond.Error(c, http.StatusBadRequest, "invalid_limit", batch.ErrInvalidLimit.Error(), nil)
			return
		}
		limit = n
	}
	files, ok := h.uploadedFiles(c, "file", 1)
	if !ok {
		return
	}
	items, err := batch.ReadCSV(bytes.NewReader(files[0].Data), files[0].Name, limit)
	if err != nil {
		switch {
		case errors.Is(err, batch.ErrMissingColumn):
			respond.Error(c, http.StatusBadRequest, "missing_column", err.Error(), gin.H{"column": batch.ResumeColumn})
		case errors.Is(err, batch.ErrInvalidLimit):
			respond.Error(c, http.StatusBadRequest, "invalid_limit", err.Error(), nil)
		case errors.Is(err, batch.ErrNoRows):
			respond.Error(c, http.StatusBadRequest, "no_rows", err.Error(), nil)
		default:
			respond.Error(c, http.StatusBadRequest, "invalid_csv", "could not read csv", nil)
		}
		return
	}
	h.run(c, s, items)
}

func (h *Handler) run(c *gin.Context, s *Session, items []batch.Item) {
	if !s.HasCredential() {
		respond.Error(c, http.StatusBadRequest, "credential_required", extraction.ErrMissingCredential.Error(), nil)
		return
	}
	records, err := s.Run(c.Request.Context(), h.processor, items)
	switch {
	case errors.Is(err, ErrBusy):
		respond.Error(c, http.StatusConflict, "batch_in_progress", err.Error(), nil)
		return
	case errors.Is(err, extraction.ErrMissingCredential):
		respond.Error(c, http.StatusBadRequest, "credential_required", err.Error(), nil)
		return
	case err != nil:
		respond.Error(c, http.StatusConflict, "batch_abandoned", "batch stopped before completion", gin.H{"completed": len(records), "total": len(items)})
		return
	}
	respond.OK(c, batchResponse{Records: records, Progress: s.Progress()})
}

func (h *Handler) records(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	all := s.Results().All()
	respond.OK(c, gin.H{"records": all, "count": len(all)})
}

func (h *Handler) stats(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	top := h.cfg.TopSkills
	if raw := strings.TrimSpace(c.Query("top")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			respond.Error(c, http.StatusBadRequest, "invalid_top", "top must be a non-negative integer", nil)
			return
		}
		top = n
	}
	respond.OK(c, s.Results().Stats(top))
}

func (h *Handler) progress(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	respond.OK(c, s.Progress())
}

func (h *Handler) export(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	format, err := results.ParseFormat(c.DefaultQuery("format", string(results.FormatJSON)))
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "unknown_format", "format must be json or csv", nil)
		return
	}
	data, err := s.Results().Export(format)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "export_failed", "could not encode export", nil)
		return
	}
	respond.Attachment(c, format.FileName(), format.ContentType(), data)
}

func (h *Handler) reset(c *gin.Context) {
	id := c.Param("id")
	middleware.SetSessionID(c, id)
	if err := h.registry.Delete(id); err != nil {
		respond.Error(c, http.StatusNotFound, "session_not_found", err.Error(), nil)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) session(c *gin.Context) (*Session, bool) {
	id := c.Param("id")
	middleware.SetSessionID(c, id)
	s, err := h.registry.Get(id)
	if err != nil {
		respond.Error(c, http.StatusNotFound, "session_not_found", err.Error(), nil)
		return nil, false
	}
	return s, true
}

// uploadedFiles reads multipart files from field. maxFiles of zero means no cap on count.
func (h *Handler) uploadedFiles(c *gin.Context, field string, maxFiles int) ([]batch.File, bool) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.cfg.MaxUploadBytes)
	form, err := c.MultipartForm()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			respond.Error(c, http.StatusRequestEntityTooLarge, "payload_too_large", "upload exceeds size limit", gin.H{"maxBytes": h.cfg.MaxUploadBytes})
			return nil, false
		}
		respond.Error(c, http.StatusBadRequest, "invalid_upload", "expected multipart form upload", nil)
		return nil, false
	}
	headers := form.File[field]
	if len(headers) == 0 {
		respond.Error(c, http.StatusBadRequest, "file_required", "missing form file field "+field, nil)
		return nil, false
	}
	if maxFiles > 0 && len(headers) > maxFiles {
		respond.Error(c, http.StatusBadRequest, "too_many_files", "expected a single file in field "+field, nil)
		return nil, false
	}
	files := make([]batch.File, 0, len(headers))
	for _, fh := range headers {
		data, err := readPart(fh)
		if err != nil {
			respond.Error(c, http.StatusBadRequest, "invalid_upload", "could not read uploaded file", nil)
			return nil, false
		}
		files = append(files, batch.File{Name: fh.Filename, Data: data})
	}
	return files, true
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
