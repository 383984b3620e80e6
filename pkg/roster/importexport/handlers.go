package importexport

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/roster/pkg/roster/auth"
	"go.uber.org/zap"
)

// Handler handles import/export requests
type Handler struct {
	service *Service
	logger  *zap.Logger
}

// NewHandler creates a new import/export handler
func NewHandler(service *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{service: service, logger: logger}
}

// Import imports a bundle of groups (gamemaster only). The body is YAML
// when the content type says so and JSON otherwise.
func (h *Handler) Import(c *gin.Context) {
	b, err := Decode(c.Request.Body, FormatFor(c.ContentType()))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.service.Import(c.Request.Context(), b)
	if err != nil {
		h.logger.Error("import failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to import groups"})
		return
	}

	c.JSON(http.StatusOK, result)
}

// Export exports every group. ?format=yaml selects YAML and
// ?download=true asks the browser to save the file.
func (h *Handler) Export(c *gin.Context) {
	b, err := h.service.Export(c.Request.Context())
	if err != nil {
		h.logger.Error("export failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch groups"})
		return
	}

	format := FormatJSON
	if c.Query("format") == string(FormatYAML) {
		format = FormatYAML
	}

	if c.Query("download") == "true" {
		c.Header("Content-Disposition", "attachment; filename=roster-export."+string(format))
	}

	if format == FormatYAML {
		c.Header("Content-Type", "application/yaml; charset=utf-8")
		c.Status(http.StatusOK)
		if err := Encode(c.Writer, b, FormatYAML); err != nil {
			h.logger.Error("write yaml export", zap.Error(err))
		}
		return
	}
	c.JSON(http.StatusOK, b)
}

// RegisterRoutes registers import/export routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/import", auth.RequireGamemaster(), h.Import)
	rg.GET("/export", h.Export)
}
