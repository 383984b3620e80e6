package actors

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mikepea/roster/pkg/roster/auth"
	"github.com/mikepea/roster/pkg/roster/models"
	"gorm.io/gorm"
)

// Handler handles actor requests
type Handler struct {
	db *gorm.DB
}

// NewHandler creates a new actors handler
func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

// CreateActorRequest represents the request to create an actor
type CreateActorRequest struct {
	Name string `json:"name" binding:"required"`
	Type string `json:"type" binding:"required,oneof=character npc vehicle group"`
	Pack string `json:"pack"`
}

// List returns actors, world actors only unless ?pack= is given
func (h *Handler) List(c *gin.Context) {
	ctx := c.Request.Context()
	actorType := c.Query("type")

	pack := c.Query("pack")
	if pack == "" {
		world, err := LoadWorld(ctx, h.db)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch actors"})
			return
		}
		out := make([]*Actor, 0, world.Len())
		for _, a := range world.All() {
			if actorType == "" || a.Type == actorType {
				out = append(out, a)
			}
		}
		c.JSON(http.StatusOK, out)
		return
	}

	query := h.db.WithContext(ctx).Order("name ASC").Order("id ASC").Where("pack = ?", pack)
	if actorType != "" {
		query = query.Where("type = ?", actorType)
	}

	var rows []models.Actor
	if err := query.Find(&rows).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch actors"})
		return
	}

	out := make([]Actor, len(rows))
	for i, row := range rows {
		out[i] = FromModel(row)
	}
	c.JSON(http.StatusOK, out)
}

// Get returns a single actor
func (h *Handler) Get(c *gin.Context) {
	actor, err := Find(c.Request.Context(), h.db, c.Param("id"))
	if err == ErrNotFound {
		c.JSON(http.StatusNotFound, gin.H{"error": "Actor not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch actor"})
		return
	}
	c.JSON(http.StatusOK, actor)
}

// Create creates a new actor (gamemaster only)
func (h *Handler) Create(c *gin.Context) {
	var req CreateActorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	row := models.Actor{
		ID:   uuid.NewString(),
		Name: req.Name,
		Type: req.Type,
		Pack: req.Pack,
	}
	if err := h.db.WithContext(c.Request.Context()).Create(&row).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create actor"})
		return
	}

	c.JSON(http.StatusCreated, FromModel(row))
}

// Delete deletes an actor (gamemaster only). Group member lists that
// reference the actor are left alone; the dangling entry is dropped the
// next time the group is prepared.
func (h *Handler) Delete(c *gin.Context) {
	result := h.db.WithContext(c.Request.Context()).Delete(&models.Actor{}, "id = ?", c.Param("id"))
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete actor"})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Actor not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Actor deleted"})
}

// RegisterRoutes registers actor routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.GET("/:id", h.Get)
	rg.POST("", auth.RequireGamemaster(), h.Create)
	rg.DELETE("/:id", auth.RequireGamemaster(), h.Delete)
}
