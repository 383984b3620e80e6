package groups

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/roster/pkg/roster/actors"
	"github.com/mikepea/roster/pkg/roster/auth"
	"github.com/mikepea/roster/pkg/roster/documents"
	"github.com/mikepea/roster/pkg/roster/group"
	"github.com/mikepea/roster/pkg/roster/settings"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Handler handles group-related requests
type Handler struct {
	db       *gorm.DB
	store    *documents.Store
	settings *settings.Store
	logger   *zap.Logger
}

// NewHandler creates a new groups handler
func NewHandler(db *gorm.DB, store *documents.Store, prefs *settings.Store, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{db: db, store: store, settings: prefs, logger: logger}
}

// CreateGroupRequest represents the request to create a group
type CreateGroupRequest struct {
	Name        string            `json:"name" binding:"required"`
	Type        string            `json:"type"`
	Description group.Description `json:"description"`
	Movement    group.Movement    `json:"movement"`
	Members     []string          `json:"members"` // actor ids
}

// UpdateGroupRequest represents the request to update a group. Only the
// fields present are changed, down to single description texts and
// movement speeds. Currency replaces the whole purse.
type UpdateGroupRequest struct {
	Name        *string            `json:"name"`
	Type        *string            `json:"type"`
	Description *DescriptionUpdate `json:"description"`
	Movement    *MovementUpdate    `json:"movement"`
	Currency    *group.Currency    `json:"currency"`
}

// DescriptionUpdate carries the description texts to change
type DescriptionUpdate struct {
	Full    *string `json:"full"`
	Summary *string `json:"summary"`
}

// MovementUpdate carries the movement speeds to change
type MovementUpdate struct {
	Land  *float64 `json:"land"`
	Water *float64 `json:"water"`
	Air   *float64 `json:"air"`
}

func (r UpdateGroupRequest) changes() group.Changes {
	changes := group.Changes{}
	if r.Name != nil {
		changes[group.PathName] = *r.Name
	}
	if r.Type != nil {
		changes[group.PathTypeValue] = *r.Type
	}
	if d := r.Description; d != nil {
		if d.Full != nil {
			changes[group.PathDescriptionFull] = *d.Full
		}
		if d.Summary != nil {
			changes[group.PathDescriptionSummary] = *d.Summary
		}
	}
	if m := r.Movement; m != nil {
		for key, v := range map[string]*float64{"land": m.Land, "water": m.Water, "air": m.Air} {
			if v != nil {
				changes[group.PathMovement+"."+key] = *v
			}
		}
	}
	if r.Currency != nil {
		changes[group.PathCurrency] = *r.Currency
	}
	return changes
}

// GroupResponse represents a group in API responses
type GroupResponse struct {
	*group.Group
	PrimaryParty bool `json:"primary_party"`
}

func (h *Handler) respond(c *gin.Context, status int, g *group.Group) {
	primary, err := h.settings.PrimaryParty(c.Request.Context())
	if err != nil {
		h.logger.Error("read primary party", zap.Error(err))
	}
	c.JSON(status, GroupResponse{Group: g, PrimaryParty: primary != "" && primary == g.ID})
}

// fail maps an error from the group or storage layer to a response
func (h *Handler) fail(c *gin.Context, err error, action string) {
	switch {
	case errors.Is(err, group.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, documents.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Group not found"})
	case errors.Is(err, actors.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Actor not found"})
	default:
		h.logger.Error("group request failed", zap.String("action", action), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to " + action})
	}
}

// List returns all groups, optionally filtered by ?type=
func (h *Handler) List(c *gin.Context) {
	list, err := h.store.ListGroups(c.Request.Context())
	if err != nil {
		h.fail(c, err, "fetch groups")
		return
	}

	primary, _ := h.settings.PrimaryParty(c.Request.Context())
	filter := c.Query("type")
	out := make([]GroupResponse, 0, len(list))
	for _, g := range list {
		if filter != "" && g.Source.Type.Value != filter {
			continue
		}
		out = append(out, GroupResponse{Group: g, PrimaryParty: primary != "" && primary == g.ID})
	}

	c.JSON(http.StatusOK, out)
}

// Create creates a new group (gamemaster only)
func (h *Handler) Create(c *gin.Context) {
	var req CreateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	data := group.SystemData{
		Description: req.Description,
		Members:     make([]group.MemberEntry, 0, len(req.Members)),
	}
	data.Type.Value = req.Type
	data.Attributes.Movement = req.Movement
	for _, id := range req.Members {
		data.Members = append(data.Members, group.MemberEntry{ActorRef: actors.NewRef(id), Quantity: 1})
	}

	g, err := h.store.CreateGroup(c.Request.Context(), req.Name, data)
	if err != nil {
		h.fail(c, err, "create group")
		return
	}

	h.respond(c, http.StatusCreated, g)
}

// Get returns a specific group
func (h *Handler) Get(c *gin.Context) {
	g, err := h.store.Group(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err, "fetch group")
		return
	}

	h.respond(c, http.StatusOK, g)
}

// Update updates a group's fields
func (h *Handler) Update(c *gin.Context) {
	var req UpdateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sessionID, _ := auth.GetSessionID(c)
	g, err := h.store.UpdateGroup(c.Request.Context(), sessionID, c.Param("id"), req.changes())
	if err != nil {
		h.fail(c, err, "update group")
		return
	}

	h.respond(c, http.StatusOK, g)
}

// Delete deletes a group (gamemaster only). Deleting the primary party
// clears the primary party setting.
func (h *Handler) Delete(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")

	if err := h.store.DeleteGroup(ctx, id); err != nil {
		h.fail(c, err, "delete group")
		return
	}

	if primary, err := h.settings.PrimaryParty(ctx); err == nil && primary == id {
		if err := h.settings.ClearPrimaryParty(ctx); err != nil {
			h.logger.Error("clear primary party", zap.String("group", id), zap.Error(err))
		}
	}

	c.JSON(http.StatusOK, gin.H{"message": "Group deleted"})
}

// RegisterRoutes registers group routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.POST("", auth.RequireGamemaster(), h.Create)
	rg.GET("/:id", h.Get)
	rg.PUT("/:id", h.Update)
	rg.DELETE("/:id", auth.RequireGamemaster(), h.Delete)
	rg.POST("/:id/members", h.AddMember)
	rg.DELETE("/:id/members", h.RemoveMember)
	rg.DELETE("/:id/members/:actorId", h.RemoveMember)
}
