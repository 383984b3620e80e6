package groups

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/roster/pkg/roster/auth"
	"github.com/mikepea/roster/pkg/roster/group"
	"github.com/mikepea/roster/pkg/roster/settings"
	"go.uber.org/zap"
)

// PrimaryPartyRequest sets or clears the primary party. A null actor
// clears it.
type PrimaryPartyRequest struct {
	Actor *string `json:"actor"`
}

// GetPrimaryParty returns the primary party setting
func (h *Handler) GetPrimaryParty(c *gin.Context) {
	id, err := h.settings.PrimaryParty(c.Request.Context())
	if err != nil {
		h.fail(c, err, "read primary party")
		return
	}

	c.JSON(http.StatusOK, settings.PrimaryParty{Actor: nullable(id)})
}

// SetPrimaryParty designates a party group as the primary party (gamemaster only)
func (h *Handler) SetPrimaryParty(c *gin.Context) {
	var req PrimaryPartyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	id := ""
	if req.Actor != nil && *req.Actor != "" {
		g, err := h.store.Group(ctx, *req.Actor)
		if err != nil {
			h.fail(c, err, "fetch group")
			return
		}
		if g.Source.Type.Value != group.TypeParty {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Only a party group can be the primary party"})
			return
		}
		id = g.ID
	}

	if err := h.settings.SetPrimaryParty(ctx, id); err != nil {
		h.fail(c, err, "update primary party")
		return
	}

	userID, _ := auth.GetUserID(c)
	h.logger.Info("primary party set", zap.String("group", id), zap.Uint("user", userID))
	c.JSON(http.StatusOK, settings.PrimaryParty{Actor: nullable(id)})
}

// RegisterSettingsRoutes registers the primary party setting routes
func (h *Handler) RegisterSettingsRoutes(rg *gin.RouterGroup) {
	rg.GET("/primary-party", h.GetPrimaryParty)
	rg.PUT("/primary-party", auth.RequireGamemaster(), h.SetPrimaryParty)
}

func nullable(id string) *string {
	if id == "" {
		return nil
	}
	return &id
}
