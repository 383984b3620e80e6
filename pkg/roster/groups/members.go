package groups

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/roster/pkg/roster/actors"
	"github.com/mikepea/roster/pkg/roster/auth"
	"github.com/mikepea/roster/pkg/roster/group"
)

// AddMemberRequest represents the request to add an actor to a group
type AddMemberRequest struct {
	ActorID string `json:"actor_id" binding:"required"`
}

// RemoveMemberRequest names the member to remove. Actor may be an id or an
// object carrying "id" or "_id".
type RemoveMemberRequest struct {
	Actor any `json:"actor"`
}

// AddMember adds an actor to a group
func (h *Handler) AddMember(c *gin.Context) {
	var req AddMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	actor, err := actors.Find(ctx, h.db, req.ActorID)
	if err != nil {
		h.fail(c, err, "fetch actor")
		return
	}

	sessionID, _ := auth.GetSessionID(c)
	g, err := h.store.Modify(ctx, sessionID, c.Param("id"), func(g *group.Group, u group.Updater) (*group.Group, error) {
		return g.AddMember(ctx, u, actor)
	})
	if err != nil {
		h.fail(c, err, "add member")
		return
	}

	h.respond(c, http.StatusOK, g)
}

// RemoveMember removes an actor from a group. The actor comes from the
// :actorId path parameter or, without one, from the request body.
func (h *Handler) RemoveMember(c *gin.Context) {
	var target group.Identifier
	if id := c.Param("actorId"); id != "" {
		target = actors.ID(id)
	} else {
		var req RemoveMemberRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		parsed, err := group.ParseTarget(req.Actor)
		if err != nil {
			h.fail(c, err, "remove member")
			return
		}
		target = parsed
	}

	ctx := c.Request.Context()
	sessionID, _ := auth.GetSessionID(c)
	g, err := h.store.Modify(ctx, sessionID, c.Param("id"), func(g *group.Group, u group.Updater) (*group.Group, error) {
		return g.RemoveMember(ctx, u, target)
	})
	if err != nil {
		h.fail(c, err, "remove member")
		return
	}

	h.respond(c, http.StatusOK, g)
}
