package admin

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/roster/pkg/roster/auth"
	"github.com/mikepea/roster/pkg/roster/models"
	"github.com/mikepea/roster/pkg/roster/sessions"
	"gorm.io/gorm"
)

// Handler handles user administration for gamemasters
type Handler struct {
	db       *gorm.DB
	sessions *sessions.Registry
}

// NewHandler creates a new admin handler
func NewHandler(db *gorm.DB, registry *sessions.Registry) *Handler {
	return &Handler{db: db, sessions: registry}
}

// UserResponse represents user data in admin responses
type UserResponse struct {
	ID        uint   `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	Role      string `json:"role"`
	CreatedAt string `json:"created_at"`
	Sessions  int    `json:"sessions"`
}

// UpdateUserRequest represents the request to update a user
type UpdateUserRequest struct {
	Name *string `json:"name"`
	Role *string `json:"role"`
}

// StatsResponse represents world statistics
type StatsResponse struct {
	TotalUsers     int64  `json:"total_users"`
	Gamemasters    int64  `json:"gamemasters"`
	WorldActors    int64  `json:"world_actors"`
	PackActors     int64  `json:"pack_actors"`
	TotalGroups    int64  `json:"total_groups"`
	Connected      int    `json:"connected_sessions"`
	PrimarySession string `json:"primary_session,omitempty"`
	PrimaryUserID  uint   `json:"primary_user_id,omitempty"`
}

func (h *Handler) toResponse(user models.User) UserResponse {
	n := 0
	for _, s := range h.sessions.List() {
		if s.UserID == user.ID {
			n++
		}
	}
	return UserResponse{
		ID:        user.ID,
		Email:     user.Email,
		Name:      user.Name,
		Role:      string(user.Role),
		CreatedAt: user.CreatedAt.Format("2006-01-02T15:04:05Z"),
		Sessions:  n,
	}
}

func (h *Handler) findUser(c *gin.Context) (models.User, bool) {
	var user models.User
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return user, false
	}
	if err := h.db.First(&user, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return user, false
	}
	return user, true
}

// ListUsers returns all users
func (h *Handler) ListUsers(c *gin.Context) {
	var users []models.User

	query := h.db.Order("id ASC")

	// Optional search by email or name
	if search := c.Query("q"); search != "" {
		query = query.Where("email LIKE ? OR name LIKE ?", "%"+search+"%", "%"+search+"%")
	}

	// Optional filter by role
	if role := c.Query("role"); role != "" {
		query = query.Where("role = ?", role)
	}

	if err := query.Find(&users).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch users"})
		return
	}

	responses := make([]UserResponse, len(users))
	for i, user := range users {
		responses[i] = h.toResponse(user)
	}

	c.JSON(http.StatusOK, responses)
}

// GetUser returns a single user by ID
func (h *Handler) GetUser(c *gin.Context) {
	user, ok := h.findUser(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, h.toResponse(user))
}

// UpdateUser updates a user's name or role. Changing a role ends the
// user's sessions so their next login carries the new role; this can
// move primary authority to another gamemaster.
func (h *Handler) UpdateUser(c *gin.Context) {
	user, ok := h.findUser(c)
	if !ok {
		return
	}

	var req UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Prevent a gamemaster from demoting themselves
	currentUserID, _ := auth.GetUserID(c)
	if user.ID == currentUserID && req.Role != nil && *req.Role != string(models.RoleGamemaster) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Cannot demote yourself"})
		return
	}

	updates := make(map[string]interface{})
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	roleChanged := false
	if req.Role != nil {
		role := models.UserRole(*req.Role)
		if role != models.RoleGamemaster && role != models.RolePlayer {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid role"})
			return
		}
		roleChanged = role != user.Role
		updates["role"] = role
	}

	if len(updates) > 0 {
		if err := h.db.Model(&user).Updates(updates).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update user"})
			return
		}
	}
	if roleChanged {
		h.sessions.DisconnectUser(user.ID)
	}

	// Reload user
	h.db.First(&user, user.ID)

	c.JSON(http.StatusOK, h.toResponse(user))
}

// DeleteUser soft-deletes a user and ends their sessions
func (h *Handler) DeleteUser(c *gin.Context) {
	user, ok := h.findUser(c)
	if !ok {
		return
	}

	// Prevent a gamemaster from deleting themselves
	currentUserID, _ := auth.GetUserID(c)
	if user.ID == currentUserID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Cannot delete yourself"})
		return
	}

	if err := h.db.Delete(&user).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete user"})
		return
	}
	h.sessions.DisconnectUser(user.ID)

	c.JSON(http.StatusOK, gin.H{"message": "User deleted successfully"})
}

// GetStats returns world statistics
func (h *Handler) GetStats(c *gin.Context) {
	var stats StatsResponse

	h.db.Model(&models.User{}).Count(&stats.TotalUsers)
	h.db.Model(&models.User{}).Where("role = ?", models.RoleGamemaster).Count(&stats.Gamemasters)
	h.db.Model(&models.Actor{}).Where("pack = ?", "").Count(&stats.WorldActors)
	h.db.Model(&models.Actor{}).Where("pack <> ?", "").Count(&stats.PackActors)
	h.db.Model(&models.Group{}).Count(&stats.TotalGroups)

	stats.Connected = len(h.sessions.List())
	if primary, ok := h.sessions.Primary(); ok {
		stats.PrimarySession = primary.ID
		stats.PrimaryUserID = primary.UserID
	}

	c.JSON(http.StatusOK, stats)
}

// RegisterRoutes registers admin routes on the given router group
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/stats", h.GetStats)
	rg.GET("/users", h.ListUsers)
	rg.GET("/users/:id", h.GetUser)
	rg.PUT("/users/:id", h.UpdateUser)
	rg.DELETE("/users/:id", h.DeleteUser)
}
