package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/roster/pkg/roster/models"
	"github.com/mikepea/roster/pkg/roster/sessions"
	"gorm.io/gorm"
)

// Handler handles authentication requests
type Handler struct {
	db       *gorm.DB
	tokens   *Tokens
	sessions *sessions.Registry
}

// NewHandler creates a new auth handler
func NewHandler(db *gorm.DB, tokens *Tokens, registry *sessions.Registry) *Handler {
	return &Handler{db: db, tokens: tokens, sessions: registry}
}

// RegisterRequest represents the registration request body
type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Name     string `json:"name" binding:"required"`
}

// LoginRequest represents the login request body
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// AuthResponse represents the authentication response
type AuthResponse struct {
	Token     string       `json:"token"`
	SessionID string       `json:"session_id"`
	User      UserResponse `json:"user"`
}

// UserResponse represents user data in responses
type UserResponse struct {
	ID    uint   `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

// SessionResponse represents a connected session
type SessionResponse struct {
	sessions.Session
	Primary bool `json:"primary"`
}

func toUserResponse(user models.User) UserResponse {
	return UserResponse{
		ID:    user.ID,
		Email: user.Email,
		Name:  user.Name,
		Role:  string(user.Role),
	}
}

// startSession connects a new session for the user and issues its token
func (h *Handler) startSession(user models.User) (AuthResponse, error) {
	session := h.sessions.Connect(user.ID, user.Role == models.RoleGamemaster)
	token, err := h.tokens.Generate(user.ID, user.Email, string(user.Role), session.ID)
	if err != nil {
		h.sessions.Disconnect(session.ID)
		return AuthResponse{}, err
	}
	return AuthResponse{Token: token, SessionID: session.ID, User: toUserResponse(user)}, nil
}

// Register handles user registration. The first user of a world becomes
// its gamemaster.
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Check if email already exists
	var existingUser models.User
	if err := h.db.Where("email = ?", req.Email).First(&existingUser).Error; err == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "Email already registered"})
		return
	}

	hashedPassword, err := HashPassword(req.Password)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process password"})
		return
	}

	user := models.User{
		Email:        req.Email,
		PasswordHash: hashedPassword,
		Name:         req.Name,
		Role:         models.RolePlayer,
	}

	err = h.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.User{}).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			user.Role = models.RoleGamemaster
		}
		return tx.Create(&user).Error
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create user"})
		return
	}

	resp, err := h.startSession(user)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// Login handles user login and connects a new session
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var user models.User
	if err := h.db.Where("email = ?", req.Email).First(&user).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
		return
	}

	if !CheckPassword(req.Password, user.PasswordHash) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
		return
	}

	resp, err := h.startSession(user)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Me returns the current authenticated user
func (h *Handler) Me(c *gin.Context) {
	userID, exists := GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	var user models.User
	if err := h.db.First(&user, userID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	c.JSON(http.StatusOK, toUserResponse(user))
}

// Logout disconnects the caller's session; its token stops working
func (h *Handler) Logout(c *gin.Context) {
	sessionID, _ := GetSessionID(c)
	h.sessions.Disconnect(sessionID)
	c.JSON(http.StatusOK, gin.H{"message": "Logged out successfully"})
}

// Sessions lists the connected sessions and marks the primary one
func (h *Handler) Sessions(c *gin.Context) {
	list := h.sessions.List()
	out := make([]SessionResponse, len(list))
	for i, s := range list {
		out[i] = SessionResponse{Session: s, Primary: h.sessions.IsPrimary(s.ID)}
	}
	c.JSON(http.StatusOK, out)
}

// RegisterRoutes registers auth routes on the given router group
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	authenticated := AuthMiddleware(h.tokens, h.sessions)
	rg.POST("/register", h.Register)
	rg.POST("/login", h.Login)
	rg.POST("/logout", authenticated, h.Logout)
	rg.GET("/me", authenticated, h.Me)
	rg.GET("/sessions", authenticated, h.Sessions)
}
