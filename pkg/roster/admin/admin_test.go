package admin

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/roster/pkg/roster/auth"
	"github.com/mikepea/roster/pkg/roster/models"
	"github.com/mikepea/roster/pkg/roster/sessions"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)

	if err := models.AutoMigrate(db); err != nil {
		t.Fatalf("Failed to migrate: %v", err)
	}

	return db
}

// setupTestRouter acts as the given user without going through login
func setupTestRouter(db *gorm.DB, registry *sessions.Registry, currentUserID uint) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	rg := r.Group("/admin", func(c *gin.Context) {
		c.Set(auth.ContextKeyUserID, currentUserID)
		c.Set(auth.ContextKeyRole, string(models.RoleGamemaster))
		c.Next()
	})
	NewHandler(db, registry).RegisterRoutes(rg)
	return r
}

func createTestUser(t *testing.T, db *gorm.DB, email, name string, role models.UserRole) *models.User {
	user := &models.User{
		Email:        email,
		Name:         name,
		PasswordHash: "x",
		Role:         role,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}
	return user
}

func TestListUsers(t *testing.T) {
	db := setupTestDB(t)
	registry := sessions.NewRegistry()

	gm := createTestUser(t, db, "gm@test.com", "Game Master", models.RoleGamemaster)
	createTestUser(t, db, "user1@test.com", "User One", models.RolePlayer)
	createTestUser(t, db, "user2@test.com", "User Two", models.RolePlayer)
	registry.Connect(gm.ID, true)
	r := setupTestRouter(db, registry, gm.ID)

	tests := []struct {
		query string
		want  int
	}{
		{"", 3},
		{"?role=player", 2},
		{"?q=One", 1},
	}
	for _, tt := range tests {
		req := httptest.NewRequest("GET", "/admin/users"+tt.query, nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d", w.Code)
		}
		var users []UserResponse
		json.Unmarshal(w.Body.Bytes(), &users)
		if len(users) != tt.want {
			t.Errorf("%q: expected %d users, got %d", tt.query, tt.want, len(users))
		}
	}

	req := httptest.NewRequest("GET", fmt.Sprintf("/admin/users/%d", gm.ID), nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var user UserResponse
	json.Unmarshal(w.Body.Bytes(), &user)
	if user.Sessions != 1 {
		t.Errorf("Expected 1 session, got %d", user.Sessions)
	}
}

func TestGetUserInvalidID(t *testing.T) {
	db := setupTestDB(t)
	r := setupTestRouter(db, sessions.NewRegistry(), 1)

	for path, want := range map[string]int{
		"/admin/users/abc": http.StatusBadRequest,
		"/admin/users/99":  http.StatusNotFound,
	} {
		req := httptest.NewRequest("GET", path, nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != want {
			t.Errorf("%s: expected status %d, got %d", path, want, w.Code)
		}
	}
}

func TestPromotePlayerEndsSessions(t *testing.T) {
	db := setupTestDB(t)
	registry := sessions.NewRegistry()

	gm := createTestUser(t, db, "gm@test.com", "Game Master", models.RoleGamemaster)
	player := createTestUser(t, db, "player@test.com", "Player", models.RolePlayer)
	registry.Connect(gm.ID, true)
	registry.Connect(player.ID, false)
	r := setupTestRouter(db, registry, gm.ID)

	body, _ := json.Marshal(UpdateUserRequest{Role: strPtr("gamemaster")})
	req := httptest.NewRequest("PUT", fmt.Sprintf("/admin/users/%d", player.ID), bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp UserResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Role != "gamemaster" {
		t.Errorf("Expected role gamemaster, got %s", resp.Role)
	}
	if resp.Sessions != 0 {
		t.Errorf("Expected player sessions to be ended, got %d", resp.Sessions)
	}
	if len(registry.List()) != 1 {
		t.Errorf("Expected only the gamemaster session to remain, got %d", len(registry.List()))
	}
}

func TestUpdateUserRejections(t *testing.T) {
	db := setupTestDB(t)
	registry := sessions.NewRegistry()

	gm := createTestUser(t, db, "gm@test.com", "Game Master", models.RoleGamemaster)
	player := createTestUser(t, db, "player@test.com", "Player", models.RolePlayer)
	r := setupTestRouter(db, registry, gm.ID)

	tests := []struct {
		name   string
		userID uint
		role   string
	}{
		{"demote self", gm.ID, "player"},
		{"unknown role", player.ID, "admin"},
	}
	for _, tt := range tests {
		body, _ := json.Marshal(UpdateUserRequest{Role: strPtr(tt.role)})
		req := httptest.NewRequest("PUT", fmt.Sprintf("/admin/users/%d", tt.userID), bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: expected status 400, got %d", tt.name, w.Code)
		}
	}
}

func TestDeleteUser(t *testing.T) {
	db := setupTestDB(t)
	registry := sessions.NewRegistry()

	gm := createTestUser(t, db, "gm@test.com", "Game Master", models.RoleGamemaster)
	player := createTestUser(t, db, "player@test.com", "Player", models.RolePlayer)
	registry.Connect(player.ID, false)
	r := setupTestRouter(db, registry, gm.ID)

	req := httptest.NewRequest("DELETE", fmt.Sprintf("/admin/users/%d", gm.ID), nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 deleting self, got %d", w.Code)
	}

	req = httptest.NewRequest("DELETE", fmt.Sprintf("/admin/users/%d", player.ID), nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var count int64
	db.Model(&models.User{}).Count(&count)
	if count != 1 {
		t.Errorf("Expected 1 user left, got %d", count)
	}
	if len(registry.List()) != 0 {
		t.Errorf("Expected player session to be ended")
	}
}

func TestGetStats(t *testing.T) {
	db := setupTestDB(t)
	registry := sessions.NewRegistry()

	gm := createTestUser(t, db, "gm@test.com", "Game Master", models.RoleGamemaster)
	createTestUser(t, db, "player@test.com", "Player", models.RolePlayer)
	db.Create(&models.Actor{ID: "a", Name: "Aria", Type: "character"})
	db.Create(&models.Actor{ID: "p", Name: "Goblin", Type: "npc", Pack: "monsters"})
	db.Create(&models.Group{ID: "g", Name: "Heroes"})
	session := registry.Connect(gm.ID, true)
	r := setupTestRouter(db, registry, gm.ID)

	req := httptest.NewRequest("GET", "/admin/stats", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var stats StatsResponse
	json.Unmarshal(w.Body.Bytes(), &stats)

	if stats.TotalUsers != 2 || stats.Gamemasters != 1 {
		t.Errorf("Unexpected user counts: %+v", stats)
	}
	if stats.WorldActors != 1 || stats.PackActors != 1 || stats.TotalGroups != 1 {
		t.Errorf("Unexpected world counts: %+v", stats)
	}
	if stats.Connected != 1 || stats.PrimarySession != session.ID {
		t.Errorf("Unexpected session stats: %+v", stats)
	}
}

func strPtr(s string) *string {
	return &s
}
