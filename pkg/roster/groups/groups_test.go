package groups

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/roster/pkg/roster/actors"
	"github.com/mikepea/roster/pkg/roster/auth"
	"github.com/mikepea/roster/pkg/roster/documents"
	"github.com/mikepea/roster/pkg/roster/group"
	"github.com/mikepea/roster/pkg/roster/models"
	"github.com/mikepea/roster/pkg/roster/sessions"
	"github.com/mikepea/roster/pkg/roster/settings"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const testSecret = "roster-test-secret"

type testEnv struct {
	db       *gorm.DB
	router   *gin.Engine
	store    *documents.Store
	settings *settings.Store
	registry *sessions.Registry
	tokens   *auth.Tokens
}

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	if err := models.AutoMigrate(db); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}
	return db
}

func setupTestEnv(t *testing.T) *testEnv {
	gin.SetMode(gin.TestMode)
	db := setupTestDB(t)
	registry := sessions.NewRegistry()
	tokens := auth.NewTokens(testSecret, time.Hour)
	prefs := settings.NewStore(db)
	store := documents.NewStore(db, registry, nil)
	store.OnUpdate(group.PrimaryPartyReaction(prefs, registry, nil))

	r := gin.New()
	api := r.Group("/api")
	api.Use(auth.AuthMiddleware(tokens, registry))
	handler := NewHandler(db, store, prefs, nil)
	handler.RegisterRoutes(api.Group("/groups"))
	handler.RegisterSettingsRoutes(api.Group("/settings"))

	for _, a := range []models.Actor{
		{ID: "a", Name: "Aria", Type: actors.TypeCharacter},
		{ID: "b", Name: "Bram", Type: actors.TypeCharacter},
		{ID: "g", Name: "Rivals", Type: actors.TypeGroup},
		{ID: "p", Name: "Pack Goblin", Type: actors.TypeNPC, Pack: "monsters"},
	} {
		if err := db.Create(&a).Error; err != nil {
			t.Fatalf("Failed to create actor: %v", err)
		}
	}

	return &testEnv{db: db, router: r, store: store, settings: prefs, registry: registry, tokens: tokens}
}

// login connects a session for a new user and returns its bearer token
func (e *testEnv) login(t *testing.T, email string, role models.UserRole) (string, sessions.Session) {
	user := models.User{Email: email, PasswordHash: "x", Name: email, Role: role}
	if err := e.db.Create(&user).Error; err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}
	session := e.registry.Connect(user.ID, role == models.RoleGamemaster)
	token, err := e.tokens.Generate(user.ID, user.Email, string(role), session.ID)
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}
	return token, session
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("Failed to encode body: %v", err)
		}
	}
	req, _ := http.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp := httptest.NewRecorder()
	e.router.ServeHTTP(resp, req)
	return resp
}

type groupJSON struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	PrimaryParty bool   `json:"primary_party"`
	System       struct {
		Type struct {
			Value string `json:"value"`
		} `json:"type"`
		Description group.Description `json:"description"`
		Members     []struct {
			ActorRef *string `json:"actor_ref"`
			Quantity int     `json:"quantity"`
		} `json:"members"`
		Attributes struct {
			Movement struct {
				Land  float64 `json:"land"`
				Water float64 `json:"water"`
			} `json:"movement"`
		} `json:"attributes"`
	} `json:"system"`
	Members []struct {
		ActorRef string `json:"actor_ref"`
	} `json:"members"`
}

func decodeGroup(t *testing.T, resp *httptest.ResponseRecorder) groupJSON {
	var g groupJSON
	if err := json.Unmarshal(resp.Body.Bytes(), &g); err != nil {
		t.Fatalf("Failed to decode group: %v: %s", err, resp.Body.String())
	}
	return g
}

func (e *testEnv) createParty(t *testing.T, token string, members ...string) groupJSON {
	resp := e.do(t, "POST", "/api/groups", token, CreateGroupRequest{Name: "Heroes", Type: group.TypeParty, Members: members})
	if resp.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", resp.Code, resp.Body.String())
	}
	return decodeGroup(t, resp)
}

func TestCreateGroup(t *testing.T) {
	env := setupTestEnv(t)
	gm, _ := env.login(t, "gm@example.com", models.RoleGamemaster)

	g := env.createParty(t, gm, "a", "missing", "a")

	if g.ID == "" {
		t.Error("Expected group ID")
	}
	if g.System.Type.Value != group.TypeParty {
		t.Errorf("Expected type party, got %s", g.System.Type.Value)
	}
	if len(g.System.Members) != 3 {
		t.Errorf("Expected 3 stored members, got %d", len(g.System.Members))
	}
	if len(g.Members) != 1 || g.Members[0].ActorRef != "a" {
		t.Errorf("Expected prepared members [a], got %+v", g.Members)
	}
}

func TestCreateGroupRequiresGamemaster(t *testing.T) {
	env := setupTestEnv(t)
	player, _ := env.login(t, "player@example.com", models.RolePlayer)

	resp := env.do(t, "POST", "/api/groups", player, CreateGroupRequest{Name: "Heroes"})
	if resp.Code != http.StatusForbidden {
		t.Errorf("Expected status 403, got %d", resp.Code)
	}
}

func TestGroupsRequireAuth(t *testing.T) {
	env := setupTestEnv(t)

	resp := env.do(t, "GET", "/api/groups", "", nil)
	if resp.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", resp.Code)
	}
}

func TestListGroupsFiltersByType(t *testing.T) {
	env := setupTestEnv(t)
	gm, _ := env.login(t, "gm@example.com", models.RoleGamemaster)

	env.createParty(t, gm)
	resp := env.do(t, "POST", "/api/groups", gm, CreateGroupRequest{Name: "Ambush", Type: "encounter"})
	if resp.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d", resp.Code)
	}

	resp = env.do(t, "GET", "/api/groups?type=party", gm, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.Code)
	}
	var list []groupJSON
	json.Unmarshal(resp.Body.Bytes(), &list)
	if len(list) != 1 || list[0].Name != "Heroes" {
		t.Errorf("Expected only Heroes, got %+v", list)
	}

	resp = env.do(t, "GET", "/api/groups", gm, nil)
	json.Unmarshal(resp.Body.Bytes(), &list)
	if len(list) != 2 {
		t.Errorf("Expected 2 groups, got %d", len(list))
	}
}

func TestListGroupsWithUnreadableRow(t *testing.T) {
	env := setupTestEnv(t)
	gm, _ := env.login(t, "gm@example.com", models.RoleGamemaster)
	env.createParty(t, gm)

	if err := env.db.Create(&models.Group{ID: "corrupt", Name: "Corrupt", System: "[]"}).Error; err != nil {
		t.Fatalf("Failed to create group row: %v", err)
	}
	if err := env.db.Create(&models.Group{ID: "legacy", Name: "Legacy", System: `{"type":"party","members":"a"}`}).Error; err != nil {
		t.Fatalf("Failed to create group row: %v", err)
	}

	resp := env.do(t, "GET", "/api/groups", gm, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var list []groupJSON
	json.Unmarshal(resp.Body.Bytes(), &list)
	if len(list) != 2 {
		t.Fatalf("Expected 2 readable groups, got %d", len(list))
	}
	if list[1].Name != "Legacy" || len(list[1].System.Members) != 0 {
		t.Errorf("Expected Legacy with no members, got %+v", list[1])
	}
}

func TestGetGroupNotFound(t *testing.T) {
	env := setupTestEnv(t)
	gm, _ := env.login(t, "gm@example.com", models.RoleGamemaster)

	resp := env.do(t, "GET", "/api/groups/missing", gm, nil)
	if resp.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", resp.Code)
	}
}

func TestUpdateGroup(t *testing.T) {
	env := setupTestEnv(t)
	gm, _ := env.login(t, "gm@example.com", models.RoleGamemaster)
	g := env.createParty(t, gm)

	name := "Heroes of Old"
	land := 30.04
	resp := env.do(t, "PUT", "/api/groups/"+g.ID, gm, UpdateGroupRequest{
		Name:     &name,
		Movement: &MovementUpdate{Land: &land},
	})
	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}

	updated := decodeGroup(t, resp)
	if updated.Name != name {
		t.Errorf("Expected name %q, got %q", name, updated.Name)
	}
	if updated.System.Attributes.Movement.Land != 30 {
		t.Errorf("Expected land speed 30, got %v", updated.System.Attributes.Movement.Land)
	}
}

func TestUpdateGroupKeepsFieldsNotSent(t *testing.T) {
	env := setupTestEnv(t)
	gm, _ := env.login(t, "gm@example.com", models.RoleGamemaster)
	g := env.createParty(t, gm)

	full, summary := "<p>Sworn to the crown</p>", "knights"
	water := 10.0
	resp := env.do(t, "PUT", "/api/groups/"+g.ID, gm, UpdateGroupRequest{
		Description: &DescriptionUpdate{Full: &full, Summary: &summary},
		Movement:    &MovementUpdate{Water: &water},
	})
	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}

	full = "<p>Oathbreakers</p>"
	land := 25.0
	resp = env.do(t, "PUT", "/api/groups/"+g.ID, gm, UpdateGroupRequest{
		Description: &DescriptionUpdate{Full: &full},
		Movement:    &MovementUpdate{Land: &land},
	})
	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}

	updated := decodeGroup(t, resp)
	if updated.System.Description.Full != full {
		t.Errorf("Expected full description %q, got %q", full, updated.System.Description.Full)
	}
	if updated.System.Description.Summary != summary {
		t.Errorf("Expected summary %q to be kept, got %q", summary, updated.System.Description.Summary)
	}
	if updated.System.Attributes.Movement.Land != 25 {
		t.Errorf("Expected land speed 25, got %v", updated.System.Attributes.Movement.Land)
	}
	if updated.System.Attributes.Movement.Water != 10 {
		t.Errorf("Expected water speed 10 to be kept, got %v", updated.System.Attributes.Movement.Water)
	}
}

func TestUpdateGroupRejectsEmptyName(t *testing.T) {
	env := setupTestEnv(t)
	gm, _ := env.login(t, "gm@example.com", models.RoleGamemaster)
	g := env.createParty(t, gm)

	empty := ""
	resp := env.do(t, "PUT", "/api/groups/"+g.ID, gm, UpdateGroupRequest{Name: &empty})
	if resp.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", resp.Code)
	}
}

func TestAddMember(t *testing.T) {
	env := setupTestEnv(t)
	gm, _ := env.login(t, "gm@example.com", models.RoleGamemaster)
	g := env.createParty(t, gm)

	tests := []struct {
		name    string
		actorID string
		want    int
		members int
	}{
		{"character", "a", http.StatusOK, 1},
		{"already a member", "a", http.StatusOK, 1},
		{"second character", "b", http.StatusOK, 2},
		{"nested group", "g", http.StatusBadRequest, 2},
		{"compendium actor", "p", http.StatusBadRequest, 2},
		{"unknown actor", "missing", http.StatusNotFound, 2},
	}
	for _, tt := range tests {
		resp := env.do(t, "POST", "/api/groups/"+g.ID+"/members", gm, AddMemberRequest{ActorID: tt.actorID})
		if resp.Code != tt.want {
			t.Errorf("%s: expected status %d, got %d: %s", tt.name, tt.want, resp.Code, resp.Body.String())
		}

		loaded, err := env.store.Group(context.Background(), g.ID)
		if err != nil {
			t.Fatalf("%s: load group: %v", tt.name, err)
		}
		if loaded.Members.Len() != tt.members {
			t.Errorf("%s: expected %d members, got %d", tt.name, tt.members, loaded.Members.Len())
		}
	}
}

func TestRemoveMember(t *testing.T) {
	env := setupTestEnv(t)
	gm, _ := env.login(t, "gm@example.com", models.RoleGamemaster)
	g := env.createParty(t, gm, "a", "b")

	resp := env.do(t, "DELETE", "/api/groups/"+g.ID+"/members/a", gm, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if updated := decodeGroup(t, resp); len(updated.Members) != 1 || updated.Members[0].ActorRef != "b" {
		t.Errorf("Expected members [b], got %+v", updated.Members)
	}

	resp = env.do(t, "DELETE", "/api/groups/"+g.ID+"/members", gm, RemoveMemberRequest{Actor: map[string]any{"_id": "b"}})
	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if updated := decodeGroup(t, resp); len(updated.Members) != 0 {
		t.Errorf("Expected no members, got %+v", updated.Members)
	}

	resp = env.do(t, "DELETE", "/api/groups/"+g.ID+"/members/a", gm, nil)
	if resp.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for a non-member, got %d", resp.Code)
	}

	resp = env.do(t, "DELETE", "/api/groups/"+g.ID+"/members", gm, RemoveMemberRequest{Actor: 42})
	if resp.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for an invalid reference, got %d", resp.Code)
	}
}

func TestPrimaryPartySetting(t *testing.T) {
	env := setupTestEnv(t)
	gm, _ := env.login(t, "gm@example.com", models.RoleGamemaster)
	player, _ := env.login(t, "player@example.com", models.RolePlayer)
	g := env.createParty(t, gm)

	resp := env.do(t, "PUT", "/api/settings/primary-party", player, PrimaryPartyRequest{Actor: &g.ID})
	if resp.Code != http.StatusForbidden {
		t.Errorf("Expected status 403 for player, got %d", resp.Code)
	}

	resp = env.do(t, "PUT", "/api/settings/primary-party", gm, PrimaryPartyRequest{Actor: &g.ID})
	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}

	resp = env.do(t, "GET", "/api/groups/"+g.ID, player, nil)
	if !decodeGroup(t, resp).PrimaryParty {
		t.Error("Expected group to be flagged as primary party")
	}

	resp = env.do(t, "POST", "/api/groups", gm, CreateGroupRequest{Name: "Ambush", Type: "encounter"})
	encounter := decodeGroup(t, resp)
	resp = env.do(t, "PUT", "/api/settings/primary-party", gm, PrimaryPartyRequest{Actor: &encounter.ID})
	if resp.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for a non-party group, got %d", resp.Code)
	}

	resp = env.do(t, "PUT", "/api/settings/primary-party", gm, PrimaryPartyRequest{})
	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.Code)
	}
	var value settings.PrimaryParty
	json.Unmarshal(resp.Body.Bytes(), &value)
	if value.Actor != nil {
		t.Errorf("Expected cleared primary party, got %v", *value.Actor)
	}
}

func TestChangingPrimaryPartyTypeClearsSetting(t *testing.T) {
	env := setupTestEnv(t)
	gm, _ := env.login(t, "gm@example.com", models.RoleGamemaster)
	player, _ := env.login(t, "player@example.com", models.RolePlayer)
	g := env.createParty(t, gm)

	if err := env.settings.SetPrimaryParty(context.Background(), g.ID); err != nil {
		t.Fatalf("SetPrimaryParty failed: %v", err)
	}

	kind := "encounter"
	resp := env.do(t, "PUT", "/api/groups/"+g.ID, player, UpdateGroupRequest{Type: &kind})
	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if decodeGroup(t, resp).PrimaryParty {
		t.Error("Expected group to no longer be the primary party")
	}

	id, err := env.settings.PrimaryParty(context.Background())
	if err != nil {
		t.Fatalf("PrimaryParty failed: %v", err)
	}
	if id != "" {
		t.Errorf("Expected primary party to be cleared, got %q", id)
	}
}

func TestDeleteGroupClearsPrimaryParty(t *testing.T) {
	env := setupTestEnv(t)
	gm, _ := env.login(t, "gm@example.com", models.RoleGamemaster)
	g := env.createParty(t, gm)

	if err := env.settings.SetPrimaryParty(context.Background(), g.ID); err != nil {
		t.Fatalf("SetPrimaryParty failed: %v", err)
	}

	resp := env.do(t, "DELETE", "/api/groups/"+g.ID, gm, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.Code)
	}

	id, _ := env.settings.PrimaryParty(context.Background())
	if id != "" {
		t.Errorf("Expected primary party to be cleared, got %q", id)
	}

	resp = env.do(t, "DELETE", "/api/groups/"+g.ID, gm, nil)
	if resp.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", resp.Code)
	}
}
