// Package documents persists group records and runs the update channel:
// every change goes through UpdateGroup, which writes it, reloads the
// record and tells the registered hooks what changed.
package documents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/mikepea/roster/pkg/roster/actors"
	"github.com/mikepea/roster/pkg/roster/group"
	"github.com/mikepea/roster/pkg/roster/models"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNotFound is returned when no group record has the requested id.
var ErrNotFound = errors.New("group not found")

var updatePath = regexp.MustCompile(`^(name|system(\.[A-Za-z0-9_]+)+)$`)

// Paths whose written value must keep its container shape. Loading
// would otherwise quietly reset them.
var (
	listPaths   = map[string]bool{group.PathMembers: true}
	objectPaths = map[string]bool{
		"system.type":        true,
		"system.description": true,
		"system.attributes":  true,
		group.PathMovement:   true,
		group.PathCurrency:   true,
	}
)

// Audience lists the sessions that observe updates.
type Audience interface {
	SessionIDs() []string
}

// Store loads and updates group records.
type Store struct {
	db       *gorm.DB
	audience Audience
	logger   *zap.Logger

	// mu serializes writes.
	mu sync.Mutex
	// editMu serializes Modify calls.
	editMu sync.Mutex

	hooksMu sync.RWMutex
	hooks   []group.UpdateHook
}

// NewStore creates a document store. audience may be nil, in which case
// hooks are never called.
func NewStore(db *gorm.DB, audience Audience, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{db: db, audience: audience, logger: logger}
}

// OnUpdate registers a hook run after every update that changed something.
func (s *Store) OnUpdate(h group.UpdateHook) {
	s.hooksMu.Lock()
	defer s.hooksMu.Unlock()
	s.hooks = append(s.hooks, h)
}

// CreateGroup stores a new group record.
func (s *Store) CreateGroup(ctx context.Context, name string, data group.SystemData) (*group.Group, error) {
	return s.ImportGroup(ctx, uuid.NewString(), name, data)
}

// ImportGroup stores a group under the given id, replacing any record with
// that id. An empty id gets a fresh one.
func (s *Store) ImportGroup(ctx context.Context, id, name string, data group.SystemData) (*group.Group, error) {
	if name == "" {
		return nil, &group.ValidationError{Msg: "group name is required"}
	}
	if id == "" {
		id = uuid.NewString()
	}
	encoded, err := json.Marshal(data.Clone())
	if err != nil {
		return nil, fmt.Errorf("encode group %s: %w", id, err)
	}

	row := models.Group{ID: id, Name: name, System: string(encoded)}
	s.mu.Lock()
	err = s.db.WithContext(ctx).Unscoped().Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.Assignments(map[string]any{"name": name, "system": row.System, "deleted_at": nil}),
	}).Create(&row).Error
	s.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("store group %s: %w", id, err)
	}
	return s.Group(ctx, id)
}

// Group loads, migrates and prepares one group record.
func (s *Store) Group(ctx context.Context, id string) (*group.Group, error) {
	var row models.Group
	if err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find group %s: %w", id, err)
	}
	world, err := actors.LoadWorld(ctx, s.db)
	if err != nil {
		return nil, err
	}
	return s.load(row, world)
}

// ListGroups loads every group record ordered by name.
func (s *Store) ListGroups(ctx context.Context) ([]*group.Group, error) {
	var rows []models.Group
	if err := s.db.WithContext(ctx).Order("name ASC").Order("id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	world, err := actors.LoadWorld(ctx, s.db)
	if err != nil {
		return nil, err
	}

	out := make([]*group.Group, 0, len(rows))
	for _, row := range rows {
		g, err := s.load(row, world)
		if err != nil {
			s.logger.Warn("skipping unreadable group", zap.String("group", row.ID), zap.Error(err))
			continue
		}
		out = append(out, g)
	}
	return out, nil
}

// Modify loads a group and hands it to fn together with an updater bound
// to origin. Calls are serialized, so a read-modify-write such as a
// member change never works from a stale member list. fn must not call
// Modify.
func (s *Store) Modify(ctx context.Context, origin, id string, fn func(*group.Group, group.Updater) (*group.Group, error)) (*group.Group, error) {
	s.editMu.Lock()
	defer s.editMu.Unlock()

	g, err := s.Group(ctx, id)
	if err != nil {
		return nil, err
	}
	return fn(g, s.Binding(origin, id))
}

// DeleteGroup removes a group record.
func (s *Store) DeleteGroup(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := s.db.WithContext(ctx).Delete(&models.Group{}, "id = ?", id)
	if result.Error != nil {
		return fmt.Errorf("delete group %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateGroup applies changes, keyed by dotted path, to the stored record
// on behalf of the origin session. Paths whose value does not actually
// change are dropped; if nothing is left the record is returned as is and
// no hook runs. Otherwise the record is written, reloaded and every hook
// is run once per observing session.
func (s *Store) UpdateGroup(ctx context.Context, origin, id string, changes group.Changes) (*group.Group, error) {
	paths := make([]string, 0, len(changes))
	for path := range changes {
		if !updatePath.MatchString(path) {
			return nil, &group.ValidationError{Msg: fmt.Sprintf("invalid update path %q", path)}
		}
		paths = append(paths, path)
	}
	sort.Strings(paths)

	s.mu.Lock()
	changed, err := s.write(ctx, id, paths, changes)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	g, err := s.Group(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(changed) > 0 {
		s.notify(ctx, g, changed, origin)
	}
	return g, nil
}

func (s *Store) write(ctx context.Context, id string, paths []string, changes group.Changes) (group.Changes, error) {
	changed := group.Changes{}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row models.Group
		if err := tx.First(&row, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("find group %s: %w", id, err)
		}

		doc, err := document(row)
		if err != nil {
			return err
		}
		for _, path := range paths {
			before := gjson.Get(doc, path+"|@ugly").Raw
			if doc, err = sjson.Set(doc, path, changes[path]); err != nil {
				return &group.ValidationError{Msg: fmt.Sprintf("set %s: %v", path, err)}
			}
			after := gjson.Get(doc, path)
			if err := checkShape(path, after); err != nil {
				return err
			}
			if gjson.Get(doc, path+"|@ugly").Raw != before {
				changed[path] = after.Value()
			}
		}
		if len(changed) == 0 {
			return nil
		}

		name := gjson.Get(doc, "name")
		if name.Type != gjson.String || name.String() == "" {
			return &group.ValidationError{Msg: "group name must be a non-empty string"}
		}
		data, err := group.LoadSystemData([]byte(gjson.Get(doc, "system").Raw))
		if err != nil {
			return &group.ValidationError{Msg: err.Error()}
		}
		encoded, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("encode group %s: %w", id, err)
		}

		row.Name = name.String()
		row.System = string(encoded)
		if err := tx.Save(&row).Error; err != nil {
			return fmt.Errorf("save group %s: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return changed, nil
}

func checkShape(path string, v gjson.Result) error {
	switch {
	case v.Type == gjson.Null:
		return nil
	case listPaths[path] && !v.IsArray():
		return &group.ValidationError{Msg: fmt.Sprintf("%s must be a list", path)}
	case objectPaths[path] && !v.IsObject():
		return &group.ValidationError{Msg: fmt.Sprintf("%s must be an object", path)}
	}
	return nil
}

func (s *Store) notify(ctx context.Context, g *group.Group, changed group.Changes, origin string) {
	if s.audience == nil {
		return
	}
	s.hooksMu.RLock()
	hooks := append([]group.UpdateHook(nil), s.hooks...)
	s.hooksMu.RUnlock()

	for _, session := range s.audience.SessionIDs() {
		for _, hook := range hooks {
			hook(ctx, group.UpdateNotice{Group: g, Changed: changed, Origin: origin, Session: session})
		}
	}
}

func (s *Store) load(row models.Group, reg actors.Registry) (*group.Group, error) {
	data, err := group.LoadSystemData([]byte(row.System))
	if err != nil {
		return nil, fmt.Errorf("load group %s: %w", row.ID, err)
	}
	g := &group.Group{ID: row.ID, Name: row.Name, Source: data}
	g.Prepare(reg, s.logger)
	return g, nil
}

// document renders a stored row as {"name": ..., "system": {...}} so
// update paths address it the same way callers do.
func document(row models.Group) (string, error) {
	system := row.System
	if !gjson.Valid(system) || !gjson.Parse(system).IsObject() {
		system = "{}"
	}
	doc, err := sjson.Set(`{}`, "name", row.Name)
	if err != nil {
		return "", fmt.Errorf("render group %s: %w", row.ID, err)
	}
	if doc, err = sjson.SetRaw(doc, "system", system); err != nil {
		return "", fmt.Errorf("render group %s: %w", row.ID, err)
	}
	return doc, nil
}

// Binding returns the updater for one group on behalf of a session.
func (s *Store) Binding(origin, id string) group.Updater {
	return binding{store: s, origin: origin, id: id}
}

type binding struct {
	store  *Store
	origin string
	id     string
}

func (b binding) Update(ctx context.Context, changes group.Changes) (*group.Group, error) {
	return b.store.UpdateGroup(ctx, b.origin, b.id, changes)
}
