package actors

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/mikepea/roster/pkg/roster/models"
	"gorm.io/gorm"
)

// Actor types known to the world. Any other string is accepted as an
// opaque type.
const (
	TypeCharacter = "character"
	TypeNPC       = "npc"
	TypeVehicle   = "vehicle"
	TypeGroup     = "group"
)

// ErrNotFound is returned when no actor has the requested id.
var ErrNotFound = errors.New("actor not found")

// Actor is a live game actor.
type Actor struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
	Pack string `json:"pack,omitempty"`
}

// ActorID returns the actor's identifier.
func (a *Actor) ActorID() string {
	if a == nil {
		return ""
	}
	return a.ID
}

// InWorld reports whether the actor belongs to the world rather than a
// compendium pack.
func (a *Actor) InWorld() bool {
	return a.Pack == ""
}

// ID is a bare actor identifier.
type ID string

// ActorID returns the identifier itself.
func (id ID) ActorID() string { return string(id) }

// Registry resolves actor identifiers against the current world.
type Registry interface {
	Actor(id string) (*Actor, bool)
}

// Ref is a stored reference to an actor. The zero value is a null
// reference. A Ref says nothing about whether the actor still exists;
// use Resolve against a Registry for that.
type Ref struct {
	id string
}

// NewRef returns a reference to the actor with the given id. An empty id
// yields a null reference.
func NewRef(id string) Ref { return Ref{id: id} }

// ID returns the raw stored identifier.
func (r Ref) ID() string { return r.id }

// IsNull reports whether the reference points nowhere.
func (r Ref) IsNull() bool { return r.id == "" }

// Resolve looks the reference up in reg.
func (r Ref) Resolve(reg Registry) (*Actor, bool) {
	if r.IsNull() || reg == nil {
		return nil, false
	}
	return reg.Actor(r.id)
}

// MarshalJSON encodes the id, or null for a null reference.
func (r Ref) MarshalJSON() ([]byte, error) {
	if r.IsNull() {
		return []byte("null"), nil
	}
	return json.Marshal(r.id)
}

// UnmarshalJSON accepts a string, a number, null, or an embedded document
// carrying "_id" or "id". Anything else decodes to a null reference.
func (r *Ref) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	r.id = ""
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	switch data[0] {
	case '"':
		return json.Unmarshal(data, &r.id)
	case '{':
		var doc struct {
			UnderscoreID string `json:"_id"`
			ID           string `json:"id"`
		}
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil
		}
		r.id = doc.UnderscoreID
		if r.id == "" {
			r.id = doc.ID
		}
		return nil
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return nil
		}
		r.id = n.String()
	}
	return nil
}

// World is the set of actors that belong to the current world.
type World struct {
	actors map[string]*Actor
}

// NewWorld builds a world from the given actors. Compendium actors are
// ignored.
func NewWorld(list ...Actor) *World {
	w := &World{actors: make(map[string]*Actor, len(list))}
	for i := range list {
		a := list[i]
		if !a.InWorld() {
			continue
		}
		w.actors[a.ID] = &a
	}
	return w
}

// Actor implements Registry.
func (w *World) Actor(id string) (*Actor, bool) {
	a, ok := w.actors[id]
	return a, ok
}

// Len returns the number of world actors.
func (w *World) Len() int { return len(w.actors) }

// All returns the world's actors ordered by name, then id.
func (w *World) All() []*Actor {
	out := make([]*Actor, 0, len(w.actors))
	for _, a := range w.actors {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// LoadWorld reads every world actor from the database.
func LoadWorld(ctx context.Context, db *gorm.DB) (*World, error) {
	var rows []models.Actor
	if err := db.WithContext(ctx).Where("pack = ?", "").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load world actors: %w", err)
	}
	list := make([]Actor, len(rows))
	for i, row := range rows {
		list[i] = FromModel(row)
	}
	return NewWorld(list...), nil
}

// Find loads a single actor by id, including compendium actors.
func Find(ctx context.Context, db *gorm.DB, id string) (*Actor, error) {
	var row models.Actor
	if err := db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find actor %s: %w", id, err)
	}
	a := FromModel(row)
	return &a, nil
}

// FromModel converts a stored actor.
func FromModel(row models.Actor) Actor {
	return Actor{ID: row.ID, Name: row.Name, Type: row.Type, Pack: row.Pack}
}
