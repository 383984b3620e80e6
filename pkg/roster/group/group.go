// Package group implements group records: named collections of actor
// references such as a party, an encounter or a ship's crew.
package group

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mikepea/roster/pkg/roster/actors"
	"go.uber.org/zap"
)

// Update paths understood by the document store.
const (
	PathName               = "name"
	PathTypeValue          = "system.type.value"
	PathDescriptionFull    = "system.description.full"
	PathDescriptionSummary = "system.description.summary"
	PathMembers            = "system.members"
	PathMovement           = "system.attributes.movement"
	PathCurrency           = "system.currency"
)

// ErrValidation matches every error caused by invalid caller input.
var ErrValidation = errors.New("validation failed")

// ValidationError reports invalid caller input. It matches ErrValidation.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// Is reports whether target is ErrValidation.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func invalidf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// Group is a loaded group record. Source is the persisted system data
// after migration and cleaning; Members is the prepared view of
// Source.Members.
type Group struct {
	ID      string     `json:"id"`
	Name    string     `json:"name"`
	Source  SystemData `json:"system"`
	Members Members    `json:"members"`
}

// Prepare rebuilds the prepared member view against reg.
func (g *Group) Prepare(reg actors.Registry, logger *zap.Logger) {
	g.Members = PrepareMembers(g.ID, g.Source.Members, reg, logger)
}

// Changes maps dotted update paths to their new values.
type Changes map[string]any

// Get returns the value a change set assigns to path, either directly or
// through an object assigned to one of its parents.
func (c Changes) Get(path string) (any, bool) {
	if v, ok := c[path]; ok {
		return v, true
	}
	for key, v := range c {
		if !strings.HasPrefix(path, key+".") {
			continue
		}
		for _, part := range strings.Split(strings.TrimPrefix(path, key+"."), ".") {
			obj, ok := v.(map[string]any)
			if !ok {
				return nil, false
			}
			if v, ok = obj[part]; !ok {
				return nil, false
			}
		}
		return v, true
	}
	return nil, false
}

// Has reports whether the change set touches path.
func (c Changes) Has(path string) bool {
	_, ok := c.Get(path)
	return ok
}

// Updater persists changes to one group record and returns the record as
// reloaded after the update.
type Updater interface {
	Update(ctx context.Context, changes Changes) (*Group, error)
}

// Identifier is anything that names an actor.
type Identifier interface {
	ActorID() string
}

// ParseTarget turns loosely typed input, such as a decoded JSON value,
// into an actor identifier. Strings and objects carrying "id" or "_id"
// are accepted.
func ParseTarget(v any) (Identifier, error) {
	switch t := v.(type) {
	case Identifier:
		return t, nil
	case string:
		return actors.ID(t), nil
	case map[string]any:
		for _, key := range []string{"id", "_id"} {
			if id, ok := t[key].(string); ok {
				return actors.ID(id), nil
			}
		}
		return nil, invalidf("member reference object has no id")
	default:
		return nil, invalidf("member reference must be an actor or an actor id, got %T", v)
	}
}

// AddMember appends actor to the group's member list. Adding an actor
// that is already a member does nothing and returns g.
func (g *Group) AddMember(ctx context.Context, u Updater, actor *actors.Actor) (*Group, error) {
	if actor == nil {
		return nil, invalidf("an actor is required")
	}
	if actor.Type == actors.TypeGroup {
		return nil, invalidf("group %q cannot be added as a member of group %q", actor.ID, g.ID)
	}
	if !actor.InWorld() {
		return nil, invalidf("actor %q belongs to pack %q and must be imported into the world first", actor.ID, actor.Pack)
	}
	if g.Members.Has(actor.ID) {
		return g, nil
	}

	members := append(g.Source.Clone().Members, MemberEntry{ActorRef: actors.NewRef(actor.ID), Quantity: 1})
	return u.Update(ctx, Changes{PathMembers: members})
}

// RemoveMember removes the first stored entry referencing target.
func (g *Group) RemoveMember(ctx context.Context, u Updater, target Identifier) (*Group, error) {
	if target == nil {
		return nil, invalidf("a member reference is required")
	}
	id := target.ActorID()
	if !g.Members.Has(id) {
		return nil, invalidf("actor %q is not a member of group %q", id, g.ID)
	}

	members := g.Source.Clone().Members
	for i, m := range members {
		if m.ActorRef.ID() == id {
			members = append(members[:i], members[i+1:]...)
			return u.Update(ctx, Changes{PathMembers: members})
		}
	}
	return nil, invalidf("actor %q is not stored in group %q", id, g.ID)
}
