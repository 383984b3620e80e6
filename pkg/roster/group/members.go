package group

import (
	"encoding/json"

	"github.com/mikepea/roster/pkg/roster/actors"
	"go.uber.org/zap"
)

// Member is a prepared member entry whose reference resolved to a world
// actor.
type Member struct {
	ActorRef actors.Ref    `json:"actor_ref"`
	Quantity int           `json:"quantity"`
	Actor    *actors.Actor `json:"actor"`
}

// Members is the prepared member list together with the set of member
// actor ids. IDs is derived from Entries and is never persisted or
// serialized.
type Members struct {
	Entries []Member
	IDs     map[string]struct{}
}

// Has reports whether the actor with the given id is a member.
func (m Members) Has(id string) bool {
	_, ok := m.IDs[id]
	return ok
}

// Len returns the number of prepared members.
func (m Members) Len() int { return len(m.Entries) }

// MarshalJSON emits the entries only.
func (m Members) MarshalJSON() ([]byte, error) {
	if m.Entries == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(m.Entries)
}

// PrepareMembers filters stored entries down to the ones that resolve to
// distinct, non-group world actors, keeping their relative order. Each
// rejected entry is reported as a warning and skipped; stored data is not
// touched.
func PrepareMembers(groupID string, entries []MemberEntry, reg actors.Registry, logger *zap.Logger) Members {
	if logger == nil {
		logger = zap.NewNop()
	}
	out := Members{
		Entries: make([]Member, 0, len(entries)),
		IDs:     make(map[string]struct{}, len(entries)),
	}
	for _, entry := range entries {
		actor, ok := entry.ActorRef.Resolve(reg)
		switch {
		case !ok:
			logger.Warn("group member does not exist within the world",
				zap.String("group", groupID), zap.String("actor", entry.ActorRef.ID()))
			continue
		case actor.Type == actors.TypeGroup:
			logger.Warn("group cannot be a member of another group",
				zap.String("group", groupID), zap.String("actor", actor.ID))
			continue
		case out.Has(actor.ID):
			logger.Warn("group member is duplicated",
				zap.String("group", groupID), zap.String("actor", actor.ID))
			continue
		}
		out.IDs[actor.ID] = struct{}{}
		out.Entries = append(out.Entries, Member{
			ActorRef: entry.ActorRef,
			Quantity: entry.Quantity,
			Actor:    actor,
		})
	}
	return out
}
