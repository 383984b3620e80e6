package group

import (
	"context"

	"go.uber.org/zap"
)

// UpdateNotice describes a completed update as seen by one connected
// session. Origin is the session that issued the update; Session is the
// session evaluating the notice.
type UpdateNotice struct {
	Group   *Group
	Changed Changes
	Origin  string
	Session string
}

// UpdateHook reacts to a completed update.
type UpdateHook func(ctx context.Context, n UpdateNotice)

// Authority decides which session acts on shared state.
type Authority interface {
	IsPrimary(sessionID string) bool
}

// PrimaryPartySettings is the world's pointer to its primary party.
type PrimaryPartySettings interface {
	PrimaryParty(ctx context.Context) (string, error)
	ClearPrimaryParty(ctx context.Context) error
}

// PrimaryPartyReaction returns a hook that clears the primary party
// setting when the group it points at stops being a party. Only the
// primary session acts, so the setting is cleared once per update no
// matter how many sessions observe it.
func PrimaryPartyReaction(settings PrimaryPartySettings, authority Authority, logger *zap.Logger) UpdateHook {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(ctx context.Context, n UpdateNotice) {
		value, ok := n.Changed.Get(PathTypeValue)
		if !ok || n.Group == nil || !authority.IsPrimary(n.Session) {
			return
		}
		current, err := settings.PrimaryParty(ctx)
		if err != nil {
			logger.Error("read primary party", zap.Error(err))
			return
		}
		if current != n.Group.ID {
			return
		}
		if s, _ := value.(string); s == TypeParty {
			return
		}
		if err := settings.ClearPrimaryParty(ctx); err != nil {
			logger.Error("clear primary party", zap.String("group", n.Group.ID), zap.Error(err))
			return
		}
		logger.Info("primary party cleared", zap.String("group", n.Group.ID), zap.String("session", n.Session))
	}
}
