// Package settings stores process-wide configuration values keyed by
// namespace and key.
package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mikepea/roster/pkg/roster/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Namespace is the namespace of the settings owned by this service.
const Namespace = "roster"

// KeyPrimaryParty points at the group record that is the world's primary
// party. It names at most one group.
const KeyPrimaryParty = "primaryParty"

// ErrNotFound is returned when a setting has never been stored.
var ErrNotFound = errors.New("setting not found")

// PrimaryParty is the stored value of KeyPrimaryParty.
type PrimaryParty struct {
	Actor *string `json:"actor"`
}

// Store reads and writes settings.
type Store struct {
	db *gorm.DB
}

// NewStore creates a settings store
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Get decodes the setting into dst. It returns ErrNotFound when the
// setting was never written.
func (s *Store) Get(ctx context.Context, namespace, key string, dst any) error {
	var row models.Setting
	err := s.db.WithContext(ctx).Where(&models.Setting{Namespace: namespace, Key: key}).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get setting %s.%s: %w", namespace, key, err)
	}
	if err := json.Unmarshal([]byte(row.Value), dst); err != nil {
		return fmt.Errorf("decode setting %s.%s: %w", namespace, key, err)
	}
	return nil
}

// Set stores value, replacing any previous value.
func (s *Store) Set(ctx context.Context, namespace, key string, value any) error {
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode setting %s.%s: %w", namespace, key, err)
	}
	row := models.Setting{Namespace: namespace, Key: key, Value: string(encoded)}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "namespace"}, {Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("set setting %s.%s: %w", namespace, key, err)
	}
	return nil
}

// PrimaryParty returns the id of the primary party group, or "" when none
// is set.
func (s *Store) PrimaryParty(ctx context.Context) (string, error) {
	var v PrimaryParty
	err := s.Get(ctx, Namespace, KeyPrimaryParty, &v)
	if errors.Is(err, ErrNotFound) || (err == nil && v.Actor == nil) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return *v.Actor, nil
}

// SetPrimaryParty points the setting at groupID. An empty id clears it.
func (s *Store) SetPrimaryParty(ctx context.Context, groupID string) error {
	v := PrimaryParty{}
	if groupID != "" {
		v.Actor = &groupID
	}
	return s.Set(ctx, Namespace, KeyPrimaryParty, v)
}

// ClearPrimaryParty sets the primary party to null.
func (s *Store) ClearPrimaryParty(ctx context.Context) error {
	return s.SetPrimaryParty(ctx, "")
}
