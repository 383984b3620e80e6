// Package importexport moves group records in and out of the world as
// bundles. Bundles written by older worlds may store members as bare actor
// ids; they are migrated and cleaned on the way in.
package importexport

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mikepea/roster/pkg/roster/documents"
	"github.com/mikepea/roster/pkg/roster/group"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Format is the encoding of a bundle.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// Bundle is a set of exported group records.
type Bundle struct {
	Groups []GroupRecord `json:"groups" yaml:"groups"`
}

// GroupRecord is one group in a bundle. System is kept loosely typed so
// legacy member shapes survive decoding.
type GroupRecord struct {
	ID     string         `json:"id,omitempty" yaml:"id,omitempty"`
	Name   string         `json:"name" yaml:"name"`
	System map[string]any `json:"system" yaml:"system"`
}

// ImportResult represents the result of an import operation
type ImportResult struct {
	Imported int      `json:"imported"`
	Skipped  int      `json:"skipped"`
	Errors   []string `json:"errors,omitempty"`
}

// FormatFor picks a bundle format from a file name or media type.
func FormatFor(name string) Format {
	name = strings.ToLower(name)
	switch {
	case strings.HasSuffix(name, ".yaml"), strings.HasSuffix(name, ".yml"),
		strings.Contains(name, "yaml"):
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Decode reads a bundle in the given format.
func Decode(r io.Reader, format Format) (Bundle, error) {
	var b Bundle
	switch format {
	case FormatYAML:
		if err := yaml.NewDecoder(r).Decode(&b); err != nil && err != io.EOF {
			return Bundle{}, fmt.Errorf("decode yaml bundle: %w", err)
		}
	default:
		dec := json.NewDecoder(r)
		dec.UseNumber()
		if err := dec.Decode(&b); err != nil {
			return Bundle{}, fmt.Errorf("decode json bundle: %w", err)
		}
	}
	return b, nil
}

// Encode writes a bundle in the given format.
func Encode(w io.Writer, b Bundle, format Format) error {
	if format == FormatYAML {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(b); err != nil {
			return fmt.Errorf("encode yaml bundle: %w", err)
		}
		return enc.Close()
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(b)
}

// Service imports and exports bundles through the document store.
type Service struct {
	store  *documents.Store
	logger *zap.Logger
}

// NewService creates an import/export service
func NewService(store *documents.Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, logger: logger}
}

// Import stores every record of the bundle. Records with an id replace the
// group with that id. A record that cannot be read is skipped and
// reported; the rest are still imported.
func (s *Service) Import(ctx context.Context, b Bundle) (ImportResult, error) {
	result := ImportResult{Errors: []string{}}
	for i, rec := range b.Groups {
		data, err := systemData(rec.System)
		if err == nil {
			_, err = s.store.ImportGroup(ctx, rec.ID, rec.Name, data)
		}
		if err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			result.Errors = append(result.Errors, "group "+strconv.Itoa(i)+": "+err.Error())
			result.Skipped++
			s.logger.Warn("group skipped during import", zap.Int("index", i), zap.String("group", rec.ID), zap.Error(err))
			continue
		}
		result.Imported++
	}
	s.logger.Info("import finished", zap.Int("imported", result.Imported), zap.Int("skipped", result.Skipped))
	return result, nil
}

// ImportFile reads a bundle from path, choosing the format by extension.
func (s *Service) ImportFile(ctx context.Context, path string) (ImportResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return ImportResult{}, err
	}
	defer f.Close()

	b, err := Decode(f, FormatFor(filepath.Ext(path)))
	if err != nil {
		return ImportResult{}, fmt.Errorf("%s: %w", path, err)
	}
	return s.Import(ctx, b)
}

// Export returns every group with its persisted system data.
func (s *Service) Export(ctx context.Context) (Bundle, error) {
	list, err := s.store.ListGroups(ctx)
	if err != nil {
		return Bundle{}, err
	}

	b := Bundle{Groups: make([]GroupRecord, 0, len(list))}
	for _, g := range list {
		system, err := toMap(g.Source)
		if err != nil {
			return Bundle{}, fmt.Errorf("export group %s: %w", g.ID, err)
		}
		b.Groups = append(b.Groups, GroupRecord{ID: g.ID, Name: g.Name, System: system})
	}
	return b, nil
}

func systemData(system map[string]any) (group.SystemData, error) {
	if system == nil {
		return group.LoadSystemData(nil)
	}
	raw, err := json.Marshal(system)
	if err != nil {
		return group.SystemData{}, &group.ValidationError{Msg: fmt.Sprintf("unreadable system data: %v", err)}
	}
	data, err := group.LoadSystemData(raw)
	if err != nil {
		return group.SystemData{}, &group.ValidationError{Msg: err.Error()}
	}
	return data, nil
}

func toMap(data group.SystemData) (map[string]any, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	out := map[string]any{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
