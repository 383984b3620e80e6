package group

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/mikepea/roster/pkg/roster/actors"
)

// TypeParty is the group type eligible to be the world's primary party.
const TypeParty = "party"

// MovementStep is the granularity of movement speeds.
const MovementStep = 0.1

const movementScale = 1 / MovementStep

// SystemData is the persisted payload of a group record.
type SystemData struct {
	Type        TypeField     `json:"type"`
	Description Description   `json:"description"`
	Members     []MemberEntry `json:"members"`
	Attributes  Attributes    `json:"attributes"`
	Currency    Currency      `json:"currency"`
}

// UnmarshalJSON decodes each field on its own. A field with the wrong
// shape falls back to its default instead of failing the whole record;
// member entries that cannot be read are dropped.
func (s *SystemData) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = SystemData{}
	lenient(raw["type"], &s.Type)
	lenient(raw["description"], &s.Description)
	lenient(raw["attributes"], &s.Attributes)
	lenient(raw["currency"], &s.Currency)

	var entries []json.RawMessage
	lenient(raw["members"], &entries)
	s.Members = make([]MemberEntry, 0, len(entries))
	for _, e := range entries {
		var m MemberEntry
		if err := json.Unmarshal(e, &m); err != nil {
			continue
		}
		s.Members = append(s.Members, m)
	}
	return nil
}

// lenient decodes raw into dst, leaving dst untouched when raw is absent
// or does not fit.
func lenient[T any](raw json.RawMessage, dst *T) {
	if len(raw) == 0 {
		return
	}
	var v T
	if err := json.Unmarshal(raw, &v); err == nil {
		*dst = v
	}
}

// TypeField classifies the group ("party", "encounter", "crew", ...).
type TypeField struct {
	Value string `json:"value"`
}

// UnmarshalJSON treats a non-string value as unset.
func (t *TypeField) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	t.Value = coerceString(raw["value"])
	return nil
}

// Description holds the group's rich-text descriptions.
type Description struct {
	Full    string `json:"full"`
	Summary string `json:"summary"`
}

// UnmarshalJSON treats non-string texts as empty.
func (d *Description) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	d.Full = coerceString(raw["full"])
	d.Summary = coerceString(raw["summary"])
	return nil
}

// MemberEntry is one stored member of a group.
type MemberEntry struct {
	ActorRef actors.Ref `json:"actor_ref"`
	Quantity int        `json:"quantity"`
}

// UnmarshalJSON decodes an entry, defaulting a missing quantity to 1.
func (m *MemberEntry) UnmarshalJSON(data []byte) error {
	var raw struct {
		ActorRef actors.Ref `json:"actor_ref"`
		Quantity any        `json:"quantity"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	m.ActorRef = raw.ActorRef
	m.Quantity = coerceInt(raw.Quantity, 1)
	return nil
}

// Attributes holds the group's derived game attributes.
type Attributes struct {
	Movement Movement `json:"movement"`
}

// Movement speeds are non-negative and kept to MovementStep.
type Movement struct {
	Land  float64 `json:"land"`
	Water float64 `json:"water"`
	Air   float64 `json:"air"`
}

// UnmarshalJSON tolerates string speeds. Unreadable speeds become 0.
func (m *Movement) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	m.Land = coerceFloat(raw["land"], 0)
	m.Water = coerceFloat(raw["water"], 0)
	m.Air = coerceFloat(raw["air"], 0)
	return nil
}

// Currency is the shared coin purse carried by actor-like records.
type Currency struct {
	PP int `json:"pp"`
	GP int `json:"gp"`
	EP int `json:"ep"`
	SP int `json:"sp"`
	CP int `json:"cp"`
}

// UnmarshalJSON tolerates fractional and string amounts.
func (c *Currency) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	c.PP = coerceInt(raw["pp"], 0)
	c.GP = coerceInt(raw["gp"], 0)
	c.EP = coerceInt(raw["ep"], 0)
	c.SP = coerceInt(raw["sp"], 0)
	c.CP = coerceInt(raw["cp"], 0)
	return nil
}

// MigrateData upgrades legacy stored shapes in place and returns source.
// A members list of bare identifiers becomes a list of {"actor_ref": id}
// objects; entries that are already objects are left as they are.
func MigrateData(source map[string]any) map[string]any {
	if source == nil {
		return source
	}
	list, ok := source["members"].([]any)
	if !ok {
		return source
	}
	for i, m := range list {
		if _, structured := m.(map[string]any); structured {
			continue
		}
		list[i] = map[string]any{"actor_ref": m}
	}
	return source
}

// LoadSystemData migrates and cleans raw stored system data.
func LoadSystemData(raw []byte) (SystemData, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		raw = []byte("{}")
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var source map[string]any
	if err := dec.Decode(&source); err != nil {
		return SystemData{}, fmt.Errorf("decode system data: %w", err)
	}

	migrated, err := json.Marshal(MigrateData(source))
	if err != nil {
		return SystemData{}, fmt.Errorf("encode migrated system data: %w", err)
	}
	return Clean(migrated)
}

// Clean decodes already-migrated system data and coerces it to the
// schema: defaults, minimum bounds and movement step. Only data that is
// not a JSON object is an error.
func Clean(data []byte) (SystemData, error) {
	var s SystemData
	if err := json.Unmarshal(data, &s); err != nil {
		return SystemData{}, fmt.Errorf("decode system data: %w", err)
	}
	s.clean()
	return s, nil
}

func (s *SystemData) clean() {
	if s.Members == nil {
		s.Members = []MemberEntry{}
	}
	for i := range s.Members {
		if s.Members[i].Quantity < 0 {
			s.Members[i].Quantity = 0
		}
	}
	mv := &s.Attributes.Movement
	mv.Land = cleanSpeed(mv.Land)
	mv.Water = cleanSpeed(mv.Water)
	mv.Air = cleanSpeed(mv.Air)

	c := &s.Currency
	for _, v := range []*int{&c.PP, &c.GP, &c.EP, &c.SP, &c.CP} {
		if *v < 0 {
			*v = 0
		}
	}
}

// Clone returns a deep copy.
func (s SystemData) Clone() SystemData {
	s.Members = append([]MemberEntry(nil), s.Members...)
	if s.Members == nil {
		s.Members = []MemberEntry{}
	}
	return s
}

func cleanSpeed(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return math.Round(v*movementScale) / movementScale
}

func coerceInt(v any, def int) int {
	f := coerceFloat(v, math.NaN())
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return def
	}
	return int(math.Round(f))
}

func coerceFloat(v any, def float64) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return def
		}
		return f
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return def
		}
		return f
	default:
		return def
	}
}

func coerceString(v any) string {
	s, _ := v.(string)
	return s
}
