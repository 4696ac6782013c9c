// Package identity reconciles the identifier schemes that coexist in stored
// rows: generated UUID keys, legacy integer ids and legacy free-form strings.
//
// Raw ids are parsed once at the boundary into a Key. Lookups match a stored
// reference against every candidate form of the requested id.
package identity

import (
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Kind tells which scheme an identifier was written under.
type Kind int

const (
	// Canonical is a generated UUID primary key.
	Canonical Kind = iota
	// Legacy is an all-digits id from the integer scheme.
	Legacy
	// LegacyString is any other opaque string id.
	LegacyString
)

func (k Kind) String() string {
	switch k {
	case Canonical:
		return "canonical"
	case Legacy:
		return "legacy"
	default:
		return "legacy_string"
	}
}

// Key is an identifier resolved to its scheme.
type Key struct {
	Kind Kind
	Raw  string
	UUID uuid.UUID
	Int  int64
}

// Parse classifies raw. Surrounding whitespace is ignored.
func Parse(raw string) Key {
	raw = strings.TrimSpace(raw)
	if u, err := uuid.Parse(raw); err == nil {
		return Key{Kind: Canonical, Raw: raw, UUID: u}
	}
	if isDigits(raw) {
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return Key{Kind: Legacy, Raw: raw, Int: n}
		}
	}
	return Key{Kind: LegacyString, Raw: raw}
}

// String returns the normalized form of the key.
func (k Key) String() string {
	switch k.Kind {
	case Canonical:
		return k.UUID.String()
	case Legacy:
		return strconv.FormatInt(k.Int, 10)
	default:
		return k.Raw
	}
}

// IsZero reports whether the key carries no identifier at all.
func (k Key) IsZero() bool {
	return k.Raw == ""
}

// Candidates lists every representation a stored row might use for this key:
// the raw string first, then the normalized UUID or integer form.
func (k Key) Candidates() []string {
	if k.IsZero() {
		return nil
	}
	out := []string{k.Raw}
	if k.Kind != LegacyString {
		if norm := k.String(); norm != k.Raw {
			out = append(out, norm)
		}
	}
	return out
}

// Expand is Parse(raw).Candidates().
func Expand(raw string) []string {
	return Parse(raw).Candidates()
}

// ExpandAll expands every id and returns the union without duplicates.
func ExpandAll(raws ...string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, raw := range raws {
		for _, c := range Expand(raw) {
			if _, ok := seen[c]; ok {
				continue
			}
			seen[c] = struct{}{}
			out = append(out, c)
		}
	}
	return out
}

// Document is a stored row with a generated primary key and an optional legacy id.
type Document interface {
	PrimaryKey() string
	LegacyKey() string
}

// Canonicalize returns the id written into cross references: the legacy id
// when the row has one, the primary key otherwise.
func Canonicalize(doc Document) string {
	if legacy := strings.TrimSpace(doc.LegacyKey()); legacy != "" {
		return legacy
	}
	return doc.PrimaryKey()
}

// Forms lists every id a row answers to, canonical first.
func Forms(doc Document) []string {
	return ExpandAll(Canonicalize(doc), doc.PrimaryKey(), doc.LegacyKey())
}

// Matches reports whether stored equals any candidate of requested.
func Matches(requested, stored string) bool {
	if stored == "" {
		return false
	}
	for _, c := range Expand(requested) {
		for _, s := range Expand(stored) {
			if c == s {
				return true
			}
		}
	}
	return false
}

// MatchesAny reports whether stored equals any of forms, all expanded.
func MatchesAny(forms []string, stored string) bool {
	for _, f := range forms {
		if Matches(f, stored) {
			return true
		}
	}
	return false
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
