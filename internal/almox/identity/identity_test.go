package identity

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

type doc struct {
	pk     string
	legacy string
}

func (d doc) PrimaryKey() string { return d.pk }
func (d doc) LegacyKey() string  { return d.legacy }

func TestParse(t *testing.T) {
	u := uuid.New()

	tests := []struct {
		raw      string
		wantKind Kind
		wantNorm string
	}{
		{u.String(), Canonical, u.String()},
		{"  " + u.String() + " ", Canonical, u.String()},
		{"42", Legacy, "42"},
		{"0042", Legacy, "42"},
		{"almox-norte", LegacyString, "almox-norte"},
		{"99999999999999999999999", LegacyString, "99999999999999999999999"},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			k := Parse(tt.raw)
			assert.Equal(t, tt.wantKind, k.Kind)
			assert.Equal(t, tt.wantNorm, k.String())
		})
	}
}

func TestExpand(t *testing.T) {
	u := uuid.New()
	upper := "  " + toUpper(u.String())

	assert.Equal(t, []string{"42"}, Expand("42"))
	assert.Equal(t, []string{"007", "7"}, Expand("007"))
	assert.Equal(t, []string{u.String()}, Expand(u.String()))
	assert.Equal(t, []string{toUpper(u.String()), u.String()}, Expand(upper))
	assert.Equal(t, []string{"setor-uti"}, Expand("setor-uti"))
	assert.Nil(t, Expand(""))
}

func TestCanonicalize(t *testing.T) {
	u := uuid.New().String()

	assert.Equal(t, "17", Canonicalize(doc{pk: u, legacy: "17"}))
	assert.Equal(t, u, Canonicalize(doc{pk: u}))
	assert.Equal(t, u, Canonicalize(doc{pk: u, legacy: "   "}))
}

func TestCanonicalRoundTrip(t *testing.T) {
	docs := []doc{
		{pk: uuid.New().String()},
		{pk: uuid.New().String(), legacy: "17"},
		{pk: uuid.New().String(), legacy: "0017"},
		{pk: uuid.New().String(), legacy: "CENTRAL-SP"},
		{pk: uuid.New().String(), legacy: toUpper(uuid.New().String())},
	}

	for _, d := range docs {
		canonical := Canonicalize(d)
		assert.Contains(t, Expand(canonical), canonical)
		assert.Contains(t, Forms(d), canonical)
		assert.Contains(t, Forms(d), d.pk)
	}
}

func TestMatches(t *testing.T) {
	u := uuid.New()

	assert.True(t, Matches("7", "007"))
	assert.True(t, Matches(toUpper(u.String()), u.String()))
	assert.True(t, Matches("setor-a", "setor-a"))
	assert.False(t, Matches("setor-a", "setor-b"))
	assert.False(t, Matches("7", ""))
	assert.True(t, MatchesAny([]string{"x", "7"}, "7"))
	assert.False(t, MatchesAny(nil, "7"))
}

func TestExpandAll_Dedups(t *testing.T) {
	assert.Equal(t, []string{"1", "01"}, ExpandAll("1", "01", "1"))
}

func toUpper(s string) string {
	out := []rune(s)
	for i, r := range out {
		if r >= 'a' && r <= 'z' {
			out[i] = r - 32
		}
	}
	return string(out)
}
