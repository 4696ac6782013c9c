package domain

import (
	"github.com/almoxsms/almox-backend/internal/almox/identity"
	"github.com/google/uuid"
)

// Identity is shared by every entity that can be referenced under more than
// one id scheme. ID is the canonical form: LegacyID when set, OID otherwise.
type Identity struct {
	ID       string    `db:"id" json:"id"`
	OID      uuid.UUID `db:"oid" json:"oid"`
	LegacyID *string   `db:"legacy_id" json:"legacy_id,omitempty"`
}

func (i Identity) PrimaryKey() string {
	if i.OID == uuid.Nil {
		return ""
	}
	return i.OID.String()
}

func (i Identity) LegacyKey() string {
	if i.LegacyID == nil {
		return ""
	}
	return *i.LegacyID
}

// Forms lists every id this row answers to.
func (i Identity) Forms() []string {
	return identity.Forms(i)
}

// Is reports whether raw names this row under any scheme.
func (i Identity) Is(raw string) bool {
	for _, f := range i.Forms() {
		if identity.Matches(raw, f) {
			return true
		}
	}
	return false
}

// Assign fills OID for new rows and recomputes the canonical ID.
func (i *Identity) Assign() {
	if i.OID == uuid.Nil {
		i.OID = uuid.New()
	}
	i.ID = identity.Canonicalize(i)
}
