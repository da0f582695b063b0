// Package domain holds the shared vocabulary of the compliance engine: typed
// entity identifiers, actor identity, and monetary amounts.
package domain

import (
	"github.com/google/uuid"

	dErrors "bonifica/pkg/domain-errors"
)

// Typed identifiers prevent mixing entities of different kinds at compile
// time. Construct from external input via the Parse helpers; direct casting
// bypasses validation.
type (
	OrgID    uuid.UUID
	ActionID uuid.UUID
	GroupID  uuid.UUID
	LinkID   uuid.UUID
	EntryID  uuid.UUID
)

func (id OrgID) String() string    { return uuid.UUID(id).String() }
func (id ActionID) String() string { return uuid.UUID(id).String() }
func (id GroupID) String() string  { return uuid.UUID(id).String() }
func (id LinkID) String() string   { return uuid.UUID(id).String() }
func (id EntryID) String() string  { return uuid.UUID(id).String() }

func (id OrgID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id ActionID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id GroupID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }
func (id LinkID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id EntryID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }

// Defined types do not inherit uuid.UUID's text marshaling, so each ID
// implements it explicitly. Without these, JSON would render a byte array.
func (id OrgID) MarshalText() ([]byte, error)    { return []byte(id.String()), nil }
func (id ActionID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id GroupID) MarshalText() ([]byte, error)  { return []byte(id.String()), nil }
func (id LinkID) MarshalText() ([]byte, error)   { return []byte(id.String()), nil }
func (id EntryID) MarshalText() ([]byte, error)  { return []byte(id.String()), nil }

func (id *OrgID) UnmarshalText(b []byte) error {
	parsed, err := ParseOrgID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *ActionID) UnmarshalText(b []byte) error {
	parsed, err := ParseActionID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *GroupID) UnmarshalText(b []byte) error {
	parsed, err := ParseGroupID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *LinkID) UnmarshalText(b []byte) error {
	parsed, err := ParseLinkID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *EntryID) UnmarshalText(b []byte) error {
	parsed, err := ParseEntryID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// NewOrgID returns a fresh organization identifier.
func NewOrgID() OrgID { return OrgID(uuid.New()) }

// NewActionID returns a fresh training action identifier.
func NewActionID() ActionID { return ActionID(uuid.New()) }

// NewGroupID returns a fresh delivery group identifier.
func NewGroupID() GroupID { return GroupID(uuid.New()) }

// NewLinkID returns a fresh organization-group link identifier.
func NewLinkID() LinkID { return LinkID(uuid.New()) }

// NewEntryID returns a fresh subsidy entry identifier.
func NewEntryID() EntryID { return EntryID(uuid.New()) }

func parse(s, kind string) (uuid.UUID, error) {
	u, err := uuid.Parse(s)
	if err != nil || u == uuid.Nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "invalid %s id", kind)
	}
	return u, nil
}

// ParseOrgID constructs an OrgID from external input.
func ParseOrgID(s string) (OrgID, error) {
	u, err := parse(s, "organization")
	return OrgID(u), err
}

// ParseActionID constructs an ActionID from external input.
func ParseActionID(s string) (ActionID, error) {
	u, err := parse(s, "training action")
	return ActionID(u), err
}

// ParseGroupID constructs a GroupID from external input.
func ParseGroupID(s string) (GroupID, error) {
	u, err := parse(s, "delivery group")
	return GroupID(u), err
}

// ParseLinkID constructs a LinkID from external input.
func ParseLinkID(s string) (LinkID, error) {
	u, err := parse(s, "organization-group link")
	return LinkID(u), err
}

// ParseEntryID constructs an EntryID from external input.
func ParseEntryID(s string) (EntryID, error) {
	u, err := parse(s, "subsidy entry")
	return EntryID(u), err
}
