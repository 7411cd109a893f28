package payee

import (
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
)

// Type distinguishes the two account kinds that can receive payouts.
type Type string

const (
	TypeUser         Type = "user"
	TypeOrganization Type = "organization"
)

var ErrInvalidPayee = errors.New("invalid_payee")

// Ref identifies a payout recipient across the compliance and settlement
// tables.
type Ref struct {
	Type Type
	ID   snowflake.ID
}

func NewRef(t Type, id snowflake.ID) (Ref, error) {
	if (t != TypeUser && t != TypeOrganization) || id == 0 {
		return Ref{}, ErrInvalidPayee
	}
	return Ref{Type: t, ID: id}, nil
}

func ParseRef(rawType, rawID string) (Ref, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(rawID))
	if err != nil {
		return Ref{}, ErrInvalidPayee
	}
	return NewRef(Type(strings.ToLower(strings.TrimSpace(rawType))), id)
}

func (r Ref) IsZero() bool {
	return r.ID == 0
}

func (r Ref) String() string {
	return string(r.Type) + ":" + r.ID.String()
}
