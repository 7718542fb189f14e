// Package domain holds identifier types shared across the engine.
//
// IDs are distinct named types so a transfer ID can never be passed where a
// staging ID is expected; the compiler enforces the boundary.
package domain

import (
	"github.com/google/uuid"

	dErrors "fundgate/pkg/domain-errors"
)

// Identity names the caller a safeguard decision applies to. It is opaque to
// the engine: a chat user ID, an API client ID, whatever the front end
// authenticates.
type Identity string

// IsEmpty reports whether the identity is unset.
func (i Identity) IsEmpty() bool { return i == "" }

func (i Identity) String() string { return string(i) }

// StagingID identifies a staged transfer awaiting confirmation.
type StagingID uuid.UUID

// NewStagingID generates a fresh staging ID.
func NewStagingID() StagingID { return StagingID(uuid.New()) }

// ParseStagingID constructs a StagingID from external input.
//
// Errors: CodeInvalidInput when the value is empty, malformed, or the nil
// UUID; no other errors are expected.
func ParseStagingID(s string) (StagingID, error) {
	if s == "" {
		return StagingID{}, dErrors.New(dErrors.CodeInvalidInput, "staging id cannot be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return StagingID{}, dErrors.Wrap(err, dErrors.CodeInvalidInput, "staging id must be a valid UUID")
	}
	if u == uuid.Nil {
		return StagingID{}, dErrors.New(dErrors.CodeInvalidInput, "staging id cannot be the nil UUID")
	}
	return StagingID(u), nil
}

func (id StagingID) String() string { return uuid.UUID(id).String() }

// IsNil reports whether the ID is the zero UUID.
func (id StagingID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

// MarshalText renders the ID in canonical UUID form.
func (id StagingID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText parses the canonical UUID form.
func (id *StagingID) UnmarshalText(text []byte) error {
	parsed, err := ParseStagingID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// TransferID identifies an executed (or attempted) transfer. Upstream assigns
// its own reference IDs; locally generated ones are UUIDs, so this stays a
// plain string.
type TransferID string

func (id TransferID) String() string { return string(id) }

// IsEmpty reports whether the transfer ID is unset.
func (id TransferID) IsEmpty() bool { return id == "" }
