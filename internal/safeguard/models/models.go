// Package models holds the value types shared across the safeguard services.
package models

import (
	"time"

	id "fundgate/pkg/domain"
	dErrors "fundgate/pkg/domain-errors"
)

// MaxNoteLength bounds the free-text note on a transfer.
const MaxNoteLength = 100

// StagingStatus is the lifecycle state of a staged transfer. Transitions are
// monotonic: PENDING may move to any terminal state; terminal states never
// change again.
type StagingStatus string

const (
	StagingPending   StagingStatus = "PENDING"
	StagingConfirmed StagingStatus = "CONFIRMED"
	StagingCancelled StagingStatus = "CANCELLED"
	StagingExpired   StagingStatus = "EXPIRED"
)

// IsTerminal reports whether the status is final and immutable.
func (s StagingStatus) IsTerminal() bool {
	return s == StagingConfirmed || s == StagingCancelled || s == StagingExpired
}

// IsValid checks if the status is one of the supported enum values.
func (s StagingStatus) IsValid() bool {
	switch s {
	case StagingPending, StagingConfirmed, StagingCancelled, StagingExpired:
		return true
	}
	return false
}

// ResolveAction is what an owner may do with their pending transfer.
type ResolveAction string

const (
	ActionConfirm ResolveAction = "CONFIRM"
	ActionCancel  ResolveAction = "CANCEL"
)

// ParseResolveAction constructs a ResolveAction from external input.
func ParseResolveAction(s string) (ResolveAction, error) {
	a := ResolveAction(s)
	if a != ActionConfirm && a != ActionCancel {
		return "", dErrors.New(dErrors.CodeInvalidInput, "action must be CONFIRM or CANCEL")
	}
	return a, nil
}

// TerminalStatus returns the staging status this action resolves to.
func (a ResolveAction) TerminalStatus() StagingStatus {
	if a == ActionCancel {
		return StagingCancelled
	}
	return StagingConfirmed
}

// StagedTransfer is a transfer request awaiting explicit confirmation by the
// identity that staged it. Nobody else may confirm or cancel it, and after
// ExpiresAt it can only become EXPIRED.
type StagedTransfer struct {
	ID          id.StagingID  `json:"id"`
	Owner       id.Identity   `json:"owner"`
	Source      string        `json:"source"`
	Destination string        `json:"destination"`
	AmountCents int64         `json:"amount_cents"`
	Note        string        `json:"note,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	ExpiresAt   time.Time     `json:"expires_at"`
	Status      StagingStatus `json:"status"`
}

// ExpiredAt reports whether the transfer is past its deadline at the given
// instant. Only meaningful for PENDING records; terminal records keep their
// status regardless of clock.
func (t StagedTransfer) ExpiredAt(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// TransferRequest is a fund-movement attempt presented to the gate.
type TransferRequest struct {
	Identity    id.Identity
	Source      string
	Destination string
	AmountCents int64
	Note        string
}

// Validate enforces the request invariants shared by direct admission and
// staging: positive integer amount, both endpoints named, bounded note.
func (r TransferRequest) Validate() error {
	if r.AmountCents <= 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "amount must be a positive number of cents")
	}
	if r.Source == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "source is required")
	}
	if r.Destination == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "destination is required")
	}
	if len(r.Note) > MaxNoteLength {
		return dErrors.Newf(dErrors.CodeInvalidInput, "note is too long (%d chars), maximum is %d", len(r.Note), MaxNoteLength)
	}
	return nil
}

// TransferOutcome is the result of an admitted, executed transfer.
type TransferOutcome struct {
	TransferID  id.TransferID `json:"transfer_id"`
	Source      string        `json:"source"`
	Destination string        `json:"destination"`
	AmountCents int64         `json:"amount_cents"`
	CompletedAt time.Time     `json:"completed_at"`
}

// QuotaDecision is the side-effect-free answer to "may this amount spend
// against the daily limit".
type QuotaDecision struct {
	Allowed        bool  `json:"allowed"`
	RemainingCents int64 `json:"remaining_cents"`
}

// RateLimitResult reports the outcome of a sliding-window check.
type RateLimitResult struct {
	Allowed   bool      `json:"allowed"`
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"reset_at"`
}
