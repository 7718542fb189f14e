// Package loopback is an executor that acknowledges every transfer without
// contacting an upstream. Used in development and tests where the safeguards
// themselves are the subject.
package loopback

import (
	"context"

	"github.com/google/uuid"

	"fundgate/internal/safeguard/ports"
	id "fundgate/pkg/domain"
)

type Executor struct{}

func New() *Executor { return &Executor{} }

func (e *Executor) Execute(_ context.Context, _ ports.ExecuteRequest) (ports.ExecuteResult, error) {
	return ports.ExecuteResult{
		TransferID: id.TransferID(uuid.NewString()),
		Status:     "COMPLETED",
	}, nil
}
