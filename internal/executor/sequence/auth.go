package sequence

import (
	"context"
	"fmt"
)

// StaticAuthenticator serves a fixed opaque credential. Rotation happens by
// restarting with new configuration; the engine never refreshes tokens.
type StaticAuthenticator struct {
	credential string
}

func NewStaticAuthenticator(credential string) (*StaticAuthenticator, error) {
	if credential == "" {
		return nil, fmt.Errorf("credential is required")
	}
	return &StaticAuthenticator{credential: credential}, nil
}

func (a *StaticAuthenticator) CurrentCredential(_ context.Context) (string, error) {
	return a.credential, nil
}
