package remote

import (
	"errors"
	"fmt"
	"os"
)

// AuthKeyEnv is the environment variable carrying the shared secret to
// worker processes. Launch frameworks usually forward the environment but
// not in-process state, so the secret travels out of band while the rest
// of the handle can be passed as an argument.
const AuthKeyEnv = "RICHER_PROGRESS_AUTHKEY"

var ErrNoAuthKey = errors.New(AuthKeyEnv + " is not set")

// Handle is a serializable reference to a published object: the endpoint
// address, the shared secret and the object id. It is a plain value and
// reconstructs into a live stand-in with ResolveTask or ResolveProgress.
type Handle struct {
	Addr   string `json:"addr"`
	Secret string `json:"secret,omitempty"`
	ID     string `json:"id"`
	Kind   Kind   `json:"kind"`
}

// Redacted returns a copy of the handle without the shared secret, for
// transports where the secret travels separately (see AuthKeyEnv).
func (h Handle) Redacted() Handle {
	h.Secret = ""

	return h
}

// WithSecretFromEnv fills in the shared secret from AuthKeyEnv.
func (h Handle) WithSecretFromEnv() (Handle, error) {
	secret, found := os.LookupEnv(AuthKeyEnv)
	if !found || secret == "" {
		return h, ErrNoAuthKey
	}

	h.Secret = secret

	return h, nil
}

// String renders the handle without the secret, safe for logs.
func (h Handle) String() string {
	return fmt.Sprintf("%s@%s (%s)", h.ID, h.Addr, h.Kind)
}

func (h Handle) resolve(want Kind) (*client, error) {
	c := dial(h.Addr, h.Secret)

	var reply ResolveReply

	if err := c.call("Registry.Resolve", &IDArgs{ID: h.ID}, &reply); err != nil {
		return nil, err
	}

	if reply.Kind != want {
		return nil, fmt.Errorf("%w: %s resolved to a %s, want a %s", ErrKindMismatch, h.ID, reply.Kind, want)
	}

	return c, nil
}
