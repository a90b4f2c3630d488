// Package authmethod models the per-account authentication methods and their
// capabilities. The recovery core depends on the Backend capability set
// rather than on any concrete method.
package authmethod

import (
	"context"
	"errors"

	"github.com/bambuco/moodle-auth-customized/internal/model"
)

// Backend is the capability set of an authentication method.
type Backend interface {
	// Name returns the auth method tag stored on accounts.
	Name() string

	// Enabled reports whether the method is enabled site-wide.
	Enabled() bool

	// CanResetPassword reports whether accounts on this method may change
	// their own credential without administrator intervention.
	CanResetPassword() bool

	// UpdatePassword writes the new credential for the account. It returns
	// false when the backend refuses the write.
	UpdatePassword(ctx context.Context, account *model.Account, newPassword string) (bool, error)
}

// ErrUnknownMethod is returned when an account carries an auth method tag
// that no registered backend serves.
var ErrUnknownMethod = errors.New("unknown authentication method")

// Registry resolves an account's auth method tag to its Backend.
type Registry struct {
	backends map[string]Backend
}

// NewRegistry creates a Registry from the given backends.
func NewRegistry(backends ...Backend) *Registry {
	m := make(map[string]Backend, len(backends))
	for _, b := range backends {
		m[b.Name()] = b
	}

	return &Registry{backends: m}
}

// Get returns the backend for the given auth method tag.
func (r *Registry) Get(method string) (Backend, error) {
	b, ok := r.backends[method]
	if !ok {
		return nil, ErrUnknownMethod
	}

	return b, nil
}
