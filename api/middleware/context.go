package middleware

import (
	"context"

	"github.com/angelmondragon/cbwis-backend/pkg/outbox"
)

type contextKey string

const ctxIdentity contextKey = "identity"

// Identity is the authenticated caller attached by Auth.
type Identity struct {
	Subject string
	Email   string
	Role    string
}

// Actor is the name recorded on transactions: the email when present, else the subject.
func (i Identity) Actor() string {
	if i.Email != "" {
		return i.Email
	}
	return i.Subject
}

// WithIdentity injects the caller identity into the context.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxIdentity, id)
}

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	if ctx == nil {
		return Identity{}, false
	}
	id, ok := ctx.Value(ctxIdentity).(Identity)
	return id, ok
}

func UserIDFromContext(ctx context.Context) string {
	id, _ := IdentityFromContext(ctx)
	return id.Subject
}

func RoleFromContext(ctx context.Context) string {
	id, _ := IdentityFromContext(ctx)
	return id.Role
}

// ActorFromContext returns the outbox actor for the caller, or nil when unauthenticated.
func ActorFromContext(ctx context.Context) *outbox.ActorRef {
	id, ok := IdentityFromContext(ctx)
	if !ok || id.Subject == "" {
		return nil
	}
	return &outbox.ActorRef{Subject: id.Subject, Email: id.Email, Role: id.Role}
}
