package auth

import (
	"context"
	"strings"
)

// Identity is the caller as asserted by the trusted gateway: a stable
// subject, an optional email, and lowercase role names.
type Identity struct {
	Subject string
	Email   string
	Roles   []string
}

// HasAtLeast reports whether any of the identity's roles reaches the
// required level in the viewer < operator < admin ordering. Unknown
// role names never satisfy anything.
func (i Identity) HasAtLeast(required string) bool {
	requiredLevel := roleLevels[strings.ToLower(strings.TrimSpace(required))]
	if requiredLevel == 0 {
		return false
	}
	for _, role := range i.Roles {
		if roleLevels[strings.ToLower(strings.TrimSpace(role))] >= requiredLevel {
			return true
		}
	}
	return false
}

type ctxKeyIdentity struct{}

// ContextWithIdentity stores the admitted caller on the request context;
// the middleware is the only writer.
func ContextWithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, ctxKeyIdentity{}, identity)
}

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	v, ok := ctx.Value(ctxKeyIdentity{}).(Identity)
	return v, ok
}
