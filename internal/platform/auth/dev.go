package auth

import (
	"context"
	"net/http"
	"strings"
)

type Authenticator interface {
	Authenticate(ctx context.Context, r *http.Request) (Identity, error)
}

// DevAuthenticator attaches a fixed identity to every request. Local
// development only; never enabled behind the production gateway.
type DevAuthenticator struct {
	identity Identity
}

func NewDevAuthenticator(cfg Config) *DevAuthenticator {
	subject := strings.TrimSpace(cfg.DevSubject)
	if subject == "" {
		subject = "dev-user"
	}
	roles := cfg.DevRoles
	if len(roles) == 0 {
		roles = []string{RoleAdmin}
	}
	return &DevAuthenticator{
		identity: Identity{
			Subject: subject,
			Email:   strings.TrimSpace(cfg.DevEmail),
			Roles:   roles,
		},
	}
}

func (a *DevAuthenticator) Authenticate(ctx context.Context, r *http.Request) (Identity, error) {
	return a.identity, nil
}
