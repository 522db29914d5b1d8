package auth

import (
	"context"

	"github.com/golang-jwt/jwt/v4"
)

type Role string

const (
	RoleUser      Role = "USER"
	RoleLibrarian Role = "LIBRARIAN"
	RoleAdmin     Role = "ADMIN"
)

// IsStaff reports whether the role may perform librarian operations.
func (r Role) IsStaff() bool {
	return r == RoleLibrarian || r == RoleAdmin
}

const (
	XUserNameHeader = "X-User-Name"
	XUserRoleHeader = "X-User-Role"
)

type Profile struct {
	Username string `json:"username"`
	Role     Role   `json:"role"`
}

type Claims struct {
	jwt.RegisteredClaims
	Profile Profile `json:"profile"`
}

type ctxKey int

const authKey ctxKey = iota

func SetAuthContext(ctx context.Context, username string, role Role) context.Context {
	return context.WithValue(ctx, authKey, Profile{Username: username, Role: role})
}

// FromContext returns the authenticated profile, ok=false if the request
// never passed the auth middleware.
func FromContext(ctx context.Context) (Profile, bool) {
	p, ok := ctx.Value(authKey).(Profile)
	return p, ok
}
