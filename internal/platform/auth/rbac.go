package auth

import (
	"errors"
	"net/http"
	"strings"
)

var ErrForbidden = errors.New("forbidden")

// Role levels: viewers read traceability data, operators drive the
// production floor, admins administer the service.
const (
	RoleViewer   = "viewer"
	RoleOperator = "operator"
	RoleAdmin    = "admin"
)

var roleLevels = map[string]int{
	RoleViewer:   1,
	RoleOperator: 2,
	RoleAdmin:    3,
}

// RequiredRoleForRequest maps reads to viewer and every mutation
// (starting, finishing, loading, aborting runs) to operator. Lot
// decoding is a read even though it arrives as a POST.
func RequiredRoleForRequest(r *http.Request) string {
	switch r.Method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return RoleViewer
	default:
		if strings.HasPrefix(r.URL.Path, "/api/v1/lots/") {
			return RoleViewer
		}
		return RoleOperator
	}
}
