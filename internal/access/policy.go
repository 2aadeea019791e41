// Package access is the one place that decides where each role may go.
package access

import (
	"strings"

	"chocolata/internal/domain"
)

// Area is a group of routes guarded together
type Area string

const (
	AreaPublic Area = "public"
	AreaBuyer  Area = "buyer"
	AreaSeller Area = "seller"
	AreaAdmin  Area = "admin"
)

var areasByRole = map[domain.Role][]Area{
	domain.RoleBuyer:  {AreaPublic, AreaBuyer},
	domain.RoleSeller: {AreaPublic, AreaSeller},
	domain.RoleAdmin:  {AreaPublic, AreaAdmin},
}

var homeByRole = map[domain.Role]string{
	domain.RoleBuyer:  "/catalog",
	domain.RoleSeller: "/seller/dashboard",
	domain.RoleAdmin:  "/admin/dashboard",
}

// routePrefixes maps storefront paths onto areas by whole path segment, first match wins
var routePrefixes = []struct {
	prefix string
	area   Area
}{
	{"/checkout/confirmation/", AreaBuyer},
	{"/checkout", AreaBuyer},
	{"/cart", AreaBuyer},
	{"/orders", AreaBuyer},
	{"/profile", AreaBuyer},
	{"/seller/", AreaSeller},
	{"/admin/", AreaAdmin},
}

// Navigation is what a signed-in client needs to route its user
type Navigation struct {
	Role  domain.Role `json:"role"`
	Home  string      `json:"home"`
	Areas []Area      `json:"areas"`
}

// HomeRoute is the landing page for a role; unknown roles land on the catalog
func HomeRoute(role domain.Role) string {
	if home, ok := homeByRole[role]; ok {
		return home
	}
	return homeByRole[domain.RoleBuyer]
}

// CanEnter reports whether role may use area. Anonymous callers (empty role) only get public.
func CanEnter(role domain.Role, area Area) bool {
	if area == AreaPublic {
		return true
	}
	for _, allowed := range areasByRole[role] {
		if allowed == area {
			return true
		}
	}
	return false
}

// AreaForPath classifies a storefront path
func AreaForPath(path string) Area {
	for _, rp := range routePrefixes {
		base := strings.TrimSuffix(rp.prefix, "/")
		if path == base || strings.HasPrefix(path, base+"/") {
			return rp.area
		}
	}
	return AreaPublic
}

// Destination returns path when role may visit it, otherwise the role's home
// (or the login page for anonymous callers).
func Destination(role domain.Role, path string) string {
	if CanEnter(role, AreaForPath(path)) {
		return path
	}
	if role == "" {
		return "/login"
	}
	return HomeRoute(role)
}

// Resolve builds the navigation for role
func Resolve(role domain.Role) Navigation {
	areas := areasByRole[role]
	if areas == nil {
		areas = []Area{AreaPublic}
	}
	return Navigation{Role: role, Home: HomeRoute(role), Areas: areas}
}
