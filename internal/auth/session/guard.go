package session

import (
	"net/url"
	"strings"

	authdomain "github.com/smallbiznis/petfeeder/internal/auth/domain"
)

// LoginPath is the public sign-in route.
const LoginPath = "/login"

// ProtectedPages are the route names that require a principal.
var ProtectedPages = []string{
	"dashboard",
	"devices",
	"pets",
	"schedules",
	"history",
	"analytics",
	"settings",
	"profile",
}

// Navigator performs page navigation.
type Navigator interface {
	Navigate(target string)
}

type NavigatorFunc func(target string)

func (f NavigatorFunc) Navigate(target string) {
	f(target)
}

// IsProtected reports whether path ends in one of the protected page names,
// with or without an .html extension.
func IsProtected(path string) bool {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	path = strings.TrimSuffix(strings.TrimSuffix(path, "/"), ".html")
	for _, name := range ProtectedPages {
		if path == name || strings.HasSuffix(path, "/"+name) {
			return true
		}
	}
	return false
}

func LoginRedirect(path string) string {
	return LoginPath + "?redirect=" + url.QueryEscape(path)
}

// Guard sends an anonymous visitor of a protected page to the login page,
// carrying the original path. It reports whether it navigated.
func Guard(path string, principal *authdomain.Principal, nav Navigator) bool {
	if principal != nil || !IsProtected(path) {
		return false
	}
	nav.Navigate(LoginRedirect(path))
	return true
}
