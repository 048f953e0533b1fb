package features

import "strings"

// OAuthProviders is the source of truth for the OAuth providers offered on
// the sign-in and sign-up pages.
var OAuthProviders = map[string]bool{
	"google": true,
	"github": true,
	"apple":  false,
}

// OAuthEnabled reports whether provider may be used to start a redirect.
func OAuthEnabled(provider string) bool {
	return OAuthProviders[strings.ToLower(strings.TrimSpace(provider))]
}
