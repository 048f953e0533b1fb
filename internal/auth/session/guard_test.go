package session

import (
	"testing"

	authdomain "github.com/smallbiznis/petfeeder/internal/auth/domain"
	"github.com/stretchr/testify/assert"
)

type recordingNavigator struct {
	targets []string
}

func (r *recordingNavigator) Navigate(target string) {
	r.targets = append(r.targets, target)
}

func TestGuardRedirectsAnonymousVisitors(t *testing.T) {
	for _, name := range ProtectedPages {
		for _, path := range []string{"/" + name, "/" + name + ".html", "/app/" + name} {
			nav := &recordingNavigator{}
			assert.True(t, Guard(path, nil, nav), path)
			assert.Equal(t, []string{LoginRedirect(path)}, nav.targets, path)
		}
	}
}

func TestGuardAllowsSignedInPrincipal(t *testing.T) {
	nav := &recordingNavigator{}
	for _, name := range ProtectedPages {
		assert.False(t, Guard("/"+name, &authdomain.Principal{ID: "u1"}, nav))
	}
	assert.Empty(t, nav.targets)
}

func TestGuardIgnoresPublicPages(t *testing.T) {
	nav := &recordingNavigator{}
	for _, path := range []string{"/", "/login", "/signup.html", "/index.html", "/dashboards-demo", "/mypets"} {
		assert.False(t, Guard(path, nil, nav), path)
	}
	assert.Empty(t, nav.targets)
}

func TestLoginRedirectEscapesPath(t *testing.T) {
	assert.Equal(t, "/login?redirect=%2Fdevices.html", LoginRedirect("/devices.html"))
}
