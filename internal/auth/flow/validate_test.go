package flow

import (
	"errors"
	"testing"

	authdomain "github.com/smallbiznis/petfeeder/internal/auth/domain"
	"github.com/stretchr/testify/assert"
)

func TestValidateEmail(t *testing.T) {
	valid := []string{"a@b.co", "first.last+tag@sub.example.org", " padded@example.com "}
	for _, email := range valid {
		assert.NoError(t, ValidateEmail(email), email)
	}

	invalid := []string{"plain", "a@b", "a b@c.de", "@example.com", "a@@b.co"}
	for _, email := range invalid {
		err := ValidateEmail(email)
		assert.True(t, errors.Is(err, authdomain.ErrInvalidEmail), email)
	}

	assert.True(t, errors.Is(ValidateEmail(""), authdomain.ErrMissingField))
}

func TestValidatePassword(t *testing.T) {
	assert.ErrorIs(t, ValidatePassword("abc"), authdomain.ErrWeakPassword)
	assert.ErrorIs(t, ValidatePassword("abcdefgh"), authdomain.ErrWeakPassword)
	assert.NoError(t, ValidatePassword("Abcdef1!"))
	assert.NoError(t, ValidatePassword("abcdefG1"))
}

func TestResolveRedirect(t *testing.T) {
	cases := map[string]string{
		"":                        RouteDashboard,
		"/devices":                "/devices",
		"/pets.html?id=3":         "/pets.html?id=3",
		"//evil.example":          RouteDashboard,
		"https://evil.example/x":  RouteDashboard,
		"javascript:alert(1)":     RouteDashboard,
		`/\evil.example`:          RouteDashboard,
	}
	for in, want := range cases {
		assert.Equal(t, want, ResolveRedirect(in), in)
	}
}
