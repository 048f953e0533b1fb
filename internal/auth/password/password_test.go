package password

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClasses(t *testing.T) {
	assert.Equal(t, 0, Classes("").Count())
	assert.Equal(t, Lower|Upper|Digit|Special, Classes("Abcdef1!"))
	assert.Equal(t, Lower|Digit, Classes("abc 123"))
}

func TestStrong(t *testing.T) {
	cases := map[string]bool{
		"abc":         false,
		"abcdefgh":    false,
		"abcdefg1":    false,
		"abcdefG1":    true,
		"Abcdef1!":    true,
		"abcdef1!":    true,
		"ABCDEFG!":    false,
		"Ab1!":        false,
		"pässwÖrd1":   true,
		"12345678!@#": false,
	}
	for pw, want := range cases {
		assert.Equal(t, want, Strong(pw), pw)
	}
}
