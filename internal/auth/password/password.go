// Package password holds the client-side password policy.
package password

import "unicode"

const (
	MinLength  = 8
	MinClasses = 3
)

// Class is one of the character groups counted by the strength rule.
type Class uint8

const (
	Lower Class = 1 << iota
	Upper
	Digit
	Special
)

// Classes returns the set of character groups present in pw.
func Classes(pw string) Class {
	var set Class
	for _, r := range pw {
		switch {
		case unicode.IsLower(r):
			set |= Lower
		case unicode.IsUpper(r):
			set |= Upper
		case unicode.IsDigit(r):
			set |= Digit
		case unicode.IsSpace(r):
		default:
			set |= Special
		}
	}
	return set
}

// Count returns how many groups are present.
func (c Class) Count() int {
	n := 0
	for _, bit := range []Class{Lower, Upper, Digit, Special} {
		if c&bit != 0 {
			n++
		}
	}
	return n
}

// Check reports whether pw is long enough and mixes enough character groups.
func Check(pw string) (longEnough, mixed bool) {
	return len([]rune(pw)) >= MinLength, Classes(pw).Count() >= MinClasses
}

// Strong reports whether pw satisfies the policy.
func Strong(pw string) bool {
	longEnough, mixed := Check(pw)
	return longEnough && mixed
}
