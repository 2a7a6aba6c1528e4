package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeEmail(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"User@Example.COM", "user@example.com"},
		{"  padded@example.com ", "padded@example.com"},
		{"already@example.com", "already@example.com"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, NormalizeEmail(tc.in))
	}
}

func TestValidEmail(t *testing.T) {
	assert.True(t, ValidEmail("a@b.co"))
	assert.True(t, ValidEmail(" Upper@Case.Org "))
	assert.False(t, ValidEmail("no-at-sign"))
	assert.False(t, ValidEmail("no@tld"))
	assert.False(t, ValidEmail("spaces in@example.com"))
	assert.False(t, ValidEmail(""))
}

func TestSanitizePhone(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{"plain digits", "5551234567", "5551234567", true},
		{"international", "+47 555 12 345", "+4755512345", true},
		{"separators stripped", "(555) 123-45.67", "5551234567", true},
		{"too short", "12345", "", false},
		{"too long", "1234567890123456", "", false},
		{"letters rejected", "555-CALL-NOW", "", false},
		{"plus not leading", "55+1234567", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := SanitizePhone(tc.in)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestValidName(t *testing.T) {
	assert.True(t, ValidName("Ada Lovelace"))
	assert.False(t, ValidName("   "))
	assert.False(t, ValidName(""))

	long := make([]byte, 101)
	for i := range long {
		long[i] = 'x'
	}
	assert.False(t, ValidName(string(long)))
}
