package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValidEmail(t *testing.T) {
	cases := map[string]bool{
		"lead@example.com":          true,
		"first.last+tag@mail.co.uk": true,
		"":                          false,
		"no-at-sign":                false,
		"missing@tld":               false,
		"Name <lead@example.com>":   false,
		"@example.com":              false,
	}
	for in, want := range cases {
		assert.Equal(t, want, ValidEmail(in), in)
	}
}

func TestNormalizeEmail_KeepsCase(t *testing.T) {
	assert.Equal(t, "Lead@Example.com", NormalizeEmail("  Lead@Example.com \n"))
}

func TestClickEmail(t *testing.T) {
	assert.Equal(t, AnonymousEmail, ClickEmail(""))
	assert.Equal(t, AnonymousEmail, ClickEmail("   "))
	assert.Equal(t, "lead@example.com", ClickEmail(" lead@example.com"))
}

func TestSessionExpired(t *testing.T) {
	now := time.Now()
	s := &Session{ExpiresAt: now.Add(time.Minute)}
	assert.False(t, s.Expired(now))
	assert.True(t, s.Expired(now.Add(2*time.Minute)))
}
