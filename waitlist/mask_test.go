package waitlist

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskEmail(t *testing.T) {
	tests := map[string]string{
		"jane@acme.io":  "ja***@acme.io",
		"ab@acme.io":    "a***@acme.io",
		"a@acme.io":     "a***@acme.io",
		"abc@acme.io":   "ab***@acme.io",
		"not-an-email":  "",
		"@missing.io":   "",
		"jöhn@acme.io":  "jö***@acme.io",
	}
	for in, want := range tests {
		assert.Equal(t, want, MaskEmail(in), in)
	}
}

func TestEmailChecks(t *testing.T) {
	assert.Equal(t, "jane@acme.io", NormalizeEmail("  Jane@ACME.io "))
	assert.True(t, validEmail("jane@acme.io"))
	assert.False(t, validEmail("jane@acme"))
	assert.False(t, validEmail("jane acme@x.io"))
	assert.True(t, disposableEmail("x@mailinator.com"))
	assert.True(t, disposableEmail("x@YOPMAIL.com"))
	assert.False(t, disposableEmail("x@acme.io"))
	assert.Len(t, disposableDomains, 29)
}
