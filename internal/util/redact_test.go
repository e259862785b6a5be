package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRedactPII(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"email", "login ok for bob@example.com", "login ok for [redacted-email]"},
		{"token", "token=abcdef123456 sent", "token=[redacted] sent"},
		{"password colon", "password: hunter2hunter2", "password: [redacted]"},
		{"bearer", "Authorization: Bearer eyJhbGciOi.abc", "Authorization: Bearer [redacted]"},
		{"short value untouched", "key=abc", "key=abc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RedactPII(tt.in))
		})
	}
}
