package whitelist

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"
)

func TestChecker(t *testing.T) {
	c := NewChecker("trusted", []string{" Example.COM ", "corp.internal.", ""}, zaptest.NewLogger(t))

	assert.Equal(t, 2, c.Len())

	tests := []struct {
		from string
		want bool
	}{
		{"alice@example.com", true},
		{"alice@EXAMPLE.com", true},
		{"bob@mail.example.com", true},
		{"eve@example.com.evil.tk", false},
		{"eve@notexample.com", false},
		{"ops@corp.internal", true},
		{"no-at-sign", false},
		{"trailing@", false},
	}
	for _, tt := range tests {
		t.Run(tt.from, func(t *testing.T) {
			assert.Equal(t, tt.want, c.IsWhitelisted(tt.from))
		})
	}
}

func TestCheckerEmpty(t *testing.T) {
	c := NewChecker("trusted", nil, nil)
	assert.False(t, c.Contains("example.com"))
}
