package domains

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestChecker_IsAccepted(t *testing.T) {
	c := NewChecker([]string{" Clinic.Example ", "spa.example"}, zap.NewNop())

	tests := []struct {
		address  string
		accepted bool
	}{
		{"frontdesk@clinic.example", true},
		{"Front Desk <frontdesk@CLINIC.EXAMPLE>", true},
		{"<booking@spa.example>", true},
		{"someone@other.example", false},
		{"not-an-address", false},
		{"trailing@", false},
	}

	for _, tt := range tests {
		t.Run(tt.address, func(t *testing.T) {
			assert.Equal(t, tt.accepted, c.IsAccepted(tt.address))
		})
	}
}

func TestChecker_EmptyAcceptsAll(t *testing.T) {
	c := NewChecker(nil, nil)
	assert.True(t, c.IsAccepted("anyone@anywhere.example"))
}

func TestDomain(t *testing.T) {
	domain, ok := Domain("Ana <ana@Example.COM>")
	assert.True(t, ok)
	assert.Equal(t, "example.com", domain)
}
