package privacy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAnonymizeIP(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"192.168.1.47", "192.168.1.0"},
		{"127.0.0.1", "127.0.0.0"},
		{"2001:db8:85a3::8a2e:370:7334", "2001:0db8:85a3::"},
		{"::1", "0000:0000:0000::"},
		{"", "unknown"},
		{"unknown", "unknown"},
		{"not-an-ip", "invalid"},
		{"192.168.1.1:8080", "invalid"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, AnonymizeIP(tt.input))
		})
	}
}

func TestAnonymizeIPIsFixedPoint(t *testing.T) {
	for _, ip := range []string{"10.1.2.3", "2001:db8:85a3::8a2e:370:7334", "garbage"} {
		once := AnonymizeIP(ip)
		assert.Equal(t, once, AnonymizeIP(once), ip)
	}
}
