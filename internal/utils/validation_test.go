package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateAddress(t *testing.T) {
	tests := []struct {
		name    string
		addr    string
		wantErr bool
	}{
		{"valid host and port", "127.0.0.1:9090", false},
		{"valid wildcard port", ":9090", false},
		{"empty", "", true},
		{"missing port", "127.0.0.1", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAddress(tt.addr)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateHex(t *testing.T) {
	assert.NoError(t, ValidateHex("deadbeef"))
	assert.NoError(t, ValidateHex("DEADBEEF"))
	assert.Error(t, ValidateHex(""))
	assert.Error(t, ValidateHex("not-hex"))
}

func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "debug", SanitizeString("  debug  "))
	assert.Equal(t, "ab", SanitizeString("a\x00b"))
}
