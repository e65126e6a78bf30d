package validation

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
		{"valid checksummed", "0xE592427A0AEce92De3Edee1F18E0157C05861564", false},
		{"valid lowercase", "0xe592427a0aece92de3edee1f18e0157c05861564", false},
		{"missing 0x prefix", "E592427A0AEce92De3Edee1F18E0157C05861564", true},
		{"too short", "0x1234", true},
		{"too long", "0xE592427A0AEce92De3Edee1F18E0157C0586156400", true},
		{"non-hex characters", "0xZZ92427A0AEce92De3Edee1F18E0157C05861564", true},
		{"empty", "", true},
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

func TestValidateCompilerVersion(t *testing.T) {
	tests := []struct {
		name    string
		version string
		wantErr bool
	}{
		{"full solc version", "v0.8.19+commit.7dd6d404", false},
		{"without leading v", "0.8.19+commit.7dd6d404", false},
		{"without commit", "v0.8.19", false},
		{"major.minor only", "v0.8", true},
		{"empty", "", true},
		{"garbage", "solc-latest", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCompilerVersion(tt.version)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
