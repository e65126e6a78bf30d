// Package validation provides input validation for veriport.
package validation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/mod/semver"
)

// ValidateAddress validates an Ethereum contract address
func ValidateAddress(addr string) error {
	if !strings.HasPrefix(addr, "0x") {
		return errors.New("invalid address: must start with 0x")
	}
	if !common.IsHexAddress(addr) {
		return errors.New("invalid address: must be 0x followed by 40 hex characters")
	}
	return nil
}

// ValidateCompilerVersion checks that a solc version string looks like
// "v<major>.<minor>.<patch>[+commit.<hash>]". Explorers sometimes return
// malformed versions; callers treat a failure here as a warning, not an
// error.
func ValidateCompilerVersion(version string) error {
	if version == "" {
		return errors.New("compiler version is empty")
	}

	// Strip the optional leading marker and commit suffix before the
	// semver check.
	base := strings.TrimPrefix(version, "v")
	if i := strings.IndexByte(base, '+'); i >= 0 {
		base = base[:i]
	}

	if !semver.IsValid("v" + base) {
		return fmt.Errorf("compiler version %q is not a valid solc version", version)
	}
	if strings.Count(base, ".") != 2 {
		return fmt.Errorf("compiler version %q must have major.minor.patch", version)
	}
	return nil
}
