package multisig

import (
	"github.com/grantflow-labs/grantflow-backend/internal/pkg/ss58"
)

type ValidationResult struct {
	Valid           bool   `json:"valid"`
	ComputedAddress string `json:"computedAddress"`
	ExpectedAddress string `json:"expectedAddress"`
}

// Validate checks that a (signatories, threshold) pair reproduces a previously
// discovered multisig address. A mismatch is a normal displayable result, not
// an error; both addresses are always returned.
func Validate(expected string, signatories []string, threshold uint16) (ValidationResult, error) {
	computed, err := Derive(signatories, threshold)
	if err != nil {
		return ValidationResult{}, err
	}

	normalizedExpected, err := ss58.Normalize(expected)
	if err != nil {
		return ValidationResult{}, err
	}

	return ValidationResult{
		Valid:           computed == normalizedExpected,
		ComputedAddress: computed,
		ExpectedAddress: normalizedExpected,
	}, nil
}

// IsSignatory reports whether address is one of the signatories, comparing
// canonical forms so cross-network representations of the same key match.
func IsSignatory(address string, signatories []string) bool {
	return SignatoryIndex(address, signatories) >= 0
}

// SignatoryIndex returns the position of address in signatories, or -1.
func SignatoryIndex(address string, signatories []string) int {
	normalized, err := ss58.Normalize(address)
	if err != nil {
		return -1
	}

	for i, signatory := range signatories {
		candidate, err := ss58.Normalize(signatory)
		if err != nil {
			continue
		}
		if candidate == normalized {
			return i
		}
	}

	return -1
}
