package multisig

import (
	"bytes"
	"errors"
	"sort"

	"github.com/grantflow-labs/grantflow-backend/internal/pkg/ss58"
	"golang.org/x/crypto/blake2b"
)

var ErrInvalidThreshold = errors.New("threshold must be between 1 and the number of signatories")

// multisigModuleId is the entropy tag the multisig pallet uses for
// multi_account_id, so derived addresses match the on-chain account.
var multisigModuleId = []byte("modlpy/utilisuba")

// Derive computes the deterministic multisig account address for a set of
// signatories and a threshold. Pure function, order of signatories does not
// matter: raw account ids are sorted before hashing.
func Derive(signatories []string, threshold uint16) (string, error) {
	if len(signatories) == 0 || threshold < 1 || int(threshold) > len(signatories) {
		return "", ErrInvalidThreshold
	}

	accountIds := make([][]byte, 0, len(signatories))
	for _, signatory := range signatories {
		raw, _, err := ss58.Decode(signatory)
		if err != nil {
			return "", err
		}
		accountIds = append(accountIds, raw)
	}

	sort.Slice(accountIds, func(i, j int) bool {
		return bytes.Compare(accountIds[i], accountIds[j]) < 0
	})

	entropy := make([]byte, 0, len(multisigModuleId)+4+len(accountIds)*ss58.AccountIdLength+2)
	entropy = append(entropy, multisigModuleId...)
	entropy = append(entropy, compactUint(uint64(len(accountIds)))...)
	for _, accountId := range accountIds {
		entropy = append(entropy, accountId...)
	}
	entropy = append(entropy, byte(threshold), byte(threshold>>8))

	accountId := blake2b.Sum256(entropy)

	return ss58.Encode(accountId[:], ss58.CanonicalPrefix)
}

// compactUint is the SCALE compact encoding, needed for the length prefix of
// the signatory vector inside the derivation entropy.
func compactUint(value uint64) []byte {
	switch {
	case value < 1<<6:
		return []byte{byte(value << 2)}
	case value < 1<<14:
		encoded := uint16(value)<<2 | 0b01
		return []byte{byte(encoded), byte(encoded >> 8)}
	default:
		encoded := uint32(value)<<2 | 0b10
		return []byte{byte(encoded), byte(encoded >> 8), byte(encoded >> 16), byte(encoded >> 24)}
	}
}
