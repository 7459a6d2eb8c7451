package multisig

import (
	"testing"

	"github.com/grantflow-labs/grantflow-backend/internal/pkg/ss58"
	"github.com/stretchr/testify/require"
)

func TestValidateMatchesDerivedAddress(t *testing.T) {
	signatories := []string{alice, bob, charlie}

	derived, err := Derive(signatories, 2)
	require.NoError(t, err)

	result, err := Validate(derived, signatories, 2)
	require.NoError(t, err)
	require.True(t, result.Valid)
	require.Equal(t, derived, result.ComputedAddress)
	require.Equal(t, derived, result.ExpectedAddress)
}

func TestValidateReportsMismatchWithBothAddresses(t *testing.T) {
	signatories := []string{alice, bob, charlie}

	derived, err := Derive(signatories, 2)
	require.NoError(t, err)

	result, err := Validate(derived, signatories, 3)
	require.NoError(t, err)
	require.False(t, result.Valid)
	require.NotEmpty(t, result.ComputedAddress)
	require.Equal(t, derived, result.ExpectedAddress)
	require.NotEqual(t, result.ComputedAddress, result.ExpectedAddress)
}

func TestValidateNormalizesExpectedAddress(t *testing.T) {
	signatories := []string{alice, bob}

	derived, err := Derive(signatories, 2)
	require.NoError(t, err)

	raw, _, err := ss58.Decode(derived)
	require.NoError(t, err)
	kusamaForm, err := ss58.Encode(raw, 2)
	require.NoError(t, err)

	result, err := Validate(kusamaForm, signatories, 2)
	require.NoError(t, err)
	require.True(t, result.Valid)
}

func TestIsSignatoryAcrossPrefixes(t *testing.T) {
	signatories := []string{alice, bob, charlie}

	raw, _, err := ss58.Decode(bob)
	require.NoError(t, err)
	bobPolkadot, err := ss58.Encode(raw, 0)
	require.NoError(t, err)

	require.True(t, IsSignatory(bobPolkadot, signatories))
	require.Equal(t, 1, SignatoryIndex(bobPolkadot, signatories))

	outsider, err := Derive(signatories, 2)
	require.NoError(t, err)
	require.False(t, IsSignatory(outsider, signatories))
	require.Equal(t, -1, SignatoryIndex(outsider, signatories))
}

func TestSignatoryIndexWithMalformedAddress(t *testing.T) {
	require.Equal(t, -1, SignatoryIndex("garbage", []string{alice}))
}
