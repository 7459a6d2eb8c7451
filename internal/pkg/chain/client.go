package chain

import "context"

// Client is the chain RPC capability the engine depends on. Queries return
// (nil, nil) for structural absence so callers can tell "not there" apart
// from a transport failure.
type Client interface {
	// Bounty fetches a treasury bounty by id, nil when it does not exist.
	Bounty(ctx context.Context, network string, bountyId uint32) (*Bounty, error)

	// ProxiesOf lists the proxy delegations registered for an account. A pure
	// proxy curator reports its controlling account here.
	ProxiesOf(ctx context.Context, network string, address string) ([]ProxyDefinition, error)

	// AccountIsMultisig reports whether the account id is a known multisig.
	AccountIsMultisig(ctx context.Context, network string, address string) (bool, error)

	AccountBalance(ctx context.Context, network string, address string) (string, error)

	// PendingMultisigCall returns the in-flight multisig call for the given
	// hash, nil when the chain no longer tracks it.
	PendingMultisigCall(ctx context.Context, network string, multisigAddress string, callHash string) (*PendingMultisig, error)

	// BuildPayoutCall encodes the milestone payout transfer and returns its
	// call data and hash.
	BuildPayoutCall(ctx context.Context, network string, request PayoutCallRequest) (*PayoutCall, error)

	// BuildApprovalExtrinsic produces the unsigned asMulti/approveAsMulti
	// extrinsic for the given signer.
	BuildApprovalExtrinsic(ctx context.Context, network string, signerAddress string, params ApprovalExtrinsicParams) (*UnsignedExtrinsic, error)

	// SubmitExtrinsic broadcasts a signed extrinsic and waits for inclusion.
	SubmitExtrinsic(ctx context.Context, network string, unsigned *UnsignedExtrinsic, signature []byte) (*SubmissionResult, error)
}
