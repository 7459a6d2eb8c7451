package chain

import (
	"context"
	"errors"
)

// ErrUserRejected is returned by wallet-backed signers when the human
// dismisses the signing prompt.
var ErrUserRejected = errors.New("signature request rejected by user")

// Signer turns an unsigned extrinsic payload into a signature. Implemented by
// the wallet bridge for human signatories and by the KMS signer for
// automatic execution.
type Signer interface {
	Address() string
	Sign(ctx context.Context, payload []byte) ([]byte, error)
}
