package walletbridge

import (
	"context"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/grantflow-labs/grantflow-backend/internal/pkg/chain"
	"github.com/grantflow-labs/grantflow-backend/internal/pkg/ws"
	"github.com/rs/zerolog/log"
)

// Bridge hands unsigned extrinsic payloads to a signatory's wallet session
// over the notification hub and waits for the signature (or rejection) to be
// posted back. One outstanding request per request id.
type Bridge struct {
	hub     *ws.NotificationHub
	timeout time.Duration

	mu      sync.Mutex
	pending map[string]chan signatureResponse
}

type signatureResponse struct {
	signature []byte
	rejected  bool
}

func NewBridge(hub *ws.NotificationHub, timeout time.Duration) *Bridge {
	return &Bridge{
		hub:     hub,
		timeout: timeout,
		pending: map[string]chan signatureResponse{},
	}
}

func (b *Bridge) SignerFor(address string) chain.Signer {
	return &remoteSigner{bridge: b, address: address}
}

// Resolve delivers a wallet response for an outstanding signature request.
func (b *Bridge) Resolve(requestId string, signatureHex string, rejected bool) error {
	b.mu.Lock()
	responseCh, ok := b.pending[requestId]
	b.mu.Unlock()
	if !ok {
		return fmt.Errorf("no pending signature request %s", requestId)
	}

	response := signatureResponse{rejected: rejected}
	if !rejected {
		signature, err := hex.DecodeString(signatureHex)
		if err != nil {
			return fmt.Errorf("malformed signature for request %s", requestId)
		}
		response.signature = signature
	}

	select {
	case responseCh <- response:
		return nil
	default:
		return fmt.Errorf("signature request %s already resolved", requestId)
	}
}

type remoteSigner struct {
	bridge  *Bridge
	address string
}

func (s *remoteSigner) Address() string {
	return s.address
}

func (s *remoteSigner) Sign(ctx context.Context, payload []byte) ([]byte, error) {
	requestId := uuid.New().String()
	responseCh := make(chan signatureResponse, 1)

	s.bridge.mu.Lock()
	s.bridge.pending[requestId] = responseCh
	s.bridge.mu.Unlock()

	defer func() {
		s.bridge.mu.Lock()
		delete(s.bridge.pending, requestId)
		s.bridge.mu.Unlock()
	}()

	log.Info().Msg(fmt.Sprintf("Requesting wallet signature %s from %s", requestId, s.address))
	s.bridge.hub.Publish(fmt.Sprintf("signers/%s", s.address), map[string]any{
		"type":      "SIGNATURE_REQUESTED",
		"requestId": requestId,
		"payload":   hex.EncodeToString(payload),
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(s.bridge.timeout):
		return nil, fmt.Errorf("timed out waiting for wallet signature from %s", s.address)
	case response := <-responseCh:
		if response.rejected {
			return nil, chain.ErrUserRejected
		}
		return response.signature, nil
	}
}
