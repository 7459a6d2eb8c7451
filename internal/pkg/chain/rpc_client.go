package chain

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jpillora/backoff"
	"github.com/rs/zerolog/log"
)

// RPCClient talks JSON-RPC over websocket to the per-network chain gateway
// nodes. One connection per network, shared across requests, re-dialed with
// backoff when it drops.
type RPCClient struct {
	endpoints map[string]string

	mu    sync.Mutex
	conns map[string]*rpcConn
}

type rpcConn struct {
	conn    *websocket.Conn
	writeMu sync.Mutex

	pendingMu sync.Mutex
	pending   map[uint64]chan rpcResponse
	closed    bool
}

type rpcRequest struct {
	JsonRpc string `json:"jsonrpc"`
	Id      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcResponse struct {
	Id     uint64          `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

var requestId uint64

func NewRPCClient(endpoints map[string]string) *RPCClient {
	return &RPCClient{
		endpoints: endpoints,
		conns:     map[string]*rpcConn{},
	}
}

func (c *RPCClient) Bounty(ctx context.Context, network string, bountyId uint32) (*Bounty, error) {
	var bounty *Bounty
	err := c.call(ctx, network, "chain_getBounty", []any{bountyId}, &bounty)
	if err != nil {
		return nil, err
	}
	return bounty, nil
}

func (c *RPCClient) ProxiesOf(ctx context.Context, network string, address string) ([]ProxyDefinition, error) {
	var proxies []ProxyDefinition
	err := c.call(ctx, network, "chain_getProxies", []any{address}, &proxies)
	if err != nil {
		return nil, err
	}
	return proxies, nil
}

func (c *RPCClient) AccountIsMultisig(ctx context.Context, network string, address string) (bool, error) {
	var isMultisig bool
	err := c.call(ctx, network, "chain_isMultisigAccount", []any{address}, &isMultisig)
	if err != nil {
		return false, err
	}
	return isMultisig, nil
}

func (c *RPCClient) AccountBalance(ctx context.Context, network string, address string) (string, error) {
	var balance string
	err := c.call(ctx, network, "chain_getFreeBalance", []any{address}, &balance)
	if err != nil {
		return "", err
	}
	return balance, nil
}

func (c *RPCClient) PendingMultisigCall(ctx context.Context, network string, multisigAddress string, callHash string) (*PendingMultisig, error) {
	var pending *PendingMultisig
	err := c.call(ctx, network, "chain_getPendingMultisig", []any{multisigAddress, callHash}, &pending)
	if err != nil {
		return nil, err
	}
	return pending, nil
}

func (c *RPCClient) BuildPayoutCall(ctx context.Context, network string, request PayoutCallRequest) (*PayoutCall, error) {
	var call *PayoutCall
	err := c.call(ctx, network, "chain_buildPayoutCall", []any{request}, &call)
	if err != nil {
		return nil, err
	}
	if call == nil {
		return nil, fmt.Errorf("rpc error: empty payout call response")
	}
	return call, nil
}

func (c *RPCClient) BuildApprovalExtrinsic(ctx context.Context, network string, signerAddress string, params ApprovalExtrinsicParams) (*UnsignedExtrinsic, error) {
	var unsigned *UnsignedExtrinsic
	err := c.call(ctx, network, "chain_buildApprovalExtrinsic", []any{signerAddress, params}, &unsigned)
	if err != nil {
		return nil, err
	}
	if unsigned == nil {
		return nil, fmt.Errorf("rpc error: empty extrinsic response")
	}
	return unsigned, nil
}

func (c *RPCClient) SubmitExtrinsic(ctx context.Context, network string, unsigned *UnsignedExtrinsic, signature []byte) (*SubmissionResult, error) {
	var result *SubmissionResult
	err := c.call(ctx, network, "chain_submitExtrinsic", []any{unsigned, fmt.Sprintf("%x", signature)}, &result)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, fmt.Errorf("rpc error: empty submission response")
	}
	return result, nil
}

func (c *RPCClient) call(ctx context.Context, network string, method string, params []any, result any) error {
	conn, err := c.connection(ctx, network)
	if err != nil {
		return err
	}

	id := atomic.AddUint64(&requestId, 1)
	responseCh := make(chan rpcResponse, 1)

	conn.pendingMu.Lock()
	if conn.closed {
		conn.pendingMu.Unlock()
		return fmt.Errorf("network error: connection to %s closed", network)
	}
	conn.pending[id] = responseCh
	conn.pendingMu.Unlock()

	defer func() {
		conn.pendingMu.Lock()
		delete(conn.pending, id)
		conn.pendingMu.Unlock()
	}()

	request := rpcRequest{JsonRpc: "2.0", Id: id, Method: method, Params: params}
	conn.writeMu.Lock()
	writeErr := conn.conn.WriteJSON(request)
	conn.writeMu.Unlock()
	if writeErr != nil {
		c.dropConnection(network, conn)
		return fmt.Errorf("network error: %w", writeErr)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case response, ok := <-responseCh:
		if !ok {
			return fmt.Errorf("network error: connection to %s dropped mid-request", network)
		}
		if response.Error != nil {
			return response.Error
		}
		if result == nil || len(response.Result) == 0 || string(response.Result) == "null" {
			return nil
		}
		return json.Unmarshal(response.Result, result)
	}
}

func (c *RPCClient) connection(ctx context.Context, network string) (*rpcConn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.conns[network]; ok {
		return existing, nil
	}

	endpoint, ok := c.endpoints[network]
	if !ok {
		return nil, fmt.Errorf("no rpc endpoint configured for network %s", network)
	}

	b := &backoff.Backoff{
		Min:    250 * time.Millisecond,
		Max:    10 * time.Second,
		Factor: 2,
		Jitter: true,
	}

	var wsConn *websocket.Conn
	var err error
	for attempt := 0; attempt < 5; attempt++ {
		wsConn, _, err = websocket.DefaultDialer.DialContext(ctx, endpoint, nil)
		if err == nil {
			break
		}
		log.Warn().Err(err).Msg(fmt.Sprintf("Cannot reach rpc endpoint for %s, retrying", network))
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(b.Duration()):
		}
	}
	if err != nil {
		return nil, fmt.Errorf("network error: %w", err)
	}

	conn := &rpcConn{
		conn:    wsConn,
		pending: map[uint64]chan rpcResponse{},
	}
	c.conns[network] = conn

	go c.readLoop(network, conn)

	return conn, nil
}

func (c *RPCClient) readLoop(network string, conn *rpcConn) {
	for {
		var response rpcResponse
		if err := conn.conn.ReadJSON(&response); err != nil {
			log.Warn().Err(err).Msg(fmt.Sprintf("Rpc connection to %s dropped", network))
			c.dropConnection(network, conn)
			return
		}

		conn.dispatch(response)
	}
}

// dispatch hands a response to the waiting caller. The send happens under
// pendingMu so closePending can never close a channel mid-send; the channel
// is buffered and removed from the map first, so the send cannot block.
func (rc *rpcConn) dispatch(response rpcResponse) {
	rc.pendingMu.Lock()
	defer rc.pendingMu.Unlock()

	if rc.closed {
		return
	}
	if responseCh, ok := rc.pending[response.Id]; ok {
		delete(rc.pending, response.Id)
		responseCh <- response
	}
}

// closePending wakes every in-flight caller with a closed channel. Only runs
// once; dispatch holds the same lock, so no send can interleave with a close.
func (rc *rpcConn) closePending() {
	rc.pendingMu.Lock()
	defer rc.pendingMu.Unlock()

	if rc.closed {
		return
	}
	rc.closed = true
	for id, responseCh := range rc.pending {
		close(responseCh)
		delete(rc.pending, id)
	}
}

func (c *RPCClient) dropConnection(network string, conn *rpcConn) {
	c.mu.Lock()
	if c.conns[network] == conn {
		delete(c.conns, network)
	}
	c.mu.Unlock()

	conn.closePending()
	conn.conn.Close()
}

func (c *RPCClient) Close() {
	c.mu.Lock()
	conns := c.conns
	c.conns = map[string]*rpcConn{}
	c.mu.Unlock()

	for network, conn := range conns {
		log.Info().Msg(fmt.Sprintf("Closing rpc connection to %s", network))
		conn.conn.Close()
	}
}
