// Package anchor records message digests on an external ledger. The ledger
// is an opaque oracle exposing storeHash/verifyHash; chat works fully
// without it, so anchoring runs off the broadcast path via the event bus.
package anchor

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/hmaekawa/caster/internal/eventbus"
	"github.com/hmaekawa/caster/logging"
)

// Digest returns the hex-encoded SHA-256 digest of a message.
func Digest(message string) string {
	sum := sha256.Sum256([]byte(message))
	return hex.EncodeToString(sum[:])
}

// Anchorer is the narrow interface to the hash-anchoring oracle.
type Anchorer interface {
	// StoreHash records a digest on the ledger.
	StoreHash(ctx context.Context, digest string) error

	// VerifyHash reports whether a digest was previously recorded.
	VerifyHash(ctx context.Context, digest string) (bool, error)
}

// Noop is an Anchorer that records nothing and verifies nothing.
type Noop struct{}

func (Noop) StoreHash(context.Context, string) error { return nil }

func (Noop) VerifyHash(context.Context, string) (bool, error) { return false, nil }

// Options configures a ledger client.
type Options struct {
	Endpoint string
	Account  string
	Timeout  time.Duration
}

// Client talks JSON-RPC to a ledger gateway node.
type Client struct {
	endpoint   string
	account    string
	httpClient *http.Client
}

// NewClient creates a ledger client.
func NewClient(opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		endpoint:   opts.Endpoint,
		account:    opts.Account,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// StoreHash implements the Anchorer interface.
func (c *Client) StoreHash(ctx context.Context, digest string) error {
	var txHash string
	return c.call(ctx, "anchor_storeHash", []any{digest, c.account}, &txHash)
}

// VerifyHash implements the Anchorer interface.
func (c *Client) VerifyHash(ctx context.Context, digest string) (bool, error) {
	var recorded bool
	if err := c.call(ctx, "anchor_verifyHash", []any{digest}, &recorded); err != nil {
		return false, err
	}
	return recorded, nil
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

func (c *Client) call(ctx context.Context, method string, params []any, result any) error {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ledger request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ledger returned status %d", resp.StatusCode)
	}

	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return fmt.Errorf("failed to decode ledger response: %w", err)
	}
	if rpcResp.Error != nil {
		return fmt.Errorf("ledger error %d: %s", rpcResp.Error.Code, rpcResp.Error.Message)
	}

	if result != nil && len(rpcResp.Result) > 0 {
		if err := json.Unmarshal(rpcResp.Result, result); err != nil {
			return fmt.Errorf("failed to decode ledger result: %w", err)
		}
	}
	return nil
}

// Subscribe wires an Anchorer to the relay's broadcast events: every user
// chat message gets its digest stored. Returns the subscription id.
func Subscribe(bus eventbus.Bus, anchorer Anchorer, logger *logging.Logger) string {
	return bus.Subscribe(eventbus.EventMessageBroadcast, func(event *eventbus.Event) {
		data, ok := event.Data.(eventbus.MessageData)
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		digest := Digest(data.Content)
		if err := anchorer.StoreHash(ctx, digest); err != nil {
			logger.Warn("failed to anchor message digest", "sender", data.Sender, "error", err)
			return
		}
		logger.Debug("message digest anchored", "sender", data.Sender, "digest", digest)
	})
}
