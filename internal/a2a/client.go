package a2a

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Conversations can take several model round-trips on the remote side before
// a reply comes back.
const defaultSendTimeout = 300 * time.Second

const (
	MethodSend   = "message/send"
	MethodCancel = "message/cancel"
)

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      string          `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      string          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

type sendParams struct {
	Message Message `json:"message"`
}

type cancelParams struct {
	ContextID string `json:"context_id"`
}

// Client sends messages to a remote agent and tracks the conversation context
// id the remote side assigns per base URL.
type Client struct {
	http       *http.Client
	contextIDs map[string]string
}

func NewClient() *Client {
	return &Client{
		http:       &http.Client{Timeout: defaultSendTimeout},
		contextIDs: map[string]string{},
	}
}

// SendParts sends one turn to the agent at baseURL and returns its reply.
// When newConversation is true the remembered context id for that URL is
// discarded first.
func (c *Client) SendParts(ctx context.Context, baseURL string, parts []Part, newConversation bool) (*Message, error) {
	contextID := ""
	if !newConversation {
		contextID = c.contextIDs[baseURL]
	}
	outbound := NewMessage(RoleUser, parts, contextID)
	params, err := json.Marshal(sendParams{Message: outbound})
	if err != nil {
		return nil, err
	}
	result, err := c.call(ctx, baseURL, MethodSend, params)
	if err != nil {
		return nil, err
	}
	var reply Message
	if err := json.Unmarshal(result, &reply); err != nil {
		return nil, fmt.Errorf("decode reply from %s: %w", baseURL, err)
	}
	if reply.ContextID != "" {
		c.contextIDs[baseURL] = reply.ContextID
	}
	return &reply, nil
}

// Cancel tells the agent at baseURL to drop the current conversation and
// forgets the local context id.
func (c *Client) Cancel(ctx context.Context, baseURL string) error {
	contextID := c.contextIDs[baseURL]
	if contextID == "" {
		return nil
	}
	delete(c.contextIDs, baseURL)
	params, err := json.Marshal(cancelParams{ContextID: contextID})
	if err != nil {
		return err
	}
	_, err = c.call(ctx, baseURL, MethodCancel, params)
	return err
}

// Reset forgets every remembered conversation.
func (c *Client) Reset() {
	c.contextIDs = map[string]string{}
}

func (c *Client) call(ctx context.Context, baseURL, method string, params json.RawMessage) (json.RawMessage, error) {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      uuid.NewString(),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s %s: unexpected status %s", method, baseURL, resp.Status)
	}
	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return nil, fmt.Errorf("%s %s: decode response: %w", method, baseURL, err)
	}
	if rpcResp.Error != nil {
		return nil, rpcResp.Error
	}
	return rpcResp.Result, nil
}
