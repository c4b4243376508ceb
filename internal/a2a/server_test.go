package a2a_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/a2abench/a2abench/internal/a2a"
	"github.com/stretchr/testify/require"
)

// echoExecutor replies with the inbound text reversed into a single text part
// and records context ids it has seen.
type echoExecutor struct {
	mu       sync.Mutex
	contexts []string
	canceled []string
}

func (e *echoExecutor) Execute(ctx context.Context, contextID string, inbound a2a.Message) (a2a.Message, error) {
	e.mu.Lock()
	e.contexts = append(e.contexts, contextID)
	e.mu.Unlock()
	return a2a.NewMessage(a2a.RoleAgent, []a2a.Part{a2a.TextPart("echo: " + a2a.MergeParts(inbound.Parts))}, contextID), nil
}

func (e *echoExecutor) Cancel(contextID string) {
	e.mu.Lock()
	e.canceled = append(e.canceled, contextID)
	e.mu.Unlock()
}

func newTestServer(t *testing.T) (*httptest.Server, *echoExecutor) {
	t.Helper()
	exec := &echoExecutor{}
	card := a2a.AgentCard{Name: "echo", Description: "test agent", Version: "0.0.1"}
	srv := httptest.NewServer(a2a.NewServer(card, exec, nil).Handler())
	t.Cleanup(srv.Close)
	return srv, exec
}

func TestServer_ServesAgentCard(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + a2a.CardPath)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var card a2a.AgentCard
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&card))
	require.Equal(t, "echo", card.Name)
}

func TestClient_SendPartsTracksContextID(t *testing.T) {
	srv, exec := newTestServer(t)
	client := a2a.NewClient()

	first, err := client.SendParts(context.Background(), srv.URL, []a2a.Part{a2a.TextPart("one")}, true)
	require.NoError(t, err)
	require.NotEmpty(t, first.ContextID)
	require.Equal(t, "echo: one", first.Parts[0].Text)

	second, err := client.SendParts(context.Background(), srv.URL, []a2a.Part{a2a.TextPart("two")}, false)
	require.NoError(t, err)
	require.Equal(t, first.ContextID, second.ContextID)
	require.Equal(t, []string{first.ContextID, first.ContextID}, exec.contexts)
}

func TestClient_NewConversationDropsContextID(t *testing.T) {
	srv, exec := newTestServer(t)
	client := a2a.NewClient()

	_, err := client.SendParts(context.Background(), srv.URL, []a2a.Part{a2a.TextPart("one")}, true)
	require.NoError(t, err)
	_, err = client.SendParts(context.Background(), srv.URL, []a2a.Part{a2a.TextPart("two")}, true)
	require.NoError(t, err)
	require.Len(t, exec.contexts, 2)
	require.NotEqual(t, exec.contexts[0], exec.contexts[1])
}

func TestClient_CancelForgetsConversation(t *testing.T) {
	srv, exec := newTestServer(t)
	client := a2a.NewClient()

	first, err := client.SendParts(context.Background(), srv.URL, []a2a.Part{a2a.TextPart("one")}, true)
	require.NoError(t, err)
	require.NoError(t, client.Cancel(context.Background(), srv.URL))
	require.Equal(t, []string{first.ContextID}, exec.canceled)

	// Canceling again is a no-op: there is no remembered conversation.
	require.NoError(t, client.Cancel(context.Background(), srv.URL))
	require.Len(t, exec.canceled, 1)
}

func TestServer_UnknownMethodIsRPCError(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Post(srv.URL, "application/json",
		strings.NewReader(`{"jsonrpc":"2.0","id":"1","method":"message/stream","params":{}}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	var rpcResp struct {
		Error *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rpcResp))
	require.NotNil(t, rpcResp.Error)
	require.Equal(t, -32601, rpcResp.Error.Code)
}

func TestServer_AssignsContextIDWhenMissing(t *testing.T) {
	srv, exec := newTestServer(t)

	body := `{"jsonrpc":"2.0","id":"1","method":"message/send","params":{"message":{"kind":"message","role":"user","parts":[{"kind":"text","text":"hi"}],"message_id":"m1"}}}`
	resp, err := http.Post(srv.URL, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var rpcResp struct {
		Result a2a.Message `json:"result"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rpcResp))
	require.NotEmpty(t, rpcResp.Result.ContextID)
	require.Equal(t, []string{rpcResp.Result.ContextID}, exec.contexts)
}
