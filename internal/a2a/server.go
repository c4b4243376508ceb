package a2a

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/google/uuid"
)

// Executor handles conversation turns for an agent served by Server. Execute
// is invoked once per inbound message; concurrent invocations for different
// context ids may run in parallel, so implementations serialize per id.
type Executor interface {
	Execute(ctx context.Context, contextID string, inbound Message) (Message, error)
	Cancel(contextID string)
}

// Server hosts an agent: the JSON-RPC endpoint at / and the agent card at the
// well-known card path.
type Server struct {
	card     AgentCard
	executor Executor
	log      *slog.Logger
	httpSrv  *http.Server
}

func NewServer(card AgentCard, executor Executor, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{card: card, executor: executor, log: log}
}

// Handler returns the HTTP handler, exposed separately for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+CardPath, s.handleCard)
	mux.HandleFunc("POST /", s.handleRPC)
	return mux
}

// ListenAndServe blocks serving addr until ctx is canceled, then shuts the
// listener down.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	s.httpSrv = &http.Server{Handler: s.Handler()}
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpSrv.Serve(listener)
	}()
	s.log.Info("agent listening", "addr", addr, "agent", s.card.Name)
	select {
	case <-ctx.Done():
		_ = s.httpSrv.Shutdown(context.Background())
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) handleCard(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.card)
}

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	var req rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeRPCError(w, "", -32700, "parse error")
		return
	}
	switch req.Method {
	case MethodSend:
		s.handleSend(w, r, req)
	case MethodCancel:
		s.handleCancel(w, req)
	default:
		writeRPCError(w, req.ID, -32601, fmt.Sprintf("method %q not found", req.Method))
	}
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request, req rpcRequest) {
	var params sendParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		writeRPCError(w, req.ID, -32602, "invalid params")
		return
	}
	contextID := params.Message.ContextID
	if contextID == "" {
		contextID = uuid.NewString()
	}
	reply, err := s.executor.Execute(r.Context(), contextID, params.Message)
	if err != nil {
		s.log.Error("executor failed", "context_id", contextID, "error", err)
		writeRPCError(w, req.ID, -32000, err.Error())
		return
	}
	reply.ContextID = contextID
	writeRPCResult(w, req.ID, reply)
}

func (s *Server) handleCancel(w http.ResponseWriter, req rpcRequest) {
	var params cancelParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		writeRPCError(w, req.ID, -32602, "invalid params")
		return
	}
	s.executor.Cancel(params.ContextID)
	writeRPCResult(w, req.ID, map[string]string{"status": "canceled"})
}

func writeRPCResult(w http.ResponseWriter, id string, result any) {
	raw, err := json.Marshal(result)
	if err != nil {
		writeRPCError(w, id, -32603, "internal error")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(rpcResponse{JSONRPC: "2.0", ID: id, Result: raw})
}

func writeRPCError(w http.ResponseWriter, id string, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(rpcResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &rpcError{Code: code, Message: message},
	})
}
