// Package rpc is the command surface: a JSON-RPC style request/response
// protocol over a persistent WebSocket connection, used by the browser
// extension and manual tools.
package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	stdsync "sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/jobsync-dev/jobsync/internal/sync"
)

const (
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeInternal       = -32000
)

// Request is one inbound command.
type Request struct {
	ID     json.RawMessage `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

// Response mirrors the original wire contract: result is always present,
// error only on failure.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result"`
	Error   *Error          `json:"error,omitempty"`
}

// Error is a structured command failure.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Server dispatches command-surface methods. Poll and Weekly are injected
// already wrapped in their single-flight gates, so manual triggers share the
// same overlap protection as the scheduler's.
type Server struct {
	Engine *sync.Engine
	Poll   func(ctx context.Context) error
	Weekly func(ctx context.Context) error

	upgrader websocket.Upgrader
}

// NewServer creates a command-surface server.
func NewServer(engine *sync.Engine, poll, weekly func(ctx context.Context) error) *Server {
	return &Server{
		Engine: engine,
		Poll:   poll,
		Weekly: weekly,
		upgrader: websocket.Upgrader{
			// Local-only surface; the extension connects from an extension
			// origin, so origin checking is disabled.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Handle upgrades the connection and serves requests until the peer hangs up.
// Each request runs in its own goroutine so a slow operation does not block
// the connection.
func (s *Server) Handle(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("[rpc] upgrade: %v", err)
		return
	}
	defer conn.Close()

	var writeMu stdsync.Mutex
	reply := func(resp Response) {
		writeMu.Lock()
		defer writeMu.Unlock()
		if err := conn.WriteJSON(resp); err != nil {
			log.Printf("[rpc] write: %v", err)
		}
	}

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var req Request
		if err := json.Unmarshal(raw, &req); err != nil {
			// Unparseable frame; nothing to correlate a reply with.
			continue
		}

		go func(req Request) {
			result, rpcErr := s.dispatch(c.Request.Context(), req.Method, req.Params)
			reply(Response{JSONRPC: "2.0", ID: req.ID, Result: result, Error: rpcErr})
		}(req)
	}
}

func (s *Server) dispatch(ctx context.Context, method string, params json.RawMessage) (any, *Error) {
	switch method {
	case "event/emit":
		var p struct {
			Event string    `json:"event"`
			Data  appParams `json:"data"`
		}
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, &Error{Code: codeInvalidParams, Message: err.Error()}
		}
		if p.Event != "jobapp.submit" {
			return nil, &Error{Code: codeMethodNotFound, Message: "Method not found"}
		}
		app := p.Data.toApplication()
		log.Printf("[rpc] jobapp.submit: %s — %s", app.Company, app.Role)
		res, err := s.Engine.UpsertByURL(ctx, app)
		if err != nil {
			return nil, &Error{Code: codeInternal, Message: err.Error()}
		}
		return res, nil

	case "tool/records.upsert_application":
		var p struct {
			App appParams `json:"app"`
		}
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, &Error{Code: codeInvalidParams, Message: err.Error()}
		}
		res, err := s.Engine.UpsertByURL(ctx, p.App.toApplication())
		if err != nil {
			return nil, &Error{Code: codeInternal, Message: err.Error()}
		}
		return res, nil

	case "tool/records.set_status":
		var p struct {
			Company string `json:"company"`
			Role    string `json:"role"`
			URL     string `json:"url"`
			Status  string `json:"status"`
			Note    string `json:"note"`
			FanOut  bool   `json:"updateAllCompany"`
		}
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, &Error{Code: codeInvalidParams, Message: err.Error()}
		}
		status, ok := sync.ParseStatus(p.Status)
		if !ok {
			return nil, &Error{Code: codeInvalidParams, Message: fmt.Sprintf("unknown status %q", p.Status)}
		}
		res, err := s.Engine.SetStatusByCompany(ctx, sync.StatusUpdate{
			Company: p.Company,
			Role:    p.Role,
			URL:     p.URL,
			Status:  status,
			Note:    p.Note,
			FanOut:  p.FanOut,
		})
		if err != nil {
			return nil, &Error{Code: codeInternal, Message: err.Error()}
		}
		return res, nil

	case "tool/analytics.weekly":
		if err := s.Weekly(ctx); err != nil {
			return nil, &Error{Code: codeInternal, Message: err.Error()}
		}
		return map[string]bool{"ok": true}, nil

	case "tool/mailbox.poll":
		if err := s.Poll(ctx); err != nil {
			return nil, &Error{Code: codeInternal, Message: err.Error()}
		}
		return map[string]bool{"ok": true}, nil
	}

	return nil, &Error{Code: codeMethodNotFound, Message: "Method not found"}
}

// appParams is the wire shape of an application, with a forgiving timestamp.
type appParams struct {
	Company     string `json:"company"`
	Role        string `json:"role"`
	URL         string `json:"url"`
	SubmittedAt string `json:"submittedAt"`
	Status      string `json:"status"`
	Description string `json:"description"`
}

func (p appParams) toApplication() sync.Application {
	app := sync.Application{
		Company:     p.Company,
		Role:        p.Role,
		URL:         p.URL,
		Description: p.Description,
	}
	if t, err := time.Parse(time.RFC3339, p.SubmittedAt); err == nil {
		app.SubmittedAt = t
	} else {
		app.SubmittedAt = time.Now()
	}
	if status, ok := sync.ParseStatus(p.Status); ok {
		app.Status = status
	}
	return app
}
