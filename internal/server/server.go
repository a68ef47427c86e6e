// Package server exposes the Slack workspace to MCP clients: it owns the
// tool and resource registries and the request dispatch policy. Registration
// happens once at startup; the routing tables are immutable afterwards, so
// dispatch is a lock-free lookup.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpsrv "github.com/mark3labs/mcp-go/server"

	"github.com/aaronpaddy/slack-mcp-server/internal/slackclient"
)

const (
	serverName    = "slack-mcp-server"
	serverVersion = "0.1.0"
)

// DefaultRequestTimeout is the end-to-end budget for one request, including
// rate-limit waits and retries.
const DefaultRequestTimeout = 30 * time.Second

// Transport selects how the MCP server communicates with its client.
type Transport string

const (
	// TransportStdio uses stdin/stdout (default, suitable for local agent
	// integrations).
	TransportStdio Transport = "stdio"
	// TransportHTTP uses Streamable HTTP (suitable for remote agents).
	TransportHTTP Transport = "http"
)

// Server wraps an MCP server and the Slack API client it dispatches to.
type Server struct {
	mcp        *mcpsrv.MCPServer
	client     *slackclient.Client
	lg         *slog.Logger
	reqTimeout time.Duration
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithLogger sets the server logger.
func WithLogger(lg *slog.Logger) ServerOption {
	return func(s *Server) { s.lg = lg }
}

// WithRequestTimeout overrides the per-request budget.
func WithRequestTimeout(d time.Duration) ServerOption {
	return func(s *Server) { s.reqTimeout = d }
}

// New creates the MCP server with all tools and resources registered. The
// server does not start listening until one of the Serve* methods is called.
func New(client *slackclient.Client, opts ...ServerOption) *Server {
	s := &Server{
		client:     client,
		lg:         slog.Default(),
		reqTimeout: DefaultRequestTimeout,
	}
	for _, o := range opts {
		o(s)
	}

	m := mcpsrv.NewMCPServer(
		serverName,
		serverVersion,
		mcpsrv.WithToolCapabilities(false),
		mcpsrv.WithResourceCapabilities(false, true),
		mcpsrv.WithRecovery(),
		mcpsrv.WithInstructions(instructions),
	)

	// Tools.
	m.AddTool(s.postMessageTool(), s.withBudget(mcp.NewTypedToolHandler(s.handlePostMessage)))
	m.AddTool(s.getChannelHistoryTool(), s.withBudget(mcp.NewTypedToolHandler(s.handleGetChannelHistory)))
	m.AddTool(s.listChannelsTool(), s.withBudget(mcp.NewTypedToolHandler(s.handleListChannels)))
	m.AddTool(s.getUserInfoTool(), s.withBudget(mcp.NewTypedToolHandler(s.handleGetUserInfo)))
	m.AddTool(s.listUsersTool(), s.withBudget(mcp.NewTypedToolHandler(s.handleListUsers)))

	// Resources.
	s.registerResources(m)

	s.mcp = m
	return s
}

const instructions = `You are connected to a Slack workspace through an MCP server.

Tools let you post messages, read channel history, and look up channels and
users. Resources expose read-only JSON views of the workspace:
workspace://channels, workspace://users, workspace://info,
workspace://channels/{id} and workspace://channels/{id}/history.

Timestamps use Slack's format (Unix epoch as a decimal string, e.g.
"1609459200.000001"). Channels may be referenced by ID or by #name.`

// ServeStdio runs the MCP server over stdin/stdout until ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	srv := mcpsrv.NewStdioServer(s.mcp)
	s.lg.InfoContext(ctx, "mcp server listening on stdio")
	if err := srv.Listen(ctx, os.Stdin, os.Stdout); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
			return nil
		}
		return fmt.Errorf("mcp stdio server error: %w", err)
	}
	return nil
}

// ServeHTTP runs the MCP server as a Streamable HTTP server on addr until
// ctx is cancelled.
func (s *Server) ServeHTTP(ctx context.Context, addr string) error {
	httpSrv := &http.Server{Addr: addr}
	streamSrv := mcpsrv.NewStreamableHTTPServer(s.mcp,
		mcpsrv.WithStreamableHTTPServer(httpSrv),
	)

	s.lg.InfoContext(ctx, "mcp server listening on http", "addr", addr)

	errCh := make(chan error, 1)
	go func() {
		if err := streamSrv.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("mcp http server error: %w", err)
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		s.lg.InfoContext(ctx, "mcp server shutting down")
		if err := streamSrv.Shutdown(context.Background()); err != nil {
			return fmt.Errorf("mcp http server shutdown error: %w", err)
		}
		return nil
	case err := <-errCh:
		return err
	}
}

// withBudget enforces the end-to-end request budget around a tool handler.
// A request that exceeds the budget is abandoned: the client gets a timeout
// failure and whatever the underlying call eventually produces is discarded.
func (s *Server) withBudget(h mcpsrv.ToolHandlerFunc) mcpsrv.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ctx, cancel := context.WithTimeout(ctx, s.reqTimeout)
		defer cancel()

		type outcome struct {
			res *mcp.CallToolResult
			err error
		}
		ch := make(chan outcome, 1)
		go func() {
			res, err := h(ctx, req)
			ch <- outcome{res, err}
		}()

		select {
		case out := <-ch:
			if out.err != nil {
				return s.errorResult(ctx, out.err), nil
			}
			return out.res, nil
		case <-ctx.Done():
			return mcp.NewToolResultError(fmt.Sprintf("[%s] request exceeded the %s budget", codeTimeout, s.reqTimeout)), nil
		}
	}
}

// codeTimeout is the dispatch-level code for an exceeded request budget.
const codeTimeout = "request_timeout"

// errorResult translates a downstream failure into a protocol-level error
// result with a stable code. Protocol mismatches are logged with full
// context but surfaced generically: raw internal detail never leaks to the
// client.
func (s *Server) errorResult(ctx context.Context, err error) *mcp.CallToolResult {
	code := slackclient.CodeOf(err)
	switch code {
	case slackclient.CodeProtocolMismatch, slackclient.CodeInternal:
		s.lg.ErrorContext(ctx, "internal failure", "code", code, "err", err)
		return mcp.NewToolResultError(fmt.Sprintf("[%s] internal error", code))
	default:
		return mcp.NewToolResultError(fmt.Sprintf("[%s] %s", code, errMessage(err)))
	}
}

// errMessage extracts the human-readable part of a typed failure.
func errMessage(err error) string {
	var e *slackclient.Error
	if errors.As(err, &e) && e.Msg != "" {
		return e.Msg
	}
	return err.Error()
}
