package server

// In this file: read-only resource views of the workspace under the
// workspace:// scheme. Resources always render JSON; the compact text format
// is a tool-response concern only.

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	mcpsrv "github.com/mark3labs/mcp-go/server"

	"github.com/aaronpaddy/slack-mcp-server/internal/slackclient"
)

const (
	uriChannels = "workspace://channels"
	uriUsers    = "workspace://users"
	uriInfo     = "workspace://info"
)

func (s *Server) registerResources(m *mcpsrv.MCPServer) {
	m.AddResource(mcp.NewResource(uriChannels, "Workspace channels",
		mcp.WithResourceDescription("All channels visible to the server, as JSON"),
		mcp.WithMIMEType("application/json"),
	), s.resourceBudget(s.readChannels))

	m.AddResource(mcp.NewResource(uriUsers, "Workspace users",
		mcp.WithResourceDescription("All active workspace members, as JSON"),
		mcp.WithMIMEType("application/json"),
	), s.resourceBudget(s.readUsers))

	m.AddResource(mcp.NewResource(uriInfo, "Workspace info",
		mcp.WithResourceDescription("Team-level workspace metadata, as JSON"),
		mcp.WithMIMEType("application/json"),
	), s.resourceBudget(s.readInfo))

	m.AddResourceTemplate(mcp.NewResourceTemplate("workspace://channels/{id}", "Channel details",
		mcp.WithTemplateDescription("A single channel by ID, as JSON"),
		mcp.WithTemplateMIMEType("application/json"),
	), s.resourceBudget(s.readChannel))

	m.AddResourceTemplate(mcp.NewResourceTemplate("workspace://channels/{id}/history", "Channel history",
		mcp.WithTemplateDescription("Recent messages of a channel by ID, as JSON"),
		mcp.WithTemplateMIMEType("application/json"),
	), s.resourceBudget(s.readChannelHistory))
}

// readFunc is the shared shape of resource and resource-template handlers.
type readFunc = func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error)

// resourceBudget is withBudget for resource reads: same end-to-end budget,
// same abandon-on-timeout behaviour. Resource reads have no error-result
// channel, so failures propagate as errors with the taxonomy code in the
// message.
func (s *Server) resourceBudget(h readFunc) readFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		ctx, cancel := context.WithTimeout(ctx, s.reqTimeout)
		defer cancel()

		type outcome struct {
			res []mcp.ResourceContents
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
				return nil, s.resourceError(ctx, out.err)
			}
			return out.res, nil
		case <-ctx.Done():
			return nil, fmt.Errorf("[%s] request exceeded the %s budget", codeTimeout, s.reqTimeout)
		}
	}
}

// resourceError mirrors errorResult for the resource surface.
func (s *Server) resourceError(ctx context.Context, err error) error {
	code := slackclient.CodeOf(err)
	switch code {
	case slackclient.CodeProtocolMismatch, slackclient.CodeInternal:
		s.lg.ErrorContext(ctx, "internal failure", "code", code, "err", err)
		return fmt.Errorf("[%s] internal error", code)
	default:
		return fmt.Errorf("[%s] %s", code, errMessage(err))
	}
}

func (s *Server) readChannels(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	channels, hasMore, err := s.client.ListChannels(ctx, slackclient.MaxListItems)
	if err != nil {
		return nil, err
	}
	return jsonContents(req.Params.URI, ListChannelsResponse{Channels: channels, HasMore: hasMore})
}

func (s *Server) readUsers(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	users, hasMore, err := s.client.ListUsers(ctx, slackclient.MaxListItems)
	if err != nil {
		return nil, err
	}
	return jsonContents(req.Params.URI, ListUsersResponse{Users: users, HasMore: hasMore})
}

func (s *Server) readInfo(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	info, err := s.client.WorkspaceInfo(ctx)
	if err != nil {
		return nil, err
	}
	return jsonContents(req.Params.URI, info)
}

func (s *Server) readChannel(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	id, _, err := channelURIParts(req.Params.URI)
	if err != nil {
		return nil, err
	}
	ch, err := s.client.GetChannel(ctx, id)
	if err != nil {
		return nil, err
	}
	return jsonContents(req.Params.URI, ch)
}

func (s *Server) readChannelHistory(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	id, rest, err := channelURIParts(req.Params.URI)
	if err != nil {
		return nil, err
	}
	if rest != "history" {
		return nil, slackclient.NotFound("no resource at %q", req.Params.URI)
	}
	history, err := s.client.GetChannelHistory(ctx, id, defHistoryLimit, "", "")
	if err != nil {
		return nil, err
	}
	return jsonContents(req.Params.URI, GetChannelHistoryResponse{
		Channel:  id,
		Messages: history.Messages,
		HasMore:  history.HasMore,
	})
}

// channelURIParts splits workspace://channels/{id}[/rest] into the channel ID
// and the remainder.
func channelURIParts(uri string) (id, rest string, err error) {
	path, ok := strings.CutPrefix(uri, uriChannels+"/")
	if !ok || path == "" {
		return "", "", slackclient.NotFound("no resource at %q", uri)
	}
	id, rest, _ = strings.Cut(path, "/")
	if id == "" {
		return "", "", slackclient.NotFound("no resource at %q", uri)
	}
	return id, rest, nil
}

func jsonContents(uri string, v any) ([]mcp.ResourceContents, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, slackclient.Mismatch("serialise resource", err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
