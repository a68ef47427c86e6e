package server

// In this file: tool definitions, argument validation, and handlers. Every
// declared parameter is validated before any remote call is made, so a
// malformed request never spends rate-limit budget.

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/aaronpaddy/slack-mcp-server/internal/slackclient"
)

// Limit defaults and caps. Over-cap limits are clamped, not rejected.
const (
	defHistoryLimit = 50
	defListLimit    = 100
	maxLimit        = slackclient.MaxListItems
)

// ========== Request Structs ==========

type PostMessageRequest struct {
	Channel  string `json:"channel"`
	Text     string `json:"text"`
	ThreadTS string `json:"thread_ts"`
}

type GetChannelHistoryRequest struct {
	Channel string `json:"channel"`
	Limit   int    `json:"limit"`
	Oldest  string `json:"oldest"`
	Latest  string `json:"latest"`
}

type ListChannelsRequest struct {
	Limit int `json:"limit"`
}

type GetUserInfoRequest struct {
	UserID string `json:"user_id"`
}

type ListUsersRequest struct {
	Limit int `json:"limit"`
}

// ========== Response Structs ==========

type PostMessageResponse struct {
	Posted slackclient.PostedMessage `json:"posted"`
}

func (r PostMessageResponse) MarshalCompact() string {
	return fmt.Sprintf("Message posted to %s at %s\n", r.Posted.Channel, r.Posted.TS)
}

type GetChannelHistoryResponse struct {
	Channel  string                `json:"channel"`
	Messages []slackclient.Message `json:"messages"`
	HasMore  bool                  `json:"has_more"`
}

func (r GetChannelHistoryResponse) MarshalCompact() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Channel history (%d messages):\n", len(r.Messages)))
	for _, msg := range r.Messages {
		sb.WriteString("  [")
		sb.WriteString(msg.TS)
		sb.WriteString("] ")
		if msg.User != "" {
			sb.WriteString(msg.User)
			sb.WriteString(": ")
		}
		sb.WriteString(msg.Text)
		if msg.ThreadTS != "" && msg.ThreadTS != msg.TS {
			sb.WriteString(" (reply to ")
			sb.WriteString(msg.ThreadTS)
			sb.WriteString(")")
		}
		sb.WriteString("\n")
	}
	if r.HasMore {
		sb.WriteString("  ... more messages available\n")
	}
	return sb.String()
}

type ListChannelsResponse struct {
	Channels []slackclient.Channel `json:"channels"`
	HasMore  bool                  `json:"has_more"`
}

func (r ListChannelsResponse) MarshalCompact() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Channels (%d):\n", len(r.Channels)))
	for _, ch := range r.Channels {
		if ch.IsPrivate {
			sb.WriteString("  🔒 ")
		} else {
			sb.WriteString("  # ")
		}
		sb.WriteString(ch.Name)
		sb.WriteString(" (")
		sb.WriteString(ch.ID)
		sb.WriteString(")")
		if ch.Topic != "" {
			sb.WriteString(" - ")
			sb.WriteString(ch.Topic)
		}
		sb.WriteString("\n")
	}
	if r.HasMore {
		sb.WriteString("  ... more channels available\n")
	}
	return sb.String()
}

type GetUserInfoResponse struct {
	User slackclient.User `json:"user"`
}

func (r GetUserInfoResponse) MarshalCompact() string {
	var sb strings.Builder
	u := r.User
	sb.WriteString("User:\n")
	sb.WriteString("  Name: " + u.Name + "\n")
	if u.RealName != "" {
		sb.WriteString("  Real Name: " + u.RealName + "\n")
	}
	sb.WriteString("  ID: " + u.ID + "\n")
	if u.Email != "" {
		sb.WriteString("  Email: " + u.Email + "\n")
	}
	if u.TZ != "" {
		sb.WriteString("  Timezone: " + u.TZ + "\n")
	}
	if u.IsBot {
		sb.WriteString("  Type: Bot\n")
	}
	if u.IsAdmin {
		sb.WriteString("  Admin: Yes\n")
	}
	return sb.String()
}

type ListUsersResponse struct {
	Users   []slackclient.User `json:"users"`
	HasMore bool               `json:"has_more"`
}

func (r ListUsersResponse) MarshalCompact() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Users (%d):\n", len(r.Users)))
	for _, u := range r.Users {
		if u.IsBot {
			sb.WriteString("  🤖 ")
		} else {
			sb.WriteString("  👤 ")
		}
		sb.WriteString(u.Name)
		if u.RealName != "" && u.RealName != u.Name {
			sb.WriteString(" (" + u.RealName + ")")
		}
		sb.WriteString(" - " + u.ID + "\n")
	}
	if r.HasMore {
		sb.WriteString("  ... more users available\n")
	}
	return sb.String()
}

// ========== Tool Definitions ==========

func (s *Server) postMessageTool() mcp.Tool {
	return mcp.NewTool("post_message",
		mcp.WithDescription(`Posts a message to a Slack channel.

Parameters:
- channel: Channel ID or name (e.g. #general, C1234567890)
- text: Message text to post
- thread_ts: Optional: reply in a thread by providing the parent message timestamp`),
		mcp.WithString("channel",
			mcp.Required(),
			mcp.Description("Channel ID or #name")),
		mcp.WithString("text",
			mcp.Required(),
			mcp.Description("Message text to post")),
		mcp.WithString("thread_ts",
			mcp.Description("Parent message timestamp to reply in a thread")),
	)
}

func (s *Server) getChannelHistoryTool() mcp.Tool {
	return mcp.NewTool("get_channel_history",
		mcp.WithDescription(`Retrieves message history from a Slack channel, newest first.

Parameters:
- channel: Channel ID or name (e.g. #general, C1234567890)
- limit: Number of messages (default: 50, max: 1000; larger values are clamped)
- oldest: Only messages after this Slack timestamp
- latest: Only messages before this Slack timestamp`),
		mcp.WithString("channel",
			mcp.Required(),
			mcp.Description("Channel ID or #name")),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of messages (default: 50, max: 1000)")),
		mcp.WithString("oldest",
			mcp.Description("Slack timestamp - only messages after this time")),
		mcp.WithString("latest",
			mcp.Description("Slack timestamp - only messages before this time")),
		mcp.WithReadOnlyHintAnnotation(true),
	)
}

func (s *Server) listChannelsTool() mcp.Tool {
	return mcp.NewTool("list_channels",
		mcp.WithDescription(`Lists channels in the Slack workspace with their names and IDs.

Parameters:
- limit: Maximum number of channels to return (default: 100, max: 1000)`),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of channels (default: 100, max: 1000)")),
		mcp.WithReadOnlyHintAnnotation(true),
	)
}

func (s *Server) getUserInfoTool() mcp.Tool {
	return mcp.NewTool("get_user_info",
		mcp.WithDescription(`Gets profile information for a Slack user.

Parameters:
- user_id: The ID of the user (e.g. U1234567890)`),
		mcp.WithString("user_id",
			mcp.Required(),
			mcp.Description("User ID (e.g. U1234567890)")),
		mcp.WithReadOnlyHintAnnotation(true),
	)
}

func (s *Server) listUsersTool() mcp.Tool {
	return mcp.NewTool("list_users",
		mcp.WithDescription(`Lists users in the Slack workspace.

Parameters:
- limit: Maximum number of users to return (default: 100, max: 1000)`),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of users (default: 100, max: 1000)")),
		mcp.WithReadOnlyHintAnnotation(true),
	)
}

// ========== Handlers ==========

func (s *Server) handlePostMessage(ctx context.Context, req mcp.CallToolRequest, args PostMessageRequest) (*mcp.CallToolResult, error) {
	if strings.TrimSpace(args.Channel) == "" {
		return nil, slackclient.InvalidArgument("channel", "is required")
	}
	if args.Text == "" {
		return nil, slackclient.InvalidArgument("text", "is required")
	}
	if args.ThreadTS != "" && !validTS(args.ThreadTS) {
		return nil, slackclient.InvalidArgument("thread_ts", "must be a Slack timestamp like 1609459200.000001")
	}

	posted, err := s.client.PostMessage(ctx, args.Channel, args.Text, args.ThreadTS)
	if err != nil {
		return nil, err
	}
	return s.textResult(PostMessageResponse{Posted: *posted})
}

func (s *Server) handleGetChannelHistory(ctx context.Context, req mcp.CallToolRequest, args GetChannelHistoryRequest) (*mcp.CallToolResult, error) {
	if strings.TrimSpace(args.Channel) == "" {
		return nil, slackclient.InvalidArgument("channel", "is required")
	}
	if args.Limit < 0 {
		return nil, slackclient.InvalidArgument("limit", "must be positive")
	}
	if args.Oldest != "" && !validTS(args.Oldest) {
		return nil, slackclient.InvalidArgument("oldest", "must be a Slack timestamp like 1609459200.000001")
	}
	if args.Latest != "" && !validTS(args.Latest) {
		return nil, slackclient.InvalidArgument("latest", "must be a Slack timestamp like 1609459200.000001")
	}
	limit := defaultLimit(args.Limit, defHistoryLimit)

	history, err := s.client.GetChannelHistory(ctx, args.Channel, limit, args.Oldest, args.Latest)
	if err != nil {
		return nil, err
	}
	return s.textResult(GetChannelHistoryResponse{
		Channel:  args.Channel,
		Messages: history.Messages,
		HasMore:  history.HasMore,
	})
}

func (s *Server) handleListChannels(ctx context.Context, req mcp.CallToolRequest, args ListChannelsRequest) (*mcp.CallToolResult, error) {
	if args.Limit < 0 {
		return nil, slackclient.InvalidArgument("limit", "must be positive")
	}
	limit := defaultLimit(args.Limit, defListLimit)

	channels, hasMore, err := s.client.ListChannels(ctx, limit)
	if err != nil {
		return nil, err
	}
	return s.textResult(ListChannelsResponse{Channels: channels, HasMore: hasMore})
}

func (s *Server) handleGetUserInfo(ctx context.Context, req mcp.CallToolRequest, args GetUserInfoRequest) (*mcp.CallToolResult, error) {
	if strings.TrimSpace(args.UserID) == "" {
		return nil, slackclient.InvalidArgument("user_id", "is required")
	}

	user, err := s.client.GetUserInfo(ctx, args.UserID)
	if err != nil {
		return nil, err
	}
	return s.textResult(GetUserInfoResponse{User: *user})
}

func (s *Server) handleListUsers(ctx context.Context, req mcp.CallToolRequest, args ListUsersRequest) (*mcp.CallToolResult, error) {
	if args.Limit < 0 {
		return nil, slackclient.InvalidArgument("limit", "must be positive")
	}
	limit := defaultLimit(args.Limit, defListLimit)

	users, hasMore, err := s.client.ListUsers(ctx, limit)
	if err != nil {
		return nil, err
	}
	return s.textResult(ListUsersResponse{Users: users, HasMore: hasMore})
}

// textResult serialises a response into a successful tool result.
func (s *Server) textResult(v any) (*mcp.CallToolResult, error) {
	data, err := marshalResponse(v)
	if err != nil {
		return nil, slackclient.Mismatch("serialise response", err)
	}
	return mcp.NewToolResultText(data), nil
}

// defaultLimit applies the per-tool default and the hard cap. Values above
// the cap are clamped.
func defaultLimit(limit, def int) int {
	if limit == 0 {
		return def
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}

// validTS reports whether s looks like a Slack message timestamp: a Unix
// epoch with an optional fractional part, e.g. "1609459200.000001".
func validTS(s string) bool {
	intPart, fracPart, hasDot := strings.Cut(s, ".")
	if _, err := strconv.ParseUint(intPart, 10, 64); err != nil {
		return false
	}
	if hasDot {
		if _, err := strconv.ParseUint(fracPart, 10, 64); err != nil {
			return false
		}
	}
	return true
}
