package slackclient

// Normalized workspace data shapes. The Slack SDK structs carry far more
// than agents need; these are the stable views the MCP layer serialises.

// Channel is a workspace conversation.
type Channel struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	IsPrivate   bool   `json:"is_private"`
	IsArchived  bool   `json:"is_archived,omitempty"`
	IsGeneral   bool   `json:"is_general,omitempty"`
	Topic       string `json:"topic,omitempty"`
	Purpose     string `json:"purpose,omitempty"`
	MemberCount int    `json:"member_count,omitempty"`
}

// Message is a single channel message.
type Message struct {
	TS         string `json:"ts"`
	Channel    string `json:"channel,omitempty"`
	User       string `json:"user,omitempty"`
	Text       string `json:"text"`
	ThreadTS   string `json:"thread_ts,omitempty"`
	ReplyCount int    `json:"reply_count,omitempty"`
}

// History is a page of channel messages, newest first, with an indicator of
// whether older messages exist beyond the page.
type History struct {
	Messages []Message `json:"messages"`
	HasMore  bool      `json:"has_more"`
}

// User is a workspace member.
type User struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	RealName    string `json:"real_name,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	Email       string `json:"email,omitempty"`
	IsBot       bool   `json:"is_bot,omitempty"`
	IsAdmin     bool   `json:"is_admin,omitempty"`
	TZ          string `json:"tz,omitempty"`
}

// Workspace is team-level metadata.
type Workspace struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Domain      string `json:"domain"`
	EmailDomain string `json:"email_domain,omitempty"`
}

// PostedMessage confirms a successful post_message call.
type PostedMessage struct {
	Channel string `json:"channel"`
	TS      string `json:"ts"`
	Text    string `json:"text"`
}

// AuthInfo is the identity behind the current credential.
type AuthInfo struct {
	User   string `json:"user"`
	UserID string `json:"user_id"`
	Team   string `json:"team"`
	TeamID string `json:"team_id"`
}
