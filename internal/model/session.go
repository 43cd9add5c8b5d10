package model

import (
	"time"
)

// MessageRole identifies who produced a transcript message.
type MessageRole string

const (
	RoleSystem    MessageRole = "system"
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleTool      MessageRole = "tool"
)

// AgentMessage is a single entry in a session transcript.
type AgentMessage struct {
	Role      MessageRole `json:"role"`
	Content   string      `json:"content"`
	CreatedAt time.Time   `json:"created_at,omitempty"`
}

// AgentSessionRecord is the persisted state of one multi-turn conversation.
// ExpiresAt is always set; a record whose ExpiresAt has passed is treated as
// nonexistent by every read path whether or not the row still exists.
type AgentSessionRecord struct {
	ID                string         `json:"id"`
	OrgID             string         `json:"org_id"`
	UserID            string         `json:"user_id,omitempty"`
	Channel           string         `json:"channel"`
	Metadata          map[string]any `json:"metadata"`
	Messages          []AgentMessage `json:"messages"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
	LastInteractionAt time.Time      `json:"last_interaction_at"`
	ExpiresAt         time.Time      `json:"expires_at"`
}

// Expired reports whether the record is past its expiry at the given instant.
func (r *AgentSessionRecord) Expired(now time.Time) bool {
	return !r.ExpiresAt.IsZero() && r.ExpiresAt.Before(now)
}

// Append adds a message to the transcript, stamping it with now.
func (r *AgentSessionRecord) Append(role MessageRole, content string, now time.Time) {
	r.Messages = append(r.Messages, AgentMessage{Role: role, Content: content, CreatedAt: now})
	r.LastInteractionAt = now
}
