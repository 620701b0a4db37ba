package response

import (
	"encoding/json"
	"time"
)

type CreateSessionResponse struct {
	SessionID string `json:"session_id"`
	Welcome   string `json:"welcome"`
}

type SessionResponse struct {
	SessionID string    `json:"session_id"`
	CreatedAt time.Time `json:"created_at"`
	State     string    `json:"state"`
	Messages  int       `json:"messages"`
}

type GetSessionsResponse struct {
	Sessions []SessionResponse `json:"sessions"`
}

type MessageResponse struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type GetSessionMessagesResponse struct {
	Messages []MessageResponse `json:"messages"`
}

type ArchivedSessionResponse struct {
	SessionID string    `json:"session_id"`
	Workspace string    `json:"workspace"`
	CreatedAt time.Time `json:"created_at"`
}

type GetArchivedSessionsResponse struct {
	Sessions []ArchivedSessionResponse `json:"sessions"`
}

type ArchivedMessageResponse struct {
	CreatedAt       time.Time       `json:"created_at"`
	Role            string          `json:"role"`
	Content         string          `json:"content"`
	Outcome         string          `json:"outcome"`
	ImmediateSteps  string          `json:"immediate_steps"`
	ToolCallResults json.RawMessage `json:"tool_call_results"`
}

type GetArchivedMessagesResponse struct {
	Messages []ArchivedMessageResponse `json:"messages"`
}
