package model

import (
	"encoding/json"
	"time"
)

type Session struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	SessionID string    `gorm:"size:64;not null;uniqueIndex" json:"session_id"`
	Workspace string    `gorm:"size:1024" json:"workspace"`
}

func (Session) TableName() string {
	return "chat_session"
}

// Message 建立联合索引 (session_id, created_at)
type Message struct {
	ID              uint            `gorm:"primarykey" json:"id"`
	CreatedAt       time.Time       `gorm:"index:idx_session_created" json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	SessionID       string          `gorm:"size:64;not null;index:idx_session_created" json:"session_id"`
	Role            string          `gorm:"size:16;not null" json:"role"`
	Content         string          `gorm:"type:longtext" json:"content"`
	ImmediateSteps  string          `gorm:"type:longtext" json:"immediate_steps"`
	ToolCallResults json.RawMessage `gorm:"type:json" json:"tool_call_results"`
	Outcome         string          `gorm:"size:16" json:"outcome"`
}

func (Message) TableName() string {
	return "chat_message"
}

type ToolCallResult struct {
	Name   string `json:"name"`
	Input  string `json:"input"`
	Status string `json:"status,omitempty"`
	Result string `json:"result"`
}
