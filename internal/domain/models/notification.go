package models

import (
	"time"

	"github.com/google/uuid"
)

type Notification struct {
	ID          uuid.UUID      `json:"id"`
	UserID      uuid.UUID      `json:"user_id"`
	Title       string         `json:"title"`
	Body        string         `json:"body"`
	Category    string         `json:"category"`
	ReferenceID *uuid.UUID     `json:"reference_id,omitempty"`
	Priority    string         `json:"priority"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}
