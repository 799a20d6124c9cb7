package domain

import "time"

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Prompt es un mensaje persistido de una conversación; cada turno exitoso
// agrega exactamente dos: user y luego assistant.
type Prompt struct {
	ID             string    `json:"id,omitempty"`
	ConversationID string    `json:"conversation_id,omitempty"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at,omitempty"`
}
