package domain

import "time"

// Conversation es un hilo persistido; se crea con el primer turno y nunca se borra.
type Conversation struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	UserInput string    `json:"userInput"`
	ImageURLs []string  `json:"imageUrls"`
	CreatedAt time.Time `json:"createdAt"`
}

// ConversationWithPrompts agrega los prompts embebidos para el listado por usuario.
// El orden de Prompts es el que devuelve el store; no se garantiza cronológico.
type ConversationWithPrompts struct {
	ID        string    `json:"id"`
	UserInput string    `json:"userInput"`
	ImageURLs []string  `json:"imageUrls"`
	CreatedAt time.Time `json:"createdAt"`
	Prompts   []Prompt  `json:"prompts"`
}
