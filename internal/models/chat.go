package models

// ChatMessage is one turn of a conversation as exchanged with API clients.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
