package domain

import "time"

// Message — сообщение из контактной формы, доступное в админ-панели.
type Message struct {
	ID        string
	Name      string
	Email     string
	Body      string
	Read      bool
	CreatedAt time.Time
}
