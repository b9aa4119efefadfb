package model

import "time"

type ConnectionStatus string

const (
	ConnectionPositive ConnectionStatus = "positive"
	ConnectionNegative ConnectionStatus = "negative"
)

// Valid reports whether s is one of the two recordable outcomes.
func (s ConnectionStatus) Valid() bool {
	return s == ConnectionPositive || s == ConnectionNegative
}

// Connection is the outcome of one user's compatibility test against
// another. It is directed: (A, B) and (B, A) are separate rows, and there is
// exactly one row per ordered pair.
type Connection struct {
	ID         string           `json:"id"         db:"id"`
	SenderID   string           `json:"senderId"   db:"sender_id"`
	ReceiverID string           `json:"receiverId" db:"receiver_id"`
	Status     ConnectionStatus `json:"status"     db:"status"`
	CreatedAt  time.Time        `json:"createdAt"  db:"created_at"`
	UpdatedAt  time.Time        `json:"updatedAt"  db:"updated_at"`
}
