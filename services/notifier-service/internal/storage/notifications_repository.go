package storage

import (
	"context"

	"github.com/Gabi10k2/gabibrx/libs/db"
)

// Notification is one delivery attempt for an operator message. Failed
// attempts are recorded too; they are never retried into the booking path.
type Notification struct {
	EventID string
	ChatID  int64
	Message string
	Status  string
	Error   string
}

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Insert(ctx context.Context, n Notification) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO notifications (event_id, chat_id, message, status, error)
		VALUES ($1, $2, $3, $4, $5)
	`, n.EventID, n.ChatID, n.Message, n.Status, n.Error)
	return err
}
