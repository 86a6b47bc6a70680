package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/TahaNadeemkhan/todo-app-sub001/internal/domain"
	"github.com/TahaNadeemkhan/todo-app-sub001/internal/store"
)

// PostgresContactStore implements store.ContactStore.
type PostgresContactStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresContactStore creates a new PostgresContactStore.
func NewPostgresContactStore(db store.DBTX, logger *slog.Logger) *PostgresContactStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresContactStore{
		db:     db,
		logger: logger.With(slog.String("component", "contact_store")),
	}
}

var _ store.ContactStore = (*PostgresContactStore)(nil)

// GetByOwner implements store.ContactStore.GetByOwner
func (s *PostgresContactStore) GetByOwner(ctx context.Context, ownerID string) (*domain.Contact, error) {
	var (
		c         domain.Contact
		email     sql.NullString
		pushToken sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT owner_id, email, push_token FROM contacts WHERE owner_id = $1`, ownerID,
	).Scan(&c.OwnerID, &email, &pushToken)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrContactNotFound
		}
		return nil, MapError(err)
	}
	c.Email = email.String
	c.PushToken = pushToken.String
	return &c, nil
}
