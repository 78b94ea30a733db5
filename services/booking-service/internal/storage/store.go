// Package storage is the Postgres implementation of the scheduling store.
package storage

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/md-rashed-zaman/staffslots/libs/db"
	"github.com/md-rashed-zaman/staffslots/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/staffslots/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/staffslots/services/booking-service/internal/scheduling"
)

var _ scheduling.Store = (*Store)(nil)

type Store struct {
	conn   db.Conn
	outbox *outbox.Repository
}

func New(conn db.Conn, outboxRepo *outbox.Repository) *Store {
	if outboxRepo == nil {
		outboxRepo = outbox.NewRepository()
	}
	return &Store{conn: conn, outbox: outboxRepo}
}

func (s *Store) enqueue(ctx context.Context, q db.Querier, events []outbox.Event) error {
	return s.outbox.Insert(ctx, q, events...)
}

func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// notFound translates a missing row into model.ErrNotFound.
func notFound(err error) error {
	if IsNotFound(err) {
		return model.ErrNotFound
	}
	return err
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
