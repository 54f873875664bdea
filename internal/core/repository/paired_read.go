package repository

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/duynhne/session-service/internal/core/domain"
)

type sessionReader func(ctx context.Context) (*domain.Session, error)

type userReader func(ctx context.Context) (*domain.User, error)

// pairedRead runs both lookups and joins them. With concurrent set the two
// queries are in flight at once and may observe different database states.
// Single-connection handles cannot multiplex, so they read in sequence.
func pairedRead(ctx context.Context, concurrent bool, readSession sessionReader, readUser userReader) (*domain.Session, *domain.User, error) {
	if !concurrent {
		session, err := readSession(ctx)
		if err != nil {
			return nil, nil, err
		}
		user, err := readUser(ctx)
		if err != nil {
			return nil, nil, err
		}
		return session, user, nil
	}

	var (
		session *domain.Session
		user    *domain.User
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		session, err = readSession(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		user, err = readUser(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return session, user, nil
}
