//go:build integration

package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	id "civicpulse/pkg/domain"
	audit "civicpulse/pkg/platform/audit"
	"civicpulse/pkg/platform/audit/store/postgres"
	txcontext "civicpulse/pkg/platform/tx"
	"civicpulse/pkg/testutil/containers"
)

type PostgresAuditSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *postgres.Store
}

func TestPostgresAuditSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresAuditSuite))
}

func (s *PostgresAuditSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = postgres.New(s.postgres.DB)
}

func (s *PostgresAuditSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "audit_events"))
}

func (s *PostgresAuditSuite) TestAppendAndListByUser() {
	ctx := context.Background()
	userID := id.UserID("citizen-7")
	base := time.Now().UTC().Truncate(time.Millisecond)

	s.Require().NoError(s.store.Append(ctx, audit.Event{
		Category: audit.CategoryCompliance, Timestamp: base, UserID: userID,
		Action: string(audit.EventEnrollmentRegistered),
	}))
	s.Require().NoError(s.store.Append(ctx, audit.Event{
		Category: audit.CategoryCompliance, Timestamp: base.Add(time.Second), UserID: userID,
		Action: string(audit.EventEnrollmentRevoked),
	}))
	s.Require().NoError(s.store.Append(ctx, audit.Event{
		Category: audit.CategoryOperations, Timestamp: base, UserID: id.UserID("someone-else"),
		Action: string(audit.EventRatingSubmitted),
	}))

	events, err := s.store.ListByUser(ctx, userID)
	s.Require().NoError(err)
	s.Require().Len(events, 2)
	s.Equal(string(audit.EventEnrollmentRevoked), events[0].Action)
	s.Equal(audit.CategoryCompliance, events[1].Category)
}

func (s *PostgresAuditSuite) TestAppendRollsBackWithTransaction() {
	ctx := context.Background()
	tx, err := s.postgres.DB.BeginTx(ctx, nil)
	s.Require().NoError(err)

	txCtx := txcontext.WithTx(ctx, tx)
	s.Require().NoError(s.store.Append(txCtx, audit.Event{
		Category: audit.CategoryCompliance, Timestamp: time.Now(), UserID: id.UserID("citizen-9"),
		Action: string(audit.EventEnrollmentRegistered),
	}))
	s.Require().NoError(tx.Rollback())

	events, err := s.store.ListByUser(ctx, id.UserID("citizen-9"))
	s.Require().NoError(err)
	s.Empty(events)
}
