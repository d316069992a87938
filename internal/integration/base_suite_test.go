// Package integration_test exercises the SQL-resident ledger invariants and
// the Redis-backed webhook dedup against real Postgres and Redis containers.
// The suites skip themselves when no Docker host is available.
package integration_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/arcanalabs/arcana/internal/audit"
	"github.com/arcanalabs/arcana/internal/credit"
	"github.com/arcanalabs/arcana/internal/domain"
	"github.com/arcanalabs/arcana/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
)

const (
	dbName         = "arcana"
	dbUser         = "test_user"
	dbPassword     = "test_password"
	dbImageName    = "postgres:17-alpine"
	cacheImageName = "redis:7"
)

type BaseSuite struct {
	suite.Suite
	dbContainer    *PostgresContainer
	cacheContainer *RedisContainer
	pool           *pgxpool.Pool
	cache          *redis.Client
	ledgerRepo     *repository.PostgresLedgerRepository
	userRepo       *repository.PostgresUserRepository
	credits        *credit.Service
}

func (s *BaseSuite) SetupSuite() {
	ctx := context.Background()

	dbContainer, err := getDbContainer(ctx)
	if err != nil {
		s.T().Skipf("cannot start database container (no Docker host?): %s", err)
	}
	s.dbContainer = dbContainer

	cacheContainer, err := getCacheContainer(ctx)
	if err != nil {
		s.T().Skipf("cannot start cache container: %s", err)
	}
	s.cacheContainer = cacheContainer

	pool, err := pgxpool.New(ctx, dbContainer.ConnectionString)
	s.Require().NoError(err)
	s.pool = pool

	s.cache = redis.NewClient(&redis.Options{Addr: cacheContainer.ConnectionString})

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	s.ledgerRepo = repository.NewPostgresLedgerRepository(pool)
	s.userRepo = repository.NewPostgresUserRepository(pool)
	s.credits = credit.NewService(s.ledgerRepo, s.userRepo, audit.NewSlogLogger(logger), logger)
}

func (s *BaseSuite) TearDownSuite() {
	if s.pool != nil {
		s.pool.Close()
	}
	if s.cache != nil {
		s.cache.Close()
	}
	if s.dbContainer != nil {
		if err := testcontainers.TerminateContainer(s.dbContainer.Container); err != nil {
			s.T().Logf("failed to terminate container: %s", err)
		}
	}
	if s.cacheContainer != nil {
		if err := testcontainers.TerminateContainer(s.cacheContainer.Container); err != nil {
			s.T().Logf("failed to terminate container: %s", err)
		}
	}
}

// createUser inserts an activated user with a zero balance. Credits are seeded
// through the credit service so the ledger stays consistent with the balance.
func (s *BaseSuite) createUser(ctx context.Context) int {
	var id int

	email := fmt.Sprintf("%s@example.com", uuid.NewString())

	err := s.pool.QueryRow(ctx, `
		INSERT INTO users (email, username, activated)
		VALUES ($1, 'seeker', true)
		RETURNING id
	`, email).Scan(&id)
	s.Require().NoError(err)

	return id
}

func (s *BaseSuite) seedCredits(ctx context.Context, userID, amount int) {
	_, err := s.credits.AddCredits(ctx, domain.AddParams{
		UserID:      userID,
		Amount:      amount,
		Type:        domain.TransactionBonus,
		Description: "Seed balance",
	})
	s.Require().NoError(err)
}

func (s *BaseSuite) balance(ctx context.Context, userID int) int {
	user, err := s.userRepo.GetById(ctx, userID)
	s.Require().NoError(err)

	return user.Credits
}
