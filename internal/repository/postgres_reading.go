package repository

import (
	"context"
	"errors"

	"github.com/arcanalabs/arcana/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresReadingRepository struct {
	db *pgxpool.Pool
}

func NewPostgresReadingRepository(db *pgxpool.Pool) *PostgresReadingRepository {
	return &PostgresReadingRepository{
		db: db,
	}
}

func (p *PostgresReadingRepository) Create(ctx context.Context, reading *domain.Reading) error {
	query := `
		INSERT INTO readings (user_id, spread_type, styles, question, extended, transaction_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`

	return p.db.QueryRow(ctx, query,
		reading.UserID,
		reading.SpreadType,
		reading.Styles,
		reading.Question,
		reading.Extended,
		reading.TransactionID,
	).Scan(&reading.ID, &reading.CreatedAt)
}

func (p *PostgresReadingRepository) GetByIdAndUserId(ctx context.Context, id, userID int) (*domain.Reading, error) {
	query := `
		SELECT id, user_id, spread_type, styles, question, extended, transaction_id, created_at
		FROM readings
		WHERE id = $1 AND user_id = $2
	`

	var reading domain.Reading

	err := p.db.QueryRow(ctx, query, id, userID).Scan(
		&reading.ID,
		&reading.UserID,
		&reading.SpreadType,
		&reading.Styles,
		&reading.Question,
		&reading.Extended,
		&reading.TransactionID,
		&reading.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRecordNotFound
		}

		return nil, err
	}

	return &reading, nil
}

func (p *PostgresReadingRepository) CreateFollowUp(ctx context.Context, question *domain.FollowUpQuestion) error {
	query := `
		INSERT INTO follow_up_questions (reading_id, user_id, question, transaction_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`

	return p.db.QueryRow(ctx, query,
		question.ReadingID,
		question.UserID,
		question.Question,
		question.TransactionID,
	).Scan(&question.ID, &question.CreatedAt)
}
