package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type SpreadType string

const (
	SpreadSingle       SpreadType = "single"
	SpreadThreeCard    SpreadType = "three_card"
	SpreadHorseshoe    SpreadType = "horseshoe"
	SpreadRelationship SpreadType = "relationship"
	SpreadCelticCross  SpreadType = "celtic_cross"
)

var InterpretationStyles = []string{"classic", "psychological", "spiritual", "practical"}

type Reading struct {
	ID            int
	UserID        int
	SpreadType    SpreadType
	Styles        []string
	Question      string
	Extended      bool
	TransactionID uuid.UUID
	CreatedAt     time.Time
}

type FollowUpQuestion struct {
	ID            int
	ReadingID     int
	UserID        int
	Question      string
	TransactionID uuid.UUID
	CreatedAt     time.Time
}

type ReadingRepository interface {
	Create(ctx context.Context, reading *Reading) error
	GetByIdAndUserId(ctx context.Context, id, userID int) (*Reading, error)
	CreateFollowUp(ctx context.Context, question *FollowUpQuestion) error
}
