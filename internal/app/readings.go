package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/arcanalabs/arcana/api"
	"github.com/arcanalabs/arcana/internal/credit"
	"github.com/arcanalabs/arcana/internal/domain"
)

// CreateReadingHandler runs the deduct-first protocol: the credit deduction
// commits before the reading row is written, and a failed write is compensated
// with a refund instead of rolling the deduction back. The client learns the
// refund outcome either way.
func (app *application) CreateReadingHandler(w http.ResponseWriter, r *http.Request) {
	userId := app.contextGetUserId(r)

	var req api.CreateReadingRequest

	err := app.readJSON(w, r, &req)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	err = app.validator.Struct(req)
	if err != nil {
		app.failedValidationResponse(w, r, err)
		return
	}

	styles := req.Styles
	if len(styles) == 0 {
		styles = []string{"classic"}
	}

	spread := domain.SpreadType(req.SpreadType)

	cost, err := app.credits.CalculateReadingCost(spread, len(styles), req.Extended)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	result, err := app.credits.DeductCredits(r.Context(), domain.DeductParams{
		UserID:      userId,
		Amount:      cost.TotalCost,
		Type:        domain.TransactionReading,
		Description: fmt.Sprintf("%s reading", spread),
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInsufficientCredits):
			app.insufficientCreditsResponse(w, r)
		case errors.Is(err, domain.ErrRecordNotFound):
			app.userNotFoundResponse(w, r)
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	reading := &domain.Reading{
		UserID:        userId,
		SpreadType:    spread,
		Styles:        styles,
		Question:      req.Question,
		Extended:      req.Extended,
		TransactionID: result.TransactionID,
	}

	err = app.readingRepo.Create(r.Context(), reading)
	if err != nil {
		refunded := app.compensateDeduction(r, domain.RefundParams{
			UserID:                userId,
			Amount:                cost.TotalCost,
			Reason:                "Refund for failed reading",
			OriginalTransactionID: result.TransactionID,
		})

		app.deductionFailedResponse(w, r, err, refunded)
		return
	}

	resp := api.ReadingResponse{
		Reading: api.Reading{
			Id:         reading.ID,
			SpreadType: string(reading.SpreadType),
			Styles:     reading.Styles,
			Question:   reading.Question,
			Extended:   reading.Extended,
			CreatedAt:  reading.CreatedAt,
		},
		TransactionId: result.TransactionID.String(),
		Cost: api.CostBreakdown{
			BaseCost:     cost.BaseCost,
			StyleCost:    cost.StyleCost,
			ExtendedCost: cost.ExtendedCost,
			TotalCost:    cost.TotalCost,
		},
		NewBalance: result.NewBalance,
	}

	app.writeJSON(w, http.StatusCreated, resp, nil)
}

// AddFollowUpQuestionHandler spends a credit on a follow-up question for an
// existing reading, with the same deduct-then-compensate protocol.
func (app *application) AddFollowUpQuestionHandler(w http.ResponseWriter, r *http.Request) {
	userId := app.contextGetUserId(r)

	readingId, err := app.readIDParam(r, "readingId")
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	var req api.AddQuestionRequest

	err = app.readJSON(w, r, &req)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	err = app.validator.Struct(req)
	if err != nil {
		app.failedValidationResponse(w, r, err)
		return
	}

	reading, err := app.readingRepo.GetByIdAndUserId(r.Context(), readingId, userId)
	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			app.readingNotFoundResponse(w, r)
			return
		}

		app.serverErrorResponse(w, r, err)
		return
	}

	result, err := app.credits.DeductCredits(r.Context(), domain.DeductParams{
		UserID:      userId,
		Amount:      credit.FollowUpQuestionCost,
		Type:        domain.TransactionQuestion,
		Description: fmt.Sprintf("Follow-up question for reading %d", reading.ID),
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInsufficientCredits):
			app.insufficientCreditsResponse(w, r)
		case errors.Is(err, domain.ErrRecordNotFound):
			app.userNotFoundResponse(w, r)
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	question := &domain.FollowUpQuestion{
		ReadingID:     reading.ID,
		UserID:        userId,
		Question:      req.Question,
		TransactionID: result.TransactionID,
	}

	err = app.readingRepo.CreateFollowUp(r.Context(), question)
	if err != nil {
		refunded := app.compensateDeduction(r, domain.RefundParams{
			UserID:                userId,
			Amount:                credit.FollowUpQuestionCost,
			Reason:                "Refund for failed follow-up question",
			OriginalTransactionID: result.TransactionID,
		})

		app.deductionFailedResponse(w, r, err, refunded)
		return
	}

	resp := api.FollowUpQuestionResponse{
		Id:            question.ID,
		ReadingId:     question.ReadingID,
		Question:      question.Question,
		TransactionId: result.TransactionID.String(),
		Cost:          credit.FollowUpQuestionCost,
		NewBalance:    result.NewBalance,
		CreatedAt:     question.CreatedAt,
	}

	app.writeJSON(w, http.StatusCreated, resp, nil)
}

// compensateDeduction refunds a committed deduction whose downstream write
// failed. It reports whether the refund went through; a false return means a
// dangling deduction that needs manual intervention, which is why it logs at
// ERROR before returning. The refund runs on a cancellation-immune context: a
// client disconnecting mid-request must not abort compensation for a mutation
// that already committed.
func (app *application) compensateDeduction(r *http.Request, params domain.RefundParams) bool {
	ctx := context.WithoutCancel(r.Context())

	_, err := app.credits.RefundCredits(ctx, params)
	if err != nil {
		app.logger.Error("failed to refund committed deduction",
			"user_id", params.UserID,
			"transaction_id", params.OriginalTransactionID,
			"amount", params.Amount,
			"error", err,
		)
		return false
	}

	return true
}
