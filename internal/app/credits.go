package app

import (
	"errors"
	"net/http"

	"github.com/arcanalabs/arcana/api"
	"github.com/arcanalabs/arcana/internal/domain"
)

func (app *application) GetBalanceHandler(w http.ResponseWriter, r *http.Request) {
	userId := app.contextGetUserId(r)

	user, err := app.userRepo.GetById(r.Context(), userId)
	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			app.userNotFoundResponse(w, r)
			return
		}

		app.serverErrorResponse(w, r, err)
		return
	}

	app.writeJSON(w, http.StatusOK, api.BalanceResponse{Balance: user.Credits}, nil)
}

func (app *application) GetLedgerHandler(w http.ResponseWriter, r *http.Request) {
	userId := app.contextGetUserId(r)
	pagination := app.readPagination(r)

	entries, metadata, err := app.ledgerRepo.GetEntriesByUserId(r.Context(), userId, pagination)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	resp := api.LedgerResponse{
		Entries: make([]api.LedgerEntry, 0, len(entries)),
		Metadata: api.Metadata{
			CurrentPage:  metadata.CurrentPage,
			FirstPage:    metadata.FirstPage,
			LastPage:     metadata.LastPage,
			PageSize:     metadata.PageSize,
			TotalRecords: metadata.TotalRecords,
		},
	}

	for _, entry := range entries {
		resp.Entries = append(resp.Entries, toApiLedgerEntry(entry))
	}

	app.writeJSON(w, http.StatusOK, resp, nil)
}

func (app *application) GetPackagesHandler(w http.ResponseWriter, r *http.Request) {
	packages := domain.CreditPackages()

	resp := api.PackagesResponse{
		Packages: make([]api.CreditPackage, 0, len(packages)),
	}

	for _, pkg := range packages {
		resp.Packages = append(resp.Packages, api.CreditPackage{
			Id:           pkg.ID,
			Name:         pkg.Name,
			Credits:      pkg.Credits,
			BonusCredits: pkg.BonusCredits,
			PriceEur:     pkg.PriceEur.StringFixed(2),
		})
	}

	app.writeJSON(w, http.StatusOK, resp, nil)
}

func toApiLedgerEntry(entry domain.LedgerEntry) api.LedgerEntry {
	apiEntry := api.LedgerEntry{
		Id:              entry.ID.String(),
		Type:            string(entry.Type),
		Amount:          entry.Amount,
		Description:     entry.Description,
		PaymentProvider: entry.PaymentProvider,
		PaymentId:       entry.PaymentID,
		CreatedAt:       entry.CreatedAt,
	}

	if entry.PaymentStatus != nil {
		status := string(*entry.PaymentStatus)
		apiEntry.PaymentStatus = &status
	}

	return apiEntry
}
