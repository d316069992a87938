package validator

import (
	"fmt"
	"slices"

	"github.com/arcanalabs/arcana/internal/domain"
	"github.com/go-playground/validator/v10"
)

func NewValidator() *validator.Validate {
	validator := validator.New(validator.WithRequiredStructEnabled())

	validator.RegisterValidation("spread_type", validateSpreadType)
	validator.RegisterValidation("interpretation_style", validateInterpretationStyle)
	validator.RegisterValidation("provider", validateProvider)

	return validator
}

func validateSpreadType(fl validator.FieldLevel) bool {
	switch domain.SpreadType(fl.Field().String()) {
	case domain.SpreadSingle, domain.SpreadThreeCard, domain.SpreadHorseshoe,
		domain.SpreadRelationship, domain.SpreadCelticCross:
		return true
	}

	return false
}

func validateInterpretationStyle(fl validator.FieldLevel) bool {
	return slices.Contains(domain.InterpretationStyles, fl.Field().String())
}

func validateProvider(fl validator.FieldLevel) bool {
	provider := fl.Field().String()

	return provider == "stripe" || provider == "paypal"
}

// ValidationMessage converts validator errors into readable messages
func ValidationMessage(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s characters long", err.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters long", err.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", err.Param())
	case "spread_type":
		return "must be a valid spread type"
	case "interpretation_style":
		return "must be a valid interpretation style"
	case "provider":
		return "must be a supported payment provider"
	default:
		return "is invalid"
	}
}
