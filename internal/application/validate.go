package application

import (
	"github.com/go-playground/validator/v10"

	"github.com/appvine/apptrack/internal/apperr"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// CreatePayload is the untyped inbound shape for creation. Status defaults
// to pending when absent; Amount arrives as a JSON number.
type CreatePayload struct {
	CompanyName string  `json:"companyName" validate:"required"`
	Email       string  `json:"email"       validate:"required,email"`
	Status      string  `json:"status"      validate:"omitempty,oneof=pending approved rejected"`
	Amount      float64 `json:"amount"      validate:"required,gt=0"`
	Notes       *string `json:"notes"`
}

// ValidateCreate checks p against the creation contract and returns the
// coerced field set, or a validation error carrying per-field messages.
func ValidateCreate(p CreatePayload) (CreateFields, error) {
	if err := validate.Struct(p); err != nil {
		verrs, ok := err.(validator.ValidationErrors)
		if !ok {
			return CreateFields{}, apperr.Validation("validation error", []string{err.Error()})
		}
		details := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			details = append(details, messageFor(fe))
		}
		return CreateFields{}, apperr.Validation("validation error", details)
	}

	status := Status(p.Status)
	if p.Status == "" {
		status = StatusPending
	}

	return CreateFields{
		CompanyName: p.CompanyName,
		Email:       p.Email,
		Status:      status,
		Amount:      FormatAmount(p.Amount),
		Notes:       normalizeNotes(p.Notes),
	}, nil
}

func normalizeNotes(notes *string) *string {
	if notes == nil || *notes == "" {
		return nil
	}
	return notes
}

func messageFor(fe validator.FieldError) string {
	switch fe.Field() {
	case "CompanyName":
		return "companyName is required"
	case "Email":
		if fe.Tag() == "email" {
			return "email must be a valid email address"
		}
		return "email is required"
	case "Status":
		return "status must be one of pending, approved, rejected"
	case "Amount":
		return "amount must be a positive number"
	default:
		return fe.Error()
	}
}
