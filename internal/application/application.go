// Package application defines the persisted application record and the
// validation contract shared by the manual and scraper create paths.
package application

import (
	"strconv"
	"time"
)

// Status enumerates the application lifecycle states.
type Status string

const (
	// StatusPending is the default state at creation.
	StatusPending Status = "pending"
	// StatusApproved marks an accepted application.
	StatusApproved Status = "approved"
	// StatusRejected marks a declined application.
	StatusRejected Status = "rejected"
)

// ValidStatus reports whether s is one of the enumerated states.
func ValidStatus(s Status) bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	default:
		return false
	}
}

// Application is one row of the applications table. Amount is the decimal's
// text form, two fractional digits, as the store returns it.
type Application struct {
	ID          int64     `json:"id"`
	CompanyName string    `json:"companyName"`
	Email       string    `json:"email"`
	Status      Status    `json:"status"`
	Amount      string    `json:"amount"`
	Notes       *string   `json:"notes"`
	Date        time.Time `json:"date"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// CreateFields is the validated input to ApplicationStore.Create. Amount is
// already coerced to the store's decimal-as-text representation.
type CreateFields struct {
	CompanyName string
	Email       string
	Status      Status
	Amount      string
	Notes       *string
}

// FormatAmount renders a positive amount with two fractional digits.
func FormatAmount(amount float64) string {
	return strconv.FormatFloat(amount, 'f', 2, 64)
}
