package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKindOfClassifiedError(t *testing.T) {
	t.Parallel()

	err := NotFound("application not found")
	require.Equal(t, KindNotFound, KindOf(err))
}

func TestKindOfSurvivesWrapping(t *testing.T) {
	t.Parallel()

	inner := Storage("insert application", errors.New("connection refused"))
	outer := fmt.Errorf("create application: %w", inner)

	require.Equal(t, KindStorage, KindOf(outer))
	require.Contains(t, outer.Error(), "connection refused")
}

func TestKindOfUnclassified(t *testing.T) {
	t.Parallel()

	require.Equal(t, KindUnknown, KindOf(errors.New("plain")))
	require.Nil(t, DetailsOf(errors.New("plain")))
}

func TestMessageOfHidesWrappedCause(t *testing.T) {
	t.Parallel()

	err := Storage("insert application", errors.New("connection refused"))
	require.Equal(t, "insert application", MessageOf(err))
	require.Equal(t, "internal server error", MessageOf(errors.New("plain")))
}

func TestValidationCarriesDetails(t *testing.T) {
	t.Parallel()

	details := []string{"companyName is required", "amount must be positive"}
	err := Validation("validation error", details)

	require.Equal(t, KindValidation, KindOf(err))
	require.Equal(t, details, DetailsOf(err))
}

func TestExternalKeepsStatusCode(t *testing.T) {
	t.Parallel()

	err := External("crawl run failed", 502, errors.New("bad gateway"))

	var e *Error
	require.ErrorAs(t, err, &e)
	require.Equal(t, 502, e.StatusCode)
	require.Equal(t, "external", e.Kind.String())
}
