package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/price-etl/internal/types"
)

func TestCategorize(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		wantCategory ErrorCategory
		wantStatus   int
	}{
		{
			name:         "transient fetch error",
			err:          NewTransientFetchError(types.SourceCoinGecko, errors.New("connection refused")),
			wantCategory: CategoryTransientFetch,
			wantStatus:   http.StatusBadGateway,
		},
		{
			name:         "malformed record error",
			err:          NewMalformedRecordError("price_usd", "not a number"),
			wantCategory: CategoryMalformedRecord,
			wantStatus:   http.StatusUnprocessableEntity,
		},
		{
			name:         "storage error",
			err:          NewStorageError("upsert prices", errors.New("connection reset")),
			wantCategory: CategoryStorage,
			wantStatus:   http.StatusInternalServerError,
		},
		{
			name:         "run in progress",
			err:          NewRunInProgressError(types.SourceCSV),
			wantCategory: CategoryConflict,
			wantStatus:   http.StatusConflict,
		},
		{
			name:         "plain error defaults to unexpected",
			err:          errors.New("boom"),
			wantCategory: CategoryUnexpected,
			wantStatus:   http.StatusInternalServerError,
		},
		{
			name:         "wrapped categorized error keeps its category",
			err:          fmt.Errorf("run aborted: %w", NewStorageError("checkpoint set", errors.New("timeout"))),
			wantCategory: CategoryStorage,
			wantStatus:   http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			catErr := Categorize(tt.err)
			if catErr.Category != tt.wantCategory {
				t.Errorf("Categorize() category = %v, want %v", catErr.Category, tt.wantCategory)
			}
			if got := GetHTTPStatusCode(tt.err); got != tt.wantStatus {
				t.Errorf("GetHTTPStatusCode() = %d, want %d", got, tt.wantStatus)
			}
		})
	}
}

func TestIsTransient(t *testing.T) {
	transient := NewTransientFetchError(types.SourceCoinPaprika, errors.New("timeout"))
	if !IsTransient(transient) {
		t.Error("IsTransient() = false for transient fetch error")
	}
	if IsTransient(NewMalformedResponseError(types.SourceCoinPaprika, errors.New("bad json"))) {
		t.Error("IsTransient() = true for malformed response error")
	}
	if IsTransient(nil) {
		t.Error("IsTransient(nil) = true")
	}
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := NewStorageError("raw insert", cause)

	if !errors.Is(err, cause) {
		t.Error("errors.Is() did not find wrapped cause")
	}
}

func TestToServiceError(t *testing.T) {
	err := NewInvalidParameterError("limit", "must be positive")
	svcErr := err.ToServiceError()

	if svcErr.Code != "INVALID_PARAMETER" {
		t.Errorf("Code = %s, want INVALID_PARAMETER", svcErr.Code)
	}
	if svcErr.Details["parameter"] != "limit" {
		t.Errorf("Details[parameter] = %v, want limit", svcErr.Details["parameter"])
	}
}
