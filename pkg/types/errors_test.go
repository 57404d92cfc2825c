package types

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorKinds(t *testing.T) {
	cause := errors.New("disk full")
	tests := []struct {
		name string
		err  error
		kind error
	}{
		{"validation", Validationf("routes", "route_type", nil, "missing"), ErrValidation},
		{"conflict", &ConflictError{Table: "calendar", Message: "blocked"}, ErrConflict},
		{"reference", &ReferenceError{Table: "trips", Field: "route_id", Values: []string{"R9"}, Candidates: []string{"routes"}}, ErrReference},
		{"not found", &NotFoundError{Table: "routes", ID: 3}, ErrNotFound},
		{"storage", &StorageError{Op: "inserting routes", Err: cause}, ErrStorage},
	}
	kinds := []error{ErrValidation, ErrConflict, ErrReference, ErrNotFound, ErrStorage}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, k := range kinds {
				assert.Equal(t, k == tt.kind, errors.Is(tt.err, k), "kind %v", k)
			}
		})
	}

	assert.ErrorIs(t, &StorageError{Op: "x", Err: cause}, cause)
}

func TestReferenceErrorMessage(t *testing.T) {
	err := &ReferenceError{
		Table: "stop_times", Field: "stop_id",
		Values:     []string{"X1", "X2"},
		Candidates: []string{"stops", "locations", "location_groups"},
	}
	assert.Equal(t,
		"stop_times entities must contain valid stop_id references to stops/locations/location_groups (invalid references: X1, X2)",
		err.Error())
}
