package api

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/phrazzld/scry-avatars/internal/store"
	"github.com/phrazzld/scry-avatars/internal/task"
	"github.com/stretchr/testify/assert"
)

func TestMapErrorToStatusCode(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		expectedStatus int
		expectedMsg    string
	}{
		{name: "nil error", err: nil, expectedStatus: http.StatusInternalServerError, expectedMsg: "An unexpected error occurred"},
		{name: "task not found", err: task.ErrTaskNotFound, expectedStatus: http.StatusNotFound, expectedMsg: "Task not found"},
		{
			name:           "wrapped task not found",
			err:            fmt.Errorf("%w: abc", task.ErrTaskNotFound),
			expectedStatus: http.StatusNotFound,
			expectedMsg:    "Task not found",
		},
		{
			name:           "profile not found",
			err:            store.NewStoreError("profile", "get", "no row", store.ErrNotFound),
			expectedStatus: http.StatusNotFound,
			expectedMsg:    "Avatar not found",
		},
		{name: "invalid entity", err: store.ErrInvalidEntity, expectedStatus: http.StatusBadRequest, expectedMsg: "Invalid entity data"},
		{
			name:           "internal detail",
			err:            errors.New("pq: password authentication failed for user avatars"),
			expectedStatus: http.StatusInternalServerError,
			expectedMsg:    "An unexpected error occurred",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expectedStatus, MapErrorToStatusCode(tc.err))
			assert.Equal(t, tc.expectedMsg, GetSafeErrorMessage(tc.err))
		})
	}
}
