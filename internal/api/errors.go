package api

import (
	"errors"
	"net/http"

	"github.com/phrazzld/scry-avatars/internal/store"
	"github.com/phrazzld/scry-avatars/internal/task"
)

const unexpectedErrorMessage = "An unexpected error occurred"

// errorMapping pairs a sentinel with the status and client-facing message
// used when it appears anywhere in an error chain. Order matters: the first
// match wins.
var errorMappings = []struct {
	target  error
	status  int
	message string
}{
	{task.ErrTaskNotFound, http.StatusNotFound, "Task not found"},
	{store.ErrNotFound, http.StatusNotFound, "Avatar not found"},
	{store.ErrInvalidEntity, http.StatusBadRequest, "Invalid entity data"},
}

func lookupError(err error) (int, string) {
	if err != nil {
		for _, m := range errorMappings {
			if errors.Is(err, m.target) {
				return m.status, m.message
			}
		}
	}
	return http.StatusInternalServerError, unexpectedErrorMessage
}

// MapErrorToStatusCode returns the HTTP status for err. Unknown errors map
// to 500 so internal failures are never described to clients.
func MapErrorToStatusCode(err error) int {
	status, _ := lookupError(err)
	return status
}

// GetSafeErrorMessage returns the client-facing message for err.
func GetSafeErrorMessage(err error) string {
	_, msg := lookupError(err)
	return msg
}
