package cli

import (
	"errors"

	"github.com/Satyam1603/GoTogether/internal/client/client"
)

// Describe turns an error into the line shown to the user.
func Describe(err error) string {
	var ae *client.APIError
	switch {
	case errors.Is(err, client.ErrSessionExpired):
		return "session expired, please log in again"
	case errors.Is(err, client.ErrUnavailable):
		return "server unavailable, try again later"
	case errors.As(err, &ae) && ae.Message != "":
		return ae.Message
	case errors.Is(err, client.ErrUnauthenticated):
		return "not logged in, run 'gotogether login' first"
	case errors.Is(err, client.ErrUnexpectedResponse):
		return "the server sent a response this client does not understand"
	}
	return err.Error()
}
