package http

import (
	"errors"
	"net/http"

	"cashstash/internal/auth"
	"cashstash/internal/core"
	"cashstash/internal/services"
	"cashstash/internal/storage"
)

// Generic per-operation messages.
const (
	msgRegister      = "Failed to create account."
	msgLogin         = "Failed to sign in."
	msgLogout        = "Failed to sign out."
	msgProfile       = "Failed to load profile."
	msgUpdateProfile = "Failed to update profile."
	msgSaveTx        = "Failed to save transaction."
	msgUpdateTx      = "Failed to update transaction."
	msgDeleteTx      = "Failed to delete transaction."
	msgLoadTx        = "Failed to load transactions."
	msgSummary       = "Failed to load summary."
	msgStats         = "Failed to load analytics."
	msgBalance       = "Failed to load balance."
	msgCategories    = "Failed to load categories."
	msgFeed          = "Failed to open live feed."
	msgUnauthorized  = "Please sign in."
	msgRateLimited   = "Too many requests. Please try again later."
	msgNotFound      = "Not found."
)

// userFacing are client errors whose text is safe to show as is.
var userFacing = []error{
	core.ErrInvalidType,
	core.ErrInvalidAmount,
	core.ErrInvalidCategory,
	core.ErrDescriptionTooLong,
	auth.ErrMissingFields,
	auth.ErrInvalidEmail,
	auth.ErrPasswordMismatch,
	auth.ErrWeakPassword,
	auth.ErrEmailTaken,
	auth.ErrInvalidCredentials,
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, auth.ErrNoSession),
		errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrBalanceBusy):
		return http.StatusTooManyRequests
	case errors.Is(err, errBadBody):
		return http.StatusBadRequest
	}
	for _, e := range userFacing {
		if errors.Is(err, e) {
			return http.StatusBadRequest
		}
	}
	return http.StatusInternalServerError
}

// fail writes err using the operation's generic message. Validation
// failures carry their own text so the client can show it next to the form.
func fail(w http.ResponseWriter, r *http.Request, generic string, err error) {
	status := statusFor(err)
	message := generic
	switch status {
	case http.StatusUnauthorized:
		message = msgUnauthorized
		if errors.Is(err, auth.ErrInvalidCredentials) {
			message = auth.ErrInvalidCredentials.Error()
		}
	case http.StatusNotFound:
		message = msgNotFound
	case http.StatusTooManyRequests:
		message = msgRateLimited
	case http.StatusBadRequest:
		for _, e := range userFacing {
			if errors.Is(err, e) {
				message = e.Error()
				break
			}
		}
	}
	writeError(w, r, status, message, err)
}
