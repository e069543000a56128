package handler

import (
	"errors"
	"lighthouse-api/common"
	"lighthouse-api/service"
	"net/http"
)

func ErrorHandlingMiddleware(next func(http.ResponseWriter, *http.Request) *common.AppError) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := next(w, r); err != nil {
			err.Send(w)
		}
	}
}

// serviceError maps a service error to its HTTP status. Unknown errors become a
// 500 carrying fallback as the client-facing message.
func serviceError(err error, fallback string) *common.AppError {
	switch {
	case errors.Is(err, service.ErrUserExists),
		errors.Is(err, service.ErrDuplicateOrder):
		return common.NewAppError(http.StatusConflict, rootMessage(err), err)
	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrAccountDeactivated),
		errors.Is(err, service.ErrInvalidRefreshToken):
		return common.NewAppError(http.StatusUnauthorized, rootMessage(err), err)
	case errors.Is(err, service.ErrRegistrationFailed),
		errors.Is(err, service.ErrInvalidResetToken),
		errors.Is(err, service.ErrResetTokenExpired),
		errors.Is(err, service.ErrResetEmailFailed),
		errors.Is(err, service.ErrIncorrectPassword),
		errors.Is(err, service.ErrPasswordTooLong),
		errors.Is(err, service.ErrInvalidGoal),
		errors.Is(err, service.ErrInvalidAmount):
		return common.NewAppError(http.StatusBadRequest, rootMessage(err), err)
	case errors.Is(err, service.ErrUserNotFound),
		errors.Is(err, service.ErrCauseNotFound):
		return common.NewAppError(http.StatusNotFound, rootMessage(err), err)
	default:
		return common.NewAppError(http.StatusInternalServerError, fallback, err)
	}
}

var knownErrors = []error{
	service.ErrUserExists,
	service.ErrDuplicateOrder,
	service.ErrInvalidCredentials,
	service.ErrAccountDeactivated,
	service.ErrInvalidRefreshToken,
	service.ErrRegistrationFailed,
	service.ErrInvalidResetToken,
	service.ErrResetTokenExpired,
	service.ErrResetEmailFailed,
	service.ErrIncorrectPassword,
	service.ErrPasswordTooLong,
	service.ErrInvalidGoal,
	service.ErrInvalidAmount,
	service.ErrUserNotFound,
	service.ErrCauseNotFound,
}

// rootMessage returns the sentinel's text so wrapped infrastructure detail
// stays in the log.
func rootMessage(err error) string {
	for _, known := range knownErrors {
		if errors.Is(err, known) {
			return known.Error()
		}
	}
	return err.Error()
}
