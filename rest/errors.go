package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"
	goerrors "github.com/goliatone/go-errors"
	"github.com/npdadmin/syncengine/core"
)

const ErrorUnauthorized = "SYNC_UNAUTHORIZED"

type errorDetail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error   string        `json:"error"`
	Message string        `json:"message"`
	Details []errorDetail `json:"details,omitempty"`
}

// writeError maps any error through the shared envelope and renders the
// `{error, message}` body. Validation failures carry per-field details.
func writeError(c *gin.Context, err error) {
	mapped := core.MapError(err)
	if mapped == nil {
		return
	}
	_ = c.Error(mapped)

	status := mapped.Code
	if status == 0 {
		status = http.StatusInternalServerError
	}

	body := errorResponse{
		Error:   mapped.TextCode,
		Message: mapped.Message,
	}
	for _, fieldErr := range mapped.AllValidationErrors() {
		body.Details = append(body.Details, errorDetail{
			Field:   fieldErr.Field,
			Message: fieldErr.Message,
		})
	}
	c.PureJSON(status, body)
}

func bindError(err error) error {
	return goerrors.Wrap(err, goerrors.CategoryBadInput, "rest: invalid request body").
		WithCode(http.StatusBadRequest).
		WithTextCode(core.SyncErrorBadInput)
}

func queryParamError(param string, message string) error {
	return goerrors.NewValidation("rest: invalid query parameter", goerrors.FieldError{
		Field:   param,
		Message: message,
	}).
		WithCode(http.StatusBadRequest).
		WithTextCode(core.SyncErrorBadInput)
}

func authorizationError(err error) error {
	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		if rich.Code == 0 {
			rich.Code = http.StatusForbidden
		}
		return rich
	}
	return goerrors.Wrap(err, goerrors.CategoryAuth, "rest: request not authorized").
		WithCode(http.StatusForbidden).
		WithTextCode(ErrorUnauthorized)
}
