package core

import (
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	SyncErrorBadInput            = "SYNC_BAD_INPUT"
	SyncErrorNotFound            = "SYNC_NOT_FOUND"
	SyncErrorAlreadyResolved     = "SYNC_ALREADY_RESOLVED"
	SyncErrorIncompleteSelection = "SYNC_INCOMPLETE_SELECTION"
	SyncErrorNotRetryable        = "SYNC_NOT_RETRYABLE"
	SyncErrorNotCancellable      = "SYNC_NOT_CANCELLABLE"
	SyncErrorRateLimited         = "SYNC_RATE_LIMITED"
	SyncErrorInternal            = "SYNC_INTERNAL_ERROR"
)

// syncErrorMapper wraps domain sentinels into categorized envelopes so the
// REST and command layers can derive status codes without string matching.
func syncErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureSyncErrorEnvelope(richErr)
	}

	switch {
	case goerrors.Is(err, ErrConflictNotFound), goerrors.Is(err, ErrQueueItemNotFound):
		return newSyncError(err.Error(), goerrors.CategoryNotFound, SyncErrorNotFound)
	case goerrors.Is(err, ErrConflictAlreadyResolved):
		return newSyncError(err.Error(), goerrors.CategoryConflict, SyncErrorAlreadyResolved)
	case goerrors.Is(err, ErrIncompleteSelection):
		return newSyncError(err.Error(), goerrors.CategoryBadInput, SyncErrorIncompleteSelection)
	case goerrors.Is(err, ErrQueueItemNotRetryable):
		return newSyncError(err.Error(), goerrors.CategoryConflict, SyncErrorNotRetryable)
	case goerrors.Is(err, ErrQueueItemNotCancellable):
		return newSyncError(err.Error(), goerrors.CategoryConflict, SyncErrorNotCancellable)
	case goerrors.Is(err, ErrInvalidEntityType),
		goerrors.Is(err, ErrInvalidSyncDirection),
		goerrors.Is(err, ErrInvalidSyncOperation),
		goerrors.Is(err, ErrInvalidDocumentOperation),
		goerrors.Is(err, ErrInvalidResolutionType),
		goerrors.Is(err, ErrBulkMergeNotAllowed):
		return newSyncError(err.Error(), goerrors.CategoryBadInput, SyncErrorBadInput)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "throttl"), strings.Contains(msg, "rate limit"):
		return newSyncError(err.Error(), goerrors.CategoryRateLimit, SyncErrorRateLimited)
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"):
		return newSyncError(err.Error(), goerrors.CategoryBadInput, SyncErrorBadInput)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureSyncErrorEnvelope(mapped)
}

// MapError is the exported entry point used by transports.
func MapError(err error) *goerrors.Error {
	return syncErrorMapper(err)
}

func newSyncError(message string, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureSyncErrorEnvelope(
		goerrors.New(message, category).
			WithTextCode(textCode),
	)
}

func ensureSyncErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = syncHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultSyncTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultSyncTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return SyncErrorBadInput
	case goerrors.CategoryNotFound:
		return SyncErrorNotFound
	case goerrors.CategoryConflict:
		return SyncErrorAlreadyResolved
	case goerrors.CategoryRateLimit:
		return SyncErrorRateLimited
	default:
		return SyncErrorInternal
	}
}

func syncHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
