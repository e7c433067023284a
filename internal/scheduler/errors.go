package scheduler

import (
	"errors"
	"fmt"
)

// PublishError represents an item-level problem detected during a run.
//
// Item-level errors never cross into another item's processing: they are
// logged, recorded in the run summary and the run moves on.
type PublishError struct {
	// Code identifies the error category.
	Code PublishErrorCode

	// ItemID identifies the affected item.
	ItemID string

	// Message is a human-readable description.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

// PublishErrorCode categorizes publish errors.
type PublishErrorCode string

const (
	// ErrCodeRepository indicates a read from the item repository failed.
	// The item is left scheduled for the next run.
	ErrCodeRepository PublishErrorCode = "REPOSITORY"

	// ErrCodeTransport indicates the publish call failed or timed out.
	// The item is marked failed.
	ErrCodeTransport PublishErrorCode = "TRANSPORT"

	// ErrCodeParentNotReady indicates the parent has no usable external id
	// yet. The item is deferred, which is not a failure.
	ErrCodeParentNotReady PublishErrorCode = "PARENT_NOT_READY"

	// ErrCodeWriteBack indicates the outcome could not be recorded.
	ErrCodeWriteBack PublishErrorCode = "WRITE_BACK"
)

// Error implements the error interface.
func (e *PublishError) Error() string {
	msg := fmt.Sprintf("%s: %s (item=%s)", e.Code, e.Message, e.ItemID)
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *PublishError) Unwrap() error {
	return e.Err
}

func hasCode(err error, code PublishErrorCode) bool {
	var pe *PublishError
	if errors.As(err, &pe) {
		return pe.Code == code
	}
	return false
}

// IsParentNotReady reports whether err is a deferral.
func IsParentNotReady(err error) bool { return hasCode(err, ErrCodeParentNotReady) }

// IsTransportError reports whether err is a publish failure.
func IsTransportError(err error) bool { return hasCode(err, ErrCodeTransport) }

// IsRepositoryError reports whether err is a repository read failure.
func IsRepositoryError(err error) bool { return hasCode(err, ErrCodeRepository) }

// IsWriteBackError reports whether err is a failed status write-back.
func IsWriteBackError(err error) bool { return hasCode(err, ErrCodeWriteBack) }

func newParentNotReady(itemID, parentID string) *PublishError {
	return &PublishError{
		Code:    ErrCodeParentNotReady,
		ItemID:  itemID,
		Message: fmt.Sprintf("parent %s has not been posted", parentID),
	}
}

func newRepositoryError(itemID, message string, err error) *PublishError {
	return &PublishError{Code: ErrCodeRepository, ItemID: itemID, Message: message, Err: err}
}

func newTransportError(itemID string, err error) *PublishError {
	return &PublishError{Code: ErrCodeTransport, ItemID: itemID, Message: "publish failed", Err: err}
}

func newWriteBackError(itemID, message string, err error) *PublishError {
	return &PublishError{Code: ErrCodeWriteBack, ItemID: itemID, Message: message, Err: err}
}
