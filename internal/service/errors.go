package service

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrUnauthenticated   = errors.New("not authenticated")
	ErrNotFound          = errors.New("not found")
	ErrNotOwner          = errors.New("only the message sender can perform this action")
	ErrInvalidAttachment = errors.New("invalid attachment")
	ErrUploadFailed      = errors.New("upload failed")
	ErrSendFailed        = errors.New("send failed")
	ErrEditFailed        = errors.New("edit failed")
	ErrDeleteFailed      = errors.New("delete failed")
	ErrTimeout           = errors.New("operation timed out")
)

// classify wraps a provider error under the pipeline's failure kind,
// surfacing deadline expiry as a distinguished timeout.
func classify(kind, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w: %w", kind, ErrTimeout, err)
	}
	return fmt.Errorf("%w: %w", kind, err)
}
