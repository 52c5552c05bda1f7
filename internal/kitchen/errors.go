package kitchen

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	// ErrTicketNotFound is returned when a ticket id resolves to nothing.
	ErrTicketNotFound = errors.New("ticket not found")

	// ErrStatusConflict is returned by repositories when a conditional status
	// update matched the id but not the expected current status. The store
	// turns it into an InvalidTransitionError carrying the fresh status.
	ErrStatusConflict = errors.New("ticket status changed concurrently")
)

// InvalidOrderError rejects an order before anything is persisted. It is a
// caller mistake, never retryable.
type InvalidOrderError struct {
	Reason string
}

func (e *InvalidOrderError) Error() string {
	return "invalid order: " + e.Reason
}

// InvalidTransitionError reports a status change the lifecycle forbids. It
// names both states so the acting board can show who got there first.
type InvalidTransitionError struct {
	TicketID  uuid.UUID
	Current   string
	Requested string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition for ticket %s: %s -> %s", e.TicketID, e.Current, e.Requested)
}

// TransientStoreError wraps a transport failure talking to the durable store.
// Callers may retry with backoff; the routing result is safe to replay.
type TransientStoreError struct {
	Op  string
	Err error
}

func (e *TransientStoreError) Error() string {
	return fmt.Sprintf("transient store failure during %s: %v", e.Op, e.Err)
}

func (e *TransientStoreError) Unwrap() error {
	return e.Err
}

// IsInvalidOrder reports whether err rejects the submitted order itself.
func IsInvalidOrder(err error) bool {
	var e *InvalidOrderError
	return errors.As(err, &e)
}

// IsInvalidTransition reports whether err is a permanent lifecycle rejection.
func IsInvalidTransition(err error) bool {
	var e *InvalidTransitionError
	return errors.As(err, &e)
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	var e *TransientStoreError
	return errors.As(err, &e)
}
