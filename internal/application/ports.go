package application

import (
	"context"

	"github.com/stockroom/batch-service/internal/domain"
)

// TxRunner executes a function inside one storage transaction. The
// context passed to fn carries the session; repositories called with
// it join the transaction.
type TxRunner interface {
	RunTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// EventOutbox records domain events for reliable post-commit delivery.
// When called with a transactional context the record joins the
// caller's transaction.
type EventOutbox interface {
	Record(ctx context.Context, event domain.Event) error
}
