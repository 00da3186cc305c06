package ledger

import "equity-ledger/internal/domain"

// Notifier receives every successful mutation. Implementations must not block.
type Notifier interface {
	Notify(change domain.LedgerChange)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(domain.LedgerChange)

// Notify calls f(change).
func (f NotifierFunc) Notify(change domain.LedgerChange) { f(change) }
