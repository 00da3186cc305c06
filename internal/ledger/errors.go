package ledger

import (
	"errors"
	"fmt"

	"equity-ledger/internal/domain"
)

var (
	// ErrNoPool is returned when a grant is created for a company without a pool.
	ErrNoPool = fmt.Errorf("%w: company has no vsop pool", domain.ErrValidation)

	// ErrPoolCapacityExceeded is returned when capacity enforcement is enabled
	// and a grant would commit more shares than the pool holds.
	ErrPoolCapacityExceeded = errors.New("pool capacity exceeded")

	// ErrInvalidDate is returned in strict date mode for unparseable input.
	ErrInvalidDate = fmt.Errorf("%w: unparseable date", domain.ErrValidation)

	// ErrCrossCompany is returned when a write references an entity of another company.
	ErrCrossCompany = fmt.Errorf("%w: reference belongs to another company", domain.ErrValidation)

	// ErrHistoryDisabled is returned by exports when no history store is configured.
	ErrHistoryDisabled = errors.New("ownership history store not configured")
)
