package archive

import "errors"

// ErrBudgetExceeded is returned when a container's cumulative
// decompressed size passes the configured expansion budget. The caller
// stops expanding that container; the scan itself continues.
var ErrBudgetExceeded = errors.New("expansion budget exceeded")

// Budget tracks cumulative decompressed bytes across one top-level
// container's whole expansion, nested containers included. It is used
// by a single worker and is not safe for concurrent use.
type Budget struct {
	limit int64
	used  int64
}

// NewBudget creates a budget with the given byte limit
func NewBudget(limit int64) *Budget {
	return &Budget{limit: limit}
}

// Consume accounts for n decompressed bytes. Once the limit is passed
// the budget stays exhausted: every further call fails too.
func (b *Budget) Consume(n int64) error {
	b.used += n
	if b.used > b.limit {
		return ErrBudgetExceeded
	}
	return nil
}

// Remaining returns how many bytes may still be decompressed
func (b *Budget) Remaining() int64 {
	if b.used >= b.limit {
		return 0
	}
	return b.limit - b.used
}

// Used returns the bytes consumed so far
func (b *Budget) Used() int64 {
	return b.used
}
