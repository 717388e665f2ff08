// Package fee implements platform fee accounting.
// The fee is a whole-number percentage of the declared reward, truncated,
// and is retained by the platform operator. Rate changes apply only to
// future deposits.
package fee

import (
	"fmt"
	"math"

	"github.com/taskbay/taskbay/internal/domain"
)

// MaxPercentage caps the rate so that 0 <= fee <= deposit always holds.
const MaxPercentage = 100

// Compute splits an amount into the worker reward and the platform fee:
// fee = amount * pct / 100 (truncated), reward = amount - fee. Callers keep
// amount at or below MaxReward(pct).
func Compute(amount, pct int64) (reward, fee int64) {
	fee = amount * pct / 100
	return amount - fee, fee
}

// MaxReward is the largest reward whose deposit fits in an int64 at pct.
func MaxReward(pct int64) int64 {
	return math.MaxInt64 / (100 + pct)
}

func checkReward(reward, pct int64) error {
	if pct < 0 || pct > MaxPercentage {
		return fmt.Errorf("fee percentage %d outside [0, %d]: %w", pct, MaxPercentage, domain.ErrInvalidAmount)
	}
	if reward <= 0 {
		return fmt.Errorf("reward must be positive, got %d: %w", reward, domain.ErrInvalidAmount)
	}
	if reward > MaxReward(pct) {
		return fmt.Errorf("reward %d exceeds maximum %d at %d%%: %w", reward, MaxReward(pct), pct, domain.ErrInvalidAmount)
	}
	return nil
}

// RequiredDeposit is the exact value an author must attach for a reward.
func RequiredDeposit(reward, pct int64) (int64, error) {
	if err := checkReward(reward, pct); err != nil {
		return 0, err
	}
	_, f := Compute(reward, pct)
	return reward + f, nil
}

// ValidateDeposit fails with ErrInvalidAmount unless deposit is exactly
// reward + fee(reward). Over- and underpayment are both rejected, as is any
// reward too large for the deposit to be represented.
func ValidateDeposit(reward, deposit, pct int64) (int64, error) {
	if err := checkReward(reward, pct); err != nil {
		return 0, err
	}
	if deposit <= 0 {
		return 0, fmt.Errorf("deposit must be positive, got %d: %w", deposit, domain.ErrInvalidAmount)
	}
	_, f := Compute(reward, pct)
	if deposit != reward+f {
		return 0, fmt.Errorf("deposit %d, want %d: %w", deposit, reward+f, domain.ErrInvalidAmount)
	}
	return f, nil
}

// Book holds the operator's fee state. It is not safe for concurrent use;
// the platform engine serializes access and only mutates it through Restore
// with state that has already been committed.
type Book struct {
	owner      domain.Address
	percentage int64
	total      int64
}

// NewBook creates a fee book for the operator.
func NewBook(owner domain.Address, pct int64) *Book {
	return &Book{owner: owner, percentage: pct}
}

// Restore replaces the book with committed state.
func (b *Book) Restore(s domain.PlatformState) {
	b.owner = s.Owner
	b.percentage = s.FeePercentage
	b.total = s.TotalFees
}

// Owner returns the operator identity.
func (b *Book) Owner() domain.Address { return b.owner }

// Percentage returns the rate applied to new deposits.
func (b *Book) Percentage() int64 { return b.percentage }

// Total returns the accrued, withdrawable fees.
func (b *Book) Total() int64 { return b.total }

// IsOperator reports whether caller may manage fees.
func (b *Book) IsOperator(caller domain.Address) bool {
	return !b.owner.IsZero() && b.owner.Equal(caller)
}

// CheckSetPercentage validates a rate change without applying it.
func (b *Book) CheckSetPercentage(caller domain.Address, pct int64) error {
	if !b.IsOperator(caller) {
		return fmt.Errorf("set fee: %w", domain.ErrUnauthorized)
	}
	if pct < 0 || pct > MaxPercentage {
		return fmt.Errorf("fee percentage %d outside [0, %d]: %w", pct, MaxPercentage, domain.ErrInvalidAmount)
	}
	return nil
}

// CheckWithdraw validates a withdrawal and returns the amount that would be
// paid out: the entire accrued balance, possibly zero.
func (b *Book) CheckWithdraw(caller domain.Address) (int64, error) {
	if !b.IsOperator(caller) {
		return 0, fmt.Errorf("withdraw fees: %w", domain.ErrUnauthorized)
	}
	return b.total, nil
}
