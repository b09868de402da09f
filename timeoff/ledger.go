/*
ledger.go - Per (user, year, leave type) balance ledger

PURPOSE:

	Maintains the balance invariant and provides atomic, audited mutation.
	Every mutation is a read-check-write on one balance row inside the caller's
	unit of work, so the check and the write commit together.

CRITICAL INVARIANTS:
 1. Remaining == Total - Used after every mutation
 2. A positive deduction never takes Remaining below zero
 3. Restore never fails the insufficiency check (it only adds back)
 4. Every mutation appends an UPDATE/BALANCE audit entry with the previous
    and new values and the reason

BALANCE CREATION:

	Balances are created on first read with the configured default allotment
	(22 vacation / 8 sick / 0 paid leave / 3 personal unless the rules file
	says otherwise). GetBalance returns NotFoundError only for unknown users.

OPERATIONS:

	Deduct:  Used += days, Remaining -= days; InsufficientBalanceError if the
	         result would be negative. Negative days act as a restore.
	Restore: Deduct(-days). Used for deleting an approved request.
	Credit:  Total += days. Used for overtime conversion; keeps Used untouched.
	SetTotal: Admin correction of the allotment; Used is preserved.

NUMERIC SEMANTICS:

	Days are decimal and fractional (overtime yields 2.5 etc). No rounding.

SEE ALSO:
  - request.go: Approve/Delete compose Deduct/Restore in one unit of work
  - overtime.go: Approve composes Credit
*/
package timeoff

import (
	"context"
	"fmt"

	"github.com/warp/leave-ledger/generic"
)

// =============================================================================
// LEDGER
// =============================================================================

type Ledger struct {
	Allotments Allotments
	run        *runner
}

// GetBalance returns the balance, creating it with the default allotment if absent.
func (l *Ledger) GetBalance(ctx context.Context, userID string, year int, leaveType LeaveType) (Balance, error) {
	if err := checkBalanceKey(userID, year, leaveType); err != nil {
		return Balance{}, err
	}
	var out Balance
	err := l.run.run(ctx, "get balance", func(ctx context.Context, w *work) error {
		b, err := l.balance(ctx, w, userID, year, leaveType)
		out = b
		return err
	})
	return out, err
}

// Summary returns the balances of every leave type for a user and year.
func (l *Ledger) Summary(ctx context.Context, userID string, year int) ([]Balance, error) {
	if err := checkBalanceKey(userID, year, LeaveVacation); err != nil {
		return nil, err
	}
	var out []Balance
	err := l.run.run(ctx, "balance summary", func(ctx context.Context, w *work) error {
		out = out[:0]
		for _, t := range LeaveTypes {
			b, err := l.balance(ctx, w, userID, year, t)
			if err != nil {
				return err
			}
			out = append(out, b)
		}
		return nil
	})
	return out, err
}

// Deduct consumes days from a balance.
func (l *Ledger) Deduct(ctx context.Context, actorID, userID string, year int, leaveType LeaveType, days generic.Amount, reason string) (Balance, error) {
	if err := checkBalanceKey(userID, year, leaveType); err != nil {
		return Balance{}, err
	}
	var out Balance
	err := l.run.run(ctx, "deduct balance", func(ctx context.Context, w *work) error {
		b, err := l.deduct(ctx, w, actorID, userID, year, leaveType, days, reason)
		out = b
		return err
	})
	return out, err
}

// Restore gives days back to a balance.
func (l *Ledger) Restore(ctx context.Context, actorID, userID string, year int, leaveType LeaveType, days generic.Amount, reason string) (Balance, error) {
	if days.IsNegative() {
		return Balance{}, generic.NewValidationError(generic.CodeInvalidInput, "restored days must not be negative")
	}
	return l.Deduct(ctx, actorID, userID, year, leaveType, days.Neg(), reason)
}

// Credit adds days to the allotment.
func (l *Ledger) Credit(ctx context.Context, actorID, userID string, year int, leaveType LeaveType, days generic.Amount, reason string) (Balance, error) {
	if err := checkBalanceKey(userID, year, leaveType); err != nil {
		return Balance{}, err
	}
	if days.IsNegative() {
		return Balance{}, generic.NewValidationError(generic.CodeInvalidInput, "credited days must not be negative")
	}
	var out Balance
	err := l.run.run(ctx, "credit balance", func(ctx context.Context, w *work) error {
		b, err := l.credit(ctx, w, actorID, userID, year, leaveType, days, reason)
		out = b
		return err
	})
	return out, err
}

// SetTotal overwrites the allotment of a balance. Admin only.
func (l *Ledger) SetTotal(ctx context.Context, actor Actor, userID string, year int, leaveType LeaveType, total generic.Amount) (Balance, error) {
	if !actor.IsAdmin() {
		return Balance{}, generic.NewValidationError(generic.CodeNotAuthorized, "only admins can adjust balances")
	}
	if err := checkBalanceKey(userID, year, leaveType); err != nil {
		return Balance{}, err
	}
	if total.IsNegative() {
		return Balance{}, generic.NewValidationError(generic.CodeInvalidInput, "total days must not be negative")
	}
	var out Balance
	err := l.run.run(ctx, "adjust balance", func(ctx context.Context, w *work) error {
		b, err := l.balance(ctx, w, userID, year, leaveType)
		if err != nil {
			return err
		}
		prev := b
		b.Total = total
		b.Remaining = b.Total.Sub(b.Used)
		if err := l.save(ctx, w, &b); err != nil {
			return err
		}
		w.record(actor.UserID, generic.AuditUpdate, generic.AuditEntityBalance, b.Key(), map[string]any{
			"previous": prev.snapshot(),
			"new":      b.snapshot(),
			"reason":   "Manual allotment adjustment",
		})
		out = b
		return nil
	})
	return out, err
}

// =============================================================================
// UNIT-OF-WORK OPERATIONS (composed by the request and overtime services)
// =============================================================================

func (l *Ledger) balance(ctx context.Context, w *work, userID string, year int, leaveType LeaveType) (Balance, error) {
	existing, err := w.tx.FindBalance(ctx, userID, year, leaveType)
	if err != nil {
		return Balance{}, err
	}
	if existing != nil {
		return *existing, nil
	}
	owner, err := w.tx.FindUser(ctx, userID)
	if err != nil {
		return Balance{}, err
	}
	if owner == nil {
		return Balance{}, &generic.NotFoundError{Entity: "user", ID: userID}
	}
	b := l.Allotments.NewBalance(userID, year, leaveType)
	if err := l.save(ctx, w, &b); err != nil {
		return Balance{}, err
	}
	return b, nil
}

func (l *Ledger) deduct(ctx context.Context, w *work, actorID, userID string, year int, leaveType LeaveType, days generic.Amount, reason string) (Balance, error) {
	b, err := l.balance(ctx, w, userID, year, leaveType)
	if err != nil {
		return Balance{}, err
	}
	if days.IsPositive() && b.Remaining.Sub(days).IsNegative() {
		return Balance{}, &generic.InsufficientBalanceError{
			Type:      string(leaveType),
			Required:  days,
			Available: b.Remaining,
		}
	}

	prev := b
	b.Used = b.Used.Add(days)
	b.Remaining = b.Total.Sub(b.Used)
	if err := l.save(ctx, w, &b); err != nil {
		return Balance{}, err
	}
	w.record(actorID, generic.AuditUpdate, generic.AuditEntityBalance, b.Key(), map[string]any{
		"previous": prev.snapshot(),
		"new":      b.snapshot(),
		"days":     days.Value.String(),
		"reason":   reason,
	})
	return b, nil
}

func (l *Ledger) restore(ctx context.Context, w *work, actorID, userID string, year int, leaveType LeaveType, days generic.Amount, reason string) (Balance, error) {
	return l.deduct(ctx, w, actorID, userID, year, leaveType, days.Neg(), reason)
}

func (l *Ledger) credit(ctx context.Context, w *work, actorID, userID string, year int, leaveType LeaveType, days generic.Amount, reason string) (Balance, error) {
	b, err := l.balance(ctx, w, userID, year, leaveType)
	if err != nil {
		return Balance{}, err
	}
	prev := b
	b.Total = b.Total.Add(days)
	b.Remaining = b.Total.Sub(b.Used)
	if err := l.save(ctx, w, &b); err != nil {
		return Balance{}, err
	}
	w.record(actorID, generic.AuditUpdate, generic.AuditEntityBalance, b.Key(), map[string]any{
		"previous": prev.snapshot(),
		"new":      b.snapshot(),
		"credit":   days.Value.String(),
		"reason":   reason,
	})
	return b, nil
}

func (l *Ledger) save(ctx context.Context, w *work, b *Balance) error {
	if !b.Consistent() {
		return fmt.Errorf("balance %s violates remaining = total - used", b.Key())
	}
	b.UpdatedAt = w.now
	return w.tx.UpsertBalance(ctx, b)
}

func checkBalanceKey(userID string, year int, leaveType LeaveType) error {
	if userID == "" {
		return generic.NewValidationError(generic.CodeInvalidInput, "user id is required")
	}
	if year <= 0 {
		return generic.NewValidationError(generic.CodeInvalidInput, "year must be positive")
	}
	if !leaveType.Valid() {
		return generic.NewValidationError(generic.CodeInvalidInput, fmt.Sprintf("unknown leave type %q", leaveType))
	}
	return nil
}
