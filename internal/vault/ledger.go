package vault

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"DriftShield/internal/host"
)

// JournalKind classifies a ledger entry.
type JournalKind int32

const (
	JournalKindDeposit JournalKind = iota
	JournalKindStake
	JournalKindPayout
	JournalKindPremium
	JournalKindRefund
)

func (k JournalKind) String() string {
	switch k {
	case JournalKindDeposit:
		return "deposit"
	case JournalKindStake:
		return "stake"
	case JournalKindPayout:
		return "payout"
	case JournalKindPremium:
		return "premium"
	case JournalKindRefund:
		return "refund"
	default:
		return "unknown"
	}
}

// Journal is a single double-entry record: Amount moves from Credit to
// Debit. Amount is always positive, so every entry is balanced by
// construction and the global account sum stays zero.
type Journal struct {
	ID        uuid.UUID
	Debit     Account
	Credit    Account
	Amount    uint64
	Kind      JournalKind
	Timestamp time.Time
}

// JournalSink receives every committed journal entry, e.g. for durable
// persistence. Sink failures are logged by the caller and never unwind a
// committed transfer.
type JournalSink interface {
	Append(ctx context.Context, j Journal) error
}

// Ledger is the in-memory double-entry implementation of Vault. Balances
// are tracked as int64 internally; only the external boundary account may
// go negative (it mirrors all value issued into the system).
type Ledger struct {
	mu       sync.Mutex
	balances map[Account]int64
	clock    host.Clock
	sink     JournalSink
	log      zerolog.Logger
}

// NewLedger creates an empty ledger. sink may be nil.
func NewLedger(clock host.Clock, sink JournalSink, log zerolog.Logger) *Ledger {
	return &Ledger{
		balances: make(map[Account]int64),
		clock:    clock,
		sink:     sink,
		log:      log,
	}
}

// Transfer atomically moves amount from one account to another. The
// presented authority must cover the debited account, and the source must
// hold at least the amount. Kind is inferred as a plain stake movement;
// use TransferKind when the classification matters.
func (l *Ledger) Transfer(ctx context.Context, from, to Account, amount uint64, auth Authority) error {
	return l.TransferKind(ctx, from, to, amount, auth, JournalKindStake)
}

// TransferKind is Transfer with an explicit journal classification.
func (l *Ledger) TransferKind(ctx context.Context, from, to Account, amount uint64, auth Authority, kind JournalKind) error {
	if amount > math.MaxInt64 {
		return ErrAmountTooLarge
	}
	if !auth.Covers(from) {
		return fmt.Errorf("transfer %s -> %s: %w", from, to, ErrUnauthorizedTransfer)
	}

	l.mu.Lock()
	if l.balances[from] < int64(amount) {
		l.mu.Unlock()
		return fmt.Errorf("transfer %s -> %s amount %d: %w", from, to, amount, ErrInsufficientFunds)
	}
	l.balances[from] -= int64(amount)
	l.balances[to] += int64(amount)
	entry := Journal{
		ID:        uuid.New(),
		Debit:     to,
		Credit:    from,
		Amount:    amount,
		Kind:      kind,
		Timestamp: l.clock.Now(),
	}
	l.mu.Unlock()

	l.appendJournal(ctx, entry)
	return nil
}

// Deposit issues value into an account from the external boundary. This is
// the host-environment stand-in for real custody inflows.
func (l *Ledger) Deposit(ctx context.Context, to Account, amount uint64) error {
	if amount > math.MaxInt64 {
		return ErrAmountTooLarge
	}

	l.mu.Lock()
	l.balances[externalDeposits] -= int64(amount)
	l.balances[to] += int64(amount)
	entry := Journal{
		ID:        uuid.New(),
		Debit:     to,
		Credit:    externalDeposits,
		Amount:    amount,
		Kind:      JournalKindDeposit,
		Timestamp: l.clock.Now(),
	}
	l.mu.Unlock()

	l.appendJournal(ctx, entry)
	return nil
}

func (l *Ledger) appendJournal(ctx context.Context, j Journal) {
	if l.sink == nil {
		return
	}
	// The balances are already committed; a lost row is an audit gap to
	// reconcile, never a rollback.
	if err := l.sink.Append(ctx, j); err != nil {
		l.log.Error().
			Err(err).
			Str("entry_id", j.ID.String()).
			Str("debit", string(j.Debit)).
			Str("credit", string(j.Credit)).
			Uint64("amount", j.Amount).
			Str("kind", j.Kind.String()).
			Msg("journal append failed")
	}
}

// Balance returns the current balance of an account. The external boundary
// account is reported as zero; its signed balance is an internal mirror.
func (l *Ledger) Balance(account Account) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.balances[account]
	if b < 0 {
		return 0
	}
	return uint64(b)
}

// GlobalSum returns the signed sum over every account including the
// external boundary. It must always be zero.
func (l *Ledger) GlobalSum() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	var total int64
	for _, b := range l.balances {
		total += b
	}
	return total
}
