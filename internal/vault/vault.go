// Package vault is the value transfer port: an atomic "move N units from
// account A to account B" primitive with capability-based authorization.
// The program core calls it but treats it as external; the in-repo
// reference implementation is the double-entry Ledger.
package vault

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"DriftShield/internal/state"
)

var (
	// ErrInsufficientFunds is returned when the source account cannot
	// cover the transfer.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrUnauthorizedTransfer is returned when the presented authority
	// does not cover the debited account.
	ErrUnauthorizedTransfer = errors.New("authority does not cover source account")

	// ErrAmountTooLarge is returned for amounts beyond the ledger's
	// signed accounting range.
	ErrAmountTooLarge = errors.New("amount exceeds ledger range")
)

// Account identifies a balance-holding location.
type Account string

// UserAccount is the spendable account of an authenticated user.
func UserAccount(user uuid.UUID) Account {
	return Account("user:" + user.String())
}

// CustodyAccount is the holding location for the pooled real stake of a
// specific market.
func CustodyAccount(market state.Key) Account {
	return Account("market:" + market.String() + ":custody")
}

// InsurancePoolAccount is the shared premium pool backing all policies.
const InsurancePoolAccount Account = "insurance:pool"

// externalDeposits is the boundary account balancing value entering the
// system. It carries the negative mirror of all issued funds so the global
// ledger sum stays zero.
const externalDeposits Account = "external:deposits"

// Authority is a capability to debit exactly one account. A user holds the
// authority over their own account; a market or policy, once its identity
// has been validated, carries an implicit authority over its custody
// account. There is no authority that spans accounts.
type Authority struct {
	account Account
}

// Covers reports whether the authority permits debiting from.
func (a Authority) Covers(from Account) bool {
	return a.account != "" && a.account == from
}

func (a Authority) String() string {
	return fmt.Sprintf("authority(%s)", a.account)
}

// UserAuthority mints the capability a user presents for their own account.
func UserAuthority(user uuid.UUID) Authority {
	return Authority{account: UserAccount(user)}
}

// CustodyAuthority mints the capability a validated market carries over its
// own custody account. Callers must only mint this after loading the market
// from the store under its derived key.
func CustodyAuthority(market state.Key) Authority {
	return Authority{account: CustodyAccount(market)}
}

// PoolAuthority mints the capability a validated policy carries over the
// shared insurance pool.
func PoolAuthority() Authority {
	return Authority{account: InsurancePoolAccount}
}

// Vault moves value between accounts. A transfer either fully succeeds or
// fully fails; there is no partial transfer. TransferKind annotates the
// journal entry; Transfer records a plain stake movement.
type Vault interface {
	Transfer(ctx context.Context, from, to Account, amount uint64, auth Authority) error
	TransferKind(ctx context.Context, from, to Account, amount uint64, auth Authority, kind JournalKind) error
	Balance(account Account) uint64
}
