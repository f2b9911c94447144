package token

import (
	"fmt"
	"math"

	"github.com/gagliardetto/solana-go"

	"bazaar/core/types"
	"bazaar/native/pda"
)

// LedgerState is the persistence surface the token ledger needs from the
// surrounding state implementation.
type LedgerState interface {
	TokenMintGet(addr solana.PublicKey) (*Mint, bool)
	TokenMintPut(mint *Mint) error
	TokenAccountGet(addr solana.PublicKey) (*Account, bool)
	TokenAccountPut(acc *Account) error
	TokenAccountDelete(addr solana.PublicKey) error
	GetAccount(addr solana.PublicKey) (*types.Account, error)
	PutAccount(addr solana.PublicKey, acc *types.Account) error
}

// Ledger executes token operations against a state backend. All operations
// are synchronous and mutate state directly; atomicity across several calls is
// the caller's concern (instruction handlers run against an overlay that is
// committed or discarded as a whole).
type Ledger struct {
	state LedgerState
}

// NewLedger creates a ledger over the provided state backend.
func NewLedger(state LedgerState) *Ledger {
	return &Ledger{state: state}
}

// InitMintParams carries the configuration for a new mint.
type InitMintParams struct {
	Address         solana.PublicKey
	ProgramID       solana.PublicKey
	Decimals        uint8
	MintAuthority   solana.PublicKey
	FreezeAuthority solana.PublicKey
	NonTransferable bool
}

// InitializeMint registers a new mint at the supplied address. The
// non-transferable extension is only available under the extended program.
func (l *Ledger) InitializeMint(p InitMintParams) (*Mint, error) {
	if _, exists := l.state.TokenMintGet(p.Address); exists {
		return nil, fmt.Errorf("%w: %s", ErrMintExists, p.Address)
	}
	if !p.ProgramID.Equals(ProgramLegacy) && !p.ProgramID.Equals(ProgramExtended) {
		return nil, fmt.Errorf("%w: %s", ErrWrongTokenProgram, p.ProgramID)
	}
	if p.NonTransferable && !p.ProgramID.Equals(ProgramExtended) {
		return nil, fmt.Errorf("%w: non-transferable requires the extended program", ErrWrongTokenProgram)
	}
	mint := &Mint{
		Address:         p.Address,
		ProgramID:       p.ProgramID,
		Decimals:        p.Decimals,
		MintAuthority:   p.MintAuthority,
		FreezeAuthority: p.FreezeAuthority,
		NonTransferable: p.NonTransferable,
	}
	if err := l.state.TokenMintPut(mint); err != nil {
		return nil, err
	}
	return mint.Clone(), nil
}

// GetMint loads a mint by address.
func (l *Ledger) GetMint(addr solana.PublicKey) (*Mint, error) {
	mint, ok := l.state.TokenMintGet(addr)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMintNotFound, addr)
	}
	return mint.Clone(), nil
}

// requireProgram checks the caller pinned the program that actually owns the
// mint.
func (l *Ledger) requireProgram(mint *Mint, program solana.PublicKey) error {
	if !mint.ProgramID.Equals(program) {
		return fmt.Errorf("%w: mint %s belongs to %s", ErrWrongTokenProgram, mint.Address, mint.ProgramID)
	}
	return nil
}

// CreateAccount registers a token account at the supplied address.
func (l *Ledger) CreateAccount(addr, mint, owner solana.PublicKey) (*Account, error) {
	if _, exists := l.state.TokenAccountGet(addr); exists {
		return nil, fmt.Errorf("%w: %s", ErrAccountExists, addr)
	}
	if _, ok := l.state.TokenMintGet(mint); !ok {
		return nil, fmt.Errorf("%w: %s", ErrMintNotFound, mint)
	}
	acc := &Account{Address: addr, Mint: mint, Owner: owner}
	if err := l.state.TokenAccountPut(acc); err != nil {
		return nil, err
	}
	return acc.Clone(), nil
}

// CreateAssociatedAccountIfNeeded derives the canonical per-(owner, mint)
// account address and creates the account when absent. The existing account is
// returned unchanged when present.
func (l *Ledger) CreateAssociatedAccountIfNeeded(owner, mint solana.PublicKey) (*Account, error) {
	addr, _, err := pda.AssociatedTokenAccount(owner, mint)
	if err != nil {
		return nil, err
	}
	if existing, ok := l.state.TokenAccountGet(addr); ok {
		if !existing.Mint.Equals(mint) {
			return nil, fmt.Errorf("%w: %s", ErrMintMismatch, addr)
		}
		return existing.Clone(), nil
	}
	return l.CreateAccount(addr, mint, owner)
}

// GetAccount loads a token account by address.
func (l *Ledger) GetAccount(addr solana.PublicKey) (*Account, error) {
	acc, ok := l.state.TokenAccountGet(addr)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, addr)
	}
	return acc.Clone(), nil
}

// MintTo issues amount units of the mint to the destination account. The
// authority must match the mint authority recorded on the mint.
func (l *Ledger) MintTo(program, mintAddr, dest, authority solana.PublicKey, amount uint64) error {
	mint, ok := l.state.TokenMintGet(mintAddr)
	if !ok {
		return fmt.Errorf("%w: %s", ErrMintNotFound, mintAddr)
	}
	if err := l.requireProgram(mint, program); err != nil {
		return err
	}
	if !mint.MintAuthority.Equals(authority) {
		return fmt.Errorf("%w: %s", ErrMintAuthorityMismatch, authority)
	}
	acc, ok := l.state.TokenAccountGet(dest)
	if !ok {
		return fmt.Errorf("%w: %s", ErrAccountNotFound, dest)
	}
	if !acc.Mint.Equals(mintAddr) {
		return fmt.Errorf("%w: %s", ErrMintMismatch, dest)
	}
	if amount > math.MaxUint64-mint.Supply || amount > math.MaxUint64-acc.Amount {
		return ErrBalanceOverflow
	}
	mint = mint.Clone()
	mint.Supply += amount
	acc = acc.Clone()
	acc.Amount += amount
	if err := l.state.TokenMintPut(mint); err != nil {
		return err
	}
	return l.state.TokenAccountPut(acc)
}

// Transfer moves amount units between two accounts of the same mint. The
// authority must be the owner of the source account. Non-transferable mints
// reject the call outright; the restriction lives at the token level so no
// downstream program can re-enable a secondary market.
func (l *Ledger) Transfer(program, source, dest, authority solana.PublicKey, amount uint64) error {
	src, ok := l.state.TokenAccountGet(source)
	if !ok {
		return fmt.Errorf("%w: %s", ErrAccountNotFound, source)
	}
	mint, ok := l.state.TokenMintGet(src.Mint)
	if !ok {
		return fmt.Errorf("%w: %s", ErrMintNotFound, src.Mint)
	}
	if err := l.requireProgram(mint, program); err != nil {
		return err
	}
	if mint.NonTransferable {
		return fmt.Errorf("%w: %s", ErrNonTransferable, mint.Address)
	}
	if !src.Owner.Equals(authority) {
		return fmt.Errorf("%w: %s is not owned by %s", ErrOwnerMismatch, source, authority)
	}
	dst, ok := l.state.TokenAccountGet(dest)
	if !ok {
		return fmt.Errorf("%w: %s", ErrAccountNotFound, dest)
	}
	if !dst.Mint.Equals(src.Mint) {
		return fmt.Errorf("%w: %s", ErrMintMismatch, dest)
	}
	if src.Amount < amount {
		return fmt.Errorf("%w: %s has %d, need %d", ErrInsufficientFunds, source, src.Amount, amount)
	}
	if amount > math.MaxUint64-dst.Amount {
		return ErrBalanceOverflow
	}
	src = src.Clone()
	dst = dst.Clone()
	src.Amount -= amount
	dst.Amount += amount
	if err := l.state.TokenAccountPut(src); err != nil {
		return err
	}
	return l.state.TokenAccountPut(dst)
}

// TransferChecked is Transfer with an additional decimals assertion, matching
// the checked variant of the capability contract.
func (l *Ledger) TransferChecked(program, source, dest, authority solana.PublicKey, amount uint64, decimals uint8) error {
	src, ok := l.state.TokenAccountGet(source)
	if !ok {
		return fmt.Errorf("%w: %s", ErrAccountNotFound, source)
	}
	mint, ok := l.state.TokenMintGet(src.Mint)
	if !ok {
		return fmt.Errorf("%w: %s", ErrMintNotFound, src.Mint)
	}
	if mint.Decimals != decimals {
		return fmt.Errorf("%w: mint %s has %d decimals", ErrDecimalsMismatch, mint.Address, mint.Decimals)
	}
	return l.Transfer(program, source, dest, authority, amount)
}

// Burn destroys amount units held by the source account. The authority must
// own the source account.
func (l *Ledger) Burn(program, source, authority solana.PublicKey, amount uint64) error {
	src, ok := l.state.TokenAccountGet(source)
	if !ok {
		return fmt.Errorf("%w: %s", ErrAccountNotFound, source)
	}
	mint, ok := l.state.TokenMintGet(src.Mint)
	if !ok {
		return fmt.Errorf("%w: %s", ErrMintNotFound, src.Mint)
	}
	if err := l.requireProgram(mint, program); err != nil {
		return err
	}
	if !src.Owner.Equals(authority) {
		return fmt.Errorf("%w: %s is not owned by %s", ErrOwnerMismatch, source, authority)
	}
	if src.Amount < amount {
		return fmt.Errorf("%w: %s has %d, need %d", ErrInsufficientFunds, source, src.Amount, amount)
	}
	mint = mint.Clone()
	src = src.Clone()
	mint.Supply -= amount
	src.Amount -= amount
	if err := l.state.TokenMintPut(mint); err != nil {
		return err
	}
	return l.state.TokenAccountPut(src)
}

// CloseAccount removes an empty token account and credits its rent lamports to
// the destination wallet.
func (l *Ledger) CloseAccount(addr, rentDest, authority solana.PublicKey) error {
	acc, ok := l.state.TokenAccountGet(addr)
	if !ok {
		return fmt.Errorf("%w: %s", ErrAccountNotFound, addr)
	}
	if !acc.Owner.Equals(authority) {
		return fmt.Errorf("%w: %s is not owned by %s", ErrOwnerMismatch, addr, authority)
	}
	if acc.Amount != 0 {
		return fmt.Errorf("%w: %s holds %d", ErrNonZeroBalance, addr, acc.Amount)
	}
	return l.state.TokenAccountDelete(addr)
}

// NativeTransfer moves lamports between two native accounts. Derived
// authorities cannot sign native transfers; callers enforce that restriction
// before routing a payment through this path.
func (l *Ledger) NativeTransfer(from, to solana.PublicKey, amount uint64) error {
	if amount == 0 {
		return nil
	}
	src, err := l.state.GetAccount(from)
	if err != nil {
		return err
	}
	src = types.EnsureAccount(src)
	if src.Lamports < amount {
		return fmt.Errorf("%w: %s has %d lamports, need %d", ErrInsufficientFunds, from, src.Lamports, amount)
	}
	dst, err := l.state.GetAccount(to)
	if err != nil {
		return err
	}
	dst = types.EnsureAccount(dst)
	if amount > math.MaxUint64-dst.Lamports {
		return ErrBalanceOverflow
	}
	src.Lamports -= amount
	dst.Lamports += amount
	if err := l.state.PutAccount(from, src); err != nil {
		return err
	}
	return l.state.PutAccount(to, dst)
}
