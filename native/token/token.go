// Package token implements the token capability consumed by the marketplace
// engines: mints, token accounts, associated accounts and the transfer, mint
// and burn operations over them. Two program identities are supported, the
// legacy interface and the extended interface carrying the non-transferable
// extension; every mint is pinned to exactly one of them and callers must name
// the program they expect on each call.
package token

import (
	"errors"

	"github.com/gagliardetto/solana-go"
)

var (
	// ProgramLegacy identifies the legacy token interface.
	ProgramLegacy = solana.TokenProgramID
	// ProgramExtended identifies the extended token interface that supports
	// mint extensions such as non-transferability.
	ProgramExtended = solana.Token2022ProgramID
	// NativeMint is the sentinel mint address of the native gas asset.
	// Payments in it move lamport balances instead of token balances.
	NativeMint = solana.SolMint
)

var (
	ErrMintExists            = errors.New("token: mint already initialised")
	ErrMintNotFound          = errors.New("token: mint not found")
	ErrAccountExists         = errors.New("token: account already exists")
	ErrAccountNotFound       = errors.New("token: account not found")
	ErrOwnerMismatch         = errors.New("token: account owner mismatch")
	ErrMintMismatch          = errors.New("token: account mint mismatch")
	ErrDecimalsMismatch      = errors.New("token: decimals mismatch")
	ErrWrongTokenProgram     = errors.New("token: wrong token program for mint")
	ErrNonTransferable       = errors.New("token: mint is non-transferable")
	ErrMintAuthorityMismatch = errors.New("token: mint authority mismatch")
	ErrInsufficientFunds     = errors.New("token: insufficient funds")
	ErrBalanceOverflow       = errors.New("token: balance overflow")
	ErrNonZeroBalance        = errors.New("token: account balance must be zero")
)

// Mint describes a token mint, including which program interface owns it and
// whether the non-transferable extension is active.
type Mint struct {
	Address         solana.PublicKey `json:"address"`
	ProgramID       solana.PublicKey `json:"programId"`
	Decimals        uint8            `json:"decimals"`
	Supply          uint64           `json:"supply"`
	MintAuthority   solana.PublicKey `json:"mintAuthority"`
	FreezeAuthority solana.PublicKey `json:"freezeAuthority"`
	NonTransferable bool             `json:"nonTransferable"`
}

// Clone returns a copy the caller may mutate freely.
func (m *Mint) Clone() *Mint {
	if m == nil {
		return nil
	}
	clone := *m
	return &clone
}

// Account is a token account holding a balance of one mint on behalf of an
// owner.
type Account struct {
	Address solana.PublicKey `json:"address"`
	Mint    solana.PublicKey `json:"mint"`
	Owner   solana.PublicKey `json:"owner"`
	Amount  uint64           `json:"amount"`
}

// Clone returns a copy the caller may mutate freely.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	clone := *a
	return &clone
}
