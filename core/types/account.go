package types

// Account holds the native balance ledger entry for a wallet or derived
// address. Token balances are not stored here; they live in token accounts
// managed by the token ledger.
type Account struct {
	Lamports uint64 `json:"lamports"`
	Nonce    uint64 `json:"nonce"`
}

// EnsureAccount returns a usable account value for the supplied pointer,
// allocating a zeroed account when nil.
func EnsureAccount(acc *Account) *Account {
	if acc == nil {
		return &Account{}
	}
	return acc
}
