// Package state persists marketplace entities, token ledger records and
// native balances behind the storage.Database key-value surface, and provides
// the transactional overlay instruction handlers run inside.
package state

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"bazaar/core/types"
	"bazaar/native/compression"
	"bazaar/native/marketplace"
	"bazaar/native/metadata"
	"bazaar/native/token"
	"bazaar/storage"
)

// Key prefixes segment the flat key space per entity kind. Marketplace
// entities use their wire codec; infrastructure records use JSON.
const (
	prefixMarketplace = "mkt/"
	prefixProduct     = "prd/"
	prefixAccess      = "acc/"
	prefixReward      = "rwd/"
	prefixPayment     = "pay/"
	prefixTree        = "tree/"
	prefixMint        = "mint/"
	prefixTokenAcct   = "tok/"
	prefixNative      = "nat/"
	prefixMetadata    = "meta/"
)

func keyFor(prefix string, addr solana.PublicKey) []byte {
	key := make([]byte, 0, len(prefix)+32)
	key = append(key, prefix...)
	return append(key, addr.Bytes()...)
}

// Manager implements the state surfaces of the marketplace engine, the token
// ledger and the metadata registry over a single Database.
type Manager struct {
	db storage.Database
}

// NewManager wraps a database in a state manager.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

func (m *Manager) getRaw(prefix string, addr solana.PublicKey) ([]byte, bool) {
	data, err := m.db.Get(keyFor(prefix, addr))
	if err != nil {
		return nil, false
	}
	return data, true
}

func (m *Manager) putJSON(prefix string, addr solana.PublicKey, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("state: encode %s%s: %w", prefix, addr, err)
	}
	return m.db.Put(keyFor(prefix, addr), data)
}

func getJSON[T any](m *Manager, prefix string, addr solana.PublicKey) (*T, bool) {
	data, ok := m.getRaw(prefix, addr)
	if !ok {
		return nil, false
	}
	out := new(T)
	if err := json.Unmarshal(data, out); err != nil {
		return nil, false
	}
	return out, true
}

// MarketplaceGet implements marketplace.State.
func (m *Manager) MarketplaceGet(addr solana.PublicKey) (*marketplace.Marketplace, bool) {
	data, ok := m.getRaw(prefixMarketplace, addr)
	if !ok {
		return nil, false
	}
	entity, err := marketplace.DecodeMarketplace(data)
	if err != nil {
		return nil, false
	}
	entity.Address = addr
	return entity, true
}

// MarketplacePut implements marketplace.State.
func (m *Manager) MarketplacePut(entity *marketplace.Marketplace) error {
	data, err := marketplace.EncodeMarketplace(entity)
	if err != nil {
		return err
	}
	return m.db.Put(keyFor(prefixMarketplace, entity.Address), data)
}

// ProductGet implements marketplace.State.
func (m *Manager) ProductGet(addr solana.PublicKey) (*marketplace.Product, bool) {
	data, ok := m.getRaw(prefixProduct, addr)
	if !ok {
		return nil, false
	}
	entity, err := marketplace.DecodeProduct(data)
	if err != nil {
		return nil, false
	}
	entity.Address = addr
	return entity, true
}

// ProductPut implements marketplace.State.
func (m *Manager) ProductPut(entity *marketplace.Product) error {
	data, err := marketplace.EncodeProduct(entity)
	if err != nil {
		return err
	}
	return m.db.Put(keyFor(prefixProduct, entity.Address), data)
}

// AccessGet implements marketplace.State.
func (m *Manager) AccessGet(addr solana.PublicKey) (*marketplace.Access, bool) {
	data, ok := m.getRaw(prefixAccess, addr)
	if !ok {
		return nil, false
	}
	entity, err := marketplace.DecodeAccess(data)
	if err != nil {
		return nil, false
	}
	entity.Address = addr
	return entity, true
}

// AccessPut implements marketplace.State.
func (m *Manager) AccessPut(entity *marketplace.Access) error {
	data, err := marketplace.EncodeAccess(entity)
	if err != nil {
		return err
	}
	return m.db.Put(keyFor(prefixAccess, entity.Address), data)
}

// AccessDelete implements marketplace.State.
func (m *Manager) AccessDelete(addr solana.PublicKey) error {
	return m.db.Delete(keyFor(prefixAccess, addr))
}

// RewardGet implements marketplace.State.
func (m *Manager) RewardGet(addr solana.PublicKey) (*marketplace.Reward, bool) {
	data, ok := m.getRaw(prefixReward, addr)
	if !ok {
		return nil, false
	}
	entity, err := marketplace.DecodeReward(data)
	if err != nil {
		return nil, false
	}
	entity.Address = addr
	return entity, true
}

// RewardPut implements marketplace.State.
func (m *Manager) RewardPut(entity *marketplace.Reward) error {
	data, err := marketplace.EncodeReward(entity)
	if err != nil {
		return err
	}
	return m.db.Put(keyFor(prefixReward, entity.Address), data)
}

// PaymentGet implements marketplace.State.
func (m *Manager) PaymentGet(addr solana.PublicKey) (*marketplace.Payment, bool) {
	data, ok := m.getRaw(prefixPayment, addr)
	if !ok {
		return nil, false
	}
	entity, err := marketplace.DecodePayment(data)
	if err != nil {
		return nil, false
	}
	entity.Address = addr
	return entity, true
}

// PaymentPut implements marketplace.State.
func (m *Manager) PaymentPut(entity *marketplace.Payment) error {
	data, err := marketplace.EncodePayment(entity)
	if err != nil {
		return err
	}
	return m.db.Put(keyFor(prefixPayment, entity.Address), data)
}

// TreeGet implements marketplace.State.
func (m *Manager) TreeGet(addr solana.PublicKey) (*compression.Tree, bool) {
	return getJSON[compression.Tree](m, prefixTree, addr)
}

// TreePut implements marketplace.State.
func (m *Manager) TreePut(tree *compression.Tree) error {
	return m.putJSON(prefixTree, tree.Address, tree)
}

// TokenMintGet implements token.LedgerState.
func (m *Manager) TokenMintGet(addr solana.PublicKey) (*token.Mint, bool) {
	return getJSON[token.Mint](m, prefixMint, addr)
}

// TokenMintPut implements token.LedgerState.
func (m *Manager) TokenMintPut(mint *token.Mint) error {
	return m.putJSON(prefixMint, mint.Address, mint)
}

// TokenAccountGet implements token.LedgerState.
func (m *Manager) TokenAccountGet(addr solana.PublicKey) (*token.Account, bool) {
	return getJSON[token.Account](m, prefixTokenAcct, addr)
}

// TokenAccountPut implements token.LedgerState.
func (m *Manager) TokenAccountPut(acc *token.Account) error {
	return m.putJSON(prefixTokenAcct, acc.Address, acc)
}

// TokenAccountDelete implements token.LedgerState.
func (m *Manager) TokenAccountDelete(addr solana.PublicKey) error {
	return m.db.Delete(keyFor(prefixTokenAcct, addr))
}

// GetAccount implements the native balance surface shared by the engine and
// the ledger. A missing account reads as zeroed rather than failing.
func (m *Manager) GetAccount(addr solana.PublicKey) (*types.Account, error) {
	data, err := m.db.Get(keyFor(prefixNative, addr))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return &types.Account{}, nil
	}
	if err != nil {
		return nil, err
	}
	acc := new(types.Account)
	if err := json.Unmarshal(data, acc); err != nil {
		return nil, fmt.Errorf("state: decode account %s: %w", addr, err)
	}
	return acc, nil
}

// PutAccount implements the native balance surface.
func (m *Manager) PutAccount(addr solana.PublicKey, acc *types.Account) error {
	return m.putJSON(prefixNative, addr, types.EnsureAccount(acc))
}

// MetadataGet implements metadata.State.
func (m *Manager) MetadataGet(mint solana.PublicKey) (*metadata.Record, bool) {
	return getJSON[metadata.Record](m, prefixMetadata, mint)
}

// MetadataPut implements metadata.State.
func (m *Manager) MetadataPut(record *metadata.Record) error {
	return m.putJSON(prefixMetadata, record.Mint, record)
}
