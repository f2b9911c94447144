// Package pda centralises every deterministic address derivation used by the
// marketplace module. Entities are addressed by a namespace tag plus the keys
// of their parents, so an account supplied to an instruction can always be
// checked against the address it must have before any of its fields are read.
package pda

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// Namespace tags. One per entity type; the tag is always the first seed.
const (
	TagMarketplace = "marketplace"
	TagAccessMint  = "access_mint"
	TagRequest     = "request"
	TagProduct     = "product"
	TagProductMint = "product_mint"
	TagBountyVault = "bounty_vault"
	TagReward      = "reward"
	TagRewardVault = "reward_vault"
	TagPayment     = "payment"
	TagNull        = "null"
)

// ErrSeedMismatch is returned when a supplied account does not sit at the
// address its seeds derive to.
var ErrSeedMismatch = errors.New("pda: seed mismatch")

// Program is the fixed identity under which all marketplace entities derive.
// It is computed from a constant label so every node derives the same
// addresses without distributing a keypair.
var Program = programIdentity("bazaar/native/marketplace")

func programIdentity(label string) solana.PublicKey {
	sum := sha256.Sum256([]byte("program:" + label))
	return solana.PublicKeyFromBytes(sum[:])
}

func derive(seeds ...[]byte) (solana.PublicKey, uint8, error) {
	addr, bump, err := solana.FindProgramAddress(seeds, Program)
	if err != nil {
		return solana.PublicKey{}, 0, fmt.Errorf("pda: derivation failed: %w", err)
	}
	return addr, bump, nil
}

// Assert verifies that candidate matches the address derived from the given
// seeds, returning ErrSeedMismatch otherwise. Instruction handlers call this
// for every authoritative account before reading any of its fields.
func Assert(candidate solana.PublicKey, seeds ...[]byte) (uint8, error) {
	addr, bump, err := derive(seeds...)
	if err != nil {
		return 0, err
	}
	if !addr.Equals(candidate) {
		return 0, fmt.Errorf("%w: expected %s, got %s", ErrSeedMismatch, addr, candidate)
	}
	return bump, nil
}

// Marketplace derives the root configuration address for an authority.
func Marketplace(authority solana.PublicKey) (solana.PublicKey, uint8, error) {
	return derive([]byte(TagMarketplace), authority.Bytes())
}

// AccessMint derives the non-transferable listing-permission mint owned by a
// marketplace.
func AccessMint(marketplace solana.PublicKey) (solana.PublicKey, uint8, error) {
	return derive([]byte(TagAccessMint), marketplace.Bytes())
}

// AccessRequest derives the pending access request entity for a wallet on a
// marketplace.
func AccessRequest(wallet, marketplace solana.PublicKey) (solana.PublicKey, uint8, error) {
	return derive([]byte(TagRequest), wallet.Bytes(), marketplace.Bytes())
}

// Product derives a listing address from its two 32-byte identifiers and the
// owning marketplace.
func Product(firstID, secondID [32]byte, marketplace solana.PublicKey) (solana.PublicKey, uint8, error) {
	return derive([]byte(TagProduct), firstID[:], secondID[:], marketplace.Bytes())
}

// ProductMint derives the receipt mint owned by a product.
func ProductMint(product solana.PublicKey) (solana.PublicKey, uint8, error) {
	return derive([]byte(TagProductMint), product.Bytes())
}

// BountyVault derives the marketplace-controlled pool for a reward mint.
func BountyVault(marketplace, mint solana.PublicKey) (solana.PublicKey, uint8, error) {
	return derive([]byte(TagBountyVault), marketplace.Bytes(), mint.Bytes())
}

// Reward derives the per-wallet reward signer entity for a marketplace.
func Reward(wallet, marketplace solana.PublicKey) (solana.PublicKey, uint8, error) {
	return derive([]byte(TagReward), wallet.Bytes(), marketplace.Bytes())
}

// RewardVault derives the personal vault holding a wallet's accrued bonuses
// for one mint.
func RewardVault(wallet, marketplace, mint solana.PublicKey) (solana.PublicKey, uint8, error) {
	return derive([]byte(TagRewardVault), wallet.Bytes(), marketplace.Bytes(), mint.Bytes())
}

// Payment derives the per-(buyer, product) purchase counter entity.
func Payment(buyer, product solana.PublicKey) (solana.PublicKey, uint8, error) {
	return derive([]byte(TagPayment), buyer.Bytes(), product.Bytes())
}

// AnyMint returns the sentinel address that, when configured as a reward mint,
// activates rewards irrespective of the payment mint.
func AnyMint() solana.PublicKey {
	addr, _, err := derive([]byte(TagNull))
	if err != nil {
		// A bump always exists for a single static seed.
		panic(err)
	}
	return addr
}

// AssociatedTokenAccount derives the canonical per-(owner, mint) token account
// address used by the associated-account capability.
func AssociatedTokenAccount(owner, mint solana.PublicKey) (solana.PublicKey, uint8, error) {
	addr, bump, err := solana.FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		return solana.PublicKey{}, 0, fmt.Errorf("pda: ata derivation failed: %w", err)
	}
	return addr, bump, nil
}
