package marketplace

import (
	"fmt"
	"math"
	"math/big"

	"github.com/gagliardetto/solana-go"

	"bazaar/native/pda"
	"bazaar/native/token"
)

// BpsDenominator is the fixed-point percentage base: 10000 bps = 100%.
const BpsDenominator = 10_000

// MaxVaults caps both the marketplace bounty vault list and the per-wallet
// reward vault list.
const MaxVaults = 5

// FeePayer selects which side of a sale carries the marketplace fee.
type FeePayer uint8

const (
	// FeePayerBuyer charges the fee on top of the price as a separate leg.
	FeePayerBuyer FeePayer = iota
	// FeePayerSeller deducts the fee from the seller proceeds.
	FeePayerSeller
)

// Valid reports whether the value is a known variant.
func (p FeePayer) Valid() bool {
	return p == FeePayerBuyer || p == FeePayerSeller
}

// TokenConfig selects the proof-of-purchase mechanism for a marketplace. At
// most one of DeliverToken, UseCNFTs and ChainCounter drives a purchase
// instruction; handlers reject calls that do not match the active flags.
type TokenConfig struct {
	Transferable bool `json:"transferable"`
	DeliverToken bool `json:"deliverToken"`
	UseCNFTs     bool `json:"useCnfts"`
	ChainCounter bool `json:"chainCounter"`
}

// PermissionConfig gates product creation. When Permissionless is false,
// sellers must hold at least one unit of AccessMint.
type PermissionConfig struct {
	AccessMint     solana.PublicKey `json:"accessMint"`
	Permissionless bool             `json:"permissionless"`
}

// FeesConfig is the opt-in fee subsystem configuration.
type FeesConfig struct {
	// Fee is the transaction fee in basis points, e.g. 250 = 2.5%.
	Fee      uint16   `json:"fee"`
	FeePayer FeePayer `json:"feePayer"`
	// DiscountMint reduces the fee when used as the payment mint.
	DiscountMint solana.PublicKey `json:"discountMint"`
	// FeeReduction is subtracted from Fee in absolute basis points.
	FeeReduction uint16 `json:"feeReduction"`
}

// Clone returns a copy the caller may mutate freely.
func (f *FeesConfig) Clone() *FeesConfig {
	if f == nil {
		return nil
	}
	clone := *f
	return &clone
}

// Validate enforces the fee invariants: fee within the bps range and the
// reduction never exceeding the fee itself.
func (f *FeesConfig) Validate() error {
	if f == nil {
		return nil
	}
	if f.Fee > BpsDenominator {
		return fmt.Errorf("%w: %d", ErrInvalidFee, f.Fee)
	}
	if f.FeeReduction > f.Fee {
		return fmt.Errorf("%w: %d > %d", ErrInvalidFeeReduction, f.FeeReduction, f.Fee)
	}
	if !f.FeePayer.Valid() {
		return fmt.Errorf("%w: unknown fee payer %d", ErrInvalidFee, f.FeePayer)
	}
	return nil
}

// RewardsConfig is the opt-in reward subsystem configuration. RewardMint set
// to the any-mint sentinel (pda.AnyMint) activates rewards irrespective of
// the payment mint.
type RewardsConfig struct {
	RewardsEnabled bool             `json:"rewardsEnabled"`
	RewardMint     solana.PublicKey `json:"rewardMint"`
	SellerReward   uint16           `json:"sellerReward"`
	BuyerReward    uint16           `json:"buyerReward"`
	// BountyVaults is a fixed-capacity list with an explicit occupancy
	// count; insertion past MaxVaults fails deterministically.
	BountyVaults [MaxVaults]solana.PublicKey `json:"bountyVaults"`
	VaultCount   uint8                       `json:"vaultCount"`
}

// Clone returns a copy the caller may mutate freely.
func (r *RewardsConfig) Clone() *RewardsConfig {
	if r == nil {
		return nil
	}
	clone := *r
	return &clone
}

// Validate enforces the reward invariants.
func (r *RewardsConfig) Validate() error {
	if r == nil {
		return nil
	}
	if r.SellerReward > BpsDenominator || r.BuyerReward > BpsDenominator {
		return fmt.Errorf("%w: seller %d, buyer %d", ErrInvalidReward, r.SellerReward, r.BuyerReward)
	}
	if int(r.VaultCount) > MaxVaults {
		return fmt.Errorf("%w: %d", ErrVaultsFull, r.VaultCount)
	}
	return nil
}

// AddBountyVault appends a vault address, failing once the fixed capacity is
// reached.
func (r *RewardsConfig) AddBountyVault(vault solana.PublicKey) error {
	if int(r.VaultCount) >= MaxVaults {
		return fmt.Errorf("%w: %d bounty vaults", ErrVaultsFull, r.VaultCount)
	}
	r.BountyVaults[r.VaultCount] = vault
	r.VaultCount++
	return nil
}

// HasBountyVault reports whether the vault address is registered.
func (r *RewardsConfig) HasBountyVault(vault solana.PublicKey) bool {
	if r == nil {
		return false
	}
	for i := uint8(0); i < r.VaultCount; i++ {
		if r.BountyVaults[i].Equals(vault) {
			return true
		}
	}
	return false
}

// MarketplaceBumps records the derivation bump seeds of a marketplace and its
// owned accounts.
type MarketplaceBumps struct {
	Bump           uint8            `json:"bump"`
	AccessMintBump uint8            `json:"accessMintBump"`
	VaultBumps     [MaxVaults]uint8 `json:"vaultBumps"`
}

// Marketplace is the root configuration entity: one per authority, holding
// the fee, reward and access policies for every product listed under it.
type Marketplace struct {
	Address          solana.PublicKey `bin:"-" json:"address"`
	Authority        solana.PublicKey `json:"authority"`
	TokenConfig      TokenConfig      `json:"tokenConfig"`
	PermissionConfig PermissionConfig `json:"permissionConfig"`
	FeesConfig       *FeesConfig      `bin:"optional" json:"feesConfig,omitempty"`
	RewardsConfig    *RewardsConfig   `bin:"optional" json:"rewardsConfig,omitempty"`
	Bumps            MarketplaceBumps `json:"bumps"`
}

// Clone returns a deep copy of the marketplace.
func (m *Marketplace) Clone() *Marketplace {
	if m == nil {
		return nil
	}
	clone := *m
	clone.FeesConfig = m.FeesConfig.Clone()
	clone.RewardsConfig = m.RewardsConfig.Clone()
	return &clone
}

// Validate checks both optional config blocks.
func (m *Marketplace) Validate() error {
	if err := m.FeesConfig.Validate(); err != nil {
		return err
	}
	return m.RewardsConfig.Validate()
}

// IsRewardsActive reports whether a purchase paid in paymentMint accrues
// bounty rewards. Native payments never do: a derived signer cannot move
// native balance it does not own.
func (m *Marketplace) IsRewardsActive(paymentMint solana.PublicKey) bool {
	if m == nil || m.RewardsConfig == nil || !m.RewardsConfig.RewardsEnabled {
		return false
	}
	if paymentMint.Equals(token.NativeMint) {
		return false
	}
	return paymentMint.Equals(m.RewardsConfig.RewardMint) ||
		m.RewardsConfig.RewardMint.Equals(pda.AnyMint())
}

// SellerConfig holds the seller-chosen payment terms of a product.
type SellerConfig struct {
	PaymentMint  solana.PublicKey `json:"paymentMint"`
	ProductPrice uint64           `json:"productPrice"`
}

// ProductBumps records the derivation bump seeds of a product and its receipt
// mint.
type ProductBumps struct {
	Bump     uint8 `json:"bump"`
	MintBump uint8 `json:"mintBump"`
}

// Product is a sellable listing. ProductMint is the fungible receipt mint or
// the NFT collection mint depending on the marketplace token config;
// MerkleTree is only set for compressed receipts and replaced once exhausted.
type Product struct {
	Address     solana.PublicKey `bin:"-" json:"address"`
	Authority   solana.PublicKey `json:"authority"`
	FirstID     [32]byte         `json:"firstId"`
	SecondID    [32]byte         `json:"secondId"`
	Marketplace solana.PublicKey `json:"marketplace"`
	ProductMint solana.PublicKey `json:"productMint"`
	MerkleTree  solana.PublicKey `json:"merkleTree"`
	SellerConfig SellerConfig    `json:"sellerConfig"`
	Bumps        ProductBumps    `json:"bumps"`
}

// Clone returns a copy the caller may mutate freely.
func (p *Product) Clone() *Product {
	if p == nil {
		return nil
	}
	clone := *p
	return &clone
}

// TotalPrice computes price × quantity with overflow checking; overflow is
// fatal before any transfer happens.
func (p *Product) TotalPrice(quantity uint32) (uint64, error) {
	price := new(big.Int).SetUint64(p.SellerConfig.ProductPrice)
	total := price.Mul(price, new(big.Int).SetUint64(uint64(quantity)))
	if !total.IsUint64() {
		return 0, fmt.Errorf("%w: %d * %d", ErrNumericalOverflow, p.SellerConfig.ProductPrice, quantity)
	}
	return total.Uint64(), nil
}

// Access is a pending request to list products on a permissioned
// marketplace. It is closed, with its rent refunded, once the request is
// accepted and the durable access token has been minted.
type Access struct {
	Address     solana.PublicKey `bin:"-" json:"address"`
	Authority   solana.PublicKey `json:"authority"`
	Marketplace solana.PublicKey `json:"marketplace"`
	Bump        uint8            `json:"bump"`
}

// Clone returns a copy the caller may mutate freely.
func (a *Access) Clone() *Access {
	if a == nil {
		return nil
	}
	clone := *a
	return &clone
}

// RewardBumps records the derivation bump seeds of a reward entity and its
// vaults.
type RewardBumps struct {
	Bump       uint8            `json:"bump"`
	VaultBumps [MaxVaults]uint8 `json:"vaultBumps"`
}

// Reward is the per-(wallet, marketplace) record acting as the derived
// transfer authority over that wallet's personal reward vaults.
type Reward struct {
	Address      solana.PublicKey            `bin:"-" json:"address"`
	Authority    solana.PublicKey            `json:"authority"`
	Marketplace  solana.PublicKey            `json:"marketplace"`
	RewardVaults [MaxVaults]solana.PublicKey `json:"rewardVaults"`
	VaultCount   uint8                       `json:"vaultCount"`
	Bumps        RewardBumps                 `json:"bumps"`
}

// Clone returns a copy the caller may mutate freely.
func (r *Reward) Clone() *Reward {
	if r == nil {
		return nil
	}
	clone := *r
	return &clone
}

// AddVault appends a reward vault, failing once the fixed capacity is
// reached.
func (r *Reward) AddVault(vault solana.PublicKey, bump uint8) error {
	if int(r.VaultCount) >= MaxVaults {
		return fmt.Errorf("%w: %d reward vaults", ErrVaultsFull, r.VaultCount)
	}
	r.RewardVaults[r.VaultCount] = vault
	r.Bumps.VaultBumps[r.VaultCount] = bump
	r.VaultCount++
	return nil
}

// RemoveVault deregisters a closed vault, keeping the list packed so the
// occupancy count stays the insertion cursor. It reports whether the vault was
// registered.
func (r *Reward) RemoveVault(vault solana.PublicKey) bool {
	for i := uint8(0); i < r.VaultCount; i++ {
		if !r.RewardVaults[i].Equals(vault) {
			continue
		}
		for j := i; j+1 < r.VaultCount; j++ {
			r.RewardVaults[j] = r.RewardVaults[j+1]
			r.Bumps.VaultBumps[j] = r.Bumps.VaultBumps[j+1]
		}
		r.VaultCount--
		r.RewardVaults[r.VaultCount] = solana.PublicKey{}
		r.Bumps.VaultBumps[r.VaultCount] = 0
		return true
	}
	return false
}

// Payment is the lazy per-(buyer, product) purchase counter used when the
// marketplace opts into on-chain counting instead of minting receipts.
type Payment struct {
	Address solana.PublicKey `bin:"-" json:"address"`
	Units   uint32           `json:"units"`
	Bump    uint8            `json:"bump"`
}

// Clone returns a copy the caller may mutate freely.
func (p *Payment) Clone() *Payment {
	if p == nil {
		return nil
	}
	clone := *p
	return &clone
}

// AddUnits increments the counter with overflow checking.
func (p *Payment) AddUnits(quantity uint32) error {
	if quantity > math.MaxUint32-p.Units {
		return fmt.Errorf("%w: payment counter", ErrNumericalOverflow)
	}
	p.Units += quantity
	return nil
}

// CalculateBonus computes floor(bps * price / 10000) with 128-bit
// intermediate precision. The result never exceeds price for bps within the
// denominator.
func CalculateBonus(bps uint16, price uint64) (uint64, error) {
	bonus := new(big.Int).SetUint64(uint64(bps))
	bonus.Mul(bonus, new(big.Int).SetUint64(price))
	bonus.Quo(bonus, big.NewInt(BpsDenominator))
	if !bonus.IsUint64() {
		return 0, fmt.Errorf("%w: bonus", ErrNumericalOverflow)
	}
	return bonus.Uint64(), nil
}
