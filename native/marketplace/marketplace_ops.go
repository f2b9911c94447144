package marketplace

import (
	"fmt"

	"github.com/gagliardetto/solana-go"

	"bazaar/native/pda"
	"bazaar/native/token"
)

// InitMarketplaceParams carries the configuration for a new marketplace.
type InitMarketplaceParams struct {
	Authority      solana.PublicKey
	TokenConfig    TokenConfig
	Permissionless bool
	Fees           *FeesConfig
	Rewards        *RewardsConfig
}

// InitMarketplace creates the root configuration entity for an authority,
// together with its non-transferable access mint. When rewards are configured
// against a concrete mint the first bounty vault is opened in the same call.
// One marketplace per authority: the derivation makes a second init collide.
func (e *Engine) InitMarketplace(params InitMarketplaceParams) (m *Marketplace, err error) {
	defer func() { e.metrics.ObserveInstruction("init_marketplace", err) }()
	if err = e.ready(); err != nil {
		return nil, err
	}
	addr, bump, err := pda.Marketplace(params.Authority)
	if err != nil {
		return nil, err
	}
	if _, exists := e.state.MarketplaceGet(addr); exists {
		return nil, fmt.Errorf("%w: marketplace %s", ErrAlreadyExists, addr)
	}

	m = &Marketplace{
		Address:   addr,
		Authority: params.Authority,
		TokenConfig: params.TokenConfig,
		PermissionConfig: PermissionConfig{
			Permissionless: params.Permissionless,
		},
		FeesConfig:    params.Fees.Clone(),
		RewardsConfig: params.Rewards.Clone(),
	}
	m.Bumps.Bump = bump
	if err = m.Validate(); err != nil {
		return nil, err
	}

	// The access mint exists even on permissionless marketplaces so the
	// authority can flip the policy later without a migration. It is
	// non-transferable: listing rights are personal and cannot be resold.
	accessMint, accessBump, err := pda.AccessMint(addr)
	if err != nil {
		return nil, err
	}
	if _, err = e.ledger.InitializeMint(token.InitMintParams{
		Address:         accessMint,
		ProgramID:       token.ProgramExtended,
		Decimals:        0,
		MintAuthority:   addr,
		FreezeAuthority: addr,
		NonTransferable: true,
	}); err != nil {
		return nil, err
	}
	m.PermissionConfig.AccessMint = accessMint
	m.Bumps.AccessMintBump = accessBump

	if m.RewardsConfig != nil && !m.RewardsConfig.RewardMint.IsZero() && !m.RewardsConfig.RewardMint.Equals(pda.AnyMint()) {
		if _, err = e.openBountyVault(m, m.RewardsConfig.RewardMint); err != nil {
			return nil, err
		}
	}

	if err = e.chargeRent(params.Authority, addr, MarketplaceSize); err != nil {
		return nil, err
	}
	if err = e.state.MarketplacePut(m); err != nil {
		return nil, err
	}
	e.debug("marketplace created", "marketplace", addr.String(), "authority", params.Authority.String())
	e.emit(NewMarketplaceCreatedEvent(m))
	return m, nil
}

// EditMarketplaceParams carries the replacement configuration for an existing
// marketplace.
type EditMarketplaceParams struct {
	Authority      solana.PublicKey
	Marketplace    solana.PublicKey
	TokenConfig    TokenConfig
	Permissionless bool
	Fees           *FeesConfig
	Rewards        *RewardsConfig
}

// EditMarketplace rewrites the marketplace configuration in place. The access
// mint and the registered bounty vault list survive the rewrite; only the
// policy knobs change.
func (e *Engine) EditMarketplace(params EditMarketplaceParams) (m *Marketplace, err error) {
	defer func() { e.metrics.ObserveInstruction("edit_marketplace", err) }()
	if err = e.ready(); err != nil {
		return nil, err
	}
	m, err = e.loadMarketplace(params.Marketplace)
	if err != nil {
		return nil, err
	}
	if !m.Authority.Equals(params.Authority) {
		return nil, fmt.Errorf("%w: %s", ErrWrongAuthority, params.Authority)
	}

	rewards := params.Rewards.Clone()
	if rewards != nil && m.RewardsConfig != nil {
		rewards.BountyVaults = m.RewardsConfig.BountyVaults
		rewards.VaultCount = m.RewardsConfig.VaultCount
	}
	m.TokenConfig = params.TokenConfig
	m.PermissionConfig.Permissionless = params.Permissionless
	m.FeesConfig = params.Fees.Clone()
	m.RewardsConfig = rewards
	if err = m.Validate(); err != nil {
		return nil, err
	}
	if err = e.state.MarketplacePut(m); err != nil {
		return nil, err
	}
	e.emit(NewMarketplaceUpdatedEvent(m))
	return m, nil
}

// InitBounty opens a bounty vault for an additional payment mint so the
// promotion can fund purchases made in that mint. Any payer may open one; the
// vault list is capped and insertion past the cap fails deterministically.
func (e *Engine) InitBounty(payer, marketplaceAddr, mint solana.PublicKey) (vault solana.PublicKey, err error) {
	defer func() { e.metrics.ObserveInstruction("init_bounty", err) }()
	if err = e.ready(); err != nil {
		return solana.PublicKey{}, err
	}
	m, err := e.loadMarketplace(marketplaceAddr)
	if err != nil {
		return solana.PublicKey{}, err
	}
	if m.RewardsConfig == nil {
		return solana.PublicKey{}, ErrRewardsNotConfigured
	}
	vault, err = e.openBountyVault(m, mint)
	if err != nil {
		return solana.PublicKey{}, err
	}
	if err = e.state.MarketplacePut(m); err != nil {
		return solana.PublicKey{}, err
	}
	e.emit(NewBountyAddedEvent(m.Address, mint, vault))
	return vault, nil
}

// openBountyVault derives and creates the vault token account owned by the
// marketplace and records it on the rewards config. The caller persists the
// updated marketplace.
func (e *Engine) openBountyVault(m *Marketplace, mint solana.PublicKey) (solana.PublicKey, error) {
	vault, vaultBump, err := pda.BountyVault(m.Address, mint)
	if err != nil {
		return solana.PublicKey{}, err
	}
	if m.RewardsConfig.HasBountyVault(vault) {
		return solana.PublicKey{}, fmt.Errorf("%w: bounty vault %s", ErrAlreadyExists, vault)
	}
	if _, err := e.ledger.CreateAccount(vault, mint, m.Address); err != nil {
		return solana.PublicKey{}, err
	}
	slot := m.RewardsConfig.VaultCount
	if err := m.RewardsConfig.AddBountyVault(vault); err != nil {
		return solana.PublicKey{}, err
	}
	m.Bumps.VaultBumps[slot] = vaultBump
	return vault, nil
}
