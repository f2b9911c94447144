package marketplace

import (
	"fmt"

	"github.com/gagliardetto/solana-go"

	"bazaar/native/pda"
)

// InitReward opens a wallet's reward entity on a marketplace together with
// its first personal vault for the supplied mint. The entity acts as the
// derived transfer authority over every vault it registers.
func (e *Engine) InitReward(wallet, marketplaceAddr, mint solana.PublicKey) (r *Reward, err error) {
	defer func() { e.metrics.ObserveInstruction("init_reward", err) }()
	if err = e.ready(); err != nil {
		return nil, err
	}
	m, err := e.loadMarketplace(marketplaceAddr)
	if err != nil {
		return nil, err
	}
	if err = e.checkRewardMint(m, mint); err != nil {
		return nil, err
	}
	addr, bump, err := pda.Reward(wallet, m.Address)
	if err != nil {
		return nil, err
	}
	if _, exists := e.state.RewardGet(addr); exists {
		return nil, fmt.Errorf("%w: reward %s", ErrAlreadyExists, addr)
	}
	r = &Reward{Address: addr, Authority: wallet, Marketplace: m.Address}
	r.Bumps.Bump = bump
	vault, err := e.openRewardVault(r, mint)
	if err != nil {
		return nil, err
	}
	if err = e.chargeRent(wallet, addr, RewardSize); err != nil {
		return nil, err
	}
	if err = e.state.RewardPut(r); err != nil {
		return nil, err
	}
	e.emit(NewRewardCreatedEvent(r))
	e.emit(NewRewardVaultAddedEvent(r, mint, vault))
	return r, nil
}

// InitRewardVault opens an additional personal vault for a mint the wallet
// has not collected in yet. The vault list shares the fixed cap with the
// marketplace bounty list.
func (e *Engine) InitRewardVault(wallet, marketplaceAddr, mint solana.PublicKey) (vault solana.PublicKey, err error) {
	defer func() { e.metrics.ObserveInstruction("init_reward_vault", err) }()
	if err = e.ready(); err != nil {
		return solana.PublicKey{}, err
	}
	m, err := e.loadMarketplace(marketplaceAddr)
	if err != nil {
		return solana.PublicKey{}, err
	}
	if err = e.checkRewardMint(m, mint); err != nil {
		return solana.PublicKey{}, err
	}
	r, err := e.loadReward(wallet, m.Address)
	if err != nil {
		return solana.PublicKey{}, err
	}
	vault, err = e.openRewardVault(r, mint)
	if err != nil {
		return solana.PublicKey{}, err
	}
	if err = e.state.RewardPut(r); err != nil {
		return solana.PublicKey{}, err
	}
	e.emit(NewRewardVaultAddedEvent(r, mint, vault))
	return vault, nil
}

// WithdrawReward drains the wallet's entire vault for the mint into the
// wallet's associated account, then closes the vault and deregisters it so a
// later promotion can reopen it. Withdrawal is blocked while the promotion is
// running so accrued bonuses cannot leak out mid-campaign.
func (e *Engine) WithdrawReward(wallet, marketplaceAddr, mint solana.PublicKey) (amount uint64, err error) {
	defer func() { e.metrics.ObserveInstruction("withdraw_reward", err) }()
	if err = e.ready(); err != nil {
		return 0, err
	}
	m, err := e.loadMarketplace(marketplaceAddr)
	if err != nil {
		return 0, err
	}
	if m.RewardsConfig != nil && m.RewardsConfig.RewardsEnabled {
		return 0, ErrOpenPromotion
	}
	r, err := e.loadReward(wallet, m.Address)
	if err != nil {
		return 0, err
	}
	vault, _, err := pda.RewardVault(wallet, m.Address, mint)
	if err != nil {
		return 0, err
	}
	registered := false
	for i := uint8(0); i < r.VaultCount; i++ {
		if r.RewardVaults[i].Equals(vault) {
			registered = true
			break
		}
	}
	if !registered {
		return 0, fmt.Errorf("%w: reward vault for %s", ErrMissingAccount, mint)
	}
	acc, err := e.ledger.GetAccount(vault)
	if err != nil {
		return 0, err
	}
	amount = acc.Amount
	if amount > 0 {
		program, err := e.tokenProgramFor(mint)
		if err != nil {
			return 0, err
		}
		ata, err := e.ledger.CreateAssociatedAccountIfNeeded(wallet, mint)
		if err != nil {
			return 0, err
		}
		if err = e.transferSigned(program, rewardSigner(r), vault, ata.Address, amount); err != nil {
			return 0, err
		}
	}
	if err = rewardSigner(r).verify(); err != nil {
		return 0, err
	}
	if err = e.ledger.CloseAccount(vault, wallet, r.Address); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrCloseAccount, err)
	}
	r.RemoveVault(vault)
	if err = e.state.RewardPut(r); err != nil {
		return 0, err
	}
	e.emit(NewRewardWithdrawnEvent(wallet, mint, amount))
	return amount, nil
}

// checkRewardMint rejects vaults for mints the promotion does not pay in. An
// any-mint promotion accepts every mint.
func (e *Engine) checkRewardMint(m *Marketplace, mint solana.PublicKey) error {
	if m.RewardsConfig == nil {
		return ErrRewardsNotConfigured
	}
	rewardMint := m.RewardsConfig.RewardMint
	if rewardMint.Equals(pda.AnyMint()) {
		return nil
	}
	if !mint.Equals(rewardMint) {
		return fmt.Errorf("%w: promotion pays in %s", ErrWrongMint, rewardMint)
	}
	return nil
}

// openRewardVault derives and creates the vault token account owned by the
// reward entity and records it. The caller persists the updated entity.
func (e *Engine) openRewardVault(r *Reward, mint solana.PublicKey) (solana.PublicKey, error) {
	vault, bump, err := pda.RewardVault(r.Authority, r.Marketplace, mint)
	if err != nil {
		return solana.PublicKey{}, err
	}
	for i := uint8(0); i < r.VaultCount; i++ {
		if r.RewardVaults[i].Equals(vault) {
			return solana.PublicKey{}, fmt.Errorf("%w: reward vault %s", ErrAlreadyExists, vault)
		}
	}
	if _, err := e.ledger.CreateAccount(vault, mint, r.Address); err != nil {
		return solana.PublicKey{}, err
	}
	if err := r.AddVault(vault, bump); err != nil {
		return solana.PublicKey{}, err
	}
	return vault, nil
}
