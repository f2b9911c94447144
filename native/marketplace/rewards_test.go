package marketplace

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"

	"bazaar/native/pda"
	"bazaar/native/token"
)

// fundBountyVault mints promotion inventory straight into the marketplace
// bounty vault for the mint.
func fundBountyVault(t *testing.T, f *purchaseFixture, mint solana.PublicKey, amount uint64) solana.PublicKey {
	t.Helper()
	vault, _, err := pda.BountyVault(f.marketplace.Address, mint)
	require.NoError(t, err)
	require.NoError(t, f.env.ledger.MintTo(token.ProgramLegacy, mint, vault, f.authority, amount))
	return vault
}

func vaultBalance(t *testing.T, f *purchaseFixture, vault solana.PublicKey) uint64 {
	t.Helper()
	acc, err := f.env.ledger.GetAccount(vault)
	require.NoError(t, err)
	return acc.Amount
}

func TestPurchaseAccruesRewards(t *testing.T) {
	f := newPurchaseFixture(t,
		TokenConfig{},
		nil,
		&RewardsConfig{RewardsEnabled: true, SellerReward: 100, BuyerReward: 50},
		1_000_000,
	)
	vault := fundBountyVault(t, f, f.paymentMint, 50_000)

	_, err := f.env.engine.InitReward(f.seller, f.marketplace.Address, f.paymentMint)
	require.NoError(t, err)
	_, err = f.env.engine.InitReward(f.buyer, f.marketplace.Address, f.paymentMint)
	require.NoError(t, err)

	_, err = f.env.engine.RegisterBuy(f.buyer, f.product.Address, 1)
	require.NoError(t, err)

	sellerVault, _, err := pda.RewardVault(f.seller, f.marketplace.Address, f.paymentMint)
	require.NoError(t, err)
	buyerVault, _, err := pda.RewardVault(f.buyer, f.marketplace.Address, f.paymentMint)
	require.NoError(t, err)

	require.Equal(t, uint64(10_000), vaultBalance(t, f, sellerVault))
	require.Equal(t, uint64(5_000), vaultBalance(t, f, buyerVault))
	require.Equal(t, uint64(50_000-15_000), vaultBalance(t, f, vault))

	var bonusLegs int
	for _, evt := range f.env.recorder.Events {
		if evt.EventType() == EventTypeBonus {
			bonusLegs++
		}
	}
	require.Equal(t, 2, bonusLegs)
}

func TestInitMarketplaceOpensFirstBountyVault(t *testing.T) {
	f := newPurchaseFixture(t,
		TokenConfig{},
		nil,
		&RewardsConfig{RewardsEnabled: true, SellerReward: 100},
		1_000_000,
	)

	vault, _, err := pda.BountyVault(f.marketplace.Address, f.paymentMint)
	require.NoError(t, err)
	require.True(t, f.marketplace.RewardsConfig.HasBountyVault(vault))
	require.Equal(t, uint8(1), f.marketplace.RewardsConfig.VaultCount)

	acc, err := f.env.ledger.GetAccount(vault)
	require.NoError(t, err)
	require.Equal(t, f.paymentMint, acc.Mint)
	require.Equal(t, f.marketplace.Address, acc.Owner)
}

func TestBonusAccruesOnUnitPrice(t *testing.T) {
	f := newPurchaseFixture(t,
		TokenConfig{},
		nil,
		&RewardsConfig{RewardsEnabled: true, SellerReward: 100, BuyerReward: 50},
		1_000_000,
	)
	vault := fundBountyVault(t, f, f.paymentMint, 50_000)

	_, err := f.env.engine.InitReward(f.seller, f.marketplace.Address, f.paymentMint)
	require.NoError(t, err)
	_, err = f.env.engine.InitReward(f.buyer, f.marketplace.Address, f.paymentMint)
	require.NoError(t, err)

	// Two units settle 2,000,000 but the bonus base stays the unit price:
	// buying in bulk earns the same as buying once.
	dist, err := f.env.engine.RegisterBuy(f.buyer, f.product.Address, 2)
	require.NoError(t, err)
	require.Equal(t, uint64(2_000_000), dist.Total)

	sellerVault, _, err := pda.RewardVault(f.seller, f.marketplace.Address, f.paymentMint)
	require.NoError(t, err)
	buyerVault, _, err := pda.RewardVault(f.buyer, f.marketplace.Address, f.paymentMint)
	require.NoError(t, err)

	require.Equal(t, uint64(10_000), vaultBalance(t, f, sellerVault))
	require.Equal(t, uint64(5_000), vaultBalance(t, f, buyerVault))
	require.Equal(t, uint64(50_000-15_000), vaultBalance(t, f, vault))
}

func TestZeroBpsLegIsSkipped(t *testing.T) {
	f := newPurchaseFixture(t,
		TokenConfig{},
		nil,
		&RewardsConfig{RewardsEnabled: true, SellerReward: 100},
		1_000_000,
	)
	fundBountyVault(t, f, f.paymentMint, 50_000)

	_, err := f.env.engine.InitReward(f.seller, f.marketplace.Address, f.paymentMint)
	require.NoError(t, err)

	// The buyer never opened a reward entity; with a zero buyer leg the
	// purchase still settles.
	_, err = f.env.engine.RegisterBuy(f.buyer, f.product.Address, 1)
	require.NoError(t, err)
}

func TestMissingRewardEntityFailsPurchase(t *testing.T) {
	f := newPurchaseFixture(t,
		TokenConfig{},
		nil,
		&RewardsConfig{RewardsEnabled: true, SellerReward: 100, BuyerReward: 50},
		1_000_000,
	)
	fundBountyVault(t, f, f.paymentMint, 50_000)

	_, err := f.env.engine.InitReward(f.seller, f.marketplace.Address, f.paymentMint)
	require.NoError(t, err)

	_, err = f.env.engine.RegisterBuy(f.buyer, f.product.Address, 1)
	require.ErrorIs(t, err, ErrMissingAccount)
}

func TestRewardsInactiveForOtherMint(t *testing.T) {
	f := newPurchaseFixture(t,
		TokenConfig{},
		nil,
		&RewardsConfig{RewardsEnabled: true, SellerReward: 100, BuyerReward: 50},
		1_000_000,
	)
	fundBountyVault(t, f, f.paymentMint, 50_000)

	// Relist in a different mint: the promotion no longer covers it.
	otherMint := f.env.createFundedMint(t, f.authority, f.buyer, 10_000_000)
	_, err := f.env.engine.EditProduct(f.seller, f.product.Address, otherMint, 1_000_000)
	require.NoError(t, err)

	_, err = f.env.engine.RegisterBuy(f.buyer, f.product.Address, 1)
	require.NoError(t, err)
	require.Equal(t, uint64(1_000_000), f.env.tokenBalance(t, f.seller, otherMint))
}

func TestInitRewardChecksMint(t *testing.T) {
	f := newPurchaseFixture(t,
		TokenConfig{},
		nil,
		&RewardsConfig{RewardsEnabled: true, SellerReward: 100},
		1_000_000,
	)
	otherMint := f.env.createFundedMint(t, f.authority, f.authority, 0)

	_, err := f.env.engine.InitReward(f.seller, f.marketplace.Address, otherMint)
	require.ErrorIs(t, err, ErrWrongMint)

	r, err := f.env.engine.InitReward(f.seller, f.marketplace.Address, f.paymentMint)
	require.NoError(t, err)
	require.Equal(t, uint8(1), r.VaultCount)

	_, err = f.env.engine.InitReward(f.seller, f.marketplace.Address, f.paymentMint)
	require.ErrorIs(t, err, ErrAlreadyExists)

	_, err = f.env.engine.InitRewardVault(f.seller, f.marketplace.Address, f.paymentMint)
	require.ErrorIs(t, err, ErrAlreadyExists)
}

func TestAnyMintPromotion(t *testing.T) {
	f := newPurchaseFixture(t,
		TokenConfig{},
		nil,
		&RewardsConfig{RewardsEnabled: true, RewardMint: pda.AnyMint(), SellerReward: 200},
		1_000_000,
	)

	// Any-mint promotions have no vault at init; open one for the payment
	// mint explicitly.
	vault, err := f.env.engine.InitBounty(f.authority, f.marketplace.Address, f.paymentMint)
	require.NoError(t, err)
	require.NoError(t, f.env.ledger.MintTo(token.ProgramLegacy, f.paymentMint, vault, f.authority, 100_000))

	_, err = f.env.engine.InitReward(f.seller, f.marketplace.Address, f.paymentMint)
	require.NoError(t, err)

	_, err = f.env.engine.RegisterBuy(f.buyer, f.product.Address, 1)
	require.NoError(t, err)

	sellerVault, _, err := pda.RewardVault(f.seller, f.marketplace.Address, f.paymentMint)
	require.NoError(t, err)
	require.Equal(t, uint64(20_000), vaultBalance(t, f, sellerVault))
}

func TestWithdrawRewardLifecycle(t *testing.T) {
	f := newPurchaseFixture(t,
		TokenConfig{},
		nil,
		&RewardsConfig{RewardsEnabled: true, SellerReward: 100},
		1_000_000,
	)
	fundBountyVault(t, f, f.paymentMint, 50_000)

	_, err := f.env.engine.InitReward(f.seller, f.marketplace.Address, f.paymentMint)
	require.NoError(t, err)
	_, err = f.env.engine.RegisterBuy(f.buyer, f.product.Address, 1)
	require.NoError(t, err)

	// The promotion is still running.
	_, err = f.env.engine.WithdrawReward(f.seller, f.marketplace.Address, f.paymentMint)
	require.ErrorIs(t, err, ErrOpenPromotion)

	_, err = f.env.engine.EditMarketplace(EditMarketplaceParams{
		Authority:      f.authority,
		Marketplace:    f.marketplace.Address,
		TokenConfig:    f.marketplace.TokenConfig,
		Permissionless: true,
		Rewards:        &RewardsConfig{RewardsEnabled: false, RewardMint: f.paymentMint, SellerReward: 100},
	})
	require.NoError(t, err)

	sellerBefore := f.env.tokenBalance(t, f.seller, f.paymentMint)
	amount, err := f.env.engine.WithdrawReward(f.seller, f.marketplace.Address, f.paymentMint)
	require.NoError(t, err)
	require.Equal(t, uint64(10_000), amount)
	require.Equal(t, sellerBefore+10_000, f.env.tokenBalance(t, f.seller, f.paymentMint))

	// The drained vault is closed and deregistered, so a later promotion can
	// open it again at the same address.
	sellerVault, _, err := pda.RewardVault(f.seller, f.marketplace.Address, f.paymentMint)
	require.NoError(t, err)
	_, err = f.env.ledger.GetAccount(sellerVault)
	require.ErrorIs(t, err, token.ErrAccountNotFound)

	rewardAddr, _, err := pda.Reward(f.seller, f.marketplace.Address)
	require.NoError(t, err)
	r, ok := f.env.state.RewardGet(rewardAddr)
	require.True(t, ok)
	require.Equal(t, uint8(0), r.VaultCount)

	reopened, err := f.env.engine.InitRewardVault(f.seller, f.marketplace.Address, f.paymentMint)
	require.NoError(t, err)
	require.Equal(t, sellerVault, reopened)
}

func TestRegisterBuyRejectsWrongFundingAccount(t *testing.T) {
	f := newPurchaseFixture(t, TokenConfig{}, nil, nil, 1_000_000)

	// Relist in a mint the buyer never held, then plant an account of the
	// wrong mint at the buyer's associated address for it.
	otherMint := f.env.createFundedMint(t, f.authority, f.authority, 0)
	_, err := f.env.engine.EditProduct(f.seller, f.product.Address, otherMint, 1_000_000)
	require.NoError(t, err)

	ata, _, err := pda.AssociatedTokenAccount(f.buyer, otherMint)
	require.NoError(t, err)
	_, err = f.env.ledger.CreateAccount(ata, f.paymentMint, f.buyer)
	require.NoError(t, err)

	_, err = f.env.engine.RegisterBuy(f.buyer, f.product.Address, 1)
	require.ErrorIs(t, err, ErrWrongATA)
}
