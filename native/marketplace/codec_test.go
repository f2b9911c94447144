package marketplace

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func fullMarketplace(t *testing.T) *Marketplace {
	t.Helper()
	m := &Marketplace{
		Address:   testKey(t),
		Authority: testKey(t),
		TokenConfig: TokenConfig{
			Transferable: true,
			DeliverToken: true,
		},
		PermissionConfig: PermissionConfig{
			AccessMint: testKey(t),
		},
		FeesConfig: &FeesConfig{
			Fee:          250,
			FeePayer:     FeePayerSeller,
			DiscountMint: testKey(t),
			FeeReduction: 100,
		},
		RewardsConfig: &RewardsConfig{
			RewardsEnabled: true,
			RewardMint:     testKey(t),
			SellerReward:   100,
			BuyerReward:    50,
			VaultCount:     2,
		},
	}
	m.RewardsConfig.BountyVaults[0] = testKey(t)
	m.RewardsConfig.BountyVaults[1] = testKey(t)
	m.Bumps = MarketplaceBumps{Bump: 254, AccessMintBump: 253}
	return m
}

func TestMarketplaceCodecRoundTrip(t *testing.T) {
	m := fullMarketplace(t)
	data, err := EncodeMarketplace(m)
	require.NoError(t, err)
	require.Len(t, data, MarketplaceSize)

	decoded, err := DecodeMarketplace(data)
	require.NoError(t, err)
	decoded.Address = m.Address
	require.Equal(t, m, decoded)
}

func TestMarketplaceCodecOptionalBlocks(t *testing.T) {
	m := fullMarketplace(t)
	m.FeesConfig = nil
	m.RewardsConfig = nil
	data, err := EncodeMarketplace(m)
	require.NoError(t, err)
	// Absent optional blocks shrink to their single presence byte.
	require.Len(t, data, MarketplaceSize-37-198)

	decoded, err := DecodeMarketplace(data)
	require.NoError(t, err)
	require.Nil(t, decoded.FeesConfig)
	require.Nil(t, decoded.RewardsConfig)
}

func TestProductCodecRoundTrip(t *testing.T) {
	p := &Product{
		Address:     testKey(t),
		Authority:   testKey(t),
		FirstID:     [32]byte{1, 2, 3},
		SecondID:    [32]byte{4, 5, 6},
		Marketplace: testKey(t),
		ProductMint: testKey(t),
		MerkleTree:  testKey(t),
		SellerConfig: SellerConfig{
			PaymentMint:  testKey(t),
			ProductPrice: 123_456,
		},
		Bumps: ProductBumps{Bump: 255, MintBump: 254},
	}
	data, err := EncodeProduct(p)
	require.NoError(t, err)
	require.Len(t, data, ProductSize)

	decoded, err := DecodeProduct(data)
	require.NoError(t, err)
	decoded.Address = p.Address
	require.Equal(t, p, decoded)
}

func TestAccessCodecRoundTrip(t *testing.T) {
	a := &Access{Address: testKey(t), Authority: testKey(t), Marketplace: testKey(t), Bump: 252}
	data, err := EncodeAccess(a)
	require.NoError(t, err)
	require.Len(t, data, AccessSize)

	decoded, err := DecodeAccess(data)
	require.NoError(t, err)
	decoded.Address = a.Address
	require.Equal(t, a, decoded)
}

func TestRewardCodecRoundTrip(t *testing.T) {
	r := &Reward{
		Address:     testKey(t),
		Authority:   testKey(t),
		Marketplace: testKey(t),
		VaultCount:  1,
	}
	r.RewardVaults[0] = testKey(t)
	r.Bumps.Bump = 251
	r.Bumps.VaultBumps[0] = 250

	data, err := EncodeReward(r)
	require.NoError(t, err)
	require.Len(t, data, RewardSize)

	decoded, err := DecodeReward(data)
	require.NoError(t, err)
	decoded.Address = r.Address
	require.Equal(t, r, decoded)
}

func TestPaymentCodecRoundTrip(t *testing.T) {
	p := &Payment{Address: testKey(t), Units: 42, Bump: 249}
	data, err := EncodePayment(p)
	require.NoError(t, err)
	require.Len(t, data, PaymentSize)

	decoded, err := DecodePayment(data)
	require.NoError(t, err)
	decoded.Address = p.Address
	require.Equal(t, p, decoded)
}

func TestDecodeRejectsWrongDiscriminator(t *testing.T) {
	a := &Access{Authority: testKey(t), Marketplace: testKey(t)}
	data, err := EncodeAccess(a)
	require.NoError(t, err)

	_, err = DecodeProduct(data)
	require.ErrorIs(t, err, ErrBadDiscriminator)

	_, err = DecodeAccess(data[:4])
	require.ErrorIs(t, err, ErrBadDiscriminator)
}
