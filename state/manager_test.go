package state

import (
	"errors"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"

	"bazaar/core/types"
	"bazaar/native/compression"
	"bazaar/native/marketplace"
	"bazaar/native/metadata"
	"bazaar/native/token"
	"bazaar/storage"
)

func key(b byte) solana.PublicKey {
	var buf [32]byte
	buf[0] = 0x51
	buf[31] = b
	return solana.PublicKeyFromBytes(buf[:])
}

func TestManagerMarketplaceRoundTrip(t *testing.T) {
	m := NewManager(storage.NewMemDB())

	entity := &marketplace.Marketplace{
		Address:   key(1),
		Authority: key(2),
		FeesConfig: &marketplace.FeesConfig{
			Fee:      250,
			FeePayer: marketplace.FeePayerSeller,
		},
	}
	require.NoError(t, m.MarketplacePut(entity))

	got, ok := m.MarketplaceGet(key(1))
	require.True(t, ok)
	require.Equal(t, entity, got)

	_, ok = m.MarketplaceGet(key(9))
	require.False(t, ok)
}

func TestManagerEntityRoundTrips(t *testing.T) {
	m := NewManager(storage.NewMemDB())

	product := &marketplace.Product{
		Address:     key(3),
		Authority:   key(4),
		FirstID:     [32]byte{1},
		Marketplace: key(1),
		SellerConfig: marketplace.SellerConfig{
			PaymentMint:  key(5),
			ProductPrice: 42,
		},
	}
	require.NoError(t, m.ProductPut(product))
	gotProduct, ok := m.ProductGet(key(3))
	require.True(t, ok)
	require.Equal(t, product, gotProduct)

	access := &marketplace.Access{Address: key(6), Authority: key(4), Marketplace: key(1), Bump: 254}
	require.NoError(t, m.AccessPut(access))
	gotAccess, ok := m.AccessGet(key(6))
	require.True(t, ok)
	require.Equal(t, access, gotAccess)
	require.NoError(t, m.AccessDelete(key(6)))
	_, ok = m.AccessGet(key(6))
	require.False(t, ok)

	reward := &marketplace.Reward{Address: key(7), Authority: key(4), Marketplace: key(1), VaultCount: 1}
	reward.RewardVaults[0] = key(8)
	require.NoError(t, m.RewardPut(reward))
	gotReward, ok := m.RewardGet(key(7))
	require.True(t, ok)
	require.Equal(t, reward, gotReward)

	payment := &marketplace.Payment{Address: key(9), Units: 3, Bump: 250}
	require.NoError(t, m.PaymentPut(payment))
	gotPayment, ok := m.PaymentGet(key(9))
	require.True(t, ok)
	require.Equal(t, payment, gotPayment)
}

func TestManagerInfrastructureRoundTrips(t *testing.T) {
	m := NewManager(storage.NewMemDB())

	mint := &token.Mint{Address: key(10), ProgramID: token.ProgramLegacy, Decimals: 6, MintAuthority: key(2)}
	require.NoError(t, m.TokenMintPut(mint))
	gotMint, ok := m.TokenMintGet(key(10))
	require.True(t, ok)
	require.Equal(t, mint, gotMint)

	acct := &token.Account{Address: key(11), Mint: key(10), Owner: key(2), Amount: 77}
	require.NoError(t, m.TokenAccountPut(acct))
	gotAcct, ok := m.TokenAccountGet(key(11))
	require.True(t, ok)
	require.Equal(t, acct, gotAcct)
	require.NoError(t, m.TokenAccountDelete(key(11)))
	_, ok = m.TokenAccountGet(key(11))
	require.False(t, ok)

	tree, err := compression.NewTree(key(12), key(3), compression.MinDepth, 8)
	require.NoError(t, err)
	require.NoError(t, tree.Append([32]byte{1}))
	require.NoError(t, m.TreePut(tree))
	gotTree, ok := m.TreeGet(key(12))
	require.True(t, ok)
	require.Equal(t, tree, gotTree)

	record := &metadata.Record{Mint: key(10), UpdateAuthority: key(3), Name: "Receipt", SizedCollection: true}
	require.NoError(t, m.MetadataPut(record))
	gotRecord, ok := m.MetadataGet(key(10))
	require.True(t, ok)
	require.Equal(t, record, gotRecord)
}

func TestManagerNativeAccounts(t *testing.T) {
	m := NewManager(storage.NewMemDB())

	// Absent accounts read as zeroed.
	acc, err := m.GetAccount(key(20))
	require.NoError(t, err)
	require.Equal(t, uint64(0), acc.Lamports)

	require.NoError(t, m.PutAccount(key(20), &types.Account{Lamports: 500}))
	acc, err = m.GetAccount(key(20))
	require.NoError(t, err)
	require.Equal(t, uint64(500), acc.Lamports)
}

func TestExecuteCommitsOnSuccess(t *testing.T) {
	m := NewManager(storage.NewMemDB())

	err := m.Execute(func(scoped *Manager) error {
		return scoped.PutAccount(key(21), &types.Account{Lamports: 900})
	})
	require.NoError(t, err)

	acc, err := m.GetAccount(key(21))
	require.NoError(t, err)
	require.Equal(t, uint64(900), acc.Lamports)
}

func TestExecuteDiscardsOnError(t *testing.T) {
	m := NewManager(storage.NewMemDB())
	require.NoError(t, m.PutAccount(key(22), &types.Account{Lamports: 100}))

	boom := errors.New("boom")
	err := m.Execute(func(scoped *Manager) error {
		if err := scoped.PutAccount(key(22), &types.Account{Lamports: 0}); err != nil {
			return err
		}
		if err := scoped.AccessDelete(key(6)); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	acc, err := m.GetAccount(key(22))
	require.NoError(t, err)
	require.Equal(t, uint64(100), acc.Lamports)
}

func TestExecuteReadsOwnWrites(t *testing.T) {
	m := NewManager(storage.NewMemDB())

	err := m.Execute(func(scoped *Manager) error {
		access := &marketplace.Access{Address: key(23), Authority: key(2), Marketplace: key(1)}
		if err := scoped.AccessPut(access); err != nil {
			return err
		}
		got, ok := scoped.AccessGet(key(23))
		require.True(t, ok)
		require.Equal(t, access, got)

		if err := scoped.AccessDelete(key(23)); err != nil {
			return err
		}
		_, ok = scoped.AccessGet(key(23))
		require.False(t, ok)
		return nil
	})
	require.NoError(t, err)
}
