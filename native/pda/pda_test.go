package pda

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"
)

func testKey(b byte) solana.PublicKey {
	var raw [32]byte
	for i := range raw {
		raw[i] = b
	}
	return solana.PublicKeyFromBytes(raw[:])
}

func TestDerivationsAreDeterministic(t *testing.T) {
	auth := testKey(0x11)

	first, bump1, err := Marketplace(auth)
	require.NoError(t, err)
	second, bump2, err := Marketplace(auth)
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, bump1, bump2)
}

func TestDerivationsDifferPerEntity(t *testing.T) {
	auth := testKey(0x22)
	marketplace, _, err := Marketplace(auth)
	require.NoError(t, err)

	mint, _, err := AccessMint(marketplace)
	require.NoError(t, err)
	request, _, err := AccessRequest(auth, marketplace)
	require.NoError(t, err)
	reward, _, err := Reward(auth, marketplace)
	require.NoError(t, err)

	seen := map[solana.PublicKey]struct{}{}
	for _, addr := range []solana.PublicKey{marketplace, mint, request, reward} {
		if _, dup := seen[addr]; dup {
			t.Fatalf("duplicate derived address %s", addr)
		}
		seen[addr] = struct{}{}
	}
}

func TestAssert(t *testing.T) {
	auth := testKey(0x33)
	addr, bump, err := Marketplace(auth)
	require.NoError(t, err)

	got, err := Assert(addr, []byte(TagMarketplace), auth.Bytes())
	require.NoError(t, err)
	require.Equal(t, bump, got)

	_, err = Assert(testKey(0x44), []byte(TagMarketplace), auth.Bytes())
	require.ErrorIs(t, err, ErrSeedMismatch)
}

func TestAnyMintIsStable(t *testing.T) {
	require.Equal(t, AnyMint(), AnyMint())
	require.False(t, AnyMint().IsZero())
}

func TestAssociatedTokenAccount(t *testing.T) {
	owner := testKey(0x55)
	mint := testKey(0x66)

	ata1, _, err := AssociatedTokenAccount(owner, mint)
	require.NoError(t, err)
	ata2, _, err := AssociatedTokenAccount(owner, mint)
	require.NoError(t, err)
	require.Equal(t, ata1, ata2)

	other, _, err := AssociatedTokenAccount(mint, owner)
	require.NoError(t, err)
	require.NotEqual(t, ata1, other)
}
