package marketplace

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"

	bin "github.com/gagliardetto/binary"
)

// ErrBadDiscriminator is returned when decoded account data does not carry
// the tag expected for the entity type.
var ErrBadDiscriminator = errors.New("marketplace: bad account discriminator")

// Persisted entity layouts are borsh encoded behind an 8-byte discriminator
// derived from the entity name, with every optional block costing one
// presence byte. The serialized sizes below are fixed for fully populated
// entities and covered by tests.
const (
	MarketplaceSize = 8 + 32 + 4 + 33 + (1 + 37) + (1 + 198) + 7
	ProductSize     = 8 + 32 + 32 + 32 + 32 + 32 + 32 + 40 + 2
	AccessSize      = 8 + 32 + 32 + 1
	RewardSize      = 8 + 32 + 32 + 32*MaxVaults + 1 + 1 + MaxVaults
	PaymentSize     = 8 + 4 + 1
)

func discriminator(name string) [8]byte {
	sum := sha256.Sum256([]byte("account:" + name))
	var tag [8]byte
	copy(tag[:], sum[:8])
	return tag
}

var (
	marketplaceTag = discriminator("Marketplace")
	productTag     = discriminator("Product")
	accessTag      = discriminator("Access")
	rewardTag      = discriminator("Reward")
	paymentTag     = discriminator("Payment")
)

func encodeAccount(tag [8]byte, v interface{}) ([]byte, error) {
	body, err := bin.MarshalBorsh(v)
	if err != nil {
		return nil, fmt.Errorf("marketplace: encode: %w", err)
	}
	out := make([]byte, 0, 8+len(body))
	out = append(out, tag[:]...)
	return append(out, body...), nil
}

func decodeAccount(tag [8]byte, data []byte, v interface{}) error {
	if len(data) < 8 || !bytes.Equal(data[:8], tag[:]) {
		return ErrBadDiscriminator
	}
	if err := bin.UnmarshalBorsh(v, data[8:]); err != nil {
		return fmt.Errorf("marketplace: decode: %w", err)
	}
	return nil
}

// EncodeMarketplace serialises a marketplace to its persisted layout.
func EncodeMarketplace(m *Marketplace) ([]byte, error) { return encodeAccount(marketplaceTag, m) }

// DecodeMarketplace parses a marketplace from its persisted layout.
func DecodeMarketplace(data []byte) (*Marketplace, error) {
	out := new(Marketplace)
	if err := decodeAccount(marketplaceTag, data, out); err != nil {
		return nil, err
	}
	return out, nil
}

// EncodeProduct serialises a product to its persisted layout.
func EncodeProduct(p *Product) ([]byte, error) { return encodeAccount(productTag, p) }

// DecodeProduct parses a product from its persisted layout.
func DecodeProduct(data []byte) (*Product, error) {
	out := new(Product)
	if err := decodeAccount(productTag, data, out); err != nil {
		return nil, err
	}
	return out, nil
}

// EncodeAccess serialises an access request to its persisted layout.
func EncodeAccess(a *Access) ([]byte, error) { return encodeAccount(accessTag, a) }

// DecodeAccess parses an access request from its persisted layout.
func DecodeAccess(data []byte) (*Access, error) {
	out := new(Access)
	if err := decodeAccount(accessTag, data, out); err != nil {
		return nil, err
	}
	return out, nil
}

// EncodeReward serialises a reward entity to its persisted layout.
func EncodeReward(r *Reward) ([]byte, error) { return encodeAccount(rewardTag, r) }

// DecodeReward parses a reward entity from its persisted layout.
func DecodeReward(data []byte) (*Reward, error) {
	out := new(Reward)
	if err := decodeAccount(rewardTag, data, out); err != nil {
		return nil, err
	}
	return out, nil
}

// EncodePayment serialises a payment counter to its persisted layout.
func EncodePayment(p *Payment) ([]byte, error) { return encodeAccount(paymentTag, p) }

// DecodePayment parses a payment counter from its persisted layout.
func DecodePayment(data []byte) (*Payment, error) {
	out := new(Payment)
	if err := decodeAccount(paymentTag, data, out); err != nil {
		return nil, err
	}
	return out, nil
}
