package marketplace

import (
	"strconv"

	"github.com/gagliardetto/solana-go"

	"bazaar/core/types"
)

const (
	EventTypeMarketplaceCreated = "marketplace.created"
	EventTypeMarketplaceUpdated = "marketplace.updated"
	EventTypeBountyAdded        = "marketplace.bounty.added"
	EventTypeProductCreated     = "marketplace.product.created"
	EventTypeProductUpdated     = "marketplace.product.updated"
	EventTypeTreeUpdated        = "marketplace.product.tree_updated"
	EventTypeAccessRequested    = "marketplace.access.requested"
	EventTypeAccessGranted      = "marketplace.access.granted"
	EventTypePurchaseSettled    = "marketplace.purchase.settled"
	EventTypeRewardCreated      = "marketplace.reward.created"
	EventTypeRewardVaultAdded   = "marketplace.reward.vault_added"
	EventTypeBonus              = "marketplace.reward.bonus"
	EventTypeRewardWithdrawn    = "marketplace.reward.withdrawn"
)

// NewMarketplaceCreatedEvent returns the canonical payload for a newly
// initialised marketplace.
func NewMarketplaceCreatedEvent(m *Marketplace) *types.Event {
	return &types.Event{Type: EventTypeMarketplaceCreated, Attributes: map[string]string{
		"marketplace": m.Address.String(),
		"authority":   m.Authority.String(),
		"accessMint":  m.PermissionConfig.AccessMint.String(),
	}}
}

// NewMarketplaceUpdatedEvent returns the canonical payload for a
// configuration rewrite.
func NewMarketplaceUpdatedEvent(m *Marketplace) *types.Event {
	return &types.Event{Type: EventTypeMarketplaceUpdated, Attributes: map[string]string{
		"marketplace": m.Address.String(),
	}}
}

// NewBountyAddedEvent returns the payload emitted when a bounty vault is
// registered.
func NewBountyAddedEvent(marketplace, mint, vault solana.PublicKey) *types.Event {
	return &types.Event{Type: EventTypeBountyAdded, Attributes: map[string]string{
		"marketplace": marketplace.String(),
		"mint":        mint.String(),
		"vault":       vault.String(),
	}}
}

// NewProductCreatedEvent returns the canonical payload for a new listing.
func NewProductCreatedEvent(p *Product) *types.Event {
	return &types.Event{Type: EventTypeProductCreated, Attributes: map[string]string{
		"product":     p.Address.String(),
		"marketplace": p.Marketplace.String(),
		"seller":      p.Authority.String(),
		"paymentMint": p.SellerConfig.PaymentMint.String(),
		"price":       strconv.FormatUint(p.SellerConfig.ProductPrice, 10),
	}}
}

// NewProductUpdatedEvent returns the payload emitted when a seller edits the
// payment terms.
func NewProductUpdatedEvent(p *Product) *types.Event {
	return &types.Event{Type: EventTypeProductUpdated, Attributes: map[string]string{
		"product":     p.Address.String(),
		"paymentMint": p.SellerConfig.PaymentMint.String(),
		"price":       strconv.FormatUint(p.SellerConfig.ProductPrice, 10),
	}}
}

// NewTreeUpdatedEvent returns the payload emitted when a product's exhausted
// receipt tree is replaced.
func NewTreeUpdatedEvent(product, tree solana.PublicKey) *types.Event {
	return &types.Event{Type: EventTypeTreeUpdated, Attributes: map[string]string{
		"product": product.String(),
		"tree":    tree.String(),
	}}
}

// NewAccessRequestedEvent returns the payload for a pending listing request.
func NewAccessRequestedEvent(a *Access) *types.Event {
	return &types.Event{Type: EventTypeAccessRequested, Attributes: map[string]string{
		"wallet":      a.Authority.String(),
		"marketplace": a.Marketplace.String(),
	}}
}

// NewAccessGrantedEvent returns the payload for a granted listing right.
func NewAccessGrantedEvent(wallet, marketplace solana.PublicKey, airdrop bool) *types.Event {
	return &types.Event{Type: EventTypeAccessGranted, Attributes: map[string]string{
		"wallet":      wallet.String(),
		"marketplace": marketplace.String(),
		"airdrop":     strconv.FormatBool(airdrop),
	}}
}

// NewPurchaseSettledEvent returns the payload recording the value legs of a
// settled purchase.
func NewPurchaseSettledEvent(p *Product, buyer solana.PublicKey, quantity uint32, dist Distribution) *types.Event {
	return &types.Event{Type: EventTypePurchaseSettled, Attributes: map[string]string{
		"product":      p.Address.String(),
		"buyer":        buyer.String(),
		"seller":       p.Authority.String(),
		"paymentMint":  p.SellerConfig.PaymentMint.String(),
		"quantity":     strconv.FormatUint(uint64(quantity), 10),
		"total":        strconv.FormatUint(dist.Total, 10),
		"fee":          strconv.FormatUint(dist.Fee, 10),
		"sellerAmount": strconv.FormatUint(dist.SellerAmount, 10),
	}}
}

// NewRewardCreatedEvent returns the payload for a new per-wallet reward
// entity.
func NewRewardCreatedEvent(r *Reward) *types.Event {
	return &types.Event{Type: EventTypeRewardCreated, Attributes: map[string]string{
		"wallet":      r.Authority.String(),
		"marketplace": r.Marketplace.String(),
	}}
}

// NewRewardVaultAddedEvent returns the payload emitted when a wallet opens a
// vault for an additional mint.
func NewRewardVaultAddedEvent(r *Reward, mint, vault solana.PublicKey) *types.Event {
	return &types.Event{Type: EventTypeRewardVaultAdded, Attributes: map[string]string{
		"wallet": r.Authority.String(),
		"mint":   mint.String(),
		"vault":  vault.String(),
	}}
}

// NewBonusEvent returns the payload for one non-zero reward leg.
func NewBonusEvent(receiver, mint solana.PublicKey, amount uint64) *types.Event {
	return &types.Event{Type: EventTypeBonus, Attributes: map[string]string{
		"receiver": receiver.String(),
		"mint":     mint.String(),
		"amount":   strconv.FormatUint(amount, 10),
	}}
}

// NewRewardWithdrawnEvent returns the payload for a drained reward vault.
func NewRewardWithdrawnEvent(wallet, mint solana.PublicKey, amount uint64) *types.Event {
	return &types.Event{Type: EventTypeRewardWithdrawn, Attributes: map[string]string{
		"wallet": wallet.String(),
		"mint":   mint.String(),
		"amount": strconv.FormatUint(amount, 10),
	}}
}
