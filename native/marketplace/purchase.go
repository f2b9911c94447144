package marketplace

import (
	"fmt"

	"github.com/gagliardetto/solana-go"

	"bazaar/native/compression"
	"bazaar/native/pda"
	"bazaar/native/token"
)

// RegisterBuy settles a purchase without issuing any proof of purchase. It is
// the only purchase instruction valid on marketplaces that configured none of
// the receipt mechanisms.
func (e *Engine) RegisterBuy(buyer, productAddr solana.PublicKey, quantity uint32) (dist Distribution, err error) {
	defer func() { e.metrics.ObserveInstruction("register_buy", err) }()
	if err = e.ready(); err != nil {
		return Distribution{}, err
	}
	m, p, err := e.loadPurchaseTargets(productAddr)
	if err != nil {
		return Distribution{}, err
	}
	dist, err = e.settle(m, p, buyer, quantity, "plain")
	if err != nil {
		return Distribution{}, err
	}
	return dist, nil
}

// RegisterBuyToken settles a purchase and mints quantity units of the
// product's receipt mint into the buyer's associated account. Only valid when
// the marketplace delivers token receipts.
func (e *Engine) RegisterBuyToken(buyer, productAddr solana.PublicKey, quantity uint32) (dist Distribution, err error) {
	defer func() { e.metrics.ObserveInstruction("register_buy_token", err) }()
	if err = e.ready(); err != nil {
		return Distribution{}, err
	}
	m, p, err := e.loadPurchaseTargets(productAddr)
	if err != nil {
		return Distribution{}, err
	}
	if !m.TokenConfig.DeliverToken {
		return Distribution{}, fmt.Errorf("%w: marketplace does not deliver token receipts", ErrWrongInstruction)
	}
	dist, err = e.settle(m, p, buyer, quantity, "token")
	if err != nil {
		return Distribution{}, err
	}
	if err = e.mintReceipts(p, buyer, uint64(quantity)); err != nil {
		return Distribution{}, err
	}
	return dist, nil
}

// RegisterBuyCNFT settles a purchase and appends one compressed receipt leaf
// per unit to the product's Merkle tree, counting each into the product's
// sized collection. A full tree fails the whole purchase; the seller rotates
// the tree and the buyer retries.
func (e *Engine) RegisterBuyCNFT(buyer, productAddr solana.PublicKey, quantity uint32) (dist Distribution, err error) {
	defer func() { e.metrics.ObserveInstruction("register_buy_cnft", err) }()
	if err = e.ready(); err != nil {
		return Distribution{}, err
	}
	if e.meta == nil {
		return Distribution{}, fmt.Errorf("%w: metadata registry", ErrMissingAccount)
	}
	m, p, err := e.loadPurchaseTargets(productAddr)
	if err != nil {
		return Distribution{}, err
	}
	if !m.TokenConfig.UseCNFTs {
		return Distribution{}, fmt.Errorf("%w: marketplace does not use compressed receipts", ErrWrongInstruction)
	}
	tree, ok := e.state.TreeGet(p.MerkleTree)
	if !ok {
		return Distribution{}, fmt.Errorf("%w: tree %s", ErrNotFound, p.MerkleTree)
	}
	record, err := e.meta.Get(p.ProductMint)
	if err != nil {
		return Distribution{}, err
	}
	dist, err = e.settle(m, p, buyer, quantity, "cnft")
	if err != nil {
		return Distribution{}, err
	}
	tree = tree.Clone()
	leaf := compression.Leaf(buyer, p.ProductMint, compression.LeafMetadata{
		Name:   record.Name,
		Symbol: record.Symbol,
		URI:    record.URI,
	})
	for i := uint32(0); i < quantity; i++ {
		if err = tree.Append(leaf); err != nil {
			return Distribution{}, err
		}
		if err = e.meta.VerifyCollectionItem(p.ProductMint, p.Address); err != nil {
			return Distribution{}, err
		}
	}
	if err = e.state.TreePut(tree); err != nil {
		return Distribution{}, err
	}
	return dist, nil
}

// RegisterBuyCounter settles a purchase and bumps the lazy per-(buyer,
// product) counter instead of minting anything. The counter entity is created
// on first use, paying its own rent out of the buyer.
func (e *Engine) RegisterBuyCounter(buyer, productAddr solana.PublicKey, quantity uint32) (dist Distribution, err error) {
	defer func() { e.metrics.ObserveInstruction("register_buy_counter", err) }()
	if err = e.ready(); err != nil {
		return Distribution{}, err
	}
	m, p, err := e.loadPurchaseTargets(productAddr)
	if err != nil {
		return Distribution{}, err
	}
	if !m.TokenConfig.ChainCounter {
		return Distribution{}, fmt.Errorf("%w: marketplace does not keep purchase counters", ErrWrongInstruction)
	}
	dist, err = e.settle(m, p, buyer, quantity, "counter")
	if err != nil {
		return Distribution{}, err
	}
	addr, bump, err := pda.Payment(buyer, p.Address)
	if err != nil {
		return Distribution{}, err
	}
	payment, ok := e.state.PaymentGet(addr)
	if !ok {
		payment = &Payment{Address: addr, Bump: bump}
		if err = e.chargeRent(buyer, addr, PaymentSize); err != nil {
			return Distribution{}, err
		}
	}
	payment = payment.Clone()
	payment.Address = addr
	if err = payment.AddUnits(quantity); err != nil {
		return Distribution{}, err
	}
	if err = e.state.PaymentPut(payment); err != nil {
		return Distribution{}, err
	}
	return dist, nil
}

func (e *Engine) loadPurchaseTargets(productAddr solana.PublicKey) (*Marketplace, *Product, error) {
	p, err := e.loadProduct(productAddr)
	if err != nil {
		return nil, nil, err
	}
	m, err := e.loadMarketplace(p.Marketplace)
	if err != nil {
		return nil, nil, err
	}
	return m, p, nil
}

// settle computes the distribution for a purchase and executes every value
// leg: buyer to seller, buyer to treasury, and the bounty reward legs when
// the promotion covers the payment mint. Callers run settle inside a state
// overlay, so a failing leg discards the earlier ones.
func (e *Engine) settle(m *Marketplace, p *Product, buyer solana.PublicKey, quantity uint32, mode string) (Distribution, error) {
	total, err := p.TotalPrice(quantity)
	if err != nil {
		return Distribution{}, err
	}
	mint := p.SellerConfig.PaymentMint
	dist, err := CalculateDistribution(m.FeesConfig, mint, total)
	if err != nil {
		return Distribution{}, err
	}

	if mint.Equals(token.NativeMint) {
		if err := e.ledger.NativeTransfer(buyer, p.Authority, dist.SellerAmount); err != nil {
			return Distribution{}, err
		}
		if err := e.ledger.NativeTransfer(buyer, m.Authority, dist.Fee); err != nil {
			return Distribution{}, err
		}
	} else {
		program, err := e.tokenProgramFor(mint)
		if err != nil {
			return Distribution{}, err
		}
		buyerATA, _, err := pda.AssociatedTokenAccount(buyer, mint)
		if err != nil {
			return Distribution{}, err
		}
		funding, err := e.ledger.GetAccount(buyerATA)
		if err != nil {
			return Distribution{}, err
		}
		if !funding.Mint.Equals(mint) || !funding.Owner.Equals(buyer) {
			return Distribution{}, fmt.Errorf("%w: %s", ErrWrongATA, buyerATA)
		}
		sellerATA, err := e.ledger.CreateAssociatedAccountIfNeeded(p.Authority, mint)
		if err != nil {
			return Distribution{}, err
		}
		if err := e.ledger.Transfer(program, buyerATA, sellerATA.Address, buyer, dist.SellerAmount); err != nil {
			return Distribution{}, fmt.Errorf("%w: %v", ErrTransfer, err)
		}
		if dist.Fee > 0 {
			treasuryATA, err := e.ledger.CreateAssociatedAccountIfNeeded(m.Authority, mint)
			if err != nil {
				return Distribution{}, err
			}
			if err := e.ledger.Transfer(program, buyerATA, treasuryATA.Address, buyer, dist.Fee); err != nil {
				return Distribution{}, fmt.Errorf("%w: %v", ErrTransfer, err)
			}
		}
		if m.IsRewardsActive(mint) {
			if err := e.payBonuses(m, p, buyer, mint, program); err != nil {
				return Distribution{}, err
			}
		}
	}

	e.debug("purchase settled",
		"product", p.Address.String(),
		"buyer", buyer.String(),
		"mode", mode,
		"total", dist.Total,
		"fee", dist.Fee,
	)
	e.emit(NewPurchaseSettledEvent(p, buyer, quantity, dist))
	e.metrics.ObserveSettlement(mode, mint.String(), dist.Fee)
	return dist, nil
}

// payBonuses pays the seller and buyer reward legs out of the bounty vault,
// signed by the marketplace. Bonuses accrue per purchase over the unit price,
// not the settled total, so buying in bulk earns the same as buying once.
// Zero-bps legs are skipped entirely; a non-zero leg whose receiver never
// opened a reward vault fails the purchase.
func (e *Engine) payBonuses(m *Marketplace, p *Product, buyer, mint, program solana.PublicKey) error {
	vault, _, err := pda.BountyVault(m.Address, mint)
	if err != nil {
		return err
	}
	if !m.RewardsConfig.HasBountyVault(vault) {
		return fmt.Errorf("%w: bounty vault for %s", ErrMissingAccount, mint)
	}
	legs := []struct {
		side     string
		receiver solana.PublicKey
		bps      uint16
	}{
		{"seller", p.Authority, m.RewardsConfig.SellerReward},
		{"buyer", buyer, m.RewardsConfig.BuyerReward},
	}
	for _, leg := range legs {
		if leg.bps == 0 {
			continue
		}
		bonus, err := CalculateBonus(leg.bps, p.SellerConfig.ProductPrice)
		if err != nil {
			return err
		}
		if bonus == 0 {
			continue
		}
		rewardVault, err := e.rewardVaultFor(leg.receiver, m.Address, mint)
		if err != nil {
			return err
		}
		if err := e.transferSigned(program, marketplaceSigner(m), vault, rewardVault, bonus); err != nil {
			return err
		}
		e.emit(NewBonusEvent(leg.receiver, mint, bonus))
		e.metrics.ObserveBonusLeg(leg.side)
	}
	return nil
}

// rewardVaultFor resolves the receiver's personal vault for the payment mint,
// requiring both the reward entity and the vault registration to exist.
func (e *Engine) rewardVaultFor(wallet, marketplaceAddr, mint solana.PublicKey) (solana.PublicKey, error) {
	r, err := e.loadReward(wallet, marketplaceAddr)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("%w: reward entity for %s", ErrMissingAccount, wallet)
	}
	vault, _, err := pda.RewardVault(wallet, marketplaceAddr, mint)
	if err != nil {
		return solana.PublicKey{}, err
	}
	for i := uint8(0); i < r.VaultCount; i++ {
		if r.RewardVaults[i].Equals(vault) {
			return vault, nil
		}
	}
	return solana.PublicKey{}, fmt.Errorf("%w: reward vault for %s", ErrMissingAccount, wallet)
}

// mintReceipts issues the fungible proof of purchase, signed by the product.
func (e *Engine) mintReceipts(p *Product, buyer solana.PublicKey, quantity uint64) error {
	if err := productSigner(p).verify(); err != nil {
		return err
	}
	mint, err := e.ledger.GetMint(p.ProductMint)
	if err != nil {
		return err
	}
	ata, err := e.ledger.CreateAssociatedAccountIfNeeded(buyer, p.ProductMint)
	if err != nil {
		return err
	}
	if err := e.ledger.MintTo(mint.ProgramID, p.ProductMint, ata.Address, p.Address, quantity); err != nil {
		return fmt.Errorf("%w: %v", ErrMintTo, err)
	}
	return nil
}

func (e *Engine) tokenProgramFor(mint solana.PublicKey) (solana.PublicKey, error) {
	record, err := e.ledger.GetMint(mint)
	if err != nil {
		return solana.PublicKey{}, err
	}
	return record.ProgramID, nil
}
