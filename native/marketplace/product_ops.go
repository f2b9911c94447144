package marketplace

import (
	"fmt"

	"github.com/gagliardetto/solana-go"

	"bazaar/native/compression"
	"bazaar/native/metadata"
	"bazaar/native/pda"
	"bazaar/native/token"
)

// InitProductParams carries the listing terms for a new product.
type InitProductParams struct {
	Seller      solana.PublicKey
	Marketplace solana.PublicKey
	FirstID     [32]byte
	SecondID    [32]byte
	PaymentMint solana.PublicKey
	Price       uint64
}

// InitProduct lists a product on a marketplace. On marketplaces that deliver
// token receipts the product's receipt mint is created in the same call, with
// the product itself as mint authority.
func (e *Engine) InitProduct(params InitProductParams) (p *Product, err error) {
	defer func() { e.metrics.ObserveInstruction("init_product", err) }()
	if err = e.ready(); err != nil {
		return nil, err
	}
	m, err := e.loadMarketplace(params.Marketplace)
	if err != nil {
		return nil, err
	}
	if err = e.checkSellerAccess(m, params.Seller); err != nil {
		return nil, err
	}
	p, err = e.createProduct(m, params)
	if err != nil {
		return nil, err
	}
	if m.TokenConfig.DeliverToken {
		if err = e.createReceiptMint(m, p); err != nil {
			return nil, err
		}
	}
	if err = e.finishProduct(params.Seller, p); err != nil {
		return nil, err
	}
	return p, nil
}

// InitProductTreeParams extends the listing terms with the compressed-receipt
// collection canvas and the Merkle tree geometry.
type InitProductTreeParams struct {
	InitProductParams
	Tree          solana.PublicKey
	TreeDepth     uint32
	MaxBufferSize uint32
	Name          string
	Symbol        string
	URI           string
}

// InitProductTree lists a product whose receipts are compressed leaves. The
// product collection mint is created as a sized collection with a master
// edition, and an empty Merkle tree is initialised at the supplied address.
func (e *Engine) InitProductTree(params InitProductTreeParams) (p *Product, err error) {
	defer func() { e.metrics.ObserveInstruction("init_product_tree", err) }()
	if err = e.ready(); err != nil {
		return nil, err
	}
	if e.meta == nil {
		return nil, fmt.Errorf("%w: metadata registry", ErrMissingAccount)
	}
	m, err := e.loadMarketplace(params.Marketplace)
	if err != nil {
		return nil, err
	}
	if !m.TokenConfig.UseCNFTs {
		return nil, fmt.Errorf("%w: marketplace does not use compressed receipts", ErrWrongInstruction)
	}
	if err = e.checkSellerAccess(m, params.Seller); err != nil {
		return nil, err
	}
	p, err = e.createProduct(m, params.InitProductParams)
	if err != nil {
		return nil, err
	}

	// The collection parent is a plain one-of-one: legacy program, zero
	// decimals, the product as both mint and update authority.
	mintAddr, mintBump, err := pda.ProductMint(p.Address)
	if err != nil {
		return nil, err
	}
	if _, err = e.ledger.InitializeMint(token.InitMintParams{
		Address:       mintAddr,
		ProgramID:     token.ProgramLegacy,
		Decimals:      0,
		MintAuthority: p.Address,
	}); err != nil {
		return nil, err
	}
	if err = e.meta.Create(metadata.Record{
		Mint:            mintAddr,
		UpdateAuthority: p.Address,
		Name:            params.Name,
		Symbol:          params.Symbol,
		URI:             params.URI,
		SizedCollection: true,
	}); err != nil {
		return nil, err
	}
	if err = e.meta.CreateMasterEdition(mintAddr, p.Address); err != nil {
		return nil, err
	}
	p.ProductMint = mintAddr
	p.Bumps.MintBump = mintBump

	tree, err := compression.NewTree(params.Tree, p.Address, params.TreeDepth, params.MaxBufferSize)
	if err != nil {
		return nil, err
	}
	if err = e.state.TreePut(tree); err != nil {
		return nil, err
	}
	p.MerkleTree = params.Tree

	if err = e.finishProduct(params.Seller, p); err != nil {
		return nil, err
	}
	return p, nil
}

// EditProduct replaces the payment terms of a listing. Only the seller may
// edit.
func (e *Engine) EditProduct(seller, productAddr, paymentMint solana.PublicKey, price uint64) (p *Product, err error) {
	defer func() { e.metrics.ObserveInstruction("edit_product", err) }()
	if err = e.ready(); err != nil {
		return nil, err
	}
	p, err = e.loadProduct(productAddr)
	if err != nil {
		return nil, err
	}
	if !p.Authority.Equals(seller) {
		return nil, fmt.Errorf("%w: %s", ErrWrongAuthority, seller)
	}
	p.SellerConfig = SellerConfig{PaymentMint: paymentMint, ProductPrice: price}
	if err = e.state.ProductPut(p); err != nil {
		return nil, err
	}
	e.emit(NewProductUpdatedEvent(p))
	return p, nil
}

// UpdateProductTree swings a compressed-receipt listing onto a fresh Merkle
// tree once the previous one is exhausted. Only the seller may rotate trees,
// and only when the active tree is actually full.
func (e *Engine) UpdateProductTree(seller, productAddr, treeAddr solana.PublicKey, depth, maxBufferSize uint32) (err error) {
	defer func() { e.metrics.ObserveInstruction("update_product_tree", err) }()
	if err = e.ready(); err != nil {
		return err
	}
	p, err := e.loadProduct(productAddr)
	if err != nil {
		return err
	}
	if !p.Authority.Equals(seller) {
		return fmt.Errorf("%w: %s", ErrWrongAuthority, seller)
	}
	current, ok := e.state.TreeGet(p.MerkleTree)
	if !ok {
		return fmt.Errorf("%w: tree %s", ErrNotFound, p.MerkleTree)
	}
	if !current.IsFull() {
		return fmt.Errorf("%w: tree %s still has capacity", ErrWrongInstruction, p.MerkleTree)
	}
	tree, err := compression.NewTree(treeAddr, p.Address, depth, maxBufferSize)
	if err != nil {
		return err
	}
	if err = e.state.TreePut(tree); err != nil {
		return err
	}
	p.MerkleTree = treeAddr
	if err = e.state.ProductPut(p); err != nil {
		return err
	}
	e.emit(NewTreeUpdatedEvent(p.Address, treeAddr))
	return nil
}

// createProduct derives the product address, rejects collisions and builds
// the entity. Persisting is left to finishProduct so variants can attach
// their receipt machinery first.
func (e *Engine) createProduct(m *Marketplace, params InitProductParams) (*Product, error) {
	addr, bump, err := pda.Product(params.FirstID, params.SecondID, m.Address)
	if err != nil {
		return nil, err
	}
	if _, exists := e.state.ProductGet(addr); exists {
		return nil, fmt.Errorf("%w: product %s", ErrAlreadyExists, addr)
	}
	p := &Product{
		Address:     addr,
		Authority:   params.Seller,
		FirstID:     params.FirstID,
		SecondID:    params.SecondID,
		Marketplace: m.Address,
		SellerConfig: SellerConfig{
			PaymentMint:  params.PaymentMint,
			ProductPrice: params.Price,
		},
	}
	p.Bumps.Bump = bump
	return p, nil
}

// createReceiptMint opens the fungible receipt mint for a token-delivery
// listing. Non-transferable marketplaces pin the extended program so receipts
// cannot form a secondary market.
func (e *Engine) createReceiptMint(m *Marketplace, p *Product) error {
	mintAddr, mintBump, err := pda.ProductMint(p.Address)
	if err != nil {
		return err
	}
	params := token.InitMintParams{
		Address:       mintAddr,
		ProgramID:     token.ProgramLegacy,
		Decimals:      0,
		MintAuthority: p.Address,
	}
	if !m.TokenConfig.Transferable {
		params.ProgramID = token.ProgramExtended
		params.NonTransferable = true
	}
	if _, err := e.ledger.InitializeMint(params); err != nil {
		return err
	}
	p.ProductMint = mintAddr
	p.Bumps.MintBump = mintBump
	return nil
}

func (e *Engine) finishProduct(seller solana.PublicKey, p *Product) error {
	if err := e.chargeRent(seller, p.Address, ProductSize); err != nil {
		return err
	}
	if err := e.state.ProductPut(p); err != nil {
		return err
	}
	e.debug("product listed", "product", p.Address.String(), "seller", seller.String())
	e.emit(NewProductCreatedEvent(p))
	return nil
}
