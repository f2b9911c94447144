package rpc

import (
	"crypto/sha256"
	"encoding/json"
	"strings"

	"github.com/gagliardetto/solana-go"

	"bazaar/native/marketplace"
	"bazaar/native/pda"
)

func (s *Server) routeTable() map[string]handlerFunc {
	return map[string]handlerFunc{
		"marketplace_init":              s.handleInitMarketplace,
		"marketplace_edit":              s.handleEditMarketplace,
		"marketplace_initBounty":        s.handleInitBounty,
		"marketplace_get":               s.handleGetMarketplace,
		"marketplace_requestAccess":     s.handleRequestAccess,
		"marketplace_acceptAccess":      s.handleAcceptAccess,
		"marketplace_airdropAccess":     s.handleAirdropAccess,
		"marketplace_initProduct":       s.handleInitProduct,
		"marketplace_initProductTree":   s.handleInitProductTree,
		"marketplace_editProduct":       s.handleEditProduct,
		"marketplace_updateProductTree": s.handleUpdateProductTree,
		"marketplace_getProduct":        s.handleGetProduct,
		"marketplace_registerBuy":       s.handleRegisterBuy,
		"marketplace_initReward":        s.handleInitReward,
		"marketplace_initRewardVault":   s.handleInitRewardVault,
		"marketplace_withdrawReward":    s.handleWithdrawReward,
		"marketplace_getReward":         s.handleGetReward,
	}
}

func decodeParams[T any](params []json.RawMessage) (*T, *RPCError) {
	if len(params) != 1 {
		return nil, &RPCError{Code: codeInvalidParams, Message: "expected a single parameter object"}
	}
	out := new(T)
	dec := json.NewDecoder(strings.NewReader(string(params[0])))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return nil, &RPCError{Code: codeInvalidParams, Message: "invalid parameter object", Data: err.Error()}
	}
	return out, nil
}

func parseKey(value, field string) (solana.PublicKey, *RPCError) {
	key, err := solana.PublicKeyFromBase58(strings.TrimSpace(value))
	if err != nil {
		return solana.PublicKey{}, &RPCError{Code: codeInvalidParams, Message: field + " must be a base58 public key", Data: err.Error()}
	}
	return key, nil
}

// productID turns an arbitrary identifier string into the fixed 32-byte seed
// used by the product derivation.
func productID(value string) [32]byte {
	return sha256.Sum256([]byte(value))
}

type feesParam struct {
	Fee          uint16 `json:"fee"`
	FeePayer     string `json:"feePayer"`
	DiscountMint string `json:"discountMint,omitempty"`
	FeeReduction uint16 `json:"feeReduction"`
}

func (p *feesParam) toConfig() (*marketplace.FeesConfig, *RPCError) {
	if p == nil {
		return nil, nil
	}
	cfg := &marketplace.FeesConfig{Fee: p.Fee, FeeReduction: p.FeeReduction}
	switch strings.ToLower(strings.TrimSpace(p.FeePayer)) {
	case "buyer":
		cfg.FeePayer = marketplace.FeePayerBuyer
	case "seller":
		cfg.FeePayer = marketplace.FeePayerSeller
	default:
		return nil, &RPCError{Code: codeInvalidParams, Message: "feePayer must be \"buyer\" or \"seller\""}
	}
	if p.DiscountMint != "" {
		mint, rpcErr := parseKey(p.DiscountMint, "discountMint")
		if rpcErr != nil {
			return nil, rpcErr
		}
		cfg.DiscountMint = mint
	}
	return cfg, nil
}

type rewardsParam struct {
	Enabled      bool   `json:"enabled"`
	RewardMint   string `json:"rewardMint,omitempty"`
	SellerReward uint16 `json:"sellerReward"`
	BuyerReward  uint16 `json:"buyerReward"`
}

func (p *rewardsParam) toConfig() (*marketplace.RewardsConfig, *RPCError) {
	if p == nil {
		return nil, nil
	}
	cfg := &marketplace.RewardsConfig{
		RewardsEnabled: p.Enabled,
		SellerReward:   p.SellerReward,
		BuyerReward:    p.BuyerReward,
	}
	if strings.EqualFold(strings.TrimSpace(p.RewardMint), "any") {
		cfg.RewardMint = pda.AnyMint()
	} else if p.RewardMint != "" {
		mint, rpcErr := parseKey(p.RewardMint, "rewardMint")
		if rpcErr != nil {
			return nil, rpcErr
		}
		cfg.RewardMint = mint
	}
	return cfg, nil
}

type tokenConfigParam struct {
	Transferable bool `json:"transferable"`
	DeliverToken bool `json:"deliverToken"`
	UseCNFTs     bool `json:"useCnfts"`
	ChainCounter bool `json:"chainCounter"`
}

func (p tokenConfigParam) toConfig() marketplace.TokenConfig {
	return marketplace.TokenConfig(p)
}

type initMarketplaceParam struct {
	Authority      string           `json:"authority"`
	TokenConfig    tokenConfigParam `json:"tokenConfig"`
	Permissionless bool             `json:"permissionless"`
	Fees           *feesParam       `json:"fees,omitempty"`
	Rewards        *rewardsParam    `json:"rewards,omitempty"`
}

func (s *Server) handleInitMarketplace(params []json.RawMessage) (interface{}, *RPCError) {
	p, rpcErr := decodeParams[initMarketplaceParam](params)
	if rpcErr != nil {
		return nil, rpcErr
	}
	authority, rpcErr := parseKey(p.Authority, "authority")
	if rpcErr != nil {
		return nil, rpcErr
	}
	fees, rpcErr := p.Fees.toConfig()
	if rpcErr != nil {
		return nil, rpcErr
	}
	rewards, rpcErr := p.Rewards.toConfig()
	if rpcErr != nil {
		return nil, rpcErr
	}
	var created *marketplace.Marketplace
	err := s.withEngine(func(eng *marketplace.Engine) error {
		var err error
		created, err = eng.InitMarketplace(marketplace.InitMarketplaceParams{
			Authority:      authority,
			TokenConfig:    p.TokenConfig.toConfig(),
			Permissionless: p.Permissionless,
			Fees:           fees,
			Rewards:        rewards,
		})
		return err
	})
	if err != nil {
		return nil, engineError(err)
	}
	return created, nil
}

type editMarketplaceParam struct {
	Authority      string           `json:"authority"`
	Marketplace    string           `json:"marketplace"`
	TokenConfig    tokenConfigParam `json:"tokenConfig"`
	Permissionless bool             `json:"permissionless"`
	Fees           *feesParam       `json:"fees,omitempty"`
	Rewards        *rewardsParam    `json:"rewards,omitempty"`
}

func (s *Server) handleEditMarketplace(params []json.RawMessage) (interface{}, *RPCError) {
	p, rpcErr := decodeParams[editMarketplaceParam](params)
	if rpcErr != nil {
		return nil, rpcErr
	}
	authority, rpcErr := parseKey(p.Authority, "authority")
	if rpcErr != nil {
		return nil, rpcErr
	}
	marketplaceAddr, rpcErr := parseKey(p.Marketplace, "marketplace")
	if rpcErr != nil {
		return nil, rpcErr
	}
	fees, rpcErr := p.Fees.toConfig()
	if rpcErr != nil {
		return nil, rpcErr
	}
	rewards, rpcErr := p.Rewards.toConfig()
	if rpcErr != nil {
		return nil, rpcErr
	}
	var updated *marketplace.Marketplace
	err := s.withEngine(func(eng *marketplace.Engine) error {
		var err error
		updated, err = eng.EditMarketplace(marketplace.EditMarketplaceParams{
			Authority:      authority,
			Marketplace:    marketplaceAddr,
			TokenConfig:    p.TokenConfig.toConfig(),
			Permissionless: p.Permissionless,
			Fees:           fees,
			Rewards:        rewards,
		})
		return err
	})
	if err != nil {
		return nil, engineError(err)
	}
	return updated, nil
}

type mintOpParam struct {
	Payer       string `json:"payer"`
	Marketplace string `json:"marketplace"`
	Mint        string `json:"mint"`
}

func (s *Server) handleInitBounty(params []json.RawMessage) (interface{}, *RPCError) {
	p, rpcErr := decodeParams[mintOpParam](params)
	if rpcErr != nil {
		return nil, rpcErr
	}
	payer, rpcErr := parseKey(p.Payer, "payer")
	if rpcErr != nil {
		return nil, rpcErr
	}
	marketplaceAddr, rpcErr := parseKey(p.Marketplace, "marketplace")
	if rpcErr != nil {
		return nil, rpcErr
	}
	mint, rpcErr := parseKey(p.Mint, "mint")
	if rpcErr != nil {
		return nil, rpcErr
	}
	var vault solana.PublicKey
	err := s.withEngine(func(eng *marketplace.Engine) error {
		var err error
		vault, err = eng.InitBounty(payer, marketplaceAddr, mint)
		return err
	})
	if err != nil {
		return nil, engineError(err)
	}
	return map[string]string{"vault": vault.String()}, nil
}

type addressParam struct {
	Address string `json:"address"`
}

func (s *Server) handleGetMarketplace(params []json.RawMessage) (interface{}, *RPCError) {
	p, rpcErr := decodeParams[addressParam](params)
	if rpcErr != nil {
		return nil, rpcErr
	}
	addr, rpcErr := parseKey(p.Address, "address")
	if rpcErr != nil {
		return nil, rpcErr
	}
	entity, ok := s.state.MarketplaceGet(addr)
	if !ok {
		return nil, &RPCError{Code: codeInvalidParams, Message: "marketplace not found"}
	}
	return entity, nil
}

type accessParam struct {
	Wallet      string `json:"wallet"`
	Marketplace string `json:"marketplace"`
}

func (s *Server) handleRequestAccess(params []json.RawMessage) (interface{}, *RPCError) {
	p, rpcErr := decodeParams[accessParam](params)
	if rpcErr != nil {
		return nil, rpcErr
	}
	wallet, rpcErr := parseKey(p.Wallet, "wallet")
	if rpcErr != nil {
		return nil, rpcErr
	}
	marketplaceAddr, rpcErr := parseKey(p.Marketplace, "marketplace")
	if rpcErr != nil {
		return nil, rpcErr
	}
	var request *marketplace.Access
	err := s.withEngine(func(eng *marketplace.Engine) error {
		var err error
		request, err = eng.RequestAccess(wallet, marketplaceAddr)
		return err
	})
	if err != nil {
		return nil, engineError(err)
	}
	return request, nil
}

type grantAccessParam struct {
	Authority   string `json:"authority"`
	Marketplace string `json:"marketplace"`
	Wallet      string `json:"wallet"`
}

func (s *Server) handleAcceptAccess(params []json.RawMessage) (interface{}, *RPCError) {
	return s.grantAccess(params, false)
}

func (s *Server) handleAirdropAccess(params []json.RawMessage) (interface{}, *RPCError) {
	return s.grantAccess(params, true)
}

func (s *Server) grantAccess(params []json.RawMessage, airdrop bool) (interface{}, *RPCError) {
	p, rpcErr := decodeParams[grantAccessParam](params)
	if rpcErr != nil {
		return nil, rpcErr
	}
	authority, rpcErr := parseKey(p.Authority, "authority")
	if rpcErr != nil {
		return nil, rpcErr
	}
	marketplaceAddr, rpcErr := parseKey(p.Marketplace, "marketplace")
	if rpcErr != nil {
		return nil, rpcErr
	}
	wallet, rpcErr := parseKey(p.Wallet, "wallet")
	if rpcErr != nil {
		return nil, rpcErr
	}
	err := s.withEngine(func(eng *marketplace.Engine) error {
		if airdrop {
			return eng.AirdropAccess(authority, marketplaceAddr, wallet)
		}
		return eng.AcceptAccess(authority, marketplaceAddr, wallet)
	})
	if err != nil {
		return nil, engineError(err)
	}
	return map[string]bool{"granted": true}, nil
}

type initProductParam struct {
	Seller      string `json:"seller"`
	Marketplace string `json:"marketplace"`
	FirstID     string `json:"firstId"`
	SecondID    string `json:"secondId"`
	PaymentMint string `json:"paymentMint"`
	Price       uint64 `json:"price"`
}

func (p *initProductParam) toParams() (marketplace.InitProductParams, *RPCError) {
	seller, rpcErr := parseKey(p.Seller, "seller")
	if rpcErr != nil {
		return marketplace.InitProductParams{}, rpcErr
	}
	marketplaceAddr, rpcErr := parseKey(p.Marketplace, "marketplace")
	if rpcErr != nil {
		return marketplace.InitProductParams{}, rpcErr
	}
	mint, rpcErr := parseKey(p.PaymentMint, "paymentMint")
	if rpcErr != nil {
		return marketplace.InitProductParams{}, rpcErr
	}
	return marketplace.InitProductParams{
		Seller:      seller,
		Marketplace: marketplaceAddr,
		FirstID:     productID(p.FirstID),
		SecondID:    productID(p.SecondID),
		PaymentMint: mint,
		Price:       p.Price,
	}, nil
}

func (s *Server) handleInitProduct(params []json.RawMessage) (interface{}, *RPCError) {
	p, rpcErr := decodeParams[initProductParam](params)
	if rpcErr != nil {
		return nil, rpcErr
	}
	engineParams, rpcErr := p.toParams()
	if rpcErr != nil {
		return nil, rpcErr
	}
	var product *marketplace.Product
	err := s.withEngine(func(eng *marketplace.Engine) error {
		var err error
		product, err = eng.InitProduct(engineParams)
		return err
	})
	if err != nil {
		return nil, engineError(err)
	}
	return product, nil
}

type initProductTreeParam struct {
	initProductParam
	Tree          string `json:"tree"`
	TreeDepth     uint32 `json:"treeDepth"`
	MaxBufferSize uint32 `json:"maxBufferSize"`
	Name          string `json:"name"`
	Symbol        string `json:"symbol"`
	URI           string `json:"uri"`
}

func (s *Server) handleInitProductTree(params []json.RawMessage) (interface{}, *RPCError) {
	p, rpcErr := decodeParams[initProductTreeParam](params)
	if rpcErr != nil {
		return nil, rpcErr
	}
	engineParams, rpcErr := p.toParams()
	if rpcErr != nil {
		return nil, rpcErr
	}
	tree, rpcErr := parseKey(p.Tree, "tree")
	if rpcErr != nil {
		return nil, rpcErr
	}
	var product *marketplace.Product
	err := s.withEngine(func(eng *marketplace.Engine) error {
		var err error
		product, err = eng.InitProductTree(marketplace.InitProductTreeParams{
			InitProductParams: engineParams,
			Tree:              tree,
			TreeDepth:         p.TreeDepth,
			MaxBufferSize:     p.MaxBufferSize,
			Name:              p.Name,
			Symbol:            p.Symbol,
			URI:               p.URI,
		})
		return err
	})
	if err != nil {
		return nil, engineError(err)
	}
	return product, nil
}

type editProductParam struct {
	Seller      string `json:"seller"`
	Product     string `json:"product"`
	PaymentMint string `json:"paymentMint"`
	Price       uint64 `json:"price"`
}

func (s *Server) handleEditProduct(params []json.RawMessage) (interface{}, *RPCError) {
	p, rpcErr := decodeParams[editProductParam](params)
	if rpcErr != nil {
		return nil, rpcErr
	}
	seller, rpcErr := parseKey(p.Seller, "seller")
	if rpcErr != nil {
		return nil, rpcErr
	}
	productAddr, rpcErr := parseKey(p.Product, "product")
	if rpcErr != nil {
		return nil, rpcErr
	}
	mint, rpcErr := parseKey(p.PaymentMint, "paymentMint")
	if rpcErr != nil {
		return nil, rpcErr
	}
	var product *marketplace.Product
	err := s.withEngine(func(eng *marketplace.Engine) error {
		var err error
		product, err = eng.EditProduct(seller, productAddr, mint, p.Price)
		return err
	})
	if err != nil {
		return nil, engineError(err)
	}
	return product, nil
}

type updateTreeParam struct {
	Seller        string `json:"seller"`
	Product       string `json:"product"`
	Tree          string `json:"tree"`
	TreeDepth     uint32 `json:"treeDepth"`
	MaxBufferSize uint32 `json:"maxBufferSize"`
}

func (s *Server) handleUpdateProductTree(params []json.RawMessage) (interface{}, *RPCError) {
	p, rpcErr := decodeParams[updateTreeParam](params)
	if rpcErr != nil {
		return nil, rpcErr
	}
	seller, rpcErr := parseKey(p.Seller, "seller")
	if rpcErr != nil {
		return nil, rpcErr
	}
	productAddr, rpcErr := parseKey(p.Product, "product")
	if rpcErr != nil {
		return nil, rpcErr
	}
	tree, rpcErr := parseKey(p.Tree, "tree")
	if rpcErr != nil {
		return nil, rpcErr
	}
	err := s.withEngine(func(eng *marketplace.Engine) error {
		return eng.UpdateProductTree(seller, productAddr, tree, p.TreeDepth, p.MaxBufferSize)
	})
	if err != nil {
		return nil, engineError(err)
	}
	return map[string]bool{"rotated": true}, nil
}

func (s *Server) handleGetProduct(params []json.RawMessage) (interface{}, *RPCError) {
	p, rpcErr := decodeParams[addressParam](params)
	if rpcErr != nil {
		return nil, rpcErr
	}
	addr, rpcErr := parseKey(p.Address, "address")
	if rpcErr != nil {
		return nil, rpcErr
	}
	product, ok := s.state.ProductGet(addr)
	if !ok {
		return nil, &RPCError{Code: codeInvalidParams, Message: "product not found"}
	}
	return product, nil
}

type registerBuyParam struct {
	Buyer    string `json:"buyer"`
	Product  string `json:"product"`
	Quantity uint32 `json:"quantity"`
	// Mode selects the proof-of-purchase path: "plain", "token", "cnft" or
	// "counter". It must match the marketplace token configuration.
	Mode string `json:"mode"`
}

func (s *Server) handleRegisterBuy(params []json.RawMessage) (interface{}, *RPCError) {
	p, rpcErr := decodeParams[registerBuyParam](params)
	if rpcErr != nil {
		return nil, rpcErr
	}
	buyer, rpcErr := parseKey(p.Buyer, "buyer")
	if rpcErr != nil {
		return nil, rpcErr
	}
	productAddr, rpcErr := parseKey(p.Product, "product")
	if rpcErr != nil {
		return nil, rpcErr
	}
	quantity := p.Quantity
	if quantity == 0 {
		quantity = 1
	}
	var dist marketplace.Distribution
	err := s.withEngine(func(eng *marketplace.Engine) error {
		var err error
		switch strings.ToLower(strings.TrimSpace(p.Mode)) {
		case "", "plain":
			dist, err = eng.RegisterBuy(buyer, productAddr, quantity)
		case "token":
			dist, err = eng.RegisterBuyToken(buyer, productAddr, quantity)
		case "cnft":
			dist, err = eng.RegisterBuyCNFT(buyer, productAddr, quantity)
		case "counter":
			dist, err = eng.RegisterBuyCounter(buyer, productAddr, quantity)
		default:
			return marketplace.ErrWrongInstruction
		}
		return err
	})
	if err != nil {
		return nil, engineError(err)
	}
	return dist, nil
}

func (s *Server) handleInitReward(params []json.RawMessage) (interface{}, *RPCError) {
	p, rpcErr := decodeParams[mintOpParam](params)
	if rpcErr != nil {
		return nil, rpcErr
	}
	wallet, rpcErr := parseKey(p.Payer, "payer")
	if rpcErr != nil {
		return nil, rpcErr
	}
	marketplaceAddr, rpcErr := parseKey(p.Marketplace, "marketplace")
	if rpcErr != nil {
		return nil, rpcErr
	}
	mint, rpcErr := parseKey(p.Mint, "mint")
	if rpcErr != nil {
		return nil, rpcErr
	}
	var reward *marketplace.Reward
	err := s.withEngine(func(eng *marketplace.Engine) error {
		var err error
		reward, err = eng.InitReward(wallet, marketplaceAddr, mint)
		return err
	})
	if err != nil {
		return nil, engineError(err)
	}
	return reward, nil
}

func (s *Server) handleInitRewardVault(params []json.RawMessage) (interface{}, *RPCError) {
	p, rpcErr := decodeParams[mintOpParam](params)
	if rpcErr != nil {
		return nil, rpcErr
	}
	wallet, rpcErr := parseKey(p.Payer, "payer")
	if rpcErr != nil {
		return nil, rpcErr
	}
	marketplaceAddr, rpcErr := parseKey(p.Marketplace, "marketplace")
	if rpcErr != nil {
		return nil, rpcErr
	}
	mint, rpcErr := parseKey(p.Mint, "mint")
	if rpcErr != nil {
		return nil, rpcErr
	}
	var vault solana.PublicKey
	err := s.withEngine(func(eng *marketplace.Engine) error {
		var err error
		vault, err = eng.InitRewardVault(wallet, marketplaceAddr, mint)
		return err
	})
	if err != nil {
		return nil, engineError(err)
	}
	return map[string]string{"vault": vault.String()}, nil
}

func (s *Server) handleWithdrawReward(params []json.RawMessage) (interface{}, *RPCError) {
	p, rpcErr := decodeParams[mintOpParam](params)
	if rpcErr != nil {
		return nil, rpcErr
	}
	wallet, rpcErr := parseKey(p.Payer, "payer")
	if rpcErr != nil {
		return nil, rpcErr
	}
	marketplaceAddr, rpcErr := parseKey(p.Marketplace, "marketplace")
	if rpcErr != nil {
		return nil, rpcErr
	}
	mint, rpcErr := parseKey(p.Mint, "mint")
	if rpcErr != nil {
		return nil, rpcErr
	}
	var amount uint64
	err := s.withEngine(func(eng *marketplace.Engine) error {
		var err error
		amount, err = eng.WithdrawReward(wallet, marketplaceAddr, mint)
		return err
	})
	if err != nil {
		return nil, engineError(err)
	}
	return map[string]uint64{"amount": amount}, nil
}

func (s *Server) handleGetReward(params []json.RawMessage) (interface{}, *RPCError) {
	p, rpcErr := decodeParams[accessParam](params)
	if rpcErr != nil {
		return nil, rpcErr
	}
	wallet, rpcErr := parseKey(p.Wallet, "wallet")
	if rpcErr != nil {
		return nil, rpcErr
	}
	marketplaceAddr, rpcErr := parseKey(p.Marketplace, "marketplace")
	if rpcErr != nil {
		return nil, rpcErr
	}
	addr, _, err := pda.Reward(wallet, marketplaceAddr)
	if err != nil {
		return nil, engineError(err)
	}
	reward, ok := s.state.RewardGet(addr)
	if !ok {
		return nil, &RPCError{Code: codeInvalidParams, Message: "reward not found"}
	}
	return reward, nil
}
