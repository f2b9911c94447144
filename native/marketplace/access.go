package marketplace

import (
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"bazaar/native/pda"
	"bazaar/native/token"
)

// RequestAccess records a wallet's pending request to list products on a
// permissioned marketplace. The request parks its own rent until it is
// accepted and closed.
func (e *Engine) RequestAccess(wallet, marketplaceAddr solana.PublicKey) (a *Access, err error) {
	defer func() { e.metrics.ObserveInstruction("request_access", err) }()
	if err = e.ready(); err != nil {
		return nil, err
	}
	m, err := e.loadMarketplace(marketplaceAddr)
	if err != nil {
		return nil, err
	}
	addr, bump, err := pda.AccessRequest(wallet, m.Address)
	if err != nil {
		return nil, err
	}
	if _, exists := e.state.AccessGet(addr); exists {
		return nil, fmt.Errorf("%w: access request %s", ErrAlreadyExists, addr)
	}
	a = &Access{Address: addr, Authority: wallet, Marketplace: m.Address, Bump: bump}
	if err = e.chargeRent(wallet, addr, AccessSize); err != nil {
		return nil, err
	}
	if err = e.state.AccessPut(a); err != nil {
		return nil, err
	}
	e.emit(NewAccessRequestedEvent(a))
	return a, nil
}

// AcceptAccess grants a pending request: one unit of the access mint lands in
// the requester's associated account, the request closes and its rent flows
// back to the requester. Only the marketplace authority may accept.
func (e *Engine) AcceptAccess(authority, marketplaceAddr, wallet solana.PublicKey) (err error) {
	defer func() { e.metrics.ObserveInstruction("accept_access", err) }()
	if err = e.ready(); err != nil {
		return err
	}
	m, err := e.loadMarketplace(marketplaceAddr)
	if err != nil {
		return err
	}
	if !m.Authority.Equals(authority) {
		return fmt.Errorf("%w: %s", ErrWrongAuthority, authority)
	}
	requestAddr, _, err := pda.AccessRequest(wallet, m.Address)
	if err != nil {
		return err
	}
	if _, exists := e.state.AccessGet(requestAddr); !exists {
		return fmt.Errorf("%w: access request for %s", ErrNotFound, wallet)
	}
	if err = e.mintAccessToken(m, wallet); err != nil {
		return err
	}
	if err = e.refundRent(requestAddr, wallet); err != nil {
		return err
	}
	if err = e.state.AccessDelete(requestAddr); err != nil {
		return err
	}
	e.emit(NewAccessGrantedEvent(wallet, m.Address, false))
	return nil
}

// AirdropAccess grants listing rights directly, without a pending request.
// Only the marketplace authority may airdrop.
func (e *Engine) AirdropAccess(authority, marketplaceAddr, receiver solana.PublicKey) (err error) {
	defer func() { e.metrics.ObserveInstruction("airdrop_access", err) }()
	if err = e.ready(); err != nil {
		return err
	}
	m, err := e.loadMarketplace(marketplaceAddr)
	if err != nil {
		return err
	}
	if !m.Authority.Equals(authority) {
		return fmt.Errorf("%w: %s", ErrWrongAuthority, authority)
	}
	if err = e.mintAccessToken(m, receiver); err != nil {
		return err
	}
	e.emit(NewAccessGrantedEvent(receiver, m.Address, true))
	return nil
}

// mintAccessToken issues one unit of the marketplace access mint into the
// receiver's associated account, signed by the marketplace itself.
func (e *Engine) mintAccessToken(m *Marketplace, receiver solana.PublicKey) error {
	if err := marketplaceSigner(m).verify(); err != nil {
		return err
	}
	ata, err := e.ledger.CreateAssociatedAccountIfNeeded(receiver, m.PermissionConfig.AccessMint)
	if err != nil {
		return err
	}
	if err := e.ledger.MintTo(token.ProgramExtended, m.PermissionConfig.AccessMint, ata.Address, m.Address, 1); err != nil {
		return fmt.Errorf("%w: %v", ErrMintTo, err)
	}
	return nil
}

// checkSellerAccess enforces the listing gate: on a permissioned marketplace
// the seller must hold at least one unit of the access mint. A missing token
// account and an empty one fail differently so callers can tell an
// unonboarded wallet from a revoked one.
func (e *Engine) checkSellerAccess(m *Marketplace, seller solana.PublicKey) error {
	if m.PermissionConfig.Permissionless {
		return nil
	}
	ata, _, err := pda.AssociatedTokenAccount(seller, m.PermissionConfig.AccessMint)
	if err != nil {
		return err
	}
	acc, err := e.ledger.GetAccount(ata)
	if err != nil {
		if errors.Is(err, token.ErrAccountNotFound) {
			return fmt.Errorf("%w: access token account for %s", ErrMissingAccount, seller)
		}
		return err
	}
	if acc.Amount == 0 {
		return fmt.Errorf("%w: %s", ErrNotWhitelisted, seller)
	}
	return nil
}
