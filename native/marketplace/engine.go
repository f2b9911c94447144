package marketplace

import (
	"fmt"
	"log/slog"

	"github.com/gagliardetto/solana-go"

	"bazaar/core/events"
	"bazaar/core/types"
	"bazaar/native/compression"
	nativecommon "bazaar/native/common"
	"bazaar/native/metadata"
	"bazaar/native/pda"
	"bazaar/native/token"
	"bazaar/observability/metrics"
)

// State describes the persistence surface the marketplace engine needs from
// the surrounding state implementation. The engine never touches raw keys;
// every entity is addressed by its derived public key.
type State interface {
	MarketplaceGet(addr solana.PublicKey) (*Marketplace, bool)
	MarketplacePut(m *Marketplace) error
	ProductGet(addr solana.PublicKey) (*Product, bool)
	ProductPut(p *Product) error
	AccessGet(addr solana.PublicKey) (*Access, bool)
	AccessPut(a *Access) error
	AccessDelete(addr solana.PublicKey) error
	RewardGet(addr solana.PublicKey) (*Reward, bool)
	RewardPut(r *Reward) error
	PaymentGet(addr solana.PublicKey) (*Payment, bool)
	PaymentPut(p *Payment) error
	TreeGet(addr solana.PublicKey) (*compression.Tree, bool)
	TreePut(t *compression.Tree) error
	GetAccount(addr solana.PublicKey) (*types.Account, error)
	PutAccount(addr solana.PublicKey, acc *types.Account) error
}

type marketplaceEvent struct {
	evt *types.Event
}

func (e marketplaceEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e marketplaceEvent) Event() *types.Event { return e.evt }

// Engine wires the marketplace business logic with external state, the token
// ledger, the metadata registry and event emitters. Handlers validate every
// supplied address against its derivation before reading entity fields, and
// callers are expected to run each instruction against a transactional state
// overlay so a failing handler leaves no partial mutation behind.
type Engine struct {
	state   State
	ledger  *token.Ledger
	meta    *metadata.Registry
	emitter events.Emitter
	pauses  nativecommon.PauseView
	log     *slog.Logger
	metrics *metrics.Marketplace
}

// NewEngine creates a marketplace engine with a no-op emitter. Callers
// configure collaborators via the Set methods.
func NewEngine() *Engine {
	return &Engine{emitter: events.NoopEmitter{}}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state State) { e.state = state }

// SetLedger configures the token capability used for every value transfer.
func (e *Engine) SetLedger(ledger *token.Ledger) { e.ledger = ledger }

// SetMetadata configures the metadata/collection capability used by NFT-style
// receipts.
func (e *Engine) SetMetadata(registry *metadata.Registry) { e.meta = registry }

// SetEmitter configures the event emitter. Passing nil resets the emitter to
// a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetPauses configures the module pause view consulted before every
// state-mutating instruction.
func (e *Engine) SetPauses(p nativecommon.PauseView) { e.pauses = p }

// SetLogger configures structured logging for instruction handling.
func (e *Engine) SetLogger(log *slog.Logger) { e.log = log }

// SetMetrics configures the settlement metrics collector.
func (e *Engine) SetMetrics(m *metrics.Marketplace) { e.metrics = m }

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if e.ledger == nil {
		return ErrNilLedger
	}
	return nativecommon.Guard(e.pauses, ModuleName)
}

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(marketplaceEvent{evt: event})
}

func (e *Engine) debug(msg string, args ...any) {
	if e == nil || e.log == nil {
		return
	}
	e.log.Debug(msg, args...)
}

// signer carries exactly the seed tuple a derived entity uses to authorise a
// transfer. It is constructed per call, checked against its own derivation
// before use, and never stored.
type signer struct {
	address solana.PublicKey
	seeds   [][]byte
}

func (s signer) verify() error {
	_, err := pda.Assert(s.address, s.seeds...)
	return err
}

func marketplaceSigner(m *Marketplace) signer {
	return signer{
		address: m.Address,
		seeds:   [][]byte{[]byte(pda.TagMarketplace), m.Authority.Bytes()},
	}
}

func productSigner(p *Product) signer {
	return signer{
		address: p.Address,
		seeds:   [][]byte{[]byte(pda.TagProduct), p.FirstID[:], p.SecondID[:], p.Marketplace.Bytes()},
	}
}

func rewardSigner(r *Reward) signer {
	return signer{
		address: r.Address,
		seeds:   [][]byte{[]byte(pda.TagReward), r.Authority.Bytes(), r.Marketplace.Bytes()},
	}
}

// transferSigned moves tokens out of an account owned by a derived entity.
// The seed tuple is verified first so only the module that knows an entity's
// seeds can move value on its behalf.
func (e *Engine) transferSigned(program solana.PublicKey, s signer, source, dest solana.PublicKey, amount uint64) error {
	if err := s.verify(); err != nil {
		return err
	}
	if err := e.ledger.Transfer(program, source, dest, s.address, amount); err != nil {
		return fmt.Errorf("%w: %v", ErrTransfer, err)
	}
	return nil
}

// loadMarketplace fetches a marketplace and re-checks its address against the
// derivation from its stored authority, rejecting tampered records.
func (e *Engine) loadMarketplace(addr solana.PublicKey) (*Marketplace, error) {
	m, ok := e.state.MarketplaceGet(addr)
	if !ok {
		return nil, fmt.Errorf("%w: marketplace %s", ErrNotFound, addr)
	}
	if _, err := pda.Assert(addr, []byte(pda.TagMarketplace), m.Authority.Bytes()); err != nil {
		return nil, err
	}
	m.Address = addr
	return m, nil
}

// loadProduct fetches a product and re-checks its address and marketplace
// back-reference.
func (e *Engine) loadProduct(addr solana.PublicKey) (*Product, error) {
	p, ok := e.state.ProductGet(addr)
	if !ok {
		return nil, fmt.Errorf("%w: product %s", ErrNotFound, addr)
	}
	if _, err := pda.Assert(addr, []byte(pda.TagProduct), p.FirstID[:], p.SecondID[:], p.Marketplace.Bytes()); err != nil {
		return nil, err
	}
	p.Address = addr
	return p, nil
}

// loadReward fetches a reward entity and re-checks its derivation.
func (e *Engine) loadReward(wallet, marketplaceAddr solana.PublicKey) (*Reward, error) {
	addr, _, err := pda.Reward(wallet, marketplaceAddr)
	if err != nil {
		return nil, err
	}
	r, ok := e.state.RewardGet(addr)
	if !ok {
		return nil, fmt.Errorf("%w: reward for %s", ErrNotFound, wallet)
	}
	r.Address = addr
	return r, nil
}

// rentExemptMinimum returns the lamports an entity of the given serialized
// size must hold to persist.
func rentExemptMinimum(size int) uint64 {
	return (uint64(size) + 128) * 6_960
}

// chargeRent debits the payer for the entity's rent-exempt minimum and parks
// it on the entity address, where it stays until the entity is closed.
func (e *Engine) chargeRent(payer, entity solana.PublicKey, size int) error {
	return e.ledger.NativeTransfer(payer, entity, rentExemptMinimum(size))
}

// refundRent drains the entity's parked lamports back to the receiver when
// the entity is closed.
func (e *Engine) refundRent(entity, receiver solana.PublicKey) error {
	acc, err := e.state.GetAccount(entity)
	if err != nil {
		return err
	}
	acc = types.EnsureAccount(acc)
	if acc.Lamports == 0 {
		return nil
	}
	return e.ledger.NativeTransfer(entity, receiver, acc.Lamports)
}
