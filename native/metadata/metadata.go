// Package metadata tracks the descriptive records attached to mints: name,
// symbol and URI, plus the master-edition and sized-collection markers that
// receipt mints rely on.
package metadata

import (
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

var (
	// ErrNilState indicates the registry was used before wiring a backend.
	ErrNilState = errors.New("metadata: state backend not configured")
	// ErrExists indicates a metadata record is already attached to the mint.
	ErrExists = errors.New("metadata: record already exists")
	// ErrNotFound indicates no metadata record exists for the mint.
	ErrNotFound = errors.New("metadata: record not found")
	// ErrWrongAuthority indicates the caller does not hold update authority.
	ErrWrongAuthority = errors.New("metadata: wrong update authority")
	// ErrNotCollection indicates the referenced mint is not a sized collection.
	ErrNotCollection = errors.New("metadata: mint is not a sized collection")
	// ErrNameTooLong indicates a name over the 32-byte canvas limit.
	ErrNameTooLong = errors.New("metadata: name too long")
	// ErrSymbolTooLong indicates a symbol over the 10-byte canvas limit.
	ErrSymbolTooLong = errors.New("metadata: symbol too long")
	// ErrURITooLong indicates a URI over the 200-byte canvas limit.
	ErrURITooLong = errors.New("metadata: uri too long")
)

const (
	maxNameLength   = 32
	maxSymbolLength = 10
	maxURILength    = 200
)

// Record is the persisted metadata for one mint.
type Record struct {
	Mint            solana.PublicKey
	UpdateAuthority solana.PublicKey
	Name            string
	Symbol          string
	URI             string
	// SellerFeeBps is carried verbatim into minted receipts.
	SellerFeeBps uint16
	// MasterEdition marks the mint as a one-of-one with a zero max supply.
	MasterEdition bool
	// SizedCollection marks the mint as a collection parent whose Size
	// counts verified members.
	SizedCollection bool
	Size            uint64
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	clone := *r
	return &clone
}

// State is the persistence surface required by the registry.
type State interface {
	MetadataGet(mint solana.PublicKey) (*Record, bool)
	MetadataPut(record *Record) error
}

// Registry validates and stores metadata records.
type Registry struct {
	state State
}

// NewRegistry constructs a registry over the supplied backend.
func NewRegistry(state State) *Registry {
	return &Registry{state: state}
}

func validateCanvas(name, symbol, uri string) error {
	if len(name) > maxNameLength {
		return ErrNameTooLong
	}
	if len(symbol) > maxSymbolLength {
		return ErrSymbolTooLong
	}
	if len(uri) > maxURILength {
		return ErrURITooLong
	}
	return nil
}

// Create attaches a metadata record to a mint. The mint must not already
// carry one.
func (r *Registry) Create(record Record) error {
	if r == nil || r.state == nil {
		return ErrNilState
	}
	if err := validateCanvas(record.Name, record.Symbol, record.URI); err != nil {
		return err
	}
	if _, ok := r.state.MetadataGet(record.Mint); ok {
		return fmt.Errorf("%w: %s", ErrExists, record.Mint)
	}
	record.Size = 0
	return r.state.MetadataPut(&record)
}

// Get returns the record for a mint.
func (r *Registry) Get(mint solana.PublicKey) (*Record, error) {
	if r == nil || r.state == nil {
		return nil, ErrNilState
	}
	record, ok := r.state.MetadataGet(mint)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, mint)
	}
	return record, nil
}

// CreateMasterEdition flags an existing record as a master edition. Only the
// update authority may do this.
func (r *Registry) CreateMasterEdition(mint, authority solana.PublicKey) error {
	record, err := r.Get(mint)
	if err != nil {
		return err
	}
	if !record.UpdateAuthority.Equals(authority) {
		return ErrWrongAuthority
	}
	record.MasterEdition = true
	return r.state.MetadataPut(record)
}

// VerifyCollectionItem counts one more verified member into a sized
// collection. The caller must hold the collection's update authority.
func (r *Registry) VerifyCollectionItem(collection, authority solana.PublicKey) error {
	record, err := r.Get(collection)
	if err != nil {
		return err
	}
	if !record.UpdateAuthority.Equals(authority) {
		return ErrWrongAuthority
	}
	if !record.SizedCollection {
		return fmt.Errorf("%w: %s", ErrNotCollection, collection)
	}
	record.Size++
	return r.state.MetadataPut(record)
}
