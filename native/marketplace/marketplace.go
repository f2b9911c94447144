// Package marketplace implements the deterministic settlement and
// reward-accrual core of the marketplace module: root configuration entities,
// per-listing products, token-gated listing access, buyer/seller bounty
// accrual and proof-of-purchase issuance.
//
// Every entity lives at an address derived from a namespace tag and its
// parent keys (see bazaar/native/pda); the derivation is the ownership
// mechanism, so handlers verify the expected address of each account before
// reading any of its fields. Instructions execute atomically: callers run
// them against a transactional state overlay that is committed only when the
// handler returns nil.
package marketplace

// ModuleName identifies the module for pause guards and log attributes.
const ModuleName = "marketplace"
