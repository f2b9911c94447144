package rpc

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"

	"bazaar/core/events"
	"bazaar/core/types"
	"bazaar/native/pda"
	"bazaar/native/token"
	"bazaar/state"
	"bazaar/storage"
)

type rpcFixture struct {
	server  *httptest.Server
	manager *state.Manager
}

func newRPCFixture(t *testing.T) *rpcFixture {
	t.Helper()
	manager := state.NewManager(storage.NewMemDB())
	srv := NewServer(manager, &events.Recorder{}, nil, nil)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return &rpcFixture{server: ts, manager: manager}
}

func (f *rpcFixture) call(t *testing.T, method string, params interface{}) (*RPCResponse, int) {
	t.Helper()
	body := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
	}
	if params != nil {
		body["params"] = []interface{}{params}
	}
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	resp, err := http.Post(f.server.URL, "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	defer resp.Body.Close()

	out := &RPCResponse{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	return out, resp.StatusCode
}

func (f *rpcFixture) mustCall(t *testing.T, method string, params interface{}) json.RawMessage {
	t.Helper()
	resp, status := f.call(t, method, params)
	require.Nil(t, resp.Error, "method %s: %+v", method, resp.Error)
	require.Equal(t, http.StatusOK, status)
	raw, err := json.Marshal(resp.Result)
	require.NoError(t, err)
	return raw
}

var rpcKeyCounter byte

func rpcKey() solana.PublicKey {
	rpcKeyCounter++
	var buf [32]byte
	buf[0] = 0x3c
	buf[31] = rpcKeyCounter
	return solana.PublicKeyFromBytes(buf[:])
}

func (f *rpcFixture) fund(t *testing.T, addr solana.PublicKey, lamports uint64) {
	t.Helper()
	require.NoError(t, f.manager.PutAccount(addr, &types.Account{Lamports: lamports}))
}

func (f *rpcFixture) createFundedMint(t *testing.T, admin, holder solana.PublicKey, amount uint64) solana.PublicKey {
	t.Helper()
	ledger := token.NewLedger(f.manager)
	mint := rpcKey()
	_, err := ledger.InitializeMint(token.InitMintParams{
		Address:       mint,
		ProgramID:     token.ProgramLegacy,
		Decimals:      6,
		MintAuthority: admin,
	})
	require.NoError(t, err)
	ata, err := ledger.CreateAssociatedAccountIfNeeded(holder, mint)
	require.NoError(t, err)
	require.NoError(t, ledger.MintTo(token.ProgramLegacy, mint, ata.Address, admin, amount))
	return mint
}

func TestHealthz(t *testing.T) {
	f := newRPCFixture(t)
	resp, err := http.Get(f.server.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestUnknownMethod(t *testing.T) {
	f := newRPCFixture(t)
	resp, status := f.call(t, "marketplace_doesNotExist", map[string]string{})
	require.Equal(t, http.StatusNotFound, status)
	require.NotNil(t, resp.Error)
	require.Equal(t, codeMethodNotFound, resp.Error.Code)
}

func TestInvalidParams(t *testing.T) {
	f := newRPCFixture(t)
	resp, _ := f.call(t, "marketplace_init", map[string]string{"authority": "not-base58!!"})
	require.NotNil(t, resp.Error)
	require.Equal(t, codeInvalidParams, resp.Error.Code)

	resp, _ = f.call(t, "marketplace_init", map[string]string{"unknownField": "x"})
	require.NotNil(t, resp.Error)
	require.Equal(t, codeInvalidParams, resp.Error.Code)
}

func TestMarketplacePurchaseFlow(t *testing.T) {
	f := newRPCFixture(t)
	authority := rpcKey()
	seller := rpcKey()
	buyer := rpcKey()
	f.fund(t, authority, 100_000_000_000)
	f.fund(t, seller, 100_000_000_000)
	f.fund(t, buyer, 100_000_000_000)
	paymentMint := f.createFundedMint(t, authority, buyer, 10_000_000)

	raw := f.mustCall(t, "marketplace_init", map[string]interface{}{
		"authority":      authority.String(),
		"permissionless": true,
		"tokenConfig":    map[string]bool{"transferable": true, "deliverToken": true},
		"fees":           map[string]interface{}{"fee": 250, "feePayer": "seller"},
	})
	var created struct {
		Address string `json:"address"`
	}
	require.NoError(t, json.Unmarshal(raw, &created))
	require.NotEmpty(t, created.Address)

	raw = f.mustCall(t, "marketplace_initProduct", map[string]interface{}{
		"seller":      seller.String(),
		"marketplace": created.Address,
		"firstId":     "sku-001",
		"secondId":    "variant-a",
		"paymentMint": paymentMint.String(),
		"price":       1_000_000,
	})
	var product struct {
		Address string `json:"address"`
	}
	require.NoError(t, json.Unmarshal(raw, &product))

	raw = f.mustCall(t, "marketplace_registerBuy", map[string]interface{}{
		"buyer":    buyer.String(),
		"product":  product.Address,
		"quantity": 1,
		"mode":     "token",
	})
	var dist struct {
		Total        uint64 `json:"Total"`
		Fee          uint64 `json:"Fee"`
		SellerAmount uint64 `json:"SellerAmount"`
	}
	require.NoError(t, json.Unmarshal(raw, &dist))
	require.Equal(t, uint64(1_000_000), dist.Total)
	require.Equal(t, uint64(25_000), dist.Fee)
	require.Equal(t, uint64(975_000), dist.SellerAmount)

	// The buy persisted through the overlay commit.
	raw = f.mustCall(t, "marketplace_getProduct", map[string]string{"address": product.Address})
	require.NoError(t, json.Unmarshal(raw, &product))

	// A duplicate init fails and must not clobber existing state.
	resp, _ := f.call(t, "marketplace_init", map[string]interface{}{
		"authority":      authority.String(),
		"permissionless": true,
		"tokenConfig":    map[string]bool{"transferable": true, "deliverToken": true},
	})
	require.NotNil(t, resp.Error)
	require.Equal(t, codeInvalidParams, resp.Error.Code)
}

func TestFailedInstructionLeavesNoState(t *testing.T) {
	f := newRPCFixture(t)
	authority := rpcKey()
	f.fund(t, authority, 100_000_000_000)

	// Reward bps above the denominator fails validation after the access
	// mint was created inside the overlay; nothing may leak out.
	resp, _ := f.call(t, "marketplace_init", map[string]interface{}{
		"authority": authority.String(),
		"rewards":   map[string]interface{}{"enabled": true, "sellerReward": 10_001},
	})
	require.NotNil(t, resp.Error)

	addr, _, err := pda.Marketplace(authority)
	require.NoError(t, err)
	resp, _ = f.call(t, "marketplace_get", map[string]string{"address": addr.String()})
	require.NotNil(t, resp.Error)
}
