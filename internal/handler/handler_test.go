package handler

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/GoPolymarket/tradevault/internal/chain/sim"
	"github.com/GoPolymarket/tradevault/internal/middleware"
	"github.com/GoPolymarket/tradevault/internal/model"
	"github.com/GoPolymarket/tradevault/internal/pkg/apperrors"
	"github.com/GoPolymarket/tradevault/internal/service"
	"github.com/GoPolymarket/tradevault/internal/signer"
	"github.com/GoPolymarket/tradevault/internal/vault"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gin-gonic/gin"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	selfAddr = common.HexToAddress("0x00000000000000000000000000000000000000a0")
	poolAddr = common.HexToAddress("0x00000000000000000000000000000000000000b0")
	usdc     = common.HexToAddress("0x00000000000000000000000000000000000000d4")
	weth     = common.HexToAddress("0x00000000000000000000000000000000000000e5")
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	t          *testing.T
	router     *gin.Engine
	ledger     *sim.Ledger
	vault      *vault.Vault
	events     *service.EventService
	controller *signer.Wallet
	stranger   *signer.Wallet
}

func newWallet(t *testing.T) *signer.Wallet {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	w, err := signer.NewWallet(hex.EncodeToString(crypto.FromECDSA(key)))
	require.NoError(t, err)
	return w
}

func newTestServer(t *testing.T, readOnly bool) *testServer {
	t.Helper()
	ledger := sim.NewLedger()
	ledger.Mint(usdc, selfAddr, uint256.NewInt(1_000_000))
	ledger.Mint(weth, poolAddr, uint256.NewInt(100_000_000))
	venue := sim.NewVenue(ledger, poolAddr, sim.FixedRate(2, 1))

	events, err := service.NewEventService(service.EventServiceOptions{}, nil, nil)
	require.NoError(t, err)
	t.Cleanup(events.Close)

	controller := newWallet(t)
	v, err := vault.New(vault.Config{Self: selfAddr, Controller: controller.Address()}, ledger.Account(selfAddr), venue,
		vault.WithEmitter(events),
		vault.WithStore(service.NewMemoryStateStore()),
	)
	require.NoError(t, err)

	router := NewRouter(RouterOptions{
		Vault:            NewVaultHandler(v),
		Events:           NewEventHandler(events, service.NewEventHub()),
		SignatureWindow:  5 * time.Minute,
		Limiter:          middleware.NewCallerLimiter(1000, 1000),
		IdempotencyStore: middleware.NewInMemIdempotencyStore(time.Hour),
		ReadOnly:         readOnly,
	})
	return &testServer{
		t:          t,
		router:     router,
		ledger:     ledger,
		vault:      v,
		events:     events,
		controller: controller,
		stranger:   newWallet(t),
	}
}

func (s *testServer) get(path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func (s *testServer) post(w *signer.Wallet, path string, payload interface{}) *httptest.ResponseRecorder {
	s.t.Helper()
	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		require.NoError(s.t, err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if w != nil {
		ts := time.Now().Unix()
		sig, err := w.SignMessage(signer.RequestMessage(http.MethodPost, path, ts, body))
		require.NoError(s.t, err)
		req.Header.Set(middleware.HeaderCallerAddress, w.Address().Hex())
		req.Header.Set(middleware.HeaderCallerTimestamp, strconv.FormatInt(ts, 10))
		req.Header.Set(middleware.HeaderCallerSignature, sig)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) mustOK(rec *httptest.ResponseRecorder) {
	s.t.Helper()
	require.Equal(s.t, http.StatusOK, rec.Code, rec.Body.String())
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) apperrors.ErrorType {
	t.Helper()
	return decode[apperrors.AppError](t, rec).Type
}

func (s *testServer) prepareTrade() {
	s.mustOK(s.post(s.controller, "/v1/assets/allowed", map[string]interface{}{"asset": usdc.Hex(), "allowed": true}))
	s.mustOK(s.post(s.controller, "/v1/assets/allowed", map[string]interface{}{"asset": weth.Hex(), "allowed": true}))
	s.mustOK(s.post(s.controller, "/v1/balances/"+usdc.Hex(), model.BalanceRequest{Amount: "1000000"}))
	s.mustOK(s.post(s.controller, "/v1/trade/config", model.TradeConfigRequest{
		InputAsset:      usdc.Hex(),
		OutputAsset:     weth.Hex(),
		FeeTier:         3000,
		InputAmount:     "200000",
		MinOutputAmount: "390000",
		Deadline:        time.Now().Add(time.Hour).Unix(),
	}))
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, false)
	rec := s.get("/health")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "tradevault")
}

func TestStatus_ReportsController(t *testing.T) {
	s := newTestServer(t, false)
	status := decode[model.StatusResponse](t, s.get("/v1/status"))
	assert.Equal(t, s.controller.Address().Hex(), status.Controller)
	assert.Equal(t, selfAddr.Hex(), status.Self)
	assert.False(t, status.Running)
	assert.Equal(t, s.controller.Address().Hex(), status.SweepDestination)
}

func TestControl_RequiresSignedController(t *testing.T) {
	s := newTestServer(t, false)

	rec := s.post(nil, "/v1/start", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, apperrors.ErrAuthFailed, errorCode(t, rec))

	rec = s.post(s.stranger, "/v1/start", nil)
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, apperrors.ErrUnauthorized, errorCode(t, rec))
	assert.False(t, s.vault.Running())

	s.mustOK(s.post(s.controller, "/v1/start", nil))
	assert.True(t, s.vault.Running())
}

func TestTradeFlow(t *testing.T) {
	s := newTestServer(t, false)
	s.prepareTrade()

	rec := s.post(s.controller, "/v1/trade/execute", nil)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, apperrors.ErrNotRunning, errorCode(t, rec))

	estimate := decode[model.EstimateResponse](t, s.get("/v1/trade/estimate"))
	assert.Equal(t, "398800", estimate.AmountOut)

	s.mustOK(s.post(s.controller, "/v1/start", nil))
	rec = s.post(s.controller, "/v1/trade/execute", nil)
	s.mustOK(rec)
	result := decode[model.TradeResultResponse](t, rec)
	assert.Equal(t, string(vault.PhaseSettled), result.Phase)
	assert.Equal(t, "200000", result.AmountIn)
	assert.Equal(t, "398800", result.AmountOut)

	last := decode[model.TradeResultResponse](t, s.get("/v1/trade/last"))
	assert.Equal(t, result.AmountOut, last.AmountOut)

	balances := decode[[]model.BalanceEntry](t, s.get("/v1/balances?onchain=true"))
	require.Len(t, balances, 2)
	byAsset := map[string]model.BalanceEntry{}
	for _, b := range balances {
		byAsset[b.Asset] = b
	}
	assert.Equal(t, "800000", byAsset[usdc.Hex()].Recorded)
	assert.Equal(t, "800000", byAsset[usdc.Hex()].Onchain)
	assert.Equal(t, "398800", byAsset[weth.Hex()].Recorded)

	events := decode[[]vault.Event](t, s.get("/v1/events?type="+vault.EventTypeTradeExecuted))
	require.Len(t, events, 1)
	assert.Equal(t, "398800", events[0].Attributes["amount_out"])
}

func TestWithdrawAndSweep_PayController(t *testing.T) {
	s := newTestServer(t, false)
	ctrl := s.controller.Address()
	s.mustOK(s.post(s.controller, "/v1/balances/"+usdc.Hex(), model.BalanceRequest{Amount: "1000000"}))

	rec := s.post(s.controller, "/v1/withdraw", model.WithdrawRequest{Asset: usdc.Hex(), Amount: "250000"})
	s.mustOK(rec)
	assert.Equal(t, "250000", s.ledger.BalanceOf(usdc, ctrl).Dec())
	assert.Equal(t, "750000", s.vault.RecordedBalance(usdc).Dec())

	rec = s.post(s.stranger, "/v1/withdraw", model.WithdrawRequest{Asset: usdc.Hex(), Amount: "1"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.post(s.controller, "/v1/sweep/"+usdc.Hex(), nil)
	s.mustOK(rec)
	assert.Equal(t, "750000", decode[model.AmountResponse](t, rec).Amount)
	assert.Equal(t, "1000000", s.ledger.BalanceOf(usdc, ctrl).Dec())
	assert.True(t, s.vault.RecordedBalance(usdc).IsZero())
}

func TestSweepDestinationAndController(t *testing.T) {
	s := newTestServer(t, false)
	dest := common.HexToAddress("0x0000000000000000000000000000000000000d57")

	s.mustOK(s.post(s.controller, "/v1/sweep/destination", model.AddressRequest{Address: dest.Hex()}))
	s.mustOK(s.post(s.controller, "/v1/sweep/"+usdc.Hex(), nil))
	assert.Equal(t, "1000000", s.ledger.BalanceOf(usdc, dest).Dec())

	next := newWallet(t)
	s.mustOK(s.post(s.controller, "/v1/controller", model.AddressRequest{Address: next.Address().Hex()}))
	assert.Equal(t, http.StatusForbidden, s.post(s.controller, "/v1/start", nil).Code)
	s.mustOK(s.post(next, "/v1/start", nil))
}

func TestBounds(t *testing.T) {
	s := newTestServer(t, false)

	s.mustOK(s.post(s.controller, "/v1/bounds/trade_percent", model.BoundRequest{Value: "25"}))
	assert.Equal(t, uint64(25), decode[model.BoundsResponse](t, s.get("/v1/bounds")).TradePercent)

	rec := s.post(s.controller, "/v1/bounds/trade_percent", model.BoundRequest{Value: "101"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, apperrors.ErrInvalidPercent, errorCode(t, rec))

	rec = s.post(s.controller, "/v1/bounds/min_trade_amount", model.BoundRequest{Value: "1.5"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, apperrors.ErrInvalidRequest, errorCode(t, rec))

	rec = s.post(s.controller, "/v1/bounds/leverage", model.BoundRequest{Value: "2"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAllowList(t *testing.T) {
	s := newTestServer(t, false)
	s.mustOK(s.post(s.controller, "/v1/assets/allowed", map[string]interface{}{"asset": weth.Hex(), "allowed": true}))

	got := decode[model.AssetAllowedResponse](t, s.get("/v1/assets/allowed/"+weth.Hex()))
	assert.True(t, got.Allowed)
	assert.Equal(t, []string{weth.Hex()}, decode[[]string](t, s.get("/v1/assets/allowed")))

	rec := s.post(s.controller, "/v1/assets/allowed", map[string]interface{}{"asset": weth.Hex()})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.get("/v1/assets/allowed/not-an-address")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReadOnly_BlocksStartButAllowsStop(t *testing.T) {
	s := newTestServer(t, true)

	rec := s.post(s.controller, "/v1/start", nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, apperrors.ErrReadOnly, errorCode(t, rec))

	s.mustOK(s.post(s.controller, "/v1/stop", nil))
	s.mustOK(s.get("/v1/status"))
}

func TestTradeConfig_NotFoundUntilSet(t *testing.T) {
	s := newTestServer(t, false)
	assert.Equal(t, http.StatusNotFound, s.get("/v1/trade/config").Code)
	assert.Equal(t, http.StatusNotFound, s.get("/v1/trade/last").Code)

	s.prepareTrade()
	cfg := decode[model.TradeConfigResponse](t, s.get("/v1/trade/config"))
	assert.Equal(t, "200000", cfg.InputAmount)
	assert.Equal(t, uint32(3000), cfg.FeeTier)
}
