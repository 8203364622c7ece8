package translate

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alerttrader/internal/broker"
	"alerttrader/internal/config"
	"alerttrader/internal/signal"
)

type fakeVenue struct {
	positions []broker.Position
	posErr    error
	placeErr  error
	orders    []broker.OrderRequest
	cancelled []string
	calls     []string
}

func (v *fakeVenue) Positions(context.Context) ([]broker.Position, error) {
	return v.positions, v.posErr
}

func (v *fakeVenue) PlaceOrder(_ context.Context, order broker.OrderRequest) (broker.OrderResponse, error) {
	v.calls = append(v.calls, "place")
	if v.placeErr != nil {
		return broker.OrderResponse{}, v.placeErr
	}
	v.orders = append(v.orders, order)
	return broker.OrderResponse{OrderID: "o-1"}, nil
}

func (v *fakeVenue) CancelOrders(_ context.Context, orderIDs ...string) error {
	v.calls = append(v.calls, "cancel")
	v.cancelled = append(v.cancelled, orderIDs...)
	return nil
}

func testConfig() Config {
	return Config{
		TradeSize:       map[string]float64{"SPX": 70, "NDX": 5},
		OrderPreference: broker.OrderTypeMarket,
		Instruments: map[string]config.Instrument{
			"SPX": {Uic: 4913, AssetType: "CfdOnIndex", StoplossPoints: 10, ReferencePrice: 3946},
			"NDX": {Uic: 4912, AssetType: "CfdOnIndex", StoplossPoints: 25, ReferencePrice: 11946},
		},
		CloseMaxAge: 60 * time.Minute,
	}
}

func mustParse(t *testing.T, raw string) signal.Signal {
	t.Helper()
	sig, err := signal.Parse(raw)
	require.NoError(t, err)
	return sig
}

func spxPosition(id string, amount float64, openPrice float64, age time.Duration, now time.Time, stopPrice float64) broker.Position {
	p := broker.Position{
		PositionID: id,
		Base: broker.PositionBase{
			Amount:            amount,
			AssetType:         "CfdOnIndex",
			ExecutionTimeOpen: now.Add(-age),
			OpenPrice:         openPrice,
			Status:            "Open",
			Uic:               4913,
		},
	}
	if stopPrice != 0 {
		p.Base.RelatedOpenOrders = []broker.RelatedOrder{
			{OrderID: "stop-" + id, OpenOrderType: broker.OrderTypeStopIfTraded, OrderPrice: stopPrice},
		}
	}
	return p
}

func TestExecuteTradeLong(t *testing.T) {
	venue := &fakeVenue{}
	tr := New(venue, testConfig())

	orders, err := tr.Execute(context.Background(), mustParse(t, "SPX_TRADE_LONG_IN_4000_SL_10"))
	require.NoError(t, err)
	require.Len(t, orders, 1)
	require.Len(t, venue.orders, 1)

	order := venue.orders[0]
	assert.Equal(t, 4913, order.Uic)
	assert.Equal(t, broker.BuySide, order.BuySell)
	assert.Equal(t, 70.0, order.Amount)
	assert.Equal(t, broker.OrderTypeMarket, order.OrderType)
	assert.Equal(t, broker.DurationDay, order.OrderDuration.DurationType)

	require.Len(t, order.Orders, 1)
	stop := order.Orders[0]
	assert.Equal(t, broker.OrderTypeStopIfTraded, stop.OrderType)
	assert.Equal(t, broker.SellSide, stop.BuySell)
	assert.Equal(t, 3990.0, stop.OrderPrice)
	assert.Equal(t, broker.DurationGTC, stop.OrderDuration.DurationType)
}

func TestExecuteTradeShort(t *testing.T) {
	venue := &fakeVenue{}
	tr := New(venue, testConfig())

	_, err := tr.Execute(context.Background(), mustParse(t, "NDX_TRADE_SHORT_IN_11348_SL_25"))
	require.NoError(t, err)
	require.Len(t, venue.orders, 1)

	order := venue.orders[0]
	assert.Equal(t, broker.SellSide, order.BuySell)
	require.Len(t, order.Orders, 1)
	assert.Equal(t, broker.BuySide, order.Orders[0].BuySell)
	assert.Equal(t, 11373.0, order.Orders[0].OrderPrice)
}

func TestExecuteTradeLimitPreference(t *testing.T) {
	venue := &fakeVenue{}
	cfg := testConfig()
	cfg.OrderPreference = broker.OrderTypeLimit
	tr := New(venue, cfg)

	_, err := tr.Execute(context.Background(), mustParse(t, "SPX_TRADE_LONG_IN_4000_SL_10"))
	require.NoError(t, err)
	require.Len(t, venue.orders, 1)
	assert.Equal(t, broker.OrderTypeLimit, venue.orders[0].OrderType)
	assert.Equal(t, 4000.0, venue.orders[0].OrderPrice)
}

func TestExecuteLimitSignal(t *testing.T) {
	venue := &fakeVenue{}
	tr := New(venue, testConfig()) // market preference must not matter

	_, err := tr.Execute(context.Background(), mustParse(t, "SPX_LIMIT_LONG_IN_3749_OUT_3739_SL_10"))
	require.NoError(t, err)
	require.Len(t, venue.orders, 1)
	assert.Equal(t, broker.OrderTypeLimit, venue.orders[0].OrderType)
	assert.Equal(t, 3749.0, venue.orders[0].OrderPrice)
	require.Len(t, venue.orders[0].Orders, 1)
	assert.Equal(t, 3739.0, venue.orders[0].Orders[0].OrderPrice)
}

func TestExecuteScaleOut(t *testing.T) {
	venue := &fakeVenue{}
	tr := New(venue, testConfig())

	_, err := tr.Execute(context.Background(), mustParse(t, "SPX_SCALEOUT_IN_3809_OUT_4153_POINTS_344"))
	require.NoError(t, err)
	require.Len(t, venue.orders, 1)

	// Long position scaling out: the netting order sells a quarter size.
	order := venue.orders[0]
	assert.Equal(t, broker.SellSide, order.BuySell)
	assert.Equal(t, 18.0, order.Amount)
	assert.Empty(t, order.Orders)
}

func TestExecuteScaleOutShort(t *testing.T) {
	venue := &fakeVenue{}
	tr := New(venue, testConfig())

	_, err := tr.Execute(context.Background(), mustParse(t, "SPX_SCALEOUT_IN_4153_OUT_3809_POINTS_344"))
	require.NoError(t, err)
	require.Len(t, venue.orders, 1)
	assert.Equal(t, broker.BuySide, venue.orders[0].BuySell)
}

func TestExecuteFlatReplacesStop(t *testing.T) {
	now := time.Now()
	venue := &fakeVenue{positions: []broker.Position{
		spxPosition("p1", 70, 4000, 10*time.Minute, now, 3990), // stop below open
		spxPosition("p2", 70, 4100, 10*time.Minute, now, 4100), // already at open
	}}
	tr := New(venue, testConfig())
	tr.now = func() time.Time { return now }

	orders, err := tr.Execute(context.Background(), mustParse(t, "SPX_FLAT"))
	require.NoError(t, err)
	require.Len(t, orders, 1)

	assert.Equal(t, []string{"stop-p1"}, venue.cancelled)
	stop := venue.orders[0]
	assert.Equal(t, broker.OrderTypeStopIfTraded, stop.OrderType)
	assert.Equal(t, 4000.0, stop.OrderPrice)
	assert.Equal(t, "p1", stop.PositionID)
	assert.Equal(t, broker.SellSide, stop.BuySell)
}

func TestExecuteFlatCancelsOldStopAfterReplacement(t *testing.T) {
	now := time.Now()
	venue := &fakeVenue{positions: []broker.Position{
		spxPosition("p1", 70, 4000, 10*time.Minute, now, 3990),
	}}
	tr := New(venue, testConfig())
	tr.now = func() time.Time { return now }

	_, err := tr.Execute(context.Background(), mustParse(t, "SPX_FLAT"))
	require.NoError(t, err)
	assert.Equal(t, []string{"place", "cancel"}, venue.calls)
}

func TestExecuteFlatKeepsOldStopWhenReplacementFails(t *testing.T) {
	now := time.Now()
	venue := &fakeVenue{
		positions: []broker.Position{spxPosition("p1", 70, 4000, 10*time.Minute, now, 3990)},
		placeErr:  &broker.APIError{Status: http.StatusInternalServerError, Path: "/trade/v2/orders"},
	}
	tr := New(venue, testConfig())
	tr.now = func() time.Time { return now }

	_, err := tr.Execute(context.Background(), mustParse(t, "SPX_FLAT"))
	require.Error(t, err)
	// The position must stay protected by its existing stop.
	assert.Empty(t, venue.cancelled)
}

func TestExecuteFlatAddsMissingStop(t *testing.T) {
	now := time.Now()
	venue := &fakeVenue{positions: []broker.Position{
		spxPosition("p1", -70, 4000, 10*time.Minute, now, 0),
	}}
	tr := New(venue, testConfig())
	tr.now = func() time.Time { return now }

	_, err := tr.Execute(context.Background(), mustParse(t, "SPX_FLAT"))
	require.NoError(t, err)
	assert.Empty(t, venue.cancelled)
	require.Len(t, venue.orders, 1)
	assert.Equal(t, broker.BuySide, venue.orders[0].BuySell)
	assert.Equal(t, 70.0, venue.orders[0].Amount)
}

func TestExecuteFlatProfitOnly(t *testing.T) {
	now := time.Now()
	loser := spxPosition("p1", 70, 4000, 10*time.Minute, now, 3990)
	loser.View.ProfitLossOnTrade = -50
	venue := &fakeVenue{positions: []broker.Position{loser}}

	cfg := testConfig()
	cfg.ProfitOnlyFlat = true
	tr := New(venue, cfg)
	tr.now = func() time.Time { return now }

	orders, err := tr.Execute(context.Background(), mustParse(t, "SPX_FLAT"))
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestExecuteClosedAgeWindow(t *testing.T) {
	now := time.Now()
	venue := &fakeVenue{positions: []broker.Position{
		spxPosition("fresh", 70, 4000, 30*time.Minute, now, 3990),
		spxPosition("stale", 70, 4000, 61*time.Minute, now, 3990),
		spxPosition("foreign", 70, 4000, 5*time.Minute, now, 0),
	}}
	tr := New(venue, testConfig())
	tr.now = func() time.Time { return now }

	orders, err := tr.Execute(context.Background(), mustParse(t, "SPX_CLOSED"))
	require.NoError(t, err)
	require.Len(t, orders, 1)

	order := venue.orders[0]
	assert.Equal(t, "fresh", order.PositionID)
	assert.Equal(t, broker.SellSide, order.BuySell)
	assert.Equal(t, 70.0, order.Amount)
	assert.Equal(t, broker.OrderTypeMarket, order.OrderType)
}

func TestExecuteClosedSkipsGonePositions(t *testing.T) {
	now := time.Now()
	venue := &fakeVenue{
		positions: []broker.Position{
			spxPosition("p1", 70, 4000, 10*time.Minute, now, 3990),
			spxPosition("p2", 70, 4100, 20*time.Minute, now, 4090),
		},
		placeErr: &broker.APIError{Status: http.StatusNotFound, Path: "/trade/v2/orders"},
	}
	tr := New(venue, testConfig())
	tr.now = func() time.Time { return now }

	// Positions already gone on the venue are logged and skipped, not fatal.
	orders, err := tr.Execute(context.Background(), mustParse(t, "SPX_CLOSED"))
	require.NoError(t, err)
	assert.Empty(t, orders)
	assert.Equal(t, []string{"place", "place"}, venue.calls)
}

func TestExecuteFlatStopIsNoop(t *testing.T) {
	venue := &fakeVenue{}
	tr := New(venue, testConfig())

	orders, err := tr.Execute(context.Background(), mustParse(t, "SPX_FLATSTOP"))
	require.NoError(t, err)
	assert.Empty(t, orders)
	assert.Empty(t, venue.orders)
}

func TestExecuteValidation(t *testing.T) {
	venue := &fakeVenue{}
	tr := New(venue, testConfig())

	_, err := tr.Execute(context.Background(), signal.Signal{Symbol: "VIX", Action: signal.Trade, Direction: signal.Long, Entry: 20, StopPoints: 9})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "VIX", verr.Symbol)

	cfg := testConfig()
	delete(cfg.TradeSize, "SPX")
	tr = New(venue, cfg)
	_, err = tr.Execute(context.Background(), mustParse(t, "SPX_TRADE_LONG_IN_4000_SL_10"))
	require.ErrorAs(t, err, &verr)
	assert.Empty(t, venue.orders)
}
