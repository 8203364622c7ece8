// Package translate turns classified signals into venue orders and drives
// the serial execution loop.
package translate

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"alerttrader/internal/broker"
	"alerttrader/internal/config"
	"alerttrader/internal/observ"
	"alerttrader/internal/signal"
)

// Venue is the slice of the broker client the translator needs.
type Venue interface {
	Positions(ctx context.Context) ([]broker.Position, error)
	PlaceOrder(ctx context.Context, order broker.OrderRequest) (broker.OrderResponse, error)
	CancelOrders(ctx context.Context, orderIDs ...string) error
}

// ValidationError rejects a signal before anything is sent to the venue.
type ValidationError struct {
	Symbol string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("signal for %s rejected: %s", e.Symbol, e.Reason)
}

// Config is the per-account translation configuration.
type Config struct {
	TradeSize       map[string]float64
	OrderPreference string // Market | Limit
	Instruments     map[string]config.Instrument
	CloseMaxAge     time.Duration
	ProfitOnlyFlat  bool
}

// Translator converts one signal into zero or more venue orders. All
// validation happens before the first submit so a bad signal never places a
// partial set of orders.
type Translator struct {
	venue Venue
	cfg   Config

	now func() time.Time
}

func New(venue Venue, cfg Config) *Translator {
	if cfg.CloseMaxAge <= 0 {
		cfg.CloseMaxAge = 60 * time.Minute
	}
	return &Translator{venue: venue, cfg: cfg, now: time.Now}
}

// Execute places the orders a signal calls for and returns the submitted
// payloads for auditing.
func (t *Translator) Execute(ctx context.Context, sig signal.Signal) ([]broker.OrderRequest, error) {
	inst, ok := t.cfg.Instruments[sig.Symbol]
	if !ok {
		return nil, &ValidationError{Symbol: sig.Symbol, Reason: "symbol not in instrument registry"}
	}

	switch sig.Action {
	case signal.Trade:
		return t.enter(ctx, sig, inst, t.cfg.OrderPreference)
	case signal.Limit:
		return t.enter(ctx, sig, inst, broker.OrderTypeLimit)
	case signal.ScaleOut:
		return t.scaleOut(ctx, sig, inst)
	case signal.Flat:
		return t.flatten(ctx, sig, inst)
	case signal.Closed:
		return t.closeAll(ctx, sig, inst)
	case signal.FlatStop:
		// Informational only: the venue already executed our protective stop.
		observ.Log("signal_flatstop_noop", map[string]any{"symbol": sig.Symbol, "alert_id": sig.AlertID})
		return nil, nil
	}
	return nil, &ValidationError{Symbol: sig.Symbol, Reason: fmt.Sprintf("unknown action %q", sig.Action)}
}

// enter opens a position with an attached protective stop.
func (t *Translator) enter(ctx context.Context, sig signal.Signal, inst config.Instrument, orderType string) ([]broker.OrderRequest, error) {
	size, ok := t.cfg.TradeSize[sig.Symbol]
	if !ok || size <= 0 {
		return nil, &ValidationError{Symbol: sig.Symbol, Reason: "no trade size configured"}
	}

	side := broker.SellSide
	stopPrice := float64(sig.Entry + sig.StopPoints)
	if sig.Direction == signal.Long {
		side = broker.BuySide
		stopPrice = float64(sig.Entry - sig.StopPoints)
	}

	order := broker.OrderRequest{
		Uic:           inst.Uic,
		AssetType:     inst.AssetType,
		OrderType:     orderType,
		BuySell:       side,
		Amount:        size,
		OrderDuration: broker.OrderDuration{DurationType: broker.DurationDay},
		Orders: []broker.OrderRequest{
			stopOrder(inst, opposite(side), size, stopPrice),
		},
	}
	if orderType == broker.OrderTypeLimit {
		order.OrderPrice = float64(sig.Entry)
	}
	return t.submit(ctx, sig, order)
}

// scaleOut books partial profit by netting a quarter of the configured size
// against the open position. The venue nets opposing positions; a true
// partial close is not available.
func (t *Translator) scaleOut(ctx context.Context, sig signal.Signal, inst config.Instrument) ([]broker.OrderRequest, error) {
	size, ok := t.cfg.TradeSize[sig.Symbol]
	if !ok || size <= 0 {
		return nil, &ValidationError{Symbol: sig.Symbol, Reason: "no trade size configured"}
	}

	side := broker.SellSide
	if sig.Entry > sig.Exit {
		side = broker.BuySide
	}
	order := broker.OrderRequest{
		Uic:           inst.Uic,
		AssetType:     inst.AssetType,
		OrderType:     t.cfg.OrderPreference,
		BuySell:       side,
		Amount:        math.Round(size * 0.25),
		OrderDuration: broker.OrderDuration{DurationType: broker.DurationDay},
	}
	if t.cfg.OrderPreference == broker.OrderTypeLimit {
		order.OrderPrice = float64(sig.Exit)
	}
	return t.submit(ctx, sig, order)
}

// flatten moves each open position's protective stop to its open price so
// the trade can no longer lose money.
func (t *Translator) flatten(ctx context.Context, sig signal.Signal, inst config.Instrument) ([]broker.OrderRequest, error) {
	positions, err := t.openPositions(ctx, sig.Symbol)
	if err != nil {
		return nil, err
	}

	var placed []broker.OrderRequest
	for _, p := range positions {
		if t.cfg.ProfitOnlyFlat && p.View.ProfitLossOnTrade <= 0 {
			continue
		}
		stop := p.Stop()
		if stop.Set && stop.Price == p.Base.OpenPrice {
			observ.Log("flat_already_at_open", map[string]any{"position": p.PositionID})
			continue
		}

		side := broker.SellSide
		if p.Base.Amount < 0 {
			side = broker.BuySide
		}
		order := stopOrder(inst, side, math.Abs(p.Base.Amount), p.Base.OpenPrice)
		order.PositionID = p.PositionID
		orders, err := t.submit(ctx, sig, order)
		placed = append(placed, orders...)
		if err != nil {
			if skipGonePosition(err, p.PositionID) {
				continue
			}
			return placed, err
		}

		// The old stop goes only after the replacement is working; a failed
		// replacement must never leave the position unprotected.
		if stop.Set {
			stopID := relatedStopID(p)
			if err := t.venue.CancelOrders(ctx, stopID); err != nil {
				return placed, fmt.Errorf("cancel stop %s: %w", stopID, err)
			}
		}
	}
	return placed, nil
}

// closeAll exits every recent position we opened on the symbol. Positions
// without a protective stop were opened manually and are left alone, as are
// positions older than the close window.
func (t *Translator) closeAll(ctx context.Context, sig signal.Signal, inst config.Instrument) ([]broker.OrderRequest, error) {
	positions, err := t.openPositions(ctx, sig.Symbol)
	if err != nil {
		return nil, err
	}

	var placed []broker.OrderRequest
	for _, p := range positions {
		if len(p.Base.RelatedOpenOrders) == 0 {
			observ.Log("close_skip_foreign", map[string]any{"position": p.PositionID})
			continue
		}
		if age := p.Age(t.now()); age > t.cfg.CloseMaxAge {
			observ.Log("close_skip_stale", map[string]any{"position": p.PositionID, "age": age.String()})
			continue
		}

		side := broker.SellSide
		if p.Base.Amount < 0 {
			side = broker.BuySide
		}
		order := broker.OrderRequest{
			Uic:           inst.Uic,
			AssetType:     inst.AssetType,
			OrderType:     broker.OrderTypeMarket,
			BuySell:       side,
			Amount:        math.Abs(p.Base.Amount),
			PositionID:    p.PositionID,
			OrderDuration: broker.OrderDuration{DurationType: broker.DurationDay},
		}
		orders, err := t.submit(ctx, sig, order)
		placed = append(placed, orders...)
		if err != nil {
			if skipGonePosition(err, p.PositionID) {
				continue
			}
			return placed, err
		}
	}
	return placed, nil
}

func (t *Translator) openPositions(ctx context.Context, symbol string) ([]broker.Position, error) {
	all, err := t.venue.Positions(ctx)
	if err != nil {
		return nil, err
	}
	return broker.FilterPositions(all, broker.FilterOptions{
		Symbol:     symbol,
		Statuses:   []string{"Open"},
		AssetTypes: t.assetTypes(),
		Resolve:    t.resolveUic,
	}), nil
}

func (t *Translator) submit(ctx context.Context, sig signal.Signal, order broker.OrderRequest) ([]broker.OrderRequest, error) {
	resp, err := t.venue.PlaceOrder(ctx, order)
	if err != nil {
		var apiErr *broker.APIError
		if order.PositionID != "" && errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
			return nil, &broker.PositionNotFoundError{PositionID: order.PositionID}
		}
		return nil, err
	}
	observ.Log("order_placed", map[string]any{
		"order_id": resp.OrderID,
		"symbol":   sig.Symbol,
		"signal":   sig.String(),
		"side":     order.BuySell,
		"amount":   order.Amount,
		"type":     order.OrderType,
	})
	observ.IncCounter("orders_placed_total", map[string]string{"symbol": sig.Symbol, "action": string(sig.Action)})
	return []broker.OrderRequest{order}, nil
}

func (t *Translator) assetTypes() []string {
	seen := map[string]bool{}
	var out []string
	for _, inst := range t.cfg.Instruments {
		if !seen[inst.AssetType] {
			out = append(out, inst.AssetType)
			seen[inst.AssetType] = true
		}
	}
	return out
}

func (t *Translator) resolveUic(uic int) string {
	for sym, inst := range t.cfg.Instruments {
		if inst.Uic == uic {
			return sym
		}
	}
	return ""
}

func stopOrder(inst config.Instrument, side string, amount, price float64) broker.OrderRequest {
	return broker.OrderRequest{
		Uic:           inst.Uic,
		AssetType:     inst.AssetType,
		OrderType:     broker.OrderTypeStopIfTraded,
		BuySell:       side,
		Amount:        amount,
		OrderPrice:    price,
		OrderDuration: broker.OrderDuration{DurationType: broker.DurationGTC},
	}
}

// skipGonePosition logs and absorbs orders rejected because the referenced
// position no longer exists; the remaining positions are still processed.
func skipGonePosition(err error, positionID string) bool {
	var pnf *broker.PositionNotFoundError
	if !errors.As(err, &pnf) {
		return false
	}
	observ.Warn("position_gone_skipped", map[string]any{"position": positionID})
	return true
}

func opposite(side string) string {
	if side == broker.BuySide {
		return broker.SellSide
	}
	return broker.BuySide
}

func relatedStopID(p broker.Position) string {
	for _, o := range p.Base.RelatedOpenOrders {
		if o.OpenOrderType == broker.OrderTypeStopIfTraded || o.OpenOrderType == "Stop" {
			return o.OrderID
		}
	}
	return ""
}
