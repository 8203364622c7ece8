package broker

import (
	"time"
)

// Position wire shapes mirror the venue's response fields verbatim; only the
// fields the translator consumes are mapped.

type RelatedOrder struct {
	OrderID       string  `json:"OrderId"`
	OpenOrderType string  `json:"OpenOrderType"`
	OrderPrice    float64 `json:"OrderPrice"`
}

type PositionBase struct {
	Amount             float64        `json:"Amount"`
	AssetType          string         `json:"AssetType"`
	ExecutionTimeOpen  time.Time      `json:"ExecutionTimeOpen"`
	ExecutionTimeClose time.Time      `json:"ExecutionTimeClose"`
	OpenPrice          float64        `json:"OpenPrice"`
	Status             string         `json:"Status"`
	Uic                int            `json:"Uic"`
	RelatedOpenOrders  []RelatedOrder `json:"RelatedOpenOrders"`
}

type PositionView struct {
	ProfitLossOnTrade float64 `json:"ProfitLossOnTrade"`
	CurrentPrice      float64 `json:"CurrentPrice"`
}

type Position struct {
	PositionID string       `json:"PositionId"`
	Base       PositionBase `json:"PositionBase"`
	View       PositionView `json:"PositionView"`
}

type PositionList struct {
	Count int        `json:"__count"`
	Data  []Position `json:"Data"`
}

// Age returns how long the position has been open.
func (p Position) Age(now time.Time) time.Duration {
	return now.Sub(p.Base.ExecutionTimeOpen)
}

// StopDetails describes the protective stop attached to a position, if any.
type StopDetails struct {
	Set    bool
	Price  float64
	Points float64 // distance from the open price
}

// Stop returns the position's attached protective stop. The venue reports it
// as a related open order of stop type.
func (p Position) Stop() StopDetails {
	for _, o := range p.Base.RelatedOpenOrders {
		if o.OpenOrderType == OrderTypeStopIfTraded || o.OpenOrderType == "Stop" {
			return StopDetails{
				Set:    true,
				Price:  o.OrderPrice,
				Points: p.Base.OpenPrice - o.OrderPrice,
			}
		}
	}
	return StopDetails{}
}

// FilterOptions selects positions relevant to one signal.
type FilterOptions struct {
	// AssetTypes limits to the given venue asset classes; empty means all.
	AssetTypes []string
	// ProfitOnly keeps only positions currently in profit.
	ProfitOnly bool
	// Symbol keeps only positions on the given symbol; requires Resolve.
	Symbol string
	// Statuses keeps only the given position statuses. Defaults to
	// Open, Closed and Working.
	Statuses []string
	// Resolve maps a venue instrument id back to a symbol.
	Resolve func(uic int) string
}

var defaultStatuses = []string{"Open", "Closed", "Working"}

// FilterPositions returns the subset of positions matching opts. Venue
// artifacts (reported as Closed with an open time after the close time) are
// always excluded.
func FilterPositions(positions []Position, opts FilterOptions) []Position {
	statuses := opts.Statuses
	if len(statuses) == 0 {
		statuses = defaultStatuses
	}

	var out []Position
	for _, p := range positions {
		if isArtifact(p) {
			continue
		}
		if !contains(statuses, p.Base.Status) {
			continue
		}
		if len(opts.AssetTypes) > 0 && !contains(opts.AssetTypes, p.Base.AssetType) {
			continue
		}
		if opts.ProfitOnly && p.View.ProfitLossOnTrade <= 0 {
			continue
		}
		if opts.Symbol != "" {
			if opts.Resolve == nil || opts.Resolve(p.Base.Uic) != opts.Symbol {
				continue
			}
		}
		out = append(out, p)
	}
	return out
}

// isArtifact detects the venue's phantom closed positions: closed entries
// whose open time postdates their close time.
func isArtifact(p Position) bool {
	return p.Base.Status == "Closed" &&
		!p.Base.ExecutionTimeClose.IsZero() &&
		p.Base.ExecutionTimeOpen.After(p.Base.ExecutionTimeClose)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
