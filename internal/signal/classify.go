package signal

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"alerttrader/internal/alert"
	"alerttrader/internal/observ"
)

// defaultStopPoints guards entries on symbols missing from the registry.
const defaultStopPoints = 9

// Instrument holds the per-symbol data classification needs: the default
// protective-stop distance and the reference price used to match numeric
// tokens to symbols.
type Instrument struct {
	StoplossPoints int
	ReferencePrice float64
}

// Registry maps symbol to its static instrument data.
type Registry map[string]Instrument

// Notifier escalates classification failures to a human. Priority follows the
// push-notification convention: 0 normal, 2 emergency.
type Notifier interface {
	Send(ctx context.Context, message string, priority int) error
}

// ParseError reports an alert that mentioned a symbol but did not match any
// classification rule, or matched one with fields missing.
type ParseError struct {
	AlertID string
	Symbol  string
	Text    string
	Reason  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("alert %s: cannot classify %s: %s", e.AlertID, e.Symbol, e.Reason)
}

var (
	symbolPattern   = regexp.MustCompile(`\$(\w+)`)
	profitPattern   = regexp.MustCompile(`\+\s?(\d+)`)
	inNumberPattern = regexp.MustCompile(`IN[\s|:](\d+)`)
)

// IsAlert reports whether the raw text is a trade notice at all. Everything
// else on the feed (commentary, retweets) is silently ignored.
func IsAlert(text string) bool {
	return strings.HasPrefix(strings.ToUpper(text), "ALERT")
}

// Classifier turns alerts into signals using a fixed ordered rule table.
type Classifier struct {
	registry Registry
	refs     map[string]float64
	priority []string
	denyList map[string]bool
	notifier Notifier
}

func NewClassifier(registry Registry, priority []string, denyList []string, notifier Notifier) *Classifier {
	deny := make(map[string]bool, len(denyList))
	for _, id := range denyList {
		deny[id] = true
	}
	refs := make(map[string]float64, len(registry))
	for sym, inst := range registry {
		if inst.ReferencePrice != 0 {
			refs[sym] = inst.ReferencePrice
		}
	}
	return &Classifier{
		registry: registry,
		refs:     refs,
		priority: priority,
		denyList: deny,
		notifier: notifier,
	}
}

// Classify produces one or more signals from a single alert, one per symbol
// the alert mentions. Symbols that fail classification are reported via the
// returned error (all failures joined) and escalated through the notifier;
// the remaining symbols still yield signals.
func (c *Classifier) Classify(ctx context.Context, a alert.Alert) ([]Signal, error) {
	if c.denyList[a.ID] {
		observ.Log("alert_denied", map[string]any{"alert_id": a.ID})
		return nil, nil
	}
	if !IsAlert(a.Text) {
		return nil, nil
	}

	text := Normalize(a.Text)
	symbols := extractSymbols(text)
	if len(symbols) == 0 {
		return nil, nil
	}

	var signals []Signal
	var errs []error
	for _, sym := range symbols {
		sigs, err := c.classifySymbol(text, sym, a.ID)
		if err != nil {
			c.escalate(ctx, err)
			errs = append(errs, err)
			continue
		}
		signals = append(signals, sigs...)
	}
	return signals, errors.Join(errs...)
}

// classifySymbol applies the rule table for one mentioned symbol. First match
// wins; rule order is load-bearing (a flat-stop alert also contains "LONG").
func (c *Classifier) classifySymbol(text, sym, alertID string) ([]Signal, error) {
	switch {
	case strings.Contains(text, "TO FLAT") || strings.Contains(text, "TO FLT"):
		return []Signal{{Symbol: sym, Action: Flat, AlertID: alertID}}, nil

	case strings.Contains(text, "FLAT STOP") || strings.Contains(text, "STOPPED"):
		sigs := []Signal{{Symbol: sym, Action: FlatStop, AlertID: alertID}}
		if strings.Contains(text, "RE-ENTRY") {
			trade, err := c.tradeSignal(text, sym, alertID)
			if err != nil {
				return nil, err
			}
			sigs = append(sigs, trade)
		}
		return sigs, nil

	case strings.HasPrefix(text, "LIMIT"):
		sig, err := c.limitSignal(text, sym, alertID)
		if err != nil {
			return nil, err
		}
		return []Signal{sig}, nil

	case strings.Contains(text, "CLOSED"):
		if strings.Contains(text, "OUT") {
			sig, err := c.scaleOutSignal(text, sym, alertID)
			if err != nil {
				return nil, err
			}
			return []Signal{sig}, nil
		}
		return []Signal{{Symbol: sym, Action: Closed, AlertID: alertID}}, nil

	case strings.HasPrefix(text, "SHORT") || strings.HasPrefix(text, "LONG"):
		sig, err := c.tradeSignal(text, sym, alertID)
		if err != nil {
			return nil, err
		}
		return []Signal{sig}, nil
	}

	return nil, &ParseError{AlertID: alertID, Symbol: sym, Text: text, Reason: "no rule matched"}
}

func (c *Classifier) tradeSignal(text, sym, alertID string) (Signal, error) {
	dir := Short
	if strings.Contains(text, "LONG") {
		dir = Long
	}
	entries := Disambiguate(findNumbers(text, "IN"), c.refs, c.priority)
	entry, ok := entries.Lookup(sym)
	if !ok {
		return Signal{}, &ParseError{AlertID: alertID, Symbol: sym, Text: text, Reason: "no entry price"}
	}
	return Signal{
		Symbol:     sym,
		Action:     Trade,
		Direction:  dir,
		Entry:      entry,
		StopPoints: c.stopPoints(sym),
		AlertID:    alertID,
	}, nil
}

func (c *Classifier) limitSignal(text, sym, alertID string) (Signal, error) {
	var dir Direction
	switch {
	case strings.Contains(text, "BUY") || strings.Contains(text, "LONG"):
		dir = Long
	case strings.Contains(text, "SELL") || strings.Contains(text, "SHORT"):
		dir = Short
	default:
		return Signal{}, &ParseError{AlertID: alertID, Symbol: sym, Text: text, Reason: "limit order without direction"}
	}

	// Limit alerts name a single symbol, so the last IN number is the limit
	// price without any disambiguation.
	matches := inNumberPattern.FindAllStringSubmatch(cleanNumbers(text), -1)
	if len(matches) == 0 {
		return Signal{}, &ParseError{AlertID: alertID, Symbol: sym, Text: text, Reason: "limit order without price"}
	}
	entry, err := strconv.Atoi(matches[len(matches)-1][1])
	if err != nil {
		return Signal{}, &ParseError{AlertID: alertID, Symbol: sym, Text: text, Reason: "limit price not a number"}
	}

	stop := c.stopPoints(sym)
	exit := entry - stop
	if dir == Short {
		exit = entry + stop
	}
	return Signal{
		Symbol:     sym,
		Action:     Limit,
		Direction:  dir,
		Entry:      entry,
		Exit:       exit,
		StopPoints: stop,
		AlertID:    alertID,
	}, nil
}

func (c *Classifier) scaleOutSignal(text, sym, alertID string) (Signal, error) {
	entries := Disambiguate(findNumbers(text, "IN"), c.refs, c.priority)
	exits := Disambiguate(findNumbers(text, "OUT"), c.refs, c.priority)
	entry, okIn := entries.Lookup(sym)
	exit, okOut := exits.Lookup(sym)
	if !okIn || !okOut {
		return Signal{}, &ParseError{AlertID: alertID, Symbol: sym, Text: text, Reason: "scale-out without entry/exit prices"}
	}

	points := 0
	if m := profitPattern.FindStringSubmatch(text); m != nil {
		points, _ = strconv.Atoi(m[1])
	} else {
		observ.Warn("scaleout_no_profit_points", map[string]any{"alert_id": alertID, "symbol": sym})
	}

	return Signal{
		Symbol:  sym,
		Action:  ScaleOut,
		Entry:   entry,
		Exit:    exit,
		Points:  points,
		AlertID: alertID,
	}, nil
}

func (c *Classifier) stopPoints(sym string) int {
	if inst, ok := c.registry[sym]; ok && inst.StoplossPoints > 0 {
		return inst.StoplossPoints
	}
	observ.Warn("unknown_symbol_stop_default", map[string]any{"symbol": sym, "points": defaultStopPoints})
	return defaultStopPoints
}

func (c *Classifier) escalate(ctx context.Context, err error) {
	observ.Error("classify_failed", err, nil)
	observ.IncCounter("classify_errors_total", nil)
	if c.notifier == nil {
		return
	}
	if nerr := c.notifier.Send(ctx, err.Error(), 2); nerr != nil {
		observ.Error("notify_failed", nerr, nil)
	}
}

// extractSymbols pulls $-prefixed tickers, deduplicated and sorted.
func extractSymbols(text string) []string {
	seen := map[string]bool{}
	var out []string
	for _, m := range symbolPattern.FindAllStringSubmatch(text, -1) {
		if !seen[m[1]] {
			out = append(out, m[1])
			seen[m[1]] = true
		}
	}
	sort.Strings(out)
	return out
}

// findNumbers extracts all numbers directly following the given keyword
// ("IN" or "OUT"), tolerating pipe and colon separators.
func findNumbers(text, kind string) []int {
	pattern := regexp.MustCompile(kind + `[\s|:](\d+)`)
	var out []int
	for _, m := range pattern.FindAllStringSubmatch(cleanNumbers(text), -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		out = append(out, n)
	}
	return out
}

func cleanNumbers(text string) string {
	t := strings.ReplaceAll(text, ":", " ")
	return strings.ReplaceAll(t, "  ", " ")
}
