// Package signal turns raw alert text into structured trading directives.
//
// The pipeline is Normalize -> Classify, with Disambiguate resolving which
// numeric token in an alert belongs to which instrument. A Signal has a
// stable string encoding used for auditing and persistence; the encoding is
// bidirectional so persisted signals can be replayed.
package signal

import (
	"fmt"
	"strconv"
	"strings"
)

type Direction string

const (
	Long  Direction = "LONG"
	Short Direction = "SHORT"
)

type Action string

const (
	Trade    Action = "TRADE"
	Flat     Action = "FLAT"
	FlatStop Action = "FLATSTOP"
	Closed   Action = "CLOSED"
	ScaleOut Action = "SCALEOUT"
	Limit    Action = "LIMIT"
)

// Signal is one structured trading directive derived from a single alert and
// a single mentioned symbol. Action decides which fields are meaningful; the
// fields of other variants stay zero.
type Signal struct {
	Symbol     string
	Action     Action
	Direction  Direction // TRADE, LIMIT
	Entry      int       // TRADE, SCALEOUT, LIMIT
	Exit       int       // SCALEOUT (parsed), LIMIT (derived)
	Points     int       // SCALEOUT profit points
	StopPoints int       // TRADE, LIMIT
	AlertID    string    // attribution; not part of the wire encoding
}

// String returns the stable textual encoding:
//
//	SPX_TRADE_LONG_IN_3609_SL_10
//	NDX_FLAT
//	SPX_SCALEOUT_IN_3809_OUT_4153_POINTS_344
//	SPX_LIMIT_LONG_IN_3749_OUT_3739_SL_10
func (s Signal) String() string {
	switch s.Action {
	case Trade:
		return fmt.Sprintf("%s_TRADE_%s_IN_%d_SL_%d", s.Symbol, s.Direction, s.Entry, s.StopPoints)
	case ScaleOut:
		return fmt.Sprintf("%s_SCALEOUT_IN_%d_OUT_%d_POINTS_%d", s.Symbol, s.Entry, s.Exit, s.Points)
	case Limit:
		return fmt.Sprintf("%s_LIMIT_%s_IN_%d_OUT_%d_SL_%d", s.Symbol, s.Direction, s.Entry, s.Exit, s.StopPoints)
	case Flat, FlatStop, Closed:
		return fmt.Sprintf("%s_%s", s.Symbol, s.Action)
	}
	return fmt.Sprintf("%s_UNKNOWN", s.Symbol)
}

// Parse decodes the stable encoding produced by String.
func Parse(raw string) (Signal, error) {
	parts := strings.Split(raw, "_")
	if len(parts) < 2 {
		return Signal{}, fmt.Errorf("malformed signal %q", raw)
	}

	s := Signal{Symbol: parts[0], Action: Action(parts[1])}

	num := func(i int) (int, error) {
		if i >= len(parts) {
			return 0, fmt.Errorf("malformed signal %q: missing field %d", raw, i)
		}
		return strconv.Atoi(parts[i])
	}

	var err error
	switch s.Action {
	case Flat, FlatStop, Closed:
		if len(parts) != 2 {
			return Signal{}, fmt.Errorf("malformed signal %q", raw)
		}
	case Trade:
		// SPX_TRADE_LONG_IN_3609_SL_10
		if len(parts) != 7 {
			return Signal{}, fmt.Errorf("malformed signal %q", raw)
		}
		s.Direction = Direction(parts[2])
		if s.Entry, err = num(4); err != nil {
			return Signal{}, err
		}
		if s.StopPoints, err = num(6); err != nil {
			return Signal{}, err
		}
	case ScaleOut:
		// SPX_SCALEOUT_IN_3809_OUT_4153_POINTS_344
		if len(parts) != 8 {
			return Signal{}, fmt.Errorf("malformed signal %q", raw)
		}
		if s.Entry, err = num(3); err != nil {
			return Signal{}, err
		}
		if s.Exit, err = num(5); err != nil {
			return Signal{}, err
		}
		if s.Points, err = num(7); err != nil {
			return Signal{}, err
		}
	case Limit:
		// SPX_LIMIT_LONG_IN_3749_OUT_3739_SL_10
		if len(parts) != 9 {
			return Signal{}, fmt.Errorf("malformed signal %q", raw)
		}
		s.Direction = Direction(parts[2])
		if s.Entry, err = num(4); err != nil {
			return Signal{}, err
		}
		if s.Exit, err = num(6); err != nil {
			return Signal{}, err
		}
		if s.StopPoints, err = num(8); err != nil {
			return Signal{}, err
		}
	default:
		return Signal{}, fmt.Errorf("unknown action in signal %q", raw)
	}

	if s.Direction != "" && s.Direction != Long && s.Direction != Short {
		return Signal{}, fmt.Errorf("unknown direction in signal %q", raw)
	}

	return s, nil
}
