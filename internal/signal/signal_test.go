package signal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignalRoundTrip(t *testing.T) {
	cases := []Signal{
		{Symbol: "SPX", Action: Trade, Direction: Long, Entry: 3609, StopPoints: 10},
		{Symbol: "NDX", Action: Trade, Direction: Short, Entry: 11348, StopPoints: 25},
		{Symbol: "NDX", Action: Flat},
		{Symbol: "SPX", Action: FlatStop},
		{Symbol: "RUT", Action: Closed},
		{Symbol: "SPX", Action: ScaleOut, Entry: 3809, Exit: 4153, Points: 344},
		{Symbol: "SPX", Action: Limit, Direction: Long, Entry: 3749, Exit: 3739, StopPoints: 10},
	}
	for _, want := range cases {
		t.Run(want.String(), func(t *testing.T) {
			got, err := Parse(want.String())
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestSignalString(t *testing.T) {
	s := Signal{Symbol: "SPX", Action: Trade, Direction: Long, Entry: 3609, StopPoints: 10, AlertID: "a1"}
	assert.Equal(t, "SPX_TRADE_LONG_IN_3609_SL_10", s.String())
}

func TestParseRejectsMalformed(t *testing.T) {
	for _, raw := range []string{
		"",
		"SPX",
		"SPX_BOGUS",
		"SPX_TRADE_LONG_IN_3609",
		"SPX_TRADE_SIDEWAYS_IN_3609_SL_10",
		"SPX_SCALEOUT_IN_x_OUT_4153_POINTS_344",
		"SPX_FLAT_EXTRA",
	} {
		_, err := Parse(raw)
		assert.Error(t, err, "raw=%q", raw)
	}
}
