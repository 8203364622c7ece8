package signal

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alerttrader/internal/alert"
)

var testRegistry = Registry{
	"NDX":  {StoplossPoints: 25, ReferencePrice: 11946},
	"SPX":  {StoplossPoints: 10, ReferencePrice: 3946},
	"DJIA": {StoplossPoints: 25, ReferencePrice: 35435},
	"RUT":  {StoplossPoints: 10, ReferencePrice: 1750},
}

type recordingNotifier struct {
	messages []string
}

func (n *recordingNotifier) Send(_ context.Context, message string, _ int) error {
	n.messages = append(n.messages, message)
	return nil
}

func newTestClassifier(denyList []string, n Notifier) *Classifier {
	return NewClassifier(testRegistry, []string{"DJIA", "NDX", "SPX"}, denyList, n)
}

func classifyText(t *testing.T, c *Classifier, id, text string) ([]Signal, error) {
	t.Helper()
	return c.Classify(context.Background(), alert.Alert{ID: id, Text: text, CreatedAt: time.Now()})
}

func encodings(sigs []Signal) []string {
	out := make([]string, len(sigs))
	for i, s := range sigs {
		out[i] = s.String()
	}
	return out
}

func TestClassifyStoppedReEntry(t *testing.T) {
	c := newTestClassifier(nil, nil)
	sigs, err := classifyText(t, c, "a1", "ALERT: stopped $SPX (add-on) Re-entry long IN: 3609 - 10 pt stop")
	require.NoError(t, err)
	assert.Equal(t, []string{"SPX_FLATSTOP", "SPX_TRADE_LONG_IN_3609_SL_10"}, encodings(sigs))
	assert.Equal(t, "a1", sigs[0].AlertID)
}

func TestClassifyMultiSymbolTrade(t *testing.T) {
	c := newTestClassifier(nil, nil)
	sigs, err := classifyText(t, c, "a2", "ALERT: LONG $NDX $SPX | IN 11348 | IN 3713")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"NDX_TRADE_LONG_IN_11348_SL_25",
		"SPX_TRADE_LONG_IN_3713_SL_10",
	}, encodings(sigs))
}

func TestClassifyShortTrade(t *testing.T) {
	c := newTestClassifier(nil, nil)
	sigs, err := classifyText(t, c, "a3", "ALERT: SHORT $RUT | IN 1703")
	require.NoError(t, err)
	assert.Equal(t, []string{"RUT_TRADE_SHORT_IN_1703_SL_10"}, encodings(sigs))
}

func TestClassifyScaleOut(t *testing.T) {
	c := newTestClassifier(nil, nil)
	sigs, err := classifyText(t, c, "a4", "ALERT: CLOSED FINAL SCALE $NDX LONG | IN 11060 OUT 13250 +2190")
	require.NoError(t, err)
	assert.Equal(t, []string{"NDX_SCALEOUT_IN_11060_OUT_13250_POINTS_2190"}, encodings(sigs))
}

func TestClassifyClosed(t *testing.T) {
	c := newTestClassifier(nil, nil)
	sigs, err := classifyText(t, c, "a5", "ALERT: CLOSED $SPX for the day.")
	require.NoError(t, err)
	assert.Equal(t, []string{"SPX_CLOSED"}, encodings(sigs))
}

func TestClassifyFlat(t *testing.T) {
	c := newTestClassifier(nil, nil)
	sigs, err := classifyText(t, c, "a6", "ALERT: stop adjusted to flt $NDX")
	require.NoError(t, err)
	assert.Equal(t, []string{"NDX_FLAT"}, encodings(sigs))
}

func TestClassifyLimit(t *testing.T) {
	c := newTestClassifier(nil, nil)
	sigs, err := classifyText(t, c, "a7", "ALERT: LIMIT BUY $SPX |IN 4000 - 15 POINT STOP")
	require.NoError(t, err)
	assert.Equal(t, []string{"SPX_LIMIT_LONG_IN_4000_OUT_3990_SL_10"}, encodings(sigs))
}

func TestClassifyLimitShort(t *testing.T) {
	c := newTestClassifier(nil, nil)
	sigs, err := classifyText(t, c, "a8", "ALERT: LIMIT SELL $SPX | IN 3900")
	require.NoError(t, err)
	assert.Equal(t, []string{"SPX_LIMIT_SHORT_IN_3900_OUT_3910_SL_10"}, encodings(sigs))
}

func TestClassifyDenyList(t *testing.T) {
	c := newTestClassifier([]string{"bad-1"}, nil)
	sigs, err := classifyText(t, c, "bad-1", "ALERT: LONG $SPX | IN 3713")
	require.NoError(t, err)
	assert.Empty(t, sigs)
}

func TestClassifyNonAlert(t *testing.T) {
	c := newTestClassifier(nil, nil)
	sigs, err := classifyText(t, c, "a9", "great trading day everyone, see you tomorrow $SPX")
	require.NoError(t, err)
	assert.Empty(t, sigs)
}

func TestClassifyParseErrorEscalates(t *testing.T) {
	notifier := &recordingNotifier{}
	c := newTestClassifier(nil, notifier)

	sigs, err := classifyText(t, c, "a10", "ALERT: watching $SPX here")
	assert.Empty(t, sigs)
	require.Error(t, err)

	var perr *ParseError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "a10", perr.AlertID)
	assert.Equal(t, "SPX", perr.Symbol)

	require.Len(t, notifier.messages, 1)
}

func TestClassifyPartialFailureKeepsOthers(t *testing.T) {
	// RUT has no entry number to look up, SPX does: SPX must still classify.
	c := newTestClassifier(nil, nil)
	sigs, err := classifyText(t, c, "a11", "ALERT: LONG $RUT $SPX | IN 3713")
	require.Error(t, err)
	assert.Equal(t, []string{"SPX_TRADE_LONG_IN_3713_SL_10"}, encodings(sigs))
}

func TestClassifyUnknownStopDefault(t *testing.T) {
	reg := Registry{"VIX": {ReferencePrice: 20}}
	c := NewClassifier(reg, nil, nil, nil)
	sigs, err := classifyText(t, c, "a12", "ALERT: LONG $VIX | IN 21")
	require.NoError(t, err)
	assert.Equal(t, []string{"VIX_TRADE_LONG_IN_21_SL_9"}, encodings(sigs))
}

func TestClassifyIdempotent(t *testing.T) {
	c := newTestClassifier(nil, nil)
	text := "ALERT: LONG $NDX $SPX | IN 11348 | IN 3713"
	first, err := classifyText(t, c, "a13", text)
	require.NoError(t, err)
	second, err := classifyText(t, c, "a13", text)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
