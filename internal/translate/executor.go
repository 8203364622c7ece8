package translate

import (
	"context"
	"errors"
	"time"

	"golang.org/x/time/rate"

	"alerttrader/internal/alert"
	"alerttrader/internal/broker"
	"alerttrader/internal/observ"
	"alerttrader/internal/outbox"
	"alerttrader/internal/signal"
)

// ExecutorConfig paces the serial trading loop. The pauses keep us far below
// the venue's order rate limits; the alert age guard refuses to act on news
// that is no longer actionable.
type ExecutorConfig struct {
	MaxAlertAge    time.Duration
	PostOrderPause time.Duration
	PostAlertPause time.Duration
	ErrorPause     time.Duration
}

func DefaultExecutorConfig() ExecutorConfig {
	return ExecutorConfig{
		MaxAlertAge:    20 * time.Minute,
		PostOrderPause: 2 * time.Second,
		PostAlertPause: 15 * time.Second,
		ErrorPause:     time.Minute,
	}
}

// Executor runs the alert-to-order pipeline strictly serially: one alert at
// a time, one signal at a time, rate-limited order placement.
type Executor struct {
	classifier *signal.Classifier
	translator *Translator
	outbox     *outbox.Outbox
	limiter    *rate.Limiter
	cfg        ExecutorConfig

	now   func() time.Time
	sleep func(time.Duration)
}

func NewExecutor(classifier *signal.Classifier, translator *Translator, ob *outbox.Outbox, cfg ExecutorConfig) *Executor {
	return &Executor{
		classifier: classifier,
		translator: translator,
		outbox:     ob,
		limiter:    rate.NewLimiter(rate.Every(time.Second), 1),
		cfg:        cfg,
		now:        time.Now,
		sleep:      time.Sleep,
	}
}

// Run consumes the feed until the context ends or a fatal error halts
// trading. Non-fatal errors pause the loop briefly and trading resumes.
func (e *Executor) Run(ctx context.Context, feed <-chan alert.Alert) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case a, ok := <-feed:
			if !ok {
				return nil
			}
			if err := e.ProcessAlert(ctx, a); err != nil {
				if broker.IsFatal(err) {
					return err
				}
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return err
				}
				observ.Error("alert_processing_failed", err, map[string]any{"alert_id": a.ID})
				e.sleep(e.cfg.ErrorPause)
			}
		}
	}
}

// ProcessAlert classifies one alert and executes the resulting signals in
// order. Only fatal broker errors are returned; everything else is recorded
// and swallowed so later signals still run.
func (e *Executor) ProcessAlert(ctx context.Context, a alert.Alert) error {
	if age := e.now().Sub(a.CreatedAt); age > e.cfg.MaxAlertAge {
		observ.Warn("alert_stale_skipped", map[string]any{"alert_id": a.ID, "age": age.String()})
		observ.IncCounter("alerts_stale_total", nil)
		return nil
	}

	sigs, err := e.classifier.Classify(ctx, a)
	if err != nil {
		// Classification failures are already escalated; record for replay.
		e.record(func() error { return e.outbox.WriteError(a.ID, "", err) })
	}
	if len(sigs) == 0 {
		return nil
	}

	for _, sig := range sigs {
		if err := e.limiter.Wait(ctx); err != nil {
			return err
		}
		e.record(func() error { return e.outbox.WriteSignal(a.ID, sig.String()) })

		orders, err := e.translator.Execute(ctx, sig)
		for _, order := range orders {
			o := order
			e.record(func() error { return e.outbox.WriteOrder(a.ID, sig.String(), o) })
		}
		if err != nil {
			e.record(func() error { return e.outbox.WriteError(a.ID, sig.String(), err) })
			if broker.IsFatal(err) {
				return err
			}
			observ.Error("signal_execution_failed", err, map[string]any{"signal": sig.String()})
			continue
		}
		if len(orders) > 0 {
			e.sleep(e.cfg.PostOrderPause)
		}
	}

	e.sleep(e.cfg.PostAlertPause)
	return nil
}

// record tolerates a missing or failing outbox; auditing must never stop
// trading.
func (e *Executor) record(write func() error) {
	if e.outbox == nil {
		return
	}
	if err := write(); err != nil {
		observ.Error("outbox_write_failed", err, nil)
	}
}
