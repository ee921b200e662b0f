/*
auditor.go - Periodic negative-stock audit

PURPOSE:
  The ledger accepts issues that drive a location below zero. The auditor
  makes those visible: on a fixed interval it recomputes balances, logs
  each negative (product, location) pair and publishes the count as the
  stockledger_negative_balances gauge.

DESIGN:
  - Runs a background goroutine with a configurable interval
  - Runs once immediately on Start
  - Read-only: never appends corrective movements

USAGE:
  auditor := NewNegativeStockAuditor(svc, metrics, 5*time.Minute, logger)
  auditor.Start()
  // ... later
  auditor.Stop()

SEE ALSO:
  - handlers.go: GET /api/audit/negative (on-demand equivalent)
  - inventory/balance.go: Balances.Negative
*/
package api

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/warp/stock-ledger/inventory"
)

// NegativeStockAuditor periodically reports negative balances.
type NegativeStockAuditor struct {
	Service  *inventory.Service
	Metrics  *Metrics
	Interval time.Duration
	Logger   zerolog.Logger

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewNegativeStockAuditor creates an auditor. An interval of zero disables it.
func NewNegativeStockAuditor(svc *inventory.Service, metrics *Metrics, interval time.Duration, logger zerolog.Logger) *NegativeStockAuditor {
	return &NegativeStockAuditor{
		Service:  svc,
		Metrics:  metrics,
		Interval: interval,
		Logger:   logger.With().Str("component", "auditor").Logger(),
	}
}

// Start begins the audit loop.
func (a *NegativeStockAuditor) Start() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.Interval <= 0 {
		a.Logger.Info().Msg("negative stock audit disabled")
		return
	}
	if a.ticker != nil {
		return
	}

	a.ticker = time.NewTicker(a.Interval)
	a.stop = make(chan struct{})
	a.wg.Add(1)
	go a.run()

	a.Logger.Info().Dur("interval", a.Interval).Msg("negative stock audit started")
}

// Stop ends the audit loop and waits for an in-flight run to finish.
func (a *NegativeStockAuditor) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.ticker == nil {
		return
	}
	a.ticker.Stop()
	close(a.stop)
	a.wg.Wait()
	a.ticker = nil
	a.Logger.Info().Msg("negative stock audit stopped")
}

func (a *NegativeStockAuditor) run() {
	defer a.wg.Done()

	a.RunOnce(context.Background())
	for {
		select {
		case <-a.ticker.C:
			a.RunOnce(context.Background())
		case <-a.stop:
			return
		}
	}
}

// RunOnce performs a single audit and returns the negative pairs found.
func (a *NegativeStockAuditor) RunOnce(ctx context.Context) ([]inventory.Entry, error) {
	negative, err := a.Service.NegativeBalances(ctx)
	if err != nil {
		a.Metrics.AuditRuns.WithLabelValues("error").Inc()
		a.Logger.Error().Err(err).Msg("negative stock audit failed")
		return nil, err
	}

	a.Metrics.AuditRuns.WithLabelValues("ok").Inc()
	a.Metrics.NegativeBalances.Set(float64(len(negative)))
	for _, e := range negative {
		a.Logger.Warn().
			Str("product_id", string(e.Product)).
			Str("location_id", string(e.Location)).
			Int64("quantity", e.Quantity).
			Msg("negative stock")
	}
	if len(negative) == 0 {
		a.Logger.Debug().Msg("no negative stock")
	}
	return negative, nil
}
