package arbitrage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/avelar-dev/solarb/internal/domain"
)

// opportunityChannel is the signal bus channel validated opportunities are
// published on.
const opportunityChannel = "opportunities"

// SignalTail follows the opportunity channel on the signal bus and logs every
// received signal. Monitor deployments run it to surface opportunities
// published by executing instances sharing the same bus.
type SignalTail struct {
	bus    domain.SignalBus
	logger *slog.Logger
}

// NewSignalTail creates a tail over the given bus.
func NewSignalTail(bus domain.SignalBus, logger *slog.Logger) *SignalTail {
	return &SignalTail{
		bus:    bus,
		logger: logger.With(slog.String("component", "signal_tail")),
	}
}

// Run subscribes and logs until ctx is cancelled or the subscription closes.
func (t *SignalTail) Run(ctx context.Context) error {
	msgs, err := t.bus.Subscribe(ctx, opportunityChannel)
	if err != nil {
		return fmt.Errorf("arbitrage: subscribe %s: %w", opportunityChannel, err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case payload, ok := <-msgs:
			if !ok {
				return nil
			}
			var opp domain.Opportunity
			if err := json.Unmarshal(payload, &opp); err != nil {
				t.logger.Warn("malformed opportunity signal",
					slog.String("error", err.Error()),
				)
				continue
			}
			t.logger.Info("opportunity signal",
				slog.String("opp_id", opp.ID),
				slog.String("pair", opp.Token+"/"+opp.BaseToken),
				slog.String("buy_venue", opp.BuyVenue),
				slog.String("sell_venue", opp.SellVenue),
				slog.Float64("spread_pct", opp.SpreadPct),
				slog.Float64("est_profit_pct", opp.EstProfitPct),
			)
		}
	}
}
