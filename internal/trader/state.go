package trader

import "go.uber.org/zap"

// State is the in-process cycle state shared between the orchestrator and
// the reconciler. It is written from the single trading goroutine only and
// is deliberately not persisted: a restart begins a fresh cycle.
type State struct {
	ConsecutiveBuys int
}

// ResetBuys zeroes the consecutive-buy counter. A sell executing means the
// current buy-down ladder concluded.
func (s *State) ResetBuys(logger *zap.Logger) {
	s.ConsecutiveBuys = 0
	logger.Info("Consecutive buy count reset", zap.Int("consecutive_buys", s.ConsecutiveBuys))
}
