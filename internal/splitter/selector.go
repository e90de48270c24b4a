package splitter

import "orderpipe/pkg/types"

// AlgorithmScore is the result of scoring one candidate algorithm.
type AlgorithmScore struct {
	Algorithm types.Algorithm
	Score     float64
}

// QualityTargets are the execution-quality goals the selection process is
// tuned for. They are exported constants only: nothing in this module
// reads them, enforces them, or attaches them to audit events.
var QualityTargets = struct {
	MaxSlippagePct float64
	MinFillRatePct float64
	MaxLatencyMs   int
}{
	MaxSlippagePct: 0.1,
	MinFillRatePct: 95,
	MaxLatencyMs:   100,
}

// Selector chooses an Algorithm for an intent given the current market
// context. Selection is a three-step decision tree:
//
//  1. Extreme market conditions, or the instrument sitting at its
//     limit-up/limit-down band, override everything with TWAP (the most
//     conservative, least market-impact-sensitive algorithm).
//  2. If the intent requests a specific splitter algorithm, honor it.
//  3. Otherwise score every candidate algorithm and take the highest,
//     breaking ties in a fixed priority order.
type Selector struct {
	SizeThresholds SizeThresholds
}

// NewSelector builds a selector with the given size thresholds (zero value
// falls back to DefaultSizeThresholds).
func NewSelector(th SizeThresholds) *Selector {
	if th.Huge.IsZero() {
		th = DefaultSizeThresholds
	}
	return &Selector{SizeThresholds: th}
}

// Select returns the chosen algorithm plus the full score breakdown used
// (empty if the extreme-market override or an honored explicit algo
// short-circuited scoring).
func (s *Selector) Select(in types.Intent, mkt MarketContext) (types.Algorithm, []AlgorithmScore) {
	if mkt.Volatility == VolatilityExtreme || mkt.IsLimitUp || mkt.IsLimitDown {
		return types.AlgoTWAP, nil
	}

	switch in.Algo {
	case types.AlgoTWAP, types.AlgoVWAP, types.AlgoIceberg:
		return in.Algo, nil
	}

	size := ClassifyOrderSize(in.TargetQty, s.SizeThresholds)
	scores := make([]AlgorithmScore, len(scorableAlgorithms))
	for i, algo := range scorableAlgorithms {
		scores[i] = AlgorithmScore{Algorithm: algo, Score: scoreAlgorithm(algo, size, mkt)}
	}

	best := scores[0]
	for _, sc := range scores[1:] {
		if sc.Score > best.Score {
			best = sc
		}
	}
	return best.Algorithm, scores
}
