package executor

import (
	"crypto/sha256"
	"encoding/binary"
	"math/rand"
	"time"

	"github.com/shopspring/decimal"

	"orderpipe/pkg/types"
)

// DisguisePattern shapes how many slices are generated and how large they
// tend to be, mimicking either retail (many small clips) or institutional
// (few large blocks) order flow.
type DisguisePattern string

const (
	PatternRetail        DisguisePattern = "RETAIL"
	PatternInstitutional DisguisePattern = "INSTITUTIONAL"
	PatternHybrid        DisguisePattern = "HYBRID"
	PatternAdaptive      DisguisePattern = "ADAPTIVE"
)

// NoiseType selects which dimensions of the schedule get randomized.
type NoiseType string

const (
	NoiseNone   NoiseType = "NONE"
	NoiseTiming NoiseType = "TIMING"
	NoiseSize   NoiseType = "SIZE"
	NoiseBoth   NoiseType = "BOTH"
)

// BehavioralConfig adds the disguise-specific parameters.
type BehavioralConfig struct {
	Config
	Pattern        DisguisePattern
	Noise          NoiseType
	Duration       time.Duration
	MinInterval    time.Duration
	MaxInterval    time.Duration
	SizeVariance   float64 // e.g. 0.3 = ±30%
	TimingVariance float64 // e.g. 0.4 = ±40%
	MinSlices      int
	MaxSlices      int
}

// Behavioral generates a slice schedule that disguises the true order
// shape (size and timing) behind a chosen market-participant pattern. The
// schedule is still fully deterministic: every random draw comes from an
// RNG seeded with the first 8 bytes of SHA-256(intentId), so identical
// intents always replay to an identical schedule.
type Behavioral struct {
	cfg BehavioralConfig
}

// NewBehavioral builds a Behavioral-Disguise executor.
func NewBehavioral(cfg BehavioralConfig) *Behavioral {
	return &Behavioral{cfg: cfg}
}

func (e *Behavioral) Algorithm() types.Algorithm { return types.AlgoBehavioral }

// generateSeed derives the deterministic RNG seed from the intentId.
func generateSeed(intentID string) uint64 {
	sum := sha256.Sum256([]byte(intentID))
	return binary.BigEndian.Uint64(sum[:8])
}

func (e *Behavioral) MakePlan(in types.Intent, now time.Time) (*types.PlanContext, error) {
	seed := generateSeed(in.IntentID)
	rng := rand.New(rand.NewSource(int64(seed)))

	slices := e.calculateDisguisedSlices(rng, in.TargetQty, in.LimitPrice, now)

	plan := &types.PlanContext{
		PlanID:   in.IntentID,
		Intent:   in,
		Algo:     types.AlgoBehavioral,
		Status:   types.PlanPending,
		Slices:   slices,
		Progress: types.Progress{TargetQty: in.TargetQty, SliceCount: len(slices)},
		StartedAt: now,
		Metadata: map[string]any{
			"algo":            string(types.AlgoBehavioral),
			"random_seed":     seed,
			"pattern":         string(e.cfg.Pattern),
			"noise_type":      string(e.cfg.Noise),
			"slice_count":     len(slices),
			"executed_slices": 0,
		},
	}
	return plan, nil
}

// calculateDisguisedSlices picks a slice count scaled by pattern, then
// generates weighted sizes and jittered times using the seeded rng.
func (e *Behavioral) calculateDisguisedSlices(rng *rand.Rand, targetQty, limitPrice decimal.Decimal, start time.Time) []types.Slice {
	minSlices, maxSlices := e.cfg.MinSlices, e.cfg.MaxSlices
	if minSlices <= 0 {
		minSlices = 5
	}
	if maxSlices <= 0 || maxSlices < minSlices {
		maxSlices = 20
	}

	maxSliceQty := e.cfg.MaxSliceQty
	if maxSliceQty.LessThanOrEqual(decimal.Zero) {
		maxSliceQty = targetQty.Div(decimal.NewFromInt(int64(minSlices)))
	}
	base := int(targetQty.Div(maxSliceQty).Ceil().IntPart())
	if base < minSlices {
		base = minSlices
	}

	var scale float64
	switch e.cfg.Pattern {
	case PatternRetail:
		scale = 1.2 + rng.Float64()*0.3 // 1.2-1.5x
	case PatternInstitutional:
		scale = 0.6 + rng.Float64()*0.2 // 0.6-0.8x
	case PatternHybrid:
		scale = 0.8 + rng.Float64()*0.4 // 0.8-1.2x
	default: // ADAPTIVE
		scale = 1.0
	}

	n := int(float64(base) * scale)
	if n < minSlices {
		n = minSlices
	}
	if n > maxSlices {
		n = maxSlices
	}

	sizes := e.generateVariedSizes(rng, targetQty, n)
	times := e.generateVariedTimes(rng, n, start)

	slices := make([]types.Slice, n)
	for i := 0; i < n; i++ {
		slices[i] = types.Slice{
			Index:         i,
			Qty:           sizes[i],
			TargetPrice:   limitPrice,
			ScheduledTime: times[i],
			Metadata:      map[string]any{"pattern": string(e.cfg.Pattern)},
		}
	}
	return slices
}

// generateVariedSizes allocates targetQty across n slots with weighted
// randomness when SIZE/BOTH noise is enabled, normalizing so the sum is
// exact and adjusting the tail slot to absorb rounding.
func (e *Behavioral) generateVariedSizes(rng *rand.Rand, targetQty decimal.Decimal, n int) []decimal.Decimal {
	weights := make([]float64, n)
	total := 0.0
	variance := e.cfg.SizeVariance
	if variance <= 0 {
		variance = 0.3
	}
	applyNoise := e.cfg.Noise == NoiseSize || e.cfg.Noise == NoiseBoth
	for i := range weights {
		w := 1.0
		if applyNoise {
			w = 1 - variance + rng.Float64()*2*variance
			if w < 0.05 {
				w = 0.05
			}
		}
		weights[i] = w
		total += w
	}

	sizes := make([]decimal.Decimal, n)
	allocated := decimal.Zero
	for i := 0; i < n-1; i++ {
		frac := decimal.NewFromFloat(weights[i] / total)
		q := targetQty.Mul(frac).Round(0)
		sizes[i] = q
		allocated = allocated.Add(q)
	}
	sizes[n-1] = targetQty.Sub(allocated)
	if sizes[n-1].LessThan(decimal.Zero) {
		// tail adjustment: pull back from the earliest prior slots, in index order
		deficit := sizes[n-1].Neg()
		sizes[n-1] = decimal.Zero
		for i := 0; i < n-1 && deficit.GreaterThan(decimal.Zero); i++ {
			take := decimal.Min(sizes[i], deficit)
			sizes[i] = sizes[i].Sub(take)
			deficit = deficit.Sub(take)
		}
	}
	return sizes
}

// generateVariedTimes schedules the first slice immediately and jitters
// the remainder's inter-arrival times when TIMING/BOTH noise is enabled.
func (e *Behavioral) generateVariedTimes(rng *rand.Rand, n int, start time.Time) []time.Time {
	times := make([]time.Time, n)
	times[0] = start
	if n == 1 {
		return times
	}

	baseInterval := e.cfg.Duration / time.Duration(n)
	applyNoise := e.cfg.Noise == NoiseTiming || e.cfg.Noise == NoiseBoth
	variance := e.cfg.TimingVariance
	if variance <= 0 {
		variance = 0.4
	}

	cursor := start
	for i := 1; i < n; i++ {
		interval := baseInterval
		if applyNoise {
			factor := 1 - variance + rng.Float64()*2*variance
			interval = time.Duration(float64(baseInterval) * factor)
		}
		if e.cfg.MinInterval > 0 && interval < e.cfg.MinInterval {
			interval = e.cfg.MinInterval
		}
		if e.cfg.MaxInterval > 0 && interval > e.cfg.MaxInterval {
			interval = e.cfg.MaxInterval
		}
		cursor = cursor.Add(interval)
		times[i] = cursor
	}
	return times
}

func (e *Behavioral) NextAction(plan *types.PlanContext, now time.Time) NextAction {
	if a, handled := checkTerminal(plan); handled {
		return a
	}
	if a, handled := checkPaused(plan); handled {
		return a
	}
	if a, handled := checkPendingOrders(plan, e.cfg.Config, now); handled {
		return a
	}
	if a, handled := checkComplete(plan); handled {
		return a
	}
	if a, handled := advancePastExhaustedSlices(plan, e.cfg.Config); handled {
		return a
	}
	slice := plan.Slices[plan.CurrentSliceIdx]
	if now.Before(slice.ScheduledTime) {
		return NextAction{Kind: ActionWait, WaitUntil: slice.ScheduledTime, Reason: "awaiting disguised schedule"}
	}
	action := placeSliceOrder(plan, now, sliceRetryCount(plan, plan.CurrentSliceIdx))
	if n, ok := plan.Metadata["executed_slices"].(int); ok {
		plan.Metadata["executed_slices"] = n + 1
	}
	return action
}

func (e *Behavioral) OnEvent(plan *types.PlanContext, ev types.OrderEvent) {
	handleEvent(plan, ev)
}

// DisguiseInfo returns the audit-facing snapshot of a Behavioral plan's
// randomized state.
func DisguiseInfo(plan *types.PlanContext) map[string]any {
	out := make(map[string]any, len(plan.Metadata))
	for k, v := range plan.Metadata {
		out[k] = v
	}
	return out
}
