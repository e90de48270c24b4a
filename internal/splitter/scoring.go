package splitter

import "orderpipe/pkg/types"

// scoreTable is a per-algorithm, per-factor-value lookup table. The four
// tables below are carried over verbatim (as tabulated numbers, not
// re-derived) from the reference implementation's scoring matrices.
type scoreTable map[types.Algorithm]map[string]float64

var sizeScores = scoreTable{
	types.AlgoTWAP: {
		string(SizeSmall): 0.9, string(SizeMedium): 0.8, string(SizeLarge): 0.6, string(SizeHuge): 0.4,
	},
	types.AlgoVWAP: {
		string(SizeSmall): 0.6, string(SizeMedium): 0.8, string(SizeLarge): 0.9, string(SizeHuge): 0.7,
	},
	types.AlgoIceberg: {
		string(SizeSmall): 0.3, string(SizeMedium): 0.5, string(SizeLarge): 0.8, string(SizeHuge): 0.95,
	},
	types.AlgoBehavioral: {
		string(SizeSmall): 0.5, string(SizeMedium): 0.6, string(SizeLarge): 0.7, string(SizeHuge): 0.75,
	},
}

var liquidityScores = scoreTable{
	types.AlgoTWAP: {
		string(LiquidityHigh): 0.7, string(LiquidityNormal): 0.8, string(LiquidityLow): 0.6, string(LiquidityCritical): 0.3,
	},
	types.AlgoVWAP: {
		string(LiquidityHigh): 0.9, string(LiquidityNormal): 0.85, string(LiquidityLow): 0.5, string(LiquidityCritical): 0.2,
	},
	types.AlgoIceberg: {
		string(LiquidityHigh): 0.6, string(LiquidityNormal): 0.7, string(LiquidityLow): 0.85, string(LiquidityCritical): 0.9,
	},
	types.AlgoBehavioral: {
		string(LiquidityHigh): 0.65, string(LiquidityNormal): 0.7, string(LiquidityLow): 0.6, string(LiquidityCritical): 0.4,
	},
}

var sessionScores = scoreTable{
	types.AlgoTWAP: {
		string(SessionOpening): 0.5, string(SessionMorning): 0.8, string(SessionAfternoon): 0.8,
		string(SessionClosing): 0.4, string(SessionNightActive): 0.7, string(SessionNightQuiet): 0.6,
	},
	types.AlgoVWAP: {
		string(SessionOpening): 0.9, string(SessionMorning): 0.85, string(SessionAfternoon): 0.85,
		string(SessionClosing): 0.9, string(SessionNightActive): 0.6, string(SessionNightQuiet): 0.4,
	},
	types.AlgoIceberg: {
		string(SessionOpening): 0.6, string(SessionMorning): 0.7, string(SessionAfternoon): 0.7,
		string(SessionClosing): 0.5, string(SessionNightActive): 0.8, string(SessionNightQuiet): 0.9,
	},
	types.AlgoBehavioral: {
		string(SessionOpening): 0.7, string(SessionMorning): 0.65, string(SessionAfternoon): 0.65,
		string(SessionClosing): 0.6, string(SessionNightActive): 0.85, string(SessionNightQuiet): 0.9,
	},
}

var volatilityScores = scoreTable{
	types.AlgoTWAP: {
		string(VolatilityLow): 0.7, string(VolatilityNormal): 0.8, string(VolatilityHigh): 0.6, string(VolatilityExtreme): 0.9,
	},
	types.AlgoVWAP: {
		string(VolatilityLow): 0.85, string(VolatilityNormal): 0.85, string(VolatilityHigh): 0.5, string(VolatilityExtreme): 0.3,
	},
	types.AlgoIceberg: {
		string(VolatilityLow): 0.6, string(VolatilityNormal): 0.65, string(VolatilityHigh): 0.8, string(VolatilityExtreme): 0.7,
	},
	types.AlgoBehavioral: {
		string(VolatilityLow): 0.65, string(VolatilityNormal): 0.7, string(VolatilityHigh): 0.75, string(VolatilityExtreme): 0.5,
	},
}

// stealthScores is an algorithm-intrinsic constant (not factor-dependent):
// how much an algorithm disguises true order intent from other market
// participants.
var stealthScores = map[types.Algorithm]float64{
	types.AlgoTWAP:       0.6,
	types.AlgoVWAP:       0.65,
	types.AlgoIceberg:    0.85,
	types.AlgoBehavioral: 0.95,
}

// scoreAlgorithm implements the weighted formula:
// score = size*0.3 + liquidity*0.25 + session*0.15 + stealth*0.15 + volatility*0.15
func scoreAlgorithm(algo types.Algorithm, size OrderSizeCategory, mkt MarketContext) float64 {
	return sizeScores[algo][string(size)]*0.30 +
		liquidityScores[algo][string(mkt.Liquidity)]*0.25 +
		sessionScores[algo][string(mkt.Session)]*0.15 +
		stealthScores[algo]*0.15 +
		volatilityScores[algo][string(mkt.Volatility)]*0.15
}

// scorableAlgorithms is the fixed candidate set for scored selection, in
// tie-break priority order: TWAP > VWAP > ICEBERG > BEHAVIORAL.
var scorableAlgorithms = []types.Algorithm{
	types.AlgoTWAP, types.AlgoVWAP, types.AlgoIceberg, types.AlgoBehavioral,
}
