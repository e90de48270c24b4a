// Package intent derives deterministic intent identifiers and owns the
// idempotency registry that maps an intent to its execution plan.
package intent

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"

	"orderpipe/pkg/types"
)

// Generate derives the deterministic intentId for an Intent. The formula is
// a straight SHA-256 over the fields that uniquely identify a trading
// decision, joined with a separator that cannot appear in any field (the
// fields are enum/id strings and decimal text, none contain 0x1f).
//
// H(strategyId ∥ decisionHash ∥ instrument ∥ side ∥ offset ∥ targetQty ∥ algo ∥ signalTs)
func Generate(in types.Intent) string {
	const sep = "\x1f"
	var b strings.Builder
	b.WriteString(in.StrategyID)
	b.WriteString(sep)
	b.WriteString(in.DecisionHash)
	b.WriteString(sep)
	b.WriteString(in.Instrument)
	b.WriteString(sep)
	b.WriteString(string(in.Side))
	b.WriteString(sep)
	b.WriteString(string(in.Offset))
	b.WriteString(sep)
	b.WriteString(in.TargetQty.String())
	b.WriteString(sep)
	b.WriteString(string(in.Algo))
	b.WriteString(sep)
	b.WriteString(strconv.FormatInt(in.SignalTS.UnixNano(), 10))

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
