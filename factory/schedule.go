/*
Package factory provides JSON to Go fee configuration conversion.

PURPOSE:
  Converts JSON schedule definitions into fees.FeeActionSchedule ladders
  and compiled fees.SplitFormula closures. This enables fee configuration
  without code changes - operators define pricing in JSON, and the factory
  creates the proper Go values.

JSON SCHEMA:
  {
    "action_code": "asset-transfer",
    "cross_channel": false,
    "tiers": [
      {"threshold": "0",  "base_price": "0.5", "kind": "additive", "rate": "0.01"},
      {"threshold": "20", "base_price": "100", "kind": "exponential", "rate": "1.1"}
    ],
    "split": {
      "burn_percent": "50",
      "recipients": [
        {"id": "treasury", "percent": "30"},
        {"id": "validators", "percent": "20"}
      ]
    }
  }

KEY FEATURES:
  - Validates JSON structure and decimal fields
  - Sets sensible defaults (kind additive, rate 0)
  - Compiles percentage splits into SplitFormula closures that truncate
    each portion to the fee currency's decimals

USAGE:
  factory := NewScheduleFactory()
  def, err := factory.ParseSchedule(jsonString)
  // def.Tiers   -> install via fees.PutSchedule
  // def.Split   -> register in a fees.SplitMap under def.ActionCode

SEE ALSO:
  - fees/types.go: FeeActionSchedule and SplitFormula definitions
  - api/handlers.go: installs parsed definitions over HTTP
*/
package factory

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/metering-engine/fees"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// ScheduleJSON is the JSON representation of one action code's pricing.
type ScheduleJSON struct {
	ActionCode   string      `json:"action_code"`
	CrossChannel bool        `json:"cross_channel,omitempty"`
	Tiers        []TierJSON  `json:"tiers"`
	Split        *SplitJSON  `json:"split,omitempty"`
}

// TierJSON represents one pricing tier. Decimal fields are strings so
// amounts survive JSON without float drift.
type TierJSON struct {
	Threshold string `json:"threshold"`
	BasePrice string `json:"base_price"`
	Kind      string `json:"kind,omitempty"` // additive, multiplicative, exponential, logarithmic, custom
	Rate      string `json:"rate,omitempty"`
}

// SplitJSON describes a percentage fee split.
type SplitJSON struct {
	BurnPercent string          `json:"burn_percent"`
	Recipients  []RecipientJSON `json:"recipients,omitempty"`
}

type RecipientJSON struct {
	ID      string `json:"id"`
	Percent string `json:"percent"`
}

// =============================================================================
// SCHEDULE FACTORY
// =============================================================================

// ScheduleDefinition is the compiled form of one ScheduleJSON.
type ScheduleDefinition struct {
	ActionCode string
	Tiers      []fees.FeeActionSchedule
	Split      fees.SplitFormula // nil when no split configured
}

// ScheduleFactory converts JSON schedules to Go values.
type ScheduleFactory struct{}

func NewScheduleFactory() *ScheduleFactory {
	return &ScheduleFactory{}
}

// ParseSchedule parses a JSON string into a ScheduleDefinition.
func (f *ScheduleFactory) ParseSchedule(jsonStr string) (*ScheduleDefinition, error) {
	var sj ScheduleJSON
	if err := json.Unmarshal([]byte(jsonStr), &sj); err != nil {
		return nil, fmt.Errorf("failed to parse schedule JSON: %w", err)
	}
	return f.FromJSON(sj)
}

// FromJSON converts ScheduleJSON to a ScheduleDefinition.
func (f *ScheduleFactory) FromJSON(sj ScheduleJSON) (*ScheduleDefinition, error) {
	if sj.ActionCode == "" {
		return nil, fmt.Errorf("schedule requires an action_code")
	}
	if len(sj.Tiers) == 0 {
		return nil, fmt.Errorf("schedule for %s requires at least one tier", sj.ActionCode)
	}

	def := &ScheduleDefinition{ActionCode: sj.ActionCode}
	for i, tj := range sj.Tiers {
		tier, err := parseTier(sj.ActionCode, sj.CrossChannel, tj)
		if err != nil {
			return nil, fmt.Errorf("tier %d of %s: %w", i, sj.ActionCode, err)
		}
		def.Tiers = append(def.Tiers, tier)
	}

	if sj.Split != nil {
		split, err := compileSplit(*sj.Split)
		if err != nil {
			return nil, fmt.Errorf("split of %s: %w", sj.ActionCode, err)
		}
		def.Split = split
	}
	return def, nil
}

func parseTier(actionCode string, crossChannel bool, tj TierJSON) (fees.FeeActionSchedule, error) {
	threshold, err := decimal.NewFromString(tj.Threshold)
	if err != nil {
		return fees.FeeActionSchedule{}, fmt.Errorf("invalid threshold %q", tj.Threshold)
	}
	base, err := decimal.NewFromString(tj.BasePrice)
	if err != nil {
		return fees.FeeActionSchedule{}, fmt.Errorf("invalid base_price %q", tj.BasePrice)
	}

	rate := decimal.Zero
	if tj.Rate != "" {
		rate, err = decimal.NewFromString(tj.Rate)
		if err != nil {
			return fees.FeeActionSchedule{}, fmt.Errorf("invalid rate %q", tj.Rate)
		}
	}

	kind, err := parseKind(tj.Kind)
	if err != nil {
		return fees.FeeActionSchedule{}, err
	}

	return fees.FeeActionSchedule{
		ActionCode:       actionCode,
		UsageThreshold:   threshold,
		BasePrice:        base,
		Kind:             kind,
		AccelerationRate: rate,
		CrossChannel:     crossChannel,
	}, nil
}

func parseKind(kind string) (fees.AccelerationKind, error) {
	switch kind {
	case "", "additive":
		return fees.KindAdditive, nil
	case "multiplicative":
		return fees.KindMultiplicative, nil
	case "exponential":
		return fees.KindExponential, nil
	case "logarithmic":
		return fees.KindLogarithmic, nil
	case "custom":
		return fees.KindCustom, nil
	default:
		return "", fmt.Errorf("unknown acceleration kind %q", kind)
	}
}

// =============================================================================
// SPLIT COMPILATION
// =============================================================================

var hundred = decimal.NewFromInt(100)

// compileSplit turns percentage allocations into a SplitFormula. Portions
// are truncated to the fee currency's decimals; truncation remainder goes
// uncharged rather than over-collected.
func compileSplit(sj SplitJSON) (fees.SplitFormula, error) {
	burnPct, err := decimal.NewFromString(sj.BurnPercent)
	if err != nil {
		return nil, fmt.Errorf("invalid burn_percent %q", sj.BurnPercent)
	}
	if burnPct.IsNegative() {
		return nil, fmt.Errorf("burn_percent must not be negative")
	}

	type allocation struct {
		id  string
		pct decimal.Decimal
	}
	total := burnPct
	var allocations []allocation
	for _, rj := range sj.Recipients {
		pct, err := decimal.NewFromString(rj.Percent)
		if err != nil {
			return nil, fmt.Errorf("invalid percent %q for %s", rj.Percent, rj.ID)
		}
		if pct.IsNegative() {
			return nil, fmt.Errorf("percent for %s must not be negative", rj.ID)
		}
		total = total.Add(pct)
		allocations = append(allocations, allocation{id: rj.ID, pct: pct})
	}
	if total.GreaterThan(hundred) {
		return nil, fmt.Errorf("split allocations exceed 100%%: %s", total.String())
	}

	return func(totalFee decimal.Decimal, currencyDecimals int32) (decimal.Decimal, []fees.SplitTransfer, error) {
		burn := totalFee.Mul(burnPct).Div(hundred).Truncate(currencyDecimals)
		var transfers []fees.SplitTransfer
		for _, a := range allocations {
			amount := totalFee.Mul(a.pct).Div(hundred).Truncate(currencyDecimals)
			if amount.IsPositive() {
				transfers = append(transfers, fees.SplitTransfer{Recipient: a.id, Amount: amount})
			}
		}
		return burn, transfers, nil
	}, nil
}
