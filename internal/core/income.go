package core

// IncomeBracket classifies annual income into five ordered tiers.
type IncomeBracket int

const (
	BracketLow IncomeBracket = iota
	BracketLowerMiddle
	BracketMiddle
	BracketUpperMiddle
	BracketHigh
)

var bracketLabels = [...]string{
	BracketLow:         "Baixa (< 50k)",
	BracketLowerMiddle: "Média-Baixa (50k-100k)",
	BracketMiddle:      "Média (100k-500k)",
	BracketUpperMiddle: "Média-Alta (500k-1M)",
	BracketHigh:        "Alta (> 1M)",
}

// IncomeBracketOf maps an annual income to its bracket. Lower bounds are inclusive.
func IncomeBracketOf(income float64) IncomeBracket {
	switch {
	case income < 50_000:
		return BracketLow
	case income < 100_000:
		return BracketLowerMiddle
	case income < 500_000:
		return BracketMiddle
	case income < 1_000_000:
		return BracketUpperMiddle
	default:
		return BracketHigh
	}
}

func (b IncomeBracket) String() string {
	if b < BracketLow || b > BracketHigh {
		return "unknown"
	}
	return bracketLabels[b]
}
