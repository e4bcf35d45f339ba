package ledger

import "fmt"

// CostBasisMethod selects how realized profit and the reported average
// cost are computed during replay.
type CostBasisMethod int

const (
	// AverageCost keeps a single weighted average per ticker.
	AverageCost CostBasisMethod = iota
	// FIFO keeps per-ticker purchase lots and consumes them oldest-first.
	FIFO
)

func (m CostBasisMethod) String() string {
	switch m {
	case AverageCost:
		return "average"
	case FIFO:
		return "fifo"
	default:
		return "unknown"
	}
}

// ParseCostBasisMethod parses a string into a CostBasisMethod.
func ParseCostBasisMethod(s string) (CostBasisMethod, error) {
	switch s {
	case "average":
		return AverageCost, nil
	case "fifo":
		return FIFO, nil
	default:
		return 0, fmt.Errorf("unknown cost basis method: %q", s)
	}
}
