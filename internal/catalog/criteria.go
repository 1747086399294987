package catalog

import (
	"errors"
	"fmt"
)

// Criteria types. A criteria tree is data, never executed code.
const (
	CriteriaCountThreshold = "count_threshold"
	CriteriaComposite      = "composite"
)

// Comparison operators for count_threshold criteria.
const (
	OpGTE = "gte"
	OpGT  = "gt"
	OpEQ  = "eq"
	OpLTE = "lte"
	OpLT  = "lt"
)

// Composite modes.
const (
	ModeAll = "all"
	ModeAny = "any"
)

var (
	ErrUnknownCriteriaType = errors.New("unknown criteria type")
	ErrUnknownOperator     = errors.New("unknown operator")
	ErrUnknownStat         = errors.New("unknown stat")
	ErrEmptyComposite      = errors.New("composite criteria has no predicates")
)

// Criteria is the tagged predicate attached to achievement and badge
// definitions. A count_threshold node compares one progress stat (optionally
// filtered to an action category) against a value; a composite node combines
// sub-predicates with all/any semantics.
type Criteria struct {
	Type       string     `json:"type"`
	Stat       string     `json:"stat,omitempty"`
	Op         string     `json:"op,omitempty"`
	Value      int        `json:"value,omitempty"`
	Category   string     `json:"category,omitempty"`
	Mode       string     `json:"mode,omitempty"`
	Predicates []Criteria `json:"predicates,omitempty"`
}

// StatFunc resolves a stat name for the user under evaluation. category is
// empty unless the criteria node carries a category filter.
type StatFunc func(stat, category string) (int, error)

// Validate walks the criteria tree and rejects malformed nodes up front so a
// broken definition is caught at catalog load, not mid-evaluation.
func (c Criteria) Validate() error {
	switch c.Type {
	case CriteriaCountThreshold:
		switch c.Op {
		case OpGTE, OpGT, OpEQ, OpLTE, OpLT:
		default:
			return fmt.Errorf("%w: %q", ErrUnknownOperator, c.Op)
		}
		if c.Stat == "" {
			return fmt.Errorf("%w: empty stat name", ErrUnknownStat)
		}
		return nil
	case CriteriaComposite:
		if c.Mode != ModeAll && c.Mode != ModeAny {
			return fmt.Errorf("composite mode must be all or any, got %q", c.Mode)
		}
		if len(c.Predicates) == 0 {
			return ErrEmptyComposite
		}
		for _, p := range c.Predicates {
			if err := p.Validate(); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCriteriaType, c.Type)
	}
}

// Evaluate resolves the criteria tree against the given stat source.
func (c Criteria) Evaluate(stats StatFunc) (bool, error) {
	switch c.Type {
	case CriteriaCountThreshold:
		actual, err := stats(c.Stat, c.Category)
		if err != nil {
			return false, err
		}
		return compare(actual, c.Op, c.Value)
	case CriteriaComposite:
		if len(c.Predicates) == 0 {
			return false, ErrEmptyComposite
		}
		for _, p := range c.Predicates {
			ok, err := p.Evaluate(stats)
			if err != nil {
				return false, err
			}
			if c.Mode == ModeAll && !ok {
				return false, nil
			}
			if c.Mode == ModeAny && ok {
				return true, nil
			}
		}
		return c.Mode == ModeAll, nil
	default:
		return false, fmt.Errorf("%w: %q", ErrUnknownCriteriaType, c.Type)
	}
}

func compare(actual int, op string, value int) (bool, error) {
	switch op {
	case OpGTE:
		return actual >= value, nil
	case OpGT:
		return actual > value, nil
	case OpEQ:
		return actual == value, nil
	case OpLTE:
		return actual <= value, nil
	case OpLT:
		return actual < value, nil
	default:
		return false, fmt.Errorf("%w: %q", ErrUnknownOperator, op)
	}
}
