package query

import (
	"errors"
	"fmt"

	"github.com/platinummonkey/crmacl/pkg/entity"
)

// ErrUnsupported is returned for conditions that need the database, such as
// subqueries.
var ErrUnsupported = errors.New("condition cannot be evaluated in memory")

// Match evaluates a condition against a record. Empty strings count as NULL.
func Match(c Condition, e entity.Entity) (bool, error) {
	switch c := c.(type) {
	case Comparison:
		v := e.Get(c.Attribute)
		switch c.Operator {
		case OpIsNull:
			return isNull(v), nil
		case OpIsNotNull:
			return !isNull(v), nil
		case OpEq:
			return !isNull(v) && equal(v, c.Value), nil
		case OpNotEq:
			return !isNull(v) && !equal(v, c.Value), nil
		case OpIn, OpNotIn:
			found := false
			for _, want := range c.Values {
				if !isNull(v) && equal(v, want) {
					found = true
					break
				}
			}
			if c.Operator == OpIn {
				return found, nil
			}
			return !isNull(v) && !found, nil
		}
		return false, fmt.Errorf("unsupported operator %q", c.Operator)

	case Group:
		for _, item := range c.Items {
			ok, err := Match(item, e)
			if err != nil {
				return false, err
			}
			if c.Or && ok {
				return true, nil
			}
			if !c.Or && !ok {
				return false, nil
			}
		}
		return !c.Or, nil

	case LinkContains:
		return entity.Intersects(entity.LinkIDs(e, c.Link.Name), c.IDs), nil

	case InSubquery:
		return false, ErrUnsupported
	}
	return false, fmt.Errorf("unsupported condition %T", c)
}

// MatchAll evaluates the where items of a select against a record.
func (q *Select) MatchAll(e entity.Entity) (bool, error) {
	for _, c := range q.Where {
		ok, err := Match(c, e)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func isNull(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	}
	return false
}

func equal(a, b any) bool {
	return fmt.Sprint(a) == fmt.Sprint(b)
}
