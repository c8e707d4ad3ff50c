package element

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/duragraph/duragraph/internal/domain/expr"
)

var comparisonOps = []string{"==", "!=", ">=", "<=", ">", "<"}

// evalCondition resolves a sequence flow's condition expression against
// vars and reports whether it is satisfied. §4.1 only specifies template
// substitution; gateway routing additionally needs a truth value, so a
// condition is either a bare template (truthy if its resolved value is
// non-empty/non-zero/true) or a simple binary comparison of two templates
// (spec §8 scenario 2: "${x} == 1").
func evalCondition(condition string, vars map[string]interface{}) bool {
	condition = strings.TrimSpace(condition)
	if condition == "" {
		return false
	}

	for _, op := range comparisonOps {
		if idx := strings.Index(condition, op); idx >= 0 {
			lhs := strings.TrimSpace(condition[:idx])
			rhs := strings.TrimSpace(condition[idx+len(op):])
			return compare(expr.Evaluate(lhs, vars), op, expr.Evaluate(rhs, vars))
		}
	}

	return truthy(expr.Evaluate(condition, vars))
}

func compare(lhs interface{}, op string, rhs interface{}) bool {
	lf, lok := asFloat(lhs)
	rf, rok := asFloat(rhs)
	if lok && rok {
		switch op {
		case "==":
			return lf == rf
		case "!=":
			return lf != rf
		case ">=":
			return lf >= rf
		case "<=":
			return lf <= rf
		case ">":
			return lf > rf
		case "<":
			return lf < rf
		}
	}

	ls, rs := toComparableString(lhs), toComparableString(rhs)
	switch op {
	case "==":
		return ls == rs
	case "!=":
		return ls != rs
	default:
		return false
	}
}

func asFloat(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func toComparableString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.Trim(t, `"'`)
	default:
		return fmt.Sprintf("%v", t)
	}
}

func truthy(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		s := strings.TrimSpace(t)
		return s != "" && s != "false" && s != "0"
	case float64:
		return t != 0
	case int:
		return t != 0
	default:
		return true
	}
}
