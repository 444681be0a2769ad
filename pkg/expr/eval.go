package expr

import (
	"fmt"
	"reflect"
)

// Evaluate parses and evaluates a boolean expression against the variable
// bag. Any failure (syntax error, unbound variable, type mismatch,
// non-boolean result) is returned as an error; the engine maps it to
// false so one malformed guard never halts an instance.
func Evaluate(expression string, vars map[string]any) (bool, error) {
	root, err := Parse(expression)
	if err != nil {
		return false, err
	}

	value, err := root.eval(vars)
	if err != nil {
		return false, err
	}

	result, ok := value.(bool)
	if !ok {
		return false, fmt.Errorf("expression result is %T, not boolean", value)
	}

	return result, nil
}

func (n *literalNode) eval(_ map[string]any) (any, error) {
	return n.value, nil
}

func (n *identNode) eval(vars map[string]any) (any, error) {
	value, ok := vars[n.name]
	if !ok {
		return nil, fmt.Errorf("unbound variable %q", n.name)
	}

	return normalize(value), nil
}

func (n *unaryNode) eval(vars map[string]any) (any, error) {
	value, err := n.operand.eval(vars)
	if err != nil {
		return nil, err
	}

	switch n.op {
	case "!":
		b, ok := value.(bool)
		if !ok {
			return nil, fmt.Errorf("operator ! requires a boolean, got %T", value)
		}

		return !b, nil
	case "-":
		f, ok := value.(float64)
		if !ok {
			return nil, fmt.Errorf("operator - requires a number, got %T", value)
		}

		return -f, nil
	default:
		return nil, fmt.Errorf("unknown unary operator %q", n.op)
	}
}

func (n *binaryNode) eval(vars map[string]any) (any, error) {
	left, err := n.left.eval(vars)
	if err != nil {
		return nil, err
	}

	// Short-circuit logical operators before evaluating the right side.
	switch n.op {
	case "&&", "||":
		lb, ok := left.(bool)
		if !ok {
			return nil, fmt.Errorf("operator %s requires booleans, got %T", n.op, left)
		}

		if n.op == "&&" && !lb {
			return false, nil
		}

		if n.op == "||" && lb {
			return true, nil
		}

		right, err := n.right.eval(vars)
		if err != nil {
			return nil, err
		}

		rb, ok := right.(bool)
		if !ok {
			return nil, fmt.Errorf("operator %s requires booleans, got %T", n.op, right)
		}

		return rb, nil
	}

	right, err := n.right.eval(vars)
	if err != nil {
		return nil, err
	}

	switch n.op {
	case "==":
		return equals(left, right), nil
	case "!=":
		return !equals(left, right), nil
	case ">", "<", ">=", "<=":
		return compare(n.op, left, right)
	case "+", "-", "*", "/":
		return arithmetic(n.op, left, right)
	default:
		return nil, fmt.Errorf("unknown operator %q", n.op)
	}
}

func equals(left, right any) bool {
	lf, lok := left.(float64)
	rf, rok := right.(float64)

	if lok && rok {
		return lf == rf
	}

	return reflect.DeepEqual(left, right)
}

func compare(op string, left, right any) (any, error) {
	if ls, ok := left.(string); ok {
		rs, ok := right.(string)
		if !ok {
			return nil, fmt.Errorf("operator %s: cannot compare string with %T", op, right)
		}

		return orderResult(op, ls > rs, ls < rs), nil
	}

	lf, lok := left.(float64)
	rf, rok := right.(float64)

	if !lok || !rok {
		return nil, fmt.Errorf("operator %s requires two numbers or two strings, got %T and %T", op, left, right)
	}

	return orderResult(op, lf > rf, lf < rf), nil
}

func orderResult(op string, greater, less bool) bool {
	switch op {
	case ">":
		return greater
	case "<":
		return less
	case ">=":
		return !less
	case "<=":
		return !greater
	}

	return false
}

func arithmetic(op string, left, right any) (any, error) {
	lf, lok := left.(float64)
	rf, rok := right.(float64)

	if !lok || !rok {
		// String concatenation is the one non-numeric arithmetic form.
		if op == "+" {
			ls, lsOK := left.(string)
			rs, rsOK := right.(string)

			if lsOK && rsOK {
				return ls + rs, nil
			}
		}

		return nil, fmt.Errorf("operator %s requires numbers, got %T and %T", op, left, right)
	}

	switch op {
	case "+":
		return lf + rf, nil
	case "-":
		return lf - rf, nil
	case "*":
		return lf * rf, nil
	case "/":
		if rf == 0 {
			return nil, fmt.Errorf("division by zero")
		}

		return lf / rf, nil
	}

	return nil, fmt.Errorf("unknown arithmetic operator %q", op)
}

// normalize coerces numeric variable values to float64 so comparisons
// against numeric literals behave uniformly. Variable bags round-tripped
// through JSON already arrive as float64.
func normalize(value any) any {
	switch v := value.(type) {
	case int:
		return float64(v)
	case int32:
		return float64(v)
	case int64:
		return float64(v)
	case float32:
		return float64(v)
	default:
		return value
	}
}
