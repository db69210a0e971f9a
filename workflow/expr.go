package workflow

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"strconv"
	"strings"
)

// EvaluateCondition implements §4.2's condition evaluation: ${name}
// placeholders are substituted against scope, the result is evaluated in a
// sandboxed arithmetic/comparison context, and on evaluation failure the
// resolved string falls back to a truthy-word check. No third-party
// expression-evaluation library appears anywhere in the example corpus
// (searched for expr/govaluate/otto/goja/cel/lua); go/parser + go/ast is
// the standard-library building block idiomatic Go reaches for when it
// needs to evaluate a small expression language without shelling out to a
// real interpreter, so this one case is implemented on the standard
// library rather than grounded in a pack dependency — see DESIGN.md.
func EvaluateCondition(condition string, scope Scope) bool {
	resolved := ResolveVariables(condition, scope)
	v, err := evalExpr(resolved, scope)
	if err != nil {
		return truthyWord(resolved)
	}
	return truthy(v)
}

// EvaluateExpressionValue resolves ${...} placeholders against scope and
// evaluates the result as an arbitrary-value expression (as opposed to
// EvaluateCondition's boolean coercion), for scriptTask's result
// assignment (§4.3). If the expression cannot be parsed as a Go
// expression, the resolved string itself is returned.
func EvaluateExpressionValue(expr string, scope Scope) (any, error) {
	resolved := ResolveVariables(expr, scope)
	v, err := evalExpr(resolved, scope)
	if err != nil {
		return resolved, nil
	}
	return v, nil
}

var truthyWords = map[string]bool{"true": true, "yes": true, "1": true, "approved": true}

func truthyWord(s string) bool {
	return truthyWords[strings.ToLower(strings.TrimSpace(strings.Trim(s, `"`)))]
}

func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return truthyWord(t)
	case float64:
		return t != 0
	case int:
		return t != 0
	case nil:
		return false
	default:
		return true
	}
}

func evalExpr(src string, scope Scope) (any, error) {
	expr, err := parser.ParseExpr(src)
	if err != nil {
		return nil, err
	}
	return evalNode(expr, scope)
}

func evalNode(n ast.Expr, scope Scope) (any, error) {
	switch e := n.(type) {
	case *ast.ParenExpr:
		return evalNode(e.X, scope)
	case *ast.BasicLit:
		return literalValue(e)
	case *ast.Ident:
		switch e.Name {
		case "true":
			return true, nil
		case "false":
			return false, nil
		case "nil":
			return nil, nil
		}
		if v, ok := scope[e.Name]; ok {
			return v, nil
		}
		return nil, fmt.Errorf("undefined identifier %q", e.Name)
	case *ast.UnaryExpr:
		x, err := evalNode(e.X, scope)
		if err != nil {
			return nil, err
		}
		switch e.Op {
		case token.NOT:
			return !truthy(x), nil
		case token.SUB:
			f, err := toFloat(x)
			if err != nil {
				return nil, err
			}
			return -f, nil
		}
		return nil, fmt.Errorf("unsupported unary operator %s", e.Op)
	case *ast.BinaryExpr:
		return evalBinary(e, scope)
	default:
		return nil, fmt.Errorf("unsupported expression of type %T", n)
	}
}

func literalValue(lit *ast.BasicLit) (any, error) {
	switch lit.Kind {
	case token.INT:
		i, err := strconv.ParseInt(lit.Value, 0, 64)
		if err != nil {
			return nil, err
		}
		return float64(i), nil
	case token.FLOAT:
		return strconv.ParseFloat(lit.Value, 64)
	case token.STRING:
		return strconv.Unquote(lit.Value)
	case token.CHAR:
		return strconv.Unquote(lit.Value)
	default:
		return nil, fmt.Errorf("unsupported literal kind %s", lit.Kind)
	}
}

func evalBinary(e *ast.BinaryExpr, scope Scope) (any, error) {
	// Short-circuit logical operators without evaluating the other side
	// eagerly.
	if e.Op == token.LAND || e.Op == token.LOR {
		l, err := evalNode(e.X, scope)
		if err != nil {
			return nil, err
		}
		if e.Op == token.LAND && !truthy(l) {
			return false, nil
		}
		if e.Op == token.LOR && truthy(l) {
			return true, nil
		}
		r, err := evalNode(e.Y, scope)
		if err != nil {
			return nil, err
		}
		return truthy(r), nil
	}

	l, err := evalNode(e.X, scope)
	if err != nil {
		return nil, err
	}
	r, err := evalNode(e.Y, scope)
	if err != nil {
		return nil, err
	}

	switch e.Op {
	case token.EQL:
		return equalValues(l, r), nil
	case token.NEQ:
		return !equalValues(l, r), nil
	}

	// Remaining operators are arithmetic/ordering, except '+' which also
	// supports string concatenation.
	ls, lIsStr := l.(string)
	rs, rIsStr := r.(string)
	if e.Op == token.ADD && lIsStr && rIsStr {
		return ls + rs, nil
	}

	lf, err := toFloat(l)
	if err != nil {
		return nil, err
	}
	rf, err := toFloat(r)
	if err != nil {
		return nil, err
	}

	switch e.Op {
	case token.ADD:
		return lf + rf, nil
	case token.SUB:
		return lf - rf, nil
	case token.MUL:
		return lf * rf, nil
	case token.QUO:
		if rf == 0 {
			return nil, fmt.Errorf("division by zero")
		}
		return lf / rf, nil
	case token.REM:
		if rf == 0 {
			return nil, fmt.Errorf("division by zero")
		}
		return float64(int64(lf) % int64(rf)), nil
	case token.LSS:
		return lf < rf, nil
	case token.LEQ:
		return lf <= rf, nil
	case token.GTR:
		return lf > rf, nil
	case token.GEQ:
		return lf >= rf, nil
	default:
		return nil, fmt.Errorf("unsupported operator %s", e.Op)
	}
}

func equalValues(l, r any) bool {
	lf, lerr := toFloat(l)
	rf, rerr := toFloat(r)
	if lerr == nil && rerr == nil {
		return lf == rf
	}
	return fmt.Sprintf("%v", l) == fmt.Sprintf("%v", r)
}

func toFloat(v any) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case int:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case bool:
		if t {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, fmt.Errorf("cannot treat %v (%T) as a number", v, v)
	}
}
