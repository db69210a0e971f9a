package workflow

import (
	"fmt"
	"regexp"
	"strconv"
)

// Scope is the dynamically-typed variable mapping carried by a traversal
// path (§3 Instance.variables, §9 "tagged union" design note). Go's `any`
// already gives us the tagged-union spec.md asks for as a stdlib idiom —
// no boxed-value wrapper type is needed.
type Scope map[string]any

// Clone returns a shallow copy, used whenever a new path (parallel branch,
// multi-instance iteration, subprocess call) needs an isolated scope that
// must not race with its sibling's writes.
func (s Scope) Clone() Scope {
	c := make(Scope, len(s))
	for k, v := range s {
		c[k] = v
	}
	return c
}

var placeholderPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// ResolveVariables substitutes every ${name} placeholder in expr with the
// named variable's value: strings are quoted, everything else renders as
// its literal Go form. Unresolved names substitute as the literal `nil`.
func ResolveVariables(expr string, scope Scope) string {
	return placeholderPattern.ReplaceAllStringFunc(expr, func(m string) string {
		name := placeholderPattern.FindStringSubmatch(m)[1]
		v, ok := scope[name]
		if !ok {
			return "nil"
		}
		return literalRender(v)
	})
}

func literalRender(v any) string {
	switch t := v.(type) {
	case string:
		return strconv.Quote(t)
	case bool:
		return strconv.FormatBool(t)
	case nil:
		return "nil"
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	default:
		return fmt.Sprintf("%v", t)
	}
}
