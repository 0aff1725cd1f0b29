package worker

import (
	"strings"
	"time"

	"github.com/dop251/goja"

	"github.com/BV-BRC/rlm-worker/pkg/protocol"
)

// Evaluator runs code fragments against a Namespace and reports the
// result the way the wire protocol expects: a return_value only when the
// fragment's last top-level statement is "just an expression" (spec.md
// §4.2, §8 scenarios 2 and 3).
type Evaluator struct {
	ns *Namespace
}

// NewEvaluator wraps ns for repeated Execute calls.
func NewEvaluator(ns *Namespace) *Evaluator {
	return &Evaluator{ns: ns}
}

// Execute evaluates code once against the namespace. The namespace is
// reconciled whether or not the fragment raised, so bindings made before
// a mid-fragment error remain visible afterward.
func (e *Evaluator) Execute(code string) protocol.ExecuteResult {
	start := time.Now()
	e.ns.resetCapture()

	blockPart, exprPart, hasExpr := splitExecutable(code)

	var returnValue string
	var evalErr error

	if strings.TrimSpace(blockPart) != "" {
		if _, err := e.ns.vm.RunString(blockPart); err != nil {
			evalErr = err
		}
	}

	if evalErr == nil && hasExpr {
		v, err := e.ns.vm.RunString("(" + exprPart + ")")
		if err != nil {
			evalErr = err
		} else if v != nil && !goja.IsUndefined(v) && !goja.IsNull(v) {
			returnValue = reprOf(v.Export())
		}
	}

	e.ns.reconcile()
	output := e.ns.resetCapture()

	result := protocol.ExecuteResult{
		Output:      output,
		ReturnValue: returnValue,
		DurationMs:  time.Since(start).Milliseconds(),
	}
	if evalErr != nil {
		result.Error = formatEvalError(evalErr)
	}
	return result
}

// splitExecutable separates code into a leading block of statements to
// run for side effects and, when the final top-level statement is a pure
// expression, that expression's own source — re-evaluated in isolation
// so its completion value can be captured independent of whatever the
// block statements before it left behind.
func splitExecutable(code string) (block string, expr string, hasExpr bool) {
	stmts := splitTopLevelStatements(code)
	if len(stmts) == 0 {
		return "", "", false
	}

	last := stmts[len(stmts)-1]
	if !chunkIsPureExpression(last) {
		return code, "", false
	}

	return strings.Join(stmts[:len(stmts)-1], ";\n"), strings.TrimSuffix(strings.TrimSpace(last), ";"), true
}

// formatEvalError renders a goja evaluation failure as "<Type>: <message>",
// matching the shape of the Python tracebacks this wire format was pinned
// against (spec.md §8 scenario 4).
func formatEvalError(err error) string {
	if exc, ok := err.(*goja.Exception); ok {
		v := exc.Value()
		if obj, ok2 := v.(*goja.Object); ok2 {
			name := obj.Get("name")
			msg := obj.Get("message")
			if name != nil && msg != nil && !goja.IsUndefined(name) {
				return name.String() + ": " + msg.String()
			}
		}
		return v.String()
	}
	if _, ok := err.(*goja.InterruptedError); ok {
		return "CPU time limit exceeded"
	}
	return "SyntaxError: " + err.Error()
}
