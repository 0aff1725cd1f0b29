package worker

import (
	"bytes"
	"strings"
	"testing"
)

func newTestEvaluator(t *testing.T, calloutInput string) (*Evaluator, *Namespace, *FinalOutput) {
	t.Helper()
	eval, ns, final, _ := newTestEvaluatorCapturingCallouts(t, calloutInput)
	return eval, ns, final
}

func newTestEvaluatorCapturingCallouts(t *testing.T, calloutInput string) (*Evaluator, *Namespace, *FinalOutput, *bytes.Buffer) {
	t.Helper()
	out := &bytes.Buffer{}
	frameIO := NewFrameIO(strings.NewReader(calloutInput), out)
	ch := NewChannel(frameIO)
	final := &FinalOutput{}
	ns := NewNamespace(ch, HelperConfig{}, final)
	return NewEvaluator(ns), ns, final, out
}

func TestExecuteExpressionReturnsValue(t *testing.T) {
	eval, _, _ := newTestEvaluator(t, "")

	result := eval.Execute("1 + 2")
	if result.Error != "" {
		t.Fatalf("unexpected error: %s", result.Error)
	}
	if result.ReturnValue != "3" {
		t.Errorf("return_value = %q, want %q", result.ReturnValue, "3")
	}
}

func TestExecuteAssignmentHasNoReturnValueButPersists(t *testing.T) {
	eval, ns, _ := newTestEvaluator(t, "")

	result := eval.Execute("x = 'hi'")
	if result.Error != "" {
		t.Fatalf("unexpected error: %s", result.Error)
	}
	if result.ReturnValue != "" {
		t.Errorf("return_value = %q, want empty", result.ReturnValue)
	}

	value, length, typ, err := ns.GetVar("x", 0, 0, false)
	if err != nil {
		t.Fatalf("GetVar failed: %v", err)
	}
	if value != "hi" || length != 2 || typ != "str" {
		t.Errorf("GetVar(x) = (%q, %d, %q), want (\"hi\", 2, \"str\")", value, length, typ)
	}

	names := ns.ListVars()
	if len(names) != 1 || names[0].Name != "x" {
		t.Errorf("ListVars() = %+v, want a single entry for x", names)
	}
}

func TestExecuteSyntaxErrorKeepsNamespaceAlive(t *testing.T) {
	eval, ns, _ := newTestEvaluator(t, "")

	eval.Execute("y = 1")

	result := eval.Execute("function (")
	if !strings.HasPrefix(result.Error, "SyntaxError:") {
		t.Errorf("error = %q, want it to start with SyntaxError:", result.Error)
	}

	value, _, _, err := ns.GetVar("y", 0, 0, false)
	if err != nil || value != "1" {
		t.Errorf("binding made before a later syntax error was lost: value=%q err=%v", value, err)
	}
}

func TestExecuteCallbackRoundTripAndFinalOutput(t *testing.T) {
	eval, _, final, out := newTestEvaluatorCapturingCallouts(t, `{"result":"hello"}`+"\n")

	result := eval.Execute("FINAL(llm_call('hi'))")
	if result.Error != "" {
		t.Fatalf("unexpected error: %s", result.Error)
	}
	if result.ReturnValue != "'hello'" {
		t.Errorf("return_value = %q, want %q", result.ReturnValue, "'hello'")
	}

	// spec.md §8 scenario 5 pins the callback frame's params verbatim.
	wantFrame := `{"callback":"llm_call","callback_id":1,"params":{"prompt":"hi","context":"","model":"auto"}}` + "\n"
	if out.String() != wantFrame {
		t.Errorf("callback frame = %q, want %q", out.String(), wantFrame)
	}

	content, kind, ok, _ := final.Content()
	if !ok || content != "hello" || kind != "text" {
		t.Errorf("final output = (%q, %q, %v), want (\"hello\", \"text\", true)", content, kind, ok)
	}
}

func TestExecuteCapturesPrintOutput(t *testing.T) {
	eval, _, _ := newTestEvaluator(t, "")

	result := eval.Execute("print('hello'); print('world')")
	if result.Output != "hello\nworld\n" {
		t.Errorf("output = %q, want %q", result.Output, "hello\nworld\n")
	}
}
