package worker

import "testing"

func TestIsPureExpression(t *testing.T) {
	cases := []struct {
		code string
		want bool
	}{
		{"1 + 2", true},
		{"x", true},
		{"foo(1, 2)", true},
		{"{a: 1, b: 2}", true},
		{"x = 'hi'", false},
		{"let x = 1", false},
		{"const x = 1", false},
		{"x += 1", false},
		{"x == 1", true},
		{"x === 1", true},
		{"x <= 1", true},
		{"(x) => x + 1", true},
		{"if (x) { y = 1 }", false},
		{"for (let i = 0; i < 3; i++) {}", false},
		{"x = 1; y = 2", false},
	}

	for _, c := range cases {
		got := isPureExpression(c.code)
		if got != c.want {
			t.Errorf("isPureExpression(%q) = %v, want %v", c.code, got, c.want)
		}
	}
}

func TestSplitTopLevelStatements(t *testing.T) {
	stmts := splitTopLevelStatements("x = 1; y = 'a;b'; z(1, 2)")
	if len(stmts) != 3 {
		t.Fatalf("expected 3 statements, got %d: %v", len(stmts), stmts)
	}
	if stmts[1] != "y = 'a;b'" {
		t.Errorf("semicolon inside string literal was treated as a separator: %v", stmts)
	}
}

func TestContainsTopLevelAssignment(t *testing.T) {
	cases := []struct {
		code string
		want bool
	}{
		{"x = 1", true},
		{"x == 1", false},
		{"x === 1", false},
		{"x != 1", false},
		{"x <= 1", false},
		{"x >= 1", false},
		{"(x) => x", false},
		{"x += 1", true},
		{"x **= 2", true},
		{"a[0] = 1", true},
		{"f(a == b)", false},
	}

	for _, c := range cases {
		got := containsTopLevelAssignment(c.code)
		if got != c.want {
			t.Errorf("containsTopLevelAssignment(%q) = %v, want %v", c.code, got, c.want)
		}
	}
}
