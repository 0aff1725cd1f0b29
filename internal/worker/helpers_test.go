package worker

import (
	"reflect"
	"testing"
)

func TestHelperPeek(t *testing.T) {
	if got := helperPeek("hello world", 5); got != "hello..." {
		t.Errorf("helperPeek = %q, want %q", got, "hello...")
	}
	if got := helperPeek("hi", 10); got != "hi" {
		t.Errorf("helperPeek short string = %q, want %q", got, "hi")
	}
}

func TestHelperGrep(t *testing.T) {
	text := "apple\nbanana\navocado"
	got, err := helperGrep(text, "^a")
	if err != nil {
		t.Fatalf("helperGrep error: %v", err)
	}
	want := []string{"apple", "avocado"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("helperGrep = %v, want %v", got, want)
	}
}

func TestHelperPartition(t *testing.T) {
	items := []interface{}{1, 2, 3, 4, 5}
	got, err := helperPartition(items, 2)
	if err != nil {
		t.Fatalf("helperPartition error: %v", err)
	}
	if len(got) != 3 || len(got[0]) != 2 || len(got[2]) != 1 {
		t.Errorf("helperPartition = %v, want chunks of [2,2,1]", got)
	}
}

func TestHelperPartitionByLines(t *testing.T) {
	text := "a\nb\nc\nd\ne"
	got, err := helperPartitionByLines(text, 2)
	if err != nil {
		t.Fatalf("helperPartitionByLines error: %v", err)
	}
	want := []string{"a\nb", "c\nd", "e"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("helperPartitionByLines = %v, want %v", got, want)
	}
}

func TestHelperExtractFunctions(t *testing.T) {
	code := "function add(a, b) { return a + b }\nasync function fetchIt(url) {}"
	got := helperExtractFunctions(code)
	if len(got) != 2 {
		t.Fatalf("helperExtractFunctions found %d functions, want 2: %v", len(got), got)
	}
	if got[0]["name"] != "add" {
		t.Errorf("first function name = %v, want add", got[0]["name"])
	}
}

func TestHelperCountTokensApprox(t *testing.T) {
	if got := helperCountTokensApprox("12345678"); got != 2 {
		t.Errorf("helperCountTokensApprox = %d, want 2", got)
	}
}
