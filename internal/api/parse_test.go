package api

import (
	"testing"
)

func TestParseQueryRecognizedKeys(t *testing.T) {
	q := ParseQuery("user=%20admin%20&pass=se%3Dcret&prettyPrint&json=true&noStringify=false&wait=500&ack=1&type=number&callback=cb")

	if q.User != "admin" {
		t.Errorf("User = %q, want trimmed admin", q.User)
	}
	if q.Pass != "se=cret" {
		t.Errorf("Pass = %q", q.Pass)
	}
	if !q.PrettyPrint {
		t.Error("bare prettyPrint must default to true")
	}
	if !q.JSON {
		t.Error("json=true not parsed")
	}
	if q.NoStringify {
		t.Error("noStringify=false parsed as true")
	}
	if q.Wait != 500 {
		t.Errorf("Wait = %d, want 500", q.Wait)
	}
	if !q.Ack {
		t.Error("ack=1 not parsed as true")
	}
	if q.Type != "number" {
		t.Errorf("Type = %q", q.Type)
	}
	if q.Callback != "cb" {
		t.Errorf("Callback = %q", q.Callback)
	}
	if len(q.Values) != 0 {
		t.Errorf("recognized keys leaked into Values: %+v", q.Values)
	}
}

func TestParseQueryFlagSemantics(t *testing.T) {
	tests := []struct {
		raw  string
		want bool
	}{
		{"prettyPrint", true},
		{"prettyPrint=true", true},
		{"prettyPrint=false", false},
		{"prettyPrint=1", false}, // only the literal "true" counts with a value
		{"prettyPrint=", false},
	}
	for _, tt := range tests {
		if got := ParseQuery(tt.raw).PrettyPrint; got != tt.want {
			t.Errorf("ParseQuery(%q).PrettyPrint = %v, want %v", tt.raw, got, tt.want)
		}
	}
}

func TestParseQueryWaitSemantics(t *testing.T) {
	tests := []struct {
		raw  string
		want int
	}{
		{"wait", 2000},
		{"wait=750", 750},
		{"wait=abc", 0},
		{"wait=", 0},
		{"", 0},
	}
	for _, tt := range tests {
		if got := ParseQuery(tt.raw).Wait; got != tt.want {
			t.Errorf("ParseQuery(%q).Wait = %d, want %d", tt.raw, got, tt.want)
		}
	}
}

func TestParseQueryAckSemantics(t *testing.T) {
	tests := []struct {
		raw  string
		want bool
	}{
		{"ack=true", true},
		{"ack=1", true},
		{"ack=false", false},
		{"ack=yes", false},
		{"ack", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := ParseQuery(tt.raw).Ack; got != tt.want {
			t.Errorf("ParseQuery(%q).Ack = %v, want %v", tt.raw, got, tt.want)
		}
	}
}

func TestParseQuerySplitOnFirstEquals(t *testing.T) {
	q := ParseQuery("a=1=2&b")

	if len(q.Values) != 2 {
		t.Fatalf("Values = %+v, want 2 entries", q.Values)
	}
	if q.Values[0].Key != "a" || q.Values[0].Val != "1=2" || !q.Values[0].HasValue {
		t.Errorf("Values[0] = %+v, want value 1=2", q.Values[0])
	}
	if q.Values[1].Key != "b" || q.Values[1].HasValue {
		t.Errorf("Values[1] = %+v, want valueless b", q.Values[1])
	}
}

func TestParseQueryPlusOnlyInValues(t *testing.T) {
	q := ParseQuery("a+b=c+d")

	if len(q.Values) != 1 {
		t.Fatalf("Values = %+v", q.Values)
	}
	if q.Values[0].Key != "a+b" {
		t.Errorf("key = %q, plus must stay literal in keys", q.Values[0].Key)
	}
	if q.Values[0].Val != "c d" {
		t.Errorf("val = %q, plus must decode to space in values", q.Values[0].Val)
	}
}

func TestParseQueryDecodeFailureKeepsRaw(t *testing.T) {
	q := ParseQuery("x=%zz")

	if len(q.Values) != 1 {
		t.Fatalf("Values = %+v", q.Values)
	}
	if q.Values[0].Val != "%zz" {
		t.Errorf("val = %q, want raw fallback %%zz", q.Values[0].Val)
	}
}

func TestParseQueryPercentDecoding(t *testing.T) {
	q := ParseQuery("value=21%2C5&id=hm-rpc.0.JEQ0318%2E1")

	if v, _ := q.Get("value"); v != "21,5" {
		t.Errorf("value = %q, want 21,5", v)
	}
	if v, _ := q.Get("id"); v != "hm-rpc.0.JEQ0318.1" {
		t.Errorf("id = %q", v)
	}
}

func TestParseQueryPreservesValueOrder(t *testing.T) {
	q := ParseQuery("c=3&a=1&b=2")

	want := []string{"c", "a", "b"}
	if len(q.Values) != len(want) {
		t.Fatalf("Values = %+v", q.Values)
	}
	for i, key := range want {
		if q.Values[i].Key != key {
			t.Errorf("Values[%d].Key = %q, want %q", i, q.Values[i].Key, key)
		}
	}
}
