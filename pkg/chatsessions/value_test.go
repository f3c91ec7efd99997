package chatsessions

import (
	"testing"
)

func TestDecodePreservesMemberOrder(t *testing.T) {
	data := `{"zebra": 1, "apple": 2, "mango": {"y": true, "a": false}}`
	v, err := Decode([]byte(data))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if v.Kind != KindObject {
		t.Fatalf("Expected object, got kind %v", v.Kind)
	}

	keys := []string{}
	for _, m := range v.Members {
		keys = append(keys, m.Key)
	}
	want := []string{"zebra", "apple", "mango"}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("Expected key order %v, got %v", want, keys)
		}
	}

	// Round-tripping keeps declaration order too
	out := Dump(v)
	if out != `{"zebra":1,"apple":2,"mango":{"y":true,"a":false}}` {
		t.Errorf("Unexpected serialization: %s", out)
	}
}

func TestDecodeRejectsTrailingContent(t *testing.T) {
	for _, data := range []string{
		`{"a": 1}garbage`,
		`{"a": 1}{"b": 2}`,
		`[1] 2`,
	} {
		if _, err := Decode([]byte(data)); err == nil {
			t.Errorf("Decode(%s) accepted trailing content", data)
		}
	}

	// Trailing whitespace is still a single document
	if _, err := Decode([]byte("{\"a\": 1}  \n")); err != nil {
		t.Errorf("Trailing whitespace must parse: %v", err)
	}
}

func TestDecodeLargeIntegers(t *testing.T) {
	v, err := Decode([]byte(`{"timestamp": 1700000500123}`))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	n, ok := v.Get("timestamp").IntVal()
	if !ok || n != 1700000500123 {
		t.Errorf("Expected 1700000500123, got %d (ok=%v)", n, ok)
	}
}

func TestIntValCoercions(t *testing.T) {
	tests := []struct {
		name string
		v    *Value
		want int64
		ok   bool
	}{
		{"number", Int(7), 7, true},
		{"float truncates", mustDecode(t, `3.9`), 3, true},
		{"bool true", Bool(true), 1, true},
		{"bool false", Bool(false), 0, true},
		{"numeric string", String("42"), 42, true},
		{"negative string", String("-1"), -1, true},
		{"word string", String("seven"), 0, false},
		{"null", Null(), 0, false},
		{"nil", nil, 0, false},
	}
	for _, tt := range tests {
		got, ok := tt.v.IntVal()
		if got != tt.want || ok != tt.ok {
			t.Errorf("%s: IntVal() = (%d, %v), want (%d, %v)", tt.name, got, ok, tt.want, tt.ok)
		}
	}
}

func TestBoolValTruthiness(t *testing.T) {
	if Null().BoolVal() {
		t.Error("null must be falsy")
	}
	if !Int(1).BoolVal() || Int(0).BoolVal() {
		t.Error("numbers follow non-zero truthiness")
	}
	if !String("x").BoolVal() || String("").BoolVal() {
		t.Error("strings follow non-empty truthiness")
	}
	var absent *Value
	if absent.BoolVal() {
		t.Error("absent must be falsy")
	}
}

func TestGetMissingAndNonObject(t *testing.T) {
	if Int(1).Get("x") != nil {
		t.Error("Get on a non-object must return nil")
	}
	if Object().Get("x") != nil {
		t.Error("Get on a missing key must return nil")
	}
}

func TestDumpPtr(t *testing.T) {
	if DumpPtr(nil) != nil {
		t.Error("nil must map to nil")
	}
	if DumpPtr(Null()) != nil {
		t.Error("explicit null must map to nil")
	}
	s := DumpPtr(String("hi"))
	if s == nil || *s != `"hi"` {
		t.Errorf("Unexpected dump %v", s)
	}
}

func mustDecode(t *testing.T, data string) *Value {
	t.Helper()
	v, err := Decode([]byte(data))
	if err != nil {
		t.Fatalf("Decode(%s) error = %v", data, err)
	}
	return v
}
