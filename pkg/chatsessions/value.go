package chatsessions

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
)

// Kind discriminates the variants of a Value.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

// Member is a single object member. Members keep the declaration order of
// the source document, which the extraction heuristics depend on.
type Member struct {
	Key   string
	Value *Value
}

// Value is a decoded JSON document node. Unlike map[string]any, object
// members preserve source order, so walking a Value is deterministic.
type Value struct {
	Kind    Kind
	Str     string
	Num     json.Number
	Bool    bool
	Members []Member
	Items   []*Value
}

// Decode parses a JSON document into a Value tree. Syntax errors carry the
// byte offset from encoding/json. The document must be a single value;
// trailing content is an error.
func Decode(data []byte) (*Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	v, err := decodeValue(dec)
	if err != nil {
		return nil, err
	}
	if tok, err := dec.Token(); err != io.EOF {
		if err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("unexpected content after JSON value: %v", tok)
	}
	return v, nil
}

func decodeValue(dec *json.Decoder) (*Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}

	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			v := &Value{Kind: KindObject}
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return nil, fmt.Errorf("object key is not a string: %v", keyTok)
				}
				val, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				v.Members = append(v.Members, Member{Key: key, Value: val})
			}
			if _, err := dec.Token(); err != nil { // closing '}'
				return nil, err
			}
			return v, nil
		case '[':
			v := &Value{Kind: KindArray}
			for dec.More() {
				item, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				v.Items = append(v.Items, item)
			}
			if _, err := dec.Token(); err != nil { // closing ']'
				return nil, err
			}
			return v, nil
		}
		return nil, fmt.Errorf("unexpected delimiter %v", t)
	case string:
		return &Value{Kind: KindString, Str: t}, nil
	case json.Number:
		return &Value{Kind: KindNumber, Num: t}, nil
	case bool:
		return &Value{Kind: KindBool, Bool: t}, nil
	case nil:
		return &Value{Kind: KindNull}, nil
	}
	return nil, fmt.Errorf("unexpected token %v", tok)
}

// MarshalJSON re-serializes the tree, preserving object member order.
func (v *Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := v.encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (v *Value) encode(buf *bytes.Buffer) error {
	if v == nil {
		buf.WriteString("null")
		return nil
	}
	switch v.Kind {
	case KindNull:
		buf.WriteString("null")
	case KindBool:
		if v.Bool {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case KindNumber:
		if v.Num == "" {
			buf.WriteString("0")
		} else {
			buf.WriteString(string(v.Num))
		}
	case KindString:
		b, err := json.Marshal(v.Str)
		if err != nil {
			return err
		}
		buf.Write(b)
	case KindArray:
		buf.WriteByte('[')
		for i, item := range v.Items {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := item.encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case KindObject:
		buf.WriteByte('{')
		for i, m := range v.Members {
			if i > 0 {
				buf.WriteByte(',')
			}
			b, err := json.Marshal(m.Key)
			if err != nil {
				return err
			}
			buf.Write(b)
			buf.WriteByte(':')
			if err := m.Value.encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	}
	return nil
}

// Get returns the value of the first member with the given key, or nil.
func (v *Value) Get(key string) *Value {
	if v == nil || v.Kind != KindObject {
		return nil
	}
	for _, m := range v.Members {
		if m.Key == key {
			return m.Value
		}
	}
	return nil
}

// StringVal returns the string content of a string node.
func (v *Value) StringVal() (string, bool) {
	if v != nil && v.Kind == KindString {
		return v.Str, true
	}
	return "", false
}

// IntVal coerces a node to an integer: numbers truncate, booleans map to
// 0/1, and numeric strings parse. Everything else fails.
func (v *Value) IntVal() (int64, bool) {
	if v == nil {
		return 0, false
	}
	switch v.Kind {
	case KindBool:
		if v.Bool {
			return 1, true
		}
		return 0, true
	case KindNumber:
		if n, err := v.Num.Int64(); err == nil {
			return n, true
		}
		if f, err := v.Num.Float64(); err == nil {
			return int64(f), true
		}
	case KindString:
		if n, err := strconv.ParseInt(v.Str, 10, 64); err == nil {
			return n, true
		}
	}
	return 0, false
}

// BoolVal treats null/absent as false and accepts truthy numbers, matching
// the loose typing of the source archives.
func (v *Value) BoolVal() bool {
	if v == nil {
		return false
	}
	switch v.Kind {
	case KindBool:
		return v.Bool
	case KindNumber:
		n, _ := v.Num.Int64()
		return n != 0
	case KindString:
		return v.Str != ""
	case KindArray:
		return len(v.Items) > 0
	case KindObject:
		return len(v.Members) > 0
	}
	return false
}

// IsNull reports whether the node is absent or an explicit null.
func (v *Value) IsNull() bool {
	return v == nil || v.Kind == KindNull
}

// Object builds an object node from alternating keys and values.
func Object(members ...Member) *Value {
	return &Value{Kind: KindObject, Members: members}
}

// M is a convenience constructor for a Member.
func M(key string, value *Value) Member {
	return Member{Key: key, Value: value}
}

// Array builds an array node.
func Array(items ...*Value) *Value {
	return &Value{Kind: KindArray, Items: items}
}

// String builds a string node.
func String(s string) *Value {
	return &Value{Kind: KindString, Str: s}
}

// Int builds a number node.
func Int(n int64) *Value {
	return &Value{Kind: KindNumber, Num: json.Number(strconv.FormatInt(n, 10))}
}

// Bool builds a boolean node.
func Bool(b bool) *Value {
	return &Value{Kind: KindBool, Bool: b}
}

// Null builds an explicit null node.
func Null() *Value {
	return &Value{Kind: KindNull}
}

// DumpPtr serializes a Value for a nullable column: absent and null map
// to nil instead of the literal "null".
func DumpPtr(v *Value) *string {
	if v.IsNull() {
		return nil
	}
	s := Dump(v)
	return &s
}

// Dump serializes a Value with a stringified fallback so callers never
// have to handle an encoding failure for data that already decoded.
func Dump(v *Value) string {
	if v == nil {
		return "null"
	}
	b, err := v.MarshalJSON()
	if err != nil {
		quoted, _ := json.Marshal(fmt.Sprintf("%v", v))
		return string(quoted)
	}
	return string(b)
}
