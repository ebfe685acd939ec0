package tree

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ArgValue is one argument of a node.
type ArgValue struct {
	Name  string
	Kind  VarKind
	Value any
}

// IsConst reports whether the value is a literal.
func (a ArgValue) IsConst() bool { return a.Kind == "" || a.Kind == Const }

// Args is the ordered argument list of a node. It is encoded as a JSON object
// keyed by name. Literals are written as-is; other kinds are written as
// {"kind": ..., "value": ...}.
type Args []ArgValue

// Get returns the argument named name.
func (a Args) Get(name string) (ArgValue, bool) {
	for _, v := range a {
		if v.Name == name {
			return v, true
		}
	}
	return ArgValue{}, false
}

// Set replaces or appends the argument named name.
func (a *Args) Set(name string, kind VarKind, value any) {
	for i := range *a {
		if (*a)[i].Name == name {
			(*a)[i].Kind = kind
			(*a)[i].Value = value
			return
		}
	}
	*a = append(*a, ArgValue{Name: name, Kind: kind, Value: value})
}

// Clone deep-copies the list.
func (a Args) Clone() Args {
	if a == nil {
		return nil
	}
	out := make(Args, len(a))
	for i, v := range a {
		v.Value = cloneValue(v.Value)
		out[i] = v
	}
	return out
}

// MarshalJSON writes the arguments in order.
func (a Args) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, v := range a {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(v.Name)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')

		var val []byte
		if v.IsConst() {
			val, err = json.Marshal(v.Value)
		} else {
			val, err = json.Marshal(taggedValue{Kind: v.Kind, Value: v.Value})
		}
		if err != nil {
			return nil, fmt.Errorf("arg %s: %w", v.Name, err)
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

type taggedValue struct {
	Kind  VarKind `json:"kind"`
	Value any     `json:"value"`
}

// UnmarshalJSON reads an object of arguments, keeping key order.
func (a *Args) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*a = nil
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("args: expected object, got %v", tok)
	}
	out := Args{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := tok.(string)
		if !ok {
			return fmt.Errorf("args: expected key, got %v", tok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("args: %s: %w", name, err)
		}
		v, err := decodeArg(name, raw)
		if err != nil {
			return err
		}
		out = append(out, v)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*a = out
	return nil
}

func decodeArg(name string, raw json.RawMessage) (ArgValue, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &fields); err == nil && isTagged(fields) {
			var tv taggedValue
			if err := json.Unmarshal(trimmed, &tv); err != nil {
				return ArgValue{}, fmt.Errorf("args: %s: %w", name, err)
			}
			return ArgValue{Name: name, Kind: tv.Kind, Value: tv.Value}, nil
		}
	}
	var v any
	if err := json.Unmarshal(trimmed, &v); err != nil {
		return ArgValue{}, fmt.Errorf("args: %s: %w", name, err)
	}
	return ArgValue{Name: name, Kind: Const, Value: v}, nil
}

// isTagged recognises {"kind": "<object|cfg|code>", "value": ...}. Any other
// object is a JSON literal.
func isTagged(fields map[string]json.RawMessage) bool {
	if len(fields) != 2 {
		return false
	}
	rawKind, ok := fields["kind"]
	if !ok {
		return false
	}
	if _, ok := fields["value"]; !ok {
		return false
	}
	var kind VarKind
	if err := json.Unmarshal(rawKind, &kind); err != nil {
		return false
	}
	switch kind {
	case Object, Cfg, Code:
		return true
	}
	return false
}
