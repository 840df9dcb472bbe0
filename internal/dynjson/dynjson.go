// Package dynjson provides defensive access to duck-typed LSP message
// bodies, where fields are sometimes missing or of the wrong type.
package dynjson

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// Message is a parsed JSON-RPC message body. Mutating it and re-marshaling
// is cheaper than maintaining a typed schema for every vendor extension
// method the backend may send.
type Message map[string]interface{}

// Parse decodes a message body. The body must be a JSON object; anything
// else is an error.
func Parse(body []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, errors.Wrap(err, "parsing message body")
	}
	if m == nil {
		return nil, errors.New("parsing message body: not a JSON object")
	}
	return m, nil
}

// Bytes re-encodes the message.
func (m Message) Bytes() ([]byte, error) {
	b, err := json.Marshal(map[string]interface{}(m))
	if err != nil {
		return nil, errors.Wrap(err, "encoding message body")
	}
	return b, nil
}

// Method returns the "method" field, or "" if absent or not a string.
func (m Message) Method() string {
	s, _ := AsString(m["method"])
	return s
}

// HasID reports whether the message carries an "id" field at all
// (distinguishing requests/responses from notifications).
func (m Message) HasID() bool {
	_, ok := m["id"]
	return ok
}

// RawID returns the raw decoded value of the "id" field.
func (m Message) RawID() interface{} {
	return m["id"]
}

// IntID returns the id as an int64 when it is a JSON number, and whether
// the conversion succeeded. Per the data model, ids in this system are
// integers; any other shape (string, object, absent) is reported as not-ok
// so callers fall back to pass-through behavior instead of crashing.
func (m Message) IntID() (int64, bool) {
	return AsInt64(m["id"])
}

// SetID overwrites the "id" field.
func (m Message) SetID(id interface{}) {
	m["id"] = id
}

// Params returns the "params" field as a map, or nil if absent/wrong type.
func (m Message) Params() map[string]interface{} {
	v, _ := AsMap(m["params"])
	return v
}

// SetParams replaces the "params" field.
func (m Message) SetParams(params map[string]interface{}) {
	m["params"] = params
}

// Result returns the raw "result" field.
func (m Message) Result() interface{} {
	return m["result"]
}

// SetResult replaces the "result" field.
func (m Message) SetResult(result interface{}) {
	m["result"] = result
}

// Clone returns a deep copy obtained by a marshal/unmarshal round trip.
func (m Message) Clone() (Message, error) {
	b, err := m.Bytes()
	if err != nil {
		return nil, err
	}
	return Parse(b)
}

// AsMap treats v as a JSON object, returning (nil, false) for any other
// shape, including nil.
func AsMap(v interface{}) (map[string]interface{}, bool) {
	m, ok := v.(map[string]interface{})
	return m, ok
}

// AsSlice treats v as a JSON array.
func AsSlice(v interface{}) ([]interface{}, bool) {
	s, ok := v.([]interface{})
	return s, ok
}

// AsString treats v as a JSON string.
func AsString(v interface{}) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

// AsInt64 treats v as a JSON number with no fractional part.
func AsInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case float64:
		if n != float64(int64(n)) {
			return 0, false
		}
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return i, true
	default:
		return 0, false
	}
}

// GetMap looks up key in m and treats the value as a JSON object.
func GetMap(m map[string]interface{}, key string) (map[string]interface{}, bool) {
	if m == nil {
		return nil, false
	}
	return AsMap(m[key])
}

// GetSlice looks up key in m and treats the value as a JSON array.
func GetSlice(m map[string]interface{}, key string) ([]interface{}, bool) {
	if m == nil {
		return nil, false
	}
	return AsSlice(m[key])
}

// GetString looks up key in m and treats the value as a JSON string.
func GetString(m map[string]interface{}, key string) (string, bool) {
	if m == nil {
		return "", false
	}
	return AsString(m[key])
}

// EnsureMap returns the map at key, creating and storing an empty one if
// absent or of the wrong type.
func EnsureMap(m map[string]interface{}, key string) map[string]interface{} {
	if sub, ok := GetMap(m, key); ok {
		return sub
	}
	sub := map[string]interface{}{}
	m[key] = sub
	return sub
}
