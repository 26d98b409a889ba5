// Copyright 2025 Agentic World, LLC (Sherin Thomas)
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package content

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Record is a loosely typed JSON object. Accessors never fail: a missing
// key, a null and a value of the wrong type all read as absent.
type Record map[string]json.RawMessage

// ParseRecord decodes a JSON object. Anything else yields nil.
func ParseRecord(data []byte) Record {
	var r Record
	if json.Unmarshal(data, &r) != nil {
		return nil
	}
	return r
}

// Has reports whether key is set to something other than null.
func (r Record) Has(key string) bool {
	raw, ok := r[key]
	if !ok {
		return false
	}
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && !bytes.Equal(raw, []byte("null"))
}

// First returns the raw value of the first key that is set.
func (r Record) First(keys ...string) (json.RawMessage, bool) {
	for _, key := range keys {
		if r.Has(key) {
			return r[key], true
		}
	}
	return nil, false
}

// String reads key as a string.
func (r Record) String(key string) (string, bool) {
	if !r.Has(key) {
		return "", false
	}
	return decodeString(r[key])
}

// Object reads key as a nested object.
func (r Record) Object(key string) Record {
	if !r.Has(key) {
		return nil
	}
	return ParseRecord(r[key])
}

// Array reads key as an array of raw values.
func (r Record) Array(key string) ([]json.RawMessage, bool) {
	if !r.Has(key) {
		return nil, false
	}
	var items []json.RawMessage
	if json.Unmarshal(r[key], &items) != nil {
		return nil, false
	}
	return items, true
}

// Strings reads key as an array, keeping only its string elements.
func (r Record) Strings(key string) ([]string, bool) {
	items, ok := r.Array(key)
	if !ok {
		return nil, false
	}
	out := []string{}
	for _, item := range items {
		if s, ok := decodeString(item); ok {
			out = append(out, s)
		}
	}
	return out, true
}

// Decode unmarshals key into dst and reports success.
func (r Record) Decode(key string, dst any) bool {
	if !r.Has(key) {
		return false
	}
	return json.Unmarshal(r[key], dst) == nil
}

func decodeString(raw json.RawMessage) (string, bool) {
	var s string
	if json.Unmarshal(raw, &s) != nil {
		return "", false
	}
	return s, true
}

// scalarText renders a string or number value as text.
func scalarText(raw json.RawMessage) (string, bool) {
	if s, ok := decodeString(raw); ok {
		return s, true
	}
	var n float64
	if json.Unmarshal(raw, &n) == nil {
		return strconv.FormatFloat(n, 'f', -1, 64), true
	}
	return "", false
}
