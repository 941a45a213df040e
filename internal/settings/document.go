package settings

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
)

// ErrInvalidDocument reports a payload that is not an object of objects.
var ErrInvalidDocument = errors.New("invalid config document")

type KeyValue struct {
	Key   string
	Value string
}

type Section struct {
	Name string
	Keys []KeyValue
}

// Get returns the value of key and whether it exists.
func (s *Section) Get(key string) (string, bool) {
	for _, kv := range s.Keys {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return "", false
}

// Set replaces the value of an existing key in place or appends a new one.
func (s *Section) Set(key, value string) {
	for i := range s.Keys {
		if s.Keys[i].Key == key {
			s.Keys[i].Value = value
			return
		}
	}
	s.Keys = append(s.Keys, KeyValue{Key: key, Value: value})
}

// Document is an ordered section -> key -> value mapping.
type Document struct {
	Sections []Section
}

// Section returns the named section, or nil.
func (d *Document) Section(name string) *Section {
	for i := range d.Sections {
		if d.Sections[i].Name == name {
			return &d.Sections[i]
		}
	}
	return nil
}

// Ensure returns the named section, appending it when absent.
func (d *Document) Ensure(name string) *Section {
	if s := d.Section(name); s != nil {
		return s
	}
	d.Sections = append(d.Sections, Section{Name: name})
	return &d.Sections[len(d.Sections)-1]
}

// Set stores section.key = value preserving existing positions.
func (d *Document) Set(section, key, value string) {
	d.Ensure(section).Set(key, value)
}

// Get returns section.key.
func (d *Document) Get(section, key string) (string, bool) {
	s := d.Section(section)
	if s == nil {
		return "", false
	}
	return s.Get(key)
}

// MarshalJSON emits sections and keys in document order.
func (d *Document) MarshalJSON() ([]byte, error) {
	var b bytes.Buffer
	b.WriteByte('{')
	for i, s := range d.Sections {
		if i > 0 {
			b.WriteByte(',')
		}
		writeJSONString(&b, s.Name)
		b.WriteString(":{")
		for j, kv := range s.Keys {
			if j > 0 {
				b.WriteByte(',')
			}
			writeJSONString(&b, kv.Key)
			b.WriteByte(':')
			writeJSONString(&b, kv.Value)
		}
		b.WriteByte('}')
	}
	b.WriteByte('}')
	return b.Bytes(), nil
}

func writeJSONString(b *bytes.Buffer, s string) {
	enc, _ := json.Marshal(s)
	b.Write(enc)
}

// UnmarshalJSON is ParseDocument into d.
func (d *Document) UnmarshalJSON(data []byte) error {
	doc, err := ParseDocument(data)
	if err != nil {
		return err
	}
	*d = *doc
	return nil
}

// ParseDocument decodes a JSON object of objects preserving order. Scalar
// values are coerced to strings: numbers keep their literal, booleans become
// true/false, null becomes empty, arrays and objects become compact JSON.
func ParseDocument(data []byte) (*Document, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := expectDelim(dec, '{', "top level"); err != nil {
		return nil, err
	}
	doc := &Document{Sections: []Section{}}
	for dec.More() {
		name, err := readKey(dec)
		if err != nil {
			return nil, err
		}
		if err := expectDelim(dec, '{', fmt.Sprintf("section %q", name)); err != nil {
			return nil, err
		}
		// A repeated section replaces the earlier one and keeps its position.
		sec := doc.Ensure(name)
		sec.Keys = nil
		for dec.More() {
			key, err := readKey(dec)
			if err != nil {
				return nil, err
			}
			var raw json.RawMessage
			if err := dec.Decode(&raw); err != nil {
				return nil, fmt.Errorf("%w: %s.%s: %v", ErrInvalidDocument, name, key, err)
			}
			val, err := coerce(raw)
			if err != nil {
				return nil, fmt.Errorf("%w: %s.%s: %v", ErrInvalidDocument, name, key, err)
			}
			sec.Set(key, val)
		}
		if _, err := dec.Token(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
		}
	}
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("%w: trailing data", ErrInvalidDocument)
	}
	return doc, nil
}

func expectDelim(dec *json.Decoder, want json.Delim, what string) error {
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidDocument, what, err)
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("%w: %s must be an object", ErrInvalidDocument, what)
	}
	return nil
}

func readKey(dec *json.Decoder) (string, error) {
	tok, err := dec.Token()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	k, ok := tok.(string)
	if !ok {
		return "", fmt.Errorf("%w: unexpected token %v", ErrInvalidDocument, tok)
	}
	return k, nil
}

func coerce(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return "", nil
	}
	switch raw[0] {
	case '"':
		var s string
		err := json.Unmarshal(raw, &s)
		return s, err
	case 'n':
		return "", nil
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(raw, &b); err != nil {
			return "", err
		}
		return strconv.FormatBool(b), nil
	case '{', '[':
		var buf bytes.Buffer
		if err := json.Compact(&buf, raw); err != nil {
			return "", err
		}
		return buf.String(), nil
	default:
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return "", err
		}
		return n.String(), nil
	}
}
