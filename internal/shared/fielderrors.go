package shared

import (
	"bytes"
	"encoding/json"
	"strings"
)

// FieldErrors collects messages per field and keeps fields in the order they were
// first reported. It marshals to a JSON object in that order.
type FieldErrors struct {
	order  []string
	fields map[string][]string
}

func (e *FieldErrors) Add(field, message string) {
	if e.fields == nil {
		e.fields = make(map[string][]string)
	}
	if _, ok := e.fields[field]; !ok {
		e.order = append(e.order, field)
	}
	e.fields[field] = append(e.fields[field], message)
}

func (e *FieldErrors) Has(field string) bool {
	if e == nil {
		return false
	}
	_, ok := e.fields[field]
	return ok
}

func (e *FieldErrors) Empty() bool {
	return e == nil || len(e.order) == 0
}

func (e *FieldErrors) Fields() []string {
	if e == nil {
		return nil
	}
	return append([]string(nil), e.order...)
}

func (e *FieldErrors) Messages(field string) []string {
	if e == nil {
		return nil
	}
	return e.fields[field]
}

// Error makes FieldErrors usable as an error value; the HTTP layer renders
// the structured form instead.
func (e *FieldErrors) Error() string {
	parts := make([]string, 0, len(e.order))
	for _, f := range e.order {
		parts = append(parts, f+": "+strings.Join(e.fields[f], " "))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *FieldErrors) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	if e != nil {
		for i, f := range e.order {
			if i > 0 {
				buf.WriteByte(',')
			}
			k, err := json.Marshal(f)
			if err != nil {
				return nil, err
			}
			v, err := json.Marshal(e.fields[f])
			if err != nil {
				return nil, err
			}
			buf.Write(k)
			buf.WriteByte(':')
			buf.Write(v)
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON accepts both message lists and single strings per field.
func (e *FieldErrors) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	if _, err := dec.Token(); err != nil {
		return err
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		field, _ := tok.(string)

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		var list []string
		if err := json.Unmarshal(raw, &list); err != nil {
			var single string
			if err := json.Unmarshal(raw, &single); err != nil {
				return err
			}
			list = []string{single}
		}
		for _, m := range list {
			e.Add(field, m)
		}
	}
	_, err := dec.Token()
	return err
}
