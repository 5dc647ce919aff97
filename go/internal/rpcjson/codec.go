// Package rpcjson is a connect codec for plain Go structs.
package rpcjson

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Name replaces connect's protojson codec for the application/json content type.
const Name = "json"

// Codec marshals messages with encoding/json. Unknown fields are rejected.
type Codec struct{}

func (Codec) Name() string { return Name }

func (Codec) Marshal(msg any) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshal %T: %w", msg, err)
	}
	return data, nil
}

func (Codec) Unmarshal(data []byte, msg any) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(msg); err != nil {
		return fmt.Errorf("unmarshal %T: %w", msg, err)
	}
	return nil
}
