package api

import (
	"encoding/json"
	"io"
)

// ContentType identifies the negotiated encoding of Call/Event bodies.
const ContentType = "application/json"

// Codec encodes/decodes the wire types. The spec treats the actual
// self-describing encoding (protobuf by default on the real platform)
// as an external collaborator; this module ships a JSON implementation
// and keeps the seam open behind this interface.
type Codec interface {
	Encode(w io.Writer, v interface{}) error
	Decode(r io.Reader, v interface{}) error
}

// JSONCodec implements Codec using encoding/json, framing each value as
// a single JSON document.
type JSONCodec struct{}

// Encode writes v as JSON to w.
func (JSONCodec) Encode(w io.Writer, v interface{}) error {
	return json.NewEncoder(w).Encode(v)
}

// Decode reads a single JSON value from r into v.
func (JSONCodec) Decode(r io.Reader, v interface{}) error {
	return json.NewDecoder(r).Decode(v)
}
