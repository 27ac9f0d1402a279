// Package presencejson is the JSON codec used for presence payloads and
// HTTP responses.
package presencejson

import (
	"io"

	jsoniter "github.com/json-iterator/go"
)

var codec = jsoniter.ConfigCompatibleWithStandardLibrary

// RawMessage is a raw encoded JSON value, decoded lazily by handlers.
type RawMessage = jsoniter.RawMessage

func Unmarshal(data []byte, v any) error {
	return codec.Unmarshal(data, v)
}

func UnmarshalReader(reader io.Reader, v any) error {
	return codec.NewDecoder(reader).Decode(v)
}

func Marshal(v any) ([]byte, error) {
	return codec.Marshal(v)
}

func MarshalToWriter(writer io.Writer, v any) error {
	return codec.NewEncoder(writer).Encode(v)
}
