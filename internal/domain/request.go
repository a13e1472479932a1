package domain

import (
	"encoding/json"
	"fmt"
)

// Method is an HTTP request method as carried on the wire.
type Method string

const (
	MethodGet     Method = "GET"
	MethodPost    Method = "POST"
	MethodPut     Method = "PUT"
	MethodDelete  Method = "DELETE"
	MethodHead    Method = "HEAD"
	MethodPatch   Method = "PATCH"
	MethodOptions Method = "OPTIONS"
	MethodConnect Method = "CONNECT"
)

// Methods lists every supported method in selector order.
var Methods = []Method{
	MethodGet,
	MethodPost,
	MethodPut,
	MethodDelete,
	MethodHead,
	MethodPatch,
	MethodOptions,
	MethodConnect,
}

// Valid reports whether m is one of the supported methods.
func (m Method) Valid() bool {
	for _, known := range Methods {
		if m == known {
			return true
		}
	}
	return false
}

// Pair is an ordered key/value entry used for headers and query parameters.
// On the wire it is a two element array: ["key", "value"].
type Pair struct {
	Key   string
	Value string
}

// MarshalJSON encodes the pair as a two element array.
func (p Pair) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]string{p.Key, p.Value})
}

// UnmarshalJSON decodes a two element array into the pair.
func (p *Pair) UnmarshalJSON(data []byte) error {
	var kv []string
	if err := json.Unmarshal(data, &kv); err != nil {
		return err
	}
	if len(kv) != 2 {
		return fmt.Errorf("pair must have 2 elements, got %d", len(kv))
	}
	p.Key, p.Value = kv[0], kv[1]
	return nil
}

// ComposedRequest is a request as collected from the editor, ready to send.
// Index is the caller-assigned correlation index echoed back with the response.
type ComposedRequest struct {
	URL     string
	Method  Method
	Body    string
	Headers []Pair
	Params  []Pair
	Index   int
}

// DispatchPayload is the send_request wire payload. Params are already
// folded into URL.
type DispatchPayload struct {
	URL     string `json:"url"`
	Method  Method `json:"method"`
	Body    string `json:"body"`
	Headers []Pair `json:"headers"`
	Index   int    `json:"index"`
}

// Response is a raw backend reply tagged with the correlation index of the
// request that produced it. Raw is opaque to the bridge.
type Response struct {
	Index int
	Raw   string
}
