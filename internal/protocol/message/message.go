// Package message defines the request and response bodies carried in
// envelope payloads. Bodies are canonical CBOR except the JSON handshake.
package message

import (
	"encoding/json"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// ProtocolVersion is the only protocol revision this client speaks.
const ProtocolVersion = 1

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	if encMode, err = cbor.CanonicalEncOptions().EncMode(); err != nil {
		panic(fmt.Sprintf("message: cbor enc mode: %v", err))
	}
	if decMode, err = (cbor.DecOptions{}).DecMode(); err != nil {
		panic(fmt.Sprintf("message: cbor dec mode: %v", err))
	}
}

// Marshal encodes a body.
func Marshal(v any) ([]byte, error) {
	b, err := encMode.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("message: marshal %T: %w", v, err)
	}
	return b, nil
}

// Unmarshal decodes a body into v.
func Unmarshal(data []byte, v any) error {
	if err := decMode.Unmarshal(data, v); err != nil {
		return fmt.Errorf("message: unmarshal %T: %w", v, err)
	}
	return nil
}

// Handshake opens a session. It is the only JSON body.
type Handshake struct {
	Cmd      int32  `json:"cmd"`
	Token    string `json:"token"`
	Protocol int32  `json:"protocol"`
	Seq      int32  `json:"seq"`
}

// EncodeHandshake renders h as JSON.
func EncodeHandshake(h Handshake) ([]byte, error) {
	b, err := json.Marshal(h)
	if err != nil {
		return nil, fmt.Errorf("message: marshal handshake: %w", err)
	}
	return b, nil
}

// BaseRequest is embedded in every outbound body.
type BaseRequest struct {
	Token string `cbor:"token"`
	Seq   int32  `cbor:"seq"`
}

// BaseResponse is embedded in every inbound body.
type BaseResponse struct {
	Seq       int32     `cbor:"seq"`
	Status    int32     `cbor:"status"`
	ErrorCode ErrorCode `cbor:"errorCode"`
	ErrorMsg  string    `cbor:"errorMsg,omitempty"`
}

// Err reports a non-zero status as *ResponseError.
func (r BaseResponse) Err() error {
	if r.Status == 0 && r.ErrorCode == ErrSuccess {
		return nil
	}
	return &ResponseError{Seq: r.Seq, Status: r.Status, Code: r.ErrorCode, Msg: r.ErrorMsg}
}

// ResponseError is a failure reported by the gateway for one request.
type ResponseError struct {
	Seq    int32
	Status int32
	Code   ErrorCode
	Msg    string
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("message: seq %d: status %d: %s: %s", e.Seq, e.Status, e.Code, e.Msg)
}

// RevisionRequest asks for the per-market revision table.
type RevisionRequest struct {
	BaseRequest
	ProtocolVersion int32 `cbor:"protocolVersion"`
}

// RevisionResponse carries, per namespace token, a struct-value payload of
// Market records.
type RevisionResponse struct {
	BaseResponse
	Revisions map[string][]byte `cbor:"revs"`
}

// SeedsRequest asks for the backfill of one (market, qualified name) pair.
type SeedsRequest struct {
	BaseRequest
	Revision      uint32 `cbor:"revision"`
	Namespace     string `cbor:"namespace"`
	QualifiedName string `cbor:"qualifiedName"`
	Market        string `cbor:"market"`
	TradeDay      int32  `cbor:"tradeDay"`
}

// SeedsResponse carries a struct-value payload.
type SeedsResponse struct {
	BaseResponse
	Data []byte `cbor:"data"`
}

// FetchRequest is the body of both fetch-by-code and fetch-by-time.
// Revision -1 selects the latest one. Time tags are millisecond epochs
// rendered as decimal strings.
type FetchRequest struct {
	BaseRequest
	Namespace     string   `cbor:"namespace"`
	QualifiedName string   `cbor:"qualifiedName"`
	Revision      int64    `cbor:"revision"`
	Market        string   `cbor:"market"`
	Code          string   `cbor:"code"`
	Granularity   int32    `cbor:"granularity"`
	Fields        []string `cbor:"fields"`
	FromTimeTag   string   `cbor:"fromTimeTag"`
	ToTimeTag     string   `cbor:"toTimeTag"`
}

// FetchResponse carries the matching records as a struct-value payload.
type FetchResponse struct {
	BaseResponse
	Namespace string   `cbor:"namespace,omitempty"`
	Fields    []string `cbor:"fields,omitempty"`
	Results   []byte   `cbor:"results"`
}
