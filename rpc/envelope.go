package rpc

import (
	"fmt"
	"io"
)

// Method tags which hub or node RPC a framed message carries, letting a
// single bidirectional QUIC stream multiplex every call in spec §4.7/§4.9
// rather than dedicating one stream per method.
type Method byte

const (
	MethodQuery Method = iota
	MethodGetEdition
	MethodAnnounceEdition
	MethodResolve
	MethodResolveLatest
)

func (m Method) String() string {
	switch m {
	case MethodQuery:
		return "query"
	case MethodGetEdition:
		return "get_edition"
	case MethodAnnounceEdition:
		return "announce_edition"
	case MethodResolve:
		return "resolve"
	case MethodResolveLatest:
		return "resolve_latest"
	default:
		return fmt.Sprintf("method(%d)", byte(m))
	}
}

// WriteEnvelope frames one RPC call as a length-delimited message whose
// first byte is the method tag and whose remainder is the method's own
// marshaled payload.
func WriteEnvelope(w io.Writer, method Method, payload []byte) error {
	buf := make([]byte, 1+len(payload))
	buf[0] = byte(method)
	copy(buf[1:], payload)
	return WriteMessage(w, buf)
}

// ReadEnvelope reads one framed call and splits off its method tag.
func ReadEnvelope(r io.Reader) (Method, []byte, error) {
	buf, err := ReadMessage(r)
	if err != nil {
		return 0, nil, err
	}
	if len(buf) < 1 {
		return 0, nil, fmt.Errorf("rpc: empty envelope")
	}
	return Method(buf[0]), buf[1:], nil
}
