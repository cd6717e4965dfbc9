package rawsock

import (
	"io"
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// Frames use Core Deterministic Encoding; CBOR values are
// self-delimiting, so the stream needs no extra framing.
var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	opts := cbor.CoreDetEncOptions()
	// same precision as the JSON transports
	opts.Time = cbor.TimeRFC3339Nano
	encMode, err = opts.EncMode()
	if err != nil {
		panic("rawsock: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("rawsock: CBOR decoder initialization failed: " + err.Error())
	}
}

// Response answers one client frame.
type Response struct {
	OK    bool            `cbor:"ok"`
	Error string          `cbor:"error,omitempty"`
	Data  cbor.RawMessage `cbor:"data,omitempty"`
}

// EventFrame carries a pushed event.  Clients tell it apart from a
// Response by the "event" key.
type EventFrame struct {
	Event any `cbor:"event"`
}

// Hello is the payload of a successful handshake response.
type Hello struct {
	ConnID  string   `cbor:"conn_id"`
	Holder  string   `cbor:"holder"`
	Flights []string `cbor:"flights"`
}

func newEncoder(w io.Writer) *cbor.Encoder { return encMode.NewEncoder(w) }

func newDecoder(r io.Reader) *cbor.Decoder { return decMode.NewDecoder(r) }

// Marshal encodes v the way frames are encoded.
func Marshal(v any) ([]byte, error) { return encMode.Marshal(v) }

// Unmarshal decodes a frame payload.
func Unmarshal(data []byte, v any) error { return decMode.Unmarshal(data, v) }
