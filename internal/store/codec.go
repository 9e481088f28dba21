package store

import (
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// encMode writes documents with Core Deterministic Encoding so the same
// document always produces the same bytes. Times are tagged RFC 3339
// strings and decode back to time.Time.
var encMode cbor.EncMode

// decMode decodes generic values into the same Go types the Firestore client
// produces: map[string]any for maps and int64 for integers.
var decMode cbor.DecMode

func init() {
	var err error

	encOptions := cbor.CoreDetEncOptions()
	encOptions.Time = cbor.TimeRFC3339Nano
	encOptions.TimeTag = cbor.EncTagRequired
	encMode, err = encOptions.EncMode()
	if err != nil {
		panic("store: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
		IntDec:         cbor.IntDecConvertSigned,
	}.DecMode()
	if err != nil {
		panic("store: CBOR decoder initialization failed: " + err.Error())
	}
}

func marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

func unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}
