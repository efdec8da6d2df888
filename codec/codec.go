// Package codec centralizes encoding of snapshot manifests and benchmark
// result records.
//
// Codec selection is a compatibility boundary: persisted files record the
// codec name, and changing codecs may make bytes written by older codecs
// undecodable.
package codec

// Codec encodes/decodes values.
// Implementations must be safe for concurrent use.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	Name() string
}

// ByName returns a built-in codec by its stable name.
//
// Self-describing persisted formats (snapshot manifests) store the codec name
// and use this to select the decoder on load.
func ByName(name string) (Codec, bool) {
	switch name {
	case "json":
		return JSON{}, true
	case "go-json":
		return GoJSON{}, true
	default:
		return nil, false
	}
}

// Default is the default codec used by the library.
//
// Both built-in codecs produce standard JSON, so files written with either
// can be decoded by either; the recorded name is still validated on load.
var Default Codec = GoJSON{}
