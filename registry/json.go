package registry

import (
	jsoniter "github.com/json-iterator/go"
)

// jsonAPI matches the configuration every jsoniter call site in the teacher
// codebase uses: standard-library-compatible field tags and number
// handling, just faster.
var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// RegisterJSON registers T with jsoniter as the wire format — the default
// serializer per spec.md §4.C, suitable for components that don't embed
// EntityID fields or don't need the compact codec's size advantage.
func RegisterJSON[T any](r *Registry, hint *FnsID) (FnsID, error) {
	return Register[T](r, hint,
		func(_ *Context, v T) ([]byte, error) {
			return jsonAPI.Marshal(v)
		},
		func(_ *Context, b []byte) (T, error) {
			var v T
			err := jsonAPI.Unmarshal(b, &v)
			return v, err
		},
	)
}
