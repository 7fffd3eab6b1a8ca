package registry

import (
	"github.com/tinylib/msgp/msgp"
)

// MsgpValue is satisfied by msgp-codegen'd component types; it is the fast
// path offered alongside the jsoniter default for components that pay for
// a generated Marshal/Unmarshal pair.
type MsgpValue interface {
	msgp.Marshaler
	msgp.Unmarshaler
}

// RegisterMsgp registers T using its generated msgp Marshal/Unmarshal
// methods instead of jsoniter. T must be a pointer type implementing
// MsgpValue (msgp generates pointer-receiver methods), and newT must return a
// fresh zero value to unmarshal into.
func RegisterMsgp[T MsgpValue](r *Registry, hint *FnsID, newT func() T) (FnsID, error) {
	return Register[T](r, hint,
		func(_ *Context, v T) ([]byte, error) {
			return v.MarshalMsg(nil)
		},
		func(_ *Context, b []byte) (T, error) {
			v := newT()
			_, err := v.UnmarshalMsg(b)
			return v, err
		},
	)
}
