package registry

import (
	"testing"

	"github.com/tinylib/msgp/msgp"
)

// velocity is a hand-written stand-in for a msgp-codegen'd component: the
// shape a `go generate`'d *_gen.go file would produce for a 3-float struct,
// written by hand here since the generator itself isn't run in this tree.
type velocity struct {
	DX, DY, DZ float32
}

func (v *velocity) MarshalMsg(b []byte) ([]byte, error) {
	b = msgp.AppendArrayHeader(b, 3)
	b = msgp.AppendFloat32(b, v.DX)
	b = msgp.AppendFloat32(b, v.DY)
	b = msgp.AppendFloat32(b, v.DZ)
	return b, nil
}

func (v *velocity) UnmarshalMsg(b []byte) ([]byte, error) {
	sz, b, err := msgp.ReadArrayHeaderBytes(b)
	if err != nil {
		return b, err
	}
	if sz != 3 {
		return b, msgp.ArrayError{Wanted: 3, Got: sz}
	}
	if v.DX, b, err = msgp.ReadFloat32Bytes(b); err != nil {
		return b, err
	}
	if v.DY, b, err = msgp.ReadFloat32Bytes(b); err != nil {
		return b, err
	}
	if v.DZ, b, err = msgp.ReadFloat32Bytes(b); err != nil {
		return b, err
	}
	return b, nil
}

func TestRegisterMsgpRoundTrip(t *testing.T) {
	r := New()
	id, err := RegisterMsgp[*velocity](r, nil, func() *velocity { return &velocity{} })
	if err != nil {
		t.Fatalf("RegisterMsgp: %v", err)
	}
	fns, ok := r.GetByID(id)
	if !ok {
		t.Fatalf("GetByID(%d) missing", id)
	}

	ctx := &Context{Tick: 1, IsServer: true}
	want := &velocity{DX: 1.5, DY: -2.5, DZ: 3}
	b, err := fns.Serialize(ctx, want)
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	got, err := fns.Deserialize(ctx, b)
	if err != nil {
		t.Fatalf("deserialize: %v", err)
	}
	v := got.(*velocity)
	if *v != *want {
		t.Errorf("got %+v, want %+v", v, want)
	}
}
