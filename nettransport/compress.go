package nettransport

import (
	"bytes"
	"io"
	"sync"

	"github.com/pierrec/lz4/v3"
	"github.com/pkg/errors"
)

const (
	tagRaw        byte = 0
	tagCompressed byte = 1
)

// Compressing wraps a Transport with optional whole-message lz4
// compression, transparent to collector/applicator on both ends. Grounded
// on ec.Manager.initECBundles's transport.Extra{Compression: compression}
// wiring — aistore applies compression at the transport layer rather than
// inside the message format, which is why this lives here instead of in
// collector's wire encoding: the Updates/Mutations byte layout stays
// bit-exact per spec.md §6 regardless of whether this wrapper is in use.
type Compressing struct {
	inner   Transport
	minSize int

	once sync.Once
	out  chan Packet
}

// NewCompressing wraps inner; messages shorter than minSize are sent
// uncompressed (not worth the lz4 framing overhead).
func NewCompressing(inner Transport, minSize int) *Compressing {
	return &Compressing{inner: inner, minSize: minSize}
}

func (c *Compressing) SendReliable(client ClientID, b []byte) error {
	return c.inner.SendReliable(client, c.encode(b))
}

func (c *Compressing) SendUnreliable(client ClientID, b []byte) error {
	return c.inner.SendUnreliable(client, c.encode(b))
}

func (c *Compressing) encode(b []byte) []byte {
	if len(b) < c.minSize {
		return append([]byte{tagRaw}, b...)
	}
	var buf bytes.Buffer
	buf.WriteByte(tagCompressed)
	w := lz4.NewWriter(&buf)
	if _, err := w.Write(b); err != nil {
		return append([]byte{tagRaw}, b...)
	}
	if err := w.Close(); err != nil {
		return append([]byte{tagRaw}, b...)
	}
	return buf.Bytes()
}

func decodeMessage(b []byte) ([]byte, error) {
	if len(b) == 0 {
		return nil, errors.New("replicore/nettransport: empty packet")
	}
	tag, payload := b[0], b[1:]
	if tag == tagRaw {
		return payload, nil
	}
	r := lz4.NewReader(bytes.NewReader(payload))
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "lz4 decompress")
	}
	return out, nil
}

// Receive decompresses every packet from the wrapped transport before
// forwarding it. Lazily starts one goroutine on first call.
func (c *Compressing) Receive() <-chan Packet {
	c.once.Do(func() {
		c.out = make(chan Packet, 256)
		go func() {
			defer close(c.out)
			for p := range c.inner.Receive() {
				raw, err := decodeMessage(p.Bytes)
				if err != nil {
					continue
				}
				p.Bytes = raw
				c.out <- p
			}
		}()
	})
	return c.out
}

func (c *Compressing) ConnectedClients() []ClientID {
	return c.inner.ConnectedClients()
}
