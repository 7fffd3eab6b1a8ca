package nettransport

import (
	"math/rand"
	"sync"
)

// Loopback is an in-memory Transport connecting one server side to any
// number of named clients via buffered channels, non-blocking sends, and an
// optional drop chance on the unreliable channel — enough to exercise the
// applicator's out-of-order-Mutations handling in tests without a real
// network. The Loopback itself is the server's view; Connect returns one
// ClientSide view per client, and all of them share the same underlying
// queues.
type Loopback struct {
	mu   sync.Mutex
	rnd  *rand.Rand
	drop float64 // probability in [0,1) an unreliable send is silently dropped

	clients map[ClientID]struct{}

	// toClient/toServer are per-client buffered queues; the server reads
	// toServer, writes toClient[id]. Clients do the reverse via the
	// per-client ClientSide adapter returned by Connect.
	toClient map[ClientID]chan Packet
	toServer chan Packet
}

// NewLoopback returns a server-side Transport. dropChance (0 to disable)
// is the probability an unreliable send is silently dropped, modeling
// real unreliable-channel loss; seed makes that loss deterministic across
// runs of the same test.
func NewLoopback(dropChance float64, seed int64) *Loopback {
	return &Loopback{
		rnd:      rand.New(rand.NewSource(seed)),
		drop:     dropChance,
		clients:  make(map[ClientID]struct{}),
		toClient: make(map[ClientID]chan Packet),
		toServer: make(chan Packet, 256),
	}
}

// Connect registers a new client and returns its client-side Transport view.
func (l *Loopback) Connect(id ClientID) *ClientSide {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.clients[id] = struct{}{}
	ch := make(chan Packet, 256)
	l.toClient[id] = ch
	return &ClientSide{id: id, loop: l, recv: ch}
}

// Disconnect removes a client; further sends to it fail with ErrSendFailed.
func (l *Loopback) Disconnect(id ClientID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.clients, id)
	delete(l.toClient, id)
}

func (l *Loopback) SendReliable(client ClientID, b []byte) error {
	return l.send(client, Reliable, b, false)
}

func (l *Loopback) SendUnreliable(client ClientID, b []byte) error {
	return l.send(client, Unreliable, b, true)
}

func (l *Loopback) send(client ClientID, ch Channel, b []byte, droppable bool) error {
	l.mu.Lock()
	queue, ok := l.toClient[client]
	drop := droppable && l.drop > 0 && l.rnd.Float64() < l.drop
	l.mu.Unlock()
	if !ok {
		return ErrSendFailed
	}
	if drop {
		return nil
	}
	select {
	case queue <- Packet{Channel: ch, Bytes: b}:
		return nil
	default:
		return ErrSendFailed
	}
}

func (l *Loopback) Receive() <-chan Packet {
	return l.toServer
}

func (l *Loopback) ConnectedClients() []ClientID {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]ClientID, 0, len(l.clients))
	for c := range l.clients {
		out = append(out, c)
	}
	return out
}

// ClientSide is one client's view of a Loopback: sends land in the shared
// toServer queue tagged with its ClientID, receives drain its own inbound
// queue.
type ClientSide struct {
	id   ClientID
	loop *Loopback
	recv chan Packet
}

func (c *ClientSide) SendReliable(_ ClientID, b []byte) error {
	return c.send(Reliable, b)
}

func (c *ClientSide) SendUnreliable(_ ClientID, b []byte) error {
	return c.send(Unreliable, b)
}

func (c *ClientSide) send(ch Channel, b []byte) error {
	select {
	case c.loop.toServer <- (Packet{Client: c.id, Channel: ch, Bytes: b}):
		return nil
	default:
		return ErrSendFailed
	}
}

func (c *ClientSide) Receive() <-chan Packet {
	return c.recv
}

func (c *ClientSide) ConnectedClients() []ClientID {
	return []ClientID{c.id}
}
