// Package nettransport defines the Transport interface the collector and
// applicator consume, plus Loopback, an in-memory channel-based
// implementation for tests and the demo harness.
/*
 * Copyright (c) 2024, ecsnet. All rights reserved.
 */
package nettransport

import (
	"github.com/pkg/errors"

	"github.com/ecsnet/replicore/visibility"
)

// ClientID identifies a connected client; an alias of visibility.ClientID so
// collector/applicator code can pass one value through both packages
// without a conversion at every call site.
type ClientID = visibility.ClientID

// Channel distinguishes the reliable Updates channel from the unreliable
// Mutations channel (spec.md §6).
type Channel uint8

const (
	Reliable Channel = iota
	Unreliable
)

// Packet is one received message, with ClientID populated only on the
// server side (spec.md §6: "client_id present on server side only").
type Packet struct {
	Client  ClientID
	Channel Channel
	Bytes   []byte
}

// ErrSendFailed is returned by SendReliable/SendUnreliable when the
// transport cannot accept a message for a given client — the collector
// treats this as that client's cue to disconnect (spec.md §7).
var ErrSendFailed = errors.New("replicore/nettransport: send failed")

// Transport is the narrow interface the collector and applicator consume.
// Per spec.md §5, every method must be non-blocking: a transport that
// buffers and returns immediately is required.
type Transport interface {
	SendReliable(client ClientID, b []byte) error
	SendUnreliable(client ClientID, b []byte) error
	Receive() <-chan Packet
	ConnectedClients() []ClientID
}
