// Package collector builds, once per tick, the (possibly empty) Updates
// and Mutations messages for each connected client (spec.md §4.E).
// Manager is directly grounded on ec.Manager: a mutex-guarded per-key state
// map, atomic flags for fast concurrent reads, and config-gated optional
// behaviors (bundling there, parallel fan-out here).
/*
 * Copyright (c) 2024, ecsnet. All rights reserved.
 */
package collector

import (
	"sync"

	"go.uber.org/atomic"

	"github.com/ecsnet/replicore/codec"
	"github.com/ecsnet/replicore/config"
	"github.com/ecsnet/replicore/memsys"
	"github.com/ecsnet/replicore/nettransport"
	"github.com/ecsnet/replicore/registry"
	"github.com/ecsnet/replicore/repstats"
	"github.com/ecsnet/replicore/visibility"
	"github.com/ecsnet/replicore/worldapi"
)

// ClientID is an alias of visibility.ClientID so host code wiring together
// collector/visibility/nettransport never needs a conversion.
type ClientID = visibility.ClientID

type clientState struct {
	id ClientID

	mu              sync.Mutex
	pendingMappings []codec.Mapping

	everSent     atomic.Bool
	lastSentTick atomic.Int64
	disconnected atomic.Bool

	// sgl is this client's exclusive serialization arena (spec.md §5): no
	// other client ever writes into it, so emitUpdates/emitMutations can
	// build a message without a lock held.
	sgl *memsys.SGL
}

func newClientState(id ClientID) *clientState {
	return &clientState{id: id, sgl: memsys.AllocSGL()}
}

// Manager holds one clientState per connected client and drives the
// per-tick collection algorithm over a World, Registry, and Visibility
// engine, handing finished messages to a Transport.
type Manager struct {
	world      worldapi.World
	registry   *registry.Registry
	visibility *visibility.Engine
	transport  nettransport.Transport
	cfg        *config.Owner
	stats      *repstats.Registry

	mu      sync.RWMutex
	clients map[ClientID]*clientState
}

// New constructs a Manager. stats may be nil (every call becomes a no-op).
func New(world worldapi.World, reg *registry.Registry, vis *visibility.Engine,
	transport nettransport.Transport, cfg *config.Owner, stats *repstats.Registry) *Manager {
	return &Manager{
		world:      world,
		registry:   reg,
		visibility: vis,
		transport:  transport,
		cfg:        cfg,
		stats:      stats,
		clients:    make(map[ClientID]*clientState),
	}
}

// QueueMapping appends a (server, client_pregen) pair to the client's
// pending entity map; the next Collect call drains it into that client's
// MAPPINGS segment. Spec.md §3: "mutation of the list is append-only
// between frames".
func (m *Manager) QueueMapping(client ClientID, server, clientEntity codec.EntityID) {
	cs := m.clientStateFor(client)
	cs.mu.Lock()
	cs.pendingMappings = append(cs.pendingMappings, codec.Mapping{Server: server, Client: clientEntity})
	cs.mu.Unlock()
}

func (m *Manager) clientStateFor(id ClientID) *clientState {
	m.mu.RLock()
	cs, ok := m.clients[id]
	m.mu.RUnlock()
	if ok {
		return cs
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if cs, ok := m.clients[id]; ok {
		return cs
	}
	cs = newClientState(id)
	m.clients[id] = cs
	return cs
}

// syncClients ensures a clientState exists for every transport-connected
// client (spec.md §4.E step 1) and drops state for clients no longer
// connected (step 3).
func (m *Manager) syncClients() []*clientState {
	connected := m.transport.ConnectedClients()
	connectedSet := make(map[ClientID]struct{}, len(connected))
	for _, id := range connected {
		connectedSet[id] = struct{}{}
		m.clientStateFor(id)
	}

	m.mu.Lock()
	for id, cs := range m.clients {
		if _, ok := connectedSet[id]; !ok {
			memsys.FreeSGL(cs.sgl)
			delete(m.clients, id)
		}
	}
	out := make([]*clientState, 0, len(m.clients))
	for _, cs := range m.clients {
		out = append(out, cs)
	}
	m.mu.Unlock()
	return out
}

// needsReplication reports whether rep has changed since this client last
// received a send (spec.md §4.E step 2b).
func needsReplication(everSent bool, lastSent codec.Tick, rep worldapi.Replicated) bool {
	if !everSent {
		return true
	}
	return rep.LastUpdatedTick > lastSent
}
