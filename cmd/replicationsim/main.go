// Package main drives a small in-process server+client replication loop:
// a single server World with one replicated component, one client
// connected over a lossy Loopback transport, ticking the collector and
// applicator against each other for a fixed number of steps. Useful as a
// sanity check and as a worked example of wiring every package together.
/*
 * Copyright (c) 2024, ecsnet. All rights reserved.
 */
package main

import (
	"context"
	"encoding/binary"
	"flag"
	"fmt"
	"math"
	"os"
	"runtime/pprof"
	"strconv"
	"syscall"
	"time"

	"github.com/golang/glog"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ecsnet/replicore/applicator"
	"github.com/ecsnet/replicore/clientid"
	"github.com/ecsnet/replicore/codec"
	"github.com/ecsnet/replicore/collector"
	"github.com/ecsnet/replicore/config"
	"github.com/ecsnet/replicore/housekeep"
	"github.com/ecsnet/replicore/nettransport"
	"github.com/ecsnet/replicore/registry"
	"github.com/ecsnet/replicore/repstats"
	"github.com/ecsnet/replicore/visibility"
	"github.com/ecsnet/replicore/worldapi"
	"github.com/ecsnet/replicore/xlog"
)

var (
	cpuProfile = flag.String("cpuprofile", "", "write cpu profile to `file`")
	ticks      = flag.Int("ticks", 10, "number of simulation ticks to run")
	entities   = flag.Int("entities", 3, "number of entities spawned on the server")
	dropChance = flag.Float64("drop", 0.1, "Mutations channel packet drop probability")
)

type position struct{ X, Y, Z float32 }

func registerPosition(r *registry.Registry) codec.FnsID {
	id, err := registry.Register[position](r, nil,
		func(_ *registry.Context, v position) ([]byte, error) {
			b := make([]byte, 12)
			binary.BigEndian.PutUint32(b[0:4], math.Float32bits(v.X))
			binary.BigEndian.PutUint32(b[4:8], math.Float32bits(v.Y))
			binary.BigEndian.PutUint32(b[8:12], math.Float32bits(v.Z))
			return b, nil
		},
		func(_ *registry.Context, b []byte) (position, error) {
			return position{
				X: math.Float32frombits(binary.BigEndian.Uint32(b[0:4])),
				Y: math.Float32frombits(binary.BigEndian.Uint32(b[4:8])),
				Z: math.Float32frombits(binary.BigEndian.Uint32(b[8:12])),
			}, nil
		},
	)
	xlog.Assertf(err == nil, "register position: %v", err)
	return id
}

func main() {
	os.Exit(run())
}

func run() int {
	flag.Parse()

	if s := *cpuProfile; s != "" {
		path := s + "." + strconv.Itoa(syscall.Getpid())
		f, err := os.Create(path)
		if err != nil {
			glog.Fatalf("couldn't create cpu profile: %v", err)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			glog.Fatalf("couldn't start cpu profile: %v", err)
		}
		defer pprof.StopCPUProfile()
	}

	serverWorld := worldapi.NewMemWorld()
	reg := registry.New()
	fns := registerPosition(reg)
	reg.Freeze()

	vis := visibility.New(visibility.Config{Policy: visibility.All})
	transport := nettransport.NewLoopback(*dropChance, time.Now().UnixNano())
	promReg := prometheus.NewRegistry()
	serverStats := repstats.New(promReg)
	cfg := config.NewOwner(nil)
	mgr := collector.New(serverWorld, reg, vis, transport, cfg, serverStats)

	sweeper := housekeep.New(cfg.Get().HousekeepInterval, func() {
		alive := make(map[visibility.ClientID]struct{})
		for _, c := range transport.ConnectedClients() {
			alive[c] = struct{}{}
		}
		vis.CleanupDisconnectedClients(alive)
	})
	ctx, cancel := context.WithCancel(context.Background())
	sweeper.Start(ctx)
	defer func() { cancel(); sweeper.Stop() }()

	ids := clientid.New(1)
	clientID := ids.Next()
	clientSide := transport.Connect(nettransport.ClientID(clientID))

	clientWorld := worldapi.NewMemWorld()
	clientReg := registry.New()
	registerPosition(clientReg)
	clientReg.Freeze()
	clientStats := repstats.New(nil)
	app := applicator.New(clientWorld, clientReg, config.NewOwner(nil), clientStats)

	for i := 0; i < *entities; i++ {
		e := serverWorld.Spawn()
		serverWorld.Insert(e, fns, position{X: float32(i), Y: float32(i * 2), Z: 0})
		serverWorld.SetReplicated(e, worldapi.Replicated{ReplicationID: e, CreatedTick: 1, LastUpdatedTick: 1})
	}

	for tick := codec.Tick(1); int(tick) <= *ticks; tick++ {
		serverWorld.SetTick(tick)
		if err := mgr.Collect(tick); err != nil {
			xlog.Errorf("tick %d collect: %v", tick, err)
		}
		drainClient(clientSide, app)
		fmt.Printf("tick %d: client world has %d entities mapped\n", tick, countMapped(app, serverWorld, fns))
	}

	return 0
}

func drainClient(client nettransport.Transport, app *applicator.Applicator) {
	for {
		select {
		case p := <-client.Receive():
			switch p.Channel {
			case nettransport.Reliable:
				if err := app.ApplyUpdates(p.Bytes); err != nil {
					xlog.Errorf("apply updates: %v", err)
				}
			case nettransport.Unreliable:
				if err := app.ApplyMutations(p.Bytes); err != nil {
					xlog.Errorf("apply mutations: %v", err)
				}
			}
		default:
			return
		}
	}
}

func countMapped(app *applicator.Applicator, serverWorld *worldapi.MemWorld, fns codec.FnsID) int {
	n := 0
	serverWorld.Query(fns, func(e codec.EntityID, _ any) bool {
		if _, ok := app.ClientEntityFor(e); ok {
			n++
		}
		return true
	})
	return n
}
