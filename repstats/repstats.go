// Package repstats exposes Prometheus counters for the collector and
// applicator, following stats/target_stats.go's
// naming convention ("*.n" counter, "*.size" byte count, "*.ns" latency)
// translated into Prometheus's dotted-to-underscore metric naming.
/*
 * Copyright (c) 2024, ecsnet. All rights reserved.
 */
package repstats

import "github.com/prometheus/client_golang/prometheus"

// Registry bundles every counter the engine emits. Construct one with New
// and pass it to collector.Manager / applicator.Applicator; nil is a valid
// zero-cost no-op (every method is nil-receiver safe).
type Registry struct {
	UpdatesTxCount   prometheus.Counter
	UpdatesTxSize    prometheus.Counter
	MutationsTxCount prometheus.Counter
	MutationsTxSize  prometheus.Counter
	ComponentSkipCount prometheus.Counter

	UpdatesRxCount   prometheus.Counter
	UpdatesRxSize    prometheus.Counter
	MutationsRxCount prometheus.Counter
	MutationsRxSize  prometheus.Counter
	UnknownFnsCount  prometheus.Counter
	MalformedCount   prometheus.Counter
}

// New constructs a Registry and registers every counter with reg.
func New(reg prometheus.Registerer) *Registry {
	r := &Registry{
		UpdatesTxCount:     counter(reg, "repl_updates_tx_n", "Updates messages sent"),
		UpdatesTxSize:      counter(reg, "repl_updates_tx_size", "Updates bytes sent"),
		MutationsTxCount:   counter(reg, "repl_mutations_tx_n", "Mutations messages sent"),
		MutationsTxSize:    counter(reg, "repl_mutations_tx_size", "Mutations bytes sent"),
		ComponentSkipCount: counter(reg, "repl_component_skip_n", "components skipped after a serialize/deserialize failure or a MaxMessageBytes trim"),

		UpdatesRxCount:   counter(reg, "repl_updates_rx_n", "Updates messages received"),
		UpdatesRxSize:    counter(reg, "repl_updates_rx_size", "Updates bytes received"),
		MutationsRxCount: counter(reg, "repl_mutations_rx_n", "Mutations messages received"),
		MutationsRxSize:  counter(reg, "repl_mutations_rx_size", "Mutations bytes received"),
		UnknownFnsCount:  counter(reg, "repl_applicator_unknown_fns_n", "components skipped due to an unknown fns id"),
		MalformedCount:   counter(reg, "repl_applicator_malformed_n", "messages aborted due to malformed wire data"),
	}
	return r
}

func counter(reg prometheus.Registerer, name, help string) prometheus.Counter {
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: name, Help: help})
	if reg != nil {
		reg.MustRegister(c)
	}
	return c
}

func (r *Registry) addCounter(c prometheus.Counter, n float64) {
	if r == nil || c == nil {
		return
	}
	c.Add(n)
}

func (r *Registry) AddUpdatesTx(messages, bytes int)   { r.addCounter(r.UpdatesTxCount, float64(messages)); r.addCounter(r.UpdatesTxSize, float64(bytes)) }
func (r *Registry) AddMutationsTx(messages, bytes int) { r.addCounter(r.MutationsTxCount, float64(messages)); r.addCounter(r.MutationsTxSize, float64(bytes)) }
func (r *Registry) AddComponentSkip(n int)             { r.addCounter(r.ComponentSkipCount, float64(n)) }

func (r *Registry) AddUpdatesRx(messages, bytes int)   { r.addCounter(r.UpdatesRxCount, float64(messages)); r.addCounter(r.UpdatesRxSize, float64(bytes)) }
func (r *Registry) AddMutationsRx(messages, bytes int) { r.addCounter(r.MutationsRxCount, float64(messages)); r.addCounter(r.MutationsRxSize, float64(bytes)) }
func (r *Registry) AddUnknownFns(n int)                { r.addCounter(r.UnknownFnsCount, float64(n)) }
func (r *Registry) AddMalformed(n int)                 { r.addCounter(r.MalformedCount, float64(n)) }
