package visibility

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/ecsnet/replicore/codec"
)

var _ = Describe("Engine policy All", func() {
	var e *Engine
	BeforeEach(func() {
		e = New(Config{Policy: All})
	})

	It("makes every entity visible to every client", func() {
		Expect(e.IsVisible(1, "alice")).To(BeTrue())
		Expect(e.IsVisible(999, "bob")).To(BeTrue())
	})
})

var _ = Describe("Engine policy Whitelist", func() {
	var e *Engine
	BeforeEach(func() {
		e = New(Config{Policy: Whitelist, DefaultVisible: false})
	})

	It("hides entities with no explicit list by default", func() {
		Expect(e.IsVisible(1, "alice")).To(BeFalse())
	})

	It("shows an entity only to whitelisted clients", func() {
		e.Set(1, "alice", true)
		Expect(e.IsVisible(1, "alice")).To(BeTrue())
		Expect(e.IsVisible(1, "bob")).To(BeFalse())
	})

	It("honors a global visibility override regardless of the list", func() {
		e.SetGlobal(1, true)
		Expect(e.IsVisible(1, "anyone")).To(BeTrue())
	})

	It("reflects Set removal", func() {
		e.Set(1, "alice", true)
		e.Set(1, "alice", false)
		Expect(e.IsVisible(1, "alice")).To(BeFalse())
	})
})

var _ = Describe("Engine policy Blacklist", func() {
	var e *Engine
	BeforeEach(func() {
		e = New(Config{Policy: Blacklist, DefaultVisible: true})
	})

	It("shows entities with no explicit list by default", func() {
		Expect(e.IsVisible(1, "alice")).To(BeTrue())
	})

	It("hides an entity only from blacklisted clients", func() {
		e.Set(1, "alice", true)
		Expect(e.IsVisible(1, "alice")).To(BeFalse())
		Expect(e.IsVisible(1, "bob")).To(BeTrue())
	})
})

var _ = Describe("Engine caching", func() {
	var e *Engine
	BeforeEach(func() {
		e = New(Config{Policy: Whitelist, DefaultVisible: false, CacheTTL: 2})
	})

	It("serves a cached result until invalidated", func() {
		Expect(e.IsVisible(1, "alice")).To(BeFalse())
		e.Set(1, "alice", true)
		Expect(e.IsVisible(1, "alice")).To(BeTrue())
	})

	It("expires cache entries after ApplyChanges sweeps past the ttl", func() {
		e.Set(1, "alice", true)
		Expect(e.IsVisible(1, "alice")).To(BeTrue())
		e.ApplyChanges()
		e.ApplyChanges()
		e.ApplyChanges()
		Expect(e.cache.entries).To(BeEmpty())
		Expect(e.IsVisible(1, "alice")).To(BeTrue())
	})
})

var _ = Describe("Engine ComputeChanges/ApplyChanges", func() {
	var e *Engine
	BeforeEach(func() {
		e = New(Config{Policy: Whitelist, DefaultVisible: false, HistoryCap: 16})
	})

	It("reports a first-seen visible entity as BecameVisible", func() {
		e.Set(1, "alice", true)
		changes := e.ComputeChanges("alice", []codec.EntityID{1})
		Expect(changes.BecameVisible).To(HaveLen(1))
		Expect(changes.BecameHidden).To(BeEmpty())
	})

	It("reports a first-seen hidden entity as BecameHidden, not Unchanged", func() {
		changes := e.ComputeChanges("alice", []codec.EntityID{1})
		Expect(changes.BecameHidden).To(HaveLen(1))
	})

	It("reports Unchanged once a visibility state has been applied twice", func() {
		e.Set(1, "alice", true)
		e.ComputeChanges("alice", []codec.EntityID{1})
		e.ApplyChanges()
		changes := e.ComputeChanges("alice", []codec.EntityID{1})
		Expect(changes.Unchanged).To(HaveLen(1))
	})

	It("reports a flip from visible to hidden across ticks", func() {
		e.Set(1, "alice", true)
		e.ComputeChanges("alice", []codec.EntityID{1})
		e.ApplyChanges()

		e.Set(1, "alice", false)
		changes := e.ComputeChanges("alice", []codec.EntityID{1})
		Expect(changes.BecameHidden).To(HaveLen(1))
	})

	It("records transitions in history", func() {
		e.Set(1, "alice", true)
		e.ComputeChanges("alice", []codec.EntityID{1})
		Expect(e.History()).To(HaveLen(1))
	})
})

var _ = Describe("Engine entity and client removal", func() {
	var e *Engine
	BeforeEach(func() {
		e = New(Config{Policy: Whitelist, DefaultVisible: false})
		e.Set(1, "alice", true)
		e.Set(2, "alice", true)
	})

	It("RemoveEntity clears the entity's visibility state", func() {
		e.RemoveEntity(1)
		Expect(e.IsVisible(1, "alice")).To(BeFalse())
		Expect(e.IsVisible(2, "alice")).To(BeTrue())
	})

	It("RemoveClient clears the client from every entity's list", func() {
		e.RemoveClient("alice")
		Expect(e.IsVisible(1, "alice")).To(BeFalse())
		Expect(e.IsVisible(2, "alice")).To(BeFalse())
	})

	It("CleanupRemovedEntities drops entities absent from the alive set", func() {
		e.CleanupRemovedEntities(map[codec.EntityID]struct{}{2: {}})
		Expect(e.IsVisible(1, "alice")).To(BeFalse())
		Expect(e.IsVisible(2, "alice")).To(BeTrue())
	})

	It("CleanupDisconnectedClients drops clients absent from the alive set", func() {
		e.CleanupDisconnectedClients(map[ClientID]struct{}{})
		Expect(e.IsVisible(1, "alice")).To(BeFalse())
	})
})

var _ = Describe("Engine VisibleClientsOf / VisibleEntitiesOf", func() {
	It("enumerates correctly under Whitelist", func() {
		e := New(Config{Policy: Whitelist, DefaultVisible: false})
		e.Set(1, "alice", true)
		e.Set(1, "bob", true)
		e.Set(2, "bob", true)

		Expect(e.VisibleClientsOf(1, []ClientID{"alice", "bob", "carol"})).To(ConsistOf(ClientID("alice"), ClientID("bob")))
		Expect(e.VisibleEntitiesOf("bob", []codec.EntityID{1, 2, 3})).To(ConsistOf(codec.EntityID(1), codec.EntityID(2)))
	})
})
