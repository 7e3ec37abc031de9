package fanout

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeSub struct {
	id, identity string
	cap          int

	mu     sync.Mutex
	got    []string
	closed bool
}

func (f *fakeSub) ID() string       { return f.id }
func (f *fakeSub) Identity() string { return f.identity }

func (f *fakeSub) Send(msg string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cap > 0 && len(f.got) >= f.cap {
		return false
	}
	f.got = append(f.got, msg)
	return true
}

func (f *fakeSub) Close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
}

func (f *fakeSub) messages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.got...)
}

func TestBroadcastAndExcept(t *testing.T) {
	h := NewHub[string]()
	a := &fakeSub{id: "a", identity: "alice"}
	b := &fakeSub{id: "b", identity: "bob"}
	c := &fakeSub{id: "c", identity: "carol"}
	h.Subscribe("R1", a)
	h.Subscribe("R1", b)
	h.Subscribe("R2", c)

	h.Broadcast("R1", "m1")
	h.BroadcastExcept("R1", "a", "m2")
	h.Broadcast("missing", "m3")

	assert.Equal(t, []string{"m1"}, a.messages())
	assert.Equal(t, []string{"m1", "m2"}, b.messages())
	assert.Empty(t, c.messages())
	assert.Equal(t, []string{"a", "b"}, h.Members("R1"))
}

func TestDeliverPicksPerSubscriber(t *testing.T) {
	h := NewHub[string]()
	a := &fakeSub{id: "a", identity: "alice"}
	b := &fakeSub{id: "b", identity: "bob"}
	h.Subscribe("R1", a)
	h.Subscribe("R1", b)

	h.Deliver("R1", func(s Subscriber[string]) (string, bool) {
		if s.Identity() == "alice" {
			return "joined", true
		}
		return "someone joined", true
	})
	assert.Equal(t, []string{"joined"}, a.messages())
	assert.Equal(t, []string{"someone joined"}, b.messages())
}

func TestOrderIsPreservedPerGroup(t *testing.T) {
	h := NewHub[string]()
	a := &fakeSub{id: "a"}
	h.Subscribe("R1", a)
	want := []string{"1", "2", "3", "4", "5"}
	for _, m := range want {
		h.Broadcast("R1", m)
	}
	assert.Equal(t, want, a.messages())
}

func TestSlowConsumerIsEvicted(t *testing.T) {
	h := NewHub[string]()
	slow := &fakeSub{id: "slow", cap: 1}
	fast := &fakeSub{id: "fast"}
	h.Subscribe("R1", slow)
	h.Subscribe("chat:R1", slow)
	h.Subscribe("R1", fast)

	h.Broadcast("R1", "m1")
	h.Broadcast("R1", "m2")

	assert.True(t, slow.closed)
	assert.Empty(t, h.Groups("slow"))
	assert.Equal(t, []string{"fast"}, h.Members("R1"))
	assert.Equal(t, []string{"m1", "m2"}, fast.messages())
}

func TestUnsubscribeAllAndDrop(t *testing.T) {
	h := NewHub[string]()
	a := &fakeSub{id: "a"}
	b := &fakeSub{id: "b"}
	h.Subscribe("R1", a)
	h.Subscribe("R2", a)
	h.Subscribe("R1", b)
	assert.Equal(t, 2, h.Connections())

	assert.Equal(t, []string{"R1", "R2"}, h.UnsubscribeAll("a"))
	assert.Empty(t, h.Groups("a"))
	assert.Equal(t, []string{"b"}, h.Members("R1"))

	h.Drop("R1")
	assert.Empty(t, h.Members("R1"))
	assert.Empty(t, h.Groups("b"))
	assert.Equal(t, 0, h.Connections())
}

func TestHasIdentity(t *testing.T) {
	h := NewHub[string]()
	h.Subscribe("R1", &fakeSub{id: "a1", identity: "alice"})
	h.Subscribe("R1", &fakeSub{id: "a2", identity: "alice"})

	assert.True(t, h.HasIdentity("R1", "alice"))
	h.Unsubscribe("R1", "a1")
	assert.True(t, h.HasIdentity("R1", "alice"))
	h.Unsubscribe("R1", "a2")
	assert.False(t, h.HasIdentity("R1", "alice"))
	assert.False(t, h.HasIdentity("R2", "alice"))
}
