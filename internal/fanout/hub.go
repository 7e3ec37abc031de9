package fanout

import (
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/park285/cheese-arena/internal/obslog"
)

// Subscriber is one connection that can receive messages of type M.
// Send must not block; it reports false when the connection cannot keep up.
type Subscriber[M any] interface {
	ID() string
	Identity() string
	Send(msg M) bool
	Close()
}

// Hub groups subscribers by name and delivers fire-and-forget broadcasts.
type Hub[M any] struct {
	mu     sync.RWMutex
	groups map[string]map[string]Subscriber[M]
	byConn map[string]map[string]struct{}
}

func NewHub[M any]() *Hub[M] {
	return &Hub[M]{
		groups: make(map[string]map[string]Subscriber[M]),
		byConn: make(map[string]map[string]struct{}),
	}
}

func (h *Hub[M]) Subscribe(group string, s Subscriber[M]) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.groups[group]
	if !ok {
		members = make(map[string]Subscriber[M])
		h.groups[group] = members
	}
	members[s.ID()] = s
	idx, ok := h.byConn[s.ID()]
	if !ok {
		idx = make(map[string]struct{})
		h.byConn[s.ID()] = idx
	}
	idx[group] = struct{}{}
}

func (h *Hub[M]) Unsubscribe(group, connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.unsubscribeLocked(group, connID)
}

// UnsubscribeAll removes the connection from every group and returns the groups it left.
func (h *Hub[M]) UnsubscribeAll(connID string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	var left []string
	for g := range h.byConn[connID] {
		left = append(left, g)
	}
	for _, g := range left {
		h.unsubscribeLocked(g, connID)
	}
	sort.Strings(left)
	return left
}

func (h *Hub[M]) unsubscribeLocked(group, connID string) {
	if members, ok := h.groups[group]; ok {
		delete(members, connID)
		if len(members) == 0 {
			delete(h.groups, group)
		}
	}
	if idx, ok := h.byConn[connID]; ok {
		delete(idx, group)
		if len(idx) == 0 {
			delete(h.byConn, connID)
		}
	}
}

// Broadcast sends msg to every member of group.
func (h *Hub[M]) Broadcast(group string, msg M) {
	h.Deliver(group, func(Subscriber[M]) (M, bool) { return msg, true })
}

// BroadcastExcept sends msg to every member of group except connID.
func (h *Hub[M]) BroadcastExcept(group, connID string, msg M) {
	h.Deliver(group, func(s Subscriber[M]) (M, bool) { return msg, s.ID() != connID })
}

// Deliver lets pick choose, per member, which message (if any) it receives.
// Members whose buffer is full are dropped from every group and closed.
func (h *Hub[M]) Deliver(group string, pick func(Subscriber[M]) (M, bool)) {
	var slow []Subscriber[M]
	h.mu.RLock()
	for _, s := range h.groups[group] {
		msg, ok := pick(s)
		if !ok {
			continue
		}
		if !s.Send(msg) {
			slow = append(slow, s)
		}
	}
	h.mu.RUnlock()

	for _, s := range slow {
		obslog.L().Warn("fanout_slow_consumer", zap.String("group", group), zap.String("conn_id", s.ID()))
		h.UnsubscribeAll(s.ID())
		s.Close()
	}
}

// Drop forgets the whole group.
func (h *Hub[M]) Drop(group string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for connID := range h.groups[group] {
		if idx, ok := h.byConn[connID]; ok {
			delete(idx, group)
			if len(idx) == 0 {
				delete(h.byConn, connID)
			}
		}
	}
	delete(h.groups, group)
}

// Members returns the connection ids in group, sorted.
func (h *Hub[M]) Members(group string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, 0, len(h.groups[group]))
	for id := range h.groups[group] {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Groups returns the groups connID belongs to, sorted.
func (h *Hub[M]) Groups(connID string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, 0, len(h.byConn[connID]))
	for g := range h.byConn[connID] {
		out = append(out, g)
	}
	sort.Strings(out)
	return out
}

// Connections counts distinct subscribed connections.
func (h *Hub[M]) Connections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byConn)
}

// HasIdentity reports whether any member of group is bound to identity.
func (h *Hub[M]) HasIdentity(group, identity string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, s := range h.groups[group] {
		if s.Identity() == identity {
			return true
		}
	}
	return false
}
