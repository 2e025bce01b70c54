// Package realtime fans domain events out to connected dispatcher and
// paramedic websocket sessions.
package realtime

import (
	"context"
	"sync"
)

// DispatcherGroup is the broadcast group every dispatcher session joins
const DispatcherGroup = "dispatchers"

// ParamedicGroup names the private group of one paramedic
func ParamedicGroup(paramedicID string) string {
	return "paramedic_" + paramedicID
}

// Member is anything the hub can push a message to
type Member interface {
	ID() string
	// Send queues msg without blocking and reports whether it was accepted
	Send(msg []byte) bool
}

// Hub is the group registry. Join, leave and broadcast may be called from
// any goroutine.
type Hub struct {
	mu      sync.RWMutex
	groups  map[string]map[string]Member
	members map[string]map[string]struct{}
}

// NewHub returns an empty hub
func NewHub() *Hub {
	return &Hub{
		groups:  map[string]map[string]Member{},
		members: map[string]map[string]struct{}{},
	}
}

// Join adds m to group
func (h *Hub) Join(group string, m Member) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.groups[group] == nil {
		h.groups[group] = map[string]Member{}
	}
	h.groups[group][m.ID()] = m
	if h.members[m.ID()] == nil {
		h.members[m.ID()] = map[string]struct{}{}
	}
	h.members[m.ID()][group] = struct{}{}
}

// Leave removes m from group
func (h *Hub) Leave(group string, m Member) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leave(group, m.ID())
}

func (h *Hub) leave(group, id string) {
	if g, ok := h.groups[group]; ok {
		delete(g, id)
		if len(g) == 0 {
			delete(h.groups, group)
		}
	}
	if groups, ok := h.members[id]; ok {
		delete(groups, group)
		if len(groups) == 0 {
			delete(h.members, id)
		}
	}
}

// LeaveAll removes m from every group it joined
func (h *Hub) LeaveAll(m Member) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for group := range h.members[m.ID()] {
		h.leave(group, m.ID())
	}
}

// SendToGroup pushes msg to every member of group and returns how many
// accepted it. Members that are gone or backed up miss the message.
func (h *Hub) SendToGroup(group string, msg []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	sent := 0
	for _, m := range h.groups[group] {
		if m.Send(msg) {
			sent++
		}
	}
	return sent
}

// SendToSession pushes msg to a single member if it is still joined somewhere
func (h *Hub) SendToSession(id string, msg []byte) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for group := range h.members[id] {
		return h.groups[group][id].Send(msg)
	}
	return false
}

// Count returns the number of members in group
func (h *Hub) Count(group string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[group])
}

// Publish delivers msg to the local members of group. It lets the hub act as
// the router transport on a single instance.
func (h *Hub) Publish(_ context.Context, group string, msg []byte) error {
	h.SendToGroup(group, msg)
	return nil
}
