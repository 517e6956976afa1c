package platform

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// Memory is an in-memory Client used by tests and by PLATFORM_MODE=memory
// for local development. It supports fault injection so callers can exercise
// the NotFound / Forbidden / RateLimited paths.
type Memory struct {
	mu       sync.Mutex
	nextID   int
	groups   map[string]*memGroup
	conts    map[string]*memContainer
	roles    map[string][]string
	elevated map[string]bool

	// Direct message log, keyed by member id.
	directLog map[string][]string

	// Fault injection. GrantErr and DirectErr force a permanent error per
	// member; RateLimitGrants returns ErrRateLimited the given number of
	// times before letting the call through. CreateGroupErr fails group
	// creation (allocator exhaustion path).
	GrantErr        map[string]error
	DirectErr       map[string]error
	RateLimitGrants map[string]int
	CreateGroupErr  error
}

type memGroup struct {
	name     string
	children map[string]bool
}

type memContainer struct {
	kind       string
	groupID    string
	name       string
	overwrites []Overwrite
	messages   []Message
	controls   map[string]Controls
}

// NewMemory creates an empty in-memory platform.
func NewMemory() *Memory {
	return &Memory{
		groups:          make(map[string]*memGroup),
		conts:           make(map[string]*memContainer),
		roles:           make(map[string][]string),
		elevated:        make(map[string]bool),
		directLog:       make(map[string][]string),
		GrantErr:        make(map[string]error),
		DirectErr:       make(map[string]error),
		RateLimitGrants: make(map[string]int),
	}
}

func (m *Memory) id(prefix string) string {
	m.nextID++
	return fmt.Sprintf("%s-%d", prefix, m.nextID)
}

func (m *Memory) CreateGroup(ctx context.Context, name string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateGroupErr != nil {
		return "", m.CreateGroupErr
	}
	id := m.id("group")
	m.groups[id] = &memGroup{name: name, children: make(map[string]bool)}
	return id, nil
}

func (m *Memory) GroupExists(ctx context.Context, groupID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.groups[groupID]
	return ok, nil
}

func (m *Memory) GroupChildCount(ctx context.Context, groupID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	group, ok := m.groups[groupID]
	if !ok {
		return 0, ErrNotFound
	}
	return len(group.children), nil
}

func (m *Memory) CreateContainer(ctx context.Context, kind string, groupID, name string, overwrites []Overwrite) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	// Empty groupID means an ungrouped, top-level container.
	var group *memGroup
	if groupID != "" {
		var ok bool
		group, ok = m.groups[groupID]
		if !ok {
			return "", ErrNotFound
		}
	}
	id := m.id("cont")
	m.conts[id] = &memContainer{
		kind:       kind,
		groupID:    groupID,
		name:       name,
		overwrites: append([]Overwrite(nil), overwrites...),
		controls:   make(map[string]Controls),
	}
	if group != nil {
		group.children[id] = true
	}
	return id, nil
}

func (m *Memory) ContainerExists(ctx context.Context, containerID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.conts[containerID]
	return ok, nil
}

func (m *Memory) MoveContainer(ctx context.Context, containerID, groupID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cont, ok := m.conts[containerID]
	if !ok {
		return ErrNotFound
	}
	target, ok := m.groups[groupID]
	if !ok {
		return ErrNotFound
	}
	if prev, ok := m.groups[cont.groupID]; ok {
		delete(prev.children, containerID)
	}
	cont.groupID = groupID
	target.children[containerID] = true
	return nil
}

func (m *Memory) SetOverwrites(ctx context.Context, containerID string, overwrites []Overwrite) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cont, ok := m.conts[containerID]
	if !ok {
		return ErrNotFound
	}
	cont.overwrites = append([]Overwrite(nil), overwrites...)
	return nil
}

func (m *Memory) GrantAccess(ctx context.Context, containerID, memberID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if remaining := m.RateLimitGrants[memberID]; remaining > 0 {
		m.RateLimitGrants[memberID] = remaining - 1
		return ErrRateLimited
	}
	if err := m.GrantErr[memberID]; err != nil {
		return err
	}
	cont, ok := m.conts[containerID]
	if !ok {
		return ErrNotFound
	}
	cont.overwrites = append(cont.overwrites, Overwrite{TargetID: memberID, Read: true, Write: true})
	return nil
}

func (m *Memory) SendMessage(ctx context.Context, containerID, content string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cont, ok := m.conts[containerID]
	if !ok {
		return "", ErrNotFound
	}
	msg := Message{
		ID:          m.id("msg"),
		ContainerID: containerID,
		AuthorID:    "bot",
		IsOwn:       true,
		Content:     content,
		SentAt:      time.Now(),
	}
	cont.messages = append(cont.messages, msg)
	return msg.ID, nil
}

func (m *Memory) FetchMessage(ctx context.Context, containerID, messageID string) (*Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cont, ok := m.conts[containerID]
	if !ok {
		return nil, ErrNotFound
	}
	for i := range cont.messages {
		if cont.messages[i].ID == messageID {
			msg := cont.messages[i]
			return &msg, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) EditMessageControls(ctx context.Context, containerID, messageID string, controls Controls) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cont, ok := m.conts[containerID]
	if !ok {
		return ErrNotFound
	}
	cont.controls[messageID] = controls
	return nil
}

func (m *Memory) DirectMessage(ctx context.Context, memberID, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if remaining := m.RateLimitGrants[memberID]; remaining > 0 {
		m.RateLimitGrants[memberID] = remaining - 1
		return ErrRateLimited
	}
	if err := m.DirectErr[memberID]; err != nil {
		return err
	}
	m.directLog[memberID] = append(m.directLog[memberID], content)
	return nil
}

func (m *Memory) ContainerMessages(ctx context.Context, containerID string, limit int) ([]Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cont, ok := m.conts[containerID]
	if !ok {
		return nil, ErrNotFound
	}
	msgs := append([]Message(nil), cont.messages...)
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return msgs, nil
}

func (m *Memory) DownloadAttachment(ctx context.Context, att Attachment) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader("attachment:" + att.ID)), nil
}

func (m *Memory) RoleMembers(ctx context.Context, roleID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	members, ok := m.roles[roleID]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]string(nil), members...), nil
}

func (m *Memory) HasElevatedPrivilege(ctx context.Context, memberID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.elevated[memberID], nil
}

// SetRole seeds a role's member list.
func (m *Memory) SetRole(roleID string, members ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.roles[roleID] = append([]string(nil), members...)
}

// SetElevated marks a member as platform-elevated.
func (m *Memory) SetElevated(memberID string, elevated bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.elevated[memberID] = elevated
}

// RemoveGroup deletes a group, simulating platform-side deletion.
func (m *Memory) RemoveGroup(groupID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.groups, groupID)
}

// RemoveContainer deletes a container, simulating platform-side deletion.
func (m *Memory) RemoveContainer(containerID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cont, ok := m.conts[containerID]
	if ok {
		if group, ok := m.groups[cont.groupID]; ok {
			delete(group.children, containerID)
		}
	}
	delete(m.conts, containerID)
}

// ContainerGroup returns the group currently holding a container.
func (m *Memory) ContainerGroup(containerID string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cont, ok := m.conts[containerID]
	if !ok {
		return "", false
	}
	return cont.groupID, true
}

// Overwrites returns a copy of a container's permission overlay.
func (m *Memory) Overwrites(containerID string) []Overwrite {
	m.mu.Lock()
	defer m.mu.Unlock()
	cont, ok := m.conts[containerID]
	if !ok {
		return nil
	}
	return append([]Overwrite(nil), cont.overwrites...)
}

// ControlsFor returns the controls last attached to a message.
func (m *Memory) ControlsFor(containerID, messageID string) (Controls, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cont, ok := m.conts[containerID]
	if !ok {
		return Controls{}, false
	}
	controls, ok := cont.controls[messageID]
	return controls, ok
}

// DirectMessages returns the direct messages delivered to a member.
func (m *Memory) DirectMessages(memberID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.directLog[memberID]...)
}

// GroupIDs returns all live group ids.
func (m *Memory) GroupIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.groups))
	for id := range m.groups {
		ids = append(ids, id)
	}
	return ids
}
