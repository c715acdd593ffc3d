// Package tabs owns the set of open sessions and the panel that hosts
// them. Connection ownership lives in each session; the manager only
// creates, orders, activates and releases them.
package tabs

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/timvw/dock-tabs/internal/logx"
	"github.com/timvw/dock-tabs/internal/model"
	telem "github.com/timvw/dock-tabs/internal/otel"
)

// Session is the lifecycle surface the manager needs from a log or
// terminal session.
type Session interface {
	Tab() model.Tab
	Start(ctx context.Context)
	Close()
	Status() model.Status
}

// Factory builds the session for a new tab. notify must be called by the
// session after every visible change.
type Factory func(tab model.Tab, notify func()) Session

// Options configures a Manager.
type Options struct {
	Metrics *telem.Metrics
	// PanelHeight is the initial panel height in px.
	PanelHeight int
	// NewID overrides tab id generation.
	NewID func(containerID string, kind model.Kind) string
}

type entry struct {
	tab     model.Tab
	session Session
}

// Manager is the explicit state container for open tabs. All methods are
// safe for concurrent use.
type Manager struct {
	ctx     context.Context
	factory Factory
	opts    Options
	wake    chan struct{}

	pmu     sync.Mutex
	pending map[string]struct{}

	mu       sync.Mutex
	entries  []entry
	activeID string
	open     bool
	height   int
}

// New returns an empty manager. Sessions are started with ctx.
func New(ctx context.Context, factory Factory, opts Options) *Manager {
	if opts.NewID == nil {
		opts.NewID = newID
	}
	h := opts.PanelHeight
	if h == 0 {
		h = model.PanelDefaultHeight
	}
	return &Manager{
		ctx:     ctx,
		factory: factory,
		opts:    opts,
		wake:    make(chan struct{}, 1),
		pending: make(map[string]struct{}),
		height:  model.ClampPanelHeight(h),
	}
}

func newID(containerID string, kind model.Kind) string {
	return fmt.Sprintf("%s-%s-%s", containerID, kind, uuid.NewString()[:8])
}

// Updates receives a value whenever changes are pending. Bursts coalesce
// into one wakeup; TakeUpdates returns what changed.
func (m *Manager) Updates() <-chan struct{} {
	return m.wake
}

// TakeUpdates returns and clears the pending changes: the ids of tabs whose
// sessions changed, or just "" when the panel itself changed.
func (m *Manager) TakeUpdates() []string {
	m.pmu.Lock()
	defer m.pmu.Unlock()
	if len(m.pending) == 0 {
		return nil
	}
	var ids []string
	if _, all := m.pending[""]; all {
		ids = []string{""}
	} else {
		ids = make([]string, 0, len(m.pending))
		for id := range m.pending {
			ids = append(ids, id)
		}
		slices.Sort(ids)
	}
	clear(m.pending)
	return ids
}

func (m *Manager) publish(id string) {
	m.pmu.Lock()
	m.pending[id] = struct{}{}
	m.pmu.Unlock()
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

// Open activates the tab for (containerID, kind), creating and starting a
// session if none exists, and opens the panel.
func (m *Manager) Open(containerID, name string, kind model.Kind) model.Tab {
	if name == "" {
		name = containerID
	}

	m.mu.Lock()
	for _, e := range m.entries {
		if e.tab.ContainerID == containerID && e.tab.Kind == kind {
			m.activeID = e.tab.ID
			m.open = true
			m.mu.Unlock()
			m.publish("")
			return e.tab
		}
	}

	tab := model.Tab{
		ID:            m.opts.NewID(containerID, kind),
		Kind:          kind,
		ContainerID:   containerID,
		ContainerName: name,
		Title:         model.TabTitle(kind, name),
	}
	id := tab.ID
	sess := m.factory(tab, func() { m.publish(id) })
	m.entries = append(m.entries, entry{tab: tab, session: sess})
	m.activeID = tab.ID
	m.open = true
	m.mu.Unlock()

	m.opts.Metrics.RecordSessionOpened(m.ctx, string(kind))
	logx.WithTab(m.ctx, tab).Info("session opened")
	sess.Start(m.ctx)
	m.publish("")
	return tab
}

// Close removes the tab and releases its session. When the closed tab was
// active, the tab now at the same position (or the last one) becomes
// active. Closing the last tab closes the panel.
func (m *Manager) Close(id string) bool {
	m.mu.Lock()
	idx := m.indexLocked(id)
	if idx < 0 {
		m.mu.Unlock()
		return false
	}
	e := m.entries[idx]
	m.entries = slices.Delete(m.entries, idx, idx+1)
	if m.activeID == id {
		m.activeID = ""
		if len(m.entries) > 0 {
			m.activeID = m.entries[min(idx, len(m.entries)-1)].tab.ID
		}
	}
	m.open = len(m.entries) > 0
	m.mu.Unlock()

	m.release(e)
	m.publish("")
	return true
}

// CloseAll releases every session, clears the active tab and closes the
// panel. It returns the number of sessions released.
func (m *Manager) CloseAll() int {
	m.mu.Lock()
	entries := m.entries
	m.entries = nil
	m.activeID = ""
	m.open = false
	m.mu.Unlock()

	for _, e := range entries {
		m.release(e)
	}
	m.publish("")
	return len(entries)
}

// Shutdown releases every session on application exit.
func (m *Manager) Shutdown() {
	if n := m.CloseAll(); n > 0 {
		logx.Ctx(m.ctx).Info("released sessions on shutdown", "count", n)
	}
}

func (m *Manager) release(e entry) {
	e.session.Close()
	m.opts.Metrics.RecordSessionClosed(m.ctx, string(e.tab.Kind))
	logx.WithTab(m.ctx, e.tab).Info("session closed")
}

// SetActive makes id the active tab. It reports false for unknown ids.
func (m *Manager) SetActive(id string) bool {
	m.mu.Lock()
	if m.indexLocked(id) < 0 {
		m.mu.Unlock()
		return false
	}
	m.activeID = id
	m.mu.Unlock()
	m.publish("")
	return true
}

// Next activates the tab after the active one, wrapping around.
func (m *Manager) Next() { m.step(1) }

// Prev activates the tab before the active one, wrapping around.
func (m *Manager) Prev() { m.step(-1) }

func (m *Manager) step(delta int) {
	m.mu.Lock()
	n := len(m.entries)
	if n == 0 {
		m.mu.Unlock()
		return
	}
	idx := m.indexLocked(m.activeID)
	if idx < 0 {
		idx = 0
	} else {
		idx = (idx + delta + n) % n
	}
	m.activeID = m.entries[idx].tab.ID
	m.mu.Unlock()
	m.publish("")
}

// SetPanelOpen shows or hides the panel. Sessions stay live either way.
func (m *Manager) SetPanelOpen(open bool) {
	m.mu.Lock()
	m.open = open
	m.mu.Unlock()
	m.publish("")
}

// TogglePanel flips panel visibility and returns the new value.
func (m *Manager) TogglePanel() bool {
	m.mu.Lock()
	m.open = !m.open
	open := m.open
	m.mu.Unlock()
	m.publish("")
	return open
}

// Resize sets the panel height, clamped to the allowed range, and returns
// the stored value.
func (m *Manager) Resize(height int) int {
	m.mu.Lock()
	m.height = model.ClampPanelHeight(height)
	h := m.height
	m.mu.Unlock()
	m.publish("")
	return h
}

// Snapshot returns a copy of the panel state.
func (m *Manager) Snapshot() model.PanelState {
	m.mu.Lock()
	defer m.mu.Unlock()
	tabs := make([]model.Tab, len(m.entries))
	for i, e := range m.entries {
		tabs[i] = e.tab
	}
	return model.PanelState{
		Open:     m.open,
		Height:   m.height,
		Tabs:     tabs,
		ActiveID: m.activeID,
	}
}

// Session returns the session behind id.
func (m *Manager) Session(id string) (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if idx := m.indexLocked(id); idx >= 0 {
		return m.entries[idx].session, true
	}
	return nil, false
}

// Find returns the tab for (containerID, kind).
func (m *Manager) Find(containerID string, kind model.Kind) (model.Tab, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if e.tab.ContainerID == containerID && e.tab.Kind == kind {
			return e.tab, true
		}
	}
	return model.Tab{}, false
}

func (m *Manager) indexLocked(id string) int {
	if id == "" {
		return -1
	}
	return slices.IndexFunc(m.entries, func(e entry) bool { return e.tab.ID == id })
}
