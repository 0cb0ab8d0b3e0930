// Package session owns the per-user dashboard state: calculator inputs, the
// vision scene and the debounced persistence of both.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rpm-monitor/backend/internal/catalog"
	"github.com/rpm-monitor/backend/internal/models"
	"github.com/rpm-monitor/backend/internal/rpm"
	"github.com/rpm-monitor/backend/internal/storage"
	"github.com/rpm-monitor/backend/internal/vision"
)

var (
	ErrReadOnly     = errors.New("session is read-only")
	ErrUnknownGroup = errors.New("unknown group")
	ErrUnknownParam = errors.New("unknown transmission parameter")
	ErrInvalidTab   = errors.New("unknown tab")
)

// DefaultDebounce is the quiet interval before a change is written.
const DefaultDebounce = time.Second

// Controller is the single owner of one user's session state. All methods are
// safe for concurrent use and serialize on one mutex.
type Controller struct {
	mu sync.Mutex

	userID   string
	readOnly bool
	catalog  *catalog.Catalog
	store    storage.StateStore
	saver    *Debouncer
	log      *slog.Logger

	tab       models.Tab
	params    models.TransmissionParams
	inputs    []models.GroupInput
	collapsed map[string]bool
	scene     *vision.Scene

	syncing    bool
	updatedAt  time.Time
	lastAccess time.Time

	subs    map[int]chan Snapshot
	nextSub int
}

// Config configures a Controller.
type Config struct {
	UserID   string
	ReadOnly bool
	Catalog  *catalog.Catalog
	Store    storage.StateStore
	Debounce time.Duration
	Logger   *slog.Logger
}

// NewController creates a session with catalog defaults.
func NewController(cfg Config) *Controller {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	c := &Controller{
		userID:     cfg.UserID,
		readOnly:   cfg.ReadOnly || cfg.Store == nil,
		catalog:    cfg.Catalog,
		store:      cfg.Store,
		log:        log.With("component", "session", "user", shortID(cfg.UserID)),
		tab:        models.TabCalculator,
		params:     cfg.Catalog.Defaults(),
		inputs:     cfg.Catalog.DefaultInputs(),
		collapsed:  allCollapsed(cfg.Catalog),
		scene:      vision.NewScene(cfg.Catalog),
		lastAccess: time.Now(),
		subs:       make(map[int]chan Snapshot),
	}
	delay := cfg.Debounce
	if delay <= 0 {
		delay = DefaultDebounce
	}
	c.saver = NewDebouncer(delay, c.save)
	return c
}

func allCollapsed(cat *catalog.Catalog) map[string]bool {
	out := make(map[string]bool, len(cat.Groups()))
	for _, g := range cat.Groups() {
		out[g.ID] = true
	}
	return out
}

// shortID safely truncates an ID for logging.
func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

// UserID returns the owner of the session.
func (c *Controller) UserID() string {
	return c.userID
}

// ReadOnly reports whether the session is inert.
func (c *Controller) ReadOnly() bool {
	return c.readOnly
}

// LastAccess returns when the session was last used.
func (c *Controller) LastAccess() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastAccess
}

// Restore applies a persisted document. Markers of unknown components are dropped.
func (c *Controller) Restore(doc *models.UserState) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if doc.ActiveTab.Valid() {
		c.tab = doc.ActiveTab
	}
	if doc.CalcParams != (models.TransmissionParams{}) {
		c.params = doc.CalcParams
	}
	c.inputs = c.mergeInputs(doc.GroupInputs)
	c.updatedAt = doc.UpdatedAt

	orphans := c.scene.Restore(doc.CustomMarkers, doc.ViewState, doc.DrawingURL)
	if len(orphans) > 0 {
		c.log.Debug("dropped markers of unknown components", "ids", orphans)
	}
}

// mergeInputs aligns persisted inputs with the catalog groups, in catalog order.
func (c *Controller) mergeInputs(saved []models.GroupInput) []models.GroupInput {
	inputs := c.catalog.DefaultInputs()
	for i := range inputs {
		v := rpm.EntryRPM(saved, inputs[i].ID)
		if rpm.Finite(v) {
			inputs[i].InputRPM = v
		}
	}
	return inputs
}

// Document builds the persisted form of the session.
func (c *Controller) Document() *models.UserState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.documentLocked()
}

func (c *Controller) documentLocked() *models.UserState {
	inputs := make([]models.GroupInput, len(c.inputs))
	copy(inputs, c.inputs)
	return &models.UserState{
		UserID:        c.userID,
		ActiveTab:     c.tab,
		CalcParams:    c.params,
		GroupInputs:   inputs,
		CustomMarkers: c.scene.Markers.Snapshot(),
		ViewState:     c.scene.Viewport.State(),
		DrawingURL:    c.scene.Surface.Ref(),
		UpdatedAt:     time.Now().UTC(),
	}
}

// Snapshot returns the current state as served to clients.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastAccess = time.Now()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	inputs := make([]models.GroupInput, len(c.inputs))
	copy(inputs, c.inputs)
	collapsed := make(map[string]bool, len(c.collapsed))
	for k, v := range c.collapsed {
		collapsed[k] = v
	}

	s := Snapshot{
		UserID:    c.userID,
		ReadOnly:  c.readOnly,
		Syncing:   c.syncing,
		ActiveTab: c.tab,
		Params:    c.params,
		Inputs:    inputs,
		Collapsed: collapsed,
		Rows:      rpm.Table(c.catalog.Groups(), c.inputs, c.params),
		Editing:   c.scene.Placement.Editing(),
		Mode:      c.scene.Placement.Mode().String(),
		Search:    c.scene.Placement.Search(),
		Markers:   c.markerViewsLocked(),
		View:      c.scene.Viewport.State(),
		Gesture:   c.scene.Gesture(),
		UpdatedAt: c.updatedAt,
	}
	if pt, ok := c.scene.Placement.Candidate(); ok {
		s.Candidate = &pt
		s.Options = c.scene.Options()
	}

	surface := c.scene.Surface
	s.Drawing = DrawingView{
		URL:        surface.Ref(),
		Width:      surface.Natural().Width,
		Height:     surface.Natural().Height,
		Loading:    surface.Loading(),
		IsDocument: surface.IsDocument(),
		Error:      surface.Message(),
	}
	return s
}

// markerViewsLocked resolves the displayed RPM of every marker. A manual override
// wins over the derived value.
func (c *Controller) markerViewsLocked() []MarkerView {
	ids := c.scene.Markers.IDs()
	views := make([]MarkerView, 0, len(ids))
	for _, id := range ids {
		m, _ := c.scene.Markers.Get(id)
		entry, ok := c.catalog.Lookup(id)
		if !ok {
			continue
		}

		v := rpm.Derive(entry.Component.Type, rpm.EntryRPM(c.inputs, entry.GroupID), c.params)
		if m.ManualRPM != nil {
			v = *m.ManualRPM
		}
		views = append(views, MarkerView{
			ComponentID: id,
			GroupID:     entry.GroupID,
			Type:        entry.Component.Type,
			X:           m.X,
			Y:           m.Y,
			ManualRPM:   m.ManualRPM,
			RPM:         rpm.Sanitize(v),
			Display:     rpm.Format(v),
			Moving:      rpm.Sanitize(v) > 0,
		})
	}
	return views
}

// Table returns the derived RPM table.
func (c *Controller) Table() []rpm.Row {
	c.mu.Lock()
	defer c.mu.Unlock()
	return rpm.Table(c.catalog.Groups(), c.inputs, c.params)
}

// Params returns the transmission parameters.
func (c *Controller) Params() models.TransmissionParams {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.params
}

// Subscribe registers for snapshots pushed after every change. The returned
// function unsubscribes. Slow subscribers miss intermediate snapshots.
func (c *Controller) Subscribe() (<-chan Snapshot, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextSub
	c.nextSub++
	ch := make(chan Snapshot, 1)
	c.subs[id] = ch

	return ch, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if _, ok := c.subs[id]; ok {
			delete(c.subs, id)
			close(ch)
		}
	}
}

func (c *Controller) notifyLocked() {
	if len(c.subs) == 0 {
		return
	}
	snap := c.snapshotLocked()
	for _, ch := range c.subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}

// mutate runs fn under the session lock. When fn reports a change, the session
// schedules a save (if persist is set) and notifies subscribers.
func (c *Controller) mutate(persist bool, fn func() (bool, error)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.readOnly {
		return ErrReadOnly
	}
	c.lastAccess = time.Now()

	changed, err := fn()
	if err != nil || !changed {
		return err
	}
	if persist {
		c.saver.Trigger()
	}
	c.notifyLocked()
	return nil
}

// save writes the current document. Failures are logged and not retried.
func (c *Controller) save() {
	c.mu.Lock()
	if c.readOnly || c.store == nil {
		c.mu.Unlock()
		return
	}
	doc := c.documentLocked()
	c.syncing = true
	c.notifyLocked()
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	err := c.store.Upsert(ctx, c.userID, doc)
	cancel()

	c.mu.Lock()
	c.syncing = false
	if err != nil {
		c.log.Warn("failed to save state", "error", err)
	} else {
		c.updatedAt = doc.UpdatedAt
		c.log.Debug("state saved", "markers", len(doc.CustomMarkers))
	}
	c.notifyLocked()
	c.mu.Unlock()
}

// Flush writes a pending change immediately.
func (c *Controller) Flush() bool {
	return c.saver.Flush()
}

// Close flushes pending changes and disconnects subscribers.
func (c *Controller) Close() {
	c.saver.Flush()
	c.saver.Stop()

	c.mu.Lock()
	defer c.mu.Unlock()
	for id, ch := range c.subs {
		delete(c.subs, id)
		close(ch)
	}
}

// SetTab switches the active dashboard tab.
func (c *Controller) SetTab(tab models.Tab) error {
	if !tab.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidTab, tab)
	}
	return c.mutate(true, func() (bool, error) {
		changed := c.tab != tab
		c.tab = tab
		return changed, nil
	})
}

// SetParam sets one transmission parameter from operator text. Text that is not a
// number is coerced to zero.
func (c *Controller) SetParam(key models.ParamKey, raw string) error {
	return c.mutate(true, func() (bool, error) {
		p, ok := c.params.With(key, rpm.ParseInput(raw))
		if !ok {
			return false, fmt.Errorf("%w: %q", ErrUnknownParam, key)
		}
		c.params = p
		return true, nil
	})
}

// SetParams replaces all transmission parameters. Non-finite values become zero.
func (c *Controller) SetParams(p models.TransmissionParams) error {
	p.Rodete = rpm.Sanitize(p.Rodete)
	p.EngrenagemSecador = rpm.Sanitize(p.EngrenagemSecador)
	p.Soprador = rpm.Sanitize(p.Soprador)
	p.CilindroGuia = rpm.Sanitize(p.CilindroGuia)
	return c.mutate(true, func() (bool, error) {
		c.params = p
		return true, nil
	})
}

// SetGroupRPM sets the entry RPM of a group from operator text.
func (c *Controller) SetGroupRPM(groupID, raw string) error {
	v := rpm.ParseInput(raw)
	return c.mutate(true, func() (bool, error) {
		for i := range c.inputs {
			if c.inputs[i].ID == groupID {
				c.inputs[i].InputRPM = v
				return true, nil
			}
		}
		return false, fmt.Errorf("%w: %s", ErrUnknownGroup, groupID)
	})
}

// ResetCalculator restores default parameters and zero entry RPMs.
func (c *Controller) ResetCalculator() error {
	return c.mutate(true, func() (bool, error) {
		c.params = c.catalog.Defaults()
		c.inputs = c.catalog.DefaultInputs()
		return true, nil
	})
}

// ToggleGroup flips the collapsed flag of a calculator group. Not persisted.
func (c *Controller) ToggleGroup(groupID string) (bool, error) {
	var collapsed bool
	err := c.mutate(false, func() (bool, error) {
		if _, ok := c.catalog.Group(groupID); !ok {
			return false, fmt.Errorf("%w: %s", ErrUnknownGroup, groupID)
		}
		c.collapsed[groupID] = !c.collapsed[groupID]
		collapsed = c.collapsed[groupID]
		return true, nil
	})
	return collapsed, err
}
