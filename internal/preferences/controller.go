// Package preferences is the participant state controller. It writes
// through to the server store and negotiates capability at call time:
// fields the deployment cannot persist fall back to the device-local
// store, and that dual-mode state is first-class so the UI can show it.
package preferences

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"inbox-service/internal/faults"
	"inbox-service/internal/localstore"
	"inbox-service/internal/models"
)

// Field names one preference on a (thread, user) pair.
type Field string

const (
	FieldLastRead Field = "last_read_at"
	FieldArchived Field = "archived_at"
	FieldMuted    Field = "muted_until"
	FieldPinned   Field = "pinned_at"
)

var allFields = []Field{FieldLastRead, FieldArchived, FieldMuted, FieldPinned}

// ServerStore is the authoritative participant store.
type ServerStore interface {
	Ensure(ctx context.Context, threadID int, userID int) error
	ApplyPatch(ctx context.Context, threadID int, userID int, patch models.ParticipantPatch) error
	Get(ctx context.Context, threadID int, userID int) (models.ParticipantState, error)
}

// Result reports how a preference write landed.
type Result struct {
	// Persisted is true only when every patched field reached the server.
	Persisted bool `json:"persisted"`
	// LocalOnly lists patched fields that landed in the device store.
	LocalOnly []Field `json:"local_only,omitempty"`
}

// Controller coordinates the server store and the local fallback. One
// controller serves one session; capability knowledge is session-scoped
// because support can differ per deployment and errors surface
// per-operation.
type Controller struct {
	server ServerStore
	local  localstore.Store
	now    func() time.Time

	mu          sync.Mutex
	unsupported map[Field]bool
}

// NewController constructs a Controller.
func NewController(server ServerStore, local localstore.Store) *Controller {
	return &Controller{
		server:      server,
		local:       local,
		now:         time.Now,
		unsupported: make(map[Field]bool),
	}
}

// Ensure creates the baseline participant row. A capability-missing
// deployment simply has no baseline to create; that is not an error.
func (c *Controller) Ensure(ctx context.Context, threadID int, userID int) error {
	err := c.server.Ensure(ctx, threadID, userID)
	if faults.IsCapabilityMissing(err) {
		c.markUnsupported(allFields...)
		return nil
	}
	return err
}

// SetPreference applies the patch: server first, device-local for any
// field the server proves unable to persist. Non-capability failures
// surface unchanged; nothing above this boundary ever sees a
// capability-missing error.
func (c *Controller) SetPreference(ctx context.Context, threadID int, userID int, patch models.ParticipantPatch) (Result, error) {
	fields := patchFields(patch)
	if len(fields) == 0 {
		return Result{Persisted: true}, nil
	}

	serverFields := c.supportedOf(fields)
	localFields := diff(fields, serverFields)

	// Attempt the server upsert, shrinking the patch each time the store
	// names a field it cannot hold. Bounded by the field count.
	for len(serverFields) > 0 {
		err := c.server.ApplyPatch(ctx, threadID, userID, selectFields(patch, serverFields))
		if err == nil {
			// The server is authoritative once proven capable.
			c.markSupported(serverFields...)
			break
		}

		var capErr *faults.CapabilityError
		if !errors.As(err, &capErr) {
			return Result{}, err
		}

		missing := fieldsFromCapability(capErr, serverFields)
		c.markUnsupported(missing...)
		localFields = append(localFields, missing...)
		serverFields = diff(serverFields, missing)
	}

	for _, f := range localFields {
		if err := c.writeLocal(threadID, userID, f, fieldValue(patch, f)); err != nil {
			return Result{}, err
		}
	}

	sortFields(localFields)
	return Result{Persisted: len(localFields) == 0, LocalOnly: localFields}, nil
}

// Get returns the union of server state and local-only overrides. Local
// values take precedence only for fields the server is known not to
// support. Expired mutes read as absent regardless of source.
func (c *Controller) Get(ctx context.Context, threadID int, userID int) (models.ParticipantState, error) {
	state, err := c.server.Get(ctx, threadID, userID)
	if err != nil {
		if !faults.IsCapabilityMissing(err) {
			return models.ParticipantState{}, err
		}
		c.markUnsupported(allFields...)
		state = models.ParticipantState{ThreadID: threadID, UserID: userID}
	}

	for _, f := range c.localOnlyFields() {
		val, ok, err := c.readLocal(threadID, userID, f)
		if err != nil {
			return models.ParticipantState{}, err
		}
		if ok {
			setFieldValue(&state, f, val)
		}
	}

	if state.MutedUntil != nil && !state.MutedUntil.After(c.now()) {
		state.MutedUntil = nil
	}
	return state, nil
}

// LocalOnlyFields lists fields currently living only on this device.
func (c *Controller) LocalOnlyFields() []Field {
	fields := c.localOnlyFields()
	sortFields(fields)
	return fields
}

// LocalOnly reports whether any preference is in local-only mode.
func (c *Controller) LocalOnly() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.unsupported) > 0
}

func (c *Controller) localOnlyFields() []Field {
	c.mu.Lock()
	defer c.mu.Unlock()
	fields := make([]Field, 0, len(c.unsupported))
	for f := range c.unsupported {
		fields = append(fields, f)
	}
	return fields
}

func (c *Controller) markUnsupported(fields ...Field) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, f := range fields {
		c.unsupported[f] = true
	}
}

func (c *Controller) markSupported(fields ...Field) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, f := range fields {
		delete(c.unsupported, f)
	}
}

func (c *Controller) supportedOf(fields []Field) []Field {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Field
	for _, f := range fields {
		if !c.unsupported[f] {
			out = append(out, f)
		}
	}
	return out
}

func (c *Controller) localKey(threadID, userID int, f Field) string {
	return fmt.Sprintf("pref/%d/%d/%s", threadID, userID, f)
}

func (c *Controller) writeLocal(threadID, userID int, f Field, val *time.Time) error {
	key := c.localKey(threadID, userID, f)
	if val == nil || val.IsZero() {
		return c.local.Delete(key)
	}
	return c.local.Set(key, val.Format(time.RFC3339Nano))
}

func (c *Controller) readLocal(threadID, userID int, f Field) (*time.Time, bool, error) {
	raw, ok, err := c.local.Get(c.localKey(threadID, userID, f))
	if err != nil || !ok {
		return nil, false, err
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return nil, false, nil
	}
	return &t, true, nil
}

// fieldsFromCapability resolves which of the attempted fields the error
// names. A missing relation (or an unnamed column) takes out the whole
// attempt.
func fieldsFromCapability(capErr *faults.CapabilityError, attempted []Field) []Field {
	if capErr.Column != "" {
		for _, f := range attempted {
			if string(f) == capErr.Column {
				return []Field{f}
			}
		}
	}
	out := make([]Field, len(attempted))
	copy(out, attempted)
	return out
}

func patchFields(patch models.ParticipantPatch) []Field {
	var fields []Field
	if patch.LastReadAt != nil {
		fields = append(fields, FieldLastRead)
	}
	if patch.ArchivedAt != nil {
		fields = append(fields, FieldArchived)
	}
	if patch.MutedUntil != nil {
		fields = append(fields, FieldMuted)
	}
	if patch.PinnedAt != nil {
		fields = append(fields, FieldPinned)
	}
	return fields
}

func selectFields(patch models.ParticipantPatch, fields []Field) models.ParticipantPatch {
	var out models.ParticipantPatch
	for _, f := range fields {
		switch f {
		case FieldLastRead:
			out.LastReadAt = patch.LastReadAt
		case FieldArchived:
			out.ArchivedAt = patch.ArchivedAt
		case FieldMuted:
			out.MutedUntil = patch.MutedUntil
		case FieldPinned:
			out.PinnedAt = patch.PinnedAt
		}
	}
	return out
}

func fieldValue(patch models.ParticipantPatch, f Field) *time.Time {
	switch f {
	case FieldLastRead:
		return patch.LastReadAt
	case FieldArchived:
		return patch.ArchivedAt
	case FieldMuted:
		return patch.MutedUntil
	case FieldPinned:
		return patch.PinnedAt
	}
	return nil
}

func setFieldValue(state *models.ParticipantState, f Field, val *time.Time) {
	switch f {
	case FieldLastRead:
		state.LastReadAt = val
	case FieldArchived:
		state.ArchivedAt = val
	case FieldMuted:
		state.MutedUntil = val
	case FieldPinned:
		state.PinnedAt = val
	}
}

func diff(from, remove []Field) []Field {
	var out []Field
	for _, f := range from {
		found := false
		for _, r := range remove {
			if f == r {
				found = true
				break
			}
		}
		if !found {
			out = append(out, f)
		}
	}
	return out
}

func sortFields(fields []Field) {
	sort.Slice(fields, func(i, j int) bool { return fields[i] < fields[j] })
}
