package host

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/snowmerak/hubplug/lib/datacontainer"
	"github.com/snowmerak/hubplug/lib/protocol"
)

// Record is one historized keyword value.
type Record struct {
	Plugin  string
	Device  string
	Keyword string
	Value   string
	At      time.Time
}

// StateReport is the last state a plugin reported.
type StateReport struct {
	State     protocol.PluginState
	MessageID string
	Data      *datacontainer.Container
}

type memoryDevice struct {
	model    string
	details  *datacontainer.Container
	keywords map[string]protocol.Historizable
}

// MemoryBackend keeps everything in maps. It backs tests and hosts that do
// not need persistence.
type MemoryBackend struct {
	mu sync.RWMutex

	devices        map[string]map[string]*memoryDevice
	history        []Record
	states         map[string]StateReport
	configurations map[string]*datacontainer.Container
	recipients     map[int32]map[string]string
}

// NewMemoryBackend returns an empty MemoryBackend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		devices:        make(map[string]map[string]*memoryDevice),
		states:         make(map[string]StateReport),
		configurations: make(map[string]*datacontainer.Container),
		recipients:     make(map[int32]map[string]string),
	}
}

// SetConfiguration stores the configuration returned to plugin.
func (b *MemoryBackend) SetConfiguration(plugin string, configuration *datacontainer.Container) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.configurations[plugin] = configuration.Clone()
}

// AddRecipient stores a recipient with its fields.
func (b *MemoryBackend) AddRecipient(id int32, fields map[string]string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.recipients[id] = maps.Clone(fields)
}

// History returns the values recorded for device and keyword, oldest first.
func (b *MemoryBackend) History(plugin, device, keyword string) []Record {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []Record
	for _, r := range b.history {
		if r.Plugin == plugin && r.Device == device && r.Keyword == keyword {
			out = append(out, r)
		}
	}
	return out
}

// State returns the last state reported by plugin.
func (b *MemoryBackend) State(plugin string) (StateReport, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	s, ok := b.states[plugin]
	return s, ok
}

// Keywords returns the keywords declared on device, sorted by name.
func (b *MemoryBackend) Keywords(plugin, device string) []protocol.Historizable {
	b.mu.RLock()
	defer b.mu.RUnlock()

	d, ok := b.device(plugin, device)
	if !ok {
		return nil
	}
	out := make([]protocol.Historizable, 0, len(d.keywords))
	for _, k := range d.keywords {
		out = append(out, k)
	}
	slices.SortFunc(out, func(x, y protocol.Historizable) int {
		return cmp.Compare(x.Name, y.Name)
	})
	return out
}

func (b *MemoryBackend) device(plugin, device string) (*memoryDevice, bool) {
	d, ok := b.devices[plugin][device]
	return d, ok
}

func (b *MemoryBackend) SetPluginState(_ context.Context, plugin string, state protocol.PluginState, messageID string, data *datacontainer.Container) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.states[plugin] = StateReport{State: state, MessageID: messageID, Data: data}
	return nil
}

// DeclareDevice creates device or, if it exists, replaces its model and
// details and adds the keywords.
func (b *MemoryBackend) DeclareDevice(_ context.Context, plugin, device, model string, keywords []protocol.Historizable, details *datacontainer.Container) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.devices[plugin] == nil {
		b.devices[plugin] = make(map[string]*memoryDevice)
	}
	d, ok := b.devices[plugin][device]
	if !ok {
		d = &memoryDevice{keywords: make(map[string]protocol.Historizable)}
		b.devices[plugin][device] = d
	}
	d.model = model
	d.details = details.Clone()
	for _, k := range keywords {
		d.keywords[k.Name] = k
	}
	return nil
}

func (b *MemoryBackend) DeclareKeyword(_ context.Context, plugin, device string, keyword protocol.Historizable, _ *datacontainer.Container) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	d, ok := b.device(plugin, device)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownDevice, device)
	}
	d.keywords[keyword.Name] = keyword
	return nil
}

func (b *MemoryBackend) DeviceExists(_ context.Context, plugin, device string) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.device(plugin, device)
	return ok, nil
}

func (b *MemoryBackend) DeviceDetails(_ context.Context, plugin, device string) (*datacontainer.Container, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	d, ok := b.device(plugin, device)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDevice, device)
	}
	return d.details.Clone(), nil
}

func (b *MemoryBackend) KeywordExists(_ context.Context, plugin, device, keyword string) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	d, ok := b.device(plugin, device)
	if !ok {
		return false, nil
	}
	_, ok = d.keywords[keyword]
	return ok, nil
}

// Historize appends values. Every keyword must have been declared.
func (b *MemoryBackend) Historize(_ context.Context, plugin, device string, values []protocol.HistorizedValue) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	d, ok := b.device(plugin, device)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownDevice, device)
	}
	for _, v := range values {
		if _, ok := d.keywords[v.Historizable.Name]; !ok {
			return fmt.Errorf("%w: %s.%s", ErrUnknownKeyword, device, v.Historizable.Name)
		}
	}

	now := time.Now()
	for _, v := range values {
		b.history = append(b.history, Record{
			Plugin:  plugin,
			Device:  device,
			Keyword: v.Historizable.Name,
			Value:   v.FormattedValue,
			At:      now,
		})
	}
	return nil
}

func (b *MemoryBackend) RecipientValue(_ context.Context, recipientID int32, field string) (string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	fields, ok := b.recipients[recipientID]
	if !ok {
		return "", fmt.Errorf("%w: %d", ErrUnknownRecipient, recipientID)
	}
	value, ok := fields[field]
	if !ok {
		return "", fmt.Errorf("%w: %d has no field %s", ErrUnknownRecipient, recipientID, field)
	}
	return value, nil
}

func (b *MemoryBackend) FindRecipientsFromField(_ context.Context, field, expected string) ([]int32, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var ids []int32
	for id, fields := range b.recipients {
		if v, ok := fields[field]; ok && v == expected {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids, nil
}

func (b *MemoryBackend) RecipientFieldExists(_ context.Context, field string) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, fields := range b.recipients {
		if _, ok := fields[field]; ok {
			return true, nil
		}
	}
	return false, nil
}

// Configuration returns the stored configuration, or an empty one.
func (b *MemoryBackend) Configuration(_ context.Context, plugin string) (*datacontainer.Container, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if c, ok := b.configurations[plugin]; ok {
		return c.Clone(), nil
	}
	return datacontainer.New(), nil
}

var _ Backend = (*MemoryBackend)(nil)
