// Package historization provides the typed keywords a plugin declares and
// historizes. Each keyword renders its wire descriptor and its current value
// in the formatted form the host stores.
package historization

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"

	"github.com/snowmerak/hubplug/lib/datacontainer"
	"github.com/snowmerak/hubplug/lib/protocol"
)

// ErrInvalidCommand is returned when a command body does not parse for a keyword.
var ErrInvalidCommand = errors.New("invalid command")

// Keyword is a named data point of a device. Implementations are not safe for
// concurrent use.
type Keyword interface {
	Name() string
	Historizable() protocol.Historizable
	FormattedValue() string
}

// Commandable is a keyword the host can write to.
type Commandable interface {
	Keyword
	SetCommand(body string) error
}

// Well-known capacities.
var (
	CapacityTemperature  = protocol.Capacity{Name: "temperature", Unit: "degrees", Type: protocol.DataNumeric}
	CapacityHumidity     = protocol.Capacity{Name: "humidity", Unit: "percent", Type: protocol.DataNumeric}
	CapacityPressure     = protocol.Capacity{Name: "pressure", Unit: "hectoPascal", Type: protocol.DataNumeric}
	CapacityBatteryLevel = protocol.Capacity{Name: "batteryLevel", Unit: "percent", Type: protocol.DataNumeric}
	CapacitySignalLevel  = protocol.Capacity{Name: "signalLevel", Unit: "percent", Type: protocol.DataNumeric}
	CapacitySwitch       = protocol.Capacity{Name: "switch", Unit: "", Type: protocol.DataBool}
	CapacityCounter      = protocol.Capacity{Name: "counter", Unit: "", Type: protocol.DataNumeric}
	CapacityText         = protocol.Capacity{Name: "text", Unit: "", Type: protocol.DataString}
)

// IsNil reports whether k is nil or a nil pointer behind the interface.
func IsNil(k Keyword) bool {
	if k == nil {
		return true
	}
	v := reflect.ValueOf(k)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return v.IsNil()
	}
	return false
}

// Value pairs k's descriptor with its current value.
func Value(k Keyword) protocol.HistorizedValue {
	return protocol.HistorizedValue{
		Historizable:   k.Historizable(),
		FormattedValue: k.FormattedValue(),
	}
}

// Values is Value over several keywords.
func Values(keywords ...Keyword) []protocol.HistorizedValue {
	out := make([]protocol.HistorizedValue, 0, len(keywords))
	for _, k := range keywords {
		out = append(out, Value(k))
	}
	return out
}

// Descriptors returns the wire descriptors of keywords.
func Descriptors(keywords ...Keyword) []protocol.Historizable {
	out := make([]protocol.Historizable, 0, len(keywords))
	for _, k := range keywords {
		out = append(out, k.Historizable())
	}
	return out
}

// Numeric is a floating point keyword with an optional range.
type Numeric struct {
	name      string
	capacity  protocol.Capacity
	access    protocol.AccessMode
	measure   protocol.Measure
	precision int
	min, max  *float64
	value     float64
}

// NewNumeric creates a read-only absolute numeric keyword. precision is the
// number of decimals kept in the formatted value; negative keeps all.
func NewNumeric(name string, capacity protocol.Capacity, precision int) *Numeric {
	return &Numeric{
		name:      name,
		capacity:  capacity,
		access:    protocol.AccessGet,
		measure:   protocol.MeasureAbsolute,
		precision: precision,
	}
}

// NewTemperature creates a temperature keyword with one decimal.
func NewTemperature(name string) *Numeric {
	return NewNumeric(name, CapacityTemperature, 1)
}

// NewHumidity creates a humidity keyword bounded to [0, 100].
func NewHumidity(name string) *Numeric {
	return NewNumeric(name, CapacityHumidity, 0).WithRange(0, 100)
}

// NewBatteryLevel creates a battery level keyword bounded to [0, 100].
func NewBatteryLevel(name string) *Numeric {
	return NewNumeric(name, CapacityBatteryLevel, 0).WithRange(0, 100)
}

// WithRange bounds the accepted values.
func (n *Numeric) WithRange(lo, hi float64) *Numeric {
	n.min, n.max = &lo, &hi
	return n
}

// WithAccess changes the access mode.
func (n *Numeric) WithAccess(access protocol.AccessMode) *Numeric {
	n.access = access
	return n
}

// WithMeasure changes the measure kind.
func (n *Numeric) WithMeasure(measure protocol.Measure) *Numeric {
	n.measure = measure
	return n
}

func (n *Numeric) Name() string { return n.name }

// Set stores v, clamped to the range when one is set.
func (n *Numeric) Set(v float64) {
	if n.min != nil {
		v = math.Max(v, *n.min)
	}
	if n.max != nil {
		v = math.Min(v, *n.max)
	}
	n.value = v
}

func (n *Numeric) Get() float64 { return n.value }

func (n *Numeric) FormattedValue() string {
	return strconv.FormatFloat(n.value, 'f', n.precision, 64)
}

func (n *Numeric) SetCommand(body string) error {
	v, err := strconv.ParseFloat(body, 64)
	if err != nil {
		return fmt.Errorf("%w: %s: %q is not a number", ErrInvalidCommand, n.name, body)
	}
	n.Set(v)
	return nil
}

func (n *Numeric) Historizable() protocol.Historizable {
	info := datacontainer.New()
	if n.min != nil {
		info.Set("min", *n.min)
		info.Set("max", *n.max)
	}
	if n.precision >= 0 {
		info.Set("precision", n.precision)
	}
	return descriptor(n.name, n.capacity, n.access, n.measure, info)
}

// Switch is an on/off keyword the host can command.
type Switch struct {
	name  string
	value bool
}

func NewSwitch(name string) *Switch {
	return &Switch{name: name}
}

func (s *Switch) Name() string { return s.name }
func (s *Switch) Set(on bool) { s.value = on }
func (s *Switch) Get() bool { return s.value }

func (s *Switch) FormattedValue() string {
	if s.value {
		return "1"
	}
	return "0"
}

// SetCommand accepts 1/0, true/false and on/off.
func (s *Switch) SetCommand(body string) error {
	switch body {
	case "1", "true", "on":
		s.value = true
	case "0", "false", "off":
		s.value = false
	default:
		return fmt.Errorf("%w: %s: %q is not a switch state", ErrInvalidCommand, s.name, body)
	}
	return nil
}

func (s *Switch) Historizable() protocol.Historizable {
	return descriptor(s.name, CapacitySwitch, protocol.AccessGetSet, protocol.MeasureAbsolute, nil)
}

// Counter is a cumulative integer keyword.
type Counter struct {
	name  string
	value int64
}

func NewCounter(name string) *Counter {
	return &Counter{name: name}
}

func (c *Counter) Name() string { return c.name }
func (c *Counter) Add(delta int64) { c.value += delta }
func (c *Counter) Get() int64 { return c.value }
func (c *Counter) FormattedValue() string {
	return strconv.FormatInt(c.value, 10)
}

func (c *Counter) Historizable() protocol.Historizable {
	return descriptor(c.name, CapacityCounter, protocol.AccessGet, protocol.MeasureCumulative, nil)
}

// Text is a free string keyword.
type Text struct {
	name  string
	value string
}

func NewText(name string) *Text {
	return &Text{name: name}
}

func (t *Text) Name() string { return t.name }
func (t *Text) Set(v string) { t.value = v }
func (t *Text) FormattedValue() string { return t.value }

func (t *Text) Historizable() protocol.Historizable {
	return descriptor(t.name, CapacityText, protocol.AccessGet, protocol.MeasureAbsolute, nil)
}

func descriptor(name string, capacity protocol.Capacity, access protocol.AccessMode, measure protocol.Measure, typeInfo *datacontainer.Container) protocol.Historizable {
	h := protocol.Historizable{
		Name:       name,
		Capacity:   capacity,
		AccessMode: access,
		Type:       capacity.Type,
		Units:      capacity.Unit,
		Measure:    measure,
	}
	if !typeInfo.Empty() {
		h.TypeInfo = typeInfo.Serialize()
	}
	return h
}
