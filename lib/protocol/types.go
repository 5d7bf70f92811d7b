package protocol

import (
	"fmt"
)

// ReleaseType is the maturity of a plugin release.
type ReleaseType int32

const (
	ReleaseStable ReleaseType = iota
	ReleaseCandidate
	ReleaseBeta
)

func (r ReleaseType) Valid() bool { return r >= ReleaseStable && r <= ReleaseBeta }

func (r ReleaseType) String() string {
	switch r {
	case ReleaseStable:
		return "stable"
	case ReleaseCandidate:
		return "releaseCandidate"
	case ReleaseBeta:
		return "beta"
	}
	return fmt.Sprintf("ReleaseType(%d)", int32(r))
}

// PluginState is the state a plugin reports to the host.
type PluginState int32

const (
	StateUnknown PluginState = iota
	StateError
	StateStopped
	StateRunning
	StateCustom
)

func (s PluginState) Valid() bool { return s >= StateUnknown && s <= StateCustom }

func (s PluginState) String() string {
	switch s {
	case StateUnknown:
		return "unknown"
	case StateError:
		return "error"
	case StateStopped:
		return "stopped"
	case StateRunning:
		return "running"
	case StateCustom:
		return "custom"
	}
	return fmt.Sprintf("PluginState(%d)", int32(s))
}

// AccessMode tells whether a keyword can be read and written.
type AccessMode int32

const (
	AccessNoAccess AccessMode = iota
	AccessGet
	AccessGetSet
)

func (a AccessMode) Valid() bool { return a >= AccessNoAccess && a <= AccessGetSet }

func (a AccessMode) String() string {
	switch a {
	case AccessNoAccess:
		return "noAccess"
	case AccessGet:
		return "get"
	case AccessGetSet:
		return "getSet"
	}
	return fmt.Sprintf("AccessMode(%d)", int32(a))
}

// ParseAccessMode is the inverse of AccessMode.String.
func ParseAccessMode(s string) (AccessMode, error) {
	for a := AccessNoAccess; a <= AccessGetSet; a++ {
		if a.String() == s {
			return a, nil
		}
	}
	return 0, fmt.Errorf("%w: access mode %q", ErrInvalidEnumValue, s)
}

// DataType is the value type carried by a keyword or a capacity.
type DataType int32

const (
	DataNoData DataType = iota
	DataString
	DataNumeric
	DataBool
	DataJSON
	DataEnum
	DataDateTime
)

func (d DataType) Valid() bool { return d >= DataNoData && d <= DataDateTime }

func (d DataType) String() string {
	switch d {
	case DataNoData:
		return "noData"
	case DataString:
		return "string"
	case DataNumeric:
		return "numeric"
	case DataBool:
		return "bool"
	case DataJSON:
		return "json"
	case DataEnum:
		return "enum"
	case DataDateTime:
		return "dateTime"
	}
	return fmt.Sprintf("DataType(%d)", int32(d))
}

// ParseDataType is the inverse of DataType.String.
func ParseDataType(s string) (DataType, error) {
	for d := DataNoData; d <= DataDateTime; d++ {
		if d.String() == s {
			return d, nil
		}
	}
	return 0, fmt.Errorf("%w: data type %q", ErrInvalidEnumValue, s)
}

// Measure is how successive values of a keyword relate to each other.
type Measure int32

const (
	MeasureAbsolute Measure = iota
	MeasureIncrement
	MeasureCumulative
)

func (m Measure) Valid() bool { return m >= MeasureAbsolute && m <= MeasureCumulative }

func (m Measure) String() string {
	switch m {
	case MeasureAbsolute:
		return "absolute"
	case MeasureIncrement:
		return "increment"
	case MeasureCumulative:
		return "cumulative"
	}
	return fmt.Sprintf("Measure(%d)", int32(m))
}

// ParseMeasure is the inverse of Measure.String.
func ParseMeasure(s string) (Measure, error) {
	for m := MeasureAbsolute; m <= MeasureCumulative; m++ {
		if m.String() == s {
			return m, nil
		}
	}
	return 0, fmt.Errorf("%w: measure %q", ErrInvalidEnumValue, s)
}

// PluginInformation describes the plugin package. The host sends it with Init.
type PluginInformation struct {
	Type        string
	Version     string
	ReleaseType ReleaseType
	Author      string
	URL         string
	Identity    string
	PackageJSON string
	Path        string

	SupportManuallyDeviceCreation    bool
	SupportDeviceRemovedNotification bool
}

func (p *PluginInformation) validate() error {
	if p.Type == "" {
		return incomplete("pluginInformation", "type")
	}
	if p.Version == "" {
		return incomplete("pluginInformation", "version")
	}
	if !p.ReleaseType.Valid() {
		return fmt.Errorf("%w: %w: release type %d", ErrSerialization, ErrInvalidEnumValue, int32(p.ReleaseType))
	}
	return nil
}

func (p *PluginInformation) marshal() []byte {
	var b []byte
	b = appendString(b, 1, p.Type)
	b = appendString(b, 2, p.Version)
	b = appendInt32(b, 3, int32(p.ReleaseType))
	b = appendString(b, 4, p.Author)
	b = appendString(b, 5, p.URL)
	b = appendString(b, 6, p.Identity)
	b = appendString(b, 7, p.PackageJSON)
	b = appendString(b, 8, p.Path)
	b = appendBool(b, 9, p.SupportManuallyDeviceCreation)
	b = appendBool(b, 10, p.SupportDeviceRemovedNotification)
	return b
}

func unmarshalPluginInformation(b []byte) (PluginInformation, error) {
	var p PluginInformation
	var seen presence
	err := forEachField(b, func(f field) error {
		var err error
		switch f.num {
		case 1:
			p.Type, err = f.str()
		case 2:
			p.Version, err = f.str()
		case 3:
			var v int32
			if v, err = f.enum(); err == nil {
				p.ReleaseType = ReleaseType(v)
				if !p.ReleaseType.Valid() {
					err = invalidEnum("release type", v)
				}
			}
		case 4:
			p.Author, err = f.str()
		case 5:
			p.URL, err = f.str()
		case 6:
			p.Identity, err = f.str()
		case 7:
			p.PackageJSON, err = f.str()
		case 8:
			p.Path, err = f.str()
		case 9:
			p.SupportManuallyDeviceCreation, err = f.boolean()
		case 10:
			p.SupportDeviceRemovedNotification, err = f.boolean()
		}
		seen.set(f.num)
		return err
	})
	if err != nil {
		return p, err
	}
	return p, seen.require("pluginInformation", 1, 2, 3)
}

// Capacity is the physical quantity a keyword measures.
type Capacity struct {
	Name string
	Unit string
	Type DataType
}

// Historizable is the wire descriptor of a keyword.
type Historizable struct {
	Name       string
	Capacity   Capacity
	AccessMode AccessMode
	Type       DataType
	Units      string
	// TypeInfo is a serialized data container describing the value domain
	// (ranges, enum values, ...). Empty when the type needs none.
	TypeInfo string
	Measure  Measure
}

func (h *Historizable) validate() error {
	if h.Name == "" {
		return incomplete("historizable", "name")
	}
	if h.Capacity.Name == "" {
		return incomplete("historizable", "capacity.name")
	}
	switch {
	case !h.Capacity.Type.Valid():
		return fmt.Errorf("%w: %w: capacity type %d", ErrSerialization, ErrInvalidEnumValue, int32(h.Capacity.Type))
	case !h.AccessMode.Valid():
		return fmt.Errorf("%w: %w: access mode %d", ErrSerialization, ErrInvalidEnumValue, int32(h.AccessMode))
	case !h.Type.Valid():
		return fmt.Errorf("%w: %w: data type %d", ErrSerialization, ErrInvalidEnumValue, int32(h.Type))
	case !h.Measure.Valid():
		return fmt.Errorf("%w: %w: measure %d", ErrSerialization, ErrInvalidEnumValue, int32(h.Measure))
	}
	return nil
}

// marshal writes the access mode, data types and measure by name so the
// descriptor reads the same for hosts that store keywords as text.
func (h *Historizable) marshal() []byte {
	var capacity []byte
	capacity = appendString(capacity, 1, h.Capacity.Name)
	capacity = appendString(capacity, 2, h.Capacity.Unit)
	capacity = appendString(capacity, 3, h.Capacity.Type.String())

	var b []byte
	b = appendString(b, 1, h.Name)
	b = appendMessage(b, 2, capacity)
	b = appendString(b, 3, h.AccessMode.String())
	b = appendString(b, 4, h.Type.String())
	b = appendString(b, 5, h.Units)
	b = appendString(b, 6, h.TypeInfo)
	b = appendString(b, 7, h.Measure.String())
	return b
}

func unmarshalCapacity(b []byte) (Capacity, error) {
	var c Capacity
	var seen presence
	err := forEachField(b, func(f field) error {
		var err error
		switch f.num {
		case 1:
			c.Name, err = f.str()
		case 2:
			c.Unit, err = f.str()
		case 3:
			var v string
			if v, err = f.str(); err == nil {
				c.Type, err = parseEnum(ParseDataType, v)
			}
		}
		seen.set(f.num)
		return err
	})
	if err != nil {
		return c, err
	}
	return c, seen.require("capacity", 1, 2, 3)
}

func unmarshalHistorizable(b []byte) (Historizable, error) {
	var h Historizable
	var seen presence
	err := forEachField(b, func(f field) error {
		var err error
		var v string
		switch f.num {
		case 1:
			h.Name, err = f.str()
		case 2:
			var m []byte
			if m, err = f.message(); err == nil {
				h.Capacity, err = unmarshalCapacity(m)
			}
		case 3:
			if v, err = f.str(); err == nil {
				h.AccessMode, err = parseEnum(ParseAccessMode, v)
			}
		case 4:
			if v, err = f.str(); err == nil {
				h.Type, err = parseEnum(ParseDataType, v)
			}
		case 5:
			h.Units, err = f.str()
		case 6:
			h.TypeInfo, err = f.str()
		case 7:
			if v, err = f.str(); err == nil {
				h.Measure, err = parseEnum(ParseMeasure, v)
			}
		}
		seen.set(f.num)
		return err
	})
	if err != nil {
		return h, err
	}
	return h, seen.require("historizable", 1, 2, 3, 4, 7)
}

// HistorizedValue pairs a keyword descriptor with the value to record.
type HistorizedValue struct {
	Historizable   Historizable
	FormattedValue string
}

func (v *HistorizedValue) marshal() []byte {
	var b []byte
	b = appendMessage(b, 1, v.Historizable.marshal())
	b = appendString(b, 2, v.FormattedValue)
	return b
}

func unmarshalHistorizedValue(b []byte) (HistorizedValue, error) {
	var v HistorizedValue
	var seen presence
	err := forEachField(b, func(f field) error {
		var err error
		switch f.num {
		case 1:
			var m []byte
			if m, err = f.message(); err == nil {
				v.Historizable, err = unmarshalHistorizable(m)
			}
		case 2:
			v.FormattedValue, err = f.str()
		}
		seen.set(f.num)
		return err
	})
	if err != nil {
		return v, err
	}
	return v, seen.require("historizedValue", 1, 2)
}
