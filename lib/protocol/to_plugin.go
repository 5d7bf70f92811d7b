package protocol

import (
	"google.golang.org/protobuf/encoding/protowire"
)

var toPluginDecoders = map[protowire.Number]func([]byte) (ToPlugin, error){
	1:  decodeStop,
	2:  decodeInit,
	3:  decodeUpdateConfiguration,
	4:  decodeBindingQuery,
	5:  decodeDeviceCommand,
	6:  decodeExtraCommand,
	7:  decodeManuallyDeviceCreation,
	8:  decodeDeviceExistsAnswer,
	9:  decodeDeviceDetailsAnswer,
	10: decodeKeywordExistsAnswer,
	11: decodeRecipientValueAnswer,
	12: decodeFindRecipientsFromFieldAnswer,
	13: decodeRecipientFieldExistsAnswer,
	14: decodeConfigurationAnswer,
}

// Stop asks the plugin to stop. On the wire it is a system event of type request-stop.
type Stop struct{}

const systemEventRequestStop = 0

func (Stop) Tag() Tag { return TagStop }
func (Stop) isToPlugin() {}
func (Stop) field() protowire.Number { return 1 }
func (Stop) validate() error { return nil }
func (Stop) marshal() []byte { return appendInt32(nil, 1, systemEventRequestStop) }

func decodeStop(b []byte) (ToPlugin, error) {
	var seen presence
	err := forEachField(b, func(f field) error {
		if f.num != 1 {
			return nil
		}
		seen.set(f.num)
		v, err := f.enum()
		if err != nil {
			return err
		}
		if v != systemEventRequestStop {
			return invalidEnum("system event", v)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := seen.require("system", 1); err != nil {
		return nil, err
	}
	return Stop{}, nil
}

// Init is the handshake. It carries the plugin description and the directory
// the plugin may write its data to.
type Init struct {
	Information PluginInformation
	DataPath    string
}

func (Init) Tag() Tag { return TagInit }
func (Init) isToPlugin() {}
func (Init) field() protowire.Number { return 2 }

func (m Init) validate() error {
	if err := m.Information.validate(); err != nil {
		return err
	}
	if m.DataPath == "" {
		return incomplete("init", "dataPath")
	}
	return nil
}

func (m Init) marshal() []byte {
	var b []byte
	b = appendMessage(b, 1, m.Information.marshal())
	b = appendString(b, 2, m.DataPath)
	return b
}

func decodeInit(b []byte) (ToPlugin, error) {
	var m Init
	var seen presence
	err := forEachField(b, func(f field) error {
		var err error
		switch f.num {
		case 1:
			var payload []byte
			if payload, err = f.message(); err == nil {
				m.Information, err = unmarshalPluginInformation(payload)
			}
		case 2:
			m.DataPath, err = f.str()
		}
		seen.set(f.num)
		return err
	})
	if err != nil {
		return nil, err
	}
	if err := seen.require("init", 1, 2); err != nil {
		return nil, err
	}
	return m, nil
}

// UpdateConfiguration carries the new plugin configuration as a serialized data container.
type UpdateConfiguration struct {
	Configuration string
}

func (UpdateConfiguration) Tag() Tag { return TagUpdateConfiguration }
func (UpdateConfiguration) isToPlugin() {}
func (UpdateConfiguration) field() protowire.Number { return 3 }
func (UpdateConfiguration) validate() error { return nil }
func (m UpdateConfiguration) marshal() []byte { return appendString(nil, 1, m.Configuration) }

func decodeUpdateConfiguration(b []byte) (ToPlugin, error) {
	v, err := decodeSingleString(b, "updateConfiguration")
	if err != nil {
		return nil, err
	}
	return UpdateConfiguration{Configuration: v}, nil
}

// BindingQuery asks the plugin for dynamic choices, e.g. to fill a configuration form.
type BindingQuery struct {
	Query string
}

func (BindingQuery) Tag() Tag { return TagBindingQuery }
func (BindingQuery) isToPlugin() {}
func (BindingQuery) field() protowire.Number { return 4 }
func (BindingQuery) validate() error { return nil }
func (m BindingQuery) marshal() []byte { return appendString(nil, 1, m.Query) }

func decodeBindingQuery(b []byte) (ToPlugin, error) {
	v, err := decodeSingleString(b, "bindingQuery")
	if err != nil {
		return nil, err
	}
	return BindingQuery{Query: v}, nil
}

// DeviceCommand sends a command body to one keyword of a device.
type DeviceCommand struct {
	Device  string
	Keyword string
	Body    string
}

func (DeviceCommand) Tag() Tag { return TagDeviceCommand }
func (DeviceCommand) isToPlugin() {}
func (DeviceCommand) field() protowire.Number { return 5 }

func (m DeviceCommand) validate() error {
	if m.Device == "" {
		return incomplete("deviceCommand", "device")
	}
	if m.Keyword == "" {
		return incomplete("deviceCommand", "keyword")
	}
	return nil
}

func (m DeviceCommand) marshal() []byte {
	var b []byte
	b = appendString(b, 1, m.Device)
	b = appendString(b, 2, m.Keyword)
	b = appendString(b, 3, m.Body)
	return b
}

func decodeDeviceCommand(b []byte) (ToPlugin, error) {
	var m DeviceCommand
	var seen presence
	err := forEachField(b, func(f field) error {
		var err error
		switch f.num {
		case 1:
			m.Device, err = f.str()
		case 2:
			m.Keyword, err = f.str()
		case 3:
			m.Body, err = f.str()
		}
		seen.set(f.num)
		return err
	})
	if err != nil {
		return nil, err
	}
	if err := seen.require("deviceCommand", 1, 2, 3); err != nil {
		return nil, err
	}
	return m, nil
}

// ExtraCommand is a plugin-wide command with optional serialized parameters.
type ExtraCommand struct {
	Command string
	Data    string
}

func (ExtraCommand) Tag() Tag { return TagExtraCommand }
func (ExtraCommand) isToPlugin() {}
func (ExtraCommand) field() protowire.Number { return 6 }

func (m ExtraCommand) validate() error {
	if m.Command == "" {
		return incomplete("extraCommand", "command")
	}
	return nil
}

func (m ExtraCommand) marshal() []byte {
	b := appendString(nil, 1, m.Command)
	if m.Data != "" {
		b = appendString(b, 2, m.Data)
	}
	return b
}

func decodeExtraCommand(b []byte) (ToPlugin, error) {
	var m ExtraCommand
	var seen presence
	err := forEachField(b, func(f field) error {
		var err error
		switch f.num {
		case 1:
			m.Command, err = f.str()
		case 2:
			m.Data, err = f.str()
		}
		seen.set(f.num)
		return err
	})
	if err != nil {
		return nil, err
	}
	if err := seen.require("extraCommand", 1); err != nil {
		return nil, err
	}
	return m, nil
}

// ManuallyDeviceCreation asks the plugin to create a device a user configured by hand.
type ManuallyDeviceCreation struct {
	Name          string
	Configuration string
}

func (ManuallyDeviceCreation) Tag() Tag { return TagManuallyDeviceCreation }
func (ManuallyDeviceCreation) isToPlugin() {}
func (ManuallyDeviceCreation) field() protowire.Number { return 7 }

func (m ManuallyDeviceCreation) validate() error {
	if m.Name == "" {
		return incomplete("manuallyDeviceCreation", "name")
	}
	return nil
}

func (m ManuallyDeviceCreation) marshal() []byte {
	var b []byte
	b = appendString(b, 1, m.Name)
	b = appendString(b, 2, m.Configuration)
	return b
}

func decodeManuallyDeviceCreation(b []byte) (ToPlugin, error) {
	var m ManuallyDeviceCreation
	var seen presence
	err := forEachField(b, func(f field) error {
		var err error
		switch f.num {
		case 1:
			m.Name, err = f.str()
		case 2:
			m.Configuration, err = f.str()
		}
		seen.set(f.num)
		return err
	})
	if err != nil {
		return nil, err
	}
	if err := seen.require("manuallyDeviceCreation", 1, 2); err != nil {
		return nil, err
	}
	return m, nil
}

// DeviceExistsAnswer answers DeviceExists.
type DeviceExistsAnswer struct {
	Exists bool
}

func (DeviceExistsAnswer) Tag() Tag { return TagDeviceExistsAnswer }
func (DeviceExistsAnswer) Answers() Tag { return TagDeviceExists }
func (DeviceExistsAnswer) isToPlugin() {}
func (DeviceExistsAnswer) field() protowire.Number { return 8 }
func (DeviceExistsAnswer) validate() error { return nil }
func (m DeviceExistsAnswer) marshal() []byte { return appendBool(nil, 1, m.Exists) }

func decodeDeviceExistsAnswer(b []byte) (ToPlugin, error) {
	v, err := decodeSingleBool(b, "deviceExistsAnswer")
	if err != nil {
		return nil, err
	}
	return DeviceExistsAnswer{Exists: v}, nil
}

// DeviceDetailsAnswer answers DeviceDetails with a serialized data container.
type DeviceDetailsAnswer struct {
	Details string
}

func (DeviceDetailsAnswer) Tag() Tag { return TagDeviceDetailsAnswer }
func (DeviceDetailsAnswer) Answers() Tag { return TagDeviceDetails }
func (DeviceDetailsAnswer) isToPlugin() {}
func (DeviceDetailsAnswer) field() protowire.Number { return 9 }
func (DeviceDetailsAnswer) validate() error { return nil }
func (m DeviceDetailsAnswer) marshal() []byte { return appendString(nil, 1, m.Details) }

func decodeDeviceDetailsAnswer(b []byte) (ToPlugin, error) {
	v, err := decodeSingleString(b, "deviceDetailsAnswer")
	if err != nil {
		return nil, err
	}
	return DeviceDetailsAnswer{Details: v}, nil
}

// KeywordExistsAnswer answers KeywordExists.
type KeywordExistsAnswer struct {
	Exists bool
}

func (KeywordExistsAnswer) Tag() Tag { return TagKeywordExistsAnswer }
func (KeywordExistsAnswer) Answers() Tag { return TagKeywordExists }
func (KeywordExistsAnswer) isToPlugin() {}
func (KeywordExistsAnswer) field() protowire.Number { return 10 }
func (KeywordExistsAnswer) validate() error { return nil }
func (m KeywordExistsAnswer) marshal() []byte { return appendBool(nil, 1, m.Exists) }

func decodeKeywordExistsAnswer(b []byte) (ToPlugin, error) {
	v, err := decodeSingleBool(b, "keywordExistsAnswer")
	if err != nil {
		return nil, err
	}
	return KeywordExistsAnswer{Exists: v}, nil
}

// RecipientValueAnswer answers RecipientValueRequest.
type RecipientValueAnswer struct {
	Value string
}

func (RecipientValueAnswer) Tag() Tag { return TagRecipientValueAnswer }
func (RecipientValueAnswer) Answers() Tag { return TagRecipientValueRequest }
func (RecipientValueAnswer) isToPlugin() {}
func (RecipientValueAnswer) field() protowire.Number { return 11 }
func (RecipientValueAnswer) validate() error { return nil }
func (m RecipientValueAnswer) marshal() []byte { return appendString(nil, 1, m.Value) }

func decodeRecipientValueAnswer(b []byte) (ToPlugin, error) {
	v, err := decodeSingleString(b, "recipientValueAnswer")
	if err != nil {
		return nil, err
	}
	return RecipientValueAnswer{Value: v}, nil
}

// FindRecipientsFromFieldAnswer answers FindRecipientsFromField.
type FindRecipientsFromFieldAnswer struct {
	RecipientIDs []int32
}

func (FindRecipientsFromFieldAnswer) Tag() Tag { return TagFindRecipientsFromFieldAnswer }
func (FindRecipientsFromFieldAnswer) Answers() Tag { return TagFindRecipientsFromField }
func (FindRecipientsFromFieldAnswer) isToPlugin() {}
func (FindRecipientsFromFieldAnswer) field() protowire.Number { return 12 }
func (FindRecipientsFromFieldAnswer) validate() error { return nil }

func (m FindRecipientsFromFieldAnswer) marshal() []byte {
	if len(m.RecipientIDs) == 0 {
		return nil
	}
	var packed []byte
	for _, id := range m.RecipientIDs {
		packed = protowire.AppendVarint(packed, uint64(int64(id)))
	}
	return appendMessage(nil, 1, packed)
}

func decodeFindRecipientsFromFieldAnswer(b []byte) (ToPlugin, error) {
	var m FindRecipientsFromFieldAnswer
	err := forEachField(b, func(f field) error {
		if f.num != 1 {
			return nil
		}
		// both packed and unpacked encodings are accepted
		if f.typ == protowire.VarintType {
			id, err := f.int32()
			if err != nil {
				return err
			}
			m.RecipientIDs = append(m.RecipientIDs, id)
			return nil
		}
		packed := f.bytes
		for len(packed) > 0 {
			v, n := protowire.ConsumeVarint(packed)
			if n < 0 {
				return malformed("recipient ids: %v", protowire.ParseError(n))
			}
			id, err := field{num: f.num, typ: protowire.VarintType, varint: v}.int32()
			if err != nil {
				return err
			}
			m.RecipientIDs = append(m.RecipientIDs, id)
			packed = packed[n:]
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// RecipientFieldExistsAnswer answers RecipientFieldExists.
type RecipientFieldExistsAnswer struct {
	Exists bool
}

func (RecipientFieldExistsAnswer) Tag() Tag { return TagRecipientFieldExistsAnswer }
func (RecipientFieldExistsAnswer) Answers() Tag { return TagRecipientFieldExists }
func (RecipientFieldExistsAnswer) isToPlugin() {}
func (RecipientFieldExistsAnswer) field() protowire.Number { return 13 }
func (RecipientFieldExistsAnswer) validate() error { return nil }
func (m RecipientFieldExistsAnswer) marshal() []byte { return appendBool(nil, 1, m.Exists) }

func decodeRecipientFieldExistsAnswer(b []byte) (ToPlugin, error) {
	v, err := decodeSingleBool(b, "recipientFieldExistsAnswer")
	if err != nil {
		return nil, err
	}
	return RecipientFieldExistsAnswer{Exists: v}, nil
}

// ConfigurationAnswer answers ConfigurationRequest with a serialized data container.
type ConfigurationAnswer struct {
	Configuration string
}

func (ConfigurationAnswer) Tag() Tag { return TagConfigurationAnswer }
func (ConfigurationAnswer) Answers() Tag { return TagConfigurationRequest }
func (ConfigurationAnswer) isToPlugin() {}
func (ConfigurationAnswer) field() protowire.Number { return 14 }
func (ConfigurationAnswer) validate() error { return nil }
func (m ConfigurationAnswer) marshal() []byte { return appendString(nil, 1, m.Configuration) }

func decodeConfigurationAnswer(b []byte) (ToPlugin, error) {
	v, err := decodeSingleString(b, "configurationAnswer")
	if err != nil {
		return nil, err
	}
	return ConfigurationAnswer{Configuration: v}, nil
}
