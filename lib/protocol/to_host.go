package protocol

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

var toHostDecoders = map[protowire.Number]func([]byte) (ToHost, error){
	1:  decodeSetPluginState,
	2:  decodeDeviceExists,
	3:  decodeDeviceDetails,
	4:  decodeDeclareDevice,
	5:  decodeDeclareKeyword,
	6:  decodeKeywordExists,
	7:  decodeRecipientValueRequest,
	8:  decodeFindRecipientsFromField,
	9:  decodeRecipientFieldExists,
	10: decodeHistorizeData,
	11: decodeConfigurationRequest,
	12: decodeBindingQueryAnswer,
	13: decodeManuallyDeviceCreationAnswer,
}

// SetPluginState reports the plugin state. CustomMessageID names a
// translatable message and CustomMessageData is a serialized data container
// with its parameters.
type SetPluginState struct {
	State             PluginState
	CustomMessageID   string
	CustomMessageData string
}

func (SetPluginState) Tag() Tag { return TagPluginState }
func (SetPluginState) isToHost() {}
func (SetPluginState) field() protowire.Number { return 1 }

func (m SetPluginState) validate() error {
	if !m.State.Valid() {
		return fmt.Errorf("%w: %w: plugin state %d", ErrSerialization, ErrInvalidEnumValue, int32(m.State))
	}
	return nil
}

func (m SetPluginState) marshal() []byte {
	b := appendInt32(nil, 1, int32(m.State))
	if m.CustomMessageID != "" {
		b = appendString(b, 2, m.CustomMessageID)
	}
	if m.CustomMessageData != "" {
		b = appendString(b, 3, m.CustomMessageData)
	}
	return b
}

func decodeSetPluginState(b []byte) (ToHost, error) {
	var m SetPluginState
	var seen presence
	err := forEachField(b, func(f field) error {
		var err error
		switch f.num {
		case 1:
			var v int32
			if v, err = f.enum(); err == nil {
				m.State = PluginState(v)
				if !m.State.Valid() {
					err = invalidEnum("plugin state", v)
				}
			}
		case 2:
			m.CustomMessageID, err = f.str()
		case 3:
			m.CustomMessageData, err = f.str()
		}
		seen.set(f.num)
		return err
	})
	if err != nil {
		return nil, err
	}
	if err := seen.require("pluginState", 1); err != nil {
		return nil, err
	}
	return m, nil
}

// DeviceExists asks whether the host knows a device.
type DeviceExists struct {
	Device string
}

func (DeviceExists) Tag() Tag { return TagDeviceExists }
func (DeviceExists) isToHost() {}
func (DeviceExists) field() protowire.Number { return 2 }
func (m DeviceExists) marshal() []byte { return appendString(nil, 1, m.Device) }

func (m DeviceExists) validate() error {
	if m.Device == "" {
		return incomplete("deviceExists", "device")
	}
	return nil
}

func decodeDeviceExists(b []byte) (ToHost, error) {
	v, err := decodeSingleString(b, "deviceExists")
	if err != nil {
		return nil, err
	}
	return DeviceExists{Device: v}, nil
}

// DeviceDetails asks for the details the plugin stored with a device.
type DeviceDetails struct {
	Device string
}

func (DeviceDetails) Tag() Tag { return TagDeviceDetails }
func (DeviceDetails) isToHost() {}
func (DeviceDetails) field() protowire.Number { return 3 }
func (m DeviceDetails) marshal() []byte { return appendString(nil, 1, m.Device) }

func (m DeviceDetails) validate() error {
	if m.Device == "" {
		return incomplete("deviceDetails", "device")
	}
	return nil
}

func decodeDeviceDetails(b []byte) (ToHost, error) {
	v, err := decodeSingleString(b, "deviceDetails")
	if err != nil {
		return nil, err
	}
	return DeviceDetails{Device: v}, nil
}

// DeclareDevice creates a device with its keywords. Details is a serialized
// data container and is only put on the wire when set.
type DeclareDevice struct {
	Device   string
	Model    string
	Keywords []Historizable
	Details  string
}

func (DeclareDevice) Tag() Tag { return TagDeclareDevice }
func (DeclareDevice) isToHost() {}
func (DeclareDevice) field() protowire.Number { return 4 }

func (m DeclareDevice) validate() error {
	if m.Device == "" {
		return incomplete("declareDevice", "device")
	}
	if m.Model == "" {
		return incomplete("declareDevice", "model")
	}
	for i := range m.Keywords {
		if err := m.Keywords[i].validate(); err != nil {
			return fmt.Errorf("keyword %d: %w", i, err)
		}
	}
	return nil
}

func (m DeclareDevice) marshal() []byte {
	var b []byte
	b = appendString(b, 1, m.Device)
	b = appendString(b, 2, m.Model)
	for i := range m.Keywords {
		b = appendMessage(b, 3, m.Keywords[i].marshal())
	}
	if m.Details != "" {
		b = appendString(b, 4, m.Details)
	}
	return b
}

func decodeDeclareDevice(b []byte) (ToHost, error) {
	var m DeclareDevice
	var seen presence
	err := forEachField(b, func(f field) error {
		var err error
		switch f.num {
		case 1:
			m.Device, err = f.str()
		case 2:
			m.Model, err = f.str()
		case 3:
			var payload []byte
			if payload, err = f.message(); err == nil {
				var h Historizable
				if h, err = unmarshalHistorizable(payload); err == nil {
					m.Keywords = append(m.Keywords, h)
				}
			}
		case 4:
			m.Details, err = f.str()
		}
		seen.set(f.num)
		return err
	})
	if err != nil {
		return nil, err
	}
	if err := seen.require("declareDevice", 1, 2); err != nil {
		return nil, err
	}
	return m, nil
}

// DeclareKeyword adds a keyword to an existing device.
type DeclareKeyword struct {
	Device  string
	Keyword Historizable
	Details string
}

func (DeclareKeyword) Tag() Tag { return TagDeclareKeyword }
func (DeclareKeyword) isToHost() {}
func (DeclareKeyword) field() protowire.Number { return 5 }

func (m DeclareKeyword) validate() error {
	if m.Device == "" {
		return incomplete("declareKeyword", "device")
	}
	return m.Keyword.validate()
}

func (m DeclareKeyword) marshal() []byte {
	var b []byte
	b = appendString(b, 1, m.Device)
	b = appendMessage(b, 2, m.Keyword.marshal())
	if m.Details != "" {
		b = appendString(b, 3, m.Details)
	}
	return b
}

func decodeDeclareKeyword(b []byte) (ToHost, error) {
	var m DeclareKeyword
	var seen presence
	err := forEachField(b, func(f field) error {
		var err error
		switch f.num {
		case 1:
			m.Device, err = f.str()
		case 2:
			var payload []byte
			if payload, err = f.message(); err == nil {
				m.Keyword, err = unmarshalHistorizable(payload)
			}
		case 3:
			m.Details, err = f.str()
		}
		seen.set(f.num)
		return err
	})
	if err != nil {
		return nil, err
	}
	if err := seen.require("declareKeyword", 1, 2); err != nil {
		return nil, err
	}
	return m, nil
}

// KeywordExists asks whether a device has a keyword.
type KeywordExists struct {
	Device  string
	Keyword string
}

func (KeywordExists) Tag() Tag { return TagKeywordExists }
func (KeywordExists) isToHost() {}
func (KeywordExists) field() protowire.Number { return 6 }

func (m KeywordExists) validate() error {
	if m.Device == "" {
		return incomplete("keywordExists", "device")
	}
	if m.Keyword == "" {
		return incomplete("keywordExists", "keyword")
	}
	return nil
}

func (m KeywordExists) marshal() []byte {
	var b []byte
	b = appendString(b, 1, m.Device)
	b = appendString(b, 2, m.Keyword)
	return b
}

func decodeKeywordExists(b []byte) (ToHost, error) {
	var m KeywordExists
	var seen presence
	err := forEachField(b, func(f field) error {
		var err error
		switch f.num {
		case 1:
			m.Device, err = f.str()
		case 2:
			m.Keyword, err = f.str()
		}
		seen.set(f.num)
		return err
	})
	if err != nil {
		return nil, err
	}
	if err := seen.require("keywordExists", 1, 2); err != nil {
		return nil, err
	}
	return m, nil
}

// RecipientValueRequest asks for one field of a recipient (a user contact).
type RecipientValueRequest struct {
	RecipientID int32
	FieldName   string
}

func (RecipientValueRequest) Tag() Tag { return TagRecipientValueRequest }
func (RecipientValueRequest) isToHost() {}
func (RecipientValueRequest) field() protowire.Number { return 7 }

func (m RecipientValueRequest) validate() error {
	if m.FieldName == "" {
		return incomplete("recipientValueRequest", "fieldName")
	}
	return nil
}

func (m RecipientValueRequest) marshal() []byte {
	var b []byte
	b = appendInt32(b, 1, m.RecipientID)
	b = appendString(b, 2, m.FieldName)
	return b
}

func decodeRecipientValueRequest(b []byte) (ToHost, error) {
	var m RecipientValueRequest
	var seen presence
	err := forEachField(b, func(f field) error {
		var err error
		switch f.num {
		case 1:
			m.RecipientID, err = f.int32()
		case 2:
			m.FieldName, err = f.str()
		}
		seen.set(f.num)
		return err
	})
	if err != nil {
		return nil, err
	}
	if err := seen.require("recipientValueRequest", 1, 2); err != nil {
		return nil, err
	}
	return m, nil
}

// FindRecipientsFromField asks for the recipients whose field holds a value.
type FindRecipientsFromField struct {
	FieldName          string
	ExpectedFieldValue string
}

func (FindRecipientsFromField) Tag() Tag { return TagFindRecipientsFromField }
func (FindRecipientsFromField) isToHost() {}
func (FindRecipientsFromField) field() protowire.Number { return 8 }

func (m FindRecipientsFromField) validate() error {
	if m.FieldName == "" {
		return incomplete("findRecipientsFromField", "fieldName")
	}
	return nil
}

func (m FindRecipientsFromField) marshal() []byte {
	var b []byte
	b = appendString(b, 1, m.FieldName)
	b = appendString(b, 2, m.ExpectedFieldValue)
	return b
}

func decodeFindRecipientsFromField(b []byte) (ToHost, error) {
	var m FindRecipientsFromField
	var seen presence
	err := forEachField(b, func(f field) error {
		var err error
		switch f.num {
		case 1:
			m.FieldName, err = f.str()
		case 2:
			m.ExpectedFieldValue, err = f.str()
		}
		seen.set(f.num)
		return err
	})
	if err != nil {
		return nil, err
	}
	if err := seen.require("findRecipientsFromField", 1, 2); err != nil {
		return nil, err
	}
	return m, nil
}

// RecipientFieldExists asks whether recipients carry a field.
type RecipientFieldExists struct {
	FieldName string
}

func (RecipientFieldExists) Tag() Tag { return TagRecipientFieldExists }
func (RecipientFieldExists) isToHost() {}
func (RecipientFieldExists) field() protowire.Number { return 9 }
func (m RecipientFieldExists) marshal() []byte { return appendString(nil, 1, m.FieldName) }

func (m RecipientFieldExists) validate() error {
	if m.FieldName == "" {
		return incomplete("recipientFieldExists", "fieldName")
	}
	return nil
}

func decodeRecipientFieldExists(b []byte) (ToHost, error) {
	v, err := decodeSingleString(b, "recipientFieldExists")
	if err != nil {
		return nil, err
	}
	return RecipientFieldExists{FieldName: v}, nil
}

// HistorizeData records one or more keyword values of a device.
type HistorizeData struct {
	Device string
	Values []HistorizedValue
}

func (HistorizeData) Tag() Tag { return TagHistorizeData }
func (HistorizeData) isToHost() {}
func (HistorizeData) field() protowire.Number { return 10 }

func (m HistorizeData) validate() error {
	if m.Device == "" {
		return incomplete("historizeData", "device")
	}
	if len(m.Values) == 0 {
		return incomplete("historizeData", "values")
	}
	for i := range m.Values {
		if err := m.Values[i].Historizable.validate(); err != nil {
			return fmt.Errorf("value %d: %w", i, err)
		}
	}
	return nil
}

func (m HistorizeData) marshal() []byte {
	b := appendString(nil, 1, m.Device)
	for i := range m.Values {
		b = appendMessage(b, 2, m.Values[i].marshal())
	}
	return b
}

func decodeHistorizeData(b []byte) (ToHost, error) {
	var m HistorizeData
	var seen presence
	err := forEachField(b, func(f field) error {
		var err error
		switch f.num {
		case 1:
			m.Device, err = f.str()
		case 2:
			var payload []byte
			if payload, err = f.message(); err == nil {
				var v HistorizedValue
				if v, err = unmarshalHistorizedValue(payload); err == nil {
					m.Values = append(m.Values, v)
				}
			}
		}
		seen.set(f.num)
		return err
	})
	if err != nil {
		return nil, err
	}
	if err := seen.require("historizeData", 1, 2); err != nil {
		return nil, err
	}
	return m, nil
}

// ConfigurationRequest asks for the current plugin configuration.
type ConfigurationRequest struct{}

func (ConfigurationRequest) Tag() Tag { return TagConfigurationRequest }
func (ConfigurationRequest) isToHost() {}
func (ConfigurationRequest) field() protowire.Number { return 11 }
func (ConfigurationRequest) validate() error { return nil }
func (ConfigurationRequest) marshal() []byte { return nil }

func decodeConfigurationRequest(b []byte) (ToHost, error) {
	if err := forEachField(b, func(field) error { return nil }); err != nil {
		return nil, err
	}
	return ConfigurationRequest{}, nil
}

// BindingQueryAnswer answers a BindingQuery. Result is the serialized answer
// on success and an error message otherwise.
type BindingQueryAnswer struct {
	Success bool
	Result  string
}

func (BindingQueryAnswer) Tag() Tag { return TagBindingQueryAnswer }
func (BindingQueryAnswer) isToHost() {}
func (BindingQueryAnswer) field() protowire.Number { return 12 }
func (BindingQueryAnswer) validate() error { return nil }

func (m BindingQueryAnswer) marshal() []byte {
	var b []byte
	b = appendBool(b, 1, m.Success)
	b = appendString(b, 2, m.Result)
	return b
}

func decodeBindingQueryAnswer(b []byte) (ToHost, error) {
	var m BindingQueryAnswer
	var seen presence
	err := forEachField(b, func(f field) error {
		var err error
		switch f.num {
		case 1:
			m.Success, err = f.boolean()
		case 2:
			m.Result, err = f.str()
		}
		seen.set(f.num)
		return err
	})
	if err != nil {
		return nil, err
	}
	if err := seen.require("bindingQueryAnswer", 1, 2); err != nil {
		return nil, err
	}
	return m, nil
}

// ManuallyDeviceCreationAnswer answers ManuallyDeviceCreation with either the
// name of the created device or an error message.
type ManuallyDeviceCreationAnswer struct {
	Succeeded     bool
	NewDeviceName string
	Error         string
}

func (ManuallyDeviceCreationAnswer) Tag() Tag { return TagManuallyDeviceCreationAnswer }
func (ManuallyDeviceCreationAnswer) isToHost() {}
func (ManuallyDeviceCreationAnswer) field() protowire.Number { return 13 }

func (m ManuallyDeviceCreationAnswer) validate() error {
	if m.Succeeded && m.NewDeviceName == "" {
		return incomplete("manuallyDeviceCreationAnswer", "success.newDeviceName")
	}
	return nil
}

func (m ManuallyDeviceCreationAnswer) marshal() []byte {
	if m.Succeeded {
		return appendMessage(nil, 1, appendString(nil, 1, m.NewDeviceName))
	}
	return appendMessage(nil, 2, appendString(nil, 1, m.Error))
}

func decodeManuallyDeviceCreationAnswer(b []byte) (ToHost, error) {
	var m ManuallyDeviceCreationAnswer
	found := false
	err := forEachField(b, func(f field) error {
		if f.num != 1 && f.num != 2 {
			return nil
		}
		if found {
			return malformed("manuallyDeviceCreationAnswer: both success and error set")
		}
		payload, err := f.message()
		if err != nil {
			return err
		}
		found = true
		if f.num == 1 {
			m.Succeeded = true
			m.NewDeviceName, err = decodeSingleString(payload, "manuallyDeviceCreationAnswer.success")
			return err
		}
		m.Error, err = decodeSingleString(payload, "manuallyDeviceCreationAnswer.error")
		return err
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, malformed("manuallyDeviceCreationAnswer: no result set")
	}
	return m, nil
}
