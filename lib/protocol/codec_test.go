package protocol_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/snowmerak/hubplug/lib/channel"
	"github.com/snowmerak/hubplug/lib/protocol"
)

func temperature() protocol.Historizable {
	return protocol.Historizable{
		Name:       "temperature",
		Capacity:   protocol.Capacity{Name: "temperature", Unit: "degrees", Type: protocol.DataNumeric},
		AccessMode: protocol.AccessGet,
		Type:       protocol.DataNumeric,
		Units:      "degrees",
		TypeInfo:   `{"min":-40,"max":85}`,
		Measure:    protocol.MeasureAbsolute,
	}
}

func information() protocol.PluginInformation {
	return protocol.PluginInformation{
		Type:                          "fakesensor",
		Version:                       "1.2.0",
		ReleaseType:                   protocol.ReleaseBeta,
		Author:                        "hubplug",
		URL:                           "https://example.invalid/fakesensor",
		Identity:                      "fakesensor-1.2.0",
		PackageJSON:                   `{"type":"fakesensor"}`,
		Path:                          "/opt/plugins/fakesensor",
		SupportManuallyDeviceCreation: true,
	}
}

func TestToPlugin_RoundTrip(t *testing.T) {
	tests := []protocol.ToPlugin{
		protocol.Stop{},
		protocol.Init{Information: information(), DataPath: "/var/lib/hub/fakesensor"},
		protocol.UpdateConfiguration{Configuration: `{"period":5}`},
		protocol.UpdateConfiguration{},
		protocol.BindingQuery{Query: `{"query":"serialPorts"}`},
		protocol.DeviceCommand{Device: "thermo1", Keyword: "switch", Body: "1"},
		protocol.ExtraCommand{Command: "simulate", Data: `{"count":3}`},
		protocol.ExtraCommand{Command: "refresh"},
		protocol.ManuallyDeviceCreation{Name: "garage", Configuration: `{"id":7}`},
		protocol.DeviceExistsAnswer{Exists: true},
		protocol.DeviceExistsAnswer{},
		protocol.DeviceDetailsAnswer{Details: `{"serial":"A1"}`},
		protocol.KeywordExistsAnswer{Exists: true},
		protocol.RecipientValueAnswer{Value: "+33123456789"},
		protocol.FindRecipientsFromFieldAnswer{RecipientIDs: []int32{1, 42, -3}},
		protocol.FindRecipientsFromFieldAnswer{},
		protocol.RecipientFieldExistsAnswer{Exists: true},
		protocol.ConfigurationAnswer{Configuration: `{"period":5}`},
	}

	for _, want := range tests {
		t.Run(string(want.Tag()), func(t *testing.T) {
			b, err := protocol.EncodeToPlugin(want, 0)
			require.NoError(t, err)

			got, err := protocol.DecodeToPlugin(b)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestToHost_RoundTrip(t *testing.T) {
	humidity := temperature()
	humidity.Name = "humidity"
	humidity.Capacity = protocol.Capacity{Name: "humidity", Unit: "percent", Type: protocol.DataNumeric}
	humidity.TypeInfo = ""

	tests := []protocol.ToHost{
		protocol.SetPluginState{State: protocol.StateRunning},
		protocol.SetPluginState{State: protocol.StateCustom, CustomMessageID: "connecting", CustomMessageData: `{"port":"COM1"}`},
		protocol.DeviceExists{Device: "thermo1"},
		protocol.DeviceDetails{Device: "thermo1"},
		protocol.DeclareDevice{Device: "thermo1", Model: "TH-1", Keywords: []protocol.Historizable{temperature(), humidity}, Details: `{"serial":"A1"}`},
		protocol.DeclareDevice{Device: "bare", Model: "none"},
		protocol.DeclareKeyword{Device: "thermo1", Keyword: temperature()},
		protocol.KeywordExists{Device: "thermo1", Keyword: "temperature"},
		protocol.RecipientValueRequest{RecipientID: 3, FieldName: "mobile"},
		protocol.FindRecipientsFromField{FieldName: "mobile", ExpectedFieldValue: "+33123456789"},
		protocol.RecipientFieldExists{FieldName: "mobile"},
		protocol.HistorizeData{Device: "thermo1", Values: []protocol.HistorizedValue{{Historizable: temperature(), FormattedValue: "21.5"}}},
		protocol.ConfigurationRequest{},
		protocol.BindingQueryAnswer{Success: true, Result: `["COM1","COM2"]`},
		protocol.BindingQueryAnswer{Result: "no serial port"},
		protocol.ManuallyDeviceCreationAnswer{Succeeded: true, NewDeviceName: "garage"},
		protocol.ManuallyDeviceCreationAnswer{Error: "unsupported model"},
	}

	for _, want := range tests {
		t.Run(string(want.Tag()), func(t *testing.T) {
			b, err := protocol.EncodeToHost(want, 0)
			require.NoError(t, err)

			got, err := protocol.DecodeToHost(b)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestEncode_Incomplete(t *testing.T) {
	noCapacity := temperature()
	noCapacity.Capacity.Name = ""

	tests := []struct {
		name string
		msg  protocol.ToHost
	}{
		{name: "device exists without device", msg: protocol.DeviceExists{}},
		{name: "declare device without model", msg: protocol.DeclareDevice{Device: "d"}},
		{name: "keyword without capacity", msg: protocol.DeclareKeyword{Device: "d", Keyword: noCapacity}},
		{name: "historize without values", msg: protocol.HistorizeData{Device: "d"}},
		{name: "keyword exists without keyword", msg: protocol.KeywordExists{Device: "d"}},
		{name: "creation success without name", msg: protocol.ManuallyDeviceCreationAnswer{Succeeded: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := protocol.EncodeToHost(tt.msg, 0)
			assert.ErrorIs(t, err, protocol.ErrSerialization)
		})
	}

	_, err := protocol.EncodeToPlugin(protocol.Init{DataPath: "/data"}, 0)
	assert.ErrorIs(t, err, protocol.ErrSerialization)
}

func TestEncode_InvalidEnum(t *testing.T) {
	_, err := protocol.EncodeToHost(protocol.SetPluginState{State: protocol.PluginState(42)}, 0)
	assert.ErrorIs(t, err, protocol.ErrSerialization)
	assert.ErrorIs(t, err, protocol.ErrInvalidEnumValue)

	bad := temperature()
	bad.Measure = protocol.Measure(9)
	_, err = protocol.EncodeToHost(protocol.DeclareKeyword{Device: "d", Keyword: bad}, 0)
	assert.ErrorIs(t, err, protocol.ErrInvalidEnumValue)
}

func TestEncode_SizeLimit(t *testing.T) {
	msg := protocol.ConfigurationAnswer{Configuration: string(make([]byte, 100))}

	_, err := protocol.EncodeToPlugin(msg, 64)
	assert.ErrorIs(t, err, protocol.ErrSerialization)
	assert.ErrorIs(t, err, channel.ErrMessageTooLarge)

	b, err := protocol.EncodeToPlugin(msg, 128)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(b), 128)
}

func envelope(num protowire.Number, payload []byte) []byte {
	b := protowire.AppendTag(nil, num, protowire.BytesType)
	return protowire.AppendBytes(b, payload)
}

func TestDecode_UnknownMessageType(t *testing.T) {
	_, err := protocol.DecodeToPlugin(envelope(99, nil))
	assert.ErrorIs(t, err, protocol.ErrUnknownMessageType)
	assert.Contains(t, err.Error(), "99")

	_, err = protocol.DecodeToHost(envelope(14, nil))
	assert.ErrorIs(t, err, protocol.ErrUnknownMessageType)
}

func TestDecode_Malformed(t *testing.T) {
	stop, err := protocol.EncodeToPlugin(protocol.Stop{}, 0)
	require.NoError(t, err)

	tests := []struct {
		name string
		data []byte
	}{
		{name: "empty", data: nil},
		{name: "garbage", data: []byte{0xff, 0xff, 0xff}},
		{name: "truncated", data: stop[:len(stop)-1]},
		{name: "two variants", data: append(append([]byte{}, stop...), stop...)},
		{name: "variant as varint", data: protowire.AppendVarint(protowire.AppendTag(nil, 1, protowire.VarintType), 1)},
		{name: "missing required field", data: envelope(5, protowire.AppendString(protowire.AppendTag(nil, 1, protowire.BytesType), "thermo1"))},
		{name: "string field as varint", data: envelope(3, protowire.AppendVarint(protowire.AppendTag(nil, 1, protowire.VarintType), 7))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := protocol.DecodeToPlugin(tt.data)
			assert.ErrorIs(t, err, protocol.ErrMalformedMessage)
		})
	}
}

func TestDecode_InvalidEnum(t *testing.T) {
	state := protowire.AppendVarint(protowire.AppendTag(nil, 1, protowire.VarintType), 17)
	_, err := protocol.DecodeToHost(envelope(1, state))
	assert.ErrorIs(t, err, protocol.ErrMalformedMessage)
	assert.ErrorIs(t, err, protocol.ErrInvalidEnumValue)

	system := protowire.AppendVarint(protowire.AppendTag(nil, 1, protowire.VarintType), 3)
	_, err = protocol.DecodeToPlugin(envelope(1, system))
	assert.ErrorIs(t, err, protocol.ErrInvalidEnumValue)
}

func appendField(b []byte, num protowire.Number, v string) []byte {
	return protowire.AppendString(protowire.AppendTag(b, num, protowire.BytesType), v)
}

func historizable(accessMode string) []byte {
	capacity := appendField(nil, 1, "switch")
	capacity = appendField(capacity, 2, "")
	capacity = appendField(capacity, 3, "bool")

	b := appendField(nil, 1, "relay")
	b = protowire.AppendBytes(protowire.AppendTag(b, 2, protowire.BytesType), capacity)
	b = appendField(b, 3, accessMode)
	b = appendField(b, 4, "bool")
	b = appendField(b, 5, "")
	b = appendField(b, 6, "")
	b = appendField(b, 7, "absolute")
	return b
}

func TestHistorizable_EnumNamesOnWire(t *testing.T) {
	payload := appendField(nil, 1, "thermo1")
	payload = protowire.AppendBytes(protowire.AppendTag(payload, 2, protowire.BytesType), historizable("getSet"))

	got, err := protocol.DecodeToHost(envelope(5, payload))
	require.NoError(t, err)
	assert.Equal(t, protocol.DeclareKeyword{
		Device: "thermo1",
		Keyword: protocol.Historizable{
			Name:       "relay",
			Capacity:   protocol.Capacity{Name: "switch", Type: protocol.DataBool},
			AccessMode: protocol.AccessGetSet,
			Type:       protocol.DataBool,
			Measure:    protocol.MeasureAbsolute,
		},
	}, got)

	encoded, err := protocol.EncodeToHost(got, 0)
	require.NoError(t, err)
	assert.Equal(t, envelope(5, payload), encoded)

	unknown := appendField(nil, 1, "thermo1")
	unknown = protowire.AppendBytes(protowire.AppendTag(unknown, 2, protowire.BytesType), historizable("readWrite"))
	_, err = protocol.DecodeToHost(envelope(5, unknown))
	assert.ErrorIs(t, err, protocol.ErrMalformedMessage)
	assert.ErrorIs(t, err, protocol.ErrInvalidEnumValue)
}

func TestDecode_SkipsUnknownInnerFields(t *testing.T) {
	payload := protowire.AppendVarint(protowire.AppendTag(nil, 1, protowire.VarintType), 1)
	payload = protowire.AppendFixed32(protowire.AppendTag(payload, 7, protowire.Fixed32Type), 5)
	payload = protowire.AppendString(protowire.AppendTag(payload, 9, protowire.BytesType), "future")

	got, err := protocol.DecodeToPlugin(envelope(8, payload))
	require.NoError(t, err)
	assert.Equal(t, protocol.DeviceExistsAnswer{Exists: true}, got)
}

func TestDecode_UnpackedRecipientIDs(t *testing.T) {
	var payload []byte
	for _, id := range []uint64{4, 5} {
		payload = protowire.AppendVarint(protowire.AppendTag(payload, 1, protowire.VarintType), id)
	}

	got, err := protocol.DecodeToPlugin(envelope(12, payload))
	require.NoError(t, err)
	assert.Equal(t, protocol.FindRecipientsFromFieldAnswer{RecipientIDs: []int32{4, 5}}, got)
}

func TestAnswers(t *testing.T) {
	tests := []struct {
		answer protocol.Answer
		want   protocol.Tag
	}{
		{protocol.DeviceExistsAnswer{}, protocol.TagDeviceExists},
		{protocol.DeviceDetailsAnswer{}, protocol.TagDeviceDetails},
		{protocol.KeywordExistsAnswer{}, protocol.TagKeywordExists},
		{protocol.RecipientValueAnswer{}, protocol.TagRecipientValueRequest},
		{protocol.FindRecipientsFromFieldAnswer{}, protocol.TagFindRecipientsFromField},
		{protocol.RecipientFieldExistsAnswer{}, protocol.TagRecipientFieldExists},
		{protocol.ConfigurationAnswer{}, protocol.TagConfigurationRequest},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.answer.Answers())
		assert.True(t, protocol.IsAnswer(tt.answer))
	}

	assert.False(t, protocol.IsAnswer(protocol.Stop{}))
	assert.False(t, protocol.IsAnswer(protocol.Init{}))
}

func TestEnumStrings(t *testing.T) {
	assert.Equal(t, "running", protocol.StateRunning.String())
	assert.Equal(t, "PluginState(9)", protocol.PluginState(9).String())
	assert.Equal(t, "releaseCandidate", protocol.ReleaseCandidate.String())
	assert.Equal(t, "getSet", protocol.AccessGetSet.String())
	assert.Equal(t, "dateTime", protocol.DataDateTime.String())
	assert.Equal(t, "cumulative", protocol.MeasureCumulative.String())

	for a := protocol.AccessNoAccess; a <= protocol.AccessGetSet; a++ {
		got, err := protocol.ParseAccessMode(a.String())
		require.NoError(t, err)
		assert.Equal(t, a, got)
	}
	for d := protocol.DataNoData; d <= protocol.DataDateTime; d++ {
		got, err := protocol.ParseDataType(d.String())
		require.NoError(t, err)
		assert.Equal(t, d, got)
	}
	for m := protocol.MeasureAbsolute; m <= protocol.MeasureCumulative; m++ {
		got, err := protocol.ParseMeasure(m.String())
		require.NoError(t, err)
		assert.Equal(t, m, got)
	}
	_, err := protocol.ParseDataType("Numeric")
	assert.ErrorIs(t, err, protocol.ErrInvalidEnumValue)
}
