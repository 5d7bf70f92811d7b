package datacontainer_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snowmerak/hubplug/lib/datacontainer"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "empty", input: "", want: "{}"},
		{name: "blank", input: "  \n", want: "{}"},
		{name: "object", input: `{"b":1,"a":"x"}`, want: `{"a":"x","b":1}`},
		{name: "jsonc", input: "{\n// period in seconds\n\"period\": 5, /* fast */\n}", want: `{"period":5}`},
		{name: "not an object", input: `[1,2]`, wantErr: true},
		{name: "broken", input: `{"a":`, wantErr: true},
		{name: "trailing object", input: `{"a":1} {"b":2}`, wantErr: true},
		{name: "trailing garbage", input: `{"a":1} trailing`, wantErr: true},
		{name: "trailing brace", input: `{"a":1}}`, wantErr: true},
		{name: "trailing comment", input: "{\"a\":1} // done\n", want: `{"a":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := datacontainer.Parse(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, c.Serialize())
		})
	}
}

func TestContainer_Paths(t *testing.T) {
	c := datacontainer.MustParse(`{"serial":{"port":"COM1","baud":9600},"enabled":true,"ratio":"0.5"}`)

	port, err := c.String("serial.port")
	require.NoError(t, err)
	assert.Equal(t, "COM1", port)

	baud, err := c.Int("serial.baud")
	require.NoError(t, err)
	assert.Equal(t, int64(9600), baud)

	enabled, err := c.Bool("enabled")
	require.NoError(t, err)
	assert.True(t, enabled)

	ratio, err := c.Float("ratio")
	require.NoError(t, err)
	assert.InDelta(t, 0.5, ratio, 1e-9)

	_, err = c.String("serial.parity")
	assert.ErrorIs(t, err, datacontainer.ErrPathNotFound)

	_, err = c.Int("serial.port")
	assert.ErrorIs(t, err, datacontainer.ErrType)

	_, err = c.Get("serial..port")
	assert.ErrorIs(t, err, datacontainer.ErrInvalidPath)

	assert.True(t, c.Contains("serial"))
	assert.False(t, c.Contains("serial.port.deeper"))
	assert.Equal(t, "fallback", c.StringOr("missing", "fallback"))
}

func TestContainer_SetAndChild(t *testing.T) {
	c := datacontainer.New()
	require.NoError(t, c.Set("serial.port", "COM2"))
	require.NoError(t, c.Set("serial.baud", 19200))
	require.NoError(t, c.Set("thresholds", map[string]float64{"high": 30.5}))
	require.NoError(t, c.Set("nested", datacontainer.FromStrings(map[string]string{"k": "v"})))

	assert.Equal(t, `{"nested":{"k":"v"},"serial":{"baud":19200,"port":"COM2"},"thresholds":{"high":30.5}}`, c.Serialize())

	serial, err := c.Child("serial")
	require.NoError(t, err)
	require.NoError(t, serial.Set("port", "COM9"))

	port, err := c.String("serial.port")
	require.NoError(t, err)
	assert.Equal(t, "COM2", port, "child is a copy")

	require.NoError(t, c.Remove("serial.baud"))
	assert.False(t, c.Contains("serial.baud"))
	assert.Equal(t, []string{"nested", "serial", "thresholds"}, c.Keys())
}

func TestContainer_Decode(t *testing.T) {
	c := datacontainer.MustParse(`{"serial":{"port":"COM1","baud":9600}}`)

	var serial struct {
		Port string `json:"port"`
		Baud int    `json:"baud"`
	}
	require.NoError(t, c.Decode("serial", &serial))
	assert.Equal(t, "COM1", serial.Port)
	assert.Equal(t, 9600, serial.Baud)

	var wrong struct {
		Port int `json:"port"`
	}
	assert.ErrorIs(t, c.Decode("serial", &wrong), datacontainer.ErrType)
}

func TestContainer_Fingerprint(t *testing.T) {
	a := datacontainer.MustParse(`{"a":1,"b":{"c":true}}`)
	b := datacontainer.MustParse(`{ "b": {"c": true}, "a": 1 }`)
	c := datacontainer.MustParse(`{"a":2,"b":{"c":true}}`)

	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
	assert.NotEqual(t, a.Fingerprint(), c.Fingerprint())
	assert.Len(t, a.Fingerprint(), 64)
	assert.True(t, a.Equal(b))
}

func TestContainer_Empty(t *testing.T) {
	var nilContainer *datacontainer.Container
	assert.True(t, nilContainer.Empty())
	assert.Equal(t, "{}", nilContainer.Serialize())
	assert.True(t, datacontainer.New().Empty())

	c, err := datacontainer.FromValue(struct {
		Name string `json:"name"`
	}{Name: "x"})
	require.NoError(t, err)
	assert.False(t, c.Empty())
}
