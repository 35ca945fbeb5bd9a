package queue

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecode_Point(t *testing.T) {
	in := PointMessage{
		MetricID: "cpu",
		Time:     time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC),
		Value:    42.5,
	}
	data, err := Encode(in)
	require.NoError(t, err)

	var out PointMessage
	require.NoError(t, Decode(data, &out))
	assert.Equal(t, in.MetricID, out.MetricID)
	assert.True(t, in.Time.Equal(out.Time))
	assert.Equal(t, in.Value, out.Value)
}

func TestDecode_PlainJSON(t *testing.T) {
	var out PointMessage
	require.NoError(t, Decode([]byte(`{"metric_id":"mem","time":"2025-01-01T00:00:00Z","value":3}`), &out))
	assert.Equal(t, "mem", out.MetricID)
	assert.Equal(t, 3.0, out.Value)
}

func TestDecode_SnappyPayloadStartingWithBrace(t *testing.T) {
	// a 123-byte document makes the snappy length prefix equal '{'
	in := PointMessage{MetricID: strings.Repeat("m", 123-len(`{"metric_id":"","time":"0001-01-01T00:00:00Z","value":0}`))}
	data, err := Encode(in)
	require.NoError(t, err)
	require.Equal(t, byte('{'), data[0])

	var out PointMessage
	require.NoError(t, Decode(data, &out))
	assert.Equal(t, in.MetricID, out.MetricID)
}

func TestDecode_Garbage(t *testing.T) {
	var out PointMessage
	assert.Error(t, Decode([]byte{0xff, 0xff, 0xff}, &out))
	assert.Error(t, Decode([]byte("{not json"), &out))
}

func TestEncodePoints(t *testing.T) {
	msgs, err := EncodePoints("trendcore.points", []PointMessage{{MetricID: "a"}, {MetricID: "b"}})
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "trendcore.points", msgs[1].Subject)

	var out PointMessage
	require.NoError(t, Decode(msgs[1].Data, &out))
	assert.Equal(t, "b", out.MetricID)
}
