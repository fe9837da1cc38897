package sandbox

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONCodecRoundTripsEvent(t *testing.T) {
	c := jsonCodec{}
	in := Event{Type: EventText, Data: mustJSON(TextData{Content: "hello"})}

	b, err := c.Marshal(&in)
	require.NoError(t, err)

	var out Event
	require.NoError(t, c.Unmarshal(b, &out))
	assert.Equal(t, in.Type, out.Type)

	var data TextData
	require.NoError(t, unmarshal(out.Data, &data))
	assert.Equal(t, "hello", data.Content)
}

func TestJSONCodecName(t *testing.T) {
	assert.Equal(t, "sandboxjson", jsonCodec{}.Name())
}
