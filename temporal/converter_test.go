package temporal

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/converter"
)

type payloadRecord struct {
	Name  string `msgpack:"name"`
	Count int    `msgpack:"count"`
}

func TestMsgpackPayloadConverterRoundTrip(t *testing.T) {
	t.Parallel()

	pc := NewMsgpackPayloadConverter()
	payload, err := pc.ToPayload(payloadRecord{Name: "job", Count: 3})
	require.NoError(t, err)
	require.Equal(t, MetadataEncodingMsgpack, string(payload.Metadata[converter.MetadataEncoding]))

	var decoded payloadRecord
	require.NoError(t, pc.FromPayload(payload, &decoded))
	require.Equal(t, payloadRecord{Name: "job", Count: 3}, decoded)
}

func TestMsgpackDataConverterSelectsMsgpackForPlainValues(t *testing.T) {
	t.Parallel()

	dc := NewMsgpackDataConverter()
	payload, err := dc.ToPayload(map[string]int{"retries": 2})
	require.NoError(t, err)
	require.Equal(t, MetadataEncodingMsgpack, string(payload.Metadata[converter.MetadataEncoding]))

	var decoded map[string]int
	require.NoError(t, dc.FromPayload(payload, &decoded))
	require.Equal(t, map[string]int{"retries": 2}, decoded)
}

func TestMsgpackDataConverterKeepsByteSlicesRaw(t *testing.T) {
	t.Parallel()

	dc := NewMsgpackDataConverter()
	payload, err := dc.ToPayload([]byte("raw bytes"))
	require.NoError(t, err)
	require.NotEqual(t, MetadataEncodingMsgpack, string(payload.Metadata[converter.MetadataEncoding]))

	var decoded []byte
	require.NoError(t, dc.FromPayload(payload, &decoded))
	require.Equal(t, []byte("raw bytes"), decoded)
}
