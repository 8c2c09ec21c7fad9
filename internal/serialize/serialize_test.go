package serialize

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type widget struct {
	Name  string
	Count int
}

func TestParseKindDefaultsToJSON(t *testing.T) {
	k, err := ParseKind("")
	require.NoError(t, err)
	require.Equal(t, JSON, k)
}

func TestParseKindRejectsUnknown(t *testing.T) {
	_, err := ParseKind("xml")
	require.Error(t, err)
}

func TestJSONRoundTrip(t *testing.T) {
	s, err := New(JSON, false)
	require.NoError(t, err)

	data, err := s.Serialize(widget{Name: "gear", Count: 3})
	require.NoError(t, err)

	var out widget
	require.NoError(t, s.Deserialize(data, &out))
	require.Equal(t, widget{Name: "gear", Count: 3}, out)
}

func TestBinaryRoundTrip(t *testing.T) {
	s, err := New(Binary, false)
	require.NoError(t, err)

	data, err := s.Serialize(widget{Name: "gear", Count: 3})
	require.NoError(t, err)

	var out widget
	require.NoError(t, s.Deserialize(data, &out))
	require.Equal(t, widget{Name: "gear", Count: 3}, out)
}

func TestCompressedRoundTrip(t *testing.T) {
	s, err := New(JSON, true)
	require.NoError(t, err)

	data, err := s.Serialize(widget{Name: "gear", Count: 3})
	require.NoError(t, err)

	var out widget
	require.NoError(t, s.Deserialize(data, &out))
	require.Equal(t, widget{Name: "gear", Count: 3}, out)
}

func TestBytesSerializerPassesThroughRawBytes(t *testing.T) {
	var b Bytes
	data, err := b.Serialize([]byte("raw"))
	require.NoError(t, err)

	var out []byte
	require.NoError(t, b.Deserialize(data, &out))
	require.Equal(t, []byte("raw"), out)
}

func TestBytesSerializerRejectsNonByteInput(t *testing.T) {
	var b Bytes
	_, err := b.Serialize("not bytes")
	require.Error(t, err)
}
