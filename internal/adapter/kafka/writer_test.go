package kafka

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seismocat/seismic-etl/internal/domain"
)

func TestSerializeToMessage(t *testing.T) {
	event := domain.LabelEvent{
		Code:      "10500",
		Station:   "EPOB",
		Component: "Z",
		File:      "10500_EPOB_Z.png",
		Split:     "train",
		Box: domain.BoundingBox{
			XMin: 0.198, XMax: 0.234, YMin: 0, YMax: 1,
			Class: "earthquake", Label: 1,
		},
	}

	msg, err := serializeToMessage(event)
	require.NoError(t, err)

	assert.Equal(t, []byte("10500_EPOB_Z"), msg.Key)
	assert.Contains(t, string(msg.Value), `"file":"10500_EPOB_Z.png"`)
	assert.Contains(t, string(msg.Value), `"class":"earthquake"`)
	assert.Len(t, msg.Headers, 2)
	assert.Equal(t, "split", msg.Headers[0].Key)
	assert.Equal(t, []byte("train"), msg.Headers[0].Value)
	assert.Equal(t, "class", msg.Headers[1].Key)
	assert.Equal(t, []byte("earthquake"), msg.Headers[1].Value)
}
