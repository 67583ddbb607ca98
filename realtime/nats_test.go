package realtime

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func Test_MessageSubject_Is_Scoped_Per_Group(t *testing.T) {
	req := require.New(t)

	req.Equal("groupmeet.messages.g1", MessageSubject("g1"))
	req.NotEqual(MessageSubject("g1"), MessageSubject("g2"))
}

func Test_WireMessage_Encoding(t *testing.T) {
	req := require.New(t)
	id := uuid.New()
	at := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	data, err := json.Marshal(wireMessage{
		ID:        id,
		GroupID:   "g1",
		Sender:    "u1",
		Text:      "hello",
		CreatedAt: at,
	})
	req.NoError(err)

	var decoded wireMessage
	req.NoError(json.Unmarshal(data, &decoded))
	req.Equal(id, decoded.ID)
	req.Equal("g1", decoded.GroupID)
	req.True(at.Equal(decoded.CreatedAt))
}
