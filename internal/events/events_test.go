package events

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderKeepsOrder(t *testing.T) {
	r := &Recorder{}
	ctx := context.Background()
	require.NoError(t, r.Publish(ctx, Event{Type: TypeSessionCreated}))
	require.NoError(t, r.Publish(ctx, Event{Type: TypeAnswerSubmitted}))
	require.NoError(t, r.Publish(ctx, Event{Type: TypeSessionFinished}))

	assert.Equal(t, []string{TypeSessionCreated, TypeAnswerSubmitted, TypeSessionFinished}, r.Types())
	assert.Len(t, r.Events(), 3)
}

func TestNopPublisher(t *testing.T) {
	var p Publisher = Nop{}
	assert.NoError(t, p.Publish(context.Background(), Event{}))
	assert.NoError(t, p.Close())
}

func TestEventJSONShape(t *testing.T) {
	correct := true
	b, err := json.Marshal(Event{Type: TypeAnswerSubmitted, SessionID: "s1", UserID: "u1", Correct: &correct, Answered: 3})
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(b, &m))
	assert.Equal(t, "answer.submitted", m["event_type"])
	assert.Equal(t, true, m["correct"])
	assert.NotContains(t, m, "test_id")
}

func TestAMQPPublisher(t *testing.T) {
	url := os.Getenv("CAT_TEST_AMQP_URL")
	if url == "" {
		t.Skip("CAT_TEST_AMQP_URL not set")
	}
	p, err := NewAMQPPublisher(url, "cat.events.test")
	require.NoError(t, err)
	defer p.Close()

	err = p.Publish(context.Background(), Event{Type: TypeSessionCreated, SessionID: "s1", OccurredAt: time.Now()})
	assert.NoError(t, err)
}
