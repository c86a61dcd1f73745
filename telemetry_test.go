package overdrive

import (
	"github.com/jd3nn1s/overdrive/protocol"
	"github.com/stretchr/testify/assert"
	"testing"
)

func TestTelemetryHub(t *testing.T) {
	hub := newTelemetryHub(2)
	id1, ch1 := hub.Subscribe()
	id2, ch2 := hub.Subscribe()
	assert.NotEqual(t, id1, id2)
	assert.Equal(t, 2, hub.count())

	msg := protocol.TransitionUpdate{RoadPieceIdx: 1}
	hub.publish(msg)
	assert.Equal(t, protocol.Message(msg), <-ch1)
	assert.Equal(t, protocol.Message(msg), <-ch2)

	hub.Unsubscribe(id1)
	_, ok := <-ch1
	assert.False(t, ok)
	assert.Equal(t, 1, hub.count())
	// unknown and repeated ids are ignored
	hub.Unsubscribe(id1)
	hub.Unsubscribe("not-a-subscriber")

	hub.unsubscribeAll()
	_, ok = <-ch2
	assert.False(t, ok)
	assert.Equal(t, 0, hub.count())
	hub.publish(msg)
}

func TestTelemetryHubSlowSubscriber(t *testing.T) {
	hub := newTelemetryHub(1)
	_, slow := hub.Subscribe()

	hub.publish(protocol.PositionUpdate{LocationID: 1})
	hub.publish(protocol.PositionUpdate{LocationID: 2})

	_, fast := hub.Subscribe()
	hub.publish(protocol.PositionUpdate{LocationID: 3})

	assert.Equal(t, protocol.Message(protocol.PositionUpdate{LocationID: 1}), <-slow)
	assert.Len(t, slow, 0)
	assert.Equal(t, protocol.Message(protocol.PositionUpdate{LocationID: 3}), <-fast)
}
