package skill

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_PublishSubscribe(t *testing.T) {
	t.Parallel()

	bus := NewBus(nil)
	defer bus.Close()

	ch, cancel := bus.Subscribe(4)
	defer cancel()

	bus.Publish(Event{Type: EventStarted, Skill: "discord", InvocationID: "inv-1"})

	select {
	case e := <-ch:
		assert.Equal(t, EventStarted, e.Type)
		assert.Equal(t, "discord", e.Skill)
		assert.Equal(t, "inv-1", e.InvocationID)
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

func TestBus_SlowSubscriberDrops(t *testing.T) {
	t.Parallel()

	bus := NewBus(nil)
	defer bus.Close()

	_, cancel := bus.Subscribe(1)
	defer cancel()

	// 缓冲为 1：第二条起被丢弃，发布从不阻塞
	for i := 0; i < 5; i++ {
		bus.Publish(Event{Type: EventSucceeded})
	}
	assert.Equal(t, uint64(4), bus.Dropped())
}

func TestBus_CancelIdempotent(t *testing.T) {
	t.Parallel()

	bus := NewBus(nil)
	defer bus.Close()

	ch, cancel := bus.Subscribe(1)
	cancel()
	cancel() // 第二次调用不 panic

	_, open := <-ch
	assert.False(t, open)

	// 取消后发布不投递
	bus.Publish(Event{Type: EventFailed})
}

func TestBus_Close(t *testing.T) {
	t.Parallel()

	bus := NewBus(nil)
	ch, cancel := bus.Subscribe(1)
	defer cancel()

	bus.Close()
	bus.Close() // 幂等

	_, open := <-ch
	require.False(t, open, "subscriber channel closed on bus close")

	// 关闭后的订阅立即得到已关闭通道
	ch2, _ := bus.Subscribe(1)
	_, open = <-ch2
	assert.False(t, open)

	bus.Publish(Event{Type: EventStarted}) // 不 panic
}
