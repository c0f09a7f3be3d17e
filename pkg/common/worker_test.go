package common_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/joshuashevchuk1/gm-media-api-sub001/pkg/common"
)

func TestWorkerProcessesTasksInOrder(t *testing.T) {
	var received []int
	done := make(chan struct{})

	w := common.StartWorker(common.WorkerConfig[int]{
		ChannelSize: 8,
		Timeout:     time.Second,
		OnTimeout:   func() {},
		OnTask: func(task int) {
			received = append(received, task)
			if task == 2 {
				close(done)
			}
		},
	})
	defer w.Stop()

	assert.NoError(t, w.Send(0))
	assert.NoError(t, w.Send(1))
	assert.NoError(t, w.Send(2))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not process all tasks")
	}

	assert.Equal(t, []int{0, 1, 2}, received)
}

func TestWorkerSendAfterStopReturnsErrWorkerClosed(t *testing.T) {
	w := common.StartWorker(common.WorkerConfig[int]{
		ChannelSize: 1,
		Timeout:     time.Second,
		OnTimeout:   func() {},
		OnTask:      func(int) {},
	})

	w.Stop()

	assert.ErrorIs(t, w.Send(1), common.ErrWorkerClosed)
}

func TestWorkerSendReturnsErrWorkerTooBusyWhenFull(t *testing.T) {
	block := make(chan struct{})
	w := common.StartWorker(common.WorkerConfig[int]{
		ChannelSize: 1,
		Timeout:     time.Second,
		OnTimeout:   func() {},
		OnTask: func(int) {
			<-block
		},
	})
	defer func() {
		close(block)
		w.Stop()
	}()

	assert.NoError(t, w.Send(1))

	var sawTooBusy bool
	for i := 0; i < 10; i++ {
		if err := w.Send(i); err == common.ErrWorkerTooBusy {
			sawTooBusy = true
			break
		}
		time.Sleep(time.Millisecond)
	}

	assert.True(t, sawTooBusy, "expected ErrWorkerTooBusy once the channel and the blocked task fill up")
}

func BenchmarkWorkerSend(b *testing.B) {
	w := common.StartWorker(common.WorkerConfig[struct{}]{
		ChannelSize: 1024,
		Timeout:     2 * time.Second,
		OnTimeout:   func() {},
		OnTask:      func(struct{}) {},
	})
	defer w.Stop()

	for n := 0; n < b.N; n++ {
		_ = w.Send(struct{}{})
	}
}
