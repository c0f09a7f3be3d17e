package common_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/joshuashevchuk1/gm-media-api-sub001/pkg/common"
)

func TestFutureWaitReturnsResolvedValue(t *testing.T) {
	f := common.NewFuture[int]()
	f.Resolve(7)

	val, err := f.Wait(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 7, val)
}

func TestFutureResolveIsIdempotent(t *testing.T) {
	f := common.NewFuture[int]()
	f.Resolve(1)
	f.Resolve(2)

	val, err := f.Wait(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 1, val)
}

func TestFutureWaitHonorsContextCancellation(t *testing.T) {
	f := common.NewFuture[int]()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := f.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFutureWaitUnblocksOnLateResolve(t *testing.T) {
	f := common.NewFuture[string]()
	go func() {
		time.Sleep(10 * time.Millisecond)
		f.Resolve("done")
	}()

	val, err := f.Wait(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, "done", val)
}
