package multiagent

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingRefresher struct{ n atomic.Int32 }

func (c *countingRefresher) Refresh(context.Context) error {
	c.n.Add(1)
	return nil
}

func TestNewWarmer_InvalidSchedule(t *testing.T) {
	_, err := NewWarmer(&countingRefresher{}, "every tuesday", nil)
	assert.Error(t, err)
}

func TestWarmer_RefreshesOnSchedule(t *testing.T) {
	r := &countingRefresher{}
	w, err := NewWarmer(r, "@every 1s", nil)
	require.NoError(t, err)

	w.Start(context.Background())
	w.Start(context.Background())
	defer w.Stop()

	assert.Eventually(t, func() bool { return r.n.Load() >= 1 }, 3*time.Second, 50*time.Millisecond)
}

func TestWarmer_StopIsIdempotent(t *testing.T) {
	w, err := NewWarmer(&countingRefresher{}, "*/5 * * * *", nil)
	require.NoError(t, err)
	w.Stop()
	w.Start(context.Background())
	w.Stop()
	w.Stop()
}
