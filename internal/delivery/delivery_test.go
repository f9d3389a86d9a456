// Roomcast - Real-time Chat Room Fanout Server
// Copyright 2026 The Roomcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/roomcast/roomcast

package delivery

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roomcast/roomcast/internal/metrics"
	"github.com/roomcast/roomcast/internal/session"
	"github.com/roomcast/roomcast/internal/session/sessiontest"
)

func TestSendOne_Success(t *testing.T) {
	h, tr := sessiontest.NewHandle()
	defer h.Close()

	before := testutil.ToFloat64(metrics.DeliveryEnqueued)

	res := NewQueueChannel().SendOne(h, "hello")
	require.True(t, res.OK())
	require.NotNil(t, res.Future)
	require.NoError(t, res.Future.Err())

	assert.Equal(t, []any{"hello"}, tr.Writes())
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.DeliveryEnqueued)-before)
}

func TestSendOne_ClosedHandle(t *testing.T) {
	h, _ := sessiontest.NewHandle()
	h.Close()

	closedFailures := metrics.DeliveryFailures.WithLabelValues("closed")
	before := testutil.ToFloat64(closedFailures)

	res := NewQueueChannel().SendOne(h, "hello")
	assert.False(t, res.OK())
	assert.ErrorIs(t, res.Err, session.ErrClosed)
	assert.Nil(t, res.Future)
	assert.Equal(t, 1.0, testutil.ToFloat64(closedFailures)-before)
}

func TestSendOne_QueueFull(t *testing.T) {
	tests := []struct {
		name       string
		evict      bool
		wantClosed bool
	}{
		{"evicts slow consumer by default", true, true},
		{"keeps slow consumer when eviction disabled", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := sessiontest.NewBlockingTransport()
			h := session.New(tr, session.WithQueueSize(1))
			defer h.Close()

			ch := NewQueueChannel(WithSlowConsumerEviction(tt.evict))

			require.True(t, ch.SendOne(h, 1).OK())
			<-tr.Started()
			require.True(t, ch.SendOne(h, 2).OK())

			res := ch.SendOne(h, 3)
			require.ErrorIs(t, res.Err, session.ErrQueueFull)
			assert.Equal(t, tt.wantClosed, h.Closed())

			if tt.wantClosed {
				select {
				case <-h.Done():
				case <-time.After(2 * time.Second):
					t.Fatal("evicted handle was not torn down")
				}
			}
		})
	}
}

func TestSendOne_EvictionDoesNotBlockSender(t *testing.T) {
	tr := sessiontest.NewBlockingTransport()
	tr.SetCloseDelay(time.Second)
	h := session.New(tr, session.WithQueueSize(1))
	defer h.Close()

	ch := NewQueueChannel()
	require.True(t, ch.SendOne(h, 1).OK())
	<-tr.Started()
	require.True(t, ch.SendOne(h, 2).OK())

	start := time.Now()
	res := ch.SendOne(h, 3)
	elapsed := time.Since(start)

	require.ErrorIs(t, res.Err, session.ErrQueueFull)
	assert.Less(t, elapsed, 200*time.Millisecond, "eviction ran the transport close inline")
	assert.True(t, h.Closed())

	select {
	case <-h.Done():
	case <-time.After(3 * time.Second):
		t.Fatal("evicted handle was not torn down")
	}
}

func TestSendMany_IsolatesFailures(t *testing.T) {
	a, trA := sessiontest.NewHandle()
	b, _ := sessiontest.NewHandle()
	c, trC := sessiontest.NewHandle()
	defer a.Close()
	defer c.Close()
	b.Close()

	results := NewQueueChannel().SendMany([]*session.Handle{a, b, c}, "payload")
	require.Len(t, results, 3)

	assert.True(t, results[0].OK())
	assert.ErrorIs(t, results[1].Err, session.ErrClosed)
	assert.Same(t, b, results[1].Handle)
	assert.True(t, results[2].OK())

	require.NoError(t, results[0].Future.Err())
	require.NoError(t, results[2].Future.Err())
	assert.Equal(t, []any{"payload"}, trA.Writes())
	assert.Equal(t, []any{"payload"}, trC.Writes())
}

func TestSendMany_Empty(t *testing.T) {
	assert.Empty(t, NewQueueChannel().SendMany(nil, "x"))
}
