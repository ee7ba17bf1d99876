package feed

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/grc-approval/internal/application/dispatcher"
	"github.com/garyjia/grc-approval/internal/domain/event"
)

type fakeConn struct {
	mu       sync.Mutex
	subjects []string
	payloads [][]byte
	err      error
	drained  bool
}

func (c *fakeConn) Publish(subj string, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.subjects = append(c.subjects, subj)
	c.payloads = append(c.payloads, data)
	return nil
}

func (c *fakeConn) Drain() error {
	c.drained = true
	return nil
}

func (c *fakeConn) IsClosed() bool { return c.drained }

func TestNATSPublisher_Publish(t *testing.T) {
	conn := &fakeConn{}
	p := newNATSPublisher(conn, "", zap.NewNop())

	evt := event.NewEvent(event.TypeApprovalCreated, "i1", map[string]interface{}{"step": 0}).ForApproval("a1", "alice")
	require.NoError(t, p.Publish(context.Background(), evt))

	require.Len(t, conn.subjects, 1)
	assert.Equal(t, "grc.workflow.approval.created", conn.subjects[0])

	var decoded event.Event
	require.NoError(t, json.Unmarshal(conn.payloads[0], &decoded))
	assert.Equal(t, evt.ID, decoded.ID)
	assert.Equal(t, "alice", decoded.ApproverID)

	conn.err = errors.New("connection closed")
	assert.Error(t, p.Publish(context.Background(), evt))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, p.Publish(ctx, evt), context.Canceled)

	require.NoError(t, p.Close())
	assert.True(t, conn.drained)
	require.NoError(t, p.Close())
}

func TestForwarder(t *testing.T) {
	d := dispatcher.NewDispatcher()
	defer d.Close()
	conn := &fakeConn{}
	f := NewForwarder(newNATSPublisher(conn, "audit", zap.NewNop()), d, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, f.Start(ctx))
	assert.Error(t, f.Start(ctx))

	require.NoError(t, d.Dispatch(ctx, event.NewEvent(event.TypeInstanceCreated, "i1", nil)))
	require.NoError(t, d.Dispatch(ctx, event.NewEvent(event.TypeInstanceStale, "i2", nil)))
	assert.Equal(t, []string{"audit.instance.created", "audit.instance.stale"}, conn.subjects)

	require.NoError(t, f.Stop())
	assert.True(t, conn.drained)
	assert.Empty(t, d.ListHandlers(dispatcher.AnyType))
}
