package server

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/npinheiro/converse/internal/stats"
	"github.com/npinheiro/converse/internal/testutil"
	"github.com/npinheiro/converse/internal/types"
)

const testTimeout = 2 * time.Second

// newTestClient builds an admitted client with no transport. Handlers
// only touch the send buffer, so tests read queued events straight off
// the channel.
func newTestClient(t *testing.T, userId int64) *Client {
	t.Helper()
	c := newPendingClient(t, userId)
	c.setState(StateAdmitted)
	return c
}

// newPendingClient builds a client that has not gone through admission
// yet, for tests that drive Admit themselves.
func newPendingClient(t *testing.T, userId int64) *Client {
	t.Helper()
	return NewClient(types.User{
		Id:       userId,
		Username: fmt.Sprintf("user%d", userId),
	}, nil, nil, testutil.TestLogger(t))
}

func newTestStats() *stats.MockStatsUpdater {
	m := &stats.MockStatsUpdater{}
	m.On("Incr", mock.Anything).Maybe()
	m.On("Decr", mock.Anything).Maybe()
	m.On("RegisterMetric", mock.Anything).Maybe()
	return m
}

func recvEvent(t *testing.T, c *Client) *ServerEvent {
	t.Helper()
	select {
	case ev := <-c.send:
		return ev
	case <-time.After(testTimeout):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func assertNoEvent(t *testing.T, c *Client) {
	t.Helper()
	select {
	case ev := <-c.send:
		t.Fatalf("unexpected event queued: %s", ev.Event)
	default:
	}
}

func recvError(t *testing.T, c *Client) *Error {
	t.Helper()
	ev := recvEvent(t, c)
	if ev.Event != EventError {
		t.Fatalf("expected error event, got %s", ev.Event)
	}
	return ev.Data.(*Error)
}
