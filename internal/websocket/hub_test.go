package websocket

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func startHub(t *testing.T) *Hub {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	h := NewHub(ctx, zap.NewNop(), nil, "sponsorship:")
	go h.Run()
	return h
}

func receive(t *testing.T, c *Client) []byte {
	t.Helper()
	select {
	case msg, ok := <-c.Send:
		require.True(t, ok, "send channel closed")
		return msg
	case <-time.After(time.Second):
		t.Fatal("no message delivered")
		return nil
	}
}

func TestHub_RoutesByAddress(t *testing.T) {
	h := startHub(t)
	alice := &Client{Address: "0xAAaa000000000000000000000000000000000001", Send: make(chan []byte, 4)}
	bob := &Client{Address: "0xbbbb000000000000000000000000000000000002", Send: make(chan []byte, 4)}
	h.Register <- alice
	h.Register <- bob

	h.Deliver("0xaaaa000000000000000000000000000000000001", []byte(`{"type":"sponsorship.confirmed"}`))
	assert.JSONEq(t, `{"type":"sponsorship.confirmed"}`, string(receive(t, alice)))

	h.Deliver("0xBBBB000000000000000000000000000000000002", []byte(`{"n":2}`))
	assert.JSONEq(t, `{"n":2}`, string(receive(t, bob)))
	assert.Empty(t, alice.Send)
}

func TestHub_UnregisterClosesSend(t *testing.T) {
	h := startHub(t)
	c := &Client{Address: "0x01", Send: make(chan []byte, 1)}
	h.Register <- c
	h.Unregister <- c

	select {
	case _, ok := <-c.Send:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("send channel not closed")
	}
}

func TestHub_DropsSlowClient(t *testing.T) {
	h := startHub(t)
	c := &Client{Address: "0x01", Send: make(chan []byte, 1)}
	h.Register <- c

	h.Deliver("0x01", []byte("1"))
	h.Deliver("0x01", []byte("2"))

	// the hub handles messages in order, so once the sentinel arrives both
	// deliveries above have been processed
	sentinel := &Client{Address: "0x02", Send: make(chan []byte, 1)}
	h.Register <- sentinel
	h.Deliver("0x02", []byte("ok"))
	receive(t, sentinel)

	assert.Equal(t, []byte("1"), receive(t, c))
	select {
	case _, ok := <-c.Send:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("slow client not dropped")
	}
}
