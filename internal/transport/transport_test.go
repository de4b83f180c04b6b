package transport

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListenConnectUpgradeRoundTrip(t *testing.T) {
	ln, err := Listen(0, nil)
	require.NoError(t, err)
	defer ln.Close()

	var wg sync.WaitGroup
	wg.Add(1)
	serverGotFrame := make(chan []byte, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		defer wg.Done()
		ln.Serve(ctx, func(sock *Socket) {
			ch, err := sock.Upgrade(4096)
			if err != nil {
				return
			}
			payload, err := ch.ReceiveFrame()
			if err == nil {
				serverGotFrame <- payload
			}
		})
	}()

	sock, err := Connect(ln.SocketPort().Port(), time.Second)
	require.NoError(t, err)
	ch, err := sock.Upgrade(4096)
	require.NoError(t, err)
	require.NoError(t, ch.SendFrame([]byte("ping")))

	select {
	case payload := <-serverGotFrame:
		assert.Equal(t, []byte("ping"), payload)
	case <-time.After(2 * time.Second):
		t.Fatal("server never received the frame")
	}

	ch.Close()
	cancel()
	wg.Wait()
}

func TestSocketUpgradeConsumedOnce(t *testing.T) {
	ln, err := Listen(0, nil)
	require.NoError(t, err)
	defer ln.Close()

	sock, err := Connect(ln.SocketPort().Port(), time.Second)
	require.NoError(t, err)

	_, err = sock.Upgrade(4096)
	require.NoError(t, err)

	_, err = sock.Upgrade(4096)
	assert.ErrorIs(t, err, ErrSocketConsumed)
}

func TestSocketDropIsIdempotent(t *testing.T) {
	ln, err := Listen(0, nil)
	require.NoError(t, err)
	defer ln.Close()

	sock, err := Connect(ln.SocketPort().Port(), time.Second)
	require.NoError(t, err)

	require.NoError(t, sock.Drop())
	require.NoError(t, sock.Drop())
}
