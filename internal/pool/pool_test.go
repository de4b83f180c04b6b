package pool

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/distobj/dobj/internal/config"
	"github.com/distobj/dobj/internal/hostport"
	"github.com/distobj/dobj/internal/transport"
	"github.com/distobj/dobj/internal/wire"
)

func testConfig() config.Config {
	cfg := config.Default()
	cfg.DialTimeout = 500 * time.Millisecond
	return cfg
}

// acceptAndUpgrade starts a bare listener that upgrades every accepted
// socket to a Channel and leaves it open, returning the bound port.
func acceptAndUpgrade(t *testing.T) uint16 {
	t.Helper()
	ln, err := transport.Listen(0, nil)
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go ln.Serve(context.Background(), func(sock *transport.Socket) {
		ch, err := sock.Upgrade(4096)
		if err != nil {
			return
		}
		go func() {
			for {
				if _, err := ch.ReceiveFrame(); err != nil {
					return
				}
			}
		}()
	})
	return ln.SocketPort().Port()
}

func TestFetchDialsThenReleaseRepopulatesIdle(t *testing.T) {
	port := acceptAndUpgrade(t)
	p := New(testConfig(), nil, nil)
	defer p.Close()

	hp := hostport.ForPort(port)
	assert.Equal(t, 0, p.Count(hp))

	ch, err := p.Fetch(context.Background(), hp)
	require.NoError(t, err)
	assert.Equal(t, 0, p.Count(hp))

	p.Release(ch)
	assert.Equal(t, 1, p.Count(hp))
}

func TestFetchReusesIdleChannel(t *testing.T) {
	port := acceptAndUpgrade(t)
	p := New(testConfig(), nil, nil)
	defer p.Close()

	hp := hostport.ForPort(port)
	ch1, err := p.Fetch(context.Background(), hp)
	require.NoError(t, err)
	p.Release(ch1)

	ch2, err := p.Fetch(context.Background(), hp)
	require.NoError(t, err)
	assert.Same(t, ch1, ch2)
	assert.Equal(t, 0, p.Count(hp))
}

func TestReleaseOfClosedChannelIsDropped(t *testing.T) {
	port := acceptAndUpgrade(t)
	p := New(testConfig(), nil, nil)
	defer p.Close()

	hp := hostport.ForPort(port)
	ch, err := p.Fetch(context.Background(), hp)
	require.NoError(t, err)
	ch.Close()

	p.Release(ch)
	assert.Equal(t, 0, p.Count(hp))
}

func TestRemoveAllDropsIdleChannels(t *testing.T) {
	port := acceptAndUpgrade(t)
	p := New(testConfig(), nil, nil)
	defer p.Close()

	hp := hostport.ForPort(port)
	ch, err := p.Fetch(context.Background(), hp)
	require.NoError(t, err)
	p.Release(ch)
	require.Equal(t, 1, p.Count(hp))

	p.RemoveAll(hp)
	assert.Equal(t, 0, p.Count(hp))
	assert.True(t, ch.Closed())
}

func TestFetchNamedTimesOutWithoutRegistration(t *testing.T) {
	cfg := testConfig()
	cfg.DialTimeout = 100 * time.Millisecond
	p := New(cfg, nil, nil)
	defer p.Close()

	_, err := p.Fetch(context.Background(), hostport.ForName("svc-nobody"))
	assert.ErrorIs(t, err, wire.ErrNameUnavailable)
}

func TestFetchNamedSucceedsAfterReverseRegistration(t *testing.T) {
	cfg := testConfig()
	cfg.DialTimeout = 2 * time.Second
	p := New(cfg, nil, nil)
	defer p.Close()

	svcPort, err := p.ServiceConnectionPort()
	require.NoError(t, err)

	result := make(chan error, 1)
	go func() {
		sock, err := transport.Connect(svcPort.Port(), time.Second)
		if err != nil {
			result <- err
			return
		}
		ch, err := sock.Upgrade(4096)
		if err != nil {
			result <- err
			return
		}
		result <- ch.SendFrame([]byte("svc-42"))
	}()

	ch, err := p.Fetch(context.Background(), hostport.ForName("svc-42"))
	require.NoError(t, err)
	require.NoError(t, <-result)
	assert.NotNil(t, ch)
}
