package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/distobj/dobj/internal/config"
	"github.com/distobj/dobj/internal/executor"
	"github.com/distobj/dobj/internal/hostport"
	"github.com/distobj/dobj/internal/pool"
	"github.com/distobj/dobj/internal/wire"
)

func testConfig() config.Config {
	cfg := config.Default()
	cfg.DialTimeout = time.Second
	cfg.RequestTimeout = 2 * time.Second
	return cfg
}

type sideEnv struct {
	pool *pool.ChannelPool
	exec *executor.Executor
}

func newSide(cfg config.Config) *sideEnv {
	p := pool.New(cfg, nil, nil)
	exec := executor.New(executor.NewSerialQueue(), nil)
	return &sideEnv{pool: p, exec: exec}
}

func TestRootObjectAndObjectAliveEndToEnd(t *testing.T) {
	cfg := testConfig()
	host := newSide(cfg)
	defer host.pool.Close()

	hs, err := New(cfg, host.pool, host.exec, "root-object", nil, nil, nil)
	require.NoError(t, err)
	defer hs.Invalidate()

	client := newSide(cfg)
	defer client.pool.Close()
	cs := NewClientService(cfg, client.pool, client.exec)

	hp := hostport.ForPort(hs.SocketPort().Port())
	ctx := context.Background()

	addr, err := cs.RootObject(ctx, hp, hs.UUID())
	require.NoError(t, err)
	assert.Equal(t, hs.RootAddress(), addr)

	alive, err := cs.ObjectAlive(ctx, hp, hs.UUID(), addr)
	require.NoError(t, err)
	assert.True(t, alive)

	alive, err = cs.ObjectAlive(ctx, hp, hs.UUID(), addr+999)
	require.NoError(t, err)
	assert.False(t, alive)

	assert.Equal(t, 1, client.pool.Count(hp))
}

func TestInvokeRegistersProxyForLiveObjectReturn(t *testing.T) {
	cfg := testConfig()
	host := newSide(cfg)
	defer host.pool.Close()

	invoker := func(target interface{}, req wire.InvocationRequest) (wire.InvocationResponse, error) {
		return wire.InvocationResponse{ReturnIsProxy: true, ProxyAddress: 99}, nil
	}
	hs, err := New(cfg, host.pool, host.exec, "root", invoker, nil, nil)
	require.NoError(t, err)
	defer hs.Invalidate()

	client := newSide(cfg)
	defer client.pool.Close()
	cs := NewClientService(cfg, client.pool, client.exec)

	hp := hostport.ForPort(hs.SocketPort().Port())
	out, err := cs.Invoke(context.Background(), hp, hs.UUID(), hs.RootAddress(), "next", nil)
	require.NoError(t, err)
	assert.True(t, out.ReturnIsProxy)
	assert.Equal(t, uint64(99), out.ProxyAddress)

	p, ok := cs.Proxy(ProxyKey{RemoteAddress: 99, ServiceUUID: hs.UUID()})
	require.True(t, ok)
	assert.Equal(t, hp, p.HostPort)

	cs.ReleaseProxy(ProxyKey{RemoteAddress: 99, ServiceUUID: hs.UUID()})
	_, ok = cs.Proxy(ProxyKey{RemoteAddress: 99, ServiceUUID: hs.UUID()})
	assert.False(t, ok)
}

func TestServiceUUIDMismatchRejected(t *testing.T) {
	cfg := testConfig()
	host := newSide(cfg)
	defer host.pool.Close()

	hs, err := New(cfg, host.pool, host.exec, "root", nil, nil, nil)
	require.NoError(t, err)
	defer hs.Invalidate()

	client := newSide(cfg)
	defer client.pool.Close()
	cs := NewClientService(cfg, client.pool, client.exec)

	hp := hostport.ForPort(hs.SocketPort().Port())
	_, err = cs.RootObject(context.Background(), hp, "wrong-uuid")
	assert.Error(t, err)
}

func TestInvalidateClosesListenerAndDropsIdleChannels(t *testing.T) {
	cfg := testConfig()
	host := newSide(cfg)
	defer host.pool.Close()

	hs, err := New(cfg, host.pool, host.exec, "root", nil, nil, nil)
	require.NoError(t, err)

	client := newSide(cfg)
	defer client.pool.Close()
	cs := NewClientService(cfg, client.pool, client.exec)
	hp := hostport.ForPort(hs.SocketPort().Port())

	_, err = cs.RootObject(context.Background(), hp, hs.UUID())
	require.NoError(t, err)

	require.NoError(t, hs.Invalidate())
	require.NoError(t, hs.Invalidate()) // idempotent

	_, ok := hs.Lookup(hs.RootAddress())
	assert.False(t, ok)
}
