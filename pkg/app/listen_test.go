package app

import (
	"bytes"
	"context"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blaubaer/baby-monitor/pkg/discovery"
)

func TestListen_WritesStreamToFile(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer func() { _ = ln.Close() }()
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		_, _ = conn.Write(bytes.Repeat([]byte{1, 2}, 50))
		_ = conn.Close()
	}()

	port := ln.Addr().(*net.TCPAddr).Port
	browser := &onceBrowser{entry: discovery.Entry{
		Service:   discovery.Service{Name: "Nursery", Type: discovery.ServiceType, Port: port},
		Addresses: []net.IP{net.IPv4(127, 0, 0, 1)},
	}}

	fn := filepath.Join(t.TempDir(), "stream.pcm")
	instance := &Listen{Browser: browser}
	instance.conf.Output = fn
	instance.conf.ReconnectDelay = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- instance.Run(ctx) }()

	require.Eventually(t, func() bool { return browser.count() >= 2 }, 2*time.Second, time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	content, err := os.ReadFile(fn)
	require.NoError(t, err)
	assert.Equal(t, bytes.Repeat([]byte{1, 2}, 50), content)
	assert.Equal(t, "127.0.0.1:"+strconv.Itoa(port), browser.entry.Address())
}

func TestListen_RequiresOutput(t *testing.T) {
	instance := &Listen{}
	assert.ErrorIs(t, instance.Run(context.Background()), ErrNoOutput)
}

type onceBrowser struct {
	entry discovery.Entry

	lookups int
	mutex   sync.Mutex
}

func (this *onceBrowser) Lookup(ctx context.Context, _, _ string) (discovery.Entry, error) {
	this.mutex.Lock()
	this.lookups++
	first := this.lookups == 1
	this.mutex.Unlock()

	if first {
		return this.entry, nil
	}
	<-ctx.Done()
	return discovery.Entry{}, ctx.Err()
}

func (this *onceBrowser) count() int {
	this.mutex.Lock()
	defer this.mutex.Unlock()
	return this.lookups
}
