package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServer_RetriesNextPortOnBindFailure(t *testing.T) {
	binder := newFakeBinder(10000, 10001, 10002, 10003)
	ops := &opRecorder{}
	instance := &Server{Binder: binder, Advertiser: &fakeAdvertiser{ops: ops}}

	h := instance.Start(context.Background(), 10000, streamUntilClosed(ops), nil)
	defer instance.Stop(h)

	ops.await(t, "register:10004")
	assert.Equal(t, []int{10000, 10001, 10002, 10003, 10004}, binder.attemptedPorts())
}

func TestServer_LifecycleUnregistersBeforeStreamingAndRebindsSamePortAfterDisconnect(t *testing.T) {
	binder := newFakeBinder(10000)
	ops := &opRecorder{}
	advertiser := &fakeAdvertiser{ops: ops}
	observer := &recordingObserver{}
	instance := &Server{Binder: binder, Advertiser: advertiser}

	h := instance.Start(context.Background(), 10000, streamUntilClosed(ops), observer)

	ops.await(t, "register:10001")
	assert.Equal(t, []int{10000, 10001}, binder.attemptedPorts())

	conn, err := net.Dial("tcp", binder.lastAddr())
	require.NoError(t, err)
	ops.await(t, "stream")
	assert.Equal(t, []string{"register:10001", "unregister", "stream"}, ops.all())

	require.NoError(t, conn.Close())
	ops.await(t, "streamEnded")
	ops.awaitCount(t, "register:10001", 2)

	assert.Equal(t, []int{10000, 10001, 10001}, binder.attemptedPorts(), "same port is bound again after a disconnect")
	assert.Equal(t, []string{"register:10001", "unregister", "stream", "streamEnded", "register:10001"}, ops.all())

	instance.Stop(h)

	assert.False(t, advertiser.isLive())
	assert.Equal(t, 0, advertiser.doubleRegistrations())
	_, err = net.DialTimeout("tcp", binder.lastAddr(), 100*time.Millisecond)
	assert.Error(t, err, "listener has to be closed")

	assert.Equal(t, []string{"bindFailed:10000", "listening:10001", "connected:10001", "disconnected:10001", "listening:10001"}, observer.all())
}

func TestServer_ClosesListenerWhileStreaming(t *testing.T) {
	binder := newFakeBinder()
	ops := &opRecorder{}
	instance := &Server{Binder: binder, Advertiser: &fakeAdvertiser{ops: ops}}

	h := instance.Start(context.Background(), 10000, streamUntilClosed(ops), nil)
	defer instance.Stop(h)
	ops.await(t, "register:10000")

	addr := binder.lastAddr()
	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()
	ops.await(t, "stream")

	_, err = net.DialTimeout("tcp", addr, 100*time.Millisecond)
	assert.Error(t, err, "a second parent must not be accepted while streaming")
}

func TestServer_StopOfStaleHandleOnlyReleasesItsOwnSockets(t *testing.T) {
	binder := newFakeBinder()
	ops := &opRecorder{}
	advertiser := &fakeAdvertiser{ops: ops}
	instance := &Server{Binder: binder, Advertiser: advertiser}

	first := instance.Start(context.Background(), 10000, streamUntilClosed(ops), nil)
	ops.await(t, "register:10000")

	second := instance.Start(context.Background(), 20000, streamUntilClosed(ops), nil)
	defer instance.Stop(second)
	ops.await(t, "register:20000")
	current := binder.lastAddr()

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		instance.Stop(first)
	}()
	assertClosed(t, stopped)
	assertClosed(t, first.Done())

	assert.True(t, advertiser.isLive(), "advertisement of the current loop has to stay")

	conn, err := net.Dial("tcp", current)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()
	ops.await(t, "stream")
}

func TestServer_ResolvesEphemeralPortOnce(t *testing.T) {
	binder := newFakeBinder()
	ops := &opRecorder{}
	instance := &Server{Binder: binder, Advertiser: &fakeAdvertiser{ops: ops}}

	h := instance.Start(context.Background(), 0, streamUntilClosed(ops), nil)
	defer instance.Stop(h)

	require.Eventually(t, func() bool { return binder.lastAddr() != "" }, time.Second, time.Millisecond)
	port := binder.lastAddr()[strings.LastIndex(binder.lastAddr(), ":")+1:]
	ops.await(t, "register:"+port)

	conn, err := net.Dial("tcp", binder.lastAddr())
	require.NoError(t, err)
	ops.await(t, "stream")
	require.NoError(t, conn.Close())
	ops.awaitCount(t, "register:"+port, 2)

	attempts := binder.attemptedPorts()
	require.Len(t, attempts, 2)
	assert.Equal(t, 0, attempts[0])
	assert.Equal(t, port, strconv.Itoa(attempts[1]), "the resolved port is bound again")
}

func TestServer_StopWhileAdvertising(t *testing.T) {
	binder := newFakeBinder()
	ops := &opRecorder{}
	advertiser := &fakeAdvertiser{ops: ops}
	instance := &Server{Binder: binder, Advertiser: advertiser}

	h := instance.Start(context.Background(), 10000, streamUntilClosed(ops), nil)
	ops.await(t, "register:10000")

	instance.Stop(h)

	assertClosed(t, h.Done())
	assert.False(t, advertiser.isLive())
	_, err := net.DialTimeout("tcp", binder.lastAddr(), 100*time.Millisecond)
	assert.Error(t, err)
	assert.Equal(t, []int{10000}, binder.attemptedPorts())
}

func TestServer_StopWhileStreaming(t *testing.T) {
	binder := newFakeBinder()
	ops := &opRecorder{}
	advertiser := &fakeAdvertiser{ops: ops}
	instance := &Server{Binder: binder, Advertiser: advertiser}

	h := instance.Start(context.Background(), 10000, streamUntilClosed(ops), nil)
	ops.await(t, "register:10000")

	conn, err := net.Dial("tcp", binder.lastAddr())
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()
	ops.await(t, "stream")

	instance.Stop(h)

	ops.await(t, "streamEnded")
	assert.False(t, advertiser.isLive())
	assert.Equal(t, []string{"register:10000", "unregister", "stream", "streamEnded"}, ops.all(), "no re-advertising after stop")

	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	_, err = conn.Read(make([]byte, 1))
	assert.Error(t, err, "server side of the connection has to be closed")
}

func TestServer_StopWhileBindKeepsFailing(t *testing.T) {
	binder := &fakeBinder{failAll: true}
	instance := &Server{Binder: binder, Advertiser: &fakeAdvertiser{ops: &opRecorder{}}, RetryDelay: time.Millisecond}

	h := instance.Start(context.Background(), 10000, nil, nil)
	require.Eventually(t, func() bool { return len(binder.attemptedPorts()) > 3 }, time.Second, time.Millisecond)

	instance.Stop(h)
	assertClosed(t, h.Done())

	attempts := binder.attemptedPorts()
	for i, port := range attempts {
		assert.Equal(t, 10000+i, port)
	}
}

func TestServer_RestartAfterStop(t *testing.T) {
	binder := newFakeBinder()
	ops := &opRecorder{}
	advertiser := &fakeAdvertiser{ops: ops}
	instance := &Server{Binder: binder, Advertiser: advertiser}

	first := instance.Start(context.Background(), 10000, streamUntilClosed(ops), nil)
	ops.awaitCount(t, "register:10000", 1)
	instance.Stop(first)

	second := instance.Start(context.Background(), 10000, streamUntilClosed(ops), nil)
	ops.awaitCount(t, "register:10000", 2)
	instance.Stop(second)

	assert.False(t, advertiser.isLive())
	assert.Equal(t, 0, advertiser.doubleRegistrations())
}

func TestNextPort(t *testing.T) {
	assert.Equal(t, 10001, nextPort(10000, 10000))
	assert.Equal(t, 10000, nextPort(65535, 10000))
}

func TestTCPBinder_ClassifiesPortInUse(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("bind errors are only classified on unix platforms")
	}

	occupied, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer func() { _ = occupied.Close() }()

	port := occupied.Addr().(*net.TCPAddr).Port
	_, err = TCPBinder{Host: "127.0.0.1"}.Bind(context.Background(), port)
	require.Error(t, err)

	var bErr *BindError
	require.True(t, errors.As(err, &bErr))
	assert.Equal(t, port, bErr.Port)
	assert.Equal(t, BindErrorInUse, bErr.Kind)
}

func streamUntilClosed(ops *opRecorder) Handler {
	return func(_ context.Context, conn net.Conn) error {
		ops.add("stream")
		defer ops.add("streamEnded")
		_, err := io.Copy(io.Discard, conn)
		return err
	}
}

func assertClosed(t testing.TB, c <-chan struct{}) {
	t.Helper()
	select {
	case <-c:
	case <-time.After(time.Second):
		t.Fatal("channel was not closed")
	}
}

type fakeBinder struct {
	failing map[int]bool
	failAll bool

	attempts []int
	addr     string
	mutex    sync.Mutex
}

func newFakeBinder(failing ...int) *fakeBinder {
	result := &fakeBinder{failing: map[int]bool{}}
	for _, port := range failing {
		result.failing[port] = true
	}
	return result
}

func (this *fakeBinder) Bind(_ context.Context, port int) (net.Listener, error) {
	this.mutex.Lock()
	defer this.mutex.Unlock()

	this.attempts = append(this.attempts, port)
	if this.failAll || this.failing[port] {
		return nil, &BindError{Port: port, Kind: BindErrorInUse, Err: fmt.Errorf("port %d in use", port)}
	}
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}
	this.addr = ln.Addr().String()
	return ln, nil
}

func (this *fakeBinder) attemptedPorts() []int {
	this.mutex.Lock()
	defer this.mutex.Unlock()
	return append([]int(nil), this.attempts...)
}

func (this *fakeBinder) lastAddr() string {
	this.mutex.Lock()
	defer this.mutex.Unlock()
	return this.addr
}

type fakeAdvertiser struct {
	ops *opRecorder

	live    bool
	doubles int
	mutex   sync.Mutex
}

func (this *fakeAdvertiser) Register(port int) {
	this.mutex.Lock()
	defer this.mutex.Unlock()
	if this.live {
		this.doubles++
	}
	this.live = true
	this.ops.add(fmt.Sprintf("register:%d", port))
}

func (this *fakeAdvertiser) Unregister() {
	this.mutex.Lock()
	defer this.mutex.Unlock()
	if !this.live {
		return
	}
	this.live = false
	this.ops.add("unregister")
}

func (this *fakeAdvertiser) isLive() bool {
	this.mutex.Lock()
	defer this.mutex.Unlock()
	return this.live
}

func (this *fakeAdvertiser) doubleRegistrations() int {
	this.mutex.Lock()
	defer this.mutex.Unlock()
	return this.doubles
}

type opRecorder struct {
	ops   []string
	mutex sync.Mutex
}

func (this *opRecorder) add(op string) {
	this.mutex.Lock()
	defer this.mutex.Unlock()
	this.ops = append(this.ops, op)
}

func (this *opRecorder) all() []string {
	this.mutex.Lock()
	defer this.mutex.Unlock()
	return append([]string(nil), this.ops...)
}

func (this *opRecorder) count(op string) (n int) {
	for _, candidate := range this.all() {
		if candidate == op {
			n++
		}
	}
	return n
}

func (this *opRecorder) await(t testing.TB, op string) {
	t.Helper()
	this.awaitCount(t, op, 1)
}

func (this *opRecorder) awaitCount(t testing.TB, op string, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return this.count(op) >= n
	}, 2*time.Second, time.Millisecond, "waiting for %dx %q; got: %v", n, op, this.all())
}

type recordingObserver struct {
	opRecorder
}

func (this *recordingObserver) OnBindFailed(port int, _ error) {
	this.add(fmt.Sprintf("bindFailed:%d", port))
}

func (this *recordingObserver) OnListening(port int) {
	this.add(fmt.Sprintf("listening:%d", port))
}

func (this *recordingObserver) OnConnected(port int, _ net.Addr) {
	this.add(fmt.Sprintf("connected:%d", port))
}

func (this *recordingObserver) OnDisconnected(port int, _ error) {
	this.add(fmt.Sprintf("disconnected:%d", port))
}
