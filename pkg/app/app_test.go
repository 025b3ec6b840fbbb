package app

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blaubaer/baby-monitor/pkg/audio"
	"github.com/blaubaer/baby-monitor/pkg/discovery"
	"github.com/blaubaer/baby-monitor/pkg/session"
	"github.com/blaubaer/baby-monitor/pkg/signal"
)

func TestApp_FlagsOverrideConfigurationFile(t *testing.T) {
	fn := filepath.Join(t.TempDir(), "configuration.yml")
	require.NoError(t, os.WriteFile(fn, []byte("serviceName: FromFile\ninitialPort: 12000\n"), 0600))

	instance := newTestApp(t)
	cmd := kingpin.New("test", "")
	instance.SetupConfiguration(cmd)
	_, err := cmd.Parse([]string{"-c", fn, "--serviceName", "FromFlag", "--signal", "log"})
	require.NoError(t, err)

	require.NoError(t, instance.Initialize())
	defer func() { _ = instance.Dispose() }()

	assert.Equal(t, "FromFlag", instance.Configuration().ServiceName)
	assert.Equal(t, 12000, instance.Configuration().InitialPort)
	assert.Equal(t, signal.Types{signal.TypeLog}, instance.Configuration().Signal.Types)
}

func TestApp_RunAdvertisesUntilCancelled(t *testing.T) {
	fn := filepath.Join(t.TempDir(), "configuration.yml")
	registrar := &fakeRegistrar{}

	instance := newTestApp(t)
	instance.Registrar = registrar
	instance.ConfigurationFile = fn
	instance.configFromFlags.ServiceName = "Nursery"

	require.NoError(t, instance.Initialize())
	defer func() { _ = instance.Dispose() }()

	_, err := os.Stat(fn)
	assert.NoError(t, err, "absent configuration is saved")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- instance.Run(ctx) }()

	require.Eventually(t, func() bool {
		s := instance.Controller().Status()
		return s.State == session.StateAdvertising && s.ServiceName == "Nursery"
	}, 2*time.Second, time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("app did not stop")
	}

	assert.Equal(t, session.StateIdle, instance.Controller().State())
	assert.Equal(t, 0, registrar.liveCount())
}

func TestApp_RunFailsIfNotInitialized(t *testing.T) {
	assert.EqualError(t, NewApp().Run(context.Background()), "not initialized")
}

func TestApp_InitializeRejectsIllegalConfiguration(t *testing.T) {
	instance := newTestApp(t)
	instance.configFromFlags.InitialPort = 99999

	assert.EqualError(t, instance.Initialize(), "illegal initial port: 99999")
}

func newTestApp(t testing.TB) *App {
	result := NewApp()
	result.ConfigurationFile = filepath.Join(t.TempDir(), "configuration.yml")
	result.Source = fakeSource{}
	result.Registrar = &fakeRegistrar{}
	result.Binder = loopbackBinder{}
	return result
}

type fakeSource struct{}

func (fakeSource) OpenCapture(audio.Format) (audio.Capture, error) {
	return nil, errors.New("no microphone")
}

type fakeRegistrar struct {
	live  int
	mutex sync.Mutex
}

func (this *fakeRegistrar) Register(requested discovery.Service) (discovery.Published, error) {
	this.mutex.Lock()
	defer this.mutex.Unlock()
	this.live++
	return &fakePublished{requested, this}, nil
}

func (this *fakeRegistrar) liveCount() int {
	this.mutex.Lock()
	defer this.mutex.Unlock()
	return this.live
}

type fakePublished struct {
	service discovery.Service
	owner   *fakeRegistrar
}

func (this *fakePublished) Service() discovery.Service { return this.service }

func (this *fakePublished) Shutdown() {
	this.owner.mutex.Lock()
	defer this.owner.mutex.Unlock()
	this.owner.live--
}

type loopbackBinder struct{}

func (loopbackBinder) Bind(context.Context, int) (net.Listener, error) {
	return net.Listen("tcp", "127.0.0.1:0")
}
