package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/echocat/slf4g"
	"github.com/gorilla/websocket"

	"github.com/blaubaer/baby-monitor/pkg/session"
	"github.com/blaubaer/baby-monitor/pkg/signal"
	"github.com/blaubaer/baby-monitor/pkg/volume"
)

const (
	defaultImageWidth  = 400
	defaultImageHeight = 200
	maxImageSize       = 4096
	clientQueueSize    = 16
)

// Web serves the current status and the volume graph over HTTP and pushes
// every change to connected websocket clients.
type Web struct {
	conf     *Configuration
	analyzer *volume.Analyzer

	server   *http.Server
	listener net.Listener

	status  atomic.Pointer[session.Status]
	clients map[*client]struct{}
	mutex   sync.RWMutex

	upgrader websocket.Upgrader
}

// Message is what is sent to websocket clients.
type Message struct {
	Type      string          `json:"type"`
	Status    *session.Status `json:"status,omitempty"`
	Volume    float64         `json:"volume,omitempty"`
	MaxVolume float64         `json:"maxVolume,omitempty"`
}

const (
	MessageTypeStatus = "status"
	MessageTypeVolume = "volume"
)

func (this *Web) Initialize(conf *Configuration, analyzer *volume.Analyzer) error {
	this.conf = conf
	this.analyzer = analyzer
	this.clients = make(map[*client]struct{})
	this.upgrader = websocket.Upgrader{
		CheckOrigin: func(*http.Request) bool { return true },
	}

	listen := conf.Listen
	if listen == "" {
		listen = DefaultListen
	}
	ln, err := net.Listen("tcp", listen)
	if err != nil {
		return fmt.Errorf("cannot listen for web signal at %q: %w", listen, err)
	}
	this.listener = ln
	this.server = &http.Server{
		Handler:           this.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := this.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).
				Error("Web signal stopped unexpectedly.")
		}
	}()

	log.With("address", ln.Addr()).
		Info("Web signal available.")
	return nil
}

// Addr returns the address the web signal is actually listening at.
func (this *Web) Addr() net.Addr {
	if ln := this.listener; ln != nil {
		return ln.Addr()
	}
	return nil
}

func (this *Web) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/status", this.handleStatus)
	mux.HandleFunc("/volume.png", this.handleVolume)
	mux.HandleFunc("/ws", this.handleWebsocket)
	return mux
}

func (this *Web) Ensure(ctx signal.Context) error {
	status := ctx.Status()
	this.status.Store(&status)
	this.broadcast(Message{Type: MessageTypeStatus, Status: &status})
	return nil
}

func (this *Web) Update(ctx signal.Context) error {
	a := ctx.Volume()
	if a == nil || ctx.Status().State != session.StateStreaming {
		return nil
	}
	this.broadcast(Message{
		Type:      MessageTypeVolume,
		Volume:    a.Volume(),
		MaxVolume: a.MaxVolume(),
	})
	return nil
}

func (this *Web) Dispose() (rErr error) {
	this.mutex.Lock()
	clients := this.clients
	this.clients = make(map[*client]struct{})
	this.mutex.Unlock()

	for c := range clients {
		c.close()
	}

	if s := this.server; s != nil {
		ctx, cancel := context.WithTimeout(context.Background(), DefaultWriteTimeout)
		defer cancel()
		if err := s.Shutdown(ctx); err != nil {
			rErr = fmt.Errorf("cannot shutdown web signal: %w", err)
		}
		this.server = nil
		this.listener = nil
	}
	return rErr
}

func (this *Web) GetType() signal.Type {
	return signal.TypeWeb
}

func (this *Web) currentStatus() session.Status {
	if v := this.status.Load(); v != nil {
		return *v
	}
	return session.Status{State: session.StateIdle}
}

func (this *Web) handleStatus(rw http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet && req.Method != http.MethodHead {
		http.Error(rw, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	status := this.currentStatus()
	rw.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(rw).Encode(statusResponse{status, status.Text(), status.AddressText()}); err != nil {
		log.WithError(err).
			Debug("Cannot write status response.")
	}
}

type statusResponse struct {
	session.Status
	Text        string `json:"text"`
	AddressText string `json:"addressText"`
}

func (this *Web) handleVolume(rw http.ResponseWriter, req *http.Request) {
	if this.analyzer == nil {
		http.Error(rw, "volume not available", http.StatusServiceUnavailable)
		return
	}
	width, err := sizeParameter(req, "width", defaultImageWidth)
	if err != nil {
		http.Error(rw, err.Error(), http.StatusBadRequest)
		return
	}
	height, err := sizeParameter(req, "height", defaultImageHeight)
	if err != nil {
		http.Error(rw, err.Error(), http.StatusBadRequest)
		return
	}

	canvas := volume.NewImageCanvas(width, height)
	this.analyzer.Render(canvas)

	rw.Header().Set("Content-Type", "image/png")
	rw.Header().Set("Cache-Control", "no-store")
	if err := canvas.EncodePNG(rw); err != nil {
		log.WithError(err).
			Debug("Cannot write volume image.")
	}
}

func sizeParameter(req *http.Request, name string, def int) (int, error) {
	plain := req.URL.Query().Get(name)
	if plain == "" {
		return def, nil
	}
	v, err := strconv.Atoi(plain)
	if err != nil || v <= 0 || v > maxImageSize {
		return 0, fmt.Errorf("illegal %s: %q", name, plain)
	}
	return v, nil
}

func (this *Web) handleWebsocket(rw http.ResponseWriter, req *http.Request) {
	conn, err := this.upgrader.Upgrade(rw, req, nil)
	if err != nil {
		log.WithError(err).
			Debug("Cannot upgrade websocket connection.")
		return
	}

	c := &client{
		conn:   conn,
		queue:  make(chan Message, clientQueueSize),
		closed: make(chan struct{}),
	}
	status := this.currentStatus()
	c.queue <- Message{Type: MessageTypeStatus, Status: &status}

	this.mutex.Lock()
	this.clients[c] = struct{}{}
	this.mutex.Unlock()

	log.With("remote", conn.RemoteAddr()).
		Debug("Websocket client connected.")

	go c.write()
	c.read()

	this.mutex.Lock()
	delete(this.clients, c)
	this.mutex.Unlock()
	c.close()

	log.With("remote", conn.RemoteAddr()).
		Debug("Websocket client disconnected.")
}

func (this *Web) broadcast(m Message) {
	this.mutex.RLock()
	defer this.mutex.RUnlock()

	for c := range this.clients {
		c.send(m)
	}
}

type client struct {
	conn      *websocket.Conn
	queue     chan Message
	closed    chan struct{}
	closeOnce sync.Once
}

// send drops the message if the client does not keep up.
func (this *client) send(m Message) {
	select {
	case this.queue <- m:
	case <-this.closed:
	default:
		log.With("remote", this.conn.RemoteAddr()).
			Debug("Websocket client too slow; message dropped.")
	}
}

func (this *client) write() {
	for {
		select {
		case <-this.closed:
			return
		case m := <-this.queue:
			if err := this.conn.SetWriteDeadline(time.Now().Add(DefaultWriteTimeout)); err != nil {
				this.close()
				return
			}
			if err := this.conn.WriteJSON(m); err != nil {
				this.close()
				return
			}
		}
	}
}

// read consumes everything the client sends until it goes away.
func (this *client) read() {
	for {
		if _, _, err := this.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (this *client) close() {
	this.closeOnce.Do(func() {
		close(this.closed)
		_ = this.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		_ = this.conn.Close()
	})
}
