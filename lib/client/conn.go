package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	aiModel "github.com/sketchbridge/sketchbridge-go/lib/models/ai"
	"github.com/sketchbridge/sketchbridge-go/lib/models/canvas"
	"github.com/sketchbridge/sketchbridge-go/lib/models/ws"
	"go.uber.org/zap"
)

var ErrClosed = errors.New("connection closed")

// Options tune the dialer. Zero values fall back to defaults.
type Options struct {
	// MaxElapsedTime bounds the reconnect attempts of Dial.
	MaxElapsedTime  time.Duration
	InitialInterval time.Duration
	Header          http.Header
}

// Conn is a websocket connection to a sketchbridge server that mirrors the
// joined canvas into a State.
type Conn struct {
	url       string
	conn      *websocket.Conn
	connWrite sync.Mutex
	state     *State
	logger    *zap.SugaredLogger
	closeChan chan struct{}
	closeOnce sync.Once

	handlerMu    sync.RWMutex
	onEvent      []func(ws.EventMessage)
	onError      func(ws.ErrorMessage)
	onAIProgress func(ws.AIProgress)
	onAIResult   func(aiModel.AnalysisResult)
	onAIError    func(ws.AIError)
	onDisconnect func(error)
}

// SocketURL turns an http(s) base address into the websocket endpoint.
func SocketURL(host string) (string, error) {
	if host == "" {
		host = "http://127.0.0.1:3001"
	}
	parsed, err := url.Parse(host)
	if err != nil {
		return "", err
	}
	switch parsed.Scheme {
	case "http":
		parsed.Scheme = "ws"
	case "https":
		parsed.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q", parsed.Scheme)
	}
	if !strings.HasSuffix(parsed.Path, "/socket") {
		parsed.Path = strings.TrimSuffix(parsed.Path, "/") + "/socket"
	}
	return parsed.String(), nil
}

// Dial connects with exponential backoff and starts the read loop. The
// returned Conn is not joined to any canvas yet.
func Dial(ctx context.Context, host string, state *State, options Options, logger *zap.SugaredLogger) (*Conn, error) {
	socketURL, err := SocketURL(host)
	if err != nil {
		return nil, err
	}

	policy := backoff.NewExponentialBackOff()
	if options.InitialInterval > 0 {
		policy.InitialInterval = options.InitialInterval
	}
	policy.MaxElapsedTime = 10 * time.Second
	if options.MaxElapsedTime > 0 {
		policy.MaxElapsedTime = options.MaxElapsedTime
	}

	var connection *websocket.Conn
	operation := func() error {
		dialed, resp, err := websocket.DefaultDialer.DialContext(ctx, socketURL, options.Header)
		if err != nil {
			if resp != nil && resp.StatusCode == http.StatusForbidden {
				return backoff.Permanent(fmt.Errorf("dial %s: %w", socketURL, err))
			}
			return err
		}
		connection = dialed
		return nil
	}
	notify := func(err error, wait time.Duration) {
		logger.Debugw("Dial failed, retrying", "url", socketURL, "wait", wait, "error", err)
	}
	if err := backoff.RetryNotify(operation, backoff.WithContext(policy, ctx), notify); err != nil {
		return nil, err
	}

	c := &Conn{
		url:       socketURL,
		conn:      connection,
		state:     state,
		logger:    logger,
		closeChan: make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

func (c *Conn) URL() string {
	return c.url
}

func (c *Conn) State() *State {
	return c.state
}

func (c *Conn) Done() <-chan struct{} {
	return c.closeChan
}

// OnEvent registers a hook that sees every frame after it was applied.
func (c *Conn) OnEvent(handler func(ws.EventMessage)) {
	c.handlerMu.Lock()
	defer c.handlerMu.Unlock()
	c.onEvent = append(c.onEvent, handler)
}

func (c *Conn) OnError(handler func(ws.ErrorMessage)) {
	c.handlerMu.Lock()
	defer c.handlerMu.Unlock()
	c.onError = handler
}

func (c *Conn) OnAIProgress(handler func(ws.AIProgress)) {
	c.handlerMu.Lock()
	defer c.handlerMu.Unlock()
	c.onAIProgress = handler
}

func (c *Conn) OnAIResult(handler func(aiModel.AnalysisResult)) {
	c.handlerMu.Lock()
	defer c.handlerMu.Unlock()
	c.onAIResult = handler
}

func (c *Conn) OnAIError(handler func(ws.AIError)) {
	c.handlerMu.Lock()
	defer c.handlerMu.Unlock()
	c.onAIError = handler
}

// OnDisconnect is called once when the read loop ends. err is nil after a
// local Close.
func (c *Conn) OnDisconnect(handler func(error)) {
	c.handlerMu.Lock()
	defer c.handlerMu.Unlock()
	c.onDisconnect = handler
}

func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.connWrite.Lock()
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.connWrite.Unlock()
		close(c.closeChan)
		err = c.conn.Close()
	})
	return err
}

func (c *Conn) readLoop() {
	var readErr error
	defer func() {
		select {
		case <-c.closeChan:
			readErr = nil
		default:
		}
		_ = c.Close()
		c.handlerMu.RLock()
		onDisconnect := c.onDisconnect
		c.handlerMu.RUnlock()
		if onDisconnect != nil {
			onDisconnect(readErr)
		}
	}()

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			readErr = err
			return
		}
		var message ws.EventMessage
		if err := json.Unmarshal(raw, &message); err != nil {
			c.logger.Warnw("Error decoding server message", "error", err)
			continue
		}
		if err := c.state.Apply(message); err != nil {
			c.logger.Warnw("Error applying server message", "event", message.Event, "error", err)
			continue
		}
		c.dispatch(message)
	}
}

func (c *Conn) dispatch(message ws.EventMessage) {
	c.handlerMu.RLock()
	defer c.handlerMu.RUnlock()

	switch message.Event {
	case ws.EventError:
		if c.onError != nil {
			var payload ws.ErrorMessage
			if err := json.Unmarshal(message.Data, &payload); err == nil {
				c.onError(payload)
			}
		}
	case ws.EventAIProgress:
		if c.onAIProgress != nil {
			var payload ws.AIProgress
			if err := json.Unmarshal(message.Data, &payload); err == nil {
				c.onAIProgress(payload)
			}
		}
	case ws.EventAIResult:
		if c.onAIResult != nil {
			var payload aiModel.AnalysisResult
			if err := json.Unmarshal(message.Data, &payload); err == nil {
				c.onAIResult(payload)
			}
		}
	case ws.EventAIError:
		if c.onAIError != nil {
			var payload ws.AIError
			if err := json.Unmarshal(message.Data, &payload); err == nil {
				c.onAIError(payload)
			}
		}
	}
	for _, handler := range c.onEvent {
		handler(message)
	}
}

func (c *Conn) send(out Outbound) error {
	select {
	case <-c.closeChan:
		return ErrClosed
	default:
	}
	payload, err := json.Marshal(ws.OutgoingMessage{Event: out.Event, Data: out.Data})
	if err != nil {
		return err
	}
	c.connWrite.Lock()
	defer c.connWrite.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

func (c *Conn) JoinCanvas(canvasId string, canvasName *string) error {
	return c.send(c.state.Join(canvasId, canvasName))
}

func (c *Conn) LeaveCanvas() error {
	return c.send(c.state.Leave())
}

func (c *Conn) MoveCursor(x, y float64) error {
	out, err := c.state.CursorMove(x, y)
	if err != nil {
		return err
	}
	return c.send(out)
}

// AddObject applies the object locally and sends it. The returned object
// carries the id used on the wire.
func (c *Conn) AddObject(object canvas.CanvasObject) (canvas.CanvasObject, error) {
	added, out, err := c.state.AddLocal(object)
	if err != nil {
		return added, err
	}
	return added, c.send(out)
}

func (c *Conn) UpdateObject(objectId string, update canvas.ObjectUpdate) error {
	out, err := c.state.UpdateLocal(objectId, update)
	if err != nil {
		return err
	}
	return c.send(out)
}

func (c *Conn) DeleteObject(objectId string) error {
	out, err := c.state.DeleteLocal(objectId)
	if err != nil {
		return err
	}
	return c.send(out)
}

func (c *Conn) ClearCanvas() error {
	out, err := c.state.ClearLocal()
	if err != nil {
		return err
	}
	return c.send(out)
}

func (c *Conn) AnalyzeImage(imageBase64 string) error {
	return c.send(Outbound{Event: ws.EventAIAnalyze, Data: ws.AIAnalyze{ImageBase64: imageBase64}})
}
