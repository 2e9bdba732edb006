package loadtest

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sketchbridge/sketchbridge-go/lib/client"
	"github.com/sketchbridge/sketchbridge-go/lib/models/canvas"
	"github.com/sketchbridge/sketchbridge-go/lib/models/ws"
	"github.com/sketchbridge/sketchbridge-go/lib/utils"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
)

const defaultHost = "http://127.0.0.1:3001"

// maxPending is how many unacknowledged object_add frames loadUntilFail
// tolerates before declaring the server overloaded.
const maxPending = 100

// Each author keeps at most this many of its own shapes on the canvas.
const maxOwnObjects = 50

var ErrOverloaded = errors.New("too many pending object acknowledgements")

type Options struct {
	Host           string
	CanvasId       string
	Authors        int
	Lurkers        int
	Duration       time.Duration
	LoadUntilFail  bool
	// AuthorInterval is the pause between two mutations of one author.
	AuthorInterval time.Duration
	Output         io.Writer
}

func RunFromCLI(logger *zap.SugaredLogger, args []string) {
	options, err := parseRunArgs(args)
	if err != nil {
		return
	}
	if !silentMetrics() {
		options.Output = os.Stdout
	}
	metrics, err := StartLoadTest(context.Background(), logger, options)
	fmt.Printf("%+v\n", metrics.Snapshot())
	if err != nil {
		fmt.Printf("Load test failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Test duration complete and Load Tests PASS")
}

func parseRunArgs(args []string) (Options, error) {
	fs := flag.NewFlagSet("loadtest", flag.ContinueOnError)
	host := fs.String("host", defaultHost, "The host to test")
	canvasId := fs.String("canvas", "", "Canvas to join, random when empty")
	authors := fs.Int("authors", 0, "Number of authors")
	lurkers := fs.Int("lurkers", 0, "Number of lurkers")
	duration := fs.Int("duration", 0, "Duration of the test in seconds")
	untilFail := fs.Bool("loadUntilFail", false, "Load until the server fails")

	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		*host = args[0]
		args = args[1:]
	}

	err := fs.Parse(args)
	return Options{
		Host:          *host,
		CanvasId:      *canvasId,
		Authors:       *authors,
		Lurkers:       *lurkers,
		Duration:      time.Duration(*duration) * time.Second,
		LoadUntilFail: *untilFail,
	}, err
}

func RunMultiFromCLI(logger *zap.SugaredLogger, args []string) {
	host, maxCanvases, err := parseMultiRunArgs(args)
	if err != nil {
		return
	}
	if err := StartMultiLoadTest(context.Background(), logger, host, maxCanvases); err != nil {
		fmt.Printf("Multi-canvas load test failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Multi-canvas load test completed successfully")
}

func parseMultiRunArgs(args []string) (string, int, error) {
	fs := flag.NewFlagSet("multiload", flag.ContinueOnError)
	host := fs.String("host", defaultHost, "The host to test")
	maxCanvases := fs.Int("maxCanvases", 10, "Number of canvases loaded in parallel")

	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		*host = args[0]
		args = args[1:]
	}

	err := fs.Parse(args)
	return *host, *maxCanvases, err
}

func silentMetrics() bool {
	return os.Getenv("SILENT_METRICS") == "true"
}

type Metrics struct {
	ClientsConnected  int64
	AuthorsConnected  int64
	LurkersConnected  int64
	ObjectsSent       int64
	ErrorCount        int64
	AcceptedObjects   int64
	ChangeFromServer  int64
	NumConnectedUsers int64
	StartTime         time.Time

	uiLock sync.Mutex
	maxPS  float64
}

// MetricsSnapshot is a point in time copy of Metrics.
type MetricsSnapshot struct {
	ClientsConnected  int64
	AuthorsConnected  int64
	LurkersConnected  int64
	ObjectsSent       int64
	ErrorCount        int64
	AcceptedObjects   int64
	ChangeFromServer  int64
	NumConnectedUsers int64
	Elapsed           time.Duration
}

func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		ClientsConnected:  atomic.LoadInt64(&m.ClientsConnected),
		AuthorsConnected:  atomic.LoadInt64(&m.AuthorsConnected),
		LurkersConnected:  atomic.LoadInt64(&m.LurkersConnected),
		ObjectsSent:       atomic.LoadInt64(&m.ObjectsSent),
		ErrorCount:        atomic.LoadInt64(&m.ErrorCount),
		AcceptedObjects:   atomic.LoadInt64(&m.AcceptedObjects),
		ChangeFromServer:  atomic.LoadInt64(&m.ChangeFromServer),
		NumConnectedUsers: atomic.LoadInt64(&m.NumConnectedUsers),
		Elapsed:           time.Since(m.StartTime),
	}
}

func (m *Metrics) pending() int64 {
	return atomic.LoadInt64(&m.ObjectsSent) - atomic.LoadInt64(&m.AcceptedObjects)
}

func (m *Metrics) render(out io.Writer, host string, canvasId string) {
	if out == nil {
		return
	}
	m.uiLock.Lock()
	defer m.uiLock.Unlock()

	snapshot := m.Snapshot()

	// Clear screen and move cursor to top-left
	_, _ = fmt.Fprint(out, "\033[2J\033[0;0H")
	_, _ = fmt.Fprintf(out, "Load Test Metrics -- Target Canvas %s on %s\n\n", canvasId, host)

	if snapshot.NumConnectedUsers > 0 {
		_, _ = fmt.Fprintf(out, "Total Clients Connected: %d\n", snapshot.NumConnectedUsers)
	}
	_, _ = fmt.Fprintf(out, "Local Clients Connected: %d\n", snapshot.ClientsConnected)
	_, _ = fmt.Fprintf(out, "Authors Connected: %d\n", snapshot.AuthorsConnected)
	_, _ = fmt.Fprintf(out, "Lurkers Connected: %d\n", snapshot.LurkersConnected)
	_, _ = fmt.Fprintf(out, "Sent object_add messages: %d\n", snapshot.ObjectsSent)
	_, _ = fmt.Fprintf(out, "Errors: %d\n", snapshot.ErrorCount)
	_, _ = fmt.Fprintf(out, "Objects acknowledged by server: %d\n", snapshot.AcceptedObjects)
	_, _ = fmt.Fprintf(out, "Changes sent from Server to Client: %d\n", snapshot.ChangeFromServer)

	durationSec := snapshot.Elapsed.Seconds()
	if durationSec > 0 {
		meanRate := float64(snapshot.ChangeFromServer) / durationSec
		_, _ = fmt.Fprintf(out, "Mean(per second) of # of Changes sent from Server to Client: %.0f\n", meanRate)
		if meanRate > m.maxPS {
			m.maxPS = meanRate
		}
		_, _ = fmt.Fprintf(out, "Max(per second) of # of Changes: %.0f\n", m.maxPS)
	}

	if diff := snapshot.ObjectsSent - snapshot.AcceptedObjects; diff > 5 {
		_, _ = fmt.Fprintf(out, "Number of objects not yet echoed by server: %d\n", diff)
	}
	_, _ = fmt.Fprintf(out, "Seconds test has been running for: %d\n", int(durationSec))
}

type runner struct {
	options Options
	metrics *Metrics
	logger  *zap.SugaredLogger
}

func (r *runner) connect(ctx context.Context, userId string) (*client.Conn, error) {
	state := client.NewState(userId, "Load "+userId)
	conn, err := client.Dial(ctx, r.options.Host, state, client.Options{}, r.logger)
	if err != nil {
		return nil, err
	}

	conn.OnError(func(message ws.ErrorMessage) {
		atomic.AddInt64(&r.metrics.ErrorCount, 1)
		r.logger.Debugw("Server error", "userId", userId, "code", message.Code, "message", message.Message)
	})
	conn.OnEvent(func(message ws.EventMessage) {
		switch message.Event {
		case ws.EventObjectAdd:
			var changed ws.ObjectChanged
			if err := json.Unmarshal(message.Data, &changed); err != nil {
				return
			}
			if changed.SessionId == state.OwnId() {
				atomic.AddInt64(&r.metrics.AcceptedObjects, 1)
			} else {
				atomic.AddInt64(&r.metrics.ChangeFromServer, 1)
			}
		case ws.EventObjectUpdate, ws.EventObjectDelete, ws.EventClearCanvas:
			atomic.AddInt64(&r.metrics.ChangeFromServer, 1)
		case ws.EventCanvasSync, ws.EventUserJoined, ws.EventUserLeft:
			atomic.StoreInt64(&r.metrics.NumConnectedUsers, int64(len(state.RemoteSessions())+1))
		}
	})

	if err := conn.JoinCanvas(r.options.CanvasId, nil); err != nil {
		_ = conn.Close()
		return nil, err
	}
	atomic.AddInt64(&r.metrics.ClientsConnected, 1)
	return conn, nil
}

func (r *runner) lurk(ctx context.Context) error {
	conn, err := r.connect(ctx, "lurker-"+utils.RandomString(6))
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	atomic.AddInt64(&r.metrics.LurkersConnected, 1)
	defer func() {
		atomic.AddInt64(&r.metrics.LurkersConnected, -1)
		atomic.AddInt64(&r.metrics.ClientsConnected, -1)
		_ = conn.Close()
	}()

	select {
	case <-ctx.Done():
		return nil
	case <-conn.Done():
		return fmt.Errorf("lurker disconnected")
	}
}

func (r *runner) author(ctx context.Context) error {
	conn, err := r.connect(ctx, "author-"+utils.RandomString(6))
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	atomic.AddInt64(&r.metrics.AuthorsConnected, 1)
	defer func() {
		atomic.AddInt64(&r.metrics.AuthorsConnected, -1)
		atomic.AddInt64(&r.metrics.ClientsConnected, -1)
		_ = conn.Close()
	}()

	var own []string
	ticker := time.NewTicker(r.options.AuthorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-conn.Done():
			return fmt.Errorf("author disconnected")
		case <-ticker.C:
		}
		// Wait for canvas_sync before mutating.
		if conn.State().OwnId() == "" {
			continue
		}

		x, y := rand.Float64()*1000, rand.Float64()*1000
		_ = conn.MoveCursor(x, y)

		if len(own) >= maxOwnObjects {
			if err := conn.DeleteObject(own[0]); err != nil {
				return err
			}
			own = own[1:]
		}
		added, err := conn.AddObject(canvas.CanvasObject{
			Type:        canvas.ObjectRect,
			X:           x,
			Y:           y,
			Width:       20 + rand.Float64()*80,
			Height:      20 + rand.Float64()*80,
			FillColor:   utils.ColorForUser(conn.State().UserId()),
			StrokeColor: "#000000",
			StrokeWidth: 1,
			Opacity:     1,
		})
		if err != nil {
			return err
		}
		atomic.AddInt64(&r.metrics.ObjectsSent, 1)
		own = append(own, added.Id)
	}
}

// StartLoadTest joins Authors and Lurkers to one canvas and keeps them busy
// until Duration elapsed or ctx is done. Without fixed user counts it adds
// one author and three lurkers every second until the server stops keeping
// up or the duration is over.
func StartLoadTest(ctx context.Context, logger *zap.SugaredLogger, options Options) (*Metrics, error) {
	metrics := &Metrics{StartTime: time.Now()}
	if options.Host == "" {
		options.Host = defaultHost
	}
	if options.CanvasId == "" {
		options.CanvasId = "loadtest-" + utils.RandomString(10)
	}
	if options.AuthorInterval <= 0 {
		options.AuthorInterval = 400 * time.Millisecond
	}

	if options.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, options.Duration)
		defer cancel()
	}

	r := &runner{options: options, metrics: metrics, logger: logger}
	users := pool.New().WithContext(ctx).WithCancelOnError()

	spawn := func(kinds []string) {
		for _, kind := range kinds {
			if ctx.Err() != nil {
				return
			}
			if kind == "l" {
				users.Go(r.lurk)
			} else {
				users.Go(r.author)
			}
			time.Sleep(200 * time.Millisecond / time.Duration(len(kinds)))
		}
	}

	if options.Authors > 0 || options.Lurkers > 0 {
		var kinds []string
		for i := 0; i < options.Lurkers; i++ {
			kinds = append(kinds, "l")
		}
		for i := 0; i < options.Authors; i++ {
			kinds = append(kinds, "a")
		}
		spawn(kinds)
	} else {
		if options.Duration > 0 {
			logger.Infof("Creating load for %s", options.Duration)
		} else {
			logger.Info("Creating load until the server stops responding in a timely fashion")
		}
		users.Go(func(ctx context.Context) error {
			ticker := time.NewTicker(time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					spawn([]string{"a", "l", "l", "l"})
				}
			}
		})
	}

	users.Go(func(ctx context.Context) error {
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
			}
			metrics.render(options.Output, options.Host, options.CanvasId)
			if options.LoadUntilFail && metrics.pending() > maxPending {
				return fmt.Errorf("%w (%d)", ErrOverloaded, metrics.pending())
			}
		}
	})

	return metrics, users.Wait()
}
