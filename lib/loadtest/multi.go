package loadtest

import (
	"context"
	"fmt"
	"time"

	"github.com/sketchbridge/sketchbridge-go/lib/utils"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
)

// multiCanvasDuration is how long each canvas of a multi-canvas run is loaded.
var multiCanvasDuration = 30 * time.Second

// StartMultiLoadTest loads maxCanvases canvases in parallel, three authors
// each. The first failing canvas cancels the others.
func StartMultiLoadTest(ctx context.Context, logger *zap.SugaredLogger, host string, maxCanvases int) error {
	if maxCanvases <= 0 {
		maxCanvases = 10
	}

	logger.Infof("Starting multi-canvas load test: %d canvases for %s each", maxCanvases, multiCanvasDuration)

	canvases := pool.New().WithContext(ctx).WithCancelOnError()
	for i := 0; i < maxCanvases; i++ {
		canvasId := fmt.Sprintf("multiload-%d-%s", i, utils.RandomString(6))
		canvases.Go(func(ctx context.Context) error {
			metrics, err := StartLoadTest(ctx, logger, Options{
				Host:     host,
				CanvasId: canvasId,
				Authors:  3,
				Duration: multiCanvasDuration,
			})
			if err != nil {
				return fmt.Errorf("canvas %s: %w", canvasId, err)
			}
			snapshot := metrics.Snapshot()
			logger.Infow("Canvas load finished",
				"canvasId", canvasId,
				"objectsSent", snapshot.ObjectsSent,
				"accepted", snapshot.AcceptedObjects,
				"errors", snapshot.ErrorCount)
			return nil
		})

		// Small delay between starts to not overwhelm everything at once
		select {
		case <-ctx.Done():
			return canvases.Wait()
		case <-time.After(100 * time.Millisecond):
		}
	}

	return canvases.Wait()
}
