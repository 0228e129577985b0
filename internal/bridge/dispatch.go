package bridge

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kalpizar15/dreoverse-bridge/internal/diag"
)

// Commander is the slice of the cloud client the dispatcher needs.
type Commander interface {
	UpdateStatus(ctx context.Context, sn string, directives map[string]any) error
}

type commandTask struct {
	sn         string
	directives map[string]any
}

// dispatcher forwards entity commands to the cloud from a bounded queue.
// A full queue drops the command with a warning rather than blocking the
// MQTT callback.
type dispatcher struct {
	commander Commander
	metrics   *diag.Metrics
	log       *zap.SugaredLogger

	// onApplied lets the bridge echo accepted directives into the
	// device's coordinator optimistically.
	onApplied func(sn string, directives map[string]any)

	queue    chan commandTask
	wg       sync.WaitGroup
	stopOnce sync.Once

	mu      sync.RWMutex
	stopped bool
}

const commandTimeout = 10 * time.Second

func newDispatcher(commander Commander, metrics *diag.Metrics, queueSize int, onApplied func(string, map[string]any), log *zap.SugaredLogger) *dispatcher {
	return &dispatcher{
		commander: commander,
		metrics:   metrics,
		log:       log,
		onApplied: onApplied,
		queue:     make(chan commandTask, queueSize),
	}
}

func (d *dispatcher) start(workers int) {
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	d.log.Debugw("command dispatcher started", "workers", workers)
}

func (d *dispatcher) submit(sn string, directives map[string]any) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.stopped {
		d.log.Warnw("dispatcher stopped, command rejected", "sn", sn)
		return
	}

	select {
	case d.queue <- commandTask{sn: sn, directives: directives}:
	default:
		d.log.Warnw("command queue full, dropping command", "sn", sn, "directives", directives)
	}
}

// stop drains queued commands before returning.
func (d *dispatcher) stop() {
	d.stopOnce.Do(func() {
		d.mu.Lock()
		d.stopped = true
		d.mu.Unlock()

		close(d.queue)
		d.wg.Wait()
		d.log.Debug("command dispatcher stopped")
	})
}

func (d *dispatcher) worker() {
	defer d.wg.Done()
	for task := range d.queue {
		d.run(task)
	}
}

func (d *dispatcher) run(task commandTask) {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	err := d.commander.UpdateStatus(ctx, task.sn, task.directives)
	if d.metrics != nil {
		d.metrics.CommandResult(task.sn, err)
	}
	if err != nil {
		d.log.Errorw("command failed", "sn", task.sn, "directives", task.directives, "error", err)
		return
	}

	d.log.Debugw("command applied", "sn", task.sn, "directives", task.directives)
	if d.onApplied != nil {
		d.onApplied(task.sn, task.directives)
	}
}
