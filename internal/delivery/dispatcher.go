package delivery

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/PaulBabatuyi/directChat/internal/chat"
	"go.uber.org/zap"
)

// DispatcherOptions tunes the notification queue.
type DispatcherOptions struct {
	Workers        int
	Buffer         int
	PublishTimeout time.Duration
}

type job struct {
	topic  string
	evt    Event
	except string
}

// Dispatcher hands notifications to a Publisher off the request path. Notify
// never blocks: when the queue is full the notification is dropped. Publish
// errors are logged and go no further.
type Dispatcher struct {
	pub     Publisher
	opts    DispatcherOptions
	log     *zap.Logger
	queue   chan job
	done    chan struct{}
	once    sync.Once
	wg      sync.WaitGroup
	started sync.Once
}

var _ chat.Notifier = (*Dispatcher)(nil)

// NewDispatcher returns a Dispatcher; call Start before use.
func NewDispatcher(pub Publisher, opts DispatcherOptions, log *zap.Logger) *Dispatcher {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Buffer <= 0 {
		opts.Buffer = 64
	}
	if opts.PublishTimeout <= 0 {
		opts.PublishTimeout = 2 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{
		pub:   pub,
		opts:  opts,
		log:   log,
		queue: make(chan job, opts.Buffer),
		done:  make(chan struct{}),
	}
}

// Notify queues a message-created event for the message's recipient.
func (d *Dispatcher) Notify(msg chat.Message, exceptSocketID string) {
	topic := InboxTopic(msg.RecipientUserID)
	j := job{
		topic: topic,
		evt: Event{
			Name:  EventMessageCreated,
			Topic: topic,
			Data:  map[string]string{"recipient_user_id": msg.RecipientUserID},
		},
		except: exceptSocketID,
	}

	select {
	case <-d.done:
		d.log.Debug("dispatcher closed, notification dropped", zap.String("topic", topic))
	case d.queue <- j:
	default:
		d.log.Warn("notification queue full, dropping", zap.String("topic", topic))
	}
}

// Start launches the worker goroutines. They stop when ctx is cancelled or
// Close is called.
func (d *Dispatcher) Start(ctx context.Context) {
	d.started.Do(func() {
		for i := 0; i < d.opts.Workers; i++ {
			d.wg.Add(1)
			go d.work(ctx)
		}
	})
}

// Close stops the workers and waits for in-flight publishes. Queued but
// unsent notifications are abandoned.
func (d *Dispatcher) Close() {
	d.once.Do(func() { close(d.done) })
	d.wg.Wait()
}

func (d *Dispatcher) work(ctx context.Context) {
	defer d.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-d.done:
			return
		case j := <-d.queue:
			d.publish(ctx, j)
		}
	}
}

func (d *Dispatcher) publish(ctx context.Context, j job) {
	ctx, cancel := context.WithTimeout(ctx, d.opts.PublishTimeout)
	defer cancel()

	if err := d.pub.Publish(ctx, j.topic, j.evt, j.except); err != nil {
		d.log.Warn("publish failed",
			zap.String("topic", j.topic),
			zap.Error(fmt.Errorf("%w: %v", chat.ErrPublish, err)))
	}
}
