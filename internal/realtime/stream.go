package realtime

import (
	"context"
	"sync"
	"time"

	"github.com/yungbote/mediaforge-backend/internal/platform/logger"
)

// Relay fans messages out across processes. Publish sends to every instance,
// including this one; the forwarder delivers whatever arrives locally.
type Relay interface {
	Publish(ctx context.Context, msg Message) error
	StartForwarder(ctx context.Context, onMsg func(Message)) error
}

type Options struct {
	Heartbeat time.Duration
	// IdleTail is how many messages a job keeps once nobody is listening.
	IdleTail int
	// Retention drops idle jobs with no listeners after this long.
	Retention time.Duration
}

type jobLog struct {
	mu         sync.Mutex
	msgs       []Message
	base       int // absolute index of msgs[0]
	notify     chan struct{}
	listeners  int
	lastActive time.Time
}

// Streams is the per-job in-memory publish/subscribe log. Each job keeps an
// append-only slice of messages and a notify channel that is closed and
// replaced on every append, so a waiter that read the slice under the lock
// cannot miss the next wake-up.
type Streams struct {
	log   *logger.Logger
	opts  Options
	relay Relay

	mu   sync.Mutex
	jobs map[string]*jobLog
}

func NewStreams(log *logger.Logger, opts Options) *Streams {
	if opts.Heartbeat <= 0 {
		opts.Heartbeat = 30 * time.Second
	}
	if opts.IdleTail <= 0 {
		opts.IdleTail = 10
	}
	if opts.Retention <= 0 {
		opts.Retention = time.Hour
	}
	return &Streams{
		log:  log.With("service", "JobStreams"),
		opts: opts,
		jobs: map[string]*jobLog{},
	}
}

// UseRelay routes Publish through r and starts delivering relayed messages
// locally. Call before serving traffic.
func (s *Streams) UseRelay(ctx context.Context, r Relay) error {
	if err := r.StartForwarder(ctx, s.deliver); err != nil {
		return err
	}
	s.relay = r
	return nil
}

func (s *Streams) Publish(ctx context.Context, msg Message) {
	if msg.JobID == "" {
		return
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	if s.relay != nil {
		err := s.relay.Publish(ctx, msg)
		if err == nil {
			return
		}
		s.log.Warn("Relay publish failed; delivering locally", "job_id", msg.JobID, "error", err)
	}
	s.deliver(msg)
}

// deliver looks the job up and appends while still holding s.mu, handing
// over to l.mu before releasing it. Sweep takes the locks in the same order,
// so it either removes the entry before the lookup or sees the fresh append.
func (s *Streams) deliver(msg Message) {
	s.mu.Lock()
	l := s.lookup(msg.JobID)
	l.mu.Lock()
	s.mu.Unlock()

	l.msgs = append(l.msgs, msg)
	l.lastActive = time.Now()
	close(l.notify)
	l.notify = make(chan struct{})
	idle := l.listeners == 0
	l.mu.Unlock()
	if idle {
		s.trim(l)
	}
}

// Subscribe replays what the job has buffered, then streams new messages.
// When nothing arrives for the heartbeat interval a heartbeat message is
// sent. The channel closes when ctx is done.
func (s *Streams) Subscribe(ctx context.Context, jobID string) <-chan Message {
	out := make(chan Message)
	l := s.listen(jobID)
	go func() {
		defer close(out)
		defer s.release(l)

		cursor := 0
		for {
			msgs, next, wake := l.since(cursor)
			for _, m := range msgs {
				select {
				case out <- m:
				case <-ctx.Done():
					return
				}
			}
			cursor = next

			timer := time.NewTimer(s.opts.Heartbeat)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-wake:
				timer.Stop()
			case <-timer.C:
				hb := Message{Type: MessageHeartbeat, JobID: jobID, Timestamp: time.Now().UTC()}
				select {
				case out <- hb:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

// Listeners reports the number of active subscribers for a job.
func (s *Streams) Listeners(jobID string) int {
	s.mu.Lock()
	l, ok := s.jobs[jobID]
	s.mu.Unlock()
	if !ok {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.listeners
}

// Buffered reports how many messages a job currently retains.
func (s *Streams) Buffered(jobID string) int {
	s.mu.Lock()
	l, ok := s.jobs[jobID]
	s.mu.Unlock()
	if !ok {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.msgs)
}

// Sweep forgets jobs that have had no listeners and no messages for the
// retention window. RunJanitor calls it periodically.
func (s *Streams) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, l := range s.jobs {
		l.mu.Lock()
		stale := l.listeners == 0 && now.Sub(l.lastActive) > s.opts.Retention
		l.mu.Unlock()
		if stale {
			delete(s.jobs, id)
			n++
		}
	}
	return n
}

func (s *Streams) RunJanitor(ctx context.Context, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			if n := s.Sweep(now); n > 0 {
				s.log.Debug("Swept idle job streams", "count", n)
			}
		}
	}
}

func (s *Streams) listen(jobID string) *jobLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	l := s.lookup(jobID)
	l.mu.Lock()
	l.listeners++
	l.lastActive = time.Now()
	l.mu.Unlock()
	return l
}

// lookup returns the job's log, creating it if needed. Caller holds s.mu.
func (s *Streams) lookup(jobID string) *jobLog {
	l, ok := s.jobs[jobID]
	if !ok {
		l = &jobLog{notify: make(chan struct{}), lastActive: time.Now()}
		s.jobs[jobID] = l
	}
	return l
}

func (s *Streams) release(l *jobLog) {
	l.mu.Lock()
	l.listeners--
	l.lastActive = time.Now()
	l.mu.Unlock()
	s.trim(l)
}

func (s *Streams) trim(l *jobLog) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.listeners > 0 || len(l.msgs) <= s.opts.IdleTail {
		return
	}
	drop := len(l.msgs) - s.opts.IdleTail
	kept := make([]Message, s.opts.IdleTail)
	copy(kept, l.msgs[drop:])
	l.msgs = kept
	l.base += drop
}

// since returns the messages at or after absolute index cursor, the next
// cursor, and the channel that will be closed on the next append.
func (l *jobLog) since(cursor int) ([]Message, int, <-chan struct{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if cursor < l.base {
		cursor = l.base
	}
	end := l.base + len(l.msgs)
	var out []Message
	if cursor < end {
		out = make([]Message, end-cursor)
		copy(out, l.msgs[cursor-l.base:])
	}
	return out, end, l.notify
}
