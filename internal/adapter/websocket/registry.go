package websocket

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/streamrelay/internal/adapter/metrics"
	"github.com/pscheid92/streamrelay/internal/domain"
)

const commandTimeout = 5 * time.Second

type registryCmd interface{ isRegistryCmd() }

type baseRegistryCmd struct{}

func (baseRegistryCmd) isRegistryCmd() {}

type joinCmd struct {
	baseRegistryCmd
	streamID     string
	connectionID string
	reply        chan bool
}

type leaveCmd struct {
	baseRegistryCmd
	streamID     string
	connectionID string
	reply        chan bool
}

type countCmd struct {
	baseRegistryCmd
	streamID string
	reply    chan int
}

type membersCmd struct {
	baseRegistryCmd
	streamID string
	reply    chan []string
}

type streamsCmd struct {
	baseRegistryCmd
	reply chan map[string]int
}

type stopRegistryCmd struct {
	baseRegistryCmd
}

// Registry is the in-process group registry: the set of authenticated
// connections per stream. All state is owned by a single actor goroutine.
//
// onCountChange receives the new local member count of a stream whenever it
// changes. Calls happen off the actor goroutine and are coalesced, so only
// the latest count per stream is guaranteed to be reported.
type Registry struct {
	cmdCh    chan registryCmd
	clock    clockwork.Clock
	groups   map[string]map[string]struct{}
	members  int
	metrics  *metrics.PresenceMetrics
	notifier *countNotifier
	done     chan struct{}
	stopOnce sync.Once
}

var _ domain.GroupRegistry = (*Registry)(nil)

func NewRegistry(clock clockwork.Clock, m *metrics.PresenceMetrics, onCountChange func(streamID string, count int)) *Registry {
	r := &Registry{
		cmdCh:    make(chan registryCmd, 256),
		clock:    clock,
		groups:   make(map[string]map[string]struct{}),
		metrics:  m,
		notifier: newCountNotifier(onCountChange),
		done:     make(chan struct{}),
	}
	go r.run()
	return r
}

// Join adds a connection to a stream's group. It reports false if the
// connection was already a member.
func (r *Registry) Join(streamID, connectionID string) bool {
	reply := make(chan bool, 1)
	return awaitReply(r, joinCmd{streamID: streamID, connectionID: connectionID, reply: reply}, reply, false)
}

// Leave removes a connection. Leaving a group it never joined is a no-op
// that reports false.
func (r *Registry) Leave(streamID, connectionID string) bool {
	reply := make(chan bool, 1)
	return awaitReply(r, leaveCmd{streamID: streamID, connectionID: connectionID, reply: reply}, reply, false)
}

func (r *Registry) Count(streamID string) int {
	reply := make(chan int, 1)
	return awaitReply(r, countCmd{streamID: streamID, reply: reply}, reply, 0)
}

// Members returns the connection IDs joined to a stream, in no particular order.
func (r *Registry) Members(streamID string) []string {
	reply := make(chan []string, 1)
	return awaitReply(r, membersCmd{streamID: streamID, reply: reply}, reply, nil)
}

// Streams snapshots the member count of every non-empty group.
func (r *Registry) Streams() map[string]int {
	reply := make(chan map[string]int, 1)
	return awaitReply(r, streamsCmd{reply: reply}, reply, map[string]int{})
}

// Stop terminates the actor and flushes pending count notifications.
func (r *Registry) Stop() {
	r.stopOnce.Do(func() {
		r.cmdCh <- stopRegistryCmd{}
		<-r.done
		r.notifier.stop()
	})
}

func awaitReply[T any](r *Registry, cmd registryCmd, reply chan T, fallback T) T {
	select {
	case r.cmdCh <- cmd:
	case <-r.done:
		return fallback
	}

	timer := r.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case v := <-reply:
		return v
	case <-r.done:
		return fallback
	case <-timer.Chan():
		slog.Warn("Registry command timed out", "command_type", fmt.Sprintf("%T", cmd), "timeout", commandTimeout)
		return fallback
	}
}

func (r *Registry) run() {
	defer close(r.done)

	for cmd := range r.cmdCh {
		switch c := cmd.(type) {
		case joinCmd:
			c.reply <- r.handleJoin(c.streamID, c.connectionID)
		case leaveCmd:
			c.reply <- r.handleLeave(c.streamID, c.connectionID)
		case countCmd:
			c.reply <- len(r.groups[c.streamID])
		case membersCmd:
			ids := make([]string, 0, len(r.groups[c.streamID]))
			for id := range r.groups[c.streamID] {
				ids = append(ids, id)
			}
			c.reply <- ids
		case streamsCmd:
			counts := make(map[string]int, len(r.groups))
			for streamID, group := range r.groups {
				counts[streamID] = len(group)
			}
			c.reply <- counts
		case stopRegistryCmd:
			return
		default:
			slog.Warn("Registry received unknown command type", "command_type", fmt.Sprintf("%T", cmd))
		}
	}
}

func (r *Registry) handleJoin(streamID, connectionID string) bool {
	group, ok := r.groups[streamID]
	if !ok {
		group = make(map[string]struct{})
		r.groups[streamID] = group
	}
	if _, member := group[connectionID]; member {
		return false
	}

	group[connectionID] = struct{}{}
	r.members++
	r.metrics.LocalViewers.Set(float64(r.members))
	r.notifier.post(streamID, len(group))

	slog.Debug("Connection joined group", "stream_id", streamID, "connection_id", connectionID, "members", len(group))
	return true
}

func (r *Registry) handleLeave(streamID, connectionID string) bool {
	group, ok := r.groups[streamID]
	if !ok {
		return false
	}
	if _, member := group[connectionID]; !member {
		return false
	}

	delete(group, connectionID)
	r.members--
	r.metrics.LocalViewers.Set(float64(r.members))
	r.notifier.post(streamID, len(group))

	if len(group) == 0 {
		delete(r.groups, streamID)
		slog.Info("Last viewer left stream", "stream_id", streamID)
	}
	return true
}

// countNotifier delivers count changes on its own goroutine so a slow
// callback never stalls the registry actor.
type countNotifier struct {
	fn      func(streamID string, count int)
	mu      sync.Mutex
	pending map[string]int
	wake    chan struct{}
	quit    chan struct{}
	stopped chan struct{}
}

func newCountNotifier(fn func(streamID string, count int)) *countNotifier {
	n := &countNotifier{
		fn:      fn,
		pending: make(map[string]int),
		wake:    make(chan struct{}, 1),
		quit:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go n.run()
	return n
}

func (n *countNotifier) post(streamID string, count int) {
	if n.fn == nil {
		return
	}
	n.mu.Lock()
	n.pending[streamID] = count
	n.mu.Unlock()

	select {
	case n.wake <- struct{}{}:
	default:
	}
}

func (n *countNotifier) run() {
	defer close(n.stopped)
	for {
		select {
		case <-n.wake:
			n.flush()
		case <-n.quit:
			n.flush()
			return
		}
	}
}

func (n *countNotifier) flush() {
	n.mu.Lock()
	batch := n.pending
	n.pending = make(map[string]int)
	n.mu.Unlock()

	for streamID, count := range batch {
		n.fn(streamID, count)
	}
}

func (n *countNotifier) stop() {
	close(n.quit)
	<-n.stopped
}
