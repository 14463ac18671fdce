// Package network is an in-memory implementation of the message-delivery
// substrate the protocol runs on: per-destination FIFO queues, optional
// delivery tracking with bounce notification, and per-source-ordered stream
// fan-out to subscribers.
//
// Delivery is asynchronous: Send and Broadcast only enqueue. A background
// pump (Run) or explicit stepping (DeliverNext / DeliverAll, used by tests)
// drains the queues. There are no timeouts; a tracked envelope either
// delivers or bounces back to its sender.
package network

import (
	"context"
	"sync"

	"github.com/iotaledger/hive.go/logger"
)

// Envelope is a queued cross-chain message.
type Envelope struct {
	From    string
	To      string
	Tracked bool
	// Identity is the caller identity the sending chain authenticated for
	// this message; empty for messages a chain sends on its own behalf.
	// Receivers use it to authorize caller-initiated requests.
	Identity string
	Bounced  bool
	Payload  []byte
}

// StreamRecord is a queued stream event from a source chain's named stream.
type StreamRecord struct {
	Source  string
	Name    string
	Index   uint64
	Payload []byte
}

// Endpoint receives deliveries for one registered chain.
type Endpoint interface {
	// HandleEnvelope processes a delivered (or bounced) message envelope.
	HandleEnvelope(env Envelope)
	// HandleStreamRecord processes a stream record the chain subscribed to.
	HandleStreamRecord(rec StreamRecord)
}

type item struct {
	env *Envelope
	rec *StreamRecord
	to  string
}

type streamKey struct {
	source string
	name   string
}

// Network routes envelopes and stream records between registered chains.
type Network struct {
	*logger.WrappedLogger

	mu        sync.Mutex
	cond      *sync.Cond
	endpoints map[string]Endpoint
	detached  map[string]struct{}
	queue     []item
	subs      map[streamKey][]string
}

// New creates an empty network.
func New(log *logger.Logger) *Network {
	n := &Network{
		WrappedLogger: logger.NewWrappedLogger(log),
		endpoints:     make(map[string]Endpoint),
		detached:      make(map[string]struct{}),
		subs:          make(map[streamKey][]string),
	}
	n.cond = sync.NewCond(&n.mu)

	return n
}

// Register attaches a chain endpoint under its chain id.
func (n *Network) Register(chainID string, endpoint Endpoint) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.endpoints[chainID] = endpoint
}

// Resolves reports whether a chain id routes to a registered endpoint.
// Unresolvable destinations are rejected synchronously at send time.
func (n *Network) Resolves(chainID string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	_, ok := n.endpoints[chainID]
	return ok
}

// Detach makes a registered chain unreachable: tracked envelopes sent to it
// bounce, untracked ones are dropped. Used to exercise the bounce path.
func (n *Network) Detach(chainID string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.detached[chainID] = struct{}{}
}

// Attach reverses Detach.
func (n *Network) Attach(chainID string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	delete(n.detached, chainID)
}

// Send enqueues an envelope for its destination. The destination must
// resolve to a registered chain; whether delivery ultimately succeeds is
// only observable through tracking.
func (n *Network) Send(env Envelope) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if _, ok := n.endpoints[env.To]; !ok {
		return ErrNoRoute
	}

	n.queue = append(n.queue, item{env: &env, to: env.To})
	n.cond.Signal()

	return nil
}

// Subscribe registers a chain as consumer of a source chain's named stream.
func (n *Network) Subscribe(source, name, subscriber string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	key := streamKey{source: source, name: name}
	for _, existing := range n.subs[key] {
		if existing == subscriber {
			return
		}
	}
	n.subs[key] = append(n.subs[key], subscriber)
}

// Broadcast enqueues a stream record for every subscriber of the stream.
// Records from one source stream are delivered to each subscriber in append
// order; there is no ordering guarantee against message envelopes.
func (n *Network) Broadcast(rec StreamRecord) {
	n.mu.Lock()
	defer n.mu.Unlock()

	for _, subscriber := range n.subs[streamKey{source: rec.Source, name: rec.Name}] {
		n.queue = append(n.queue, item{rec: &rec, to: subscriber})
	}
	n.cond.Signal()
}

// DeliverNext delivers the oldest queued item. It returns false when the
// queue is empty.
func (n *Network) DeliverNext() bool {
	n.mu.Lock()
	if len(n.queue) == 0 {
		n.mu.Unlock()
		return false
	}

	next := n.queue[0]
	n.queue = n.queue[1:]

	endpoint, reachable := n.endpoints[next.to]
	if _, down := n.detached[next.to]; down {
		reachable = false
	}

	if !reachable {
		if next.env != nil && next.env.Tracked && !next.env.Bounced {
			bounced := *next.env
			bounced.Bounced = true
			n.queue = append(n.queue, item{env: &bounced, to: bounced.From})
			n.LogDebugf("bouncing envelope %s -> %s", next.env.From, next.env.To)
		} else {
			n.LogDebugf("dropping undeliverable item for %s", next.to)
		}
		n.mu.Unlock()
		return true
	}
	n.mu.Unlock()

	// Dispatch outside the lock; the receiving chain serializes its own
	// processing.
	if next.env != nil {
		endpoint.HandleEnvelope(*next.env)
	} else {
		endpoint.HandleStreamRecord(*next.rec)
	}

	return true
}

// DeliverAll drains the queue, including items enqueued by the deliveries
// themselves.
func (n *Network) DeliverAll() {
	for n.DeliverNext() {
	}
}

// Run pumps deliveries until the context is cancelled.
func (n *Network) Run(ctx context.Context) {
	go func() {
		<-ctx.Done()
		n.cond.Broadcast()
	}()

	for {
		n.mu.Lock()
		for len(n.queue) == 0 && ctx.Err() == nil {
			n.cond.Wait()
		}
		n.mu.Unlock()

		if ctx.Err() != nil {
			return
		}

		n.DeliverNext()
	}
}
