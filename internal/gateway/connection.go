package gateway

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/gray-logic-dali-bridge/internal/infrastructure/config"
)

// Connection timing constants.
const (
	// defaultConnectTimeout bounds a single connection attempt. Gateways
	// are local devices; 15 seconds is generous.
	defaultConnectTimeout = 15 * time.Second

	// disconnectQuiesce is the milliseconds allowed for in-flight
	// operations when tearing the transport down.
	disconnectQuiesce = 500
)

// Logger is the logging interface used by the gateway package.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// MessageHandler is the callback for raw messages on a subscribed topic.
// Handlers run on the dispatch loop (or the calling goroutine in
// synchronous mode) and must not block.
type MessageHandler func(topic string, payload []byte)

// Transport is the network layer beneath a Connection: an MQTT session to
// the gateway's broker. The production implementation wraps paho with
// auto-reconnect disabled so the Connection's own scheduler is the only
// thing driving retries. Tests substitute a fake.
type Transport interface {
	// Connect establishes the session, blocking until it is up, the
	// context is cancelled, or the attempt fails.
	Connect(ctx context.Context) error

	// Disconnect tears the session down, waiting up to quiesce
	// milliseconds for in-flight operations.
	Disconnect(quiesce uint)

	// Subscribe registers a raw handler. The handler is invoked on the
	// transport's own network goroutine.
	Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error

	// Publish sends a message on the session.
	Publish(topic string, qos byte, retained bool, payload []byte) error

	// SetConnectionLostHandler installs the callback invoked from the
	// network goroutine when an established session drops unexpectedly.
	SetConnectionLostHandler(fn func(err error))
}

// subscription holds subscription details for restoration after reconnect.
type subscription struct {
	topic   string
	qos     byte
	handler MessageHandler
}

// Options configures a Connection.
type Options struct {
	// Config is the gateway's connection settings.
	Config config.GatewayConfig

	// Transport overrides the network layer. When nil a paho MQTT
	// transport is built from Config.
	Transport Transport

	// Logger is optional; when nil the connection is silent.
	Logger Logger

	// SyncDispatch selects legacy synchronous mode: no dispatch loop is
	// started and listeners run on whichever goroutine raised the event.
	// The integrator accepts the resulting races. Intended only for
	// embedders that already serialise all access themselves.
	SyncDispatch bool

	// ConnectTimeout bounds each connection attempt.
	// Default: 15 seconds.
	ConnectTimeout time.Duration
}

// Connection manages the link to a single DALI Center gateway.
//
// It owns the connection state machine, a listener registration table, and
// the reconnection scheduler. All state is mutated only on the dispatch
// loop; requests arriving from other goroutines (explicit connect and
// disconnect, transport callbacks, timer callbacks) are marshalled onto it.
//
// Thread Safety: all exported methods are safe for concurrent use.
type Connection struct {
	cfg       config.GatewayConfig
	transport Transport
	log       Logger

	disp      *dispatcher
	listeners *listenerTable
	recon     *reconnector

	// state is owned by the dispatch loop. stateAtomic mirrors it for
	// cross-goroutine reads, which are eventually consistent and
	// authoritative only on the loop itself.
	state       State
	stateAtomic atomic.Int32

	// subs tracks active subscriptions in registration order so they can
	// be restored after a reconnect.
	subs   []subscription
	subsMu sync.Mutex

	connectTimeout time.Duration

	closed atomic.Bool
}

// NewConnection creates a connection manager for one gateway.
// Call Connect to bring the link up.
func NewConnection(opts Options) (*Connection, error) {
	if opts.Config.SerialNumber == "" {
		return nil, fmt.Errorf("gateway serial number is required")
	}

	transport := opts.Transport
	if transport == nil {
		transport = newPahoTransport(opts.Config)
	}

	timeout := opts.ConnectTimeout
	if timeout == 0 {
		timeout = defaultConnectTimeout
	}

	c := &Connection{
		cfg:            opts.Config,
		transport:      transport,
		log:            opts.Logger,
		disp:           newDispatcher(opts.SyncDispatch),
		listeners:      newListenerTable(),
		connectTimeout: timeout,
		recon: newReconnector(
			time.Duration(opts.Config.Reconnect.InitialDelay)*time.Second,
			time.Duration(opts.Config.Reconnect.MaxDelay)*time.Second,
		),
	}

	transport.SetConnectionLostHandler(c.handleConnectionLost)

	return c, nil
}

// SerialNumber returns the serial of the gateway this connection manages.
func (c *Connection) SerialNumber() string {
	return c.cfg.SerialNumber
}

// State returns the current connection state. Safe from any goroutine;
// the value is eventually consistent outside the dispatch loop.
func (c *Connection) State() State {
	return State(c.stateAtomic.Load())
}

// IsConnected reports whether the link is established.
func (c *Connection) IsConnected() bool {
	return c.State() == StateConnected
}

// On registers fn for an event category, optionally scoped to a device ID
// (empty deviceID receives the category from every device). The returned
// function unregisters the listener; calling it more than once is a no-op.
func (c *Connection) On(event EventType, deviceID string, fn Handler) func() {
	return c.listeners.add(event, deviceID, fn)
}

// Connect performs the explicit initial connection.
//
// Only this call reports failure directly to the caller: everything after
// it (link loss, failed reconnection attempts) is converted to state
// transitions and availability events.
//
// Parameters:
//   - ctx: Bounds the attempt on top of the configured connect timeout
//
// Returns:
//   - error: ErrAlreadyConnected if the link is not disconnected,
//     ErrConnectFailed wrapping the transport error on failure
func (c *Connection) Connect(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClosed
	}

	// Commit the Disconnected -> Connecting transition on the loop.
	if err := c.call(func() error {
		if c.state != StateDisconnected {
			return fmt.Errorf("%w: state is %s", ErrAlreadyConnected, c.state)
		}
		c.transition(StateConnecting)
		return nil
	}); err != nil {
		return err
	}

	// Run the blocking attempt on the caller's goroutine: the loop must
	// stay free to process events while the socket comes up.
	attemptCtx, cancel := context.WithTimeout(ctx, c.connectTimeout)
	defer cancel()

	err := c.transport.Connect(attemptCtx)

	return c.call(func() error {
		if err != nil {
			c.transition(StateDisconnected)
			return fmt.Errorf("%w: %w", ErrConnectFailed, err)
		}
		c.transition(StateConnected)
		c.recon.reset()
		return nil
	})
}

// Disconnect performs an explicit disconnect.
//
// From Connected it tears the session down; from Reconnecting it cancels
// the pending attempt and suppresses the result of any attempt already in
// flight. A no-op when already disconnected.
func (c *Connection) Disconnect() {
	_ = c.call(func() error {
		switch c.state {
		case StateConnected:
			c.recon.cancel()
			c.transport.Disconnect(disconnectQuiesce)
			c.transition(StateDisconnected)
		case StateReconnecting:
			c.recon.cancel()
			c.transition(StateDisconnected)
		case StateDisconnected, StateConnecting:
			// Nothing to do; an in-flight initial connect reports its
			// own outcome to its caller.
		}
		return nil
	})
}

// Close disconnects and shuts the dispatch loop down. The connection
// cannot be reused afterwards; events raised after Close are dropped.
func (c *Connection) Close() {
	if c.closed.Swap(true) {
		return
	}
	c.Disconnect()
	c.disp.close()
}

// Subscribe registers a handler for a topic on the gateway session.
// The subscription is tracked and automatically restored after reconnects.
// Handlers are marshalled onto the dispatch loop.
func (c *Connection) Subscribe(topic string, qos byte, handler MessageHandler) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	c.subsMu.Lock()
	c.subs = append(c.subs, subscription{topic: topic, qos: qos, handler: handler})
	c.subsMu.Unlock()

	return c.transport.Subscribe(topic, qos, c.marshalled(handler))
}

// Publish sends a message on the gateway session.
func (c *Connection) Publish(topic string, qos byte, retained bool, payload []byte) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return c.transport.Publish(topic, qos, retained, payload)
}

// Emit delivers an event to registered listeners.
//
// Must be called from the dispatch loop, in practice from a subscription
// handler or another listener. The protocol layer decodes gateway reports
// in its subscription handlers and emits typed events from there, which
// keeps one FIFO order per listener for the whole pipeline.
func (c *Connection) Emit(evt Event) {
	evt.GatewaySN = c.cfg.SerialNumber
	c.emit(evt)
}

// =============================================================================
// Dispatch-loop internals
// =============================================================================

// call runs fn on the dispatch loop and waits for its result.
func (c *Connection) call(fn func() error) error {
	result := make(chan error, 1)
	if !c.disp.post(func() { result <- fn() }) {
		return ErrClosed
	}
	return <-result
}

// transition commits a state change on the dispatch loop and notifies
// listeners of availability changes exactly once per transition, never per
// raw network event.
func (c *Connection) transition(next State) {
	if c.state == next || !c.state.canTransition(next) {
		return
	}

	prev := c.state
	c.state = next
	c.stateAtomic.Store(int32(next))

	if c.log != nil {
		c.log.Info("gateway state changed",
			"from", prev.String(),
			"to", next.String(),
		)
	}

	// Entering Connecting changes nothing availability-wise.
	if next == StateConnecting {
		return
	}

	c.emit(Event{
		Type:      EventAvailability,
		GatewaySN: c.cfg.SerialNumber,
		Data:      next.Available(),
	})
}

// emit invokes every interested listener inline, registration order, with
// panic recovery so one faulty listener cannot take down the loop.
func (c *Connection) emit(evt Event) {
	for _, fn := range c.listeners.handlersFor(evt.Type, evt.DeviceID) {
		c.invoke(fn, evt)
	}
}

func (c *Connection) invoke(fn Handler, evt Event) {
	defer func() {
		if r := recover(); r != nil {
			if c.log != nil {
				c.log.Error("listener panic recovered",
					"event", string(evt.Type),
					"device", evt.DeviceID,
					"panic", r,
				)
			}
		}
	}()
	fn(evt)
}

// marshalled wraps a raw message handler so it runs on the dispatch loop.
// If the loop has shut down the message is dropped: raising into the
// transport's network goroutine would abort its message processing.
func (c *Connection) marshalled(handler MessageHandler) func(string, []byte) {
	return func(topic string, payload []byte) {
		c.disp.post(func() { handler(topic, payload) })
	}
}

// handleConnectionLost is installed as the transport's connection-lost
// callback; it fires on the network goroutine and only posts.
func (c *Connection) handleConnectionLost(err error) {
	c.disp.post(func() {
		// Only an established link enters Reconnecting. Redundant loss
		// signals while already reconnecting change nothing, so
		// listeners hear about the transition exactly once.
		if c.state != StateConnected {
			return
		}

		if c.log != nil {
			c.log.Warn("gateway connection lost", "error", err)
		}

		c.transition(StateReconnecting)
		c.recon.reset()
		c.scheduleReconnect()
	})
}

// scheduleReconnect arms the backoff timer for the next attempt.
// Loop-owned: must be called from the dispatch loop.
func (c *Connection) scheduleReconnect() {
	delay := c.recon.next(func(epoch uint64) {
		c.disp.post(func() { c.attemptReconnect(epoch) })
	})

	if c.log != nil {
		c.log.Debug("reconnection attempt scheduled",
			"attempt", c.recon.attempts+1,
			"delay", delay.String(),
		)
	}
}

// attemptReconnect starts one reconnection attempt. The blocking connect
// runs on its own goroutine; the result is posted back with the epoch it
// was started under so a cancelled attempt's outcome is discarded.
func (c *Connection) attemptReconnect(epoch uint64) {
	if !c.recon.current(epoch) || c.state != StateReconnecting {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), c.connectTimeout)
		defer cancel()

		err := c.transport.Connect(ctx)
		c.disp.post(func() { c.finishReconnect(epoch, err) })
	}()
}

// finishReconnect applies the outcome of a reconnection attempt.
// Loop-owned.
func (c *Connection) finishReconnect(epoch uint64, err error) {
	if !c.recon.current(epoch) || c.state != StateReconnecting {
		// Superseded by an explicit disconnect. If the late attempt
		// actually opened a session, drop it: the state machine must
		// not be resurrected into Connected.
		if err == nil {
			c.transport.Disconnect(0)
		}
		return
	}

	if err != nil {
		c.recon.failed()
		// Reduced severity: an unreachable gateway during an outage is
		// expected and the next attempt is already scheduled.
		if c.log != nil {
			c.log.Debug("reconnection attempt failed",
				"attempt", c.recon.attempts,
				"error", err,
			)
		}
		c.scheduleReconnect()
		return
	}

	// Subscriptions come back before listeners are told the gateway is
	// available again, so a listener reacting to the event can rely on
	// reports flowing.
	c.restoreSubscriptions()
	c.transition(StateConnected)
	c.recon.reset()

	if c.log != nil {
		c.log.Info("gateway reconnected")
	}
}

// restoreSubscriptions re-subscribes every tracked topic after a reconnect,
// in original registration order.
func (c *Connection) restoreSubscriptions() {
	c.subsMu.Lock()
	subs := make([]subscription, len(c.subs))
	copy(subs, c.subs)
	c.subsMu.Unlock()

	for _, sub := range subs {
		if err := c.transport.Subscribe(sub.topic, sub.qos, c.marshalled(sub.handler)); err != nil {
			if c.log != nil {
				c.log.Warn("failed to restore subscription",
					"topic", sub.topic,
					"error", err,
				)
			}
		}
	}
}
