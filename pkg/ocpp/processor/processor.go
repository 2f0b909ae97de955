// Package processor implements the OCPP message router and offline
// outbound queue (§4.2): it parses inbound frames, dispatches Calls to
// registered handlers, correlates Results/Errors against a pending-request
// table, and queues outbound Messages while the transport is disconnected.
package processor

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/ocppgw/ocpp-gateway/internal/logger"
	"github.com/ocppgw/ocpp-gateway/pkg/gwerr"
	"github.com/ocppgw/ocpp-gateway/pkg/ocpp"
)

// Handler processes an inbound Call and returns either a success payload
// (wrapped into a CallResult by the processor) or a CallError code and
// description.
type Handler func(ctx context.Context, call *ocpp.Call) (result any, errCode ocpp.ErrorCode, errDescription string)

// Sender is the minimal outbound capability the processor needs from a
// transport collaborator (§4.3's send(text) -> bool).
type Sender interface {
	Send(text string) bool
}

// ResultHandler receives an inbound CallResult correlated to its original
// Action.
type ResultHandler func(action ocpp.Action, payload []byte)

// ErrorHandler receives an inbound CallError correlated to its original
// Action.
type ErrorHandler func(action ocpp.Action, code ocpp.ErrorCode, description string)

// Config bounds the offline outbound queue (§4.2).
type Config struct {
	MaxMessages int
	MaxBytes    int64
}

// Processor is the OCPP message router and offline queue. It is safe for
// concurrent use; per §5, the pending-table mutex and the handler-registry
// mutex are independent so a re-entrant handler cannot deadlock the router.
type Processor struct {
	cfg Config

	handlersMu sync.RWMutex
	handlers   map[ocpp.Action]Handler
	onResult   ResultHandler
	onError    ErrorHandler

	pendingMu sync.Mutex
	pending   map[string]ocpp.Action

	queueMu      sync.Mutex
	queue        [][]byte
	queueBytes   int64
	connected    bool
	sender       Sender
	droppedCount atomic.Int64
}

// New creates a Processor bounded by cfg.
func New(cfg Config) *Processor {
	return &Processor{
		cfg:      cfg,
		handlers: make(map[ocpp.Action]Handler),
		pending:  make(map[string]ocpp.Action),
	}
}

// RegisterHandler installs the handler invoked for inbound Calls with the
// given action. Registering for an action replaces any existing handler.
func (p *Processor) RegisterHandler(action ocpp.Action, h Handler) {
	p.handlersMu.Lock()
	defer p.handlersMu.Unlock()
	p.handlers[action] = h
}

// SetResultHandler installs the callback invoked when an inbound CallResult
// correlates to a pending outbound Call.
func (p *Processor) SetResultHandler(h ResultHandler) {
	p.handlersMu.Lock()
	defer p.handlersMu.Unlock()
	p.onResult = h
}

// SetErrorHandler installs the callback invoked when an inbound CallError
// correlates to a pending outbound Call.
func (p *Processor) SetErrorHandler(h ErrorHandler) {
	p.handlersMu.Lock()
	defer p.handlersMu.Unlock()
	p.onError = h
}

// SetSender attaches the transport capability used to deliver outbound
// frames once connected.
func (p *Processor) SetSender(s Sender) {
	p.queueMu.Lock()
	defer p.queueMu.Unlock()
	p.sender = s
}

// SetConnected updates the transport connection state. Transitioning to
// true drains the offline queue in submission order (§4.2, §8 property 3).
func (p *Processor) SetConnected(connected bool) {
	p.queueMu.Lock()
	p.connected = connected
	p.queueMu.Unlock()

	if connected {
		p.ProcessQueue()
	}
}

// HandleInbound parses and routes one inbound frame. For a Call, it
// returns the serialized CallResult/CallError to send back immediately.
// For a Result/Error, it correlates against the pending table and invokes
// the registered callback; it returns nil, nil since no reply is sent.
func (p *Processor) HandleInbound(ctx context.Context, raw []byte) ([]byte, error) {
	msg, err := ocpp.Parse(raw)
	if err != nil {
		logger.WarnCtx(ctx, "dropping unparseable inbound frame", logger.Err(err))
		return nil, nil
	}

	switch m := msg.(type) {
	case *ocpp.Call:
		return p.handleCall(ctx, m)
	case *ocpp.CallResult:
		p.handleResult(m)
		return nil, nil
	case *ocpp.CallError:
		p.handleError(m)
		return nil, nil
	default:
		return nil, gwerr.NewInternal("processor.HandleInbound", "unreachable message type")
	}
}

func (p *Processor) handleCall(ctx context.Context, call *ocpp.Call) ([]byte, error) {
	var h Handler
	if call.Action.Known() {
		p.handlersMu.RLock()
		h = p.handlers[call.Action]
		p.handlersMu.RUnlock()
	}

	if h == nil {
		return ocpp.Serialize(ocpp.NewCallError(call, ocpp.ErrorNotImplemented, "no handler for action "+string(call.Action)))
	}

	result, errCode, errDescription := h(ctx, call)
	if errCode != "" {
		return ocpp.Serialize(ocpp.NewCallError(call, errCode, errDescription))
	}

	callResult, err := ocpp.NewCallResult(call, result)
	if err != nil {
		return ocpp.Serialize(ocpp.NewCallError(call, ocpp.ErrorInternalError, err.Error()))
	}
	return ocpp.Serialize(callResult)
}

func (p *Processor) handleResult(result *ocpp.CallResult) {
	action, found := p.popPending(result.ID)
	if !found {
		return
	}

	p.handlersMu.RLock()
	cb := p.onResult
	p.handlersMu.RUnlock()

	if cb != nil {
		cb(action, result.Payload)
	}
}

func (p *Processor) handleError(callErr *ocpp.CallError) {
	action, found := p.popPending(callErr.ID)
	if !found {
		return
	}

	p.handlersMu.RLock()
	cb := p.onError
	p.handlersMu.RUnlock()

	if cb != nil {
		cb(action, callErr.Code, callErr.Description)
	}
}

// SendCall records the Call in the pending table, then sends or enqueues
// it (§4.2 ordering: pending-table-insert precedes transport-send).
func (p *Processor) SendCall(call *ocpp.Call) error {
	p.pendingMu.Lock()
	p.pending[call.ID] = call.Action
	p.pendingMu.Unlock()

	data, err := ocpp.Serialize(call)
	if err != nil {
		p.popPending(call.ID)
		return gwerr.Wrap(gwerr.Protocol, "processor.SendCall", "failed to serialize call", err)
	}
	p.sendOrQueue(data)
	return nil
}

// SendMessage sends or enqueues a CallResult/CallError that is not itself a
// reply returned from HandleInbound (used for unsolicited outbound
// replies, if ever needed by a caller).
func (p *Processor) SendMessage(m ocpp.Message) error {
	data, err := ocpp.Serialize(m)
	if err != nil {
		return gwerr.Wrap(gwerr.Protocol, "processor.SendMessage", "failed to serialize message", err)
	}
	p.sendOrQueue(data)
	return nil
}

func (p *Processor) sendOrQueue(data []byte) {
	p.queueMu.Lock()
	connected := p.connected
	sender := p.sender
	p.queueMu.Unlock()

	if connected && sender != nil && sender.Send(string(data)) {
		return
	}
	p.enqueue(data)
}

// enqueue appends a serialized frame to the offline queue, discarding the
// oldest entry on overflow (§4.2).
func (p *Processor) enqueue(data []byte) {
	p.queueMu.Lock()
	defer p.queueMu.Unlock()

	for (len(p.queue) >= p.cfg.MaxMessages || p.queueBytes+int64(len(data)) > p.cfg.MaxBytes) && len(p.queue) > 0 {
		dropped := p.queue[0]
		p.queue = p.queue[1:]
		p.queueBytes -= int64(len(dropped))
		p.droppedCount.Add(1)
	}

	p.queue = append(p.queue, data)
	p.queueBytes += int64(len(data))
}

// ProcessQueue drains the offline queue in order. On send failure the
// remaining messages stay queued, preserving order (§4.2).
func (p *Processor) ProcessQueue() {
	for {
		p.queueMu.Lock()
		if len(p.queue) == 0 || !p.connected || p.sender == nil {
			p.queueMu.Unlock()
			return
		}
		next := p.queue[0]
		sender := p.sender
		p.queueMu.Unlock()

		if !sender.Send(string(next)) {
			return
		}

		p.queueMu.Lock()
		if len(p.queue) > 0 {
			p.queueBytes -= int64(len(p.queue[0]))
			p.queue = p.queue[1:]
		}
		p.queueMu.Unlock()
	}
}

// popPending removes id from the pending table and returns its action.
func (p *Processor) popPending(id string) (ocpp.Action, bool) {
	p.pendingMu.Lock()
	defer p.pendingMu.Unlock()
	action, found := p.pending[id]
	if found {
		delete(p.pending, id)
	}
	return action, found
}

// Pending reports whether id is still awaiting a Result/Error, and its Action.
func (p *Processor) Pending(id string) (ocpp.Action, bool) {
	p.pendingMu.Lock()
	defer p.pendingMu.Unlock()
	action, found := p.pending[id]
	return action, found
}

// PendingCount returns the number of in-flight outbound Calls.
func (p *Processor) PendingCount() int {
	p.pendingMu.Lock()
	defer p.pendingMu.Unlock()
	return len(p.pending)
}

// QueueSize returns the number of queued (undelivered) outbound frames.
func (p *Processor) QueueSize() int {
	p.queueMu.Lock()
	defer p.queueMu.Unlock()
	return len(p.queue)
}

// DroppedCount returns the number of queued frames discarded due to
// overflow.
func (p *Processor) DroppedCount() int64 {
	return p.droppedCount.Load()
}
