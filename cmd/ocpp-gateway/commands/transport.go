package commands

import (
	"github.com/ocppgw/ocpp-gateway/internal/logger"
	"github.com/ocppgw/ocpp-gateway/pkg/transport"
)

// noopTransport stands in for the concrete WebSocket dialer this gateway
// intentionally leaves unimplemented (the core is specified against
// pkg/transport.Transport as an interface-only collaborator). It reports
// itself disconnected and logs what it would have sent, so `run` can wire
// the rest of the client manager end to end until a real dialer (e.g.
// gorilla/websocket, nhooyr.io/websocket) is plugged in here.
type noopTransport struct {
	cb    transport.Callbacks
	state transport.State
}

func newNoopTransport(cfg transport.Config, cb transport.Callbacks) transport.Transport {
	logger.Warn("no WebSocket transport implementation is configured; running with a no-op transport", "csms_url", cfg.URL)
	return &noopTransport{cb: cb, state: transport.Disconnected}
}

func (t *noopTransport) Connect() error {
	t.state = transport.Disconnected
	t.cb.OnOpen(false)
	return nil
}

func (t *noopTransport) Send(text string) bool {
	logger.Debug("no-op transport dropped outbound frame", "frame", text)
	return false
}

func (t *noopTransport) Close(reason string) {
	t.state = transport.Closed
	t.cb.OnClose(reason)
}

func (t *noopTransport) State() transport.State { return t.state }
