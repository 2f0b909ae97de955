package echonet

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/ocppgw/ocpp-gateway/internal/logger"
	"github.com/ocppgw/ocpp-gateway/pkg/device"
	"github.com/ocppgw/ocpp-gateway/pkg/gwerr"
	"golang.org/x/net/ipv4"
)

const (
	unicastPort     = 3610
	multicastGroup  = "224.0.23.0"
	multicastTTL    = 1
	defaultTimeout  = 1 * time.Second
	maxRetries      = 3
	retryBackoff    = 100 * time.Millisecond
	statusInterval  = 30 * time.Second
	receivePollTick = 50 * time.Millisecond
)

// sender transmits a serialized frame to a destination IP on the unicast
// port. It is a field rather than a direct net.UDPConn call so tests can
// inject a fake transport (§4.6's "single receive task" is likewise
// driven through HandleInbound rather than a real socket in tests).
type sender func(ip string, data []byte) error

// Adapter is the ECHONET Lite device adapter (§4.6).
type Adapter struct {
	*device.Base

	send          sender
	multicastSend func(data []byte) error

	tidMu   sync.Mutex
	nextTID uint16

	pendingMu sync.Mutex
	pending   map[uint16]chan Frame

	discoveryMu   sync.Mutex
	discoveryTID  uint16
	discoveryCB   device.DiscoveryCallback
	discoverySeen map[string]bool
	discoveryStop chan struct{}

	conn  *net.UDPConn
	mconn *net.UDPConn

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewAdapter creates an ECHONET Lite adapter with no sockets open yet;
// call Initialize then Start to begin operating.
func NewAdapter() *Adapter {
	return &Adapter{
		Base:    device.NewBase(device.ProtocolEchonetLite),
		nextTID: 1,
		pending: make(map[uint16]chan Frame),
	}
}

// Initialize opens the unicast and multicast sockets. Idempotent: calling
// it again while already initialized is a no-op.
func (a *Adapter) Initialize() error {
	if a.conn != nil {
		return nil
	}

	conn, err := net.ListenUDP("udp4", &net.UDPAddr{Port: 0})
	if err != nil {
		return gwerr.Wrap(gwerr.Network, "echonet.Initialize", "failed to open unicast socket", err)
	}
	a.conn = conn
	a.send = func(ip string, data []byte) error {
		addr := &net.UDPAddr{IP: net.ParseIP(ip), Port: unicastPort}
		_, err := conn.WriteToUDP(data, addr)
		return err
	}

	group := net.ParseIP(multicastGroup)
	mconn, err := net.ListenMulticastUDP("udp4", nil, &net.UDPAddr{IP: group, Port: unicastPort})
	if err != nil {
		conn.Close()
		a.conn = nil
		return gwerr.Wrap(gwerr.Network, "echonet.Initialize", "failed to open multicast socket", err)
	}
	a.mconn = mconn
	pc := ipv4.NewPacketConn(mconn)
	_ = pc.SetMulticastTTL(multicastTTL)
	a.multicastSend = func(data []byte) error {
		addr := &net.UDPAddr{IP: group, Port: unicastPort}
		_, err := mconn.WriteToUDP(data, addr)
		return err
	}

	return nil
}

// Start begins the receive loop and the status-monitoring goroutine.
// Idempotent.
func (a *Adapter) Start() error {
	if a.IsRunning() {
		return nil
	}
	a.SetRunning(true)
	a.stopCh = make(chan struct{})

	if a.conn != nil {
		a.wg.Add(1)
		go a.receiveLoop(a.conn)
	}
	a.wg.Add(1)
	go a.statusMonitorLoop()

	return nil
}

// Stop cancels background work and marks all devices offline. Idempotent.
func (a *Adapter) Stop() {
	if !a.IsRunning() {
		return
	}
	a.SetRunning(false)
	close(a.stopCh)
	a.wg.Wait()

	if a.conn != nil {
		a.conn.Close()
	}
	if a.mconn != nil {
		a.mconn.Close()
	}
	a.MarkAllOffline()
}

func (a *Adapter) receiveLoop(conn *net.UDPConn) {
	defer a.wg.Done()
	buf := make([]byte, 2048)
	for {
		select {
		case <-a.stopCh:
			return
		default:
		}

		conn.SetReadDeadline(time.Now().Add(receivePollTick))
		n, addr, err := conn.ReadFromUDP(buf)
		if err != nil {
			continue
		}

		frame, err := Deserialize(buf[:n])
		if err != nil {
			logger.Warn("dropping malformed ECHONET Lite frame", logger.Err(err))
			continue
		}
		a.HandleInbound(addr.IP.String(), frame)
	}
}

// HandleInbound routes one received frame to its pending request (if
// TID-correlated) or to discovery handling.
func (a *Adapter) HandleInbound(sourceIP string, frame Frame) {
	a.discoveryMu.Lock()
	active := a.discoveryTID == frame.TID && a.discoveryCB != nil
	a.discoveryMu.Unlock()
	if active {
		a.handleDiscoveryResponse(sourceIP, frame)
	}

	a.pendingMu.Lock()
	ch, ok := a.pending[frame.TID]
	a.pendingMu.Unlock()
	if ok {
		select {
		case ch <- frame:
		default:
		}
	}
}

func (a *Adapter) nextTransactionID() uint16 {
	a.tidMu.Lock()
	defer a.tidMu.Unlock()
	tid := a.nextTID
	a.nextTID++
	if a.nextTID == 0 {
		a.nextTID = 1
	}
	return tid
}

// sendRequestWithResponse sends frame to the device at ip and waits for a
// correlated response, making up to maxRetries attempts with linear
// backoff (§4.6).
func (a *Adapter) sendRequestWithResponse(ip string, frame Frame, timeout time.Duration) (Frame, error) {
	ch := make(chan Frame, 1)
	a.pendingMu.Lock()
	a.pending[frame.TID] = ch
	a.pendingMu.Unlock()
	defer func() {
		a.pendingMu.Lock()
		delete(a.pending, frame.TID)
		a.pendingMu.Unlock()
	}()

	data := frame.Serialize()
	for attempt := 1; attempt <= maxRetries; attempt++ {
		if err := a.send(ip, data); err != nil {
			return Frame{}, gwerr.Wrap(gwerr.Network, "echonet.sendRequestWithResponse", "failed to send frame", err)
		}

		select {
		case resp := <-ch:
			return resp, nil
		case <-time.After(timeout):
			time.Sleep(retryBackoff * time.Duration(attempt))
		}
	}
	return Frame{}, gwerr.NewTimeout("echonet.sendRequestWithResponse", fmt.Sprintf("no response from %s after %d attempts", ip, maxRetries))
}

func (a *Adapter) addressFor(deviceID string) (string, error) {
	info, ok := a.DeviceInfo(deviceID)
	if !ok {
		return "", gwerr.New(gwerr.Device, "echonet", "device not found: "+deviceID)
	}
	addr, ok := info.Address.(device.EchonetLiteAddress)
	if !ok {
		return "", gwerr.New(gwerr.Device, "echonet", "device has no ECHONET Lite address: "+deviceID)
	}
	return addr.IP, nil
}
