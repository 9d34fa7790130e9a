package feed

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gradtrust/portal/internal/domain/merkle"
)

// Engine.IO v4 packet types, with the Socket.IO v5 type as the second byte of
// a message packet.
const (
	eioOpen    = '0'
	eioClose   = '1'
	eioPing    = '2'
	eioPong    = '3'
	eioMessage = '4'

	sioConnect      = '0'
	sioDisconnect   = '1'
	sioEvent        = '2'
	sioConnectError = '4'
)

var (
	ErrEmptyPacket    = errors.New("empty packet")
	ErrUnknownPacket  = errors.New("unknown packet type")
	ErrServerClosed   = errors.New("server closed the connection")
	ErrConnectRefused = errors.New("namespace connect refused")
)

type packetKind int

const (
	kindOpen packetKind = iota
	kindPing
	kindConnected
	kindEvent
	kindIgnored
)

type packet struct {
	kind      packetKind
	handshake handshake
	event     merkle.Event
}

type handshake struct {
	SID          string `json:"sid"`
	PingInterval int    `json:"pingInterval"`
	PingTimeout  int    `json:"pingTimeout"`
}

// readDeadline is how long to wait for the next frame before treating the
// connection as dead.
func (h handshake) readDeadline() time.Duration {
	d := time.Duration(h.PingInterval+h.PingTimeout) * time.Millisecond
	if d <= 0 {
		return 45 * time.Second
	}
	return d
}

func parsePacket(msg []byte) (packet, error) {
	if len(msg) == 0 {
		return packet{}, ErrEmptyPacket
	}

	switch msg[0] {
	case eioOpen:
		var h handshake
		if err := json.Unmarshal(msg[1:], &h); err != nil {
			return packet{}, fmt.Errorf("decode handshake: %w", err)
		}
		return packet{kind: kindOpen, handshake: h}, nil
	case eioPing:
		return packet{kind: kindPing}, nil
	case eioPong:
		return packet{kind: kindIgnored}, nil
	case eioClose:
		return packet{}, ErrServerClosed
	case eioMessage:
		return parseMessage(msg[1:])
	default:
		return packet{}, fmt.Errorf("%w: %q", ErrUnknownPacket, msg[0])
	}
}

func parseMessage(msg []byte) (packet, error) {
	if len(msg) == 0 {
		return packet{}, ErrEmptyPacket
	}

	switch msg[0] {
	case sioConnect:
		return packet{kind: kindConnected}, nil
	case sioDisconnect:
		return packet{}, ErrServerClosed
	case sioConnectError:
		return packet{}, fmt.Errorf("%w: %s", ErrConnectRefused, msg[1:])
	case sioEvent:
		ev, ok, err := decodeEvent(msg[1:])
		if err != nil {
			return packet{}, err
		}
		if !ok {
			return packet{kind: kindIgnored}, nil
		}
		return packet{kind: kindEvent, event: ev}, nil
	default:
		return packet{kind: kindIgnored}, nil
	}
}

// decodeEvent reads ["name", payload]. Events other than the two Merkle ones
// are reported as not ok.
func decodeEvent(body []byte) (merkle.Event, bool, error) {
	var parts []json.RawMessage
	if err := json.Unmarshal(body, &parts); err != nil {
		return merkle.Event{}, false, fmt.Errorf("decode event: %w", err)
	}
	if len(parts) == 0 {
		return merkle.Event{}, false, fmt.Errorf("decode event: missing name")
	}

	var name string
	if err := json.Unmarshal(parts[0], &name); err != nil {
		return merkle.Event{}, false, fmt.Errorf("decode event name: %w", err)
	}

	var payload json.RawMessage
	if len(parts) > 1 {
		payload = parts[1]
	}

	switch name {
	case merkle.EventRootUpdated:
		var upd merkle.UpdateResult
		if err := json.Unmarshal(payload, &upd); err != nil {
			return merkle.Event{}, false, fmt.Errorf("decode %s: %w", name, err)
		}
		return merkle.Event{Name: name, Updated: &upd}, true, nil
	case merkle.EventPendingUpdates:
		var body struct {
			Pending []merkle.PendingUpdate `json:"pending"`
		}
		if err := json.Unmarshal(payload, &body); err != nil {
			return merkle.Event{}, false, fmt.Errorf("decode %s: %w", name, err)
		}
		if body.Pending == nil {
			body.Pending = []merkle.PendingUpdate{}
		}
		return merkle.Event{Name: name, Pending: body.Pending}, true, nil
	default:
		return merkle.Event{}, false, nil
	}
}
