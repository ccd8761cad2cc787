package ice

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

// TURN message types, per RFC 5766 §13. Only the response/indication types
// the Agent needs to interpret are named here: the matching requests
// (Allocate, CreatePermission, Send) are built and dispatched by the
// interfaces.ICandidateSource implementation itself, not by this package —
// ICandidateSource.TurnAllocate/TurnCreatePermission/TurnSend take
// structured arguments rather than pre-built messages, precisely so the
// long-term credential challenge-response (the 401/REALM/NONCE exchange a
// real TURN client must drive) stays behind that boundary instead of
// leaking into the sans-I/O agent.
const (
	TurnAllocateSuccess         uint16 = 0x0103
	TurnAllocateError           uint16 = 0x0113
	TurnCreatePermissionSuccess uint16 = 0x0108
	TurnCreatePermissionError   uint16 = 0x0118
	TurnDataIndication          uint16 = 0x0017
)

// TURN attribute types used by the response/indication parsers below, per
// RFC 5766 §14.
const (
	turnAttrLifetime          = 0x000D
	turnAttrXorPeerAddress    = 0x0012
	turnAttrData              = 0x0013
	turnAttrXorRelayedAddress = 0x0016
)

// defaultAllocationLifetime stands in when an Allocate success response
// omits a LIFETIME attribute.
const defaultAllocationLifetime = 10 * time.Minute

// ParseTurnAllocateResponse decodes a TURN Allocate response, returning the
// relayed transport address and granted lifetime on success.
func ParseTurnAllocateResponse(msg *StunMessage) (relayedIP []byte, relayedPort uint16, lifetime time.Duration, err error) {
	if msg.Type == TurnAllocateError {
		return nil, 0, 0, errors.New("ice: TURN allocate refused")
	}
	if msg.Type != TurnAllocateSuccess {
		return nil, 0, 0, fmt.Errorf("ice: unexpected TURN message type 0x%04x", msg.Type)
	}
	var relayAttr, lifetimeAttr []byte
	for _, a := range msg.Attributes {
		switch a.Type {
		case turnAttrXorRelayedAddress:
			relayAttr = a.Value
		case turnAttrLifetime:
			lifetimeAttr = a.Value
		}
	}
	if relayAttr == nil {
		return nil, 0, 0, errors.New("ice: TURN allocate success missing relayed address")
	}
	ip, port, err := decodeXorMappedAddress(relayAttr, msg.TransactionID)
	if err != nil {
		return nil, 0, 0, err
	}
	lifetime = defaultAllocationLifetime
	if len(lifetimeAttr) == 4 {
		lifetime = time.Duration(binary.BigEndian.Uint32(lifetimeAttr)) * time.Second
	}
	return ip, port, lifetime, nil
}

// ParseTurnCreatePermissionResponse reports whether a CreatePermission
// transaction succeeded.
func ParseTurnCreatePermissionResponse(msg *StunMessage) error {
	if msg.Type != TurnCreatePermissionSuccess {
		return errors.New("ice: TURN create permission refused")
	}
	return nil
}

// ParseTurnDataIndication decodes an inbound TURN Data indication into the
// relay peer's address and the payload it sent.
func ParseTurnDataIndication(msg *StunMessage) (peerIP []byte, peerPort uint16, payload []byte, err error) {
	for _, a := range msg.Attributes {
		switch a.Type {
		case turnAttrXorPeerAddress:
			peerIP, peerPort, err = decodeXorMappedAddress(a.Value, msg.TransactionID)
			if err != nil {
				return nil, 0, nil, err
			}
		case turnAttrData:
			payload = a.Value
		}
	}
	if peerIP == nil {
		return nil, 0, nil, errors.New("ice: TURN data indication missing peer address")
	}
	return peerIP, peerPort, payload, nil
}
