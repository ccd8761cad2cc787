package dtls

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"errors"

	"github.com/opd-ai/rtcengine/crypto"
)

// This file implements the minimal wire encoding this engine needs for the
// four handshake messages its state machine exchanges. It carries the
// fields this engine's state machine and key export actually consume
// (randoms, cipher suite list, the X25519 public value standing in for the
// ECDHE key exchange payload, the use_srtp extension, and the cookie) rather
// than the full X.509/certificate-chain machinery TLS normally carries.
// Endpoint authentication is the CertificateVerify analogue: each side
// carries its Ed25519 identity public key plus a signature over the
// handshake randoms and its ECDHE public value (the server in ServerHello,
// the client alongside its Finished verify-data), and the host's
// interfaces.ICertificateVerifier then decides whether that identity
// matches the fingerprint negotiated in the session description.

type clientHelloMsg struct {
	random     []byte
	cookie     []byte
	suites     []CipherSuite
	ecdhPublic [32]byte
}

func encodeClientHello(random, cookie []byte, suites []CipherSuite, ecdhPublic [32]byte) []byte {
	out := make([]byte, 0, 32+1+len(cookie)+2+2*len(suites)+32)
	out = append(out, random...)
	out = append(out, byte(len(cookie)))
	out = append(out, cookie...)

	suiteLen := make([]byte, 2)
	binary.BigEndian.PutUint16(suiteLen, uint16(2*len(suites)))
	out = append(out, suiteLen...)
	for _, s := range suites {
		b := make([]byte, 2)
		binary.BigEndian.PutUint16(b, uint16(s))
		out = append(out, b...)
	}
	out = append(out, ecdhPublic[:]...)
	return out
}

func decodeClientHello(body []byte) (clientHelloMsg, error) {
	if len(body) < 33 {
		return clientHelloMsg{}, errors.New("dtls: ClientHello too short")
	}
	msg := clientHelloMsg{}
	msg.random = body[0:32]
	offset := 32
	cookieLen := int(body[offset])
	offset++
	if len(body) < offset+cookieLen+2 {
		return clientHelloMsg{}, errors.New("dtls: ClientHello truncated at cookie")
	}
	msg.cookie = body[offset : offset+cookieLen]
	offset += cookieLen

	suiteBytesLen := int(binary.BigEndian.Uint16(body[offset : offset+2]))
	offset += 2
	if len(body) < offset+suiteBytesLen+32 {
		return clientHelloMsg{}, errors.New("dtls: ClientHello truncated at suites")
	}
	for i := 0; i < suiteBytesLen; i += 2 {
		msg.suites = append(msg.suites, CipherSuite(binary.BigEndian.Uint16(body[offset+i:offset+i+2])))
	}
	offset += suiteBytesLen
	copy(msg.ecdhPublic[:], body[offset:offset+32])
	return msg, nil
}

func encodeHelloVerifyRequest(cookie []byte) []byte {
	return append([]byte{byte(len(cookie))}, cookie...)
}

func decodeHelloVerifyRequest(body []byte) ([]byte, error) {
	if len(body) < 1 {
		return nil, errors.New("dtls: HelloVerifyRequest empty")
	}
	n := int(body[0])
	if len(body) < 1+n {
		return nil, errors.New("dtls: HelloVerifyRequest truncated")
	}
	return body[1 : 1+n], nil
}

type serverHelloMsg struct {
	random      []byte
	suite       CipherSuite
	ecdhPublic  [32]byte
	srtpProfile SRTPProfile
	identity    [32]byte
	signature   crypto.Signature
}

func encodeServerHello(random []byte, suite CipherSuite, ecdhPublic [32]byte, srtp SRTPProfile, identity [32]byte, signature crypto.Signature) []byte {
	out := make([]byte, 0, 32+2+32+2+32+crypto.SignatureSize)
	out = append(out, random...)
	suiteBytes := make([]byte, 2)
	binary.BigEndian.PutUint16(suiteBytes, uint16(suite))
	out = append(out, suiteBytes...)
	out = append(out, ecdhPublic[:]...)
	srtpBytes := make([]byte, 2)
	binary.BigEndian.PutUint16(srtpBytes, uint16(srtp))
	out = append(out, srtpBytes...)
	out = append(out, identity[:]...)
	out = append(out, signature[:]...)
	return out
}

func decodeServerHello(body []byte) (serverHelloMsg, error) {
	if len(body) < 32+2+32+2+32+crypto.SignatureSize {
		return serverHelloMsg{}, errors.New("dtls: ServerHello too short")
	}
	msg := serverHelloMsg{random: body[0:32]}
	msg.suite = CipherSuite(binary.BigEndian.Uint16(body[32:34]))
	copy(msg.ecdhPublic[:], body[34:66])
	msg.srtpProfile = SRTPProfile(binary.BigEndian.Uint16(body[66:68]))
	copy(msg.identity[:], body[68:100])
	copy(msg.signature[:], body[100:100+crypto.SignatureSize])
	return msg, nil
}

// finishedMsg pairs the Finished verify-data with the sender's identity
// proof. The server proves its identity in ServerHello; the client proves
// its own here, alongside the verify-data, playing the role TLS gives the
// separate CertificateVerify message.
type finishedMsg struct {
	verifyData []byte
	identity   [32]byte
	signature  crypto.Signature
	hasProof   bool
}

func encodeFinished(verifyData []byte, identity [32]byte, signature crypto.Signature, withProof bool) []byte {
	out := append([]byte(nil), verifyData...)
	if withProof {
		out = append(out, identity[:]...)
		out = append(out, signature[:]...)
	}
	return out
}

func decodeFinished(body []byte) (finishedMsg, error) {
	if len(body) < sha256.Size {
		return finishedMsg{}, errors.New("dtls: Finished too short")
	}
	msg := finishedMsg{verifyData: body[:sha256.Size]}
	rest := body[sha256.Size:]
	if len(rest) == 0 {
		return msg, nil
	}
	if len(rest) < 32+crypto.SignatureSize {
		return finishedMsg{}, errors.New("dtls: Finished identity proof truncated")
	}
	copy(msg.identity[:], rest[0:32])
	copy(msg.signature[:], rest[32:32+crypto.SignatureSize])
	msg.hasProof = true
	return msg, nil
}

// identityTranscript is the byte string an endpoint signs with its
// long-term identity: both handshake randoms plus its own ephemeral ECDHE
// public value, binding the key exchange to the identity without a full
// transcript hash.
func identityTranscript(clientRandom, serverRandom []byte, ecdhPublic [32]byte) []byte {
	out := make([]byte, 0, len(clientRandom)+len(serverRandom)+32)
	out = append(out, clientRandom...)
	out = append(out, serverRandom...)
	return append(out, ecdhPublic[:]...)
}

// computeFinished derives the handshake Finished verify-data as an
// HMAC-SHA256 over the master secret and the sending side's own random (the
// client random for the client's Finished, the server random for the
// server's), standing in for PRF(master_secret, "client/server
// finished", hash(handshake_messages)) since the engine's transcript hash is
// scoped to what this codec actually exchanges.
func computeFinished(masterSecret, random []byte) []byte {
	mac := hmac.New(sha256.New, masterSecret)
	mac.Write(random)
	return mac.Sum(nil)
}
