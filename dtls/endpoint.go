package dtls

import (
	"errors"
	"io"
	"time"

	"github.com/opd-ai/rtcengine/crypto"
	"github.com/opd-ai/rtcengine/rtclog"
)

// FailureReason is the machine-readable reason tag carried by a
// HandshakeFailed event.
type FailureReason string

const (
	FailureVersionMismatch   FailureReason = "version_mismatch"
	FailureCookieMismatch    FailureReason = "cookie_mismatch"
	FailureCertVerification  FailureReason = "certificate_verification"
	FailureFinishedMismatch  FailureReason = "finished_mac_mismatch"
	FailureNoSuite           FailureReason = "no_implemented_cipher_suite"
	FailureFlightOverflow    FailureReason = "flight_buffer_overflow"
	FailureKeyDerivation     FailureReason = "key_derivation_failed"
)

// Event is an outbound notification surfaced to the Session. Payload carries
// the decrypted bytes of an EventApplicationData event; it is unused by
// every other kind.
type Event struct {
	Kind    EventKind
	Reason  FailureReason
	Payload []byte
}

type EventKind int

const (
	EventNone EventKind = iota
	EventHandshakeComplete
	EventHandshakeFailed
	EventApplicationData
)

// ExportedKeys holds the keying material handed to the media transport once
// the handshake reaches OPEN.
type ExportedKeys struct {
	Material []byte
	Profile  SRTPProfile
}

// Endpoint drives one side of a single DTLS association: record layer
// epochs, handshake flight retransmission, and the ECDHE key agreement that
// produces the master secret. It performs no I/O; the host feeds it
// datagrams via HandleRead and drains datagrams via PollWrite.
type Endpoint struct {
	role   Role
	state  State
	entropy io.Reader

	localKeyPair  *crypto.KeyPair
	peerPublicKey [32]byte
	masterSecret  []byte
	clientRandom  []byte
	serverRandom  []byte

	// identitySeed is the long-term Ed25519 signing key this endpoint
	// authenticates with; identityPublic is what peers fingerprint.
	identitySeed     [32]byte
	identityPublic   [32]byte
	peerIdentity     [32]byte
	havePeerIdentity bool

	offeredSuites  []CipherSuite
	selectedSuite  CipherSuite
	selectedSRTP   SRTPProfile

	readEpoch  *EpochState
	writeEpoch *EpochState

	// appReadEpoch/appWriteEpoch protect epoch-1 application-data records
	// once the handshake completes: this is the authenticated channel the
	// reliable stream transport runs over, kept separate from the
	// handshake epoch's replay window and from the SRTP media keys.
	appReadEpoch  *EpochState
	appWriteEpoch *EpochState

	reassembler *Reassembler
	flight      *Flight
	cookieSigner *CookieSigner
	serverCookie []byte

	messageSeq uint16

	log *rtclog.Scope
}

// NewEndpoint constructs a handshake endpoint for the given role. identity
// is the long-term Ed25519 seed the endpoint signs its key exchange with;
// its public key is what the session description's fingerprint names.
func NewEndpoint(role Role, identity [32]byte, entropy io.Reader, now time.Time) (*Endpoint, error) {
	kp, err := crypto.GenerateKeyPair(entropy)
	if err != nil {
		return nil, err
	}
	var signer *CookieSigner
	if role == RoleServer {
		signer, err = NewCookieSigner(entropy, now)
		if err != nil {
			return nil, err
		}
	}
	return &Endpoint{
		role:           role,
		state:          StateListening,
		entropy:        entropy,
		localKeyPair:   kp,
		identitySeed:   identity,
		identityPublic: crypto.SignerPublicKey(identity),
		offeredSuites:  defaultOfferedSuites,
		readEpoch:      NewEpochState(0),
		writeEpoch:     NewEpochState(0),
		reassembler:    NewReassembler(),
		cookieSigner:   signer,
		log:            rtclog.NewScope("dtls.endpoint"),
	}, nil
}

// State returns the endpoint's current handshake state.
func (e *Endpoint) State() State { return e.state }

// StartClient produces the initial ClientHello flight.
func (e *Endpoint) StartClient(now time.Time) ([]byte, error) {
	if e.role != RoleClient {
		return nil, errors.New("dtls: StartClient called on server endpoint")
	}
	e.clientRandom = randomBytes(e.entropy, 32)
	body := encodeClientHello(e.clientRandom, nil, e.offeredSuites, e.localKeyPair.Public)
	return e.sendHandshakeFlight(HandshakeClientHello, body, now)
}

// HandleRead processes one inbound DTLS record and returns any events raised
// plus zero or more outbound records to send in response.
func (e *Endpoint) HandleRead(now time.Time, data []byte) ([]Event, [][]byte, error) {
	rec, _, err := DecodeRecord(data)
	if err != nil {
		return nil, nil, err
	}
	if rec.Type == ContentApplicationData {
		return e.handleApplicationData(rec)
	}
	if rec.Type != ContentHandshake {
		return nil, nil, nil
	}
	if !e.readEpoch.AcceptInbound(rec.Sequence) {
		e.log.Warn("dropping replayed or out-of-window handshake record")
		return nil, nil, nil
	}

	frag, err := DecodeFragment(rec.Fragment)
	if err != nil {
		return nil, nil, err
	}
	complete, err := e.reassembler.Add(frag)
	if err != nil {
		return []Event{{Kind: EventHandshakeFailed, Reason: FailureFlightOverflow}}, nil, nil
	}
	if complete == nil {
		return nil, nil, nil
	}

	return e.dispatch(now, frag.Type, complete)
}

func (e *Endpoint) dispatch(now time.Time, msgType HandshakeType, body []byte) ([]Event, [][]byte, error) {
	switch {
	case e.role == RoleServer && msgType == HandshakeClientHello:
		return e.handleClientHello(now, body)
	case e.role == RoleClient && msgType == HandshakeHelloVerifyRequest:
		return e.handleHelloVerifyRequest(now, body)
	case e.role == RoleClient && msgType == HandshakeServerHelloDone:
		return e.handleServerHelloDone(now, body)
	case e.role == RoleServer && msgType == HandshakeFinished:
		return e.handleClientFinished(now, body)
	case e.role == RoleClient && msgType == HandshakeFinished:
		return e.handleServerFinished(now, body)
	default:
		return nil, nil, nil
	}
}

func (e *Endpoint) handleClientHello(now time.Time, body []byte) ([]Event, [][]byte, error) {
	hello, err := decodeClientHello(body)
	if err != nil {
		return nil, nil, err
	}

	if e.state == StateListening {
		_ = e.cookieSigner.MaybeRotate(now)
		cookie := e.cookieSigner.Sign(nil, body)
		e.serverCookie = cookie
		e.state = StateHelloVerifyRequested
		records, err := e.sendHandshakeFlight(HandshakeHelloVerifyRequest, encodeHelloVerifyRequest(cookie), now)
		return nil, [][]byte{records}, err
	}

	reconstructed := encodeClientHello(hello.random, nil, hello.suites, hello.ecdhPublic)
	if !e.cookieSigner.Verify(nil, reconstructed, hello.cookie) {
		return []Event{{Kind: EventHandshakeFailed, Reason: FailureCookieMismatch}}, nil, nil
	}

	suite, err := NegotiateSuite(hello.suites)
	if err != nil {
		return []Event{{Kind: EventHandshakeFailed, Reason: FailureNoSuite}}, nil, nil
	}
	e.selectedSuite = suite
	e.selectedSRTP = SRTPAEADAES256GCM
	e.clientRandom = hello.random
	e.peerPublicKey = hello.ecdhPublic
	e.serverRandom = randomBytes(e.entropy, 32)
	e.state = StateProcessClientHello

	signature, err := crypto.Sign(identityTranscript(e.clientRandom, e.serverRandom, e.localKeyPair.Public), e.identitySeed)
	if err != nil {
		return []Event{{Kind: EventHandshakeFailed, Reason: FailureCertVerification}}, nil, nil
	}
	serverHelloBody := encodeServerHello(e.serverRandom, suite, e.localKeyPair.Public, e.selectedSRTP, e.identityPublic, signature)
	records, err := e.sendHandshakeFlight(HandshakeServerHelloDone, serverHelloBody, now)
	e.state = StateAwaitClientKeyExchange
	return nil, [][]byte{records}, err
}

func (e *Endpoint) handleHelloVerifyRequest(now time.Time, body []byte) ([]Event, [][]byte, error) {
	cookie, err := decodeHelloVerifyRequest(body)
	if err != nil {
		return nil, nil, err
	}
	helloBody := encodeClientHello(e.clientRandom, cookie, e.offeredSuites, e.localKeyPair.Public)
	records, err := e.sendHandshakeFlight(HandshakeClientHello, helloBody, now)
	e.state = StateAwaitClientKeyExchange
	return nil, [][]byte{records}, err
}

func (e *Endpoint) handleServerHelloDone(now time.Time, body []byte) ([]Event, [][]byte, error) {
	hello, err := decodeServerHello(body)
	if err != nil {
		return nil, nil, err
	}
	e.selectedSuite = hello.suite
	e.selectedSRTP = hello.srtpProfile
	e.serverRandom = hello.random
	e.peerPublicKey = hello.ecdhPublic

	ok, err := crypto.Verify(identityTranscript(e.clientRandom, e.serverRandom, hello.ecdhPublic), hello.signature, hello.identity)
	if err != nil || !ok {
		return []Event{{Kind: EventHandshakeFailed, Reason: FailureCertVerification}}, nil, nil
	}
	e.peerIdentity = hello.identity
	e.havePeerIdentity = true

	if err := e.deriveMasterSecret(); err != nil {
		return []Event{{Kind: EventHandshakeFailed, Reason: FailureCertVerification}}, nil, nil
	}

	e.state = StateAwaitFinishedVerify
	signature, err := crypto.Sign(identityTranscript(e.clientRandom, e.serverRandom, e.localKeyPair.Public), e.identitySeed)
	if err != nil {
		return []Event{{Kind: EventHandshakeFailed, Reason: FailureCertVerification}}, nil, nil
	}
	finishedBody := encodeFinished(computeFinished(e.masterSecret, e.clientRandom), e.identityPublic, signature, true)
	records, err := e.sendHandshakeFlight(HandshakeFinished, finishedBody, now)
	return nil, [][]byte{records}, err
}

func (e *Endpoint) handleClientFinished(now time.Time, body []byte) ([]Event, [][]byte, error) {
	msg, err := decodeFinished(body)
	if err != nil {
		return []Event{{Kind: EventHandshakeFailed, Reason: FailureFinishedMismatch}}, nil, nil
	}
	if !msg.hasProof {
		return []Event{{Kind: EventHandshakeFailed, Reason: FailureCertVerification}}, nil, nil
	}
	ok, err := crypto.Verify(identityTranscript(e.clientRandom, e.serverRandom, e.peerPublicKey), msg.signature, msg.identity)
	if err != nil || !ok {
		return []Event{{Kind: EventHandshakeFailed, Reason: FailureCertVerification}}, nil, nil
	}
	e.peerIdentity = msg.identity
	e.havePeerIdentity = true
	if err := e.deriveMasterSecret(); err != nil {
		return []Event{{Kind: EventHandshakeFailed, Reason: FailureCertVerification}}, nil, nil
	}
	expected := computeFinished(e.masterSecret, e.clientRandom)
	if !bytesEqual(expected, msg.verifyData) {
		return []Event{{Kind: EventHandshakeFailed, Reason: FailureFinishedMismatch}}, nil, nil
	}
	if err := e.installApplicationCiphers(); err != nil {
		return []Event{{Kind: EventHandshakeFailed, Reason: FailureKeyDerivation}}, nil, nil
	}
	e.state = StateOpen
	serverFinished := encodeFinished(computeFinished(e.masterSecret, e.serverRandom), [32]byte{}, crypto.Signature{}, false)
	records, err := e.sendHandshakeFlight(HandshakeFinished, serverFinished, now)
	return []Event{{Kind: EventHandshakeComplete}}, [][]byte{records}, err
}

func (e *Endpoint) handleServerFinished(now time.Time, body []byte) ([]Event, [][]byte, error) {
	msg, err := decodeFinished(body)
	if err != nil {
		return []Event{{Kind: EventHandshakeFailed, Reason: FailureFinishedMismatch}}, nil, nil
	}
	expected := computeFinished(e.masterSecret, e.serverRandom)
	if !bytesEqual(expected, msg.verifyData) {
		return []Event{{Kind: EventHandshakeFailed, Reason: FailureFinishedMismatch}}, nil, nil
	}
	if err := e.installApplicationCiphers(); err != nil {
		return []Event{{Kind: EventHandshakeFailed, Reason: FailureKeyDerivation}}, nil, nil
	}
	e.state = StateOpen
	return []Event{{Kind: EventHandshakeComplete}}, nil, nil
}

// installApplicationCiphers derives and activates the epoch-1 keys that
// protect application-data records (the reliable stream transport's
// channel) once both Finished messages have been verified.
func (e *Endpoint) installApplicationCiphers() error {
	clientKey, serverKey, clientIV, serverIV, err := DeriveRecordKeys(e.masterSecret, e.clientRandom, e.serverRandom)
	if err != nil {
		return err
	}
	e.appReadEpoch = NewEpochState(1)
	e.appWriteEpoch = NewEpochState(1)
	if e.role == RoleClient {
		if err := e.appWriteEpoch.InstallCipher(clientKey, clientIV); err != nil {
			return err
		}
		return e.appReadEpoch.InstallCipher(serverKey, serverIV)
	}
	if err := e.appWriteEpoch.InstallCipher(serverKey, serverIV); err != nil {
		return err
	}
	return e.appReadEpoch.InstallCipher(clientKey, clientIV)
}

// handleApplicationData decrypts an inbound epoch-1 record and surfaces its
// plaintext as an EventApplicationData event. Records that arrive before
// the application cipher is installed, or that fail authentication, are
// dropped rather than erroring the whole read: a session under attack
// shouldn't be able to fault the handshake by spraying bogus app-data
// records at it.
func (e *Endpoint) handleApplicationData(rec Record) ([]Event, [][]byte, error) {
	if e.appReadEpoch == nil || rec.Epoch != e.appReadEpoch.Epoch {
		e.log.Warn("dropping application data record before handshake completion")
		return nil, nil, nil
	}
	plaintext, err := e.appReadEpoch.OpenApplicationData(rec.Sequence, rec.Fragment)
	if err != nil {
		e.log.WithError(err, "open_application_data").Warn("dropping application data record with invalid auth tag")
		return nil, nil, nil
	}
	return []Event{{Kind: EventApplicationData, Payload: plaintext}}, nil, nil
}

// SendApplicationData seals payload as the next outbound epoch-1
// application-data record, for the reliable stream transport to hand to
// the host in place of sending its bytes in the clear.
func (e *Endpoint) SendApplicationData(payload []byte) ([]byte, error) {
	if e.appWriteEpoch == nil {
		return nil, errors.New("dtls: application data channel not established")
	}
	ciphertext, seq := e.appWriteEpoch.SealApplicationData(payload)
	rec := Record{
		Type:     ContentApplicationData,
		Epoch:    e.appWriteEpoch.Epoch,
		Sequence: seq,
		Fragment: ciphertext,
	}
	return EncodeRecord(rec), nil
}

func (e *Endpoint) deriveMasterSecret() error {
	secret, err := crypto.DeriveSharedSecret(e.peerPublicKey, e.localKeyPair.Private)
	if err != nil {
		return err
	}
	e.masterSecret = secret[:]
	return nil
}

// PeerIdentity returns the Ed25519 identity public key the peer proved
// possession of during the handshake, once available. The session layer
// hands it to the host's certificate verifier for comparison against the
// fingerprint negotiated in the session description.
func (e *Endpoint) PeerIdentity() ([32]byte, bool) {
	return e.peerIdentity, e.havePeerIdentity
}

// WipeKeys erases the endpoint's secret key material in place: the master
// secret, the ECDHE private scalar, the identity seed, and the epoch-1
// application-data record keys. Called by the session on close, on
// handshake failure, and when a restart drops this endpoint for a fresh
// one; the endpoint is unusable afterwards.
func (e *Endpoint) WipeKeys() {
	if e.masterSecret != nil {
		crypto.ZeroBytes(e.masterSecret)
		e.masterSecret = nil
	}
	if e.localKeyPair != nil {
		_ = crypto.WipeKeyPair(e.localKeyPair)
	}
	crypto.ZeroBytes(e.identitySeed[:])
	if e.appReadEpoch != nil {
		e.appReadEpoch.WipeKeys()
		e.appReadEpoch = nil
	}
	if e.appWriteEpoch != nil {
		e.appWriteEpoch.WipeKeys()
		e.appWriteEpoch = nil
	}
}

// ExportKeys returns the SRTP keying material once the handshake is OPEN.
func (e *Endpoint) ExportKeys() (ExportedKeys, error) {
	if e.state != StateOpen {
		return ExportedKeys{}, errors.New("dtls: handshake not open")
	}
	length := e.selectedSRTP.ExportedKeyMaterialSize()
	material, err := ExportKeyingMaterial(e.masterSecret, e.clientRandom, e.serverRandom, length)
	if err != nil {
		return ExportedKeys{}, err
	}
	return ExportedKeys{Material: material, Profile: e.selectedSRTP}, nil
}

// PollTimeout returns the current flight's retransmission deadline, if any.
func (e *Endpoint) PollTimeout() (time.Time, bool) {
	if e.flight == nil {
		return time.Time{}, false
	}
	return e.flight.NextDeadline(), true
}

// HandleTimeout retransmits the current flight if its RTO has elapsed.
func (e *Endpoint) HandleTimeout(now time.Time) [][]byte {
	if e.flight == nil || !e.flight.Due(now) {
		return nil
	}
	return e.flight.Retransmit(now)
}

func (e *Endpoint) sendHandshakeFlight(msgType HandshakeType, body []byte, now time.Time) ([]byte, error) {
	frags := FragmentMessage(msgType, e.messageSeq, body)
	e.messageSeq++
	var out []byte
	for _, f := range frags {
		rec := Record{
			Type:     ContentHandshake,
			Epoch:    e.writeEpoch.Epoch,
			Sequence: e.writeEpoch.AllocateSequence(),
			Fragment: EncodeFragment(f),
		}
		out = append(out, EncodeRecord(rec)...)
	}
	e.flight = NewFlight([][]byte{out}, now)
	return out, nil
}

func randomBytes(entropy io.Reader, n int) []byte {
	b := make([]byte, n)
	_, _ = io.ReadFull(entropy, b)
	return b
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
