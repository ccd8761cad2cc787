package dtls

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"
	"errors"

	"github.com/opd-ai/rtcengine/crypto"
)

// ContentType identifies the payload carried by a DTLS record.
type ContentType uint8

const (
	ContentChangeCipherSpec ContentType = 20
	ContentAlert            ContentType = 21
	ContentHandshake        ContentType = 22
	ContentApplicationData  ContentType = 23
)

// recordHeaderSize is the 13-octet DTLS record header: content-type (1),
// version (2), epoch (2), 48-bit sequence number (6), length (2).
const recordHeaderSize = 13

// Record is a decoded DTLS record: header fields plus its (still possibly
// encrypted) fragment.
type Record struct {
	Type     ContentType
	Epoch    uint16
	Sequence uint64 // low 48 bits significant
	Fragment []byte
}

// EncodeRecord serializes a record header and fragment onto the wire. The
// fragment must already be encrypted if epoch > 0 and a cipher is active.
func EncodeRecord(r Record) []byte {
	out := make([]byte, recordHeaderSize+len(r.Fragment))
	out[0] = byte(r.Type)
	out[1] = 0xfe
	out[2] = 0xfd // DTLS 1.2 version, per RFC 6347
	binary.BigEndian.PutUint16(out[3:5], r.Epoch)
	put48(out[5:11], r.Sequence)
	binary.BigEndian.PutUint16(out[11:13], uint16(len(r.Fragment)))
	copy(out[recordHeaderSize:], r.Fragment)
	return out
}

// DecodeRecord parses a single DTLS record from the front of data, returning
// the record and the number of bytes consumed.
func DecodeRecord(data []byte) (Record, int, error) {
	if len(data) < recordHeaderSize {
		return Record{}, 0, errors.New("dtls: record too short")
	}
	length := int(binary.BigEndian.Uint16(data[11:13]))
	total := recordHeaderSize + length
	if len(data) < total {
		return Record{}, 0, errors.New("dtls: record truncated")
	}
	r := Record{
		Type:     ContentType(data[0]),
		Epoch:    binary.BigEndian.Uint16(data[3:5]),
		Sequence: get48(data[5:11]),
		Fragment: data[recordHeaderSize:total],
	}
	return r, total, nil
}

func put48(b []byte, v uint64) {
	b[0] = byte(v >> 40)
	b[1] = byte(v >> 32)
	b[2] = byte(v >> 24)
	b[3] = byte(v >> 16)
	b[4] = byte(v >> 8)
	b[5] = byte(v)
}

func get48(b []byte) uint64 {
	return uint64(b[0])<<40 | uint64(b[1])<<32 | uint64(b[2])<<24 |
		uint64(b[3])<<16 | uint64(b[4])<<8 | uint64(b[5])
}

// EpochState tracks one direction's (read or write) sequence counter and
// replay window for a single epoch: record sequence numbers are monotonic
// within an epoch and the receiver maintains a width-64 sliding replay
// window.
type EpochState struct {
	Epoch    uint16
	NextSeq  uint64
	replay   *crypto.SlidingWindow
	Key      []byte
	IV       []byte
	MacKey   []byte
	IsCipher bool

	aead cipher.AEAD
}

// NewEpochState constructs the per-direction state for an epoch.
func NewEpochState(epoch uint16) *EpochState {
	return &EpochState{Epoch: epoch, replay: crypto.NewSlidingWindow(64)}
}

// WipeKeys erases the epoch's key material in place and drops the cipher,
// so retiring an epoch on close, failure, or restart leaves no copies of
// the record keys behind.
func (e *EpochState) WipeKeys() {
	if e.Key != nil {
		crypto.ZeroBytes(e.Key)
		e.Key = nil
	}
	if e.IV != nil {
		crypto.ZeroBytes(e.IV)
		e.IV = nil
	}
	if e.MacKey != nil {
		crypto.ZeroBytes(e.MacKey)
		e.MacKey = nil
	}
	e.aead = nil
	e.IsCipher = false
}

// AllocateSequence returns the next sequence number for an outbound record
// and advances the counter. Sequence numbers never decrease within an epoch
// and are 48 bits wide on the wire.
func (e *EpochState) AllocateSequence() uint64 {
	seq := e.NextSeq
	e.NextSeq++
	return seq
}

// AcceptInbound applies the replay window to an inbound record's sequence
// number, rejecting duplicates and records older than the window width.
func (e *EpochState) AcceptInbound(seq uint64) bool {
	return e.replay.Accept(seq)
}

// InstallCipher activates AES-128-GCM protection for this epoch's records
// using key as the AEAD key and iv as the fixed 4-byte salt folded into
// every record's nonce alongside its sequence number.
func (e *EpochState) InstallCipher(key, iv []byte) error {
	block, err := aes.NewCipher(key)
	if err != nil {
		return err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return err
	}
	e.aead = aead
	e.Key = key
	e.IV = iv
	e.IsCipher = true
	return nil
}

// nonce builds the 12-byte AEAD nonce for seq from this epoch's fixed salt
// and an explicit 8-byte big-endian sequence number, the TLS 1.2 AEAD
// construction (RFC 5288 §3).
func (e *EpochState) nonce(seq uint64) []byte {
	n := make([]byte, 12)
	copy(n, e.IV)
	binary.BigEndian.PutUint64(n[4:], seq)
	return n
}

// applicationDataAAD binds epoch, sequence number, content type, and
// plaintext length into the AEAD additional data, so a ciphertext sealed
// for one position in the stream cannot be replayed at another.
func applicationDataAAD(epoch uint16, seq uint64, length int) []byte {
	aad := make([]byte, 11)
	binary.BigEndian.PutUint16(aad[0:2], epoch)
	put48(aad[2:8], seq)
	aad[8] = byte(ContentApplicationData)
	binary.BigEndian.PutUint16(aad[9:11], uint16(length))
	return aad
}

// SealApplicationData encrypts and authenticates payload as the next
// outbound application-data record on this epoch, returning the ciphertext
// (including auth tag) and the sequence number it was sealed under.
func (e *EpochState) SealApplicationData(payload []byte) (ciphertext []byte, seq uint64) {
	seq = e.AllocateSequence()
	aad := applicationDataAAD(e.Epoch, seq, len(payload))
	return e.aead.Seal(nil, e.nonce(seq), payload, aad), seq
}

// OpenApplicationData checks the replay window, then decrypts and
// authenticates an inbound application-data record, committing the
// sequence number to the replay window only once the auth tag has
// verified.
func (e *EpochState) OpenApplicationData(seq uint64, ciphertext []byte) ([]byte, error) {
	if !e.replay.Check(seq) {
		return nil, errors.New("dtls: application data record outside replay window or duplicate")
	}
	plaintextLen := len(ciphertext) - e.aead.Overhead()
	if plaintextLen < 0 {
		return nil, errors.New("dtls: application data record shorter than auth tag")
	}
	aad := applicationDataAAD(e.Epoch, seq, plaintextLen)
	plaintext, err := e.aead.Open(nil, e.nonce(seq), ciphertext, aad)
	if err != nil {
		return nil, err
	}
	e.replay.Commit(seq)
	return plaintext, nil
}
