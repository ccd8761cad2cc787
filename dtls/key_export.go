package dtls

import (
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/hkdf"
)

// exporterLabel is the fixed label used to derive SRTP keying material from
// the DTLS master secret, per RFC 5764.
const exporterLabel = "EXTRACTOR-dtls_srtp"

// recordExporterLabel derives the second, independent key pair that
// encrypts the record layer's application-data content type (23) once the
// handshake is open, keeping it cryptographically separate from the SRTP
// keys exported under exporterLabel even though both trace back to the
// same master secret.
const recordExporterLabel = "EXTRACTOR-dtls_record-application-data"

const (
	recordKeyLen = 16 // AES-128
	recordIVLen  = 4  // fixed salt; combined with an 8-byte sequence number for the 12-byte GCM nonce
)

// exportLabeled derives length octets of keying material from the
// handshake's master secret and client/server randoms, per the RFC 5705
// exporter construction HKDF(secret, clientRandom||serverRandom, label).
func exportLabeled(masterSecret, clientRandom, serverRandom []byte, label string, length int) ([]byte, error) {
	context := append(append([]byte{}, clientRandom...), serverRandom...)
	reader := hkdf.New(sha256.New, masterSecret, context, []byte(label))
	out := make([]byte, length)
	if _, err := io.ReadFull(reader, out); err != nil {
		return nil, err
	}
	return out, nil
}

// ExportKeyingMaterial derives length octets of keying material from the
// handshake's master secret and client/server randoms, labeled for the
// media transport per RFC 5705/5764. masterSecret and the randoms come from
// the completed handshake; length is SRTPProfile.ExportedKeyMaterialSize().
func ExportKeyingMaterial(masterSecret, clientRandom, serverRandom []byte, length int) ([]byte, error) {
	return exportLabeled(masterSecret, clientRandom, serverRandom, exporterLabel, length)
}

// DeriveRecordKeys derives the AES-128-GCM key and fixed IV salt each side
// uses to seal the record layer's application-data content type, under a
// label distinct from the SRTP exporter so the two channels never share
// key material despite sharing a master secret.
func DeriveRecordKeys(masterSecret, clientRandom, serverRandom []byte) (clientKey, serverKey, clientIV, serverIV []byte, err error) {
	material, err := exportLabeled(masterSecret, clientRandom, serverRandom, recordExporterLabel, 2*(recordKeyLen+recordIVLen))
	if err != nil {
		return nil, nil, nil, nil, err
	}
	clientKey, serverKey, clientIV, serverIV = SplitSRTPKeys(material, recordKeyLen, recordIVLen)
	return clientKey, serverKey, clientIV, serverIV, nil
}

// SplitSRTPKeys partitions exported keying material into the four SRTP
// components per RFC 5764 §4.2: client write master key, server write
// master key, client write master salt, server write master salt. keyLen and
// saltLen depend on the negotiated SRTP profile.
func SplitSRTPKeys(material []byte, keyLen, saltLen int) (clientKey, serverKey, clientSalt, serverSalt []byte) {
	off := 0
	clientKey = material[off : off+keyLen]
	off += keyLen
	serverKey = material[off : off+keyLen]
	off += keyLen
	clientSalt = material[off : off+saltLen]
	off += saltLen
	serverSalt = material[off : off+saltLen]
	return
}
