// Package didkey implements construction and resolution of did:key
// identifiers for compressed secp256k1 public keys. The identifier embeds the
// key itself: a 2-byte multicodec header is framed around the 33-byte
// compressed key, the result is base58btc-encoded behind a 'z' multibase tag,
// and the whole thing is appended to the "did:key:" method prefix. Both
// directions are pure and deterministic; any number of calls may run
// concurrently without coordination.
package didkey

import "fmt"

const (
	// CompressedKeyLength is the length of a compressed secp256k1 public key:
	// one compression-sign marker byte followed by the 32-byte x-coordinate.
	CompressedKeyLength = 33

	// FramedKeyLength is the length of a multicodec-framed compressed key.
	FramedKeyLength = 35
)

// MulticodecHeader is the multicodec prefix identifying "secp256k1-pub".
// Source: https://github.com/multiformats/multicodec/blob/master/table.csv
var MulticodecHeader = [2]byte{0xE7, 0x01}

// FrameKey prepends the secp256k1-pub multicodec header to a 33-byte
// compressed public key. The input bytes are not transformed or validated
// beyond their length; compression is the caller's responsibility.
func FrameKey(pubKey []byte) ([]byte, error) {
	if len(pubKey) != CompressedKeyLength {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidKeyLength, CompressedKeyLength, len(pubKey))
	}

	framed := make([]byte, 0, FramedKeyLength)
	framed = append(framed, MulticodecHeader[:]...)
	framed = append(framed, pubKey...)
	return framed, nil
}

// UnframeKey validates a multicodec-framed key and returns the embedded
// 33-byte compressed public key. Checks run in a fixed order and stop at the
// first failure: overall length, multicodec header, compression marker.
// The returned key bytes are exactly framed[2:35]; curve membership of the
// x-coordinate is not re-checked here, that is the concern of whatever
// cryptographic library ultimately parses the point.
func UnframeKey(framed []byte) ([]byte, error) {
	if len(framed) != FramedKeyLength {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidFramedLength, FramedKeyLength, len(framed))
	}

	if framed[0] != MulticodecHeader[0] || framed[1] != MulticodecHeader[1] {
		return nil, fmt.Errorf("%w: expected secp256k1-pub header 0x%02x%02x, got 0x%02x%02x",
			ErrUnsupportedKeyCodec, MulticodecHeader[0], MulticodecHeader[1], framed[0], framed[1])
	}

	if framed[2] != 0x02 && framed[2] != 0x03 {
		return nil, fmt.Errorf("%w: expected 0x02 or 0x03, got 0x%02x", ErrInvalidCompressionMarker, framed[2])
	}

	return framed[2:], nil
}
