package didkey

import "errors"

// The resolution chain surfaces exactly one of these error kinds per failing
// input, matched with errors.Is. Messages carry the offending values so
// callers can build precise assertions; no kind is ever recovered internally.
var (
	// ErrInvalidKeyLength indicates a public key that is not exactly 33 bytes.
	ErrInvalidKeyLength = errors.New("invalid public key length")

	// ErrNotDidKeyMethod indicates a DID string that does not start with "did:key:".
	ErrNotDidKeyMethod = errors.New("not a did:key identifier")

	// ErrUnsupportedMultibasePrefix indicates a method-specific identifier that
	// does not carry the 'z' (base58btc) multibase tag. No other multibase
	// encoding is supported by this method.
	ErrUnsupportedMultibasePrefix = errors.New("unsupported multibase prefix")

	// ErrMultibaseDecode indicates a 'z'-tagged payload that the base58
	// primitive could not decode (illegal alphabet character or empty payload).
	ErrMultibaseDecode = errors.New("failed to decode base58 payload")

	// ErrInvalidFramedLength indicates a decoded payload that is not exactly
	// 35 bytes (2-byte multicodec header plus 33-byte compressed key).
	ErrInvalidFramedLength = errors.New("invalid framed key length")

	// ErrUnsupportedKeyCodec indicates a decoded payload whose multicodec
	// header identifies a key type other than secp256k1-pub. This is a
	// "not my method" signal, distinct from corruption: the bytes may be a
	// perfectly valid did:key of another key type (e.g. Ed25519).
	ErrUnsupportedKeyCodec = errors.New("unsupported key codec")

	// ErrInvalidCompressionMarker indicates a framed key whose leading key
	// byte is not a compressed-point marker (0x02 or 0x03).
	ErrInvalidCompressionMarker = errors.New("invalid compression marker")
)
