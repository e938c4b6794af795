package didkey

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/mr-tron/base58"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
)

const (
	// Prefix is the method prefix every did:key identifier starts with.
	Prefix = "did:key:"

	// MultibasePrefix is the multibase tag for base58btc (Bitcoin/IPFS
	// alphabet), the only encoding this method accepts.
	MultibasePrefix byte = 'z'
)

// ConstructResult pairs a freshly constructed DID with its document.
type ConstructResult struct {
	DID      string    `json:"did"`
	Document *Document `json:"document"`
}

// Construct builds the did:key identifier and DID document for a 33-byte
// compressed secp256k1 public key. The operation is deterministic: the same
// key always yields the same DID and document, so no state is kept and
// nothing is ever persisted.
func Construct(pubKey []byte) (*ConstructResult, error) {
	framed, err := FrameKey(pubKey)
	if err != nil {
		return nil, err
	}

	multibase := string(MultibasePrefix) + base58.Encode(framed)
	did := Prefix + multibase

	return &ConstructResult{
		DID:      did,
		Document: newDocument(did, multibase),
	}, nil
}

// ConstructFromPublicKey builds the did:key identifier for a parsed secp256k1
// public key, requesting its compressed serialization before framing.
func ConstructFromPublicKey(pubKey *ec.PublicKey) (*ConstructResult, error) {
	return Construct(pubKey.Compressed())
}

// ConstructFromHex builds the did:key identifier for a hex-encoded compressed
// public key, the form identity keys travel in throughout the overlay.
func ConstructFromHex(pubKeyHex string) (*ConstructResult, error) {
	pubKey, err := hex.DecodeString(pubKeyHex)
	if err != nil {
		return nil, fmt.Errorf("public key is not valid hex: %w", err)
	}
	return Construct(pubKey)
}

// Resolve validates a did:key identifier and reconstructs its DID document.
//
// Validation runs as a linear chain, each step terminal on failure with its
// own error kind: method prefix, multibase tag, base58 decode, framed length,
// multicodec header, compression marker. There is no fallback or defaulting
// anywhere in the chain; ambiguous input fails closed.
//
// The document is rebuilt from the caller's DID string verbatim, so
// Resolve(did).ID == did exactly. No normalization is performed; callers must
// supply canonical strings.
func Resolve(did string) (*Document, error) {
	multibase, _, err := decodeDID(did)
	if err != nil {
		return nil, err
	}
	return newDocument(did, multibase), nil
}

// DecodeKey validates a did:key identifier and returns the embedded 33-byte
// compressed public key. It runs the same validation chain as Resolve.
func DecodeKey(did string) ([]byte, error) {
	_, pubKey, err := decodeDID(did)
	if err != nil {
		return nil, err
	}
	return pubKey, nil
}

// decodeDID runs the shared validation chain and returns the multibase
// substring together with the unframed key bytes.
func decodeDID(did string) (string, []byte, error) {
	if !strings.HasPrefix(did, Prefix) {
		return "", nil, fmt.Errorf("%w: identifier does not start with %q", ErrNotDidKeyMethod, Prefix)
	}

	multibase := did[len(Prefix):]
	if len(multibase) == 0 || multibase[0] != MultibasePrefix {
		return "", nil, fmt.Errorf("%w: only base58btc ('z') is supported", ErrUnsupportedMultibasePrefix)
	}

	framed, err := base58.Decode(multibase[1:])
	if err != nil {
		return "", nil, fmt.Errorf("%w: %s", ErrMultibaseDecode, err)
	}

	pubKey, err := UnframeKey(framed)
	if err != nil {
		return "", nil, err
	}

	return multibase, pubKey, nil
}
