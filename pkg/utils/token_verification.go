// Package utils provides validation helpers and the BRC-48 token signature
// linkage check shared by the identity overlay services.
package utils

import (
	"context"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
	"github.com/bsv-blockchain/go-sdk/wallet"
)

// Protocol identifiers carried in the first pushdrop field of identity
// overlay tokens.
const (
	ProtocolIDDID      = "DID"
	ProtocolIDIdentity = "IDENTITY"
)

// WalletProtocol returns the wallet protocol used to derive and verify token
// keys for the given token identifier.
func WalletProtocol(identifier string) (wallet.Protocol, bool) {
	switch identifier {
	case ProtocolIDDID:
		return wallet.Protocol{
			SecurityLevel: wallet.SecurityLevelEveryAppAndCounterparty,
			Protocol:      "did registration",
		}, true
	case ProtocolIDIdentity:
		return wallet.Protocol{
			SecurityLevel: wallet.SecurityLevelEveryAppAndCounterparty,
			Protocol:      "identity certification",
		}, true
	default:
		return wallet.Protocol{}, false
	}
}

// IsTokenSignatureCorrectlyLinked checks that the BRC-48 locking key and the
// signature are valid and linked to the claimed identity key.
//
// The expected field layout is [identifier, identityKey, data..., signature]:
// the signature (last field) must cover the concatenation of all preceding
// fields under the identifier's wallet protocol, and the locking public key
// must equal the child key derived for the claimed identity.
func IsTokenSignatureCorrectlyLinked(ctx context.Context, lockingPublicKey *ec.PublicKey, fields [][]byte) bool {
	if len(fields) < 3 {
		return false
	}

	// Make a copy of fields to avoid modifying the original
	fieldsCopy := make([][]byte, len(fields))
	copy(fieldsCopy, fields)

	// The signature is the last field, which needs to be removed for verification
	signatureBytes := fieldsCopy[len(fieldsCopy)-1]
	fieldsCopy = fieldsCopy[:len(fieldsCopy)-1]

	sig, err := ec.ParseSignature(signatureBytes)
	if err != nil {
		return false
	}

	// The token identifier is in the first field
	protocol, ok := WalletProtocol(string(fieldsCopy[0]))
	if !ok {
		return false
	}

	// The identity key is in the second field
	identityPubKey, err := ec.ParsePubKey(fieldsCopy[1])
	if err != nil {
		return false
	}

	// Concatenate all fields (except signature) into the signed data
	var data []byte
	for _, field := range fieldsCopy {
		data = append(data, field...)
	}

	// Create an "anyone" wallet
	anyonePrivKey, _ := wallet.AnyoneKey()
	anyoneWallet, err := wallet.NewWallet(anyonePrivKey)
	if err != nil {
		return false
	}

	verifyArgs := wallet.VerifySignatureArgs{
		EncryptionArgs: wallet.EncryptionArgs{
			ProtocolID: protocol,
			KeyID:      "1",
			Counterparty: wallet.Counterparty{
				Type:         wallet.CounterpartyTypeOther,
				Counterparty: identityPubKey,
			},
		},
		Data:      data,
		Signature: sig,
	}

	verifyResult, err := anyoneWallet.VerifySignature(ctx, verifyArgs, "")
	if err != nil || !verifyResult.Valid {
		return false
	}

	// The locking public key must match the expected derived child
	forSelf := false
	pubKeyArgs := wallet.GetPublicKeyArgs{
		EncryptionArgs: wallet.EncryptionArgs{
			ProtocolID: protocol,
			KeyID:      "1",
			Counterparty: wallet.Counterparty{
				Type:         wallet.CounterpartyTypeOther,
				Counterparty: identityPubKey,
			},
		},
		ForSelf: &forSelf,
	}

	pubKeyResult, err := anyoneWallet.GetPublicKey(ctx, pubKeyArgs, "")
	if err != nil {
		return false
	}

	return pubKeyResult.PublicKey.IsEqual(lockingPublicKey)
}
