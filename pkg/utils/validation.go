package utils

import (
	"encoding/base64"
	"regexp"

	"github.com/bsv-blockchain/go-identity-services/pkg/didkey"
)

// Compiled regex patterns for validation
var (
	// topicServiceNameRegex validates topic or service names based on BRC-87
	// guidelines: must start with tm_ or ls_ and contain only lowercase
	// letters and underscores
	topicServiceNameRegex = regexp.MustCompile(`^(?:tm_|ls_)[a-z]+(?:_[a-z]+)*$`)

	// identityKeyRegex validates hex-encoded compressed secp256k1 public keys
	identityKeyRegex = regexp.MustCompile(`^0[23][0-9a-fA-F]{64}$`)
)

// IsValidTopicOrServiceName checks whether the provided name is a valid
// overlay topic manager or lookup service name.
func IsValidTopicOrServiceName(name string) bool {
	return topicServiceNameRegex.MatchString(name)
}

// IsValidIdentityKey checks whether the provided string is a hex-encoded
// 33-byte compressed secp256k1 public key with a valid compression marker.
// Curve membership is not checked here; callers that need a parsed point go
// through the ec package.
func IsValidIdentityKey(identityKey string) bool {
	return identityKeyRegex.MatchString(identityKey)
}

// IsValidSerialNumber checks whether the provided string is a base64-encoded
// 32-byte certificate serial number.
func IsValidSerialNumber(serialNumber string) bool {
	decoded, err := base64.StdEncoding.DecodeString(serialNumber)
	if err != nil {
		return false
	}
	return len(decoded) == 32
}

// IsValidDIDString checks whether the provided string passes full did:key
// resolution. Structurally invalid DIDs are rejected up front rather than
// handed to storage, where they could never match a stored record.
func IsValidDIDString(did string) bool {
	_, err := didkey.Resolve(did)
	return err == nil
}
