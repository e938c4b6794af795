package identity

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"log/slog"

	"github.com/bsv-blockchain/go-overlay-services/pkg/core/engine"
	"github.com/bsv-blockchain/go-sdk/overlay"
	"github.com/bsv-blockchain/go-sdk/transaction"
	"github.com/bsv-blockchain/go-sdk/transaction/template/pushdrop"

	"github.com/bsv-blockchain/go-identity-services/pkg/types"
	"github.com/bsv-blockchain/go-identity-services/pkg/utils"
)

// TopicManager implements the TopicManager interface for identity certificate tokens
type TopicManager struct{}

// NewTopicManager creates a new identity topic manager
func NewTopicManager() *TopicManager {
	return &TopicManager{}
}

// Compile-time verification that TopicManager implements engine.TopicManager
var _ engine.TopicManager = (*TopicManager)(nil)

// IdentifyAdmissibleOutputs identifies which outputs should be admitted to the overlay.
// An output is admissible when it is a PushDrop identity certificate token
// whose certificate parses, is issued to the claimed identity key, carries a
// well-formed serial number, and whose token signature is correctly linked.
func (tm *TopicManager) IdentifyAdmissibleOutputs(ctx context.Context, beef []byte, previousCoins map[uint32]*transaction.TransactionOutput) (overlay.AdmittanceInstructions, error) {
	outputsToAdmit := []uint32{}

	// Parse the transaction from BEEF
	parsedTransaction, err := transaction.NewTransactionFromBEEF(beef)
	if err != nil {
		slog.Error("Error identifying admissible identity outputs", "error", err)
		return overlay.AdmittanceInstructions{
			OutputsToAdmit: outputsToAdmit,
			CoinsToRetain:  []uint32{},
		}, nil
	}

	// Check each output for certificate token validity
	for i, output := range parsedTransaction.Outputs {
		if tm.isValidIdentityOutput(ctx, output) {
			outputsToAdmit = append(outputsToAdmit, uint32(i))
		}
	}

	if len(outputsToAdmit) > 0 {
		slog.Info("Admitted identity certificate outputs", "count", len(outputsToAdmit), "txid", parsedTransaction.TxID())
	}
	if len(previousCoins) > 0 {
		slog.Info("Consumed previous identity certificate coins", "count", len(previousCoins))
	}

	return overlay.AdmittanceInstructions{
		OutputsToAdmit: outputsToAdmit,
		CoinsToRetain:  []uint32{},
	}, nil
}

// IdentifyNeededInputs identifies which inputs are needed for validation.
// Certificate tokens are self-contained, so no extra inputs are needed.
func (tm *TopicManager) IdentifyNeededInputs(_ context.Context, _ []byte) ([]*transaction.Outpoint, error) {
	return []*transaction.Outpoint{}, nil
}

// GetDocumentation returns documentation specific to the identity topic manager
func (tm *TopicManager) GetDocumentation() string {
	return TopicManagerDocumentation
}

// GetMetaData returns metadata associated with this topic manager
func (tm *TopicManager) GetMetaData() *overlay.MetaData {
	return &overlay.MetaData{
		Name:        "Identity Topic Manager",
		Description: "Admits on-chain identity certificate tokens to the overlay.",
	}
}

// isValidIdentityOutput checks if an output is a valid identity certificate token
func (tm *TopicManager) isValidIdentityOutput(ctx context.Context, output *transaction.TransactionOutput) bool {
	// Decode the PushDrop data
	result := pushdrop.Decode(output.LockingScript)
	if result == nil {
		return false // It's common for other outputs to be non-PushDrop; no need to log
	}

	// Certificate tokens must have exactly 4 fields: identifier, identity
	// key, certificate JSON, signature
	if len(result.Fields) != 4 {
		return false
	}

	if utils.UTFBytesToString(result.Fields[0]) != Identifier {
		return false
	}

	// The claimed identity key must be a plausible compressed public key
	identityKey := hex.EncodeToString(result.Fields[1])
	if !utils.IsValidIdentityKey(identityKey) {
		return false
	}

	// The certificate must parse and be issued to the claimed key
	var certificate types.Certificate
	if err := json.Unmarshal(result.Fields[2], &certificate); err != nil {
		slog.Info("Rejected identity token with malformed certificate", "error", err)
		return false
	}
	if certificate.Subject != identityKey {
		slog.Info("Rejected identity token with foreign certificate subject", "subject", certificate.Subject)
		return false
	}
	if !utils.IsValidSerialNumber(certificate.SerialNumber) {
		slog.Info("Rejected identity token with malformed serial number", "serialNumber", certificate.SerialNumber)
		return false
	}

	// Verify token signature is correctly linked to the identity key
	if !utils.IsTokenSignatureCorrectlyLinked(ctx, result.LockingPublicKey, result.Fields) {
		slog.Info("Rejected identity token with invalid signature linkage", "subject", certificate.Subject)
		return false
	}

	return true
}
