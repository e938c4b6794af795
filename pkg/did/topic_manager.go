package did

import (
	"bytes"
	"context"
	"encoding/hex"
	"log/slog"

	"github.com/bsv-blockchain/go-overlay-services/pkg/core/engine"
	"github.com/bsv-blockchain/go-sdk/overlay"
	"github.com/bsv-blockchain/go-sdk/transaction"
	"github.com/bsv-blockchain/go-sdk/transaction/template/pushdrop"

	"github.com/bsv-blockchain/go-identity-services/pkg/didkey"
	"github.com/bsv-blockchain/go-identity-services/pkg/utils"
)

// TopicManager implements the TopicManager interface for DID registration tokens
type TopicManager struct{}

// NewTopicManager creates a new DID topic manager
func NewTopicManager() *TopicManager {
	return &TopicManager{}
}

// Compile-time verification that TopicManager implements engine.TopicManager
var _ engine.TopicManager = (*TopicManager)(nil)

// IdentifyAdmissibleOutputs identifies which outputs should be admitted to the overlay.
// An output is admissible when it is a PushDrop DID registration token whose
// registered DID resolves, embeds the claimed identity key, and whose token
// signature is correctly linked to that identity key.
func (tm *TopicManager) IdentifyAdmissibleOutputs(ctx context.Context, beef []byte, previousCoins map[uint32]*transaction.TransactionOutput) (overlay.AdmittanceInstructions, error) {
	outputsToAdmit := []uint32{}

	// Parse the transaction from BEEF
	parsedTransaction, err := transaction.NewTransactionFromBEEF(beef)
	if err != nil {
		slog.Error("Error identifying admissible DID outputs", "error", err)
		return overlay.AdmittanceInstructions{
			OutputsToAdmit: outputsToAdmit,
			CoinsToRetain:  []uint32{},
		}, nil
	}

	// Check each output for DID token validity
	for i, output := range parsedTransaction.Outputs {
		if tm.isValidDIDOutput(ctx, output) {
			outputsToAdmit = append(outputsToAdmit, uint32(i))
		}
	}

	if len(outputsToAdmit) > 0 {
		slog.Info("Admitted DID registration outputs", "count", len(outputsToAdmit), "txid", parsedTransaction.TxID())
	}
	if len(previousCoins) > 0 {
		slog.Info("Consumed previous DID registration coins", "count", len(previousCoins))
	}

	return overlay.AdmittanceInstructions{
		OutputsToAdmit: outputsToAdmit,
		CoinsToRetain:  []uint32{},
	}, nil
}

// IdentifyNeededInputs identifies which inputs are needed for validation.
// DID registration tokens are self-contained, so no extra inputs are needed.
func (tm *TopicManager) IdentifyNeededInputs(_ context.Context, _ []byte) ([]*transaction.Outpoint, error) {
	return []*transaction.Outpoint{}, nil
}

// GetDocumentation returns documentation specific to the DID topic manager
func (tm *TopicManager) GetDocumentation() string {
	return TopicManagerDocumentation
}

// GetMetaData returns metadata associated with this topic manager
func (tm *TopicManager) GetMetaData() *overlay.MetaData {
	return &overlay.MetaData{
		Name:        "DID Topic Manager",
		Description: "Admits on-chain DID registration tokens to the overlay.",
	}
}

// isValidDIDOutput checks if an output is a valid DID registration token
func (tm *TopicManager) isValidDIDOutput(ctx context.Context, output *transaction.TransactionOutput) bool {
	// Decode the PushDrop data
	result := pushdrop.Decode(output.LockingScript)
	if result == nil {
		return false // It's common for other outputs to be non-PushDrop; no need to log
	}

	// DID tokens must have exactly 4 fields: identifier, identity key,
	// DID string, signature
	if len(result.Fields) != 4 {
		return false
	}

	if utils.UTFBytesToString(result.Fields[0]) != Identifier {
		return false
	}

	// The claimed identity key must be a plausible compressed public key
	identityKey := result.Fields[1]
	if !utils.IsValidIdentityKey(hex.EncodeToString(identityKey)) {
		return false
	}

	// The registered DID must resolve through the full did:key chain and
	// embed exactly the claimed key
	didString := utils.UTFBytesToString(result.Fields[2])
	embeddedKey, err := didkey.DecodeKey(didString)
	if err != nil {
		slog.Info("Rejected DID token with unresolvable DID", "did", didString, "error", err)
		return false
	}
	if !bytes.Equal(embeddedKey, identityKey) {
		slog.Info("Rejected DID token with mismatched identity key", "did", didString)
		return false
	}

	// Verify token signature is correctly linked to the identity key
	if !utils.IsTokenSignatureCorrectlyLinked(ctx, result.LockingPublicKey, result.Fields) {
		slog.Info("Rejected DID token with invalid signature linkage", "did", didString)
		return false
	}

	return true
}
