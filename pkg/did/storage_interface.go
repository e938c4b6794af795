package did

import (
	"context"

	"github.com/bsv-blockchain/go-identity-services/pkg/types"
)

// StorageInterface defines the interface for DID registry storage operations
type StorageInterface interface {
	// EnsureIndexes ensures the necessary indexes are created for the collections
	EnsureIndexes(ctx context.Context) error

	// StoreDIDRecord stores a DID registration record
	StoreDIDRecord(ctx context.Context, txid string, outputIndex int, did, identityKey string) error

	// DeleteDIDRecord deletes a DID registration record
	DeleteDIDRecord(ctx context.Context, txid string, outputIndex int) error

	// FindRecord finds DID records based on a given query object
	FindRecord(ctx context.Context, query types.DIDQuery) ([]types.UTXOReference, error)

	// FindAll returns all records tracked by the registry
	FindAll(ctx context.Context, limit, skip *int, sortOrder *types.SortOrder) ([]types.UTXOReference, error)
}
