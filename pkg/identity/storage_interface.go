package identity

import (
	"context"

	"github.com/bsv-blockchain/go-identity-services/pkg/types"
)

// StorageInterface defines the interface for identity certificate storage operations
type StorageInterface interface {
	// EnsureIndexes ensures the necessary indexes are created for the collections
	EnsureIndexes(ctx context.Context) error

	// StoreIdentityRecord stores an identity certificate record
	StoreIdentityRecord(ctx context.Context, txid string, outputIndex int, certificate types.Certificate) error

	// DeleteIdentityRecord deletes an identity certificate record
	DeleteIdentityRecord(ctx context.Context, txid string, outputIndex int) error

	// FindRecord finds certificate records based on a given query object
	FindRecord(ctx context.Context, query types.IdentityQuery) ([]types.UTXOReference, error)

	// FindAll returns all records tracked by the registry
	FindAll(ctx context.Context, limit, skip *int, sortOrder *types.SortOrder) ([]types.UTXOReference, error)
}
