package did

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/bsv-blockchain/go-identity-services/pkg/types"
)

// Storage implements a MongoDB-backed storage engine for DID registration
// records, with pagination and filtering on the query side.
type Storage struct {
	db         *mongo.Database
	didRecords *mongo.Collection
}

// Compile-time verification that Storage implements StorageInterface
var _ StorageInterface = (*Storage)(nil)

// NewStorage constructs a new Storage instance with the provided MongoDB
// database. Records live in a collection named "didRecords".
func NewStorage(db *mongo.Database) *Storage {
	return &Storage{
		db:         db,
		didRecords: db.Collection("didRecords"),
	}
}

// EnsureIndexes creates the necessary indexes for the DID records collection.
// Call once during application initialization. Lookups run against the did
// and identityKey fields, so each gets a single-field index.
func (s *Storage) EnsureIndexes(ctx context.Context) error {
	indexModels := []mongo.IndexModel{
		{Keys: bson.D{{Key: "did", Value: 1}}},
		{Keys: bson.D{{Key: "identityKey", Value: 1}}},
	}

	_, err := s.didRecords.Indexes().CreateMany(ctx, indexModels)
	if err != nil {
		return fmt.Errorf("failed to create indexes for DID records: %w", err)
	}

	return nil
}

// StoreDIDRecord stores a new DID registration record in the database.
//
// Parameters:
//   - ctx: Context for the database operation
//   - txid: The transaction ID carrying the registration token
//   - outputIndex: The index of the token output within the transaction
//   - did: The registered did:key identifier
//   - identityKey: The hex-encoded compressed public key embedded in the DID
//
// Returns:
//   - error: An error if the storage operation fails, nil otherwise
func (s *Storage) StoreDIDRecord(ctx context.Context, txid string, outputIndex int, did, identityKey string) error {
	record := types.DIDRecord{
		Txid:        txid,
		OutputIndex: outputIndex,
		DID:         did,
		IdentityKey: identityKey,
		CreatedAt:   time.Now(),
	}

	_, err := s.didRecords.InsertOne(ctx, record)
	if err != nil {
		return fmt.Errorf("failed to store DID record: %w", err)
	}

	return nil
}

// DeleteDIDRecord deletes a DID registration record based on transaction ID
// and output index. Used when the token UTXO is spent or evicted.
func (s *Storage) DeleteDIDRecord(ctx context.Context, txid string, outputIndex int) error {
	filter := bson.M{
		"txid":        txid,
		"outputIndex": outputIndex,
	}

	_, err := s.didRecords.DeleteOne(ctx, filter)
	if err != nil {
		return fmt.Errorf("failed to delete DID record: %w", err)
	}

	return nil
}

// FindRecord finds DID records based on the provided query parameters.
// Supports filtering by DID string and identity key, with pagination and
// sorting. Returns only UTXO references (txid and outputIndex) as projection
// for efficient querying.
func (s *Storage) FindRecord(ctx context.Context, query types.DIDQuery) ([]types.UTXOReference, error) {
	mongoQuery := bson.M{}

	if query.DID != nil {
		mongoQuery["did"] = *query.DID
	}

	if query.IdentityKey != nil {
		mongoQuery["identityKey"] = *query.IdentityKey
	}

	findOpts := buildFindOptions(query.Limit, query.Skip, query.SortOrder)

	cursor, err := s.didRecords.Find(ctx, mongoQuery, findOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to find DID records: %w", err)
	}
	defer cursor.Close(ctx)

	return collectUTXOReferences(ctx, cursor)
}

// FindAll returns all DID records with optional pagination and sorting.
func (s *Storage) FindAll(ctx context.Context, limit, skip *int, sortOrder *types.SortOrder) ([]types.UTXOReference, error) {
	findOpts := buildFindOptions(limit, skip, sortOrder)

	cursor, err := s.didRecords.Find(ctx, bson.M{}, findOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to find all DID records: %w", err)
	}
	defer cursor.Close(ctx)

	return collectUTXOReferences(ctx, cursor)
}

// buildFindOptions assembles the shared projection, sort and pagination
// options. Sort defaults to descending by createdAt.
func buildFindOptions(limit, skip *int, sortOrder *types.SortOrder) *options.FindOptions {
	findOpts := options.Find()

	findOpts.SetProjection(bson.M{
		"txid":        1,
		"outputIndex": 1,
		"createdAt":   1,
	})

	mongoSortOrder := -1 // descending
	if sortOrder != nil && *sortOrder == types.SortOrderAsc {
		mongoSortOrder = 1 // ascending
	}
	findOpts.SetSort(bson.M{"createdAt": mongoSortOrder})

	if skip != nil && *skip > 0 {
		findOpts.SetSkip(int64(*skip))
	}

	if limit != nil && *limit > 0 {
		findOpts.SetLimit(int64(*limit))
	}

	return findOpts
}

// collectUTXOReferences drains a cursor into UTXO references
func collectUTXOReferences(ctx context.Context, cursor *mongo.Cursor) ([]types.UTXOReference, error) {
	var results []types.UTXOReference
	for cursor.Next(ctx) {
		var record struct {
			Txid        string `bson:"txid"`
			OutputIndex int    `bson:"outputIndex"`
		}

		if err := cursor.Decode(&record); err != nil {
			return nil, fmt.Errorf("failed to decode DID record: %w", err)
		}

		results = append(results, types.UTXOReference{
			Txid:        record.Txid,
			OutputIndex: record.OutputIndex,
		})
	}

	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error while finding DID records: %w", err)
	}

	return results, nil
}
