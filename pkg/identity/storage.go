package identity

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/bsv-blockchain/go-identity-services/pkg/types"
)

// Storage implements a MongoDB-backed storage engine for identity
// certificate records, with attribute search, pagination and filtering on
// the query side.
type Storage struct {
	db              *mongo.Database
	identityRecords *mongo.Collection
}

// Compile-time verification that Storage implements StorageInterface
var _ StorageInterface = (*Storage)(nil)

// NewStorage constructs a new Storage instance with the provided MongoDB
// database. Records live in a collection named "identityRecords".
func NewStorage(db *mongo.Database) *Storage {
	return &Storage{
		db:              db,
		identityRecords: db.Collection("identityRecords"),
	}
}

// EnsureIndexes creates the necessary indexes for the identity records
// collection. Call once during application initialization. Revocation
// lookups hit certifier plus serial number, subject lookups hit the subject
// field alone.
func (s *Storage) EnsureIndexes(ctx context.Context) error {
	indexModels := []mongo.IndexModel{
		{Keys: bson.D{
			{Key: "certificate.certifier", Value: 1},
			{Key: "certificate.serialNumber", Value: 1},
		}},
		{Keys: bson.D{{Key: "certificate.subject", Value: 1}}},
	}

	_, err := s.identityRecords.Indexes().CreateMany(ctx, indexModels)
	if err != nil {
		return fmt.Errorf("failed to create indexes for identity records: %w", err)
	}

	return nil
}

// StoreIdentityRecord stores a new identity certificate record in the database.
//
// Parameters:
//   - ctx: Context for the database operation
//   - txid: The transaction ID carrying the certificate token
//   - outputIndex: The index of the token output within the transaction
//   - certificate: The parsed certificate carried by the token
//
// Returns:
//   - error: An error if the storage operation fails, nil otherwise
func (s *Storage) StoreIdentityRecord(ctx context.Context, txid string, outputIndex int, certificate types.Certificate) error {
	record := types.IdentityRecord{
		Txid:        txid,
		OutputIndex: outputIndex,
		Certificate: certificate,
		CreatedAt:   time.Now(),
	}

	_, err := s.identityRecords.InsertOne(ctx, record)
	if err != nil {
		return fmt.Errorf("failed to store identity record: %w", err)
	}

	return nil
}

// DeleteIdentityRecord deletes an identity certificate record based on
// transaction ID and output index. Used when the token UTXO is spent or
// evicted.
func (s *Storage) DeleteIdentityRecord(ctx context.Context, txid string, outputIndex int) error {
	filter := bson.M{
		"txid":        txid,
		"outputIndex": outputIndex,
	}

	_, err := s.identityRecords.DeleteOne(ctx, filter)
	if err != nil {
		return fmt.Errorf("failed to delete identity record: %w", err)
	}

	return nil
}

// FindRecord finds identity certificate records based on the provided query
// parameters. Attribute values are matched as case-insensitive substrings of
// the certified field values; the remaining filters match exactly. Returns
// only UTXO references (txid and outputIndex) as projection for efficient
// querying.
func (s *Storage) FindRecord(ctx context.Context, query types.IdentityQuery) ([]types.UTXOReference, error) {
	mongoQuery := bson.M{}

	for attribute, value := range query.Attributes {
		mongoQuery["certificate.fields."+attribute] = bson.M{
			"$regex":   regexp.QuoteMeta(value),
			"$options": "i",
		}
	}

	if len(query.Certifiers) > 0 {
		mongoQuery["certificate.certifier"] = bson.M{"$in": query.Certifiers}
	}

	if len(query.CertificateTypes) > 0 {
		mongoQuery["certificate.type"] = bson.M{"$in": query.CertificateTypes}
	}

	if query.IdentityKey != nil {
		mongoQuery["certificate.subject"] = *query.IdentityKey
	}

	if query.SerialNumber != nil {
		mongoQuery["certificate.serialNumber"] = *query.SerialNumber
	}

	findOpts := buildFindOptions(query.Limit, query.Skip, query.SortOrder)

	cursor, err := s.identityRecords.Find(ctx, mongoQuery, findOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to find identity records: %w", err)
	}
	defer cursor.Close(ctx)

	return collectUTXOReferences(ctx, cursor)
}

// FindAll returns all identity records with optional pagination and sorting.
func (s *Storage) FindAll(ctx context.Context, limit, skip *int, sortOrder *types.SortOrder) ([]types.UTXOReference, error) {
	findOpts := buildFindOptions(limit, skip, sortOrder)

	cursor, err := s.identityRecords.Find(ctx, bson.M{}, findOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to find all identity records: %w", err)
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
			return nil, fmt.Errorf("failed to decode identity record: %w", err)
		}

		results = append(results, types.UTXOReference{
			Txid:        record.Txid,
			OutputIndex: record.OutputIndex,
		})
	}

	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error while finding identity records: %w", err)
	}

	return results, nil
}
