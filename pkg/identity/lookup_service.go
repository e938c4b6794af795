// Package identity implements the identity certificate overlay services: a
// topic manager that admits on-chain identity certificate tokens and a
// lookup service that tracks them, backed by MongoDB. Certificates bind
// certifier-attested attributes to a subject identity key.
package identity

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/bsv-blockchain/go-overlay-services/pkg/core/engine"
	"github.com/bsv-blockchain/go-sdk/chainhash"
	"github.com/bsv-blockchain/go-sdk/overlay"
	"github.com/bsv-blockchain/go-sdk/overlay/lookup"
	"github.com/bsv-blockchain/go-sdk/transaction"
	"github.com/bsv-blockchain/go-sdk/transaction/template/pushdrop"

	"github.com/bsv-blockchain/go-identity-services/pkg/types"
	"github.com/bsv-blockchain/go-identity-services/pkg/utils"
)

// Constants for identity certificate service configuration
const (
	// Topic is the topic manager topic for identity certificate tokens
	Topic = "tm_identity"
	// Service is the lookup service identifier for identity certificates
	Service = "ls_identity"
	// Identifier is the protocol identifier expected in PushDrop fields
	Identifier = utils.ProtocolIDIdentity
)

// Static error variables for err113 compliance
var (
	errPushDropDecodeFailed      = errors.New("failed to decode PushDrop locking script")
	errInvalidPushDropFields     = errors.New("invalid PushDrop result: expected at least 4 fields")
	errCertificateSubjectDiffers = errors.New("certificate subject does not match the claimed identity key")
	errInvalidSerialNumber       = errors.New("certificate serial number must be 32 base64-encoded bytes")
	errValidQueryMustBeProvided  = errors.New("a valid query must be provided")
	errLookupServiceNotSupported = errors.New("lookup service not supported")
	errInvalidStringQuery        = errors.New("invalid string query: only 'findAll' is supported")
	errQueryNoFilter             = errors.New("query must provide attributes, certifiers, certificateTypes, identityKey or serialNumber")
	errQueryIdentityKeyInvalid   = errors.New("query.identityKey must be a compressed public key hex if provided")
	errQuerySerialNumberInvalid  = errors.New("query.serialNumber must be 32 base64-encoded bytes if provided")
	errQueryCertifierInvalid     = errors.New("query.certifiers entries must be compressed public key hex")
	errQueryLimitInvalid         = errors.New("query.limit must be a positive number if provided")
	errQuerySkipInvalid          = errors.New("query.skip must be a non-negative number if provided")
	errQuerySortOrderInvalid     = errors.New("query.sortOrder must be 'asc' or 'desc' if provided")
)

// LookupService implements the BSV overlay LookupService interface for
// identity certificates. It tracks admitted certificate tokens and answers
// attribute, certifier and subject queries.
type LookupService struct {
	// storage is the identity certificate storage implementation
	storage StorageInterface
}

// Compile-time verification that LookupService implements engine.LookupService
var _ engine.LookupService = (*LookupService)(nil)

// NewLookupService creates a new identity lookup service instance.
func NewLookupService(storage StorageInterface) *LookupService {
	return &LookupService{
		storage: storage,
	}
}

// OutputAdmittedByTopic handles an output being admitted by topic.
// This method processes identity certificate tokens encoded in locking
// scripts using PushDrop format and stores the parsed certificate.
//
// Expected PushDrop fields:
//   - fields[0]: Protocol identifier (must be "IDENTITY")
//   - fields[1]: Subject identity key (33-byte compressed public key)
//   - fields[2]: The certificate as JSON
//   - fields[3]: Token signature
func (s *LookupService) OutputAdmittedByTopic(ctx context.Context, payload *engine.OutputAdmittedByTopic) error {
	// Only process the identity topic
	if payload.Topic != Topic {
		return nil // Silently ignore other topics
	}

	// Decode the PushDrop locking script
	result := pushdrop.Decode(payload.LockingScript)
	if result == nil {
		return errPushDropDecodeFailed
	}

	if len(result.Fields) < 4 {
		return fmt.Errorf("%w: got %d", errInvalidPushDropFields, len(result.Fields))
	}

	// Extract and validate fields
	if string(result.Fields[0]) != Identifier {
		return nil // Silently ignore non-identity protocols
	}

	identityKey := hex.EncodeToString(result.Fields[1])

	var certificate types.Certificate
	if err := json.Unmarshal(result.Fields[2], &certificate); err != nil {
		return fmt.Errorf("failed to parse certificate JSON: %w", err)
	}

	// The certificate must be issued to the identity key that signed the
	// token. The topic manager checks this for admitted outputs; re-checking
	// keeps the stored set consistent even if the engine is wired with a
	// foreign topic manager.
	if certificate.Subject != identityKey {
		return errCertificateSubjectDiffers
	}
	if !utils.IsValidSerialNumber(certificate.SerialNumber) {
		return errInvalidSerialNumber
	}

	txid := hex.EncodeToString(payload.Outpoint.Txid[:])
	return s.storage.StoreIdentityRecord(ctx, txid, int(payload.Outpoint.Index), certificate)
}

// OutputSpent handles an output being spent.
// The corresponding certificate record is removed when the token UTXO is spent.
func (s *LookupService) OutputSpent(ctx context.Context, payload *engine.OutputSpent) error {
	if payload.Topic != Topic {
		return nil // Silently ignore other topics
	}

	txid := hex.EncodeToString(payload.Outpoint.Txid[:])
	return s.storage.DeleteIdentityRecord(ctx, txid, int(payload.Outpoint.Index))
}

// OutputEvicted handles an output being evicted.
// The corresponding certificate record is removed when the UTXO is evicted.
func (s *LookupService) OutputEvicted(ctx context.Context, outpoint *transaction.Outpoint) error {
	txid := hex.EncodeToString(outpoint.Txid[:])
	return s.storage.DeleteIdentityRecord(ctx, txid, int(outpoint.Index))
}

// OutputNoLongerRetainedInHistory handles outputs no longer retained in history.
// The certificate registry keeps no historical retention, so this is a no-op.
func (s *LookupService) OutputNoLongerRetainedInHistory(_ context.Context, _ *transaction.Outpoint, _ string) error {
	return nil
}

// OutputBlockHeightUpdated handles block height updates for transactions.
// The certificate registry does not track block heights, so this is a no-op.
func (s *LookupService) OutputBlockHeightUpdated(_ context.Context, _ *chainhash.Hash, _ uint32, _ uint64) error {
	return nil
}

// Lookup performs a lookup query and returns matching results.
// It supports both the legacy string query ("findAll") and object-based
// queries filtering by attributes, certifiers, certificate types, subject
// identity key or serial number, with pagination.
func (s *LookupService) Lookup(ctx context.Context, question *lookup.LookupQuestion) (*lookup.LookupAnswer, error) {
	if len(question.Query) == 0 {
		return nil, errValidQueryMustBeProvided
	}

	if question.Service != Service {
		return nil, fmt.Errorf("%w: expected '%s', got '%s'", errLookupServiceNotSupported, Service, question.Service)
	}

	// Parse the query from JSON
	var queryInterface interface{}
	if err := json.Unmarshal(question.Query, &queryInterface); err != nil {
		return nil, fmt.Errorf("failed to parse query JSON: %w", err)
	}

	// Handle legacy "findAll" string query
	if queryStr, ok := queryInterface.(string); ok {
		if queryStr == "findAll" {
			utxos, err := s.storage.FindAll(ctx, nil, nil, nil)
			if err != nil {
				return nil, err
			}
			return s.convertUTXOsToLookupAnswer(utxos), nil
		}
		return nil, fmt.Errorf("%w: got '%s'", errInvalidStringQuery, queryStr)
	}

	// Handle object-based query
	queryObj, err := s.parseQueryObject(queryInterface)
	if err != nil {
		return nil, fmt.Errorf("invalid query format: %w", err)
	}

	utxos, err := s.storage.FindRecord(ctx, *queryObj)
	if err != nil {
		return nil, err
	}

	return s.convertUTXOsToLookupAnswer(utxos), nil
}

// parseQueryObject parses and validates a query object
func (s *LookupService) parseQueryObject(query interface{}) (*types.IdentityQuery, error) {
	// Convert to JSON and back to ensure proper type mapping
	jsonBytes, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal query object: %w", err)
	}

	var identityQuery types.IdentityQuery
	if err := json.Unmarshal(jsonBytes, &identityQuery); err != nil {
		return nil, fmt.Errorf("failed to unmarshal query object: %w", err)
	}

	if err := s.validateQuery(&identityQuery); err != nil {
		return nil, err
	}

	return &identityQuery, nil
}

// validateQuery validates the query parameters
func (s *LookupService) validateQuery(query *types.IdentityQuery) error {
	hasFilter := len(query.Attributes) > 0 ||
		len(query.Certifiers) > 0 ||
		len(query.CertificateTypes) > 0 ||
		query.IdentityKey != nil ||
		query.SerialNumber != nil
	if !hasFilter {
		return errQueryNoFilter
	}

	if query.IdentityKey != nil && !utils.IsValidIdentityKey(*query.IdentityKey) {
		return fmt.Errorf("%w: got '%s'", errQueryIdentityKeyInvalid, *query.IdentityKey)
	}

	if query.SerialNumber != nil && !utils.IsValidSerialNumber(*query.SerialNumber) {
		return errQuerySerialNumberInvalid
	}

	for _, certifier := range query.Certifiers {
		if !utils.IsValidIdentityKey(certifier) {
			return fmt.Errorf("%w: got '%s'", errQueryCertifierInvalid, certifier)
		}
	}

	if query.Limit != nil && *query.Limit < 0 {
		return errQueryLimitInvalid
	}

	if query.Skip != nil && *query.Skip < 0 {
		return errQuerySkipInvalid
	}

	if query.SortOrder != nil {
		if *query.SortOrder != types.SortOrderAsc && *query.SortOrder != types.SortOrderDesc {
			return errQuerySortOrderInvalid
		}
	}

	return nil
}

// convertUTXOsToLookupAnswer converts a slice of UTXO references to a LookupAnswer
func (s *LookupService) convertUTXOsToLookupAnswer(utxos []types.UTXOReference) *lookup.LookupAnswer {
	// For registry services, the UTXOs are returned as a freeform result
	return &lookup.LookupAnswer{
		Type:   lookup.AnswerTypeFreeform,
		Result: utxos,
	}
}

// GetDocumentation returns the service documentation.
func (s *LookupService) GetDocumentation() string {
	return LookupDocumentation
}

// GetMetaData returns the service metadata.
func (s *LookupService) GetMetaData() *overlay.MetaData {
	return &overlay.MetaData{
		Name:        "Identity Lookup Service",
		Description: "Provides lookup capabilities for on-chain identity certificate tokens.",
	}
}
