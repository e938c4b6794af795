// Package did implements the DID registry overlay services: a topic manager
// that admits on-chain DID registration tokens and a lookup service that
// tracks them, backed by MongoDB. The did:key construction/resolution itself
// lives in pkg/didkey; this package only consumes it.
package did

import (
	"bytes"
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

	"github.com/bsv-blockchain/go-identity-services/pkg/didkey"
	"github.com/bsv-blockchain/go-identity-services/pkg/types"
	"github.com/bsv-blockchain/go-identity-services/pkg/utils"
)

// Constants for DID registry service configuration
const (
	// Topic is the topic manager topic for DID registration tokens
	Topic = "tm_did"
	// Service is the lookup service identifier for the DID registry
	Service = "ls_did"
	// Identifier is the protocol identifier expected in PushDrop fields
	Identifier = utils.ProtocolIDDID
)

// Static error variables for err113 compliance
var (
	errPushDropDecodeFailed      = errors.New("failed to decode PushDrop locking script")
	errInvalidPushDropFields     = errors.New("invalid PushDrop result: expected at least 4 fields")
	errIdentityKeyMismatch       = errors.New("identity key field does not match the key embedded in the DID")
	errValidQueryMustBeProvided  = errors.New("a valid query must be provided")
	errLookupServiceNotSupported = errors.New("lookup service not supported")
	errInvalidStringQuery        = errors.New("invalid string query: only 'findAll' is supported")
	errQueryNoFilter             = errors.New("query must provide did, identityKey or findAll")
	errQueryDIDInvalid           = errors.New("query.did must be a did:key identifier if provided")
	errQueryIdentityKeyInvalid   = errors.New("query.identityKey must be a compressed public key hex if provided")
	errQueryLimitInvalid         = errors.New("query.limit must be a positive number if provided")
	errQuerySkipInvalid          = errors.New("query.skip must be a non-negative number if provided")
	errQuerySortOrderInvalid     = errors.New("query.sortOrder must be 'asc' or 'desc' if provided")
)

// LookupService implements the BSV overlay LookupService interface for the
// DID registry. It tracks admitted DID registration tokens and answers
// lookups by DID string or identity key.
type LookupService struct {
	// storage is the DID registry storage implementation
	storage StorageInterface
}

// Compile-time verification that LookupService implements engine.LookupService
var _ engine.LookupService = (*LookupService)(nil)

// NewLookupService creates a new DID registry lookup service instance.
func NewLookupService(storage StorageInterface) *LookupService {
	return &LookupService{
		storage: storage,
	}
}

// OutputAdmittedByTopic handles an output being admitted by topic.
// This method processes DID registration tokens encoded in locking scripts
// using PushDrop format, re-runs did:key resolution on the registered DID and
// stores the record if everything lines up.
//
// Expected PushDrop fields:
//   - fields[0]: Protocol identifier (must be "DID")
//   - fields[1]: Identity key (33-byte compressed public key)
//   - fields[2]: The registered DID string (did:key:z...)
//   - fields[3]: Token signature
func (s *LookupService) OutputAdmittedByTopic(ctx context.Context, payload *engine.OutputAdmittedByTopic) error {
	// Only process the DID topic
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
		return nil // Silently ignore non-DID protocols
	}

	identityKey := result.Fields[1]
	didString := string(result.Fields[2])

	// The registered DID must resolve, and the key it embeds must be the
	// claimed identity key. The topic manager has already checked this for
	// admitted outputs; re-checking keeps the stored set consistent even if
	// the engine is wired with a foreign topic manager.
	embeddedKey, err := didkey.DecodeKey(didString)
	if err != nil {
		return fmt.Errorf("registered DID failed resolution: %w", err)
	}
	if !bytes.Equal(embeddedKey, identityKey) {
		return errIdentityKeyMismatch
	}

	txid := hex.EncodeToString(payload.Outpoint.Txid[:])
	return s.storage.StoreDIDRecord(ctx, txid, int(payload.Outpoint.Index), didString, hex.EncodeToString(identityKey))
}

// OutputSpent handles an output being spent.
// The corresponding DID record is removed when the token UTXO is spent.
func (s *LookupService) OutputSpent(ctx context.Context, payload *engine.OutputSpent) error {
	if payload.Topic != Topic {
		return nil // Silently ignore other topics
	}

	txid := hex.EncodeToString(payload.Outpoint.Txid[:])
	return s.storage.DeleteDIDRecord(ctx, txid, int(payload.Outpoint.Index))
}

// OutputEvicted handles an output being evicted.
// The corresponding DID record is removed when the UTXO is evicted.
func (s *LookupService) OutputEvicted(ctx context.Context, outpoint *transaction.Outpoint) error {
	txid := hex.EncodeToString(outpoint.Txid[:])
	return s.storage.DeleteDIDRecord(ctx, txid, int(outpoint.Index))
}

// OutputNoLongerRetainedInHistory handles outputs no longer retained in history.
// The DID registry keeps no historical retention, so this is a no-op.
func (s *LookupService) OutputNoLongerRetainedInHistory(_ context.Context, _ *transaction.Outpoint, _ string) error {
	return nil
}

// OutputBlockHeightUpdated handles block height updates for transactions.
// The DID registry does not track block heights, so this is a no-op.
func (s *LookupService) OutputBlockHeightUpdated(_ context.Context, _ *chainhash.Hash, _ uint32, _ uint64) error {
	return nil
}

// Lookup performs a lookup query and returns matching results.
// It supports both the legacy string query ("findAll") and object-based
// queries filtering by DID string or identity key with pagination.
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

	var utxos []types.UTXOReference
	if queryObj.FindAll != nil && *queryObj.FindAll {
		utxos, err = s.storage.FindAll(ctx, queryObj.Limit, queryObj.Skip, queryObj.SortOrder)
	} else {
		utxos, err = s.storage.FindRecord(ctx, *queryObj)
	}

	if err != nil {
		return nil, err
	}

	return s.convertUTXOsToLookupAnswer(utxos), nil
}

// parseQueryObject parses and validates a query object
func (s *LookupService) parseQueryObject(query interface{}) (*types.DIDQuery, error) {
	// Convert to JSON and back to ensure proper type mapping
	jsonBytes, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal query object: %w", err)
	}

	var didQuery types.DIDQuery
	if err := json.Unmarshal(jsonBytes, &didQuery); err != nil {
		return nil, fmt.Errorf("failed to unmarshal query object: %w", err)
	}

	if err := s.validateQuery(&didQuery); err != nil {
		return nil, err
	}

	return &didQuery, nil
}

// validateQuery validates the query parameters
func (s *LookupService) validateQuery(query *types.DIDQuery) error {
	findAll := query.FindAll != nil && *query.FindAll
	if query.DID == nil && query.IdentityKey == nil && !findAll {
		return errQueryNoFilter
	}

	if query.DID != nil && !utils.IsValidDIDString(*query.DID) {
		return fmt.Errorf("%w: got '%s'", errQueryDIDInvalid, *query.DID)
	}

	if query.IdentityKey != nil && !utils.IsValidIdentityKey(*query.IdentityKey) {
		return fmt.Errorf("%w: got '%s'", errQueryIdentityKeyInvalid, *query.IdentityKey)
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
		Name:        "DID Lookup Service",
		Description: "Provides lookup capabilities for on-chain DID registration tokens.",
	}
}
