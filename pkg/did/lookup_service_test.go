package did

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"testing"

	"github.com/bsv-blockchain/go-overlay-services/pkg/core/engine"
	"github.com/bsv-blockchain/go-sdk/overlay/lookup"
	"github.com/bsv-blockchain/go-sdk/script"
	"github.com/bsv-blockchain/go-sdk/transaction"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/bsv-blockchain/go-identity-services/pkg/didkey"
	"github.com/bsv-blockchain/go-identity-services/pkg/types"
)

const TxID = "bdf1e48e845a65ba8c139c9b94844de30716f38d53787ba0a435e8705c4216d5"

// testIdentityKeyHex is a known valid compressed secp256k1 public key
const testIdentityKeyHex = "0279be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798"

// Static error variables for testing
var (
	errTestStorage = errors.New("storage error")
)

// Mock implementations for testing

// MockStorage is a mock implementation of Storage interface methods
type MockStorage struct {
	mock.Mock
}

func (m *MockStorage) StoreDIDRecord(ctx context.Context, txid string, outputIndex int, did, identityKey string) error {
	args := m.Called(ctx, txid, outputIndex, did, identityKey)
	return args.Error(0)
}

func (m *MockStorage) DeleteDIDRecord(ctx context.Context, txid string, outputIndex int) error {
	args := m.Called(ctx, txid, outputIndex)
	return args.Error(0)
}

func (m *MockStorage) FindRecord(ctx context.Context, query types.DIDQuery) ([]types.UTXOReference, error) {
	args := m.Called(ctx, query)
	return args.Get(0).([]types.UTXOReference), args.Error(1)
}

func (m *MockStorage) FindAll(ctx context.Context, limit, skip *int, sortOrder *types.SortOrder) ([]types.UTXOReference, error) {
	args := m.Called(ctx, limit, skip, sortOrder)
	return args.Get(0).([]types.UTXOReference), args.Error(1)
}

func (m *MockStorage) EnsureIndexes(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// Test helper functions

func createTestDIDLookupService() (*LookupService, *MockStorage) {
	mockStorage := new(MockStorage)
	service := NewLookupService(mockStorage)
	return service, mockStorage
}

// testIdentityKeyBytes returns the raw bytes of the test identity key
func testIdentityKeyBytes(t *testing.T) []byte {
	t.Helper()
	keyBytes, err := hex.DecodeString(testIdentityKeyHex)
	require.NoError(t, err)
	return keyBytes
}

// testDIDString returns the did:key identifier for the test identity key
func testDIDString(t *testing.T) string {
	t.Helper()
	result, err := didkey.Construct(testIdentityKeyBytes(t))
	require.NoError(t, err)
	return result.DID
}

// createValidPushDropScript creates a valid PushDrop script with the specified fields
func createValidPushDropScript(t *testing.T, fields [][]byte) *script.Script {
	t.Helper()

	keyBytes := testIdentityKeyBytes(t)

	s := &script.Script{}

	require.NoError(t, s.AppendPushData(keyBytes))
	require.NoError(t, s.AppendOpcodes(script.OpCHECKSIG))

	for _, field := range fields {
		require.NoError(t, s.AppendPushData(field))
	}

	// Add DROP operations to remove fields from stack
	notYetDropped := len(fields)
	for notYetDropped > 1 {
		require.NoError(t, s.AppendOpcodes(script.Op2DROP))
		notYetDropped -= 2
	}
	if notYetDropped != 0 {
		require.NoError(t, s.AppendOpcodes(script.OpDROP))
	}

	return s
}

// createTestOutpoint creates an outpoint referencing the test transaction
func createTestOutpoint(t *testing.T, index uint32) *transaction.Outpoint {
	t.Helper()

	txidBytes, err := hex.DecodeString(TxID)
	require.NoError(t, err)
	var txidArray [32]byte
	copy(txidArray[:], txidBytes)

	return &transaction.Outpoint{
		Txid:  txidArray,
		Index: index,
	}
}

// createDIDTokenFields builds the four PushDrop fields of a registration token
func createDIDTokenFields(t *testing.T) [][]byte {
	t.Helper()
	return [][]byte{
		[]byte(Identifier),
		testIdentityKeyBytes(t),
		[]byte(testDIDString(t)),
		{0x30, 0x44, 0x02, 0x20}, // signature bytes; linkage is checked by the topic manager
	}
}

// Test NewLookupService

func TestNewDIDLookupService(t *testing.T) {
	mockStorage := new(MockStorage)

	service := NewLookupService(mockStorage)

	assert.NotNil(t, service)
	assert.Equal(t, mockStorage, service.storage)
}

// Test OutputAdmittedByTopic

func TestOutputAdmittedByTopic_Success(t *testing.T) {
	service, mockStorage := createTestDIDLookupService()

	scriptObj := createValidPushDropScript(t, createDIDTokenFields(t))

	payload := &engine.OutputAdmittedByTopic{
		Topic:         Topic,
		Outpoint:      createTestOutpoint(t, 0),
		LockingScript: scriptObj,
	}

	mockStorage.On("StoreDIDRecord", mock.Anything, TxID, 0, testDIDString(t), testIdentityKeyHex).Return(nil)

	err := service.OutputAdmittedByTopic(context.Background(), payload)

	require.NoError(t, err)
	mockStorage.AssertExpectations(t)
}

func TestOutputAdmittedByTopic_IgnoreNonDIDTopic(t *testing.T) {
	service, _ := createTestDIDLookupService()

	scriptObj, err := script.NewFromHex("deadbeef")
	require.NoError(t, err)

	payload := &engine.OutputAdmittedByTopic{
		Topic:         "tm_other",
		Outpoint:      createTestOutpoint(t, 0),
		LockingScript: scriptObj,
	}

	err = service.OutputAdmittedByTopic(context.Background(), payload)
	require.NoError(t, err) // Should silently ignore other topics
}

func TestOutputAdmittedByTopic_PushDropDecodeError(t *testing.T) {
	service, _ := createTestDIDLookupService()

	scriptObj, err := script.NewFromHex("deadbeef")
	require.NoError(t, err)

	payload := &engine.OutputAdmittedByTopic{
		Topic:         Topic,
		Outpoint:      createTestOutpoint(t, 0),
		LockingScript: scriptObj,
	}

	err = service.OutputAdmittedByTopic(context.Background(), payload)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to decode PushDrop locking script")
}

func TestOutputAdmittedByTopic_InsufficientFields(t *testing.T) {
	service, _ := createTestDIDLookupService()

	// Create PushDrop script with only 2 fields instead of required 4
	fields := [][]byte{
		[]byte(Identifier),
		testIdentityKeyBytes(t),
	}
	scriptObj := createValidPushDropScript(t, fields)

	payload := &engine.OutputAdmittedByTopic{
		Topic:         Topic,
		Outpoint:      createTestOutpoint(t, 0),
		LockingScript: scriptObj,
	}

	err := service.OutputAdmittedByTopic(context.Background(), payload)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected at least 4 fields")
	assert.Contains(t, err.Error(), "got 2")
}

func TestOutputAdmittedByTopic_IgnoreNonDIDProtocol(t *testing.T) {
	service, _ := createTestDIDLookupService()

	fields := createDIDTokenFields(t)
	fields[0] = []byte("SHIP") // Different protocol
	scriptObj := createValidPushDropScript(t, fields)

	payload := &engine.OutputAdmittedByTopic{
		Topic:         Topic,
		Outpoint:      createTestOutpoint(t, 0),
		LockingScript: scriptObj,
	}

	err := service.OutputAdmittedByTopic(context.Background(), payload)
	require.NoError(t, err) // Should silently ignore other protocols
}

func TestOutputAdmittedByTopic_UnresolvableDID(t *testing.T) {
	service, _ := createTestDIDLookupService()

	fields := createDIDTokenFields(t)
	fields[2] = []byte("did:key:not-multibase")
	scriptObj := createValidPushDropScript(t, fields)

	payload := &engine.OutputAdmittedByTopic{
		Topic:         Topic,
		Outpoint:      createTestOutpoint(t, 0),
		LockingScript: scriptObj,
	}

	err := service.OutputAdmittedByTopic(context.Background(), payload)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "registered DID failed resolution")
	require.ErrorIs(t, err, didkey.ErrUnsupportedMultibasePrefix)
}

func TestOutputAdmittedByTopic_IdentityKeyMismatch(t *testing.T) {
	service, _ := createTestDIDLookupService()

	// Register a DID built from a different key than the claimed identity key
	otherKey := testIdentityKeyBytes(t)
	otherKey[0] = 0x03
	otherDID, err := didkey.Construct(otherKey)
	require.NoError(t, err)

	fields := createDIDTokenFields(t)
	fields[2] = []byte(otherDID.DID)
	scriptObj := createValidPushDropScript(t, fields)

	payload := &engine.OutputAdmittedByTopic{
		Topic:         Topic,
		Outpoint:      createTestOutpoint(t, 0),
		LockingScript: scriptObj,
	}

	err = service.OutputAdmittedByTopic(context.Background(), payload)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "identity key field does not match")
}

func TestOutputAdmittedByTopic_StorageError(t *testing.T) {
	service, mockStorage := createTestDIDLookupService()

	scriptObj := createValidPushDropScript(t, createDIDTokenFields(t))

	payload := &engine.OutputAdmittedByTopic{
		Topic:         Topic,
		Outpoint:      createTestOutpoint(t, 0),
		LockingScript: scriptObj,
	}

	mockStorage.On("StoreDIDRecord", mock.Anything, TxID, 0, testDIDString(t), testIdentityKeyHex).Return(errTestStorage)

	err := service.OutputAdmittedByTopic(context.Background(), payload)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storage error")
}

// Test OutputSpent

func TestOutputSpent_Success(t *testing.T) {
	service, mockStorage := createTestDIDLookupService()

	payload := &engine.OutputSpent{
		Topic:    Topic,
		Outpoint: createTestOutpoint(t, 0),
	}

	mockStorage.On("DeleteDIDRecord", mock.Anything, TxID, 0).Return(nil)

	err := service.OutputSpent(context.Background(), payload)
	require.NoError(t, err)
	mockStorage.AssertExpectations(t)
}

func TestOutputSpent_IgnoreNonDIDTopic(t *testing.T) {
	service, _ := createTestDIDLookupService()

	payload := &engine.OutputSpent{
		Topic:    "tm_other",
		Outpoint: createTestOutpoint(t, 0),
	}

	err := service.OutputSpent(context.Background(), payload)
	require.NoError(t, err) // Should silently ignore other topics
}

// Test OutputEvicted

func TestOutputEvicted_Success(t *testing.T) {
	service, mockStorage := createTestDIDLookupService()

	mockStorage.On("DeleteDIDRecord", mock.Anything, TxID, 3).Return(nil)

	err := service.OutputEvicted(context.Background(), createTestOutpoint(t, 3))
	require.NoError(t, err)
	mockStorage.AssertExpectations(t)
}

func TestOutputEvicted_StorageError(t *testing.T) {
	service, mockStorage := createTestDIDLookupService()

	mockStorage.On("DeleteDIDRecord", mock.Anything, TxID, 0).Return(errTestStorage)

	err := service.OutputEvicted(context.Background(), createTestOutpoint(t, 0))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storage error")
}

// Test no-op notifications

func TestOutputNoLongerRetainedInHistory_NoOp(t *testing.T) {
	service, _ := createTestDIDLookupService()

	err := service.OutputNoLongerRetainedInHistory(context.Background(), createTestOutpoint(t, 0), Topic)
	require.NoError(t, err)
}

func TestOutputBlockHeightUpdated_NoOp(t *testing.T) {
	service, _ := createTestDIDLookupService()

	err := service.OutputBlockHeightUpdated(context.Background(), nil, 100, 0)
	require.NoError(t, err)
}

// Test Lookup

func TestLookup_LegacyFindAll(t *testing.T) {
	service, mockStorage := createTestDIDLookupService()

	question := &lookup.LookupQuestion{
		Service: Service,
		Query:   json.RawMessage(`"findAll"`),
	}

	expectedResults := []types.UTXOReference{
		{Txid: "abc123", OutputIndex: 0},
		{Txid: "def456", OutputIndex: 1},
	}

	mockStorage.On("FindAll", mock.Anything, (*int)(nil), (*int)(nil), (*types.SortOrder)(nil)).Return(expectedResults, nil)

	results, err := service.Lookup(context.Background(), question)
	require.NoError(t, err)
	assert.Equal(t, lookup.AnswerTypeFreeform, results.Type)
	if utxos, ok := results.Result.([]types.UTXOReference); ok {
		assert.Equal(t, expectedResults, utxos)
	} else {
		t.Errorf("Expected UTXOReference slice, got %T", results.Result)
	}
	mockStorage.AssertExpectations(t)
}

func TestLookup_NilQuery(t *testing.T) {
	service, _ := createTestDIDLookupService()

	question := &lookup.LookupQuestion{
		Service: Service,
		Query:   json.RawMessage{},
	}

	_, err := service.Lookup(context.Background(), question)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a valid query must be provided")
}

func TestLookup_WrongService(t *testing.T) {
	service, _ := createTestDIDLookupService()

	question := &lookup.LookupQuestion{
		Service: "ls_other",
		Query:   json.RawMessage(`"findAll"`),
	}

	_, err := service.Lookup(context.Background(), question)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lookup service not supported")
}

func TestLookup_InvalidStringQuery(t *testing.T) {
	service, _ := createTestDIDLookupService()

	question := &lookup.LookupQuestion{
		Service: Service,
		Query:   json.RawMessage(`"invalid"`),
	}

	_, err := service.Lookup(context.Background(), question)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid string query: only 'findAll' is supported")
}

func TestLookup_ObjectQuery_FindAll(t *testing.T) {
	service, mockStorage := createTestDIDLookupService()

	findAll := true
	limit := 10
	skip := 5
	sortOrder := types.SortOrderAsc

	query := map[string]interface{}{
		"findAll":   findAll,
		"limit":     limit,
		"skip":      skip,
		"sortOrder": sortOrder,
	}

	queryJSON, err := json.Marshal(query)
	require.NoError(t, err)
	question := &lookup.LookupQuestion{
		Service: Service,
		Query:   queryJSON,
	}

	expectedResults := []types.UTXOReference{
		{Txid: "abc123", OutputIndex: 0},
	}

	mockStorage.On("FindAll", mock.Anything, &limit, &skip, &sortOrder).Return(expectedResults, nil)

	results, err := service.Lookup(context.Background(), question)
	require.NoError(t, err)
	assert.Equal(t, lookup.AnswerTypeFreeform, results.Type)
	if utxos, ok := results.Result.([]types.UTXOReference); ok {
		assert.Equal(t, expectedResults, utxos)
	} else {
		t.Errorf("Expected UTXOReference slice, got %T", results.Result)
	}
	mockStorage.AssertExpectations(t)
}

func TestLookup_ObjectQuery_ByDID(t *testing.T) {
	service, mockStorage := createTestDIDLookupService()

	did := testDIDString(t)

	query := map[string]interface{}{
		"did": did,
	}

	queryJSON, err := json.Marshal(query)
	require.NoError(t, err)
	question := &lookup.LookupQuestion{
		Service: Service,
		Query:   queryJSON,
	}

	expectedQuery := types.DIDQuery{
		DID: &did,
	}

	expectedResults := []types.UTXOReference{
		{Txid: "abc123", OutputIndex: 0},
	}

	mockStorage.On("FindRecord", mock.Anything, expectedQuery).Return(expectedResults, nil)

	results, err := service.Lookup(context.Background(), question)
	require.NoError(t, err)
	assert.Equal(t, lookup.AnswerTypeFreeform, results.Type)
	if utxos, ok := results.Result.([]types.UTXOReference); ok {
		assert.Equal(t, expectedResults, utxos)
	} else {
		t.Errorf("Expected UTXOReference slice, got %T", results.Result)
	}
	mockStorage.AssertExpectations(t)
}

func TestLookup_ObjectQuery_ByIdentityKey(t *testing.T) {
	service, mockStorage := createTestDIDLookupService()

	identityKey := testIdentityKeyHex

	query := map[string]interface{}{
		"identityKey": identityKey,
	}

	queryJSON, err := json.Marshal(query)
	require.NoError(t, err)
	question := &lookup.LookupQuestion{
		Service: Service,
		Query:   queryJSON,
	}

	expectedQuery := types.DIDQuery{
		IdentityKey: &identityKey,
	}

	expectedResults := []types.UTXOReference{
		{Txid: "abc123", OutputIndex: 0},
		{Txid: "def456", OutputIndex: 1},
	}

	mockStorage.On("FindRecord", mock.Anything, expectedQuery).Return(expectedResults, nil)

	results, err := service.Lookup(context.Background(), question)
	require.NoError(t, err)
	assert.Equal(t, lookup.AnswerTypeFreeform, results.Type)
	assert.Len(t, results.Result, 2)
	mockStorage.AssertExpectations(t)
}

func TestLookup_ObjectQuery_Combined(t *testing.T) {
	service, mockStorage := createTestDIDLookupService()

	did := testDIDString(t)
	identityKey := testIdentityKeyHex
	limit := 50
	skip := 10
	sortOrder := types.SortOrderDesc

	query := map[string]interface{}{
		"did":         did,
		"identityKey": identityKey,
		"limit":       limit,
		"skip":        skip,
		"sortOrder":   sortOrder,
	}

	queryJSON, err := json.Marshal(query)
	require.NoError(t, err)
	question := &lookup.LookupQuestion{
		Service: Service,
		Query:   queryJSON,
	}

	expectedQuery := types.DIDQuery{
		DID:         &did,
		IdentityKey: &identityKey,
		Limit:       &limit,
		Skip:        &skip,
		SortOrder:   &sortOrder,
	}

	expectedResults := []types.UTXOReference{
		{Txid: "abc123", OutputIndex: 0},
	}

	mockStorage.On("FindRecord", mock.Anything, expectedQuery).Return(expectedResults, nil)

	results, err := service.Lookup(context.Background(), question)
	require.NoError(t, err)
	assert.Equal(t, lookup.AnswerTypeFreeform, results.Type)
	mockStorage.AssertExpectations(t)
}

func TestLookup_ValidationError_NoFilter(t *testing.T) {
	service, _ := createTestDIDLookupService()

	query := map[string]interface{}{
		"limit": 10,
	}

	queryJSON, err := json.Marshal(query)
	require.NoError(t, err)
	question := &lookup.LookupQuestion{
		Service: Service,
		Query:   queryJSON,
	}

	_, err = service.Lookup(context.Background(), question)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "query must provide did, identityKey or findAll")
}

func TestLookup_ValidationError_InvalidDID(t *testing.T) {
	service, _ := createTestDIDLookupService()

	query := map[string]interface{}{
		"did": "did:web:example.com",
	}

	queryJSON, err := json.Marshal(query)
	require.NoError(t, err)
	question := &lookup.LookupQuestion{
		Service: Service,
		Query:   queryJSON,
	}

	_, err = service.Lookup(context.Background(), question)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "query.did must be a did:key identifier")
}

func TestLookup_ValidationError_InvalidIdentityKey(t *testing.T) {
	service, _ := createTestDIDLookupService()

	query := map[string]interface{}{
		"identityKey": "not-a-key",
	}

	queryJSON, err := json.Marshal(query)
	require.NoError(t, err)
	question := &lookup.LookupQuestion{
		Service: Service,
		Query:   queryJSON,
	}

	_, err = service.Lookup(context.Background(), question)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "query.identityKey must be a compressed public key hex")
}

func TestLookup_ValidationError_NegativeLimit(t *testing.T) {
	service, _ := createTestDIDLookupService()

	query := map[string]interface{}{
		"findAll": true,
		"limit":   -1,
	}

	queryJSON, err := json.Marshal(query)
	require.NoError(t, err)
	question := &lookup.LookupQuestion{
		Service: Service,
		Query:   queryJSON,
	}

	_, err = service.Lookup(context.Background(), question)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "query.limit must be a positive number")
}

func TestLookup_ValidationError_NegativeSkip(t *testing.T) {
	service, _ := createTestDIDLookupService()

	query := map[string]interface{}{
		"findAll": true,
		"skip":    -1,
	}

	queryJSON, err := json.Marshal(query)
	require.NoError(t, err)
	question := &lookup.LookupQuestion{
		Service: Service,
		Query:   queryJSON,
	}

	_, err = service.Lookup(context.Background(), question)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "query.skip must be a non-negative number")
}

func TestLookup_ValidationError_InvalidSortOrder(t *testing.T) {
	service, _ := createTestDIDLookupService()

	query := map[string]interface{}{
		"findAll":   true,
		"sortOrder": "sideways",
	}

	queryJSON, err := json.Marshal(query)
	require.NoError(t, err)
	question := &lookup.LookupQuestion{
		Service: Service,
		Query:   queryJSON,
	}

	_, err = service.Lookup(context.Background(), question)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "query.sortOrder must be 'asc' or 'desc'")
}

func TestLookup_StorageError(t *testing.T) {
	service, mockStorage := createTestDIDLookupService()

	question := &lookup.LookupQuestion{
		Service: Service,
		Query:   json.RawMessage(`"findAll"`),
	}

	mockStorage.On("FindAll", mock.Anything, (*int)(nil), (*int)(nil), (*types.SortOrder)(nil)).Return([]types.UTXOReference{}, errTestStorage)

	_, err := service.Lookup(context.Background(), question)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storage error")
}

// Test GetDocumentation

func TestGetDocumentation(t *testing.T) {
	service, _ := createTestDIDLookupService()

	doc := service.GetDocumentation()
	assert.Equal(t, LookupDocumentation, doc)
	assert.Contains(t, doc, "DID Lookup Service")
}

// Test GetMetaData

func TestGetMetaData(t *testing.T) {
	service, _ := createTestDIDLookupService()

	metadata := service.GetMetaData()
	assert.Equal(t, "DID Lookup Service", metadata.Name)
	assert.Equal(t, "Provides lookup capabilities for on-chain DID registration tokens.", metadata.Description)
}
