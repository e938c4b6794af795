// Package types contains the shared record, query and configuration types
// used by the identity overlay services.
package types

import "time"

// SortOrder controls the createdAt ordering of query results
type SortOrder string

const (
	SortOrderAsc  SortOrder = "asc"
	SortOrderDesc SortOrder = "desc"
)

// UTXOReference identifies an on-chain token by transaction ID and output index
type UTXOReference struct {
	Txid        string `json:"txid" bson:"txid"`
	OutputIndex int    `json:"outputIndex" bson:"outputIndex"`
}

// DIDRecord represents an admitted on-chain DID registration token
type DIDRecord struct {
	Txid        string    `json:"txid" bson:"txid"`
	OutputIndex int       `json:"outputIndex" bson:"outputIndex"`
	DID         string    `json:"did" bson:"did"`
	IdentityKey string    `json:"identityKey" bson:"identityKey"`
	CreatedAt   time.Time `json:"createdAt" bson:"createdAt"`
}

// DIDQuery represents a query for DID records
type DIDQuery struct {
	DID         *string    `json:"did,omitempty"`
	IdentityKey *string    `json:"identityKey,omitempty"`
	FindAll     *bool      `json:"findAll,omitempty"`
	Limit       *int       `json:"limit,omitempty"`
	Skip        *int       `json:"skip,omitempty"`
	SortOrder   *SortOrder `json:"sortOrder,omitempty"`
}

// Certificate is an identity certificate carried in an on-chain token.
// Field values are certifier-attested attributes of the subject.
type Certificate struct {
	Type               string            `json:"type" bson:"type"`
	SerialNumber       string            `json:"serialNumber" bson:"serialNumber"`
	Subject            string            `json:"subject" bson:"subject"`
	Certifier          string            `json:"certifier" bson:"certifier"`
	RevocationOutpoint string            `json:"revocationOutpoint" bson:"revocationOutpoint"`
	Fields             map[string]string `json:"fields" bson:"fields"`
	Signature          string            `json:"signature" bson:"signature"`
}

// IdentityRecord represents an admitted on-chain identity certificate token
type IdentityRecord struct {
	Txid        string      `json:"txid" bson:"txid"`
	OutputIndex int         `json:"outputIndex" bson:"outputIndex"`
	Certificate Certificate `json:"certificate" bson:"certificate"`
	CreatedAt   time.Time   `json:"createdAt" bson:"createdAt"`
}

// IdentityQuery represents a query for identity certificate records.
// Attribute values are matched fuzzily (case-insensitive substring), the
// remaining filters exactly.
type IdentityQuery struct {
	Attributes       map[string]string `json:"attributes,omitempty"`
	Certifiers       []string          `json:"certifiers,omitempty"`
	CertificateTypes []string          `json:"certificateTypes,omitempty"`
	IdentityKey      *string           `json:"identityKey,omitempty"`
	SerialNumber     *string           `json:"serialNumber,omitempty"`
	Limit            *int              `json:"limit,omitempty"`
	Skip             *int              `json:"skip,omitempty"`
	SortOrder        *SortOrder        `json:"sortOrder,omitempty"`
}

// LookupResolverConfig configures how the registrar queries the overlay
// network for existing registrations
type LookupResolverConfig struct {
	// NetworkPreset selects the overlay network preset ("main" or "test")
	NetworkPreset string `json:"networkPreset,omitempty"`
	// SLAPTrackers optionally overrides the SLAP tracker hosts used for
	// service host discovery
	SLAPTrackers []string `json:"slapTrackers,omitempty"`
}
