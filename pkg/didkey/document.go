package didkey

// Context URIs and the verification method type emitted in every document.
const (
	ContextDIDV1      = "https://www.w3.org/ns/did/v1"
	ContextMultikeyV1 = "https://w3id.org/security/multikey/v1"

	// VerificationMethodType is the type of the single verification method.
	VerificationMethodType = "Multikey"
)

// VerificationMethod describes the one key a did:key document carries and the
// purposes it may be used for.
type VerificationMethod struct {
	ID                 string `json:"id"`
	Type               string `json:"type"`
	Controller         string `json:"controller"`
	PublicKeyMultibase string `json:"publicKeyMultibase"`
}

// Document is a DID Document for a did:key identifier. It is derived entirely
// from the DID string, constructed once and never mutated: the single
// verification method simultaneously fills the authentication,
// assertionMethod, capabilityInvocation and capabilityDelegation roles.
type Document struct {
	Context              []string             `json:"@context"`
	ID                   string               `json:"id"`
	VerificationMethod   []VerificationMethod `json:"verificationMethod"`
	Authentication       []string             `json:"authentication"`
	AssertionMethod      []string             `json:"assertionMethod"`
	CapabilityInvocation []string             `json:"capabilityInvocation"`
	CapabilityDelegation []string             `json:"capabilityDelegation"`
}

// newDocument builds the document for a DID and its multibase substring.
// Both strings are used verbatim, so a document rebuilt during resolution is
// bit-for-bit identical to the one emitted at construction time.
func newDocument(did, multibase string) *Document {
	keyID := did + "#" + multibase

	return &Document{
		Context: []string{ContextDIDV1, ContextMultikeyV1},
		ID:      did,
		VerificationMethod: []VerificationMethod{{
			ID:                 keyID,
			Type:               VerificationMethodType,
			Controller:         did,
			PublicKeyMultibase: multibase,
		}},
		Authentication:       []string{keyID},
		AssertionMethod:      []string{keyID},
		CapabilityInvocation: []string{keyID},
		CapabilityDelegation: []string{keyID},
	}
}
