// Package identity implements the identity certificate lookup service
// functionality. This file contains the documentation for the identity
// lookup service, separated from the implementation to improve code
// organization and maintainability.
package identity

// LookupDocumentation contains the comprehensive documentation for the
// identity lookup service, including query formats and examples.
const LookupDocumentation = `# Identity Lookup Service

**Service Name**: ` + "`ls_identity`" + `

---

## Overview

The Identity Lookup Service is used to **query** the on-chain identity certificate tokens tracked in your overlay database. Each record holds a certifier-signed certificate binding attested attributes (name, email, and so on) to a subject identity key, together with the UTXO that carries it.

---

## Querying the Identity Lookup Service

When you call ` + "`lookup(question)`" + ` you must include:

1. **` + "`question.service`" + `** set to ` + "`\"ls_identity\"`" + `.
2. **` + "`question.query`" + `**: one of the following:
   - ` + "`\"findAll\"`" + ` (string literal): returns **all** known certificate records.
   - An object with:
     - ` + "`attributes`" + ` (optional object): attribute name to value, matched as case-insensitive substrings of the certified values.
     - ` + "`certifiers`" + ` (optional string array): hex-encoded certifier identity keys; any match admits.
     - ` + "`certificateTypes`" + ` (optional string array): certificate type identifiers; any match admits.
     - ` + "`identityKey`" + ` (optional string): the subject's hex-encoded compressed public key.
     - ` + "`serialNumber`" + ` (optional string): the base64-encoded 32-byte certificate serial number.
     - ` + "`limit`" + `, ` + "`skip`" + ` (optional numbers) and ` + "`sortOrder`" + ` (` + "`\"asc\"`" + ` or ` + "`\"desc\"`" + ` by creation time) for pagination.

At least one filter must be provided.

### Example

` + "```" + `json
{
  "service": "ls_identity",
  "query": {
    "attributes": { "name": "alice" },
    "certifiers": ["0279be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798"]
  }
}
` + "```" + `

---

## Results

Answers are freeform lists of UTXO references:

` + "```" + `json
[{ "txid": "...", "outputIndex": 0 }]
` + "```" + `

Spent or evicted certificate tokens are removed from the registry, so every returned reference points at a live output. Spending the token is how a certifier revokes a certificate.`
