// Package did implements the DID registry lookup service functionality.
// This file contains the documentation for the DID lookup service, separated
// from the implementation to improve code organization and maintainability.
package did

// LookupDocumentation contains the comprehensive documentation for the DID
// lookup service, including query formats and examples.
const LookupDocumentation = `# DID Lookup Service

**Service Name**: ` + "`ls_did`" + `

---

## Overview

The DID Lookup Service is used to **query** the on-chain DID registration tokens tracked in your overlay database. Each record maps a ` + "`did:key`" + ` identifier to the UTXO that registered it, so resolvers and applications can prove that a DID was anchored on chain and is still unspent.

The DID itself is self-certifying: the identifier embeds the secp256k1 identity key, and anyone can reconstruct the DID document offline. What this service adds is the registry view: which DIDs have live registration tokens, and where.

---

## Querying the DID Lookup Service

When you call ` + "`lookup(question)`" + ` you must include:

1. **` + "`question.service`" + `** set to ` + "`\"ls_did\"`" + `.
2. **` + "`question.query`" + `**: one of the following:
   - ` + "`\"findAll\"`" + ` (string literal): returns **all** known registration records.
   - An object with:
     - ` + "`did`" + ` (optional string): a full ` + "`did:key:z...`" + ` identifier. The query is rejected up front if the identifier does not resolve.
     - ` + "`identityKey`" + ` (optional string): a hex-encoded 33-byte compressed public key.
     - ` + "`findAll`" + ` (optional bool): return everything, honoring pagination.
     - ` + "`limit`" + `, ` + "`skip`" + ` (optional numbers) and ` + "`sortOrder`" + ` (` + "`\"asc\"`" + ` or ` + "`\"desc\"`" + ` by creation time) for pagination.

At least one of ` + "`did`" + `, ` + "`identityKey`" + ` or ` + "`findAll`" + ` must be provided.

### Example

` + "```" + `json
{
  "service": "ls_did",
  "query": { "identityKey": "0279be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798" }
}
` + "```" + `

---

## Results

Answers are freeform lists of UTXO references:

` + "```" + `json
[{ "txid": "...", "outputIndex": 0 }]
` + "```" + `

Spent or evicted registration tokens are removed from the registry, so every returned reference points at a live output.`
