// Package did implements the DID registry topic manager functionality.
// This file contains the documentation for the DID topic manager, separated
// from the implementation to improve code organization and maintainability.
package did

// TopicManagerDocumentation contains the comprehensive documentation for the
// DID topic manager, describing how registration outputs are validated.
const TopicManagerDocumentation = `# DID Topic Manager

**Topic Name**: ` + "`tm_did`" + `

---

## Overview

The DID Topic Manager identifies _admissible outputs_ in transactions that register a ` + "`did:key`" + ` identifier on chain. A **DID registration token** is a UTXO whose PushDrop locking script carries the registered identifier together with the identity key it embeds, bound by a signature.

---

## Requirements for admission

An output is admitted to ` + "`tm_did`" + ` when all of the following hold:

- The locking script is a valid PushDrop token with exactly 4 fields.
- Field 0 is the ` + "`\"DID\"`" + ` protocol identifier.
- Field 1 is a 33-byte compressed secp256k1 identity key (leading byte ` + "`0x02`" + ` or ` + "`0x03`" + `).
- Field 2 is a ` + "`did:key:z...`" + ` identifier that passes the full resolution chain (method prefix, base58btc multibase tag, secp256k1 multicodec header, compression marker) and whose embedded key equals field 1 byte for byte.
- Field 3 is a signature over the preceding fields, correctly linked to the identity key under the ` + "`did registration`" + ` wallet protocol.

Outputs failing any check are skipped silently; one transaction may mix DID registrations with unrelated outputs.

---

## Spends

When a registration token is spent, the corresponding record is withdrawn from the lookup service. Re-registering the same DID in a new output is always possible, since the identifier is a pure function of the key.`
