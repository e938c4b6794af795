// Package identity implements the identity certificate topic manager
// functionality. This file contains the documentation for the identity
// topic manager, separated from the implementation to improve code
// organization and maintainability.
package identity

// TopicManagerDocumentation contains the comprehensive documentation for the
// identity topic manager, describing how certificate outputs are validated.
const TopicManagerDocumentation = `# Identity Topic Manager

**Topic Name**: ` + "`tm_identity`" + `

---

## Overview

The Identity Topic Manager identifies _admissible outputs_ in transactions that publish identity certificates on chain. An **identity certificate token** is a UTXO whose PushDrop locking script carries a certifier-signed certificate for a subject identity key, bound by a token signature.

---

## Requirements for admission

An output is admitted to ` + "`tm_identity`" + ` when all of the following hold:

- The locking script is a valid PushDrop token with exactly 4 fields.
- Field 0 is the ` + "`\"IDENTITY\"`" + ` protocol identifier.
- Field 1 is a 33-byte compressed secp256k1 identity key (leading byte ` + "`0x02`" + ` or ` + "`0x03`" + `).
- Field 2 is a JSON certificate whose ` + "`subject`" + ` equals the hex encoding of field 1 and whose ` + "`serialNumber`" + ` is 32 base64-encoded bytes.
- Field 3 is a signature over the preceding fields, correctly linked to the identity key under the ` + "`identity certification`" + ` wallet protocol.

Outputs failing any check are skipped silently; one transaction may mix certificate tokens with unrelated outputs.

---

## Revocation

Spending a certificate token revokes it: the lookup service withdraws the record as soon as the UTXO is spent. The certificate's ` + "`revocationOutpoint`" + ` points at the output whose spend the certifier uses for this purpose.`
