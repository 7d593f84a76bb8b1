// Package confidential defines the boundary to the two collaborators the
// vault composes with: a registry of encrypted handles that can combine
// ciphertexts without revealing them, and a confidential ledger that moves
// encrypted value between accounts.
//
// Every call carries an [authority.Credential]. The intent a credential
// must sign for each call is fixed by the constructors in this package
// (TransferIntent, ImportIntent, GrantIntent and so on), so callers and
// implementations agree on what was authorized.
package confidential
