// Package model defines the identity types shared by every segkit package.
//
// # Identity Types
//
//   - StorageKey: 32-byte opaque name of a storage buffer (base58 text form)
//   - TypeTag: 32-bit container type identifier written into every header
//   - OrderKey: (timestamp, identity) composite key of ordered collections
//
// # Key Derivation
//
// Auxiliary buffers are never linked by pointer. Their keys are a pure
// function of an owner key, a seed and an index:
//
//	page := model.DeriveKey(owner, []byte("orders"), 3)
package model
