// Package cache holds recently used bytes under a size budget.
//
// LRUBlockCache backs two layers: blobstore.CachingStore caches fixed-size
// blocks of remote blobs, and blobhost caches whole decoded buffers so a
// View after an Update does not go back to the object store.
//
// Memory is optionally charged to a resource.Controller; when the
// controller refuses, the value is simply not cached.
package cache
