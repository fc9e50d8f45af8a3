// Package segkit lays typed records out inside flat byte buffers.
//
// A container is one buffer: an 8-byte header carrying a type tag, a fixed
// meta record and a sequence of data segments whose offsets follow from a
// layout computed once per type. Segments hold raw bytes or record
// collections (insertion-ordered arrays and key-ordered collections). One
// segment per type may be flexible and absorbs whatever space the buffer
// has beyond the fixed part.
//
// Buffers live on a host (see package host): in memory, memory-mapped
// files, LevelDB, DynamoDB or any blob store. The Engine ties definitions
// to a host.
//
//	ledger := schema.New("ledger", 0x4745444c)
//	balance := ledger.MetaU64("balance")
//	entries := ledger.Collection("entries", 40, 4)
//	def := ledger.MustBuild()
//
//	eng := segkit.New(host.NewMemory())
//	err := eng.Create(ctx, key, def, 0)
//	err = eng.Update(ctx, key, def, func(c *container.Container) error {
//	    balance.Add(c.Meta(), 100)
//	    arr, err := container.OpenArray(c, entries.Index, entryCodec{})
//	    if err != nil {
//	        return err
//	    }
//	    return arr.TryInsert(entry)
//	})
//
// # Proxies and pages
//
// A proxy is a container that only names another key; ResolveChain follows
// proxies to the buffer they lead to. Data that outgrows one buffer is
// split into pages owned by a parent container, see package paging.
//
// # Concurrency
//
// Containers are plain views and not safe for concurrent use. The Engine
// serialises Update and Grow per key within one process; hosts shared
// between processes detect concurrent writers themselves (host/dynamo
// fails with ErrConflict).
package segkit
