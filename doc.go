// Package mem6 is a segregated-fit, paged, enclave-partitioned memory
// allocator. Each enclave reserves its own per-size-class pools out of a
// single huge virtual-address reservation made once at Startup, so
// allocations never contend across enclaves and teardown is one syscall.
//
// Call Startup once, get an Allocator per enclave with (*System).Enclave,
// and use Alloc/Free on it. Startup/Shutdown is not safe to call
// concurrently with allocation, and a single Allocator is not safe for
// concurrent use by more than one goroutine — different enclaves are
// disjoint byte ranges, so separate enclaves are safe from separate
// goroutines.
package mem6
