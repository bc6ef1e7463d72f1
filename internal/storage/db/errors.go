package db

import "errors"

// errNotInTransaction guards queries that require multi-statement atomicity
// (PublishVersion, session-cap eviction) against being called with a bare
// pool DBTX instead of a transaction-bound one.
var errNotInTransaction = errors.New("db: operation requires a transaction-bound Queries")

// ErrLastOwner guards §3's "each tenant has ≥1 owner" invariant: it is
// returned instead of performing the mutation when demoting or removing a
// member would leave a tenant without an owner.
var ErrLastOwner = errors.New("db: tenant must retain at least one owner")
