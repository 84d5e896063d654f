// Package contentset provides immutable, content-addressed filesets: logical
// snapshots of a filesystem directory whose contents are deduplicated by an
// underlying blob store and efficiently materialized to concrete directories
// via hard links.
//
// # Design
//
// A Fileset is a persistent mapping from logical path to Entry. Every update
// operation (AddDirectory, Remove, Rename, Filter, Merge) returns a new
// Fileset; the receiver is left untouched. Entries that survive across
// filesets share the same underlying Blob, so deriving one fileset from
// another never re-copies file content.
//
// Why content-addressed: two files with identical bytes and modification
// time are stored once, no matter how many filesets or paths reference them.
// Why hard links on commit: materializing a fileset into a directory costs
// O(files changed), not O(total bytes) — the committer diffs against the
// directory's previously committed state and only touches what moved.
//
// # Usage
//
//	env, err := contentset.NewEnvironment("/var/cache/contentset")
//	if err != nil {
//		return err
//	}
//	defer env.Close()
//
//	fs, err := contentset.NewFileset(env).AddDirectory("src", contentset.AddDirectoryOptions{})
//	if err != nil {
//		return err
//	}
//	defer fs.Close()
//	committed, err := env.Commit(fs, "out")
//	if err != nil {
//		return err
//	}
//	defer committed.Close()
//
// # Concurrency
//
// Filesets are immutable values: sharing one across goroutines needs no
// synchronization. The blob store is the only shared mutable component and
// guards its refcount table and held read handles with a mutex. Commits are
// not safe from two processes targeting the same directory at once unless
// WithProcessLock is used; concurrent in-process commits to different
// directories are safe.
package contentset
