package contentset

// tree is the persistent mapping from logical path to Entry backing a
// Fileset. Go has no built-in structurally-shared persistent map, so this
// implements the "return a new fileset, leave the input untouched"
// contract the idiomatic way for typical directory sizes: every update
// clones the top-level map (cheap — it copies pointers, not entries or
// blob content) and adjusts the blob store's refcounts for whatever the
// clone carries forward. See DESIGN.md for why this, not a trie, is the
// right tradeoff here.
type tree map[string]*Entry

// cloneRetain copies src into a new map, retaining one blob-store
// reference per entry carried over — the new tree now independently owns
// its share of every blob it points at, so closing the fileset this
// becomes part of is always safe no matter what happens to src's owner.
func cloneRetain(store *BlobStore, src tree) tree {
	dst := make(tree, len(src))
	for path, e := range src {
		store.Retain(e.BlobID)
		dst[path] = e
	}
	return dst
}

// releaseAll releases one reference per entry in t, used by Fileset.Close.
func releaseAll(store *BlobStore, t tree) {
	for _, e := range t {
		store.Release(e.BlobID)
	}
}
