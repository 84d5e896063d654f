package contentset

// Identity is the projection diff compares entries by. The default
// compares BlobID; callers can supply e.g. a hash-only projection to
// ignore timestamp differences.
type Identity func(*Entry) any

func defaultIdentity(e *Entry) any { return e.BlobID }

// DiffResult holds the three set-algebraic partitions Diff computes.
// All three are bound to after's Environment; Added and Changed hold
// entries from after, Removed holds entries from before.
type DiffResult struct {
	Added   *Fileset
	Removed *Fileset
	Changed *Fileset
}

// Close releases all three result filesets. Safe to call even if some of
// them were already individually closed.
func (d *DiffResult) Close() error {
	var firstErr error
	for _, fs := range []*Fileset{d.Added, d.Removed, d.Changed} {
		if err := fs.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Diff computes the set-algebraic difference between before and after by
// entry identity (BlobID by default). If before is nil, every entry in
// after is Added and Removed/Changed are empty.
//
// Invariants held by the result: Added, Removed, and Changed are pairwise
// disjoint by path; paths(Added) ∪ unchanged ∪ paths(Changed) = paths(after);
// paths(Removed) ∪ unchanged ∪ paths(Changed) = paths(before).
func Diff(before, after *Fileset, identity ...Identity) *DiffResult {
	idFn := defaultIdentity
	if len(identity) > 0 && identity[0] != nil {
		idFn = identity[0]
	}

	env := after.env
	afterTree := after.snapshot()

	added := make(tree)
	changed := make(tree)
	removed := make(tree)

	var beforeTree tree
	if before != nil {
		beforeTree = before.snapshot()
	}

	for path, e := range afterTree {
		be, existed := beforeTree[path]
		switch {
		case !existed:
			env.store.Retain(e.BlobID)
			added[path] = e
		case idFn(be) != idFn(e):
			env.store.Retain(e.BlobID)
			changed[path] = e
		}
	}

	for path, e := range beforeTree {
		if _, stillThere := afterTree[path]; !stillThere {
			env.store.Retain(e.BlobID)
			removed[path] = e
		}
	}

	return &DiffResult{
		Added:   &Fileset{env: env, tree: added},
		Removed: &Fileset{env: env, tree: removed},
		Changed: &Fileset{env: env, tree: changed},
	}
}

// Added returns the paths present in after but not before. Equivalent to
// Diff(before, after).Added but releases the other two partitions for you.
func Added(before, after *Fileset) *Fileset {
	d := Diff(before, after)
	d.Removed.Close()
	d.Changed.Close()
	return d.Added
}

// Removed returns the paths present in before but not after.
func Removed(before, after *Fileset) *Fileset {
	d := Diff(before, after)
	d.Added.Close()
	d.Changed.Close()
	return d.Removed
}

// Changed returns the paths present in both whose identity differs.
func Changed(before, after *Fileset) *Fileset {
	d := Diff(before, after)
	d.Added.Close()
	d.Removed.Close()
	return d.Changed
}
