package engine

// ChangeKind classifies a key after comparing both snapshots.
type ChangeKind int

const (
	Unchanged ChangeKind = iota
	Inserted
	Updated
	Deleted
)

func (k ChangeKind) String() string {
	switch k {
	case Inserted:
		return "inserted"
	case Updated:
		return "updated"
	case Deleted:
		return "deleted"
	}
	return "unchanged"
}

// Change is one classified key. Source is set for Inserted, Updated and Unchanged keys
// present on the source; Target is set whenever the target holds a row for the key,
// including an Inserted key that revives a soft-deleted row.
type Change struct {
	Kind    ChangeKind
	Key     Key
	KeyText string
	Source  *Row
	Target  *Row
}

// Revives reports whether applying the change restores a soft-deleted target row.
func (c Change) Revives() bool {
	return c.Kind == Inserted && c.Target != nil
}

// Counts tallies changes per kind.
type Counts struct {
	Inserted  int
	Updated   int
	Deleted   int
	Unchanged int
}

// Add records n changes of kind k.
func (c *Counts) Add(k ChangeKind, n int) {
	switch k {
	case Inserted:
		c.Inserted += n
	case Updated:
		c.Updated += n
	case Deleted:
		c.Deleted += n
	default:
		c.Unchanged += n
	}
}

// Actionable is the number of changes that require a write.
func (c Counts) Actionable() int {
	return c.Inserted + c.Updated + c.Deleted
}

// Tally counts changes per kind.
func Tally(changes []Change) Counts {
	var c Counts
	for _, ch := range changes {
		c.Add(ch.Kind, 1)
	}
	return c
}

// Diff classifies every key of the union of both snapshots exactly once:
//
//   - source only: Inserted
//   - on both, target soft-deleted: Inserted (the row is logically absent)
//   - on both, canonical values differ: Updated
//   - on both, equal: Unchanged
//   - target only and live: Deleted
//   - target only and already soft-deleted: Unchanged
//
// Changes come out in source load order followed by target-only keys in target order.
func Diff(source, target *Snapshot) []Change {
	changes := make([]Change, 0, source.Len()+target.Len())

	for _, k := range source.Keys() {
		src, _ := source.Get(k)
		ch := Change{Key: k, KeyText: formatKey(source.KeyValues(src)), Source: src}

		tgt, ok := target.Get(k)
		switch {
		case !ok:
			ch.Kind = Inserted
		case tgt.Deleted():
			ch.Kind = Inserted
			ch.Target = tgt
		case !src.Equal(tgt):
			ch.Kind = Updated
			ch.Target = tgt
		default:
			ch.Kind = Unchanged
			ch.Target = tgt
		}
		changes = append(changes, ch)
	}

	for _, k := range target.Keys() {
		if _, ok := source.Get(k); ok {
			continue
		}
		tgt, _ := target.Get(k)
		ch := Change{Key: k, KeyText: formatKey(target.KeyValues(tgt)), Target: tgt, Kind: Deleted}
		if tgt.Deleted() {
			ch.Kind = Unchanged
		}
		changes = append(changes, ch)
	}
	return changes
}
