// Package table provides the in-memory tuple store of a replica.
//
// A Table has a fixed number of slots. A tuple is stored in the slot selected by the
// hash of its key (see Hash); within a slot tuples keep their insertion order and
// duplicates are allowed. Retrieval matches a template against the stored tuples:
//
//   - a concrete key restricts the search to the slot of that key
//   - a wildcard (null) key searches every slot in index order
//   - Keep returns copies, Remove detaches the matches from the table
//   - One stops after the first slot that produced a match, All collects everything
//
// The Table itself does no locking. NewSynchronized wraps a table in a mutex for
// servers that share one table between several connections.
//
// The testing subpackage contains a behavioural suite that every TupleStore must pass.
package table
