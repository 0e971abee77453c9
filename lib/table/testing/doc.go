// Package testing provides a standardised behavioural test suite for implementations
// of table.TupleStore.
//
// Example usage:
//
//	func Test(t *testing.T) {
//		tabletesting.RunTableTests(t, "Table", func(slots int) table.TupleStore {
//			tb, _ := table.New(slots)
//			return tb
//		})
//	}
package testing
