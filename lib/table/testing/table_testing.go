package testing

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/ValentinKolb/dTS/lib/table"
	"github.com/ValentinKolb/dTS/lib/tuple"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// StoreFactory creates a new, empty TupleStore with the given number of slots
type StoreFactory func(slots int) table.TupleStore

// RunTableTests runs the behavioural test suite for a TupleStore implementation.
func RunTableTests(t *testing.T, name string, factory StoreFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("PutCopy", func(t *testing.T) {
			testPutCopy(t, factory(3))
		})

		t.Run("PutWithoutKey", func(t *testing.T) {
			testPutWithoutKey(t, factory(3))
		})

		t.Run("KeepAll", func(t *testing.T) {
			testKeepAll(t, factory(3))
		})

		t.Run("RemoveOne", func(t *testing.T) {
			testRemoveOne(t, factory(3))
		})

		t.Run("RemoveAll", func(t *testing.T) {
			testRemoveAll(t, factory(7))
		})

		t.Run("WildcardKey", func(t *testing.T) {
			testWildcardKey(t, factory(4))
		})

		t.Run("Duplicates", func(t *testing.T) {
			testDuplicates(t, factory(3))
		})

		t.Run("InsertionOrder", func(t *testing.T) {
			testInsertionOrder(t, factory(1))
		})

		t.Run("DeleteIdempotent", func(t *testing.T) {
			testDeleteIdempotent(t, factory(3))
		})

		t.Run("SizeInvariant", func(t *testing.T) {
			testSizeInvariant(t, factory(5))
		})

		t.Run("Info", func(t *testing.T) {
			testInfo(t, factory(4))
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

func tup(values ...string) *tuple.Tuple {
	elems := make([]*string, len(values))
	for i, v := range values {
		if v != tuple.NullLiteral {
			elems[i] = tuple.Val(v)
		}
	}
	return tuple.MustOf(elems...)
}

func mustPut(t *testing.T, store table.TupleStore, tuples ...*tuple.Tuple) {
	t.Helper()
	for _, tp := range tuples {
		require.NoError(t, store.Put(tp))
	}
}

func mustGet(t *testing.T, store table.TupleStore, template *tuple.Tuple, mode table.Mode, scope table.Scope) []*tuple.Tuple {
	t.Helper()
	res, err := store.Get(template, mode, scope)
	require.NoError(t, err)
	require.NotNil(t, res)
	return res
}

func strs(tuples []*tuple.Tuple) []string {
	out := make([]string, len(tuples))
	for i, tp := range tuples {
		out[i] = tp.String()
	}
	return out
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testPutCopy(t *testing.T, store table.TupleStore) {
	in := tup("a", "b", "c")
	mustPut(t, store, in)
	assert.Equal(t, 1, store.Size())

	// later changes to the inserted tuple must not reach the store
	in.Set(1, "changed")

	res := mustGet(t, store, tup("a", "*", "*"), table.Keep, table.All)
	require.Len(t, res, 1)
	assert.Equal(t, `"a" "b" "c"`, res[0].String())
	assert.Equal(t, 1, store.Size())

	// nor must changes to returned copies
	res[0].Set(2, "changed")
	res = mustGet(t, store, tup("a", "*", "*"), table.Keep, table.All)
	assert.Equal(t, `"a" "b" "c"`, res[0].String())
}

func testPutWithoutKey(t *testing.T, store table.TupleStore) {
	assert.ErrorIs(t, store.Put(tup("*", "b", "c")), table.ErrNoSlot)
	assert.ErrorIs(t, store.Put(tup("", "b", "c")), table.ErrNoSlot)
	assert.ErrorIs(t, store.Put(nil), tuple.ErrNullInput)
	assert.Equal(t, 0, store.Size())

	_, err := store.Get(nil, table.Keep, table.All)
	assert.ErrorIs(t, err, tuple.ErrNullInput)
}

func testKeepAll(t *testing.T, store table.TupleStore) {
	mustPut(t, store,
		tup("a", "1", "x"),
		tup("a", "2", "y"),
		tup("a", "1", "*"),
		tup("b", "1", "x"),
	)

	testCases := []struct {
		template string
		want     []string
	}{
		{`"a" * *`, []string{`"a" "1" "x"`, `"a" "2" "y"`, `"a" "1" *`}},
		{`"a" "1" *`, []string{`"a" "1" "x"`, `"a" "1" *`}},
		{`"a" * "x"`, []string{`"a" "1" "x"`}},
		{`"a" "3" *`, []string{}},
		{`"c" * *`, []string{}},
		{`* "1" "x"`, []string{`"a" "1" "x"`, `"b" "1" "x"`}},
	}

	for _, tc := range testCases {
		template, err := tuple.Parse(tc.template, 3)
		require.NoError(t, err)
		res := mustGet(t, store, template, table.Keep, table.All)
		assert.ElementsMatch(t, tc.want, strs(res), "template %s", tc.template)

		one := mustGet(t, store, template, table.Keep, table.One)
		assert.LessOrEqual(t, len(one), 1)
		if len(one) == 1 {
			assert.Contains(t, tc.want, one[0].String())
		}
	}
	assert.Equal(t, 4, store.Size())
}

func testRemoveOne(t *testing.T, store table.TupleStore) {
	mustPut(t, store, tup("a", "1", "x"), tup("a", "2", "x"), tup("a", "3", "y"))
	template := tup("a", "*", "x")

	before := len(mustGet(t, store, template, table.Keep, table.All))
	removed := mustGet(t, store, template, table.Remove, table.One)
	require.Len(t, removed, 1)
	assert.Equal(t, 2, store.Size())

	after := mustGet(t, store, template, table.Keep, table.All)
	assert.Len(t, after, before-1)
	assert.NotContains(t, strs(after), removed[0].String())

	// keep does not change the size
	mustGet(t, store, template, table.Keep, table.One)
	assert.Equal(t, 2, store.Size())
}

func testRemoveAll(t *testing.T, store table.TupleStore) {
	for i := 0; i < 20; i++ {
		mustPut(t, store, tup("key", fmt.Sprint(i%2), fmt.Sprint(i)))
	}
	mustPut(t, store, tup("other", "0", "0"))

	removed := mustGet(t, store, tup("key", "0", "*"), table.Remove, table.All)
	assert.Len(t, removed, 10)
	assert.Equal(t, 11, store.Size())

	rest := mustGet(t, store, tup("key", "*", "*"), table.Keep, table.All)
	assert.Len(t, rest, 10)
	for _, tp := range rest {
		v, _ := tp.Element(1)
		assert.Equal(t, "1", v)
	}

	assert.Empty(t, mustGet(t, store, tup("key", "0", "*"), table.Remove, table.All))
}

func testWildcardKey(t *testing.T, store table.TupleStore) {
	keys := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
	for _, k := range keys {
		mustPut(t, store, tup(k, "v", "*"))
	}

	all := mustGet(t, store, tup("*", "v", "*"), table.Keep, table.All)
	assert.Len(t, all, len(keys))

	// scope one stops after the first slot with a match
	one := mustGet(t, store, tup("*", "v", "*"), table.Keep, table.One)
	require.Len(t, one, 1)
	first := mustGet(t, store, tup("*", "*", "*"), table.Keep, table.One)
	require.Len(t, first, 1)
	assert.Equal(t, one[0].String(), first[0].String())

	removed := mustGet(t, store, tup("*", "*", "*"), table.Remove, table.All)
	assert.Len(t, removed, len(keys))
	assert.Equal(t, 0, store.Size())
}

func testDuplicates(t *testing.T, store table.TupleStore) {
	// two tuples with the same key are both stored
	mustPut(t, store, tup("x", "1", "*"), tup("x", "2", "*"))
	res := mustGet(t, store, tup("x", "*", "*"), table.Keep, table.All)
	assert.ElementsMatch(t, []string{`"x" "1" *`, `"x" "2" *`}, strs(res))

	// as are identical tuples
	mustPut(t, store, tup("x", "1", "*"))
	res = mustGet(t, store, tup("x", "1", "*"), table.Keep, table.All)
	assert.Len(t, res, 2)
}

func testInsertionOrder(t *testing.T, store table.TupleStore) {
	for i := 0; i < 5; i++ {
		mustPut(t, store, tup("k", fmt.Sprint(i), "*"))
	}
	res := mustGet(t, store, tup("k", "*", "*"), table.Keep, table.All)
	for i, tp := range res {
		v, _ := tp.Element(1)
		assert.Equal(t, fmt.Sprint(i), v)
	}

	// removing from the middle keeps the order of the others
	mustGet(t, store, tup("k", "2", "*"), table.Remove, table.One)
	first := mustGet(t, store, tup("k", "*", "*"), table.Remove, table.One)
	require.Len(t, first, 1)
	v, _ := first[0].Element(1)
	assert.Equal(t, "0", v)
	res = mustGet(t, store, tup("k", "*", "*"), table.Keep, table.All)
	assert.Equal(t, []string{`"k" "1" *`, `"k" "3" *`, `"k" "4" *`}, strs(res))
}

func testDeleteIdempotent(t *testing.T, store table.TupleStore) {
	assert.NoError(t, store.Delete(tup("nothing", "*", "*"), table.All))
	mustPut(t, store, tup("a", "b", "c"), tup("a", "b", "d"))
	assert.NoError(t, store.Delete(tup("a", "b", "*"), table.One))
	assert.Equal(t, 1, store.Size())
	assert.NoError(t, store.Delete(tup("a", "*", "*"), table.All))
	assert.NoError(t, store.Delete(tup("a", "*", "*"), table.All))
	assert.Equal(t, 0, store.Size())
}

func testSizeInvariant(t *testing.T, store table.TupleStore) {
	rng := rand.New(rand.NewSource(42))
	inserted, removed := 0, 0

	for i := 0; i < 500; i++ {
		key := fmt.Sprintf("key-%d", rng.Intn(12))
		switch rng.Intn(3) {
		case 0, 1:
			mustPut(t, store, tup(key, fmt.Sprint(rng.Intn(3)), "*"))
			inserted++
		default:
			scope := table.One
			if rng.Intn(2) == 0 {
				scope = table.All
			}
			res := mustGet(t, store, tup(key, "*", "*"), table.Remove, scope)
			removed += len(res)
		}
		require.Equal(t, inserted-removed, store.Size(), "step %d", i)
	}
}

func testInfo(t *testing.T, store table.TupleStore) {
	info := store.Info()
	assert.Equal(t, 4, info.Slots)
	assert.Equal(t, 0, info.Tuples)
	assert.Equal(t, 0, info.UsedSlots)

	mustPut(t, store, tup("a", "*", "*"), tup("b", "*", "*"), tup("c", "*", "*"), tup("d", "*", "*"))
	info = store.Info()
	assert.Equal(t, 4, info.Tuples)
	assert.Equal(t, 4, info.UsedSlots) // 'a'..'d' are consecutive bytes
	assert.InDelta(t, 1.0, info.Slot.DistributionQuality, 1e-9)
	assert.Greater(t, info.Bytes, 0)
}
