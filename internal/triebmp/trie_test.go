package triebmp_test

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dantte-lp/goreflector/internal/triebmp"
)

// TestBestMatchingPrefix checks longest-prefix-wins across overlapping
// prefixes: 10.0.0.0/8 -> A, 10.1.0.0/16 -> B, 10.1.2.0/24 -> C.
func TestBestMatchingPrefix(t *testing.T) {
	t.Parallel()

	trie := triebmp.New()
	trie.Insert(netip.MustParseAddr("10.0.0.0"), 8, "A")
	trie.Insert(netip.MustParseAddr("10.1.0.0"), 16, "B")
	trie.Insert(netip.MustParseAddr("10.1.2.0"), 24, "C")

	assert.Equal(t, "C", trie.Find(netip.MustParseAddr("10.1.2.7")))
	assert.Equal(t, "B", trie.Find(netip.MustParseAddr("10.1.3.7")))
	assert.Equal(t, "A", trie.Find(netip.MustParseAddr("10.2.0.1")))
	assert.Nil(t, trie.Find(netip.MustParseAddr("11.0.0.1")))
}

// TestInsertReplacesExactPrefix covers the header's insert() replace semantics.
func TestInsertReplacesExactPrefix(t *testing.T) {
	t.Parallel()

	trie := triebmp.New()
	trie.Insert(netip.MustParseAddr("192.168.0.0"), 16, "old")
	trie.Insert(netip.MustParseAddr("192.168.0.0"), 16, "new")

	assert.Equal(t, "new", trie.Find(netip.MustParseAddr("192.168.5.5")))
}

// TestRemovePrunesAndFallsBack checks that removing a more specific
// prefix exposes the next-best match, and a removed leaf does not leave
// dangling nodes behind.
func TestRemovePrunesAndFallsBack(t *testing.T) {
	t.Parallel()

	trie := triebmp.New()
	trie.Insert(netip.MustParseAddr("10.0.0.0"), 8, "A")
	trie.Insert(netip.MustParseAddr("10.1.2.0"), 24, "C")

	trie.Remove(netip.MustParseAddr("10.1.2.0"), 24)

	assert.Equal(t, "A", trie.Find(netip.MustParseAddr("10.1.2.7")))
	assert.Nil(t, trie.FindExact(netip.MustParseAddr("10.1.2.0"), 24))
}

// TestFindCheckedSkipsFilteredEntries covers the header's find_checked().
func TestFindCheckedSkipsFilteredEntries(t *testing.T) {
	t.Parallel()

	trie := triebmp.New()
	trie.Insert(netip.MustParseAddr("10.0.0.0"), 8, "disabled")
	trie.Insert(netip.MustParseAddr("10.1.0.0"), 16, "enabled")

	visible := func(data any) bool { return data == "enabled" }

	assert.Equal(t, "enabled", trie.FindChecked(netip.MustParseAddr("10.1.5.5"), visible))
	assert.Nil(t, trie.FindChecked(netip.MustParseAddr("10.2.5.5"), visible))
}

// TestFindExactRequiresExactLength covers the header's find_exact()
// no-BMP-fallback contract.
func TestFindExactRequiresExactLength(t *testing.T) {
	t.Parallel()

	trie := triebmp.New()
	trie.Insert(netip.MustParseAddr("10.0.0.0"), 8, "A")

	assert.Equal(t, "A", trie.FindExact(netip.MustParseAddr("10.0.0.0"), 8))
	assert.Nil(t, trie.FindExact(netip.MustParseAddr("10.0.0.0"), 16))
}

// TestEmptyTrieFindsNothing covers the empty-trie base case.
func TestEmptyTrieFindsNothing(t *testing.T) {
	t.Parallel()

	trie := triebmp.New()
	assert.Nil(t, trie.Find(netip.MustParseAddr("1.2.3.4")))
}
