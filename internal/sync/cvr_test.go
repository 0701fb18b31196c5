package sync

import (
	"reflect"
	"testing"

	"github.com/MarcoPoloResearchLab/ripple/internal/store"
)

func TestDiffCVRSplitsPutsAndDels(t *testing.T) {
	base := CVR{
		entityList: CVREntries{"l1": 1, "l2": 3, "l3": 7},
		entityTodo: CVREntries{"t1": 1},
	}
	next := CVR{
		entityList: CVREntries{"l1": 1, "l2": 4, "l4": 1},
		entityTodo: CVREntries{"t1": 1},
	}

	diff := diffCVR(base, next)

	listDiff := diff[entityList]
	if !reflect.DeepEqual(listDiff.Puts, []string{"l2", "l4"}) {
		t.Fatalf("unexpected list puts: %#v", listDiff.Puts)
	}
	if !reflect.DeepEqual(listDiff.Dels, []string{"l3"}) {
		t.Fatalf("unexpected list dels: %#v", listDiff.Dels)
	}

	todoDiff := diff[entityTodo]
	if len(todoDiff.Puts) != 0 || len(todoDiff.Dels) != 0 {
		t.Fatalf("unchanged todo should not appear in diff: %#v", todoDiff)
	}
}

func TestDiffCVRIsDeterministic(t *testing.T) {
	base := CVR{entityList: CVREntries{"b": 1, "a": 1, "c": 2}}
	next := CVR{entityList: CVREntries{"c": 3, "d": 1, "e": 1}}

	first := diffCVR(base, next)
	for i := 0; i < 10; i++ {
		if !reflect.DeepEqual(first, diffCVR(base, next)) {
			t.Fatalf("diff is not deterministic")
		}
	}
}

func TestDiffCVREveryIDAppearsExactlyOnce(t *testing.T) {
	base := CVR{entityShare: CVREntries{"s1": 1, "s2": 2}}
	next := CVR{entityShare: CVREntries{"s2": 5, "s3": 1}}

	diff := diffCVR(base, next)
	shareDiff := diff[entityShare]

	seen := map[string]int{}
	for _, id := range shareDiff.Puts {
		seen[id]++
	}
	for _, id := range shareDiff.Dels {
		seen[id]++
	}
	expected := map[string]int{"s1": 1, "s2": 1, "s3": 1}
	if !reflect.DeepEqual(seen, expected) {
		t.Fatalf("unexpected membership: %#v", seen)
	}
}

func TestDiffCVRClientEntries(t *testing.T) {
	base := CVR{entityClient: CVREntries{"c1": 2}}
	next := CVR{entityClient: CVREntries{"c1": 3, "c2": 1}}

	diff := diffCVR(base, next)
	clientDiff := diff[entityClient]
	if !reflect.DeepEqual(clientDiff.Puts, []string{"c1", "c2"}) {
		t.Fatalf("unexpected client puts: %#v", clientDiff.Puts)
	}
	if len(clientDiff.Dels) != 0 {
		t.Fatalf("unexpected client dels: %#v", clientDiff.Dels)
	}
}

func TestIsCVRDiffEmpty(t *testing.T) {
	identical := CVR{
		entityList: CVREntries{"l1": 1},
		entityTodo: CVREntries{},
	}
	if !isCVRDiffEmpty(diffCVR(identical, identical)) {
		t.Fatalf("diff of identical snapshots should be empty")
	}

	changed := CVR{entityList: CVREntries{"l1": 2}}
	if isCVRDiffEmpty(diffCVR(identical, changed)) {
		t.Fatalf("diff with changes should not be empty")
	}
}

func TestCVREntriesFromSearch(t *testing.T) {
	entries := cvrEntriesFromSearch([]store.SearchResult{
		{ID: "a", RowVersion: 4},
		{ID: "b", RowVersion: 9},
	})
	if !reflect.DeepEqual(entries, CVREntries{"a": 4, "b": 9}) {
		t.Fatalf("unexpected entries: %#v", entries)
	}
}
