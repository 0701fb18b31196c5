package sync

import (
	"sort"

	"github.com/MarcoPoloResearchLab/ripple/internal/store"
)

// Entity-type keys inside a CVR. The client pseudo-type maps client IDs to
// lastMutationIDs and is diffed the same way as domain rows.
const (
	entityList   = "list"
	entityShare  = "share"
	entityTodo   = "todo"
	entityClient = "client"
)

// entityOrder fixes the per-type iteration order for patch assembly.
var entityOrder = []string{entityList, entityShare, entityTodo}

// CVREntries maps entity IDs to the row version observed at snapshot time.
type CVREntries map[string]int64

// CVR is a point-in-time summary of every row visible to one user, keyed by
// entity type. Immutable once stored in the cache.
type CVR map[string]CVREntries

func newEmptyCVR() CVR {
	return CVR{
		entityList:   CVREntries{},
		entityShare:  CVREntries{},
		entityTodo:   CVREntries{},
		entityClient: CVREntries{},
	}
}

func cvrEntriesFromSearch(results []store.SearchResult) CVREntries {
	entries := make(CVREntries, len(results))
	for _, result := range results {
		entries[result.ID] = result.RowVersion
	}
	return entries
}

// cvrEntryDiff lists the IDs that must be sent (new or version-changed) and
// the IDs that must be removed, for one entity type.
type cvrEntryDiff struct {
	Puts []string
	Dels []string
}

type cvrDiff map[string]cvrEntryDiff

// diffCVR computes the per-type delta between two snapshots. Entries with an
// unchanged version appear in neither list. Pure and deterministic: IDs are
// emitted in sorted order.
func diffCVR(base, next CVR) cvrDiff {
	diff := cvrDiff{}

	names := make(map[string]struct{}, len(base)+len(next))
	for name := range base {
		names[name] = struct{}{}
	}
	for name := range next {
		names[name] = struct{}{}
	}

	for name := range names {
		entryDiff := cvrEntryDiff{Puts: []string{}, Dels: []string{}}
		baseEntries := base[name]
		nextEntries := next[name]

		for id, version := range nextEntries {
			baseVersion, ok := baseEntries[id]
			if !ok || baseVersion != version {
				entryDiff.Puts = append(entryDiff.Puts, id)
			}
		}
		for id := range baseEntries {
			if _, ok := nextEntries[id]; !ok {
				entryDiff.Dels = append(entryDiff.Dels, id)
			}
		}

		sort.Strings(entryDiff.Puts)
		sort.Strings(entryDiff.Dels)
		diff[name] = entryDiff
	}

	return diff
}

func isCVRDiffEmpty(diff cvrDiff) bool {
	for _, entryDiff := range diff {
		if len(entryDiff.Puts) > 0 || len(entryDiff.Dels) > 0 {
			return false
		}
	}
	return true
}
