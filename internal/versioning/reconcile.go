package versioning

import "sort"

// RestorePlan is the outcome of reconciling the live line-item set against a
// snapshot's recorded set, keyed by stable line-item identity.
//
//   - Updates: identities present on both sides; the live row is overwritten in
//     place so fulfillment-event references stay valid.
//   - Creates: identities present only in the snapshot; a new row is created and
//     the caller records an identity remapping for event repointing.
//   - Deletes: live identities absent from the snapshot; the rows are removed.
type RestorePlan struct {
	Updates []int64
	Creates []int64
	Deletes []int64
}

// PlanRestore pairs the live set against the snapshot set. All three result
// slices are sorted ascending so repeated reverts from the same inputs produce
// the same outcome.
func PlanRestore(live, snapshot []int64) RestorePlan {
	liveSet := make(map[int64]bool, len(live))
	for _, id := range live {
		liveSet[id] = true
	}
	snapSet := make(map[int64]bool, len(snapshot))
	for _, id := range snapshot {
		snapSet[id] = true
	}

	var plan RestorePlan
	for id := range snapSet {
		if liveSet[id] {
			plan.Updates = append(plan.Updates, id)
		} else {
			plan.Creates = append(plan.Creates, id)
		}
	}
	for id := range liveSet {
		if !snapSet[id] {
			plan.Deletes = append(plan.Deletes, id)
		}
	}

	sortIDs(plan.Updates)
	sortIDs(plan.Creates)
	sortIDs(plan.Deletes)
	return plan
}

func sortIDs(ids []int64) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}
