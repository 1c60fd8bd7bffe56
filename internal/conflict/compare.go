package conflict

import (
	"slices"

	mapset "github.com/deckarep/golang-set/v2"
)

// Entry is the state of one file on one side.
type Entry struct {
	Fingerprint string
	Size        int64
}

// Snapshot maps canonical paths to their state.
type Snapshot map[string]Entry

// Plan is what the local side does after comparing its snapshot with the remote one.
type Plan struct {
	// Agreed paths have the same content on both sides.
	Agreed []string
	// Push paths are newer locally and get sent.
	Push []string
	// RemoteAhead paths changed only remotely; the remote side pushes them.
	RemoteAhead []string
	// RemoteOnly paths exist only remotely; the remote side pushes them.
	RemoteOnly []string
	// Delete paths were removed locally since the last agreement and get a delete request.
	Delete []string
	// RemoteDeleted paths were removed remotely; the remote side requests the delete.
	RemoteDeleted []string
	// Conflicts changed on both sides since the last agreement.
	Conflicts []Summary
}

// Compare reconciles local and remote snapshots against base, the fingerprints
// both sides last agreed on.
func Compare(local, remote Snapshot, base map[string]string) Plan {
	paths := mapset.NewThreadUnsafeSet[string]()
	for p := range local {
		paths.Add(p)
	}
	for p := range remote {
		paths.Add(p)
	}

	var plan Plan
	sorted := paths.ToSlice()
	slices.Sort(sorted)

	for _, p := range sorted {
		l, hasLocal := local[p]
		r, hasRemote := remote[p]
		b, hasBase := base[p]

		switch {
		case hasLocal && hasRemote && l.Fingerprint == r.Fingerprint:
			plan.Agreed = append(plan.Agreed, p)
		case hasLocal && hasRemote && hasBase && b == r.Fingerprint:
			plan.Push = append(plan.Push, p)
		case hasLocal && hasRemote && hasBase && b == l.Fingerprint:
			plan.RemoteAhead = append(plan.RemoteAhead, p)
		case hasLocal && hasRemote:
			reason := "changed on both sides"
			if !hasBase {
				reason = "differs on first sync"
			}
			plan.Conflicts = append(plan.Conflicts, Summary{
				Path:              p,
				LocalFingerprint:  l.Fingerprint,
				RemoteFingerprint: r.Fingerprint,
				Reason:            reason,
			})
		case hasLocal && hasBase && b == l.Fingerprint:
			plan.RemoteDeleted = append(plan.RemoteDeleted, p)
		case hasLocal:
			plan.Push = append(plan.Push, p)
		case hasBase && b == r.Fingerprint:
			plan.Delete = append(plan.Delete, p)
		default:
			plan.RemoteOnly = append(plan.RemoteOnly, p)
		}
	}
	return plan
}
