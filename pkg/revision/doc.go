// Package revision models proposed and historical versions of a feature's rules and default value.
//
// A revision is branched from the live feature with NewDraft, edited through AddRule, EditRule,
// DeleteRule, MoveRule and SetDefaultValue, and moved through its review lifecycle with Fire and
// Review:
//
//	draft ──submit──▶ pending-review ──approve──▶ approved
//	  ▲                   │
//	  └──edit── changes-requested ◀──request-changes
//
// Any active status (draft, pending-review, changes-requested, approved) can be published or
// discarded; both are terminal. Authors cannot review their own revisions.
//
// Revisions are immutable snapshots: every operation returns a modified copy.
//
// Before publishing, AutoMerge reconciles the revision with whatever was published since its
// base version:
//
//	res := revision.AutoMerge(revision.ContentOf(live), base.Content(), draft.Content(), envIDs)
//	if !res.Success {
//		// res.Conflicts lists default value and per-environment rule conflicts
//	}
//
// Store persists revisions; MemoryStore is an in-memory implementation.
package revision
