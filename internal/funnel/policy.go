package funnel

import (
	"github.com/sashimarconi/checkout-backend/pkg/enums"
)

// MergePolicy names the conflict-resolution rule a cart column follows when
// concurrent or out-of-order snapshots collide.
type MergePolicy string

const (
	// PolicyRatchet applies the incoming value only when it represents
	// strictly greater progress than the stored one.
	PolicyRatchet MergePolicy = "ratchet"
	// PolicyMax keeps the numeric high-water mark.
	PolicyMax MergePolicy = "max"
	// PolicyTerminal makes the converted status sticky; any other incoming
	// status applies as latest-write-wins.
	PolicyTerminal MergePolicy = "terminal"
	// PolicyFirstWrite sets the value once and never overwrites it.
	PolicyFirstWrite MergePolicy = "first_write"
	// PolicyOverwrite replaces the stored value wholesale whenever the
	// snapshot carries the field.
	PolicyOverwrite MergePolicy = "overwrite"
)

// snapshotPolicies maps every mergeable cart column to its policy. The
// repository builds its conditional UPDATE from this table, so the merge rules
// live in one place instead of being scattered through inline conditionals.
var snapshotPolicies = map[string]MergePolicy{
	"stage":          PolicyRatchet,
	"stage_level":    PolicyRatchet,
	"status":         PolicyTerminal,
	"total_cents":    PolicyMax,
	"subtotal_cents": PolicyMax,
	"shipping_cents": PolicyMax,
	"customer":       PolicyOverwrite,
	"address":        PolicyOverwrite,
	"items":          PolicyOverwrite,
	"shipping":       PolicyOverwrite,
	"summary":        PolicyOverwrite,
	"utm":            PolicyFirstWrite,
	"source":         PolicyFirstWrite,
	"tracking":       PolicyFirstWrite,
}

// PolicyFor returns the merge policy governing a cart column.
func PolicyFor(column string) (MergePolicy, bool) {
	policy, ok := snapshotPolicies[column]
	return policy, ok
}

// The helpers below state each policy over plain values. Production merging
// applies the same rules as the SQL expressions buildUpdates renders; the
// helpers are the reference semantics those expressions must match, pinned by
// the policy tests without a database.

// mergeStageLevel implements PolicyRatchet for the funnel progress level.
func mergeStageLevel(stored, incoming int) int {
	if incoming > stored {
		return incoming
	}
	return stored
}

// mergeMoney implements PolicyMax for the monetary high-water marks.
func mergeMoney(stored, incoming int) int {
	if incoming > stored {
		return incoming
	}
	return stored
}

// mergeStatus implements PolicyTerminal: converted never regresses, and an
// empty incoming status keeps the stored one.
func mergeStatus(stored, incoming enums.CartStatus) enums.CartStatus {
	if stored == enums.CartStatusConverted || incoming == enums.CartStatusConverted {
		return enums.CartStatusConverted
	}
	if incoming == "" {
		return stored
	}
	return incoming
}

// firstWrite implements PolicyFirstWrite for scalar attribution fields.
func firstWrite(stored, incoming string) string {
	if stored != "" {
		return stored
	}
	return incoming
}
