package scheduler

import (
	"cmp"
	"strings"

	"github.com/me/brigade/pkg/model"
)

// Policy orders two tasks by urgency, cmp-style: negative when a is more
// urgent than b, positive when b is more urgent. It must be a total order
// and must not depend on anything but its arguments.
type Policy func(a, b model.Task) int

// ByUrgency is the kitchen ordering:
//
//  1. VIP tasks before non-VIP tasks, regardless of timing.
//  2. Earlier StartAt first.
//  3. Lower Seq (earlier submission in the workspace) first.
//  4. ID, so that distinct tasks never compare equal.
func ByUrgency(a, b model.Task) int {
	if a.VIP != b.VIP {
		if a.VIP {
			return -1
		}
		return 1
	}
	if c := a.StartAt.Compare(b.StartAt); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Seq, b.Seq); c != 0 {
		return c
	}
	return strings.Compare(a.ID, b.ID)
}
