package graph

import (
	"time"

	"github.com/HendryAvila/lodestar/internal/timeutil"
)

// scheduleLayouts are the timestamp shapes accepted in scheduled_start.
var scheduleLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"}

// ScheduledAt parses a node's scheduled_start. Date-only and zone-less
// values are read in loc.
func ScheduledAt(n *Node, loc *time.Location) (time.Time, bool) {
	if n.ScheduledStart == nil {
		return time.Time{}, false
	}
	for _, layout := range scheduleLayouts {
		if t, err := time.ParseInLocation(layout, *n.ScheduledStart, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// TodayNodes selects the nodes scheduled on the local day of now and
// expands the selection with every transitive causal parent, so each
// scheduled node is shown with the objectives it feeds.
func TodayNodes(nodes Nodes, now time.Time, loc *time.Location) Nodes {
	day := timeutil.DayKey(now, loc)

	out := Nodes{}
	var queue []string
	for _, id := range nodes.IDs() {
		t, ok := ScheduledAt(nodes[id], loc)
		if ok && timeutil.DayKey(t, loc) == day {
			out[id] = nodes[id]
			queue = append(queue, id)
		}
	}

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, p := range nodes[id].Parents {
			if _, seen := out[p]; seen {
				continue
			}
			pn, ok := nodes[p]
			if !ok {
				continue
			}
			out[p] = pn
			queue = append(queue, p)
		}
	}
	return out
}
