package chain

import "github.com/evetabi/bookie/internal/domain"

// Groups report lifecycle milestones to their owning event, which advances
// on all-siblings-done aggregation: the event finishes when every member
// group has closed, and resolves once every member group has settled or
// canceled (canceled overall only if every single group canceled).

func (c *Chain) notifyGroupClosed(g *domain.Group) {
	e, ok := c.state.Events[g.EventID]
	if !ok {
		return
	}
	e.GroupsClosed++
	if e.GroupsClosed == e.GroupsTotal && e.Status == domain.EventUpcoming {
		e.Status = domain.EventFinished
	}
}

func (c *Chain) notifyGroupResolved(g *domain.Group, wasCanceled bool) {
	e, ok := c.state.Events[g.EventID]
	if !ok {
		return
	}
	e.GroupsResolved++
	if wasCanceled {
		e.GroupsCanceled++
	}
	if e.GroupsResolved == e.GroupsTotal {
		if e.GroupsCanceled == e.GroupsTotal {
			e.Status = domain.EventCanceled
		} else {
			e.Status = domain.EventSettled
		}
	}
}
