package scheduler

import (
	"maps"
	"slices"
)

// index is the in-memory view shared by the store implementations: per owner,
// an ordered sequence of reminders. It is not safe for concurrent use.
type index struct {
	owners map[int64][]*Reminder
}

func newIndex() *index {
	return &index{owners: make(map[int64][]*Reminder)}
}

func (x *index) reset(reminders []*Reminder) {
	x.owners = make(map[int64][]*Reminder)
	for _, r := range reminders {
		x.upsert(r)
	}
}

func (x *index) find(ownerID int64, id string) int {
	return slices.IndexFunc(x.owners[ownerID], func(r *Reminder) bool { return r.ID == id })
}

func (x *index) get(ownerID int64, id string) (*Reminder, bool) {
	i := x.find(ownerID, id)
	if i < 0 {
		return nil, false
	}
	return x.owners[ownerID][i].Clone(), true
}

func (x *index) upsert(r *Reminder) {
	c := r.Clone()
	if i := x.find(r.OwnerID, r.ID); i >= 0 {
		x.owners[r.OwnerID][i] = c
		return
	}
	x.owners[r.OwnerID] = append(x.owners[r.OwnerID], c)
}

func (x *index) remove(ownerID int64, id string) bool {
	i := x.find(ownerID, id)
	if i < 0 {
		return false
	}
	x.owners[ownerID] = slices.Delete(x.owners[ownerID], i, i+1)
	if len(x.owners[ownerID]) == 0 {
		delete(x.owners, ownerID)
	}
	return true
}

func (x *index) all(ownerID int64) []*Reminder {
	out := make([]*Reminder, 0, len(x.owners[ownerID]))
	for _, r := range x.owners[ownerID] {
		out = append(out, r.Clone())
	}
	return out
}

// list flattens the view, owners in ascending order.
func (x *index) list() []*Reminder {
	out := []*Reminder{}
	for _, owner := range slices.Sorted(maps.Keys(x.owners)) {
		out = append(out, x.all(owner)...)
	}
	return out
}
