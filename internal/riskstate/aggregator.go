package riskstate

import (
	"hash/fnv"
	"sync"
	"sync/atomic"

	"siteguard/internal/model"
)

const memberShards = 64

// Aggregator tracks the current risk level of every member (sensor or
// worker) and a per-group (zone) count of members at each level. The group
// level is the highest level with a non-zero count, so reading it is
// O(levels), not O(members).
//
// Concurrency: counter cells are adjusted with atomic adds, so different
// members of the same group update in parallel. Updates to the same member
// are serialized through a shard lock keyed by member id; without it the
// decrement-then-increment of the two counter cells could interleave with
// another writer on the same member and corrupt the counts.
//
// Members are never evicted. A deprovisioned entity keeps its last level
// until a new observation arrives; callers that care about staleness can
// inspect Snapshot timestamps upstream.
type Aggregator struct {
	groupMu sync.RWMutex
	groups  map[string]*groupState

	memberMu sync.RWMutex
	members  map[string]memberState

	shards [memberShards]sync.Mutex
}

type groupState struct {
	counts [3]int64
}

type memberState struct {
	group string
	level model.RiskLevel
}

func New() *Aggregator {
	return &Aggregator{
		groups:  make(map[string]*groupState),
		members: make(map[string]memberState),
	}
}

// SetMemberLevel stores the member's level, adjusting the group counters.
// It returns the previous level and whether the member had been seen
// before.
func (a *Aggregator) SetMemberLevel(group, member string, level model.RiskLevel) (model.RiskLevel, bool) {
	g := a.group(group)

	shard := &a.shards[shardIndex(member)]
	shard.Lock()
	defer shard.Unlock()

	a.memberMu.RLock()
	prev, seen := a.members[member]
	a.memberMu.RUnlock()

	if seen && prev.group == group && prev.level == level {
		return prev.level, true
	}

	if seen {
		prevGroup := g
		if prev.group != group {
			prevGroup = a.group(prev.group)
		}
		atomic.AddInt64(&prevGroup.counts[prev.level], -1)
	}
	atomic.AddInt64(&g.counts[level], 1)

	a.memberMu.Lock()
	a.members[member] = memberState{group: group, level: level}
	a.memberMu.Unlock()

	if !seen {
		return model.LevelNormal, false
	}
	return prev.level, true
}

// MemberLevel returns the member's last stored level, normal if never set.
func (a *Aggregator) MemberLevel(member string) model.RiskLevel {
	a.memberMu.RLock()
	defer a.memberMu.RUnlock()
	if m, ok := a.members[member]; ok {
		return m.level
	}
	return model.LevelNormal
}

// GroupLevel returns the highest level with a non-zero member count, or
// normal when the group has no tracked members.
func (a *Aggregator) GroupLevel(group string) model.RiskLevel {
	a.groupMu.RLock()
	g, ok := a.groups[group]
	a.groupMu.RUnlock()
	if !ok {
		return model.LevelNormal
	}
	for level := model.LevelSevere; level > model.LevelNormal; level-- {
		if atomic.LoadInt64(&g.counts[level]) > 0 {
			return level
		}
	}
	return model.LevelNormal
}

// Snapshot returns the current level of every tracked group.
func (a *Aggregator) Snapshot() map[string]model.RiskLevel {
	a.groupMu.RLock()
	names := make([]string, 0, len(a.groups))
	for name := range a.groups {
		names = append(names, name)
	}
	a.groupMu.RUnlock()

	out := make(map[string]model.RiskLevel, len(names))
	for _, name := range names {
		out[name] = a.GroupLevel(name)
	}
	return out
}

// Members returns the tracked member levels for one group.
func (a *Aggregator) Members(group string) map[string]model.RiskLevel {
	a.memberMu.RLock()
	defer a.memberMu.RUnlock()
	out := make(map[string]model.RiskLevel)
	for id, m := range a.members {
		if m.group == group {
			out[id] = m.level
		}
	}
	return out
}

func (a *Aggregator) group(name string) *groupState {
	a.groupMu.RLock()
	g, ok := a.groups[name]
	a.groupMu.RUnlock()
	if ok {
		return g
	}
	a.groupMu.Lock()
	defer a.groupMu.Unlock()
	if g, ok = a.groups[name]; ok {
		return g
	}
	g = &groupState{}
	a.groups[name] = g
	return g
}

func shardIndex(member string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(member))
	return int(h.Sum32() % memberShards)
}
