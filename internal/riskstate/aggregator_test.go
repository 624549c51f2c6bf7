package riskstate

import (
	"fmt"
	"sync"
	"testing"

	"siteguard/internal/model"
)

func TestEmptyGroupIsNormal(t *testing.T) {
	a := New()
	if got := a.GroupLevel("zone-1"); got != model.LevelNormal {
		t.Fatalf("empty group: %s", got)
	}
	if got := a.MemberLevel("s1"); got != model.LevelNormal {
		t.Fatalf("unknown member: %s", got)
	}
}

func TestGroupFollowsMemberMax(t *testing.T) {
	a := New()
	a.SetMemberLevel("z1", "s1", model.LevelElevated)
	a.SetMemberLevel("z1", "s2", model.LevelNormal)
	if got := a.GroupLevel("z1"); got != model.LevelElevated {
		t.Fatalf("group after elevated member: %s", got)
	}
	a.SetMemberLevel("z1", "s2", model.LevelSevere)
	if got := a.GroupLevel("z1"); got != model.LevelSevere {
		t.Fatalf("group after severe member: %s", got)
	}
	a.SetMemberLevel("z1", "s2", model.LevelNormal)
	if got := a.GroupLevel("z1"); got != model.LevelElevated {
		t.Fatalf("group after severe member cleared: %s", got)
	}
	a.SetMemberLevel("z1", "s1", model.LevelNormal)
	if got := a.GroupLevel("z1"); got != model.LevelNormal {
		t.Fatalf("group after all normal: %s", got)
	}
}

func TestSetReturnsPrevious(t *testing.T) {
	a := New()
	prev, seen := a.SetMemberLevel("z1", "s1", model.LevelElevated)
	if seen || prev != model.LevelNormal {
		t.Fatalf("first set: prev=%s seen=%v", prev, seen)
	}
	prev, seen = a.SetMemberLevel("z1", "s1", model.LevelSevere)
	if !seen || prev != model.LevelElevated {
		t.Fatalf("second set: prev=%s seen=%v", prev, seen)
	}
}

func TestMemberMovesBetweenGroups(t *testing.T) {
	a := New()
	a.SetMemberLevel("z1", "w1", model.LevelSevere)
	a.SetMemberLevel("z2", "w1", model.LevelSevere)
	if got := a.GroupLevel("z1"); got != model.LevelNormal {
		t.Fatalf("old group still counts member: %s", got)
	}
	if got := a.GroupLevel("z2"); got != model.LevelSevere {
		t.Fatalf("new group: %s", got)
	}
}

func TestInvariantUnderConcurrentWriters(t *testing.T) {
	a := New()
	const members = 50
	const updates = 200
	levels := []model.RiskLevel{model.LevelNormal, model.LevelElevated, model.LevelSevere}

	var wg sync.WaitGroup
	for m := 0; m < members; m++ {
		wg.Add(1)
		go func(m int) {
			defer wg.Done()
			id := fmt.Sprintf("s%02d", m)
			for i := 0; i < updates; i++ {
				a.SetMemberLevel("z1", id, levels[(m+i)%len(levels)])
			}
		}(m)
	}
	wg.Wait()

	want := model.LevelNormal
	for _, lvl := range a.Members("z1") {
		want = model.MaxLevel(want, lvl)
	}
	if got := a.GroupLevel("z1"); got != want {
		t.Fatalf("group %s, member max %s", got, want)
	}
	if n := len(a.Members("z1")); n != members {
		t.Fatalf("tracked members %d want %d", n, members)
	}
}

func TestConcurrentSameMember(t *testing.T) {
	a := New()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 500; j++ {
				a.SetMemberLevel("z1", "s1", model.RiskLevel((i+j)%3))
			}
		}(i)
	}
	wg.Wait()
	got := a.GroupLevel("z1")
	want := a.MemberLevel("s1")
	if got != want {
		t.Fatalf("group %s, sole member %s", got, want)
	}
}
