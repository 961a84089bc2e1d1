package model

import "testing"

func TestDailyQuotaFor(t *testing.T) {
	t.Parallel()

	s := DefaultAdminSettings()

	tests := []struct {
		name  string
		roles []string
		want  int
	}{
		{"free", []string{RoleFree}, 3},
		{"paid", []string{RolePaid}, 20},
		{"multiple roles takes the max", []string{RoleFree, RoleGmgard, RolePremium}, 50},
		{"unknown role falls back to free", []string{"banned"}, 3},
		{"no roles falls back to free", nil, 3},
	}
	for _, tc := range tests {
		if got := s.DailyQuotaFor(tc.roles); got != tc.want {
			t.Errorf("%s: quota = %d, want %d", tc.name, got, tc.want)
		}
	}
}

func TestHasPaidCapability(t *testing.T) {
	t.Parallel()

	if (&User{Roles: []string{RoleFree, RoleGmgard}}).HasPaidCapability() {
		t.Error("free+gmgard user reported paid capability")
	}
	if !(&User{Roles: []string{RoleFree, RolePaid}}).HasPaidCapability() {
		t.Error("paid user not recognized")
	}
	if !(&User{Roles: []string{RolePremium}}).HasPaidCapability() {
		t.Error("premium user not recognized")
	}
}

func TestQueueStatsDepth(t *testing.T) {
	t.Parallel()

	s := QueueStats{InQueue: 4, Processing: 2, Completed: 100, Failed: 7}
	if s.Depth() != 6 {
		t.Errorf("depth = %d, want 6 (waiting plus running only)", s.Depth())
	}
}
