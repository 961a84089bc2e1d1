package model

import "testing"

func TestLocalRouteDerivesJobID(t *testing.T) {
	t.Parallel()

	r := LocalRoute("01HXYZ")
	if !r.IsLocal() || r.IsRemote() {
		t.Fatalf("route kind = %q, want local", r.Kind)
	}
	if r.JobID != "local-01HXYZ" {
		t.Errorf("job id = %q, want local-01HXYZ", r.JobID)
	}
}

func TestRouteFromColumns(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		isLocal bool
		jobID   string
		want    RouteKind
	}{
		{"local job", true, "local-abc", RouteLocal},
		{"remote job", false, "rp-123", RouteRemote},
		{"empty id ignores flag", true, "", RouteNone},
		{"empty id remote", false, "", RouteNone},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			r := RouteFromColumns(tc.isLocal, tc.jobID)
			if r.Kind != tc.want {
				t.Errorf("kind = %q, want %q", r.Kind, tc.want)
			}
			if (tc.want == RouteNone) != r.Empty() {
				t.Errorf("Empty() = %v for kind %q", r.Empty(), r.Kind)
			}
		})
	}
}

func TestEntryStatusPredicates(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status   EntryStatus
		terminal bool
		active   bool
	}{
		{EntryStatusUploaded, false, false},
		{EntryStatusInQueue, false, true},
		{EntryStatusProcessing, false, true},
		{EntryStatusCompleted, true, false},
		{EntryStatusFailed, true, false},
		{EntryStatusDeleted, false, false},
	}
	for _, tc := range tests {
		if got := tc.status.Terminal(); got != tc.terminal {
			t.Errorf("%s.Terminal() = %v, want %v", tc.status, got, tc.terminal)
		}
		if got := tc.status.Active(); got != tc.active {
			t.Errorf("%s.Active() = %v, want %v", tc.status, got, tc.active)
		}
	}
}
