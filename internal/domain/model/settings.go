package model

import "time"

// AdminSettings is the singleton, admin-mutable runtime configuration for
// routing and admission control. It is read on every routing decision; writes
// take effect on the next read, stale reads up to one request are acceptable.
type AdminSettings struct {
	// QuotaPerDay maps a role name to its daily submission limit.
	QuotaPerDay map[string]int `json:"quota_per_day"`

	// MaxConcurrentJobs caps a single user's in-flight (in_queue|processing) jobs.
	MaxConcurrentJobs int `json:"max_concurrent_jobs"`

	// MaxQueueThreshold is the remote queue admission ceiling.
	MaxQueueThreshold int `json:"max_queue_threshold"`

	// LocalQueueThreshold is the local routing ceiling; <=0 disables local routing.
	LocalQueueThreshold int `json:"local_queue_threshold"`

	// FreeQueueLimit bounds how many free-tier jobs may wait locally at once.
	FreeQueueLimit int `json:"free_queue_limit"`

	// FreeWaitMinutes / PaidWaitMinutes are the local wait ceilings after which
	// the sweeper promotes a waiting job to the remote backend.
	FreeWaitMinutes int `json:"free_wait_minutes"`
	PaidWaitMinutes int `json:"paid_wait_minutes"`

	UpdatedAt time.Time `json:"updated_at"`
}

// DefaultAdminSettings returns the settings used before an admin ever saves.
func DefaultAdminSettings() *AdminSettings {
	return &AdminSettings{
		QuotaPerDay: map[string]int{
			RoleFree:    3,
			RoleGmgard:  5,
			RolePaid:    20,
			RolePremium: 50,
		},
		MaxConcurrentJobs:   2,
		MaxQueueThreshold:   50,
		LocalQueueThreshold: 10,
		FreeQueueLimit:      5,
		FreeWaitMinutes:     15,
		PaidWaitMinutes:     5,
	}
}

// DailyQuotaFor resolves the most generous daily limit among the user's roles,
// falling back to the free tier when no role matches.
func (s *AdminSettings) DailyQuotaFor(roles []string) int {
	limit, ok := s.QuotaPerDay[RoleFree]
	if !ok {
		limit = 0
	}
	for _, r := range roles {
		if v, found := s.QuotaPerDay[r]; found && v > limit {
			limit = v
		}
	}
	return limit
}
