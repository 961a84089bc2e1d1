package model

type RouteKind string

const (
	RouteNone   RouteKind = ""
	RouteLocal  RouteKind = "local"
	RouteRemote RouteKind = "remote"
)

const localJobPrefix = "local-"

// Route identifies where a job runs and the identifier that backend knows it
// by. For local routes the job id is always derived from the entry id, never
// chosen independently.
type Route struct {
	Kind  RouteKind
	JobID string
}

func LocalRoute(entryID string) Route {
	return Route{Kind: RouteLocal, JobID: localJobPrefix + entryID}
}

func RemoteRoute(providerJobID string) Route {
	return Route{Kind: RouteRemote, JobID: providerJobID}
}

func (r Route) IsLocal() bool  { return r.Kind == RouteLocal }
func (r Route) IsRemote() bool { return r.Kind == RouteRemote }
func (r Route) Empty() bool    { return r.JobID == "" }

// RouteFromColumns rebuilds a Route from the persisted (is_local_job, job_id)
// pair. An empty job id yields RouteNone regardless of the flag.
func RouteFromColumns(isLocal bool, jobID string) Route {
	if jobID == "" {
		return Route{}
	}
	if isLocal {
		return Route{Kind: RouteLocal, JobID: jobID}
	}
	return Route{Kind: RouteRemote, JobID: jobID}
}
