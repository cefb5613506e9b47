package auth

// Known OAuth scopes used by the activity planner.
const (
	ScopeActivitiesRead    = "activities:read"
	ScopeActivitiesWrite   = "activities:write"
	ScopeActivitiesApprove = "activities:approve"
)

// implied lists the broader scopes that also satisfy a scope.
var implied = map[string][]string{
	ScopeActivitiesRead:  {ScopeActivitiesWrite, ScopeActivitiesApprove},
	ScopeActivitiesWrite: {ScopeActivitiesApprove},
}
