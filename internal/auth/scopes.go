package auth

// Scopes granted to clients of the activity API.
const (
	ScopeActivitiesWrite = "actividades:write"
	ScopeActivitiesRead  = "actividades:read"
)
