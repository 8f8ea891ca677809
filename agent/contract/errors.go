package contract

import "errors"

var (
	// Discovery
	ErrProviderTimeout       = errors.New("provider timed out")
	ErrProviderUnavailable   = errors.New("provider unavailable")
	ErrAllSourcesUnavailable = errors.New("all capability sources unavailable")

	// Cache
	ErrRemoteUnavailable = errors.New("remote cache tier unavailable")
	ErrSerialization     = errors.New("cache serialization failed")

	// Knowledge
	ErrInvalidItem    = errors.New("invalid knowledge item")
	ErrStorageFailure = errors.New("knowledge storage failed")

	// Orchestration
	ErrNoTenant       = errors.New("tenant could not be resolved")
	ErrNoMatchingTeam = errors.New("no team matches the request")
	ErrTeamExecution  = errors.New("team execution failed")
)
