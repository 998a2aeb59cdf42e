package api

// Reasons handed to Navigator.ToLogin when authentication cannot be recovered.
// The CLI and the reporters match on them, so keep them stable.
const (
	// AuthMsgRequired is used when no refresh was attempted, e.g. an API key was rejected.
	AuthMsgRequired = "authentication required"

	// AuthMsgRefreshFailed is used when the refresher errored or returned no token.
	AuthMsgRefreshFailed = "token refresh failed"

	// AuthMsgReplayUnauthorized is used when the replay after a good refresh still got a 401.
	AuthMsgReplayUnauthorized = "unauthorized after token refresh"
)
