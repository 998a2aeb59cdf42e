package api

import (
	"strings"
	"sync"

	"crmcheck/pkg/logging"
)

// Navigator performs the redirect-to-login side effect on the exhausted auth path.
type Navigator interface {
	// Location returns the surface currently shown, e.g. "/dashboard".
	Location() string
	ToLogin(reason string)
}

// LoginPath is where Navigator.ToLogin sends the user.
const LoginPath = "/login"

var noRedirectLocations = []string{LoginPath, "/settings"}

func suppressRedirect(location, endpoint string) bool {
	for _, p := range noRedirectLocations {
		if strings.HasPrefix(location, p) {
			return true
		}
	}
	return isAuthEndpoint(endpoint)
}

// RecordingNavigator tracks the location in memory and logs redirects. The
// CLI uses it in place of a browser surface.
type RecordingNavigator struct {
	mu        sync.Mutex
	location  string
	redirects []string
}

// NewRecordingNavigator starts at location.
func NewRecordingNavigator(location string) *RecordingNavigator {
	return &RecordingNavigator{location: location}
}

func (n *RecordingNavigator) Location() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.location
}

func (n *RecordingNavigator) ToLogin(reason string) {
	n.mu.Lock()
	n.location = LoginPath
	n.redirects = append(n.redirects, reason)
	n.mu.Unlock()
	logging.Warn("AuthRefresh", "redirecting to %s: %s", LoginPath, reason)
}

// Navigate moves to location without recording a redirect.
func (n *RecordingNavigator) Navigate(location string) {
	n.mu.Lock()
	n.location = location
	n.mu.Unlock()
}

// Redirects returns the reasons of every ToLogin call so far.
func (n *RecordingNavigator) Redirects() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.redirects...)
}
