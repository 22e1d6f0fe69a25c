package schemas

import (
	"net/url"
	"strings"
	"time"
)

// -- Target Schemas --

// MatchHints narrows how the element to interact with is found on the rendered page.
// Any empty field is ignored.
type MatchHints struct {
	Texts        []string `json:"texts,omitempty" mapstructure:"texts" yaml:"texts"`
	HrefContains string   `json:"href_contains,omitempty" mapstructure:"href_contains" yaml:"href_contains"`
	Selector     string   `json:"selector,omitempty" mapstructure:"selector" yaml:"selector"`
}

// Target is a labeled destination to visit. Label is the identity.
type Target struct {
	Label       string     `json:"label" mapstructure:"label" yaml:"label"`
	Destination string     `json:"destination" mapstructure:"destination" yaml:"destination"`
	// Query, when set, turns the target into a search target: the session
	// goes through the search results page and follows a link to Destination.
	Query string     `json:"query,omitempty" mapstructure:"query" yaml:"query"`
	Match MatchHints `json:"match,omitempty" mapstructure:"match" yaml:"match"`
}

// IsSearch reports whether the target is reached through a search results page.
func (t Target) IsSearch() bool {
	return strings.TrimSpace(t.Query) != ""
}

// URL returns the direct destination as an absolute URL. Bare domains get https.
func (t Target) URL() string {
	d := strings.TrimSpace(t.Destination)
	if d == "" {
		return ""
	}
	if strings.Contains(d, "://") {
		return d
	}
	return "https://" + d
}

// Host returns the host part of the destination, used to recognise links that lead to it.
func (t Target) Host() string {
	u, err := url.Parse(t.URL())
	if err != nil || u.Host == "" {
		return strings.TrimSpace(t.Destination)
	}
	return strings.TrimPrefix(u.Hostname(), "www.")
}

// -- Session Result Schemas --

// SessionStatus is the terminal status of a visit.
type SessionStatus string

const (
	StatusSucceeded SessionStatus = "succeeded"
	StatusFailed    SessionStatus = "failed"
	StatusSkipped   SessionStatus = "skipped"
)

// ArtifactRef points at one capture file owned by the retention store.
type ArtifactRef struct {
	FileName  string    `json:"file_name"`
	Path      string    `json:"path"`
	CreatedAt time.Time `json:"created_at"`
}

// SessionResult is the immutable record of one visit.
type SessionResult struct {
	ID            string        `json:"id"`
	Target        Target        `json:"target"`
	Profile       string        `json:"profile,omitempty"`
	StartedAt     time.Time     `json:"started_at"`
	FinishedAt    time.Time     `json:"finished_at"`
	Status        SessionStatus `json:"status"`
	FailureReason string        `json:"failure_reason,omitempty"`
	Artifact      *ArtifactRef  `json:"artifact,omitempty"`
	FinalURL      string        `json:"final_url,omitempty"`
	Trace         []string      `json:"trace,omitempty"`
}

// Duration is the wall time between start and finish.
func (r SessionResult) Duration() time.Duration {
	if r.FinishedAt.Before(r.StartedAt) {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
