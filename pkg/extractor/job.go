package extractor

import (
	"fmt"
	"net/url"
	"strings"
)

// Job describes one extraction. It is immutable once created.
type Job struct {
	baseURL      *url.URL
	relativePath string
	params       url.Values
	destination  string
}

// NewJob validates and builds a Job. params is copied.
func NewJob(baseURL, relativePath string, params url.Values, destination string) (Job, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return Job{}, fmt.Errorf("parse base url %q: %w", baseURL, err)
	}
	if !base.IsAbs() {
		return Job{}, fmt.Errorf("base url %q must be absolute", baseURL)
	}
	if destination == "" {
		return Job{}, fmt.Errorf("destination is required")
	}
	return Job{
		baseURL:      base,
		relativePath: relativePath,
		params:       copyValues(params),
		destination:  destination,
	}, nil
}

// URL resolves the relative path against the base URL as a URL reference,
// so "https://h/api/v3/" + "coins/list" gives "https://h/api/v3/coins/list"
// while a base without the trailing slash drops its last segment.
func (j Job) URL() string {
	ref, err := url.Parse(j.relativePath)
	if err != nil {
		return j.baseURL.String() + j.relativePath
	}
	return j.baseURL.ResolveReference(ref).String()
}

// RelativePath returns the path requested relative to the base URL.
func (j Job) RelativePath() string { return j.relativePath }

// Surname identifies the endpoint in artifact names and storage paths.
func (j Job) Surname() string {
	return Surname(j.relativePath)
}

// Params returns a copy of the static query parameters.
func (j Job) Params() url.Values { return copyValues(j.params) }

// Destination returns the directory artifacts are written to.
func (j Job) Destination() string { return j.destination }

// WithDestination returns a copy of the job writing to dir.
func (j Job) WithDestination(dir string) Job {
	j.destination = dir
	j.params = copyValues(j.params)
	return j
}

// Surname converts a relative API path to its artifact form: "coins/list" -> "coins_list".
func Surname(relativePath string) string {
	return strings.ReplaceAll(relativePath, "/", "_")
}

// mergeParams overlays pagination onto static; pagination wins on collision.
func mergeParams(static, pagination url.Values) url.Values {
	merged := copyValues(static)
	for name, values := range pagination {
		merged[name] = append([]string(nil), values...)
	}
	return merged
}

func copyValues(v url.Values) url.Values {
	out := make(url.Values, len(v))
	for name, values := range v {
		out[name] = append([]string(nil), values...)
	}
	return out
}
