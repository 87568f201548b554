// pkg/registry/schema.go
package registry

// JobRegistry is a seed file listing the job postings to expose over
// WhatsApp. Operators keep one per campaign and feed it to the
// register-jobs tool.
type JobRegistry struct {
	Version     string     `json:"version"`
	LastUpdated string     `json:"lastUpdated"`
	Jobs        []JobEntry `json:"jobs"`
}

type JobEntry struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	OrgID       string   `json:"orgId"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}
