package domain

// Record is one catalog record draft produced by a mapping profile and
// reconciled into the portal by the upsert controller.
type Record struct {
	ID                 string      `json:"id,omitempty"`
	Name               string      `json:"name"`
	Title              string      `json:"title"`
	Notes              string      `json:"notes,omitempty"`
	Author             string      `json:"author,omitempty"`
	Maintainer         string      `json:"maintainer,omitempty"`
	MaintainerEmail    string      `json:"maintainer_email,omitempty"`
	LicenseID          string      `json:"license_id,omitempty"`
	LegalInfo          string      `json:"legal_information,omitempty"`
	SparqlEndpoint     string      `json:"sparql_endpoint,omitempty"`
	DateFirstPublished string      `json:"date_first_published,omitempty"`
	DateLastUpdated    string      `json:"date_last_updated,omitempty"`
	TimeRange          string      `json:"time_range,omitempty"`
	Tags               []string    `json:"tags,omitempty"`
	Attributes         []Attribute `json:"attributes,omitempty"`
	Resources          []Resource  `json:"resources,omitempty"`
}

// Resource is one distribution of a record. ID is assigned by the catalog
// and carried forward across updates by matching on URI.
type Resource struct {
	ID       string `json:"id,omitempty"`
	URI      string `json:"uri"`
	URL      string `json:"url,omitempty"`
	Name     string `json:"name"`
	Format   string `json:"format,omitempty"`
	Mimetype string `json:"mimetype,omitempty"`
	// ResourceType is "file" for tabular downloads, "api" otherwise.
	ResourceType string `json:"resource_type"`
}

// Attribute is one dataset dimension resolved to its code description.
type Attribute struct {
	Name        string `json:"name"`
	TechName    string `json:"tech_name,omitempty"`
	Description string `json:"description,omitempty"`
}

// Harvest object statuses.
const (
	StatusNew    = "new"
	StatusChange = "change"
	StatusDelete = "delete"
)

// Outcomes of reconciling one harvest object.
const (
	OutcomeCreated   = "created"
	OutcomeUpdated   = "updated"
	OutcomeDeleted   = "deleted"
	OutcomeUnchanged = "unchanged"
	OutcomeFailed    = "failed"
)

// HarvestObject is one (guid, content, status) unit of a run. Exactly one
// object per GUID is current at any time; it is the diff base for the
// next run.
type HarvestObject struct {
	ID       string `json:"id"`
	RunID    string `json:"run_id"`
	GUID     string `json:"guid"`
	Source   string `json:"source"`
	Content  string `json:"content,omitempty"`
	Status   string `json:"status" enum:"new,change,delete"`
	Current  bool   `json:"current"`
	RecordID string `json:"record_id,omitempty"`
	Outcome  string `json:"outcome,omitempty"`
	Error    string `json:"error,omitempty"`
	Created  string `json:"created_at" format:"date-time"`
}

// Run is one harvest invocation against a source.
type Run struct {
	ID         string `json:"id"`
	SourceURL  string `json:"source_url"`
	Status     string `json:"status" enum:"running,finished,aborted"`
	StartedAt  string `json:"started_at" format:"date-time"`
	FinishedAt string `json:"finished_at,omitempty" format:"date-time"`
	Created    int    `json:"created"`
	Updated    int    `json:"updated"`
	Deleted    int    `json:"deleted"`
	Unchanged  int    `json:"unchanged"`
	Failed     int    `json:"failed"`
	Skipped    int    `json:"skipped"`
}

// Event is one append-only log entry recorded during a run.
type Event struct {
	ID      int64  `json:"id"`
	TS      string `json:"ts" format:"date-time"`
	Type    string `json:"type"`
	RunID   string `json:"run_id,omitempty"`
	GUID    string `json:"guid,omitempty"`
	Payload string `json:"payload_json"`
}
