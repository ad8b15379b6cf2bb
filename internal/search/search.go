package search

// ResultType identifies the kind of entity in a directory search result.
type ResultType string

const (
	ResultUser  ResultType = "user"
	ResultGroup ResultType = "group"
)

// Result is a single directory hit returned to the caller.
type Result struct {
	Type        ResultType `json:"type"`
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Email       string     `json:"email,omitempty"`
	MemberCount int        `json:"memberCount,omitempty"`
}

// Query describes a directory search request.
type Query struct {
	Text       string
	FilterType ResultType // empty = users and groups
	Limit      int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// UserRecord is the data we index for a user.
type UserRecord struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
}

// GroupRecord is the data we index for a group.
type GroupRecord struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	MemberCount int    `json:"memberCount"`
}
