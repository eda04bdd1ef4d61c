package model

// Metadata is the metadata for a column
type Metadata struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Facet is one column of the facet summary as sent to clients
type Facet struct {
	Column string `json:"column"`
	Title  string `json:"title"`
	Facets any    `json:"facets"`
}

// Statistics describes the state of the pipeline when the page was taken
type Statistics struct {
	IsSorting   bool `json:"is_sorting"`
	IsSearching bool `json:"is_searching"`
	TotalRows   int  `json:"total_rows"`
	Matched     int  `json:"matched"`
}

// OutputJSON is the JSON output for a page of a table
type OutputJSON struct {
	Meta       []Metadata `json:"meta"`
	Data       [][]any    `json:"data"`
	Rows       int        `json:"rows"`
	PageNum    int        `json:"page_num"`
	TotalPages int        `json:"total_pages"`
	Statistics Statistics `json:"statistics"`
}

// TableInfo describes a served table
type TableInfo struct {
	Name    string     `json:"name"`
	Rows    int        `json:"rows"`
	Columns []Metadata `json:"columns"`
}
