package model

// ColumnConfig describes one column of a table loaded from yaml.
type ColumnConfig struct {
	ID           string `yaml:"id"`
	Title        string `yaml:"title"`
	ContentPath  string `yaml:"content_path"`
	ObservePath  bool   `yaml:"observe_path"`
	EnableSearch *bool  `yaml:"enable_search"`
	FacetType    string `yaml:"facet_type"`
}

// TableConfig describes a table served by the registry.
type TableConfig struct {
	Name   string `yaml:"name"`
	Source string `yaml:"source"`
	Format string `yaml:"format"`
	// Query selects the rows of sql sources.
	Query     string         `yaml:"query"`
	Columns   []ColumnConfig `yaml:"columns"`
	SortBy    string         `yaml:"sort_by"`
	SortOrder string         `yaml:"sort_order"`
	RowCount  int            `yaml:"row_count"`
	Search    string         `yaml:"search"`
	// DisableFaceting turns off the facet summary of the table.
	DisableFaceting bool `yaml:"disable_faceting"`
	// MinFieldsForFilter hides the filter box of facet panels showing fewer fields.
	MinFieldsForFilter int `yaml:"min_fields_for_filter"`
}

// Config represents the tables file structure
type Config struct {
	Tables []TableConfig `yaml:"tables"`
}
