package model

// params for Flags
type CommandLineFlags struct {
	Host   *string `json:"host"`
	Port   *string `json:"port"`
	Stdin  *bool   `json:"stdin"`
	Format *string `json:"format"`
	Output *string `json:"output"`
	Config *string `json:"config"`
	Tables *string `json:"tables"`
	Search *string `json:"search"`
	Sort   *string `json:"sort"`
	Order  *string `json:"order"`
	Page   *int    `json:"page"`
	Rows   *int    `json:"rows"`
}
