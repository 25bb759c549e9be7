package sandboxctl

// SeedConfig is a manifest of tutorial databases to provision.
type SeedConfig struct {
	Databases []DatabaseDef `yaml:"databases"`
}

// DatabaseDef names a script to import. Without Name the script must start
// with CREATE DATABASE; with Name the whole script runs in a database of that
// name.
type DatabaseDef struct {
	Name       string         `yaml:"name"`
	Script     string         `yaml:"script"`
	Owner      int            `yaml:"owner"`
	Worksheets []WorksheetDef `yaml:"worksheets"`
}

// WorksheetDef is a worksheet that references the database, which makes it
// readable by every student.
type WorksheetDef struct {
	Title string `yaml:"title"`
	Owner int    `yaml:"owner"`
}
