package request

// ExecuteQuery runs a read-only statement against a source database.
type ExecuteQuery struct {
	Database string `json:"database" validate:"required"`
	Query    string `json:"query" validate:"required"`
}

// Manipulate runs a statement against the caller's private copy.
type Manipulate struct {
	Database string `json:"database" validate:"required"`
	Query    string `json:"query" validate:"required"`
	// ResetDatabase discards the caller's copy first.
	ResetDatabase bool `json:"reset_database"`
}

type CreateDatabase struct {
	Name   string `json:"name" validate:"required,dbname"`
	Script string `json:"script"`
}

type SplitScript struct {
	Script string `json:"script"`
}

// ValidateStatement checks a statement without running it.
type ValidateStatement struct {
	Query string `json:"query" validate:"required"`
	Mode  string `json:"mode" validate:"required,oneof=read_only manipulation"`
}
