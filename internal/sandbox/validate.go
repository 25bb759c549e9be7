package sandbox

import "strings"

// CommandKind is the classified leading command of a statement.
type CommandKind string

const (
	CommandSelect   CommandKind = "SELECT"
	CommandWith     CommandKind = "WITH"
	CommandShow     CommandKind = "SHOW"
	CommandDescribe CommandKind = "DESCRIBE"
	CommandExplain  CommandKind = "EXPLAIN"
	CommandInsert   CommandKind = "INSERT"
	CommandUpdate   CommandKind = "UPDATE"
	CommandDelete   CommandKind = "DELETE"
	CommandCreate   CommandKind = "CREATE"
	CommandAlter    CommandKind = "ALTER"
	CommandDrop     CommandKind = "DROP"
	CommandRejected CommandKind = "REJECTED"
)

// ReturnsRows reports whether results of this kind are shaped as a row set.
func (k CommandKind) ReturnsRows() bool {
	switch k {
	case CommandSelect, CommandWith, CommandShow, CommandDescribe, CommandExplain:
		return true
	}
	return false
}

// Policy selects the set of commands a caller may run.
type Policy int

const (
	// PolicyReadOnly is used for ad hoc inspection of the source database.
	PolicyReadOnly Policy = iota
	// PolicyManipulation is used in the sandboxed exercise mode, against a
	// per-requester copy.
	PolicyManipulation
)

func (p Policy) String() string {
	if p == PolicyManipulation {
		return "manipulation"
	}
	return "read_only"
}

// Statement is a single trimmed statement and its classification.
type Statement struct {
	Text string
	Kind CommandKind
}

var readOnlyCommands = map[string]CommandKind{
	"SELECT":   CommandSelect,
	"WITH":     CommandWith,
	"SHOW":     CommandShow,
	"DESCRIBE": CommandDescribe,
	"DESC":     CommandDescribe,
	"EXPLAIN":  CommandExplain,
}

var writeCommands = map[string]CommandKind{
	"INSERT": CommandInsert,
	"UPDATE": CommandUpdate,
	"DELETE": CommandDelete,
	"CREATE": CommandCreate,
	"ALTER":  CommandAlter,
	"DROP":   CommandDrop,
}

var readOnlyForbidden = map[string]bool{
	"INSERT": true, "UPDATE": true, "DELETE": true, "DROP": true, "CREATE": true,
	"ALTER": true, "TRUNCATE": true, "GRANT": true, "REVOKE": true,
}

// Commands and DDL objects that reach outside a single database copy.
var (
	escapeCommands = map[string]bool{"GRANT": true, "REVOKE": true, "COPY": true}
	escapeObjects  = map[string]bool{"DATABASE": true, "SCHEMA": true, "USER": true, "ROLE": true}
)

// DDL objects a manipulation request may create, alter or drop.
var manipulationObjects = map[string]map[string]bool{
	"CREATE": {"TABLE": true, "INDEX": true, "SEQUENCE": true},
	"ALTER":  {"TABLE": true},
	"DROP":   {"TABLE": true, "INDEX": true, "SEQUENCE": true},
}

// Modifiers that may sit between CREATE and the object keyword.
var createModifiers = map[string]bool{
	"UNIQUE": true, "TEMP": true, "TEMPORARY": true, "UNLOGGED": true, "GLOBAL": true, "LOCAL": true,
}

// ValidateReadOnly accepts exactly one inspection statement.
func ValidateReadOnly(statement string) (CommandKind, error) {
	stmt, err := validate(PolicyReadOnly, statement)
	return stmt.Kind, err
}

// ValidateManipulation accepts exactly one statement allowed in the
// sandboxed exercise mode.
func ValidateManipulation(statement string) (CommandKind, error) {
	stmt, err := validate(PolicyManipulation, statement)
	return stmt.Kind, err
}

func validate(policy Policy, statement string) (Statement, error) {
	rejected := Statement{Text: strings.TrimSpace(statement), Kind: CommandRejected}

	stmts, err := SplitStatements(statement)
	if err != nil {
		return rejected, err
	}
	if len(stmts) > 1 {
		return rejected, newError(KindMultipleStatements, "only one statement per request is allowed, got %d", len(stmts))
	}
	text := stmts[0]
	rejected.Text = text

	words := leadingWords(text, 4)
	if len(words) == 0 {
		return rejected, newError(KindUnrecognizedCommand, "statement does not start with a SQL command")
	}
	command := words[0]

	if escapesSandbox(words) {
		return rejected, newError(KindForbiddenCommand, "%s is not allowed", commandLabel(words))
	}

	if kind, ok := readOnlyCommands[command]; ok {
		return Statement{Text: text, Kind: kind}, nil
	}

	if policy == PolicyReadOnly {
		if readOnlyForbidden[command] {
			return rejected, newError(KindForbiddenCommand, "%s is not allowed in read-only queries", command)
		}
		return rejected, newError(KindUnrecognizedCommand, "unrecognized command %q", command)
	}

	kind, ok := writeCommands[command]
	if !ok {
		if command == "TRUNCATE" {
			return rejected, newError(KindForbiddenCommand, "TRUNCATE is not allowed")
		}
		return rejected, newError(KindUnrecognizedCommand, "unrecognized command %q", command)
	}
	if objects, ddl := manipulationObjects[command]; ddl {
		if !objects[ddlObject(words)] {
			return rejected, newError(KindForbiddenCommand, "%s is not allowed", commandLabel(words))
		}
	}
	return Statement{Text: text, Kind: kind}, nil
}

// classify derives a kind from the leading keyword without applying a
// policy. Unknown commands are classified by whether they look like DDL.
func classify(statement string) CommandKind {
	words := leadingWords(statement, 1)
	if len(words) == 0 {
		return CommandRejected
	}
	if kind, ok := readOnlyCommands[words[0]]; ok {
		return kind
	}
	if kind, ok := writeCommands[words[0]]; ok {
		return kind
	}
	return CommandRejected
}

func escapesSandbox(words []string) bool {
	if escapeCommands[words[0]] {
		return true
	}
	switch words[0] {
	case "CREATE", "DROP", "ALTER":
		return escapeObjects[ddlObject(words)]
	}
	return false
}

// ddlObject returns the object keyword of a CREATE/ALTER/DROP statement.
func ddlObject(words []string) string {
	for _, w := range words[1:] {
		if words[0] == "CREATE" && createModifiers[w] {
			continue
		}
		return w
	}
	return ""
}

func commandLabel(words []string) string {
	if len(words) > 1 {
		switch words[0] {
		case "CREATE", "DROP", "ALTER":
			return words[0] + " " + ddlObject(words)
		}
	}
	return words[0]
}

// leadingWords returns up to n upper-cased keywords from the start of the
// statement. A keyword is a run of letters and underscores; leading opening
// parentheses are skipped so that "(SELECT ...) UNION ..." classifies as
// SELECT. Leading comments are not skipped.
func leadingWords(statement string, n int) []string {
	var words []string
	s := strings.TrimLeft(statement, " \t\r\n(")
	for len(words) < n && s != "" {
		end := 0
		for end < len(s) && isKeywordChar(s[end]) {
			end++
		}
		if end == 0 {
			break
		}
		words = append(words, strings.ToUpper(s[:end]))
		s = strings.TrimLeft(s[end:], " \t\r\n")
	}
	return words
}

func isKeywordChar(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
