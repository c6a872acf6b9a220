package clierr

// Type categorizes a CLI-facing error for consistent messaging & exit codes.
type Type string

const (
	Validation Type = "validation"
	Auth       Type = "auth"
	API        Type = "api"
	Network    Type = "network"
	Conflict   Type = "conflict"
	NotFound   Type = "not_found"
	Internal   Type = "internal"
)

// Error is a structured user-facing error.
type Error struct {
	Type    Type
	Message string
	Err     error // optional underlying error
}

func (e *Error) Error() string { return e.Message }
func (e *Error) Unwrap() error { return e.Err }

// ExitCode maps the error type to a process exit status.
func (e *Error) ExitCode() int {
	switch e.Type {
	case Validation:
		return 2
	case Auth:
		return 3
	case Network:
		return 4
	default:
		return 1
	}
}

// New constructs a new CLI Error.
func New(t Type, msg string, err error) *Error { return &Error{Type: t, Message: msg, Err: err} }
