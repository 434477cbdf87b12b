// Package fserr defines the filesystem tool error taxonomy shared by vpath
// and fsexec, grounded on fathom-server's fs::error::FsError.
package fserr

// Error is a filesystem-tool error carrying a stable machine-readable code.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string { return e.Message }

func New(code, message string) *Error { return &Error{Code: code, Message: message} }

func InvalidArgs(message string) *Error      { return New("invalid_args", message) }
func InvalidPath(message string) *Error      { return New("invalid_path", message) }
func NotFound(message string) *Error         { return New("not_found", message) }
func NotFile(message string) *Error          { return New("not_file", message) }
func NotDirectory(message string) *Error     { return New("not_directory", message) }
func AlreadyExists(message string) *Error    { return New("already_exists", message) }
func PermissionDenied(message string) *Error { return New("permission_denied", message) }
func IOError(message string) *Error          { return New("io_error", message) }

// As extracts an *Error from err, returning nil, false if err isn't one.
func As(err error) (*Error, bool) {
	e, ok := err.(*Error)
	return e, ok
}
