package pathcheck

import "fmt"

// Kind names the constraint a destination path violated.
type Kind string

const (
	InvalidCharacters     Kind = "invalid_characters"
	NotAbsolute           Kind = "not_absolute"
	VolumeNotFound        Kind = "volume_not_found"
	NotADirectory         Kind = "not_a_directory"
	DirectoryNotEmpty     Kind = "directory_not_empty"
	UserDeclinedOverwrite Kind = "user_declined_overwrite"
	InsufficientSpace     Kind = "insufficient_space"
	Unusable              Kind = "unusable"
)

// ValidationError is returned for every rejected path. Callers re-prompt on
// it; it never means the session should end.
type ValidationError struct {
	Kind   Kind
	Path   string
	Detail string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Detail, e.Err)
	}
	return e.Detail
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match on Kind alone, e.g. errors.Is(err, pathcheck.Rejected(pathcheck.InsufficientSpace)).
func (e *ValidationError) Is(target error) bool {
	t, ok := target.(*ValidationError)
	if !ok {
		return false
	}
	return t.Path == "" && t.Detail == "" && t.Kind == e.Kind
}

// Rejected returns a bare ValidationError usable as an errors.Is target.
func Rejected(kind Kind) error {
	return &ValidationError{Kind: kind}
}

func reject(kind Kind, path, format string, args ...any) *ValidationError {
	return &ValidationError{Kind: kind, Path: path, Detail: fmt.Sprintf(format, args...)}
}
