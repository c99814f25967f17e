package patch

import "errors"

var (
	// ErrPatchApply is wrapped by every failure to apply a candidate.
	ErrPatchApply = errors.New("patch application failed")
	// ErrRestore is wrapped by failures to return a file to its pristine content.
	ErrRestore = errors.New("restore failed")
	// ErrDeclNotFound means a named function is missing from the target file.
	ErrDeclNotFound = errors.New("function declaration not found")
	// ErrNoReplacement means the candidate defines none of the named functions.
	ErrNoReplacement = errors.New("candidate defines none of the target functions")
)

// PatchError reports a candidate that could not be applied to a file.
type PatchError struct {
	File string
	Err  error
}

func (e *PatchError) Error() string {
	return "failed to patch " + e.File + ": " + e.Err.Error()
}

func (e *PatchError) Unwrap() []error {
	return []error{ErrPatchApply, e.Err}
}
