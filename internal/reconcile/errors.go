package reconcile

import "fmt"

// NotWorkingCopyError reports a checkout target that exists but is not
// a subversion working copy. No mutation is attempted in that case.
type NotWorkingCopyError struct {
	Path string
}

func (e *NotWorkingCopyError) Error() string {
	return fmt.Sprintf("target directory %s exists but is not a subversion working copy", e.Path)
}

// NotFoundError reports a name lookup with no matching control.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no control named %q", e.Name)
}

// Failure pairs a control name with the error its reconciliation produced.
type Failure struct {
	Name string
	Err  error
}

// AggregateError summarizes a batch run in which one or more controls
// failed. The first failure by insertion order is the representative cause.
type AggregateError struct {
	Attempted int
	Succeeded int
	Failures  []Failure
}

func (e *AggregateError) Error() string {
	return fmt.Sprintf("%d of %d controls failed (%d succeeded), first failure: %s: %v",
		len(e.Failures), e.Attempted, e.Succeeded, e.Failures[0].Name, e.Failures[0].Err)
}

// Unwrap returns the first failure so errors.Is and errors.As reach
// the representative cause.
func (e *AggregateError) Unwrap() error { return e.Failures[0].Err }
