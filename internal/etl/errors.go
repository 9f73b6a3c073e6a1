package etl

import "fmt"

// StageError reports which stage of a run failed. Unwrap exposes the cause,
// so errors.Is(err, datasource.ErrSourceMissing) and errors.As(err,
// &*builtin.ParseError) work on the error returned by Run.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("etl: stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }
