package pipeline

import "fmt"

// Stage failure codes callers can branch on.
const (
	CodeInputValidation = "input_validation"
	CodeGeneration      = "generation_failed"
)

// StageError is a typed failure from one pipeline stage. Malformed model
// output recovered by the extractor is not a StageError; only validation
// and external-capability failures surface as one.
type StageError struct {
	Code   string
	Reason string
	Err    error
}

func (e *StageError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Reason)
}

func (e *StageError) Unwrap() error { return e.Err }

func validationErr(reason string) *StageError {
	return &StageError{Code: CodeInputValidation, Reason: reason}
}

func generationErr(reason string, err error) *StageError {
	return &StageError{Code: CodeGeneration, Reason: reason, Err: err}
}
