package watch

import (
	"fmt"
)

// MissingFieldError reports an absent key. Field is empty when the whole
// group is missing from the payload.
type MissingFieldError struct {
	Group string
	Field string
}

func (e *MissingFieldError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("missing group %s", e.Group)
	}

	return fmt.Sprintf("missing field %s.%s", e.Group, e.Field)
}

type TypeMismatchError struct {
	Group    string
	Field    string
	Expected string
	Value    interface{}
	Err      error
}

func (e *TypeMismatchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("field %s.%s: expected %s, got %T: %v", e.Group, e.Field, e.Expected, e.Value, e.Err)
	}

	return fmt.Sprintf("field %s.%s: expected %s, got %T", e.Group, e.Field, e.Expected, e.Value)
}

func (e *TypeMismatchError) Unwrap() error {
	return e.Err
}

type UnknownEnumTagError struct {
	Group string
	Field string
	Tag   interface{}
}

func (e *UnknownEnumTagError) Error() string {
	return fmt.Sprintf("field %s.%s: unknown tag %v", e.Group, e.Field, e.Tag)
}
