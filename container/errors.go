package container

import (
	"errors"
	"fmt"

	"github.com/hupe1980/segkit/model"
)

// ErrTypeMismatch is matched by every *ErrContainerTypeMismatch.
var ErrTypeMismatch = errors.New("container type mismatch")

// ErrContainerTypeMismatch is returned by TryLoad when the stored tag is
// not the one the definition expects. Names are empty when unknown.
type ErrContainerTypeMismatch struct {
	Expected     model.TypeTag
	Found        model.TypeTag
	ExpectedName string
	FoundName    string
}

func (e *ErrContainerTypeMismatch) Error() string {
	return fmt.Sprintf("%s: expected %s, found %s",
		ErrTypeMismatch, describe(e.Expected, e.ExpectedName), describe(e.Found, e.FoundName))
}

func (e *ErrContainerTypeMismatch) Unwrap() error { return ErrTypeMismatch }

func describe(tag model.TypeTag, name string) string {
	if name == "" {
		return tag.String()
	}
	return fmt.Sprintf("%s (%s)", name, tag)
}
