package storage

import (
	"fmt"

	"github.com/pixil98/go-errors"
)

type ValidatingSpec interface {
	Validate() error
}

// Asset is the on-disk wrapper around one stored record.
type Asset[T ValidatingSpec] struct {
	Version uint  `json:"version"`
	ID      int64 `json:"id"`
	Spec    T     `json:"spec"`
}

func (a *Asset[T]) Validate() error {
	el := errors.NewErrorList()

	if a.Version == 0 {
		el.Add(fmt.Errorf("version must be set"))
	}

	if a.ID <= 0 {
		el.Add(fmt.Errorf("id must be positive"))
	}

	el.Add(a.Spec.Validate())

	return el.Err()
}
