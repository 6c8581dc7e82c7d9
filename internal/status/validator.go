// Package status decides which shipment status changes are accepted.
package status

import (
	"fmt"

	"github.com/ups-tracking/ups-api/internal/entity"
)

const (
	PolicyPermissive = "permissive"
	PolicyStrict     = "strict"
)

type Validator interface {
	Validate(current, requested entity.Status) error
}

// New returns the validator for a configured policy name.
func New(policy string) (Validator, error) {
	switch policy {
	case PolicyPermissive, "":
		return Permissive(), nil
	case PolicyStrict:
		return Strict(), nil
	default:
		return nil, fmt.Errorf("status.New: unknown policy %q", policy)
	}
}

type permissive struct{}

// Permissive accepts any known status from any state, terminal states included.
func Permissive() Validator {
	return permissive{}
}

func (permissive) Validate(_, requested entity.Status) error {
	if !requested.Valid() {
		return fmt.Errorf("status %q: %w", requested, entity.ErrInvalidStatus)
	}
	return nil
}

type strict struct {
	edges map[entity.Status][]entity.Status
}

// Strict allows pending -> in transit -> delivered and cancellation before
// delivery. Delivered and cancelled are terminal.
func Strict() Validator {
	return strict{
		edges: map[entity.Status][]entity.Status{
			entity.StatusPending:   {entity.StatusInTransit, entity.StatusCancelled},
			entity.StatusInTransit: {entity.StatusDelivered, entity.StatusCancelled},
		},
	}
}

func (s strict) Validate(current, requested entity.Status) error {
	if !requested.Valid() {
		return fmt.Errorf("status %q: %w", requested, entity.ErrInvalidStatus)
	}
	if current == requested {
		return nil
	}
	for _, next := range s.edges[current] {
		if next == requested {
			return nil
		}
	}
	return fmt.Errorf("%q -> %q: %w", current, requested, entity.ErrIllegalTransition)
}
