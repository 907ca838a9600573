package app

import (
	"errors"
	"fmt"

	"github.com/example/tradeflow/internal/ports/primary"
	"github.com/example/tradeflow/internal/ports/secondary"
)

// translate maps storage-level errors onto the primary error taxonomy.
// Errors that already carry a primary kind pass through.
func translate(err error) error {
	if err == nil {
		return nil
	}
	var se *primary.StateError
	if errors.As(err, &se) {
		return err
	}
	switch {
	case errors.Is(err, secondary.ErrStoreUnavailable):
		return fmt.Errorf("%w: %w", primary.ErrTransientStore, err)
	case errors.Is(err, secondary.ErrRecordNotFound):
		return fmt.Errorf("%w: %w", primary.ErrNotFound, err)
	}
	return err
}

func notFound(entity, id string) error {
	return primary.NewStateError(primary.ErrNotFound, entity, id, "", fmt.Sprintf("%s %s not found", entity, id))
}

func invalidInput(format string, args ...any) error {
	return fmt.Errorf("%w: %s", primary.ErrInvalidInput, fmt.Sprintf(format, args...))
}

func forbidden(format string, args ...any) error {
	return fmt.Errorf("%w: %s", primary.ErrForbidden, fmt.Sprintf(format, args...))
}
