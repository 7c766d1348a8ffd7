package persistence

import (
	"errors"

	"github.com/grievancenet/backend/internal/domain/shared"
	"gorm.io/gorm"
)

// translate maps GORM's sentinels onto the domain ones. It relies on the
// connection being opened with TranslateError so that unique violations
// surface as gorm.ErrDuplicatedKey on both drivers.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return shared.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return shared.ErrAlreadyExists
	default:
		return err
	}
}
