package repo

import (
	"errors"

	"gorm.io/gorm"
)

// translate maps gorm errors onto the package sentinels. The gorm config
// must enable TranslateError for duplicate keys to be recognised.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicate
	case errors.Is(err, gorm.ErrCheckConstraintViolated):
		return ErrNegativeBalance
	}
	return err
}
