package service

import (
	"errors"
	"fmt"

	"Circle_Social/internal/engine"
	"Circle_Social/internal/repository"
)

var (
	ErrPersistence     = errors.New("persistence failure")
	ErrForbidden       = errors.New("forbidden")
	ErrNotFound        = errors.New("not found")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrVersionConflict = errors.New("version conflict")
	ErrInvalidInput    = errors.New("invalid input")
)

// 业务层已知的错误原样返回，由 handler 映射状态码
var knownErrors = []error{
	ErrForbidden, ErrNotFound, ErrUnauthorized, ErrVersionConflict, ErrInvalidInput,
	engine.ErrCircleNotFound, engine.ErrUnauthenticated, engine.ErrAlreadyPending,
	engine.ErrAlreadyMember, engine.ErrInvalidCircleType, engine.ErrCircleNameRequired,
	engine.ErrInvalidReactionType, engine.ErrForbidden, engine.ErrMembershipNotFound,
	engine.ErrNotPending, engine.ErrOwnerCannotLeave, engine.ErrDuplicateEntry,
}

// storeErr 把存储层错误转换成业务错误，其余一律视为持久化失败
func storeErr(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, repository.ErrConflict):
		return ErrVersionConflict
	}
	for _, k := range knownErrors {
		if errors.Is(err, k) {
			return err
		}
	}
	return fmt.Errorf("%w: %v", ErrPersistence, err)
}
