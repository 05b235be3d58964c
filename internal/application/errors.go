package application

import (
	"context"
	stderrors "errors"

	"github.com/HenryGill4/OpCentrix-sub006/internal/domain"
	"github.com/HenryGill4/OpCentrix-sub006/internal/scheduling"
	"github.com/HenryGill4/OpCentrix-sub006/pkg/errors"
)

var domainErrorMappings = []errors.Mapping{
	{Target: domain.ErrJobNotFound, Build: func(error) *errors.AppError { return errors.ErrNotFound("job") }},
	{Target: domain.ErrMachineNotFound, Build: func(error) *errors.AppError { return errors.ErrNotFound("machine") }},
	{Target: domain.ErrUnknownMachine, Build: func(err error) *errors.AppError { return errors.ErrNotFound("machine") }},
	{Target: domain.ErrStageNotFound, Build: func(error) *errors.AppError { return errors.ErrNotFound("production stage") }},
	{Target: domain.ErrInvalidTimeRange, Build: func(err error) *errors.AppError { return errors.ErrValidation(err.Error()) }},
	{Target: scheduling.ErrInvalidViewMode, Build: func(err error) *errors.AppError { return errors.ErrValidation(err.Error()) }},
	{Target: domain.ErrJobExists, Build: func(err error) *errors.AppError { return errors.ErrConflict(err.Error()) }},
	{Target: domain.ErrJobClosed, Build: func(err error) *errors.AppError { return errors.ErrConflict(err.Error()) }},
	{Target: domain.ErrStageAlreadyActive, Build: func(err error) *errors.AppError { return errors.ErrConflict(err.Error()) }},
	{Target: domain.ErrOperatorBusy, Build: func(err error) *errors.AppError { return errors.ErrConflict(err.Error()) }},
	{Target: domain.ErrRepositoryUnavailable, Build: func(error) *errors.AppError { return errors.ErrServiceUnavailable("repository") }},
	{Target: domain.ErrLockUnavailable, Build: func(error) *errors.AppError { return errors.ErrServiceUnavailable("lock") }},
	{Target: context.DeadlineExceeded, Build: func(error) *errors.AppError { return errors.ErrTimeout("request") }},
}

// mapError converts a domain or infrastructure error to an AppError.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	return errors.MapDomainError(err, domainErrorMappings...)
}

// IsInfrastructure reports whether err means the system, not the input, is at
// fault.
func IsInfrastructure(err error) bool {
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		return appErr.Kind() == errors.KindInfrastructure
	}
	return err != nil
}
