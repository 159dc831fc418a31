package application

import (
	stderrors "errors"
	"fmt"

	"github.com/wms-platform/stock-redistribution/internal/domain"
	"github.com/wms-platform/stock-redistribution/pkg/errors"
)

// toAppError maps domain failures onto API errors. Unknown errors are wrapped as internal.
func toAppError(err error, resource string) error {
	if err == nil {
		return nil
	}
	if errors.IsAppError(err) {
		return err
	}

	var insufficient *domain.InsufficientStockError
	switch {
	case stderrors.As(err, &insufficient):
		return errors.ErrInsufficientStock(insufficient.SKU, insufficient.Attempted, insufficient.Available).Wrap(err)
	case stderrors.Is(err, domain.ErrInvalidConfiguration):
		return errors.ErrInvalidConfiguration(err.Error()).Wrap(err)
	case stderrors.Is(err, domain.ErrProductNotFound):
		return errors.ErrNotFound("product").Wrap(err)
	case stderrors.Is(err, domain.ErrWarehouseNotFound):
		return errors.ErrNotFound("warehouse").Wrap(err)
	case stderrors.Is(err, domain.ErrProductExists):
		return errors.ErrConflict(err.Error()).Wrap(err)
	case stderrors.Is(err, domain.ErrConcurrentModification):
		return errors.ErrConflict(fmt.Sprintf("%s was modified concurrently, retry the request", resource)).Wrap(err)
	case stderrors.Is(err, domain.ErrPlanNotApplicable):
		return errors.ErrConflict(err.Error()).Wrap(err)
	case stderrors.Is(err, domain.ErrLockNotAcquired):
		return errors.ErrConflict("another distribution for this product is in progress").Wrap(err)
	case stderrors.Is(err, domain.ErrInvalidQuantity),
		stderrors.Is(err, domain.ErrInvalidSalesRecord),
		stderrors.Is(err, domain.ErrInvalidCandidate):
		return errors.ErrValidation(err.Error()).Wrap(err)
	}
	return errors.ErrInternal(fmt.Sprintf("failed to process %s", resource)).Wrap(err)
}
