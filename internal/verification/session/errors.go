package session

import (
	"context"
	"errors"

	"docverify/internal/verification/facts"
	"docverify/internal/verification/models"
	"docverify/internal/verification/policy"
	dErrors "docverify/pkg/domain-errors"
	"docverify/pkg/platform/sentinel"
)

// translate maps typed and sentinel errors onto domain error codes. The
// original error stays in the chain for errors.As.
func translate(err error) error {
	if _, ok := dErrors.Is(err); ok {
		return err
	}

	var (
		signalErr    *models.SignalError
		duplicateErr *facts.DuplicateFactError
		valueErr     *facts.FactValueError
		policyErr    *policy.PolicyError
		typeErr      *policy.ConditionTypeError
		aggErr       *policy.AggregationError
	)
	switch {
	case errors.As(err, &signalErr), errors.As(err, &duplicateErr), errors.As(err, &valueErr):
		return dErrors.Wrap(err, dErrors.CodeValidation, err.Error())
	case errors.As(err, &policyErr), errors.As(err, &typeErr), errors.As(err, &aggErr):
		return dErrors.Wrap(err, dErrors.CodeInvariantViolation, err.Error())
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, "policy not found")
	case errors.Is(err, sentinel.ErrInvalidState):
		return dErrors.Wrap(err, dErrors.CodeInvariantViolation, "stored policy is invalid")
	case errors.Is(err, context.DeadlineExceeded):
		return dErrors.Wrap(err, dErrors.CodeTimeout, "verification timed out")
	case errors.Is(err, sentinel.ErrUnavailable):
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "policy store unavailable")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "verification failed")
	}
}

func errorCode(err error) string {
	if de, ok := dErrors.Is(err); ok {
		return string(de.Code)
	}
	return string(dErrors.CodeInternal)
}
