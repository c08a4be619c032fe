package kernel

import "errors"

// Sentinel errors for the taxonomy in spec §7. ErrBaseCountryMissing is the
// only fatal one (the step is aborted, state not advanced); the rest are
// non-fatal and are recorded into the StepAudit's errors list instead of
// being returned to the caller.
var (
	// ErrBaseCountryMissing is a fatal ConfigurationError: base_ccy does
	// not resolve to a country present in state.Countries.
	ErrBaseCountryMissing = errors.New("base currency country missing from countries")

	// ErrEmptyKey is returned by world-state constructors when a string
	// key (country code, matrix node, commodity name) is empty.
	ErrEmptyKey = errors.New("key must be non-empty")

	// ErrUnknownNetworkLayer is returned when a network layer name does
	// not match any known matrix.
	ErrUnknownNetworkLayer = errors.New("unknown network layer")

	// ErrPath is the PathError family: a dotted path does not resolve,
	// or the target type is incompatible with the requested operation.
	ErrPath = errors.New("path error")

	// ErrExpression is the ExpressionError family: a condition failed to
	// parse or evaluate.
	ErrExpression = errors.New("expression error")

	// ErrUnknownReducerImpl is a non-fatal ConfigurationError: a reducer
	// implementation name was requested that is not registered. The error
	// is recorded and that reducer is skipped for the step.
	ErrUnknownReducerImpl = errors.New("unknown reducer implementation")
)
