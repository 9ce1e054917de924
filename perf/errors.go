package perf

import "errors"

// Parse error taxonomy. Each member is a sentinel so callers can classify a
// dropped record with errors.Is after any amount of fmt.Errorf("...: %w", ...)
// wrapping. Grounded on original_source/rust/src/performance/db/error.rs's
// ParseErrorKind enum.
var (
	ErrUntracked                           = errors.New("untracked parse error")
	ErrAddrParse                           = errors.New("address parse error")
	ErrVipMetroIsNull                      = errors.New("vip_metro is NULL")
	ErrClientCountryIsNull                 = errors.New("client_country is NULL")
	ErrUnknownPeeringRelationship          = errors.New("unknown peering relationship")
	ErrHdRatioBootstrapDiffCIBoundsMismatch = errors.New("hdratio bootstrap diff CI bounds mismatch")
	ErrRepeatedTimebin                     = errors.New("repeated timebin")
	ErrNotEnoughMinRttSamples              = errors.New("not enough minrtt samples")
	ErrMissingPrimaryRoute                 = errors.New("missing primary route")
)

// ErrorKind names one bucket of the parse-error histogram the driver prints
// at load time (§7's "user-visible behavior").
type ErrorKind string

const (
	KindUntracked                           ErrorKind = "untracked"
	KindAddrParse                           ErrorKind = "addr_parse"
	KindVipMetroIsNull                      ErrorKind = "vip_metro_is_null"
	KindClientCountryIsNull                ErrorKind = "client_country_is_null"
	KindUnknownPeeringRelationship          ErrorKind = "unknown_peering_relationship"
	KindHdRatioBootstrapDiffCIBoundsMismatch ErrorKind = "hdratio_bootstrap_diff_ci_bounds_mismatch"
	KindRepeatedTimebin                     ErrorKind = "repeated_timebin"
	KindNotEnoughMinRttSamples              ErrorKind = "not_enough_minrtt_samples"
	KindMissingPrimaryRoute                 ErrorKind = "missing_primary_route"
)

// ClassifyParseError maps a (possibly wrapped) parse error onto the kind used
// to key the DB's per-kind error counters.
func ClassifyParseError(err error) ErrorKind {
	switch {
	case errors.Is(err, ErrAddrParse):
		return KindAddrParse
	case errors.Is(err, ErrVipMetroIsNull):
		return KindVipMetroIsNull
	case errors.Is(err, ErrClientCountryIsNull):
		return KindClientCountryIsNull
	case errors.Is(err, ErrUnknownPeeringRelationship):
		return KindUnknownPeeringRelationship
	case errors.Is(err, ErrHdRatioBootstrapDiffCIBoundsMismatch):
		return KindHdRatioBootstrapDiffCIBoundsMismatch
	case errors.Is(err, ErrRepeatedTimebin):
		return KindRepeatedTimebin
	case errors.Is(err, ErrNotEnoughMinRttSamples):
		return KindNotEnoughMinRttSamples
	case errors.Is(err, ErrMissingPrimaryRoute):
		return KindMissingPrimaryRoute
	default:
		return KindUntracked
	}
}
