package perf

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassifyParseErrorKnownKinds(t *testing.T) {
	tests := []struct {
		err  error
		kind ErrorKind
	}{
		{ErrAddrParse, KindAddrParse},
		{ErrVipMetroIsNull, KindVipMetroIsNull},
		{ErrClientCountryIsNull, KindClientCountryIsNull},
		{ErrUnknownPeeringRelationship, KindUnknownPeeringRelationship},
		{ErrHdRatioBootstrapDiffCIBoundsMismatch, KindHdRatioBootstrapDiffCIBoundsMismatch},
		{ErrRepeatedTimebin, KindRepeatedTimebin},
		{ErrNotEnoughMinRttSamples, KindNotEnoughMinRttSamples},
		{ErrMissingPrimaryRoute, KindMissingPrimaryRoute},
	}
	for _, test := range tests {
		t.Run(string(test.kind), func(t *testing.T) {
			wrapped := fmt.Errorf("wrapping layer: %w", test.err)
			require.Equal(t, test.kind, ClassifyParseError(wrapped))
		})
	}
}

func TestClassifyParseErrorDefaultsToUntracked(t *testing.T) {
	require.Equal(t, KindUntracked, ClassifyParseError(fmt.Errorf("something else entirely")))
	require.Equal(t, KindUntracked, ClassifyParseError(ErrUntracked))
}
