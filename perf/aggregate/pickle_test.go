package aggregate

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestEncodePickleProducesWellFormedOpcodeStream doesn't unpickle the result
// (no Python interpreter is available in this harness); it instead checks
// the opcode stream's shape byte-for-byte against what CPython's pickletools
// disassembler would expect for a protocol-2 dict of one (u8,u8) -> (str,
// str, str) entry.
func TestEncodePickleProducesWellFormedOpcodeStream(t *testing.T) {
	table := map[[2]uint8]([3]string){
		{3, 1}: {"1000", "500", "0"},
	}
	var buf bytes.Buffer
	require.NoError(t, EncodePickle(&buf, table))

	b := buf.Bytes()
	require.Equal(t, byte(opProto), b[0])
	require.Equal(t, byte(0x02), b[1])
	require.Equal(t, byte(opEmptyDict), b[2])
	require.Equal(t, byte(opStop), b[len(b)-1])

	require.Equal(t, byte(opBinInt1), b[3])
	require.Equal(t, byte(3), b[4])
	require.Equal(t, byte(opBinInt1), b[5])
	require.Equal(t, byte(1), b[6])
	require.Equal(t, byte(opTuple2), b[7])

	require.Equal(t, byte(opBinUnicode), b[8])
	require.Equal(t, byte(opSetItem), b[len(b)-2])
}

func TestEncodePickleEmptyTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, EncodePickle(&buf, map[[2]uint8][3]string{}))
	require.Equal(t, []byte{opProto, 0x02, opEmptyDict, opStop}, buf.Bytes())
}
