package aggregate

import (
	"bufio"
	"encoding/binary"
	"io"
)

// Pickle protocol 2 opcodes, named as in CPython's pickletools.
const (
	opProto           = 0x80
	opEmptyDict        = '}'
	opBinInt1          = 'K'
	opBinUnicode       = 'X'
	opTuple2           = 0x86
	opTuple3           = 0x87
	opSetItem          = 's'
	opStop             = '.'
)

// EncodePickle writes table as a Python pickle (protocol 2) dict mapping a
// 2-tuple of small ints to a 3-tuple of strings, matching
// opportunity.rs::dump_opportunity_vs_relationship's
// HashMap<(u8,u8),(String,String,String)> (via the serde_pickle crate). No
// pickle-writing library was found anywhere in the retrieved example pack
// (teacher or other_examples/), so this is a minimal from-scratch encoder for
// exactly this shape rather than a general pickle library — see DESIGN.md.
//
// Counts are carried as decimal strings rather than pickle ints: the Rust
// source accumulates in u128, which has no fixed-width Go or pickle integer
// equivalent, so the original itself converts to String before pickling.
func EncodePickle(w io.Writer, table map[[2]uint8][3]string) error {
	bw := bufio.NewWriter(w)

	if err := writeBytes(bw, []byte{opProto, 0x02, opEmptyDict}); err != nil {
		return err
	}
	for key, value := range table {
		if err := writeUint8(bw, key[0]); err != nil {
			return err
		}
		if err := writeUint8(bw, key[1]); err != nil {
			return err
		}
		if err := writeBytes(bw, []byte{opTuple2}); err != nil {
			return err
		}
		for _, s := range value {
			if err := writeUnicode(bw, s); err != nil {
				return err
			}
		}
		if err := writeBytes(bw, []byte{opTuple3}); err != nil {
			return err
		}
		if err := writeBytes(bw, []byte{opSetItem}); err != nil {
			return err
		}
	}
	if err := writeBytes(bw, []byte{opStop}); err != nil {
		return err
	}
	return bw.Flush()
}

func writeBytes(w *bufio.Writer, b []byte) error {
	_, err := w.Write(b)
	return err
}

func writeUint8(w *bufio.Writer, v uint8) error {
	return writeBytes(w, []byte{opBinInt1, v})
}

func writeUnicode(w *bufio.Writer, s string) error {
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(s)))
	if err := writeBytes(w, []byte{opBinUnicode}); err != nil {
		return err
	}
	if err := writeBytes(w, lenBuf[:]); err != nil {
		return err
	}
	return writeBytes(w, []byte(s))
}
