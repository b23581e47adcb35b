package dmgimage

import "encoding/binary"

// getBE32 and getBE64 read big-endian integers out of a raw mish record at a
// fixed byte offset. The format is defined big-endian end to end (spec.md
// §6's "Format compatibility"), so there is no portability concern to abstract
// away here.
func getBE32(data []byte, offset int) uint32 {
	return binary.BigEndian.Uint32(data[offset:])
}

func getBE64(data []byte, offset int) uint64 {
	return binary.BigEndian.Uint64(data[offset:])
}
