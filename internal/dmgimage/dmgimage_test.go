package dmgimage

import (
	"bytes"
	"compress/zlib"
	"encoding/base64"
	"encoding/binary"
	"fmt"
)

func base64Encode(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// memRegion is a trivial in-memory Region used across this package's tests,
// standing in for internal/ramdisk's extent table without importing it (that
// would create an import cycle).
type memRegion struct {
	data []byte
}

func (m *memRegion) ReadAt(offset, length uint64) ([]byte, error) {
	end := offset + length
	if end > uint64(len(m.data)) {
		return nil, fmt.Errorf("memRegion: read [%d,%d) out of bounds (size %d)", offset, end, len(m.data))
	}
	return m.data[offset:end], nil
}

func (m *memRegion) Size() uint64 {
	return uint64(len(m.data))
}

// fixtureChunk describes one chunk to embed in a synthetic mish record.
type fixtureChunk struct {
	chunkType ChunkType
	sectors   uint64
	raw       []byte // plaintext sector content for Raw/Zlib chunks
}

// buildImage assembles a complete, valid synthetic DMG: a data fork holding
// each block's chunk payloads, an XML blkx descriptor, and a koly trailer,
// the way a real hdiutil-produced image is laid out. chunkGroups[i] is the
// chunk list for block i; each block's StartSector is derived from the
// cumulative sector counts of the prior blocks.
func buildImage(chunkGroups [][]fixtureChunk) (*memRegion, uint64, error) {
	var dataFork bytes.Buffer
	mishBlocks := make([][]byte, len(chunkGroups))
	var startSector uint64

	for bi, chunks := range chunkGroups {
		var blockSectors uint64
		type placedChunk struct {
			fixtureChunk
			relStart uint64
			offset   uint64
			length   uint64
		}
		placed := make([]placedChunk, 0, len(chunks))

		for _, ch := range chunks {
			var compOffset, compLength uint64
			switch ch.chunkType {
			case ChunkRaw:
				compOffset = uint64(dataFork.Len())
				dataFork.Write(ch.raw)
				compLength = uint64(len(ch.raw))
			case ChunkZlib:
				var zbuf bytes.Buffer
				zw := zlib.NewWriter(&zbuf)
				if _, err := zw.Write(ch.raw); err != nil {
					return nil, 0, err
				}
				if err := zw.Close(); err != nil {
					return nil, 0, err
				}
				compOffset = uint64(dataFork.Len())
				dataFork.Write(zbuf.Bytes())
				compLength = uint64(zbuf.Len())
			}
			placed = append(placed, placedChunk{fixtureChunk: ch, relStart: blockSectors, offset: compOffset, length: compLength})
			blockSectors += ch.sectors
		}

		mish := make([]byte, mishHeaderSize+(len(placed)+1)*mishChunkSize)
		binary.BigEndian.PutUint32(mish[0x00:], mishMagic)
		binary.BigEndian.PutUint32(mish[0x04:], 1) // version
		binary.BigEndian.PutUint64(mish[0x08:], startSector)
		binary.BigEndian.PutUint64(mish[0x10:], blockSectors)
		binary.BigEndian.PutUint32(mish[0xCC:], uint32(len(placed)+1))

		for ci, p := range placed {
			off := mishHeaderSize + ci*mishChunkSize
			binary.BigEndian.PutUint32(mish[off+0x00:], uint32(p.chunkType))
			binary.BigEndian.PutUint64(mish[off+0x08:], p.relStart)
			binary.BigEndian.PutUint64(mish[off+0x10:], p.sectors)
			binary.BigEndian.PutUint64(mish[off+0x18:], p.offset)
			binary.BigEndian.PutUint64(mish[off+0x20:], p.length)
		}
		termOff := mishHeaderSize + len(placed)*mishChunkSize
		binary.BigEndian.PutUint32(mish[termOff+0x00:], uint32(ChunkTerminator))

		mishBlocks[bi] = mish
		startSector += blockSectors
	}

	xmlData, err := buildPlist(mishBlocks)
	if err != nil {
		return nil, 0, err
	}

	var image bytes.Buffer
	image.Write(dataFork.Bytes())
	dataForkLen := uint64(dataFork.Len())

	xmlOffset := uint64(image.Len())
	image.Write(xmlData)
	xmlLength := uint64(len(xmlData))

	trailer := make([]byte, trailerSize)
	copy(trailer[0x00:], kolySignature[:])
	binary.BigEndian.PutUint32(trailer[0x04:], 4) // version
	binary.BigEndian.PutUint32(trailer[0x08:], trailerSize)
	binary.BigEndian.PutUint64(trailer[0x10:], 0) // RunningDataFork
	binary.BigEndian.PutUint64(trailer[0x18:], 0) // DataForkOffset
	binary.BigEndian.PutUint64(trailer[0x20:], dataForkLen)
	binary.BigEndian.PutUint32(trailer[0x38:], 0) // segment number
	binary.BigEndian.PutUint32(trailer[0x3C:], 1) // segment count
	binary.BigEndian.PutUint64(trailer[0xD8:], xmlOffset)
	binary.BigEndian.PutUint64(trailer[0xE0:], xmlLength)
	binary.BigEndian.PutUint64(trailer[0x1EC:], startSector)
	image.Write(trailer)

	return &memRegion{data: image.Bytes()}, startSector, nil
}

// buildPlist renders a minimal resource-fork/blkx property list embedding
// each mish block as base64 Data. The XML is written by hand; parsing it still
// goes through the same howett.net/plist decode path production traffic does.
func buildPlist(mishBlocks [][]byte) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	buf.WriteString(`<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">` + "\n")
	buf.WriteString(`<plist version="1.0"><dict><key>resource-fork</key><dict><key>blkx</key><array>` + "\n")
	for i, mish := range mishBlocks {
		buf.WriteString(`<dict><key>ID</key><string>` + fmt.Sprintf("%d", i) + `</string>`)
		buf.WriteString(`<key>Name</key><string>block` + fmt.Sprintf("%d", i) + `</string>`)
		buf.WriteString(`<key>Data</key><data>` + base64Encode(mish) + `</data></dict>` + "\n")
	}
	buf.WriteString(`</array></dict></dict></plist>`)
	return buf.Bytes(), nil
}
