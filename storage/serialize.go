package storage

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"

	"github.com/sirixgo/sirixgo/internal/xerrors"
	"github.com/sirixgo/sirixgo/page"
	"github.com/sirixgo/sirixgo/pageref"
)

// crcTable is the Castagnoli polynomial used for page checksums.
var crcTable = crc32.MakeTable(crc32.Castagnoli)

// serializePage encodes a page's header, dewey region, populated slots
// and overflow map into its decompressed on-disk byte layout, trailed by
// a CRC32 checksum for CorruptFragment detection on read.
func serializePage(p *page.Page) []byte {
	var buf bytes.Buffer

	buf.WriteByte(byte(p.IndexType))
	writeUint64(&buf, p.PageKey)
	writeUint64(&buf, p.Revision)

	writeUint32(&buf, uint32(len(p.Dewey)))
	buf.Write(p.Dewey)

	populated := 0
	for i := 0; i < page.SlotsPerPage; i++ {
		if p.Populated(i) {
			populated++
		}
	}
	writeUint32(&buf, uint32(populated))
	for i := 0; i < page.SlotsPerPage; i++ {
		if !p.Populated(i) {
			continue
		}
		writeUint32(&buf, uint32(i))
		writeUint32(&buf, uint32(len(p.Slots[i])))
		buf.Write(p.Slots[i])
	}

	writeUint32(&buf, uint32(len(p.Overflow)))
	for slot, ptr := range p.Overflow {
		writeUint32(&buf, slot)
		writeUint64(&buf, ptr)
	}

	sum := crc32.Checksum(buf.Bytes(), crcTable)
	writeUint32(&buf, sum)

	return buf.Bytes()
}

// deserializePage reverses serializePage, returning CorruptFragment if
// the trailing checksum does not match.
func deserializePage(raw []byte) (*page.Page, error) {
	if len(raw) < 4 {
		return nil, xerrors.CorruptFragmentf("storage.deserializePage", fmt.Errorf("fragment too short: %d bytes", len(raw)))
	}
	body, wantSum := raw[:len(raw)-4], binary.BigEndian.Uint32(raw[len(raw)-4:])
	if gotSum := crc32.Checksum(body, crcTable); gotSum != wantSum {
		return nil, xerrors.CorruptFragmentf("storage.deserializePage", fmt.Errorf("checksum mismatch: got %x want %x", gotSum, wantSum))
	}

	r := bytes.NewReader(body)
	idxByte, err := r.ReadByte()
	if err != nil {
		return nil, xerrors.CorruptFragmentf("storage.deserializePage", err)
	}
	pageKey, err := readUint64(r)
	if err != nil {
		return nil, xerrors.CorruptFragmentf("storage.deserializePage", err)
	}
	revision, err := readUint64(r)
	if err != nil {
		return nil, xerrors.CorruptFragmentf("storage.deserializePage", err)
	}

	deweyLen, err := readUint32(r)
	if err != nil {
		return nil, xerrors.CorruptFragmentf("storage.deserializePage", err)
	}
	var dewey []byte
	if deweyLen > 0 {
		dewey = make([]byte, deweyLen)
		if _, err := io.ReadFull(r, dewey); err != nil {
			return nil, xerrors.CorruptFragmentf("storage.deserializePage", err)
		}
	}

	p := page.New(pageref.IndexType(idxByte), pageKey, revision)
	p.Dewey = dewey

	populated, err := readUint32(r)
	if err != nil {
		return nil, xerrors.CorruptFragmentf("storage.deserializePage", err)
	}
	for i := uint32(0); i < populated; i++ {
		slot, err := readUint32(r)
		if err != nil {
			return nil, xerrors.CorruptFragmentf("storage.deserializePage", err)
		}
		payloadLen, err := readUint32(r)
		if err != nil {
			return nil, xerrors.CorruptFragmentf("storage.deserializePage", err)
		}
		payload := make([]byte, payloadLen)
		if payloadLen > 0 {
			if _, err := io.ReadFull(r, payload); err != nil {
				return nil, xerrors.CorruptFragmentf("storage.deserializePage", err)
			}
		}
		if int(slot) >= page.SlotsPerPage {
			return nil, xerrors.CorruptFragmentf("storage.deserializePage", fmt.Errorf("slot index %d out of range", slot))
		}
		p.Set(int(slot), payload)
	}

	overflowCount, err := readUint32(r)
	if err != nil {
		return nil, xerrors.CorruptFragmentf("storage.deserializePage", err)
	}
	if overflowCount > 0 {
		p.Overflow = make(map[uint32]uint64, overflowCount)
		for i := uint32(0); i < overflowCount; i++ {
			slot, err := readUint32(r)
			if err != nil {
				return nil, xerrors.CorruptFragmentf("storage.deserializePage", err)
			}
			ptr, err := readUint64(r)
			if err != nil {
				return nil, xerrors.CorruptFragmentf("storage.deserializePage", err)
			}
			p.Overflow[slot] = ptr
		}
	}

	return p, nil
}

func writeUint32(buf *bytes.Buffer, v uint32) {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	buf.Write(tmp[:])
}

func writeUint64(buf *bytes.Buffer, v uint64) {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], v)
	buf.Write(tmp[:])
}

func readUint32(r *bytes.Reader) (uint32, error) {
	var tmp [4]byte
	if _, err := io.ReadFull(r, tmp[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(tmp[:]), nil
}

func readUint64(r *bytes.Reader) (uint64, error) {
	var tmp [8]byte
	if _, err := io.ReadFull(r, tmp[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(tmp[:]), nil
}
