package itsdb

import (
	"encoding/binary"
)

type byteDecoder struct {
	Orig []byte
	Buf  []byte
}

func makeByteDecoder(buf []byte) byteDecoder {
	return byteDecoder{buf, buf}
}

func (d *byteDecoder) Off() int {
	return len(d.Orig) - len(d.Buf)
}

func (d *byteDecoder) Fixed64() (uint64, error) {
	if len(d.Buf) < 8 {
		return 0, errf(nil, "not enough data at offset %d: %d bytes remaining, 8 wanted", d.Off(), len(d.Buf))
	}
	v := binary.LittleEndian.Uint64(d.Buf)
	d.Buf = d.Buf[8:]
	return v, nil
}

func (d *byteDecoder) Uvarint() (uint64, error) {
	v, n := binary.Uvarint(d.Buf)
	if n <= 0 {
		return 0, errf(nil, "invalid uvarint at offset %d", d.Off())
	}
	d.Buf = d.Buf[n:]
	return v, nil
}

func (d *byteDecoder) Remaining() int {
	return len(d.Buf)
}
