package pdfexport

import (
	"bytes"
	"encoding/binary"
)

// srgbProfile synthesizes a minimal ICC v2 display profile describing
// sRGB, for use as the destination profile of the archival output intent.
// It carries the mandatory matrix/TRC tags with the standard D50-adapted
// sRGB primaries and a single-value 2.2 gamma curve.
func srgbProfile() []byte {
	type tag struct {
		sig  string
		data []byte
	}

	xyz := func(x, y, z uint32) []byte {
		var b bytes.Buffer
		b.WriteString("XYZ ")
		binary.Write(&b, binary.BigEndian, uint32(0))
		binary.Write(&b, binary.BigEndian, x)
		binary.Write(&b, binary.BigEndian, y)
		binary.Write(&b, binary.BigEndian, z)
		return b.Bytes()
	}

	desc := func(s string) []byte {
		var b bytes.Buffer
		b.WriteString("desc")
		binary.Write(&b, binary.BigEndian, uint32(0))
		binary.Write(&b, binary.BigEndian, uint32(len(s)+1))
		b.WriteString(s)
		b.WriteByte(0)
		binary.Write(&b, binary.BigEndian, uint32(0)) // unicode language
		binary.Write(&b, binary.BigEndian, uint32(0)) // unicode count
		b.Write(make([]byte, 3))                      // scriptcode + count
		b.Write(make([]byte, 67))                     // macintosh description
		return b.Bytes()
	}

	text := func(s string) []byte {
		var b bytes.Buffer
		b.WriteString("text")
		binary.Write(&b, binary.BigEndian, uint32(0))
		b.WriteString(s)
		b.WriteByte(0)
		return b.Bytes()
	}

	// Single-entry curve, u8Fixed8 gamma 2.2.
	var curve bytes.Buffer
	curve.WriteString("curv")
	binary.Write(&curve, binary.BigEndian, uint32(0))
	binary.Write(&curve, binary.BigEndian, uint32(1))
	binary.Write(&curve, binary.BigEndian, uint16(0x0233))

	d50 := xyz(0x0000f6d6, 0x00010000, 0x0000d32d)
	trc := curve.Bytes()

	tags := []tag{
		{"desc", desc("sRGB IEC61966-2.1")},
		{"wtpt", d50},
		{"cprt", text("Public Domain")},
		{"rXYZ", xyz(0x00006fa2, 0x000038f5, 0x00000390)},
		{"gXYZ", xyz(0x00006299, 0x0000b785, 0x000018da)},
		{"bXYZ", xyz(0x000024a0, 0x00000f84, 0x0000b6cf)},
		{"rTRC", trc},
		{"gTRC", trc},
		{"bTRC", trc},
	}

	headerSize := 128
	tableSize := 4 + 12*len(tags)
	offset := headerSize + tableSize
	offsets := make([]int, len(tags))
	for i, t := range tags {
		offsets[i] = offset
		offset += len(t.data)
		if pad := offset % 4; pad != 0 {
			offset += 4 - pad
		}
	}
	total := offset

	var b bytes.Buffer
	binary.Write(&b, binary.BigEndian, uint32(total))
	binary.Write(&b, binary.BigEndian, uint32(0)) // CMM type
	binary.Write(&b, binary.BigEndian, uint32(0x02100000))
	b.WriteString("mntr")
	b.WriteString("RGB ")
	b.WriteString("XYZ ")
	b.Write(make([]byte, 12)) // creation date
	b.WriteString("acsp")
	b.Write(make([]byte, 24))                     // platform, flags, manufacturer, model, attributes
	binary.Write(&b, binary.BigEndian, uint32(0)) // perceptual rendering intent
	binary.Write(&b, binary.BigEndian, uint32(0x0000f6d6))
	binary.Write(&b, binary.BigEndian, uint32(0x00010000))
	binary.Write(&b, binary.BigEndian, uint32(0x0000d32d))
	b.Write(make([]byte, 48)) // creator + reserved

	binary.Write(&b, binary.BigEndian, uint32(len(tags)))
	for i, t := range tags {
		b.WriteString(t.sig)
		binary.Write(&b, binary.BigEndian, uint32(offsets[i]))
		binary.Write(&b, binary.BigEndian, uint32(len(t.data)))
	}
	for i, t := range tags {
		b.Write(t.data)
		if next := i + 1; next < len(tags) {
			b.Write(make([]byte, offsets[next]-(offsets[i]+len(t.data))))
		} else {
			b.Write(make([]byte, total-(offsets[i]+len(t.data))))
		}
	}
	return b.Bytes()
}
