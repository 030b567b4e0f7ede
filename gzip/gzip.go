// Package gzip parses an RFC 1952 GZIP member from scratch: header, a
// single deflate-compressed body, and the 8-byte trailer. It wraps
// package deflate rather than compress/flate, and exposes the full
// RFC 1952 section 2.3.1 header fields (CompressionInfo, OS, EXTRA
// subfields and all) for the inspector CLI.
package gzip

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/bantic/gzinspect/bitreader"
	"github.com/bantic/gzinspect/deflate"
)

// errGzip is the base error all package errors wrap, per the
// ianlewis-go-dictzip convention of a single root sentinel.
var errGzip = errors.New("gzip")

// ErrBadMagic indicates the first two bytes were not 0x1F 0x8B.
var ErrBadMagic = fmt.Errorf("%w: bad magic bytes", errGzip)

// ErrUnsupportedMethod indicates the compression method byte was not 8
// (DEFLATE); this package only ever decodes DEFLATE bodies.
var ErrUnsupportedMethod = fmt.Errorf("%w: unsupported compression method", errGzip)

// ErrTruncated indicates the input ended before a required header or
// trailer field could be read.
var ErrTruncated = fmt.Errorf("%w: truncated member", errGzip)

func headerErr(context string, err error) error {
	return fmt.Errorf("%w: %s: %w", errGzip, context, err)
}

// flag bits, per RFC 1952 section 2.3.1.
const (
	flagText    = 1 << 0
	flagHCRC16  = 1 << 1
	flagExtra   = 1 << 2
	flagName    = 1 << 3
	flagComment = 1 << 4
)

// Compression identifies the CM header byte. The only value this package
// accepts is Deflate; any other value is a fatal ErrUnsupportedMethod.
type Compression byte

const Deflate Compression = 8

func (c Compression) String() string {
	if c == Deflate {
		return "deflate"
	}
	return fmt.Sprintf("compression(%d)", byte(c))
}

// CompressionInfo decodes the XFL (extra-flags) byte, which compressors
// may use to hint how hard they worked, per RFC 1952 section 2.3.1.
type CompressionInfo int

const (
	CompressionInfoNone CompressionInfo = iota
	CompressionInfoMaxCompressionSlowest
	CompressionInfoFastest
)

func compressionInfoFromXFL(xfl byte) CompressionInfo {
	switch xfl {
	case 2:
		return CompressionInfoMaxCompressionSlowest
	case 4:
		return CompressionInfoFastest
	default:
		return CompressionInfoNone
	}
}

func (c CompressionInfo) String() string {
	switch c {
	case CompressionInfoMaxCompressionSlowest:
		return "max compression (slowest algorithm)"
	case CompressionInfoFastest:
		return "fastest algorithm"
	default:
		return "unspecified"
	}
}

// OS identifies the filesystem the member was produced on, per RFC 1952
// section 2.3.1. Named the way ianlewis-go-dictzip names its OSFAT..
// OSUnknown constants, which encode the same table.
type OS byte

const (
	OSFAT OS = iota
	OSAmiga
	OSVMS
	OSUnix
	OSVMCMS
	OSAtariTOS
	OSHPFS
	OSMacintosh
	OSZSystem
	OSCPM
	OSTOPS20
	OSNTFS
	OSQDOS
	OSAcorn
	OSUnknown OS = 255
)

func (o OS) String() string {
	switch o {
	case OSFAT:
		return "FAT filesystem"
	case OSAmiga:
		return "Amiga"
	case OSVMS:
		return "VMS/OpenVMS"
	case OSUnix:
		return "Unix"
	case OSVMCMS:
		return "VM/CMS"
	case OSAtariTOS:
		return "Atari TOS"
	case OSHPFS:
		return "HPFS"
	case OSMacintosh:
		return "Macintosh"
	case OSZSystem:
		return "Z-System"
	case OSCPM:
		return "CP/M"
	case OSTOPS20:
		return "TOPS-20"
	case OSNTFS:
		return "NTFS"
	case OSQDOS:
		return "QDOS"
	case OSAcorn:
		return "Acorn RISCOS"
	case OSUnknown:
		return "unknown"
	default:
		return fmt.Sprintf("os(%d)", byte(o))
	}
}

// ExtraField is one subfield of an EXTRA header block: a 2-byte ID
// followed by its payload.
type ExtraField struct {
	ID   string
	Data []byte
}

// Header is the parsed 10+ byte GZIP member header.
type Header struct {
	Compression     Compression
	CompressionInfo CompressionInfo
	MTime           uint32
	OS              OS
	IsText          bool

	Filename    string
	HasFilename bool

	Comment    string
	HasComment bool

	HeaderCRC16    uint16
	HasHeaderCRC16 bool

	ExtraFields []ExtraField
}

// String renders the header the way the CLI's -debug mode wants it:
// one field per line, omitting fields that weren't present.
func (h Header) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "compression: %s\n", h.Compression)
	fmt.Fprintf(&b, "compression info: %s\n", h.CompressionInfo)
	fmt.Fprintf(&b, "mtime: %d\n", h.MTime)
	fmt.Fprintf(&b, "os: %s\n", h.OS)
	fmt.Fprintf(&b, "text: %t\n", h.IsText)
	if h.HasFilename {
		fmt.Fprintf(&b, "filename: %q\n", h.Filename)
	}
	if h.HasComment {
		fmt.Fprintf(&b, "comment: %q\n", h.Comment)
	}
	if h.HasHeaderCRC16 {
		fmt.Fprintf(&b, "header crc16: %04x\n", h.HeaderCRC16)
	}
	for _, f := range h.ExtraFields {
		fmt.Fprintf(&b, "extra field %q: %d bytes\n", f.ID, len(f.Data))
	}
	return b.String()
}

// Result is one fully decoded GZIP member.
type Result struct {
	Header Header
	Blocks []deflate.Block
	Trace  []deflate.DecodeItem
	Data   []byte

	// CRC32 and ISize are the values read from the trailer.
	CRC32 uint32
	ISize uint32

	// CompressedSize is the number of body bytes the deflate stream
	// consumed (rounded up to the next whole byte), for the CLI's
	// -debug dump.
	CompressedSize int

	computedCRC32 uint32
}

// CRCValid reports whether the trailer's CRC-32 matches the CRC-32
// actually computed while decoding.
func (r *Result) CRCValid() bool {
	return r.CRC32 == r.computedCRC32
}

// SizeValid reports whether the trailer's ISIZE matches the decoded
// data's length mod 2^32.
func (r *Result) SizeValid() bool {
	return r.ISize == uint32(len(r.Data))
}

// Decode reads one complete GZIP member from src, fully materializing it
// (back-references may reach any prior byte of the member, and the
// trailer lives at the tail of the input), parses the header, inflates
// the body with package deflate, and validates against the trailer.
func Decode(src io.Reader, opts deflate.Options) (*Result, error) {
	raw, err := io.ReadAll(src)
	if err != nil {
		return nil, headerErr("reading member", err)
	}
	if len(raw) < 18 { // 10-byte minimal header + empty body + 8-byte trailer
		return nil, ErrTruncated
	}

	body := raw[:len(raw)-8]
	trailer := raw[len(raw)-8:]

	c := &cursor{buf: body}
	header, err := readHeader(c)
	if err != nil {
		return nil, err
	}

	br := bitreader.New(body[c.pos:])
	inflated, err := deflate.Decode(br, opts)
	if err != nil {
		return nil, err
	}
	br.DiscardExtraBits() // count a final partial byte as consumed

	return &Result{
		Header:         header,
		Blocks:         inflated.Blocks,
		Trace:          inflated.Trace,
		Data:           inflated.Data,
		CRC32:          binary.LittleEndian.Uint32(trailer[0:4]),
		ISize:          binary.LittleEndian.Uint32(trailer[4:8]),
		CompressedSize: br.BytePos(),
		computedCRC32:  inflated.CRC32,
	}, nil
}

// cursor walks a byte slice, used only while parsing the header: the
// body is handed to bitreader afterward, so there is no need to keep
// reading byte-at-a-time past that point.
type cursor struct {
	buf []byte
	pos int
}

func (c *cursor) byte() (byte, error) {
	if c.pos >= len(c.buf) {
		return 0, ErrTruncated
	}
	b := c.buf[c.pos]
	c.pos++
	return b, nil
}

func (c *cursor) take(n int) ([]byte, error) {
	if c.pos+n > len(c.buf) {
		return nil, ErrTruncated
	}
	b := c.buf[c.pos : c.pos+n]
	c.pos += n
	return b, nil
}

func (c *cursor) uint16le() (uint16, error) {
	b, err := c.take(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (c *cursor) uint32le() (uint32, error) {
	b, err := c.take(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// cString reads a zero-terminated Latin-1 string.
func (c *cursor) cString() (string, error) {
	start := c.pos
	for {
		b, err := c.byte()
		if err != nil {
			return "", headerErr("reading string field", err)
		}
		if b == 0 {
			return string(c.buf[start : c.pos-1]), nil
		}
	}
}

func readHeader(c *cursor) (Header, error) {
	magic, err := c.take(2)
	if err != nil {
		return Header{}, headerErr("magic", err)
	}
	if magic[0] != 0x1F || magic[1] != 0x8B {
		return Header{}, ErrBadMagic
	}

	cmByte, err := c.byte()
	if err != nil {
		return Header{}, headerErr("compression method", err)
	}
	if Compression(cmByte) != Deflate {
		return Header{}, fmt.Errorf("%w: %d", ErrUnsupportedMethod, cmByte)
	}

	flags, err := c.byte()
	if err != nil {
		return Header{}, headerErr("flags", err)
	}

	mtime, err := c.uint32le()
	if err != nil {
		return Header{}, headerErr("mtime", err)
	}

	xfl, err := c.byte()
	if err != nil {
		return Header{}, headerErr("extra-flags", err)
	}

	osByte, err := c.byte()
	if err != nil {
		return Header{}, headerErr("os", err)
	}

	h := Header{
		Compression:     Deflate,
		CompressionInfo: compressionInfoFromXFL(xfl),
		MTime:           mtime,
		OS:              OS(osByte),
		IsText:          flags&flagText != 0,
	}

	if flags&flagExtra != 0 {
		xlen, err := c.uint16le()
		if err != nil {
			return Header{}, headerErr("EXTRA length", err)
		}
		end := c.pos + int(xlen)
		for c.pos < end {
			idBytes, err := c.take(2)
			if err != nil {
				return Header{}, headerErr("EXTRA subfield id", err)
			}
			sublen, err := c.uint16le()
			if err != nil {
				return Header{}, headerErr("EXTRA subfield length", err)
			}
			data, err := c.take(int(sublen))
			if err != nil {
				return Header{}, headerErr("EXTRA subfield data", err)
			}
			h.ExtraFields = append(h.ExtraFields, ExtraField{
				ID:   string(idBytes),
				Data: append([]byte(nil), data...),
			})
		}
	}

	if flags&flagName != 0 {
		name, err := c.cString()
		if err != nil {
			return Header{}, err
		}
		h.Filename = name
		h.HasFilename = true
	}

	if flags&flagComment != 0 {
		comment, err := c.cString()
		if err != nil {
			return Header{}, err
		}
		h.Comment = comment
		h.HasComment = true
	}

	if flags&flagHCRC16 != 0 {
		crc16, err := c.uint16le()
		if err != nil {
			return Header{}, headerErr("header CRC-16", err)
		}
		h.HeaderCRC16 = crc16
		h.HasHeaderCRC16 = true
	}

	return h, nil
}
