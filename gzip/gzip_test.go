package gzip

import (
	"bytes"
	ogzip "compress/gzip"
	"testing"

	"github.com/bantic/gzinspect/deflate"
)

func encodeMember(t *testing.T, data []byte, name, comment string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := ogzip.NewWriterLevel(&buf, ogzip.BestCompression)
	if err != nil {
		t.Fatal(err)
	}
	w.Name = name
	w.Comment = comment
	if _, err := w.Write(data); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestFullMemberRoundTrip(t *testing.T) {
	cases := [][]byte{
		{},
		[]byte("hello, gzip"),
		bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog. "), 200),
	}

	for _, src := range cases {
		raw := encodeMember(t, src, "sample.txt", "a test fixture")

		res, err := Decode(bytes.NewReader(raw), deflate.Options{})
		if err != nil {
			t.Fatalf("Decode(len=%d): %v", len(src), err)
		}

		if !bytes.Equal(res.Data, src) {
			t.Fatalf("Data mismatch: got %d bytes, want %d bytes", len(res.Data), len(src))
		}
		if !res.CRCValid() {
			t.Fatalf("CRCValid() = false for len=%d", len(src))
		}
		if !res.SizeValid() {
			t.Fatalf("SizeValid() = false for len=%d", len(src))
		}
		if res.Header.Compression != Deflate {
			t.Fatalf("Header.Compression = %v, want Deflate", res.Header.Compression)
		}
		if !res.Header.HasFilename || res.Header.Filename != "sample.txt" {
			t.Fatalf("Header.Filename = %q (has=%t), want sample.txt", res.Header.Filename, res.Header.HasFilename)
		}
		if res.CompressedSize <= 0 || res.CompressedSize > len(raw) {
			t.Fatalf("CompressedSize = %d, want in (0, %d]", res.CompressedSize, len(raw))
		}
		if !res.Header.HasComment || res.Header.Comment != "a test fixture" {
			t.Fatalf("Header.Comment = %q (has=%t), want %q", res.Header.Comment, res.Header.HasComment, "a test fixture")
		}
	}
}

func TestBadMagicIsFatal(t *testing.T) {
	raw := encodeMember(t, []byte("x"), "", "")
	raw[0] = 0x00

	if _, err := Decode(bytes.NewReader(raw), deflate.Options{}); err != ErrBadMagic {
		t.Fatalf("Decode: err = %v, want ErrBadMagic", err)
	}
}

func TestUnsupportedMethodIsFatal(t *testing.T) {
	raw := encodeMember(t, []byte("x"), "", "")
	raw[2] = 0x01 // not 8 (DEFLATE)

	if _, err := Decode(bytes.NewReader(raw), deflate.Options{}); err == nil {
		t.Fatal("Decode: expected error for unsupported compression method")
	}
}

func TestTruncatedMemberIsFatal(t *testing.T) {
	raw := encodeMember(t, []byte("x"), "", "")
	if _, err := Decode(bytes.NewReader(raw[:5]), deflate.Options{}); err != ErrTruncated {
		t.Fatalf("Decode: err = %v, want ErrTruncated", err)
	}
}

func TestExtraFieldRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w, err := ogzip.NewWriterLevel(&buf, ogzip.BestCompression)
	if err != nil {
		t.Fatal(err)
	}
	w.Extra = []byte{'R', 'A', 4, 0, 0xDE, 0xAD, 0xBE, 0xEF}
	if _, err := w.Write([]byte("payload")); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	res, err := Decode(bytes.NewReader(buf.Bytes()), deflate.Options{})
	if err != nil {
		t.Fatal(err)
	}

	if len(res.Header.ExtraFields) != 1 {
		t.Fatalf("ExtraFields = %+v, want 1 entry", res.Header.ExtraFields)
	}
	f := res.Header.ExtraFields[0]
	if f.ID != "RA" || !bytes.Equal(f.Data, []byte{0xDE, 0xAD, 0xBE, 0xEF}) {
		t.Fatalf("ExtraFields[0] = %+v, want ID=RA Data=deadbeef", f)
	}
}
