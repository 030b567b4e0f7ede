package main

import (
	"bytes"
	ogzip "compress/gzip"
	"os"
	"path/filepath"
	"testing"
)

func writeFixture(t *testing.T, dir string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, "fixture.gz")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	w := ogzip.NewWriter(f)
	if _, err := w.Write(data); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunWritesDecodedOutput(t *testing.T) {
	dir := t.TempDir()
	want := []byte("gzinspect CLI round-trip fixture")
	src := writeFixture(t, dir, want)
	dst := filepath.Join(dir, "decoded.txt")

	if err := run([]string{"-o", dst, src}); err != nil {
		t.Fatal(err)
	}

	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("decoded output = %q, want %q", got, want)
	}
}

func TestRunRequiresExactlyOneArg(t *testing.T) {
	if err := run(nil); err == nil {
		t.Fatal("run() with no args: want error")
	}
}

func TestRunDebugDoesNotError(t *testing.T) {
	dir := t.TempDir()
	src := writeFixture(t, dir, []byte("debug mode fixture"))

	if err := run([]string{"-debug", src}); err != nil {
		t.Fatal(err)
	}
}
