// Command gzinspect decodes a GZIP member from scratch and reports its
// header, blocks and per-item decode trace, mirroring the original
// inspector's print_gzip_info dump.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/bantic/gzinspect/deflate"
	"github.com/bantic/gzinspect/gzip"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("gzinspect", flag.ExitOnError)
	out := fs.String("o", "", "write decoded bytes to this path")
	debug := fs.Bool("debug", false, "print header, blocks and decode trace")
	asJSON := fs.Bool("json", false, "emit header, blocks, trace and crc as JSON")
	maxTraceItems := fs.Int("max-trace-items", 0, "cap the number of decode trace items collected (0 = unbounded)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: gzinspect [-o path] [-debug] [-json] <gzip-file>")
	}

	f, err := os.Open(fs.Arg(0))
	if err != nil {
		return err
	}
	defer f.Close()

	opts := deflate.Options{EmitTrace: *debug || *asJSON}
	if *maxTraceItems > 0 {
		opts.MaxTraceItems = maxTraceItems
	}

	res, err := gzip.Decode(f, opts)
	if err != nil {
		return err
	}

	if *out != "" {
		if err := os.WriteFile(*out, res.Data, 0o644); err != nil {
			return err
		}
	}

	if *asJSON {
		return printJSON(res)
	}
	if *debug {
		printDebug(res)
	}

	return nil
}

type jsonReport struct {
	Header         gzip.Header          `json:"header"`
	Blocks         []deflate.Block      `json:"blocks"`
	Trace          []deflate.DecodeItem `json:"trace"`
	CRC32          uint32               `json:"crc32"`
	ISize          uint32               `json:"isize"`
	CompressedSize int                  `json:"compressed_size"`
	Valid          bool                 `json:"valid"`
}

func printJSON(res *gzip.Result) error {
	report := jsonReport{
		Header:         res.Header,
		Blocks:         res.Blocks,
		Trace:          res.Trace,
		CRC32:          res.CRC32,
		ISize:          res.ISize,
		CompressedSize: res.CompressedSize,
		Valid:          res.CRCValid() && res.SizeValid(),
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

func printDebug(res *gzip.Result) {
	fmt.Println("gzip info")
	fmt.Print(res.Header)
	fmt.Printf("uncompressed data size: %d bytes (mod 2^32)\n", res.ISize)
	fmt.Printf("compressed body size: %d bytes\n", res.CompressedSize)
	fmt.Printf("crc: %08x (valid=%t)\n", res.CRC32, res.CRCValid())
	fmt.Printf("size valid: %t\n", res.SizeValid())

	fmt.Printf("decoded %d blocks\n", len(res.Blocks))
	for i, block := range res.Blocks {
		fmt.Printf("block %d: encoding=%s last=%t items=%d\n", i, block.Encoding, block.IsLast, len(block.Items))
	}

	fmt.Printf("decode trace: %d items\n", len(res.Trace))
	for _, item := range res.Trace {
		fmt.Printf("\t%s\n", item)
	}
}
