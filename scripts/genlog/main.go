// genlog writes a synthetic pool allocation log for benchmarking the parser,
// the summary and the replay generator on large inputs.
//
// Usage:
//
//	go run ./scripts/genlog --out big.log.lz4 --events 5000000 --seed 7 --measure
package main

import (
	"errors"
	"flag"
	"io"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pierrec/lz4/v4"

	"github.com/Sumatoshi-tech/poolscope/pkg/alloclog"
	"github.com/Sumatoshi-tech/poolscope/pkg/replay"
	"github.com/Sumatoshi-tech/poolscope/pkg/safeconv"
	"github.com/Sumatoshi-tech/poolscope/pkg/summary"
)

func main() {
	out := flag.String("out", "", "Output log path (\".lz4\" suffix compresses)")
	events := flag.Int("events", alloclog.DefaultGenerateOptions().Events, "Number of generated events")
	seed := flag.Uint64("seed", 1, "Random seed")
	maxShift := flag.Int("max-alloc-shift", alloclog.DefaultGenerateOptions().MaxAllocShift,
		"Largest allocation is 1<<shift bytes")
	leak := flag.Bool("leak", false, "Leave pools live at the end of the log")
	measure := flag.Bool("measure", false, "Load the written log back and time summary and replay")
	profileDir := flag.String("profile-dir", "", "Directory for a heap profile taken after --measure")

	flag.Parse()

	if *out == "" {
		log.Fatal("--out is required")
	}

	generated := alloclog.Generate(alloclog.GenerateOptions{
		Events:        *events,
		Seed:          *seed,
		MaxAllocShift: *maxShift,
		Leak:          *leak,
	})

	if err := writeLog(*out, generated); err != nil {
		log.Fatalf("write log: %v", err)
	}

	info, err := os.Stat(*out)
	if err != nil {
		log.Fatalf("stat log: %v", err)
	}

	log.Printf("wrote %d events to %s (%s)", len(generated), *out, humanize.IBytes(safeconv.Bytes(info.Size())))

	if !*measure {
		return
	}

	measureLog(*out)

	if *profileDir != "" {
		if err := writeHeapProfile(*profileDir); err != nil {
			log.Fatalf("heap profile: %v", err)
		}
	}
}

func writeLog(path string, events []alloclog.Event) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	defer func() {
		err = errors.Join(err, f.Close())
	}()

	var w io.Writer = f

	if strings.HasSuffix(path, ".lz4") {
		zw := lz4.NewWriter(f)

		defer func() {
			err = errors.Join(err, zw.Close())
		}()

		w = zw
	}

	return alloclog.Write(w, events)
}

func measureLog(path string) {
	start := time.Now()

	events, err := alloclog.Load(path)
	if err != nil {
		log.Fatalf("load: %v", err)
	}

	log.Printf("parse: %d events in %v", len(events), time.Since(start))

	start = time.Now()

	rep, err := summary.Summarize(events, summary.DefaultOptions())
	if err != nil {
		log.Fatalf("summarize: %v", err)
	}

	log.Printf("summary: %v, max live pools %d, max pool size %s",
		time.Since(start), rep.MaxLivePools, humanize.IBytes(safeconv.Bytes(rep.MaxPoolSize)))

	start = time.Now()

	stats, err := replay.Write(io.Discard, events, replay.APR, replay.Options{})
	if err != nil {
		log.Fatalf("replay: %v", err)
	}

	log.Printf("replay: %v, %d statements", time.Since(start), stats.Statements)

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	log.Printf("heap in use %s, gc cycles %d", humanize.IBytes(m.HeapInuse), m.NumGC)
}

func writeHeapProfile(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	f, err := os.Create(filepath.Join(dir, "heap.prof"))
	if err != nil {
		return err
	}
	defer f.Close()

	runtime.GC()

	return pprof.WriteHeapProfile(f)
}
