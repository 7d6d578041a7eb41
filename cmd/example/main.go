package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"learnedkv/pkg/config"
	"learnedkv/pkg/core/learned"
	"learnedkv/pkg/logging"
	"learnedkv/pkg/source"
)

func main() {
	filename := flag.String("f", "in.txt", "file with one key per line")
	strs := flag.Bool("strings", false, "treat each line as a string and index its 8-byte prefix")
	epsilon := flag.Int("eps", 8, "error bound of the data level")
	verbose := flag.Bool("v", false, "print every key read and the diagnostics sample")
	flag.Parse()

	level := "info"
	if *verbose {
		level = "debug"
	}
	restore, err := logging.Install(config.LogConfig{Level: level, Development: true})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer restore()

	keys, err := readKeys(*filename, *strs)
	if err != nil {
		zap.L().Fatal("failed to read keys", zap.String("file", *filename), zap.Error(err))
	}
	for _, k := range keys {
		zap.L().Debug("read key", zap.Uint64("key", k))
	}
	slices.Sort(keys)

	start := time.Now()
	idx, err := learned.Build(keys, *epsilon)
	if err != nil {
		zap.L().Fatal("build failed", zap.Error(err))
	}
	elapsed := time.Since(start)

	nsPerOp := 0.0
	ratio := 0.0
	if len(keys) > 0 {
		nsPerOp = float64(elapsed.Nanoseconds()) / float64(len(keys))
		ratio = float64(idx.SizeInBytes()) / float64(len(keys)*8)
	}
	fmt.Printf("make: elapsed: %v, ns/op: %.3f, itemsInContainer: %d, indexSize: %s, indexRatio: %f\n",
		elapsed, nsPerOp, len(keys), humanize.IBytes(uint64(idx.SizeInBytes())), ratio)

	for i, seg := range idx.Segments() {
		fmt.Printf("segment: %d, m: %16.15f, b: %d, key: %#016x\n", i, seg.Slope, seg.Intercept, seg.Key)
	}
	fmt.Println()

	for i, off := range idx.LevelOffsets() {
		fmt.Printf("level i: %d, index: %d\n", i, off)
	}
	fmt.Println()

	for _, k := range probes(keys) {
		ap := idx.Search(k)
		seg := idx.SegmentForKey(k)
		fmt.Printf("key: %#016x, pos: %d, window: [%d, %d], segment key: %#016x, found: %t\n",
			k, ap.Pos, ap.Lo, ap.Hi, seg.Key, idx.Contains(k))
	}

	if *verbose {
		for _, p := range idx.ExportDiagnostics(32) {
			fmt.Printf("diag: key: %d, real: %d, predicted: %d, error: %d\n", p.Key, p.RealPos, p.PredictedPos, p.Error)
		}
	}
}

func readKeys(path string, strs bool) ([]uint64, error) {
	if !strs {
		return source.ReadKeysFile[uint64](path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return source.PrefixKeys(lines), nil
}

// probes picks the first, middle and last key plus one past the end.
func probes(keys []uint64) []uint64 {
	if len(keys) == 0 {
		return []uint64{0}
	}
	return []uint64{keys[0], keys[len(keys)/2], keys[len(keys)-1], keys[len(keys)-1] + 1}
}
