package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"slices"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"learnedkv/pkg/common"
	"learnedkv/pkg/config"
	"learnedkv/pkg/core"
	"learnedkv/pkg/core/learned"
	"learnedkv/pkg/logging"
)

func main() {
	configPath := flag.String("config", "", "YAML config file")
	n := flag.Int("n", 1_000_000, "number of keys")
	readers := flag.Int("readers", 4, "concurrent readers in the mixed run")
	seed := flag.Int64("seed", 1, "random seed")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	restore, err := logging.Install(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer restore()

	rng := rand.New(rand.NewSource(*seed))
	data := make([]uint64, *n)
	search := make([]uint64, *n)
	for i := range data {
		data[i] = uint64(rng.Int63())
		search[i] = uint64(rng.Int63())
	}
	slices.Sort(data)

	fmt.Printf("learnedkv benchmark (N=%s, epsilon=%d, base=%d, buffer=%d)\n",
		humanize.Comma(int64(*n)), cfg.Index.Epsilon, cfg.Dynamic.Base, cfg.Dynamic.BufferCapacity)
	fmt.Println("---------------------------------------------------")

	runStatic(cfg, data, search, rng)
	fmt.Println("---------------------------------------------------")
	runDynamic(cfg, data, search, rng)
	fmt.Println("---------------------------------------------------")
	runMixed(cfg, data, *readers)
}

func report(op string, elapsed time.Duration, ops int, extra string) {
	fmt.Printf("%-5s elapsed: %-12v ns/op: %-9.3f %s\n", op+":", elapsed, float64(elapsed.Nanoseconds())/float64(ops), extra)
}

func runStatic(cfg *config.Config, data, search []uint64, rng *rand.Rand) {
	opts := learned.Options{
		Epsilon:          cfg.Index.Epsilon,
		EpsilonRecursive: cfg.Index.EpsilonRecursive,
		Parallelism:      cfg.Index.Parallelism,
	}
	start := time.Now()
	idx, err := learned.BuildWithOptions(context.Background(), data, opts)
	if err != nil {
		zap.L().Fatal("static build failed", zap.Error(err))
	}
	report("make", time.Since(start), len(data), fmt.Sprintf("items: %d, height: %d", idx.Len(), idx.Height()))

	var sink int
	start = time.Now()
	for _, k := range search {
		sink += idx.Search(k).Lo
	}
	report("find", time.Since(start), len(search), fmt.Sprintf("indexBytes: %s", humanize.IBytes(uint64(idx.SizeInBytes()))))

	binNs, pgmNs := idx.BenchmarkInternal(min(len(data), 100_000), rng)
	fmt.Printf("lookup: binary search %.1f ns, learned %.1f ns (sink %d)\n", binNs, pgmNs, sink%10)
}

func runDynamic(cfg *config.Config, data, search []uint64, rng *rand.Rand) {
	pairs := make([]common.Record[uint64, uint64], len(data))
	for i, k := range data {
		pairs[i] = common.Record[uint64, uint64]{Key: k, Value: uint64(i)}
	}

	start := time.Now()
	d, err := core.BulkLoad(pairs, core.WithConfig(cfg))
	if err != nil {
		zap.L().Fatal("bulk load failed", zap.Error(err))
	}
	report("make", time.Since(start), len(pairs), sizes(d))

	dynamicFind := func() {
		misses := 0
		start := time.Now()
		for _, k := range search {
			if _, ok := d.Get(k); !ok {
				misses++
			}
		}
		report("find", time.Since(start), len(search), fmt.Sprintf("misses: %d, %s", misses, sizes(d)))
	}
	dynamicFind()

	start = time.Now()
	for i := range search {
		if err := d.Put(uint64(rng.Int63()), uint64(i)); err != nil {
			zap.L().Fatal("insert failed", zap.Error(err))
		}
	}
	report("add", time.Since(start), len(search), sizes(d))
	dynamicFind()

	// 对照组：B 树
	bt := core.NewBTreeMap[uint64, uint64](32)
	start = time.Now()
	for _, p := range pairs {
		bt.Put(p.Key, p.Value)
	}
	report("btree", time.Since(start), len(pairs), fmt.Sprintf("(%s inserts)", bt.Type()))
	start = time.Now()
	for _, k := range search {
		bt.Get(k)
	}
	report("btree", time.Since(start), len(search), "(lookups)")
}

func sizes(d *core.DynamicIndex[uint64, uint64]) string {
	return fmt.Sprintf("containerSize: %s, indexSize: %s, items: %s",
		humanize.IBytes(uint64(d.SizeInBytes())),
		humanize.IBytes(uint64(d.IndexSizeInBytes())),
		humanize.Comma(int64(d.Len())))
}

// runMixed runs readers against a single writer to show lookups are not
// blocked by merges.
func runMixed(cfg *config.Config, data []uint64, readers int) {
	if len(data) == 0 {
		return
	}
	d, err := core.NewDynamic[uint64, uint64](core.WithConfig(cfg))
	if err != nil {
		zap.L().Fatal("create failed", zap.Error(err))
	}

	var done atomic.Bool
	var lookups atomic.Int64
	var g errgroup.Group
	start := time.Now()
	g.Go(func() error {
		defer done.Store(true)
		for i, k := range data {
			if err := d.Put(k, uint64(i)); err != nil {
				return err
			}
		}
		return nil
	})
	for r := 0; r < readers; r++ {
		g.Go(func() error {
			rng := rand.New(rand.NewSource(int64(r)))
			for !done.Load() {
				d.Get(data[rng.Intn(len(data))])
				lookups.Add(1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		zap.L().Fatal("mixed run failed", zap.Error(err))
	}
	elapsed := time.Since(start)

	w := d.Workload()
	fmt.Printf("mixed: %s writes, %s lookups by %d readers in %v, %d merges, write amplification %.2f\n",
		humanize.Comma(int64(len(data))), humanize.Comma(lookups.Load()), readers, elapsed,
		w.MergeCount, float64(w.MergedEntries)/float64(max(w.WriteCount, 1)))
}
