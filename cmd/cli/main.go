package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"learnedkv/pkg/common"
	"learnedkv/pkg/config"
	"learnedkv/pkg/core"
	"learnedkv/pkg/logging"
	"learnedkv/pkg/source"
)

const Prompt = "learnedkv> "

type store = core.DynamicIndex[int64, string]

func main() {
	configPath := flag.String("config", "", "YAML config file")
	dsn := flag.String("sqlite", "", "SQLite database to bulk load from")
	table := flag.String("table", "data", "SQLite table holding (key, value) rows")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		fmt.Printf("Config error: %v\n", err)
		os.Exit(1)
	}
	restore, err := logging.Install(cfg.Log)
	if err != nil {
		fmt.Printf("Logger error: %v\n", err)
		os.Exit(1)
	}
	defer restore()

	db, err := open(cfg, *dsn, *table)
	if err != nil {
		zap.L().Error("failed to open index", zap.Error(err))
		os.Exit(1)
	}

	fmt.Printf("learnedkv CLI (epsilon=%d, base=%d, buffer=%d)\n",
		cfg.Index.Epsilon, cfg.Dynamic.Base, cfg.Dynamic.BufferCapacity)
	fmt.Println("Type 'help' for commands.")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print(Prompt)
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		parts := strings.Fields(line)
		cmd := strings.ToLower(parts[0])

		switch cmd {
		case "put", "set":
			handlePut(db, parts)
		case "get":
			handleGet(db, parts)
		case "del", "rm":
			handleDel(db, parts)
		case "scan":
			handleScan(db, parts)
		case "flush":
			handleFlush(db)
		case "levels":
			handleLevels(db)
		case "stats":
			handleStats(db)
		case "help":
			printHelp()
		case "exit", "quit":
			fmt.Println("Bye!")
			return
		default:
			fmt.Printf("Unknown command: '%s'. Type 'help'.\n", cmd)
		}
	}
}

func open(cfg *config.Config, dsn, table string) (*store, error) {
	opts := []core.Option{core.WithConfig(cfg), core.WithLogger(zap.L())}
	if dsn == "" {
		return core.NewDynamic[int64, string](opts...)
	}

	start := time.Now()
	rows, err := source.LoadSQLite(context.Background(), dsn, table)
	if err != nil {
		return nil, err
	}
	pairs := make([]common.Record[int64, string], len(rows))
	for i, r := range rows {
		pairs[i] = common.Record[int64, string]{Key: r.Key, Value: string(r.Value)}
	}
	db, err := core.BulkLoad(pairs, opts...)
	if err != nil {
		return nil, err
	}
	fmt.Printf("Loaded %d records from %s in %v\n", len(pairs), dsn, time.Since(start))
	return db, nil
}

func parseKey(s string) (int64, bool) {
	key, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		fmt.Println("Error: Key must be an integer (e.g., 1001)")
		return 0, false
	}
	return key, true
}

func handlePut(db *store, parts []string) {
	if len(parts) < 3 {
		fmt.Println("Usage: put <key_int> <value_string>")
		return
	}
	key, ok := parseKey(parts[1])
	if !ok {
		return
	}
	value := strings.Join(parts[2:], " ")

	start := time.Now()
	if err := db.Put(key, value); err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Printf("OK (%v)\n", time.Since(start))
}

func handleGet(db *store, parts []string) {
	if len(parts) < 2 {
		fmt.Println("Usage: get <key_int>")
		return
	}
	key, ok := parseKey(parts[1])
	if !ok {
		return
	}

	start := time.Now()
	val, err := db.Find(key)
	duration := time.Since(start)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Printf("\"%s\" (%v)\n", val, duration)
}

func handleDel(db *store, parts []string) {
	if len(parts) < 2 {
		fmt.Println("Usage: del <key_int>")
		return
	}
	key, ok := parseKey(parts[1])
	if !ok {
		return
	}

	start := time.Now()
	if err := db.Delete(key); err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Printf("Deleted (%v)\n", time.Since(start))
}

func handleScan(db *store, parts []string) {
	if len(parts) < 3 {
		fmt.Println("Usage: scan <start_key> <end_key>")
		return
	}
	startKey, err1 := strconv.ParseInt(parts[1], 10, 64)
	endKey, err2 := strconv.ParseInt(parts[2], 10, 64)
	if err1 != nil || err2 != nil {
		fmt.Println("Error: Keys must be integers")
		return
	}

	fmt.Printf("Scanning range [%d, %d]...\n", startKey, endKey)
	start := time.Now()
	var records []common.Record[int64, string]
	db.Scan(startKey, endKey, func(k int64, v string) bool {
		records = append(records, common.Record[int64, string]{Key: k, Value: v})
		return true
	})
	duration := time.Since(start)

	fmt.Printf("Found %d records (%v):\n", len(records), duration)
	for i, rec := range records {
		if i >= 20 {
			fmt.Printf("... and %d more\n", len(records)-20)
			break
		}
		fmt.Printf("  [%d] -> %s\n", rec.Key, rec.Value)
	}
}

func handleFlush(db *store) {
	start := time.Now()
	if err := db.Flush(); err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Printf("Flushed (%v)\n", time.Since(start))
}

func handleLevels(db *store) {
	levels := db.Levels()
	if len(levels) == 0 {
		fmt.Println("No levels yet, all entries are buffered.")
		return
	}
	for _, l := range levels {
		fmt.Printf("  L%d: %d/%d entries, %d tombstones, %d segments, height %d, index %s\n",
			l.Level, l.Entries, l.Capacity, l.Tombstones, l.Segments, l.Height,
			humanize.IBytes(uint64(l.IndexBytes)))
	}
}

func handleStats(db *store) {
	stats := db.Stats()
	names := make([]string, 0, len(stats))
	for name := range stats {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("  %-20s %v\n", name, stats[name])
	}
	fmt.Printf("  %-20s %s\n", "size", humanize.IBytes(uint64(db.SizeInBytes())))
	fmt.Printf("  %-20s %s\n", "live_keys", humanize.Comma(int64(db.Len())))
}

func printHelp() {
	fmt.Println(`
Commands:
  put <key> <value>      Insert/Update record
  get <key>              Retrieve record
  del <key>              Delete record
  scan <start> <end>     Range query (inclusive)
  flush                  Merge the write buffer into the levels
  levels                 Show per-level layout
  stats                  Show counters and sizes
  exit                   Exit CLI
	`)
}
