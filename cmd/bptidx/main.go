// Command bptidx is an interactive shell over a single B+ tree index: it
// opens (or builds) an index against a fixed-width relation file and lets
// you insert records and run range scans from a readline prompt.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chzyer/readline"

	"bptindex/internal/btree"
	"bptindex/internal/bufferpool"
	"bptindex/internal/config"
	"bptindex/internal/relation"
	"bptindex/internal/storage"
	"bptindex/pkg/bx"
)

func main() {
	cfgPath := flag.String("config", "bptidx.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		slog.Warn("using default configuration", "configPath", *cfgPath, "err", err)
		cfg = config.Default()
	}

	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	sm := storage.NewStorageManager()
	pool := bufferpool.NewGlobalPool(sm, cfg.Storage.BufferCapacity)

	relFS := storage.LocalFileSet{Dir: cfg.Storage.Dir, Base: cfg.Storage.Base}
	relExisted, err := storage.Exists(relFS)
	if err != nil {
		return err
	}

	relBP := pool.View(relFS)
	var pageCount uint32
	if relExisted {
		pageCount, err = sm.CountPages(relFS)
		if err != nil {
			return err
		}
	}
	rel := relation.Open(cfg.Relation.Name, cfg.Relation.RecordLen, sm, relFS, relBP, pageCount)

	idxFS := storage.LocalFileSet{Dir: filepath.Join(cfg.Storage.Dir, "indexes"), Base: btree.IndexName(cfg.Relation.Name, cfg.Relation.AttrByteOffset)}
	idxBP := pool.View(idxFS)

	tree, indexName, err := btree.Open(sm, idxFS, idxBP, rel, cfg.Relation.AttrByteOffset, btree.AttrInteger)
	if err != nil {
		return fmt.Errorf("open index %s: %w", indexName, err)
	}
	defer func() { _ = tree.Close() }()
	defer func() { _ = rel.Close() }()

	fmt.Printf("index %q ready over relation %q (record_len=%d, attr_byte_offset=%d)\n",
		indexName, cfg.Relation.Name, cfg.Relation.RecordLen, cfg.Relation.AttrByteOffset)
	fmt.Println("type \\help for help")

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "bptidx> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("readline: %w", err)
	}
	defer func() { _ = rl.Close() }()

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err != nil {
			fmt.Println()
			return nil
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if handleMeta(line) {
			if line == "\\q" || line == "quit" || line == "exit" {
				return nil
			}
			continue
		}

		fields := strings.Fields(line)
		switch strings.ToLower(fields[0]) {
		case "insert":
			runInsert(rel, tree, cfg, fields[1:])
		case "append":
			runAppend(rel, tree, cfg, fields[1:])
		case "scan":
			runScan(rel, tree, fields[1:])
		default:
			fmt.Printf("unknown command: %s (try \\help)\n", fields[0])
		}
	}
}

func handleMeta(line string) bool {
	switch line {
	case "\\q", "quit", "exit":
		return true
	case "\\help":
		fmt.Println(`commands:
  insert <key> <page> <slot>            index an existing record's rid directly
  append <key> [text]                   append a new record with this key, then index it
  scan <loOp> <lo> <hiOp> <hi>          GT|GTE|LT|LTE bounds, e.g. scan GTE 10 LTE 50
  \q | quit | exit                      quit
  \help                                  show help`)
		return true
	}
	return false
}

func runInsert(_ *relation.Relation, tree *btree.Tree, _ *config.Config, args []string) {
	if len(args) != 3 {
		fmt.Println("usage: insert <key> <page> <slot>")
		return
	}
	key64, err := strconv.ParseInt(args[0], 10, 32)
	if err != nil {
		fmt.Printf("bad key: %v\n", err)
		return
	}
	page64, err := strconv.ParseUint(args[1], 10, 32)
	if err != nil {
		fmt.Printf("bad page: %v\n", err)
		return
	}
	slot64, err := strconv.ParseUint(args[2], 10, 16)
	if err != nil {
		fmt.Printf("bad slot: %v\n", err)
		return
	}

	rid := relation.RID{PageID: uint32(page64), SlotID: uint16(slot64)}
	if err := tree.InsertEntry(int32(key64), rid); err != nil {
		fmt.Printf("insert entry: %v\n", err)
		return
	}
	fmt.Printf("indexed key=%d rid=%s\n", key64, rid)
}

func runAppend(rel *relation.Relation, tree *btree.Tree, cfg *config.Config, args []string) {
	if len(args) < 1 {
		fmt.Println("usage: append <key> [text]")
		return
	}
	key64, err := strconv.ParseInt(args[0], 10, 32)
	if err != nil {
		fmt.Printf("bad key: %v\n", err)
		return
	}
	key := int32(key64)

	text := ""
	if len(args) > 1 {
		text = strings.Join(args[1:], " ")
	}

	rec := make([]byte, cfg.Relation.RecordLen)
	bx.PutU32At(rec, int(cfg.Relation.AttrByteOffset), uint32(key))
	copy(rec[cfg.Relation.AttrByteOffset+4:], text)

	rid, err := rel.Insert(rec)
	if err != nil {
		fmt.Printf("append record: %v\n", err)
		return
	}
	if err := tree.InsertEntry(key, rid); err != nil {
		fmt.Printf("insert entry: %v\n", err)
		return
	}
	fmt.Printf("appended key=%d rid=%s\n", key, rid)
}

func runScan(rel *relation.Relation, tree *btree.Tree, args []string) {
	if len(args) != 4 {
		fmt.Println("usage: scan <GT|GTE> <low> <LT|LTE> <high>")
		return
	}
	lowOp, ok := parseOp(args[0])
	if !ok {
		fmt.Printf("bad low operator: %s\n", args[0])
		return
	}
	low, err := strconv.ParseInt(args[1], 10, 32)
	if err != nil {
		fmt.Printf("bad low bound: %v\n", err)
		return
	}
	highOp, ok := parseOp(args[2])
	if !ok {
		fmt.Printf("bad high operator: %s\n", args[2])
		return
	}
	high, err := strconv.ParseInt(args[3], 10, 32)
	if err != nil {
		fmt.Printf("bad high bound: %v\n", err)
		return
	}

	if err := tree.StartScan(int32(low), lowOp, int32(high), highOp); err != nil {
		fmt.Printf("scan: %v\n", err)
		return
	}
	defer func() { _ = tree.EndScan() }()

	count := 0
	for {
		rid, err := tree.ScanNext()
		if err != nil {
			break
		}
		rec, err := rel.Get(rid)
		if err != nil {
			fmt.Printf("get %s: %v\n", rid, err)
			continue
		}
		fmt.Printf("rid=%s record=%q\n", rid, strings.TrimRight(string(rec), "\x00"))
		count++
	}
	fmt.Printf("%d match(es)\n", count)
}

func parseOp(s string) (btree.Op, bool) {
	switch strings.ToUpper(s) {
	case "GT":
		return btree.GT, true
	case "GTE":
		return btree.GTE, true
	case "LT":
		return btree.LT, true
	case "LTE":
		return btree.LTE, true
	default:
		return 0, false
	}
}
