// Command pagestored is a minimal smoke-test binary for the page buffer
// manager: it opens (or initialises) a resource directory, runs one
// read-write transaction that stages a single page write, flushes and
// commits it, and prints the resulting revision number.
//
// This is deliberately built with the standard flag package rather than
// a command framework (see SPEC_FULL.md §6.2): it is a single-purpose
// binary with three flags, not a multi-command CLI.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirixgo/sirixgo/cache"
	"github.com/sirixgo/sirixgo/codec"
	"github.com/sirixgo/sirixgo/config"
	"github.com/sirixgo/sirixgo/epoch"
	"github.com/sirixgo/sirixgo/internal/obs"
	"github.com/sirixgo/sirixgo/page"
	"github.com/sirixgo/sirixgo/pageref"
	"github.com/sirixgo/sirixgo/storage"
	"github.com/sirixgo/sirixgo/txnmgr"
)

func main() {
	dir := flag.String("dir", "", "resource directory (created if absent)")
	payload := flag.String("payload", "hello", "payload to write into slot 0 of a CAS page")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	if *dir == "" {
		fmt.Fprintln(os.Stderr, "pagestored: -dir is required")
		os.Exit(2)
	}
	obs.SetOutput(os.Stderr, *debug)

	if err := run(*dir, *payload); err != nil {
		fmt.Fprintf(os.Stderr, "pagestored: %v\n", err)
		os.Exit(1)
	}
}

func run(dir, payload string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create resource dir: %w", err)
	}

	cfg := config.Default()
	strategy, err := cfg.Strategy()
	if err != nil {
		return err
	}

	dataFile, err := openBacking(filepath.Join(dir, "data.db"))
	if err != nil {
		return err
	}
	revsFile, err := openBacking(filepath.Join(dir, "revisions.db"))
	if err != nil {
		return err
	}
	uberFile, err := openBacking(filepath.Join(dir, "uber.db"))
	if err != nil {
		return err
	}

	c, err := codec.For(cfg.Codec)
	if err != nil {
		return err
	}
	dataInfo, err := dataFile.Stat()
	if err != nil {
		return fmt.Errorf("stat data file: %w", err)
	}
	df := storage.NewDataFile(dataFile, dataInfo.Size())
	reader := storage.NewPageReader(df, c, nil)
	writer := storage.NewPageWriter(df, c)

	revs, err := storage.OpenRevisionIndex(revsFile)
	if err != nil {
		return err
	}
	uber := storage.NewUberPage(uberFile)

	tracker := epoch.New(cfg.EpochCapacity)
	buf := cache.New(cache.Config{ShardCount: cfg.ShardCount, ByteBudget: cfg.CacheByteBudget, SweepInterval: cfg.SweepInterval}, tracker)
	defer buf.Close()

	resourceCfg := storage.NewResourceConfig(1)
	mgr := txnmgr.New(resourceCfg.DatabaseID, resourceCfg.ResourceID, buf, reader, writer, revs, uber, tracker, strategy, cfg.RestoreWindow)

	wtx, err := mgr.BeginWrite()
	if err != nil {
		return err
	}
	defer wtx.Close()

	p := page.New(pageref.CAS, 1, wtx.Revision()+1)
	p.Set(0, []byte(payload))
	if _, err := wtx.Stage(pageref.CAS, 1, p, p); err != nil {
		return err
	}

	storageKeys, err := wtx.Flush()
	if err != nil {
		return err
	}
	rootStorageKey := int64(0)
	if len(storageKeys) > 0 {
		rootStorageKey = storageKeys[0]
	}

	newRevision, err := mgr.CommitRevision(rootStorageKey)
	if err != nil {
		return err
	}

	fmt.Println(newRevision)
	return nil
}

func openBacking(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return f, nil
}
