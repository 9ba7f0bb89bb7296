package config

import (
	"github.com/isobench/isobench/internal/errors"
	"github.com/isobench/isobench/internal/storage"
	"github.com/isobench/isobench/internal/store"
	"github.com/isobench/isobench/pkg/types"
)

// ValidateStore checks the store section.
func (c *Config) ValidateStore() error {
	d, ok := store.LookupDialect(c.Store.Driver)
	if !ok || d.Driver == store.DriverMemory {
		return errors.InvalidSpec("store.driver must be one of sqlite3, sqlite, postgres, pgx, mysql, got %q", c.Store.Driver)
	}
	if c.Store.MaxOpenConns < 0 {
		return errors.InvalidSpec("store.max_open_conns must not be negative, got %d", c.Store.MaxOpenConns)
	}
	if c.Store.Table == "" {
		return errors.InvalidSpec("store.table is required")
	}
	return nil
}

// ValidateResults checks the results section.
func (c *Config) ValidateResults() error {
	switch c.Results.Type {
	case storage.BackendLocal:
	case storage.BackendS3:
		if c.Results.S3.Bucket == "" {
			return errors.InvalidSpec("results.s3.bucket is required when results.type is s3")
		}
	default:
		return errors.InvalidSpec("invalid results.type: %s (must be local or s3)", c.Results.Type)
	}
	return nil
}

// ValidateSwap checks the swap section.
func (c *Config) ValidateSwap() error {
	s := c.Swap
	if err := checkRuns("swap", s.Runs); err != nil {
		return err
	}
	if s.Swaps < 0 || s.Swaps >= MaxSwaps {
		return errors.InvalidSpec("swap.swaps must be in [0, %d), got %d", MaxSwaps, s.Swaps)
	}
	if err := checkThreads("swap", s.Threads); err != nil {
		return err
	}
	if err := checkIsolation("swap", s.Isolation); err != nil {
		return err
	}
	if s.High <= s.Low {
		return errors.InvalidSpec("swap.high (%d) must be greater than swap.low (%d)", s.High, s.Low)
	}
	if s.ReadDelay < 0 || s.ObserverDelay < 0 {
		return errors.InvalidSpec("swap delays must not be negative")
	}
	// the observer holds one connection next to every swap worker
	return c.checkPool("swap", s.Threads+1)
}

// ValidateGenerate checks the generate section.
func (c *Config) ValidateGenerate() error {
	g := c.Generate
	if g.SpecFile == "" {
		return errors.InvalidSpec("generate.specfile is required")
	}
	if g.NumTuples < 0 {
		return errors.InvalidSpec("generate.numtuples must not be negative, got %d", g.NumTuples)
	}
	if g.NumKeys < 0 {
		return errors.InvalidSpec("generate.numkeys must not be negative, got %d", g.NumKeys)
	}
	return nil
}

// ValidateWrites checks the writes section.
func (c *Config) ValidateWrites() error {
	w := c.Writes
	if err := checkRuns("writes", w.Runs); err != nil {
		return err
	}
	if err := checkThreads("writes", w.Threads); err != nil {
		return err
	}
	if err := c.checkPool("writes", w.Threads); err != nil {
		return err
	}
	if err := checkIsolation("writes", w.Isolation); err != nil {
		return err
	}
	mode, err := types.ParseWriteMode(w.Mode)
	if err != nil {
		return errors.InvalidSpec("writes.mode: %v", err)
	}
	trans, err := types.ParseTransMode(w.Trans)
	if err != nil {
		return errors.InvalidSpec("writes.trans: %v", err)
	}
	if mode == types.WriteUpdate1 && trans != types.TransOne {
		return errors.InvalidSpec("writes.trans must be 1 for update1")
	}
	if w.StatementFile == "" {
		return errors.InvalidSpec("writes.statement_file is required")
	}
	if mode == types.WriteUpdate1 {
		return nil
	}
	if w.N < 0 || w.N > MaxWrites {
		return errors.InvalidSpec("writes.n must be in [0, %d], got %d", MaxWrites, w.N)
	}
	if w.SpecFile == "" {
		return errors.InvalidSpec("writes.specfile is required for %s", mode)
	}
	if w.NumKeys < 0 {
		return errors.InvalidSpec("writes.numkeys must not be negative, got %d", w.NumKeys)
	}
	if mode == types.WriteUpdateN && len(w.Attributes) == 0 {
		return errors.InvalidSpec("writes.attributes are required for updateN")
	}
	return checkAttributes("writes", w.Attributes)
}

// ValidateReads checks the reads section.
func (c *Config) ValidateReads() error {
	r := c.Reads
	if err := checkRuns("reads", r.Runs); err != nil {
		return err
	}
	if r.Queries < 0 {
		return errors.InvalidSpec("reads.queries must not be negative, got %d", r.Queries)
	}
	if err := checkIsolation("reads", r.Isolation); err != nil {
		return err
	}
	if r.QueryFile == "" {
		return errors.InvalidSpec("reads.query_file is required")
	}
	if len(r.Attributes) > 0 && r.SpecFile == "" {
		return errors.InvalidSpec("reads.specfile is required when attributes are bound")
	}
	return checkAttributes("reads", r.Attributes)
}

func checkRuns(section string, runs int) error {
	if runs < 1 || runs >= MaxRuns {
		return errors.InvalidSpec("%s.runs must be in [1, %d), got %d", section, MaxRuns, runs)
	}
	return nil
}

// checkPool requires an unlimited pool or room for need concurrent connections.
func (c *Config) checkPool(section string, need int) error {
	if n := c.Store.MaxOpenConns; n != 0 && n < need {
		return errors.InvalidSpec("store.max_open_conns is %d, %s needs 0 (unlimited) or at least %d", n, section, need)
	}
	return nil
}

func checkThreads(section string, threads int) error {
	if threads < 1 || threads > MaxThreads {
		return errors.InvalidSpec("%s.threads must be in [1, %d], got %d", section, MaxThreads, threads)
	}
	return nil
}

func checkIsolation(section, level string) error {
	if _, err := types.ParseIsolationLevel(level); err != nil {
		return errors.InvalidSpec("%s.isolation: %v", section, err)
	}
	return nil
}

func checkAttributes(section string, attrs []int) error {
	for _, a := range attrs {
		if a < 0 {
			return errors.InvalidSpec("%s.attributes must not be negative, got %d", section, a)
		}
	}
	return nil
}
