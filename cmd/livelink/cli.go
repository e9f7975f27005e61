package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/uell/livelink/internal/config"
	"github.com/uell/livelink/internal/database"
	gormstorage "github.com/uell/livelink/internal/storage/gorm"
	"github.com/uell/livelink/internal/storage/memory"
	v1 "github.com/uell/livelink/internal/storage/memory/export/v1"
)

// runCommand runs a one-shot subcommand against the session store.
func runCommand(name string, args []string, out io.Writer) error {
	switch strings.ToLower(name) {
	case "sessions":
		return listSessions(args, out)
	case "export":
		return exportSessions(args, out)
	case "version":
		_, err := fmt.Fprintf(out, "%s %s (%s)\n", AppName, Version, BuildDate)
		return err
	default:
		return fmt.Errorf("unknown command %q (want sessions, export or version)", name)
	}
}

// openStore connects to the sqlite file at dbPath, the newest sqlite dump
// when sqlite recording is configured, or Postgres otherwise.
func openStore(dbPath string) (*database.Manager, error) {
	mgr := database.NewManager(ZLogger)

	storageCfg := config.GetStorageConfig()
	if dbPath == "" && strings.Contains(storageCfg.Type, "sqlite") {
		dumps, err := database.FindDumps(storageCfg.SQLite.OutputDir)
		if err != nil {
			return nil, fmt.Errorf("looking for sqlite dumps: %w", err)
		}
		if len(dumps) == 0 {
			return nil, fmt.Errorf("no sqlite dumps in %s", storageCfg.SQLite.OutputDir)
		}
		dbPath = dumps[0]
	}

	if dbPath != "" {
		if err := mgr.ConnectSQLite(dbPath); err != nil {
			return nil, err
		}
		return mgr, nil
	}
	if err := mgr.ConnectPostgres(config.GetDBConfig()); err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	return mgr, nil
}

func listSessions(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("sessions", flag.ContinueOnError)
	dbPath := fs.String("db", "", "sqlite database file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	mgr, err := openStore(*dbPath)
	if err != nil {
		return err
	}
	defer mgr.Close()

	sessions, err := gormstorage.ListSessions(mgr.DB)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTARTED\tPEER\tENCODING\tDURATION\tTICKS\tSENT")
	for _, s := range sessions {
		duration := "running"
		if !s.EndTime.IsZero() {
			duration = s.EndTime.Sub(s.StartTime).Round(time.Second).String()
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			s.ID,
			s.StartTime.Local().Format(time.DateTime),
			s.Peer,
			s.Encoding,
			duration,
			humanize.Comma(int64(s.Ticks)),
			humanize.Bytes(s.BytesSent),
		)
	}
	return tw.Flush()
}

func exportSessions(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	dbPath := fs.String("db", "", "sqlite database file")
	outDir := fs.String("out", config.GetStorageConfig().Memory.OutputDir, "output directory")
	compress := fs.Bool("gzip", true, "gzip the JSON output")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return errors.New("no session IDs provided")
	}

	ids := make([]uint, 0, fs.NArg())
	for _, arg := range fs.Args() {
		id, err := strconv.ParseUint(arg, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid session ID %q", arg)
		}
		ids = append(ids, uint(id))
	}

	mgr, err := openStore(*dbPath)
	if err != nil {
		return err
	}
	defer mgr.Close()

	for _, id := range ids {
		start := time.Now()
		rec, err := gormstorage.LoadSession(mgr.DB, id)
		if err != nil {
			return err
		}

		b := v1.NewBuilder(rec.Session)
		for i := range rec.Frames {
			b.AddFrame(&rec.Frames[i])
		}
		for i := range rec.Ticks {
			b.AddTick(&rec.Ticks[i])
		}

		path, err := memory.WriteExport(*outDir, b.Build(rec.Session), *compress)
		if err != nil {
			return fmt.Errorf("exporting session %d: %w", id, err)
		}
		fmt.Fprintf(out, "session %d: %d frames, %d ticks -> %s (%s)\n",
			id, len(rec.Frames), len(rec.Ticks), path, time.Since(start).Round(time.Millisecond))
	}
	return nil
}
