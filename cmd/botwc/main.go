// Command botwc converts Breath of the Wild save directories between the
// Wii U and Switch layouts.
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/alecthomas/kong"
	"github.com/dustin/go-humanize"

	"github.com/FocuswithJustin/SheikahConverter/core/cas"
	"github.com/FocuswithJustin/SheikahConverter/core/errors"
	"github.com/FocuswithJustin/SheikahConverter/core/savecodec"
	"github.com/FocuswithJustin/SheikahConverter/core/sqlite"
	"github.com/FocuswithJustin/SheikahConverter/internal/archive"
	"github.com/FocuswithJustin/SheikahConverter/internal/config"
	"github.com/FocuswithJustin/SheikahConverter/internal/converter"
	"github.com/FocuswithJustin/SheikahConverter/internal/history"
	"github.com/FocuswithJustin/SheikahConverter/internal/logging"
	"github.com/FocuswithJustin/SheikahConverter/internal/savedir"
	"github.com/FocuswithJustin/SheikahConverter/internal/validation"
)

const version = "1.2.0"

// Globals are flags shared by every command.
type Globals struct {
	Config    string `name:"config" help:"Path to botwc.toml" type:"path"`
	LogFormat string `name:"log-format" help:"Log format (text, json)"`
	HistoryDB string `name:"history-db" help:"Conversion history database" type:"path"`

	stdin  io.Reader        `kong:"-"`
	stdout io.Writer        `kong:"-"`
	now    func() time.Time `kong:"-"`
}

// CLI defines the command-line interface for botwc.
type CLI struct {
	Globals

	Convert    ConvertCmd    `cmd:"" help:"Convert a save directory to the other console"`
	ConvertZip ConvertZipCmd `cmd:"" name:"convert-zip" help:"Convert a zipped save directory into a new zip"`
	Detect     DetectCmd     `cmd:"" help:"Show platform and version of save files"`
	History    HistoryGroup  `cmd:"" help:"Conversion history"`
	Backup     BackupGroup   `cmd:"" help:"Input backups"`
	Version    VersionCmd    `cmd:"" help:"Print version information"`
}

// HistoryGroup contains history operations.
type HistoryGroup struct {
	List   HistoryListCmd   `cmd:"" help:"List recent conversions"`
	Show   HistoryShowCmd   `cmd:"" help:"Show one conversion with file digests"`
	Verify HistoryVerifyCmd `cmd:"" help:"Check converted files against their recorded digests"`
}

// BackupGroup contains backup operations.
type BackupGroup struct {
	List    BackupListCmd    `cmd:"" help:"List the files of a backup archive"`
	Restore BackupRestoreCmd `cmd:"" help:"Unpack a backup archive into an empty directory"`
}

func (g *Globals) out() io.Writer {
	if g.stdout == nil {
		return os.Stdout
	}
	return g.stdout
}

func (g *Globals) in() io.Reader {
	if g.stdin == nil {
		return os.Stdin
	}
	return g.stdin
}

func (g *Globals) clock() time.Time {
	if g.now == nil {
		return time.Now()
	}
	return g.now()
}

// setup loads the config, applies global flag overrides and initializes
// the logger.
func (g *Globals) setup(verbose bool) (*config.Config, error) {
	path := g.Config
	if path == "" {
		path = config.DefaultPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if g.LogFormat != "" {
		cfg.LogFormat = g.LogFormat
	}
	if g.HistoryDB != "" {
		cfg.HistoryDB = g.HistoryDB
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logging.InitLogger(cfg.Logging())
	return cfg, nil
}

func openHistory(cfg *config.Config) (*history.Store, error) {
	if cfg.HistoryDB == "" {
		return nil, errors.NewUnsupported("history", "no history database configured")
	}
	return history.Open(cfg.HistoryDB)
}

func openHistoryReadOnly(cfg *config.Config) (*history.Store, error) {
	if cfg.HistoryDB == "" {
		return nil, errors.NewUnsupported("history", "no history database configured")
	}
	return history.OpenReadOnly(cfg.HistoryDB)
}

// ConvertCmd converts a save directory.
type ConvertCmd struct {
	Input   string `arg:"" help:"Save directory to convert" type:"existingdir"`
	Output  string `arg:"" optional:"" help:"Output directory (default ./botw-<timestamp>)" type:"path"`
	Force   bool   `short:"f" help:"Replace a non-empty output directory"`
	Yes     bool   `short:"y" help:"Do not ask before replacing the output"`
	Verbose bool   `short:"v" help:"Log every detected and converted file"`
	Backup  string `help:"Write a tar.xz of the input to this directory first" type:"path"`
	Workers int    `help:"Files converted in parallel (0 uses the config value)"`
}

func (c *ConvertCmd) Run(ctx context.Context, g *Globals) error {
	cfg, err := g.setup(c.Verbose)
	if err != nil {
		return err
	}

	output := c.Output
	if output == "" {
		output = filepath.Join(cfg.OutputDir, savedir.DefaultOutputName(g.clock()))
	}
	if err := validation.ValidatePath(output); err != nil {
		return fmt.Errorf("invalid output path: %w", err)
	}

	conv := c.converter(cfg, g)
	if store, err := openHistory(cfg); err == nil {
		defer store.Close()
		conv.History = store
	} else if !errors.Is(err, errors.ErrUnsupported) {
		logging.Warn("history disabled", "error", err)
	}

	report, err := conv.Run(ctx, c.Input, output)
	if errors.Is(err, converter.ErrAborted) {
		fmt.Fprintln(g.out(), "Aborted.")
	}
	if err != nil {
		return err
	}

	printReport(g.out(), report)
	fmt.Fprintln(g.out(), "Finished!")
	return nil
}

func (c *ConvertCmd) converter(cfg *config.Config, g *Globals) *converter.Converter {
	conv := &converter.Converter{
		Workers: cfg.Workers,
		Force:   c.Force,
		Backup:  cfg.BackupDir,
		Now:     g.clock,
	}
	if c.Workers > 0 {
		conv.Workers = c.Workers
	}
	if c.Backup != "" {
		conv.Backup = c.Backup
	}
	if c.Force && !c.Yes {
		conv.Confirm = &promptConfirmer{in: bufio.NewReader(g.in()), out: g.out()}
	}
	return conv
}

func printReport(w io.Writer, r *converter.Report) {
	fmt.Fprintf(w, "Converted %d save files (%s) from %s to %s, game %s\n",
		len(r.Files), humanize.Bytes(uint64(r.Bytes())),
		savecodec.PrettyPlatform(r.Source), savecodec.PrettyPlatform(r.Target), r.Version)
	fmt.Fprintf(w, "Copied %d images\n", r.Images)
	if r.Backup != "" {
		fmt.Fprintf(w, "Backup: %s\n", r.Backup)
	}
	fmt.Fprintf(w, "Output: %s\n", r.OutputDir)
	fmt.Fprintf(w, "Run: %s (%s)\n", r.RunID, r.Duration.Round(time.Millisecond))
}

// promptConfirmer asks on the terminal and accepts y/yes or n/no.
type promptConfirmer struct {
	in  *bufio.Reader
	out io.Writer
}

func (p *promptConfirmer) Confirm(prompt string) (bool, error) {
	for {
		fmt.Fprintf(p.out, "%s [y/n] ", prompt)
		line, err := p.in.ReadString('\n')
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		}
		if err == io.EOF {
			return false, nil
		}
		if err != nil {
			return false, err
		}
	}
}

// ConvertZipCmd converts a zipped save directory.
type ConvertZipCmd struct {
	Input   string `arg:"" help:"Zip holding a save directory" type:"existingfile"`
	Output  string `arg:"" help:"Zip to write" type:"path"`
	Verbose bool   `short:"v" help:"Log every detected and converted file"`
}

func (c *ConvertZipCmd) Run(ctx context.Context, g *Globals) error {
	cfg, err := g.setup(c.Verbose)
	if err != nil {
		return err
	}

	conv := &converter.Converter{Workers: cfg.Workers, Now: g.clock}
	if store, err := openHistory(cfg); err == nil {
		defer store.Close()
		conv.History = store
	} else if !errors.Is(err, errors.ErrUnsupported) {
		logging.Warn("history disabled", "error", err)
	}

	report, err := conv.ConvertZip(ctx, c.Input, c.Output)
	if err != nil {
		return err
	}
	printReport(g.out(), report)
	fmt.Fprintln(g.out(), "Finished!")
	return nil
}

// DetectCmd prints the platform and version of save files.
type DetectCmd struct {
	Paths []string `arg:"" help:"Save files or save directories" type:"path"`
}

func (c *DetectCmd) Run(g *Globals) error {
	if _, err := g.setup(false); err != nil {
		return err
	}

	tw := tabwriter.NewWriter(g.out(), 0, 4, 2, ' ', 0)
	failed := 0
	for _, path := range c.Paths {
		files, err := detectTargets(path)
		if err != nil {
			return err
		}
		for _, f := range files {
			if !detectFile(tw, f) {
				failed++
			}
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d file(s) not recognized: %w", failed, errors.ErrUnrecognizedFormat)
	}
	return nil
}

// detectTargets expands a save directory into its save files.
func detectTargets(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.NewIO("stat", path, err)
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	layout, err := savedir.Scan(path)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, rel := range layout.SaveFiles() {
		files = append(files, filepath.Join(path, rel))
	}
	return files, nil
}

func detectFile(w io.Writer, path string) bool {
	kind := savecodec.KindFromName(path)
	data, err := readHeader(path)
	if err != nil {
		fmt.Fprintf(w, "%s\t%s\terror: %v\n", path, kind, err)
		return false
	}
	h, err := savecodec.Detect(data)
	if err != nil {
		fmt.Fprintf(w, "%s\t%s\tunrecognized\n", path, kind)
		return false
	}
	fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", path, kind, savecodec.PrettyPlatform(h.Platform), h.Version)
	return true
}

func readHeader(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf := make([]byte, savecodec.HeaderSize)
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, err
	}
	return buf[:n], nil
}

// HistoryListCmd lists recent runs.
type HistoryListCmd struct {
	Limit int `help:"Number of runs to show" default:"20"`
}

func (c *HistoryListCmd) Run(ctx context.Context, g *Globals) error {
	cfg, err := g.setup(false)
	if err != nil {
		return err
	}
	store, err := openHistoryReadOnly(cfg)
	if errors.Is(err, errors.ErrNotFound) {
		fmt.Fprintln(g.out(), "No conversions recorded.")
		return nil
	}
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.List(ctx, c.Limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(g.out(), "No conversions recorded.")
		return nil
	}

	tw := tabwriter.NewWriter(g.out(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tWHEN\tCONVERSION\tFILES\tINPUT")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s -> %s\t%d\t%s\n",
			r.ID, humanize.RelTime(r.StartedAt, g.clock(), "ago", "from now"),
			savecodec.PrettyPlatform(r.Source), savecodec.PrettyPlatform(r.Target),
			len(r.Files), r.InputDir)
	}
	return tw.Flush()
}

// HistoryShowCmd prints one run.
type HistoryShowCmd struct {
	ID string `arg:"" help:"Run ID"`
}

func (c *HistoryShowCmd) Run(ctx context.Context, g *Globals) error {
	cfg, err := g.setup(false)
	if err != nil {
		return err
	}
	store, err := openHistoryReadOnly(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	r, err := store.Get(ctx, c.ID)
	if err != nil {
		return err
	}

	w := g.out()
	fmt.Fprintf(w, "Run:      %s\n", r.ID)
	fmt.Fprintf(w, "Started:  %s\n", r.StartedAt.Format(time.RFC3339))
	fmt.Fprintf(w, "Duration: %s\n", r.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "From:     %s (%s)\n", savecodec.PrettyPlatform(r.Source), r.InputDir)
	fmt.Fprintf(w, "To:       %s (%s)\n", savecodec.PrettyPlatform(r.Target), r.OutputDir)
	fmt.Fprintf(w, "Version:  %s\n", r.Version)
	fmt.Fprintf(w, "Images:   %d\n", r.Images)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FILE\tKIND\tSIZE\tINPUT\tOUTPUT")
	for _, f := range r.Files {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			f.Path, f.Kind, humanize.Bytes(uint64(f.Output.Size)), f.Input.Short(), f.Output.Short())
	}
	return tw.Flush()
}

// HistoryVerifyCmd rehashes the output files of one run.
type HistoryVerifyCmd struct {
	ID string `arg:"" help:"Run ID"`
}

func (c *HistoryVerifyCmd) Run(ctx context.Context, g *Globals) error {
	cfg, err := g.setup(false)
	if err != nil {
		return err
	}
	store, err := openHistoryReadOnly(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	r, err := store.Get(ctx, c.ID)
	if err != nil {
		return err
	}
	checks, err := history.Verify(r)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(g.out(), 0, 4, 2, ' ', 0)
	for _, ch := range checks {
		if ch.Err != nil {
			fmt.Fprintf(tw, "%s\tFAIL\t%v\n", ch.Path, ch.Err)
			continue
		}
		fmt.Fprintf(tw, "%s\tok\n", ch.Path)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if n := history.Failed(checks); n > 0 {
		return fmt.Errorf("%d of %d file(s) changed since run %s: %w", n, len(checks), r.ID, cas.ErrDigestMismatch)
	}
	fmt.Fprintf(g.out(), "All %d files match.\n", len(checks))
	return nil
}

// BackupListCmd lists the files of a backup.
type BackupListCmd struct {
	Archive string `arg:"" help:"Backup archive (.tar.xz)" type:"existingfile"`
}

func (c *BackupListCmd) Run(g *Globals) error {
	entries, err := archive.List(c.Archive)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(g.out(), 0, 4, 2, ' ', 0)
	var total int64
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\n", e.Name, humanize.Bytes(uint64(e.Size)))
		total += e.Size
	}
	fmt.Fprintf(tw, "%d files\t%s\n", len(entries), humanize.Bytes(uint64(total)))
	return tw.Flush()
}

// BackupRestoreCmd unpacks a backup.
type BackupRestoreCmd struct {
	Archive string `arg:"" help:"Backup archive (.tar.xz)" type:"existingfile"`
	Dir     string `arg:"" help:"Directory to restore into (must be empty or missing)" type:"path"`
}

func (c *BackupRestoreCmd) Run(g *Globals) error {
	state, err := savedir.InspectOutput(c.Dir)
	if err != nil {
		return err
	}
	if state == savedir.OutputNotEmpty || state == savedir.OutputNotDir {
		return errors.NewValidation("dir", c.Dir+" is "+state.String())
	}

	files, err := archive.Restore(c.Archive, c.Dir)
	if err != nil {
		return err
	}
	fmt.Fprintf(g.out(), "Restored %d files to %s\n", len(files), c.Dir)
	return nil
}

// VersionCmd prints version information.
type VersionCmd struct{}

func (c *VersionCmd) Run(g *Globals) error {
	info := sqlite.GetInfo()
	fmt.Fprintf(g.out(), "botwc version %s\n", version)
	fmt.Fprintf(g.out(), "sqlite driver: %s (%s)\n", info.Package, info.DriverType)
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("botwc"),
		kong.Description("Breath of the Wild save converter between Wii U and Switch"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.BindTo(ctx, (*context.Context)(nil)),
	)
	err := kctx.Run(&cli.Globals)
	kctx.FatalIfErrorf(err)
}
