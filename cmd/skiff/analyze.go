package main

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/urfave/cli/v2"

	"github.com/calitho/skiff/internal/contexts"
	"github.com/calitho/skiff/internal/output"
	"github.com/calitho/skiff/internal/progress"
	"github.com/calitho/skiff/pkg/watch"
)

// cliListener collects context lifecycle callbacks for reporting.
type cliListener struct {
	created int
	removed int
	drivers []*contexts.Driver
	events  func(ev watch.Event)
	onFiles func(path string)
}

func (l *cliListener) AfterContextsCreated() { l.created++ }

func (l *cliListener) AfterWatchEvent(ev watch.Event) {
	if l.events != nil {
		l.events(ev)
	}
}

func (l *cliListener) ApplyFileRemoved(path string) {
	if l.onFiles != nil {
		l.onFiles(path)
	}
}

func (l *cliListener) RemoveContext(root string, flushedFiles []string) { l.removed++ }

func (l *cliListener) ListenDriver(d *contexts.Driver) { l.drivers = append(l.drivers, d) }

// contextReport is the serializable analyze output.
type contextReport struct {
	Contexts []contextRow `json:"contexts"`
	Store    storeRow     `json:"store"`
}

type contextRow struct {
	Root     string `json:"root"`
	Files    int    `json:"files"`
	Manifest string `json:"manifest,omitempty"`
}

type storeRow struct {
	Entries int   `json:"entries"`
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
}

func analyzeCommand() *cli.Command {
	return &cli.Command{
		Name:      "analyze",
		Usage:     "Build analysis contexts for the given roots and report them",
		ArgsUsage: "[paths...]",
		Action: func(c *cli.Context) error {
			opts, err := loadOptions(c)
			if err != nil {
				return err
			}

			listener := &cliListener{}
			mgr := contexts.NewManager(opts, listener)

			spinner := progress.NewSpinner("Scanning roots")
			err = mgr.SetRoots(getPaths(c), opts.Roots.Exclude)
			spinner.Finish()
			if err != nil {
				return err
			}

			f, err := newFormatter(c)
			if err != nil {
				return err
			}
			defer f.Close()

			report := buildReport(mgr, opts.Descriptors.Manifest)
			return f.Output(reportTable(report))
		},
	}
}

func buildReport(mgr *contexts.Manager, manifestName string) contextReport {
	var report contextReport
	for _, ctx := range mgr.Contexts() {
		row := contextRow{
			Root:  ctx.Root(),
			Files: len(ctx.Driver().KnownFiles()),
		}
		if res, ok := mgr.DescriptorResult(filepath.Join(ctx.Root(), manifestName)); ok {
			if res.Valid() {
				row.Manifest = "ok"
			} else {
				row.Manifest = fmt.Sprintf("%d issues", len(res.Issues))
			}
		}
		report.Contexts = append(report.Contexts, row)
	}
	stats := mgr.Store().GetStats()
	report.Store = storeRow{Entries: stats.Entries, Hits: stats.Hits, Misses: stats.Misses}
	return report
}

// reportTable wraps the report in a table view for the text format; the
// serialized formats use the report itself.
func reportTable(report contextReport) *output.Table {
	rows := make([][]string, 0, len(report.Contexts))
	for _, row := range report.Contexts {
		manifest := row.Manifest
		if manifest != "" {
			manifest = output.StatusColor(manifest == "ok", manifest)
		}
		rows = append(rows, []string{row.Root, strconv.Itoa(row.Files), manifest})
	}
	footer := []string{
		"store",
		strconv.Itoa(report.Store.Entries),
		fmt.Sprintf("%d hits / %d misses", report.Store.Hits, report.Store.Misses),
	}
	return output.NewTable("", []string{"Root", "Files", "Manifest"}, rows, footer, report)
}
