package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/patrickspencer/runwatch/internal/format"
	"github.com/patrickspencer/runwatch/internal/jobs"
	"github.com/patrickspencer/runwatch/internal/querystate"
	"github.com/patrickspencer/runwatch/internal/view"
)

type listFlags struct {
	tab, job, run, from, to, sort string
	page, size                    int
}

// listOutput is the -json shape.
type listOutput struct {
	jobs.Page
	Stats jobs.Stats `json:"stats"`
}

func runList(args []string) int {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	configPath := configFlag(fs)
	backend := fs.String("api", "", "backend URL (overrides backend_url)")
	asJSON := fs.Bool("json", false, "print JSON instead of a table")
	var lf listFlags
	fs.StringVar(&lf.tab, "tab", "ALL", "status tab: ALL, RUNNING, SUCCESS or FAILED")
	fs.StringVar(&lf.job, "job", "", "job name substring")
	fs.StringVar(&lf.run, "run", "", "run id substring")
	fs.StringVar(&lf.from, "from", "", "started at or after (YYYY-MM-DD[THH:MM] or RFC 3339)")
	fs.StringVar(&lf.to, "to", "", "started at or before (YYYY-MM-DD[THH:MM] or RFC 3339)")
	fs.StringVar(&lf.sort, "sort", "", "server sort as field,dir (default id,desc)")
	fs.IntVar(&lf.page, "page", 1, "page number, starting at 1")
	fs.IntVar(&lf.size, "size", 0, "page size (default page_size)")
	timeout := fs.Duration("timeout", 30*time.Second, "overall deadline")
	fs.Parse(args)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return fail("%v", err)
	}
	if *backend != "" {
		cfg.BackendURL = *backend
	}
	if lf.size <= 0 {
		lf.size = cfg.PageSize
	}

	logger := newLogger(cfg, cfg.LogFile)
	defer logger.Sync()

	q, err := buildListQuery(lf)
	if err != nil {
		return fail("%v", err)
	}

	c, err := newClient(cfg, logger)
	if err != nil {
		return fail("%v", err)
	}
	agg, err := newAggregator(cfg, c)
	if err != nil {
		return fail("%v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	q.WithStats = agg.Inline()
	var res jobs.PageResult
	var st jobs.Stats
	if agg.Inline() {
		if res, err = c.ListJobs(ctx, q); err == nil {
			st, err = agg.Aggregate(ctx, q, res.Stats)
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() (err error) {
			res, err = c.ListJobs(gctx, q)
			return err
		})
		g.Go(func() (err error) {
			st, err = agg.Aggregate(gctx, q, nil)
			return err
		})
		err = g.Wait()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, view.ErrorBanner(err))
		return fail("%v", err)
	}

	out := listOutput{Page: res.Page, Stats: st}
	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			return fail("%v", err)
		}
		return 0
	}
	if err := printList(os.Stdout, out, q, now()); err != nil {
		return fail("%v", err)
	}
	return 0
}

// buildListQuery runs the flags through the same state transitions the
// dashboard uses, so both produce identical requests.
func buildListQuery(lf listFlags) (jobs.Query, error) {
	sort, err := jobs.ParseSort(lf.sort)
	if err != nil {
		return jobs.Query{}, err
	}
	tab, err := jobs.ParseTab(lf.tab)
	if err != nil {
		return jobs.Query{}, err
	}
	if lf.page < 1 {
		return jobs.Query{}, fmt.Errorf("page must be at least 1, got %d", lf.page)
	}

	m := querystate.New(querystate.Options{PageSize: lf.size, Sort: sort})
	pending := map[jobs.FilterField]string{
		jobs.FieldJobName:       lf.job,
		jobs.FieldRunID:         lf.run,
		jobs.FieldStartTimeFrom: lf.from,
		jobs.FieldStartTimeTo:   lf.to,
	}
	for field, value := range pending {
		if err := m.EditPendingFilter(field, value); err != nil {
			return jobs.Query{}, err
		}
	}
	if _, err := m.ApplyFilters(); err != nil {
		return jobs.Query{}, err
	}
	if _, err := m.SelectTab(tab); err != nil {
		return jobs.Query{}, err
	}
	// The page count is unknown before the first fetch.
	m.SetTotalPages(lf.page)
	return m.GoToPage(lf.page - 1), nil
}

func printList(w io.Writer, out listOutput, q jobs.Query, now time.Time) error {
	var tabs []string
	for _, t := range jobs.Tabs {
		tabs = append(tabs, view.TabLabel(t, out.Stats))
	}
	fmt.Fprintln(w, strings.Join(tabs, "   "))
	if caption := view.ResultsCaption(out.TotalElements, hasFilters(q)); caption != "" {
		fmt.Fprintln(w, caption)
	}
	fmt.Fprintln(w)

	if len(out.Rows) == 0 {
		fmt.Fprintln(w, view.EmptyMessage)
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	var header []string
	for _, c := range view.Columns {
		header = append(header, strings.ToUpper(c.String()))
	}
	fmt.Fprintln(tw, strings.Join(header, "\t"))
	for _, row := range view.Project(out.Rows, view.ColumnSort{}, now) {
		fmt.Fprintln(tw, strings.Join(row.Cells(), "\t"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(w, "\n%s · %s total\n", view.PageCaption(out.Number, out.TotalPages), format.Count(out.TotalElements))
	return nil
}

func hasFilters(q jobs.Query) bool {
	return q.JobName != "" || q.RunID != "" || q.StartTimeFrom != nil || q.StartTimeTo != nil
}
