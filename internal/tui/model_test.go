package tui

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/patrickspencer/runwatch/internal/client"
	"github.com/patrickspencer/runwatch/internal/jobs"
	"github.com/patrickspencer/runwatch/internal/monitor"
	"github.com/patrickspencer/runwatch/internal/querystate"
	"github.com/patrickspencer/runwatch/internal/realtime"
)

type fakeController struct {
	mu       sync.Mutex
	snap     monitor.Snapshot
	calls    []string
	edits    []string
	applyErr error
	broker   *realtime.Broker
}

func newFakeController() *fakeController {
	return &fakeController{
		broker: realtime.NewBroker(),
		snap: monitor.Snapshot{
			Query: querystate.State{Tab: jobs.TabAll, PageSize: 10},
			Page:  jobs.NewPage(nil, 0, 0, 10),
		},
	}
}

func (f *fakeController) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *fakeController) Snapshot() monitor.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap
}

func (f *fakeController) Subscribe() (<-chan realtime.Event, func()) { return f.broker.Subscribe() }

func (f *fakeController) EditPendingFilter(field jobs.FilterField, value string) error {
	f.mu.Lock()
	f.edits = append(f.edits, string(field)+"="+value)
	f.mu.Unlock()
	return nil
}

func (f *fakeController) ApplyFilters() error {
	f.record("apply")
	return f.applyErr
}

func (f *fakeController) ClearFilters() { f.record("clear") }

func (f *fakeController) SelectTab(tab jobs.Tab) error {
	f.record("tab:" + string(tab))
	return nil
}

func (f *fakeController) NextPage()   { f.record("next") }
func (f *fakeController) PrevPage()   { f.record("prev") }
func (f *fakeController) RefreshNow() { f.record("refresh") }

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func press(t *testing.T, m Model, msgs ...tea.Msg) Model {
	t.Helper()
	for _, msg := range msgs {
		next, _ := m.Update(msg)
		m = next.(Model)
	}
	return m
}

func TestBrowsingKeysDispatchIntents(t *testing.T) {
	t.Parallel()

	ctrl := newFakeController()
	m := New(ctrl, Options{RefreshCaption: "Live · every 60s"})
	defer m.Close()

	press(t, m, runes("2"), runes("4"), runes("n"), runes("p"), runes("r"), runes("c"), tea.KeyMsg{Type: tea.KeyTab})

	want := []string{"tab:RUNNING", "tab:FAILED", "next", "prev", "refresh", "clear", "tab:RUNNING"}
	if strings.Join(ctrl.calls, ",") != strings.Join(want, ",") {
		t.Fatalf("calls = %v, want %v", ctrl.calls, want)
	}
}

func TestFilterFormEditsPendingAndApplies(t *testing.T) {
	t.Parallel()

	ctrl := newFakeController()
	m := New(ctrl, Options{})
	defer m.Close()

	m = press(t, m, runes("/"))
	if !m.editing {
		t.Fatalf("expected filter form to open")
	}
	m = press(t, m, runes("e"), runes("t"), runes("l"))
	if got := strings.Join(ctrl.edits, ","); got != "jobName=e,jobName=et,jobName=etl" {
		t.Fatalf("edits = %s", got)
	}
	if len(ctrl.calls) != 0 {
		t.Fatalf("typing must not apply filters: %v", ctrl.calls)
	}

	m = press(t, m, tea.KeyMsg{Type: tea.KeyTab}, runes("r"))
	if last := ctrl.edits[len(ctrl.edits)-1]; last != "runId=r" {
		t.Fatalf("second field edit = %s", last)
	}

	m = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.editing || len(ctrl.calls) != 1 || ctrl.calls[0] != "apply" {
		t.Fatalf("enter should apply and close: editing=%v calls=%v", m.editing, ctrl.calls)
	}
}

func TestFilterFormEscapeDoesNotApply(t *testing.T) {
	t.Parallel()

	ctrl := newFakeController()
	m := New(ctrl, Options{})
	defer m.Close()

	m = press(t, m, runes("/"), runes("x"), tea.KeyMsg{Type: tea.KeyEsc})
	if m.editing || len(ctrl.calls) != 0 {
		t.Fatalf("esc should close without applying: %v", ctrl.calls)
	}
}

func TestFilterFormKeepsOpenOnInvalidFilter(t *testing.T) {
	t.Parallel()

	ctrl := newFakeController()
	ctrl.applyErr = errors.New("invalid filter: startTimeFrom")
	m := New(ctrl, Options{})
	defer m.Close()

	m = press(t, m, runes("/"), tea.KeyMsg{Type: tea.KeyEnter})
	if !m.editing || !strings.Contains(m.View(), "invalid filter") {
		t.Fatalf("form should stay open with the error shown")
	}
}

func TestViewShowsEmptyStateAndBanner(t *testing.T) {
	t.Parallel()

	ctrl := newFakeController()
	ctrl.snap.HasData = true
	ctrl.snap.LastUpdated = time.Now()
	m := New(ctrl, Options{RefreshCaption: "Live · every 60s"})
	defer m.Close()

	out := m.View()
	if !strings.Contains(out, "No jobs found") || !strings.Contains(out, "Live · every 60s") {
		t.Fatalf("unexpected view:\n%s", out)
	}

	ctrl.mu.Lock()
	ctrl.snap.LastError = &client.TransportError{Op: "list jobs", URL: "http://x", Err: errors.New("refused")}
	ctrl.mu.Unlock()
	m = press(t, m, changedMsg{})
	out = m.View()
	if !strings.Contains(out, "Failed to connect to backend.") || strings.Contains(out, "Live · every") {
		t.Fatalf("expected error banner:\n%s", out)
	}
}

func TestViewRendersRowsAndStats(t *testing.T) {
	t.Parallel()

	ctrl := newFakeController()
	start := time.Now().Add(-time.Minute)
	ctrl.snap.HasData = true
	ctrl.snap.Stats = jobs.Stats{All: 3, Running: 1, Success: 1, Failed: 1}
	ctrl.snap.Page = jobs.NewPage([]jobs.Job{
		{ID: 3, JobName: "spark-load", RunID: "r3", Status: jobs.StatusFailed, StartTime: start, ErrorMessage: "oom"},
	}, 1, 0, 10)
	ctrl.snap.Query.Tab = jobs.TabFailed
	m := New(ctrl, Options{})
	defer m.Close()

	out := m.View()
	for _, want := range []string{"spark-load", "Failed (1)", "All (3)", "Page 1 of 1", "oom"} {
		if !strings.Contains(out, want) {
			t.Fatalf("view missing %q:\n%s", want, out)
		}
	}
}

func TestSortKeysReorderWithoutFetching(t *testing.T) {
	t.Parallel()

	ctrl := newFakeController()
	t0 := time.Now().Add(-time.Hour)
	ctrl.snap.Page = jobs.NewPage([]jobs.Job{
		{ID: 2, JobName: "b", Status: jobs.StatusSuccess, StartTime: t0},
		{ID: 1, JobName: "a", Status: jobs.StatusSuccess, StartTime: t0},
	}, 2, 0, 10)
	m := New(ctrl, Options{})
	defer m.Close()

	m = press(t, m, runes("s"), runes("s"))
	if m.rows[0].ID != 1 {
		t.Fatalf("expected job name ascending, got %d first", m.rows[0].ID)
	}
	m = press(t, m, runes("S"))
	if m.rows[0].ID != 2 {
		t.Fatalf("expected job name descending, got %d first", m.rows[0].ID)
	}
	if len(ctrl.calls) != 0 {
		t.Fatalf("column sort must not reach the engine: %v", ctrl.calls)
	}
}

func TestWaitForChangeCollapsesBursts(t *testing.T) {
	t.Parallel()

	b := realtime.NewBroker()
	ch, cancel := b.Subscribe()
	for i := 0; i < 5; i++ {
		b.Publish(realtime.Event{Type: realtime.TypeStateChanged})
	}
	if _, ok := waitForChange(ch)().(changedMsg); !ok {
		t.Fatalf("expected changedMsg")
	}
	if len(ch) != 0 {
		t.Fatalf("burst not drained: %d left", len(ch))
	}
	cancel()
	if _, ok := waitForChange(ch)().(closedMsg); !ok {
		t.Fatalf("expected closedMsg after cancel")
	}
}
