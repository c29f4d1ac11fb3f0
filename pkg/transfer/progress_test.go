package transfer

import (
	"bytes"
	"io"
	"testing"
)

type progressLog struct {
	started int
	reports []Progress
}

func (l *progressLog) tracker() *Tracker {
	return NewTracker(
		func() { l.started++ },
		func(p Progress) { l.reports = append(l.reports, p) },
	)
}

func TestTrackerUploadThenDownload(t *testing.T) {
	var log progressLog
	tr := log.tracker()

	tr.Upload(10, 5)
	if tr.State() != InProgress {
		t.Fatalf("state = %s, want in-progress", tr.State())
	}
	tr.Upload(10, 10)
	tr.Download(0, 0)
	tr.Download(20, 20)
	tr.Download(20, 25)

	if log.started != 1 {
		t.Errorf("started fired %d times", log.started)
	}
	want := []Progress{
		{Total: 10, Done: 5, Mode: ModeUpload},
		{Total: 10, Done: 10, Mode: ModeUpload},
		{Total: 20, Done: 20, Mode: ModeDownload},
	}
	if len(log.reports) != len(want) {
		t.Fatalf("reports = %+v, want %+v", log.reports, want)
	}
	for i := range want {
		if log.reports[i] != want[i] {
			t.Errorf("report[%d] = %+v, want %+v", i, log.reports[i], want[i])
		}
	}
	if tr.State() != Done {
		t.Errorf("state = %s, want done", tr.State())
	}
}

func TestTrackerDownloadOnly(t *testing.T) {
	var log progressLog
	tr := log.tracker()

	tr.Download(4, 2)
	tr.Download(4, 4)

	if log.started != 1 || len(log.reports) != 2 {
		t.Fatalf("started=%d reports=%+v", log.started, log.reports)
	}
	if log.reports[0].Mode != ModeDownload {
		t.Errorf("mode = %s, want download", log.reports[0].Mode)
	}
}

func TestTrackerIgnoresUnknownTotals(t *testing.T) {
	var log progressLog
	tr := log.tracker()

	tr.Update(0, 0, 0, 0)
	if log.started != 0 || tr.State() != NotStarted {
		t.Errorf("zero counters started the tracker")
	}
}

func TestTrackerFinishStopsReports(t *testing.T) {
	var log progressLog
	tr := log.tracker()

	tr.Finish()
	tr.Upload(10, 10)
	tr.Download(10, 10)

	if log.started != 0 || len(log.reports) != 0 {
		t.Errorf("finished tracker reported: started=%d reports=%+v", log.started, log.reports)
	}
}

func TestProgressFraction(t *testing.T) {
	tests := []struct {
		p    Progress
		want float64
	}{
		{Progress{Total: 0, Done: 5}, 0},
		{Progress{Total: 4, Done: 1}, 0.25},
		{Progress{Total: 4, Done: 8}, 1},
	}
	for _, tt := range tests {
		if got := tt.p.Fraction(); got != tt.want {
			t.Errorf("%+v.Fraction() = %v, want %v", tt.p, got, tt.want)
		}
	}
}

func TestProgressReaderUnknownTotal(t *testing.T) {
	var last [2]int64
	r := &progressReader{
		r:  bytes.NewReader([]byte("hello world")),
		fn: func(total, done int64) { last = [2]int64{total, done} },
	}
	if _, err := io.ReadAll(r); err != nil {
		t.Fatal(err)
	}
	if last != [2]int64{11, 11} {
		t.Errorf("final report = %v, want [11 11]", last)
	}
}
