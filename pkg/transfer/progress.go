package transfer

import (
	"io"
	"sync"
)

// State is the phase of a transfer. States only move forward.
type State int

const (
	NotStarted State = iota
	Started
	InProgress
	Done
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not-started"
	case Started:
		return "started"
	case InProgress:
		return "in-progress"
	case Done:
		return "done"
	default:
		return "unknown"
	}
}

// Mode tells which direction a progress report refers to.
type Mode string

const (
	ModeUpload   Mode = "upload"
	ModeDownload Mode = "download"
)

// Progress is one progress notification.
type Progress struct {
	Total int64
	Done  int64
	Mode  Mode
}

// Fraction returns Done/Total in [0,1].
func (p Progress) Fraction() float64 {
	if p.Total <= 0 {
		return 0
	}
	f := float64(p.Done) / float64(p.Total)
	if f > 1 {
		return 1
	}
	return f
}

// Tracker turns raw byte counters into started/progress notifications.
// Upload is reported until it finishes; download afterwards.
type Tracker struct {
	mu         sync.Mutex
	state      State
	uploaded   bool
	upTotal    int64
	upDone     int64
	downTotal  int64
	downDone   int64
	onStarted  func()
	onProgress func(Progress)
}

// NewTracker creates a tracker. Either hook may be nil.
func NewTracker(onStarted func(), onProgress func(Progress)) *Tracker {
	return &Tracker{onStarted: onStarted, onProgress: onProgress}
}

// State returns the current state.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Upload records upload counters.
func (t *Tracker) Upload(total, done int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.upTotal, t.upDone = total, done
	t.update()
}

// Download records download counters.
func (t *Tracker) Download(total, done int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.downTotal, t.downDone = total, done
	t.update()
}

// Update records all four counters at once.
func (t *Tracker) Update(downTotal, downDone, upTotal, upDone int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.downTotal, t.downDone = downTotal, downDone
	t.upTotal, t.upDone = upTotal, upDone
	t.update()
}

// Finish moves the tracker to Done; later counters are ignored.
func (t *Tracker) Finish() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = Done
}

func (t *Tracker) update() {
	if t.state == Done {
		return
	}

	total, done, mode := t.upTotal, t.upDone, ModeUpload
	if t.uploaded || t.upTotal == 0 {
		total, done, mode = t.downTotal, t.downDone, ModeDownload
	}
	if total <= 0 {
		return
	}

	if t.state == NotStarted {
		t.state = Started
		if t.onStarted != nil {
			t.onStarted()
		}
	}
	if t.onProgress != nil {
		t.onProgress(Progress{Total: total, Done: done, Mode: mode})
	}
	t.state = InProgress

	if done >= total {
		if mode == ModeUpload {
			t.uploaded = true
		} else {
			t.state = Done
		}
	}
}

// progressReader reports bytes read to fn. With an unknown total the final
// report uses the byte count at EOF.
type progressReader struct {
	r     io.Reader
	total int64
	done  int64
	fn    func(total, done int64)
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	p.done += int64(n)

	total := p.total
	if total <= 0 && err == io.EOF {
		total = p.done
	}
	if n > 0 || err == io.EOF {
		p.fn(total, p.done)
	}
	return n, err
}
