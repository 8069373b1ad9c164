// Package uirender renders progress rows as terminal bars using
// uiprogress. It is a demonstration-grade sink for the Renderer
// contract; the core packages never depend on it.
package uirender

import (
	"fmt"
	"sync"

	"github.com/moi90/richer-progress/progress"

	"github.com/gosuri/uiprogress"
	"github.com/gosuri/uiprogress/util/strutil"
)

type row struct {
	sync.Mutex

	bar *uiprogress.Bar

	label  string
	total  int64
	status string
}

func (r *row) describe() string {
	r.Lock()
	defer r.Unlock()

	total := "?"
	if r.total >= 0 {
		total = fmt.Sprintf("%d", r.total)
	}

	return fmt.Sprintf("%s [%s] %d/%s", r.label, r.status, int64(r.bar.Current()), total)
}

// Renderer implements progress.Renderer on top of uiprogress bars.
type Renderer struct {
	mu   sync.Mutex
	next progress.RowID
	rows map[progress.RowID]*row
}

func New() *Renderer {
	return &Renderer{
		rows: make(map[progress.RowID]*row),
	}
}

// Start begins rendering to the terminal.
func (r *Renderer) Start() { uiprogress.Start() }

// Stop ends rendering.
func (r *Renderer) Stop() { uiprogress.Stop() }

func (r *Renderer) AddRow(label string, total progress.WorkAmount) progress.RowID {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.next
	r.next++

	bar := uiprogress.AddBar(barTotal(total, 0)).AppendCompleted()
	bar.Width = 40

	rw := &row{bar: bar, label: label, total: total, status: "waiting"}

	bar.PrependFunc(func(b *uiprogress.Bar) string {
		return strutil.Resize(rw.describe(), 45)
	})

	r.rows[id] = rw

	return id
}

func (r *Renderer) UpdateRow(id progress.RowID, completed, total progress.WorkAmount) {
	rw := r.row(id)
	if rw == nil {
		return
	}

	rw.Lock()
	rw.total = total
	if rw.status == "waiting" {
		rw.status = "running"
	}
	rw.bar.Total = barTotal(total, completed)
	rw.Unlock()

	rw.bar.Set(int(completed))
}

func (r *Renderer) StartRow(id progress.RowID) {
	if rw := r.row(id); rw != nil {
		rw.Lock()
		rw.status = "running"
		rw.Unlock()
	}
}

func (r *Renderer) StopRow(id progress.RowID) {
	if rw := r.row(id); rw != nil {
		rw.Lock()
		rw.status = "done"
		rw.Unlock()
	}
}

// RemoveRow marks the row as done. uiprogress cannot take a bar off the
// screen again, so a removed row is frozen instead.
func (r *Renderer) RemoveRow(id progress.RowID) {
	r.StopRow(id)

	r.mu.Lock()
	delete(r.rows, id)
	r.mu.Unlock()
}

func (r *Renderer) row(id progress.RowID) *row {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.rows[id]
}

// barTotal keeps the underlying bar valid: uiprogress needs a positive
// total, and Set fails when the current value exceeds it.
func barTotal(total, completed progress.WorkAmount) int {
	if total < 0 {
		total = completed + 1
	}
	if total < completed {
		total = completed
	}
	if total < 1 {
		total = 1
	}

	return int(total)
}
