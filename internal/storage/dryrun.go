package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
)

// DryRun prints the records that would be written without storing anything.
// Every record looks new to it.
type DryRun struct {
	out io.Writer

	mu    sync.Mutex
	count int
}

// NewDryRun creates a dry-run store writing to out, or stdout when nil
func NewDryRun(out io.Writer) *DryRun {
	if out == nil {
		out = os.Stdout
	}
	return &DryRun{out: out}
}

// FindByUniqueID always reports ErrNotFound
func (d *DryRun) FindByUniqueID(ctx context.Context, uniqueID string) (*Record, error) {
	return nil, ErrNotFound
}

// Create prints the record that would be created
func (d *DryRun) Create(ctx context.Context, rec Record) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.count++
	id := fmt.Sprintf("dryrun-%d", d.count)

	fmt.Fprintf(d.out, "--- Record %d ---\n", d.count)
	fmt.Fprintf(d.out, "Title:     %s\n", rec.Title)
	fmt.Fprintf(d.out, "URL:       %s\n", rec.URL)
	fmt.Fprintf(d.out, "Date:      %s\n", orDash(rec.Date))
	fmt.Fprintf(d.out, "Location:  %s\n", orDash(rec.Location))
	fmt.Fprintf(d.out, "Region:    %t\n", rec.RegionRelated)
	fmt.Fprintf(d.out, "Unique ID: %s\n\n", rec.UniqueID)
	return id, nil
}

// Update prints the record that would be updated
func (d *DryRun) Update(ctx context.Context, id string, rec Record) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	fmt.Fprintf(d.out, "--- Update %s ---\n%s (%s)\n\n", id, rec.Title, rec.UniqueID)
	return nil
}

// Close is a no-op
func (d *DryRun) Close() error {
	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
