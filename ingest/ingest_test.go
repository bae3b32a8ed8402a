package ingest

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lexandro/csync2-hintd/batch"
	"github.com/lexandro/csync2-hintd/sink"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recordingSink keeps every committed batch and fails on demand.
type recordingSink struct {
	batches [][]string
	errs    []error
}

func (r *recordingSink) Commit(ctx context.Context, b *batch.Batch) error {
	r.batches = append(r.batches, b.Paths())
	if len(r.errs) > 0 {
		err := r.errs[0]
		r.errs = r.errs[1:]
		return err
	}
	return nil
}

func Test_Ingester_CommitsEachBatch(t *testing.T) {
	input := "+ /cygdrive/c/data/x.txt\n+ /cygdrive/c/data/y.txt\n+ /cygdrive/c/data/x.txt\n- COMMIT\n" +
		"+ /etc/hosts\n- COMMIT\n"
	rec := &recordingSink{}
	in := New(Options{Sink: rec, Logger: testLogger()})

	result, err := in.Run(context.Background(), strings.NewReader(input))
	if !errors.Is(err, ErrProducerClosed) {
		t.Fatalf("expected ErrProducerClosed at EOF, got %v", err)
	}
	if len(rec.batches) != 2 {
		t.Fatalf("expected 2 batches, got %d", len(rec.batches))
	}
	if got := strings.Join(rec.batches[0], ","); got != "/cygdrive/c/data/x.txt,/cygdrive/c/data/y.txt" {
		t.Errorf("unexpected first batch: %s", got)
	}
	if result.Batches != 2 || result.Hints != 3 || result.Failed != 0 {
		t.Errorf("unexpected result: %+v", result)
	}
}

func Test_Ingester_DiscardsUnterminatedBatch(t *testing.T) {
	input := "+ /etc/hosts\n- COMMIT\n+ /etc/passwd\n+ /etc/group\n"
	rec := &recordingSink{}
	in := New(Options{Sink: rec, Logger: testLogger()})

	result, err := in.Run(context.Background(), strings.NewReader(input))
	if !errors.Is(err, ErrProducerClosed) {
		t.Fatalf("expected ErrProducerClosed, got %v", err)
	}
	if len(rec.batches) != 1 {
		t.Fatalf("expected only the terminated batch to commit, got %d", len(rec.batches))
	}
	if result.Discarded != 2 {
		t.Errorf("expected 2 discarded paths, got %d", result.Discarded)
	}
}

func Test_Ingester_FoldCase(t *testing.T) {
	input := "+ /cygdrive/c/Data/X.TXT\n+ /cygdrive/c/data/x.txt\n- COMMIT\n"
	rec := &recordingSink{}
	in := New(Options{Sink: rec, FoldCase: true, Logger: testLogger()})

	in.Run(context.Background(), strings.NewReader(input))

	if len(rec.batches) != 1 || len(rec.batches[0]) != 1 || rec.batches[0][0] != "/cygdrive/c/data/x.txt" {
		t.Fatalf("expected one folded path, got %v", rec.batches)
	}
}

func Test_Ingester_StoreFailureContinues(t *testing.T) {
	input := "+ /a\n- COMMIT\n+ /b\n- COMMIT\n"
	rec := &recordingSink{errs: []error{sink.ErrStoreUnavailable}}
	in := New(Options{Sink: rec, Logger: testLogger()})

	result, err := in.Run(context.Background(), strings.NewReader(input))
	if !errors.Is(err, ErrProducerClosed) {
		t.Fatalf("expected run to continue to EOF, got %v", err)
	}
	if result.Batches != 2 || result.Failed != 1 || result.Hints != 1 {
		t.Errorf("unexpected result: %+v", result)
	}
}

func Test_Ingester_FatalSinkErrorStops(t *testing.T) {
	input := "+ /a\n- COMMIT\n+ /b\n- COMMIT\n"
	rec := &recordingSink{errs: []error{sink.ErrStreamWriteFailed}}
	in := New(Options{Sink: rec, Logger: testLogger()})

	_, err := in.Run(context.Background(), strings.NewReader(input))
	if !errors.Is(err, sink.ErrStreamWriteFailed) {
		t.Fatalf("expected fatal error, got %v", err)
	}
	if len(rec.batches) != 1 {
		t.Errorf("expected run to stop after the first batch, got %d", len(rec.batches))
	}
}

func Test_Ingester_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rec := &recordingSink{}
	in := New(Options{Sink: rec, Logger: testLogger()})

	if _, err := in.Run(ctx, strings.NewReader("+ /a\n- COMMIT\n")); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(rec.batches) != 0 {
		t.Errorf("expected no commits after cancel, got %d", len(rec.batches))
	}
}

func Test_Hint_ResolvesRelativePaths(t *testing.T) {
	dir := t.TempDir()
	wd, _ := os.Getwd()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { os.Chdir(wd) })

	rec := &recordingSink{}
	n, err := Hint(context.Background(), rec, []string{"a.txt", "a.txt", "sub/b.txt"})
	if err != nil {
		t.Fatalf("Hint: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 hints, got %d", n)
	}

	// t.TempDir may sit behind a symlink; compare against what Abs produced.
	want, _ := filepath.Abs("a.txt")
	if len(rec.batches) != 1 || rec.batches[0][0] != filepath.ToSlash(want) {
		t.Errorf("unexpected batch: %v", rec.batches)
	}
}

func Test_Hint_Empty(t *testing.T) {
	rec := &recordingSink{}
	n, err := Hint(context.Background(), rec, nil)
	if err != nil || n != 0 {
		t.Fatalf("expected no-op, got %d, %v", n, err)
	}
	if len(rec.batches) != 0 {
		t.Error("expected sink not to be called for an empty batch")
	}
}
