package worker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tingwen/kplus-repair-uploader/internal/classify"
	"github.com/tingwen/kplus-repair-uploader/internal/ledger"
)

const validTail = "B1 B2,x,1,aging failure,repaired,ok,U5,A5E001,0,IC faulty,F300,replace,wen"

type stubClient struct {
	authErr error
	outcome func(fid string) (bool, string)

	authCalls    int
	processCalls int
	seenFIDs     []string
}

func (s *stubClient) Authenticate(ctx context.Context) error {
	s.authCalls++
	return s.authErr
}

func (s *stubClient) ProcessRecord(ctx context.Context, fid string, rec ledger.Record) (bool, string) {
	s.processCalls++
	s.seenFIDs = append(s.seenFIDs, fid)
	if s.outcome != nil {
		return s.outcome(fid)
	}
	return true, "success"
}

func writeBatch(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "batch.txt")
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// drain runs the worker to completion and collects its event stream.
func drain(t *testing.T, w *Worker) (events []Event, finished *FinishedEvent) {
	t.Helper()
	w.sleep = func(time.Duration) {}
	go w.Run(context.Background())
	for ev := range w.Events() {
		events = append(events, ev)
		if f, ok := ev.(FinishedEvent); ok {
			finished = &f
		}
	}
	return events, finished
}

func progressValues(events []Event) []int {
	var out []int
	for _, ev := range events {
		if p, ok := ev.(ProgressEvent); ok {
			out = append(out, p.Percent)
		}
	}
	return out
}

func TestRunAllSuccess(t *testing.T) {
	path := writeBatch(t, "X1,"+validTail, "X2,"+validTail, "X3,"+validTail)
	client := &stubClient{}
	w := New(path, false, client)

	events, finished := drain(t, w)
	if finished == nil {
		t.Fatal("no FinishedEvent")
	}
	if !finished.Success {
		t.Errorf("Success = false, summary %q", finished.Summary)
	}
	if !strings.Contains(finished.Summary, "🎉 全部成功！3条记录") {
		t.Errorf("summary = %q", finished.Summary)
	}
	if len(finished.Results) != 3 {
		t.Fatalf("got %d results, want 3", len(finished.Results))
	}
	for _, r := range finished.Results {
		if !r.Success || r.Err != "success" {
			t.Errorf("result %+v", r)
		}
	}

	pcts := progressValues(events)
	if len(pcts) < 3 || pcts[0] != 10 || pcts[1] != 20 || pcts[len(pcts)-1] != 100 {
		t.Errorf("progress sequence %v", pcts)
	}
	if client.processCalls != 3 {
		t.Errorf("processCalls = %d", client.processCalls)
	}
}

func TestRunPartialSuccess(t *testing.T) {
	path := writeBatch(t, "OK1,"+validTail, "BAD,"+validTail)
	client := &stubClient{outcome: func(fid string) (bool, string) {
		if fid == "BAD" {
			return false, "product not found in search"
		}
		return true, "success"
	}}

	_, finished := drain(t, New(path, false, client))
	if finished == nil || !finished.Success {
		t.Fatal("partial success must still finish successfully")
	}
	if !strings.Contains(finished.Summary, "⚠️ 部分成功：1/2") {
		t.Errorf("summary = %q", finished.Summary)
	}
	var bad ledger.Result
	for _, r := range finished.Results {
		if r.ProductFID == "BAD" {
			bad = r
		}
	}
	if bad.Success || bad.Err != classify.CategoryNotFound {
		t.Errorf("failed result = %+v", bad)
	}
}

func TestRunAllFailed(t *testing.T) {
	path := writeBatch(t, "X1,"+validTail)
	client := &stubClient{outcome: func(string) (bool, string) {
		return false, "submit rejected"
	}}

	_, finished := drain(t, New(path, false, client))
	if finished == nil || finished.Success {
		t.Fatal("all-failed batch must finish unsuccessfully")
	}
	if !strings.Contains(finished.Summary, "❌ 全部失败！1条记录") {
		t.Errorf("summary = %q", finished.Summary)
	}
}

func TestRunAuthFailure(t *testing.T) {
	path := writeBatch(t, "X1,"+validTail, "X2,"+validTail)
	client := &stubClient{authErr: errors.New("连接超时: 网络连接缓慢或不稳定")}
	w := New(path, false, client)

	events, finished := drain(t, w)
	if client.processCalls != 0 {
		t.Errorf("no remote per-record calls may happen, got %d", client.processCalls)
	}
	if finished == nil || finished.Success {
		t.Fatal("auth failure must fail the batch")
	}
	if !strings.Contains(finished.Summary, "连接失败") || !strings.Contains(finished.Summary, "2条记录") {
		t.Errorf("summary = %q", finished.Summary)
	}
	if len(finished.Results) != 2 {
		t.Fatalf("got %d results, want 2", len(finished.Results))
	}
	for _, r := range finished.Results {
		if r.Err != classify.CategoryConnection {
			t.Errorf("result reason %q, want %q", r.Err, classify.CategoryConnection)
		}
	}
	var recordEvents int
	for _, ev := range events {
		if _, ok := ev.(RecordEvent); ok {
			recordEvents++
		}
	}
	if recordEvents != 2 {
		t.Errorf("record events = %d, want 2", recordEvents)
	}
}

func TestRunFormatError(t *testing.T) {
	path := writeBatch(t, "SHORT,only,three", "X1,"+validTail)
	client := &stubClient{}

	_, finished := drain(t, New(path, false, client))
	if client.processCalls != 1 {
		t.Errorf("processCalls = %d, want 1 (malformed line must skip remote)", client.processCalls)
	}
	if finished == nil {
		t.Fatal("no FinishedEvent")
	}
	var short ledger.Result
	for _, r := range finished.Results {
		if r.ProductFID == "SHORT" {
			short = r
		}
	}
	if short.Success || short.Err != classify.CategoryFormat {
		t.Errorf("malformed result = %+v", short)
	}
}

func TestRunMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nope.txt")
	_, finished := drain(t, New(path, false, &stubClient{}))
	if finished == nil || finished.Success {
		t.Fatal("missing file must fail")
	}
	if !strings.HasPrefix(finished.Summary, "文件不存在: ") {
		t.Errorf("summary = %q", finished.Summary)
	}
}

func TestRunEmptyFile(t *testing.T) {
	path := writeBatch(t, "", "   ")
	_, finished := drain(t, New(path, false, &stubClient{}))
	if finished == nil || finished.Success || finished.Summary != "文件为空" {
		t.Fatalf("finished = %+v", finished)
	}
}

func TestRunRetryNothingToDo(t *testing.T) {
	path := writeBatch(t, "X1,"+validTail+" // success", "X2,"+validTail+" // success")
	client := &stubClient{}

	_, finished := drain(t, New(path, true, client))
	if client.authCalls != 0 || client.processCalls != 0 {
		t.Error("empty retry set must not touch the remote system")
	}
	if finished == nil || !finished.Success || finished.Summary != "🎉 没有失败记录需要重试！" {
		t.Fatalf("finished = %+v", finished)
	}
}

func TestRunRetryProcessesOnlyFailures(t *testing.T) {
	path := writeBatch(t,
		"X1,"+validTail+" // success",
		"X2,"+validTail+" // 未查找到产品FID")
	client := &stubClient{}

	_, finished := drain(t, New(path, true, client))
	if client.processCalls != 1 || len(client.seenFIDs) != 1 || client.seenFIDs[0] != "X2" {
		t.Errorf("processed %v", client.seenFIDs)
	}
	if finished == nil || !strings.HasPrefix(finished.Summary, "🔄 重试结果: ") {
		t.Fatalf("finished = %+v", finished)
	}
}

func TestCancelSuppressesFinished(t *testing.T) {
	path := writeBatch(t, "X1,"+validTail, "X2,"+validTail, "X3,"+validTail)
	client := &stubClient{}
	w := New(path, false, client)
	w.sleep = func(time.Duration) { w.Cancel() }

	go w.Run(context.Background())
	var finished bool
	for ev := range w.Events() {
		if _, ok := ev.(FinishedEvent); ok {
			finished = true
		}
	}
	<-w.Done()
	if finished {
		t.Error("cancelled worker must not emit FinishedEvent")
	}
	if client.processCalls != 1 {
		t.Errorf("processCalls = %d, want 1", client.processCalls)
	}
}

func TestPacingDelay(t *testing.T) {
	cases := []struct {
		successes, processed int
		want                 time.Duration
	}{
		{0, 5, 150 * time.Millisecond},
		{96, 100, 50 * time.Millisecond},
		{91, 100, 80 * time.Millisecond},
		{75, 100, 150 * time.Millisecond},
		{50, 100, 300 * time.Millisecond},
	}
	for _, tc := range cases {
		if got := pacingDelay(tc.successes, tc.processed); got != tc.want {
			t.Errorf("pacingDelay(%d, %d) = %v, want %v", tc.successes, tc.processed, got, tc.want)
		}
	}
}
