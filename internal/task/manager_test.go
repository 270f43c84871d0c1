package task

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/tingwen/kplus-repair-uploader/internal/ledger"
	"github.com/tingwen/kplus-repair-uploader/internal/worker"
)

const validTail = "B1,x,1,aging failure,repaired,ok,U5,A5E001,0,IC faulty,F300,replace,wen"

// stubClient fails the FIDs listed in failFIDs and counts processed records.
type stubClient struct {
	mu       sync.Mutex
	failFIDs map[string]bool
	seen     []string
}

func (s *stubClient) Authenticate(ctx context.Context) error { return nil }

func (s *stubClient) ProcessRecord(ctx context.Context, fid string, rec ledger.Record) (bool, string) {
	s.mu.Lock()
	s.seen = append(s.seen, fid)
	s.mu.Unlock()
	if s.failFIDs[fid] {
		return false, "product not found in search"
	}
	return true, "success"
}

func (s *stubClient) processed() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.seen...)
}

func newManager(t *testing.T, client worker.RecordClient) *Manager {
	t.Helper()
	m, err := NewManager(func() worker.RecordClient { return client }, 4)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(m.Shutdown)
	return m
}

func writeBatch(t *testing.T, name string, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestStartWritesBackAndRenames(t *testing.T) {
	client := &stubClient{failFIDs: map[string]bool{"X2": true}}
	m := newManager(t, client)
	path := writeBatch(t, "batch.txt", "X1,"+validTail, "X2,"+validTail)

	var finished worker.FinishedEvent
	id, err := m.Start(path, false, func(_ string, ev worker.Event) {
		if f, ok := ev.(worker.FinishedEvent); ok {
			finished = f
		}
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(id) != 8 {
		t.Errorf("task id %q, want 8 characters", id)
	}
	if !m.Wait(id) {
		t.Fatal("Wait reported unknown task")
	}

	if !finished.Success {
		t.Errorf("partial success batch reported failure: %q", finished.Summary)
	}

	failPath := strings.TrimSuffix(path, ".txt") + "_fail.txt"
	data, err := os.ReadFile(failPath)
	if err != nil {
		t.Fatalf("expected %s: %v", failPath, err)
	}
	content := string(data)
	if !strings.Contains(content, "X1,"+validTail+" // success") {
		t.Errorf("missing success line in:\n%s", content)
	}
	if !strings.Contains(content, "X2,"+validTail+" // 未查找到产品FID") {
		t.Errorf("missing failure line in:\n%s", content)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("original file should be replaced by the renamed ledger")
	}
	if got, ok := m.CurrentFile(id); !ok || got != failPath {
		t.Errorf("CurrentFile = %q, %v", got, ok)
	}
}

func TestRetryProcessesOnlyFailedRecords(t *testing.T) {
	client := &stubClient{failFIDs: map[string]bool{"X2": true}}
	m := newManager(t, client)
	path := writeBatch(t, "batch.txt", "X1,"+validTail, "X2,"+validTail)

	id, err := m.Start(path, false, nil)
	if err != nil {
		t.Fatal(err)
	}
	m.Wait(id)

	// Fix the remote side, then retry.
	client.mu.Lock()
	client.failFIDs = nil
	client.seen = nil
	client.mu.Unlock()

	retryID, err := m.Retry(id)
	if err != nil {
		t.Fatal(err)
	}
	if retryID == id {
		t.Error("retry must get a fresh task id")
	}
	m.Wait(retryID)

	if got := client.processed(); len(got) != 1 || got[0] != "X2" {
		t.Errorf("retry processed %v, want only X2", got)
	}

	donePath := strings.TrimSuffix(path, ".txt") + "_done.txt"
	data, err := os.ReadFile(donePath)
	if err != nil {
		t.Fatalf("expected %s after successful retry: %v", donePath, err)
	}
	if !strings.Contains(string(data), "X2,"+validTail+" // success") {
		t.Errorf("retried record not marked success:\n%s", data)
	}
	if _, ok := m.tasks[id]; ok {
		t.Error("retried task must be dropped from the registry")
	}
}

func TestRetryUnknownTask(t *testing.T) {
	m := newManager(t, &stubClient{})
	if _, err := m.Retry("deadbeef"); err == nil {
		t.Fatal("expected error for unknown task")
	}
}

func TestRetryMissingFile(t *testing.T) {
	client := &stubClient{}
	m := newManager(t, client)
	path := writeBatch(t, "batch.txt", "X1,"+validTail)

	id, err := m.Start(path, false, nil)
	if err != nil {
		t.Fatal(err)
	}
	m.Wait(id)

	// Remove every candidate so resolution fails loudly.
	os.Remove(strings.TrimSuffix(path, ".txt") + "_done.txt")

	_, err = m.Retry(id)
	if err == nil || !strings.Contains(err.Error(), "无法找到重试文件") {
		t.Fatalf("err = %v", err)
	}
}

func TestDeleteRecord(t *testing.T) {
	client := &stubClient{failFIDs: map[string]bool{"X1": true, "X2": true}}
	m := newManager(t, client)
	path := writeBatch(t, "batch.txt", "X1,"+validTail, "X2,"+validTail)

	id, err := m.Start(path, false, nil)
	if err != nil {
		t.Fatal(err)
	}
	m.Wait(id)

	deleted, err := m.DeleteRecord(id, "X1")
	if err != nil {
		t.Fatal(err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}

	current, _ := m.CurrentFile(id)
	data, err := os.ReadFile(current)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "X1,") {
		t.Errorf("X1 still present:\n%s", data)
	}
	if !strings.Contains(string(data), "X2,") {
		t.Errorf("X2 lost:\n%s", data)
	}
}

func TestRemove(t *testing.T) {
	m := newManager(t, &stubClient{})
	path := writeBatch(t, "batch.txt", "X1,"+validTail)

	id, err := m.Start(path, false, nil)
	if err != nil {
		t.Fatal(err)
	}
	m.Wait(id)
	m.Remove(id)

	if m.Wait(id) {
		t.Error("removed task must be unknown")
	}
	if _, err := os.Stat(strings.TrimSuffix(path, ".txt") + "_done.txt"); err != nil {
		t.Errorf("ledger file must survive Remove: %v", err)
	}
}

func TestResolveRetryFile(t *testing.T) {
	dir := t.TempDir()
	fail := filepath.Join(dir, "b_fail.txt")
	if err := os.WriteFile(fail, []byte("X1,"+validTail+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := resolveRetryFile(filepath.Join(dir, "b.txt"))
	if err != nil || got != fail {
		t.Errorf("resolveRetryFile = %q, %v", got, err)
	}

	got, err = resolveRetryFile(filepath.Join(dir, "b_done.txt"))
	if err != nil || got != fail {
		t.Errorf("marker-suffixed original: %q, %v", got, err)
	}
}
