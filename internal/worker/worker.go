// Package worker runs one upload batch against the repair system and reports
// its progress as a typed event stream.
package worker

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tingwen/kplus-repair-uploader/internal/classify"
	"github.com/tingwen/kplus-repair-uploader/internal/ledger"
)

// RecordClient is the remote-session surface the worker needs. Satisfied by
// *remote.Client; tests substitute a stub.
type RecordClient interface {
	Authenticate(ctx context.Context) error
	ProcessRecord(ctx context.Context, productFID string, rec ledger.Record) (bool, string)
}

// eventBuffer keeps slow listeners from stalling the worker on short batches.
const eventBuffer = 64

// Worker processes a single ledger file. Create with New, start with Run,
// consume Events until the channel closes.
type Worker struct {
	filePath  string
	retryMode bool
	client    RecordClient

	events    chan Event
	done      chan struct{}
	cancelled atomic.Bool

	// sleep is swapped out by tests.
	sleep func(time.Duration)
}

func New(filePath string, retryMode bool, client RecordClient) *Worker {
	return &Worker{
		filePath:  filePath,
		retryMode: retryMode,
		client:    client,
		events:    make(chan Event, eventBuffer),
		done:      make(chan struct{}),
		sleep:     time.Sleep,
	}
}

// Events returns the worker's event stream. It is closed when Run returns.
func (w *Worker) Events() <-chan Event { return w.events }

// Done is closed when Run has returned.
func (w *Worker) Done() <-chan struct{} { return w.done }

// Cancel requests a cooperative stop. The worker checks the flag between
// steps and between records; once it observes the flag it emits nothing
// further and closes its channels without a FinishedEvent.
func (w *Worker) Cancel() { w.cancelled.Store(true) }

func (w *Worker) emit(ev Event) {
	w.events <- ev
}

func (w *Worker) status(text string) { w.emit(StatusEvent{Text: text}) }
func (w *Worker) progress(pct int)   { w.emit(ProgressEvent{Percent: pct}) }

func (w *Worker) finish(ok bool, summary string, results []ledger.Result) {
	w.emit(FinishedEvent{Success: ok, Summary: summary, Results: results})
}

// Run executes the batch. It always closes the event stream on return, and
// recovers from panics by reporting a classified failure with whatever
// results were accumulated.
func (w *Worker) Run(ctx context.Context) {
	var results []ledger.Result

	defer close(w.done)
	defer close(w.events)
	defer func() {
		if r := recover(); r != nil && !w.cancelled.Load() {
			category := classify.Categorize(fmt.Sprint(r))
			log.Error().Interface("panic", r).Str("file", w.filePath).Msg("worker panicked")
			w.finish(false, "上传异常: "+category, results)
		}
	}()

	if w.cancelled.Load() {
		return
	}

	if _, err := os.Stat(w.filePath); err != nil {
		w.finish(false, fmt.Sprintf("文件不存在: %s", w.filePath), nil)
		return
	}

	w.status("正在连接系统...")
	w.progress(10)

	if w.cancelled.Load() {
		return
	}

	lines, err := ledger.Read(w.filePath)
	if err != nil {
		w.finish(false, fmt.Sprintf("文件读取失败: %s", err), nil)
		return
	}
	if len(lines) == 0 {
		w.finish(false, "文件为空", nil)
		return
	}

	if w.retryMode {
		lines = ledger.FilterFailed(lines)
		if len(lines) == 0 {
			w.finish(true, "🎉 没有失败记录需要重试！", nil)
			return
		}
	}

	connStart := time.Now()
	if err := w.client.Authenticate(ctx); err != nil {
		w.failAll(lines, err)
		return
	}
	w.status(fmt.Sprintf("系统连接成功 (耗时: %.1fs)", time.Since(connStart).Seconds()))
	w.progress(20)

	if w.cancelled.Load() {
		return
	}
	w.progress(30)

	type pending struct {
		fid  string
		rec  ledger.Record
		line string
	}
	var queue []pending
	for _, line := range lines {
		raw := ledger.Split(line).Raw
		rec, ok := ledger.ParseRecord(raw)
		if !ok {
			fid := ledger.FirstField(raw)
			if fid == "" {
				fid = "未知产品"
			}
			results = append(results, ledger.Result{
				OriginalLine: raw,
				Success:      false,
				Err:          classify.CategoryFormat,
				ProductFID:   fid,
			})
			w.emit(RecordEvent{ProductFID: fid, Success: false, Reason: classify.CategoryFormat})
			continue
		}
		queue = append(queue, pending{fid: rec.ProductFID, rec: rec, line: raw})
	}

	batchStart := time.Now()
	successes := 0
	for i, p := range queue {
		if w.cancelled.Load() {
			return
		}

		w.status(fmt.Sprintf("处理 %d/%d: %s", i+1, len(queue), p.fid))

		recordStart := time.Now()
		ok, detail := w.client.ProcessRecord(ctx, p.fid, p.rec)
		elapsed := time.Since(recordStart).Seconds()

		if ok {
			successes++
			results = append(results, ledger.Result{
				OriginalLine: p.line, Success: true, Err: "success", ProductFID: p.fid,
			})
			w.emit(RecordEvent{ProductFID: p.fid, Success: true, Reason: "成功"})
			w.status(fmt.Sprintf("✅ %s 成功 (%.1fs)", p.fid, elapsed))
		} else {
			category := classify.Categorize(detail)
			results = append(results, ledger.Result{
				OriginalLine: p.line, Success: false, Err: category, ProductFID: p.fid,
			})
			w.emit(RecordEvent{ProductFID: p.fid, Success: false, Reason: category})
			w.status(fmt.Sprintf("❌ %s %s (%.1fs)", p.fid, category, elapsed))
		}

		w.progress(30 + (i+1)*60/len(queue))

		if w.cancelled.Load() {
			return
		}
		w.sleep(pacingDelay(successes, i+1))
	}

	if w.cancelled.Load() {
		return
	}
	w.progress(100)

	totalTime := time.Since(batchStart).Seconds()
	failed := 0
	for _, r := range results {
		if !r.Success {
			failed++
		}
	}

	prefix := ""
	if w.retryMode {
		prefix = "🔄 重试结果: "
	}
	switch {
	case failed == 0:
		w.finish(true, fmt.Sprintf("%s🎉 全部成功！%d条记录\n⚡ 总耗时:%.1fs", prefix, successes, totalTime), results)
	case successes > 0:
		w.finish(true, fmt.Sprintf("%s⚠️ 部分成功：%d/%d\n❌ 失败：%d条\n⚡ 总耗时:%.1fs",
			prefix, successes, len(results), failed, totalTime), results)
	default:
		w.finish(false, fmt.Sprintf("%s❌ 全部失败！%d条记录", prefix, failed), results)
	}
}

// failAll reports a connectivity failure once and marks every pending line
// with the same classified reason, without any per-record remote call.
func (w *Worker) failAll(lines []string, err error) {
	reason := classify.Categorize(err.Error())
	w.status("连接失败: " + reason)

	results := make([]ledger.Result, 0, len(lines))
	for i, line := range lines {
		if w.cancelled.Load() {
			return
		}
		raw := ledger.Split(line).Raw
		fid := ledger.FirstField(raw)
		if fid == "" {
			fid = fmt.Sprintf("记录%d", i+1)
		}
		results = append(results, ledger.Result{
			OriginalLine: raw, Success: false, Err: reason, ProductFID: fid,
		})
		w.emit(RecordEvent{ProductFID: fid, Success: false, Reason: reason})
	}
	w.finish(false, fmt.Sprintf("连接失败: %s\n❌ 失败：%d条记录", reason, len(results)), results)
}

// pacingDelay throttles by the running success rate so a healthy run moves
// quickly while a struggling one backs off the remote system.
func pacingDelay(successes, processed int) time.Duration {
	if successes == 0 {
		return 150 * time.Millisecond
	}
	rate := float64(successes) / float64(processed)
	switch {
	case rate > 0.95:
		return 50 * time.Millisecond
	case rate > 0.90:
		return 80 * time.Millisecond
	case rate > 0.70:
		return 150 * time.Millisecond
	default:
		return 300 * time.Millisecond
	}
}
