package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"pkt.systems/termdeck/internal/logx"
	"pkt.systems/termdeck/internal/metrics"
	"pkt.systems/termdeck/schema"
	"pkt.systems/pslog"
)

const (
	historyRetryInitialInterval = 100 * time.Millisecond
	historyRetryMaxInterval     = 2 * time.Second
)

type outputViewConfig struct {
	history    HistorySource
	recorder   OutputRecorder
	sink       EventSink
	metrics    *metrics.Metrics
	timeout    time.Duration
	retries    uint64
	maxEntries int
}

// OutputView is the rendered output of one mounted pane. Live payloads are
// only tested once the pane's history has been loaded and seeded.
type OutputView struct {
	tabID  schema.TabID
	paneID schema.PaneID
	cfg    outputViewConfig
	log    pslog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	ready  chan struct{}
	wg     sync.WaitGroup

	mu     sync.Mutex
	known  *KnownPayloadSet
	buffer *renderBuffer
	closed bool
}

func mountOutputView(ctx context.Context, tabID schema.TabID, paneID schema.PaneID, cfg outputViewConfig) *OutputView {
	log := logx.WithTabPane(ctx, tabID, paneID)
	viewCtx, cancel := context.WithCancel(logx.ContextWithTabPaneLogger(logx.Detach(ctx), log, tabID, paneID))
	v := &OutputView{
		tabID:  tabID,
		paneID: paneID,
		cfg:    cfg,
		log:    log,
		ctx:    viewCtx,
		cancel: cancel,
		ready:  make(chan struct{}),
		buffer: newRenderBuffer(cfg.maxEntries),
	}
	cfg.metrics.ViewMounted(1)
	v.wg.Add(1)
	go v.seed()
	return v
}

// TabID returns the tab the view belongs to.
func (v *OutputView) TabID() schema.TabID { return v.tabID }

// PaneID returns the pane the view renders.
func (v *OutputView) PaneID() schema.PaneID { return v.paneID }

// Ready is closed once history has been seeded, or abandoned.
func (v *OutputView) Ready() <-chan struct{} { return v.ready }

func (v *OutputView) seed() {
	defer v.wg.Done()
	defer close(v.ready)
	history, err := v.loadHistory()
	if err != nil {
		if v.ctx.Err() != nil && errors.Is(err, context.Canceled) {
			v.log.Debug("output view history load canceled")
			return
		}
		v.log.Warn("output view history load abandoned", "err", err)
		v.cfg.metrics.ObserveHistoryFailed()
		history = nil
	}
	known := BuildKnownOutputPayloads(history)

	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return
	}
	v.known = known
	v.buffer.Append(history...)
	v.mu.Unlock()

	v.cfg.metrics.ObserveHistorySeeded(known.Len())
	if len(history) > 0 && v.cfg.sink != nil {
		v.cfg.sink.OnOutput(schema.OutputEvent{
			TabID:    v.tabID,
			PaneID:   v.paneID,
			Payloads: append([]string(nil), history...),
			History:  true,
		})
	}
	v.log.Debug("output view seeded", "history", len(history), "known", known.Len())
}

func (v *OutputView) loadHistory() ([]string, error) {
	if v.cfg.history == nil {
		return nil, nil
	}
	ctx := v.ctx
	if v.cfg.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, v.cfg.timeout)
		defer cancel()
	}
	var history []string
	op := func() error {
		loaded, err := v.cfg.history.LoadPaneHistory(ctx, v.tabID, v.paneID)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return err
		}
		history = loaded
		return nil
	}
	notify := func(err error, wait time.Duration) {
		v.log.Debug("output view history load retry", "err", err, "wait", wait)
	}
	if err := backoff.RetryNotify(op, newHistoryBackoff(ctx, v.cfg.retries), notify); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}
	return history, nil
}

func newHistoryBackoff(ctx context.Context, retries uint64) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = historyRetryInitialInterval
	b.MaxInterval = historyRetryMaxInterval
	b.MaxElapsedTime = 0
	b.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(b, retries), ctx)
}

// Feed tests a live payload against the pane's known set, blocking until
// the view is seeded. Accepted payloads are rendered, recorded and
// published. The boolean reports acceptance.
func (v *OutputView) Feed(ctx context.Context, payload string) (bool, error) {
	select {
	case <-v.ready:
	case <-ctx.Done():
		return false, ctx.Err()
	case <-v.ctx.Done():
		return false, fmt.Errorf("feed %s: %w", v.paneID, schema.ErrPaneClosed)
	}

	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return false, fmt.Errorf("feed %s: %w", v.paneID, schema.ErrPaneClosed)
	}
	accepted := ShouldProcessLiveOutputPayload(v.known, payload)
	if accepted {
		v.buffer.Append(payload)
	}
	v.mu.Unlock()

	v.cfg.metrics.ObservePayload(accepted)
	if !accepted {
		v.log.Trace("output view payload rejected", "reason", "known")
		return false, nil
	}
	if v.cfg.recorder != nil {
		if err := v.cfg.recorder.RecordPayload(v.ctx, v.tabID, v.paneID, payload); err != nil {
			v.log.Warn("output view payload record failed", "err", err)
		}
	}
	if v.cfg.sink != nil {
		v.cfg.sink.OnOutput(schema.OutputEvent{TabID: v.tabID, PaneID: v.paneID, Payloads: []string{payload}})
	}
	v.log.Trace("output view payload accepted", "bytes", len(payload))
	return true, nil
}

// Attach pumps a live feed into the view in arrival order until the channel
// closes, ctx ends or the view is closed.
func (v *OutputView) Attach(ctx context.Context, feed <-chan string) {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return
	}
	v.wg.Add(1)
	v.mu.Unlock()
	go func() {
		defer v.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case <-v.ctx.Done():
				return
			case payload, ok := <-feed:
				if !ok {
					v.log.Debug("output view feed closed")
					return
				}
				if _, err := v.Feed(ctx, payload); err != nil {
					if !errors.Is(err, schema.ErrPaneClosed) && !errors.Is(err, context.Canceled) {
						v.log.Warn("output view feed failed", "err", err)
					}
					return
				}
			}
		}
	}()
}

// Snapshot returns the visible part of the rendered sequence. A limit of
// zero returns everything.
func (v *OutputView) Snapshot(limit int) schema.BufferSnapshot {
	v.mu.Lock()
	view := v.buffer.Snapshot(limit)
	v.mu.Unlock()
	return schema.BufferSnapshot{
		TabID:        v.tabID,
		PaneID:       v.paneID,
		Payloads:     view.Payloads,
		Total:        view.Total,
		ScrollOffset: view.ScrollOffset,
		AtBottom:     view.AtBottom,
	}
}

// Scroll moves the viewport by delta entries and returns the new state.
// Positive deltas scroll towards older output.
func (v *OutputView) Scroll(delta, limit int) schema.PaneState {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.buffer.Scroll(delta, limit)
	return schema.PaneState{ScrollOffset: v.buffer.scrollOffset, AtBottom: v.buffer.scrollOffset == 0}
}

// ScrollToBottom returns the viewport to the newest output.
func (v *OutputView) ScrollToBottom() schema.PaneState {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.buffer.ResetScroll()
	return schema.PaneState{AtBottom: true}
}

// Known returns the number of payloads in the pane's known set.
func (v *OutputView) Known() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.known.Len()
}

// Close tears the view down: the known set is discarded, pending history
// loads and pumps stop, and later feeds fail with schema.ErrPaneClosed.
func (v *OutputView) Close() {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return
	}
	v.closed = true
	v.known = nil
	v.mu.Unlock()
	v.cancel()
	v.wg.Wait()
	v.cfg.metrics.ViewMounted(-1)
	v.log.Debug("output view closed")
}
