package run

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/randalmurphal/wiregraph/pkg/wiregraph"
	"github.com/randalmurphal/wiregraph/pkg/wiregraph/observability"
	"github.com/randalmurphal/wiregraph/pkg/wiregraph/outputstore"
)

// Ticket identifies one dispatched run.
type Ticket struct {
	ID       string
	NodeID   string
	Sequence uint64

	// issue orders tickets across all targets.
	issue uint64
}

// Outcome names how a dispatched run ended.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeFailed    Outcome = "failed"
	OutcomeStale     Outcome = "stale"
	OutcomeAbandoned Outcome = "abandoned"
)

// Result is reported once per ticket after its response has been handled.
type Result struct {
	Ticket  Ticket
	Outcome Outcome

	// Outputs are the outputs merged into the editor, keyed by node id.
	Outputs map[string]map[string]any

	// Err is set for failed, stale and abandoned runs. Failed runs carry a
	// *wiregraph.RunError; stale runs wrap wiregraph.ErrStaleResponse.
	Err error

	Duration time.Duration
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithStore caches merged outputs and reads cached outputs as known outputs.
func WithStore(s outputstore.Store) Option {
	return func(d *Dispatcher) {
		d.store = s
	}
}

// WithPollInterval sets the status polling interval for asynchronous runs.
func WithPollInterval(interval time.Duration) Option {
	return func(d *Dispatcher) {
		d.pollInterval = interval
	}
}

// WithResultHandler registers fn to receive every run result.
func WithResultHandler(fn func(Result)) Option {
	return func(d *Dispatcher) {
		d.onResult = fn
	}
}

// Dispatcher sends run requests for an editor's workflow and merges the
// responses back whenever they arrive.
//
// Each RunNode issues a new sequence number for its target. A response for an
// older sequence than the target's latest is dropped. Outputs and statuses of
// other nodes carried by a response are applied only if no newer run has
// already written that node, so a slow response never overwrites a result
// from a newer request.
type Dispatcher struct {
	editor       *wiregraph.Editor
	exec         Executor
	workflowID   string
	store        outputstore.Store
	pollInterval time.Duration
	onResult     func(Result)

	logger  *slog.Logger
	metrics observability.MetricsRecorder
	spans   observability.SpanManager

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	latest  map[string]uint64
	issued  uint64
	written map[string]uint64
}

// NewDispatcher creates a dispatcher for workflowID. Telemetry goes through
// the editor's logger, metrics and spans.
func NewDispatcher(editor *wiregraph.Editor, exec Executor, workflowID string, opts ...Option) *Dispatcher {
	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		editor:       editor,
		exec:         exec,
		workflowID:   workflowID,
		pollInterval: DefaultPollInterval,
		logger:       observability.EnrichLogger(editor.Logger(), workflowID),
		metrics:      editor.Metrics(),
		spans:        editor.Spans(),
		ctx:          ctx,
		cancel:       cancel,
		latest:       make(map[string]uint64),
		written:      make(map[string]uint64),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// RunNode starts a run of nodeID and returns without waiting for the backend.
//
// The node moves to pending; the request reuses cached outputs of upstream
// nodes unless rerunPredecessors is set. The response is merged into the
// editor (and the store, if configured) when it arrives.
func (d *Dispatcher) RunNode(ctx context.Context, nodeID string, rerunPredecessors bool) (Ticket, error) {
	if d.ctx.Err() != nil {
		return Ticket{}, fmt.Errorf("run %s: dispatcher closed", nodeID)
	}
	if err := d.editor.BeginRun(nodeID); err != nil {
		return Ticket{}, err
	}

	known, err := d.knownOutputs()
	if err != nil {
		observability.LogStoreError(d.logger, nodeID, "known", err)
		known = d.editor.KnownOutputs()
	}

	req, err := d.editor.BuildRunRequest(ctx, d.workflowID, nodeID, known, rerunPredecessors)
	if err != nil {
		_ = d.editor.FailRun(nodeID, err.Error())
		return Ticket{}, err
	}

	seq, issue := d.nextSequence(nodeID)
	ticket := Ticket{ID: uuid.NewString(), NodeID: nodeID, Sequence: seq, issue: issue}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stop := context.AfterFunc(d.ctx, cancel)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer cancel()
		defer stop()
		d.dispatch(runCtx, ticket, req)
	}()
	return ticket, nil
}

// Wait blocks until every dispatched run has been handled.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Close abandons in-flight runs and polling, then waits for them to return.
func (d *Dispatcher) Close() {
	d.cancel()
	d.wg.Wait()
}

// Latest returns the newest sequence issued for nodeID, or 0.
func (d *Dispatcher) Latest(nodeID string) uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.latest[nodeID]
}

func (d *Dispatcher) nextSequence(nodeID string) (seq, issue uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.latest[nodeID]++
	d.issued++
	return d.latest[nodeID], d.issued
}

// claim records t as the latest writer of nodeID. It reports false when a
// newer ticket has already written the node.
func (d *Dispatcher) claim(t Ticket, nodeID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.written[nodeID] > t.issue {
		return false
	}
	d.written[nodeID] = t.issue
	return true
}

// owns reports whether t is the latest writer of nodeID.
func (d *Dispatcher) owns(t Ticket, nodeID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.written[nodeID] == t.issue
}

func (d *Dispatcher) stale(t Ticket) bool {
	return d.Latest(t.NodeID) != t.Sequence
}

// knownOutputs layers the editor's completed outputs over the store's cache.
func (d *Dispatcher) knownOutputs() (map[string]map[string]any, error) {
	known := make(map[string]map[string]any)
	if d.store != nil {
		cached, err := d.store.Known(d.workflowID)
		if err != nil {
			return nil, err
		}
		for id, out := range cached {
			if _, ok := d.editor.Node(id); ok {
				known[id] = out
			}
		}
	}
	maps.Copy(known, d.editor.KnownOutputs())
	return known, nil
}

func (d *Dispatcher) dispatch(ctx context.Context, t Ticket, req *wiregraph.RunRequest) {
	ctx, span := d.spans.StartDispatchSpan(ctx, t.NodeID, t.Sequence)
	start := time.Now()

	res := d.handle(ctx, t, req)
	res.Ticket = t
	res.Duration = time.Since(start)

	d.spans.AddSpanEvent(ctx, "run.handled", attribute.String("outcome", string(res.Outcome)))
	d.spans.EndSpanWithError(span, res.Err)
	d.metrics.RecordRunResult(ctx, string(res.Outcome), res.Duration)

	switch res.Outcome {
	case OutcomeCompleted:
		observability.LogRunComplete(d.logger, t.NodeID, len(res.Outputs), float64(res.Duration.Microseconds())/1000)
	case OutcomeFailed:
		observability.LogRunFailed(d.logger, t.NodeID, res.Err)
	}

	if d.onResult != nil {
		d.onResult(res)
	}
}

func (d *Dispatcher) handle(ctx context.Context, t Ticket, req *wiregraph.RunRequest) Result {
	resp, err := d.exec.Submit(ctx, req)
	if ctx.Err() != nil {
		return Result{Outcome: OutcomeAbandoned, Err: ctx.Err()}
	}
	if r, stale := d.dropIfStale(ctx, t); stale {
		return r
	}

	switch {
	case err != nil:
		return d.fail(t, &wiregraph.RunError{NodeID: t.NodeID, Message: err.Error(), Err: err})
	case resp == nil:
		return d.fail(t, &wiregraph.RunError{NodeID: t.NodeID, Message: "empty backend response"})
	case resp.Failed():
		return d.fail(t, resp.Err(t.NodeID))
	case resp.Pending():
		return d.poll(ctx, t, resp.RunID)
	default:
		return d.merge(t, resp.Outputs)
	}
}

func (d *Dispatcher) dropIfStale(ctx context.Context, t Ticket) (Result, bool) {
	if !d.stale(t) {
		return Result{}, false
	}
	latest := d.Latest(t.NodeID)
	d.metrics.RecordStaleResponse(ctx)
	observability.LogStaleResponse(d.logger, t.NodeID, t.Sequence, latest)
	return Result{
		Outcome: OutcomeStale,
		Err:     fmt.Errorf("%w: %s sequence %d, latest %d", wiregraph.ErrStaleResponse, t.NodeID, t.Sequence, latest),
	}, true
}

func (d *Dispatcher) fail(t Ticket, err error) Result {
	msg := err.Error()
	var re *wiregraph.RunError
	if errors.As(err, &re) {
		msg = re.Message
	}
	if ferr := d.editor.FailRun(t.NodeID, msg); ferr != nil {
		d.logger.Debug("failed run not recorded", "node_id", t.NodeID, "error", ferr)
	}
	return Result{Outcome: OutcomeFailed, Err: err}
}

func (d *Dispatcher) merge(t Ticket, outputs map[string]map[string]any) Result {
	fresh := make(map[string]map[string]any, len(outputs))
	var superseded []string
	for _, id := range slices.Sorted(maps.Keys(outputs)) {
		if !d.claim(t, id) {
			superseded = append(superseded, id)
			continue
		}
		fresh[id] = outputs[id]
	}
	var skipped []string
	if len(fresh) > 0 {
		skipped = d.editor.MergeOutputs(fresh)
	}

	merged := make(map[string]map[string]any, len(fresh))
	for id := range fresh {
		n, ok := d.editor.Node(id)
		if !ok {
			continue
		}
		merged[id] = n.Output
		d.save(id, n.Output)
	}
	if len(skipped) > 0 {
		d.logger.Debug("run outputs skipped", "node_id", t.NodeID, "skipped", skipped)
	}
	if len(superseded) > 0 {
		d.logger.Debug("run outputs superseded by a newer run", "node_id", t.NodeID, "superseded", superseded)
	}

	if r, unfinished := d.failUnfinished(t, merged, "response has no output for "+t.NodeID); unfinished {
		return r
	}
	return Result{Outcome: OutcomeCompleted, Outputs: merged}
}

// failUnfinished fails the target if it is still in flight after its run
// finished and no newer run has written it.
func (d *Dispatcher) failUnfinished(t Ticket, outputs map[string]map[string]any, msg string) (Result, bool) {
	target, ok := d.editor.Node(t.NodeID)
	if !ok || !target.Status.InFlight() || !d.claim(t, t.NodeID) {
		return Result{}, false
	}
	res := d.fail(t, &wiregraph.RunError{NodeID: t.NodeID, Message: msg})
	res.Outputs = outputs
	return res, true
}

func (d *Dispatcher) poll(ctx context.Context, t Ticket, runID string) Result {
	p := NewPoller(d.editor, d.exec, d.pollInterval)
	p.accept = func(nodeID string) bool { return d.claim(t, nodeID) }
	st, err := p.Poll(ctx, runID)
	if err != nil {
		return Result{Outcome: OutcomeAbandoned, Err: err}
	}

	outputs := make(map[string]map[string]any)
	for id := range st.Outputs {
		n, ok := d.editor.Node(id)
		if !ok || n.Status != wiregraph.StatusCompleted || !d.owns(t, id) {
			continue
		}
		outputs[id] = n.Output
		d.save(id, n.Output)
	}

	target, ok := d.editor.Node(t.NodeID)
	if !ok {
		return Result{Outcome: OutcomeAbandoned, Outputs: outputs, Err: fmt.Errorf("%w: %s", wiregraph.ErrNodeNotFound, t.NodeID)}
	}
	if r, unfinished := d.failUnfinished(t, outputs, "run finished without reporting "+t.NodeID); unfinished {
		return r
	}
	if target.Status != wiregraph.StatusCompleted {
		msg := target.Error
		if msg == "" {
			msg = "run ended " + string(target.Status)
		}
		return Result{
			Outcome: OutcomeFailed,
			Outputs: outputs,
			Err:     &wiregraph.RunError{NodeID: t.NodeID, Message: msg},
		}
	}
	return Result{Outcome: OutcomeCompleted, Outputs: outputs}
}

func (d *Dispatcher) save(nodeID string, output map[string]any) {
	if d.store == nil {
		return
	}
	if err := d.store.Save(d.workflowID, nodeID, output); err != nil {
		observability.LogStoreError(d.logger, nodeID, "save", err)
	}
}
