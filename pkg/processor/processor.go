// Package processor drives tasks through the pipeline: plan, classify,
// risk-score, admit, execute, and record the outcome. The Loop in this
// package runs that pipeline, plus the housekeeping around it, on a
// fixed cadence.
package processor

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cuemby/hutch/pkg/audit"
	"github.com/cuemby/hutch/pkg/classifier"
	"github.com/cuemby/hutch/pkg/concurrency"
	"github.com/cuemby/hutch/pkg/config"
	"github.com/cuemby/hutch/pkg/events"
	"github.com/cuemby/hutch/pkg/executor"
	"github.com/cuemby/hutch/pkg/graph"
	"github.com/cuemby/hutch/pkg/healing"
	"github.com/cuemby/hutch/pkg/learning"
	"github.com/cuemby/hutch/pkg/log"
	"github.com/cuemby/hutch/pkg/metrics"
	"github.com/cuemby/hutch/pkg/notify"
	"github.com/cuemby/hutch/pkg/planner"
	"github.com/cuemby/hutch/pkg/risk"
	"github.com/cuemby/hutch/pkg/rollback"
	"github.com/cuemby/hutch/pkg/sla"
	"github.com/cuemby/hutch/pkg/types"
	"github.com/cuemby/hutch/pkg/vault"
)

// distantFuture sorts tasks with unreadable metadata to the back.
var distantFuture = time.Date(9999, 1, 1, 0, 0, 0, 0, time.UTC)

// Processor coordinates the per-task pipeline. Admitted tasks run on
// worker goroutines bounded by the concurrency controller; everything
// else happens on the caller's goroutine.
type Processor struct {
	vault    *vault.Vault
	cfg      *config.Config
	auditLog *audit.Log
	store    learning.Store
	notifier notify.Notifier
	broker   *events.Broker

	planner    *planner.Planner
	classifier *classifier.Classifier
	executor   *executor.Executor
	scorer     *risk.Scorer
	predictor  *sla.Predictor
	tracker    *sla.Tracker
	healer     *healing.Engine
	controller *concurrency.Controller
	rollback   *rollback.Manager

	mu        sync.Mutex
	processed map[string]struct{}
	workers   sync.WaitGroup
	now       func() time.Time
}

// New wires a processor and its sub-engines over the vault. The broker
// may be nil; lifecycle events are then skipped.
func New(v *vault.Vault, cfg *config.Config, auditLog *audit.Log,
	store learning.Store, notifier notify.Notifier, broker *events.Broker) *Processor {

	if notifier == nil {
		notifier = notify.NoOp{}
	}
	weights := risk.Weights{
		SLA:        cfg.RiskWeightSLA,
		Complexity: cfg.RiskWeightComplexity,
		Impact:     cfg.RiskWeightImpact,
		Failure:    cfg.RiskWeightFailure,
	}
	return &Processor{
		vault:      v,
		cfg:        cfg,
		auditLog:   auditLog,
		store:      store,
		notifier:   notifier,
		broker:     broker,
		planner:    planner.New(v, store, auditLog),
		classifier: classifier.New(v.Root(), cfg.AllowedExternalServices, cfg.SLASimpleMinutes, cfg.SLAComplexMinutes, auditLog),
		executor:   executor.New(v, auditLog),
		scorer:     risk.New(weights, auditLog),
		predictor:  sla.NewPredictor(cfg.PredictionThreshold, auditLog),
		tracker:    sla.NewTracker(cfg.SLASimpleMinutes, cfg.SLAComplexMinutes, auditLog),
		healer:     healing.New(cfg.MaxRecoveryAttempts, auditLog),
		controller: concurrency.New(cfg.MaxParallelTasks, cfg.TaskTimeoutMinutes, auditLog),
		rollback:   rollback.New(v, cfg.RollbackRetentionDays, auditLog),
		processed:  make(map[string]struct{}),
		now:        time.Now,
	}
}

// Controller exposes the admission controller for timeout sweeps and
// gauge sampling.
func (p *Processor) Controller() *concurrency.Controller {
	return p.controller
}

// Rollback exposes the snapshot manager for retention sweeps.
func (p *Processor) Rollback() *rollback.Manager {
	return p.rollback
}

// Wait blocks until every in-flight execution worker finishes.
func (p *Processor) Wait() {
	p.workers.Wait()
}

// Pending lists the tasks waiting in Needs_Action.
func (p *Processor) Pending() ([]string, error) {
	return p.vault.List(vault.FolderNeedsAction)
}

// MaintainStore purges learning records that aged out of the retention
// window and recomputes the aggregates from what survives.
func (p *Processor) MaintainStore() {
	purged, err := p.store.Maintenance()
	if err != nil {
		log.WithComponent("processor").Warn().Err(err).Msg("learning store maintenance failed")
		return
	}
	if purged > 0 {
		log.WithComponent("processor").Info().Int("purged", purged).Msg("Expired learning records removed")
	}
}

// ProcessAllPending plans every pending task that has no plan yet,
// classifies it, and hands eligible tasks to the execution pool. The
// return value is the number of plans generated. Tasks that fail are
// not remembered, so the next cycle retries them.
func (p *Processor) ProcessAllPending(ctx context.Context) int {
	names, err := p.Pending()
	if err != nil {
		log.WithComponent("processor").Error().Err(err).Msg("cannot list pending tasks")
		return 0
	}

	plans := 0
	for _, name := range p.ExecutionSequence(names) {
		if ctx.Err() != nil {
			break
		}
		if p.alreadyProcessed(name) {
			continue
		}
		if p.planner.HasPlan(name) {
			p.markProcessed(name)
			continue
		}
		if err := p.ProcessTask(ctx, name); err != nil {
			log.WithComponent("processor").Error().
				Err(err).
				Str("task", name).
				Msg("task processing failed")
			continue
		}
		plans++
		p.markProcessed(name)
	}
	return plans
}

// ProcessTask generates and links a plan for one pending task, then
// classifies it and, when automation policy allows, submits it for
// execution.
func (p *Processor) ProcessTask(ctx context.Context, name string) error {
	task, body, err := p.vault.ReadTask(vault.FolderNeedsAction, name)
	if err != nil {
		return err
	}

	g, planName, err := p.planner.Generate(name, body, task.Type)
	if err != nil {
		return fmt.Errorf("plan generation failed for %s: %w", name, err)
	}
	p.linkPlan(name, planName)
	p.publish(events.EventPlanGenerated, task.ID, "Plan generated: "+planName)

	p.classify(ctx, name, g)
	return nil
}

// ExecutionSequence orders pending tasks for processing: priority
// first, oldest first within a priority. With risk scoring enabled the
// order comes from the composite risk ranking instead.
func (p *Processor) ExecutionSequence(names []string) []string {
	infos := make([]pendingTask, 0, len(names))
	for _, name := range names {
		task, _, err := p.vault.ReadTask(vault.FolderNeedsAction, name)
		if err != nil {
			task = nil
		}
		infos = append(infos, pendingTask{name: name, task: task})
	}

	if p.cfg.EnableRiskScoring {
		return p.riskOrder(infos)
	}

	sort.SliceStable(infos, func(i, j int) bool {
		pi, pj := priorityOf(infos[i].task), priorityOf(infos[j].task)
		if pi != pj {
			return pi > pj
		}
		return createdOf(infos[i].task).Before(createdOf(infos[j].task))
	})

	out := make([]string, len(infos))
	for i, info := range infos {
		out[i] = info.name
	}
	return out
}

type pendingTask struct {
	name string
	task *types.Task
}

func priorityOf(t *types.Task) int {
	if t == nil {
		return 0
	}
	return t.Priority.Value()
}

func createdOf(t *types.Task) time.Time {
	if t == nil || t.Created.IsZero() {
		return distantFuture
	}
	return t.Created
}

// riskOrder ranks tasks by composite risk, highest first.
func (p *Processor) riskOrder(infos []pendingTask) []string {
	candidates := make([]risk.Candidate, len(infos))
	for i, info := range infos {
		var meta risk.Meta
		var hist *types.LearningMetrics
		if info.task != nil {
			meta = risk.Meta{
				Complexity: info.task.Complexity,
				Priority:   info.task.Priority,
				SLARisk:    p.slaRisk(info.task),
			}
			hist = p.store.Query(info.task.Type)
		}
		candidates[i] = risk.Candidate{TaskID: info.name, Meta: meta, Hist: hist}
	}

	scores := p.scorer.Reorder(candidates)
	out := make([]string, len(scores))
	for i, s := range scores {
		out[i] = s.TaskID
	}
	return out
}

// slaRisk grades how much of a task's deadline is already spent
// waiting. Unclassified tasks measure from creation against the
// complex threshold.
func (p *Processor) slaRisk(task *types.Task) float64 {
	start := task.ClassifiedAt
	if start.IsZero() {
		start = task.Created
	}
	if start.IsZero() {
		return 0
	}
	threshold := p.tracker.Threshold(task.Complexity)
	if threshold <= 0 {
		return 0
	}
	frac := p.now().Sub(start).Minutes() / threshold
	if frac < 0 {
		return 0
	}
	if frac > 1 {
		return 1
	}
	return frac
}

// classify runs the gates, records the verdict on the task, and
// submits the task for execution when automation policy allows.
func (p *Processor) classify(ctx context.Context, name string, g *graph.Graph) {
	folder, ok := p.vault.Locate(name)
	if !ok {
		p.reportError(name, fmt.Errorf("task disappeared before classification: %s", name))
		return
	}
	task, body, err := p.vault.ReadTask(folder, name)
	if err != nil {
		p.reportError(name, err)
		return
	}

	label, gates := p.classifier.Classify(body, stepNames(g), task)

	task.Complexity = label
	task.ClassifiedAt = p.now()
	task.GateResults = gates
	if err := p.vault.WriteTask(folder, name, task, body); err != nil {
		p.reportError(name, err)
		return
	}
	p.auditLog.Append(audit.OpTaskClassified, name, folder, "", audit.OutcomeSuccess,
		"complexity:"+string(label))

	if !p.shouldExecute(label) {
		return
	}
	p.submit(ctx, name, g)
}

// shouldExecute applies the automation policy. Manual review tasks are
// never executed.
func (p *Processor) shouldExecute(label types.Complexity) bool {
	switch label {
	case types.ComplexitySimple:
		return p.cfg.AutoExecuteSimple
	case types.ComplexityComplex:
		return p.cfg.AutoExecuteComplex
	}
	return false
}

// submit claims an execution slot or parks the task in the wait queue,
// ordered by composite risk.
func (p *Processor) submit(ctx context.Context, name string, g *graph.Graph) {
	slot := p.controller.Acquire(name)
	if slot == nil {
		p.controller.Enqueue(name, p.queueRisk(name))
		return
	}
	p.workers.Add(1)
	go func() {
		defer p.workers.Done()
		p.execute(ctx, name, g, slot)
	}()
}

// DrainQueue admits queued tasks while slots are free, highest risk
// first, and returns how many were admitted.
func (p *Processor) DrainQueue(ctx context.Context) int {
	admitted := 0
	for ctx.Err() == nil && p.controller.ActiveCount() < p.cfg.MaxParallelTasks {
		name, ok := p.controller.Dequeue()
		if !ok {
			break
		}
		g, err := p.loadGraph(name)
		if err != nil {
			p.reportError(name, err)
			continue
		}
		slot := p.controller.Acquire(name)
		if slot == nil {
			p.controller.Enqueue(name, p.queueRisk(name))
			break
		}
		admitted++
		p.workers.Add(1)
		go func() {
			defer p.workers.Done()
			p.execute(ctx, name, g, slot)
		}()
	}
	return admitted
}

// FailTimedOut marks a task that lost its execution slot to the
// deadline.
func (p *Processor) FailTimedOut(name string) {
	p.auditLog.Append(audit.OpError, name, "task_processor", "", audit.OutcomeFailed,
		fmt.Sprintf("execution timed out after %.0f minutes", p.cfg.TaskTimeoutMinutes))
	if task := p.updateStatus(name, types.StatusFailed); task != nil {
		metrics.TasksProcessed.WithLabelValues(string(types.StatusFailed)).Inc()
		p.publish(events.EventTaskFailed, task.ID, "Task timed out: "+name)
	}
}

// queueRisk scores a task for its position in the wait queue. Tasks
// that cannot be scored queue at the back.
func (p *Processor) queueRisk(name string) float64 {
	folder, ok := p.vault.Locate(name)
	if !ok {
		return 0
	}
	task, _, err := p.vault.ReadTask(folder, name)
	if err != nil {
		return 0
	}
	meta := risk.Meta{
		Complexity: task.Complexity,
		Priority:   task.Priority,
		SLARisk:    p.slaRisk(task),
	}
	score, err := p.scorer.Score(name, meta, p.store.Query(task.Type))
	if err != nil {
		return 0
	}
	return score.Composite
}

// execute runs one admitted task to a terminal status. It owns the
// slot for the duration and frees it on every path.
func (p *Processor) execute(ctx context.Context, name string, g *graph.Graph, slot *types.Slot) {
	if ctx.Err() != nil {
		p.controller.Release(slot.ID)
		return
	}

	task := p.moveToExecution(name)
	if task == nil {
		p.controller.Release(slot.ID)
		return
	}
	label := task.Complexity

	if p.cfg.EnablePredictiveSLA {
		p.predict(name, task)
	}

	timer := metrics.NewTimer()

	var snapshotDir string
	if label == types.ComplexityComplex {
		dir, ok := p.snapshot(name)
		if !ok {
			p.finishBlocked(name, slot)
			return
		}
		snapshotDir = dir
	}

	result := p.executor.Execute(name, stepNames(g))
	for _, sr := range result.StepResults {
		metrics.StepsExecuted.WithLabelValues(stepOutcome(sr.Success)).Inc()
	}
	syncGraph(g, result)

	retries := 0
	recovered := false
	partialKept := false
	if !result.Success && result.StepsExecuted > 0 && p.cfg.EnableSelfHealing {
		attempts := p.heal(name, g, &result)
		retries = len(attempts)
		for _, a := range attempts {
			if a.Succeeded() {
				recovered = true
				if a.Strategy == types.StrategyPartial {
					partialKept = true
				}
			}
		}
	}
	p.saveGraph(name, g)

	status := types.StatusFailed
	switch {
	case result.Success:
		status = types.StatusDone
	case partialKept:
		// completed steps are kept, so no restore
	case snapshotDir != "":
		if p.restore(name, snapshotDir) {
			status = types.StatusFailedRollback
		}
	}

	outcome := audit.OutcomeFailed
	if result.Success {
		outcome = audit.OutcomeSuccess
	}
	p.auditLog.Append(audit.OpTaskExecuted, name, vault.FolderInProgress, "", outcome,
		fmt.Sprintf("op:%s complexity:%s", result.Operation, label))
	p.appendExecutionLog(name, result)

	p.finish(name, status, timer, retries, recovered)
	p.controller.Complete(slot.ID)
}

// moveToExecution relocates the task under In_Progress and stamps the
// in_progress status. Tasks the mover already relocated stay put.
func (p *Processor) moveToExecution(name string) *types.Task {
	folder, ok := p.vault.Locate(name)
	if !ok {
		p.reportError(name, fmt.Errorf("task not found: %s", name))
		return nil
	}
	if folder == vault.FolderNeedsAction {
		if err := p.vault.MoveToInProgress(name); err != nil {
			p.reportError(name, err)
			return nil
		}
	}
	return p.updateStatus(name, types.StatusInProgress)
}

// predict runs the breach forecast for a task entering execution.
func (p *Processor) predict(name string, task *types.Task) {
	elapsed := 0.0
	if !task.ClassifiedAt.IsZero() {
		elapsed = p.now().Sub(task.ClassifiedAt).Minutes()
		if elapsed < 0 {
			elapsed = 0
		}
	}
	pred := p.predictor.Predict(name, task.Type, elapsed,
		p.tracker.Threshold(task.Complexity), p.store.Query(task.Type))
	metrics.Predictions.WithLabelValues(string(pred.Recommendation)).Inc()
}

// snapshot captures pre-execution state for a complex task and links
// it in the frontmatter.
func (p *Processor) snapshot(name string) (string, bool) {
	taskPath := filepath.Join(p.vault.Dir(vault.FolderInProgress), name)
	dir, err := p.rollback.CreateSnapshot(taskPath)
	if err != nil {
		log.WithTaskFile(name).Error().Err(err).Msg("snapshot failed, blocking execution")
		return "", false
	}

	if folder, ok := p.vault.Locate(name); ok {
		if task, body, err := p.vault.ReadTask(folder, name); err == nil {
			task.RollbackRef = dir
			if err := p.vault.WriteTask(folder, name, task, body); err != nil {
				log.WithTaskFile(name).Warn().Err(err).Msg("could not link rollback snapshot")
			}
		}
	}
	return dir, true
}

// restore copies the snapshot back over the task and its outputs,
// which also marks the task failed_rollback.
func (p *Processor) restore(name, snapshotDir string) bool {
	taskPath := filepath.Join(p.vault.Dir(vault.FolderInProgress), name)
	if err := p.rollback.Restore(snapshotDir, taskPath); err != nil {
		p.reportError(name, err)
		return false
	}
	return true
}

// heal runs the recovery cascade for the failing step and, when the
// step recovers, resumes the steps the halt skipped. A second failure
// during the resume escalates without another cascade.
func (p *Processor) heal(name string, g *graph.Graph, res *executor.Result) []types.RecoveryAttempt {
	order, err := g.ExecutionOrder()
	if err != nil || res.StepsExecuted < 1 || res.StepsExecuted > len(order) {
		return nil
	}
	failedIdx := res.StepsExecuted - 1
	failedStep := order[failedIdx]

	rerun := func(step *graph.Step) (bool, error) {
		sr := p.executor.ExecuteStep(name, step.Name, step.Priority)
		if !sr.Success {
			return false, errors.New(sr.Detail)
		}
		return true, nil
	}

	attempts := p.healer.Recover(name, failedStep, g, rerun)
	for _, a := range attempts {
		metrics.RecoveryAttempts.WithLabelValues(string(a.Strategy), a.Outcome).Inc()
	}

	for _, a := range attempts {
		if !a.Succeeded() || a.Strategy == types.StrategyPartial {
			continue
		}
		failedStep.Status = graph.StepCompleted
		p.resume(name, order, failedIdx+1, res)
		break
	}
	return attempts
}

// resume executes the steps after a recovered failure point.
func (p *Processor) resume(name string, order []*graph.Step, from int, res *executor.Result) {
	for i := from; i < len(order); i++ {
		step := order[i]
		sr := p.executor.ExecuteStep(name, step.Name, step.Priority)
		res.StepResults = append(res.StepResults, sr)
		res.StepsExecuted = i + 1
		metrics.StepsExecuted.WithLabelValues(stepOutcome(sr.Success)).Inc()
		if !sr.Success {
			step.Status = graph.StepFailed
			res.Detail = fmt.Sprintf("Halted at step %d/%d after recovery: %s", i+1, len(order), sr.Detail)
			return
		}
		step.Status = graph.StepCompleted
		res.LastSuccessfulStep = i + 1
	}
	res.Success = true
	res.Detail = fmt.Sprintf("All %d steps completed after recovery", len(order))
}

// finish stamps the terminal status, notifies, runs the retrospective
// deadline check, and feeds the outcome back into the learning store.
func (p *Processor) finish(name string, status types.TaskStatus, timer *metrics.Timer, retries int, recovered bool) {
	var task *types.Task
	if status == types.StatusFailedRollback {
		// the restore already rewrote the frontmatter
		if folder, ok := p.vault.Locate(name); ok {
			task, _, _ = p.vault.ReadTask(folder, name)
		}
		p.notifier.Send(notify.Event{
			TaskName:  name,
			OldStatus: string(types.StatusInProgress),
			NewStatus: string(status),
			Timestamp: p.now(),
			Severity:  notify.SeverityFor(status),
		})
	} else {
		task = p.updateStatus(name, status)
	}

	breached := false
	if status == types.StatusDone || status == types.StatusFailed {
		breached = p.tracker.CheckTask(name, task)
	}
	if breached {
		metrics.SLABreaches.Inc()
	}

	metrics.TasksProcessed.WithLabelValues(string(status)).Inc()
	if task != nil {
		timer.ObserveDurationVec(metrics.TaskDuration, string(task.Complexity))
		p.record(task, status, timer, retries, recovered, breached)
	}

	if status == types.StatusDone {
		p.publish(events.EventTaskCompleted, taskID(task, name), "Task completed: "+name)
	} else {
		p.publish(events.EventTaskFailed, taskID(task, name),
			fmt.Sprintf("Task failed: %s (%s)", name, status))
	}
}

// finishBlocked handles a failed snapshot: execution never starts and
// the task parks in blocked for an operator.
func (p *Processor) finishBlocked(name string, slot *types.Slot) {
	p.updateStatus(name, types.StatusBlocked)
	p.appendExecutionLog(name, executor.Result{
		Operation: executor.Unknown,
		Detail:    "rollback_snapshot_failed",
	})
	p.publish(events.EventTaskFailed, name, "Task blocked: "+name)
	p.controller.Release(slot.ID)
}

// record feeds one terminal outcome into the learning store. Duration
// prefers the classified-to-completed span and falls back to measured
// execution time for tasks missing timestamps.
func (p *Processor) record(task *types.Task, status types.TaskStatus, timer *metrics.Timer, retries int, recovered, breached bool) {
	if !status.Terminal() {
		return
	}
	durationMS := float64(timer.Duration().Milliseconds())
	if !task.ClassifiedAt.IsZero() && !task.CompletedAt.IsZero() {
		if span := task.CompletedAt.Sub(task.ClassifiedAt); span > 0 {
			durationMS = float64(span.Milliseconds())
		}
	}
	outcome := learning.OutcomeFailure
	if status == types.StatusDone {
		outcome = learning.OutcomeSuccess
	}
	taskType := task.Type
	if taskType == "" {
		taskType = types.TypeGeneral
	}
	p.store.Record(taskType, durationMS, outcome, retries, recovered, breached)
}

// updateStatus rewrites the task status in place and notifies the
// transition. Returns nil when the task cannot be updated.
func (p *Processor) updateStatus(name string, status types.TaskStatus) *types.Task {
	old := types.StatusPending
	if folder, ok := p.vault.Locate(name); ok {
		if prev, _, err := p.vault.ReadTask(folder, name); err == nil {
			old = prev.Status
		}
	}

	_, task, err := p.vault.UpdateStatus(name, status)
	if err != nil {
		p.reportError(name, err)
		return nil
	}

	log.WithTaskFile(name).Info().
		Str("status", string(status)).
		Int("version", task.Version).
		Msg("task status updated")

	p.notifier.Send(notify.Event{
		TaskName:  name,
		OldStatus: string(old),
		NewStatus: string(status),
		Timestamp: p.now(),
		Severity:  notify.SeverityFor(status),
	})
	return task
}

// linkPlan stamps the plan reference into the task frontmatter.
func (p *Processor) linkPlan(name, planName string) {
	task, body, err := p.vault.ReadTask(vault.FolderNeedsAction, name)
	if err != nil {
		p.reportError(name, err)
		return
	}
	task.PlanRef = planName
	task.PlanGenerated = p.now()
	if err := p.vault.WriteTask(vault.FolderNeedsAction, name, task, body); err != nil {
		p.reportError(name, err)
	}
}

// appendExecutionLog writes per-step outcomes into the task body under
// an Execution Log section, newest run first.
func (p *Processor) appendExecutionLog(name string, res executor.Result) {
	folder, ok := p.vault.Locate(name)
	if !ok {
		return
	}
	task, body, err := p.vault.ReadTask(folder, name)
	if err != nil {
		return
	}

	ts := p.now().Format("2006-01-02 15:04:05")
	var lines []string
	if len(res.StepResults) > 0 {
		for _, sr := range res.StepResults {
			lines = append(lines, fmt.Sprintf("- %s: step %d: op=%s success=%t detail=%s",
				ts, sr.Step, sr.Operation, sr.Success, sr.Detail))
		}
	} else {
		lines = append(lines, fmt.Sprintf("- %s: op=%s success=%t detail=%s",
			ts, res.Operation, res.Success, res.Detail))
	}
	entry := strings.Join(lines, "\n")

	const header = "## Execution Log"
	if idx := strings.Index(body, header); idx >= 0 {
		insertAt := idx + len(header)
		rest := strings.TrimLeft(body[insertAt:], "\n")
		insertAt += len(body[insertAt:]) - len(rest)
		body = body[:insertAt] + entry + "\n" + body[insertAt:]
	} else {
		if !strings.HasSuffix(body, "\n") {
			body += "\n"
		}
		body += "\n" + header + "\n\n" + entry + "\n"
	}

	if err := p.vault.WriteTask(folder, name, task, body); err != nil {
		log.WithTaskFile(name).Warn().Err(err).Msg("could not append execution log")
	}
}

// loadGraph reads the persisted execution graph for a task.
func (p *Processor) loadGraph(name string) (*graph.Graph, error) {
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	return graph.LoadFile(filepath.Join(p.vault.Dir(vault.FolderPlans), stem+".graph.json"))
}

// saveGraph persists step statuses after an execution run.
func (p *Processor) saveGraph(name string, g *graph.Graph) {
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	path := filepath.Join(p.vault.Dir(vault.FolderPlans), stem+".graph.json")
	if err := g.WriteFile(path); err != nil {
		log.WithTaskFile(name).Warn().Err(err).Msg("could not persist step statuses")
	}
}

// reportError logs and audits a processing failure for one task.
func (p *Processor) reportError(name string, err error) {
	log.WithComponent("processor").Error().Err(err).Str("task", name).Msg("processing error")
	p.auditLog.Append(audit.OpError, name, "task_processor", "", audit.OutcomeFailed, err.Error())
}

func (p *Processor) publish(eventType events.EventType, id, message string) {
	if p.broker == nil {
		return
	}
	p.broker.Publish(&events.Event{Type: eventType, TaskID: id, Message: message})
}

func (p *Processor) alreadyProcessed(name string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.processed[name]
	return ok
}

func (p *Processor) markProcessed(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.processed[name] = struct{}{}
}

// syncGraph copies per-step outcomes onto the graph nodes.
func syncGraph(g *graph.Graph, res executor.Result) {
	order, err := g.ExecutionOrder()
	if err != nil {
		return
	}
	for _, sr := range res.StepResults {
		idx := sr.Step - 1
		if idx < 0 || idx >= len(order) {
			continue
		}
		if sr.Success {
			order[idx].Status = graph.StepCompleted
		} else {
			order[idx].Status = graph.StepFailed
		}
	}
}

func stepNames(g *graph.Graph) []string {
	order, err := g.ExecutionOrder()
	if err != nil {
		return nil
	}
	names := make([]string, len(order))
	for i, s := range order {
		names[i] = s.Name
	}
	return names
}

func stepOutcome(success bool) string {
	if success {
		return "success"
	}
	return "failed"
}

func taskID(task *types.Task, fallback string) string {
	if task != nil && task.ID != "" {
		return task.ID
	}
	return fallback
}
