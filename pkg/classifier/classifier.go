package classifier

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/cuemby/hutch/pkg/audit"
	"github.com/cuemby/hutch/pkg/log"
	"github.com/cuemby/hutch/pkg/types"
	"github.com/cuemby/hutch/pkg/vault"
)

// Step count boundaries for the first gate.
const (
	MaxSimpleSteps  = 5
	MaxComplexSteps = 15
)

// Gate result keys written into task frontmatter.
const (
	GateStepCount   = "gate_1_step_count"
	GateCredentials = "gate_2_credentials"
	GateDeterminism = "gate_3_determinism"
	GatePermissions = "gate_4_permissions"
	GateSLA         = "gate_5_sla"
	GateRollback    = "gate_6_rollback"
)

// Gate result values.
const (
	GatePass             = "pass"
	GateFail             = "fail"
	GateSkipped          = "skipped"
	GateFailManualReview = "fail:manual_review"
	GateSkippedSimple    = "skipped:simple"
)

var gateKeys = map[int]string{
	1: GateStepCount,
	2: GateCredentials,
	3: GateDeterminism,
	4: GatePermissions,
	5: GateSLA,
	6: GateRollback,
}

// Keywords that suggest credential or secret involvement.
var credentialKeywords = []string{
	"password", "secret", "token", "api_key", "api-key",
	"credential", "auth", "oauth", "private_key", "access_key",
	"ssh", "certificate", ".pem", ".key", ".env",
}

// Keywords that suggest non-deterministic operations.
var nonDeterministicKeywords = []string{
	"api call", "http request", "download", "upload",
	"send email", "network", "external service",
	"database", "deploy", "install",
}

// Keywords that suggest network or external service usage.
var networkKeywords = []string{
	"http", "https", "api", "curl", "wget", "fetch",
	"request", "endpoint", "webhook", "socket",
}

var pathPattern = regexp.MustCompile(`/[\w./]+`)

// Vault-relative directory references that are not treated as
// absolute paths by the permission gate.
var vaultRelativeRefs = map[string]bool{
	"/needs_action/":     true,
	"/in_progress/":      true,
	"/done/":             true,
	"/plans/":            true,
	"/rollback_archive/": true,
}

// historyEstimateWindow bounds the audit lookback of the feasibility
// gate.
const historyEstimateWindow = 200

// Classifier runs the six-gate policy filter that decides whether a
// task is simple enough to auto-execute, complex, or in need of a
// human.
type Classifier struct {
	vaultRoot       string
	allowedServices []string
	slaSimpleMin    float64
	slaComplexMin   float64
	auditLog        *audit.Log
}

// New creates a classifier scoped to the given vault root.
func New(vaultRoot string, allowedServices []string, slaSimpleMin, slaComplexMin float64, auditLog *audit.Log) *Classifier {
	return &Classifier{
		vaultRoot:       vaultRoot,
		allowedServices: allowedServices,
		slaSimpleMin:    slaSimpleMin,
		slaComplexMin:   slaComplexMin,
		auditLog:        auditLog,
	}
}

// Classify runs the gates in order against the task content and its
// plan steps, short-circuiting on the first failure. The returned map
// records one verdict per gate; gates after a failure are skipped.
//
// A task carrying an operator override bypasses every gate and is
// tiered on step count alone.
func (c *Classifier) Classify(content string, planSteps []string, task *types.Task) (types.Complexity, map[string]string) {
	if task != nil && task.Override {
		return c.classifyOverride(planSteps, task)
	}

	gates := make(map[string]string, 6)
	logger := log.WithComponent("classifier")

	// Gate 1: step count.
	actionable := countActionableSteps(planSteps)
	if actionable > MaxComplexSteps {
		gates[GateStepCount] = GateFailManualReview
		c.gateBlocked("step_count", fmt.Sprintf("step_count:%d", actionable))
		fillSkipped(gates, 2)
		logger.Info().Int("steps", actionable).Msg("classified manual_review, too many steps")
		return types.ComplexityManualReview, gates
	}
	simpleCandidate := actionable <= MaxSimpleSteps
	gates[GateStepCount] = GatePass

	// Gate 2: credentials.
	combined := strings.ToLower(content) + " " + joinLower(planSteps)
	if kw, ok := findKeyword(credentialKeywords, combined); !ok {
		gates[GateCredentials] = GateFail
		c.gateBlocked("credential_gate", "credential_keyword:"+kw)
		fillSkipped(gates, 3)
		logger.Info().Str("keyword", kw).Msg("classified complex, credential reference")
		return types.ComplexityComplex, gates
	}
	gates[GateCredentials] = GatePass

	// Gate 3: determinism, checked over steps only.
	if kw, ok := findKeyword(nonDeterministicKeywords, joinLower(planSteps)); !ok {
		gates[GateDeterminism] = GateFail
		c.gateBlocked("determinism_gate", "non_deterministic:"+kw)
		fillSkipped(gates, 4)
		logger.Info().Str("keyword", kw).Msg("classified complex, non-deterministic operation")
		return types.ComplexityComplex, gates
	}
	gates[GateDeterminism] = GatePass

	// Gate 4: permissions.
	if reason, ok := c.checkPermissions(combined); !ok {
		gates[GatePermissions] = GateFail
		c.gateBlocked("permission_gate", reason)
		fillSkipped(gates, 5)
		logger.Info().Str("reason", reason).Msg("classified complex, permission denied")
		return types.ComplexityComplex, gates
	}
	gates[GatePermissions] = GatePass

	// Gate 5: SLA feasibility for the candidate tier.
	candidate := types.ComplexityComplex
	if simpleCandidate {
		candidate = types.ComplexitySimple
	}
	if reason, ok := c.checkSLAFeasibility(candidate); !ok {
		gates[GateSLA] = GateFail
		c.gateBlocked("sla_feasibility", reason)
		fillSkipped(gates, 6)
		logger.Info().Str("reason", reason).Msg("classified complex, deadline infeasible")
		return types.ComplexityComplex, gates
	}
	gates[GateSLA] = GatePass

	// Gate 6: rollback readiness, complex candidates only.
	if !simpleCandidate {
		if reason, ok := c.checkRollbackReadiness(); !ok {
			gates[GateRollback] = GateFail
			c.gateBlocked("rollback_readiness", reason)
			logger.Info().Msg("classified complex, rollback not ready")
			return types.ComplexityComplex, gates
		}
		gates[GateRollback] = GatePass
		return types.ComplexityComplex, gates
	}
	gates[GateRollback] = GateSkippedSimple
	logger.Info().Msg("classified simple, all gates passed")
	return types.ComplexitySimple, gates
}

// classifyOverride skips every gate and tiers on step count alone.
func (c *Classifier) classifyOverride(planSteps []string, task *types.Task) (types.Complexity, map[string]string) {
	reason := task.OverrideReason
	if reason == "" {
		reason = "none"
	}
	gates := make(map[string]string, 8)
	for g := 1; g <= 6; g++ {
		gates[gateKeys[g]] = GateSkipped
	}
	gates["override"] = "true"
	gates["override_reason"] = reason

	actionable := countActionableSteps(planSteps)
	label := types.ComplexityComplex
	if actionable <= MaxSimpleSteps {
		label = types.ComplexitySimple
	}
	c.auditLog.Append(audit.OpOverrideApplied, "classifier", "override", "",
		audit.OutcomeSuccess, fmt.Sprintf("reason:%s steps:%d", reason, actionable))
	log.WithComponent("classifier").Info().
		Str("reason", reason).
		Str("label", string(label)).
		Msg("override detected, bypassing gates")
	return label, gates
}

func (c *Classifier) checkPermissions(combined string) (string, bool) {
	hasNetwork := false
	for _, kw := range networkKeywords {
		if strings.Contains(combined, kw) {
			hasNetwork = true
			break
		}
	}
	if hasNetwork {
		if len(c.allowedServices) == 0 {
			return "network_not_allowed", false
		}
		found := false
		for _, svc := range c.allowedServices {
			if strings.Contains(combined, strings.ToLower(svc)) {
				found = true
				break
			}
		}
		if !found {
			return "service_not_in_allowlist", false
		}
	}

	if c.vaultRoot != "" {
		vaultStr := strings.ToLower(c.vaultRoot)
		for _, ref := range pathPattern.FindAllString(combined, -1) {
			if vaultRelativeRefs[ref] {
				continue
			}
			if len(ref) > 5 && !strings.Contains(ref, vaultStr) {
				return "outside_vault:" + ref, false
			}
		}
	}
	return "", true
}

func (c *Classifier) checkSLAFeasibility(candidate types.Complexity) (string, bool) {
	slaMin := c.slaComplexMin
	if candidate == types.ComplexitySimple {
		slaMin = c.slaSimpleMin
	}
	estimate, ok := c.estimateDuration(candidate)
	if !ok {
		// No history, assume feasible.
		return "", true
	}
	threshold := slaMin * 1.5
	if estimate > threshold {
		return fmt.Sprintf("estimated:%.1fmin > threshold:%.1fmin", estimate, threshold), false
	}
	return "", true
}

// estimateDuration derives a per-task duration estimate from recent
// successful executions of the same complexity tier. Simple tasks
// count for one minute each, complex for five.
func (c *Classifier) estimateDuration(candidate types.Complexity) (float64, bool) {
	perTask := 5.0
	if candidate == types.ComplexitySimple {
		perTask = 1.0
	}
	marker := "complexity:" + string(candidate)
	matched := false
	for _, e := range c.auditLog.Tail(historyEstimateWindow) {
		if e.Op == audit.OpTaskExecuted &&
			e.Outcome == audit.OutcomeSuccess &&
			strings.Contains(e.Detail, marker) {
			matched = true
			break
		}
	}
	if !matched {
		return 0, false
	}
	return perTask, true
}

func (c *Classifier) checkRollbackReadiness() (string, bool) {
	dir := filepath.Join(c.vaultRoot, vault.FolderRollbackArchive)
	if _, err := os.Stat(dir); err != nil {
		return "rollback_archive_missing", false
	}
	return "", true
}

func (c *Classifier) gateBlocked(gate, reason string) {
	c.auditLog.Append(audit.OpGateBlocked, "classifier", gate, "",
		audit.OutcomeFlagged, "blocked:"+reason)
}

func countActionableSteps(planSteps []string) int {
	n := 0
	for _, s := range planSteps {
		trimmed := strings.TrimSpace(s)
		if trimmed != "" && !strings.HasPrefix(trimmed, "#") {
			n++
		}
	}
	return n
}

func fillSkipped(gates map[string]string, from int) {
	for g := from; g <= 6; g++ {
		gates[gateKeys[g]] = GateSkipped
	}
}

// findKeyword reports the first keyword found in text. The boolean is
// true when text is clean.
func findKeyword(keywords []string, text string) (string, bool) {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return kw, false
		}
	}
	return "", true
}

func joinLower(steps []string) string {
	parts := make([]string, len(steps))
	for i, s := range steps {
		parts[i] = strings.ToLower(s)
	}
	return strings.Join(parts, " ")
}
