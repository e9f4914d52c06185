package planner

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cuemby/hutch/pkg/audit"
	"github.com/cuemby/hutch/pkg/graph"
	"github.com/cuemby/hutch/pkg/learning"
	"github.com/cuemby/hutch/pkg/log"
	"github.com/cuemby/hutch/pkg/types"
	"github.com/cuemby/hutch/pkg/vault"
)

type stepTemplate struct {
	id   string
	name string
}

// Step templates per task type. Priorities follow template order;
// every plan is a sequential chain of these steps.
var templates = map[types.TaskType][]stepTemplate{
	types.TypeDocument: {
		{"read_source", "Read and parse source document"},
		{"analyze_content", "Analyze document content and structure"},
		{"generate_output", "Generate processed output"},
		{"validate_output", "Validate output quality and completeness"},
		{"save_result", "Save result to vault"},
	},
	types.TypeEmail: {
		{"parse_email", "Parse email content and metadata"},
		{"extract_action", "Extract actionable items from email"},
		{"draft_response", "Draft response or action plan"},
		{"review_draft", "Review draft for accuracy"},
	},
	types.TypeData: {
		{"load_data", "Load raw data files"},
		{"clean_data", "Clean and normalize data"},
		{"process_data", "Process and transform data"},
		{"validate_data", "Validate processed data integrity"},
		{"export_data", "Export results to target format"},
	},
	types.TypeCode: {
		{"read_requirements", "Read and understand requirements"},
		{"plan_implementation", "Plan implementation approach"},
		{"implement_code", "Implement the code changes"},
		{"test_code", "Test the implementation"},
		{"review_code", "Review code quality"},
	},
	types.TypeReport: {
		{"gather_data", "Gather data from sources"},
		{"analyze_data", "Analyze gathered data"},
		{"generate_report", "Generate report content"},
		{"format_report", "Format and polish report"},
		{"review_report", "Review report for accuracy"},
	},
	types.TypeGeneral: {
		{"understand_task", "Understand task requirements"},
		{"plan_approach", "Plan execution approach"},
		{"execute_task", "Execute the main task"},
		{"verify_result", "Verify task completion"},
	},
}

// inferOrder fixes the tie-break when keyword counts are equal: the
// first listed type wins.
var inferOrder = []types.TaskType{
	types.TypeDocument,
	types.TypeEmail,
	types.TypeData,
	types.TypeCode,
	types.TypeReport,
}

var typeKeywords = map[types.TaskType][]string{
	types.TypeDocument: {"document", "file", "pdf", "text", "read", "write", "edit", "format"},
	types.TypeEmail:    {"email", "mail", "message", "reply", "forward", "inbox", "send"},
	types.TypeData:     {"data", "csv", "json", "database", "table", "spreadsheet", "excel", "import", "export"},
	types.TypeCode:     {"code", "program", "script", "function", "bug", "fix", "implement", "develop"},
	types.TypeReport:   {"report", "summary", "quarterly", "analysis", "dashboard", "metric", "chart"},
}

// minSamplesForEstimate is how much history a type needs before its
// mean informs step duration estimates.
const minSamplesForEstimate = 5

// defaultStepMinutes is the estimate used without history.
const defaultStepMinutes = 1.0

// Planner decomposes task content into execution graphs and persists
// them, with the plan markdown, in the vault's Plans folder.
type Planner struct {
	vault    *vault.Vault
	store    learning.Store
	auditLog *audit.Log
	now      func() time.Time
}

// New creates a planner.
func New(v *vault.Vault, store learning.Store, auditLog *audit.Log) *Planner {
	return &Planner{vault: v, store: store, auditLog: auditLog, now: time.Now}
}

// InferType guesses the task type from keyword occurrence counts over
// the content, returning general when nothing matches.
func InferType(content string) types.TaskType {
	lowered := strings.ToLower(content)

	best := types.TypeGeneral
	bestCount := 0
	for _, taskType := range inferOrder {
		count := 0
		for _, kw := range typeKeywords[taskType] {
			count += strings.Count(lowered, kw)
		}
		if count > bestCount {
			best = taskType
			bestCount = count
		}
	}
	return best
}

// Decompose builds the execution graph for a task. Task types without
// a template (image, unknown, empty) are inferred from content. The
// returned graph is validated.
func (p *Planner) Decompose(content string, taskType types.TaskType, taskFile string) (*graph.Graph, error) {
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("task content is empty")
	}

	if _, ok := templates[taskType]; !ok {
		taskType = InferType(content)
	}
	tmpl := templates[taskType]

	estimate := p.stepEstimate(taskType, len(tmpl))

	steps := make([]*graph.Step, len(tmpl))
	edges := make(map[string][]string)
	for i, st := range tmpl {
		steps[i] = &graph.Step{
			ID:                st.id,
			Name:              st.name,
			Priority:          i + 1,
			Status:            graph.StepPending,
			EstimatedDuration: estimate,
		}
		if i+1 < len(tmpl) {
			edges[st.id] = []string{tmpl[i+1].id}
		}
	}

	g := graph.New(taskFile, steps, edges)
	if roots := g.Roots(); len(roots) > 1 {
		g.ParallelGroups = [][]string{roots}
	} else {
		g.ParallelGroups = [][]string{}
	}

	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("generated graph is invalid: %w", err)
	}
	return g, nil
}

// stepEstimate divides the historical mean duration across the plan's
// steps once enough samples exist.
func (p *Planner) stepEstimate(taskType types.TaskType, stepCount int) float64 {
	hist := p.store.Query(taskType)
	if hist == nil || hist.TotalCount < minSamplesForEstimate || stepCount == 0 {
		return defaultStepMinutes
	}
	return hist.AvgDurationMS / 60000.0 / float64(stepCount)
}

// Generate decomposes a task, persists the graph and plan markdown
// under Plans, and records the plan_generated audit entry. It returns
// the graph and the plan filename.
func (p *Planner) Generate(taskFile, content string, taskType types.TaskType) (*graph.Graph, string, error) {
	g, err := p.Decompose(content, taskType, taskFile)
	if err != nil {
		return nil, "", err
	}

	stem := strings.TrimSuffix(taskFile, filepath.Ext(taskFile))
	graphPath := filepath.Join(p.vault.Dir(vault.FolderPlans), stem+".graph.json")
	if err := g.WriteFile(graphPath); err != nil {
		return nil, "", err
	}

	planName := stem + "-plan.md"
	title := vault.TaskTitle(content)
	if err := p.writePlan(planName, taskFile, title, g); err != nil {
		return nil, "", err
	}

	edgeCount := 0
	for _, dsts := range g.Edges {
		edgeCount += len(dsts)
	}
	p.auditLog.Append(audit.OpPlanGenerated, taskFile,
		vault.FolderNeedsAction, vault.FolderPlans, audit.OutcomeSuccess,
		fmt.Sprintf("plan:%s steps=%d edges=%d parallel_groups=%d",
			planName, len(g.Steps), edgeCount, len(g.ParallelGroups)))

	logger := log.WithComponent("planner")
	logger.Info().
		Str("task_file", taskFile).
		Str("plan", planName).
		Int("steps", len(g.Steps)).
		Msg("plan generated")
	return g, planName, nil
}

// HasPlan reports whether a plan file already exists for a task.
func (p *Planner) HasPlan(taskFile string) bool {
	stem := strings.TrimSuffix(taskFile, filepath.Ext(taskFile))
	names, err := p.vault.List(vault.FolderPlans)
	if err != nil {
		return false
	}
	for _, name := range names {
		if name == stem+"-plan.md" {
			return true
		}
	}
	return false
}

func (p *Planner) writePlan(planName, taskFile, title string, g *graph.Graph) error {
	ts := p.now()

	var b strings.Builder
	b.WriteString("---\n")
	fmt.Fprintf(&b, "plan_id: plan-%s\n", ts.Format("20060102-150405"))
	fmt.Fprintf(&b, "task_ref: %s\n", taskFile)
	fmt.Fprintf(&b, "generated: %s\n", ts.Format(time.RFC3339))
	b.WriteString("generator: planning_engine\n")
	fmt.Fprintf(&b, "step_count: %d\n", len(g.Steps))
	b.WriteString("---\n\n")

	fmt.Fprintf(&b, "# Plan: %s\n\n", title)
	fmt.Fprintf(&b, "**Source Task**: [[%s/%s]]\n\n", vault.FolderNeedsAction, taskFile)
	b.WriteString("## Steps\n\n")

	order, err := g.ExecutionOrder()
	if err != nil {
		return err
	}
	for _, step := range order {
		fmt.Fprintf(&b, "- [ ] %s\n", step.Name)
	}

	b.WriteString("\n## Notes\n\nGenerated from the task type template; ")
	b.WriteString("edit steps before execution if the breakdown is off.\n")

	path := filepath.Join(p.vault.Dir(vault.FolderPlans), planName)
	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		return fmt.Errorf("failed to write plan: %w", err)
	}
	return nil
}
