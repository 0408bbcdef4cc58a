package agent

import (
	"context"
	"fmt"
	"sort"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/complygraph/complygraph/pkg/retrieval"
)

const (
	actionBaseCost = 5000.0
	topGaps        = 10
	topActions     = 3
	lookbackDays   = 365
)

var costMultiplier = map[string]float64{
	"critical": 3,
	"high":     2,
	"medium":   1.5,
	"low":      1,
}

var timelineDays = map[string]int{
	"critical": 30,
	"high":     60,
	"medium":   90,
	"low":      180,
}

// perceive issues the coverage and gap analytics concurrently, adds the
// cross-jurisdictional view when the query names regulation codes, and runs
// graph retrieval for the query itself.
func (o *Orchestrator) perceive(ctx context.Context, state *State) {
	codes := regulationCodes(state.Query, state.QueryContext)

	var group errgroup.Group
	var coverageErr, gapsErr, jurisdictionErr, retrievalErr error

	group.Go(func() error {
		state.Coverage, coverageErr = o.library.Coverage(ctx)
		return nil
	})

	group.Go(func() error {
		state.Gaps, gapsErr = o.library.Gaps(ctx)
		return nil
	})

	if len(codes) > 0 {
		group.Go(func() error {
			state.Jurisdiction, jurisdictionErr = o.library.CrossJurisdictionalImpact(ctx, codes)
			return nil
		})
	}

	group.Go(func() error {
		jurisdiction := ""
		if len(state.QueryContext.Jurisdictions) > 0 {
			jurisdiction = state.QueryContext.Jurisdictions[0]
		}

		state.Context, retrievalErr = o.engine.Retrieve(ctx, retrieval.Params{
			Query:        state.Query,
			Jurisdiction: jurisdiction,
		})
		return nil
	})

	group.Wait()

	for _, err := range []error{coverageErr, gapsErr, jurisdictionErr, retrievalErr} {
		state.fail(StagePerceive, err)
	}

	if state.Coverage != nil {
		state.Summary.OverallCoverage = metaFloat(state.Coverage.Metadata, "overall_coverage")
	}

	if state.Gaps != nil {
		state.Summary.TotalGaps = metaInt(state.Gaps.Metadata, "total_gaps")
		state.Summary.CriticalGaps = metaInt(state.Gaps.Metadata, "critical_gaps")
		state.Summary.HighGaps = metaInt(state.Gaps.Metadata, "high_gaps")
	}

	o.enrichFromProfile(ctx, state)
}

// enrichFromProfile is best effort: an unknown profile id records an error
// field on the state and the pipeline keeps going.
func (o *Orchestrator) enrichFromProfile(ctx context.Context, state *State) {
	if o.evidence == nil || state.ProfileID == "" {
		return
	}

	profile, err := o.evidence.GetBusinessProfile(ctx, state.ProfileID)
	if err != nil {
		state.fail(StagePerceive, err)
		return
	}

	if name, ok := profile["name"].(string); ok {
		state.Summary.ProfileName = name
	}

	count, err := o.evidence.CountEvidence(ctx, state.ProfileID)
	if err != nil {
		state.fail(StagePerceive, err)
		return
	}

	state.Summary.EvidenceCount = count
}

// plan issues the convergence and temporal analytics concurrently, then turns
// the worst gaps into costed, scheduled actions.
func (o *Orchestrator) plan(ctx context.Context, state *State) {
	var group errgroup.Group
	var convergenceErr, temporalErr error

	group.Go(func() error {
		state.Convergence, convergenceErr = o.library.RiskConvergence(ctx)
		return nil
	})

	group.Go(func() error {
		state.Temporal, temporalErr = o.library.TemporalChanges(ctx, lookbackDays)
		return nil
	})

	group.Wait()

	state.fail(StagePlan, convergenceErr)
	state.fail(StagePlan, temporalErr)

	if state.Gaps == nil {
		return
	}

	rows := state.Gaps.Rows
	if len(rows) > topGaps {
		rows = rows[:topGaps]
	}

	for _, row := range rows {
		riskLevel := row.String("risk_level")

		multiplier, ok := costMultiplier[riskLevel]
		if !ok {
			multiplier = 1
		}

		timeline, ok := timelineDays[riskLevel]
		if !ok {
			timeline = 180
		}

		state.Actions = append(state.Actions, Action{
			ID:            newQueryID(),
			Regulation:    row.String("regulation"),
			Requirement:   row.String("requirement"),
			Name:          row.String("name"),
			RiskLevel:     riskLevel,
			Severity:      row.Float("severity"),
			Priority:      row.String("priority"),
			EstimatedCost: actionBaseCost * multiplier,
			TimelineDays:  timeline,
			Status:        StatusPlanned,
		})
	}

	sort.SliceStable(state.Actions, func(i, j int) bool {
		ri, rj := riskRank(state.Actions[i].RiskLevel), riskRank(state.Actions[j].RiskLevel)
		if ri != rj {
			return ri < rj
		}
		return state.Actions[i].Severity > state.Actions[j].Severity
	})
}

// act applies the autonomy gate to the top three actions only. Everything
// else stays planned for a later pass.
func (o *Orchestrator) act(_ context.Context, state *State) {
	for i := range state.Actions {
		if i >= topActions {
			break
		}

		action := &state.Actions[i]

		if o.shouldAutoExecute(action) {
			action.Status = StatusExecuted
			state.Evidence = append(state.Evidence, map[string]any{
				"action_id":   action.ID,
				"requirement": action.Requirement,
				"regulation":  action.Regulation,
				"cost":        action.EstimatedCost,
				"outcome":     "auto_executed",
			})
			log.Info("action auto-executed",
				"requirement", action.Requirement, "severity", action.Severity)
		} else {
			action.Status = StatusEscalated
			log.Info("action escalated for approval",
				"requirement", action.Requirement,
				"severity", action.Severity,
				"cost", action.EstimatedCost)
		}
	}
}

// shouldAutoExecute is the autonomy gate: low enough severity, cheap enough,
// and urgent enough to be worth acting on without a human.
func (o *Orchestrator) shouldAutoExecute(action *Action) bool {
	return action.Severity < o.riskThreshold &&
		action.EstimatedCost < o.autonomyBudget &&
		(action.Priority == "high" || action.Priority == "critical")
}

// learn mines enforcement history and flags domains where gaps concentrate.
func (o *Orchestrator) learn(ctx context.Context, state *State) {
	var err error
	state.Enforcement, err = o.library.EnforcementLearning(ctx)
	state.fail(StageLearn, err)

	o.detectGapConcentration(state)

	for _, action := range state.Actions {
		if action.Status != StatusExecuted {
			continue
		}

		state.Patterns = append(state.Patterns, Pattern{
			Kind:       "action_effectiveness",
			Summary:    fmt.Sprintf("auto-executed remediation for %s", action.Requirement),
			Confidence: 0.7,
			Detail: map[string]any{
				"action_id":   action.ID,
				"requirement": action.Requirement,
				"regulation":  action.Regulation,
				"cost":        action.EstimatedCost,
			},
		})
	}
}

// detectGapConcentration flags any domain carrying more than three open
// gaps. Gap rows name regulations; the coverage rows from Perceive map those
// back to domains, falling back to the regulation code when unmapped.
func (o *Orchestrator) detectGapConcentration(state *State) {
	if state.Gaps == nil {
		return
	}

	regulationDomain := map[string]string{}
	if state.Coverage != nil {
		for _, row := range state.Coverage.Rows {
			regulationDomain[row.String("regulation")] = row.String("domain")
		}
	}

	gapsByDomain := map[string]int{}
	for _, row := range state.Gaps.Rows {
		domain := regulationDomain[row.String("regulation")]
		if domain == "" {
			domain = row.String("regulation")
		}
		gapsByDomain[domain]++
	}

	domains := make([]string, 0, len(gapsByDomain))
	for domain := range gapsByDomain {
		domains = append(domains, domain)
	}
	sort.Strings(domains)

	for _, domain := range domains {
		count := gapsByDomain[domain]
		if count <= 3 {
			continue
		}

		state.Patterns = append(state.Patterns, Pattern{
			Kind:       "high_gap_concentration",
			Summary:    fmt.Sprintf("%d uncontrolled requirements concentrated in %s", count, domain),
			Confidence: 0.8,
			Detail: map[string]any{
				"domain": domain,
				"gaps":   count,
			},
		})
	}
}

// remember persists detected patterns, pulls contextual memories for the
// query, and triggers consolidation every tenth pipeline run.
func (o *Orchestrator) remember(ctx context.Context, state *State) {
	for _, pattern := range state.Patterns {
		content := map[string]any{
			"pattern_kind": pattern.Kind,
			"summary":      pattern.Summary,
		}
		for k, v := range pattern.Detail {
			content[k] = v
		}

		if _, err := o.memory.StoreGraphResult(ctx, pattern.Kind, content, pattern.Confidence); err != nil {
			state.fail(StageRemember, err)
		}
	}

	result, err := o.memory.RetrieveContextual(ctx, state.Query, state.QueryContext, 5, 0.3)
	if err != nil {
		state.fail(StageRemember, err)
	} else {
		for _, node := range result.Memories {
			state.MemoriesAccessed = append(state.MemoriesAccessed, node.ID)
		}
	}

	if state.Step%consolidateEvery == 0 {
		if _, err := o.memory.Consolidate(ctx, 30); err != nil {
			state.fail(StageRemember, err)
		}
	}
}

func riskRank(level string) int {
	switch level {
	case "critical":
		return 0
	case "high":
		return 1
	case "medium":
		return 2
	default:
		return 3
	}
}

func metaInt(metadata map[string]any, key string) int {
	switch v := metadata[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

func metaFloat(metadata map[string]any, key string) float64 {
	switch v := metadata[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return 0
}
