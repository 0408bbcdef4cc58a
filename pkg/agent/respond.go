package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/complygraph/complygraph/pkg/analytics"
)

const responderSystem = `You are a compliance analyst. Answer the user's
question using only the supplied graph analysis. Be specific about
regulations, requirements and recommended actions. State uncertainty when
the analysis is degraded.`

const fallbackAnswer = "The generation backend is unavailable. The structured compliance analysis below was computed from the knowledge graph and remains valid; a narrative summary could not be produced."

// respond derives the final posture, asks the generation backend for a
// narrative answer, and assembles the response. Backend failure degrades the
// answer to a fixed placeholder rather than failing the pipeline.
func (o *Orchestrator) respond(ctx context.Context, state *State) *Response {
	posture := derivePosture(state)

	response := &Response{
		QueryID:  newQueryID(),
		Posture:  posture,
		Summary:  state.Summary,
		Actions:  state.Actions,
		Patterns: state.Patterns,
		Memories: state.MemoriesAccessed,
		Errors:   state.Errors,
		Degraded: len(state.Errors) > 0,
	}

	if state.Context != nil {
		response.Mode = state.Context.Mode
	}

	response.Confidence = deriveConfidence(state)

	answer, err := o.backend.Complete(ctx, responderSystem, buildPrompt(state, posture))
	if err != nil {
		log.Error("generation backend failed, using fallback answer", "error", err)
		response.Answer = fallbackAnswer
		response.Degraded = true
		response.Note = "generation backend unavailable"
		response.Confidence *= 0.5
	} else {
		response.Answer = answer
	}

	if response.Degraded && response.Note == "" {
		response.Note = "one or more analysis stages degraded; results are partial"
	}

	response.Elapsed = time.Since(state.StartedAt)

	return response
}

// derivePosture classifies end-state risk from coverage, critical gaps and
// convergence pressure.
func derivePosture(state *State) Posture {
	coverage := state.Summary.OverallCoverage
	criticalGaps := state.Summary.CriticalGaps

	convergencePairs := 0
	if state.Convergence != nil {
		convergencePairs = metaInt(state.Convergence.Metadata, "total_pairs")
	}

	switch {
	case criticalGaps > 5 || coverage < 0.4 || convergencePairs > 10:
		return PostureCritical
	case criticalGaps > 2 || coverage < 0.7 || convergencePairs > 5:
		return PostureHigh
	case coverage < 0.85:
		return PostureMedium
	default:
		return PostureLow
	}
}

// deriveConfidence averages the confidences of whatever analytics and
// retrieval actually produced output this run.
func deriveConfidence(state *State) float64 {
	var sum float64
	count := 0

	add := func(c float64, ok bool) {
		if !ok {
			return
		}
		sum += c
		count++
	}

	add(resultConfidence(state.Coverage))
	add(resultConfidence(state.Gaps))
	add(resultConfidence(state.Jurisdiction))
	add(resultConfidence(state.Convergence))
	add(resultConfidence(state.Temporal))
	add(resultConfidence(state.Enforcement))

	if state.Context != nil {
		add(state.Context.Confidence, true)
	}

	if count == 0 {
		return 0
	}

	return sum / float64(count)
}

func resultConfidence(result *analytics.QueryResult) (float64, bool) {
	if result == nil {
		return 0, false
	}
	return result.Confidence, true
}

func buildPrompt(state *State, posture Posture) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Query: %s\n\n", state.Query)
	fmt.Fprintf(&b, "Risk posture: %s\n", posture)
	fmt.Fprintf(&b, "Overall control coverage: %.0f%%\n", state.Summary.OverallCoverage*100)
	fmt.Fprintf(&b, "Open gaps: %d (critical: %d, high: %d)\n",
		state.Summary.TotalGaps, state.Summary.CriticalGaps, state.Summary.HighGaps)

	if state.Summary.ProfileName != "" {
		fmt.Fprintf(&b, "Business profile: %s (%d evidence items)\n",
			state.Summary.ProfileName, state.Summary.EvidenceCount)
	}

	if state.Context != nil {
		fmt.Fprintf(&b, "\nGraph context (%s retrieval, %d nodes):\n",
			state.Context.Mode, len(state.Context.Nodes))
		for i, node := range state.Context.Nodes {
			if i >= 15 {
				break
			}
			fmt.Fprintf(&b, "- %s %v\n", node.ID, node.Properties)
		}
		for _, gap := range state.Context.Gaps {
			fmt.Fprintf(&b, "- gap: %s\n", gap)
		}
	}

	if len(state.Actions) > 0 {
		b.WriteString("\nRecommended actions:\n")
		for i, action := range state.Actions {
			if i >= topActions {
				break
			}
			fmt.Fprintf(&b, "- [%s/%s] %s (%s): cost %.0f, %d days\n",
				action.Priority, action.Status, action.Name,
				action.Regulation, action.EstimatedCost, action.TimelineDays)
		}
	}

	if len(state.Patterns) > 0 {
		b.WriteString("\nDetected patterns:\n")
		for _, pattern := range state.Patterns {
			fmt.Fprintf(&b, "- %s: %s\n", pattern.Kind, pattern.Summary)
		}
	}

	if len(state.Errors) > 0 {
		b.WriteString("\nDegraded stages:\n")
		for stage, message := range state.Errors {
			fmt.Fprintf(&b, "- %s: %s\n", stage, message)
		}
	}

	return b.String()
}
