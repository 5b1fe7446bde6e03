package engine

import (
	"math"

	"hypolab/internal/domain"
)

// CEOMetrics is the executive summary computed on read.
type CEOMetrics struct {
	TotalHypotheses      int            `json:"totalHypotheses"`
	ActiveHypotheses     int            `json:"activeHypotheses"`
	AwaitingApproval     int            `json:"awaitingApproval"`
	Approved             int            `json:"approved"`
	Rejected             int            `json:"rejected"`
	TotalExperiments     int            `json:"totalExperiments"`
	RunningExperiments   int            `json:"runningExperiments"`
	CompletedExperiments int            `json:"completedExperiments"`
	SuccessRate          float64        `json:"successRate"`
	PipelineValue        float64        `json:"pipelineValue"`
	AverageConfidence    float64        `json:"averageConfidence"`
	ByStage              map[string]int `json:"byStage"`
	ByPriority           map[string]int `json:"byPriority"`
}

// PipelineStage is one column of the value pipeline.
type PipelineStage struct {
	Stage          string  `json:"stage"`
	Name           string  `json:"name"`
	Order          int     `json:"order"`
	Color          string  `json:"color,omitempty"`
	IsActive       bool    `json:"isActive"`
	Count          int     `json:"count"`
	EstimatedValue float64 `json:"estimatedValue"`
}

// KanbanColumn is an active stage with the hypotheses sitting in it.
type KanbanColumn struct {
	domain.Stage
	Hypotheses []domain.Hypothesis `json:"hypotheses"`
}

func (e Engine) CEOMetrics() CEOMetrics {
	snap := e.Store.Snapshot()
	m := CEOMetrics{
		TotalHypotheses:  len(snap.Hypotheses),
		TotalExperiments: len(snap.Experiments),
		ByStage:          map[string]int{},
		ByPriority:       map[string]int{},
	}
	confidence := 0
	for _, h := range snap.Hypotheses {
		m.ByStage[h.Stage]++
		m.ByPriority[h.Priority]++
		confidence += h.Confidence
		if h.Status == "active" {
			m.ActiveHypotheses++
		}
		switch h.ApprovalStatus {
		case "pending":
			m.AwaitingApproval++
		case "approved":
			m.Approved++
		case "rejected":
			m.Rejected++
		}
		if h.Stage != "archived" {
			m.PipelineValue += h.EstimatedValue
		}
	}
	if m.TotalHypotheses > 0 {
		m.AverageConfidence = round1(float64(confidence) / float64(m.TotalHypotheses))
	}
	failed := 0
	for _, x := range snap.Experiments {
		switch x.Status {
		case "running":
			m.RunningExperiments++
		case "completed":
			m.CompletedExperiments++
		case "failed":
			failed++
		}
	}
	if finished := m.CompletedExperiments + failed; finished > 0 {
		m.SuccessRate = round1(100 * float64(m.CompletedExperiments) / float64(finished))
	}
	return m
}

// Pipeline counts hypotheses and their estimated value per stage, in stage order.
func (e Engine) Pipeline() []PipelineStage {
	snap := e.Store.Snapshot()
	out := make([]PipelineStage, 0, len(snap.Stages))
	idx := make(map[string]int, len(snap.Stages))
	for _, st := range snap.Stages {
		idx[st.Code] = len(out)
		out = append(out, PipelineStage{Stage: st.Code, Name: st.Name, Order: st.Order, Color: st.Color, IsActive: st.IsActive})
	}
	for _, h := range snap.Hypotheses {
		i, ok := idx[h.Stage]
		if !ok {
			continue
		}
		out[i].Count++
		out[i].EstimatedValue += h.EstimatedValue
	}
	return out
}

// AwaitingApproval lists hypotheses whose approval is pending.
func (e Engine) AwaitingApproval() []domain.Hypothesis {
	snap := e.Store.Snapshot()
	out := []domain.Hypothesis{}
	for _, h := range snap.Hypotheses {
		if h.ApprovalStatus == "pending" {
			out = append(out, h)
		}
	}
	return out
}

// Kanban returns the active stages in order, each with its hypotheses.
func (e Engine) Kanban() []KanbanColumn {
	snap := e.Store.Snapshot()
	cols := make([]KanbanColumn, 0, len(snap.Stages))
	idx := make(map[string]int, len(snap.Stages))
	for _, st := range snap.Stages {
		if !st.IsActive {
			continue
		}
		idx[st.Code] = len(cols)
		cols = append(cols, KanbanColumn{Stage: st, Hypotheses: []domain.Hypothesis{}})
	}
	for _, h := range snap.Hypotheses {
		if i, ok := idx[h.Stage]; ok {
			cols[i].Hypotheses = append(cols[i].Hypotheses, h)
		}
	}
	return cols
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
