package store

import (
	"fmt"

	"hypolab/internal/domain"
)

// DefaultStages is the lifecycle every fresh store starts with.
func DefaultStages() []domain.Stage {
	return []domain.Stage{
		{Code: "ideation", Name: "Ideation", Description: "New ideas awaiting scoping", IsActive: true, Color: "#6366f1"},
		{Code: "scoping", Name: "Scoping", Description: "Defining success criteria", IsActive: true, Color: "#0ea5e9"},
		{Code: "experimentation", Name: "Experimentation", Description: "Experiments running", IsActive: true, Color: "#f59e0b"},
		{Code: "evaluation", Name: "Evaluation", Description: "Results under executive review", IsActive: true, RequiresApproval: true, Color: "#a855f7"},
		{Code: "scaling", Name: "Scaling", Description: "Approved and rolling out", IsActive: true, Color: "#22c55e"},
		{Code: "production", Name: "Production", Description: "Live in production", IsActive: true, Color: "#16a34a"},
		{Code: "archived", Name: "Archived", Description: "Closed hypotheses", IsActive: true, Color: "#6b7280"},
	}
}

// SeedStages loads DefaultStages into an empty store.
func (s *Store) SeedStages() error {
	for _, st := range DefaultStages() {
		if _, err := s.CreateStage(st); err != nil {
			return fmt.Errorf("seed stage %s: %w", st.Code, err)
		}
	}
	return nil
}

// Seed loads the default stages plus a small demo dataset.
func (s *Store) Seed() error {
	if err := s.SeedStages(); err != nil {
		return err
	}
	users := []UserInput{
		{Email: "admin@hypolab.local", Name: "Alex Admin", Role: "admin", Department: "Platform"},
		{Email: "ceo@hypolab.local", Name: "Casey Chief", Role: "ceo", Department: "Executive"},
		{Email: "maria@hypolab.local", Name: "Maria Lopez", Role: "manager", Department: "Growth"},
		{Email: "sam@hypolab.local", Name: "Sam Chen", Role: "researcher", Department: "Data Science"},
	}
	for _, u := range users {
		if _, err := s.CreateUser(u); err != nil {
			return fmt.Errorf("seed user %s: %w", u.Email, err)
		}
	}
	hyps := []HypothesisInput{
		{Title: "Churn prediction reduces cancellations", Description: "A churn model flags at-risk accounts early enough for retention offers.", Stage: "experimentation", Priority: "high", Owner: "Maria Lopez", Team: "Growth", Tags: []string{"ml", "retention"}, ExpectedImpact: "5% lower churn", EstimatedValue: 1200000, Confidence: 70},
		{Title: "LLM triage for support tickets", Description: "Routing tickets with a language model cuts first response time.", Stage: "evaluation", Priority: "critical", Owner: "Sam Chen", Team: "Support", Tags: []string{"llm", "support"}, ExpectedImpact: "40% faster response", EstimatedValue: 800000, Confidence: 80},
		{Title: "Dynamic pricing for add-ons", Description: "Demand-based pricing of add-ons lifts average order value.", Stage: "ideation", Priority: "medium", Owner: "Maria Lopez", Team: "Revenue", Tags: []string{"pricing"}, EstimatedValue: 500000, Confidence: 40},
		{Title: "Demand forecasting for inventory", Description: "Forecasts at SKU level reduce stockouts and overstock.", Stage: "scoping", Priority: "high", Owner: "Sam Chen", Team: "Operations", Tags: []string{"forecasting"}, EstimatedValue: 950000, Confidence: 60},
		{Title: "Personalized onboarding", Description: "Adaptive onboarding flows improve week-one activation.", Stage: "production", Priority: "medium", Owner: "Maria Lopez", Team: "Product", Tags: []string{"personalization"}, EstimatedValue: 300000, Confidence: 90},
	}
	created := make([]domain.Hypothesis, 0, len(hyps))
	for _, in := range hyps {
		in.Actor = "seed"
		h, err := s.CreateHypothesis(in)
		if err != nil {
			return fmt.Errorf("seed hypothesis %q: %w", in.Title, err)
		}
		created = append(created, h)
	}
	running, completed := "running", "completed"
	exps := []struct {
		in    ExperimentInput
		patch *ExperimentPatch
	}{
		{in: ExperimentInput{HypothesisID: created[0].ID, Name: "Churn model A/B", Description: "Retention offers for flagged accounts", Owner: "Maria Lopez", Metrics: map[string]float64{"churnRate": 0.041}}, patch: &ExperimentPatch{Status: &running}},
		{in: ExperimentInput{HypothesisID: created[1].ID, Name: "Triage shadow mode", Description: "Model routes in parallel with humans", Owner: "Sam Chen", Metrics: map[string]float64{"accuracy": 0.92}}, patch: &ExperimentPatch{Status: &completed}},
		{in: ExperimentInput{HypothesisID: created[3].ID, Name: "Forecast backtest", Description: "Backtest on last two years of sales", Owner: "Sam Chen"}},
	}
	for _, e := range exps {
		exp, err := s.CreateExperiment(e.in)
		if err != nil {
			return fmt.Errorf("seed experiment %q: %w", e.in.Name, err)
		}
		if e.patch != nil {
			if _, err := s.UpdateExperiment(exp.ID, *e.patch); err != nil {
				return fmt.Errorf("seed experiment %q: %w", e.in.Name, err)
			}
		}
	}
	if _, err := s.AddComment(created[0].ID, "Casey Chief", "Let's see the lift after two billing cycles."); err != nil {
		return err
	}
	if _, err := s.AddComment(created[1].ID, "Sam Chen", "Shadow mode accuracy is above target."); err != nil {
		return err
	}

	s.mu.Lock()
	s.addFile(domain.File{HypothesisID: created[0].ID, Name: "churn-model-report.pdf", Size: 482113, MimeType: "application/pdf", UploadedBy: "Maria Lopez"})
	s.addFile(domain.File{HypothesisID: created[1].ID, Name: "triage-eval.xlsx", Size: 91220, MimeType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", UploadedBy: "Sam Chen"})
	s.addMetric(domain.Metric{HypothesisID: created[0].ID, Name: "Monthly churn", Value: 4.1, Target: 3.5, Unit: "%"})
	s.addMetric(domain.Metric{HypothesisID: created[1].ID, Name: "Routing accuracy", Value: 92, Target: 90, Unit: "%"})
	s.addRisk(domain.Risk{HypothesisID: created[0].ID, Title: "Offer cannibalization", Severity: "medium", Mitigation: "Cap discount budget per cohort"})
	s.addRisk(domain.Risk{HypothesisID: created[1].ID, Title: "Misrouted escalations", Severity: "high", Mitigation: "Human review for priority tickets"})
	s.mu.Unlock()

	notes := []NotificationInput{
		{Type: "approval", Title: "Approval required", Message: created[1].Title + " is awaiting CEO approval", EntityType: "hypothesis", EntityID: created[1].ID},
		{Type: "success", Title: "Experiment completed", Message: "Triage shadow mode finished", EntityType: "hypothesis", EntityID: created[1].ID},
		{Type: "info", Title: "Welcome", Message: "Your workspace is ready"},
	}
	for _, n := range notes {
		if _, err := s.CreateNotification(n); err != nil {
			return fmt.Errorf("seed notification %q: %w", n.Title, err)
		}
	}
	return nil
}
