package pipeline

import (
	"context"

	"VideoPipeline-server/models"
)

// ScenePlan is one planned scene before it is persisted.
type ScenePlan struct {
	Description string
	DurationMs  int
	OverlayText string
	Narration   string
}

// Planner turns a creative brief into an ordered scene plan.
type Planner interface {
	Plan(ctx context.Context, brief string) ([]ScenePlan, error)
}

// Scriptwriter produces narration lines for a project's scenes, in index
// order. A short script leaves the trailing scenes to their overlay text.
type Scriptwriter interface {
	Script(ctx context.Context, project *models.Project) ([]string, error)
}

// TemplatePlanner returns the same six-scene ad structure for every brief.
type TemplatePlanner struct{}

var sixSceneTemplate = []ScenePlan{
	{Description: "Opening hook with bold product close-up", DurationMs: 3000,
		OverlayText: "Stop scrolling", Narration: "Stop scrolling. This is the one you have been waiting for."},
	{Description: "The everyday problem your audience recognizes", DurationMs: 3000,
		OverlayText: "Tired of the same old routine?", Narration: "Tired of the same old routine?"},
	{Description: "Product reveal in a clean studio setting", DurationMs: 4000,
		OverlayText: "Meet the upgrade", Narration: "Meet the upgrade that changes everything."},
	{Description: "Key features shown in quick succession", DurationMs: 4000,
		OverlayText: "Faster. Simpler. Better.", Narration: "Faster, simpler, and better in every way."},
	{Description: "Happy customers using the product", DurationMs: 3000,
		OverlayText: "Loved by thousands", Narration: "Join thousands of happy customers."},
	{Description: "Call to action with logo end card", DurationMs: 3000,
		OverlayText: "Get yours today", Narration: "Get yours today."},
}

func (TemplatePlanner) Plan(ctx context.Context, brief string) ([]ScenePlan, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return append([]ScenePlan(nil), sixSceneTemplate...), nil
}

// TemplateScriptwriter returns a fixed five-line script.
type TemplateScriptwriter struct{}

var fiveLineScript = []string{
	"Stop scrolling. This is the one you have been waiting for.",
	"Tired of the same old routine?",
	"Meet the upgrade that changes everything.",
	"Faster, simpler, and better in every way.",
	"Join thousands of happy customers.",
}

func (TemplateScriptwriter) Script(ctx context.Context, project *models.Project) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return append([]string(nil), fiveLineScript...), nil
}
