// Package pipeline runs the staged generation of an assessment item: shell,
// interactions, feedback and widgets, each a schema-constrained backend
// call, followed by a completeness check and assembly.
package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ormasoftchile/itemforge/pkg/assets"
	"github.com/ormasoftchile/itemforge/pkg/backend"
	"github.com/ormasoftchile/itemforge/pkg/content"
	"github.com/ormasoftchile/itemforge/pkg/feedback"
	"github.com/ormasoftchile/itemforge/pkg/logging"
	"github.com/ormasoftchile/itemforge/pkg/prompts"
	"github.com/ormasoftchile/itemforge/pkg/refs"
	"github.com/ormasoftchile/itemforge/pkg/schema"
	"github.com/ormasoftchile/itemforge/pkg/widgets"
)

// Stage names a unit of work a run can fail in.
type Stage string

const (
	StageEnvelope     Stage = "envelope"
	StageShell        Stage = prompts.StageShell
	StageInteractions Stage = prompts.StageInteractions
	StagePlan         Stage = "plan"
	StageFeedback     Stage = prompts.StageFeedback
	StageWidgetRefs   Stage = "widget_refs"
	StageWidgets      Stage = prompts.StageWidgets
	StageAssemble     Stage = "assemble"
)

// State is a point in a run's progress.
type State string

const (
	StateInit                  State = "Init"
	StateEnvelopeValidated     State = "EnvelopeValidated"
	StateShellGenerated        State = "ShellGenerated"
	StateInteractionsGenerated State = "InteractionsGenerated"
	StatePlanBuilt             State = "PlanBuilt"
	StateFeedbackGenerated     State = "FeedbackGenerated"
	StateWidgetRefsCollected   State = "WidgetRefsCollected"
	StateWidgetsGenerated      State = "WidgetsGenerated"
	StateAssembled             State = "Assembled"
	StateFailed                State = "Failed"
)

// Limits caps the visual context sent with a backend call.
type Limits struct {
	MaxImages      int      `yaml:"max_images"`
	MaxImageBytes  int64    `yaml:"max_image_bytes"`
	AllowedSchemes []string `yaml:"allowed_schemes"`
}

// DefaultLimits returns the limits used when none are configured.
func DefaultLimits() Limits {
	return Limits{
		MaxImages:      20,
		MaxImageBytes:  20 << 20,
		AllowedSchemes: []string{"https", "http", "data"},
	}
}

// Validator checks raw JSON against a schema and decodes it into out.
type Validator interface {
	Validate(name string, schema map[string]any, raw []byte, out any) error
}

// Result is the outcome of a successful run.
type Result struct {
	RunID     string                  `json:"runId"`
	Model     string                  `json:"model"`
	Item      *Item                   `json:"item"`
	States    []State                 `json:"states"`
	Skipped   []Stage                 `json:"skipped,omitempty"`
	Durations map[Stage]time.Duration `json:"durations"`
}

// Orchestrator sequences the generation stages. It holds no per-run state
// and may run several items concurrently.
type Orchestrator struct {
	backend   backend.Backend
	validator Validator
	catalog   widgets.Catalog
	limits    Limits
	log       *zap.Logger
	metrics   *Metrics
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithValidator replaces the JSON Schema validator.
func WithValidator(v Validator) Option { return func(o *Orchestrator) { o.validator = v } }

// WithCatalog sets the widget catalog.
func WithCatalog(c widgets.Catalog) Option { return func(o *Orchestrator) { o.catalog = c } }

// WithLimits sets the visual context limits. Zero fields keep defaults.
func WithLimits(l Limits) Option {
	return func(o *Orchestrator) {
		if l.MaxImages > 0 {
			o.limits.MaxImages = l.MaxImages
		}
		if l.MaxImageBytes > 0 {
			o.limits.MaxImageBytes = l.MaxImageBytes
		}
		if len(l.AllowedSchemes) > 0 {
			o.limits.AllowedSchemes = l.AllowedSchemes
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option { return func(o *Orchestrator) { o.log = logging.OrNop(l) } }

// WithMetrics enables metrics.
func WithMetrics(m *Metrics) Option { return func(o *Orchestrator) { o.metrics = m } }

// New creates an orchestrator over b.
func New(b backend.Backend, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		backend:   b,
		validator: schema.NewValidator(),
		catalog:   widgets.Default(),
		limits:    DefaultLimits(),
		log:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// run is the state of one Run call.
type run struct {
	o   *Orchestrator
	env *assets.Envelope
	log *zap.Logger
	res *Result

	state   State
	started time.Time
}

// Run generates an item from env. It returns either a complete item or a
// *StageError naming the failed stage; nothing is retried here.
func (o *Orchestrator) Run(ctx context.Context, env *assets.Envelope) (*Result, error) {
	id := uuid.NewString()
	r := &run{
		o:   o,
		env: env,
		log: o.log.With(zap.String("run_id", id)),
		res: &Result{
			RunID:     id,
			Model:     o.backend.ModelName(),
			States:    []State{StateInit},
			Durations: make(map[Stage]time.Duration),
		},
		state:   StateInit,
		started: time.Now(),
	}

	item, err := r.execute(ctx)
	if err != nil {
		var se *StageError
		errors.As(err, &se)
		r.log.Error("run failed", zap.String("stage", string(se.Stage)), zap.String("state", string(r.state)), zap.Error(se.Err))
		r.res.States = append(r.res.States, StateFailed)
		o.countRun("failed", se.Stage)
		return nil, err
	}
	r.res.Item = item
	r.log.Info("run assembled",
		zap.Int("interactions", len(item.Interactions)),
		zap.Int("widgets", len(item.Widgets)),
		zap.Int("feedback", len(item.FeedbackBlocks)),
		zap.Duration("elapsed", time.Since(r.started)))
	o.countRun("assembled", "")
	return r.res, nil
}

func (r *run) execute(ctx context.Context) (*Item, error) {
	// Init → EnvelopeValidated
	done := r.begin(StageEnvelope)
	if r.env == nil || strings.TrimSpace(r.env.PrimaryContent) == "" {
		return nil, r.fail(StageEnvelope, &EnvelopeEmptyError{})
	}
	done(StateEnvelopeValidated)

	// → ShellGenerated
	done = r.begin(StageShell)
	user, err := prompts.RenderUser(prompts.StageShell, prompts.Data{Envelope: r.env, WidgetTypes: r.o.catalog.Types()})
	if err != nil {
		return nil, r.fail(StageShell, err)
	}
	var shell content.Shell
	if err := r.generate(ctx, StageShell, schema.NameShell, schema.Shell(), user, true, &shell); err != nil {
		return nil, err
	}
	done(StateShellGenerated)

	// → InteractionsGenerated
	done = r.begin(StageInteractions)
	interactions, err := r.interactions(ctx, &shell)
	if err != nil {
		return nil, err
	}
	done(StateInteractionsGenerated)

	// → PlanBuilt
	done = r.begin(StagePlan)
	plan := feedback.Build(shell.ResponseDeclarations, interactions)
	if r.o.metrics != nil {
		r.o.metrics.FeedbackCombinations.Observe(float64(len(plan.Combinations)))
	}
	r.log.Debug("feedback plan built", zap.String("mode", string(plan.Mode)), zap.Int("combinations", len(plan.Combinations)))
	done(StatePlanBuilt)

	// → FeedbackGenerated
	done = r.begin(StageFeedback)
	blocks, err := r.feedback(ctx, &shell, interactions, plan)
	if err != nil {
		return nil, err
	}
	done(StateFeedbackGenerated)

	// → WidgetRefsCollected
	done = r.begin(StageWidgetRefs)
	slots, err := r.widgetRefs(&shell, blocks, interactions)
	if err != nil {
		return nil, err
	}
	done(StateWidgetRefsCollected)

	// → WidgetsGenerated
	done = r.begin(StageWidgets)
	generated, err := r.widgets(ctx, slots)
	if err != nil {
		return nil, err
	}
	done(StateWidgetsGenerated)

	// → Assembled
	done = r.begin(StageAssemble)
	ids := make([]string, 0, len(slots))
	for _, s := range slots {
		ids = append(ids, s.ID)
	}
	if miss := missing(ids, generated); len(miss) > 0 {
		return nil, r.fail(StageAssemble, &MissingGeneratedContentError{Kind: "widget", MissingIDs: miss})
	}
	item := &Item{
		Identifier:           shell.Identifier,
		Title:                shell.Title,
		Body:                 shell.Body,
		ResponseDeclarations: shell.ResponseDeclarations,
		Interactions:         interactions,
		Widgets:              generated,
		FeedbackPlan:         plan,
		FeedbackBlocks:       blocks,
	}
	done(StateAssembled)
	return item, nil
}

// interactions collects the interaction slots of the shell body and
// generates their content, or skips the call when there are none.
func (r *run) interactions(ctx context.Context, shell *content.Shell) (map[string]content.Interaction, error) {
	m, err := refs.CollectBody(shell.Body)
	if err != nil {
		return nil, r.fail(StageInteractions, err)
	}
	ids := m.InteractionIDs()
	if len(ids) == 0 {
		r.skip(StageInteractions)
		return map[string]content.Interaction{}, nil
	}

	user, err := prompts.RenderUser(prompts.StageInteractions, prompts.Data{Envelope: r.env, Shell: shell, InteractionIDs: ids})
	if err != nil {
		return nil, r.fail(StageInteractions, err)
	}
	var out struct {
		Interactions map[string]content.Interaction `json:"interactions"`
	}
	if err := r.generate(ctx, StageInteractions, schema.NameInteractions, schema.Interactions(ids), user, false, &out); err != nil {
		return nil, err
	}
	for _, id := range ids {
		it, ok := out.Interactions[id]
		if !ok {
			continue
		}
		if err := it.Validate(); err != nil {
			return nil, r.fail(StageInteractions, &SchemaValidationError{Stage: StageInteractions, Err: err})
		}
	}
	if miss := missing(ids, out.Interactions); len(miss) > 0 {
		return nil, r.fail(StageInteractions, &MissingGeneratedContentError{Kind: "interaction", MissingIDs: miss})
	}
	return out.Interactions, nil
}

// feedback generates the nested payload for plan, checks it against the
// plan and validates every leaf.
func (r *run) feedback(ctx context.Context, shell *content.Shell, interactions map[string]content.Interaction, plan feedback.Plan) (map[string]content.Blocks, error) {
	user, err := prompts.RenderUser(prompts.StageFeedback, prompts.Data{
		Envelope: r.env, Shell: shell, Interactions: interactions, Plan: plan,
	})
	if err != nil {
		return nil, r.fail(StageFeedback, err)
	}
	raw, err := r.call(ctx, StageFeedback, schema.NameFeedback, schema.Feedback(plan), user, false)
	if err != nil {
		return nil, err
	}

	leaves, err := feedback.Flatten(plan, raw)
	if err != nil {
		var mismatch *feedback.PlanMismatchError
		if errors.As(err, &mismatch) {
			return nil, r.fail(StageFeedback, &FeedbackPlanMismatchError{mismatch})
		}
		return nil, r.fail(StageFeedback, &SchemaValidationError{Stage: StageFeedback, Err: err})
	}

	leafSchema := schema.FeedbackLeaf()
	blocks := make(map[string]content.Blocks, len(leaves))
	for _, id := range plan.IDs() {
		var leaf struct {
			Content content.Blocks `json:"content"`
		}
		if err := r.o.validator.Validate(schema.NameFeedbackLeaf, leafSchema, leaves[id], &leaf); err != nil {
			return nil, r.fail(StageFeedback, &SchemaValidationError{Stage: StageFeedback, Err: err})
		}
		if leaf.Content == nil {
			leaf.Content = content.Blocks{}
		}
		blocks[id] = leaf.Content
	}
	return blocks, nil
}

// widgetRefs collects widget slots over the body, flattened feedback and
// interactions, and checks every declared type against the catalog.
func (r *run) widgetRefs(shell *content.Shell, blocks map[string]content.Blocks, interactions map[string]content.Interaction) ([]refs.Slot, error) {
	m, err := refs.Collect(shell.Body, blocks, interactions)
	if err != nil {
		return nil, r.fail(StageWidgetRefs, err)
	}
	ids := m.WidgetIDs()
	slots := make([]refs.Slot, 0, len(ids))
	for _, id := range ids {
		s := m[id]
		if _, ok := r.o.catalog.Schema(s.DeclaredType); !ok {
			return nil, r.fail(StageWidgetRefs, &UnknownSlotTypeError{ID: id, DeclaredType: s.DeclaredType})
		}
		slots = append(slots, s)
	}
	return slots, nil
}

func (r *run) widgets(ctx context.Context, slots []refs.Slot) (map[string]content.Widget, error) {
	if len(slots) == 0 {
		r.skip(StageWidgets)
		return map[string]content.Widget{}, nil
	}
	s, err := schema.Widgets(slots, r.o.catalog)
	if err != nil {
		return nil, r.fail(StageWidgets, err)
	}
	user, err := prompts.RenderUser(prompts.StageWidgets, prompts.Data{Envelope: r.env, Widgets: slots})
	if err != nil {
		return nil, r.fail(StageWidgets, err)
	}
	raw, err := r.call(ctx, StageWidgets, schema.NameWidgets, s, user, true)
	if err != nil {
		return nil, err
	}

	// Omitted ids are left to the completeness gate; the widgets that did
	// come back are held to their slot schemas.
	var loose struct {
		Widgets map[string]json.RawMessage `json:"widgets"`
	}
	if err := json.Unmarshal(raw, &loose); err != nil {
		return nil, r.fail(StageWidgets, &SchemaValidationError{Stage: StageWidgets, Err: err})
	}
	present := make([]refs.Slot, 0, len(slots))
	for _, sl := range slots {
		if _, ok := loose.Widgets[sl.ID]; ok {
			present = append(present, sl)
		}
	}
	if len(present) < len(slots) {
		if s, err = schema.Widgets(present, r.o.catalog); err != nil {
			return nil, r.fail(StageWidgets, err)
		}
	}
	var out struct {
		Widgets map[string]content.Widget `json:"widgets"`
	}
	if err := r.o.validator.Validate(schema.NameWidgets, s, raw, &out); err != nil {
		return nil, r.fail(StageWidgets, &SchemaValidationError{Stage: StageWidgets, Err: err})
	}
	if out.Widgets == nil {
		out.Widgets = map[string]content.Widget{}
	}
	return out.Widgets, nil
}

// generate calls the backend and validates the response into out.
func (r *run) generate(ctx context.Context, stage Stage, name string, s map[string]any, user string, visual bool, out any) error {
	raw, err := r.call(ctx, stage, name, s, user, visual)
	if err != nil {
		return err
	}
	if err := r.o.validator.Validate(name, s, raw, out); err != nil {
		return r.fail(stage, &SchemaValidationError{Stage: stage, Err: err})
	}
	return nil
}

// call performs one backend call and returns the raw response once it is
// known to be non-empty JSON. Calls with visual context are guarded by the
// resource limits first.
func (r *run) call(ctx context.Context, stage Stage, name string, s map[string]any, user string, visual bool) ([]byte, error) {
	req := backend.Request{
		Stage:      string(stage),
		SchemaName: name,
		Schema:     s,
		System:     prompts.SystemPrompt,
		User:       user,
	}
	if visual && r.env.HasVisualContext() {
		if err := r.o.checkVisual(r.env); err != nil {
			return nil, r.fail(stage, err)
		}
		for _, ref := range r.env.ImageReferences() {
			req.Images = append(req.Images, backend.Image{URL: ref})
		}
	}

	start := time.Now()
	raw, err := r.o.backend.Generate(ctx, req)
	r.log.Debug("backend call",
		zap.String("stage", string(stage)),
		zap.Int("images", len(req.Images)),
		zap.Int("bytes", len(raw)),
		zap.Duration("elapsed", time.Since(start)))
	if err != nil {
		r.o.countCall(stage, "error")
		return nil, r.fail(stage, &BackendCallError{Stage: stage, Err: err})
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		r.o.countCall(stage, "empty")
		return nil, r.fail(stage, &EmptyBackendResponseError{Stage: stage})
	}
	var probe any
	if err := json.Unmarshal(raw, &probe); err != nil {
		r.o.countCall(stage, "invalid_json")
		return nil, r.fail(stage, &JSONParseError{Stage: stage, Err: err})
	}
	r.o.countCall(stage, "ok")
	return raw, nil
}

// checkVisual enforces the accepted URI schemes and the image count and
// byte caps.
func (o *Orchestrator) checkVisual(env *assets.Envelope) error {
	for _, ref := range env.ImageReferences() {
		u, err := url.Parse(ref)
		scheme := ""
		if err == nil {
			scheme = strings.ToLower(u.Scheme)
		}
		if !slices.Contains(o.limits.AllowedSchemes, scheme) {
			return &UnsupportedURISchemeError{URI: ref, Scheme: scheme}
		}
	}
	if n := env.ImageCount(); n > o.limits.MaxImages {
		return &ResourceLimitExceededError{Limit: LimitImages, Actual: int64(n), Max: int64(o.limits.MaxImages)}
	}
	if n := env.PayloadBytes(); n > o.limits.MaxImageBytes {
		return &ResourceLimitExceededError{Limit: LimitBytes, Actual: n, Max: o.limits.MaxImageBytes}
	}
	return nil
}

// begin marks the start of stage and returns the function that records
// its completion and the state it reached.
func (r *run) begin(stage Stage) func(State) {
	start := time.Now()
	return func(s State) {
		d := time.Since(start)
		r.state = s
		r.res.States = append(r.res.States, s)
		r.res.Durations[stage] = d
		if r.o.metrics != nil {
			r.o.metrics.StageDurationSeconds.WithLabelValues(string(stage)).Observe(d.Seconds())
		}
		r.log.Debug("state reached", zap.String("state", string(s)), zap.Duration("elapsed", d))
	}
}

func (r *run) skip(stage Stage) {
	r.res.Skipped = append(r.res.Skipped, stage)
	if r.o.metrics != nil {
		r.o.metrics.StagesSkippedTotal.WithLabelValues(string(stage)).Inc()
	}
	r.log.Info("stage skipped, nothing to generate", zap.String("stage", string(stage)))
}

func (r *run) fail(stage Stage, err error) error {
	return &StageError{Stage: stage, Err: err}
}

func (o *Orchestrator) countRun(outcome string, stage Stage) {
	if o.metrics != nil {
		o.metrics.RunsTotal.WithLabelValues(outcome, string(stage)).Inc()
	}
}

func (o *Orchestrator) countCall(stage Stage, outcome string) {
	if o.metrics != nil {
		o.metrics.BackendCallsTotal.WithLabelValues(string(stage), outcome).Inc()
	}
}
