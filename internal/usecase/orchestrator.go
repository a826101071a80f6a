package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"SocialListener/internal/domain"
	"SocialListener/internal/platform"
	"SocialListener/internal/ports"
)

// TriggerKind distinguishes the two trigger sources.
type TriggerKind string

const (
	TriggerScheduled TriggerKind = "scheduled"
	TriggerManual    TriggerKind = "manual"
)

// Trigger asks for one collection run, optionally scoped to one listener.
type Trigger struct {
	Kind       TriggerKind
	Platform   string
	ListenerID *int64
}

// ListenerOutcome reports one listener's share of a collection run.
type ListenerOutcome struct {
	ListenerID int64  `json:"listener_id"`
	Name       string `json:"name"`
	NewPosts   int    `json:"new_posts"`
	Error      string `json:"error,omitempty"`
}

// RunSummary aggregates a collection run across its listeners.
type RunSummary struct {
	RunID          string            `json:"run_id"`
	Platform       string            `json:"platform"`
	Trigger        TriggerKind       `json:"trigger"`
	PostsCollected int               `json:"posts_collected"`
	Listeners      []ListenerOutcome `json:"listeners"`
}

// Failed reports whether any listener's run ended in an error.
func (s RunSummary) Failed() bool {
	for _, outcome := range s.Listeners {
		if outcome.Error != "" {
			return true
		}
	}
	return false
}

// Orchestrator selects eligible listeners and drives one isolated unit of
// work per listener, so one listener's failure never aborts the others.
type Orchestrator struct {
	registry  *platform.Registry
	collector *Collector
	listeners ports.ListenerStore
	uow       ports.UnitOfWork
	logger    *slog.Logger
	now       func() time.Time
}

// NewOrchestrator wires the registry, collector and persistence.
func NewOrchestrator(registry *platform.Registry, collector *Collector, listeners ports.ListenerStore, uow ports.UnitOfWork, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		registry:  registry,
		collector: collector,
		listeners: listeners,
		uow:       uow,
		logger:    logger,
		now:       time.Now,
	}
}

// Collect runs collection for every eligible listener of the triggered
// platform. An unconfigured platform is skipped with a zero-item summary.
// Each listener's post, entity and listener-state writes commit or roll
// back together; failures are recorded per listener in the summary.
func (o *Orchestrator) Collect(ctx context.Context, trigger Trigger) (RunSummary, error) {
	summary := RunSummary{
		RunID:    uuid.NewString(),
		Platform: trigger.Platform,
		Trigger:  trigger.Kind,
	}

	client, err := o.registry.Resolve(trigger.Platform)
	if err != nil {
		return summary, err
	}
	if !client.IsConfigured() {
		o.logger.Warn("platform not configured, skipping collection",
			"platform", trigger.Platform, "run", summary.RunID)
		return summary, nil
	}

	listeners, err := o.listeners.SelectEligible(ctx, trigger.Platform, trigger.ListenerID)
	if err != nil {
		return summary, fmt.Errorf("select listeners: %w", err)
	}

	o.logger.Info("collection run started",
		"run", summary.RunID, "platform", trigger.Platform,
		"trigger", trigger.Kind, "listeners", len(listeners))

	for i := range listeners {
		listener := listeners[i]
		outcome := o.collectListener(ctx, client, &listener)
		if outcome.Error == "" {
			summary.PostsCollected += outcome.NewPosts
		}
		summary.Listeners = append(summary.Listeners, outcome)
	}

	o.logger.Info("collection run finished",
		"run", summary.RunID, "posts_collected", summary.PostsCollected)
	return summary, nil
}

func (o *Orchestrator) collectListener(ctx context.Context, client platform.Client, listener *domain.Listener) ListenerOutcome {
	outcome := ListenerOutcome{ListenerID: listener.ID, Name: listener.Name}

	err := o.uow.Do(ctx, func(st ports.Stores) error {
		newPosts, err := o.collector.Run(ctx, client, listener, st)
		if err != nil {
			return err
		}
		outcome.NewPosts = newPosts
		return st.Listeners.FinishRun(ctx, listener.ID, o.now().UTC(), newPosts > 0)
	})
	if err != nil {
		outcome.NewPosts = 0
		outcome.Error = err.Error()
		o.logger.Error("collection failed for listener",
			"listener", listener.Name, "error", err)
		return outcome
	}

	o.logger.Info("collected posts for listener",
		"listener", listener.Name, "new_posts", outcome.NewPosts)
	return outcome
}
