// SPDX-License-Identifier: Apache-2.0

package compare

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	cmx3600 "github.com/Avalanche-io/edl-changelog"
	"github.com/Avalanche-io/edl-changelog/changelog"
	"github.com/Avalanche-io/edl-changelog/internal/config"
	"github.com/Avalanche-io/edl-changelog/internal/metrics"
)

// Publisher receives every successful report.
type Publisher interface {
	Publish(report *Report) error
}

// Options are the comparison parameters shared by all requests.
type Options struct {
	FPS         int
	Strategy    changelog.KeyStrategy
	Collision   changelog.CollisionPolicy
	FailOnEmpty bool
}

// OptionsFromConfig resolves the named strategy and policy in cfg.
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	strategy, err := changelog.ParseKeyStrategy(cfg.KeyStrategy)
	if err != nil {
		return Options{}, err
	}
	policy, err := changelog.ParseCollisionPolicy(cfg.Collision)
	if err != nil {
		return Options{}, err
	}
	return Options{
		FPS:         cfg.FPS,
		Strategy:    strategy,
		Collision:   policy,
		FailOnEmpty: cfg.FailOnEmpty,
	}, nil
}

// Request is one old/new pair. Zero FPS and empty KeyStrategy fall back to the service options.
type Request struct {
	OldName     string
	NewName     string
	Old         io.Reader
	New         io.Reader
	FPS         int
	KeyStrategy string
}

// Report is the result of one comparison.
type Report struct {
	RunID       uuid.UUID                `json:"run_id"`
	CreatedAt   time.Time                `json:"created_at"`
	OldName     string                   `json:"old_name,omitempty"`
	NewName     string                   `json:"new_name,omitempty"`
	FPS         int                      `json:"fps"`
	KeyStrategy string                   `json:"key_strategy"`
	OldEvents   int                      `json:"old_events"`
	NewEvents   int                      `json:"new_events"`
	Dropped     int                      `json:"dropped_events"`
	Collisions  int                      `json:"key_collisions"`
	Warnings    []string                 `json:"warnings,omitempty"`
	Summary     changelog.Summary        `json:"summary"`
	Records     []changelog.ChangeRecord `json:"records"`
}

// Service parses, diffs and builds changelogs.
type Service struct {
	opts      Options
	logger    logrus.FieldLogger
	publisher Publisher
}

// NewService creates a service. publisher may be nil.
func NewService(opts Options, logger logrus.FieldLogger, publisher Publisher) *Service {
	if logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		logger = l
	}
	if opts.Strategy.Key == nil {
		opts.Strategy = changelog.IdentityKey
	}
	return &Service{opts: opts, logger: logger, publisher: publisher}
}

// Compare runs one comparison. A publish failure is logged, not returned.
func (s *Service) Compare(ctx context.Context, req Request) (*Report, error) {
	start := time.Now()
	report, err := s.compare(ctx, req)
	metrics.ObserveCompareDuration(time.Since(start))
	if err != nil {
		metrics.IncComparison("error")
		return nil, err
	}
	metrics.IncComparison("ok")
	metrics.AddChanges(report.Summary)

	if s.publisher != nil {
		if err := s.publisher.Publish(report); err != nil {
			s.logger.WithField("run_id", report.RunID).Errorf("publish changelog: %v", err)
		}
	}
	return report, nil
}

func (s *Service) compare(ctx context.Context, req Request) (*Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	opts, err := s.resolve(req)
	if err != nil {
		return nil, err
	}

	report := &Report{
		RunID:       uuid.New(),
		CreatedAt:   time.Now().UTC(),
		OldName:     req.OldName,
		NewName:     req.NewName,
		FPS:         opts.FPS,
		KeyStrategy: opts.Strategy.Name,
	}
	log := s.logger.WithField("run_id", report.RunID)

	oldEvents, err := s.parse(log, "old", req.OldName, req.Old, opts, report)
	if err != nil {
		return nil, err
	}
	newEvents, err := s.parse(log, "new", req.NewName, req.New, opts, report)
	if err != nil {
		return nil, err
	}
	report.OldEvents = len(oldEvents)
	report.NewEvents = len(newEvents)

	res, err := changelog.Diff(oldEvents, newEvents, changelog.Options{
		Strategy:  opts.Strategy,
		FPS:       opts.FPS,
		Collision: opts.Collision,
	})
	if err != nil {
		return nil, fmt.Errorf("diff: %w", err)
	}
	s.logCollisions(log, "old", res.OldCollisions)
	s.logCollisions(log, "new", res.NewCollisions)
	report.Collisions = len(res.OldCollisions) + len(res.NewCollisions)
	metrics.AddKeyCollisions(report.Collisions)

	records, err := changelog.Build(res.Changes, opts.FPS)
	if err != nil {
		return nil, fmt.Errorf("build changelog: %w", err)
	}
	report.Records = records
	report.Summary = changelog.Summarize(records)

	log.WithFields(logrus.Fields{
		"old_events": report.OldEvents,
		"new_events": report.NewEvents,
		"new":        report.Summary.New,
		"removed":    report.Summary.Removed,
		"modified":   report.Summary.Modified,
	}).Info("comparison finished")

	return report, nil
}

func (s *Service) resolve(req Request) (Options, error) {
	opts := s.opts
	if req.FPS != 0 {
		if !config.IsSupportedRate(req.FPS) {
			return Options{}, fmt.Errorf("fps %d is not supported", req.FPS)
		}
		opts.FPS = req.FPS
	}
	if req.KeyStrategy != "" {
		strategy, err := changelog.ParseKeyStrategy(req.KeyStrategy)
		if err != nil {
			return Options{}, err
		}
		opts.Strategy = strategy
	}
	return opts, nil
}

func (s *Service) parse(log logrus.FieldLogger, side, name string, r io.Reader, opts Options, report *Report) ([]cmx3600.EditEvent, error) {
	if r == nil {
		return nil, fmt.Errorf("%s EDL: missing input", side)
	}

	decoder := cmx3600.NewDecoder(r)
	decoder.SetRate(opts.FPS)
	decoder.SetLogger(log.WithField("side", side))

	events, err := decoder.Decode()
	if err != nil {
		return nil, fmt.Errorf("read %s EDL %s: %w", side, name, err)
	}

	dropped := 0
	for _, w := range decoder.Warnings() {
		var tcErr *cmx3600.TimecodeError
		if errors.As(w, &tcErr) {
			dropped++
			report.Warnings = append(report.Warnings, fmt.Sprintf("%s: %v", side, w))
		}
	}
	report.Dropped += dropped
	metrics.AddEventsDropped(dropped)

	if len(events) == 0 && opts.FailOnEmpty {
		return nil, fmt.Errorf("%s EDL %s: %w", side, name, cmx3600.ErrEmptyInput)
	}
	return events, nil
}

func (s *Service) logCollisions(log logrus.FieldLogger, side string, collisions []changelog.Collision) {
	for _, c := range collisions {
		log.WithFields(logrus.Fields{
			"side":         side,
			"key":          c.Key.String(),
			"kept_line":    c.Kept.Line,
			"dropped_line": c.Dropped.Line,
		}).Debug("key collision")
	}
}
