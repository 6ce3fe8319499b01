// Package digest summarizes what needs attention and can emit that summary on
// a cron schedule.
package digest

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"launchboard/internal/domain"
)

// cronParser uses standard 5-field cron expressions (minute, hour, dom, month, dow)
// plus descriptors such as @daily and @every 1h.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Source is the read side of the engine the digest needs.
type Source interface {
	OverallProgress() int
	OverdueTasks() []domain.UpcomingTask
	UpcomingDeadlines(windowDays int) []domain.UpcomingTask
	MilestoneAlerts() []domain.MilestoneAlert
}

// Lines renders the digest, one line per item.
func Lines(src Source, windowDays int) []string {
	lines := []string{fmt.Sprintf("overall progress: %d%%", src.OverallProgress())}
	for _, t := range src.OverdueTasks() {
		lines = append(lines, fmt.Sprintf("overdue %s: %s %s (%s)", plural(-t.DaysUntilDue, "day"), t.ID, t.Title, t.WorkstreamName))
	}
	for _, t := range src.UpcomingDeadlines(windowDays) {
		if t.Status == domain.StatusCompleted {
			continue
		}
		when := "due today"
		if t.DaysUntilDue > 0 {
			when = "due in " + plural(t.DaysUntilDue, "day")
		}
		lines = append(lines, fmt.Sprintf("%s: %s %s (%s, %d%%)", when, t.ID, t.Title, t.WorkstreamName, t.Progress))
	}
	for _, a := range src.MilestoneAlerts() {
		switch a.State {
		case domain.AlertOverdue:
			lines = append(lines, fmt.Sprintf("milestone overdue: %s was due %s", a.Milestone.Title, a.Milestone.Date))
		case domain.AlertNear:
			lines = append(lines, fmt.Sprintf("milestone near: %s in %s", a.Milestone.Title, plural(a.DaysUntil, "day")))
		}
	}
	return lines
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

// Next returns the first time after from that spec fires.
func Next(spec string, from time.Time) (time.Time, error) {
	sched, err := cronParser.Parse(spec)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse schedule %q: %w", spec, err)
	}
	return sched.Next(from), nil
}

type Scheduler struct {
	Source     Source
	WindowDays int
	Logger     *log.Logger

	cron *cron.Cron
}

func NewScheduler(src Source, windowDays int, logger *log.Logger) *Scheduler {
	if logger == nil {
		logger = log.Default()
	}
	return &Scheduler{Source: src, WindowDays: windowDays, Logger: logger}
}

// Emit writes one digest to the logger.
func (s *Scheduler) Emit() {
	for _, line := range Lines(s.Source, s.WindowDays) {
		s.Logger.Printf("digest: %s", line)
	}
}

// Start runs Emit on spec until Stop is called.
func (s *Scheduler) Start(spec string) error {
	if s.cron != nil {
		return fmt.Errorf("digest scheduler already started")
	}
	c := cron.New(cron.WithParser(cronParser))
	if _, err := c.AddFunc(spec, s.Emit); err != nil {
		return fmt.Errorf("schedule digest %q: %w", spec, err)
	}
	s.cron = c
	c.Start()
	s.Logger.Printf("digest scheduled (%s)", spec)
	return nil
}

// Stop halts the schedule and waits for a running digest to finish or ctx to end.
func (s *Scheduler) Stop(ctx context.Context) {
	if s.cron == nil {
		return
	}
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
	s.cron = nil
}
