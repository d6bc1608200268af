package alert

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/go-logr/logr/testr"

	"gitlab.com/lologarithm/panel/panel"
)

type recordSender struct {
	subjects []string
	err      error
}

func (r *recordSender) Send(ctx context.Context, subject, body string) error {
	if r.err != nil {
		return r.err
	}
	r.subjects = append(r.subjects, subject)
	return nil
}

func TestAlertOnTransitionOnly(t *testing.T) {
	s := &recordSender{}
	a := NewAlerter(s, 0, testr.New(t))
	ctx := context.Background()
	now := time.Now()

	seq := []panel.Condition{panel.Favorable, panel.Unfavorable, panel.Unfavorable, panel.Favorable, panel.Unfavorable}
	for i, c := range seq {
		a.check(ctx, panel.Snapshot{Name: "Panel", Condition: c, Time: now.Add(time.Duration(i) * time.Minute)})
	}
	if len(s.subjects) != 2 {
		t.Fatalf("expected one alert per transition, got %d", len(s.subjects))
	}
	if !strings.Contains(s.subjects[0], "unfavorable") {
		t.Errorf("unexpected subject %q", s.subjects[0])
	}
}

func TestAlertCooldown(t *testing.T) {
	s := &recordSender{}
	a := NewAlerter(s, time.Hour, testr.New(t))
	ctx := context.Background()
	now := time.Now()
	a.check(ctx, panel.Snapshot{Condition: panel.Unfavorable, Time: now})
	a.check(ctx, panel.Snapshot{Condition: panel.Favorable, Time: now.Add(time.Minute)})
	a.check(ctx, panel.Snapshot{Condition: panel.Unfavorable, Time: now.Add(2 * time.Minute)})
	if len(s.subjects) != 1 {
		t.Errorf("expected the second alert suppressed, got %d", len(s.subjects))
	}
}

func TestAlertRunAndFailure(t *testing.T) {
	s := &recordSender{err: errors.New("mailgun down")}
	a := NewAlerter(s, 0, testr.New(t))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { a.Run(ctx); close(done) }()

	a.Observe(panel.Snapshot{Condition: panel.Unfavorable, Time: time.Now()})
	time.Sleep(20 * time.Millisecond)
	cancel()
	<-done
	if len(s.subjects) != 0 {
		t.Errorf("expected nothing recorded on failure")
	}
}
