// Package alert emails when growing conditions turn unfavorable.
package alert

import (
	"context"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	mailgun "github.com/mailgun/mailgun-go/v3"

	"gitlab.com/lologarithm/panel/panel"
)

// Config is the settings needed to use Mailgun for emails.
type Config struct {
	APIKey     string        `mapstructure:"api_key"`
	Domain     string        `mapstructure:"domain"`
	Sender     string        `mapstructure:"sender"`
	Recipients []string      `mapstructure:"recipients"`
	Cooldown   time.Duration `mapstructure:"cooldown"`
}

// Sender delivers one message.
type Sender interface {
	Send(ctx context.Context, subject, body string) error
}

// Mailgun sends through the Mailgun API.
type Mailgun struct {
	mg  mailgun.Mailgun
	cfg Config
}

func NewMailgun(cfg Config) *Mailgun {
	return &Mailgun{mg: mailgun.NewMailgun(cfg.Domain, cfg.APIKey), cfg: cfg}
}

// Send mails every recipient with a 10 second timeout.
func (m *Mailgun) Send(ctx context.Context, subject, body string) error {
	message := m.mg.NewMessage(m.cfg.Sender, subject, body, m.cfg.Recipients...)

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	resp, id, err := m.mg.Send(ctx, message)
	if err != nil {
		return fmt.Errorf("failed to send alert: %w", err)
	}
	if id == "" {
		return fmt.Errorf("failed to send alert, invalid ID: %s", resp)
	}
	return nil
}

// Alerter watches snapshots and mails once per transition to unfavorable.
type Alerter struct {
	sender   Sender
	log      logr.Logger
	cooldown time.Duration
	updates  chan panel.Snapshot

	last     panel.Condition
	lastSent time.Time
}

func NewAlerter(sender Sender, cooldown time.Duration, log logr.Logger) *Alerter {
	return &Alerter{
		sender:   sender,
		log:      log,
		cooldown: cooldown,
		updates:  make(chan panel.Snapshot, 4),
		// boot as favorable so starting in bad conditions alerts once
		last: panel.Favorable,
	}
}

// Observe queues s, dropping it when the alerter is behind.
func (a *Alerter) Observe(s panel.Snapshot) {
	select {
	case a.updates <- s:
	default:
	}
}

// Run handles queued snapshots until ctx is done.
func (a *Alerter) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case s := <-a.updates:
			a.check(ctx, s)
		}
	}
}

func (a *Alerter) check(ctx context.Context, s panel.Snapshot) {
	prev := a.last
	a.last = s.Condition
	if prev != panel.Favorable || s.Condition != panel.Unfavorable {
		return
	}
	if !a.lastSent.IsZero() && s.Time.Sub(a.lastSent) < a.cooldown {
		a.log.V(1).Info("Alert suppressed by cooldown", "since", s.Time.Sub(a.lastSent))
		return
	}
	subj := fmt.Sprintf("%s: conditions are unfavorable", s.Name)
	body := fmt.Sprintf("Temperature %.2f°C, humidity %d%% at %s.", s.Temp, s.Humidity, s.Time.Format(time.RFC1123))
	if err := a.sender.Send(ctx, subj, body); err != nil {
		a.log.Error(err, "Alert not delivered")
		return
	}
	a.lastSent = s.Time
	a.log.Info("Alert sent", "subject", subj)
}
