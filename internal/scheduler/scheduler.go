package scheduler

import (
	"context"
	"fmt"
	"html"
	"log"
	"math"
	"strings"
	"time"

	"Crypset/internal/chart"
	"Crypset/internal/market"
	"Crypset/internal/notifier"
	"Crypset/internal/portfolio"
	"Crypset/internal/recorder"
	"Crypset/internal/session"

	"github.com/robfig/cron/v3"
)

// retrySender is implemented by notifiers that can retry delivery.
type retrySender interface {
	SendWithRetry(ctx context.Context, text string, maxRetries int) error
}

// Scheduler runs the market refresh and report jobs and answers chat commands.
type Scheduler struct {
	Cron     *cron.Cron
	Market   *market.Service
	Session  *session.Session
	Notifier notifier.Notifier
	Recorder recorder.Recorder
	Currency string
	Ctx      context.Context
	Now      func() time.Time
}

// NewScheduler creates a new Scheduler.
func NewScheduler(ctx context.Context, svc *market.Service, sess *session.Session, n notifier.Notifier, rec recorder.Recorder, currency string) *Scheduler {
	if rec == nil {
		rec = recorder.NewNoopRecorder()
	}
	return &Scheduler{
		Cron:     cron.New(cron.WithSeconds(), cron.WithChain(cron.Recover(cron.PrintfLogger(log.Default())))),
		Market:   svc,
		Session:  sess,
		Notifier: n,
		Recorder: rec,
		Currency: currency,
		Ctx:      ctx,
		Now:      time.Now,
	}
}

// RegisterAll registers the refresh and report tasks.
func (s *Scheduler) RegisterAll(refreshCron, reportCron string) error {
	if _, err := s.Cron.AddFunc(refreshCron, s.refreshTask); err != nil {
		return fmt.Errorf("register refresh task: %w", err)
	}
	if _, err := s.Cron.AddFunc(reportCron, s.reportTask); err != nil {
		return fmt.Errorf("register report task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	log.Println("[INFO] scheduler started")
}

// Stop stops the cron scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	log.Println("[INFO] scheduler stopped")
}

// RunRefreshNow executes the refresh task immediately (RUN_ON_START).
func (s *Scheduler) RunRefreshNow() {
	s.refreshTask()
}

// PersistAlert forwards a failed save to the user. It is meant for
// session.Session.OnPersistError and does not touch the session.
func (s *Scheduler) PersistAlert(err error) {
	go s.trySend(notifier.FormatStorageAlert(err))
}

func (s *Scheduler) refreshTask() {
	snap, err := s.Market.Refresh(s.Ctx)
	evt := &recorder.RefreshEvent{At: s.now(), Coins: snap.Len(), Stale: snap.Stale}
	if err != nil {
		log.Printf("[ERROR] market refresh: %v", err)
		evt.Error = err.Error()
	} else {
		log.Printf("[INFO] market refreshed: %d coins", snap.Len())
	}
	if err := s.Recorder.RecordRefresh(evt); err != nil {
		log.Printf("[ERROR] record refresh: %v", err)
	}
}

func (s *Scheduler) reportTask() {
	log.Println("[INFO] running report task")
	s.Session.Reload()
	rec := s.Session.Record()
	if rec == nil {
		log.Println("[INFO] no user signed in, skipping report")
		return
	}
	if len(rec.Portfolios) == 0 {
		return
	}
	snap, _ := s.Market.Snapshot(s.Ctx)

	user := s.Session.User()
	reports := make([]string, 0, len(rec.Portfolios))
	for _, p := range rec.Portfolios {
		reports = append(reports, notifier.FormatPortfolioReport(p, snap, s.Currency, s.now()))
		if snap.Stale {
			continue
		}
		totals := portfolio.PortfolioTotals(p, snap)
		if !finite(totals.Value, totals.Cost, totals.PnL) {
			log.Printf("[WARN] portfolio %s totals out of range, valuation not recorded", p.ID)
			continue
		}
		if err := s.Recorder.RecordValuation(&recorder.Valuation{
			At: s.now(), User: user, PortfolioID: p.ID,
			Value: totals.Value, Cost: totals.Cost, PnL: totals.PnL,
			Change24h: portfolio.Change24h(p, snap),
		}); err != nil {
			log.Printf("[ERROR] record valuation: %v", err)
		}
	}
	text := strings.Join(reports, "\n\n")
	if snap.Stale {
		text += staleNote
	}
	s.trySend(text)
}

const staleNote = "\n\n<i>Prices may be out of date.</i>"

const helpText = "Available commands:\n• /portfolio\n• /history\n• /watchlist\n• /global\n• /trending\n• /refresh"

// HandleCommand processes a user command and returns a reply.
func (s *Scheduler) HandleCommand(ctx context.Context, command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return helpText
	}
	// Group chats address commands as /cmd@botname.
	cmd, _, _ := strings.Cut(strings.ToLower(fields[0]), "@")
	// The CLI may have changed the record since the last command.
	s.Session.Reload()

	switch cmd {
	case "/portfolio":
		p, ok := s.Session.Selected()
		if !s.Session.SignedIn() {
			return "No user signed in."
		}
		if !ok {
			return "No portfolio yet."
		}
		snap, _ := s.Market.Snapshot(ctx)
		text := notifier.FormatPortfolioReport(p, snap, s.Currency, s.now())
		if snap.Stale {
			text += staleNote
		}
		return text
	case "/history":
		p, ok := s.Session.Selected()
		if !ok {
			return "No portfolio yet."
		}
		return s.history(p.ID, p.Name)
	case "/watchlist":
		rec := s.Session.Record()
		if rec == nil {
			return "No user signed in."
		}
		snap, _ := s.Market.Snapshot(ctx)
		return notifier.FormatWatchlist(rec.Watchlist, snap, s.Currency)
	case "/global":
		g, _ := s.Market.Global(ctx)
		return notifier.FormatGlobal(g, s.Currency)
	case "/trending":
		coins, err := s.Market.Trending(ctx)
		if err != nil {
			return "Trending coins unavailable."
		}
		return notifier.FormatTrending(coins)
	case "/refresh":
		snap, err := s.Market.Refresh(ctx)
		if err != nil {
			return fmt.Sprintf("Refresh failed: %v", err)
		}
		return fmt.Sprintf("Refreshed %d coins at %s.", snap.Len(), snap.FetchedAt.Format("15:04:05"))
	default:
		return helpText
	}
}

// historyLen is how many daily reports /history covers.
const historyLen = 30

func (s *Scheduler) history(portfolioID, name string) string {
	vals, err := s.Recorder.Valuations(s.Session.User(), portfolioID, historyLen)
	if err != nil {
		log.Printf("[ERROR] load valuations: %v", err)
		return "History unavailable."
	}
	if len(vals) == 0 {
		return "No history yet, it is recorded with each scheduled report."
	}
	values := make([]float64, len(vals))
	for i, v := range vals {
		values[i] = v.Value
	}
	high, low, _ := chart.Range(values)
	first, last := vals[0], vals[len(vals)-1]
	return fmt.Sprintf("📈 <b>%s</b> since %s\n\n%s\nNow %s (%s)\nHigh %s | Low %s",
		html.EscapeString(name), first.At.Format("2006-01-02"), chart.Spark(values),
		notifier.Money(last.Value, s.Currency), notifier.Percent(chart.Change(values)),
		notifier.Money(high, s.Currency), notifier.Money(low, s.Currency))
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func (s *Scheduler) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Scheduler) trySend(text string) {
	var err error
	if r, ok := s.Notifier.(retrySender); ok {
		err = r.SendWithRetry(s.Ctx, text, 3)
	} else {
		err = s.Notifier.Send(s.Ctx, text)
	}
	if err != nil {
		log.Printf("[ERROR] send notification: %v", err)
	}
}
