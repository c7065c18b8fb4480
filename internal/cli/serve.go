package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wellmind/crisisgate/internal/audit"
	"github.com/wellmind/crisisgate/internal/classifier"
	"github.com/wellmind/crisisgate/internal/config"
	"github.com/wellmind/crisisgate/internal/decision"
	"github.com/wellmind/crisisgate/internal/event"
	"github.com/wellmind/crisisgate/internal/gate"
	"github.com/wellmind/crisisgate/internal/pattern"
	"github.com/wellmind/crisisgate/internal/risk"
	"github.com/wellmind/crisisgate/internal/tier"
)

// sessionSeq numbers messages independently per session. Sequence numbers
// drive the per-session caution window, so chatter from one session must
// never advance another session's counter.
type sessionSeq map[string]uint64

func (s sessionSeq) next(sessionID string) uint64 {
	s[sessionID]++
	return s[sessionID]
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Gate a stream of student messages from stdin",
	Long: `Read tab-separated lines of the form

  <session_id>	<message text>

from stdin and run each through the safety gate. One result line is
printed per message; escalation events are durably recorded in the
event store and mirrored to the audit log. Rule files are watched and
hot-reloaded on change.

Example:
  printf 'sess-1\tI feel hopeless\n' | crisisgate serve`,
	RunE: serveCommand,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func serveCommand(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(rulesPath, packsDir, auditPath, eventsDB)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer log.Sync()

	set, err := pattern.Load(cfg.RulesPath)
	if err != nil {
		return fmt.Errorf("failed to load rules: %w", err)
	}
	set, packs, err := pattern.LoadPacks(cfg.PacksDir, set)
	if err != nil {
		return fmt.Errorf("failed to load rule packs: %w", err)
	}
	log.Info("rules loaded",
		zap.String("version", set.Version),
		zap.Int("packs", len(packs)))

	lib := pattern.NewLibrary(set)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := lib.Watch(ctx, cfg.RulesPath, cfg.PacksDir, log); err != nil {
			log.Warn("rule watcher stopped", zap.Error(err))
		}
	}()

	store, err := event.NewSQLiteStore(cfg.EventsDB)
	if err != nil {
		return fmt.Errorf("failed to open event store: %w", err)
	}
	defer store.Close()

	auditLog, err := audit.New(cfg.AuditPath)
	if err != nil {
		return fmt.Errorf("failed to open audit log: %w", err)
	}
	defer auditLog.Close()

	fanout := tier.NewFanout(log)
	fanout.Register(tier.NewDedupe(tier.NewMessageCounts()), 64)
	fanout.Register(tier.NewDedupe(tier.NewSessionView()), 64)
	fanout.Register(tier.NewDedupe(tier.NewLongitudinal()), 64)
	defer fanout.Close()

	scorer := classifier.WithTimeout(classifier.NewLexicalScorer(), cfg.ClassifierTimeout)
	engine := decision.NewEngine(scorer, cfg.CautionScore, log)
	pub := event.NewPublisher(store, cfg.RetryPolicy(), log, nil)

	g := gate.New(lib, engine, pub, fanout, auditLog, cfg.Escalation(), log)
	d := gate.NewDispatcher(g, 64, log)
	d.OnOutcome = func(msg risk.Message, out gate.Outcome) {
		fmt.Printf("%s\t%s\t%s\tgeneration_allowed=%t\n",
			msg.SessionID, out.Signal.Decision, out.State, out.GenerationAllowed)
	}
	defer d.Close()

	if term.IsTerminal(int(os.Stdin.Fd())) {
		fmt.Fprintln(os.Stderr, "Reading tab-separated  session_id<TAB>text  lines from stdin. Ctrl-D to finish.")
	}

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	seqs := make(sessionSeq)
	for scanner.Scan() {
		if ctx.Err() != nil {
			break
		}
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		session, text, ok := strings.Cut(line, "\t")
		if !ok {
			fmt.Fprintf(os.Stderr, "skipping malformed line (no tab separator): %.40q\n", line)
			continue
		}
		msg := risk.Message{
			SessionID:  session,
			StudentID:  session,
			Text:       text,
			ReceivedAt: time.Now(),
			SequenceNo: seqs.next(session),
		}
		if err := d.Submit(ctx, msg); err != nil {
			log.Error("submit failed",
				zap.String("session", session),
				zap.Error(err))
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("stdin read failed: %w", err)
	}
	return nil
}
