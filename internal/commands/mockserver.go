package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/pappacorleone/speaking-meeting-bot-sub000/internal/client"
	"github.com/pappacorleone/speaking-meeting-bot-sub000/internal/events"
	"github.com/pappacorleone/speaking-meeting-bot-sub000/internal/mockserver"
)

var mockOpts struct {
	addr     string
	scenario string
	interval time.Duration
	seed     int64
}

var MockServerCmd = &cobra.Command{
	Use:   "mock-server",
	Short: "Run a local facilitation server that streams fake session events",
	Long: `Serve the session REST routes and the /sessions/{id}/events websocket
with generated events, for demos and for developing the dashboard offline.

Without --scenario the server plays a randomised session: talk balance
drifts, the facilitator cycles through listening and preparing, and an
intervention arrives every few ticks. With --scenario it replays a YAML
script once (or forever with loop: true).

The global --session (default "demo") and --api-key flags name the served
session and the key every request must carry.`,
	Args: cobra.NoArgs,
	RunE: runMockServer,
}

func init() {
	f := MockServerCmd.Flags()
	f.StringVar(&mockOpts.addr, "addr", "127.0.0.1:7014", "listen address")
	f.StringVar(&mockOpts.scenario, "scenario", "", "YAML scenario to replay")
	f.DurationVar(&mockOpts.interval, "interval", 2*time.Second, "time between generated events")
	f.Int64Var(&mockOpts.seed, "seed", 0, "seed for the random stream (0 picks one)")
}

func runMockServer(cmd *cobra.Command, args []string) error {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	entry := logrus.NewEntry(log)

	var sc *mockserver.Scenario
	if mockOpts.scenario != "" {
		loaded, err := mockserver.LoadScenario(mockOpts.scenario)
		if err != nil {
			return err
		}
		sc = loaded
	}

	id := settings.GetString("session.id")
	if id == "" {
		id = "demo"
	}
	srv := mockserver.New(mockserver.Options{APIKey: settings.GetString("server.api_key"), Log: entry})
	sess := demoSession(id, sc)
	srv.AddSession(sess)
	srv.SetSummary(sess.ID, demoSummary(sess))

	gen := mockserver.NewGenerator(srv, sess.ID, mockOpts.interval, sc)
	if mockOpts.seed != 0 {
		gen.Seed(mockOpts.seed)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := gen.Run(ctx); err != nil {
			entry.WithError(err).Warn("generator stopped")
		}
	}()

	httpSrv := &http.Server{Addr: mockOpts.addr, Handler: srv.Handler()}
	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		httpSrv.Shutdown(shutdown)
	}()

	entry.WithFields(logrus.Fields{"addr": mockOpts.addr, "sessions": srv.IDs()}).Info("mock server listening")
	fmt.Fprintf(cmd.OutOrStdout(), "Follow it with: diadi-live --url ws://%s --session %s\n", mockOpts.addr, sess.ID)

	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("mock server: %w", err)
	}
	return nil
}

// demoSession builds the served session, taking what it can from sc.
func demoSession(id string, sc *mockserver.Scenario) client.Session {
	sess := client.Session{
		ID:              id,
		Title:           "Practice session",
		Goal:            "Agree on a plan for the weekend",
		PartnerName:     "Sam",
		Platform:        "zoom",
		DurationMinutes: 30,
		Status:          events.SessionInProgress,
		Participants: []events.Participant{
			{ID: "p1", Name: "Alex", Role: "initiator", Consented: true},
			{ID: "p2", Name: "Sam", Role: "partner", Consented: true},
		},
		Facilitator: events.FacilitatorConfig{
			Persona:            "neutral_mediator",
			InterruptAuthority: true,
			DirectInquiry:      true,
		},
		CreatedAt: time.Now().UTC().Format("2006-01-02T15:04:05"),
	}
	if sc == nil {
		return sess
	}
	if sc.Session.ID != "" {
		sess.ID = sc.Session.ID
	}
	if sc.Session.Goal != "" {
		sess.Goal = sc.Session.Goal
	}
	if sc.Session.PartnerName != "" {
		sess.PartnerName = sc.Session.PartnerName
		sess.Participants[1].Name = sc.Session.PartnerName
	}
	if sc.Session.DurationMinutes > 0 {
		sess.DurationMinutes = sc.Session.DurationMinutes
	}
	return sess
}

func demoSummary(sess client.Session) client.Summary {
	return client.Summary{
		SessionID:         sess.ID,
		DurationMinutes:   sess.DurationMinutes,
		ConsensusSummary:  "You found common ground on the main question and parked the rest for next week.",
		ActionItems:       []string{"Write down the agreed plan", "Check in again on Sunday evening"},
		InterventionCount: 4,
		KeyAgreements: []client.Agreement{
			{Title: "Shared priorities", Description: "Both want time for rest as well as plans."},
		},
		Balance: client.TalkBalance{
			ParticipantA: events.ParticipantShare{ID: "p1", Name: sess.Participants[0].Name, Percentage: 54},
			ParticipantB: events.ParticipantShare{ID: "p2", Name: sess.Participants[1].Name, Percentage: 46},
			Status:       events.BalanceBalanced,
		},
	}
}
