package mockserver

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/pappacorleone/speaking-meeting-bot-sub000/internal/events"
)

// Step is one scripted event.
type Step struct {
	After time.Duration  `yaml:"after"`
	Type  events.Kind    `yaml:"type"`
	Data  map[string]any `yaml:"data"`
}

// Scenario is a scripted event stream for one session.
type Scenario struct {
	Session struct {
		ID              string `yaml:"id"`
		Goal            string `yaml:"goal"`
		PartnerName     string `yaml:"partner_name"`
		DurationMinutes int    `yaml:"duration_minutes"`
	} `yaml:"session"`
	Loop  bool   `yaml:"loop"`
	Steps []Step `yaml:"steps"`
}

// LoadScenario reads a YAML scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read scenario %s", path)
	}
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, errors.Wrapf(err, "parse scenario %s", path)
	}
	for i, st := range sc.Steps {
		if st.Type == "" {
			return nil, errors.Errorf("scenario %s: step %d has no type", path, i)
		}
	}
	return &sc, nil
}

// Generator publishes events for one session, either from a Scenario or as a
// randomised live session.
type Generator struct {
	server    *Server
	sessionID string
	interval  time.Duration
	scenario  *Scenario
	rng       *rand.Rand

	tick      int
	duration  int // seconds
	shareA    float64
	aiCycle   int
	drifting  int
	nameA     string
	nameB     string
	goal      string
	nextNudge int
}

// NewGenerator returns a generator for sessionID. A nil scenario produces a
// random stream every interval.
func NewGenerator(server *Server, sessionID string, interval time.Duration, scenario *Scenario) *Generator {
	if interval <= 0 {
		interval = time.Second
	}
	g := &Generator{
		server:    server,
		sessionID: sessionID,
		interval:  interval,
		scenario:  scenario,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
		shareA:    50,
		nameA:     "Participant A",
		nameB:     "Participant B",
		duration:  30 * 60,
		nextNudge: 8,
	}
	if sess, ok := server.Session(sessionID); ok {
		if sess.DurationMinutes > 0 {
			g.duration = sess.DurationMinutes * 60
		}
		g.goal = sess.Goal
		if len(sess.Participants) > 0 {
			g.nameA = sess.Participants[0].Name
		}
		if len(sess.Participants) > 1 {
			g.nameB = sess.Participants[1].Name
		}
	}
	return g
}

// Seed makes the random stream deterministic.
func (g *Generator) Seed(seed int64) {
	g.rng = rand.New(rand.NewSource(seed))
}

// Run publishes until ctx is done or a non-looping scenario finishes.
func (g *Generator) Run(ctx context.Context) error {
	if g.scenario != nil {
		return g.runScenario(ctx)
	}
	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			g.Step()
		}
	}
}

func (g *Generator) runScenario(ctx context.Context) error {
	for {
		for _, st := range g.scenario.Steps {
			timer := time.NewTimer(st.After)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil
			case <-timer.C:
			}
			g.server.Publish(g.sessionID, st.Type, st.Data)
		}
		if !g.scenario.Loop {
			return nil
		}
	}
}

// Step advances the random session by one tick and publishes its events.
func (g *Generator) Step() {
	g.tick++
	elapsed := g.tick * int(g.interval/time.Second)
	if elapsed == 0 {
		elapsed = g.tick
	}
	remaining := g.duration - elapsed
	if remaining < 0 {
		remaining = 0
	}

	g.server.Publish(g.sessionID, events.KindTimeRemaining, map[string]any{
		"minutes":                 remaining / 60,
		"seconds":                 remaining % 60,
		"total_seconds_remaining": remaining,
		"percent_complete":        math.Round(float64(elapsed)/float64(g.duration)*1000) / 10,
	})

	g.shareA = clamp(g.shareA+g.rng.Float64()*12-6, 5, 95)
	g.server.Publish(g.sessionID, events.KindBalanceUpdate, map[string]any{
		"participant_a": map[string]any{"id": "p1", "name": g.nameA, "percentage": round1(g.shareA)},
		"participant_b": map[string]any{"id": "p2", "name": g.nameB, "percentage": round1(100 - g.shareA)},
		"status":        balanceStatus(g.shareA),
	})

	if g.tick%3 == 0 {
		states := []events.AIState{events.AIListening, events.AIListening, events.AIPreparing, events.AIListening}
		g.aiCycle++
		g.server.Publish(g.sessionID, events.KindAIStatus, map[string]any{
			"status": states[g.aiCycle%len(states)],
		})
	}

	if g.tick%5 == 0 {
		onGoal := g.rng.Intn(4) != 0
		if onGoal {
			g.drifting = 0
		} else {
			g.drifting += 5 * int(g.interval/time.Second)
		}
		g.server.Publish(g.sessionID, events.KindGoalDrift, map[string]any{
			"is_on_goal":             onGoal,
			"drift_duration_seconds": g.drifting,
			"original_goal":          g.goal,
		})
	}

	if g.tick >= g.nextNudge {
		g.nextNudge = g.tick + 6 + g.rng.Intn(10)
		g.nudge()
	}
}

func (g *Generator) nudge() {
	type nudge struct {
		typ events.InterventionType
		msg string
	}
	pool := []nudge{
		{events.InterventionBalance, fmt.Sprintf("%s, we haven't heard much from you yet. What's your take?", g.nameB)},
		{events.InterventionSilence, "Let's take a moment. What's on your mind?"},
		{events.InterventionGoalDrift, "Shall we come back to the goal we set?"},
		{events.InterventionTimeWarning, "About five minutes left. What would you like to settle before we finish?"},
		{events.InterventionIcebreaker, "What would a good outcome look like for each of you?"},
	}
	n := pool[g.rng.Intn(len(pool))]
	kind := events.KindIntervention
	if g.rng.Intn(12) == 0 {
		n = nudge{events.InterventionEscalation, "This seems to be getting heated. Let's pause for a breath."}
		kind = events.KindEscalation
	}
	modality := events.ModalityVisual
	if g.rng.Intn(3) == 0 {
		modality = events.ModalityVoice
	}
	g.server.Publish(g.sessionID, kind, map[string]any{
		"id":         uuid.NewString(),
		"type":       n.typ,
		"modality":   modality,
		"message":    n.msg,
		"created_at": time.Now().UTC().Format(wireTime),
	})
}

func balanceStatus(shareA float64) events.BalanceStatus {
	d := math.Abs(shareA - 50)
	switch {
	case d <= 10:
		return events.BalanceBalanced
	case d <= 25:
		return events.BalanceMildImbalance
	default:
		return events.BalanceSevereImbalance
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
