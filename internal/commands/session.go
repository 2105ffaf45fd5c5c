package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pappacorleone/speaking-meeting-bot-sub000/internal/client"
	"github.com/pappacorleone/speaking-meeting-bot-sub000/internal/views/summary"
)

const commandTimeout = 15 * time.Second

var summaryStyle string

var SessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Inspect and control a session over the REST API",
	Long: `Run one REST call against the facilitation server and print the result.
The session id comes from the argument, or --session when omitted.`,
}

var sessionShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show session details",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runSessionShow,
}

var sessionPauseCmd = &cobra.Command{
	Use:   "pause [id]",
	Short: "Pause the facilitator",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTransition(cmd, args, (*client.HTTPClient).PauseSession)
	},
}

var sessionResumeCmd = &cobra.Command{
	Use:   "resume [id]",
	Short: "Resume the facilitator",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTransition(cmd, args, (*client.HTTPClient).ResumeSession)
	},
}

var sessionEndCmd = &cobra.Command{
	Use:   "end [id]",
	Short: "End the session",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runSessionEnd,
}

var sessionSummaryCmd = &cobra.Command{
	Use:   "summary [id]",
	Short: "Render the post-session summary",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runSessionSummary,
}

func init() {
	sessionSummaryCmd.Flags().StringVar(&summaryStyle, "style", "auto", "glamour style: auto, dark, light, notty")
	SessionCmd.AddCommand(sessionShowCmd, sessionPauseCmd, sessionResumeCmd, sessionEndCmd, sessionSummaryCmd)
}

// target resolves the API client and session id for a session subcommand.
func target(args []string) (*client.HTTPClient, string, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, "", err
	}
	id := cfg.Session.ID
	if len(args) > 0 {
		id = args[0]
	}
	if id == "" {
		return nil, "", errors.New("no session id: pass one or set --session")
	}
	return apiClient(cfg), id, nil
}

func runSessionShow(cmd *cobra.Command, args []string) error {
	api, id, err := target(args)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
	defer cancel()
	sess, err := api.GetSession(ctx, id)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Session %s (%s)\n", sess.ID, sess.Status)
	if sess.Title != "" {
		fmt.Fprintf(w, "  Title:     %s\n", sess.Title)
	}
	fmt.Fprintf(w, "  Goal:      %s\n", sess.Goal)
	fmt.Fprintf(w, "  Duration:  %d min\n", sess.DurationMinutes)
	if sess.Platform != "" {
		fmt.Fprintf(w, "  Platform:  %s\n", sess.Platform)
	}
	names := make([]string, 0, len(sess.Participants))
	for _, p := range sess.Participants {
		names = append(names, p.Name)
	}
	fmt.Fprintf(w, "  People:    %s\n", strings.Join(names, ", "))
	fmt.Fprintf(w, "  Silence:   %s\n", onOff(sess.Facilitator.SilenceDetection))
	if created := sess.Created(); !created.IsZero() {
		fmt.Fprintf(w, "  Created:   %s\n", created.Format(time.RFC1123))
	}
	return nil
}

func runTransition(cmd *cobra.Command, args []string, call func(*client.HTTPClient, context.Context, string) (*client.PauseResumeResponse, error)) error {
	api, id, err := target(args)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
	defer cancel()
	res, err := call(api, ctx, id)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Session %s is now %s\n", id, res.Status)
	return nil
}

func runSessionEnd(cmd *cobra.Command, args []string) error {
	api, id, err := target(args)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
	defer cancel()
	res, err := api.EndSession(ctx, id)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Session %s is now %s\n", id, res.Status)
	if res.SummaryAvailable {
		fmt.Fprintf(cmd.OutOrStdout(), "Summary ready: diadi-live session summary %s\n", id)
	}
	return nil
}

func runSessionSummary(cmd *cobra.Command, args []string) error {
	api, id, err := target(args)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
	defer cancel()
	sum, err := api.GetSummary(ctx, id)
	if client.IsNotFound(err) {
		return fmt.Errorf("no summary for %s yet", id)
	}
	if err != nil {
		return err
	}
	out, err := summary.Render(summary.Markdown(sum), 80, summaryStyle)
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), out)
	return nil
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
