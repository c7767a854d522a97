package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/ayusman/emojicam/internal/emotion"
	"github.com/ayusman/emojicam/internal/store"
)

var statsCmd = &cobra.Command{
	Use:   "stats [session-id]",
	Short: "Summarise the emotion journal",
	Long: `Lists journal sessions with their reading counts and the most frequent
emotions. With a session id, prints only that session's summary.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)

	statsCmd.Flags().Int("limit", 10, "Maximum number of sessions to list (0 for all)")
}

func runStats(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if _, err := os.Stat(cfg.Journal.Path); err != nil {
		if os.IsNotExist(err) {
			return errors.Errorf("no journal at %s; run with --journal first", cfg.Journal.Path)
		}
		return errors.Wrap(err, "stat journal")
	}

	st, err := store.New(cfg.Journal.Path)
	if err != nil {
		return errors.Wrapf(err, "open journal %s", cfg.Journal.Path)
	}
	defer st.Close()

	out := cmd.OutOrStdout()

	if len(args) == 1 {
		sess, err := st.Sessions().GetByID(args[0])
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return errors.Errorf("session %s not found", args[0])
			}
			return err
		}
		return printSession(out, st, sess)
	}

	sessions, err := st.Sessions().List()
	if err != nil {
		return errors.Wrap(err, "list sessions")
	}
	if len(sessions) == 0 {
		fmt.Fprintln(out, "No sessions recorded.")
		return nil
	}

	limit := mustGetInt(cmd, "limit")
	if limit > 0 && len(sessions) > limit {
		sessions = sessions[:limit]
	}

	for _, sess := range sessions {
		if err := printSession(out, st, sess); err != nil {
			return err
		}
	}

	overall, err := st.Readings().Summary("")
	if err != nil {
		return errors.Wrap(err, "summarise journal")
	}
	fmt.Fprintln(out, "All sessions:")
	printSummary(out, overall)
	return nil
}

func printSession(out io.Writer, st *store.Store, sess *store.Session) error {
	summary, err := st.Readings().Summary(sess.ID)
	if err != nil {
		return errors.Wrapf(err, "summarise session %s", sess.ID)
	}

	duration := "running"
	if sess.EndedAt != nil {
		duration = sess.EndedAt.Sub(sess.StartedAt).Round(time.Second).String()
	}

	fmt.Fprintf(out, "Session %s\n", sess.ID)
	fmt.Fprintf(out, "  Started:  %s (%s)\n", sess.StartedAt.Local().Format(time.DateTime), duration)
	fmt.Fprintf(out, "  Camera:   %d\n", sess.Camera)
	fmt.Fprintf(out, "  Readings: %d\n", sess.Readings)
	printSummary(out, summary)
	return nil
}

func printSummary(out io.Writer, summary []store.LabelSummary) {
	for _, s := range summary {
		label, ok := emotion.ParseLabel(s.Label)
		glyph := emotion.Placeholder
		name := s.Label
		if ok {
			glyph = emotion.Emoji(label)
			name = label.Capitalized()
		}
		fmt.Fprintf(out, "    %s %-9s %5d  avg %5.1f%%  max %5.1f%%\n",
			glyph, name, s.Count, s.AvgScore*100, s.MaxScore*100)
	}
}
