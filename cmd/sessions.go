package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// expiredSweeper is implemented by the relational drivers. The redis driver
// relies on key TTLs instead and has nothing to sweep.
type expiredSweeper interface {
	DeleteExpired(ctx context.Context) (int, error)
}

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Inspect and manage agent sessions",
}

var sessionsGetCmd = &cobra.Command{
	Use:   "get <session-id>",
	Short: "Fetch a session record as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := initSessionStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		record, err := st.Get(cmd.Context(), args[0])
		if err != nil {
			return eris.Wrap(err, "get session")
		}
		if record == nil {
			return eris.Errorf("session %s not found", args[0])
		}

		out, err := json.MarshalIndent(record, "", "  ")
		if err != nil {
			return eris.Wrap(err, "marshal session")
		}
		fmt.Println(string(out))
		return nil
	},
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete <session-id>",
	Short: "Delete a session record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := initSessionStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Delete(cmd.Context(), args[0]); err != nil {
			return eris.Wrap(err, "delete session")
		}
		zap.L().Info("session deleted", zap.String("session_id", args[0]))
		return nil
	},
}

var sessionsPurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete all expired session rows",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := initSessionStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		sweeper, ok := st.(expiredSweeper)
		if !ok {
			return eris.Errorf("driver %s expires keys natively, nothing to purge", cfg.Session.Driver)
		}
		n, err := sweeper.DeleteExpired(cmd.Context())
		if err != nil {
			return eris.Wrap(err, "purge expired sessions")
		}
		zap.L().Info("expired sessions purged", zap.Int("deleted", n))
		return nil
	},
}

func init() {
	sessionsCmd.AddCommand(sessionsGetCmd, sessionsDeleteCmd, sessionsPurgeCmd)
	rootCmd.AddCommand(sessionsCmd)
}
