package app

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"
)

// コマンド名
const (
	// CommandServe はAPIサーバーモードで起動することを示す。
	CommandServe = "serve"
	// CommandWorker はワーカーモードで起動することを示す。
	CommandWorker = "worker"
	// CommandMigrate はデータベースマイグレーションを実行することを示す。
	CommandMigrate = "migrate"
	// CommandHealthcheck はヘルスチェックを実行することを示す。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck = "healthcheck"
)

// NewRootCommand はtweetstreamのルートコマンドを生成する。
// サブコマンドを省略した場合はserveとして動作する。
// ログはwに出力する。
func NewRootCommand(w io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "tweetstream",
		Short:         "tweetstream social backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd, w)
		},
	}

	root.AddCommand(
		&cobra.Command{
			Use:   CommandServe,
			Short: "Start the HTTP API and live-update server",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return serve(cmd, w)
			},
		},
		&cobra.Command{
			Use:   CommandWorker,
			Short: "Start the background cleanup worker",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := Init(w)
				if err != nil {
					return fmt.Errorf("initialization failed: %w", err)
				}
				ctx, stop := signalContext(cmd.Context())
				defer stop()
				return runWorker(ctx, cfg)
			},
		},
		newMigrateCommand(w),
		&cobra.Command{
			Use:   CommandHealthcheck,
			Short: "Probe the local /health endpoint",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				// フル初期化は行わない
				return runHealthcheck(cmd.Context(), healthcheckURL(os.Getenv("PORT")))
			},
		},
	)

	return root
}

func serve(cmd *cobra.Command, w io.Writer) error {
	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}
	return runServe(cmd.Context(), cfg)
}

// newMigrateCommand はmigrateコマンドとup/down/versionサブコマンドを生成する。
// migrate単体はupと同じ動作をする。
func newMigrateCommand(w io.Writer) *cobra.Command {
	up := func(cmd *cobra.Command, args []string) error {
		cfg, err := Init(w)
		if err != nil {
			return fmt.Errorf("initialization failed: %w", err)
		}
		return runMigrateUp(cfg)
	}

	migrateCmd := &cobra.Command{
		Use:   CommandMigrate,
		Short: "Apply database migrations",
		Args:  cobra.NoArgs,
		RunE:  up,
	}

	migrateCmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE:  up,
		},
		&cobra.Command{
			Use:   "down [steps]",
			Short: "Roll back migrations (default 1 step)",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				steps, err := parseSteps(args)
				if err != nil {
					return err
				}
				cfg, err := Init(w)
				if err != nil {
					return fmt.Errorf("initialization failed: %w", err)
				}
				return runMigrateDown(cfg, steps)
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the current schema version",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := Init(w)
				if err != nil {
					return fmt.Errorf("initialization failed: %w", err)
				}
				return runMigrateVersion(cfg, cmd.OutOrStdout())
			},
		},
	)

	return migrateCmd
}

// parseSteps はmigrate downのステップ数を解析する。省略時は1。
func parseSteps(args []string) (int, error) {
	if len(args) == 0 {
		return 1, nil
	}
	steps, err := strconv.Atoi(args[0])
	if err != nil || steps <= 0 {
		return 0, fmt.Errorf("steps must be a positive integer: %q", args[0])
	}
	return steps, nil
}
