package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/dshills/luafs/internal/app"
	"github.com/dshills/luafs/internal/config"
)

// errDenied makes check exit with status 1 without printing an error.
var errDenied = errors.New("denied")

// cliEnv is everything the commands take from the process.
type cliEnv struct {
	fs      afero.Fs
	stdout  io.Writer
	stderr  io.Writer
	lookup  config.LookupFunc
	workDir string
}

// globalFlags are the persistent flags shared by every command.
type globalFlags struct {
	configPath string
	logLevel   string
	policy     string
}

func execute(ctx context.Context, args []string, env cliEnv) int {
	root := newRootCommand(env)
	root.SetArgs(args)
	root.SetOut(env.stdout)
	root.SetErr(env.stderr)

	if err := root.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errDenied) {
			fmt.Fprintf(env.stderr, "Error: %v\n", err)
		}
		return 1
	}
	return 0
}

// newRootCommand creates the root command and its subcommands.
func newRootCommand(env cliEnv) *cobra.Command {
	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:           "luafs",
		Short:         "Run Lua scripts against a sandboxed filesystem",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "Path to configuration file (TOML or YAML)")
	rootCmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&flags.policy, "policy", "", "Path policy (auto, posix, windows)")

	rootCmd.AddCommand(
		runCommand(env, flags),
		checkCommand(env, flags),
		pathsCommand(env, flags),
		versionCommand(),
	)
	return rootCmd
}

// newApp builds the application. Without --config, the default config file
// is used when it exists.
func newApp(env cliEnv, flags *globalFlags) (*app.Application, error) {
	path := flags.configPath
	if path == "" {
		if p := config.DefaultPath(); p != "" {
			if ok, _ := afero.Exists(env.fs, p); ok {
				path = p
			}
		}
	}

	return app.New(app.Options{
		ConfigPath: path,
		LogLevel:   flags.logLevel,
		Policy:     flags.policy,
		WorkDir:    env.workDir,
		Fs:         env.fs,
		Output:     env.stdout,
		LogOutput:  env.stderr,
		Lookup:     env.lookup,
	})
}

func runCommand(env cliEnv, flags *globalFlags) *cobra.Command {
	var (
		watchMode   bool
		showMetrics bool
	)

	cmd := &cobra.Command{
		Use:   "run SCRIPT",
		Short: "Run a Lua script with the filesystem library",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := newApp(env, flags)
			if err != nil {
				return err
			}
			defer application.Close()

			if watchMode {
				var extra []string
				if flags.configPath != "" {
					extra = append(extra, flags.configPath)
				}
				err = application.WatchScript(cmd.Context(), args[0], extra...)
			} else {
				err = application.RunScript(cmd.Context(), args[0])
			}

			if showMetrics {
				if werr := application.Metrics().WriteSummary(cmd.OutOrStdout()); werr != nil && err == nil {
					err = werr
				}
			}
			return err
		},
	}

	cmd.Flags().BoolVarP(&watchMode, "watch", "w", false, "Re-run the script whenever it changes")
	cmd.Flags().BoolVar(&showMetrics, "metrics", false, "Print admission counters after running")
	return cmd
}

func checkCommand(env cliEnv, flags *globalFlags) *cobra.Command {
	var req app.CheckRequest

	cmd := &cobra.Command{
		Use:   "check PATH PATHID",
		Short: "Show whether a path and mount ID would be admitted",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if req.Find && req.Search {
				return errors.New("--find and --search are mutually exclusive")
			}
			application, err := newApp(env, flags)
			if err != nil {
				return err
			}
			defer application.Close()

			req.Path, req.MountID = args[0], args[1]
			res := application.Check(req)

			out := cmd.OutOrStdout()
			if !res.Admitted() {
				fmt.Fprintf(out, "denied\t%s\t%s\t%v\n", res.Intent, res.Reason(), res.Err)
				return errDenied
			}
			fmt.Fprintf(out, "admitted\t%s\t%s\t%s\n", res.Intent, res.Decision.MountID, res.Decision.Path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&req.Mode, "mode", "m", "r", "fopen-style mode (r, w, a, r+, ...)")
	cmd.Flags().BoolVar(&req.Find, "find", false, "Check PATH as a Find pattern")
	cmd.Flags().BoolVar(&req.Search, "search", false, "Check PATH as a search-path directory")
	return cmd
}

func pathsCommand(env cliEnv, flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "paths [PATHID]",
		Short: "List the search-path mapping",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := newApp(env, flags)
			if err != nil {
				return err
			}
			defer application.Close()

			mountID := ""
			if len(args) == 1 {
				mountID = args[0]
			}
			out := cmd.OutOrStdout()
			for _, sp := range application.SearchPaths(mountID) {
				kind := "dir"
				if sp.Pack {
					kind = "pack"
				}
				fmt.Fprintf(out, "%s\t%s\t%s\n", sp.MountID, kind, sp.Path)
			}
			return nil
		},
	}
}

func versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "luafs %s\n", version)
			fmt.Fprintf(out, "Commit: %s\n", commit)
			fmt.Fprintf(out, "Built: %s\n", date)
		},
	}
}
