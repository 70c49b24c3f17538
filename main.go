package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/spf13/cobra"

	"mediakeyd/config"
	"mediakeyd/doctor"
	"mediakeyd/hotkey"
	"mediakeyd/keys"
	"mediakeyd/log"
	"mediakeyd/media"
	"mediakeyd/shutdown"
	"mediakeyd/store"
)

var version = "dev"

var errChecksFailed = errors.New("doctor: some checks failed")

type cli struct {
	configFile string
	logPath    string
	console    bool
	cfg        *config.Config
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:           "mediakeyd",
		Short:         "Bind keyboard chords to media player controls",
		Long:          "mediakeyd runs in the background and sends Play, Pause, Stop, Next and Previous\nto a media player when a bound key chord is held.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(c.configFile)
			if err != nil {
				return err
			}
			if c.logPath != "" {
				cfg.Log.Path = c.logPath
			}
			if c.console {
				cfg.Log.Console = true
			}
			c.cfg = cfg
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.runDaemon(cmd.Context())
		},
	}
	root.PersistentFlags().StringVar(&c.configFile, "config", "", "config file (default: config.toml in the user config dir)")
	root.Flags().StringVar(&c.logPath, "logpath", "", "log directory path (default: OS-specific location, use ./ for current dir)")
	root.Flags().BoolVar(&c.console, "console", false, "mirror diagnostics to stderr")

	root.AddCommand(
		c.doctorCmd(),
		c.bindCmd(),
		c.unbindCmd(),
		c.listCmd(),
		c.sourcesCmd(),
		c.sendCmd(),
		versionCmd(),
	)
	return root
}

func (c *cli) runDaemon(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := shutdown.Context(parent)
	defer stop()

	dir, err := log.ResolveDir(c.cfg.Log.Path)
	if err != nil {
		return fmt.Errorf("resolve log directory: %w", err)
	}
	log.SetDir(dir)
	if err := log.Init(log.Options{Level: c.cfg.Log.Level, Console: c.cfg.Log.Console}); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}
	defer log.Close()
	setCrashOutput(dir)

	sys := openSystem()
	defer sys.Close()

	return runDaemon(ctx, c.cfg, daemonDeps{hook: hotkey.New(), dispatcher: sys}, nil)
}

// openSystem falls back to a dispatcher that fails every call, so hotkeys
// are still tracked and each fire shows up in the log as a failure.
func openSystem() media.System {
	sys, err := media.NewSystem()
	if err != nil {
		log.Errorf("media control unavailable, actions will fail: %v", err)
		return media.Unavailable(err)
	}
	return sys
}

func (c *cli) doctorCmd() *cobra.Command {
	var wait time.Duration
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Run system diagnostics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := shutdown.Context(cmd.Context())
			defer stop()

			opts := doctor.Options{
				Out:       cmd.OutOrStdout(),
				Hook:      hotkey.New(),
				StorePath: c.cfg.Store.Path,
				KeyWait:   wait,
			}
			sys, err := media.NewSystem()
			if err != nil {
				opts.DispatcherErr = err
			} else {
				defer sys.Close()
				opts.Dispatcher = sys
			}
			if code := doctor.Run(ctx, opts); code != 0 {
				return errChecksFailed
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&wait, "wait", 10*time.Second, "how long to wait for a key press (0 skips the key test)")
	return cmd
}

// openStore tolerates a missing file; other load problems are reported but
// the command carries on with what was readable.
func (c *cli) openStore(cmd *cobra.Command) *store.Store {
	s, err := store.Open(c.cfg.Store.Path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %v\n", err)
	}
	return s
}

const windowsDispatchNote = `On Windows the action is posted as an app command to the source's visible
main window. Players without one get Stop, Next and Previous through the
global media keys, which reach whichever session Windows considers current;
Play and Pause fail for them.`

func (c *cli) bindCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "bind SOURCE ACTION CHORD",
		Short:   "Bind a chord such as ControlLeft+Space to an action on a source",
		Long:    "Bind a chord such as ControlLeft+Space to an action on a source.\n\n" + windowsDispatchNote,
		Example: "  mediakeyd bind Spotify.exe Play ControlLeft+AltGr+P",
		Args:    cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			action, err := media.ParseAction(args[1])
			if err != nil {
				return err
			}
			chord, err := keys.ParseChord(args[2])
			if err != nil {
				return err
			}
			if err := c.openStore(cmd).Record(args[0], action, chord); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "bound %s to %s %s\n", chord, args[0], action)
			return nil
		},
	}
}

func (c *cli) unbindCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unbind SOURCE ACTION",
		Short: "Remove a binding",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			action, err := media.ParseAction(args[1])
			if err != nil {
				return err
			}
			if err := c.openStore(cmd).Remove(args[0], action); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "unbound %s %s\n", args[0], action)
			return nil
		},
	}
}

func (c *cli) listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved bindings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			bindings := c.openStore(cmd).Bindings()
			if len(bindings) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No bindings.")
				return nil
			}
			rows := make([][]string, 0, len(bindings))
			for _, b := range bindings {
				rows = append(rows, []string{b.Source, b.Action.String(), b.Chord.String()})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Source", "Action", "Chord"}, rows, nil))
			return nil
		},
	}
}

func (c *cli) sourcesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "List media sources that can be controlled",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sys, err := media.NewSystem()
			if err != nil {
				return err
			}
			defer sys.Close()
			sources, err := sys.Sources(cmd.Context())
			if err != nil {
				return err
			}
			for _, s := range sources {
				fmt.Fprintln(cmd.OutOrStdout(), s)
			}
			return nil
		},
	}
}

func (c *cli) sendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "send SOURCE ACTION",
		Short: "Send one action to a source now",
		Long:  "Send one action to a source now.\n\n" + windowsDispatchNote,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			action, err := media.ParseAction(args[1])
			if err != nil {
				return err
			}
			sys, err := media.NewSystem()
			if err != nil {
				return err
			}
			defer sys.Close()
			ctx, cancel := context.WithTimeout(cmd.Context(), c.cfg.Dispatch.Timeout)
			defer cancel()
			return media.Run(ctx, sys, args[0], action)
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "mediakeyd %s\n", version)
		},
	}
}
