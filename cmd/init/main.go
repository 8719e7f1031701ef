// Command init is the process-supervision daemon: pid-1-capable job
// supervisor modeled on upstart's init(8). The long-running supervisor is
// the google/subcommands verb "supervise"; the only other verb is a
// "status" stub. Run with no verb, it prints usage and exits.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/user"

	"github.com/google/subcommands"

	"github.com/ubports/upstart-sub001/internal/config"
	"github.com/ubports/upstart-sub001/internal/control"
	"github.com/ubports/upstart-sub001/internal/daemon"
	"github.com/ubports/upstart-sub001/internal/event"
	"github.com/ubports/upstart-sub001/internal/spawn"
	"github.com/ubports/upstart-sub001/internal/ulog"
)

func main() {
	// A freshly forked+exec'd setup helper never reaches any of the
	// subcommands machinery below; it must do nothing else observable
	// before handing control to runSetup.
	if len(os.Args) > 1 && os.Args[1] == spawn.HelperArg {
		spawn.RunHelper()
		return
	}

	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(subcommands.CommandsCommand(), "")
	subcommands.Register(&superviseCmd{cfg: &config.Config{}}, "")
	subcommands.Register(&statusCmd{}, "")

	flag.Parse()
	os.Exit(int(subcommands.Execute(context.Background())))
}

// superviseCmd is the "supervise" verb: run the supervisor until
// terminated.
type superviseCmd struct {
	cfg *config.Config
}

func (*superviseCmd) Name() string     { return "supervise" }
func (*superviseCmd) Synopsis() string { return "run the init supervisor" }
func (*superviseCmd) Usage() string    { return "init supervise [flags]\n" }
func (c *superviseCmd) SetFlags(fs *flag.FlagSet) { c.cfg.RegisterFlags(fs) }

func (c *superviseCmd) Execute(ctx context.Context, fs *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.cfg.Verbose {
		ulog.SetDebug(true)
	}

	home := ""
	if u, err := user.Current(); err == nil {
		home = u.HomeDir
	}
	// File defaults fill in only settings not given on the command line.
	explicit := *c.cfg
	if err := config.LoadFileDefaults(c.cfg, config.DefaultFilePath(c.cfg.User, home)); err != nil {
		ulog.Warnf("config: %v", err)
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "logdir":
			c.cfg.LogDir = explicit.LogDir
		case "default-console":
			c.cfg.DefaultConsole = explicit.DefaultConsole
		case "startup-event":
			c.cfg.StartupEvent = explicit.StartupEvent
		}
	})

	d, err := daemon.New(c.cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer d.Close()

	if !c.cfg.User {
		srv, err := control.New("", d.Installer, d.Bus)
		if err != nil {
			ulog.Warnf("control: %v", err)
		} else {
			d.Control = srv
		}
	}

	if !c.cfg.NoStartupEvent {
		if err := d.Bus.Emit(event.New(c.cfg.StartupEvent, nil)); err != nil {
			ulog.Warnf("emit startup event: %v", err)
		}
	}

	if err := d.Run(ctx); err != nil {
		ulog.Errorf("daemon: %v", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

// statusCmd is a stub: it does not contact the daemon, and only prints a
// message pointing at initctl for the job named on the command line.
type statusCmd struct{}

func (*statusCmd) Name() string             { return "status" }
func (*statusCmd) Synopsis() string         { return "stub; points at initctl for a job's goal and state" }
func (*statusCmd) Usage() string            { return "init status JOB [INSTANCE]\n" }
func (*statusCmd) SetFlags(fs *flag.FlagSet) {}

func (*statusCmd) Execute(ctx context.Context, fs *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "usage: init status JOB [INSTANCE]")
		return subcommands.ExitUsageError
	}
	fmt.Printf("%s: query requires a running daemon; use initctl instead\n", fs.Arg(0))
	return subcommands.ExitSuccess
}
