// Command telinit is the SysV-compatibility helper: it accepts the
// traditional runlevel arguments ({0,1,2,3,4,5,6,S,s,Q,q,a,b,c,U,u}) and,
// for the ones that still mean anything under this daemon, emits the
// corresponding "runlevel" event; unrecognised arguments are accepted
// and silently ignored rather than rejected, matching
// original_source/init/telinit.c's tolerance of scripts written for
// other init implementations.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/godbus/dbus/v5"
)

var validRunlevels = "0123456SsQqabcUu"

func main() {
	timeout := flag.Int("t", 0, "accepted for SysV compatibility; ignored")
	env := flag.String("e", "", "accepted for SysV compatibility; ignored")
	flag.Parse()
	_ = *timeout
	_ = *env

	if os.Geteuid() != 0 {
		fmt.Fprintln(os.Stderr, "telinit: must be run as root")
		os.Exit(1)
	}

	args := flag.Args()
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "usage: telinit [-e VAR=VAL] [-t SECONDS] RUNLEVEL")
		os.Exit(1)
	}
	arg := args[0]

	switch arg {
	case "Q", "q":
		// Re-read configuration: translated into a reload request rather
		// than a runlevel event.
		if err := requestReload(); err != nil {
			fmt.Fprintln(os.Stderr, "telinit:", err)
			os.Exit(1)
		}
		return
	case "U", "u":
		fmt.Fprintln(os.Stderr, "telinit: re-exec is not supported via telinit; send SIGTERM to init directly")
		os.Exit(1)
	}

	if !strings.ContainsAny(arg, validRunlevels) || len(arg) != 1 {
		// Unknown argument: accepted, silently ignored, per SysV telinit's
		// historical leniency.
		return
	}

	if err := emitRunlevel(arg); err != nil {
		fmt.Fprintln(os.Stderr, "telinit:", err)
		os.Exit(1)
	}
}

const (
	busName      = "com.ubuntu.Upstart"
	objectPath   = "/com/ubuntu/Upstart"
	ifaceUpstart = "com.ubuntu.Upstart0_6"
)

func emitRunlevel(level string) error {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer conn.Close()

	obj := conn.Object(busName, dbus.ObjectPath(objectPath))
	call := obj.CallWithContext(context.Background(), ifaceUpstart+".EmitEvent", 0,
		"runlevel", []string{"RUNLEVEL=" + level}, false)
	return call.Err
}

func requestReload() error {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer conn.Close()

	obj := conn.Object(busName, dbus.ObjectPath(objectPath))
	call := obj.CallWithContext(context.Background(), ifaceUpstart+".ReloadConfiguration", 0)
	return call.Err
}
