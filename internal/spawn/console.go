package spawn

import (
	"context"
	"io"
	"os"

	"github.com/containerd/console"
	"github.com/kr/pty"

	"github.com/ubports/upstart-sub001/internal/job"
	"github.com/ubports/upstart-sub001/internal/joblog"
)

// devConsolePath is the device spec §4.3 step 6 opens for ConsoleOutput
// and ConsoleOwner; kept as a variable rather than a bare literal so
// tests can point it at a fake file.
var devConsolePath = "/dev/console"

// Console resolves a job's ConsolePolicy into the fds Spawn and the
// daemon's own I/O plumbing need: a direct open of /dev/console for
// OUTPUT/OWNER, or a pty pair streamed into a joblog.Log for LOG.
type Console struct {
	Policy job.ConsolePolicy

	device *os.File // ConsoleOutput/ConsoleOwner

	ptyMaster console.Console // ConsoleLog
	ptySlave  *os.File
	log       *joblog.Log
}

// OpenConsole sets up whatever ConsolePolicy calls for. logPath is used
// only for ConsoleLog, as the path joblog.Open persists the role's
// output under.
func OpenConsole(ctx context.Context, policy job.ConsolePolicy, logPath string) (*Console, error) {
	switch policy {
	case job.ConsoleOutput, job.ConsoleOwner:
		f, err := os.OpenFile(devConsolePath, os.O_RDWR, 0)
		if err != nil {
			return nil, err
		}
		return &Console{Policy: policy, device: f}, nil

	case job.ConsoleLog:
		master, slave, err := pty.Open()
		if err != nil {
			return nil, err
		}
		pm, err := console.ConsoleFromFile(master)
		if err != nil {
			slave.Close()
			master.Close()
			return nil, err
		}
		l, err := joblog.Open(ctx, logPath)
		if err != nil {
			slave.Close()
			master.Close()
			return nil, err
		}
		c := &Console{Policy: policy, ptyMaster: pm, ptySlave: slave, log: l}
		go io.Copy(l, pm)
		return c, nil

	default:
		return &Console{Policy: policy}, nil
	}
}

// ApplyTo wires the resolved console into spec's standard fds and, for
// ConsoleOwner, flags the helper to claim /dev/console as its
// controlling terminal once it is a session leader.
func (c *Console) ApplyTo(spec *Spec) {
	switch c.Policy {
	case job.ConsoleOutput:
		spec.SetStdio(c.device, c.device, c.device)
	case job.ConsoleOwner:
		spec.SetStdio(c.device, c.device, c.device)
		spec.ConsoleSetCtty = true
	case job.ConsoleLog:
		spec.SetStdio(c.ptySlave, c.ptySlave, c.ptySlave)
	default:
		// ConsoleNone: leave stdio unset so Spawn falls back to /dev/null.
	}
}

// Close releases whatever OpenConsole allocated. The pty slave is the
// child's end and is safe to close once the helper has exec'd; the
// master and its backing log keep running until the role's last process
// exits and the caller closes them explicitly via CloseAfterExit.
func (c *Console) Close() {
	if c.device != nil {
		c.device.Close()
	}
	if c.ptySlave != nil {
		c.ptySlave.Close()
	}
}

// CloseAfterExit releases the pty master and its log once the job's
// process has exited and nothing further will write to it.
func (c *Console) CloseAfterExit() {
	if c.ptyMaster != nil {
		c.ptyMaster.Close()
	}
	if c.log != nil {
		c.log.Close()
	}
}
