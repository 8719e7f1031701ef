// Package control exposes the daemon's control surface over D-Bus:
// EmitEvent, StartJob, StopJob and GetJobStatus, the same method set
// `initctl` talks to. The object layout (one exported Go type per
// interface, methods returning (results..., *dbus.Error)) follows the
// machine1.Machine object pattern in the nspawn driver's systemd
// package, adapted from a read-only property surface to one with
// mutating control methods.
package control

import (
	"fmt"

	"github.com/godbus/dbus/v5"
	tomb "gopkg.in/tomb.v1"

	"github.com/ubports/upstart-sub001/internal/bus"
	"github.com/ubports/upstart-sub001/internal/event"
	"github.com/ubports/upstart-sub001/internal/job"
	"github.com/ubports/upstart-sub001/internal/ulog"
)

const (
	busName      = "com.ubuntu.Upstart"
	objectPath   = "/com/ubuntu/Upstart"
	ifaceUpstart = "com.ubuntu.Upstart0_6"
)

// Server is the daemon's exported D-Bus object plus the supervised
// goroutine that keeps it connected to the bus (system or session,
// depending on how it was dialed).
type Server struct {
	conn      *dbus.Conn
	installer *job.Installer
	bus       *bus.Bus

	// Lookup resolves a running instance by (class name, instance name),
	// since control has no instance storage of its own. It is set by the
	// caller; while it is nil, StopJob reports NotRunning and GetJobStatus
	// leaves Goal and State empty.
	Lookup func(class, instance string) (*job.Instance, bool)

	// Reload, if set by the caller, is invoked when ReloadConfiguration()
	// is called over D-Bus; while it is nil that call does nothing.
	Reload func()

	t tomb.Tomb
}

// New connects to busAddr (empty means "the default system bus") and
// exports the control object. It does not start serving until Run is
// called.
func New(busAddr string, installer *job.Installer, eventBus *bus.Bus) (*Server, error) {
	var conn *dbus.Conn
	var err error
	if busAddr != "" {
		conn, err = dbus.Dial(busAddr)
		if err == nil {
			err = conn.Auth(nil)
		}
		if err == nil {
			err = conn.Hello()
		}
	} else {
		conn, err = dbus.ConnectSystemBus()
	}
	if err != nil {
		return nil, fmt.Errorf("control: connect: %w", err)
	}

	s := &Server{conn: conn, installer: installer, bus: eventBus}
	if err := conn.Export(s, objectPath, ifaceUpstart); err != nil {
		conn.Close()
		return nil, fmt.Errorf("control: export: %w", err)
	}
	reply, err := conn.RequestName(busName, dbus.NameFlagDoNotQueue)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("control: request name: %w", err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		conn.Close()
		return nil, fmt.Errorf("control: name %q already owned", busName)
	}
	return s, nil
}

// Run supervises the connection for the daemon's lifetime, using the
// tomb.Tomb Kill/Dying/Wait lifecycle so Stop can cleanly tear the
// goroutine down. It returns when the underlying connection closes or
// Stop is called; it does not reconnect.
func (s *Server) Run() {
	defer s.t.Done()
	closedCh := make(chan struct{})
	go func() {
		<-s.conn.Context().Done()
		close(closedCh)
	}()
	select {
	case <-closedCh:
		ulog.Warnf("control: bus connection closed")
	case <-s.t.Dying():
	}
}

// Stop tells Run to return and closes the connection.
func (s *Server) Stop() error {
	s.t.Kill(nil)
	err := s.t.Wait()
	s.conn.Close()
	return err
}

// EmitEvent implements the EmitEvent(name, env[], wait) D-Bus method:
// queues a new event on the bus, optionally blocking the caller (wait)
// until every job that blocked on it has unblocked. The blocking variant
// is not implemented synchronously over D-Bus here; wait is accepted and
// ignored, matching a documented subset-of-upstart control surface.
func (s *Server) EmitEvent(name string, env []string, wait bool) *dbus.Error {
	ev := event.New(name, env)
	if err := s.bus.Emit(ev); err != nil {
		return dbus.NewError("com.ubuntu.Upstart0_6.Error.Throttled", []interface{}{err.Error()})
	}
	return nil
}

// ReloadConfiguration implements ReloadConfiguration(), the D-Bus
// counterpart of SIGHUP: it does no reread-and-diff work itself and only
// invokes the Reload hook, if one is set.
func (s *Server) ReloadConfiguration() *dbus.Error {
	if s.Reload != nil {
		s.Reload()
	}
	return nil
}

// StartJob implements StartJobByName(name string) (string instanceName).
func (s *Server) StartJob(name string) (string, *dbus.Error) {
	class, ok := s.installer.Get(name)
	if !ok {
		return "", dbus.NewError("com.ubuntu.Upstart0_6.Error.UnknownJob", []interface{}{name})
	}
	inst := job.NewInstance(class, "")
	inst.SetGoal(job.GoalStart)
	return inst.Name, nil
}

// StopJob implements StopJobByName(name, instance string).
func (s *Server) StopJob(name string, instanceName string) *dbus.Error {
	if _, ok := s.installer.Get(name); !ok {
		return dbus.NewError("com.ubuntu.Upstart0_6.Error.UnknownJob", []interface{}{name})
	}
	if s.Lookup == nil {
		return dbus.NewError("com.ubuntu.Upstart0_6.Error.NotRunning", []interface{}{name})
	}
	inst, ok := s.Lookup(name, instanceName)
	if !ok {
		return dbus.NewError("com.ubuntu.Upstart0_6.Error.NotRunning", []interface{}{name, instanceName})
	}
	inst.SetGoal(job.GoalStop)
	return nil
}

// JobStatus mirrors the fields `initctl status` prints.
type JobStatus struct {
	Name     string
	Instance string
	Goal     string
	State    string
}

// GetJobStatus implements GetJobStatus(name, instance string) JobStatus.
func (s *Server) GetJobStatus(name, instance string) (JobStatus, *dbus.Error) {
	class, ok := s.installer.Get(name)
	if !ok {
		return JobStatus{}, dbus.NewError("com.ubuntu.Upstart0_6.Error.UnknownJob", []interface{}{name})
	}
	status := JobStatus{Name: class.Name, Instance: instance}
	if s.Lookup != nil {
		if inst, ok := s.Lookup(name, instance); ok {
			status.Goal = inst.Goal.String()
			status.State = inst.State.String()
		}
	}
	return status, nil
}
