package spawn

import (
	"fmt"

	"github.com/containerd/cgroups"
	specs "github.com/opencontainers/runtime-spec/specs-go"

	"github.com/ubports/upstart-sub001/internal/job"
)

// JoinCgroups adds pid to every cgroup stanza configured on the class,
// creating each one on first use with the configured Settings applied as
// resource limits. Grounded on the containerd/cgroups v1 control-group
// join gVisor's sandbox launcher performs for its own process.
//
// Failures are reported as one of the three cgroup sub-steps spec §7's
// error mapping distinguishes: connecting to (or creating) the group,
// applying its resource settings, and adding the pid to it.
func JoinCgroups(pid int, groups []job.Cgroup) *SetupError {
	for _, g := range groups {
		subsystem := cgroups.Name(g.Controller)
		path := cgroups.StaticPath("/" + g.Name)
		resources := resourcesFor(subsystem, g.Settings)

		control, err := cgroups.Load(cgroups.V1, path)
		if err != nil {
			control, err = cgroups.New(cgroups.V1, path, resources)
			if err != nil {
				return &SetupError{Operation: OpCgroupMgrConnect, Arg: g.Controller, Errno: errnoOf(err)}
			}
		}
		if err := control.Update(resources); err != nil {
			return &SetupError{Operation: OpCgroupSetup, Arg: g.Controller, Errno: errnoOf(err)}
		}
		if err := control.Add(cgroups.Process{Pid: pid}); err != nil {
			return &SetupError{Operation: OpCgroupEnter, Arg: g.Controller, Errno: errnoOf(err)}
		}
	}
	return nil
}

// resourcesFor builds the minimal *specs.LinuxResources needed to apply
// one cgroup stanza's KEY=VALUE settings; unrecognised keys are ignored
// rather than failing the whole join, matching the tolerant behaviour of
// `cgroup CONTROLLER NAME KEY VALUE` stanzas that predate a given kernel's
// full resource-controller surface.
func resourcesFor(subsystem cgroups.Name, settings map[string]string) *specs.LinuxResources {
	res := &specs.LinuxResources{}
	switch subsystem {
	case cgroups.Memory:
		if v, ok := settings["limit"]; ok {
			if n, err := parseInt64(v); err == nil {
				res.Memory = &specs.LinuxMemory{Limit: &n}
			}
		}
	case cgroups.Cpu:
		if v, ok := settings["shares"]; ok {
			if n, err := parseUint64(v); err == nil {
				res.CPU = &specs.LinuxCPU{Shares: &n}
			}
		}
	}
	return res
}

func parseInt64(s string) (int64, error) {
	var n int64
	_, err := fmt.Sscan(s, &n)
	return n, err
}

func parseUint64(s string) (uint64, error) {
	var n uint64
	_, err := fmt.Sscan(s, &n)
	return n, err
}
