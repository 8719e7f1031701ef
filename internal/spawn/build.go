package spawn

import (
	"github.com/ubports/upstart-sub001/internal/job"
	"github.com/ubports/upstart-sub001/internal/process"
)

// BuildSpec translates a Class's static stanzas plus one Instance's
// expanded environment into the Spec the helper trampoline needs to spawn
// role. It is the glue original_source/init/job_process.c's
// job_process_spawn performs inline (reading straight out of the parsed
// JobClass); here the two are deliberately kept separate so internal/job
// never has to know about pipes, fds or the re-exec trampoline.
func BuildSpec(class *job.Class, inst *job.Instance, role job.Role) *Spec {
	proc := class.Processes[role]
	if proc == nil {
		return nil
	}

	spec := &Spec{
		Env:         []string(inst.ExpandEnv()),
		Setsid:      true,
		Trace:       role == job.RoleMain && class.Expect != job.ExpectNone,
		Umask:       class.Umask,
		Nice:        class.Nice,
		OOMScoreAdj: class.OOMScoreAdj,
		Chroot:      class.Chroot,
		ChDir:       class.ChDir,
		SetUID:      class.SetUID,
		SetGID:      class.SetGID,
		Cgroups:     class.Cgroups,
		Console:     class.Console,
	}

	if proc.Script || process.HasShellChars(proc.Command) {
		spec.Script = true
		spec.ScriptBody = proc.ShellBody(!proc.Script)
	} else {
		spec.Argv = proc.Argv()
	}

	for _, rl := range class.Limits {
		if rl != nil {
			spec.Rlimits = append(spec.Rlimits, *rl)
		}
	}

	if class.AppArmor != nil {
		spec.AppArmorLoadPath = class.AppArmor.LoadPath
		spec.AppArmorProfile = class.AppArmor.Profile
	}

	// Capability bounding-set drop and dropping privileges both happen on
	// the way to running as an unprivileged job; only relevant once a
	// SetUID/SetGID stanza actually asks for a privilege change.
	spec.DropCapBoundingSet = class.SetUID != "" || class.SetGID != ""

	return spec
}
