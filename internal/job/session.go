package job

import (
	"os"
	"path/filepath"
)

// UserConfDirs resolves the search path for a --user session's job
// configuration directories, supplementing the distilled spec with the
// XDG base-directory behaviour of original_source/init/xdg.c:
//
//	$XDG_CONFIG_HOME/upstart          (default ~/.config/upstart)
//	$XDG_CONFIG_DIRS[i]/upstart       (default /etc/xdg/upstart)
//
// in that order, most-specific first, with duplicates removed.
func UserConfDirs(home string) []string {
	var dirs []string
	seen := map[string]bool{}
	add := func(base string) {
		if base == "" {
			return
		}
		dir := filepath.Join(base, "upstart")
		if seen[dir] {
			return
		}
		seen[dir] = true
		dirs = append(dirs, dir)
	}

	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" && home != "" {
		configHome = filepath.Join(home, ".config")
	}
	add(configHome)

	configDirs := os.Getenv("XDG_CONFIG_DIRS")
	if configDirs == "" {
		configDirs = "/etc/xdg"
	}
	for _, dir := range filepath.SplitList(configDirs) {
		add(dir)
	}
	return dirs
}

// UserDataDir resolves $XDG_DATA_HOME (default ~/.local/share) used for a
// --user session's runtime state directory (log files, the stateful
// re-exec lock, etc).
func UserDataDir(home string) string {
	if dataHome := os.Getenv("XDG_DATA_HOME"); dataHome != "" {
		return filepath.Join(dataHome, "upstart")
	}
	if home != "" {
		return filepath.Join(home, ".local", "share", "upstart")
	}
	return ""
}

// NewSession builds a Session for --user mode, with ChDir defaulting to
// the user's home directory and BusAddr left for the control package to
// fill in once it has bound (or discovered, via DBUS_SESSION_BUS_ADDRESS)
// the session bus.
func NewSession(name, home string) *Session {
	return &Session{
		Name:  name,
		ChDir: home,
	}
}
