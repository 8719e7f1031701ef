package job

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/mattbaird/jsonpatch"

	"github.com/ubports/upstart-sub001/internal/ulog"
)

// Installer owns the live class table for one session (or the system
// session). A reload never mutates a Class in place: it builds the new
// Class, swaps the map entry, and leaves the old Class's existing
// Instances running to completion under a tombstoned reference (§3:
// "a class that has been replaced... is kept alive, marked Deleted, until
// its last instance reaches WAITING").
type Installer struct {
	mu      sync.RWMutex
	classes map[string]*Class
}

// NewInstaller returns an empty class table.
func NewInstaller() *Installer {
	return &Installer{classes: map[string]*Class{}}
}

// Get returns the live class for name, if any.
func (in *Installer) Get(name string) (*Class, bool) {
	in.mu.RLock()
	defer in.mu.RUnlock()
	c, ok := in.classes[name]
	return c, ok
}

// List returns every class currently in the table. A class displaced by
// Replace is no longer in the table, so tombstoned classes still draining
// instances are not listed.
func (in *Installer) List() []*Class {
	in.mu.RLock()
	defer in.mu.RUnlock()
	out := make([]*Class, 0, len(in.classes))
	for _, c := range in.classes {
		out = append(out, c)
	}
	return out
}

// Install adds a brand new class. It returns an error if one is already
// installed under that name; callers wanting reload semantics should call
// Replace instead.
func (in *Installer) Install(c *Class) error {
	in.mu.Lock()
	defer in.mu.Unlock()
	if _, exists := in.classes[c.Name]; exists {
		return fmt.Errorf("job: class %q already installed", c.Name)
	}
	in.classes[c.Name] = c
	return nil
}

// Replace installs newClass in place of whatever is currently registered
// under newClass.Name (if anything), logging a JSON patch between the two
// so a reload's effective diff is visible in the daemon's log without
// printing either class's full definition. The old class, if it has any
// live instances, is returned so the caller can mark it Deleted and keep
// it reachable until drained; otherwise it is simply discarded.
func (in *Installer) Replace(newClass *Class, hasLiveInstances func(*Class) bool) (old *Class) {
	in.mu.Lock()
	defer in.mu.Unlock()

	old, existed := in.classes[newClass.Name]
	if existed {
		logClassDiff(old, newClass)
		if hasLiveInstances(old) {
			old.Deleted = true
		} else {
			old = nil
		}
	}
	in.classes[newClass.Name] = newClass
	return old
}

// Remove deletes a class with no live instances outright; for one with
// live instances the caller must mark it Deleted and rely on the runtime
// to call Remove once its last instance reaches WAITING.
func (in *Installer) Remove(name string) {
	in.mu.Lock()
	defer in.mu.Unlock()
	delete(in.classes, name)
}

// logClassDiff renders a unified JSON patch (RFC 6902, via
// mattbaird/jsonpatch) between the old and new class definitions and logs
// it at info level, so `initctl reload-configuration` leaves an audit
// trail of exactly what changed.
func logClassDiff(old, newClass *Class) {
	oldJSON, err := json.Marshal(old)
	if err != nil {
		ulog.WithField("class", old.Name).Warnf("reload: marshal old class: %v", err)
		return
	}
	newJSON, err := json.Marshal(newClass)
	if err != nil {
		ulog.WithField("class", newClass.Name).Warnf("reload: marshal new class: %v", err)
		return
	}
	patch, err := jsonpatch.CreatePatch(oldJSON, newJSON)
	if err != nil {
		ulog.WithField("class", newClass.Name).Warnf("reload: diff class: %v", err)
		return
	}
	if len(patch) == 0 {
		ulog.WithField("class", newClass.Name).Infof("reload: definition unchanged")
		return
	}
	patchJSON, err := json.Marshal(patch)
	if err != nil {
		patchJSON = []byte(fmt.Sprintf("%d operations", len(patch)))
	}
	ulog.WithField("class", newClass.Name).Infof("reload: %s", patchJSON)
}
