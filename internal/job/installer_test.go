package job

import "testing"

func TestInstallerInstallRejectsDuplicate(t *testing.T) {
	in := NewInstaller()
	if err := in.Install(NewClass("foo")); err != nil {
		t.Fatalf("first Install: %v", err)
	}
	if err := in.Install(NewClass("foo")); err == nil {
		t.Fatal("expected a second Install of the same name to fail")
	}
}

func TestInstallerGetAndList(t *testing.T) {
	in := NewInstaller()
	in.Install(NewClass("foo"))
	in.Install(NewClass("bar"))

	if _, ok := in.Get("missing"); ok {
		t.Fatal("expected Get(missing) to report not-found")
	}
	if c, ok := in.Get("foo"); !ok || c.Name != "foo" {
		t.Fatalf("Get(foo) = %+v, %v", c, ok)
	}
	if got := len(in.List()); got != 2 {
		t.Fatalf("List() len = %d, want 2", got)
	}
}

func TestInstallerReplaceDiscardsWithNoLiveInstances(t *testing.T) {
	in := NewInstaller()
	in.Install(NewClass("foo"))
	old := in.Replace(NewClass("foo"), func(*Class) bool { return false })
	if old != nil {
		t.Fatalf("Replace with no live instances should return nil, got %+v", old)
	}
	c, _ := in.Get("foo")
	if c.Deleted {
		t.Fatal("replacement class should not be marked Deleted")
	}
}

func TestInstallerReplaceTombstonesWithLiveInstances(t *testing.T) {
	in := NewInstaller()
	in.Install(NewClass("foo"))
	old := in.Replace(NewClass("foo"), func(*Class) bool { return true })
	if old == nil || !old.Deleted {
		t.Fatal("expected the old class to be returned and marked Deleted")
	}
	// The new class supersedes it in the table regardless.
	if c, _ := in.Get("foo"); c == old {
		t.Fatal("Get should now return the new class, not the tombstoned one")
	}
}

func TestInstallerRemove(t *testing.T) {
	in := NewInstaller()
	in.Install(NewClass("foo"))
	in.Remove("foo")
	if _, ok := in.Get("foo"); ok {
		t.Fatal("expected foo to be gone after Remove")
	}
}
