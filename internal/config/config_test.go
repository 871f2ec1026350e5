package config

import (
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	c, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.OutlierMethod != "quantile" || c.NegativeMethod != "gaussian" {
		t.Fatalf("unexpected methods %q/%q", c.OutlierMethod, c.NegativeMethod)
	}
	if c.XColumn != "X" || c.YColumn != "Y" || c.CensorBins != 10 || c.ClusterK != 3 {
		t.Fatalf("unexpected defaults %+v", c)
	}
	if want := filepath.Join(home, ".lamap", "projects"); c.ProjectsDir != want {
		t.Fatalf("projects dir = %s, want %s", c.ProjectsDir, want)
	}
}

func TestSaveAndReload(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "config.yaml")
	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	c.ClusterK = 7
	c.OutlierMethod = "peirce"
	if err := Save(c, path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	back, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if back.ClusterK != 7 || back.OutlierMethod != "peirce" {
		t.Fatalf("saved values not reloaded: %+v", back)
	}
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("LAMAP_CLUSTER_METHOD", "fcm")
	c, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.ClusterMethod != "fcm" {
		t.Fatalf("env override ignored: %q", c.ClusterMethod)
	}
}
