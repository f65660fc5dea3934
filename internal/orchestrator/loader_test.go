package orchestrator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ShayCichocki/boardroom/internal/agent"
	"github.com/ShayCichocki/boardroom/internal/skills"
	"github.com/ShayCichocki/boardroom/pkg/models"
)

// writeFileAtomic writes via rename so watchers never see a partial file.
func writeFileAtomic(t *testing.T, path, content string) {
	t.Helper()
	tmp := filepath.Join(t.TempDir(), filepath.Base(path))
	if err := os.WriteFile(tmp, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		t.Fatalf("rename into %s: %v", path, err)
	}
}

func newTestLoader(t *testing.T) (*Loader, *Orchestrator, string, string) {
	t.Helper()
	root := t.TempDir()
	agentsDir := filepath.Join(root, "agents")
	skillsDir := filepath.Join(root, "skills")
	for _, d := range []string{agentsDir, skillsDir} {
		if err := os.MkdirAll(d, 0755); err != nil {
			t.Fatal(err)
		}
	}
	o := New(RequiredConfig{})
	l := NewLoader(agentsDir, agent.NewDefaultFactory(), skills.NewFileProvider(skillsDir), o)
	t.Cleanup(func() {
		_ = o.Stop()
		l.Close()
	})
	return l, o, agentsDir, skillsDir
}

func TestReadManifest(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		content string
		wantErr string
		want    agent.Definition
	}{
		{
			name:    "full",
			content: "id: cfo-1\ntype: CFO\nname: Chief Financial Officer\ncapabilities: [budgeting, forecasting]\ntools: [ledger]\n",
			want: agent.Definition{
				ID: "cfo-1", Type: "CFO", Name: "Chief Financial Officer",
				Capabilities: []string{"budgeting", "forecasting"}, Tools: []string{"ledger"},
			},
		},
		{name: "offline", content: "id: x\ntype: CTO\noffline: true\n", want: agent.Definition{ID: "x", Type: "CTO", Offline: true}},
		{name: "missing id", content: "type: CTO\n", wantErr: "id is required"},
		{name: "missing type", content: "id: x\n", wantErr: "type is required"},
		{name: "bad yaml", content: "id: [unclosed\n", wantErr: "parse manifest"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, strings.ReplaceAll(tt.name, " ", "_")+".yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
				t.Fatal(err)
			}
			def, err := ReadManifest(path)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("error = %v, want it to contain %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ReadManifest: %v", err)
			}
			if def.ID != tt.want.ID || def.Type != tt.want.Type || def.Name != tt.want.Name || def.Offline != tt.want.Offline {
				t.Errorf("got %+v, want %+v", def, tt.want)
			}
			if strings.Join(def.Capabilities, ",") != strings.Join(tt.want.Capabilities, ",") {
				t.Errorf("capabilities = %v", def.Capabilities)
			}
		})
	}
}

func TestReadManifests_OrderAndDuplicates(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"b_cto.yaml": "id: cto-1\ntype: CTO\n",
		"a_cfo.yml":  "id: cfo-1\ntype: CFO\n",
		"notes.txt":  "ignored",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}

	defs, paths, err := ReadManifests(context.Background(), dir)
	if err != nil {
		t.Fatalf("ReadManifests: %v", err)
	}
	if len(defs) != 2 || defs[0].ID != "cfo-1" || defs[1].ID != "cto-1" {
		t.Fatalf("defs = %+v", defs)
	}
	if filepath.Base(paths[0]) != "a_cfo.yml" {
		t.Errorf("paths = %v", paths)
	}

	if err := os.WriteFile(filepath.Join(dir, "c_dup.yaml"), []byte("id: cfo-1\ntype: CFO\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := ReadManifests(context.Background(), dir); !errors.Is(err, ErrDuplicateAgentID) {
		t.Errorf("error = %v, want ErrDuplicateAgentID", err)
	}

	defs, _, err = ReadManifests(context.Background(), filepath.Join(dir, "missing"))
	if err != nil || len(defs) != 0 {
		t.Errorf("missing dir: defs=%v err=%v", defs, err)
	}
}

func TestLoader_LoadAll(t *testing.T) {
	l, o, agentsDir, skillsDir := newTestLoader(t)

	if err := os.WriteFile(filepath.Join(skillsDir, "CFO.md"), []byte("## Never\n- approve unbudgeted spend\n"), 0644); err != nil {
		t.Fatal(err)
	}
	for name, content := range map[string]string{
		"cfo.yaml":  "id: cfo-1\ntype: CFO\n",
		"cfo2.yaml": "id: cfo-2\ntype: CFO\noffline: true\n",
	} {
		if err := os.WriteFile(filepath.Join(agentsDir, name), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}

	agents, err := l.LoadAll(context.Background())
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if len(agents) != 2 || o.Registry().Count() != 2 {
		t.Fatalf("loaded %d agents, registry has %d", len(agents), o.Registry().Count())
	}

	e, ok := o.Registry().LookupByType("CFO")
	if !ok || e.Agent.ID() != "cfo-1" {
		t.Fatal("expected cfo-1 to be the live CFO")
	}
	if res := e.Agent.ValidateAction("Approve unbudgeted spend for the party"); res.Valid {
		t.Error("expected skills to be applied at load")
	}
	if e2, _ := o.Registry().Get("cfo-2"); e2.Status != models.AgentStatusOffline {
		t.Errorf("cfo-2 status = %s, want offline", e2.Status)
	}
}

func TestLoader_UnknownTypeFails(t *testing.T) {
	l, _, agentsDir, _ := newTestLoader(t)
	path := filepath.Join(agentsDir, "wizard.yaml")
	if err := os.WriteFile(path, []byte("id: w\ntype: Wizard\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := l.LoadFile(path); !errors.Is(err, agent.ErrUnknownAgentType) {
		t.Errorf("error = %v, want ErrUnknownAgentType", err)
	}
}

func TestLoader_UnloadAndReplace(t *testing.T) {
	l, o, agentsDir, _ := newTestLoader(t)
	path := filepath.Join(agentsDir, "cto.yaml")
	if err := os.WriteFile(path, []byte("id: cto-1\ntype: CTO\nname: First\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := l.LoadFile(path); err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	l.Unload(path)
	if _, ok := o.Registry().LookupByType("CTO"); ok {
		t.Fatal("unloaded agent must not be routable")
	}

	if err := os.WriteFile(path, []byte("id: cto-1\ntype: CTO\nname: Second\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := l.LoadFile(path); err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	e, ok := o.Registry().LookupByType("CTO")
	if !ok || e.Agent.Name() != "Second" {
		t.Fatalf("expected replacement agent to be live, got ok=%v", ok)
	}
	if o.Registry().Count() != 1 {
		t.Errorf("Count() = %d, want 1", o.Registry().Count())
	}
}

func TestLoader_WatchHotLoads(t *testing.T) {
	l, o, agentsDir, skillsDir := newTestLoader(t)

	ctx, cancel := context.WithCancel(context.Background())
	done, err := l.Watch(ctx)
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	defer func() {
		cancel()
		<-done
	}()

	manifest := filepath.Join(agentsDir, "legal.yaml")
	writeFileAtomic(t, manifest, "id: legal-1\ntype: Legal\n")
	waitFor(t, 5*time.Second, "hot-loaded agent", func() bool {
		_, ok := o.Registry().LookupByType("Legal")
		return ok
	})

	writeFileAtomic(t, filepath.Join(skillsDir, "Legal.md"), "# Never\n- sign without review\n")
	waitFor(t, 5*time.Second, "skills reload", func() bool {
		e, _ := o.Registry().Get("legal-1")
		return !e.Agent.ValidateAction("sign without review").Valid
	})

	if err := os.Remove(manifest); err != nil {
		t.Fatal(err)
	}
	waitFor(t, 5*time.Second, "agent offline after removal", func() bool {
		_, ok := o.Registry().LookupByType("Legal")
		return !ok
	})
	if o.Registry().Count() != 1 {
		t.Errorf("removed agent should stay registered, Count() = %d", o.Registry().Count())
	}
}
