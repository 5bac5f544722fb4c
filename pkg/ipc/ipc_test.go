package ipc

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/ormasoftchile/scenex/pkg/config"
)

func writeScenario(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "scenario.yaml")
	content := `
credentials:
  username: deployer
server:
  host: 10.0.0.1
variables:
  required:
    jar_path:
      type: Path
      label: "Build artifact"
tasks:
  restart:
    type: RemoteSudo
    command: "systemctl restart app"
execute:
  steps:
    - restart
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func newTestPair(t *testing.T) (*Client, func()) {
	t.Helper()
	clientR, serverW := io.Pipe()
	serverR, clientW := io.Pipe()

	srv := NewWithIO(serverR, serverW)
	go srv.Run()

	client := NewClient(clientR, clientW)
	go client.Listen()

	return client, func() {
		clientW.Close()
		serverW.Close()
	}
}

func TestLoadConfigThenViews(t *testing.T) {
	client, cleanup := newTestPair(t)
	defer cleanup()

	raw, err := client.LoadConfig(writeScenario(t))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	var payload struct {
		Tasks []config.TaskView `json:"tasks"`
		Steps []config.StepView `json:"steps"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		t.Fatal(err)
	}
	if len(payload.Tasks) != 1 || payload.Tasks[0].Name != "restart" {
		t.Errorf("tasks = %+v", payload.Tasks)
	}
	if len(payload.Steps) != 1 || payload.Steps[0].Task != "restart" {
		t.Errorf("steps = %+v", payload.Steps)
	}

	required, err := client.RequiredView()
	if err != nil {
		t.Fatalf("RequiredView: %v", err)
	}
	var views []struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(required, &views); err != nil {
		t.Fatal(err)
	}
	if len(views) != 1 || views[0].Name != "jar_path" {
		t.Errorf("required views = %+v", views)
	}
}

func TestSetRequiredRejectsUnknownVariable(t *testing.T) {
	client, cleanup := newTestPair(t)
	defer cleanup()

	if _, err := client.LoadConfig(writeScenario(t)); err != nil {
		t.Fatal(err)
	}
	if err := client.SetRequired(map[string]string{"does_not_exist": "x"}); err == nil {
		t.Fatal("expected an rpc error for an unknown required variable, got nil")
	}
}

func TestViewsBeforeLoadConfigFail(t *testing.T) {
	client, cleanup := newTestPair(t)
	defer cleanup()

	if _, err := client.RequiredView(); err == nil {
		t.Fatal("expected an error calling required_view before load_config, got nil")
	}
}

func TestShutdownStopsTheServerLoop(t *testing.T) {
	client, cleanup := newTestPair(t)
	defer cleanup()

	if err := client.Shutdown(); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}
