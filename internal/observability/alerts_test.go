package observability

import (
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/yaml.v3"
)

type alertRule struct {
	Alert       string            `yaml:"alert"`
	Expr        string            `yaml:"expr"`
	For         string            `yaml:"for"`
	Labels      map[string]string `yaml:"labels"`
	Annotations map[string]string `yaml:"annotations"`
}

type alertGroup struct {
	Name  string      `yaml:"name"`
	Rules []alertRule `yaml:"rules"`
}

type alertSpec struct {
	Groups []alertGroup `yaml:"groups"`
}

func TestServiceAlertRules(t *testing.T) {
	path := filepath.Join("..", "..", "deploy", "prometheus", "alerts", "service.yml")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read alert file: %v", err)
	}

	var spec alertSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		t.Fatalf("failed to unmarshal alert file: %v", err)
	}

	if len(spec.Groups) == 0 {
		t.Fatal("expected at least one alert group")
	}

	var group *alertGroup
	for i := range spec.Groups {
		if spec.Groups[i].Name == "quillbooks" {
			group = &spec.Groups[i]
			break
		}
	}
	if group == nil {
		t.Fatal("quillbooks alert group missing")
	}

	expected := map[string]string{
		"HighErrorRate": "critical",
		"HighLatency":   "warning",
		"JobFailures":   "warning",
		"CriticalStock": "warning",
	}
	seen := make(map[string]bool)
	for _, rule := range group.Rules {
		severity, ok := expected[rule.Alert]
		if !ok {
			continue
		}
		seen[rule.Alert] = true
		if rule.Expr == "" {
			t.Errorf("%s: expr must not be empty", rule.Alert)
		}
		if rule.For == "" {
			t.Errorf("%s: for duration must not be empty", rule.Alert)
		}
		if got := rule.Labels["severity"]; got != severity {
			t.Errorf("%s: severity = %q, want %q", rule.Alert, got, severity)
		}
		if rule.Annotations["runbook"] == "" {
			t.Errorf("%s: runbook annotation missing", rule.Alert)
		}
	}
	for name := range expected {
		if !seen[name] {
			t.Errorf("alert %s missing", name)
		}
	}
}
