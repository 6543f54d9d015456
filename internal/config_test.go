package internal

import (
	"strings"
	"testing"

	"github.com/starford/raido/internal/router"
)

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{Mode: "", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfig_TokenModeValid(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: "mysecret"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("token mode with token should pass: %v", err)
	}
	if !cfg.AuthEnabled() {
		t.Error("token mode should be enabled")
	}
}

func TestAuthConfig_TokenModeEmptyToken(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: ""}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("token mode with empty token should fail")
	}
	if !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestStoresConfig_ProjectRequired(t *testing.T) {
	cfg := StoresConfig{Ledger: "./applied-updates.json"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("empty project store should fail")
	}
}

func TestStoresConfig_RegistryNeedsRules(t *testing.T) {
	cfg := StoresConfig{
		Project:  "./updates",
		Ledger:   "./applied-updates.json",
		Registry: "/srv/registry",
	}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("registry without rules should fail")
	}
	if !strings.Contains(err.Error(), "registry_rules") {
		t.Errorf("unexpected error: %v", err)
	}

	cfg.RegistryRules = "/srv/registry/rules.json"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("registry with rules should pass: %v", err)
	}
}

func TestAgentConfig_Defaults(t *testing.T) {
	cfg := AgentConfig{}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty agent config should default: %v", err)
	}
	if cfg.Role != router.RoleBuilder {
		t.Errorf("role = %q, want %q", cfg.Role, router.RoleBuilder)
	}
	if cfg.Policy != router.PolicyAdvisory {
		t.Errorf("policy = %q, want %q", cfg.Policy, router.PolicyAdvisory)
	}
}

func TestAgentConfig_InvalidRole(t *testing.T) {
	cfg := AgentConfig{Role: "reviewer"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("unknown role should fail validation")
	}
}

func TestAgentConfig_InvalidPolicy(t *testing.T) {
	cfg := AgentConfig{Policy: "lenient"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("unknown policy should fail validation")
	}
}

func TestFullConfig_AuthValidationCalled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Auth.Mode = "token"
	cfg.Auth.Token = ""
	err := cfg.Validate()
	if err == nil {
		t.Fatal("full config validate should catch auth error")
	}
}

func TestDefaultConfigIsValid(t *testing.T) {
	if err := NewDefaultConfig().Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}
