package email

import (
	"strings"
	"testing"
)

func TestServiceIsConfigured(t *testing.T) {
	tests := []struct {
		name     string
		config   Config
		expected bool
	}{
		{
			name:     "empty config",
			config:   Config{},
			expected: false,
		},
		{
			name: "missing host",
			config: Config{
				Port: "587",
				From: "test@example.com",
			},
			expected: false,
		},
		{
			name: "missing from",
			config: Config{
				Host: "smtp.example.com",
				Port: "587",
			},
			expected: false,
		},
		{
			name: "fully configured",
			config: Config{
				Host: "smtp.example.com",
				Port: "587",
				From: "test@example.com",
			},
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(tt.config)
			if svc.IsConfigured() != tt.expected {
				t.Errorf("IsConfigured() = %v, want %v", svc.IsConfigured(), tt.expected)
			}
		})
	}
}

func TestRenderVerificationTemplate(t *testing.T) {
	html, err := renderTemplate(verificationEmailTemplate, verificationData{
		AppName:         "Atrium",
		UserName:        "Test User",
		VerificationURL: "https://example.com/verify?token=abc123",
	})
	if err != nil {
		t.Fatalf("renderTemplate failed: %v", err)
	}

	if !strings.Contains(html, "Atrium") {
		t.Error("template should contain app name")
	}
	if !strings.Contains(html, "Test User") {
		t.Error("template should contain user name")
	}
	if !strings.Contains(html, "https://example.com/verify?token=abc123") {
		t.Error("template should contain verification URL")
	}
}

func TestRenderPasswordResetTemplate(t *testing.T) {
	html, err := renderTemplate(passwordResetEmailTemplate, passwordResetData{
		AppName:  "Atrium",
		UserName: "Test User",
		ResetURL: "https://example.com/reset?token=xyz789",
	})
	if err != nil {
		t.Fatalf("renderTemplate failed: %v", err)
	}

	if !strings.Contains(html, "https://example.com/reset?token=xyz789") {
		t.Error("template should contain reset URL")
	}
	if !strings.Contains(html, "1 hour") {
		t.Error("template should mention expiration time")
	}
}

func TestRenderShareInviteTemplate(t *testing.T) {
	html, err := renderTemplate(shareInviteEmailTemplate, shareInviteData{
		AppName:    "Atrium",
		OwnerName:  "Ada",
		Role:       "editor",
		AccountURL: "https://example.com/shared",
	})
	if err != nil {
		t.Fatalf("renderTemplate failed: %v", err)
	}

	if !strings.Contains(html, "Ada") {
		t.Error("template should contain owner name")
	}
	if !strings.Contains(html, "editor") {
		t.Error("template should contain granted role")
	}
}

func TestSendEmailFailsWhenUnconfigured(t *testing.T) {
	svc := NewService(Config{})
	if err := svc.SendEmail([]string{"a@example.com"}, "hi", "body"); err == nil {
		t.Error("expected error when email is not configured")
	}
	if err := svc.SendHTMLEmail([]string{"a@example.com"}, "hi", "<p>body</p>"); err == nil {
		t.Error("expected error when email is not configured")
	}
}
