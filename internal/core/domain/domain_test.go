package domain

import (
	"regexp"
	"testing"
)

func TestVersionInRange(t *testing.T) {
	tests := []struct {
		name     string
		version  string
		min      string
		max      string
		failOpen bool
		want     bool
	}{
		{"inside range", "4.5", "4.0", "6.0", true, true},
		{"above range", "7.0", "4.0", "6.0", true, false},
		{"lower bound inclusive", "4.0", "4.0", "6.0", true, true},
		{"upper bound inclusive", "6.0", "4.0", "6.0", true, true},
		{"three components", "2.4.49", "2.4.0", "2.4.49", true, true},
		{"patch above", "2.4.50", "2.4.0", "2.4.49", true, false},
		{"shorter prefix sorts first", "2.4", "2.4.0", "2.4.49", true, false},
		{"unparseable fails open", "5.x", "4.0", "6.0", true, true},
		{"unparseable fails closed", "5.x", "4.0", "6.0", false, false},
		{"bad range fails open", "5.0", "four", "6.0", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := VersionInRange(tt.version, tt.min, tt.max, tt.failOpen)
			if got != tt.want {
				t.Errorf("VersionInRange(%q, %q, %q, %v) = %v, want %v",
					tt.version, tt.min, tt.max, tt.failOpen, got, tt.want)
			}
		})
	}
}

func TestHostFromTarget(t *testing.T) {
	tests := []struct {
		target string
		want   string
	}{
		{"example.com", "example.com"},
		{"https://example.com/login?x=1", "example.com"},
		{"http://10.0.0.1/path", "10.0.0.1"},
		{"  HTTPS://Example.com  ", "Example.com"},
	}

	for _, tt := range tests {
		if got := HostFromTarget(tt.target); got != tt.want {
			t.Errorf("HostFromTarget(%q) = %q, want %q", tt.target, got, tt.want)
		}
	}
}

func TestIsIPv4Literal(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{"192.168.1.1", true},
		{"8.8.8.8", true},
		{"example.com", false},
		{"192.168.1", false},
		{"1.2.3.4.5", false},
	}

	for _, tt := range tests {
		if got := IsIPv4Literal(tt.value); got != tt.want {
			t.Errorf("IsIPv4Literal(%q) = %v, want %v", tt.value, got, tt.want)
		}
	}
}

func TestNewID(t *testing.T) {
	pattern := regexp.MustCompile(`^scan_[0-9a-f]{8}$`)
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := NewID(KindNetworkScan.IDPrefix())
		if !pattern.MatchString(id) {
			t.Fatalf("NewID() = %q, want scan_ + 8 hex chars", id)
		}
		if seen[id] {
			t.Fatalf("NewID() returned duplicate %q", id)
		}
		seen[id] = true
	}
}

func TestResult(t *testing.T) {
	present := Present(ReputationRecord{AbuseScore: 42})
	if v, ok := present.Get(); !ok || v.AbuseScore != 42 {
		t.Errorf("Present.Get() = %v, %v", v, ok)
	}

	absent := Absent[ReputationRecord]("timeout")
	if absent.IsPresent() {
		t.Error("Absent result reported as present")
	}
	if absent.Cause() != "timeout" {
		t.Errorf("Cause() = %q, want timeout", absent.Cause())
	}

	ev := EvidenceOf(SourceReputation, absent)
	if ev.Present || ev.Source != SourceReputation || ev.Cause != "timeout" {
		t.Errorf("EvidenceOf() = %+v", ev)
	}
}

func TestThreatLevelAtLeast(t *testing.T) {
	if !LevelCritical.AtLeast(LevelHigh) {
		t.Error("critical should be at least high")
	}
	if LevelLow.AtLeast(LevelMedium) {
		t.Error("low should not be at least medium")
	}
	if ParseThreatLevel("HIGH") != LevelHigh {
		t.Error("ParseThreatLevel should be case-insensitive")
	}
}

func TestEmailDomain(t *testing.T) {
	if got := EmailDomain("Support <support@PayPal-Secure.com>"); got != "paypal-secure.com" {
		t.Errorf("EmailDomain() = %q", got)
	}
	if got := EmailDomain("no-at-sign"); got != "" {
		t.Errorf("EmailDomain() = %q, want empty", got)
	}
}
