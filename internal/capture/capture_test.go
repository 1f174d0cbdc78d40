package capture

import (
	"context"
	"strings"
	"testing"

	"github.com/dgnsrekt/graphview/internal/chart"
)

func TestSelectors(t *testing.T) {
	tests := []struct {
		id   string
		want string
	}{
		{id: "graph-1a2b3c4d", want: "#graph-1a2b3c4d .uplot"},
		{id: "plot", want: "#plot .uplot"},
		{id: "1st", want: `#\31 st .uplot`},
		{id: "a.b", want: `#a\2e b .uplot`},
	}
	for _, tt := range tests {
		if got := chartSelector(tt.id); got != tt.want {
			t.Fatalf("chartSelector(%q) = %q; want %q", tt.id, got, tt.want)
		}
	}
}

func TestElementValidation(t *testing.T) {
	c := NewCapturer("http://127.0.0.1:1", 0)
	defer c.Close()

	tests := []struct {
		name     string
		url      string
		targetID string
	}{
		{name: "missing target", url: "http://127.0.0.1:8190/graph/a/b/c", targetID: " "},
		{name: "relative url", url: "/graph/a/b/c", targetID: "g"},
		{name: "bad scheme", url: "file:///etc/passwd", targetID: "g"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Element(context.Background(), tt.url, tt.targetID)
			if !chart.IsCode(err, chart.CodeValidation) {
				t.Fatalf("Element() = %v; want %s", err, chart.CodeValidation)
			}
		})
	}
}

func TestElementMissingCDPURL(t *testing.T) {
	c := NewCapturer("", 0)
	_, err := c.Element(context.Background(), "http://127.0.0.1:8190/graph/a/b/c", "g")
	if !chart.IsCode(err, chart.CodeCDPUnavailable) {
		t.Fatalf("Element() = %v; want %s", err, chart.CodeCDPUnavailable)
	}
}

func TestTruncateURL(t *testing.T) {
	long := "http://example.com/" + strings.Repeat("x", 200)
	got := truncateURL(long)
	if len(got) != 123 || !strings.HasSuffix(got, "...") {
		t.Fatalf("truncateURL() len = %d; want 123 with ellipsis", len(got))
	}
	if got := truncateURL("http://a"); got != "http://a" {
		t.Fatalf("truncateURL() = %q; want unchanged", got)
	}
}
