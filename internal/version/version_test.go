package version

import (
	"strings"
	"testing"
)

func TestInfoMatchesGetters(t *testing.T) {
	v, c, d := Info()

	tests := []struct {
		name   string
		fromFn string
		info   string
	}{
		{name: "version", fromFn: GetVersion(), info: v},
		{name: "commit", fromFn: GetCommit(), info: c},
		{name: "date", fromFn: GetDate(), info: d},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.info == "" {
				t.Fatalf("%s should not be empty", tc.name)
			}
			if tc.fromFn != tc.info {
				t.Errorf("getter %s (%s) should match Info (%s)", tc.name, tc.fromFn, tc.info)
			}
		})
	}
}

func TestString(t *testing.T) {
	s := String()

	if !strings.HasPrefix(s, "shop-api ") {
		t.Errorf("String should start with the service name, got %q", s)
	}
	for _, part := range []string{"version=" + GetVersion(), "commit=" + GetCommit(), "date=" + GetDate()} {
		if !strings.Contains(s, part) {
			t.Errorf("String should contain %q, got %q", part, s)
		}
	}
}
