package cmd

import (
	"strings"
	"testing"
)

func TestArgs(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"send without files", []string{"send", "auto"}, "requires at least 2 arg(s)"},
		{"receive with args", []string{"receive", "extra"}, "unknown command"},
		{"unknown flag", []string{"receive", "--nope"}, "unknown flag"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rootCmd.SetArgs(tt.args)
			err := rootCmd.Execute()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want it to mention %q", err, tt.want)
			}
		})
	}
}

func TestInvalidConfiguration(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("SF_LOG_LEVEL", "loud")

	rootCmd.SetArgs([]string{"send", "auto", "file.txt"})
	err := rootCmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "invalid configuration") {
		t.Errorf("err = %v, want invalid configuration", err)
	}
}
