package cmd

import (
	"fmt"
	"os"
	"testing"
)

// TestMain points the config directory and the AWS shared config at a
// scratch directory so no test reads or writes the developer's real files.
func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "snapprof-cmd-test-")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	os.Setenv("SNAPPROF_CONFIG_DIR", dir)
	os.Setenv("SNAPPROF_NO_SPINNER", "1")
	os.Setenv("AWS_CONFIG_FILE", dir+"/aws-config")
	os.Setenv("AWS_SHARED_CREDENTIALS_FILE", dir+"/aws-credentials")
	os.Unsetenv("AWS_PROFILE")
	os.Unsetenv("AWS_REGION")
	os.Unsetenv("AWS_DEFAULT_REGION")

	code := m.Run()
	os.RemoveAll(dir)
	os.Exit(code)
}
