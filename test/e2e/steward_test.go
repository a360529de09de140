package e2e

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	expect "github.com/Netflix/go-expect"
	"github.com/creack/pty"
)

// buildSteward builds the steward binary for testing.
func buildSteward(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	binPath := filepath.Join(dir, "steward")

	rootDir, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	// test/e2e -> module root
	rootDir = filepath.Join(rootDir, "..", "..")

	cmd := exec.Command("go", "build", "-o", binPath, "./cmd/steward")
	cmd.Dir = rootDir
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("build failed: %v\n%s", err, out)
	}
	return binPath
}

func TestE2E_SelectPolicySet(t *testing.T) {
	if testing.Short() {
		t.Skip("builds the binary and drives a pty")
	}
	binPath := buildSteward(t)
	srv := serveFixture(t)

	home := t.TempDir()
	cmd := exec.Command(binPath, "--base-url", srv.URL, "--timeout", "5s")
	cmd.Env = append(os.Environ(),
		"HOME="+home,
		"XDG_CONFIG_HOME="+filepath.Join(home, "config"),
		"XDG_STATE_HOME="+filepath.Join(home, "state"),
	)

	ptmx, err := pty.Start(cmd)
	if err != nil {
		t.Fatalf("failed to start pty: %v", err)
	}
	defer func() {
		_ = ptmx.Close()
		_ = cmd.Process.Kill()
	}()

	if err := pty.Setsize(ptmx, &pty.Winsize{Cols: 140, Rows: 40}); err != nil {
		t.Fatalf("failed to set pty size: %v", err)
	}

	var outputBuf bytes.Buffer
	console, err := expect.NewConsole(
		expect.WithStdin(ptmx),
		expect.WithStdout(&outputBuf),
		expect.WithDefaultTimeout(5*time.Second),
	)
	if err != nil {
		t.Fatalf("failed to create console: %v", err)
	}
	defer console.Close()

	dumpLog := func() {
		matches, _ := filepath.Glob(filepath.Join(home, "state", "steward", "logs", "steward-*.log"))
		for _, m := range matches {
			if logs, err := os.ReadFile(m); err == nil {
				t.Logf("%s:\n%s", filepath.Base(m), logs)
			}
		}
	}

	// 1. Manifest loads; the malformed entry is dropped.
	if _, err := console.ExpectString("Monitored Policy Sets (1)"); err != nil {
		dumpLog()
		t.Fatalf("sidebar header not found: %v\nScreen:\n%s", err, outputBuf.String())
	}
	if _, err := console.ExpectString("Fixture Policy"); err != nil {
		t.Fatalf("fixture entry not listed: %v\nScreen:\n%s", err, outputBuf.String())
	}

	// 2. Select it.
	time.Sleep(300 * time.Millisecond)
	if _, err := console.Send("\r"); err != nil {
		t.Fatalf("failed to send enter: %v", err)
	}
	if _, err := console.ExpectString("Retention period shortened"); err != nil {
		dumpLog()
		t.Fatalf("analysis summary not shown: %v\nScreen:\n%s", err, outputBuf.String())
	}
	if _, err := console.ExpectString("HIGH"); err != nil {
		t.Fatalf("priority badge not shown: %v\nScreen:\n%s", err, outputBuf.String())
	}

	// 3. Quit.
	if _, err := console.Send("q"); err != nil {
		t.Fatalf("failed to send q: %v", err)
	}
	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("steward exited with %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Errorf("steward did not exit after q\nTail:\n%s", readSnapshot(ptmx))
	}
}
