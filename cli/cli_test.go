package cli

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/yllada/wiresock-manager/app"
	"github.com/yllada/wiresock-manager/common"
	"github.com/yllada/wiresock-manager/procutil"
	"github.com/yllada/wiresock-manager/vpn"
)

// syncBuffer is a bytes.Buffer safe for the concurrent writes of the
// connect command.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type fakeProcess struct {
	out  *io.PipeReader
	outW *io.PipeWriter
	exit chan int
	once sync.Once
}

func (p *fakeProcess) exitWith(code int) {
	p.once.Do(func() {
		p.outW.Close()
		p.exit <- code
	})
}

func (p *fakeProcess) PID() int              { return 777 }
func (p *fakeProcess) Output() io.ReadCloser { return p.out }
func (p *fakeProcess) Wait() (int, error)    { return <-p.exit, nil }
func (p *fakeProcess) Terminate() error      { p.exitWith(0); return nil }
func (p *fakeProcess) Kill() error           { p.exitWith(-1); return nil }

// fakeSpawner starts a process that prints banner and then either keeps
// running or exits with exitCode when failFast is set.
type fakeSpawner struct {
	banner   string
	failFast bool
	exitCode int
}

func (fakeSpawner) LookPath(binary string) (string, error) { return binary, nil }

func (s fakeSpawner) Spawn(string, []string) (vpn.Process, error) {
	r, w := io.Pipe()
	p := &fakeProcess{out: r, outW: w, exit: make(chan int, 1)}
	go func() {
		if s.banner != "" {
			_, _ = io.WriteString(w, s.banner+"\n")
		}
		if s.failFast {
			p.exitWith(s.exitCode)
		}
	}()
	return p, nil
}

type harness struct {
	t      *testing.T
	out    *syncBuffer
	errOut *syncBuffer
	opts   []app.Option
}

func newHarness(t *testing.T, opts ...app.Option) *harness {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	t.Setenv("NO_COLOR", "1")
	t.Setenv("WIRESOCK_MANAGER_SUPERVISOR_GRACE_INTERVAL", "50ms")
	t.Setenv("WIRESOCK_MANAGER_NOTIFICATIONS_ENABLED", "false")
	t.Setenv("WIRESOCK_MANAGER_LOG_FILE", "false")

	return &harness{t: t, out: &syncBuffer{}, errOut: &syncBuffer{}, opts: opts}
}

func (h *harness) run(args ...string) int {
	h.t.Helper()
	return h.runContext(context.Background(), args...)
}

func (h *harness) runContext(ctx context.Context, args ...string) int {
	h.t.Helper()
	c := New(NewWriter(h.out, h.errOut), BuildInfo{Version: "1.2.3", Commit: "abc123"}, h.opts...)
	return c.Execute(ctx, args)
}

func (h *harness) writeConf(name string) string {
	h.t.Helper()
	path := filepath.Join(h.t.TempDir(), name)
	if err := os.WriteFile(path, []byte("[Interface]\nPrivateKey = abc\n\n[Peer]\nEndpoint = vpn.example.com:51820\n"), 0600); err != nil {
		h.t.Fatal(err)
	}
	return path
}

func waitFor(t *testing.T, buf *syncBuffer, want string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if strings.Contains(buf.String(), want) {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("output never contained %q; got:\n%s", want, buf.String())
}

func TestVersion(t *testing.T) {
	h := newHarness(t)
	if code := h.run("version"); code != ExitSuccess {
		t.Fatalf("exit code = %d", code)
	}
	got := h.out.String()
	for _, want := range []string{"1.2.3", "abc123"} {
		if !strings.Contains(got, want) {
			t.Errorf("version output missing %q: %s", want, got)
		}
	}
}

func TestProfiles_Lifecycle(t *testing.T) {
	h := newHarness(t)
	conf := h.writeConf("office.conf")

	if code := h.run("profiles", "import", "Office", conf); code != ExitSuccess {
		t.Fatalf("import exit code = %d, stderr: %s", code, h.errOut.String())
	}
	if code := h.run("profiles", "default", "Office"); code != ExitSuccess {
		t.Fatalf("default exit code = %d", code)
	}
	if code := h.run("profiles", "list"); code != ExitSuccess {
		t.Fatalf("list exit code = %d", code)
	}
	if got := h.out.String(); !strings.Contains(got, "Office") || !strings.Contains(got, "office.conf") {
		t.Errorf("list output missing profile: %s", got)
	}

	if code := h.run("profiles", "rename", "Office", "Work"); code != ExitSuccess {
		t.Fatalf("rename exit code = %d", code)
	}
	if code := h.run("profiles", "default"); code != ExitSuccess {
		t.Fatalf("default exit code = %d", code)
	}
	if !strings.Contains(h.out.String(), "Work\n") {
		t.Errorf("default did not follow rename: %s", h.out.String())
	}

	if code := h.run("profiles", "delete", "Work"); code != ExitSuccess {
		t.Fatalf("delete exit code = %d", code)
	}
	if code := h.run("profiles", "delete", "Work"); code != ExitNotFound {
		t.Errorf("second delete exit code = %d, want %d", code, ExitNotFound)
	}
}

func TestProfiles_Edit(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("stub editor is a shell script")
	}
	h := newHarness(t)
	dataDir := t.TempDir()
	t.Setenv("WIRESOCK_MANAGER_DATA_DIR", dataDir)

	editor := filepath.Join(t.TempDir(), "editor.sh")
	if err := os.WriteFile(editor, []byte("#!/bin/sh\necho \"# edited by $0\" >> \"$2\"\n"), 0755); err != nil {
		t.Fatal(err)
	}
	t.Setenv("VISUAL", "")
	t.Setenv("EDITOR", editor+" --wait")

	if code := h.run("profiles", "import", "Office", h.writeConf("office.conf")); code != ExitSuccess {
		t.Fatalf("import exit code = %d, stderr: %s", code, h.errOut.String())
	}
	if code := h.run("profiles", "edit", "Office"); code != ExitSuccess {
		t.Fatalf("edit exit code = %d, stderr: %s", code, h.errOut.String())
	}

	managed, err := filepath.Glob(filepath.Join(dataDir, common.ConfigsDirName, "*"))
	if err != nil || len(managed) != 1 {
		t.Fatalf("managed files = %v, %v", managed, err)
	}
	data, err := os.ReadFile(managed[0])
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "# edited by") || !strings.Contains(string(data), "[Peer]") {
		t.Errorf("managed file after edit:\n%s", data)
	}

	if code := h.run("profiles", "edit", "Nowhere"); code != ExitNotFound {
		t.Errorf("edit of unknown profile exit code = %d, want %d", code, ExitNotFound)
	}

	t.Setenv("EDITOR", filepath.Join(t.TempDir(), "no-such-editor"))
	if code := h.run("profiles", "edit", "Office"); code != ExitNotFound {
		t.Errorf("missing editor exit code = %d, want %d", code, ExitNotFound)
	}
}

func TestProfiles_ImportErrors(t *testing.T) {
	h := newHarness(t)
	conf := h.writeConf("office.conf")

	if code := h.run("profiles", "import", "Office", conf); code != ExitSuccess {
		t.Fatalf("import exit code = %d", code)
	}
	if code := h.run("profiles", "import", "Office", conf); code != ExitUsage {
		t.Errorf("duplicate import exit code = %d, want %d", code, ExitUsage)
	}
	if code := h.run("profiles", "import", "Other", filepath.Join(t.TempDir(), "missing.conf")); code == ExitSuccess {
		t.Error("import of a missing file succeeded")
	}
}

func TestUsageErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"unknown command", []string{"frobnicate"}},
		{"missing args", []string{"profiles", "import", "Office"}},
		{"bad switch", []string{"settings", "autostart", "maybe"}},
		{"unknown flag", []string{"profiles", "list", "--bogus"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			if code := h.run(tt.args...); code != ExitUsage {
				t.Errorf("exit code = %d, want %d (stderr: %s)", code, ExitUsage, h.errOut.String())
			}
		})
	}
}

func TestSettings(t *testing.T) {
	h := newHarness(t)

	if code := h.run("settings", "binary", filepath.Join(t.TempDir(), "nope")); code != ExitNotFound {
		t.Errorf("missing binary exit code = %d, want %d", code, ExitNotFound)
	}

	bin := filepath.Join(t.TempDir(), "wiresock-client")
	if err := os.WriteFile(bin, []byte("#!/bin/sh\n"), 0755); err != nil {
		t.Fatal(err)
	}
	if code := h.run("settings", "binary", bin); code != ExitSuccess {
		t.Fatalf("binary exit code = %d", code)
	}
	if code := h.run("settings", "autostart", "on"); code != ExitSuccess {
		t.Fatalf("autostart exit code = %d", code)
	}
	if code := h.run("settings", "language", "es"); code != ExitSuccess {
		t.Fatalf("language exit code = %d", code)
	}
	if code := h.run("settings", "show"); code != ExitSuccess {
		t.Fatalf("show exit code = %d", code)
	}

	got := h.out.String()
	for _, want := range []string{bin, "Autostart:       on", "Language:        es"} {
		if !strings.Contains(got, want) {
			t.Errorf("settings show missing %q:\n%s", want, got)
		}
	}
}

func TestConnect_UnknownProfile(t *testing.T) {
	h := newHarness(t, app.WithSpawner(fakeSpawner{}))
	if code := h.run("connect", "Nowhere"); code != ExitNotFound {
		t.Errorf("exit code = %d, want %d", code, ExitNotFound)
	}
}

func TestConnect_RefusedWhileAnotherInstanceRuns(t *testing.T) {
	h := newHarness(t, app.WithSpawner(fakeSpawner{}))
	dataDir := t.TempDir()
	t.Setenv("WIRESOCK_MANAGER_DATA_DIR", dataDir)

	if code := h.run("profiles", "import", "Office", h.writeConf("office.conf")); code != ExitSuccess {
		t.Fatalf("import exit code = %d", code)
	}

	lock, _, err := procutil.LockFile(filepath.Join(dataDir, common.LockFileName))
	if err != nil {
		t.Fatal(err)
	}
	defer lock.Unlock()

	if code := h.run("connect", "Office"); code != ExitBusy {
		t.Fatalf("exit code = %d, want %d (stderr: %s)", code, ExitBusy, h.errOut.String())
	}
	if got := h.errOut.String(); !strings.Contains(got, "already running") {
		t.Errorf("stderr does not explain the refusal: %s", got)
	}
}

func TestConnect_NoDefault(t *testing.T) {
	h := newHarness(t, app.WithSpawner(fakeSpawner{}))
	if code := h.run("connect"); code != ExitUsage {
		t.Errorf("exit code = %d, want %d", code, ExitUsage)
	}
}

func TestConnect_ForegroundUntilInterrupted(t *testing.T) {
	h := newHarness(t, app.WithSpawner(fakeSpawner{banner: "tunnel up"}))
	if code := h.run("profiles", "import", "Office", h.writeConf("office.conf")); code != ExitSuccess {
		t.Fatalf("import exit code = %d", code)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan int, 1)
	go func() { done <- h.runContext(ctx, "connect", "Office") }()

	waitFor(t, h.out, "Connected to Office (PID 777)")
	cancel()

	select {
	case code := <-done:
		if code != ExitSuccess {
			t.Fatalf("exit code = %d, stderr: %s", code, h.errOut.String())
		}
	case <-time.After(5 * time.Second):
		t.Fatal("connect did not return after interrupt")
	}

	got := h.out.String()
	for _, want := range []string{"tunnel up", "Disconnected from Office"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}

	if code := h.run("history", "list"); code != ExitSuccess {
		t.Fatalf("history exit code = %d", code)
	}
	if !strings.Contains(h.out.String(), "disconnected") {
		t.Errorf("history missing the attempt:\n%s", h.out.String())
	}
}

func TestConnect_LaunchFailed(t *testing.T) {
	h := newHarness(t, app.WithSpawner(fakeSpawner{banner: "bad private key", failFast: true, exitCode: 1}))
	if code := h.run("profiles", "import", "Office", h.writeConf("office.conf")); code != ExitSuccess {
		t.Fatalf("import exit code = %d", code)
	}

	if code := h.run("connect", "Office"); code != ExitLaunch {
		t.Fatalf("exit code = %d, want %d", code, ExitLaunch)
	}
	if !strings.Contains(h.errOut.String(), "exit code 1") {
		t.Errorf("stderr missing the exit code: %s", h.errOut.String())
	}

	if code := h.run("history", "list"); code != ExitSuccess {
		t.Fatalf("history exit code = %d", code)
	}
	if !strings.Contains(h.out.String(), "launch_failed") {
		t.Errorf("history missing the failed attempt:\n%s", h.out.String())
	}
}

func TestHistoryPrune(t *testing.T) {
	h := newHarness(t)
	if code := h.run("history", "prune", "--keep", "-1"); code != ExitUsage {
		t.Errorf("negative keep exit code = %d, want %d", code, ExitUsage)
	}
	if code := h.run("history", "prune"); code != ExitSuccess {
		t.Errorf("prune exit code = %d", code)
	}
	if !strings.Contains(h.out.String(), "Removed 0 attempts") {
		t.Errorf("unexpected output: %s", h.out.String())
	}
}

func TestConfigList(t *testing.T) {
	h := newHarness(t)
	if code := h.run("config", "list"); code != ExitSuccess {
		t.Fatalf("exit code = %d", code)
	}
	got := h.out.String()
	for _, want := range []string{"supervisor.grace_interval = 50ms", "notifications.enabled = false"} {
		if !strings.Contains(got, want) {
			t.Errorf("config list missing %q:\n%s", want, got)
		}
	}
}

func TestParseOnOff(t *testing.T) {
	for _, s := range []string{"on", "TRUE", "yes", "1"} {
		if v, err := parseOnOff(s); err != nil || !v {
			t.Errorf("parseOnOff(%q) = %v, %v", s, v, err)
		}
	}
	for _, s := range []string{"off", "False", "no", "0"} {
		if v, err := parseOnOff(s); err != nil || v {
			t.Errorf("parseOnOff(%q) = %v, %v", s, v, err)
		}
	}
	if _, err := parseOnOff("maybe"); err == nil {
		t.Error("parseOnOff(maybe) should fail")
	}
}
