package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/roach88/punchcard/internal/wallet"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// testEnv is an isolated working set: a database, a keypair and an
// environment that does not leak from the host.
type testEnv struct {
	dir     string
	db      string
	keypair string
	env     map[string]string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	e := &testEnv{
		dir:     dir,
		db:      filepath.Join(dir, "punchcard.db"),
		keypair: filepath.Join(dir, "id.json"),
		env:     map[string]string{},
	}
	return e
}

// withKeypair writes a deterministic keypair at e.keypair.
func (e *testEnv) withKeypair(t *testing.T) *testEnv {
	t.Helper()
	kp := wallet.MustFromSeed(bytes.Repeat([]byte{0x2a}, 32))
	require.NoError(t, kp.SaveKeypair(e.keypair))
	return e
}

func (e *testEnv) getenv(key string) string {
	return e.env[key]
}

// run executes the CLI with --db and --keypair pointing into the test
// directory, followed by args.
func (e *testEnv) run(args ...string) (stdout, stderr string, err error) {
	return e.runRaw(append([]string{"--db", e.db, "--keypair", e.keypair}, args...)...)
}

// runRaw executes the CLI with exactly args.
func (e *testEnv) runRaw(args ...string) (stdout, stderr string, err error) {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	cmd := newRootCommand(&RootOptions{Getenv: e.getenv})
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	err = cmd.Execute()
	return out.String(), errOut.String(), err
}

// mustRun is run that fails the test on error.
func (e *testEnv) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, stderr, err := e.run(args...)
	require.NoError(t, err, "stdout: %s\nstderr: %s", out, stderr)
	return out
}

// decodeData decodes a --format json success response into out.
func decodeData(t *testing.T, stdout string, out any) {
	t.Helper()
	var resp struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp), stdout)
	require.Equal(t, "ok", resp.Status, stdout)
	require.NoError(t, json.Unmarshal(resp.Data, out))
}

// decodeError decodes a --format json error response.
func decodeError(t *testing.T, stdout string) CLIError {
	t.Helper()
	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp), stdout)
	require.Equal(t, "error", resp.Status, stdout)
	require.NotNil(t, resp.Error)
	return *resp.Error
}

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}
