package testsupport

import (
	"os"
	"path/filepath"
	"testing"
)

// WriteFile writes content to path, creating parent directories.
func WriteFile(t testing.TB, path, content string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// WriteCookieJar writes a Netscape cookies file with a single host cookie.
func WriteCookieJar(t testing.TB, path, host, name, value string) {
	t.Helper()

	content := "# Netscape HTTP Cookie File\n" +
		host + "\tFALSE\t/\tFALSE\t0\t" + name + "\t" + value + "\n"
	WriteFile(t, path, content)
}
