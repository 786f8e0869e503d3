package cleanup

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEngine(t *testing.T, policy Policy) (*Engine, string) {
	t.Helper()
	dir := t.TempDir()
	if policy.Interval == 0 {
		policy.Interval = time.Hour
	}
	return New(dir, policy, slog.Default()), dir
}

func addFile(t *testing.T, dir, name string, size int, age time.Duration) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0o644))
	mtime := time.Now().Add(-age)
	require.NoError(t, os.Chtimes(path, mtime, mtime))
	return path
}

func remaining(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestRunCycle_RetentionPass(t *testing.T) {
	e, dir := newEngine(t, Policy{
		RetentionAge:    24 * time.Hour,
		MaxStorageBytes: 1 << 30,
		KeepRecentCount: 5,
	})

	// 10 files: 3 expired and outside the 5 newest, 2 unexpired non-recent,
	// 5 recent. Only the 3 expired candidates may be deleted.
	for i := 0; i < 5; i++ {
		addFile(t, dir, "recent"+string(rune('0'+i)), 10, time.Duration(i)*time.Minute)
	}
	addFile(t, dir, "unexpired1", 10, 10*time.Hour)
	addFile(t, dir, "unexpired2", 10, 12*time.Hour)
	addFile(t, dir, "expired1", 10, 48*time.Hour)
	addFile(t, dir, "expired2", 10, 72*time.Hour)
	addFile(t, dir, "expired3", 10, 96*time.Hour)

	report, err := e.RunCycle()
	require.NoError(t, err)

	assert.Equal(t, 10, report.Scanned)
	assert.Equal(t, 3, report.Deleted)
	assert.Equal(t, int64(30), report.BytesReclaimed)

	left := remaining(t, dir)
	assert.Len(t, left, 7)
	assert.NotContains(t, left, "expired1")
	assert.Contains(t, left, "unexpired1")
	assert.Contains(t, left, "unexpired2")
}

func TestRunCycle_ProtectedSetSurvivesRetention(t *testing.T) {
	e, dir := newEngine(t, Policy{
		RetentionAge:    time.Hour,
		MaxStorageBytes: 1 << 30,
		KeepRecentCount: 3,
	})

	// Every file is long past retention, but the 3 newest are protected.
	for i := 0; i < 5; i++ {
		addFile(t, dir, "old"+string(rune('0'+i)), 10, time.Duration(100+i)*time.Hour)
	}

	report, err := e.RunCycle()
	require.NoError(t, err)

	assert.Equal(t, 2, report.Deleted)
	left := remaining(t, dir)
	assert.Len(t, left, 3)
	assert.Contains(t, left, "old0")
	assert.Contains(t, left, "old1")
	assert.Contains(t, left, "old2")
}

func TestRunCycle_QuotaPassOldestFirst(t *testing.T) {
	e, dir := newEngine(t, Policy{
		RetentionAge:    1000 * time.Hour,
		MaxStorageBytes: 1000,
		KeepRecentCount: 2,
	})

	addFile(t, dir, "newest", 300, time.Minute)
	addFile(t, dir, "newer", 300, 2*time.Minute)
	addFile(t, dir, "mid", 300, time.Hour)
	addFile(t, dir, "old", 300, 2*time.Hour)
	addFile(t, dir, "oldest", 300, 3*time.Hour)

	report, err := e.RunCycle()
	require.NoError(t, err)

	// 1500 bytes total, quota 1000, target 800. Deleting oldest (300)
	// leaves 1200; deleting old leaves 900; deleting mid leaves 600 <= 800.
	assert.Equal(t, 3, report.Deleted)
	left := remaining(t, dir)
	assert.ElementsMatch(t, []string{"newest", "newer"}, left)
}

func TestRunCycle_QuotaNeverTouchesProtected(t *testing.T) {
	e, dir := newEngine(t, Policy{
		RetentionAge:    1000 * time.Hour,
		MaxStorageBytes: 100,
		KeepRecentCount: 2,
	})

	// Even with the quota hopelessly exceeded by protected files alone,
	// the protected set stays.
	addFile(t, dir, "big1", 500, time.Minute)
	addFile(t, dir, "big2", 500, 2*time.Minute)
	addFile(t, dir, "victim", 500, time.Hour)

	report, err := e.RunCycle()
	require.NoError(t, err)

	assert.Equal(t, 1, report.Deleted)
	assert.ElementsMatch(t, []string{"big1", "big2"}, remaining(t, dir))
}

func TestRunCycle_EmptyDir(t *testing.T) {
	e, _ := newEngine(t, Policy{
		RetentionAge:    time.Hour,
		MaxStorageBytes: 1000,
		KeepRecentCount: 5,
	})

	report, err := e.RunCycle()
	require.NoError(t, err)
	assert.Equal(t, Report{}, report)
}

func TestRunCycle_SkipsSubdirectories(t *testing.T) {
	e, dir := newEngine(t, Policy{
		RetentionAge:    time.Hour,
		MaxStorageBytes: 1000,
		KeepRecentCount: 0,
	})

	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0o755))
	addFile(t, dir, "expired", 10, 2*time.Hour)

	report, err := e.RunCycle()
	require.NoError(t, err)
	assert.Equal(t, 1, report.Scanned)
	assert.Equal(t, 1, report.Deleted)
	assert.Contains(t, remaining(t, dir), "nested")
}

func TestReportString(t *testing.T) {
	r := Report{Scanned: 4, Deleted: 2, BytesReclaimed: 1024}
	assert.Equal(t, "scanned 4 files, deleted 2, reclaimed 1024 bytes", r.String())
}
