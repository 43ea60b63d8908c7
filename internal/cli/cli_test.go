package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/teashelf/pkg/types"
)

// shelf is an isolated config and data directory pair.
type shelf struct {
	configDir string
	dataDir   string
}

// newShelf returns a fresh shelf. Sample seeding is off unless seed is true.
func newShelf(t *testing.T, seed bool) shelf {
	t.Helper()
	for _, key := range []string{"TEASHELF_DATA_DIR", "TEASHELF_CONFIG_DIR", "TEASHELF_LOG_LEVEL",
		"TEASHELF_BACKUP_INTERVAL", "TEASHELF_BACKUP_ON_START", "TEASHELF_SEED_SAMPLES"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
	dir := t.TempDir()
	s := shelf{
		configDir: filepath.Join(dir, "config"),
		dataDir:   filepath.Join(dir, "data"),
	}
	if !seed {
		s.writeConfig(t, "log_level: error\nseed_samples: false\n")
	}
	return s
}

func (s shelf) writeConfig(t *testing.T, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(s.configDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(s.configDir, configFileExt), []byte(content), 0o644))
}

// run executes one teashelf invocation in-process.
func (s shelf) run(t *testing.T, args ...string) (stdout, stderr string, code int) {
	t.Helper()
	root := NewRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetIn(strings.NewReader(""))
	root.SetArgs(append([]string{"--config-dir", s.configDir, "--data-dir", s.dataDir}, args...))
	err := root.Execute()
	if err != nil {
		fmt.Fprintln(&errOut, "Error:", err)
	}
	return out.String(), errOut.String(), ExitCode(err)
}

// mustRun runs args and fails the test on a non-zero exit.
func (s shelf) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	stdout, stderr, code := s.run(t, args...)
	require.Equal(t, exitSuccess, code, "teashelf %v\nstderr: %s", args, stderr)
	return stdout
}

func (s shelf) addTea(t *testing.T, args ...string) types.Tea {
	t.Helper()
	out := s.mustRun(t, append([]string{"--json", "add"}, args...)...)
	var tea types.Tea
	require.NoError(t, json.Unmarshal([]byte(out), &tea))
	return tea
}

func (s shelf) listTeas(t *testing.T, args ...string) []types.Tea {
	t.Helper()
	out := s.mustRun(t, append([]string{"--json", "list"}, args...)...)
	var teas []types.Tea
	require.NoError(t, json.Unmarshal([]byte(out), &teas))
	return teas
}

func TestVersion(t *testing.T) {
	s := newShelf(t, false)
	out := s.mustRun(t, "version")
	assert.Contains(t, out, "teashelf v")
	assert.Contains(t, out, modulePath)
}

func TestInitSeedsSamples(t *testing.T) {
	s := newShelf(t, true)
	out := s.mustRun(t, "--json", "init")

	var view initView
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	assert.Equal(t, "seed", view.Source)
	assert.Equal(t, 3, view.Count)
	assert.FileExists(t, filepath.Join(s.configDir, configFileExt))

	again := s.mustRun(t, "--json", "init")
	require.NoError(t, json.Unmarshal([]byte(again), &view))
	assert.Equal(t, "store", view.Source)
	assert.Equal(t, 3, view.Count, "samples are seeded once")
}

func TestAddGetUpdate(t *testing.T) {
	s := newShelf(t, false)

	tea := s.addTea(t, "--name", "Dragon Well", "--brand", "West Lake", "--type", "green",
		"--amount", "50", "--rating", "4.5", "--flavors", "vegetal,nutty")
	assert.NotEmpty(t, tea.ID)
	assert.Equal(t, types.TeaTypeGreen, tea.Type)
	assert.Equal(t, 180, tea.BrewingInstructions.SteepTimeInSeconds, "steep time defaults from preferences")
	assert.Equal(t, []types.FlavorProfile{types.FlavorVegetal, types.FlavorNutty}, tea.FlavorTags)

	out := s.mustRun(t, "--json", "get", tea.ID)
	var got types.Tea
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, tea, got)

	s.mustRun(t, "update", tea.ID, "--rating", "3", "--threshold", "10")
	out = s.mustRun(t, "--json", "get", tea.ID)
	got = types.Tea{}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, 3.0, got.Rating)
	require.NotNil(t, got.LowStockThreshold)
	assert.Equal(t, 10.0, *got.LowStockThreshold)
	assert.Equal(t, "Dragon Well", got.Name, "unflagged fields are kept")
	assert.Equal(t, 50.0, got.Amount)
}

func TestUserErrors(t *testing.T) {
	s := newShelf(t, false)

	tests := []struct {
		name string
		args []string
	}{
		{"missing type", []string{"add", "--name", "X", "--brand", "Y"}},
		{"bad rating", []string{"add", "--name", "X", "--brand", "Y", "--type", "Black", "--rating", "7"}},
		{"unknown tea", []string{"get", "nope"}},
		{"unknown flag", []string{"list", "--colour", "red"}},
		{"bad sort", []string{"list", "--sort", "price"}},
		{"bad format", []string{"export", "--format", "xml"}},
		{"bad theme", []string{"prefs", "--theme", "neon"}},
		{"bad brew time", []string{"prefs", "--brew-time", "Green"}},
		{"bad backup time", []string{"backup", "restore", "yesterday"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, stderr, code := s.run(t, tt.args...)
			assert.Equal(t, exitUserError, code)
			assert.Contains(t, stderr, "Error:")
		})
	}
}

func TestBrew(t *testing.T) {
	s := newShelf(t, false)
	tea := s.addTea(t, "--name", "Assam", "--brand", "B", "--type", "Black", "--amount", "5", "--threshold", "4")

	out := s.mustRun(t, "brew", tea.ID, "--amount", "2")
	assert.Contains(t, out, "3 g left, 1 brews")
	assert.Contains(t, out, "Running low")

	out = s.mustRun(t, "--json", "brew", tea.ID, "--amount", "10")
	var brewed types.Tea
	require.NoError(t, json.Unmarshal([]byte(out), &brewed))
	assert.Equal(t, 0.0, brewed.Amount, "stock never goes negative")
	assert.Equal(t, 2, brewed.TotalBrewCount)
	assert.Len(t, brewed.BrewingHistory, 2)

	_, _, code := s.run(t, "brew", tea.ID, "--amount", "-1")
	assert.Equal(t, exitUserError, code)
}

func TestListFilters(t *testing.T) {
	s := newShelf(t, false)
	s.addTea(t, "--name", "Sencha", "--brand", "Ippodo", "--type", "Green", "--rating", "4")
	s.addTea(t, "--name", "Lapsang", "--brand", "Fortnum", "--type", "Black", "--rating", "5",
		"--amount", "1", "--threshold", "5")
	s.addTea(t, "--name", "Gyokuro", "--brand", "Ippodo", "--type", "Green", "--rating", "5")

	assert.Len(t, s.listTeas(t), 3)

	greens := s.listTeas(t, "--type", "green", "--sort", "name")
	require.Len(t, greens, 2)
	assert.Equal(t, "Gyokuro", greens[0].Name)
	assert.Equal(t, "Sencha", greens[1].Name)

	low := s.listTeas(t, "--low-stock")
	require.Len(t, low, 1)
	assert.Equal(t, "Lapsang", low[0].Name)

	ippodo := s.listTeas(t, "--search", "IPPO", "--min-rating", "4.5")
	require.Len(t, ippodo, 1)
	assert.Equal(t, "Gyokuro", ippodo[0].Name)

	table := s.mustRun(t, "list")
	assert.Contains(t, table, "Sencha")
	assert.Contains(t, table, "3 teas")
}

func TestFavoritesAndDelete(t *testing.T) {
	s := newShelf(t, false)
	tea := s.addTea(t, "--name", "Pu-erh Cake", "--brand", "Yunnan", "--type", "Pu-erh")

	out := s.mustRun(t, "favorite", tea.ID)
	assert.Contains(t, out, "Added")
	favs := s.listTeas(t, "--favorites")
	require.Len(t, favs, 1)

	_, _, code := s.run(t, "favorite", "missing")
	assert.Equal(t, exitUserError, code)

	out = s.mustRun(t, "--json", "delete", tea.ID)
	assert.JSONEq(t, fmt.Sprintf(`{"id": %q, "deleted": true}`, tea.ID), out)

	var prefs types.UserPreferences
	require.NoError(t, json.Unmarshal([]byte(s.mustRun(t, "--json", "prefs")), &prefs))
	assert.Empty(t, prefs.FavoriteTeaIDs, "deleting a tea drops it from favorites")

	out = s.mustRun(t, "delete", tea.ID)
	assert.Contains(t, out, "No tea")
}

func TestExportImport(t *testing.T) {
	s := newShelf(t, false)
	a := s.addTea(t, "--name", "Sencha", "--brand", "Ippodo", "--type", "Green")
	s.addTea(t, "--name", "Assam", "--brand", "Tetley", "--type", "Black")

	dir := t.TempDir()
	s.mustRun(t, "export", "--format", "csv", "--out", dir)
	files, err := filepath.Glob(filepath.Join(dir, "tea-collection-*.csv"))
	require.NoError(t, err)
	require.Len(t, files, 1)
	data, err := os.ReadFile(files[0])
	require.NoError(t, err)
	lines := strings.Split(string(data), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, `"Name","Brand","Type","Form","Amount","Unit","Rating","Brewing Temperature","Temperature Unit","Steep Time (minutes)","Tasting Notes"`, lines[0])

	picked := s.mustRun(t, "export", "--ids", a.ID)
	var exported []types.Tea
	require.NoError(t, json.Unmarshal([]byte(picked), &exported))
	require.Len(t, exported, 1)
	assert.Equal(t, a.ID, exported[0].ID)

	// A second shelf receives the full export.
	full := filepath.Join(dir, "full.json")
	s.mustRun(t, "export", "--out", full)
	other := newShelf(t, false)
	out := other.mustRun(t, "import", full)
	assert.Contains(t, out, "2 added, 0 updated")
	assert.Len(t, other.listTeas(t), 2)

	out = other.mustRun(t, "import", full)
	assert.Contains(t, out, "0 added, 2 updated")
	assert.Len(t, other.listTeas(t), 2)
}

func TestImportRejectsWholeBatch(t *testing.T) {
	s := newShelf(t, false)
	path := filepath.Join(t.TempDir(), "bad.json")
	batch := `[
		{"id": "ok-1", "name": "Good", "brand": "B", "type": "Green", "form": "Bagged", "amount": 1,
		 "unit": "bags", "rating": 3, "tastingNotes": "",
		 "brewingInstructions": {"temperature": 80, "tempUnit": "C", "steepTimeInSeconds": 60}},
		{"id": "bad-1", "name": "Bad", "brand": "B", "type": "Purple"}
	]`
	require.NoError(t, os.WriteFile(path, []byte(batch), 0o644))

	_, stderr, code := s.run(t, "import", path)
	assert.Equal(t, exitUserError, code)
	assert.Contains(t, stderr, "bad-1")
	assert.Contains(t, stderr, "nothing imported")
	assert.Empty(t, s.listTeas(t))

	_, _, code = s.run(t, "import", filepath.Join(t.TempDir(), "missing.json"))
	assert.Equal(t, exitUserError, code)
}

func TestBackupRing(t *testing.T) {
	s := newShelf(t, false)
	tea := s.addTea(t, "--name", "Sencha", "--brand", "Ippodo", "--type", "Green")

	out := s.mustRun(t, "--json", "backup", "now")
	var first types.BackupInfo
	require.NoError(t, json.Unmarshal([]byte(out), &first))
	assert.Equal(t, 1, first.Count)

	s.mustRun(t, "delete", tea.ID)
	assert.Empty(t, s.listTeas(t))

	out = s.mustRun(t, "backup", "restore")
	assert.Contains(t, out, "Restored 1 teas")
	assert.Len(t, s.listTeas(t), 1)

	for range types.MaxBackups + 2 {
		s.mustRun(t, "backup", "now")
	}
	var infos []types.BackupInfo
	require.NoError(t, json.Unmarshal([]byte(s.mustRun(t, "--json", "backup", "list")), &infos))
	assert.Len(t, infos, types.MaxBackups)

	out = s.mustRun(t, "backup", "restore", infos[len(infos)-1].TakenAt.Format(backupKeyLayout))
	assert.Contains(t, out, "Restored 1 teas")

	_, _, code := s.run(t, "backup", "restore", first.TakenAt.Format(backupKeyLayout))
	assert.Equal(t, exitUserError, code, "pruned snapshot is not found")

	var status backupStatusView
	require.NoError(t, json.Unmarshal([]byte(s.mustRun(t, "--json", "backup", "status")), &status))
	assert.Equal(t, types.MaxBackups, status.Retained)
	require.NotNil(t, status.LastBackup)
	assert.Equal(t, infos[0].TakenAt, *status.LastBackup)
}

func TestWatchTakesImmediateBackup(t *testing.T) {
	s := newShelf(t, false)
	s.addTea(t, "--name", "Sencha", "--brand", "Ippodo", "--type", "Green")

	out := s.mustRun(t, "--json", "watch", "--interval", "1h", "--for", "500ms")
	var view statusView
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	assert.False(t, view.Running)
	assert.Equal(t, "success", view.Outcome)
	assert.Equal(t, 1, view.LastCount)

	var infos []types.BackupInfo
	require.NoError(t, json.Unmarshal([]byte(s.mustRun(t, "--json", "backup", "list")), &infos))
	assert.Len(t, infos, 1)
}

func TestScheduledBackupsSeeOtherInvocations(t *testing.T) {
	s := newShelf(t, false)
	s.mustRun(t, "init")

	// A long-running watcher session, as held by the watch command.
	ctx := context.Background()
	a := &app{logger: zap.NewNop(), flags: rootFlags{configDir: s.configDir, dataDir: s.dataDir}}
	require.NoError(t, a.setup(&cobra.Command{Use: "watch"}, nil))
	watcher, err := a.openSession(ctx)
	require.NoError(t, err)
	defer watcher.close(ctx)
	sched, err := watcher.scheduler(time.Hour)
	require.NoError(t, err)

	first, err := sched.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, first.Count)

	tea := s.addTea(t, "--name", "Sencha", "--brand", "Ippodo", "--type", "Green")

	info, err := sched.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, info.Count, "the snapshot holds the tea added by another invocation")

	s.mustRun(t, "backup", "restore")
	teas := s.listTeas(t)
	require.Len(t, teas, 1)
	assert.Equal(t, tea.ID, teas[0].ID)
}

func TestPrefs(t *testing.T) {
	s := newShelf(t, false)
	out := s.mustRun(t, "--json", "prefs", "--theme", "dark", "--layout", "list", "--brew-time", "oolong=200")

	var prefs types.UserPreferences
	require.NoError(t, json.Unmarshal([]byte(out), &prefs))
	assert.Equal(t, types.ThemeDark, prefs.Theme)
	assert.Equal(t, types.LayoutList, prefs.DashboardLayout)
	assert.Equal(t, 200, prefs.DefaultBrewingTimes[types.TeaTypeOolong])

	tea := s.addTea(t, "--name", "Tieguanyin", "--brand", "B", "--type", "Oolong")
	assert.Equal(t, 200, tea.BrewingInstructions.SteepTimeInSeconds)
}

func TestReports(t *testing.T) {
	s := newShelf(t, false)
	s.addTea(t, "--name", "Sencha", "--brand", "Ippodo", "--type", "Green", "--rating", "5")
	low := s.addTea(t, "--name", "Assam", "--brand", "B", "--type", "Black", "--amount", "1", "--threshold", "5")

	var shopping []types.Tea
	require.NoError(t, json.Unmarshal([]byte(s.mustRun(t, "--json", "lowstock")), &shopping))
	require.Len(t, shopping, 1)
	assert.Equal(t, low.ID, shopping[0].ID)

	out := s.mustRun(t, "--json", "stats")
	assert.JSONEq(t, `{"total": 2, "lowStock": 1, "favorites": 0, "byType": {"Green": 1, "Black": 1}}`, out)

	out = s.mustRun(t, "insights")
	assert.Contains(t, out, "Never brewed:")
	assert.Contains(t, out, "Sencha by Ippodo")
}

func TestConfigDataDir(t *testing.T) {
	s := newShelf(t, false)
	yamlDir := filepath.Join(t.TempDir(), "from-yaml")
	s.writeConfig(t, fmt.Sprintf("log_level: error\nseed_samples: false\ndata_dir: %s\n", yamlDir))

	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"--config-dir", s.configDir, "--json", "init"})
	require.NoError(t, root.Execute())

	var view initView
	require.NoError(t, json.Unmarshal(out.Bytes(), &view))
	assert.Equal(t, yamlDir, view.DataDir)
	assert.DirExists(t, yamlDir)
}

func TestInvalidConfig(t *testing.T) {
	s := newShelf(t, false)
	s.writeConfig(t, "backup_interval: soon\n")
	_, stderr, code := s.run(t, "list")
	assert.Equal(t, exitUserError, code)
	assert.Contains(t, stderr, "backup_interval")
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, exitSuccess},
		{"plain", errors.New("boom"), exitUserError},
		{"not found", types.ErrNotFound, exitUserError},
		{"store unavailable", fmt.Errorf("open: %w", types.ErrStoreUnavailable), exitSysError},
		{"transaction failed", types.ErrTransactionFailed, exitSysError},
		{"explicit user", userError(types.ErrStoreUnavailable), exitUserError},
		{"explicit system", sysError(errors.New("disk")), exitSysError},
		{"invalid import", &types.ImportError{}, exitUserError},
		{"bad format", types.ErrUnknownFormat, exitUserError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}
