// Package config loads runtime settings from the environment.
package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sethvargo/go-envconfig"
)

// legacyRecordDir is where the tool historically kept its batch files on the
// engineering workstations. It is tried first so existing setups keep
// working unchanged.
const legacyRecordDir = `C:\Users\z00568pj\Downloads\CsToolUi\CsToolUi\record`

// Settings holds everything the uploader needs to talk to the repair system.
type Settings struct {
	BaseURL       string `env:"REPAIR_BASE_URL, default=http://kplus.siemens.com.cn/informationtoolsnew"`
	LoginName     string `env:"REPAIR_LOGIN_NAME, default=ting.wen@siemens.com"`
	LoginPassword string `env:"REPAIR_LOGIN_PASSWORD, default=20150517"`

	// RecordDir overrides the batch file directory used by the watch
	// command. Empty means resolve per ResolveRecordDir.
	RecordDir string `env:"REPAIR_RECORD_DIR"`

	MaxConcurrentTasks int `env:"REPAIR_MAX_CONCURRENT_TASKS, default=4"`
}

func Load(ctx context.Context) (Settings, error) {
	var s Settings
	if err := envconfig.Process(ctx, &s); err != nil {
		return Settings{}, fmt.Errorf("load settings: %w", err)
	}
	return s, nil
}

// ResolveRecordDir picks the directory batch files live in: the configured
// override, the legacy workstation path if it exists, a RepairTool folder
// under the user's documents (created on demand), and finally the working
// directory.
func (s Settings) ResolveRecordDir() string {
	if s.RecordDir != "" {
		return s.RecordDir
	}
	if _, err := os.Stat(legacyRecordDir); err == nil {
		return legacyRecordDir
	}
	if home, err := os.UserHomeDir(); err == nil {
		dir := filepath.Join(home, "Documents", "RepairTool")
		if err := os.MkdirAll(dir, 0o755); err == nil {
			return dir
		}
	}
	if cwd, err := os.Getwd(); err == nil {
		return cwd
	}
	return "."
}
