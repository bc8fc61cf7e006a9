package sampler

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// Settings is persisted under the data dir so a restarted agent needs no flags.
type Settings struct {
	Token    string `json:"token,omitempty"`
	Endpoint string `json:"endpoint,omitempty"`
	Interval int    `json:"interval,omitempty"` // seconds
	Flag     string `json:"flag,omitempty"`
	Updated  int64  `json:"updated,omitempty"`
}

// StatePath is the settings file inside dataDir
func StatePath(dataDir string) string {
	return filepath.Join(dataDir, "state.json")
}

func LoadSettings(path string) (Settings, error) {
	var st Settings
	b, err := os.ReadFile(path)
	if err != nil {
		return st, err
	}
	if err := json.Unmarshal(b, &st); err != nil {
		return Settings{}, err
	}
	return st, nil
}

// SaveSettings writes st atomically; the file holds the node token so it is private
func SaveSettings(path string, st Settings) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	st.Updated = time.Now().Unix()
	b, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
