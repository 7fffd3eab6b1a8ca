package config

import (
	"os"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"

	"github.com/ecsnet/replicore/xlog"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// Save writes cfg to path as JSON via a temp-file-then-rename, so a reader
// never observes a half-written file. Grounded on cmn/jsp/file.go's Save,
// minus the checksum framing this domain has no use for.
func Save(path string, cfg *ReplicationConfig) error {
	tmp := path + ".tmp"
	b, err := jsonAPI.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal config")
	}
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return errors.Wrapf(err, "write %s", tmp)
	}
	if err := os.Rename(tmp, path); err != nil {
		if rmErr := os.Remove(tmp); rmErr != nil {
			xlog.Warningf("config: failed to clean up %s after rename error: %v", tmp, rmErr)
		}
		return errors.Wrapf(err, "rename %s to %s", tmp, path)
	}
	return nil
}

// Load reads a ReplicationConfig previously written by Save.
func Load(path string) (*ReplicationConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	cfg := Default()
	if err := jsonAPI.Unmarshal(b, cfg); err != nil {
		return nil, errors.Wrapf(err, "unmarshal %s", path)
	}
	return cfg, nil
}
