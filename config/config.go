// Package config loads the demo CLI's configuration, in the same
// JSON-or-key=value style as the storage core's original config loader.
package config

import (
	"bufio"
	"encoding/json"
	"os"
	"strings"

	"github.com/malzahar-project/dbstorage/dberr"
)

// Config holds the on-disk location the demo CLI operates against. Page
// size is not configurable: the storage core fixes it at pagefile.PageSize.
type Config struct {
	DBPath string `json:"dbpath"`
}

// Default returns a Config pointed at dbpath with no file backing it.
func Default(dbpath string) *Config {
	return &Config{DBPath: dbpath}
}

// Load reads a config file. It accepts either JSON ({"dbpath": "..."}) or a
// simple key=value / key: value text format.
func Load(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, dberr.Wrap(dberr.Io, err, "read config file")
	}
	if len(data) == 0 {
		return nil, dberr.New(dberr.BadArgument, "empty config file")
	}

	var c Config
	if err := json.Unmarshal(data, &c); err == nil && c.DBPath != "" {
		return &c, nil
	}

	scanner := bufio.NewScanner(strings.NewReader(string(data)))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		sep := "="
		if !strings.Contains(line, sep) && strings.Contains(line, ":") {
			sep = ":"
		}
		parts := strings.SplitN(line, sep, 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		val := strings.Trim(strings.TrimSpace(parts[1]), `"'`)
		if key == "dbpath" {
			c.DBPath = val
		}
	}
	if c.DBPath == "" {
		return nil, dberr.New(dberr.BadArgument, "dbpath not found in config")
	}
	return &c, nil
}
