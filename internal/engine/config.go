// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package engine

import (
	"os"

	"gopkg.in/yaml.v3"
)

// ConfigFileName is the per-project config file Load looks for at the
// project root, analogous to the teacher's config.yaml but scoped to one
// project directory instead of a deployment target.
const ConfigFileName = ".naviscope.yaml"

// ProjectConfig holds per-project settings that augment the watcher's
// built-in ignore list. A missing config file is not an error: LoadConfig
// returns a zero-value ProjectConfig.
type ProjectConfig struct {
	// Ignore lists additional glob patterns (matched the same way as
	// defaultIgnorePatterns: against path segments, not full relative
	// paths) that the watcher should exclude beyond its built-in set.
	Ignore []string `yaml:"ignore"`
}

// LoadProjectConfig reads and parses ConfigFileName from root. A missing
// file yields a zero-value ProjectConfig and no error; a present but
// malformed file is an error.
func LoadProjectConfig(root string) (ProjectConfig, error) {
	path := root + string(os.PathSeparator) + ConfigFileName
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return ProjectConfig{}, nil
		}
		return ProjectConfig{}, err
	}
	var cfg ProjectConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return ProjectConfig{}, err
	}
	return cfg, nil
}
