// Copyright 2024 Slabmem Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// benchConfig is the optional TOML file slabbench accepts via --config. Any
// field left unset in the file keeps the flag-supplied or default value.
// use_plain_go is decoded but not applied (see mergeBenchConfig).
type benchConfig struct {
	Workers     int     `toml:"workers"`
	Iterations  int     `toml:"iterations"`
	AllocSize   int     `toml:"alloc_size"`
	Scale       float64 `toml:"scale"`
	UsePlainGo  bool    `toml:"use_plain_go"`
}

func loadBenchConfig(path string) (benchConfig, error) {
	cfg := benchConfig{}
	if path == "" {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("slabbench: reading config %s: %w", path, err)
	}
	return cfg, nil
}
