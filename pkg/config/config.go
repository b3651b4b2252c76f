// Copyright 2021 Matrix Origin
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

package config

import (
	"context"
	"runtime"

	"github.com/BurntSushi/toml"

	"github.com/difyrrwrzd/cudf-sub003/pkg/common/moerr"
	"github.com/difyrrwrzd/cudf-sub003/pkg/logutil"
)

const defaultBlockSize = 8192

// KernelConfig tunes the data parallel execution of the column kernels.
type KernelConfig struct {
	// BlockSize is the number of rows one task of a partitioned kernel
	// handles. It must stay a multiple of 64 so block boundaries land
	// on validity word boundaries.
	BlockSize int `toml:"block-size"`

	// Parallelism caps the worker goroutines; 0 means GOMAXPROCS.
	Parallelism int `toml:"parallelism"`
}

type MemoryConfig struct {
	// LimitMB caps the engine memory pool; 0 means no cap.
	LimitMB int64 `toml:"limit-mb"`
}

// EngineConfig is the root of the toml file.
type EngineConfig struct {
	Kernel KernelConfig   `toml:"kernel"`
	Memory MemoryConfig   `toml:"memory"`
	Log    logutil.Config `toml:"log"`
}

func Default() *EngineConfig {
	return &EngineConfig{
		Kernel: KernelConfig{
			BlockSize:   defaultBlockSize,
			Parallelism: runtime.GOMAXPROCS(0),
		},
		Log: logutil.Config{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load parses a toml file on top of the defaults and validates the
// result.
func Load(path string) (*EngineConfig, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, moerr.NewBadConfig(context.Background(), "%s: %v", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *EngineConfig) Validate() error {
	if c.Kernel.BlockSize <= 0 {
		return moerr.NewBadConfig(context.Background(), "block-size %d must be positive", c.Kernel.BlockSize)
	}
	if c.Kernel.BlockSize%64 != 0 {
		return moerr.NewBadConfig(context.Background(), "block-size %d must be a multiple of 64", c.Kernel.BlockSize)
	}
	if c.Kernel.Parallelism < 0 {
		return moerr.NewBadConfig(context.Background(), "parallelism %d must not be negative", c.Kernel.Parallelism)
	}
	if c.Kernel.Parallelism == 0 {
		c.Kernel.Parallelism = runtime.GOMAXPROCS(0)
	}
	if c.Memory.LimitMB < 0 {
		return moerr.NewBadConfig(context.Background(), "memory limit %d must not be negative", c.Memory.LimitMB)
	}
	return nil
}

// MemoryLimitBytes returns the pool cap in bytes, 0 for uncapped.
func (c *EngineConfig) MemoryLimitBytes() int64 {
	return c.Memory.LimitMB << 20
}
