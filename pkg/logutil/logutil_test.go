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

package logutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSetupLogger(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "engine.log")
	SetupLogger(&Config{Level: "debug", Format: "json", Filename: file})
	Info("hello", zap.Int("rows", 42))
	Debugf("processed %d blocks", 3)

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	require.Contains(t, string(data), "hello")
	require.Contains(t, string(data), "processed 3 blocks")

	// restore stderr logging for other tests
	SetupLogger(&Config{Level: "info", Format: "console"})
}

func TestBadLevelFallsBack(t *testing.T) {
	SetupLogger(&Config{Level: "nonsense"})
	require.NotNil(t, GetGlobalLogger())
	require.True(t, GetGlobalLogger().Core().Enabled(zap.InfoLevel))
	SetupLogger(&Config{Level: "info", Format: "console"})
}
