// go-hwnfc
// Copyright (c) 2025 The Zaparoo Project Contributors.
// SPDX-License-Identifier: LGPL-3.0-or-later
//
// This file is part of go-hwnfc.
//
// go-hwnfc is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 3 of the License, or (at your option) any later version.
//
// go-hwnfc is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with go-hwnfc; if not, write to the Free Software Foundation,
// Inc., 51 Franklin Street, Fifth Floor, Boston, MA  02110-1301, USA.

package main

import (
	"fmt"
	"strings"
	"time"

	hwnfc "github.com/ZaparooProject/go-hwnfc"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Config is the merged view of flags, HWNFC_ environment variables and the
// YAML config file
type Config struct {
	Port        string         `mapstructure:"port"`
	Bus         string         `mapstructure:"bus"`
	DB          string         `mapstructure:"db"`
	Platform    string         `mapstructure:"platform"`
	Blocklist   []string       `mapstructure:"blocklist"`
	IgnorePaths []string       `mapstructure:"ignore-paths"`
	Emulator    EmulatorConfig `mapstructure:"emulator"`
	Timeout     time.Duration  `mapstructure:"timeout"`
	RetryDelay  time.Duration  `mapstructure:"retry-delay"`
	MaxAttempts int            `mapstructure:"max-attempts"`
	Taps        int            `mapstructure:"taps"`
	Debug       bool           `mapstructure:"debug"`
	Fake        bool           `mapstructure:"fake"`
}

// EmulatorConfig shapes the fake device used with --fake
type EmulatorConfig struct {
	Serial          string `mapstructure:"serial"`
	FirmwareVersion string `mapstructure:"firmware-version"`
	// Confirm is the prompt option picked for on-device confirmations
	Confirm   string `mapstructure:"confirm"`
	Events    int    `mapstructure:"events"`
	Coredumps int    `mapstructure:"coredumps"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("platform", string(hwnfc.PlatformLinux))
	v.SetDefault("timeout", 30*time.Second)
	v.SetDefault("retry-delay", 50*time.Millisecond)
	v.SetDefault("max-attempts", 3)
	v.SetDefault("taps", 3)
	v.SetDefault("emulator.serial", "EMU00001")
	v.SetDefault("emulator.firmware-version", "1.0.0")
	v.SetDefault("emulator.confirm", hwnfc.PromptApprove)
	v.SetDefault("emulator.events", 0)
	v.SetDefault("emulator.coredumps", 0)
	v.SetDefault("bus", "")
	v.SetDefault("blocklist", []string{})
	v.SetDefault("ignore-paths", []string{})
}

// readConfig loads configFile, when set, under the HWNFC_ environment and
// decodes the result
func readConfig(v *viper.Viper, configFile string) (*Config, error) {
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", configFile, err)
		}
	}

	v.SetEnvPrefix("HWNFC")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	cfg := &Config{}
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(cfg, hook); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, cfg.validate()
}

func (c *Config) validate() error {
	switch hwnfc.Platform(c.Platform) {
	case hwnfc.PlatformLinux, hwnfc.PlatformAndroid, hwnfc.PlatformIOS:
	default:
		return fmt.Errorf("%w: unknown platform %q", hwnfc.ErrInvalidParameter, c.Platform)
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("%w: max-attempts must be at least 1", hwnfc.ErrInvalidParameter)
	}
	if c.Taps < 1 {
		c.Taps = 1
	}
	if c.Port != "" && c.Bus != "" {
		return fmt.Errorf("%w: port and bus are mutually exclusive", hwnfc.ErrInvalidParameter)
	}
	return nil
}
