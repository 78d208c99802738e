// Copyright 2023 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package config loads run configuration files.
//
// A file looks like this:
//
//	package: dEQP-GLES3
//	abi: arm64-v8a
//	collect_logs: true
//	batch_limit: 500
//	unresponsive_timeout: 10m
//	tests:
//	  - dEQP-GLES3.info.vendor
//	  - name: dEQP-GLES3.functional.color_clear.single_rgb
//	    instances:
//	      - rotation: "90"
//	      - rotation: "0"
//	        surfaceType: pbuffer
//
// Tests without instances run once under runconfig.Default.
package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"go.chromium.org/deqprunner/errors"
	"go.chromium.org/deqprunner/internal/deqp"
	"go.chromium.org/deqprunner/internal/instability"
	"go.chromium.org/deqprunner/internal/recovery"
	"go.chromium.org/deqprunner/internal/runconfig"
	"go.chromium.org/deqprunner/internal/testid"
)

// Config is a validated run configuration.
type Config struct {
	// Package is the dEQP package the tests belong to.
	Package deqp.Package
	// ABI selects the native ABI of the test app. It may be empty.
	ABI string
	// CollectLogs makes test logs reach the result sink.
	CollectLogs bool
	// BatchLimit is the batch size for stable tests.
	BatchLimit int
	// UnresponsiveTimeout bounds the time a test command may go without
	// output.
	UnresponsiveTimeout time.Duration
	// Recovery holds device recovery parameters.
	Recovery recovery.Config

	// Tests lists the tests to run in order.
	Tests []testid.ID
	// Instances holds the run configs of tests that declared instances.
	Instances map[testid.ID][]runconfig.Config
}

type fileTest struct {
	Name      string              `yaml:"name"`
	Instances []map[string]string `yaml:"instances"`
}

// UnmarshalYAML accepts either a bare test name or a mapping.
func (t *fileTest) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var name string
	if err := unmarshal(&name); err == nil {
		t.Name = name
		return nil
	}
	type plain fileTest
	return unmarshal((*plain)(t))
}

type file struct {
	Package             string     `yaml:"package"`
	ABI                 string     `yaml:"abi"`
	CollectLogs         bool       `yaml:"collect_logs"`
	BatchLimit          *int       `yaml:"batch_limit"`
	UnresponsiveTimeout string     `yaml:"unresponsive_timeout"`
	RetryCooldown       string     `yaml:"retry_cooldown"`
	ProcessKillWait     string     `yaml:"process_kill_wait"`
	ProcessName         string     `yaml:"process_name"`
	Tests               []fileTest `yaml:"tests"`
}

// Load reads and validates the config file at path.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config")
	}
	cfg, err := Parse(b)
	if err != nil {
		return nil, errors.Wrapf(err, "bad config %s", path)
	}
	return cfg, nil
}

// Parse parses and validates config file content b.
func Parse(b []byte) (*Config, error) {
	var f file
	if err := yaml.UnmarshalStrict(b, &f); err != nil {
		return nil, errors.Wrap(err, "failed to parse YAML")
	}

	pkg, err := deqp.LookupPackage(f.Package)
	if err != nil {
		return nil, err
	}
	cfg := &Config{
		Package:             pkg,
		ABI:                 f.ABI,
		CollectLogs:         f.CollectLogs,
		BatchLimit:          instability.DefaultBatchLimit,
		UnresponsiveTimeout: deqp.DefaultUnresponsiveTimeout,
		Recovery: recovery.Config{
			Cooldown:    recovery.DefaultCooldown,
			KillWait:    recovery.DefaultKillWait,
			ProcessName: recovery.DefaultProcessName,
		},
		Instances: make(map[testid.ID][]runconfig.Config),
	}
	if f.BatchLimit != nil {
		if *f.BatchLimit <= 0 {
			return nil, errors.Errorf("batch_limit must be positive; got %d", *f.BatchLimit)
		}
		cfg.BatchLimit = *f.BatchLimit
	}
	if f.ProcessName != "" {
		cfg.Recovery.ProcessName = f.ProcessName
	}
	for _, d := range []struct {
		key string
		val string
		dst *time.Duration
	}{
		{"unresponsive_timeout", f.UnresponsiveTimeout, &cfg.UnresponsiveTimeout},
		{"retry_cooldown", f.RetryCooldown, &cfg.Recovery.Cooldown},
		{"process_kill_wait", f.ProcessKillWait, &cfg.Recovery.KillWait},
	} {
		if d.val == "" {
			continue
		}
		v, err := time.ParseDuration(d.val)
		if err != nil {
			return nil, errors.Wrapf(err, "bad %s", d.key)
		}
		if v <= 0 {
			return nil, errors.Errorf("%s must be positive; got %v", d.key, v)
		}
		*d.dst = v
	}

	seen := make(map[testid.ID]bool)
	for _, t := range f.Tests {
		if t.Name == "" {
			return nil, errors.New("test without name")
		}
		id := testid.FromPath(t.Name)
		if seen[id] {
			return nil, errors.Errorf("duplicate test %s", t.Name)
		}
		seen[id] = true
		cfg.Tests = append(cfg.Tests, id)

		for _, args := range t.Instances {
			rc := runconfig.FromArgs(args)
			if !rc.Rotation.Valid() {
				return nil, errors.Errorf("test %s: bad rotation %q", t.Name, rc.Rotation)
			}
			cfg.Instances[id] = append(cfg.Instances[id], rc)
		}
	}
	if len(cfg.Tests) == 0 {
		return nil, errors.New("no tests")
	}
	return cfg, nil
}
