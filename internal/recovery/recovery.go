// Copyright 2023 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package recovery implements the escalating recovery ladder used when the
// command link to a device fails.
//
// Each failure without test progress in between moves one step up the
// ladder: wait, recover the connection, reboot, and finally give up. Any
// progress resets the ladder to its first step.
package recovery

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"go.chromium.org/deqprunner/errors"
	"go.chromium.org/deqprunner/internal/device"
	"go.chromium.org/deqprunner/internal/logging"
	"go.chromium.org/deqprunner/internal/metrics"
)

// State is a step of the recovery ladder.
type State int

// Recovery states, in escalation order.
const (
	StateWait State = iota
	StateRecover
	StateReboot
	StateFail
)

func (s State) String() string {
	switch s {
	case StateWait:
		return "wait"
	case StateRecover:
		return "recover"
	case StateReboot:
		return "reboot"
	case StateFail:
		return "fail"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// killSignal is sent to lingering test processes.
const killSignal = unix.SIGKILL

// Default timings.
const (
	DefaultCooldown = 6 * time.Second
	DefaultKillWait = time.Second
)

// DefaultProcessName matches the on-device dEQP processes.
const DefaultProcessName = "com.drawelements"

// Config holds the parameters of a Machine.
type Config struct {
	// Cooldown is how long to wait before retrying after a killed link.
	Cooldown time.Duration
	// KillWait is how long to wait for killed processes to exit.
	KillWait time.Duration
	// ProcessName is matched against the device process list to find
	// lingering test processes.
	ProcessName string
}

// Machine is the recovery state machine.
type Machine struct {
	dev     device.Device
	sleeper Sleeper
	cfg     Config
	state   State
}

// NewMachine creates a Machine in StateWait. Zero fields of cfg take their
// defaults.
func NewMachine(dev device.Device, sleeper Sleeper, cfg Config) *Machine {
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultCooldown
	}
	if cfg.KillWait <= 0 {
		cfg.KillWait = DefaultKillWait
	}
	if cfg.ProcessName == "" {
		cfg.ProcessName = DefaultProcessName
	}
	return &Machine{dev: dev, sleeper: sleeper, cfg: cfg, state: StateWait}
}

// State returns the current state.
func (m *Machine) State() State {
	return m.state
}

// OnProgress resets the ladder after test execution made progress.
func (m *Machine) OnProgress() {
	m.state = StateWait
}

// isFatal reports whether err must stop recovery immediately.
func isFatal(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// RecoverConnectionRefused handles a command link that could not be opened.
// It returns nil once a recovery action succeeded, or *device.UnavailableError
// when the ladder is exhausted.
func (m *Machine) RecoverConnectionRefused(ctx context.Context) error {
	for {
		metrics.RecordRecovery("connection_refused", m.state.String())
		switch m.state {
		case StateWait, StateRecover:
			// Waiting does not help a refused connection.
			logging.Warningf(ctx, "Device connection failed, trying to recover")
			m.state = StateReboot
			if err := m.dev.Recover(ctx); err != nil {
				if isFatal(ctx, err) {
					return err
				}
				logging.Infof(ctx, "Recovery failed: %v", err)
				continue
			}
			return nil
		case StateReboot:
			logging.Warningf(ctx, "Device connection failed after recovery, rebooting device")
			m.state = StateFail
			if err := m.dev.Reboot(ctx); err != nil {
				if isFatal(ctx, err) {
					return err
				}
				logging.Infof(ctx, "Reboot failed: %v", err)
				continue
			}
			return nil
		default:
			logging.Warningf(ctx, "Cannot recover device connection")
			return device.NewUnavailableError("failed to connect after reboot")
		}
	}
}

// RecoverComLinkKilled handles a command link that died or a malformed
// command output. It returns nil once a recovery action succeeded, or
// *device.UnavailableError when the ladder is exhausted.
func (m *Machine) RecoverComLinkKilled(ctx context.Context) error {
	for {
		metrics.RecordRecovery("link_killed", m.state.String())
		switch m.state {
		case StateWait:
			logging.Warningf(ctx, "Device link failed, retrying after a cooldown period")
			m.state = StateRecover
			if err := m.sleeper.Sleep(ctx, m.cfg.Cooldown); err != nil {
				return err
			}
			// The test process may outlive its link.
			if err := m.killProcesses(ctx); err != nil {
				if isFatal(ctx, err) {
					return err
				}
				logging.Infof(ctx, "Cleanup failed: %v", err)
				continue
			}
			return nil
		case StateRecover:
			logging.Warningf(ctx, "Device link failed, trying to recover")
			m.state = StateReboot
			err := m.dev.Recover(ctx)
			if err == nil {
				err = m.killProcesses(ctx)
			}
			if err != nil {
				if isFatal(ctx, err) {
					return err
				}
				logging.Infof(ctx, "Recovery failed: %v", err)
				continue
			}
			return nil
		case StateReboot:
			logging.Warningf(ctx, "Device link failed after recovery, rebooting device")
			m.state = StateFail
			if err := m.dev.Reboot(ctx); err != nil {
				if isFatal(ctx, err) {
					return err
				}
				logging.Infof(ctx, "Reboot failed: %v", err)
				continue
			}
			return nil
		default:
			logging.Warningf(ctx, "Cannot recover device link")
			return device.NewUnavailableError("link killed after reboot")
		}
	}
}

var lineSepRE = regexp.MustCompile(`[\r\n]+`)

// processIDs lists the IDs of device processes matching the process name.
func (m *Machine) processIDs(ctx context.Context) ([]int, error) {
	out, err := m.dev.ExecuteShellCommand(ctx, "ps | grep "+m.cfg.ProcessName)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list processes")
	}
	var pids []int
	for _, line := range lineSepRE.Split(out, -1) {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		pid, err := strconv.Atoi(fields[1])
		if err != nil {
			continue
		}
		pids = append(pids, pid)
	}
	return pids, nil
}

// killProcesses kills lingering test processes and checks that they exited.
func (m *Machine) killProcesses(ctx context.Context) error {
	pids, err := m.processIDs(ctx)
	if err != nil {
		return err
	}
	for _, pid := range pids {
		logging.Infof(ctx, "Killing deqp device process with ID %d with %s", pid, unix.SignalName(killSignal))
		if _, err := m.dev.ExecuteShellCommand(ctx, fmt.Sprintf("kill -%d %d", int(killSignal), pid)); err != nil {
			return errors.Wrapf(err, "failed to kill process %d", pid)
		}
	}
	if err := m.sleeper.Sleep(ctx, m.cfg.KillWait); err != nil {
		return err
	}
	left, err := m.processIDs(ctx)
	if err != nil {
		return err
	}
	if len(left) > 0 {
		logging.Warningf(ctx, "Failed to kill all deqp processes on device")
		return errors.Errorf("processes %v still alive", left)
	}
	return nil
}
