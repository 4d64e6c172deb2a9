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
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	hwnfc "github.com/ZaparooProject/go-hwnfc"
	"github.com/ZaparooProject/go-hwnfc/emulator"
	"github.com/ZaparooProject/go-hwnfc/store/sqlite"
	"github.com/ZaparooProject/go-hwnfc/transport/i2c"
	"github.com/ZaparooProject/go-hwnfc/transport/uart"
	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// app carries what every subcommand needs once flags are parsed
type app struct {
	v     *viper.Viper
	cfg   *Config
	log   *logrus.Logger
	out   io.Writer
	emu   *emulator.Emulator
	store *sqlite.DB
}

func newRootCmd(out io.Writer) *cobra.Command {
	a := &app{v: viper.New(), out: out}

	cmd := &cobra.Command{
		Use:           "hwnfc",
		Short:         "Talk to an NFC hardware wallet",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			configFile, err := cmd.Flags().GetString("config")
			if err != nil {
				return err
			}
			return a.init(configFile)
		},
	}
	cmd.SetOut(out)

	flags := cmd.PersistentFlags()
	flags.Bool("debug", false, "Enable debug output")
	flags.String("config", "", "Config file (YAML)")
	flags.String("port", "", "Serial port of the NFC bridge; empty picks the first USB serial port")
	flags.String("bus", "", "I2C bus of the NFC front end; used instead of --port")
	flags.Bool("fake", false, "Talk to the built-in emulator instead of hardware")
	flags.String("db", "", "SQLite database for device info and update progress")
	for _, name := range []string{"debug", "port", "bus", "fake", "db"} {
		_ = a.v.BindPFlag(name, flags.Lookup(name))
	}

	newVersionCmd(cmd, a)
	newInfoCmd(cmd, a)
	newFwupCmd(cmd, a)
	newTelemetryCmd(cmd, a)
	newWipeCmd(cmd, a)
	newPortsCmd(cmd, a)
	return cmd
}

func (a *app) init(configFile string) error {
	cfg, err := readConfig(a.v, configFile)
	if err != nil {
		return err
	}
	a.cfg = cfg

	a.log = logrus.New()
	a.log.SetOutput(os.Stderr)
	a.log.SetFormatter(&logrus.TextFormatter{
		DisableTimestamp: false,
		FullTimestamp:    true,
	})
	if cfg.Debug {
		a.log.SetLevel(logrus.DebugLevel)
	}
	hwnfc.SetLogger(a.log)
	return nil
}

// openStore opens the database named by --db. Without one it returns nil.
func (a *app) openStore() (*sqlite.DB, error) {
	if a.cfg.DB == "" || a.store != nil {
		return a.store, nil
	}
	db, err := sqlite.Open(a.cfg.DB)
	if err != nil {
		return nil, err
	}
	a.store = db
	return db, nil
}

// close releases whatever the command opened
func (a *app) close() error {
	var result *multierror.Error
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			result = multierror.Append(result, err)
		}
		a.store = nil
	}
	return result.ErrorOrNil()
}

// connector picks the link to the hardware: the emulator with --fake, the
// I2C bus when one is named, otherwise a serial port
func (a *app) connector() (hwnfc.Connector, error) {
	switch {
	case a.cfg.Fake:
		emu, err := a.emulator()
		if err != nil {
			return nil, err
		}
		return emu, nil
	case a.cfg.Bus != "":
		return i2c.Connector(a.cfg.Bus), nil
	case a.cfg.Port != "":
		return uart.Connector(a.cfg.Port), nil
	}

	ports, err := uart.Discover(uart.DiscoverOptions{
		Blocklist:   a.cfg.Blocklist,
		IgnorePaths: a.cfg.IgnorePaths,
		USBOnly:     true,
	})
	if err != nil {
		return nil, err
	}
	if len(ports) == 0 {
		return nil, errors.New("no serial ports found; pass --port, --bus or --fake")
	}
	a.log.WithField("port", ports[0].Name).Info("using first USB serial port")
	return uart.Connector(ports[0].Name), nil
}

func (a *app) emulator() (*emulator.Emulator, error) {
	if a.emu != nil {
		return a.emu, nil
	}
	ec := emulator.DefaultConfig()
	ec.Serial = a.cfg.Emulator.Serial
	ec.FirmwareVersion = a.cfg.Emulator.FirmwareVersion
	emu, err := emulator.New(ec)
	if err != nil {
		return nil, err
	}
	if n := a.cfg.Emulator.Events; n > 0 {
		emu.AddEvents(make([]byte, n))
	}
	for i := 0; i < a.cfg.Emulator.Coredumps; i++ {
		emu.AddCoredump([]byte(fmt.Sprintf("coredump %d", i)))
	}
	a.emu = emu
	return emu, nil
}

// transactor builds a transactor for the configured link. The returned
// parameters route the session to the emulator with --fake.
func (a *app) transactor(flow string, opts ...hwnfc.Option) (*hwnfc.Transactor, hwnfc.SessionParameters, error) {
	params := hwnfc.SessionParameters{NfcFlowName: flow}
	connector, err := a.connector()
	if err != nil {
		return nil, params, err
	}

	base := []hwnfc.Option{
		hwnfc.WithPlatform(hwnfc.Platform(a.cfg.Platform)),
		hwnfc.WithMaxAttempts(a.cfg.MaxAttempts),
		hwnfc.WithRetryDelay(a.cfg.RetryDelay),
		hwnfc.WithTimeout(a.cfg.Timeout),
	}
	if a.cfg.Fake {
		base = append(base, hwnfc.WithEmulator(connector))
		params.IsHardwareFake = true
		connector = nil
	}

	t, err := hwnfc.NewTransactor(connector, append(base, opts...)...)
	if err != nil {
		return nil, params, err
	}
	return t, params, nil
}

// chooser answers emulated prompts with the configured option
func (a *app) chooser() hwnfc.Chooser[bool] {
	return hwnfc.ChooseOption[bool](a.cfg.Emulator.Confirm)
}

func (a *app) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(a.out, format, args...)
}

// run is the common body of the single tap commands
func (a *app) run(ctx context.Context, flow string, effect hwnfc.Effect, opts ...hwnfc.Option) (err error) {
	defer func() {
		if closeErr := a.close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	t, params, err := a.transactor(flow, opts...)
	if err != nil {
		return err
	}
	return t.Run(ctx, params, effect)
}
