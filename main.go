/*
 * alphacore - Main process.
 *
 * Copyright 2024, Richard Cornwell
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in
 * all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

package main

import (
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	getopt "github.com/pborman/getopt/v2"

	"github.com/ev6sim/alphacore/command/reader"
	config "github.com/ev6sim/alphacore/config/configparser"
	"github.com/ev6sim/alphacore/config/systemconfig"
	"github.com/ev6sim/alphacore/emu/console"
	"github.com/ev6sim/alphacore/emu/core"
	logger "github.com/ev6sim/alphacore/util/logger"
	"github.com/ev6sim/alphacore/util/loader"

	_ "github.com/ev6sim/alphacore/config/debugconfig"
)

const (
	defaultCPUCount   = 1
	defaultMemorySize = 128 * 1024 * 1024
	defaultPalBase    = 0x10000
)

var Logger *slog.Logger

func main() {
	optConfig := getopt.StringLong("config", 'c', "alphacore.cfg", "Configuration file")
	optLogFile := getopt.StringLong("log", 'l', "", "Log file")
	optHelp := getopt.BoolLong("help", 'h', "Help")
	getopt.Parse()

	if *optHelp {
		getopt.Usage()
		os.Exit(0)
	}

	var file *os.File
	if *optLogFile != "" {
		file, _ = os.Create(*optLogFile)
	}
	programLevel := new(slog.LevelVar)
	programLevel.Set(slog.LevelDebug)
	Logger = slog.New(logger.NewHandler(file, &slog.HandlerOptions{Level: programLevel, AddSource: false}, new(bool)))
	slog.SetDefault(Logger)

	Logger.Info("alphacore started")

	if _, err := os.Stat(*optConfig); os.IsNotExist(err) {
		Logger.Error("configuration file not found", "path", *optConfig)
		os.Exit(1)
	}

	if err := config.LoadConfigFile(*optConfig); err != nil {
		Logger.Error("loading configuration", "error", err)
		os.Exit(1)
	}

	settings := systemconfig.Current()
	cpuCount := settings.CPUCount
	if cpuCount == 0 {
		cpuCount = defaultCPUCount
	}
	memSize := settings.MemorySize
	if memSize == 0 {
		memSize = defaultMemorySize
	}

	sys := core.NewSystem(cpuCount, memSize)

	if settings.TimerInterval != 0 {
		for _, c := range sys.Cpus {
			c.Ctx.EnableTimer(settings.TimerInterval)
		}
	}

	if settings.PALImage != "" {
		n, err := loader.LoadPAL(sys.Mem, defaultPalBase, settings.PALImage)
		if err != nil {
			Logger.Error("loading PAL image", "error", err)
			os.Exit(1)
		}
		Logger.Info("PAL image loaded", "path", settings.PALImage, "base", defaultPalBase, "bytes", n)
		for _, c := range sys.Cpus {
			c.Ctx.Cold().PalBase = defaultPalBase
			c.Ctx.SetPC(defaultPalBase)
		}
	} else {
		Logger.Warn("no PAL image configured; CPUs will start with PC 0")
	}

	if err := attachConsole(sys, settings); err != nil {
		Logger.Error("attaching console", "error", err)
		os.Exit(1)
	}

	sys.Start()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	done := make(chan struct{})
	go func() {
		reader.ConsoleReader(sys)
		close(done)
	}()

	select {
	case <-sigChan:
		Logger.Info("got quit signal")
	case <-done:
		Logger.Info("operator shell exited")
	}

	Logger.Info("shutting down")
	sys.Stop()
	Logger.Info("stopped")
}

// attachConsole binds the console transport the configuration file
// asked for, defaulting to a telnet listener on :2323 when the config
// file left the console unconfigured — every system needs some way to
// reach PAL's CSERVE console, even an untouched default one.
func attachConsole(sys *core.System, settings systemconfig.Settings) error {
	switch settings.ConsoleKind {
	case "serial":
		baud := settings.ConsoleBaud
		if baud == 0 {
			baud = 9600
		}
		t, err := console.NewSerialTransport(settings.ConsoleDev, baud)
		if err != nil {
			return err
		}
		return sys.Console.Attach(t)

	case "telnet", "":
		port := settings.ConsolePort
		if port == 0 {
			port = 2323
		}
		t, err := console.NewTelnetTransport(":" + strconv.Itoa(port))
		if err != nil {
			return err
		}
		return sys.Console.Attach(t)
	}
	return nil
}
