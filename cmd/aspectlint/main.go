// Command aspectlint validates an aspect configuration file.
//
// Usage:
//
//	aspectlint [-env file] [-strict] [aspects.yaml]
//
// Without a path argument the file named by AOP_ASPECTS_FILE is checked.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/centraunit/aop/config"
	"github.com/centraunit/aop/yamlconfig"
	"go.uber.org/zap"
)

func main() {
	if err := run(os.Args[1:], os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "aspectlint:", err)
		os.Exit(1)
	}
}

var errWarnings = errors.New("warnings found")

func run(args []string, stderr io.Writer) error {
	fs := flag.NewFlagSet("aspectlint", flag.ContinueOnError)
	fs.SetOutput(stderr)
	envFile := fs.String("env", ".env", "environment file to load")
	strict := fs.Bool("strict", false, "fail when warnings are found")
	if err := fs.Parse(args); err != nil {
		return err
	}

	settings, err := config.Load(*envFile)
	if err != nil {
		return err
	}
	logger, err := settings.NewLogger()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	path := settings.AspectsFile
	if fs.NArg() > 0 {
		path = fs.Arg(0)
	}
	return lintFile(path, *strict, logger)
}

func lintFile(path string, strict bool, logger *zap.Logger) error {
	doc, err := yamlconfig.ReadDocument(path)
	if err != nil {
		return err
	}
	report := lint(doc, builtins())

	for _, f := range report.Findings {
		fields := []zap.Field{zap.String("service", f.Service)}
		if f.Severity == SeverityWarning {
			logger.Warn(f.Message, fields...)
		} else {
			logger.Info(f.Message, fields...)
		}
	}
	logger.Info("aspect configuration checked",
		zap.String("path", path),
		zap.Int("services", report.Services),
		zap.Int("aspects", report.Aspects),
		zap.Int("warnings", report.Warnings()),
	)
	if strict && report.Warnings() > 0 {
		return errWarnings
	}
	return nil
}
