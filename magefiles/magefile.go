//go:build mage

// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package main provides build targets for teashelf using Mage.
//
// Usage:
//
//	mage build       Compile the teashelf binary to bin/
//	mage test:all    Run every test
//	mage test:race   Run every test with the race detector
//	mage test:cover  Write a coverage profile and print the summary
//	mage lint        Run golangci-lint
//	mage clean       Remove build artifacts
//	mage install     Install teashelf to GOPATH/bin
//	mage stats       Print Go LOC as one JSON line
package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const (
	binGo      = "go"
	binLint    = "golangci-lint"
	binaryName = "teashelf"
	binaryDir  = "bin"
	cmdDir     = "./cmd/teashelf"
	versionVar = "github.com/mesh-intelligence/teashelf/pkg/teashelf.Version"
	coverFile  = "coverage.out"
)

// Test groups test targets.
type Test mg.Namespace

// Build compiles the teashelf binary to bin/. TEASHELF_VERSION, when set,
// is stamped into the binary.
func Build() error {
	if err := os.MkdirAll(binaryDir, 0o755); err != nil {
		return err
	}
	args := []string{"build", "-v", "-o", filepath.Join(binaryDir, binaryName)}
	if v := os.Getenv("TEASHELF_VERSION"); v != "" {
		args = append(args, "-ldflags", fmt.Sprintf("-X %s=%s", versionVar, v))
	}
	return sh.RunV(binGo, append(args, cmdDir)...)
}

// Clean removes build artifacts.
func Clean() error {
	if err := os.RemoveAll(binaryDir); err != nil {
		return err
	}
	if err := sh.Rm(coverFile); err != nil {
		return err
	}
	return sh.RunV(binGo, "clean")
}

// Install builds and copies the binary to GOPATH/bin.
func Install() error {
	mg.Deps(Build)
	gopath, err := sh.Output(binGo, "env", "GOPATH")
	if err != nil {
		return err
	}
	src := filepath.Join(binaryDir, binaryName)
	dst := filepath.Join(gopath, "bin", binaryName)
	return sh.Copy(dst, src)
}

// Lint runs golangci-lint.
func Lint() error {
	return sh.RunV(binLint, "run", "./...")
}

// All runs every test.
func (Test) All() error {
	return sh.RunV(binGo, "test", "./...")
}

// Race runs every test with the race detector. The persistence queue and
// the backup scheduler are both concurrent.
func (Test) Race() error {
	return sh.RunV(binGo, "test", "-race", "./...")
}

// Cover writes coverage.out and prints per-function coverage.
func (Test) Cover() error {
	if err := sh.RunV(binGo, "test", "-coverprofile", coverFile, "./..."); err != nil {
		return err
	}
	return sh.RunV(binGo, "tool", "cover", "-func", coverFile)
}

// locStats is the line count that Stats reports.
type locStats struct {
	Prod  int `json:"go_loc_prod"`
	Test  int `json:"go_loc_test"`
	Total int `json:"go_loc"`
}

// skipDirs are not counted by Stats.
var skipDirs = map[string]bool{
	".git": true, "vendor": true, binaryDir: true, "magefiles": true, "_examples": true,
}

// Stats prints Go lines of code as one JSON line.
func Stats() error {
	var st locStats
	err := filepath.WalkDir(".", func(path string, d fs.DirEntry, err error) error {
		switch {
		case err != nil:
			return err
		case d.IsDir() && skipDirs[path]:
			return filepath.SkipDir
		case d.IsDir() || filepath.Ext(path) != ".go":
			return nil
		}
		n, err := countLines(path)
		if err != nil {
			return fmt.Errorf("counting %s: %w", path, err)
		}
		if strings.HasSuffix(path, "_test.go") {
			st.Test += n
		} else {
			st.Prod += n
		}
		return nil
	})
	if err != nil {
		return err
	}
	st.Total = st.Prod + st.Test
	return json.NewEncoder(os.Stdout).Encode(st)
}

func countLines(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	n := 0
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		n++
	}
	return n, sc.Err()
}
