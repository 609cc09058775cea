//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

type Test mg.Namespace

// Runs every package test against the headless driver.
func (Test) All() error {
	return sh.RunV(mg.GoCmd(), "test", "./...")
}

// Runs the engine tests with the race detector.
func (Test) Race() error {
	return sh.RunV(mg.GoCmd(), "test", "-race", "./engine/...")
}
