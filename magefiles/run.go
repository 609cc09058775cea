//go:build mage

package main

import (
	"fmt"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

type Run mg.Namespace

// Compiles the shaders and runs the testbed with render.toml.
func (Run) Testbed() error {
	mg.Deps(Build.Shaders)
	fmt.Println("Run testbed...")
	return sh.RunV(mg.GoCmd(), "run", ".", "-config", "render.toml")
}

// Runs the testbed without a window on the headless driver.
func (Run) Headless() error {
	return sh.RunV(mg.GoCmd(), "run", ".", "-config", "render.headless.toml", "-frames", "600")
}
