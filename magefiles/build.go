//go:build mage

package main

import (
	"fmt"
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
	"github.com/magefile/mage/target"

	"github.com/spaghettifunk/anima-renderer/engine/renderer/metadata"
)

const shaderDir = "shaders"

var shaderIncludes = []string{
	filepath.Join(shaderDir, "common.glsl"),
	filepath.Join(shaderDir, "skinning.glsl"),
}

type Build mg.Namespace

// Compiles the builtin programs to SPIR-V with glslc. Up to date outputs are skipped.
func (Build) Shaders() error {
	for _, prog := range metadata.BuiltinPrograms {
		for _, stage := range []string{"vert", "frag"} {
			src := filepath.Join(shaderDir, fmt.Sprintf("%s.%s", prog.Name, stage))
			out := src + ".spv"
			stale, err := target.Path(out, append([]string{src}, shaderIncludes...)...)
			if err != nil {
				return fmt.Errorf("missing shader source for program '%s': %w", prog.Name, err)
			}
			if !stale {
				continue
			}
			if err := sh.RunV("glslc", "-I", shaderDir, src, "-o", out); err != nil {
				return err
			}
		}
	}
	return nil
}

// Builds the testbed binary into bin/.
func (Build) Testbed() error {
	return sh.RunV(mg.GoCmd(), "build", "-o", filepath.Join("bin", "testbed"), ".")
}
