package opengl

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/pkg/errors"
	"github.com/spaghettifunk/anima-renderer/engine/core"
	"github.com/spaghettifunk/anima-renderer/engine/renderer/metadata"
)

// Uniform block names in the GLSL sources, indexed by binding.
var uniformBlocks = [...]string{
	metadata.BINDING_RENDERPARMS: "RenderParms",
	metadata.BINDING_JOINTS:      "Joints",
}

type program struct {
	name   string
	handle uint32
}

func compileShader(fileName string, kind uint32) (uint32, error) {
	src, err := os.ReadFile(fileName)
	if err != nil {
		return 0, errors.Wrapf(err, "unable to read shader %s", fileName)
	}
	handle := gl.CreateShader(kind)
	csources, free := gl.Strs(string(src) + "\x00")
	gl.ShaderSource(handle, 1, csources, nil)
	free()
	gl.CompileShader(handle)

	var status int32
	gl.GetShaderiv(handle, gl.COMPILE_STATUS, &status)
	if status == gl.FALSE {
		var logLength int32
		gl.GetShaderiv(handle, gl.INFO_LOG_LENGTH, &logLength)
		msg := strings.Repeat("\x00", int(logLength+1))
		gl.GetShaderInfoLog(handle, logLength, nil, gl.Str(msg))
		gl.DeleteShader(handle)
		return 0, fmt.Errorf("failed to compile %s: %s", fileName, strings.TrimRight(msg, "\x00"))
	}
	return handle, nil
}

/**
 * @brief Compiles and links gl/<name>.vert and gl/<name>.frag, then points
 * the uniform blocks at their bindings.
 */
func (d *Driver) loadProgram(name string) (*program, error) {
	if p, ok := d.programs[name]; ok {
		return p, nil
	}
	dir := filepath.Join(d.opts.ShaderPath, "gl")
	vert, err := compileShader(filepath.Join(dir, name+".vert"), gl.VERTEX_SHADER)
	if err != nil {
		return nil, err
	}
	defer gl.DeleteShader(vert)
	frag, err := compileShader(filepath.Join(dir, name+".frag"), gl.FRAGMENT_SHADER)
	if err != nil {
		return nil, err
	}
	defer gl.DeleteShader(frag)

	handle := gl.CreateProgram()
	gl.AttachShader(handle, vert)
	gl.AttachShader(handle, frag)
	gl.LinkProgram(handle)
	gl.DetachShader(handle, vert)
	gl.DetachShader(handle, frag)

	var status int32
	gl.GetProgramiv(handle, gl.LINK_STATUS, &status)
	if status == gl.FALSE {
		var logLength int32
		gl.GetProgramiv(handle, gl.INFO_LOG_LENGTH, &logLength)
		msg := strings.Repeat("\x00", int(logLength+1))
		gl.GetProgramInfoLog(handle, logLength, nil, gl.Str(msg))
		gl.DeleteProgram(handle)
		return nil, fmt.Errorf("failed to link program '%s': %s", name, strings.TrimRight(msg, "\x00"))
	}

	for binding, block := range uniformBlocks {
		index := gl.GetUniformBlockIndex(handle, gl.Str(block+"\x00"))
		if index == gl.INVALID_INDEX {
			continue
		}
		gl.UniformBlockBinding(handle, index, uint32(binding))
	}

	p := &program{name: name, handle: handle}
	d.programs[name] = p
	core.LogDebug("Linked GL program '%s'.", name)
	return p, nil
}

func (d *Driver) destroyPrograms() {
	for name, p := range d.programs {
		gl.DeleteProgram(p.handle)
		delete(d.programs, name)
	}
}
