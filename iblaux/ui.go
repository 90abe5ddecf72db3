//go:build !tinygo && cgo

package iblaux

import (
	"fmt"
	"image"
	"math"
	"time"

	"github.com/disintegration/imaging"
	"github.com/go-gl/gl/v4.6-core/gl"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/soypat/glgl/v4.6-core/glgl"
	"github.com/soypat/glpbr"
	"github.com/soypat/glpbr/glbuild"
)

func ui(cfg UIConfig) error {
	window, term, err := startGLFW(cfg.Width, cfg.Height)
	if err != nil {
		return err
	}
	defer term()
	reg := viewerTextures(cfg)
	fragSrc, err := makeFragSource(reg)
	if err != nil {
		return fmt.Errorf("building viewer shader: %w", err)
	}
	prog, err := glgl.CompileProgram(glgl.ShaderSource{
		Vertex: `#version 430
in vec2 aPos;
out vec2 vTexCoord;
void main() {
    vTexCoord = aPos * 0.5 + 0.5;
    gl_Position = vec4(aPos, 0.0, 1.0);
}
` + "\x00",
		Fragment: fragSrc,
	})
	if err != nil {
		return fmt.Errorf("%s\n\n%w", fragSrc, err)
	}
	prog.Bind()
	for unit, name := range reg.Names() {
		img, ok := reg.Image(name)
		if !ok {
			return fmt.Errorf("texture %q has no image", name)
		}
		loc := uniformLocation(prog, name)
		if loc < 0 {
			continue // Optimized out.
		}
		uploadTexture(uint32(unit), img)
		gl.Uniform1i(loc, int32(unit))
	}
	// Define a quad covering the screen
	var vao uint32
	gl.GenVertexArrays(1, &vao)
	gl.BindVertexArray(vao)

	var vbo uint32
	gl.GenBuffers(1, &vbo)
	gl.BindBuffer(gl.ARRAY_BUFFER, vbo)
	vertices := []float32{
		-1.0, -1.0,
		1.0, -1.0,
		-1.0, 1.0,
		-1.0, 1.0,
		1.0, -1.0,
		1.0, 1.0,
	}
	gl.BufferData(gl.ARRAY_BUFFER, 4*len(vertices), gl.Ptr(vertices), gl.STATIC_DRAW)
	resUniform, err := prog.UniformLocation("uResolution\x00")
	if err != nil {
		return err
	}
	posAttrib, err := prog.AttribLocation("aPos\x00")
	if err != nil {
		return err
	}
	gl.EnableVertexAttribArray(posAttrib)
	gl.VertexAttribPointer(posAttrib, 2, gl.FLOAT, false, 0, gl.PtrOffset(0))

	var (
		modelViewUniform = uniformLocation(prog, glbuild.BuiltinModelView.Ident())
		normalUniform    = uniformLocation(prog, glbuild.BuiltinNormal.Ident())
		viewUniform      = uniformLocation(prog, glbuild.BuiltinView.Ident())
	)
	identity3 := [9]float32{1, 0, 0, 0, 1, 0, 0, 0, 1}
	if normalUniform >= 0 {
		gl.UniformMatrix3fv(normalUniform, 1, false, &identity3[0])
	}

	const minZoom, maxZoom = 1.2, 20
	var (
		yaw              float64
		pitch            float64
		lastMouseX       float64
		lastMouseY       float64
		camDist          float64 = 3
		firstMouseMove           = true
		isMousePressed           = false
		yawSensitivity           = 0.005
		pitchSensitivity         = 0.005
		refresh                  = true
	)
	window.SetCursorPosCallback(func(w *glfw.Window, xpos float64, ypos float64) {
		if !isMousePressed {
			return
		}
		refresh = true
		if firstMouseMove {
			lastMouseX = xpos
			lastMouseY = ypos
			firstMouseMove = false
		}
		yaw += (xpos - lastMouseX) * yawSensitivity
		pitch -= (ypos - lastMouseY) * pitchSensitivity // Invert y-axis
		maxPitch := math.Pi/2 - 0.01
		pitch = max(-maxPitch, min(maxPitch, pitch))
		lastMouseX = xpos
		lastMouseY = ypos
	})
	window.SetScrollCallback(func(w *glfw.Window, xoff, yoff float64) {
		refresh = true
		camDist -= yoff * (camDist*.1 + .01)
		camDist = max(minZoom, min(maxZoom, camDist))
	})
	window.SetMouseButtonCallback(func(w *glfw.Window, button glfw.MouseButton, action glfw.Action, mods glfw.ModifierKey) {
		if button != glfw.MouseButtonLeft {
			return
		}
		refresh = true
		if action == glfw.Press {
			isMousePressed = true
			firstMouseMove = true
			window.SetInputMode(glfw.CursorMode, glfw.CursorDisabled)
		} else if action == glfw.Release {
			isMousePressed = false
			window.SetInputMode(glfw.CursorMode, glfw.CursorNormal)
		}
	})

	ctx := cfg.Context
	frames := 0
	watch := stopwatch()
	for !window.ShouldClose() {
		if ctx != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
		}
		width, height := window.GetSize()
		gl.ClearColor(0.0, 0.0, 0.0, 1.0)
		gl.Clear(gl.COLOR_BUFFER_BIT)

		prog.Bind()
		gl.Uniform2f(resUniform, float32(width), float32(height))
		modelView := [16]float32{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 0, 0, float32(-camDist), 1}
		view := orbitView(float32(yaw), float32(pitch))
		if modelViewUniform >= 0 {
			gl.UniformMatrix4fv(modelViewUniform, 1, false, &modelView[0])
		}
		if viewUniform >= 0 {
			gl.UniformMatrix4fv(viewUniform, 1, false, &view[0])
		}
		gl.BindVertexArray(vao)
		gl.DrawArrays(gl.TRIANGLES, 0, 6)
		window.SwapBuffers()
		frames++

		// Redraw only on input.
		for {
			time.Sleep(time.Second / 60)
			glfw.PollEvents()
			if refresh || window.ShouldClose() {
				refresh = false
				break
			}
		}
	}
	glpbr.Logger().Info("viewer closed", "frames", frames, "elapsed", watch())
	return nil
}

// orbitView returns the column major rotation of the environment seen by a
// camera orbiting by yaw about the Y axis and pitch about the X axis.
func orbitView(yaw, pitch float32) [16]float32 {
	sy, cy := math.Sincos(float64(yaw))
	sp, cp := math.Sincos(float64(pitch))
	// Ry(yaw) * Rx(pitch) stored by columns.
	return [16]float32{
		float32(cy), 0, float32(-sy), 0,
		float32(sy * sp), float32(cp), float32(cy * sp), 0,
		float32(sy * cp), float32(-sp), float32(cy * cp), 0,
		0, 0, 0, 1,
	}
}

func uniformLocation(prog glgl.Program, name string) int32 {
	return gl.GetUniformLocation(prog.ID(), gl.Str(name+"\x00"))
}

func uploadTexture(unit uint32, img image.Image) {
	nrgba := imaging.Clone(img)
	b := nrgba.Bounds()
	var tex uint32
	gl.GenTextures(1, &tex)
	gl.ActiveTexture(gl.TEXTURE0 + unit)
	gl.BindTexture(gl.TEXTURE_2D, tex)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.CLAMP_TO_EDGE)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.CLAMP_TO_EDGE)
	gl.PixelStorei(gl.UNPACK_ALIGNMENT, 1)
	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA8, int32(b.Dx()), int32(b.Dy()), 0, gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(nrgba.Pix))
}

func startGLFW(width, height int) (window *glfw.Window, term func(), err error) {
	if err := glfw.Init(); err != nil {
		return nil, nil, fmt.Errorf("initializing GLFW: %w", err)
	}
	glfw.WindowHint(glfw.ContextVersionMajor, 4)
	glfw.WindowHint(glfw.ContextVersionMinor, 6)
	glfw.WindowHint(glfw.OpenGLProfile, glfw.OpenGLCoreProfile)
	glfw.WindowHint(glfw.Resizable, glfw.False)

	window, err = glfw.CreateWindow(width, height, "glpbr IBL viewer", nil, nil)
	if err != nil {
		glfw.Terminate()
		return nil, nil, fmt.Errorf("creating GLFW window: %w", err)
	}
	window.MakeContextCurrent()
	if err := gl.Init(); err != nil {
		glfw.Terminate()
		return nil, nil, fmt.Errorf("initializing OpenGL: %w", err)
	}
	return window, glfw.Terminate, nil
}
