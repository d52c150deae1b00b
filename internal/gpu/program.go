package gpu

import (
	"encoding/binary"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/colorconvert"
)

// Named inputs of the conversion program.
const (
	ParamY          = "Ytex"
	ParamU          = "Utex"
	ParamV          = "Vtex"
	ParamCanvas     = "canvas_tex"
	ParamOpacity    = "opacity"
	ParamProjection = "projection"
)

// namedInputs lists the parameters the pipeline expects the program to
// declare. Anything missing is logged as a warning.
var namedInputs = []string{ParamY, ParamU, ParamV, ParamCanvas, ParamOpacity}

// ParamKind classifies a declared program parameter.
type ParamKind int

const (
	ParamTexture ParamKind = iota
	ParamSampler
	ParamUniformBlock
	ParamScalar
	ParamMatrix
)

func (k ParamKind) String() string {
	switch k {
	case ParamTexture:
		return "texture"
	case ParamSampler:
		return "sampler"
	case ParamUniformBlock:
		return "uniform"
	case ParamScalar:
		return "scalar"
	case ParamMatrix:
		return "matrix"
	default:
		return fmt.Sprintf("ParamKind(%d)", int(k))
	}
}

// Parameter is one declaration found in the program source. Scalars and
// matrices live inside the uniform block at Binding, at byte Offset.
type Parameter struct {
	Name    string
	Kind    ParamKind
	Binding uint32
	Offset  uint32
}

// Stage identifies where program construction failed.
type Stage int

const (
	StageCompile Stage = iota
	StageLink
)

func (s Stage) String() string {
	if s == StageCompile {
		return "compile"
	}
	return "link"
}

// ProgramError carries the diagnostic text of a failed compile or link.
// It matches colorconvert.ErrCompile or colorconvert.ErrLink under errors.Is.
type ProgramError struct {
	Stage Stage
	Log   string
	Err   error
}

func (e *ProgramError) Error() string {
	return fmt.Sprintf("gpu: program %s failed: %s", e.Stage, e.Log)
}

// Unwrap exposes the stage sentinel and the underlying cause.
func (e *ProgramError) Unwrap() []error {
	sentinel := colorconvert.ErrCompile
	if e.Stage == StageLink {
		sentinel = colorconvert.ErrLink
	}
	if e.Err == nil {
		return []error{sentinel}
	}
	return []error{sentinel, e.Err}
}

func compileError(log string, err error) *ProgramError {
	return &ProgramError{Stage: StageCompile, Log: log, Err: err}
}

func linkError(log string, err error) *ProgramError {
	return &ProgramError{Stage: StageLink, Log: log, Err: err}
}

// Program is the compiled conversion program: shader module, bind group
// layout, render pipeline and the uniform block holding bound scalars.
type Program struct {
	device hal.Device
	queue  hal.Queue

	params   map[string]Parameter
	units    map[string]uint32
	uniform  *Parameter
	uniData  []byte
	uniDirty bool

	shader     hal.ShaderModule
	layout     hal.BindGroupLayout
	pipeLayout hal.PipelineLayout
	pipeline   hal.RenderPipeline
	uniBuf     hal.Buffer
}

// CompileProgram validates and translates source with naga, then links it
// into a render pipeline drawing to targets of the given format.
//
// Translation failures return a *ProgramError at StageCompile; failures to
// build the shader module, layouts or pipeline a *ProgramError at StageLink.
func CompileProgram(device hal.Device, queue hal.Queue, source string, format gputypes.TextureFormat) (*Program, error) {
	params, uniSize, err := scanParameters(source)
	if err != nil {
		return nil, compileError(err.Error(), err)
	}

	words, err := compileSPIRV(source)
	if err != nil {
		return nil, compileError(err.Error(), err)
	}

	p := &Program{
		device: device,
		queue:  queue,
		params: params,
		units:  make(map[string]uint32),
	}
	for _, param := range params {
		if param.Kind == ParamUniformBlock {
			p.uniform = &param
		}
	}
	p.logDeclarations()

	if err := p.link(words, format); err != nil {
		p.Destroy()
		return nil, err
	}

	if p.uniform != nil {
		p.uniData = make([]byte, uniSize)
		buf, err := device.CreateBuffer(&hal.BufferDescriptor{
			Label: "yuv_convert_uniform",
			Size:  uint64(uniSize),
			Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
		})
		if err != nil {
			p.Destroy()
			return nil, fmt.Errorf("%w: create uniform buffer: %v", colorconvert.ErrDeviceResource, err)
		}
		p.uniBuf = buf
		p.uniDirty = true
	}

	slogger().Info("gpu: conversion program ready",
		"spirv_words", len(words), "parameters", len(params), "uniform_bytes", uniSize)
	return p, nil
}

// link builds the shader module, bind group layout, pipeline layout and
// render pipeline.
func (p *Program) link(words []uint32, format gputypes.TextureFormat) error {
	shader, err := p.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  "yuv_convert_shader",
		Source: hal.ShaderSource{SPIRV: words},
	})
	if err != nil {
		return linkError("create shader module: "+err.Error(), err)
	}
	p.shader = shader

	layout, err := p.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label:   "yuv_convert_bind_layout",
		Entries: p.layoutEntries(),
	})
	if err != nil {
		return linkError("create bind group layout: "+err.Error(), err)
	}
	p.layout = layout

	pipeLayout, err := p.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "yuv_convert_pipe_layout",
		BindGroupLayouts: []hal.BindGroupLayout{p.layout},
	})
	if err != nil {
		return linkError("create pipeline layout: "+err.Error(), err)
	}
	p.pipeLayout = pipeLayout

	pipeline, err := p.device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  "yuv_convert_pipeline",
		Layout: p.pipeLayout,
		Vertex: hal.VertexState{
			Module:     p.shader,
			EntryPoint: vertexEntryPoint,
			Buffers:    quadVertexLayout(),
		},
		Fragment: &hal.FragmentState{
			Module:     p.shader,
			EntryPoint: fragmentEntryPoint,
			Targets: []gputypes.ColorTargetState{
				{
					Format:    format,
					WriteMask: gputypes.ColorWriteMaskAll,
				},
			},
		},
		Primitive: gputypes.PrimitiveState{
			Topology: gputypes.PrimitiveTopologyTriangleList,
			CullMode: gputypes.CullModeNone,
		},
		Multisample: gputypes.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return linkError("create render pipeline: "+err.Error(), err)
	}
	p.pipeline = pipeline
	return nil
}

// layoutEntries derives the bind group layout from the declarations,
// ordered by binding.
func (p *Program) layoutEntries() []gputypes.BindGroupLayoutEntry {
	var entries []gputypes.BindGroupLayoutEntry
	for _, param := range p.Parameters() {
		switch param.Kind {
		case ParamTexture:
			entries = append(entries, gputypes.BindGroupLayoutEntry{
				Binding:    param.Binding,
				Visibility: gputypes.ShaderStageFragment,
				Texture: &gputypes.TextureBindingLayout{
					SampleType:    gputypes.TextureSampleTypeFloat,
					ViewDimension: gputypes.TextureViewDimension2D,
				},
			})
		case ParamSampler:
			entries = append(entries, gputypes.BindGroupLayoutEntry{
				Binding:    param.Binding,
				Visibility: gputypes.ShaderStageFragment,
				Sampler:    &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeFiltering},
			})
		case ParamUniformBlock:
			entries = append(entries, gputypes.BindGroupLayoutEntry{
				Binding:    param.Binding,
				Visibility: gputypes.ShaderStageVertex | gputypes.ShaderStageFragment,
				Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
			})
		}
	}
	return entries
}

func (p *Program) logDeclarations() {
	for _, name := range namedInputs {
		if _, ok := p.params[name]; !ok {
			slogger().Warn("gpu: program does not declare named input", "name", name)
		}
	}
	for _, param := range p.Parameters() {
		slogger().Debug("gpu: program parameter",
			"name", param.Name, "kind", param.Kind, "binding", param.Binding, "offset", param.Offset)
	}
}

// Parameter looks up a declaration by name.
func (p *Program) Parameter(name string) (Parameter, bool) {
	param, ok := p.params[name]
	return param, ok
}

// Parameters returns all declarations ordered by binding, then offset.
func (p *Program) Parameters() []Parameter {
	out := make([]Parameter, 0, len(p.params))
	for _, param := range p.params {
		out = append(out, param)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Binding != out[j].Binding {
			return out[i].Binding < out[j].Binding
		}
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].Offset < out[j].Offset
	})
	return out
}

// BindSampler attaches texture unit to the named texture input. Units are
// the binding indices declared in the source, so unit must match the
// declaration.
func (p *Program) BindSampler(name string, unit uint32) error {
	param, ok := p.params[name]
	if !ok || param.Kind != ParamTexture {
		return fmt.Errorf("%w: no texture input %q", colorconvert.ErrUnknownParameter, name)
	}
	if param.Binding != unit {
		return fmt.Errorf("%w: %q is declared at binding %d, not %d",
			colorconvert.ErrUnknownParameter, name, param.Binding, unit)
	}
	p.units[name] = unit
	return nil
}

// Unit returns the unit bound to a texture input.
func (p *Program) Unit(name string) (uint32, bool) {
	u, ok := p.units[name]
	return u, ok
}

// BindScalar stores value for a scalar uniform member. The GPU copy is
// updated on the next Flush.
func (p *Program) BindScalar(name string, value float32) error {
	param, ok := p.params[name]
	if !ok || param.Kind != ParamScalar {
		return fmt.Errorf("%w: no scalar input %q", colorconvert.ErrUnknownParameter, name)
	}
	binary.LittleEndian.PutUint32(p.uniData[param.Offset:], math.Float32bits(value))
	p.uniDirty = true
	return nil
}

// BindMatrix stores a column-major 4x4 matrix uniform member.
func (p *Program) BindMatrix(name string, m [16]float32) error {
	param, ok := p.params[name]
	if !ok || param.Kind != ParamMatrix {
		return fmt.Errorf("%w: no matrix input %q", colorconvert.ErrUnknownParameter, name)
	}
	for i, f := range m {
		binary.LittleEndian.PutUint32(p.uniData[param.Offset+uint32(i)*4:], math.Float32bits(f))
	}
	p.uniDirty = true
	return nil
}

// Scalar returns the value last bound to a scalar member.
func (p *Program) Scalar(name string) (float32, bool) {
	param, ok := p.params[name]
	if !ok || param.Kind != ParamScalar {
		return 0, false
	}
	return math.Float32frombits(binary.LittleEndian.Uint32(p.uniData[param.Offset:])), true
}

// Flush uploads the uniform block if anything changed since the last call.
func (p *Program) Flush() error {
	if !p.uniDirty || p.uniBuf == nil {
		return nil
	}
	if err := p.queue.WriteBuffer(p.uniBuf, 0, p.uniData); err != nil {
		return fmt.Errorf("%w: upload uniforms: %v", colorconvert.ErrDeviceResource, err)
	}
	p.uniDirty = false
	return nil
}

// uniformBinding returns the uniform block resource for the bind group.
func (p *Program) uniformBinding() (gputypes.BindGroupEntry, bool) {
	if p.uniform == nil || p.uniBuf == nil {
		return gputypes.BindGroupEntry{}, false
	}
	return gputypes.BindGroupEntry{
		Binding: p.uniform.Binding,
		Resource: gputypes.BufferBinding{
			Buffer: p.uniBuf.NativeHandle(), Offset: 0, Size: uint64(len(p.uniData)),
		},
	}, true
}

// Destroy releases all GPU objects. Safe to call more than once.
func (p *Program) Destroy() {
	if p.device == nil {
		return
	}
	if p.uniBuf != nil {
		p.device.DestroyBuffer(p.uniBuf)
		p.uniBuf = nil
	}
	if p.pipeline != nil {
		p.device.DestroyRenderPipeline(p.pipeline)
		p.pipeline = nil
	}
	if p.pipeLayout != nil {
		p.device.DestroyPipelineLayout(p.pipeLayout)
		p.pipeLayout = nil
	}
	if p.layout != nil {
		p.device.DestroyBindGroupLayout(p.layout)
		p.layout = nil
	}
	if p.shader != nil {
		p.device.DestroyShaderModule(p.shader)
		p.shader = nil
	}
}

var (
	bindingRe = regexp.MustCompile(`@group\(\s*(\d+)\s*\)\s*@binding\(\s*(\d+)\s*\)\s*var(?:<\s*(\w+)[^>]*>)?\s+(\w+)\s*:\s*([\w<>]+)\s*;`)
	structRe  = regexp.MustCompile(`(?s)struct\s+(\w+)\s*\{(.*?)\}`)
	memberRe  = regexp.MustCompile(`^(\w+)\s*:\s*([\w<>]+)$`)
)

// scanParameters extracts group 0 resource declarations and the members of
// the uniform block. It returns the uniform block size in bytes.
func scanParameters(source string) (map[string]Parameter, uint32, error) {
	structs := make(map[string]string)
	for _, m := range structRe.FindAllStringSubmatch(source, -1) {
		structs[m[1]] = m[2]
	}

	params := make(map[string]Parameter)
	var uniSize uint32
	for _, m := range bindingRe.FindAllStringSubmatch(source, -1) {
		if m[1] != "0" {
			return nil, 0, fmt.Errorf("binding %s uses group %s; only group 0 is supported", m[4], m[1])
		}
		binding, err := strconv.ParseUint(m[2], 10, 32)
		if err != nil {
			return nil, 0, fmt.Errorf("binding %s: %w", m[4], err)
		}
		name, typ := m[4], m[5]

		switch {
		case m[3] == "uniform":
			if uniSize != 0 {
				return nil, 0, fmt.Errorf("more than one uniform block (%s)", name)
			}
			body, ok := structs[typ]
			if !ok {
				return nil, 0, fmt.Errorf("uniform %s has undeclared type %s", name, typ)
			}
			members, size, err := layoutStruct(body, uint32(binding))
			if err != nil {
				return nil, 0, fmt.Errorf("uniform %s: %w", name, err)
			}
			for _, mem := range members {
				params[mem.Name] = mem
			}
			params[name] = Parameter{Name: name, Kind: ParamUniformBlock, Binding: uint32(binding)}
			uniSize = size
		case strings.HasPrefix(typ, "texture_2d"):
			params[name] = Parameter{Name: name, Kind: ParamTexture, Binding: uint32(binding)}
		case typ == "sampler":
			params[name] = Parameter{Name: name, Kind: ParamSampler, Binding: uint32(binding)}
		default:
			slogger().Warn("gpu: ignoring unsupported program binding", "name", name, "type", typ)
		}
	}
	return params, uniSize, nil
}

// layoutStruct assigns uniform-address-space offsets to struct members.
func layoutStruct(body string, binding uint32) ([]Parameter, uint32, error) {
	var (
		members  []Parameter
		offset   uint32
		maxAlign uint32 = 4
	)
	for _, field := range strings.Split(body, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		m := memberRe.FindStringSubmatch(field)
		if m == nil {
			return nil, 0, fmt.Errorf("cannot parse member %q", field)
		}
		size, align, kind, ok := wgslTypeLayout(m[2])
		if !ok {
			return nil, 0, fmt.Errorf("member %s has unsupported type %s", m[1], m[2])
		}
		offset = alignUp(offset, align)
		members = append(members, Parameter{Name: m[1], Kind: kind, Binding: binding, Offset: offset})
		offset += size
		maxAlign = max(maxAlign, align)
	}
	return members, alignUp(offset, max(maxAlign, 16)), nil
}

// wgslTypeLayout returns size and alignment of the uniform member types the
// conversion program uses.
func wgslTypeLayout(typ string) (size, align uint32, kind ParamKind, ok bool) {
	switch typ {
	case "f32":
		return 4, 4, ParamScalar, true
	case "mat4x4<f32>":
		return 64, 16, ParamMatrix, true
	}
	return 0, 0, 0, false
}

func alignUp(v, a uint32) uint32 {
	return (v + a - 1) / a * a
}
