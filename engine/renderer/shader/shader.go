// Package shader reflects the parts of a WGSL source that a raw pipeline needs to resolve attribute and uniform
// names into binding slots: stage entry points, @location vertex inputs and var<uniform> declarations.
package shader

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/cogentcore/webgpu/wgpu"
)

// Stage identifies a programmable pipeline stage.
type Stage int

const (
	// StageVertex is the vertex stage.
	StageVertex Stage = iota

	// StageFragment is the fragment stage.
	StageFragment
)

func (s Stage) String() string {
	switch s {
	case StageVertex:
		return "vertex"
	case StageFragment:
		return "fragment"
	default:
		return "stage(" + strconv.Itoa(int(s)) + ")"
	}
}

// VertexInput is a single @location input of a vertex entry point.
type VertexInput struct {
	Name     string
	Location int
	Format   wgpu.VertexFormat

	// Size is the tightly packed byte size of one element.
	Size uint64
}

// Uniform is a var<uniform> declaration.
type Uniform struct {
	Name    string
	Group   int
	Binding int

	// Size is the byte size of the bound type under WGSL uniform layout rules, 0 if it could not be resolved.
	Size uint64
}

var (
	vertexEntryRegex   = regexp.MustCompile(`@vertex\s*fn\s+(\w+)\s*\(`)
	fragmentEntryRegex = regexp.MustCompile(`@fragment\s*fn\s+(\w+)\s*\(`)

	// uniformDeclRegex matches @group(G) @binding(B) var<uniform> name: Type;
	uniformDeclRegex = regexp.MustCompile(`@group\((\d+)\)\s*@binding\((\d+)\)\s*var<\s*uniform\s*>\s+(\w+)\s*:\s*([^;]+?)\s*;`)
)

// ParseEntryPoint returns the name of the entry point function of the given stage, or "" if the source has none.
//
// Parameters:
//   - source: WGSL source
//   - stage: the stage to look for
//
// Returns:
//   - string: the entry point name
func ParseEntryPoint(source string, stage Stage) string {
	cleaned := StripComments(source)

	var re *regexp.Regexp
	switch stage {
	case StageVertex:
		re = vertexEntryRegex
	case StageFragment:
		re = fragmentEntryRegex
	default:
		return ""
	}

	if match := re.FindStringSubmatch(cleaned); match != nil {
		return match[1]
	}
	return ""
}

// ParseVertexInputs returns the @location inputs of the vertex entry point, sorted by location.
// Inputs are collected from the entry point parameter list and from any struct passed to it.
// Inputs with a type that cannot feed a vertex buffer are skipped.
//
// Parameters:
//   - source: WGSL source
//
// Returns:
//   - []VertexInput: the inputs, empty if there is no vertex entry point
func ParseVertexInputs(source string) []VertexInput {
	cleaned := StripComments(source)
	loc := vertexEntryRegex.FindStringSubmatchIndex(cleaned)
	if loc == nil {
		return nil
	}
	params, ok := balancedParens(cleaned, loc[1]-1)
	if !ok {
		return nil
	}

	structs := make(map[string]parsedStruct)
	for _, ps := range parseStructBlocks(cleaned) {
		structs[ps.name] = ps
	}

	var inputs []VertexInput
	add := func(f parsedField) {
		if f.isBuiltin || f.location < 0 {
			return
		}
		info, ok := vertexFormats[f.typeName]
		if !ok {
			return
		}
		inputs = append(inputs, VertexInput{Name: f.name, Location: f.location, Format: info.format, Size: info.size})
	}

	for _, param := range parseFields(params) {
		if ps, ok := structs[param.typeName]; ok && param.location < 0 && !param.isBuiltin {
			for _, f := range ps.fields {
				add(f)
			}
			continue
		}
		add(param)
	}

	sort.Slice(inputs, func(i, j int) bool {
		return inputs[i].Location < inputs[j].Location
	})
	return inputs
}

// ParseUniforms returns every var<uniform> declaration in the source, sorted by group then binding.
//
// Parameters:
//   - source: WGSL source
//
// Returns:
//   - []Uniform: the declarations
func ParseUniforms(source string) []Uniform {
	cleaned := StripComments(source)
	known := computeStructSizes(parseStructBlocks(cleaned))

	var uniforms []Uniform
	for _, m := range uniformDeclRegex.FindAllStringSubmatch(cleaned, -1) {
		group, _ := strconv.Atoi(m[1])
		binding, _ := strconv.Atoi(m[2])
		u := Uniform{Name: m[3], Group: group, Binding: binding}
		if layout, ok := resolveTypeLayout(strings.TrimSpace(m[4]), known); ok {
			u.Size = roundUpAlign(16, layout.size)
		}
		uniforms = append(uniforms, u)
	}

	sort.Slice(uniforms, func(i, j int) bool {
		if uniforms[i].Group != uniforms[j].Group {
			return uniforms[i].Group < uniforms[j].Group
		}
		return uniforms[i].Binding < uniforms[j].Binding
	})
	return uniforms
}
