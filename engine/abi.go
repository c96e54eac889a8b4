package engine

import (
	"regexp"
	"strings"

	"github.com/tetratelabs/wazero/api"
	"go.bytecodealliance.org/wit"

	rterrors "github.com/visionpipe/graph-runtime/errors"
)

// ABI is a table of expected export signatures, parsed from WIT-style text.
// Core modules carry no type metadata, so the expected graph engine surface is
// declared up front and validated against the instantiated module.
type ABI struct {
	funcs map[string]*funcSignature
}

type funcSignature struct {
	params  []wit.Type
	results []wit.Type
}

// funcPattern matches lines of the form: name: func(a: u32, b: u64) -> s32;
var funcPattern = regexp.MustCompile(`([a-zA-Z_][a-zA-Z0-9_-]*)\s*:\s*func\s*\(([^)]*)\)(?:\s*->\s*([^;]+))?`)

// ParseABI extracts function signatures from WIT-style text.
func ParseABI(witText string) (*ABI, error) {
	funcs := make(map[string]*funcSignature)

	matches := funcPattern.FindAllStringSubmatch(witText, -1)
	for _, match := range matches {
		name := match[1]
		paramsStr := strings.TrimSpace(match[2])
		resultStr := ""
		if len(match) > 3 {
			resultStr = strings.TrimSpace(match[3])
		}

		sig := &funcSignature{}

		if paramsStr != "" {
			for _, p := range strings.Split(paramsStr, ",") {
				typStr := strings.TrimSpace(p)
				if idx := strings.LastIndex(p, ":"); idx != -1 {
					typStr = strings.TrimSpace(p[idx+1:])
				}
				t, err := wit.ParseType(typStr)
				if err != nil {
					return nil, rterrors.Wrap(rterrors.PhaseParse, rterrors.KindInvalidData, err, "parse param type "+typStr)
				}
				sig.params = append(sig.params, t)
			}
		}

		if resultStr != "" && resultStr != "()" {
			t, err := wit.ParseType(resultStr)
			if err != nil {
				return nil, rterrors.Wrap(rterrors.PhaseParse, rterrors.KindInvalidData, err, "parse result type "+resultStr)
			}
			sig.results = []wit.Type{t}
		}

		funcs[name] = sig
	}

	if len(funcs) == 0 {
		return nil, rterrors.InvalidInput(rterrors.PhaseParse, "no functions found in ABI text")
	}

	return &ABI{funcs: funcs}, nil
}

// MustParseABI is ParseABI for package-level ABI constants.
func MustParseABI(witText string) *ABI {
	abi, err := ParseABI(witText)
	if err != nil {
		panic(err)
	}
	return abi
}

// Signature returns the declared param and result types for a function.
func (a *ABI) Signature(name string) ([]wit.Type, []wit.Type, error) {
	sig, ok := a.funcs[name]
	if !ok {
		return nil, nil, rterrors.NotFound(rterrors.PhaseParse, "function", name)
	}
	return sig.params, sig.results, nil
}

// Names returns the declared function names.
func (a *ABI) Names() []string {
	names := make([]string, 0, len(a.funcs))
	for name := range a.funcs {
		names = append(names, name)
	}
	return names
}

// Validate checks that the instance exports every declared function with a
// compatible core (flattened) shape. Fails fast at load time rather than on
// the first call.
func (a *ABI) Validate(inst *Instance) error {
	for name, sig := range a.funcs {
		fn := inst.exportedFunction(name)
		if fn == nil {
			return rterrors.NotFound(rterrors.PhaseLoad, "export", name)
		}

		wantParams, err := flattenTypes(sig.params)
		if err != nil {
			return err
		}
		wantResults, err := flattenTypes(sig.results)
		if err != nil {
			return err
		}

		def := fn.Definition()
		if !valueTypesEqual(def.ParamTypes(), wantParams) || !valueTypesEqual(def.ResultTypes(), wantResults) {
			return rterrors.New(rterrors.PhaseLoad, rterrors.KindInvalidData).
				Path(name).
				Detail("export signature mismatch: have (%v)->(%v), want (%v)->(%v)",
					def.ParamTypes(), def.ResultTypes(), wantParams, wantResults).
				Build()
		}
	}
	return nil
}

// flattenTypes maps WIT types onto core value types per the canonical ABI.
// Only the shapes the graph engine surface uses are supported.
func flattenTypes(types []wit.Type) ([]api.ValueType, error) {
	var flat []api.ValueType
	for _, t := range types {
		switch t.(type) {
		case wit.Bool, wit.U8, wit.U16, wit.U32, wit.S8, wit.S16, wit.S32, wit.Char:
			flat = append(flat, api.ValueTypeI32)
		case wit.U64, wit.S64:
			flat = append(flat, api.ValueTypeI64)
		case wit.F32:
			flat = append(flat, api.ValueTypeF32)
		case wit.F64:
			flat = append(flat, api.ValueTypeF64)
		case wit.String:
			flat = append(flat, api.ValueTypeI32, api.ValueTypeI32)
		default:
			return nil, rterrors.New(rterrors.PhaseParse, rterrors.KindUnsupported).
				Detail("unsupported ABI type: %T", t).
				Build()
		}
	}
	return flat, nil
}

func valueTypesEqual(a, b []api.ValueType) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
