// Package translate converts between OCPP variable values and the raw
// big-endian device bytes Modbus registers and ECHONET Lite properties
// carry on the wire (§4.8).
package translate

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/ocppgw/ocpp-gateway/pkg/config"
	"github.com/ocppgw/ocpp-gateway/pkg/gwerr"
)

// Translator converts OCPP values to and from device bytes for one mapping
// template.
type Translator struct {
	template config.MappingTemplateConfig
	byName   map[string]config.VariableMappingConfig
}

// New builds a Translator from a mapping template, indexing its variables
// by name.
func New(template config.MappingTemplateConfig) *Translator {
	byName := make(map[string]config.VariableMappingConfig, len(template.Variables))
	for _, v := range template.Variables {
		byName[v.Name] = v
	}
	return &Translator{template: template, byName: byName}
}

func (t *Translator) lookup(name string) (config.VariableMappingConfig, error) {
	v, ok := t.byName[name]
	if !ok {
		return config.VariableMappingConfig{}, gwerr.NewTranslation("translate.Translator", "variable not found in mapping template: "+name)
	}
	return v, nil
}

// ToDevice converts an OCPP value into raw device bytes for the named
// variable, applying scaling and enum mapping as configured.
func (t *Translator) ToDevice(name string, value any) ([]byte, error) {
	v, err := t.lookup(name)
	if err != nil {
		return nil, err
	}
	if v.ReadOnly {
		return nil, gwerr.NewTranslation("translate.Translator.ToDevice", "cannot write to read-only variable: "+name)
	}

	switch v.DataType {
	case "bool":
		b, ok := value.(bool)
		if !ok {
			return nil, typeErr("ToDevice", "boolean", name)
		}
		if b {
			return []byte{1}, nil
		}
		return []byte{0}, nil

	case "u8":
		n, err := asInteger("ToDevice", "uint8", name, value)
		if err != nil {
			return nil, err
		}
		scaled := applyScaling(n, v.Scale, true)
		return []byte{byte(roundHalfToEven(scaled))}, nil

	case "i8":
		n, err := asInteger("ToDevice", "int8", name, value)
		if err != nil {
			return nil, err
		}
		scaled := applyScaling(n, v.Scale, true)
		return []byte{byte(int8(roundHalfToEven(scaled)))}, nil

	case "u16":
		n, err := asInteger("ToDevice", "uint16", name, value)
		if err != nil {
			return nil, err
		}
		scaled := applyScaling(n, v.Scale, true)
		data := make([]byte, 2)
		binary.BigEndian.PutUint16(data, uint16(roundHalfToEven(scaled)))
		return data, nil

	case "i16":
		n, err := asInteger("ToDevice", "int16", name, value)
		if err != nil {
			return nil, err
		}
		scaled := applyScaling(n, v.Scale, true)
		data := make([]byte, 2)
		binary.BigEndian.PutUint16(data, uint16(int16(roundHalfToEven(scaled))))
		return data, nil

	case "u32":
		n, err := asInteger("ToDevice", "uint32", name, value)
		if err != nil {
			return nil, err
		}
		scaled := applyScaling(n, v.Scale, true)
		data := make([]byte, 4)
		binary.BigEndian.PutUint32(data, uint32(roundHalfToEven(scaled)))
		return data, nil

	case "i32":
		n, err := asInteger("ToDevice", "int32", name, value)
		if err != nil {
			return nil, err
		}
		scaled := applyScaling(n, v.Scale, true)
		data := make([]byte, 4)
		binary.BigEndian.PutUint32(data, uint32(int32(roundHalfToEven(scaled))))
		return data, nil

	case "u64":
		n, err := asInteger("ToDevice", "uint64", name, value)
		if err != nil {
			return nil, err
		}
		scaled := applyScaling(n, v.Scale, true)
		data := make([]byte, 8)
		binary.BigEndian.PutUint64(data, uint64(roundHalfToEven(scaled)))
		return data, nil

	case "i64":
		n, err := asInteger("ToDevice", "int64", name, value)
		if err != nil {
			return nil, err
		}
		scaled := applyScaling(n, v.Scale, true)
		data := make([]byte, 8)
		binary.BigEndian.PutUint64(data, uint64(int64(roundHalfToEven(scaled))))
		return data, nil

	case "f32":
		n, err := asFloat("ToDevice", "float32", name, value)
		if err != nil {
			return nil, err
		}
		scaled := applyScaling(n, v.Scale, true)
		data := make([]byte, 4)
		binary.BigEndian.PutUint32(data, math.Float32bits(float32(scaled)))
		return data, nil

	case "f64":
		n, err := asFloat("ToDevice", "float64", name, value)
		if err != nil {
			return nil, err
		}
		scaled := applyScaling(n, v.Scale, true)
		data := make([]byte, 8)
		binary.BigEndian.PutUint64(data, math.Float64bits(scaled))
		return data, nil

	case "string":
		s, ok := value.(string)
		if !ok {
			return nil, typeErr("ToDevice", "string", name)
		}
		return []byte(s), nil

	case "binary":
		b, ok := value.([]byte)
		if !ok {
			return nil, typeErr("ToDevice", "binary", name)
		}
		return b, nil

	case "enum":
		s, ok := value.(string)
		if !ok {
			return nil, typeErr("ToDevice", "string", name)
		}
		code, err := enumToInt(v.EnumMapping, s)
		if err != nil {
			return nil, err
		}
		data := make([]byte, 2)
		binary.BigEndian.PutUint16(data, uint16(int16(code)))
		return data, nil

	default:
		return nil, gwerr.NewTranslation("translate.Translator.ToDevice", "unsupported data type: "+v.DataType)
	}
}

// ToOcpp converts raw device bytes into an OCPP value for the named
// variable, applying scaling and enum mapping as configured.
func (t *Translator) ToOcpp(name string, data []byte) (any, error) {
	v, err := t.lookup(name)
	if err != nil {
		return nil, err
	}

	required := requiredSize(v.DataType)
	if required > 0 && len(data) < required {
		return nil, gwerr.NewTranslation("translate.Translator.ToOcpp", fmt.Sprintf("device data too small for data type %s: got %d bytes, want %d", v.DataType, len(data), required))
	}

	switch v.DataType {
	case "bool":
		return data[0] != 0, nil
	case "u8":
		return applyScaling(float64(data[0]), v.Scale, false), nil
	case "i8":
		return applyScaling(float64(int8(data[0])), v.Scale, false), nil
	case "u16":
		return applyScaling(float64(binary.BigEndian.Uint16(data)), v.Scale, false), nil
	case "i16":
		return applyScaling(float64(int16(binary.BigEndian.Uint16(data))), v.Scale, false), nil
	case "u32":
		return applyScaling(float64(binary.BigEndian.Uint32(data)), v.Scale, false), nil
	case "i32":
		return applyScaling(float64(int32(binary.BigEndian.Uint32(data))), v.Scale, false), nil
	case "u64":
		return applyScaling(float64(binary.BigEndian.Uint64(data)), v.Scale, false), nil
	case "i64":
		return applyScaling(float64(int64(binary.BigEndian.Uint64(data))), v.Scale, false), nil
	case "f32":
		return applyScaling(float64(math.Float32frombits(binary.BigEndian.Uint32(data))), v.Scale, false), nil
	case "f64":
		return applyScaling(math.Float64frombits(binary.BigEndian.Uint64(data)), v.Scale, false), nil
	case "string":
		return string(data), nil
	case "binary":
		out := make([]byte, len(data))
		copy(out, data)
		return out, nil
	case "enum":
		var code int
		if len(data) >= 2 {
			code = int(int16(binary.BigEndian.Uint16(data)))
		} else {
			code = int(int8(data[0]))
		}
		return enumToString(v.EnumMapping, code)
	default:
		return nil, gwerr.NewTranslation("translate.Translator.ToOcpp", "unsupported data type: "+v.DataType)
	}
}

func requiredSize(dataType string) int {
	switch dataType {
	case "bool", "u8", "i8":
		return 1
	case "u16", "i16", "enum":
		return 2
	case "u32", "i32", "f32":
		return 4
	case "u64", "i64", "f64":
		return 8
	default:
		return 0
	}
}

// applyScaling divides by scale on the way to a device, multiplies by
// scale on the way to OCPP (§4.8). A zero scale is treated as 1 so an
// unconfigured mapping is a no-op rather than a divide-by-zero.
func applyScaling(value, scale float64, toDevice bool) float64 {
	if scale == 0 {
		scale = 1
	}
	if toDevice {
		return value / scale
	}
	return value * scale
}

// roundHalfToEven rounds to the nearest integer, breaking exact .5 ties
// toward the nearest even integer (§4.8), matching math.RoundToEven.
func roundHalfToEven(value float64) float64 {
	return math.RoundToEven(value)
}

func asInteger(op, wantType, name string, value any) (float64, error) {
	switch n := value.(type) {
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case float64:
		return n, nil
	default:
		return 0, typeErr(op, wantType, name)
	}
}

func asFloat(op, wantType, name string, value any) (float64, error) {
	return asInteger(op, wantType, name, value)
}

func typeErr(op, wantType, name string) error {
	return gwerr.NewTranslation("translate.Translator."+op, fmt.Sprintf("expected %s value for variable %s", wantType, name))
}

func enumToString(enumMap map[int]string, code int) (string, error) {
	s, ok := enumMap[code]
	if !ok {
		return "", gwerr.NewTranslation("translate.Translator.ToOcpp", fmt.Sprintf("enum value not found in mapping: %d", code))
	}
	return s, nil
}

func enumToInt(enumMap map[int]string, value string) (int, error) {
	for code, s := range enumMap {
		if s == value {
			return code, nil
		}
	}
	return 0, gwerr.NewTranslation("translate.Translator.ToDevice", "enum string not found in mapping: "+value)
}
