package service

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"calibration_console/internal/models"

	"github.com/go-playground/validator/v10"
)

// ValidationError is returned when a form fails validation. Nothing is sent.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// SystemCalibrationForm starts a system calibration.
type SystemCalibrationForm struct {
	BoardType string `json:"boardtype"`
}

// StandardCalibrationForm starts a standard calibration against a reference.
type StandardCalibrationForm struct {
	BoardID   string `json:"boardid"`
	BoardType string `json:"boardtype"`
	Reference string `json:"reference"`
}

// SignoffComment is one comment line attached to a detector.
type SignoffComment struct {
	DetID   string `json:"detid"`
	Comment string `json:"comment"`
}

// SignoffForm submits a finished calibration to the central server.
type SignoffForm struct {
	Comments []SignoffComment `json:"comments"`
	User     string           `json:"user"`
	Password string           `json:"pwd"`
}

// RerunForm reruns or extends one calibration process on one detector.
type RerunForm struct {
	Action string `json:"action"`
	DetID  *int   `json:"detid"`
	Extend bool   `json:"extend"`
}

// RawCommandForm sends a raw command line to the rig.
type RawCommandForm struct {
	Input string `json:"input"`
}

var rerunActions = map[string]bool{
	"visalign":  true,
	"zscan":     true,
	"lowlight":  true,
	"lumialign": true,
	"vhscan":    true,
}

// Settings forms. Values arrive as numbers or numeric strings; list fields
// also accept comma or space separated strings.

type ImageSettings struct {
	Threshold *float64 `json:"threshold" validate:"required,gte=0"`
	Blur      *float64 `json:"blur" validate:"required,gte=0"`
	Lumi      *float64 `json:"lumi" validate:"required,gte=0"`
	Size      *float64 `json:"size" validate:"required,gte=0"`
	Ratio     *float64 `json:"ratio" validate:"required,gte=0"`
	Poly      *float64 `json:"poly" validate:"required,gte=0"`
}

type ZScanSettings struct {
	Samples     *float64  `json:"samples" validate:"required,gt=0"`
	PWM         []float64 `json:"pwm" validate:"required,min=1"`
	ZListDense  []float64 `json:"zlist_dense" validate:"required,min=1"`
	ZListSparse []float64 `json:"zlist_sparse" validate:"required,min=1"`
}

type LowlightSettings struct {
	Samples *float64 `json:"samples" validate:"required,gt=0"`
	PWM     *float64 `json:"pwm" validate:"required,gte=0"`
	ZVal    *float64 `json:"zval" validate:"required"`
}

type LumialignSettings struct {
	Samples  *float64 `json:"samples" validate:"required,gt=0"`
	PWM      *float64 `json:"pwm" validate:"required,gte=0"`
	ZVal     *float64 `json:"zval" validate:"required"`
	Range    *float64 `json:"range" validate:"required,gt=0"`
	Distance *float64 `json:"distance" validate:"required,gt=0"`
}

type PicoscopeSettings struct {
	ChannelARange    *float64 `json:"channel-a-range" validate:"required"`
	ChannelBRange    *float64 `json:"channel-b-range" validate:"required"`
	TriggerChannel   *float64 `json:"trigger-channel" validate:"required"`
	TriggerLevel     *float64 `json:"trigger-level" validate:"required"`
	TriggerDirection *float64 `json:"trigger-direction" validate:"required"`
	TriggerDelay     *float64 `json:"trigger-delay" validate:"required,gte=0"`
	Presample        *float64 `json:"presample" validate:"required,gte=0"`
	Postsample       *float64 `json:"postsample" validate:"required,gte=0"`
	Blocksize        *float64 `json:"blocksize" validate:"required,gt=0"`
}

type DRSSettings struct {
	TriggerDelay *float64 `json:"drs-triggerdelay" validate:"required,gte=0"`
	SampleRate   *float64 `json:"drs-samplerate" validate:"required,gt=0"`
	Samples      *float64 `json:"drs-samples" validate:"required,gt=0"`
}

// settingsForms maps the settings kind to its form type. The action id is
// kind + "-settings".
var settingsForms = map[string]reflect.Type{
	"image":     reflect.TypeOf(ImageSettings{}),
	"zscan":     reflect.TypeOf(ZScanSettings{}),
	"lowlight":  reflect.TypeOf(LowlightSettings{}),
	"lumialign": reflect.TypeOf(LumialignSettings{}),
	"picoscope": reflect.TypeOf(PicoscopeSettings{}),
	"drs":       reflect.TypeOf(DRSSettings{}),
}

// SettingsKinds lists the accepted settings kinds.
func SettingsKinds() []string {
	return []string{"image", "zscan", "lowlight", "lumialign", "picoscope", "drs"}
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(jsonFieldName)
	return v
}

func jsonFieldName(f reflect.StructField) string {
	name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	return name
}

// SplitFloatList parses "1, 2 3" into [1 2 3]. Empty tokens are skipped.
func SplitFloatList(s string) ([]float64, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	})
	out := make([]float64, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not a number", f)
		}
		out = append(out, v)
	}
	return out, nil
}

// decodeSettings normalises a raw settings body into the form for kind,
// validates it and returns the payload to emit.
func decodeSettings(v *validator.Validate, kind string, body []byte) (map[string]any, error) {
	typ, ok := settingsForms[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s-settings", models.ErrUnknownAction, kind)
	}

	var raw map[string]json.RawMessage
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, &ValidationError{Field: "body", Message: "settings must be a JSON object"}
	}

	payload := make(map[string]any, typ.NumField())
	for i := 0; i < typ.NumField(); i++ {
		f := typ.Field(i)
		name := jsonFieldName(f)
		rawVal, present := raw[name]
		if !present || string(rawVal) == "null" {
			continue
		}
		if f.Type.Kind() == reflect.Slice {
			list, err := parseFloatList(rawVal)
			if err != nil {
				return nil, &ValidationError{Field: name, Message: err.Error()}
			}
			payload[name] = list
			continue
		}
		n, err := parseNumber(rawVal)
		if err != nil {
			return nil, &ValidationError{Field: name, Message: err.Error()}
		}
		payload[name] = n
	}

	normalised, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s settings: %w", kind, err)
	}
	form := reflect.New(typ)
	if err := json.Unmarshal(normalised, form.Interface()); err != nil {
		return nil, fmt.Errorf("decode %s settings: %w", kind, err)
	}
	if err := v.Struct(form.Interface()); err != nil {
		return nil, toValidationError(err)
	}
	return payload, nil
}

func parseNumber(raw json.RawMessage) (float64, error) {
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		if v, err := n.Float64(); err == nil {
			return v, nil
		}
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if v, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return v, nil
		}
	}
	return 0, fmt.Errorf("must be numeric")
}

func parseFloatList(raw json.RawMessage) ([]float64, error) {
	var list []float64
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("must be a list of numbers")
	}
	return SplitFloatList(s)
}

func toValidationError(err error) error {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok || len(verrs) == 0 {
		return &ValidationError{Field: "body", Message: err.Error()}
	}
	fe := verrs[0]
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return &ValidationError{Field: field, Message: field + " not specified"}
	case "gt":
		return &ValidationError{Field: field, Message: fmt.Sprintf("%s must be greater than %s", field, fe.Param())}
	case "gte":
		return &ValidationError{Field: field, Message: fmt.Sprintf("%s must be at least %s", field, fe.Param())}
	case "min":
		return &ValidationError{Field: field, Message: fmt.Sprintf("%s needs at least %s values", field, fe.Param())}
	default:
		return &ValidationError{Field: field, Message: field + " is invalid"}
	}
}
