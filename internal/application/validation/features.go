// Package validation turns raw survey answers into a canonical FeatureRecord.
// Field domains are declared once, as validator tags on surveyInput.
package validation

import (
	"fmt"
	"math"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/nutrisense/api/internal/domain/nutrition"
	"go.uber.org/zap"
)

// surveyInput mirrors FeatureRecord with pointer fields so that a missing
// answer is distinguishable from a zero answer
type surveyInput struct {
	Age    *float64 `validate:"required,gte=1,lte=125"`
	Height *float64 `validate:"required,gte=0.5,lte=2.8"`
	Weight *float64 `validate:"required,gte=10,lte=350"`
	FCVC   *float64 `validate:"required,gte=1,lte=3"`
	FAVC   *string  `validate:"required,oneof=yes no"`
	NCP    *float64 `validate:"required,gte=1,lte=4"`
	CAEC   *string  `validate:"required,oneof=no Sometimes Frequently Always"`
	CH2O   *float64 `validate:"required,gte=1,lte=3"`
	FAF    *float64 `validate:"required,gte=0,lte=3"`
	TUE    *float64 `validate:"required,gte=0,lte=2"`
	SMOKE  *string  `validate:"required,oneof=yes no"`
	CALC   *string  `validate:"required,oneof=no Sometimes Frequently Always"`
	MTRANS *string  `validate:"required,oneof=Walking Bicycle Automobile Motorbike Public_Transportation"`
	SCC    *string  `validate:"required,oneof=yes no"`
}

// integerFields must carry whole numbers
var integerFields = map[string]bool{
	nutrition.FieldAge:  true,
	nutrition.FieldFCVC: true,
	nutrition.FieldTUE:  true,
}

// Domain describes the accepted values of one field
type Domain struct {
	Field   string
	Numeric bool
	Integer bool
	Min     string
	Max     string
	Values  []string
}

// Accepted renders the domain for error messages
func (d Domain) Accepted() string {
	if d.Numeric {
		kind := "number"
		if d.Integer {
			kind = "integer"
		}
		return fmt.Sprintf("%s in [%s, %s]", kind, d.Min, d.Max)
	}
	return "one of: " + strings.Join(d.Values, ", ")
}

// FeatureValidator validates raw survey answers
type FeatureValidator struct {
	validate *validator.Validate
	domains  map[string]Domain
	logger   *zap.Logger
}

// NewFeatureValidator creates a new feature validator
func NewFeatureValidator(logger *zap.Logger) *FeatureValidator {
	return &FeatureValidator{
		validate: validator.New(),
		domains:  domainsFromTags(),
		logger:   logger.Named("feature-validator"),
	}
}

// Domains returns the declared domain of every field in canonical order
func (v *FeatureValidator) Domains() []Domain {
	out := make([]Domain, 0, len(nutrition.FeatureOrder))
	for _, f := range nutrition.FeatureOrder {
		out = append(out, v.domains[f])
	}
	return out
}

// Validate checks every field of raw and returns a FeatureRecord, or a
// *nutrition.ValidationError naming every offending field
func (v *FeatureValidator) Validate(raw map[string]interface{}) (nutrition.FeatureRecord, error) {
	var (
		input   surveyInput
		fields  []nutrition.FieldError
		flagged = make(map[string]bool)
	)

	reject := func(field, reason string) {
		flagged[field] = true
		fe := nutrition.FieldError{Field: field, Reason: reason}
		if d, ok := v.domains[field]; ok {
			fe.Accepted = d.Accepted()
		}
		fields = append(fields, fe)
	}

	for key := range raw {
		if _, known := v.domains[key]; !known {
			reject(key, "unknown field")
		}
	}

	target := reflect.ValueOf(&input).Elem()
	for _, field := range nutrition.FeatureOrder {
		value, present := raw[field]
		if !present || value == nil {
			continue // reported by the required tag
		}

		slot := target.FieldByName(field)
		if v.domains[field].Numeric {
			n, ok := toFloat(value)
			if !ok {
				reject(field, fmt.Sprintf("must be a number, got %T", value))
				continue
			}
			if integerFields[field] && n != math.Trunc(n) {
				reject(field, fmt.Sprintf("must be a whole number, got %v", n))
				continue
			}
			slot.Set(reflect.ValueOf(&n))
			continue
		}

		s, ok := value.(string)
		if !ok {
			reject(field, fmt.Sprintf("must be a string, got %T", value))
			continue
		}
		slot.Set(reflect.ValueOf(&s))
	}

	if err := v.validate.Struct(input); err != nil {
		verrs, ok := err.(validator.ValidationErrors)
		if !ok {
			return nutrition.FeatureRecord{}, fmt.Errorf("validate features: %w", err)
		}
		for _, fe := range verrs {
			if flagged[fe.Field()] {
				continue
			}
			reject(fe.Field(), v.reason(fe))
		}
	}

	if len(fields) > 0 {
		sortFieldErrors(fields)
		v.logger.Debug("Feature validation failed", zap.Int("fields", len(fields)))
		return nutrition.FeatureRecord{}, &nutrition.ValidationError{Fields: fields}
	}

	return nutrition.FeatureRecord{
		Age:    int(*input.Age),
		Height: *input.Height,
		Weight: *input.Weight,
		FCVC:   int(*input.FCVC),
		FAVC:   nutrition.YesNo(*input.FAVC),
		NCP:    *input.NCP,
		CAEC:   nutrition.Frequency(*input.CAEC),
		CH2O:   *input.CH2O,
		FAF:    *input.FAF,
		TUE:    int(*input.TUE),
		SMOKE:  nutrition.YesNo(*input.SMOKE),
		CALC:   nutrition.Frequency(*input.CALC),
		MTRANS: nutrition.TransportMode(*input.MTRANS),
		SCC:    nutrition.YesNo(*input.SCC),
	}, nil
}

// ValidateRecord re-checks an already typed record against the same domains
func (v *FeatureValidator) ValidateRecord(r nutrition.FeatureRecord) error {
	raw := map[string]interface{}{
		nutrition.FieldAge:    float64(r.Age),
		nutrition.FieldHeight: r.Height,
		nutrition.FieldWeight: r.Weight,
		nutrition.FieldFCVC:   float64(r.FCVC),
		nutrition.FieldFAVC:   string(r.FAVC),
		nutrition.FieldNCP:    r.NCP,
		nutrition.FieldCAEC:   string(r.CAEC),
		nutrition.FieldCH2O:   r.CH2O,
		nutrition.FieldFAF:    r.FAF,
		nutrition.FieldTUE:    float64(r.TUE),
		nutrition.FieldSMOKE:  string(r.SMOKE),
		nutrition.FieldCALC:   string(r.CALC),
		nutrition.FieldMTRANS: string(r.MTRANS),
		nutrition.FieldSCC:    string(r.SCC),
	}
	_, err := v.Validate(raw)
	return err
}

func (v *FeatureValidator) reason(fe validator.FieldError) string {
	d := v.domains[fe.Field()]
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gte", "lte":
		return fmt.Sprintf("%v is out of range [%s, %s]", derefValue(fe.Value()), d.Min, d.Max)
	case "oneof":
		return fmt.Sprintf("%q is not one of: %s", derefValue(fe.Value()), strings.Join(d.Values, ", "))
	default:
		return fmt.Sprintf("failed %s check", fe.Tag())
	}
}

// domainsFromTags derives the Domain table from the surveyInput tags
func domainsFromTags() map[string]Domain {
	out := make(map[string]Domain)
	t := reflect.TypeOf(surveyInput{})
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		d := Domain{
			Field:   sf.Name,
			Numeric: sf.Type.Elem().Kind() == reflect.Float64,
			Integer: integerFields[sf.Name],
		}
		for _, rule := range strings.Split(sf.Tag.Get("validate"), ",") {
			name, param, _ := strings.Cut(rule, "=")
			switch name {
			case "gte":
				d.Min = param
			case "lte":
				d.Max = param
			case "oneof":
				d.Values = strings.Fields(param)
			}
		}
		out[sf.Name] = d
	}
	return out
}

func sortFieldErrors(fields []nutrition.FieldError) {
	rank := make(map[string]int, len(nutrition.FeatureOrder))
	for i, f := range nutrition.FeatureOrder {
		rank[f] = i
	}
	position := func(field string) int {
		if r, ok := rank[field]; ok {
			return r
		}
		return len(rank)
	}
	sort.SliceStable(fields, func(i, j int) bool {
		pi, pj := position(fields[i].Field), position(fields[j].Field)
		if pi != pj {
			return pi < pj
		}
		return fields[i].Field < fields[j].Field
	})
}

func toFloat(value interface{}) (float64, bool) {
	switch n := value.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case interface{ Float64() (float64, error) }:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func derefValue(v interface{}) interface{} {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Ptr && !rv.IsNil() {
		return rv.Elem().Interface()
	}
	return v
}
