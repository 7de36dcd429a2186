// Package nutrition holds the core nutrition-risk domain: survey features,
// risk labels, advice value objects and the nutrient risk rule engine.
package nutrition

// Frequency is the closed answer set shared by the CAEC and CALC questions
type Frequency string

const (
	FrequencyNo         Frequency = "no"
	FrequencySometimes  Frequency = "Sometimes"
	FrequencyFrequently Frequency = "Frequently"
	FrequencyAlways     Frequency = "Always"
)

// AtLeastFrequently reports whether the answer is Frequently or Always
func (f Frequency) AtLeastFrequently() bool {
	return f == FrequencyFrequently || f == FrequencyAlways
}

// YesNo is a binary survey answer
type YesNo string

const (
	Yes YesNo = "yes"
	No  YesNo = "no"
)

// TransportMode is the usual mode of transportation (MTRANS)
type TransportMode string

const (
	TransportWalking              TransportMode = "Walking"
	TransportBicycle              TransportMode = "Bicycle"
	TransportAutomobile           TransportMode = "Automobile"
	TransportMotorbike            TransportMode = "Motorbike"
	TransportPublicTransportation TransportMode = "Public_Transportation"
)

// Survey field names, as they appear on the wire and in the model artifact
const (
	FieldAge    = "Age"
	FieldHeight = "Height"
	FieldWeight = "Weight"
	FieldFCVC   = "FCVC"
	FieldFAVC   = "FAVC"
	FieldNCP    = "NCP"
	FieldCAEC   = "CAEC"
	FieldCH2O   = "CH2O"
	FieldFAF    = "FAF"
	FieldTUE    = "TUE"
	FieldSMOKE  = "SMOKE"
	FieldCALC   = "CALC"
	FieldMTRANS = "MTRANS"
	FieldSCC    = "SCC"
)

// FeatureOrder is the canonical column order fed to the classifier
var FeatureOrder = []string{
	FieldAge,
	FieldHeight,
	FieldWeight,
	FieldFCVC,
	FieldFAVC,
	FieldNCP,
	FieldCAEC,
	FieldCH2O,
	FieldFAF,
	FieldTUE,
	FieldSMOKE,
	FieldCALC,
	FieldMTRANS,
	FieldSCC,
}

// FeatureRecord is a validated survey answer set. Every field is present and
// inside its declared domain; the validator is the only producer.
type FeatureRecord struct {
	Age    int           `json:"Age"`
	Height float64       `json:"Height"`
	Weight float64       `json:"Weight"`
	FCVC   int           `json:"FCVC"` // vegetables in meals, 1-3
	FAVC   YesNo         `json:"FAVC"` // high caloric food frequently
	NCP    float64       `json:"NCP"`  // main meals per day, 1-4
	CAEC   Frequency     `json:"CAEC"` // eating between meals
	CH2O   float64       `json:"CH2O"` // litres of water per day, 1-3
	FAF    float64       `json:"FAF"`  // physical activity frequency, 0-3
	TUE    int           `json:"TUE"`  // time using devices, 0-2
	SMOKE  YesNo         `json:"SMOKE"`
	CALC   Frequency     `json:"CALC"` // alcohol
	MTRANS TransportMode `json:"MTRANS"`
	SCC    YesNo         `json:"SCC"` // monitors calories
}

// IsCategorical reports whether a field is encoded through a category table
func IsCategorical(field string) bool {
	switch field {
	case FieldFAVC, FieldCAEC, FieldSMOKE, FieldCALC, FieldMTRANS, FieldSCC:
		return true
	}
	return false
}

// Numeric returns the numeric value of a non-categorical field
func (r FeatureRecord) Numeric(field string) (float64, bool) {
	switch field {
	case FieldAge:
		return float64(r.Age), true
	case FieldHeight:
		return r.Height, true
	case FieldWeight:
		return r.Weight, true
	case FieldFCVC:
		return float64(r.FCVC), true
	case FieldNCP:
		return r.NCP, true
	case FieldCH2O:
		return r.CH2O, true
	case FieldFAF:
		return r.FAF, true
	case FieldTUE:
		return float64(r.TUE), true
	}
	return 0, false
}

// Category returns the raw value of a categorical field
func (r FeatureRecord) Category(field string) (string, bool) {
	switch field {
	case FieldFAVC:
		return string(r.FAVC), true
	case FieldCAEC:
		return string(r.CAEC), true
	case FieldSMOKE:
		return string(r.SMOKE), true
	case FieldCALC:
		return string(r.CALC), true
	case FieldMTRANS:
		return string(r.MTRANS), true
	case FieldSCC:
		return string(r.SCC), true
	}
	return "", false
}
