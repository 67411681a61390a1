package entities

// ExtraField is a free-form (name, value) attribute attached to a persona request.
type ExtraField struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// PersonaRequest holds the attributes of the synthetic patient to generate.
// Department is required; ChiefComplaint is required whenever the persona is
// to be grounded in RAG keyword data.
type PersonaRequest struct {
	Department     string `json:"department"`
	Purpose        string `json:"purpose,omitempty"`
	Name           string `json:"name,omitempty"`
	Gender         string `json:"gender,omitempty"`
	Age            string `json:"age,omitempty"`
	Prefecture     string `json:"prefecture,omitempty"`
	Municipality   string `json:"municipality,omitempty"`
	Occupation     string `json:"occupation,omitempty"`
	IncomeBracket  string `json:"income,omitempty"`
	Hobby          string `json:"hobby,omitempty"`
	LifeEvents     string `json:"life_events,omitempty"`
	PatientType    string `json:"patient_type,omitempty"`
	ChiefComplaint string `json:"chief_complaint,omitempty"`

	FixedExtras map[string]string `json:"fixed_extras,omitempty"`
	FreeExtras  []ExtraField      `json:"free_extras,omitempty"`
}

// PersonaDetails holds the six generated free-text fields.
type PersonaDetails struct {
	Personality string `json:"personality"`
	Reason      string `json:"reason"`
	Behavior    string `json:"behavior"`
	Reviews     string `json:"reviews"`
	Values      string `json:"values"`
	Demands     string `json:"demands"`
}

// Empty reports whether every generated field is blank.
func (d PersonaDetails) Empty() bool {
	return d.Personality == "" && d.Reason == "" && d.Behavior == "" &&
		d.Reviews == "" && d.Values == "" && d.Demands == ""
}

// PersonaResult is the fused output of one persona generation request.
type PersonaResult struct {
	Profile  PersonaRequest `json:"profile"`
	Details  PersonaDetails `json:"details"`
	ImageURL string         `json:"image_url"`
}
