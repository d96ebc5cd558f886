package record

// Pupil states offered by the form.
const (
	PupilsIsochoric  = "Isocóricas"
	PupilsAnisocoric = "Anisocóricas"
	PupilsMiotic     = "Mióticas"
	PupilsMydriatic  = "Midriáticas"
	PupilsUnreactive = "Arreactivas"
)

// PupilStates lists the pupil enumeration in display order.
var PupilStates = []string{PupilsIsochoric, PupilsAnisocoric, PupilsMiotic, PupilsMydriatic, PupilsUnreactive}

// Prognosis values offered by the form.
var Prognoses = []string{"Bueno para la vida", "Reservado a evolución", "Malo para la vida", "Grave"}

// AntecedentOptions are the quick-pick prior conditions.
var AntecedentOptions = []string{"DM2", "HAS", "EPOC/Asma", "Cáncer", "Ninguno"}

// SuggestedDiagnoses are the quick-pick diagnosis tokens.
var SuggestedDiagnoses = []string{
	"R10.4 - Otros dolores abdominales y los no especificados",
	"J18.9 - Neumonía, no especificada",
	"I21.9 - Infarto agudo del miocardio, sin otra especificación",
	"A09 - Diarrea y gastroenteritis de presunto origen infeccioso",
	"I10 - Hipertensión esencial (primaria)",
	"E11.9 - Diabetes mellitus tipo 2 sin complicaciones",
	"S06.9 - Traumatismo intracraneal, no especificado",
	"N39.0 - Infección de vías urinarias, sitio no especificado",
	"E87.8 - Otros trastornos de los electrolitos y líquidos",
	"D64.9 - Anemia no especificada (Hb < 9.6 g/dL)",
	"K92.2 - Hemorragia gastrointestinal, no especificada",
	"N18.0 - Enfermedad renal crónica (ERC)",
	"I63.x - EVC Isquémico",
	"I61.x - EVC Hemorrágico",
	"I64 - Accidente vascular cerebral, no especificado como hemorrágico o isquémico",
}

// ExamTemplate is a named physical-exam paragraph.
type ExamTemplate struct {
	Name string `json:"name"`
	Text string `json:"text"`
}

// ExamTemplates are the normal-exam paragraphs, in display order.
var ExamTemplates = []ExamTemplate{
	{"Cabeza y cuello", "Cráneo normocéfalo, cuero cabelludo sin lesiones. Ojos con conjuntivas normocoloreadas y pupilas isocóricas y reactivas. Cavidad oral y faringe sin alteraciones aparentes. Cuello sin adenomegalias palpables, sin ingurgitación yugular, con adecuada movilidad cervical. Tiroides no palpable/sin datos patológicos aparentes."},
	{"Cardio/Pulmonar", "Ruidos cardíacos rítmicos de buen tono e intensidad, sin soplos. Campos pulmonares con murmullo vesicular presente, sin agregados."},
	{"Abdomen", "Abdomen blando, depresible, no doloroso a la palpación superficial ni profunda, peristalsis normoaudible, sin visceromegalias ni datos de irritación peritoneal."},
	{"Neurológico", "Paciente consciente, orientado en sus tres esferas. Funciones mentales superiores conservadas. Pares craneales íntegros. Fuerza 5/5 y sensibilidad conservada en 4 extremidades."},
	{"Extremidades", "Extremidades íntegras, simétricas, eutróficas. Pulsos distales presentes y sincrónicos. Llenado capilar inmediato. Sin edema."},
	{"Piel y tegumentos", "Piel íntegra, normocoloreada, normohidratada, normotérmica, sin presencia de lesiones, equimosis, exantemas ni úlceras. Llenado capilar conservado."},
}

// FindExamTemplate looks up a template by name.
func FindExamTemplate(name string) (ExamTemplate, bool) {
	for _, t := range ExamTemplates {
		if t.Name == name {
			return t, true
		}
	}
	return ExamTemplate{}, false
}

// VitalSign describes how a vital sign is labeled and measured.
type VitalSign struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Unit  string `json:"unit,omitempty"`
}

// VitalSignOrder lists the vital signs in display order.
var VitalSignOrder = []VitalSign{
	{"ta", "TA", "mmHg"},
	{"fc", "FC", "lpm"},
	{"fr", "FR", "rpm"},
	{"temp", "Temp", "°C"},
	{"sat", "SatO₂", "%"},
	{"gluc", "Gluc", "mg/dL"},
	{"peso", "Peso", "kg"},
	{"talla", "Talla", "cm"},
	{"imc", "IMC", ""},
}

// Value returns the vital sign stored under key.
func (s VitalSigns) Value(key string) string {
	switch key {
	case "ta":
		return s.TA
	case "fc":
		return s.FC
	case "fr":
		return s.FR
	case "temp":
		return s.Temp
	case "sat":
		return s.Sat
	case "gluc":
		return s.Gluc
	case "peso":
		return s.Peso
	case "talla":
		return s.Talla
	case "imc":
		return s.IMC
	}
	return ""
}

func defaultGlasgow() GlasgowScale {
	return GlasgowScale{O: 4, V: 5, M: 6}
}

// NewAdmission returns an admission record with the form defaults.
func NewAdmission() *Admission {
	return &Admission{
		G:            defaultGlasgow(),
		Pupilas:      PupilsIsochoric,
		Antecedentes: []string{},
		Alergias:     "Negados",
		Tabaquismo:   "Negado",
		Alcohol:      "Negado",
		Diagnostico:  []string{},
	}
}

// NewEvolution returns an evolution record with the form defaults.
func NewEvolution() *Evolution {
	return &Evolution{
		G:                   defaultGlasgow(),
		Pupilas:             PupilsIsochoric,
		DiagnosticosIngreso: []string{},
		DiagnosticosActivos: []string{},
	}
}

// New returns a default record of the given kind.
func New(kind Kind) Record {
	if kind == KindEvolution {
		return NewEvolution()
	}
	return NewAdmission()
}
