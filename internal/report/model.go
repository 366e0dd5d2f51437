package report

// CaseInfo is the header block of a report.
type CaseInfo struct {
	SubjectName string `json:"subjectName"`
	Grade       string `json:"grade"`
	Period      string `json:"period"`
	Author      string `json:"author"`
	DateCreated string `json:"dateCreated"`
	DateUpdated string `json:"dateUpdated"`
}

// Strategy is one recommended support strategy.
type Strategy struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Finding is one strength or challenge.
type Finding struct {
	Title              string   `json:"title"`
	Description        string   `json:"description,omitempty"`
	Evidence           string   `json:"evidence,omitempty"`
	ObservableSigns    []string `json:"observableSigns"`
	RecommendedActions []string `json:"recommendedActions"`
	Cautions           []string `json:"cautions"`
}

// Sections is the section-addressable view of a markdown report. It is
// derived on every read and never stored.
type Sections struct {
	CaseInfo   CaseInfo   `json:"caseInfo"`
	Overview   string     `json:"overview"`
	Strategies []Strategy `json:"strategies"`
	Strengths  []Finding  `json:"strengths"`
	Challenges []Finding  `json:"challenges"`
	Dialect    string     `json:"dialect"`
}

func (s Sections) empty() bool {
	return s.Overview == "" && len(s.Strategies) == 0 && len(s.Strengths) == 0 && len(s.Challenges) == 0
}

// normalize replaces nil slices so callers always get arrays.
func (s Sections) normalize() Sections {
	if s.Strategies == nil {
		s.Strategies = []Strategy{}
	}
	if s.Strengths == nil {
		s.Strengths = []Finding{}
	}
	if s.Challenges == nil {
		s.Challenges = []Finding{}
	}
	for i := range s.Strengths {
		s.Strengths[i] = s.Strengths[i].normalize()
	}
	for i := range s.Challenges {
		s.Challenges[i] = s.Challenges[i].normalize()
	}
	return s
}

func (f Finding) normalize() Finding {
	if f.ObservableSigns == nil {
		f.ObservableSigns = []string{}
	}
	if f.RecommendedActions == nil {
		f.RecommendedActions = []string{}
	}
	if f.Cautions == nil {
		f.Cautions = []string{}
	}
	return f
}
