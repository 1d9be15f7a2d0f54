package profile

import (
	"slices"
	"time"
)

// MaxDiscoveryStep is the number of questions in the discovery sequence.
const MaxDiscoveryStep = 7

// WorkExperience is one entry of formal or informal work history.
type WorkExperience struct {
	Type        string  `json:"type,omitempty"`
	Domain      string  `json:"domain,omitempty"`
	Role        string  `json:"role,omitempty"`
	Company     string  `json:"company,omitempty"`
	Duration    string  `json:"duration,omitempty"`
	Years       float64 `json:"years,omitempty"`
	Description string  `json:"description,omitempty"`
}

// Profile is the career profile assembled over the discovery dialogue.
type Profile struct {
	ID                 string           `json:"id"`
	Name               string           `json:"name"`
	EducationLevel     string           `json:"education_level"`
	EducationStream    string           `json:"education_stream"`
	Skills             []string         `json:"skills"`
	WorkExperience     []WorkExperience `json:"work_experience"`
	Location           string           `json:"location"`
	LocationPreference string           `json:"location_preference"`
	JobTypePreference  string           `json:"job_type_preference"`
	PreferredLanguage  string           `json:"preferred_language"`
	DiscoveryStep      int              `json:"discovery_step"`
	ProfileComplete    bool             `json:"profile_complete"`
	CreatedAt          time.Time        `json:"created_at"`
	UpdatedAt          time.Time        `json:"updated_at"`
}

// Clone returns a deep copy so callers can mutate slices freely. Nil and
// empty slices are preserved as they are.
func (p Profile) Clone() Profile {
	c := p
	c.Skills = slices.Clone(p.Skills)
	c.WorkExperience = slices.Clone(p.WorkExperience)
	return c
}

// Snapshot is the profile view sent to clients and fed to prompts.
type Snapshot struct {
	Name               string           `json:"name"`
	EducationLevel     string           `json:"education_level"`
	EducationStream    string           `json:"education_stream"`
	Skills             []string         `json:"skills"`
	WorkExperience     []WorkExperience `json:"work_experience"`
	Location           string           `json:"location"`
	LocationPreference string           `json:"location_preference"`
	JobTypePreference  string           `json:"job_type_preference"`
	PreferredLanguage  string           `json:"preferred_language"`
	DiscoveryStep      int              `json:"discovery_step"`
	ProfileComplete    bool             `json:"profile_complete"`
}

func (p Profile) Snapshot() Snapshot {
	skills := p.Skills
	if skills == nil {
		skills = []string{}
	}
	work := p.WorkExperience
	if work == nil {
		work = []WorkExperience{}
	}
	return Snapshot{
		Name:               p.Name,
		EducationLevel:     p.EducationLevel,
		EducationStream:    p.EducationStream,
		Skills:             skills,
		WorkExperience:     work,
		Location:           p.Location,
		LocationPreference: p.LocationPreference,
		JobTypePreference:  p.JobTypePreference,
		PreferredLanguage:  p.PreferredLanguage,
		DiscoveryStep:      p.DiscoveryStep,
		ProfileComplete:    p.ProfileComplete,
	}
}
