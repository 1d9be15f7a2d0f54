package profile

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Allow-listed update keys. Anything else in an update set is dropped.
const (
	KeyName               = "name"
	KeyEducationLevel     = "education_level"
	KeyEducationStream    = "education_stream"
	KeySkills             = "skills"
	KeyWorkExperience     = "work_experience"
	KeyLocation           = "location"
	KeyLocationPreference = "location_preference"
	KeyJobTypePreference  = "job_type_preference"
	KeyPreferredLanguage  = "preferred_language"
	KeyProfileComplete    = "profile_complete"
	KeyDiscoveryStep      = "discovery_step"
)

var allowedKeys = map[string]struct{}{
	KeyName:               {},
	KeyEducationLevel:     {},
	KeyEducationStream:    {},
	KeySkills:             {},
	KeyWorkExperience:     {},
	KeyLocation:           {},
	KeyLocationPreference: {},
	KeyJobTypePreference:  {},
	KeyPreferredLanguage:  {},
	KeyProfileComplete:    {},
	KeyDiscoveryStep:      {},
}

// Updates is a partial profile as produced by the language model or a client.
// Values stay raw until Merge so a malformed field only drops that field.
type Updates map[string]json.RawMessage

// Set stores v under key, replacing any previous value.
func (u Updates) Set(key string, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	u[key] = raw
}

// Allowed returns the allow-listed, non-null subset of u.
func (u Updates) Allowed() Updates {
	out := Updates{}
	for k, v := range u {
		if _, ok := allowedKeys[k]; !ok {
			continue
		}
		if isNull(v) {
			continue
		}
		out[k] = v
	}
	return out
}

// Clone copies the update set.
func (u Updates) Clone() Updates {
	out := make(Updates, len(u))
	for k, v := range u {
		out[k] = append(json.RawMessage(nil), v...)
	}
	return out
}

// Merge applies the allow-listed keys of updates to p and returns the result.
// Unknown keys, null values and values of the wrong shape are no-ops.
// ProfileComplete only moves false to true and DiscoveryStep never decreases.
func Merge(p Profile, updates Updates) Profile {
	out := p.Clone()
	for key, raw := range updates.Allowed() {
		switch key {
		case KeyName:
			setString(&out.Name, raw)
		case KeyEducationLevel:
			setString(&out.EducationLevel, raw)
		case KeyEducationStream:
			setString(&out.EducationStream, raw)
		case KeyLocation:
			setString(&out.Location, raw)
		case KeyLocationPreference:
			setString(&out.LocationPreference, raw)
		case KeyJobTypePreference:
			setString(&out.JobTypePreference, raw)
		case KeyPreferredLanguage:
			setString(&out.PreferredLanguage, raw)
		case KeySkills:
			if skills, ok := decodeSkills(raw); ok {
				out.Skills = skills
			}
		case KeyWorkExperience:
			if work, ok := decodeWork(raw); ok {
				out.WorkExperience = work
			}
		case KeyProfileComplete:
			var v bool
			if json.Unmarshal(raw, &v) == nil && v {
				out.ProfileComplete = true
			}
		case KeyDiscoveryStep:
			var v int
			if json.Unmarshal(raw, &v) != nil {
				continue
			}
			if v > MaxDiscoveryStep {
				v = MaxDiscoveryStep
			}
			if v > out.DiscoveryStep {
				out.DiscoveryStep = v
			}
		}
	}
	return out
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func setString(dst *string, raw json.RawMessage) {
	var v string
	if err := json.Unmarshal(raw, &v); err != nil {
		return
	}
	*dst = strings.TrimSpace(v)
}

// decodeSkills accepts a list or a single comma separated string and
// returns a case-insensitively deduplicated list in first-seen order.
func decodeSkills(raw json.RawMessage) ([]string, bool) {
	var list []string
	if err := json.Unmarshal(raw, &list); err != nil {
		var single string
		if err := json.Unmarshal(raw, &single); err != nil {
			return nil, false
		}
		list = strings.Split(single, ",")
	}
	seen := make(map[string]struct{}, len(list))
	out := make([]string, 0, len(list))
	for _, s := range list {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		key := strings.ToLower(s)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, s)
	}
	return out, true
}

func decodeWork(raw json.RawMessage) ([]WorkExperience, bool) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		items = []json.RawMessage{raw}
	}
	out := make([]WorkExperience, 0, len(items))
	for _, item := range items {
		var entry WorkExperience
		if err := json.Unmarshal(item, &entry); err == nil {
			out = append(out, entry)
			continue
		}
		var desc string
		if err := json.Unmarshal(item, &desc); err == nil && strings.TrimSpace(desc) != "" {
			out = append(out, WorkExperience{Description: strings.TrimSpace(desc)})
		}
	}
	if len(out) == 0 && len(items) > 0 {
		return nil, false
	}
	return out, true
}
