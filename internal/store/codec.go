package store

import (
	"encoding/json"
	"fmt"

	"github.com/sahaj-careers/sahaj/internal/profile"
	"github.com/sahaj-careers/sahaj/internal/session"
)

func encodeProfileLists(p profile.Profile) (skills, work json.RawMessage, err error) {
	if skills, err = json.Marshal(p.Skills); err != nil {
		return nil, nil, fmt.Errorf("encode skills: %w", err)
	}
	if work, err = json.Marshal(p.WorkExperience); err != nil {
		return nil, nil, fmt.Errorf("encode work experience: %w", err)
	}
	return skills, work, nil
}

func decodeProfileLists(p *profile.Profile, skills, work []byte) error {
	p.Skills = []string{}
	p.WorkExperience = []profile.WorkExperience{}
	if len(skills) > 0 {
		if err := json.Unmarshal(skills, &p.Skills); err != nil {
			return fmt.Errorf("decode skills: %w", err)
		}
	}
	if len(work) > 0 {
		if err := json.Unmarshal(work, &p.WorkExperience); err != nil {
			return fmt.Errorf("decode work experience: %w", err)
		}
	}
	return nil
}

func encodeSessionBlobs(s session.Session) (turns, ctx json.RawMessage, err error) {
	t := s.Turns
	if t == nil {
		t = []session.Turn{}
	}
	if turns, err = json.Marshal(t); err != nil {
		return nil, nil, fmt.Errorf("encode turns: %w", err)
	}
	if ctx, err = json.Marshal(s.Context); err != nil {
		return nil, nil, fmt.Errorf("encode session context: %w", err)
	}
	return turns, ctx, nil
}

func decodeSessionBlobs(s *session.Session, turns, ctx []byte) error {
	s.Turns = []session.Turn{}
	if len(turns) > 0 {
		if err := json.Unmarshal(turns, &s.Turns); err != nil {
			return fmt.Errorf("decode turns: %w", err)
		}
	}
	if len(ctx) > 0 {
		if err := json.Unmarshal(ctx, &s.Context); err != nil {
			return fmt.Errorf("decode session context: %w", err)
		}
	}
	return nil
}
