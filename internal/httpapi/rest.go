package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/sahaj-careers/sahaj/internal/policy"
	"github.com/sahaj-careers/sahaj/internal/profile"
	"github.com/sahaj-careers/sahaj/internal/session"
	"github.com/sahaj-careers/sahaj/internal/store"
)

const translateTimeout = 15 * time.Second

type registerRequest struct {
	Language string `json:"language" validate:"omitempty,min=2,max=16"`
	Name     string `json:"name" validate:"omitempty,max=120"`
}

type registerResponse struct {
	UserID   string `json:"user_id"`
	Language string `json:"language"`
}

type profileResponse struct {
	ID string `json:"id"`
	profile.Snapshot
}

// profileUpdateRequest lists the fields a client may edit. Completion and
// discovery progress are owned by the dialogue.
type profileUpdateRequest struct {
	Name               *string                  `json:"name" validate:"omitempty,max=120"`
	EducationLevel     *string                  `json:"education_level" validate:"omitempty,max=80"`
	EducationStream    *string                  `json:"education_stream" validate:"omitempty,max=80"`
	Skills             []string                 `json:"skills" validate:"omitempty,max=50,dive,min=1,max=80"`
	WorkExperience     []profile.WorkExperience `json:"work_experience" validate:"omitempty,max=20"`
	Location           *string                  `json:"location" validate:"omitempty,max=120"`
	LocationPreference *string                  `json:"location_preference" validate:"omitempty,max=120"`
	JobTypePreference  *string                  `json:"job_type_preference" validate:"omitempty,max=80"`
	PreferredLanguage  *string                  `json:"preferred_language" validate:"omitempty,min=2,max=16"`
}

func (r profileUpdateRequest) updates() profile.Updates {
	u := profile.Updates{}
	setString := func(key string, v *string) {
		if v != nil {
			u.Set(key, *v)
		}
	}
	setString(profile.KeyName, r.Name)
	setString(profile.KeyEducationLevel, r.EducationLevel)
	setString(profile.KeyEducationStream, r.EducationStream)
	setString(profile.KeyLocation, r.Location)
	setString(profile.KeyLocationPreference, r.LocationPreference)
	setString(profile.KeyJobTypePreference, r.JobTypePreference)
	setString(profile.KeyPreferredLanguage, r.PreferredLanguage)
	if r.Skills != nil {
		u.Set(profile.KeySkills, r.Skills)
	}
	if r.WorkExperience != nil {
		u.Set(profile.KeyWorkExperience, r.WorkExperience)
	}
	return u
}

type historyResponse struct {
	SessionID string         `json:"session_id,omitempty"`
	State     string         `json:"state"`
	Messages  []session.Turn `json:"messages"`
}

type translateRequest struct {
	Text           string `json:"text" validate:"required,max=2000"`
	SourceLanguage string `json:"source_language" validate:"required,min=2,max=16"`
	TargetLanguage string `json:"target_language" validate:"required,min=2,max=16"`
}

type translateResponse struct {
	TranslatedText string `json:"translated_text"`
	SourceLanguage string `json:"source_language"`
	TargetLanguage string `json:"target_language"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if !s.validRequest(w, req) {
		return
	}
	lang := strings.TrimSpace(req.Language)
	if lang == "" {
		lang = s.cfg.DefaultLanguage
	}

	p, err := s.store.CreateUser(r.Context(), profile.Profile{
		Name:              strings.TrimSpace(req.Name),
		PreferredLanguage: lang,
	})
	if err != nil {
		s.storeFailure(w, "create user", err)
		return
	}
	respondJSON(w, http.StatusCreated, registerResponse{UserID: p.ID, Language: p.PreferredLanguage})
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(w, r)
	if !ok {
		return
	}
	p, err := s.store.GetUser(r.Context(), userID)
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "user_not_found", "User not found")
		return
	}
	if err != nil {
		s.storeFailure(w, "get user", err)
		return
	}
	respondJSON(w, http.StatusOK, profileResponse{ID: p.ID, Snapshot: p.Snapshot()})
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(w, r)
	if !ok {
		return
	}
	var req profileUpdateRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if !s.validRequest(w, req) {
		return
	}

	p, err := s.store.GetUser(r.Context(), userID)
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "user_not_found", "User not found")
		return
	}
	if err != nil {
		s.storeFailure(w, "get user", err)
		return
	}

	if updates := req.updates(); len(updates) > 0 {
		p = profile.Merge(p, updates)
		p.UpdatedAt = time.Now().UTC()
		if err := s.store.UpdateUser(r.Context(), p); err != nil {
			s.storeFailure(w, "update user", err)
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "updated", "user_id": p.ID})
}

func (s *Server) handleSessionHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(w, r)
	if !ok {
		return
	}
	sess, err := s.store.LatestSession(r.Context(), userID)
	if errors.Is(err, store.ErrNotFound) {
		respondJSON(w, http.StatusOK, historyResponse{State: session.StateGreeting.String(), Messages: []session.Turn{}})
		return
	}
	if err != nil {
		s.storeFailure(w, "latest session", err)
		return
	}
	turns := sess.Turns
	if turns == nil {
		turns = []session.Turn{}
	}
	respondJSON(w, http.StatusOK, historyResponse{
		SessionID: sess.ID,
		State:     sess.CurrentState.String(),
		Messages:  turns,
	})
}

func (s *Server) handleGetResume(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(w, r)
	if !ok {
		return
	}
	res, err := s.store.LatestResume(r.Context(), userID)
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "resume_not_found", "No resume generated yet")
		return
	}
	if err != nil {
		s.storeFailure(w, "latest resume", err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleTranslate(w http.ResponseWriter, r *http.Request) {
	if s.translator == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "translation not configured")
		return
	}
	var req translateRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if !s.validRequest(w, req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), translateTimeout)
	defer cancel()
	out, err := s.translator.Translate(ctx, req.Text, req.SourceLanguage, req.TargetLanguage)
	if err != nil {
		s.metrics.ProviderError("translate", "error")
		s.logger.Warn("translate failed",
			zap.String("text", policy.ForLog(req.Text)),
			zap.Error(err),
		)
		respondError(w, http.StatusBadGateway, "translate_failed", "translation provider failed")
		return
	}
	respondJSON(w, http.StatusOK, translateResponse{
		TranslatedText: out,
		SourceLanguage: req.SourceLanguage,
		TargetLanguage: req.TargetLanguage,
	})
}

// validRequest runs struct validation and writes a 400 on failure.
func (s *Server) validRequest(w http.ResponseWriter, req any) bool {
	err := s.validate.Struct(req)
	if err == nil {
		return true
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		respondError(w, http.StatusBadRequest, "validation_failed",
			fmt.Sprintf("field %s failed %q validation", fe.Field(), fe.Tag()))
		return false
	}
	respondError(w, http.StatusBadRequest, "validation_failed", err.Error())
	return false
}

func (s *Server) storeFailure(w http.ResponseWriter, op string, err error) {
	s.logger.Error("store operation failed", zap.String("op", op), zap.Error(err))
	respondError(w, http.StatusInternalServerError, "store_error", "internal storage error")
}

func userIDParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := strings.TrimSpace(chi.URLParam(r, "user_id"))
	if id == "" {
		respondError(w, http.StatusBadRequest, "invalid_user_id", "missing user id")
		return "", false
	}
	return id, true
}
