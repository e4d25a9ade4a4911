package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alexanderramin/examdesk/internal/domain"
	"github.com/alexanderramin/examdesk/internal/session"
	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Default admin account seeded into every Platform.
const (
	AdminEmail    = "admin@college.test"
	AdminPassword = "s3cret-pass"
)

type platformUser struct {
	session.User
	hash []byte
}

type platformClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Platform is an in-process fake of the exam platform API. Access tokens are
// HS256 JWTs that stay valid until ExpireAccessTokens is called.
type Platform struct {
	*httptest.Server

	secret    []byte
	AccessTTL time.Duration

	mu       sync.Mutex
	users    map[string]*platformUser
	access   map[string]string // access token -> email
	refresh  map[string]string // refresh token -> email
	failures map[string]int    // "METHOD /path" -> status

	faculty  *collection[domain.Faculty]
	students *collection[domain.Student]
	batches  *collection[domain.Batch]
	courses  *collection[domain.Course]
	branches *collection[domain.Branch]
	sections *collection[domain.Section]

	exams        []domain.Exam
	examPayloads []domain.ExamPayload

	RefreshCalls atomic.Int32
	LoginCalls   atomic.Int32
	// RotateRefresh issues a new refresh token on every refresh call.
	RotateRefresh bool
}

// NewPlatform starts a fake platform with the default admin account.
func NewPlatform(t *testing.T) *Platform {
	t.Helper()
	p := &Platform{
		secret:        []byte("platform-test-secret"),
		AccessTTL:     time.Hour,
		users:         map[string]*platformUser{},
		access:        map[string]string{},
		refresh:       map[string]string{},
		failures:      map[string]int{},
		faculty:       newCollection(func(f *domain.Faculty) *string { return &f.ID }, nil),
		students:      newCollection(func(s *domain.Student) *string { return &s.ID }, nil),
		batches:       newCollection(func(b *domain.Batch) *string { return &b.ID }, nil),
		courses:       newCollection(func(c *domain.Course) *string { return &c.ID }, func(c domain.Course) string { return c.BatchID }),
		branches:      newCollection(func(b *domain.Branch) *string { return &b.ID }, func(b domain.Branch) string { return b.CourseID }),
		sections:      newCollection(func(s *domain.Section) *string { return &s.ID }, func(s domain.Section) string { return s.BranchID }),
		RotateRefresh: true,
	}
	p.AddUser(session.User{ID: "u-admin", Name: "Admin", Email: AdminEmail, Role: "admin"}, AdminPassword)

	p.Server = httptest.NewServer(p.routes())
	t.Cleanup(p.Close)
	return p
}

func (p *Platform) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(p.injectFailures)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", p.handleLogin)
		r.Post("/refresh-token", p.handleRefresh)
		r.With(p.requireAuth).Post("/change-password", p.handleChangePassword)
		r.With(p.requireAuth).Post("/logout", p.handleLogout)
	})

	r.Group(func(r chi.Router) {
		r.Use(p.requireAuth)
		mountCollection(r, "/faculty", p.faculty, "")
		mountCollection(r, "/students", p.students, "")
		mountCollection(r, "/batches", p.batches, "")
		mountCollection(r, "/courses", p.courses, "batchId")
		mountCollection(r, "/branches", p.branches, "courseId")
		mountCollection(r, "/sections", p.sections, "branchId")
		r.Get("/exams", p.handleListExams)
		r.Post("/exams", p.handleCreateExam)
		r.Get("/exams/{id}", p.handleGetExam)
		r.Delete("/exams/{id}", p.handleDeleteExam)
	})
	return r
}

// AddUser registers an account with a bcrypt-hashed password.
func (p *Platform) AddUser(u session.User, password string) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}
	p.mu.Lock()
	p.users[u.Email] = &platformUser{User: u, hash: hash}
	p.mu.Unlock()
}

// ExpireAccessTokens invalidates every access token issued so far. Refresh
// tokens stay valid.
func (p *Platform) ExpireAccessTokens() {
	p.mu.Lock()
	p.access = map[string]string{}
	p.mu.Unlock()
}

// RevokeRefreshTokens invalidates every refresh token issued so far.
func (p *Platform) RevokeRefreshTokens() {
	p.mu.Lock()
	p.refresh = map[string]string{}
	p.mu.Unlock()
}

// FailNext makes every request to method+path answer status until cleared
// with status 0.
func (p *Platform) FailNext(method, path string, status int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	key := method + " " + path
	if status == 0 {
		delete(p.failures, key)
		return
	}
	p.failures[key] = status
}

// ExamPayloads returns every exam payload accepted so far.
func (p *Platform) ExamPayloads() []domain.ExamPayload {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.ExamPayload(nil), p.examPayloads...)
}

func (p *Platform) SeedFaculty(f domain.Faculty) domain.Faculty { return p.faculty.add(f) }
func (p *Platform) SeedStudent(s domain.Student) domain.Student { return p.students.add(s) }
func (p *Platform) SeedBatch(b domain.Batch) domain.Batch       { return p.batches.add(b) }
func (p *Platform) SeedCourse(c domain.Course) domain.Course    { return p.courses.add(c) }
func (p *Platform) SeedBranch(b domain.Branch) domain.Branch    { return p.branches.add(b) }
func (p *Platform) SeedSection(s domain.Section) domain.Section { return p.sections.add(s) }

// Hierarchy is a seeded batch → course → branch → section chain.
type Hierarchy struct {
	Batch   domain.Batch
	Course  domain.Course
	Branch  domain.Branch
	Section domain.Section
}

// SeedHierarchy seeds one full audience chain plus one faculty member.
func (p *Platform) SeedHierarchy() Hierarchy {
	var h Hierarchy
	h.Batch = p.SeedBatch(domain.Batch{Name: "2024-2028", StartYear: 2024, EndYear: 2028})
	h.Course = p.SeedCourse(domain.Course{Name: "B.Tech", Code: "BT", BatchID: h.Batch.ID})
	h.Branch = p.SeedBranch(domain.Branch{Name: "Computer Science", Code: "CSE", CourseID: h.Course.ID})
	h.Section = p.SeedSection(domain.Section{Name: "A", BranchID: h.Branch.ID})
	p.SeedFaculty(domain.Faculty{Name: "Dr. Rao", Email: "rao@college.test", Department: "CSE"})
	return h
}

func (p *Platform) issue(email string) (session.Credentials, error) {
	p.mu.Lock()
	u := p.users[email]
	p.mu.Unlock()

	now := time.Now()
	claims := platformClaims{
		Role: u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(p.AccessTTL)),
		},
	}
	access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
	if err != nil {
		return session.Credentials{}, err
	}
	refresh := uuid.NewString()

	p.mu.Lock()
	p.access[access] = email
	p.refresh[refresh] = email
	p.mu.Unlock()
	return session.Credentials{AccessToken: access, RefreshToken: refresh}, nil
}

func (p *Platform) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok {
			respondFail(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		_, err := jwt.ParseWithClaims(raw, &platformClaims{}, func(*jwt.Token) (any, error) {
			return p.secret, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		p.mu.Lock()
		_, live := p.access[raw]
		p.mu.Unlock()
		if err != nil || !live {
			respondFail(w, http.StatusUnauthorized, "access token expired")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (p *Platform) injectFailures(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p.mu.Lock()
		status := p.failures[r.Method+" "+r.URL.Path]
		p.mu.Unlock()
		if status != 0 {
			respondFail(w, status, "injected failure")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (p *Platform) handleLogin(w http.ResponseWriter, r *http.Request) {
	p.LoginCalls.Add(1)
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondFail(w, http.StatusBadRequest, "bad json")
		return
	}

	p.mu.Lock()
	u := p.users[req.Email]
	p.mu.Unlock()
	if u == nil || bcrypt.CompareHashAndPassword(u.hash, []byte(req.Password)) != nil {
		// The platform reports bad credentials in the envelope, not the status.
		respondOK(w, envelope{Success: false, Message: "Invalid email or password"})
		return
	}

	creds, err := p.issue(req.Email)
	if err != nil {
		respondFail(w, http.StatusInternalServerError, "issuing token")
		return
	}
	respondOK(w, envelope{Success: true, Message: "Login successful", Data: map[string]any{
		"accessToken":  creds.AccessToken,
		"refreshToken": creds.RefreshToken,
		"user":         u.User,
	}})
}

func (p *Platform) handleRefresh(w http.ResponseWriter, r *http.Request) {
	p.RefreshCalls.Add(1)
	var req struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondFail(w, http.StatusBadRequest, "bad json")
		return
	}

	p.mu.Lock()
	email, ok := p.refresh[req.RefreshToken]
	p.mu.Unlock()
	if !ok {
		respondOK(w, envelope{Success: false, Message: "Invalid refresh token"})
		return
	}

	creds, err := p.issue(email)
	if err != nil {
		respondFail(w, http.StatusInternalServerError, "issuing token")
		return
	}
	p.mu.Lock()
	if p.RotateRefresh {
		delete(p.refresh, req.RefreshToken)
	} else {
		delete(p.refresh, creds.RefreshToken)
		creds.RefreshToken = ""
	}
	p.mu.Unlock()
	respondOK(w, envelope{Success: true, Message: "Token refreshed", Data: creds})
}

func (p *Platform) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OldPassword string `json:"oldPassword"`
		NewPassword string `json:"newPassword"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondFail(w, http.StatusBadRequest, "bad json")
		return
	}
	raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")

	p.mu.Lock()
	u := p.users[p.access[raw]]
	p.mu.Unlock()
	if u == nil || bcrypt.CompareHashAndPassword(u.hash, []byte(req.OldPassword)) != nil {
		respondOK(w, envelope{Success: false, Message: "Current password is incorrect"})
		return
	}
	p.AddUser(u.User, req.NewPassword)
	respondOK(w, envelope{Success: true, Message: "Password changed"})
}

func (p *Platform) handleLogout(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	p.mu.Lock()
	delete(p.access, raw)
	p.mu.Unlock()
	respondOK(w, envelope{Success: true, Message: "Logged out"})
}

func (p *Platform) handleListExams(w http.ResponseWriter, _ *http.Request) {
	p.mu.Lock()
	exams := append([]domain.Exam{}, p.exams...)
	p.mu.Unlock()
	respondOK(w, envelope{Success: true, Message: "ok", Data: exams})
}

func (p *Platform) handleCreateExam(w http.ResponseWriter, r *http.Request) {
	var payload domain.ExamPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondFail(w, http.StatusBadRequest, "bad json")
		return
	}
	if payload.Title == "" {
		respondOK(w, envelope{Success: false, Message: "Title is required"})
		return
	}
	exam := domain.Exam{
		ID:           uuid.NewString(),
		Title:        payload.Title,
		Status:       payload.Status,
		ScheduleMode: payload.ScheduleMode,
		QuestionMode: payload.QuestionMode,
		TotalMarks:   payload.TotalMarks,
		CreatedAt:    time.Now().UTC().Format(time.RFC3339),
	}
	p.mu.Lock()
	p.exams = append(p.exams, exam)
	p.examPayloads = append(p.examPayloads, payload)
	p.mu.Unlock()

	msg := "Exam saved as draft"
	if payload.Status == domain.StatusPublished {
		msg = "Exam published"
	}
	respondOK(w, envelope{Success: true, Message: msg, Data: exam})
}

func (p *Platform) handleGetExam(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, e := range p.exams {
		if e.ID == id {
			respondOK(w, envelope{Success: true, Message: "ok", Data: e})
			return
		}
	}
	respondFail(w, http.StatusNotFound, "Exam not found")
}

func (p *Platform) handleDeleteExam(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, e := range p.exams {
		if e.ID == id {
			p.exams = append(p.exams[:i], p.exams[i+1:]...)
			respondOK(w, envelope{Success: true, Message: "Exam deleted"})
			return
		}
	}
	respondFail(w, http.StatusNotFound, "Exam not found")
}

type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func respondOK(w http.ResponseWriter, env envelope) {
	respondJSON(w, http.StatusOK, env)
}

func respondFail(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, envelope{Success: false, Message: msg})
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
