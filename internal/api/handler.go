package api

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"presensure/internal/attendance"
	"presensure/internal/auth"
	"presensure/internal/cloudinary"
	"presensure/internal/faceclient"
)

// ImageUploader stores face images and returns their hosted URL.
type ImageUploader interface {
	UploadDataURL(ctx context.Context, data, publicID string) (*cloudinary.UploadResult, error)
}

// FaceEnroller registers reference faces with the recognition service.
type FaceEnroller interface {
	Enroll(ctx context.Context, studentID, imageURL, name string) (*faceclient.EnrollResult, error)
}

// HealthCheck reports whether one dependency is reachable.
type HealthCheck func(ctx context.Context) bool

// TokenConfig controls issued JWTs.
type TokenConfig struct {
	Issuer     string
	SigningKey string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// Handler serves the JSON API.
type Handler struct {
	svc    *attendance.Service
	authn  *auth.Authenticator
	tokens TokenConfig
	images ImageUploader // nil if image storage is not configured
	faces  FaceEnroller  // nil if the face service is disabled
	checks map[string]HealthCheck
}

// NewHandler creates the API handler. images and faces may be nil.
func NewHandler(svc *attendance.Service, authn *auth.Authenticator, tokens TokenConfig, images ImageUploader, faces FaceEnroller, checks map[string]HealthCheck) *Handler {
	return &Handler{svc: svc, authn: authn, tokens: tokens, images: images, faces: faces, checks: checks}
}

// ---------- Health ----------

func (h *Handler) Healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	body := gin.H{"status": "ok"}
	for name, check := range h.checks {
		ok := check(ctx)
		body[name] = ok
		if !ok {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
		}
	}
	c.JSON(status, body)
}

// ---------- Auth ----------

type loginRequest struct {
	Role     auth.Role `json:"role" binding:"required"`
	ID       string    `json:"id"`
	Password string    `json:"password"`
}

func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	user, err := h.authn.Login(c.Request.Context(), req.Role, req.ID, req.Password)
	switch {
	case errors.Is(err, auth.ErrMissingCredentials), errors.Is(err, auth.ErrUnknownRole):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case errors.Is(err, auth.ErrStudentNotFound), errors.Is(err, auth.ErrBadCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	case err != nil:
		writeError(c, err)
		return
	}
	h.issue(c, user)
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

func (h *Handler) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	claims, err := auth.Parse(req.RefreshToken, h.tokens.SigningKey, h.tokens.Issuer, auth.KindRefresh)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid refresh token"})
		return
	}
	h.issue(c, claims.User())
}

func (h *Handler) issue(c *gin.Context, user auth.User) {
	tokens, err := auth.Issue(user, h.tokens.Issuer, h.tokens.SigningKey, h.tokens.AccessTTL, h.tokens.RefreshTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"access_token":  tokens.AccessToken,
		"refresh_token": tokens.RefreshToken,
		"expires_at":    tokens.AccessExp.Unix(),
		"user":          user,
	})
}

// ---------- Attendance ----------

func (h *Handler) ListAttendance(c *gin.Context) {
	records, err := h.svc.Records(c.Request.Context(), attendance.RecordFilter{
		Date:   c.Query("date"),
		Search: c.Query("search"),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, records)
}

// MyAttendance lists the calling student's own records.
func (h *Handler) MyAttendance(c *gin.Context) {
	claims, _ := auth.FromContext(c)
	records, err := h.svc.Records(c.Request.Context(), attendance.RecordFilter{
		StudentID: claims.Subject,
		Date:      c.Query("date"),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, records)
}

type statusRequest struct {
	Status attendance.Status `json:"status" binding:"required"`
}

func (h *Handler) SetAttendanceStatus(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rec, err := h.svc.Review(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (h *Handler) Analytics(c *gin.Context) {
	a, err := h.svc.Analytics(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

// ---------- Students ----------

func (h *Handler) ListStudents(c *gin.Context) {
	students, err := h.svc.Students(c.Request.Context(), attendance.StudentFilter{Search: c.Query("search")})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, students)
}

// AddStudent registers a student. An inline faceImage is moved to image
// storage when it is configured and enrolled with the face service.
func (h *Handler) AddStudent(c *gin.Context) {
	var st attendance.Student
	if err := c.ShouldBindJSON(&st); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !h.hostFaceImage(c, &st) {
		return
	}
	st, err := h.svc.AddStudent(c.Request.Context(), st)
	if err != nil {
		writeError(c, err)
		return
	}
	h.enroll(c.Request.Context(), st)
	c.JSON(http.StatusCreated, st)
}

func (h *Handler) UpdateStudent(c *gin.Context) {
	var st attendance.Student
	if err := c.ShouldBindJSON(&st); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	st.ID = c.Param("id")
	if !h.hostFaceImage(c, &st) {
		return
	}
	st, err := h.svc.UpdateStudent(c.Request.Context(), st)
	if err != nil {
		writeError(c, err)
		return
	}
	h.enroll(c.Request.Context(), st)
	c.JSON(http.StatusOK, st)
}

func (h *Handler) DeleteStudent(c *gin.Context) {
	if err := h.svc.DeleteStudent(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) hostFaceImage(c *gin.Context, st *attendance.Student) bool {
	if h.images == nil || !cloudinary.IsDataURL(st.FaceImage) {
		return true
	}
	res, err := h.images.UploadDataURL(c.Request.Context(), st.FaceImage, "")
	if err != nil {
		log.Printf("cloudinary upload failed: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "image upload failed"})
		return false
	}
	st.FaceImage = res.SecureURL
	return true
}

// enroll registers the student's face. Failures are logged only; the face
// can be enrolled again by updating the student.
func (h *Handler) enroll(ctx context.Context, st attendance.Student) {
	if h.faces == nil || st.FaceImage == "" || cloudinary.IsDataURL(st.FaceImage) {
		return
	}
	if _, err := h.faces.Enroll(ctx, st.ID, st.FaceImage, st.Name); err != nil {
		log.Printf("face service enroll error for %s: %v", st.ID, err)
	}
}

func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, attendance.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, attendance.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, attendance.ErrDuplicateKey):
		status = http.StatusConflict
	case errors.Is(err, attendance.ErrBackend):
		status = http.StatusBadGateway
		log.Printf("backend error: %v", err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
