package usecase

import (
	"fmt"
	"slices"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/fairyhunter13/career-diagnosis/internal/domain"
	"github.com/fairyhunter13/career-diagnosis/pkg/textx"
)

// Document formats.
const (
	FormatResume = "resume"
	FormatCV     = "cv"
)

var allowedPhotoTypes = []string{"image/jpeg", "image/png", "image/webp"}

// Experience is one position in a profile.
type Experience struct {
	Company     string `json:"company" validate:"max=200"`
	Title       string `json:"title" validate:"max=200"`
	Period      string `json:"period" validate:"max=100"`
	Description string `json:"description" validate:"max=2000"`
}

// Education is one degree or course in a profile.
type Education struct {
	School string `json:"school" validate:"max=200"`
	Degree string `json:"degree" validate:"max=200"`
	Period string `json:"period" validate:"max=100"`
}

// Profile holds the facts a generated document may use.
type Profile struct {
	Name           string       `json:"name" validate:"required,max=100"`
	Email          string       `json:"email,omitempty" validate:"omitempty,email,max=200"`
	Phone          string       `json:"phone,omitempty" validate:"max=50"`
	Location       string       `json:"location,omitempty" validate:"max=100"`
	Headline       string       `json:"headline,omitempty" validate:"max=200"`
	Summary        string       `json:"summary,omitempty" validate:"max=2000"`
	Experience     []Experience `json:"experience,omitempty" validate:"max=20,dive"`
	Education      []Education  `json:"education,omitempty" validate:"max=10,dive"`
	Skills         []string     `json:"skills,omitempty" validate:"max=50,dive,max=100"`
	Certifications []string     `json:"certifications,omitempty" validate:"max=20,dive,max=200"`
	Languages      []string     `json:"languages,omitempty" validate:"max=10,dive,max=100"`
}

// ResumeRequest asks for a resume or CV.
type ResumeRequest struct {
	DiagnosisID string  `json:"diagnosis_id,omitempty"`
	Format      string  `json:"format" validate:"required,oneof=resume cv"`
	PhotoID     string  `json:"photo_id,omitempty"`
	Profile     Profile `json:"profile" validate:"required"`
}

// DocumentSection is one block of a generated document.
type DocumentSection struct {
	Heading string   `json:"heading"`
	Body    string   `json:"body,omitempty"`
	Items   []string `json:"items,omitempty"`
}

// Document is a generated resume or CV.
type Document struct {
	Format      string            `json:"format"`
	Title       string            `json:"title"`
	Headline    string            `json:"headline"`
	Name        string            `json:"name"`
	Contact     map[string]string `json:"contact,omitempty"`
	PhotoID     string            `json:"photo_id,omitempty"`
	Sections    []DocumentSection `json:"sections"`
	GeneratedAt time.Time         `json:"generated_at"`
}

// DocumentService generates resume documents and stores profile photos.
type DocumentService struct {
	KV            domain.KVStore
	AI            domain.AIClient
	PhotoTTL      time.Duration
	MaxPhotoBytes int64
	Now           func() time.Time
}

// NewDocumentService constructs a DocumentService with its dependencies.
func NewDocumentService(kv domain.KVStore, ai domain.AIClient, photoTTL time.Duration, maxPhotoBytes int64) DocumentService {
	return DocumentService{KV: kv, AI: ai, PhotoTTL: photoTTL, MaxPhotoBytes: maxPhotoBytes}
}

// Generate writes a resume or CV from the profile, optionally aligned with a
// stored diagnosis. Documents are returned, not stored.
func (s DocumentService) Generate(ctx domain.Context, req ResumeRequest) (Document, error) {
	if req.Format != FormatResume && req.Format != FormatCV {
		return Document{}, fmt.Errorf("op=documents.generate: %w: format must be resume or cv", domain.ErrInvalidArgument)
	}
	req.Profile.Name = textx.SanitizeText(req.Profile.Name)
	if req.Profile.Name == "" {
		return Document{}, fmt.Errorf("op=documents.generate: %w: profile name required", domain.ErrInvalidArgument)
	}
	req.Profile.Summary = textx.SanitizeText(req.Profile.Summary)

	var diag *domain.Diagnosis
	if req.DiagnosisID != "" {
		d, err := DiagnosisService{KV: s.KV}.Get(ctx, req.DiagnosisID)
		if err != nil {
			return Document{}, fmt.Errorf("op=documents.generate: %w", err)
		}
		diag = &d
	}
	if req.PhotoID != "" {
		if _, err := s.GetPhoto(ctx, req.PhotoID); err != nil {
			return Document{}, fmt.Errorf("op=documents.generate: %w", err)
		}
	}

	var doc Document
	if err := completeJSON(ctx, s.AI, "documents", documentPrompt(req, diag), &doc); err != nil {
		return Document{}, fmt.Errorf("op=documents.generate: %w", err)
	}
	doc.Format = req.Format
	doc.Name = req.Profile.Name
	doc.PhotoID = req.PhotoID
	doc.GeneratedAt = nowUTC(s.Now)
	doc.Contact = map[string]string{}
	for k, v := range map[string]string{"email": req.Profile.Email, "phone": req.Profile.Phone, "location": req.Profile.Location} {
		if v != "" {
			doc.Contact[k] = v
		}
	}
	return doc, nil
}

// UploadPhoto stores a profile photo after sniffing its content type.
func (s DocumentService) UploadPhoto(ctx domain.Context, data []byte) (domain.Photo, error) {
	if len(data) == 0 {
		return domain.Photo{}, fmt.Errorf("op=documents.upload_photo: %w: empty file", domain.ErrInvalidArgument)
	}
	if s.MaxPhotoBytes > 0 && int64(len(data)) > s.MaxPhotoBytes {
		return domain.Photo{}, fmt.Errorf("op=documents.upload_photo: %w", domain.ErrPayloadTooLarge)
	}
	mt := mimetype.Detect(data)
	if !slices.Contains(allowedPhotoTypes, mt.String()) {
		return domain.Photo{}, fmt.Errorf("op=documents.upload_photo: %w: unsupported image type %s", domain.ErrInvalidArgument, mt.String())
	}
	p := domain.Photo{ID: newID(), MIME: mt.String(), Data: data, CreatedAt: nowUTC(s.Now)}
	if err := save(ctx, s.KV, photoKey(p.ID), p, s.PhotoTTL); err != nil {
		return domain.Photo{}, fmt.Errorf("op=documents.upload_photo: %w", err)
	}
	return p, nil
}

// GetPhoto loads a stored photo.
func (s DocumentService) GetPhoto(ctx domain.Context, id string) (domain.Photo, error) {
	if err := validID(id); err != nil {
		return domain.Photo{}, fmt.Errorf("op=documents.get_photo: %w", err)
	}
	var p domain.Photo
	if err := load(ctx, s.KV, photoKey(id), &p); err != nil {
		return domain.Photo{}, fmt.Errorf("op=documents.get_photo: %w", err)
	}
	return p, nil
}
