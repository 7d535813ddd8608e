package services

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"path"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/sahilchouksey/univast-api/services/storage"
	"github.com/sahilchouksey/univast-api/utils/apperrors"
	"github.com/sahilchouksey/univast-api/utils/metrics"
	"github.com/sahilchouksey/univast-api/utils/pdfvalidation"
	"github.com/sirupsen/logrus"
)

// AttachmentCategory determines size limits and accepted content types
type AttachmentCategory string

const (
	CategoryDocument     AttachmentCategory = "document"
	CategoryLogo         AttachmentCategory = "logo"
	CategoryProfileImage AttachmentCategory = "profile_image"
)

// IsImage reports whether the category only accepts images
func (c AttachmentCategory) IsImage() bool {
	return c == CategoryLogo || c == CategoryProfileImage
}

func (c AttachmentCategory) valid() bool {
	return c == CategoryDocument || c.IsImage()
}

const (
	DefaultMaxImageBytes    int64 = 5 << 20
	DefaultMaxDocumentBytes int64 = 10 << 20
)

// AttachmentLimits bounds payload sizes per category kind
type AttachmentLimits struct {
	MaxImageBytes    int64
	MaxDocumentBytes int64
}

// AttachmentPayload is an uploaded file. Filename is only used to guess an extension.
type AttachmentPayload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// extensions maps accepted content types to stored file extensions
var extensions = map[string]string{
	"application/pdf":    ".pdf",
	"application/msword": ".doc",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": ".docx",
	"text/plain": ".txt",
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

var safeExt = regexp.MustCompile(`^[a-z0-9]{1,8}$`)

// AttachmentService validates payloads and stores them through a storage.Backend
type AttachmentService struct {
	backend storage.Backend
	limits  AttachmentLimits
	log     logrus.FieldLogger
}

// NewAttachmentService creates an attachment service; zero limits fall back to the defaults
func NewAttachmentService(backend storage.Backend, limits AttachmentLimits, log logrus.FieldLogger) *AttachmentService {
	if limits.MaxImageBytes <= 0 {
		limits.MaxImageBytes = DefaultMaxImageBytes
	}
	if limits.MaxDocumentBytes <= 0 {
		limits.MaxDocumentBytes = DefaultMaxDocumentBytes
	}
	return &AttachmentService{
		backend: backend,
		limits:  limits,
		log:     log.WithField("backend", backend.Name()),
	}
}

// Store validates payload and writes it under <category>/<ownerID>/<random><ext>.
// The returned reference is what callers persist.
func (s *AttachmentService) Store(ctx context.Context, ownerID uint, category AttachmentCategory, payload AttachmentPayload) (string, error) {
	if !category.valid() {
		return "", apperrors.InvalidAttachment("unknown attachment category %q", category)
	}
	if len(payload.Data) == 0 {
		return "", apperrors.InvalidAttachment("attachment is empty")
	}

	limit := s.limits.MaxDocumentBytes
	if category.IsImage() {
		limit = s.limits.MaxImageBytes
	}
	if int64(len(payload.Data)) > limit {
		return "", apperrors.InvalidAttachment("attachment exceeds the %d MB limit for %s", limit>>20, category)
	}

	contentType := normalizeContentType(payload.ContentType, payload.Filename)

	// Images are judged by the declared type alone, never by the filename
	if category.IsImage() {
		declared := declaredType(payload.ContentType)
		if !strings.HasPrefix(declared, "image/") {
			return "", apperrors.InvalidAttachment("%s must be declared as an image, got %q", category, payload.ContentType)
		}
		contentType = declared
	}

	if contentType == "application/pdf" {
		result := pdfvalidation.ValidatePDFBytes(payload.Data, pdfvalidation.ApplicationDocumentLimits)
		if !result.Valid {
			return "", apperrors.InvalidAttachment("%s", result.Error)
		}
	}

	ref := path.Join(string(category), fmt.Sprint(ownerID), uuid.New().String()+extensionFor(contentType, payload.Filename))

	if err := s.backend.Put(ctx, ref, payload.Data, contentType); err != nil {
		s.log.WithError(err).WithField("ref", ref).Error("failed to store attachment")
		return "", apperrors.Storage("store attachment", err)
	}

	metrics.AttachmentBytes.WithLabelValues(string(category)).Observe(float64(len(payload.Data)))
	s.log.WithFields(logrus.Fields{
		"ref":      ref,
		"category": category,
		"bytes":    len(payload.Data),
	}).Info("attachment stored")

	return ref, nil
}

// Retrieve reads a stored attachment. Malformed or unknown references are NotFound.
func (s *AttachmentService) Retrieve(ctx context.Context, ref string) (*storage.Object, error) {
	if !validRef(ref) {
		return nil, apperrors.NotFound("attachment", ref)
	}

	obj, err := s.backend.Get(ctx, ref)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, apperrors.NotFound("attachment", ref)
		}
		return nil, apperrors.Storage("retrieve attachment", err)
	}
	return obj, nil
}

// Release deletes a stored attachment. Empty and missing references are ignored.
func (s *AttachmentService) Release(ctx context.Context, ref string) error {
	if ref == "" {
		return nil
	}
	if !validRef(ref) {
		return apperrors.NotFound("attachment", ref)
	}
	if err := s.backend.Delete(ctx, ref); err != nil {
		return apperrors.Storage("release attachment", err)
	}
	return nil
}

// releaseAll releases refs left behind by a committed delete.
// Failures are logged with the orphaned reference and counted.
func (s *AttachmentService) releaseAll(ctx context.Context, refs []string, owner string) {
	for _, ref := range refs {
		if err := s.Release(ctx, ref); err != nil {
			metrics.AttachmentOrphansTotal.Inc()
			s.log.WithError(err).WithFields(logrus.Fields{
				"orphaned_ref": ref,
				"owner":        owner,
			}).Error("failed to release attachment")
		}
	}
}

func validRef(ref string) bool {
	if !storage.ValidKey(ref) {
		return false
	}
	parts := strings.SplitN(ref, "/", 3)
	return len(parts) == 3 && AttachmentCategory(parts[0]).valid()
}

// declaredType returns the lowercased media type, or "" when missing or unparseable
func declaredType(declared string) string {
	if declared == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(declared)
	if err != nil {
		return ""
	}
	return strings.ToLower(mediaType)
}

func normalizeContentType(declared, filename string) string {
	if mediaType := declaredType(declared); mediaType != "" {
		return mediaType
	}
	if byExt := mime.TypeByExtension(strings.ToLower(path.Ext(filename))); byExt != "" {
		if mediaType, _, err := mime.ParseMediaType(byExt); err == nil {
			return mediaType
		}
	}
	return "application/octet-stream"
}

func extensionFor(contentType, filename string) string {
	if ext, ok := extensions[contentType]; ok {
		return ext
	}
	ext := strings.TrimPrefix(strings.ToLower(path.Ext(filename)), ".")
	if safeExt.MatchString(ext) {
		return "." + ext
	}
	return ""
}
