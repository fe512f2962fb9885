package cloudinary

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/rs/zerolog"
)

const resourceType = "image"

// Config contains credentials required to talk to Cloudinary.
type Config struct {
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
}

// Service stores check-in photos and violation evidence in Cloudinary.
type Service struct {
	client *cloudinary.Cloudinary
	folder string
	logger zerolog.Logger
}

// New constructs a Cloudinary service instance.
func New(cfg Config, logger zerolog.Logger) (*Service, error) {
	if cfg.CloudName == "" || cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, fmt.Errorf("cloudinary credentials must be provided")
	}

	cld, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cloudinary: %w", err)
	}

	return &Service{
		client: cld,
		folder: strings.Trim(cfg.Folder, "/"),
		logger: logger.With().Str("component", "cloudinary").Logger(),
	}, nil
}

// Save uploads the image under a public id derived from name and returns its secure URL.
// Saving the same name twice replaces the asset.
func (s *Service) Save(ctx context.Context, name string, reader io.Reader) (string, error) {
	params := uploader.UploadParams{
		Folder:       s.folder,
		PublicID:     buildPublicID(name),
		ResourceType: resourceType,
		Overwrite:    api.Bool(true),
	}

	result, err := s.client.Upload.Upload(ctx, reader, params)
	if err != nil {
		return "", fmt.Errorf("failed to upload asset: %w", err)
	}
	if result.Error.Message != "" {
		return "", fmt.Errorf("failed to upload asset: %s", result.Error.Message)
	}

	s.logger.Info().Str("public_id", result.PublicID).Msg("file uploaded to cloudinary")

	return result.SecureURL, nil
}

// Delete destroys the asset behind a URL returned by Save.
func (s *Service) Delete(ctx context.Context, location string) error {
	publicID, err := publicIDFromURL(location)
	if err != nil {
		return err
	}

	result, err := s.client.Upload.Destroy(ctx, uploader.DestroyParams{
		PublicID:     publicID,
		ResourceType: resourceType,
		Invalidate:   api.Bool(true),
	})
	if err != nil {
		return fmt.Errorf("failed to delete asset: %w", err)
	}
	if result.Result != "ok" {
		return fmt.Errorf("failed to delete asset %s: %s", publicID, result.Result)
	}

	s.logger.Info().Str("public_id", publicID).Msg("file deleted from cloudinary")
	return nil
}

// buildPublicID keeps the directory structure of name and drops its extension.
func buildPublicID(name string) string {
	name = path.Clean("/" + strings.ReplaceAll(name, "\\", "/"))
	name = strings.TrimSuffix(name, path.Ext(name))

	segments := strings.Split(strings.Trim(name, "/"), "/")
	cleaned := make([]string, 0, len(segments))
	for _, segment := range segments {
		segment = strings.Map(func(r rune) rune {
			if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' || r == '-' {
				return r
			}
			return '-'
		}, segment)
		segment = strings.Trim(segment, "-")
		if segment != "" {
			cleaned = append(cleaned, segment)
		}
	}

	if len(cleaned) == 0 {
		return "upload"
	}
	return strings.Join(cleaned, "/")
}

// publicIDFromURL extracts "folder/name" from a delivery URL such as
// https://res.cloudinary.com/demo/image/upload/v1712/exams/checkins/photo.png.
func publicIDFromURL(location string) (string, error) {
	parsed, err := url.Parse(location)
	if err != nil {
		return "", fmt.Errorf("invalid cloudinary url: %w", err)
	}

	_, rest, found := strings.Cut(parsed.Path, "/upload/")
	if !found || rest == "" {
		return "", fmt.Errorf("invalid cloudinary url %q", location)
	}

	segments := strings.Split(rest, "/")
	if first := segments[0]; len(first) > 1 && first[0] == 'v' && isDigits(first[1:]) {
		segments = segments[1:]
	}
	if len(segments) == 0 {
		return "", fmt.Errorf("invalid cloudinary url %q", location)
	}

	publicID := strings.Join(segments, "/")
	publicID = strings.TrimSuffix(publicID, path.Ext(publicID))
	if publicID == "" {
		return "", fmt.Errorf("invalid cloudinary url %q", location)
	}
	return publicID, nil
}

func isDigits(value string) bool {
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return value != ""
}
