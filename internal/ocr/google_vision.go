package ocr

import (
	"context"
	"fmt"
	"image"
	"os"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"github.com/googleapis/gax-go/v2"
	"google.golang.org/api/option"

	"imgtranslate/internal/imaging"
)

const (
	// MaxRequestBytes is the maximum inline image size accepted by Cloud Vision (20MB)
	MaxRequestBytes = 20 * 1024 * 1024
)

// imageAnnotator is the subset of the Vision client used by VisionEngine.
type imageAnnotator interface {
	BatchAnnotateImages(ctx context.Context, req *visionpb.BatchAnnotateImagesRequest, opts ...gax.CallOption) (*visionpb.BatchAnnotateImagesResponse, error)
	Close() error
}

// VisionEngine implements Engine using Google Cloud Vision API.
type VisionEngine struct {
	client imageAnnotator
}

// NewVisionEngine creates a Vision engine with credentials from environment.
// It expects either GOOGLE_APPLICATION_CREDENTIALS path or GOOGLE_CREDENTIALS JSON in env.
func NewVisionEngine(ctx context.Context) (*VisionEngine, error) {
	const op = "NewVisionEngine"

	var client *vision.ImageAnnotatorClient
	var err error

	if credJSON := os.Getenv("GOOGLE_CREDENTIALS"); credJSON != "" {
		client, err = vision.NewImageAnnotatorClient(ctx, option.WithCredentialsJSON([]byte(credJSON)))
		if err != nil {
			return nil, WrapOCRError(op, err, "failed to create client with GOOGLE_CREDENTIALS")
		}
	} else if credFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); credFile != "" {
		client, err = vision.NewImageAnnotatorClient(ctx, option.WithCredentialsFile(credFile))
		if err != nil {
			return nil, WrapOCRError(op, err, "failed to create client with GOOGLE_APPLICATION_CREDENTIALS")
		}
	} else {
		// Application Default Credentials as a last resort
		client, err = vision.NewImageAnnotatorClient(ctx)
		if err != nil {
			return nil, WrapOCRError(op, ErrMissingCredentials, "no credentials found in environment")
		}
	}

	return &VisionEngine{client: client}, nil
}

// NewVisionEngineWithClient creates a Vision engine with an explicit client (for testing).
func NewVisionEngineWithClient(client imageAnnotator) *VisionEngine {
	return &VisionEngine{client: client}
}

func (v *VisionEngine) Name() string { return "vision" }

// Recognize sends img as an inline PNG to TEXT_DETECTION.
func (v *VisionEngine) Recognize(ctx context.Context, img image.Image, languages ...string) (string, error) {
	const op = "VisionEngine.Recognize"

	if img == nil {
		return "", NewOCRError(op, ErrNilImage, "")
	}

	content, err := imaging.EncodePNG(img)
	if err != nil {
		return "", WrapOCRError(op, err, "failed to encode image")
	}
	if len(content) > MaxRequestBytes {
		return "", WrapOCRError(op, ErrImageTooLarge, fmt.Sprintf("encoded size: %d bytes", len(content)))
	}

	req := &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{
			{
				Image: &visionpb.Image{Content: content},
				Features: []*visionpb.Feature{
					{Type: visionpb.Feature_TEXT_DETECTION},
				},
				ImageContext: &visionpb.ImageContext{
					LanguageHints: visionLanguageHints(languages),
				},
			},
		},
	}

	resp, err := v.client.BatchAnnotateImages(ctx, req)
	if err != nil {
		return "", WrapOCRError(op, ErrOCRFailed, fmt.Sprintf("Vision API call failed: %v", err))
	}
	if len(resp.GetResponses()) == 0 {
		return "", WrapOCRError(op, ErrOCRFailed, "no response from Vision API")
	}

	imgResp := resp.GetResponses()[0]
	if imgResp.GetError() != nil && imgResp.GetError().GetMessage() != "" {
		return "", WrapOCRError(op, ErrOCRFailed, fmt.Sprintf("Vision API error: %s", imgResp.GetError().GetMessage()))
	}

	if full := imgResp.GetFullTextAnnotation(); full != nil {
		return full.GetText(), nil
	}
	// The first text annotation covers the whole image.
	if annotations := imgResp.GetTextAnnotations(); len(annotations) > 0 {
		return annotations[0].GetDescription(), nil
	}
	return "", nil
}

// Close closes the underlying Vision client.
func (v *VisionEngine) Close() error {
	if v.client != nil {
		return v.client.Close()
	}
	return nil
}

// visionLanguageHints maps Tesseract pack names to the BCP-47 codes Vision expects.
func visionLanguageHints(languages []string) []string {
	hints := make([]string, 0, len(languages))
	for _, l := range languages {
		switch l {
		case "eng":
			hints = append(hints, "en")
		case "":
		default:
			hints = append(hints, l)
		}
	}
	return hints
}
