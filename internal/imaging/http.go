package imaging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"
)

// detectionResponse is the JSON body returned by the classification service.
type detectionResponse struct {
	// Predictions are the labeled regions found in the uploaded image.
	Predictions []Prediction `json:"predictions"`
	// Success reports whether the service processed the image.
	Success bool `json:"success"`
}

// defaultHTTPTimeout bounds a single detection round trip.
const defaultHTTPTimeout = 10 * time.Second

// HTTPDetector asks an external HTTP classification service whether a frame
// shows a cat. The frame is uploaded as a multipart JPEG together with the
// minimum confidence, the way DeepStack-style detection APIs expect.
type HTTPDetector struct {
	frameCache

	// url is the detection endpoint.
	url string
	// client performs the detection requests.
	client *http.Client
}

// NewHTTPDetector creates a detector for the provided endpoint. A zero
// timeout falls back to a ten second default.
func NewHTTPDetector(url string, timeout time.Duration) *HTTPDetector {
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}

	return &HTTPDetector{
		url: url,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// ContainsCat uploads the frame and scans the predictions for a cat at or
// above minConfidence. Service failures propagate to the caller unmodified
// in meaning: no detection decision is made on errors.
func (d *HTTPDetector) ContainsCat(ctx context.Context, img image.Image, minConfidence float64) (bool, error) {
	frame := new(bytes.Buffer)
	if err := jpeg.Encode(frame, img, nil); err != nil {
		return false, fmt.Errorf("encode frame: %w", err)
	}

	predictions, err := d.detect(ctx, frame.Bytes(), minConfidence)
	if err != nil {
		return false, err
	}

	d.store(frame.Bytes(), predictions)

	return hasCat(predictions, minConfidence), nil
}

// detect performs the multipart upload and decodes the prediction list.
func (d *HTTPDetector) detect(ctx context.Context, jpegData []byte, minConfidence float64) ([]Prediction, error) {
	body := new(bytes.Buffer)
	form := multipart.NewWriter(body)

	part, err := form.CreateFormFile("image", "frame.jpeg")
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}

	if _, err = io.Copy(part, bytes.NewReader(jpegData)); err != nil {
		return nil, fmt.Errorf("copy frame into form: %w", err)
	}

	if err = form.WriteField("min_confidence", strconv.FormatFloat(minConfidence, 'f', 2, 64)); err != nil {
		return nil, fmt.Errorf("write confidence field: %w", err)
	}

	// Must close before sending or the client omits the content length.
	if err = form.Close(); err != nil {
		return nil, fmt.Errorf("close form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, body)
	if err != nil {
		return nil, fmt.Errorf("build detection request: %w", err)
	}

	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call detection service: %w", err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("detection service returned status %d", resp.StatusCode)
	}

	var result detectionResponse
	if err = json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode detection response: %w", err)
	}

	return result.Predictions, nil
}
