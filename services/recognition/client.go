package recognition

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sendgrid/rest"

	"github.com/trezcool/rollcall/core/attendance"
)

type (
	recognizeRequest struct {
		Image   string `json:"image"`
		ClassID int    `json:"class_id"`
	}

	recognizeResponse struct {
		Candidates []attendance.Candidate `json:"candidates"`
	}
)

// Client calls a remote recognition service over HTTP.
type Client struct {
	baseURL string
	rest    *rest.Client
}

var _ attendance.Recognizer = (*Client)(nil)

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		rest:    &rest.Client{HTTPClient: &http.Client{Timeout: timeout}},
	}
}

// Recognize posts the image as a data URL and returns the candidates in service order.
func (c *Client) Recognize(ctx context.Context, img attendance.Image, classID int) ([]attendance.Candidate, error) {
	if len(img.Data) == 0 {
		return nil, ErrEmptyImage
	}
	body, err := json.Marshal(recognizeRequest{Image: img.DataURL(), ClassID: classID})
	if err != nil {
		return nil, errors.Wrap(err, "encoding recognition request")
	}

	resp, err := c.rest.SendWithContext(ctx, rest.Request{
		Method:  rest.Post,
		BaseURL: c.baseURL + "/recognize",
		Headers: map[string]string{
			"Content-Type": "application/json",
			"Accept":       "application/json",
		},
		Body: body,
	})
	if err != nil {
		return nil, errors.Wrap(err, "calling recognition service")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errors.Errorf("recognition service: status %d: %s", resp.StatusCode, resp.Body)
	}

	var out recognizeResponse
	if err := json.Unmarshal([]byte(resp.Body), &out); err != nil {
		return nil, errors.Wrap(err, "decoding recognition response")
	}
	return out.Candidates, nil
}
