package maintenance

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"

	"siteguard/internal/config"
)

// Predictor yields the remaining-life estimate in days for a piece of
// equipment. The production implementation calls the external model
// service; tests substitute a fixed answer.
type Predictor interface {
	RemainingLife(ctx context.Context, equipmentID, zoneID string) (int, error)
}

// Client talks to the prediction service over HTTP. The model itself is a
// black box; only the first prediction element is consumed.
type Client struct {
	http *resty.Client
}

func NewClient(cfg config.MaintenanceConfig) *Client {
	return &Client{
		http: resty.New().
			SetBaseURL(cfg.PredictionURL).
			SetTimeout(cfg.Timeout).
			SetRetryCount(2).
			SetHeader("Accept", "application/json"),
	}
}

func (c *Client) RemainingLife(ctx context.Context, equipmentID, zoneID string) (int, error) {
	var out struct {
		Predictions []float64 `json:"predictions"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("equipId", equipmentID).
		SetQueryParam("zoneId", zoneID).
		SetResult(&out).
		Get("/predict")
	if err != nil {
		return 0, err
	}
	if resp.IsError() {
		return 0, fmt.Errorf("prediction service returned %s", resp.Status())
	}
	if len(out.Predictions) == 0 {
		return 0, fmt.Errorf("prediction service returned no predictions for %s", equipmentID)
	}
	return int(out.Predictions[0]), nil
}
