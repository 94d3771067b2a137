package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultPolarURL = "https://api.polar.sh"

// Polar lists products from Polar's REST API.
type Polar struct {
	baseURL        string
	accessToken    string
	organizationID string
	client         *http.Client
}

// NewPolar builds a Polar loader. An empty baseURL targets production.
func NewPolar(baseURL, accessToken, organizationID string) *Polar {
	if baseURL == "" {
		baseURL = defaultPolarURL
	}
	return &Polar{
		baseURL:        strings.TrimRight(baseURL, "/"),
		accessToken:    accessToken,
		organizationID: organizationID,
		client:         &http.Client{Timeout: 15 * time.Second},
	}
}

type polarPrice struct {
	AmountType    string `json:"amount_type"`
	PriceAmount   int    `json:"price_amount"`
	PriceCurrency string `json:"price_currency"`
	IsArchived    bool   `json:"is_archived"`
}

type polarProduct struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Description *string      `json:"description"`
	IsArchived  bool         `json:"is_archived"`
	Prices      []polarPrice `json:"prices"`
}

type polarListResponse struct {
	Items []polarProduct `json:"items"`
}

// LoadProducts returns the organization's active products with a fixed price.
func (p *Polar) LoadProducts(ctx context.Context) ([]Product, error) {
	q := url.Values{}
	q.Set("is_archived", "false")
	if p.organizationID != "" {
		q.Set("organization_id", p.organizationID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/v1/products/?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("polar API error (status %d): %s", resp.StatusCode, string(body))
	}

	var list polarListResponse
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, fmt.Errorf("failed to decode products: %w", err)
	}

	products := make([]Product, 0, len(list.Items))
	for _, item := range list.Items {
		if item.IsArchived {
			continue
		}
		product := Product{ID: item.ID, Name: item.Name}
		if item.Description != nil {
			product.Description = *item.Description
		}
		for _, price := range item.Prices {
			if price.IsArchived || price.AmountType != "fixed" {
				continue
			}
			product.PriceCents = price.PriceAmount
			product.Currency = strings.ToUpper(price.PriceCurrency)
			break
		}
		products = append(products, product)
	}
	return products, nil
}
