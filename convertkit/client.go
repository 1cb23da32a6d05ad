package convertkit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/go-querystring/query"

	"github.com/seanlongden/lead-formatter-waitlist/config"
)

// Client talks to the ConvertKit v3 API.
type Client struct {
	conf       config.ConvertKit
	baseURL    string
	httpClient *http.Client
}

// New creates a new API client.
func New(conf config.ConvertKit) *Client {
	return &Client{
		conf:    conf,
		baseURL: strings.TrimRight(conf.APIURL, "/"),
		httpClient: &http.Client{
			Timeout: conf.Timeout,
		},
	}
}

type subscribeRequest struct {
	APIKey string            `json:"api_key"`
	Email  string            `json:"email"`
	Fields map[string]string `json:"fields,omitempty"`
	Tags   []string          `json:"tags,omitempty"`
}

type subscribeResponse struct {
	Subscription struct {
		Subscriber struct {
			ID json.Number `json:"id"`
		} `json:"subscriber"`
	} `json:"subscription"`
}

type subscriberQuery struct {
	APISecret    string `url:"api_secret"`
	EmailAddress string `url:"email_address"`
}

type subscribersResponse struct {
	Subscribers []struct {
		ID json.Number `json:"id"`
	} `json:"subscribers"`
}

type updateSubscriberRequest struct {
	APISecret string            `json:"api_secret"`
	Fields    map[string]string `json:"fields"`
}

// AddSubscriber subscribes email to the configured form with its referral fields and the
// waitlist tag, returning the subscriber id ConvertKit assigned.
func (c *Client) AddSubscriber(ctx context.Context, email, referralCode, referredBy string) (string, error) {
	if c.conf.APIKey == "" || c.conf.FormID == "" {
		return "", ErrNotConfigured
	}

	req := subscribeRequest{
		APIKey: c.conf.APIKey,
		Email:  email,
		Fields: map[string]string{
			"referral_code": referralCode,
			"referred_by":   referredBy,
		},
	}
	if c.conf.TagWaitlist != "" {
		req.Tags = []string{c.conf.TagWaitlist}
	}

	var resp subscribeResponse
	path := "/forms/" + url.PathEscape(c.conf.FormID) + "/subscribe"
	if err := c.doRequest(ctx, http.MethodPost, path, req, &resp); err != nil {
		return "", fmt.Errorf("convertkit.AddSubscriber: %w", err)
	}
	return resp.Subscription.Subscriber.ID.String(), nil
}

// TagSubscriber applies tagID to the subscriber with the given email.
func (c *Client) TagSubscriber(ctx context.Context, email, tagID string) error {
	if c.conf.APIKey == "" || tagID == "" {
		return ErrNotConfigured
	}

	body := map[string]string{
		"api_key": c.conf.APIKey,
		"email":   email,
	}
	if err := c.doRequest(ctx, http.MethodPost, "/tags/"+url.PathEscape(tagID)+"/subscribe", body, nil); err != nil {
		return fmt.Errorf("convertkit.TagSubscriber: %w", err)
	}
	return nil
}

// TagTier applies the tag configured for tier, if any.
func (c *Client) TagTier(ctx context.Context, email string, tier int) error {
	if tier < 0 || tier >= len(c.conf.TierTags) {
		return ErrNotConfigured
	}
	return c.TagSubscriber(ctx, email, c.conf.TierTags[tier])
}

// UpdateField looks the subscriber up by email and sets one custom field.
func (c *Client) UpdateField(ctx context.Context, email, field, value string) error {
	if c.conf.APISecret == "" {
		return ErrNotConfigured
	}

	params, err := query.Values(subscriberQuery{APISecret: c.conf.APISecret, EmailAddress: email})
	if err != nil {
		return fmt.Errorf("convertkit.UpdateField: encode query: %w", err)
	}

	var found subscribersResponse
	if err := c.doRequest(ctx, http.MethodGet, "/subscribers?"+params.Encode(), nil, &found); err != nil {
		return fmt.Errorf("convertkit.UpdateField: %w", err)
	}
	if len(found.Subscribers) == 0 {
		return fmt.Errorf("convertkit.UpdateField: %w", &HTTPError{StatusCode: http.StatusNotFound, Message: "subscriber not found"})
	}

	update := updateSubscriberRequest{
		APISecret: c.conf.APISecret,
		Fields:    map[string]string{field: value},
	}
	path := "/subscribers/" + url.PathEscape(found.Subscribers[0].ID.String())
	if err := c.doRequest(ctx, http.MethodPut, path, update, nil); err != nil {
		return fmt.Errorf("convertkit.UpdateField: %w", err)
	}
	return nil
}

func (c *Client) doRequest(ctx context.Context, method, path string, body any, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if readErr != nil {
			return &HTTPError{StatusCode: resp.StatusCode, Message: fmt.Sprintf("failed to read body: %v", readErr)}
		}
		var apiErr struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		if json.Unmarshal(respBody, &apiErr) == nil {
			if apiErr.Message != "" {
				return &HTTPError{StatusCode: resp.StatusCode, Message: apiErr.Message}
			}
			if apiErr.Error != "" {
				return &HTTPError{StatusCode: resp.StatusCode, Message: apiErr.Error}
			}
		}
		return &HTTPError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
