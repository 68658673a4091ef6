package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// JoinLinkResolver looks up the join URL of a meeting
type JoinLinkResolver interface {
	JoinURL(ctx context.Context, meetingID string) (string, error)
}

// ZoomConfig holds Server-to-Server OAuth credentials for the Zoom API
type ZoomConfig struct {
	AccountID    string
	ClientID     string
	ClientSecret string
	// TokenURL and APIBase default to the public Zoom endpoints.
	TokenURL string
	APIBase  string
}

// ZoomService resolves meeting join links through the Zoom REST API
type ZoomService struct {
	client  *http.Client
	apiBase string
	cache   *lru.Cache[string, string]
}

// NewZoomService creates a resolver with a small join-URL cache
func NewZoomService(cfg ZoomConfig) (*ZoomService, error) {
	if cfg.TokenURL == "" {
		cfg.TokenURL = "https://zoom.us/oauth/token"
	}
	if cfg.APIBase == "" {
		cfg.APIBase = "https://api.zoom.us/v2"
	}
	cache, err := lru.New[string, string](512)
	if err != nil {
		return nil, fmt.Errorf("failed to create join link cache: %w", err)
	}

	oauthCfg := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
		AuthStyle:    oauth2.AuthStyleInHeader,
		EndpointParams: url.Values{
			"grant_type": {"account_credentials"},
			"account_id": {cfg.AccountID},
		},
	}

	return &ZoomService{
		client:  oauthCfg.Client(context.Background()),
		apiBase: strings.TrimRight(cfg.APIBase, "/"),
		cache:   cache,
	}, nil
}

type zoomMeeting struct {
	JoinURL string `json:"join_url"`
}

// JoinURL returns the join link for meetingID, cached after the first lookup
func (s *ZoomService) JoinURL(ctx context.Context, meetingID string) (string, error) {
	if link, ok := s.cache.Get(meetingID); ok {
		return link, nil
	}

	endpoint := fmt.Sprintf("%s/meetings/%s", s.apiBase, url.PathEscape(meetingID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("zoom meeting %s: %w", meetingID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("zoom meeting %s: unexpected status %d", meetingID, resp.StatusCode)
	}
	var meeting zoomMeeting
	if err := json.NewDecoder(resp.Body).Decode(&meeting); err != nil {
		return "", fmt.Errorf("decode zoom meeting %s: %w", meetingID, err)
	}
	if meeting.JoinURL == "" {
		return "", fmt.Errorf("zoom meeting %s has no join url", meetingID)
	}

	s.cache.Add(meetingID, meeting.JoinURL)
	return meeting.JoinURL, nil
}
