package daily

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

const oembedEndpoint = "https://www.youtube.com/oembed"

// Prober checks that a candidate media link resolves to real content.
type Prober interface {
	Probe(ctx context.Context, link string) bool
}

// OEmbedProbe verifies a YouTube link by fetching its oEmbed metadata.
// Best effort: any transport or non-200 outcome counts as unreachable.
type OEmbedProbe struct {
	endpoint   string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewOEmbedProbe(logger *zap.Logger) *OEmbedProbe {
	return &OEmbedProbe{
		endpoint:   oembedEndpoint,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}
}

func (p *OEmbedProbe) Probe(ctx context.Context, link string) bool {
	probeURL := p.endpoint + "?format=json&url=" + url.QueryEscape(link)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, probeURL, nil)
	if err != nil {
		return false
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		p.logger.Debug("media probe failed", zap.String("link", link), zap.Error(err))
		return false
	}
	defer resp.Body.Close()

	ok := resp.StatusCode == http.StatusOK
	p.logger.Debug("media probe", zap.String("link", link), zap.Bool("reachable", ok))
	return ok
}

// isYouTubeLink checks the URL shape for the target media platform before
// any network probe is spent on it.
func isYouTubeLink(link string) bool {
	u, err := url.Parse(strings.TrimSpace(link))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return false
	}
	host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	switch host {
	case "youtube.com", "m.youtube.com", "music.youtube.com":
		return u.Path == "/watch" && u.Query().Get("v") != ""
	case "youtu.be":
		return len(strings.Trim(u.Path, "/")) > 0
	default:
		return false
	}
}
