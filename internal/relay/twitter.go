package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/grumpy-generator/signal-intel/internal/ingest"
	"github.com/sirupsen/logrus"
)

const twitterSearchURL = "https://api.twitter.com/2/tweets/search/recent"

// TwitterRelay polls the recent-search API for configured keywords and
// ingests matching tweets as signals with tweet provenance attached.
type TwitterRelay struct {
	bearerToken string
	keywords    []string
	interval    time.Duration
	gateway     *ingest.Gateway
	client      *resty.Client
	baseURL     string
	seen        map[string]bool
}

type twitterSearchResponse struct {
	Data     []twitterTweet `json:"data"`
	Includes struct {
		Users []twitterUser `json:"users"`
	} `json:"includes"`
	Meta struct {
		ResultCount int `json:"result_count"`
	} `json:"meta"`
}

type twitterTweet struct {
	ID               string `json:"id"`
	Text             string `json:"text"`
	AuthorID         string `json:"author_id"`
	CreatedAt        string `json:"created_at"`
	ReferencedTweets []struct {
		Type string `json:"type"`
		ID   string `json:"id"`
	} `json:"referenced_tweets"`
}

type twitterUser struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	PublicMetrics struct {
		FollowersCount int `json:"followers_count"`
	} `json:"public_metrics"`
}

// NewTwitterRelay creates the poller. An empty bearer token or keyword list
// disables it.
func NewTwitterRelay(bearerToken string, keywords []string, interval time.Duration, gateway *ingest.Gateway) *TwitterRelay {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &TwitterRelay{
		bearerToken: bearerToken,
		keywords:    keywords,
		interval:    interval,
		gateway:     gateway,
		client: resty.New().
			SetTimeout(30 * time.Second).
			SetHeader("User-Agent", "SignalIntel-Relay/1.0"),
		baseURL: twitterSearchURL,
		seen:    make(map[string]bool),
	}
}

// Ensure TwitterRelay implements Relay
var _ Relay = (*TwitterRelay)(nil)

func (t *TwitterRelay) GetName() string {
	return "twitter"
}

func (t *TwitterRelay) IsEnabled() bool {
	return t.bearerToken != "" && len(t.keywords) > 0
}

// Run polls on a fixed interval until the context is cancelled.
func (t *TwitterRelay) Run(ctx context.Context) {
	if !t.IsEnabled() {
		return
	}

	logrus.Infof("Twitter relay polling started (every %v, keywords: %s)",
		t.interval, strings.Join(t.keywords, ", "))

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		// search window doubles the interval so a slow poll never drops tweets
		if err := t.Poll(ctx, 2*t.interval); err != nil {
			logrus.Errorf("Twitter poll failed: %v", err)
		}

		select {
		case <-ctx.Done():
			logrus.Info("Twitter relay stopped")
			return
		case <-ticker.C:
		}
	}
}

// Poll runs one recent-search pass over all keywords. Rate limiting (429)
// degrades to an empty result instead of an error so the next tick retries.
func (t *TwitterRelay) Poll(ctx context.Context, window time.Duration) error {
	for _, keyword := range t.keywords {
		tweets, err := t.search(ctx, keyword, window)
		if err != nil {
			logrus.Errorf("Twitter search for %q failed: %v", keyword, err)
			continue
		}

		for _, tw := range tweets {
			if t.seen[tw.tweet.ID] {
				continue
			}
			t.seen[tw.tweet.ID] = true

			_, err := t.gateway.IngestMessage(ctx, tw.author, tw.tweet.Text, "twitter",
				tw.tweet.ID, fmt.Sprintf("https://twitter.com/i/status/%s", tw.tweet.ID))
			if err != nil {
				logrus.Errorf("Failed to ingest tweet %s: %v", tw.tweet.ID, err)
			}
		}
	}
	return nil
}

type authoredTweet struct {
	tweet  twitterTweet
	author string
}

func (t *TwitterRelay) search(ctx context.Context, keyword string, window time.Duration) ([]authoredTweet, error) {
	startTime := time.Now().Add(-window).UTC().Format(time.RFC3339)
	query := url.QueryEscape(fmt.Sprintf("%q -is:retweet", keyword))

	searchURL := fmt.Sprintf("%s?query=%s&start_time=%s&max_results=100&tweet.fields=created_at,author_id,referenced_tweets&expansions=author_id&user.fields=username,public_metrics",
		t.baseURL, query, startTime)

	resp, err := t.client.R().
		SetContext(ctx).
		SetHeader("Authorization", "Bearer "+t.bearerToken).
		Get(searchURL)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode() == 429 {
		logrus.Warnf("Twitter API rate limit hit for keyword %q - skipping this pass", keyword)
		return nil, nil
	}

	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("twitter API returned status %d: %s", resp.StatusCode(), string(resp.Body()))
	}

	var searchResp twitterSearchResponse
	if err := json.Unmarshal(resp.Body(), &searchResp); err != nil {
		return nil, fmt.Errorf("failed to parse Twitter response: %w", err)
	}

	usernames := make(map[string]string, len(searchResp.Includes.Users))
	for _, u := range searchResp.Includes.Users {
		usernames[u.ID] = u.Username
	}

	var result []authoredTweet
	for _, tweet := range searchResp.Data {
		if isRetweet(tweet) {
			continue
		}
		author := usernames[tweet.AuthorID]
		if author == "" {
			author = tweet.AuthorID
		}
		result = append(result, authoredTweet{tweet: tweet, author: author})
	}

	logrus.Debugf("Twitter search for %q returned %d usable tweets", keyword, len(result))
	return result, nil
}

func isRetweet(tweet twitterTweet) bool {
	for _, ref := range tweet.ReferencedTweets {
		if ref.Type == "retweeted" {
			return true
		}
	}
	return false
}
